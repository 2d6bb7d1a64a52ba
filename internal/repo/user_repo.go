// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for users and
// their login sessions.
//
// Error semantics follow the rest of the package: a missing row yields
// ErrNotFound; other database failures are propagated unchanged. Deletes are
// idempotent and never report a missing row.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

// CreateUser inserts u as-is. Callers assign ID, CreatedAt and PasswordHash.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).Create(u).Error
}

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by exact (case-sensitive) email.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns the full roster in creation order. When roles are given,
// only users holding one of them are returned.
func ListUsers(ctx context.Context, db *gorm.DB, roles ...domain.Role) ([]domain.User, error) {
	var out []domain.User
	q := db.WithContext(ctx).Order("created_at ASC, id ASC")
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountUsers returns the roster size.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error
	return n, err
}

// UpdateUserFields patches the given columns of user id. It returns
// ErrNotFound when no row matched.
func UpdateUserFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes user id. References held by reports, notifications and
// messages are left dangling on purpose.
func DeleteUser(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{}).Error
}

// CreateSession inserts a login session.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.Session) error {
	return db.WithContext(ctx).Create(s).Error
}

// GetSession fetches a session by id (the token's jti).
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	var s domain.Session
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// RevokeSession marks a session revoked at the given time. Revoking an absent
// or already revoked session is a no-op.
func RevokeSession(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at).Error
}

// DeleteExpiredSessions purges sessions that expired before ref.
func DeleteExpiredSessions(ctx context.Context, db *gorm.DB, ref time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at < ?", ref).Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}
