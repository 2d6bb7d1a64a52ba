// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for FAQ entries.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

// CreateFAQ inserts f as-is.
func CreateFAQ(ctx context.Context, db *gorm.DB, f *domain.FAQ) error {
	return db.WithContext(ctx).Create(f).Error
}

// GetFAQ fetches a FAQ entry by id.
func GetFAQ(ctx context.Context, db *gorm.DB, id string) (*domain.FAQ, error) {
	var f domain.FAQ
	if err := db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFAQs returns FAQ entries in creation order; activeOnly keeps only the
// entries with is_active = true.
func ListFAQs(ctx context.Context, db *gorm.DB, activeOnly bool) ([]domain.FAQ, error) {
	var out []domain.FAQ
	q := db.WithContext(ctx).Order("created_at ASC, id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdateFAQFields patches the given columns of FAQ id. It returns ErrNotFound
// when no row matched.
func UpdateFAQFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).Model(&domain.FAQ{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFAQ removes FAQ id. Absent ids are ignored.
func DeleteFAQ(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.FAQ{}).Error
}
