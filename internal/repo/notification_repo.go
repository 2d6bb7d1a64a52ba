// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for notifications.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

// CreateNotifications inserts ns in one statement. An empty slice is a no-op.
func CreateNotifications(ctx context.Context, db *gorm.DB, ns []domain.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&ns).Error
}

// GetNotification fetches a notification by id.
func GetNotification(ctx context.Context, db *gorm.DB, id string) (*domain.Notification, error) {
	var n domain.Notification
	if err := db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotifications returns userID's notifications in insertion order.
func ListNotifications(ctx context.Context, db *gorm.DB, userID string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// MarkNotificationRead flags notification id as read. Absent ids are ignored.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ?", id).
		Update("read", true).Error
}

// MarkAllNotificationsRead flags every unread notification of userID as read
// and returns how many rows changed.
func MarkAllNotificationsRead(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

// DeleteNotification removes notification id. Absent ids are ignored.
func DeleteNotification(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Notification{}).Error
}
