// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

// ReportsStats returns the number of reports matching f and the sum of their
// version and lock counters. Any create, update, lock change or delete moves
// at least one of the two values, which makes the pair usable as a weak
// validator.
func ReportsStats(ctx context.Context, db *gorm.DB, f ReportFilter) (count int64, versionSum int64, err error) {
	var row struct {
		Count      int64
		VersionSum int64
	}
	err = f.apply(db.WithContext(ctx).Model(&domain.Report{})).
		Select("COUNT(*) AS count, COALESCE(SUM(version + lock_seq), 0) AS version_sum").
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Count, row.VersionSum, nil
}

// NotificationsStats returns the number of notifications held by userID and
// how many of them are unread.
func NotificationsStats(ctx context.Context, db *gorm.DB, userID string) (total, unread int64, err error) {
	q := db.WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ?", userID)
	if err = q.Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return 0, 0, nil
	}
	err = db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&unread).Error
	return total, unread, err
}
