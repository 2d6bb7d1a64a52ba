// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for reports, their
// status history, and the advisory edit lock.
//
// Every mutating function bumps Report.Version so list ETags and optimistic
// concurrency checks observe the change.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

// ReportFilter narrows report listings. Empty fields do not filter.
type ReportFilter struct {
	Status     domain.ReportStatus
	CreatedBy  string
	AssignedTo string
}

func (f ReportFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CreatedBy != "" {
		q = q.Where("created_by = ?", f.CreatedBy)
	}
	if f.AssignedTo != "" {
		q = q.Where("assigned_to = ?", f.AssignedTo)
	}
	return q
}

func preloadHistory(q *gorm.DB) *gorm.DB {
	return q.Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
		return db.Order("changed_at ASC, id ASC")
	})
}

// CreateReport inserts r together with any StatusHistory rows it carries.
func CreateReport(ctx context.Context, db *gorm.DB, r *domain.Report) error {
	if r.Version == 0 {
		r.Version = 1
	}
	return db.WithContext(ctx).Create(r).Error
}

// GetReport fetches a report by id with its history ordered oldest first.
func GetReport(ctx context.Context, db *gorm.DB, id string) (*domain.Report, error) {
	var r domain.Report
	if err := preloadHistory(db.WithContext(ctx)).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CountReports returns the number of reports matching f.
func CountReports(ctx context.Context, db *gorm.DB, f ReportFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Report{})).Count(&total).Error
	return total, err
}

// ListReports returns all reports matching f, newest first.
func ListReports(ctx context.Context, db *gorm.DB, f ReportFilter) ([]domain.Report, error) {
	var out []domain.Report
	err := preloadHistory(f.apply(db.WithContext(ctx))).
		Order("created_at DESC, id ASC").
		Find(&out).Error
	return out, err
}

// ListReportsPage returns a page of reports matching f, newest first.
func ListReportsPage(ctx context.Context, db *gorm.DB, f ReportFilter, offset, limit int) ([]domain.Report, error) {
	var out []domain.Report
	err := preloadHistory(f.apply(db.WithContext(ctx))).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateReportFields patches the given columns of report id and bumps its
// version. It returns ErrNotFound when no row matched.
func UpdateReportFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	patch := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch["version"] = gorm.Expr("version + 1")
	res := db.WithContext(ctx).Model(&domain.Report{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendStatusHistory inserts one history entry. Entries are never updated.
func AppendStatusHistory(ctx context.Context, db *gorm.DB, h *domain.ReportStatusHistory) error {
	return db.WithContext(ctx).Create(h).Error
}

// SwapReportLock sets the lock owner of report id to owner (empty clears it)
// only if the current owner still equals expected. It is a compare-and-swap:
// the boolean result is false when another writer changed the lock first.
// The report version is not touched, so a lock never invalidates an If-Match
// taken before it.
func SwapReportLock(ctx context.Context, db *gorm.DB, id, expected, owner string, at *time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Report{}).
		Where("id = ? AND locked_by = ?", id, expected).
		Updates(map[string]any{
			"locked_by": owner,
			"locked_at": at,
			"lock_seq":  gorm.Expr("lock_seq + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteReport removes report id and its history. Notifications and chat
// messages that mention the report are kept. Deleting an absent id is a no-op.
func DeleteReport(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", id).Delete(&domain.ReportStatusHistory{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Report{}).Error
	})
}
