// Package services – ReportService
//
// ReportService owns the report lifecycle: creation with fan-out to the
// triage team, merge-patch updates with status history and creator
// notifications, deletion, and the advisory edit lock.
//
// Lock expiry is lazy. A lock whose age reaches LockTTL is treated as absent
// by every reader, and IsLocked/LockInfo clear it from storage when they
// observe it. Lock changes are compare-and-swap updates so two editors racing
// for the same report cannot both win.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
)

// DefaultLockTTL is the age at which an advisory lock expires.
const DefaultLockTTL = 30 * time.Minute

// lockSwapAttempts bounds the compare-and-swap retries of one lock call.
const lockSwapAttempts = 3

// NewReport is the input of ReportService.Add.
type NewReport struct {
	ID           string
	Title        string
	Description  string
	Status       domain.ReportStatus
	AssignedTo   string
	Priority     string
	Urgency      string
	Category     string
	ReporterName string
	PhoneNumber  string
	ProblemType  string
	Attachments  []domain.Attachment
}

// ReportPatch is a partial update; nil fields are left untouched.
// Attachments, when set, replace the whole list. Status history cannot be
// patched: a Status change appends one entry carrying StatusNote (or a
// default note).
type ReportPatch struct {
	Title        *string
	Description  *string
	Status       *domain.ReportStatus
	StatusNote   *string
	AssignedTo   *string
	Priority     *string
	Urgency      *string
	Category     *string
	ReporterName *string
	PhoneNumber  *string
	ProblemType  *string
	Attachments  *[]domain.Attachment

	// ExpectedVersion, when set, must equal the stored version or the
	// update fails with ErrVersionConflict.
	ExpectedVersion *int64
}

// LockInfo describes a live lock.
type LockInfo struct {
	LockedBy  string    `json:"locked_by"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReportService provides report operations.
type ReportService struct {
	DB      *gorm.DB
	Texts   *Texts
	LockTTL time.Duration

	Now   func() time.Time
	NewID func() string
}

// NewReportService constructs a ReportService. A non-positive lockTTL
// defaults to DefaultLockTTL.
func NewReportService(db *gorm.DB, texts *Texts, lockTTL time.Duration) *ReportService {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &ReportService{DB: db, Texts: texts, LockTTL: lockTTL}
}

func (s *ReportService) ttl() time.Duration {
	if s.LockTTL <= 0 {
		return DefaultLockTTL
	}
	return s.LockTTL
}

// expired reports whether r's lock has lapsed at now. A lock without a
// timestamp (possible in imported data) never blocks anyone.
func (s *ReportService) expired(r *domain.Report, now time.Time) bool {
	if r.LockedAt == nil {
		return true
	}
	return now.Sub(*r.LockedAt) >= s.ttl()
}

// hideStaleLock blanks an expired lock in a value about to be returned.
func (s *ReportService) hideStaleLock(r *domain.Report, now time.Time) {
	if r.LockedBy != "" && s.expired(r, now) {
		r.LockedBy = ""
		r.LockedAt = nil
	}
}

// Get returns the report with the given id or ErrReportNotFound.
func (s *ReportService) Get(ctx context.Context, id string) (*domain.Report, error) {
	r, err := repo.GetReport(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	s.hideStaleLock(r, nowFrom(s.Now))
	return r, nil
}

// List returns all reports matching f, newest first.
func (s *ReportService) List(ctx context.Context, f repo.ReportFilter) ([]domain.Report, error) {
	items, err := repo.ListReports(ctx, s.DB, f)
	if err != nil {
		return nil, err
	}
	now := nowFrom(s.Now)
	for i := range items {
		s.hideStaleLock(&items[i], now)
	}
	return items, nil
}

// ListPage returns a page of reports matching f and the total match count.
func (s *ReportService) ListPage(ctx context.Context, f repo.ReportFilter, page, pageSize int) ([]domain.Report, int64, error) {
	ctx, span := otel.Tracer("services/ReportService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountReports(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Report{}, 0, nil
	}
	items, err := repo.ListReportsPage(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	now := nowFrom(s.Now)
	for i := range items {
		s.hideStaleLock(&items[i], now)
	}
	return items, total, nil
}

// Stats returns the count and version sum of reports matching f.
func (s *ReportService) Stats(ctx context.Context, f repo.ReportFilter) (int64, int64, error) {
	return repo.ReportsStats(ctx, s.DB, f)
}

// Add creates a report on behalf of actor. The report starts with one
// history entry. When actor is staff, every admin and master receives a
// notification linking to the new report, in the same transaction.
func (s *ReportService) Add(ctx context.Context, actor *domain.User, in NewReport) (*domain.Report, error) {
	ctx, span := otel.Tracer("services/ReportService").Start(ctx, "Add",
		trace.WithAttributes(
			attribute.String("user.id", actor.ID),
			attribute.String("user.role", string(actor.Role)),
		),
	)
	defer span.End()

	status := in.Status
	if status == "" {
		status = domain.StatusPending
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	now := nowFrom(s.Now)
	id := in.ID
	if id == "" {
		id = "report-" + idFrom(s.NewID)
	}
	r := &domain.Report{
		ID:           id,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Status:       status,
		CreatedBy:    actor.ID,
		AssignedTo:   in.AssignedTo,
		CreatedAt:    now,
		Priority:     in.Priority,
		Urgency:      in.Urgency,
		Category:     in.Category,
		ReporterName: in.ReporterName,
		PhoneNumber:  in.PhoneNumber,
		ProblemType:  in.ProblemType,
		Attachments:  in.Attachments,
		StatusHistory: []domain.ReportStatusHistory{{
			ID:        idFrom(s.NewID),
			Status:    status,
			ChangedBy: actor.ID,
			ChangedAt: now,
			Note:      s.Texts.sprintf(msgNoteCreated),
		}},
	}

	var fanout int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateReport(ctx, tx, r); err != nil {
			return err
		}
		if actor.Role != domain.RoleStaff {
			return nil
		}
		triage, err := repo.ListUsers(ctx, tx, domain.RoleAdmin, domain.RoleMaster)
		if err != nil {
			return err
		}
		ns := make([]domain.Notification, 0, len(triage))
		for _, u := range triage {
			ns = append(ns, domain.Notification{
				ID:        idFrom(s.NewID),
				Title:     s.Texts.sprintf(msgNewReportTitle),
				Message:   s.Texts.sprintf(msgNewReportBody, actor.Name, r.Title),
				Type:      domain.NotificationInfo,
				UserID:    u.ID,
				CreatedAt: now,
				ActionURL: "/" + string(u.Role) + "/reports/" + r.ID,
			})
		}
		fanout = len(ns)
		return repo.CreateNotifications(ctx, tx, ns)
	})
	if err != nil {
		return nil, err
	}

	reportsCreated.WithLabelValues(string(actor.Role)).Inc()
	notificationsCreated.WithLabelValues("report").Add(float64(fanout))
	zerolog.Ctx(ctx).Info().
		Str("report_id", r.ID).
		Str("created_by", actor.ID).
		Int("notified", fanout).
		Msg("report created")
	return r, nil
}

// Update applies p to report id on behalf of actor and returns the refreshed
// report. When p carries a status, one history entry is appended, and if
// actor is an admin or master other than the creator, the creator is
// notified of the new status.
func (s *ReportService) Update(ctx context.Context, actor *domain.User, id string, p ReportPatch) (*domain.Report, error) {
	ctx, span := otel.Tracer("services/ReportService").Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("report.id", id),
			attribute.String("user.id", actor.ID),
		),
	)
	defer span.End()

	if p.Status != nil && !p.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	now := nowFrom(s.Now)
	notified := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.GetReport(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrReportNotFound
			}
			return err
		}
		if p.ExpectedVersion != nil && *p.ExpectedVersion != cur.Version {
			return ErrVersionConflict
		}

		fields := reportPatchFields(p)
		fields["updated_at"] = now
		if err := repo.UpdateReportFields(ctx, tx, id, fields); err != nil {
			return err
		}
		if p.Status == nil {
			return nil
		}

		note := s.Texts.defaultNote(*p.Status)
		if p.StatusNote != nil && strings.TrimSpace(*p.StatusNote) != "" {
			note = strings.TrimSpace(*p.StatusNote)
		}
		if err := repo.AppendStatusHistory(ctx, tx, &domain.ReportStatusHistory{
			ID:        idFrom(s.NewID),
			ReportID:  id,
			Status:    *p.Status,
			ChangedBy: actor.ID,
			ChangedAt: now,
			Note:      note,
		}); err != nil {
			return err
		}

		if !actor.Role.Privileged() || actor.ID == cur.CreatedBy {
			return nil
		}
		title := cur.Title
		if p.Title != nil {
			title = strings.TrimSpace(*p.Title)
		}
		notified = true
		return repo.CreateNotifications(ctx, tx, []domain.Notification{{
			ID:        idFrom(s.NewID),
			Title:     s.Texts.sprintf(msgStatusTitle),
			Message:   s.Texts.sprintf(msgStatusBody, title, s.Texts.StatusLabel(*p.Status)),
			Type:      statusNotificationType(*p.Status),
			UserID:    cur.CreatedBy,
			CreatedAt: now,
			ActionURL: "/staff/reports/" + id,
		}})
	})
	if err != nil {
		return nil, err
	}

	if p.Status != nil {
		reportStatusChanges.WithLabelValues(string(*p.Status)).Inc()
		zerolog.Ctx(ctx).Info().
			Str("report_id", id).
			Str("status", string(*p.Status)).
			Str("changed_by", actor.ID).
			Bool("creator_notified", notified).
			Msg("report status changed")
	}
	if notified {
		notificationsCreated.WithLabelValues("status").Inc()
	}
	return s.Get(ctx, id)
}

func reportPatchFields(p ReportPatch) map[string]any {
	fields := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			fields[col] = *v
		}
	}
	if p.Title != nil {
		fields["title"] = strings.TrimSpace(*p.Title)
	}
	set("description", p.Description)
	set("assigned_to", p.AssignedTo)
	set("priority", p.Priority)
	set("urgency", p.Urgency)
	set("category", p.Category)
	set("reporter_name", p.ReporterName)
	set("phone_number", p.PhoneNumber)
	set("problem_type", p.ProblemType)
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if p.Attachments != nil {
		fields["attachments"] = domainAttachments(*p.Attachments)
	}
	return fields
}

func domainAttachments(a []domain.Attachment) datatypes.JSONSlice[domain.Attachment] {
	if a == nil {
		a = []domain.Attachment{}
	}
	return datatypes.JSONSlice[domain.Attachment](a)
}

// statusNotificationType maps a status to the severity of its notification.
func statusNotificationType(st domain.ReportStatus) domain.NotificationType {
	switch st {
	case domain.StatusCompleted:
		return domain.NotificationSuccess
	case domain.StatusRejected:
		return domain.NotificationError
	}
	return domain.NotificationInfo
}

// Delete removes report id and its history. Notifications and chat messages
// that mention it are kept. Deleting an absent id is a no-op.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	if err := repo.DeleteReport(ctx, s.DB, id); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("report_id", id).Msg("report deleted")
	return nil
}

// Lock acquires the advisory lock on reportID for userID. It succeeds when
// the report is unlocked, its lock has expired, or userID already holds it;
// a same-owner re-lock re-stamps locked_at. It returns false when another
// user holds a live lock or the report does not exist.
func (s *ReportService) Lock(ctx context.Context, reportID, userID string) (bool, error) {
	ctx, span := otel.Tracer("services/ReportService").Start(ctx, "Lock",
		trace.WithAttributes(
			attribute.String("report.id", reportID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	for i := 0; i < lockSwapAttempts; i++ {
		r, err := repo.GetReport(ctx, s.DB, reportID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				reportLockAttempts.WithLabelValues("missing").Inc()
				return false, nil
			}
			return false, err
		}
		now := nowFrom(s.Now)
		if r.LockedBy != "" && r.LockedBy != userID && !s.expired(r, now) {
			reportLockAttempts.WithLabelValues("conflict").Inc()
			span.SetAttributes(attribute.String("lock.holder", r.LockedBy))
			return false, nil
		}
		ok, err := repo.SwapReportLock(ctx, s.DB, reportID, r.LockedBy, userID, &now)
		if err != nil {
			return false, err
		}
		if ok {
			reportLockAttempts.WithLabelValues("acquired").Inc()
			return true, nil
		}
	}
	reportLockAttempts.WithLabelValues("conflict").Inc()
	return false, nil
}

// Unlock releases userID's lock on reportID. Unlocking an unlocked report
// succeeds; a live lock held by another user makes it return false. An
// expired lock counts as absent and is cleared.
func (s *ReportService) Unlock(ctx context.Context, reportID, userID string) (bool, error) {
	ctx, span := otel.Tracer("services/ReportService").Start(ctx, "Unlock",
		trace.WithAttributes(
			attribute.String("report.id", reportID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	for i := 0; i < lockSwapAttempts; i++ {
		r, err := repo.GetReport(ctx, s.DB, reportID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if r.LockedBy == "" {
			return true, nil
		}
		if r.LockedBy != userID && !s.expired(r, nowFrom(s.Now)) {
			return false, nil
		}
		ok, err := repo.SwapReportLock(ctx, s.DB, reportID, r.LockedBy, "", nil)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// IsLocked reports whether reportID holds a live lock. Observing an expired
// lock releases it, so this read may write.
func (s *ReportService) IsLocked(ctx context.Context, reportID string) (bool, error) {
	r, err := s.liveLock(ctx, reportID)
	return r != nil, err
}

// LockInfo returns the live lock on reportID, or nil when there is none.
// It shares IsLocked's expiry side effect.
func (s *ReportService) LockInfo(ctx context.Context, reportID string) (*LockInfo, error) {
	r, err := s.liveLock(ctx, reportID)
	if err != nil || r == nil {
		return nil, err
	}
	return &LockInfo{
		LockedBy:  r.LockedBy,
		LockedAt:  *r.LockedAt,
		ExpiresAt: r.LockedAt.Add(s.ttl()),
	}, nil
}

// liveLock returns the report when it carries a live lock, nil otherwise.
func (s *ReportService) liveLock(ctx context.Context, reportID string) (*domain.Report, error) {
	r, err := repo.GetReport(ctx, s.DB, reportID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if r.LockedBy == "" {
		return nil, nil
	}
	if s.expired(r, nowFrom(s.Now)) {
		if _, err := s.Unlock(ctx, reportID, r.LockedBy); err != nil {
			return nil, err
		}
		zerolog.Ctx(ctx).Debug().Str("report_id", reportID).Str("locked_by", r.LockedBy).Msg("expired lock released")
		return nil, nil
	}
	return r, nil
}
