package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
)

type reportFixture struct {
	svc   *ReportService
	clk   *fakeClock
	users map[string]*domain.User
}

func newReports(t *testing.T) *reportFixture {
	t.Helper()
	db := newServiceDB(t)
	users := seedRoster(t, db)
	clk := &fakeClock{now: t0}
	s := NewReportService(db, NewTexts("id"), 0)
	s.Now = clk.Now
	s.NewID = seqIDs("r")
	return &reportFixture{svc: s, clk: clk, users: users}
}

func (f *reportFixture) add(t *testing.T, by string) *domain.Report {
	t.Helper()
	r, err := f.svc.Add(context.Background(), f.users[by], NewReport{
		Title:       "Printer Tidak Berfungsi",
		Description: "Printer di lantai 2 tidak bisa mencetak",
		Priority:    "medium",
		Category:    "Hardware",
		Attachments: []domain.Attachment{{ID: "att-1", Name: "printer.jpg", Type: "image", Size: 1024}},
	})
	if err != nil {
		t.Fatalf("add report: %v", err)
	}
	return r
}

func TestReportAdd_StaffFansOutToTriage(t *testing.T) {
	f := newReports(t)
	r := f.add(t, "staff-1")

	if r.Status != domain.StatusPending || r.CreatedBy != "staff-1" || !r.CreatedAt.Equal(t0) {
		t.Fatalf("unexpected report: %#v", r)
	}
	if len(r.StatusHistory) != 1 || r.StatusHistory[0].Note != "Laporan dibuat" {
		t.Fatalf("initial history: %#v", r.StatusHistory)
	}

	for _, id := range []string{"admin-1", "master-1"} {
		ns := notificationsFor(t, f.svc.DB, id)
		if len(ns) != 1 {
			t.Fatalf("%s got %d notifications", id, len(ns))
		}
		n := ns[0]
		role := string(f.users[id].Role)
		if n.Title != "Laporan Baru Masuk" || n.ActionURL != "/"+role+"/reports/"+r.ID || n.Type != domain.NotificationInfo {
			t.Fatalf("bad notification for %s: %#v", id, n)
		}
		if n.Message != `Staff User telah membuat laporan baru: "Printer Tidak Berfungsi"` {
			t.Fatalf("message=%q", n.Message)
		}
	}
	if ns := notificationsFor(t, f.svc.DB, "staff-2"); len(ns) != 0 {
		t.Fatalf("staff should not be notified")
	}

	got, err := f.svc.Get(context.Background(), r.ID)
	if err != nil || len(got.Attachments) != 1 || got.Attachments[0].Name != "printer.jpg" {
		t.Fatalf("get: %#v err=%v", got, err)
	}
}

func TestReportAdd_AdminDoesNotFanOut(t *testing.T) {
	f := newReports(t)
	f.add(t, "admin-1")
	if ns := notificationsFor(t, f.svc.DB, "master-1"); len(ns) != 0 {
		t.Fatalf("admin-created report should not notify")
	}
}

func TestReportUpdate_StatusNotifiesCreatorOnce(t *testing.T) {
	cases := []struct {
		status domain.ReportStatus
		label  string
		typ    domain.NotificationType
	}{
		{domain.StatusCompleted, "Selesai", domain.NotificationSuccess},
		{domain.StatusRejected, "Ditolak", domain.NotificationError},
		{domain.StatusInProgress, "Sedang Dikerjakan", domain.NotificationInfo},
		{domain.StatusOnHold, "Ditahan", domain.NotificationInfo},
		{domain.StatusPending, "Pending", domain.NotificationInfo},
	}
	for _, c := range cases {
		t.Run(string(c.status), func(t *testing.T) {
			f := newReports(t)
			r := f.add(t, "staff-1")
			f.clk.Advance(time.Minute)

			got, err := f.svc.Update(context.Background(), f.users["admin-1"], r.ID, ReportPatch{Status: ptr(c.status)})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if got.Status != c.status || got.UpdatedAt == nil || !got.UpdatedAt.Equal(t0.Add(time.Minute)) {
				t.Fatalf("bad report after update: %#v", got)
			}
			ns := notificationsFor(t, f.svc.DB, "staff-1")
			if len(ns) != 1 {
				t.Fatalf("creator got %d notifications", len(ns))
			}
			want := `Status laporan "Printer Tidak Berfungsi" telah diubah menjadi ` + c.label
			if ns[0].Message != want || ns[0].Type != c.typ || ns[0].ActionURL != "/staff/reports/"+r.ID {
				t.Fatalf("notification=%#v", ns[0])
			}
		})
	}
}

func TestReportUpdate_NoNotificationCases(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	staffReport := f.add(t, "staff-1")
	adminReport := f.add(t, "admin-1")

	// staff changes status
	if _, err := f.svc.Update(ctx, f.users["staff-1"], staffReport.ID, ReportPatch{Status: ptr(domain.StatusOnHold)}); err != nil {
		t.Fatalf("staff update: %v", err)
	}
	// admin changes own report
	if _, err := f.svc.Update(ctx, f.users["admin-1"], adminReport.ID, ReportPatch{Status: ptr(domain.StatusCompleted)}); err != nil {
		t.Fatalf("admin own update: %v", err)
	}
	// non-status update
	if _, err := f.svc.Update(ctx, f.users["master-1"], staffReport.ID, ReportPatch{Title: ptr("Printer rusak")}); err != nil {
		t.Fatalf("title update: %v", err)
	}
	if ns := notificationsFor(t, f.svc.DB, "staff-1"); len(ns) != 0 {
		t.Fatalf("staff-1 got %d notifications", len(ns))
	}
	if ns := notificationsFor(t, f.svc.DB, "admin-1"); len(ns) != 1 {
		// only the fan-out for the staff report
		t.Fatalf("admin-1 got %d notifications", len(ns))
	}
}

func TestReportUpdate_HistoryAndMergePatch(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	r := f.add(t, "staff-1")

	f.clk.Advance(time.Minute)
	if _, err := f.svc.Update(ctx, f.users["admin-1"], r.ID, ReportPatch{Status: ptr(domain.StatusInProgress), AssignedTo: ptr("admin-1")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.clk.Advance(time.Minute)
	got, err := f.svc.Update(ctx, f.users["admin-1"], r.ID, ReportPatch{Status: ptr(domain.StatusCompleted), StatusNote: ptr("  Toner diganti  ")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if got.AssignedTo != "admin-1" || got.Category != "Hardware" || len(got.Attachments) != 1 {
		t.Fatalf("merge-patch lost fields: %#v", got)
	}
	h := got.StatusHistory
	if len(h) != 3 {
		t.Fatalf("history len=%d", len(h))
	}
	if h[1].Status != domain.StatusInProgress || h[1].Note != "Laporan sedang dikerjakan" || h[1].ChangedBy != "admin-1" {
		t.Fatalf("h[1]=%#v", h[1])
	}
	if h[2].Status != domain.StatusCompleted || h[2].Note != "Toner diganti" || !h[2].ChangedAt.Equal(t0.Add(2*time.Minute)) {
		t.Fatalf("h[2]=%#v", h[2])
	}
	if h[len(h)-1].Status != got.Status {
		t.Fatalf("last history entry must match status")
	}
}

func TestReportUpdate_Errors(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	r := f.add(t, "staff-1")

	if _, err := f.svc.Update(ctx, f.users["admin-1"], r.ID, ReportPatch{Status: ptr(domain.ReportStatus("done"))}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("invalid status err=%v", err)
	}
	if _, err := f.svc.Update(ctx, f.users["admin-1"], "nope", ReportPatch{Title: ptr("x")}); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("missing err=%v", err)
	}
	stale := r.Version
	if _, err := f.svc.Update(ctx, f.users["admin-1"], r.ID, ReportPatch{Title: ptr("x"), ExpectedVersion: &stale}); err != nil {
		t.Fatalf("matching version: %v", err)
	}
	if _, err := f.svc.Update(ctx, f.users["admin-1"], r.ID, ReportPatch{Title: ptr("y"), ExpectedVersion: &stale}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale version err=%v", err)
	}
}

func TestReportDelete_KeepsNotifications(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	r := f.add(t, "staff-1")
	if err := f.svc.Delete(ctx, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.Delete(ctx, r.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, r.ID); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("get deleted err=%v", err)
	}
	if ns := notificationsFor(t, f.svc.DB, "admin-1"); len(ns) != 1 {
		t.Fatalf("fan-out notification should survive delete")
	}
}

func TestReportList_FilterAndPage(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.add(t, "staff-1")
		f.clk.Advance(time.Second)
	}
	f.add(t, "staff-2")

	own, err := f.svc.List(ctx, repo.ReportFilter{CreatedBy: "staff-1"})
	if err != nil || len(own) != 3 {
		t.Fatalf("own=%d err=%v", len(own), err)
	}
	page, total, err := f.svc.ListPage(ctx, repo.ReportFilter{}, 2, 3)
	if err != nil || total != 4 || len(page) != 1 {
		t.Fatalf("page len=%d total=%d err=%v", len(page), total, err)
	}
	empty, total, err := f.svc.ListPage(ctx, repo.ReportFilter{Status: domain.StatusRejected}, 0, 0)
	if err != nil || total != 0 || len(empty) != 0 {
		t.Fatalf("empty page=%v total=%d err=%v", empty, total, err)
	}
}

func TestLock_RoundTrip(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	id := f.add(t, "staff-1").ID

	mustLock := func(user string, want bool) {
		t.Helper()
		ok, err := f.svc.Lock(ctx, id, user)
		if err != nil || ok != want {
			t.Fatalf("Lock(%s)=%v err=%v want %v", user, ok, err, want)
		}
	}
	mustUnlock := func(user string, want bool) {
		t.Helper()
		ok, err := f.svc.Unlock(ctx, id, user)
		if err != nil || ok != want {
			t.Fatalf("Unlock(%s)=%v err=%v want %v", user, ok, err, want)
		}
	}

	mustLock("u1", true)
	mustLock("u2", false)
	mustUnlock("u2", false)
	mustUnlock("u1", true)
	mustUnlock("u1", true) // already unlocked
	mustLock("u2", true)

	info, err := f.svc.LockInfo(ctx, id)
	if err != nil || info == nil || info.LockedBy != "u2" || !info.ExpiresAt.Equal(t0.Add(DefaultLockTTL)) {
		t.Fatalf("LockInfo=%#v err=%v", info, err)
	}
}

func TestLock_SameOwnerRelockRestamps(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	id := f.add(t, "staff-1").ID

	if ok, _ := f.svc.Lock(ctx, id, "u1"); !ok {
		t.Fatalf("first lock failed")
	}
	f.clk.Advance(20 * time.Minute)
	if ok, _ := f.svc.Lock(ctx, id, "u1"); !ok {
		t.Fatalf("re-lock failed")
	}
	f.clk.Advance(20 * time.Minute)
	if locked, _ := f.svc.IsLocked(ctx, id); !locked {
		t.Fatalf("re-stamped lock should still be live 40m after first lock")
	}
}

func TestLock_LazyExpiry(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	id := f.add(t, "staff-1").ID

	if ok, _ := f.svc.Lock(ctx, id, "u1"); !ok {
		t.Fatalf("lock failed")
	}
	f.clk.Advance(29 * time.Minute)
	if locked, _ := f.svc.IsLocked(ctx, id); !locked {
		t.Fatalf("lock should be live before the TTL")
	}

	f.clk.Advance(time.Minute)
	// Readers hide the stale lock without writing.
	r, err := f.svc.Get(ctx, id)
	if err != nil || r.LockedBy != "" {
		t.Fatalf("Get should hide expired lock: %#v err=%v", r, err)
	}
	stored, _ := repo.GetReport(ctx, f.svc.DB, id)
	if stored.LockedBy != "u1" {
		t.Fatalf("Get must not clear the stored lock")
	}

	locked, err := f.svc.IsLocked(ctx, id)
	if err != nil || locked {
		t.Fatalf("IsLocked=%v err=%v after TTL", locked, err)
	}
	stored, _ = repo.GetReport(ctx, f.svc.DB, id)
	if stored.LockedBy != "" || stored.LockedAt != nil {
		t.Fatalf("IsLocked should clear the expired lock: %#v", stored)
	}
	if info, _ := f.svc.LockInfo(ctx, id); info != nil {
		t.Fatalf("LockInfo should be nil, got %#v", info)
	}
	if ok, _ := f.svc.Lock(ctx, id, "u2"); !ok {
		t.Fatalf("lock after expiry should succeed")
	}
}

func TestLock_ExpiredLockCanBeTakenWithoutRead(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	id := f.add(t, "staff-1").ID

	if ok, _ := f.svc.Lock(ctx, id, "u1"); !ok {
		t.Fatalf("lock failed")
	}
	f.clk.Advance(31 * time.Minute)
	if ok, _ := f.svc.Lock(ctx, id, "u2"); !ok {
		t.Fatalf("expired lock should not block")
	}
	info, _ := f.svc.LockInfo(ctx, id)
	if info == nil || info.LockedBy != "u2" {
		t.Fatalf("info=%#v", info)
	}
}

func TestLock_MissingReport(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	if ok, err := f.svc.Lock(ctx, "nope", "u1"); ok || err != nil {
		t.Fatalf("Lock missing=%v err=%v", ok, err)
	}
	if ok, err := f.svc.Unlock(ctx, "nope", "u1"); ok || err != nil {
		t.Fatalf("Unlock missing=%v err=%v", ok, err)
	}
	if locked, err := f.svc.IsLocked(ctx, "nope"); locked || err != nil {
		t.Fatalf("IsLocked missing=%v err=%v", locked, err)
	}
}

func TestLock_DoesNotBlockUpdates(t *testing.T) {
	f := newReports(t)
	ctx := context.Background()
	r := f.add(t, "staff-1")
	if ok, _ := f.svc.Lock(ctx, r.ID, "admin-1"); !ok {
		t.Fatalf("lock failed")
	}
	got, err := f.svc.Update(ctx, f.users["master-1"], r.ID, ReportPatch{Description: ptr("updated")})
	if err != nil || !strings.Contains(got.Description, "updated") {
		t.Fatalf("advisory lock must not block: %v", err)
	}
	if got.LockedBy != "admin-1" {
		t.Fatalf("update must keep the lock, got %q", got.LockedBy)
	}
}
