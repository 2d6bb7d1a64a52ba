package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

func TestNotificationService_Lifecycle(t *testing.T) {
	db := newServiceDB(t)
	clk := &fakeClock{now: t0}
	s := NewNotificationService(db)
	s.Now = clk.Now
	s.NewID = seqIDs("n")
	ctx := context.Background()

	if _, err := s.Add(ctx, NewNotification{UserID: "staff-1", Title: "x", Type: "loud"}); !errors.Is(err, ErrInvalidNotificationType) {
		t.Fatalf("invalid type err=%v", err)
	}
	first, err := s.Add(ctx, NewNotification{UserID: "staff-1", Title: " Hai ", Message: "m1"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.Type != domain.NotificationInfo || first.Title != "Hai" || first.Read {
		t.Fatalf("defaults not applied: %#v", first)
	}
	clk.Advance(time.Second)
	if _, err := s.Add(ctx, NewNotification{UserID: "staff-1", Title: "b", Type: domain.NotificationWarning}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.Add(ctx, NewNotification{UserID: "admin-1", Title: "c"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	list, err := s.List(ctx, "staff-1")
	if err != nil || len(list) != 2 || list[0].ID != first.ID {
		t.Fatalf("list=%v err=%v", list, err)
	}
	if n, _ := s.UnreadCount(ctx, "staff-1"); n != 2 {
		t.Fatalf("unread=%d", n)
	}

	if err := s.MarkRead(ctx, first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := s.MarkRead(ctx, "missing"); err != nil {
		t.Fatalf("mark read absent should be no-op: %v", err)
	}
	if n, _ := s.UnreadCount(ctx, "staff-1"); n != 1 {
		t.Fatalf("unread after mark=%d", n)
	}
	if n, err := s.MarkAllRead(ctx, "staff-1"); err != nil || n != 1 {
		t.Fatalf("mark all n=%d err=%v", n, err)
	}
	total, unread, _ := s.Stats(ctx, "staff-1")
	if total != 2 || unread != 0 {
		t.Fatalf("stats total=%d unread=%d", total, unread)
	}

	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete absent should be no-op: %v", err)
	}
	if _, err := s.Get(ctx, first.ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("get deleted err=%v", err)
	}
	if n, _ := s.UnreadCount(ctx, "admin-1"); n != 1 {
		t.Fatalf("other inbox touched")
	}
}
