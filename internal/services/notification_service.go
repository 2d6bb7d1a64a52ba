// Package services – NotificationService
//
// NotificationService is a per-user inbox. Reports and chat write to it as
// a side effect inside their own transactions; this service covers direct
// additions and the recipient-facing operations. Mark-read and delete on an
// absent id are no-ops.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
)

// NewNotification is the input of NotificationService.Add.
type NewNotification struct {
	UserID    string
	Title     string
	Message   string
	Type      domain.NotificationType
	ActionURL string
}

// NotificationService provides notification operations.
type NotificationService struct {
	DB *gorm.DB

	Now   func() time.Time
	NewID func() string
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// Add stores a notification for in.UserID. An empty type defaults to info.
func (s *NotificationService) Add(ctx context.Context, in NewNotification) (*domain.Notification, error) {
	typ := in.Type
	if typ == "" {
		typ = domain.NotificationInfo
	}
	if !typ.Valid() {
		return nil, ErrInvalidNotificationType
	}
	n := domain.Notification{
		ID:        idFrom(s.NewID),
		Title:     strings.TrimSpace(in.Title),
		Message:   in.Message,
		Type:      typ,
		UserID:    in.UserID,
		CreatedAt: nowFrom(s.Now),
		ActionURL: in.ActionURL,
	}
	if err := repo.CreateNotifications(ctx, s.DB, []domain.Notification{n}); err != nil {
		return nil, err
	}
	notificationsCreated.WithLabelValues("manual").Inc()
	return &n, nil
}

// Get returns notification id or ErrNotificationNotFound.
func (s *NotificationService) Get(ctx context.Context, id string) (*domain.Notification, error) {
	n, err := repo.GetNotification(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return n, nil
}

// List returns userID's notifications in insertion order.
func (s *NotificationService) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	return repo.ListNotifications(ctx, s.DB, userID)
}

// UnreadCount returns how many of userID's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	_, unread, err := repo.NotificationsStats(ctx, s.DB, userID)
	return unread, err
}

// Stats returns the total and unread counts for userID.
func (s *NotificationService) Stats(ctx context.Context, userID string) (int64, int64, error) {
	return repo.NotificationsStats(ctx, s.DB, userID)
}

// MarkRead flags notification id as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	return repo.MarkNotificationRead(ctx, s.DB, id)
}

// MarkAllRead flags every notification of userID as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return repo.MarkAllNotificationsRead(ctx, s.DB, userID)
}

// Delete removes notification id.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	return repo.DeleteNotification(ctx, s.DB, id)
}
