package handlers

import (
	"context"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/http/middleware"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// AuthService issues and revokes sessions.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
}

// UserService manages the roster.
type UserService interface {
	List(ctx context.Context, roles ...domain.Role) ([]domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Add(ctx context.Context, in services.NewUser) (*domain.User, error)
	UpdateSelf(ctx context.Context, actorID string, p services.UserPatch) (*domain.User, error)
	UpdateByID(ctx context.Context, id string, p services.UserPatch) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

// ReportService manages reports and their advisory locks.
type ReportService interface {
	Get(ctx context.Context, id string) (*domain.Report, error)
	ListPage(ctx context.Context, f repo.ReportFilter, page, pageSize int) ([]domain.Report, int64, error)
	// Stats returns the count and version sum of matching reports; it backs
	// the list ETag.
	Stats(ctx context.Context, f repo.ReportFilter) (int64, int64, error)
	Add(ctx context.Context, actor *domain.User, in services.NewReport) (*domain.Report, error)
	Update(ctx context.Context, actor *domain.User, id string, p services.ReportPatch) (*domain.Report, error)
	Delete(ctx context.Context, id string) error
	Lock(ctx context.Context, reportID, userID string) (bool, error)
	Unlock(ctx context.Context, reportID, userID string) (bool, error)
	LockInfo(ctx context.Context, reportID string) (*services.LockInfo, error)
}

// NotificationService manages per-user notifications.
type NotificationService interface {
	Add(ctx context.Context, in services.NewNotification) (*domain.Notification, error)
	Get(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

// FAQService manages the knowledge base.
type FAQService interface {
	Active(ctx context.Context) ([]domain.FAQ, error)
	All(ctx context.Context) ([]domain.FAQ, error)
	Get(ctx context.Context, id string) (*domain.FAQ, error)
	Add(ctx context.Context, actorID string, in services.NewFAQ) (*domain.FAQ, error)
	Update(ctx context.Context, id string, p services.FAQPatch) (*domain.FAQ, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, k int) ([]services.SearchHit, error)
	HTML(ctx context.Context, id string) (string, error)
}

// ChatService routes and reads chat messages.
type ChatService interface {
	Messages(ctx context.Context) ([]domain.ChatMessage, error)
	Get(ctx context.Context, id string) (*domain.ChatMessage, error)
	Batch(ctx context.Context, id string) ([]domain.ChatMessage, error)
	Channel(ctx context.Context, channel string) ([]domain.ChatMessage, error)
	Send(ctx context.Context, actor *domain.User, in services.NewChatMessage) ([]domain.ChatMessage, error)
	StaffConversations(ctx context.Context, adminID string) ([]services.StaffConversation, error)
	StaffOwnConversations(ctx context.Context, staffID string) ([]domain.ChatMessage, error)
	MarkRead(ctx context.Context, channel, userID string) (int64, error)
	CanAccess(ctx context.Context, actor *domain.User, channel string) (bool, error)
}

// IdempotencyStore records the resource a keyed create produced.
type IdempotencyStore interface {
	Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error
}

//
// Handler wiring
//

// Deps lists the collaborators of Handlers. Idempotency may be nil, in which
// case Idempotency-Key headers are validated but nothing is recorded.
type Deps struct {
	Auth          AuthService
	Users         UserService
	Reports       ReportService
	Notifications NotificationService
	FAQs          FAQService
	Chat          ChatService
	Policy        middleware.Policy
	Idempotency   IdempotencyStore
}

// Handlers groups the helpdesk HTTP endpoints. It depends on service
// interfaces to keep transport concerns apart from business rules.
type Handlers struct {
	auth    AuthService
	users   UserService
	reports ReportService
	notifs  NotificationService
	faqs    FAQService
	chat    ChatService
	policy  middleware.Policy
	idem    IdempotencyStore
}

// New constructs Handlers bound to the given services and registers the
// custom binding validators.
func New(d Deps) *Handlers {
	RegisterValidators()
	return &Handlers{
		auth:    d.Auth,
		users:   d.Users,
		reports: d.Reports,
		notifs:  d.Notifications,
		faqs:    d.FAQs,
		chat:    d.Chat,
		policy:  d.Policy,
		idem:    d.Idempotency,
	}
}

// can reports whether role may perform act on obj. Policy errors deny.
func (h *Handlers) can(role domain.Role, obj, act string) bool {
	if h.policy == nil {
		return false
	}
	ok, err := h.policy.Enforce(string(role), obj, act)
	return err == nil && ok
}
