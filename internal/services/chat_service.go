// Package services – ChatService
//
// ChatService stores chat messages and applies the routing rules:
//
//   - A staff message without a recipient is broadcast: one copy per admin
//     and master, each on its own staff-{staff}-{admin} channel, and each
//     recipient gets a notification.
//   - A message with a recipient keeps an explicit channel (replies into a
//     staff thread) or derives the sorted direct channel. The recipient is
//     notified unless the explicit channel is a staff thread; setting
//     NotifyStaffReplies also notifies staff of admin replies.
//
// Messages and their notifications are written in one transaction.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
)

// chatPreviewRunes caps the message excerpt quoted in chat notifications.
const chatPreviewRunes = 50

// NewChatMessage is the input of ChatService.Send.
type NewChatMessage struct {
	RecipientID string
	Message     string
	Type        string
	FileName    string
	ChatChannel string
}

// StaffConversation is one staff user's thread with an admin.
type StaffConversation struct {
	StaffUser   domain.User          `json:"staff_user"`
	Messages    []domain.ChatMessage `json:"messages"`
	LastMessage domain.ChatMessage   `json:"last_message"`
	UnreadCount int                  `json:"unread_count"`
}

// ChatService provides chat operations.
type ChatService struct {
	DB    *gorm.DB
	Texts *Texts

	// NotifyStaffReplies makes admin/master replies into a staff thread
	// notify the staff user.
	NotifyStaffReplies bool

	Now   func() time.Time
	NewID func() string
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, texts *Texts, notifyStaffReplies bool) *ChatService {
	return &ChatService{DB: db, Texts: texts, NotifyStaffReplies: notifyStaffReplies}
}

// Messages returns the full message log across every channel.
func (s *ChatService) Messages(ctx context.Context) ([]domain.ChatMessage, error) {
	return repo.ListChatMessages(ctx, s.DB)
}

// Get returns message id or ErrMessageNotFound.
func (s *ChatService) Get(ctx context.Context, id string) (*domain.ChatMessage, error) {
	m, err := repo.GetChatMessage(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

// Batch returns message id together with every other copy stored by the
// same send, so a staff broadcast comes back whole. Messages stored without a
// batch come back alone.
func (s *ChatService) Batch(ctx context.Context, id string) ([]domain.ChatMessage, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.BatchID == "" {
		return []domain.ChatMessage{*m}, nil
	}
	return repo.ListChatBatch(ctx, s.DB, m.BatchID)
}

// Channel returns the messages of one channel.
func (s *ChatService) Channel(ctx context.Context, channel string) ([]domain.ChatMessage, error) {
	return repo.ListChannelMessages(ctx, s.DB, channel)
}

// Send stores a message from actor and returns the stored copies (several
// for a staff broadcast, otherwise one).
func (s *ChatService) Send(ctx context.Context, actor *domain.User, in NewChatMessage) ([]domain.ChatMessage, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("user.id", actor.ID),
			attribute.String("user.role", string(actor.Role)),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if in.ChatChannel != "" && !channelJoins(in.ChatChannel, actor.ID, in.RecipientID) {
		return nil, ErrInvalidChannel
	}

	now := nowFrom(s.Now)
	base := domain.ChatMessage{
		SenderID:    actor.ID,
		SenderName:  actor.Name,
		RecipientID: in.RecipientID,
		Message:     in.Message,
		Timestamp:   now,
		Type:        in.Type,
		FileName:    in.FileName,
	}
	if base.Type == "" {
		base.Type = "text"
	}

	var (
		out   []domain.ChatMessage
		ns    []domain.Notification
		route string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch {
		case actor.Role == domain.RoleStaff && in.RecipientID == "":
			route = "staff_broadcast"
			triage, err := repo.ListUsers(ctx, tx, domain.RoleAdmin, domain.RoleMaster)
			if err != nil {
				return err
			}
			for _, u := range triage {
				m := base
				m.ID = "message-" + idFrom(s.NewID)
				m.RecipientID = u.ID
				m.ChatChannel = domain.StaffChannel(actor.ID, u.ID)
				out = append(out, m)
				ns = append(ns, s.chatNotification(actor, u.ID, u.Role, in.Message, now))
			}

		case in.RecipientID != "":
			route = "direct"
			m := base
			m.ID = "message-" + idFrom(s.NewID)
			m.ChatChannel = in.ChatChannel
			if m.ChatChannel == "" {
				m.ChatChannel = domain.DirectChannel(actor.ID, in.RecipientID)
			}
			out = append(out, m)

			staffThread := in.ChatChannel != "" && domain.IsStaffThread(in.ChatChannel, actor.ID, in.RecipientID)
			if !staffThread || (s.NotifyStaffReplies && actor.Role.Privileged()) {
				var role domain.Role
				if u, err := repo.GetUser(ctx, tx, in.RecipientID); err == nil {
					role = u.Role
				}
				ns = append(ns, s.chatNotification(actor, in.RecipientID, role, in.Message, now))
			}

		default:
			route = "unrouted"
			m := base
			m.ID = "message-" + idFrom(s.NewID)
			out = append(out, m)
		}

		for i := range out {
			out[i].BatchID = out[0].ID
		}
		if err := repo.CreateChatMessages(ctx, tx, out); err != nil {
			return err
		}
		return repo.CreateNotifications(ctx, tx, ns)
	})
	if err != nil {
		return nil, err
	}

	chatMessagesSent.WithLabelValues(route).Add(float64(len(out)))
	notificationsCreated.WithLabelValues("chat").Add(float64(len(ns)))
	zerolog.Ctx(ctx).Debug().
		Str("sender_id", actor.ID).
		Str("route", route).
		Int("copies", len(out)).
		Int("notified", len(ns)).
		Msg("chat message stored")
	if out == nil {
		out = []domain.ChatMessage{}
	}
	return out, nil
}

func (s *ChatService) chatNotification(actor *domain.User, userID string, role domain.Role, msg string, now time.Time) domain.Notification {
	url := "/chat"
	if role != "" {
		url = "/" + string(role) + "/chat"
	}
	return domain.Notification{
		ID:        idFrom(s.NewID),
		Title:     s.Texts.sprintf(msgChatTitle),
		Message:   s.Texts.sprintf(msgChatBody, actor.Name, preview(msg, chatPreviewRunes)),
		Type:      domain.NotificationInfo,
		UserID:    userID,
		CreatedAt: now,
		ActionURL: url,
	}
}

// preview truncates msg to n runes, appending an ellipsis when cut.
func preview(msg string, n int) string {
	if utf8.RuneCountInString(msg) <= n {
		return msg
	}
	return string([]rune(msg)[:n]) + "..."
}

// channelJoins reports whether channel is one that sender and recipient can
// share: either direction of a staff thread, or their direct channel.
func channelJoins(channel, sender, recipient string) bool {
	if recipient == "" {
		return false
	}
	return channel == domain.StaffChannel(sender, recipient) ||
		channel == domain.StaffChannel(recipient, sender) ||
		channel == domain.DirectChannel(sender, recipient)
}

// StaffConversations returns, for every staff user who has written to
// adminID, the thread between them. Staff users without messages are
// omitted.
func (s *ChatService) StaffConversations(ctx context.Context, adminID string) ([]StaffConversation, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "StaffConversations",
		trace.WithAttributes(attribute.String("user.id", adminID)))
	defer span.End()

	staff, err := repo.ListUsers(ctx, s.DB, domain.RoleStaff)
	if err != nil {
		return nil, err
	}
	out := make([]StaffConversation, 0, len(staff))
	for _, u := range staff {
		msgs, err := repo.ListChannelMessages(ctx, s.DB, domain.StaffChannel(u.ID, adminID))
		if err != nil {
			return nil, err
		}
		if len(msgs) == 0 {
			continue
		}
		conv := StaffConversation{StaffUser: u, Messages: msgs}
		for _, m := range msgs {
			if !m.Timestamp.Before(conv.LastMessage.Timestamp) {
				conv.LastMessage = m
			}
			if m.SenderID == u.ID && !m.Read {
				conv.UnreadCount++
			}
		}
		out = append(out, conv)
	}
	return out, nil
}

// StaffOwnConversations returns every message on staffID's threads, across
// all admins and masters.
func (s *ChatService) StaffOwnConversations(ctx context.Context, staffID string) ([]domain.ChatMessage, error) {
	return repo.ListChannelMessagesByPrefix(ctx, s.DB, domain.StaffChannelPrefix(staffID))
}

// MarkRead marks the other party's messages on channel as read for userID.
func (s *ChatService) MarkRead(ctx context.Context, channel, userID string) (int64, error) {
	return repo.MarkChannelRead(ctx, s.DB, channel, userID)
}

// CanAccess reports whether actor may read or mark channel. Admins and
// masters monitor every thread; staff only reach their own support threads
// and direct channels. The other party of a key must be a known user or have
// taken part in the channel.
func (s *ChatService) CanAccess(ctx context.Context, actor *domain.User, channel string) (bool, error) {
	if actor.Role.Privileged() {
		return true, nil
	}
	for _, peer := range domain.ChannelPeers(channel, actor.ID) {
		_, err := repo.GetUser(ctx, s.DB, peer)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return false, err
		}
		seen, err := repo.ChannelHasParticipant(ctx, s.DB, channel, peer)
		if err != nil {
			return false, err
		}
		if seen {
			return true, nil
		}
	}
	return false, nil
}
