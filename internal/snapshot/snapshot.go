// Package snapshot converts between the database and the legacy persisted
// state blob written by the browser helpdesk ({"state": {...}, "version": 0}
// with camelCase fields and ISO-8601 timestamps). It backs the import and
// export commands used to migrate saved data.
//
// Passwords: legacy blobs carry plaintext passwords, which are bcrypt-hashed
// on import. Exports never contain plaintext; they carry the bcrypt hash in
// the extra "passwordHash" field so an export can be re-imported as-is.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
)

// StorageKey is the key the blob was persisted under in the browser.
const StorageKey = "helpdesk-storage"

// Blob is the persisted document.
type Blob struct {
	State   State `json:"state"`
	Version int   `json:"version"`
}

// State mirrors the persisted store. User and IsAuthenticated are session
// fields of the browser; they are ignored on import and empty on export.
type State struct {
	User            *User          `json:"user"`
	IsAuthenticated bool           `json:"isAuthenticated"`
	AllUsers        []User         `json:"allUsers"`
	Reports         []Report       `json:"reports"`
	Notifications   []Notification `json:"notifications"`
	FAQs            []FAQ          `json:"faqs"`
	ChatMessages    []ChatMessage  `json:"chatMessages"`
}

// User is a roster entry. Exports carry PasswordHash and leave Password
// empty; imports hash a plaintext Password when no hash is given.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	Address      string     `json:"address,omitempty"`
	Avatar       string     `json:"avatar,omitempty"`
	Password     string     `json:"password"`
	PasswordHash string     `json:"passwordHash,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// Attachment is a file attached to a report.
type Attachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// StatusHistory is one entry of a report's status trail.
type StatusHistory struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
	Note      string    `json:"note,omitempty"`
}

// Report is a report with its status trail, attachments and lock.
type Report struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	CreatedBy     string          `json:"createdBy"`
	AssignedTo    string          `json:"assignedTo,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
	Priority      string          `json:"priority,omitempty"`
	Urgency       string          `json:"urgency,omitempty"`
	Category      string          `json:"category,omitempty"`
	ReporterName  string          `json:"reporterName,omitempty"`
	PhoneNumber   string          `json:"phoneNumber,omitempty"`
	ProblemType   string          `json:"problemType,omitempty"`
	StatusHistory []StatusHistory `json:"statusHistory,omitempty"`
	Attachments   []Attachment    `json:"attachments,omitempty"`
	LockedBy      string          `json:"lockedBy,omitempty"`
	LockedAt      *time.Time      `json:"lockedAt,omitempty"`
}

// Notification is a per-user notification.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
	ActionURL string    `json:"actionUrl,omitempty"`
}

// FAQAttachment is a file bundled with a FAQ entry.
type FAQAttachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// FAQ is a knowledge-base entry.
type FAQ struct {
	ID          string          `json:"id"`
	Question    string          `json:"question"`
	Answer      string          `json:"answer"`
	Category    string          `json:"category"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
	CreatedBy   string          `json:"createdBy"`
	Type        string          `json:"type,omitempty"`
	Content     string          `json:"content,omitempty"`
	Attachments []FAQAttachment `json:"attachments,omitempty"`
}

// ChatMessage is one stored chat message copy.
type ChatMessage struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	RecipientID string    `json:"recipientId,omitempty"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	ChatChannel string    `json:"chatChannel,omitempty"`
	Read        bool      `json:"read,omitempty"`
}

// Read decodes a blob. A bare state object without the {"state": ...}
// wrapper is accepted too.
func Read(r io.Reader) (*Blob, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	var b Blob
	if _, wrapped := probe["state"]; wrapped {
		err = json.Unmarshal(raw, &b)
	} else {
		err = json.Unmarshal(raw, &b.State)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return &b, nil
}

// Write encodes b as indented JSON.
func Write(w io.Writer, b *Blob) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// Export reads every helpdesk table into a blob.
func Export(ctx context.Context, db *gorm.DB) (*Blob, error) {
	users, err := repo.ListUsers(ctx, db)
	if err != nil {
		return nil, err
	}
	reports, err := repo.ListReports(ctx, db, repo.ReportFilter{})
	if err != nil {
		return nil, err
	}
	var notifications []domain.Notification
	if err := db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&notifications).Error; err != nil {
		return nil, err
	}
	faqs, err := repo.ListFAQs(ctx, db, false)
	if err != nil {
		return nil, err
	}
	msgs, err := repo.ListChatMessages(ctx, db)
	if err != nil {
		return nil, err
	}

	st := State{
		AllUsers:      make([]User, 0, len(users)),
		Reports:       make([]Report, 0, len(reports)),
		Notifications: make([]Notification, 0, len(notifications)),
		FAQs:          make([]FAQ, 0, len(faqs)),
		ChatMessages:  make([]ChatMessage, 0, len(msgs)),
	}
	for _, u := range users {
		st.AllUsers = append(st.AllUsers, User{
			ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role),
			Address: u.Address, Avatar: u.Avatar, PasswordHash: u.PasswordHash,
			CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
		})
	}
	for _, r := range reports {
		out := Report{
			ID: r.ID, Title: r.Title, Description: r.Description, Status: string(r.Status),
			CreatedBy: r.CreatedBy, AssignedTo: r.AssignedTo, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
			Priority: r.Priority, Urgency: r.Urgency, Category: r.Category,
			ReporterName: r.ReporterName, PhoneNumber: r.PhoneNumber, ProblemType: r.ProblemType,
			LockedBy: r.LockedBy, LockedAt: r.LockedAt,
		}
		for _, h := range r.StatusHistory {
			out.StatusHistory = append(out.StatusHistory, StatusHistory{
				ID: h.ID, Status: string(h.Status), ChangedBy: h.ChangedBy, ChangedAt: h.ChangedAt, Note: h.Note,
			})
		}
		for _, a := range r.Attachments {
			out.Attachments = append(out.Attachments, Attachment(a))
		}
		st.Reports = append(st.Reports, out)
	}
	for _, n := range notifications {
		st.Notifications = append(st.Notifications, Notification{
			ID: n.ID, Title: n.Title, Message: n.Message, Type: string(n.Type), UserID: n.UserID,
			Read: n.Read, CreatedAt: n.CreatedAt, ActionURL: n.ActionURL,
		})
	}
	for _, f := range faqs {
		out := FAQ{
			ID: f.ID, Question: f.Question, Answer: f.Answer, Category: f.Category, IsActive: f.IsActive,
			CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt, CreatedBy: f.CreatedBy,
			Type: string(f.Type), Content: f.Content,
		}
		for _, a := range f.Attachments {
			out.Attachments = append(out.Attachments, FAQAttachment(a))
		}
		st.FAQs = append(st.FAQs, out)
	}
	for _, m := range msgs {
		st.ChatMessages = append(st.ChatMessages, ChatMessage{
			ID: m.ID, SenderID: m.SenderID, SenderName: m.SenderName, RecipientID: m.RecipientID,
			Message: m.Message, Timestamp: m.Timestamp, Type: m.Type, FileName: m.FileName,
			ChatChannel: m.ChatChannel, Read: m.Read,
		})
	}
	return &Blob{State: st}, nil
}

// ImportOptions tune Import.
type ImportOptions struct {
	BcryptCost int
	// Replace wipes every helpdesk table (sessions included) before
	// loading. Without it, rows whose ids already exist fail the import.
	Replace bool
}

// Counts reports how many rows Import wrote per collection.
type Counts struct {
	Users         int
	Reports       int
	Notifications int
	FAQs          int
	ChatMessages  int
}

// Import loads b in one transaction. Imported history is kept verbatim,
// so it may disagree with a report's status if the source did.
func Import(ctx context.Context, db *gorm.DB, b *Blob, opts ImportOptions) (Counts, error) {
	var c Counts
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if opts.Replace {
			if err := wipe(tx); err != nil {
				return err
			}
		}

		for _, u := range b.State.AllUsers {
			role := domain.Role(u.Role)
			if !role.Valid() {
				return fmt.Errorf("snapshot: user %q has invalid role %q", u.ID, u.Role)
			}
			hash := u.PasswordHash
			if hash == "" {
				h, err := services.HashPassword(u.Password, opts.BcryptCost)
				if err != nil {
					return fmt.Errorf("snapshot: user %q: %w", u.ID, err)
				}
				hash = h
			}
			if err := repo.CreateUser(ctx, tx, &domain.User{
				ID: u.ID, Name: u.Name, Email: u.Email, Role: role, Address: u.Address, Avatar: u.Avatar,
				PasswordHash: hash, CreatedAt: u.CreatedAt.UTC(), UpdatedAt: u.UpdatedAt,
			}); err != nil {
				return fmt.Errorf("snapshot: user %q: %w", u.ID, err)
			}
			c.Users++
		}

		for _, r := range b.State.Reports {
			st := domain.ReportStatus(r.Status)
			if !st.Valid() {
				return fmt.Errorf("snapshot: report %q has invalid status %q", r.ID, r.Status)
			}
			rep := &domain.Report{
				ID: r.ID, Title: r.Title, Description: r.Description, Status: st,
				CreatedBy: r.CreatedBy, AssignedTo: r.AssignedTo, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt,
				Priority: r.Priority, Urgency: r.Urgency, Category: r.Category,
				ReporterName: r.ReporterName, PhoneNumber: r.PhoneNumber, ProblemType: r.ProblemType,
				LockedBy: r.LockedBy, LockedAt: r.LockedAt,
			}
			for _, a := range r.Attachments {
				rep.Attachments = append(rep.Attachments, domain.Attachment(a))
			}
			for i, h := range r.StatusHistory {
				id := h.ID
				if id == "" {
					id = fmt.Sprintf("%s-history-%d", r.ID, i+1)
				}
				rep.StatusHistory = append(rep.StatusHistory, domain.ReportStatusHistory{
					ID: id, Status: domain.ReportStatus(h.Status), ChangedBy: h.ChangedBy,
					ChangedAt: h.ChangedAt.UTC(), Note: h.Note,
				})
			}
			if err := repo.CreateReport(ctx, tx, rep); err != nil {
				return fmt.Errorf("snapshot: report %q: %w", r.ID, err)
			}
			c.Reports++
		}

		ns := make([]domain.Notification, 0, len(b.State.Notifications))
		for _, n := range b.State.Notifications {
			typ := domain.NotificationType(n.Type)
			if !typ.Valid() {
				typ = domain.NotificationInfo
			}
			ns = append(ns, domain.Notification{
				ID: n.ID, Title: n.Title, Message: n.Message, Type: typ, UserID: n.UserID,
				Read: n.Read, CreatedAt: n.CreatedAt.UTC(), ActionURL: n.ActionURL,
			})
		}
		if err := repo.CreateNotifications(ctx, tx, ns); err != nil {
			return fmt.Errorf("snapshot: notifications: %w", err)
		}
		c.Notifications = len(ns)

		for _, f := range b.State.FAQs {
			typ := domain.FAQType(strings.TrimSpace(f.Type))
			if typ == "" {
				typ = domain.FAQText
			}
			faq := &domain.FAQ{
				ID: f.ID, Question: f.Question, Answer: f.Answer, Category: f.Category, IsActive: f.IsActive,
				CreatedAt: f.CreatedAt.UTC(), UpdatedAt: f.UpdatedAt, CreatedBy: f.CreatedBy,
				Type: typ, Content: f.Content,
			}
			for _, a := range f.Attachments {
				faq.Attachments = append(faq.Attachments, domain.FAQAttachment(a))
			}
			if err := repo.CreateFAQ(ctx, tx, faq); err != nil {
				return fmt.Errorf("snapshot: faq %q: %w", f.ID, err)
			}
			c.FAQs++
		}

		msgs := make([]domain.ChatMessage, 0, len(b.State.ChatMessages))
		for _, m := range b.State.ChatMessages {
			msgs = append(msgs, domain.ChatMessage{
				ID: m.ID, SenderID: m.SenderID, SenderName: m.SenderName, RecipientID: m.RecipientID,
				Message: m.Message, Timestamp: m.Timestamp.UTC(), Type: m.Type, FileName: m.FileName,
				ChatChannel: m.ChatChannel, Read: m.Read,
			})
		}
		if err := repo.CreateChatMessages(ctx, tx, msgs); err != nil {
			return fmt.Errorf("snapshot: chat messages: %w", err)
		}
		c.ChatMessages = len(msgs)
		return nil
	})
	if err != nil {
		return Counts{}, err
	}
	return c, nil
}

// wipe deletes every row of the helpdesk tables, children first.
func wipe(tx *gorm.DB) error {
	models := repo.Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(models[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
