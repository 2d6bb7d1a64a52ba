// Package domain defines the persistence models for the helpdesk: users and
// their sessions, reports with their status history, notifications, FAQ
// entries, and chat messages. These types are mapped with GORM and form the
// core data layer of the application.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// User is a member of the helpdesk roster. Role is fixed at creation; no
// operation changes it afterwards.
//
// Fields:
//   - ID: stable primary key (seeded ids such as "staff-1" or UUIDs).
//   - Email: login identifier, unique and compared case-sensitively.
//   - PasswordHash: bcrypt hash; never serialized.
//   - CreatedAt / UpdatedAt: managed by the service clock, not by GORM.
type User struct {
	ID           string     `json:"id"                   gorm:"type:varchar(64);primaryKey"`
	Name         string     `json:"name"                 gorm:"type:varchar(255);not null"`
	Email        string     `json:"email"                gorm:"type:varchar(255);not null;uniqueIndex"`
	Role         Role       `json:"role"                 gorm:"type:varchar(16);not null;index;check:role IN ('master','admin','staff')"`
	Address      string     `json:"address,omitempty"    gorm:"type:varchar(255)"`
	Avatar       string     `json:"avatar,omitempty"     gorm:"type:varchar(512)"`
	PasswordHash string     `json:"-"                    gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time  `json:"created_at"           gorm:"autoCreateTime:false"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime:false"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Session is an issued login. The JWT handed to the client carries the
// session ID as its jti, so revoking the row logs the token out.
type Session struct {
	ID        string     `gorm:"type:char(36);primaryKey"`
	UserID    string     `gorm:"type:varchar(64);not null;index"`
	CreatedAt time.Time  `gorm:"autoCreateTime:false"`
	ExpiresAt time.Time  `gorm:"not null;index"`
	RevokedAt *time.Time `gorm:"index"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// Active reports whether the session can still authenticate requests at now.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Attachment is a file attached to a report.
type Attachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type"` // image|video|document
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Report is a staff-filed issue tracked through a status lifecycle.
//
// Fields:
//   - Status: authoritative current state.
//   - StatusHistory: append-only audit trail (child rows, cascade-deleted).
//   - Attachments: JSON column.
//   - LockedBy / LockedAt: advisory edit lock. An empty LockedBy means
//     unlocked; a lock older than the configured TTL is treated as absent.
//   - Version: bumped by every content change; used for optimistic
//     concurrency checks. Lock changes leave it alone.
//   - LockSeq: bumped by every lock change. List ETags cover both counters.
type Report struct {
	ID            string                          `json:"id"                      gorm:"type:varchar(64);primaryKey"`
	Title         string                          `json:"title"                   gorm:"type:varchar(255);not null"`
	Description   string                          `json:"description"             gorm:"type:text;not null"`
	Status        ReportStatus                    `json:"status"                  gorm:"type:varchar(16);not null;index"`
	CreatedBy     string                          `json:"created_by"              gorm:"type:varchar(64);not null;index"`
	AssignedTo    string                          `json:"assigned_to,omitempty"   gorm:"type:varchar(64);index"`
	CreatedAt     time.Time                       `json:"created_at"              gorm:"autoCreateTime:false;index"`
	UpdatedAt     *time.Time                      `json:"updated_at,omitempty"    gorm:"autoUpdateTime:false"`
	Priority      string                          `json:"priority,omitempty"      gorm:"type:varchar(16)"`
	Urgency       string                          `json:"urgency,omitempty"       gorm:"type:varchar(16)"`
	Category      string                          `json:"category,omitempty"      gorm:"type:varchar(128)"`
	ReporterName  string                          `json:"reporter_name,omitempty" gorm:"type:varchar(255)"`
	PhoneNumber   string                          `json:"phone_number,omitempty"  gorm:"type:varchar(64)"`
	ProblemType   string                          `json:"problem_type,omitempty"  gorm:"type:varchar(128)"`
	Attachments   datatypes.JSONSlice[Attachment] `json:"attachments,omitempty"`
	LockedBy      string                          `json:"locked_by,omitempty"     gorm:"type:varchar(64);not null;default:''"`
	LockedAt      *time.Time                      `json:"locked_at,omitempty"`
	Version       int64                           `json:"version"                 gorm:"not null;default:1"`
	LockSeq       int64                           `json:"-"                       gorm:"not null;default:0"`
	StatusHistory []ReportStatusHistory           `json:"status_history"          gorm:"foreignKey:ReportID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Report.
func (Report) TableName() string { return "reports" }

// ReportStatusHistory records one status transition of a report.
type ReportStatusHistory struct {
	ID        string       `json:"id"             gorm:"type:char(36);primaryKey"`
	ReportID  string       `json:"-"              gorm:"type:varchar(64);not null;index:idx_report_history,priority:1"`
	Status    ReportStatus `json:"status"         gorm:"type:varchar(16);not null"`
	ChangedBy string       `json:"changed_by"     gorm:"type:varchar(64);not null"`
	ChangedAt time.Time    `json:"changed_at"     gorm:"index:idx_report_history,priority:2"`
	Note      string       `json:"note,omitempty" gorm:"type:text"`
}

// TableName returns the database table name for ReportStatusHistory.
func (ReportStatusHistory) TableName() string { return "report_status_history" }

// Notification is a per-user message generated as a side effect of report
// and chat events.
type Notification struct {
	ID        string           `json:"id"                   gorm:"type:char(36);primaryKey"`
	Title     string           `json:"title"                gorm:"type:varchar(255);not null"`
	Message   string           `json:"message"              gorm:"type:text;not null"`
	Type      NotificationType `json:"type"                 gorm:"type:varchar(16);not null"`
	UserID    string           `json:"user_id"              gorm:"type:varchar(64);not null;index:idx_user_notifications,priority:1"`
	Read      bool             `json:"read"                 gorm:"not null;default:false"`
	CreatedAt time.Time        `json:"created_at"           gorm:"autoCreateTime:false;index:idx_user_notifications,priority:2"`
	ActionURL string           `json:"action_url,omitempty" gorm:"type:varchar(512)"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// FAQAttachment is a file bundled with a FAQ entry.
type FAQAttachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"` // image|video|document
	Size int64  `json:"size"`
}

// FAQ is a knowledge-base entry. Only active entries are visible to staff.
// Type selects how Content is presented: plain text, a Markdown article, or a
// file bundle described by Attachments.
type FAQ struct {
	ID          string                             `json:"id"                    gorm:"type:varchar(64);primaryKey"`
	Question    string                             `json:"question"              gorm:"type:text;not null"`
	Answer      string                             `json:"answer"                gorm:"type:text;not null"`
	Category    string                             `json:"category"              gorm:"type:varchar(128);index"`
	IsActive    bool                               `json:"is_active"             gorm:"not null;index"`
	CreatedAt   time.Time                          `json:"created_at"            gorm:"autoCreateTime:false"`
	UpdatedAt   *time.Time                         `json:"updated_at,omitempty"  gorm:"autoUpdateTime:false"`
	CreatedBy   string                             `json:"created_by"            gorm:"type:varchar(64)"`
	Type        FAQType                            `json:"type,omitempty"        gorm:"type:varchar(16)"`
	Content     string                             `json:"content,omitempty"     gorm:"type:text"`
	Attachments datatypes.JSONSlice[FAQAttachment] `json:"attachments,omitempty"`
}

// TableName returns the database table name for FAQ.
func (FAQ) TableName() string { return "faqs" }

// ChatMessage is a single message in a two-party thread. ChatChannel keys
// the thread (see StaffChannel and DirectChannel).
type ChatMessage struct {
	ID          string    `json:"id"                     gorm:"type:varchar(128);primaryKey"`
	SenderID    string    `json:"sender_id"              gorm:"type:varchar(64);not null;index"`
	SenderName  string    `json:"sender_name"            gorm:"type:varchar(255)"`
	RecipientID string    `json:"recipient_id,omitempty" gorm:"type:varchar(64);index"`
	Message     string    `json:"message"                gorm:"type:text;not null"`
	Timestamp   time.Time `json:"timestamp"              gorm:"index:idx_channel_msgs,priority:2"`
	Type        string    `json:"type,omitempty"         gorm:"type:varchar(16)"`
	FileName    string    `json:"file_name,omitempty"    gorm:"type:varchar(255)"`
	ChatChannel string    `json:"chat_channel,omitempty" gorm:"type:varchar(255);index:idx_channel_msgs,priority:1"`
	Read        bool      `json:"read"                   gorm:"not null;default:false"`
	BatchID     string    `json:"-"                      gorm:"type:varchar(128);index"` // shared by the copies of one send
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }
