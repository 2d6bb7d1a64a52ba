package domain

import "strings"

// Role is a user's helpdesk role.
type Role string

const (
	RoleMaster Role = "master"
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMaster, RoleAdmin, RoleStaff:
		return true
	}
	return false
}

// Privileged reports whether r triages reports (admin or master).
func (r Role) Privileged() bool { return r == RoleAdmin || r == RoleMaster }

// ReportStatus is the lifecycle state of a report. The store imposes no
// transition guard: any status may follow any other.
type ReportStatus string

const (
	StatusPending    ReportStatus = "pending"
	StatusInProgress ReportStatus = "in-progress"
	StatusOnHold     ReportStatus = "on-hold"
	StatusCompleted  ReportStatus = "completed"
	StatusRejected   ReportStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusOnHold, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// NotificationType is the visual severity of a notification.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

// FAQType selects how a FAQ entry's content is presented.
type FAQType string

const (
	FAQText    FAQType = "text"
	FAQArticle FAQType = "article"
	FAQFile    FAQType = "file"
)

const staffChannelPrefix = "staff-"

// StaffChannel returns the channel key of the support thread between a staff
// user and one admin/master.
func StaffChannel(staffID, adminID string) string {
	return staffChannelPrefix + staffID + "-" + adminID
}

// StaffChannelPrefix returns the prefix shared by every support thread opened
// by staffID, across all admins and masters.
func StaffChannelPrefix(staffID string) string {
	return staffChannelPrefix + staffID + "-"
}

// IsStaffThread reports whether channel is the support thread between a and b,
// in either direction. Ids may themselves start with "staff-", so the key is
// compared against both concrete threads rather than matched by prefix.
func IsStaffThread(channel, a, b string) bool {
	return channel == StaffChannel(a, b) || channel == StaffChannel(b, a)
}

// DirectChannel returns the channel key for a direct conversation between a
// and b. The ids are sorted so both participants derive the same key.
func DirectChannel(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

// ChannelPeers returns every id p for which channel is userID's support thread
// with p or the direct channel between userID and p. Because ids may contain
// dashes a key can split more than one way; callers confirm the candidates.
func ChannelPeers(channel, userID string) []string {
	var out []string
	if p, ok := strings.CutPrefix(channel, StaffChannelPrefix(userID)); ok && p != "" {
		out = append(out, p)
	}
	if p, ok := strings.CutPrefix(channel, userID+"-"); ok && p != "" && DirectChannel(userID, p) == channel {
		out = append(out, p)
	}
	if p, ok := strings.CutSuffix(channel, "-"+userID); ok && p != "" && DirectChannel(userID, p) == channel {
		out = append(out, p)
	}
	return out
}
