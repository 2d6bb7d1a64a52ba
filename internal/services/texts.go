package services

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

// Message keys double as the English format strings.
const (
	msgNewReportTitle = "New report received"
	msgNewReportBody  = "%s created a new report: \"%s\""
	msgStatusTitle    = "Report status updated"
	msgStatusBody     = "The status of report \"%s\" was changed to %s"
	msgChatTitle      = "New chat message"
	msgChatBody       = "%s sent a message: \"%s\""

	msgNoteCreated    = "Report created"
	msgNoteInProgress = "Report is being worked on"
	msgNoteUpdated    = "Status updated"

	msgStatusPending    = "Pending"
	msgStatusInProgress = "In progress"
	msgStatusCompleted  = "Completed"
	msgStatusOnHold     = "On hold"
	msgStatusRejected   = "Rejected"
)

var supportedLocales = []language.Tag{language.Indonesian, language.English}

func init() {
	id := map[string]string{
		msgNewReportTitle:   "Laporan Baru Masuk",
		msgNewReportBody:    "%s telah membuat laporan baru: \"%s\"",
		msgStatusTitle:      "Status Laporan Diperbarui",
		msgStatusBody:       "Status laporan \"%s\" telah diubah menjadi %s",
		msgChatTitle:        "Pesan Chat Baru",
		msgChatBody:         "%s mengirim pesan: \"%s\"",
		msgNoteCreated:      "Laporan dibuat",
		msgNoteInProgress:   "Laporan sedang dikerjakan",
		msgNoteUpdated:      "Status diperbarui",
		msgStatusPending:    "Pending",
		msgStatusInProgress: "Sedang Dikerjakan",
		msgStatusCompleted:  "Selesai",
		msgStatusOnHold:     "Ditahan",
		msgStatusRejected:   "Ditolak",
	}
	for k, v := range id {
		_ = message.SetString(language.Indonesian, k, v)
		_ = message.SetString(language.English, k, k)
	}
}

// Texts renders user-facing notification strings in one locale.
type Texts struct {
	p *message.Printer
}

// NewTexts returns Texts for the closest supported locale to the given BCP 47
// tag. Unknown or empty tags fall back to Indonesian.
func NewTexts(locale string) *Texts {
	tag := language.Indonesian
	if want, err := language.Parse(locale); err == nil {
		_, idx, conf := language.NewMatcher(supportedLocales).Match(want)
		if conf != language.No {
			tag = supportedLocales[idx]
		}
	}
	return &Texts{p: message.NewPrinter(tag)}
}

func (t *Texts) printer() *message.Printer {
	if t == nil || t.p == nil {
		return message.NewPrinter(language.Indonesian)
	}
	return t.p
}

func (t *Texts) sprintf(key string, args ...any) string {
	return t.printer().Sprintf(key, args...)
}

// StatusLabel returns the human-readable label of s.
func (t *Texts) StatusLabel(s domain.ReportStatus) string {
	switch s {
	case domain.StatusPending:
		return t.sprintf(msgStatusPending)
	case domain.StatusInProgress:
		return t.sprintf(msgStatusInProgress)
	case domain.StatusCompleted:
		return t.sprintf(msgStatusCompleted)
	case domain.StatusOnHold:
		return t.sprintf(msgStatusOnHold)
	case domain.StatusRejected:
		return t.sprintf(msgStatusRejected)
	}
	return string(s)
}

// defaultNote is the history note used when a status change carries none.
func (t *Texts) defaultNote(s domain.ReportStatus) string {
	if s == domain.StatusInProgress {
		return t.sprintf(msgNoteInProgress)
	}
	return t.sprintf(msgNoteUpdated)
}
