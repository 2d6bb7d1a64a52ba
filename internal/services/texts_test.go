package services

import (
	"testing"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

func TestTexts_LocaleSelection(t *testing.T) {
	id := NewTexts("id-ID")
	if got := id.StatusLabel(domain.StatusInProgress); got != "Sedang Dikerjakan" {
		t.Fatalf("id label=%q", got)
	}
	en := NewTexts("en")
	if got := en.StatusLabel(domain.StatusInProgress); got != "In progress" {
		t.Fatalf("en label=%q", got)
	}
	if got := en.sprintf(msgStatusBody, "Printer", en.StatusLabel(domain.StatusCompleted)); got != `The status of report "Printer" was changed to Completed` {
		t.Fatalf("en body=%q", got)
	}

	for _, tag := range []string{"", "not a tag!"} {
		if got := NewTexts(tag).sprintf(msgChatTitle); got != "Pesan Chat Baru" {
			t.Fatalf("fallback for %q=%q", tag, got)
		}
	}
	var nilTexts *Texts
	if got := nilTexts.defaultNote(domain.StatusCompleted); got != "Status diperbarui" {
		t.Fatalf("nil texts note=%q", got)
	}
	if got := id.StatusLabel("unknown"); got != "unknown" {
		t.Fatalf("unknown label=%q", got)
	}
}
