// Package seed loads the initial roster, reports and FAQ entries into an
// empty database. The default data set is embedded as YAML; callers can
// supply their own file with the same shape.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
)

//go:embed seed.yaml
var defaultYAML []byte

// File is the YAML document shape.
type File struct {
	Users   []User   `yaml:"users"`
	Reports []Report `yaml:"reports"`
	FAQs    []FAQ    `yaml:"faqs"`
}

type User struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Role     string `yaml:"role"`
	Address  string `yaml:"address"`
	Avatar   string `yaml:"avatar"`
	Password string `yaml:"password"`
}

type Attachment struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	URL        string `yaml:"url"`
	Type       string `yaml:"type"`
	Size       int64  `yaml:"size"`
	UploadedBy string `yaml:"uploaded_by"`
}

// History is one status entry; After is its offset from report creation.
type History struct {
	Status    string        `yaml:"status"`
	ChangedBy string        `yaml:"changed_by"`
	After     time.Duration `yaml:"after"`
	Note      string        `yaml:"note"`
}

// Report is a seeded report; Age is how long before seeding it was created.
type Report struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Status      string        `yaml:"status"`
	CreatedBy   string        `yaml:"created_by"`
	AssignedTo  string        `yaml:"assigned_to"`
	Age         time.Duration `yaml:"age"`
	Priority    string        `yaml:"priority"`
	Category    string        `yaml:"category"`
	Attachments []Attachment  `yaml:"attachments"`
	History     []History     `yaml:"history"`
}

type FAQ struct {
	ID        string `yaml:"id"`
	Question  string `yaml:"question"`
	Answer    string `yaml:"answer"`
	Category  string `yaml:"category"`
	Active    bool   `yaml:"active"`
	CreatedBy string `yaml:"created_by"`
}

// Parse decodes and validates a seed document.
func Parse(b []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	for _, u := range f.Users {
		if !domain.Role(u.Role).Valid() {
			return nil, fmt.Errorf("seed: user %q has invalid role %q", u.ID, u.Role)
		}
	}
	for _, r := range f.Reports {
		if !domain.ReportStatus(r.Status).Valid() {
			return nil, fmt.Errorf("seed: report %q has invalid status %q", r.ID, r.Status)
		}
		for _, h := range r.History {
			if !domain.ReportStatus(h.Status).Valid() {
				return nil, fmt.Errorf("seed: report %q history has invalid status %q", r.ID, h.Status)
			}
		}
	}
	return &f, nil
}

// Default returns the embedded data set.
func Default() (*File, error) { return Parse(defaultYAML) }

// Options tune Apply.
type Options struct {
	Now        time.Time
	BcryptCost int
	// Force seeds even when users already exist. Rows whose ids exist
	// make the whole run fail.
	Force bool
}

// Result reports what Apply wrote.
type Result struct {
	Skipped bool
	Users   int
	Reports int
	FAQs    int
}

// Apply writes f in one transaction. Unless opts.Force is set, a database
// that already has users is left untouched and Result.Skipped is true.
func Apply(ctx context.Context, db *gorm.DB, f *File, opts Options) (Result, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if !opts.Force {
		n, err := repo.CountUsers(ctx, db)
		if err != nil {
			return Result{}, err
		}
		if n > 0 {
			return Result{Skipped: true}, nil
		}
	}

	var res Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range f.Users {
			hash, err := services.HashPassword(u.Password, opts.BcryptCost)
			if err != nil {
				return fmt.Errorf("seed: user %q: %w", u.ID, err)
			}
			if err := repo.CreateUser(ctx, tx, &domain.User{
				ID:           u.ID,
				Name:         u.Name,
				Email:        u.Email,
				Role:         domain.Role(u.Role),
				Address:      u.Address,
				Avatar:       u.Avatar,
				PasswordHash: hash,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
			res.Users++
		}

		for _, r := range f.Reports {
			created := now.Add(-r.Age)
			atts := make([]domain.Attachment, 0, len(r.Attachments))
			for _, a := range r.Attachments {
				atts = append(atts, domain.Attachment{
					ID: a.ID, Name: a.Name, URL: a.URL, Type: a.Type, Size: a.Size,
					UploadedBy: a.UploadedBy, UploadedAt: created,
				})
			}
			hist := make([]domain.ReportStatusHistory, 0, len(r.History))
			for _, h := range r.History {
				hist = append(hist, domain.ReportStatusHistory{
					ID:        uuid.NewString(),
					Status:    domain.ReportStatus(h.Status),
					ChangedBy: h.ChangedBy,
					ChangedAt: created.Add(h.After),
					Note:      h.Note,
				})
			}
			if err := repo.CreateReport(ctx, tx, &domain.Report{
				ID:            r.ID,
				Title:         r.Title,
				Description:   r.Description,
				Status:        domain.ReportStatus(r.Status),
				CreatedBy:     r.CreatedBy,
				AssignedTo:    r.AssignedTo,
				CreatedAt:     created,
				Priority:      r.Priority,
				Category:      r.Category,
				Attachments:   atts,
				StatusHistory: hist,
			}); err != nil {
				return err
			}
			res.Reports++
		}

		for _, q := range f.FAQs {
			if err := repo.CreateFAQ(ctx, tx, &domain.FAQ{
				ID:        q.ID,
				Question:  q.Question,
				Answer:    q.Answer,
				Category:  q.Category,
				IsActive:  q.Active,
				CreatedAt: now,
				CreatedBy: q.CreatedBy,
				Type:      domain.FAQText,
			}); err != nil {
				return err
			}
			res.FAQs++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
