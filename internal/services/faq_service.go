// Package services – FAQService
//
// FAQService manages the knowledge base. Staff see only active entries;
// admins manage all of them. Search runs over an in-memory index of active
// entries that is rebuilt lazily after any write. Article entries are
// rendered from Markdown to sanitized HTML on request.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/markdown"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
	"github.com/tbourn/go-helpdesk-backend/internal/search"
)

// faqStopwords are dropped from FAQ search queries and documents.
var faqStopwords = []string{
	"bagaimana", "cara", "apa", "yang", "di", "ke", "dan", "atau", "untuk", "dengan", "saya",
	"how", "do", "i", "the", "a", "an", "to", "what", "is", "my",
}

// NewFAQ is the input of FAQService.Add.
type NewFAQ struct {
	ID          string
	Question    string
	Answer      string
	Category    string
	IsActive    bool
	Type        domain.FAQType
	Content     string
	Attachments []domain.FAQAttachment
}

// FAQPatch is a partial update; nil fields are left untouched.
type FAQPatch struct {
	Question    *string
	Answer      *string
	Category    *string
	IsActive    *bool
	Type        *domain.FAQType
	Content     *string
	Attachments *[]domain.FAQAttachment
}

// FAQService provides knowledge-base operations.
type FAQService struct {
	DB       *gorm.DB
	Renderer markdown.Renderer

	Now   func() time.Time
	NewID func() string

	mu    sync.Mutex
	index search.Index
	gen   uint64 // bumped by every write; an index is cached only for the current gen
}

// NewFAQService constructs a FAQService.
func NewFAQService(db *gorm.DB, r markdown.Renderer) *FAQService {
	if r == nil {
		r = markdown.New()
	}
	return &FAQService{DB: db, Renderer: r}
}

// Active returns the entries visible to staff.
func (s *FAQService) Active(ctx context.Context) ([]domain.FAQ, error) {
	return repo.ListFAQs(ctx, s.DB, true)
}

// All returns every entry, active or not.
func (s *FAQService) All(ctx context.Context) ([]domain.FAQ, error) {
	return repo.ListFAQs(ctx, s.DB, false)
}

// Get returns entry id or ErrFAQNotFound.
func (s *FAQService) Get(ctx context.Context, id string) (*domain.FAQ, error) {
	f, err := repo.GetFAQ(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrFAQNotFound
		}
		return nil, err
	}
	return f, nil
}

// Add creates an entry authored by actorID. An empty type means text.
func (s *FAQService) Add(ctx context.Context, actorID string, in NewFAQ) (*domain.FAQ, error) {
	typ := in.Type
	if typ == "" {
		typ = domain.FAQText
	}
	id := in.ID
	if id == "" {
		id = "faq-" + idFrom(s.NewID)
	}
	f := &domain.FAQ{
		ID:          id,
		Question:    strings.TrimSpace(in.Question),
		Answer:      in.Answer,
		Category:    strings.TrimSpace(in.Category),
		IsActive:    in.IsActive,
		CreatedAt:   nowFrom(s.Now),
		CreatedBy:   actorID,
		Type:        typ,
		Content:     in.Content,
		Attachments: in.Attachments,
	}
	if err := repo.CreateFAQ(ctx, s.DB, f); err != nil {
		return nil, err
	}
	s.invalidate()
	return f, nil
}

// Update applies p to entry id and returns the refreshed entry.
func (s *FAQService) Update(ctx context.Context, id string, p FAQPatch) (*domain.FAQ, error) {
	fields := map[string]any{"updated_at": nowFrom(s.Now)}
	if p.Question != nil {
		fields["question"] = strings.TrimSpace(*p.Question)
	}
	if p.Answer != nil {
		fields["answer"] = *p.Answer
	}
	if p.Category != nil {
		fields["category"] = strings.TrimSpace(*p.Category)
	}
	if p.IsActive != nil {
		fields["is_active"] = *p.IsActive
	}
	if p.Type != nil {
		fields["type"] = *p.Type
	}
	if p.Content != nil {
		fields["content"] = *p.Content
	}
	if p.Attachments != nil {
		a := *p.Attachments
		if a == nil {
			a = []domain.FAQAttachment{}
		}
		fields["attachments"] = datatypes.JSONSlice[domain.FAQAttachment](a)
	}
	if err := repo.UpdateFAQFields(ctx, s.DB, id, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrFAQNotFound
		}
		return nil, err
	}
	s.invalidate()
	return s.Get(ctx, id)
}

// Delete removes entry id. Deleting an absent id is a no-op.
func (s *FAQService) Delete(ctx context.Context, id string) error {
	if err := repo.DeleteFAQ(ctx, s.DB, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// SearchHit pairs an active entry with its relevance score.
type SearchHit struct {
	FAQ     domain.FAQ `json:"faq"`
	Snippet string     `json:"snippet"`
	Score   float64    `json:"score"`
}

// Search returns up to k active entries ranked against q.
func (s *FAQService) Search(ctx context.Context, q string, k int) ([]SearchHit, error) {
	ctx, span := otel.Tracer("services/FAQService").Start(ctx, "Search",
		trace.WithAttributes(attribute.String("query", q), attribute.Int("k", k)))
	defer span.End()

	gen := s.generation()
	active, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	idx := s.searchIndex(active, gen)
	byID := make(map[string]domain.FAQ, len(active))
	for _, f := range active {
		byID[f.ID] = f
	}

	results := idx.TopK(q, k)
	out := make([]SearchHit, 0, len(results))
	for _, r := range results {
		f, ok := byID[r.ID]
		if !ok {
			continue
		}
		out = append(out, SearchHit{FAQ: f, Snippet: r.Snippet, Score: r.Score})
	}
	span.SetAttributes(attribute.Int("hits", len(out)))
	return out, nil
}

func (s *FAQService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// searchIndex returns the cached index, building it from active when absent.
// active must have been read after gen was observed; a build from a snapshot
// older than the latest write is returned but not cached.
func (s *FAQService) searchIndex(active []domain.FAQ, gen uint64) search.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil && gen == s.gen {
		return s.index
	}
	docs := make([]search.Document, 0, len(active))
	for _, f := range active {
		body := f.Answer
		if f.Content != "" {
			body += "\n\n" + f.Content
		}
		docs = append(docs, search.Document{ID: f.ID, Title: f.Question + " " + f.Category, Body: body})
	}
	idx := search.NewIndex(docs, search.WithStopwords(faqStopwords))
	if gen == s.gen {
		s.index = idx
	}
	return idx
}

func (s *FAQService) invalidate() {
	s.mu.Lock()
	s.index = nil
	s.gen++
	s.mu.Unlock()
}

// HTML renders entry id as sanitized HTML. Articles render Content; other
// types render Answer.
func (s *FAQService) HTML(ctx context.Context, id string) (string, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	src := f.Answer
	if f.Type == domain.FAQArticle && strings.TrimSpace(f.Content) != "" {
		src = f.Content
	}
	return s.Renderer.ToHTMLSanitized(src)
}
