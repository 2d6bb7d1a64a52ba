// Package search provides a small, deterministic, concurrency-safe in-memory
// index over FAQ entries.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options for stop words and field weighting
//   - Unicode-aware tokenization (Indonesian and English text alike)
//   - Immutable after construction, so safe for concurrent readers
//   - Deterministic ordering for ties
//
// Scoring is Jaccard similarity between the query token set and a document's
// token set, score = |Q ∩ D| / |Q ∪ D|, plus a bonus for tokens that hit the
// document title (the FAQ question).
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Document is one searchable entry. Title is weighted above Body.
type Document struct {
	ID    string
	Title string
	Body  string
}

// Result is a ranked match.
type Result struct {
	ID      string
	Snippet string
	Score   float64
}

// Index is the interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords    map[string]struct{}
	titleBoost   float64
	snippetRunes int
}

func defaultConfig() config {
	return config{
		stopwords:    nil,
		titleBoost:   0.5,
		snippetRunes: 160,
	}
}

// WithStopwords drops the given words from documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithTitleBoost sets the weight of the title-overlap bonus. Negative values
// are ignored.
func WithTitleBoost(w float64) Option {
	return func(c *config) {
		if w >= 0 {
			c.titleBoost = w
		}
	}
}

// WithSnippetRunes caps the snippet length. Non-positive values are ignored.
func WithSnippetRunes(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.snippetRunes = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id      string
	snippet string
	tokens  map[string]struct{}
	title   map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index over docs. Documents without any token are
// skipped.
func NewIndex(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		title := tokenize(d.Title, cfg.stopwords)
		all := tokenize(d.Title+" "+d.Body, cfg.stopwords)
		if len(all) == 0 {
			continue
		}
		out = append(out, doc{
			id:      d.ID,
			snippet: clip(strings.TrimSpace(normalizeWhitespace(firstNonEmpty(d.Body, d.Title))), cfg.snippetRunes),
			tokens:  all,
			title:   title,
		})
	}
	return &index{cfg: cfg, docs: out}
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching documents. A non-positive k means 5.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 5
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	buf := make([]Result, 0, len(i.docs))
	for _, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(d.tokens) - over)
		score := float64(over) / union
		if hit := overlap(qTokens, d.title); hit > 0 {
			score += i.cfg.titleBoost * float64(hit) / float64(len(qTokens))
		}
		buf = append(buf, Result{ID: d.id, Snippet: d.snippet, Score: score})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		return buf[a].ID < buf[b].ID
	})
	if k > len(buf) {
		k = len(buf)
	}
	return buf[:k]
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
