// FAQ HTTP handlers.
//
//   - GET    /faqs              (active; ?all=true for roles with faq read_all)
//   - GET    /faqs/search?q=
//   - POST   /faqs              (admin, master)
//   - GET    /faqs/{id}
//   - GET    /faqs/{id}/html    (sanitized rendering)
//   - PATCH  /faqs/{id}         (admin, master)
//   - DELETE /faqs/{id}         (admin, master)
//
// Inactive entries are invisible (404) to roles without faq read_all.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/permission"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
	"github.com/tbourn/go-helpdesk-backend/internal/utils"
)

const (
	defaultSearchK = 5
	maxSearchK     = 20
)

// FAQAttachmentInput describes a file bundled with a FAQ.
type FAQAttachmentInput struct {
	ID   string `json:"id"`
	Name string `json:"name" binding:"required,max=255"`
	URL  string `json:"url"  binding:"required,max=2048"`
	Type string `json:"type" binding:"required,oneof=image video document"`
	Size int64  `json:"size" binding:"gte=0"`
}

// CreateFAQRequest is the JSON payload for adding a FAQ.
type CreateFAQRequest struct {
	Question    string               `json:"question"    binding:"required"          example:"Bagaimana cara reset password?"`
	Answer      string               `json:"answer"      binding:"required"          example:"Hubungi admin melalui chat."`
	Category    string               `json:"category"    binding:"max=128"           example:"Akun"`
	IsActive    *bool                `json:"is_active"`
	Type        string               `json:"type"        binding:"faq_type"          example:"text"`
	Content     string               `json:"content"`
	Attachments []FAQAttachmentInput `json:"attachments" binding:"omitempty,max=20,dive"`
}

// UpdateFAQRequest is a merge-patch of a FAQ.
type UpdateFAQRequest struct {
	Question    *string               `json:"question"    binding:"omitempty,min=1"`
	Answer      *string               `json:"answer"      binding:"omitempty,min=1"`
	Category    *string               `json:"category"    binding:"omitempty,max=128"`
	IsActive    *bool                 `json:"is_active"`
	Type        *string               `json:"type"        binding:"omitempty,faq_type"`
	Content     *string               `json:"content"`
	Attachments *[]FAQAttachmentInput `json:"attachments" binding:"omitempty,max=20,dive"`
}

// SearchFAQsResponse wraps ranked FAQ hits.
type SearchFAQsResponse struct {
	Query string               `json:"query"`
	Hits  []services.SearchHit `json:"hits"`
}

func faqAttachments(in []FAQAttachmentInput) []domain.FAQAttachment {
	out := make([]domain.FAQAttachment, 0, len(in))
	for _, a := range in {
		out = append(out, domain.FAQAttachment{ID: a.ID, Name: a.Name, URL: a.URL, Type: a.Type, Size: a.Size})
	}
	return out
}

func optFAQType(s *string) *domain.FAQType {
	if s == nil {
		return nil
	}
	t := domain.FAQType(*s)
	return &t
}

// visibleFAQ loads id, hiding inactive entries from roles without read_all.
func (h *Handlers) visibleFAQ(c *gin.Context, u *domain.User, id string) *domain.FAQ {
	f, err := h.faqs.Get(c.Request.Context(), id)
	if err == nil && !f.IsActive && !h.can(u.Role, permission.ResFAQ, permission.ActReadAll) {
		err = services.ErrFAQNotFound
	}
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return nil
	}
	return f
}

// ListFAQs godoc
// @ID          listFAQs
// @Summary     List FAQs
// @Description Returns active FAQs; all=true includes inactive ones for admins and masters.
// @Tags        FAQs
// @Security    BearerAuth
// @Produce     json
// @Param       all  query     bool  false  "Include inactive entries"
// @Success     200  {array}   domain.FAQ
// @Failure     403  {object}  handlers.ErrorResponse "Forbidden"
// @Router      /faqs [get]
func (h *Handlers) ListFAQs(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	list := h.faqs.Active
	if utils.BoolDefault(c.Query("all"), false) {
		if !h.can(u.Role, permission.ResFAQ, permission.ActReadAll) {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "insufficient permissions")
			return
		}
		list = h.faqs.All
	}
	items, err := list(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// SearchFAQs godoc
// @ID          searchFAQs
// @Summary     Search active FAQs
// @Tags        FAQs
// @Security    BearerAuth
// @Produce     json
// @Param       q    query     string  true   "Search text"
// @Param       k    query     int     false  "Maximum hits"  minimum(1) maximum(20) default(5)
// @Success     200  {object}  handlers.SearchFAQsResponse
// @Failure     400  {object}  handlers.ErrorResponse "Missing query"
// @Router      /faqs/search [get]
func (h *Handlers) SearchFAQs(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q is required")
		return
	}
	k := utils.Clamp(utils.AtoiDefault(c.Query("k"), defaultSearchK), 1, maxSearchK)
	hits, err := h.faqs.Search(c.Request.Context(), q, k)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	if hits == nil {
		hits = []services.SearchHit{}
	}
	ok(c, http.StatusOK, SearchFAQsResponse{Query: q, Hits: hits})
}

// GetFAQ godoc
// @ID          getFAQ
// @Summary     Get a FAQ
// @Tags        FAQs
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "FAQ ID"  example(faq-1)
// @Success     200  {object}  domain.FAQ
// @Failure     404  {object}  handlers.ErrorResponse "FAQ not found"
// @Router      /faqs/{id} [get]
func (h *Handlers) GetFAQ(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	if f := h.visibleFAQ(c, u, c.Param("id")); f != nil {
		ok(c, http.StatusOK, f)
	}
}

// FAQHTML godoc
// @ID          faqHTML
// @Summary     Render a FAQ as HTML
// @Description Articles render their Markdown content; other types render the answer. Output is sanitized.
// @Tags        FAQs
// @Security    BearerAuth
// @Produce     html
// @Param       id   path      string  true  "FAQ ID"
// @Success     200  {string}  string "HTML fragment"
// @Failure     404  {object}  handlers.ErrorResponse "FAQ not found"
// @Router      /faqs/{id}/html [get]
func (h *Handlers) FAQHTML(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	id := c.Param("id")
	if h.visibleFAQ(c, u, id) == nil {
		return
	}
	html, err := h.faqs.HTML(c.Request.Context(), id)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// CreateFAQ godoc
// @ID          createFAQ
// @Summary     Add a FAQ
// @Tags        FAQs
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.CreateFAQRequest  true  "New FAQ"
// @Success     201   {object}  domain.FAQ
// @Failure     400   {object}  handlers.ErrorResponse "Bad request"
// @Router      /faqs [post]
func (h *Handlers) CreateFAQ(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req CreateFAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	f, err := h.faqs.Add(c.Request.Context(), u.ID, services.NewFAQ{
		Question:    req.Question,
		Answer:      req.Answer,
		Category:    req.Category,
		IsActive:    active,
		Type:        domain.FAQType(req.Type),
		Content:     req.Content,
		Attachments: faqAttachments(req.Attachments),
	})
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusCreated, f)
}

// UpdateFAQ godoc
// @ID          updateFAQ
// @Summary     Update a FAQ
// @Description Merge-patches a FAQ; toggling is_active moves it in or out of the active list.
// @Tags        FAQs
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id    path      string                     true  "FAQ ID"
// @Param       body  body      handlers.UpdateFAQRequest  true  "Fields to change"
// @Success     200   {object}  domain.FAQ
// @Failure     404   {object}  handlers.ErrorResponse "FAQ not found"
// @Router      /faqs/{id} [patch]
func (h *Handlers) UpdateFAQ(c *gin.Context) {
	var req UpdateFAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}
	p := services.FAQPatch{
		Question: req.Question,
		Answer:   req.Answer,
		Category: req.Category,
		IsActive: req.IsActive,
		Type:     optFAQType(req.Type),
		Content:  req.Content,
	}
	if req.Attachments != nil {
		a := faqAttachments(*req.Attachments)
		p.Attachments = &a
	}
	f, err := h.faqs.Update(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, f)
}

// DeleteFAQ godoc
// @ID          deleteFAQ
// @Summary     Delete a FAQ
// @Tags        FAQs
// @Security    BearerAuth
// @Param       id   path  string  true  "FAQ ID"
// @Success     204  {string}  string "No Content"
// @Router      /faqs/{id} [delete]
func (h *Handlers) DeleteFAQ(c *gin.Context) {
	if err := h.faqs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
