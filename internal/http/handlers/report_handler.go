// Report HTTP handlers.
//
//   - GET    /reports              (list, paginated, ETag support)
//   - POST   /reports              (create, Idempotency-Key support)
//   - GET    /reports/{id}
//   - PATCH  /reports/{id}         (merge-patch, optional If-Match)
//   - DELETE /reports/{id}         (admin, master)
//   - GET    /reports/{id}/lock
//   - POST   /reports/{id}/lock
//   - DELETE /reports/{id}/lock
//
// Staff only see and touch reports they created; roles holding report
// read_all see every report.
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/http/middleware"
	"github.com/tbourn/go-helpdesk-backend/internal/permission"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
)

// HeaderIdempotencyReplayed marks a response served from a previous request
// with the same Idempotency-Key.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

//
// DTOs
//

// AttachmentInput describes a file attached to a report.
type AttachmentInput struct {
	ID   string `json:"id"`
	Name string `json:"name" binding:"required,max=255"  example:"screenshot.png"`
	URL  string `json:"url"  binding:"required,max=2048" example:"/uploads/screenshot.png"`
	Type string `json:"type" binding:"required,oneof=image video document" example:"image"`
	Size int64  `json:"size" binding:"gte=0" example:"20480"`
}

// CreateReportRequest is the JSON payload for filing a report.
type CreateReportRequest struct {
	Title        string            `json:"title"         binding:"required,max=255" example:"Printer lantai 2 rusak"`
	Description  string            `json:"description"   binding:"required"         example:"Kertas selalu macet."`
	Status       string            `json:"status"        binding:"report_status"    example:"pending"`
	AssignedTo   string            `json:"assigned_to"   binding:"max=64"`
	Priority     string            `json:"priority"      binding:"priority"         example:"medium"`
	Urgency      string            `json:"urgency"       binding:"urgency"          example:"low"`
	Category     string            `json:"category"      binding:"max=128"          example:"Hardware"`
	ReporterName string            `json:"reporter_name" binding:"max=255"`
	PhoneNumber  string            `json:"phone_number"  binding:"max=64"`
	ProblemType  string            `json:"problem_type"  binding:"max=128"`
	Attachments  []AttachmentInput `json:"attachments"   binding:"omitempty,max=20,dive"`
}

// UpdateReportRequest is a merge-patch of a report. A status change appends
// a history entry carrying status_note.
type UpdateReportRequest struct {
	Title           *string            `json:"title"            binding:"omitempty,min=1,max=255"`
	Description     *string            `json:"description"      binding:"omitempty,min=1"`
	Status          *string            `json:"status"           binding:"omitempty,report_status" example:"in-progress"`
	StatusNote      *string            `json:"status_note"      binding:"omitempty,max=2000"`
	AssignedTo      *string            `json:"assigned_to"      binding:"omitempty,max=64"`
	Priority        *string            `json:"priority"         binding:"omitempty,priority"`
	Urgency         *string            `json:"urgency"          binding:"omitempty,urgency"`
	Category        *string            `json:"category"         binding:"omitempty,max=128"`
	ReporterName    *string            `json:"reporter_name"    binding:"omitempty,max=255"`
	PhoneNumber     *string            `json:"phone_number"     binding:"omitempty,max=64"`
	ProblemType     *string            `json:"problem_type"     binding:"omitempty,max=128"`
	Attachments     *[]AttachmentInput `json:"attachments"      binding:"omitempty,max=20,dive"`
	ExpectedVersion *int64             `json:"expected_version" binding:"omitempty,gte=1"`
}

// ListReportsResponse wraps a page of reports and pagination information.
type ListReportsResponse struct {
	Reports    []domain.Report `json:"reports"`
	Pagination Pagination      `json:"pagination"`
}

// LockStatusResponse describes the advisory lock of a report.
type LockStatusResponse struct {
	Locked bool               `json:"locked"`
	Lock   *services.LockInfo `json:"lock,omitempty"`
}

//
// Helpers
//

func attachments(in []AttachmentInput, uploader string, now time.Time) []domain.Attachment {
	out := make([]domain.Attachment, 0, len(in))
	for _, a := range in {
		id := a.ID
		if id == "" {
			id = "att-" + uuid.NewString()
		}
		out = append(out, domain.Attachment{
			ID:         id,
			Name:       a.Name,
			URL:        a.URL,
			Type:       a.Type,
			Size:       a.Size,
			UploadedBy: uploader,
			UploadedAt: now,
		})
	}
	return out
}

func optStatus(s *string) *domain.ReportStatus {
	if s == nil {
		return nil
	}
	st := domain.ReportStatus(*s)
	return &st
}

func reportETag(r *domain.Report) string {
	return fmt.Sprintf(`W/"report:%s:%d"`, r.ID, r.Version)
}

// parseIfMatch extracts the version from an If-Match value produced by
// reportETag. ok is false for absent or foreign values.
func parseIfMatch(v, id string) (int64, bool) {
	prefix := `W/"report:` + id + `:`
	if !strings.HasPrefix(v, prefix) || !strings.HasSuffix(v, `"`) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(v, prefix), `"`), 10, 64)
	return n, err == nil
}

// filterKey fingerprints a list filter for the collection ETag.
func filterKey(f repo.ReportFilter, page, pageSize int) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%s|%d|%d", f.Status, f.CreatedBy, f.AssignedTo, page, pageSize)
	return h.Sum32()
}

// reportFor loads id and checks that u may see it. It writes the error
// response and returns nil on failure.
func (h *Handlers) reportFor(c *gin.Context, u *domain.User, id string) *domain.Report {
	r, err := h.reports.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return nil
	}
	if r.CreatedBy != u.ID && !h.can(u.Role, permission.ResReport, permission.ActReadAll) {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "report belongs to another user")
		return nil
	}
	return r
}

//
// Handlers
//

// ListReports godoc
// @ID          listReports
// @Summary     List reports (paginated)
// @Description Staff see only their own reports. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Reports
// @Security    BearerAuth
// @Produce     json
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       status         query   string  false "Filter by status"  Enums(pending, in-progress, on-hold, completed, rejected)
// @Param       created_by     query   string  false "Filter by creator (admin, master)"
// @Param       assigned_to    query   string  false "Filter by assignee"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListReportsResponse
// @Header      200  {string}  ETag "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Router      /reports [get]
func (h *Handlers) ListReports(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()

	f := repo.ReportFilter{
		Status:     domain.ReportStatus(c.Query("status")),
		CreatedBy:  c.Query("created_by"),
		AssignedTo: c.Query("assigned_to"),
	}
	if f.Status != "" && !f.Status.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, "invalid report status")
		return
	}
	if !h.can(u.Role, permission.ResReport, permission.ActReadAll) {
		f.CreatedBy = u.ID
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, versions, err := h.reports.Stats(ctx, f); err == nil {
		etag := fmt.Sprintf(`W/"reports:%08x:%d:%d"`, filterKey(f, page, pageSize), count, versions)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.reports.ListPage(ctx, f, page, pageSize)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListReportsResponse{Reports: items, Pagination: newPagination(page, pageSize, total)})
}

// CreateReport godoc
// @ID          createReport
// @Summary     File a report
// @Description Creates a report. Reports filed by staff notify every admin and master. A repeated Idempotency-Key returns the original report.
// @Tags        Reports
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                        false "Retry key"
// @Param       body             body    handlers.CreateReportRequest  true  "New report"
// @Success     201  {object}  domain.Report
// @Success     200  {object}  domain.Report "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Router      /reports [post]
func (h *Handlers) CreateReport(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()

	if rid, replay := middleware.ReplayResourceID(c); replay {
		if r, err := h.reports.Get(ctx, rid); err == nil && r.CreatedBy == u.ID {
			c.Header(HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusOK, r)
			return
		}
	}

	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}

	r, err := h.reports.Add(ctx, u, services.NewReport{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Status:       domain.ReportStatus(req.Status),
		AssignedTo:   req.AssignedTo,
		Priority:     req.Priority,
		Urgency:      req.Urgency,
		Category:     req.Category,
		ReporterName: req.ReporterName,
		PhoneNumber:  req.PhoneNumber,
		ProblemType:  req.ProblemType,
		Attachments:  attachments(req.Attachments, u.ID, time.Now().UTC()),
	})
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	h.remember(c, u.ID, r.ID, http.StatusCreated)
	ok(c, http.StatusCreated, r)
}

// remember records a keyed create. Failures only cost future replays.
func (h *Handlers) remember(c *gin.Context, userID, resourceID string, status int) {
	key, has := middleware.GetIdempotencyKey(c)
	if !has || h.idem == nil {
		return
	}
	if err := h.idem.Remember(c.Request.Context(), userID, middleware.IdempotencyScope(c), key, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("resource_id", resourceID).Msg("idempotency record not stored")
	}
}

// GetReport godoc
// @ID          getReport
// @Summary     Get a report
// @Tags        Reports
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Report ID"  example(report-1)
// @Success     200  {object}  domain.Report
// @Header      200  {string}  ETag "Weak ETag carrying the report version"
// @Failure     403  {object}  handlers.ErrorResponse "Not your report"
// @Failure     404  {object}  handlers.ErrorResponse "Report not found"
// @Router      /reports/{id} [get]
func (h *Handlers) GetReport(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	r := h.reportFor(c, u, c.Param("id"))
	if r == nil {
		return
	}
	c.Header("ETag", reportETag(r))
	ok(c, http.StatusOK, r)
}

// UpdateReport godoc
// @ID          updateReport
// @Summary     Update a report
// @Description Merge-patches a report. A status change by an admin or master who did not file the report notifies its creator. Send If-Match (or expected_version) to reject concurrent edits.
// @Tags        Reports
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id        path    string                        true  "Report ID"
// @Param       If-Match  header  string                        false "ETag from GET /reports/{id}"
// @Param       body      body    handlers.UpdateReportRequest  true  "Fields to change"
// @Success     200  {object}  domain.Report
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Report not found"
// @Failure     409  {object}  handlers.ErrorResponse "Version conflict"
// @Router      /reports/{id} [patch]
func (h *Handlers) UpdateReport(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	id := c.Param("id")
	if h.reportFor(c, u, id) == nil {
		return
	}

	var req UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}
	expected := req.ExpectedVersion
	if im := c.GetHeader("If-Match"); im != "" {
		v, valid := parseIfMatch(im, id)
		if !valid {
			fail(c, http.StatusPreconditionFailed, ErrCodeVersionConflict, "If-Match does not name this report")
			return
		}
		expected = &v
	}

	p := services.ReportPatch{
		Title:           req.Title,
		Description:     req.Description,
		Status:          optStatus(req.Status),
		StatusNote:      req.StatusNote,
		AssignedTo:      req.AssignedTo,
		Priority:        req.Priority,
		Urgency:         req.Urgency,
		Category:        req.Category,
		ReporterName:    req.ReporterName,
		PhoneNumber:     req.PhoneNumber,
		ProblemType:     req.ProblemType,
		ExpectedVersion: expected,
	}
	if req.Attachments != nil {
		a := attachments(*req.Attachments, u.ID, time.Now().UTC())
		p.Attachments = &a
	}

	r, err := h.reports.Update(c.Request.Context(), u, id, p)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	c.Header("ETag", reportETag(r))
	ok(c, http.StatusOK, r)
}

// DeleteReport godoc
// @ID          deleteReport
// @Summary     Delete a report
// @Description Removes the report and its history. Notifications and chat messages are kept. Deleting an absent id succeeds.
// @Tags        Reports
// @Security    BearerAuth
// @Param       id   path  string  true  "Report ID"
// @Success     204  {string}  string "No Content"
// @Router      /reports/{id} [delete]
func (h *Handlers) DeleteReport(c *gin.Context) {
	if err := h.reports.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// GetReportLock godoc
// @ID          getReportLock
// @Summary     Inspect a report lock
// @Description Returns the live lock, if any. Observing an expired lock releases it.
// @Tags        Reports
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Report ID"
// @Success     200  {object}  handlers.LockStatusResponse
// @Failure     404  {object}  handlers.ErrorResponse "Report not found"
// @Router      /reports/{id}/lock [get]
func (h *Handlers) GetReportLock(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	id := c.Param("id")
	if h.reportFor(c, u, id) == nil {
		return
	}
	info, err := h.reports.LockInfo(c.Request.Context(), id)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, LockStatusResponse{Locked: info != nil, Lock: info})
}

// LockReport godoc
// @ID          lockReport
// @Summary     Acquire a report lock
// @Description Takes the advisory edit lock. Re-locking your own lock renews it. Fails with 409 while someone else holds a live lock.
// @Tags        Reports
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Report ID"
// @Success     200  {object}  handlers.LockStatusResponse
// @Failure     404  {object}  handlers.ErrorResponse "Report not found"
// @Failure     409  {object}  handlers.ErrorResponse "Locked by another user"
// @Router      /reports/{id}/lock [post]
func (h *Handlers) LockReport(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if h.reportFor(c, u, id) == nil {
		return
	}

	acquired, err := h.reports.Lock(ctx, id, u.ID)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	if !acquired {
		fail(c, http.StatusConflict, ErrCodeReportLocked, "report is being edited by another user")
		return
	}
	info, err := h.reports.LockInfo(ctx, id)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, LockStatusResponse{Locked: info != nil, Lock: info})
}

// UnlockReport godoc
// @ID          unlockReport
// @Summary     Release a report lock
// @Description Releases your lock. Unlocking an unlocked report succeeds.
// @Tags        Reports
// @Security    BearerAuth
// @Param       id   path  string  true  "Report ID"
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse "Report not found"
// @Failure     409  {object}  handlers.ErrorResponse "Locked by another user"
// @Router      /reports/{id}/lock [delete]
func (h *Handlers) UnlockReport(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	id := c.Param("id")
	if h.reportFor(c, u, id) == nil {
		return
	}
	released, err := h.reports.Unlock(c.Request.Context(), id, u.ID)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	if !released {
		fail(c, http.StatusConflict, ErrCodeReportLocked, "report is locked by another user")
		return
	}
	noContent(c)
}
