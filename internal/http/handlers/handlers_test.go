package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/http/middleware"
	"github.com/tbourn/go-helpdesk-backend/internal/permission"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
)

// ---------- test DB + fixtures ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	for _, u := range []domain.User{
		{ID: "master-1", Name: "Master Admin", Email: "master@helpdesk.com", Role: domain.RoleMaster},
		{ID: "admin-1", Name: "Admin User", Email: "admin@helpdesk.com", Role: domain.RoleAdmin},
		{ID: "staff-1", Name: "Staff User", Email: "staff@helpdesk.com", Role: domain.RoleStaff},
		{ID: "staff-2", Name: "Second Staff", Email: "staff2@helpdesk.com", Role: domain.RoleStaff},
	} {
		u := u
		u.PasswordHash = string(hash)
		u.CreatedAt = time.Now().UTC()
		if err := repo.CreateUser(context.Background(), db, &u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	return db
}

// memIdempotency is an in-memory IdempotencyStore and lookup.
type memIdempotency struct {
	mu   sync.Mutex
	recs map[string]string
}

func (m *memIdempotency) Remember(_ context.Context, userID, scope, key, resourceID string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userID + "|" + scope + "|" + key
	if _, dup := m.recs[k]; !dup {
		m.recs[k] = resourceID
	}
	return nil
}

func (m *memIdempotency) lookup(_ context.Context, userID, scope, key string, _ time.Time) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.recs[userID+"|"+scope+"|"+key]
	return id, ok, nil
}

// newTestAPI mounts the handlers behind a stub authenticator whose bearer
// token is the user id.
func newTestAPI(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)

	policy, err := permission.NewEnforcer(db, zerolog.Nop())
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	texts := services.NewTexts("en")
	idem := &memIdempotency{recs: map[string]string{}}
	h := New(Deps{
		Auth:          services.NewAuthService(db, []byte("handlers-test-secret-000"), time.Hour),
		Users:         services.NewUserService(db, bcrypt.MinCost),
		Reports:       services.NewReportService(db, texts, 30*time.Minute),
		Notifications: services.NewNotificationService(db),
		FAQs:          services.NewFAQService(db, nil),
		Chat:          services.NewChatService(db, texts, false),
		Policy:        policy,
		Idempotency:   idem,
	})

	auth := middleware.AuthenticatorFunc(func(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
		u, err := repo.GetUser(ctx, db, token)
		if err != nil {
			return nil, nil, middleware.ErrUnauthenticated
		}
		return u, nil, nil
	})
	keyed := func(scope string) gin.HandlerFunc {
		return middleware.IdempotencyValidator(middleware.IdempotencyOptions{Scope: scope}, idem.lookup)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	a := r.Group("", middleware.RequireAuth(auth, nil))

	a.PATCH("/users/me", h.UpdateMe)
	a.POST("/users", h.CreateUser)
	a.GET("/users", h.ListUsers)
	a.DELETE("/users/:id", h.DeleteUser)

	a.GET("/reports", h.ListReports)
	a.POST("/reports", keyed("reports"), h.CreateReport)
	a.GET("/reports/:id", h.GetReport)
	a.PATCH("/reports/:id", h.UpdateReport)
	a.GET("/reports/:id/lock", h.GetReportLock)
	a.POST("/reports/:id/lock", h.LockReport)
	a.DELETE("/reports/:id/lock", h.UnlockReport)

	a.GET("/notifications", h.ListNotifications)
	a.POST("/notifications", h.CreateNotification)
	a.POST("/notifications/read-all", h.MarkAllNotificationsRead)
	a.PATCH("/notifications/:id/read", h.MarkNotificationRead)
	a.DELETE("/notifications/:id", h.DeleteNotification)

	a.GET("/faqs", h.ListFAQs)
	a.GET("/faqs/search", h.SearchFAQs)
	a.POST("/faqs", h.CreateFAQ)
	a.GET("/faqs/:id", h.GetFAQ)
	a.GET("/faqs/:id/html", h.FAQHTML)
	a.PATCH("/faqs/:id", h.UpdateFAQ)

	a.POST("/chat/messages", keyed("chat_messages"), h.SendMessage)
	a.GET("/chat/channel", h.ChannelMessages)
	a.GET("/chat/own-conversations", h.OwnConversations)
	a.POST("/chat/read", h.MarkChannelRead)
	return r
}

func call(r *gin.Engine, method, path, user string, body any, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func body[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (%s)", v, err, w.Body.String())
	}
	return v
}

// ---------- reports ----------

func TestReports_ETagAndOptimisticUpdate(t *testing.T) {
	r := newTestAPI(t)

	w := call(r, http.MethodPost, "/reports", "staff-1", map[string]any{"title": "Lampu mati", "description": "Lantai 3"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	rep := body[domain.Report](t, w)
	if rep.Status != domain.StatusPending || rep.CreatedBy != "staff-1" || len(rep.StatusHistory) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}

	w = call(r, http.MethodGet, "/reports/"+rep.ID, "staff-1", nil)
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || etag != fmt.Sprintf(`W/"report:%s:1"`, rep.ID) {
		t.Fatalf("get = %d etag=%q", w.Code, etag)
	}

	w = call(r, http.MethodPatch, "/reports/"+rep.ID, "admin-1", map[string]any{"status": "in-progress"}, "If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d %s", w.Code, w.Body.String())
	}
	upd := body[domain.Report](t, w)
	if upd.Status != domain.StatusInProgress || upd.Version != 2 || len(upd.StatusHistory) != 2 {
		t.Fatalf("unexpected update: status=%s version=%d history=%d", upd.Status, upd.Version, len(upd.StatusHistory))
	}

	// Stale version.
	w = call(r, http.MethodPatch, "/reports/"+rep.ID, "admin-1", map[string]any{"title": "x"}, "If-Match", etag)
	if w.Code != http.StatusConflict || body[ErrorResponse](t, w).Code != ErrCodeVersionConflict {
		t.Fatalf("stale update = %d %s", w.Code, w.Body.String())
	}
	// If-Match naming another report.
	w = call(r, http.MethodPatch, "/reports/"+rep.ID, "admin-1", map[string]any{"title": "x"}, "If-Match", `W/"report:other:2"`)
	if w.Code != http.StatusPreconditionFailed {
		t.Fatalf("foreign If-Match = %d", w.Code)
	}

	// Staff cannot touch another staff member's report.
	if w := call(r, http.MethodPatch, "/reports/"+rep.ID, "staff-2", map[string]any{"title": "x"}); w.Code != http.StatusForbidden {
		t.Fatalf("foreign staff update = %d", w.Code)
	}
}

func TestReports_ListETagNotModifiedAndFilterValidation(t *testing.T) {
	r := newTestAPI(t)
	for i := 0; i < 3; i++ {
		if w := call(r, http.MethodPost, "/reports", "staff-1", map[string]any{"title": fmt.Sprintf("r%d", i), "description": "d"}); w.Code != http.StatusCreated {
			t.Fatalf("create = %d", w.Code)
		}
	}

	w := call(r, http.MethodGet, "/reports?page_size=2", "admin-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	page := body[ListReportsResponse](t, w)
	if len(page.Reports) != 2 || page.Pagination.Total != 3 || !page.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", page.Pagination)
	}
	etag := w.Header().Get("ETag")
	if w := call(r, http.MethodGet, "/reports?page_size=2", "admin-1", nil, "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("conditional list = %d", w.Code)
	}

	if w := call(r, http.MethodGet, "/reports?status=done", "admin-1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d", w.Code)
	}
	// staff-2 has no reports and may not widen the filter.
	w = call(r, http.MethodGet, "/reports?created_by=staff-1", "staff-2", nil)
	if w.Code != http.StatusOK || body[ListReportsResponse](t, w).Pagination.Total != 0 {
		t.Fatalf("staff list scope = %d %s", w.Code, w.Body.String())
	}
}

func TestReports_LockKeepsIfMatchValid(t *testing.T) {
	r := newTestAPI(t)

	w := call(r, http.MethodPost, "/reports", "staff-1", map[string]any{"title": "Printer", "description": "Macet"})
	rep := body[domain.Report](t, w)
	w = call(r, http.MethodGet, "/reports/"+rep.ID, "admin-1", nil)
	etag := w.Header().Get("ETag")
	list := call(r, http.MethodGet, "/reports", "admin-1", nil).Header().Get("ETag")

	if w := call(r, http.MethodPost, "/reports/"+rep.ID+"/lock", "admin-1", nil); w.Code != http.StatusOK {
		t.Fatalf("lock = %d %s", w.Code, w.Body.String())
	}
	if w := call(r, http.MethodGet, "/reports/"+rep.ID+"/lock", "staff-1", nil); w.Code != http.StatusOK {
		t.Fatalf("lock info = %d", w.Code)
	}
	// The list shows lock state, so its validator must change.
	if w := call(r, http.MethodGet, "/reports", "admin-1", nil, "If-None-Match", list); w.Code != http.StatusOK {
		t.Fatalf("list after lock = %d, want fresh 200", w.Code)
	}

	w = call(r, http.MethodPatch, "/reports/"+rep.ID, "admin-1", map[string]any{"status": "in-progress"}, "If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("update after own lock = %d %s", w.Code, w.Body.String())
	}
	if upd := body[domain.Report](t, w); upd.Version != 2 || upd.LockedBy != "admin-1" {
		t.Fatalf("unexpected report: version=%d locked_by=%q", upd.Version, upd.LockedBy)
	}

	if w := call(r, http.MethodDelete, "/reports/"+rep.ID+"/lock", "admin-1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("unlock = %d", w.Code)
	}
	w = call(r, http.MethodGet, "/reports/"+rep.ID, "admin-1", nil)
	if got := w.Header().Get("ETag"); got != fmt.Sprintf(`W/"report:%s:2"`, rep.ID) {
		t.Fatalf("etag after unlock = %q", got)
	}
}

func TestReports_CreateValidation(t *testing.T) {
	r := newTestAPI(t)
	cases := []map[string]any{
		{"description": "no title"},
		{"title": "t", "description": "d", "status": "archived"},
		{"title": "t", "description": "d", "priority": "urgent"},
		{"title": "t", "description": "d", "attachments": []map[string]any{{"name": "a", "url": "/a", "type": "audio"}}},
	}
	for i, c := range cases {
		w := call(r, http.MethodPost, "/reports", "staff-1", c)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("case %d: status=%d body=%s", i, w.Code, w.Body.String())
		}
	}
}

func TestAttachments_GeneratedIDsAreUnique(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := []AttachmentInput{{Name: "a.png", URL: "/a", Type: "image"}, {Name: "b.pdf", URL: "/b", Type: "document"}}
	seen := map[string]bool{}
	// Two requests stamped with the same instant.
	for round := 0; round < 2; round++ {
		for _, a := range attachments(in, "staff-1", now) {
			if !strings.HasPrefix(a.ID, "att-") || seen[a.ID] {
				t.Fatalf("bad or repeated attachment id %q", a.ID)
			}
			seen[a.ID] = true
		}
	}
	if got := attachments([]AttachmentInput{{ID: "keep", Name: "c"}}, "staff-1", now); got[0].ID != "keep" {
		t.Fatalf("client id replaced: %q", got[0].ID)
	}
}

// ---------- notifications ----------

func TestNotifications_OwnershipAndNoOps(t *testing.T) {
	r := newTestAPI(t)

	w := call(r, http.MethodPost, "/notifications", "admin-1", map[string]any{"user_id": "staff-1", "title": "Info", "message": "Server maintenance", "type": "warning"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	n := body[domain.Notification](t, w)

	if w := call(r, http.MethodPost, "/notifications", "admin-1", map[string]any{"user_id": "ghost", "title": "x", "message": "y"}); w.Code != http.StatusNotFound {
		t.Fatalf("missing recipient = %d", w.Code)
	}
	if w := call(r, http.MethodPost, "/notifications", "admin-1", map[string]any{"user_id": "staff-1", "title": "x", "message": "y", "type": "fatal"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad type = %d", w.Code)
	}

	if w := call(r, http.MethodPatch, "/notifications/"+n.ID+"/read", "staff-2", nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign mark read = %d", w.Code)
	}
	if w := call(r, http.MethodPatch, "/notifications/absent/read", "staff-2", nil); w.Code != http.StatusNoContent {
		t.Fatalf("absent mark read = %d", w.Code)
	}
	if w := call(r, http.MethodDelete, "/notifications/absent", "staff-2", nil); w.Code != http.StatusNoContent {
		t.Fatalf("absent delete = %d", w.Code)
	}

	w = call(r, http.MethodPost, "/notifications/read-all", "staff-1", nil)
	if w.Code != http.StatusOK || body[MarkAllReadResponse](t, w).Updated != 1 {
		t.Fatalf("read-all = %d %s", w.Code, w.Body.String())
	}
	if w := call(r, http.MethodDelete, "/notifications/"+n.ID, "staff-1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete own = %d", w.Code)
	}
	w = call(r, http.MethodGet, "/notifications", "staff-1", nil)
	if w.Code != http.StatusOK || len(body[[]domain.Notification](t, w)) != 0 {
		t.Fatalf("list after delete = %d %s", w.Code, w.Body.String())
	}
}

// ---------- FAQs ----------

func TestFAQs_VisibilitySearchAndHTML(t *testing.T) {
	r := newTestAPI(t)

	w := call(r, http.MethodPost, "/faqs", "admin-1", map[string]any{
		"question": "Cara reset password akun",
		"answer":   "Hubungi admin",
		"type":     "article",
		"content":  "# Reset\n\n<script>alert(1)</script>Klik **lupa password**.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	article := body[domain.FAQ](t, w)

	w = call(r, http.MethodPost, "/faqs", "admin-1", map[string]any{"question": "Draft", "answer": "later", "is_active": false})
	if w.Code != http.StatusCreated {
		t.Fatalf("create draft = %d", w.Code)
	}
	draft := body[domain.FAQ](t, w)

	if w := call(r, http.MethodGet, "/faqs/"+draft.ID, "staff-1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("staff sees inactive = %d", w.Code)
	}
	if w := call(r, http.MethodGet, "/faqs/"+draft.ID, "admin-1", nil); w.Code != http.StatusOK {
		t.Fatalf("admin reads inactive = %d", w.Code)
	}
	w = call(r, http.MethodGet, "/faqs?all=true", "admin-1", nil)
	if w.Code != http.StatusOK || len(body[[]domain.FAQ](t, w)) != 2 {
		t.Fatalf("admin all = %d %s", w.Code, w.Body.String())
	}
	w = call(r, http.MethodGet, "/faqs", "staff-1", nil)
	if w.Code != http.StatusOK || len(body[[]domain.FAQ](t, w)) != 1 {
		t.Fatalf("staff active = %d %s", w.Code, w.Body.String())
	}

	w = call(r, http.MethodGet, "/faqs/search?q=reset+password", "staff-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	res := body[SearchFAQsResponse](t, w)
	if len(res.Hits) != 1 || res.Hits[0].FAQ.ID != article.ID {
		t.Fatalf("unexpected hits: %+v", res.Hits)
	}
	if w := call(r, http.MethodGet, "/faqs/search?q=+", "staff-1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty query = %d", w.Code)
	}

	w = call(r, http.MethodGet, "/faqs/"+article.ID+"/html", "staff-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("html = %d", w.Code)
	}
	html := w.Body.String()
	if !bytes.Contains([]byte(html), []byte("<strong>lupa password</strong>")) || bytes.Contains([]byte(html), []byte("<script")) {
		t.Fatalf("unexpected html: %s", html)
	}

	// Activating the draft makes it visible to staff.
	if w := call(r, http.MethodPatch, "/faqs/"+draft.ID, "admin-1", map[string]any{"is_active": true}); w.Code != http.StatusOK {
		t.Fatalf("activate = %d", w.Code)
	}
	if w := call(r, http.MethodGet, "/faqs/"+draft.ID, "staff-1", nil); w.Code != http.StatusOK {
		t.Fatalf("staff after activation = %d", w.Code)
	}
}

// ---------- chat ----------

func TestChat_SendReplayAndChannelAccess(t *testing.T) {
	r := newTestAPI(t)

	msg := map[string]any{"recipient_id": "admin-1", "message": "Halo admin", "chat_channel": "staff-staff-1-admin-1"}
	w := call(r, http.MethodPost, "/chat/messages", "staff-1", msg, middleware.HeaderIdempotencyKey, "chat-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("send = %d %s", w.Code, w.Body.String())
	}
	first := body[[]domain.ChatMessage](t, w)
	if len(first) != 1 || first[0].ChatChannel != "staff-staff-1-admin-1" {
		t.Fatalf("unexpected messages: %+v", first)
	}

	w = call(r, http.MethodPost, "/chat/messages", "staff-1", msg, middleware.HeaderIdempotencyKey, "chat-1")
	if w.Code != http.StatusOK || w.Header().Get(HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("replay = %d %s", w.Code, w.Body.String())
	}
	if again := body[[]domain.ChatMessage](t, w); len(again) != 1 || again[0].ID != first[0].ID {
		t.Fatalf("replay returned %+v", again)
	}

	if w := call(r, http.MethodPost, "/chat/messages", "staff-1", map[string]any{"message": "  "}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank message = %d", w.Code)
	}
	w = call(r, http.MethodPost, "/chat/messages", "staff-2", map[string]any{"recipient_id": "admin-1", "message": "hi", "chat_channel": "staff-staff-1-admin-1"})
	if w.Code != http.StatusBadRequest || body[ErrorResponse](t, w).Code != ErrCodeInvalidChannel {
		t.Fatalf("foreign channel send = %d %s", w.Code, w.Body.String())
	}

	if w := call(r, http.MethodGet, "/chat/channel?channel=staff-staff-1-admin-1", "staff-2", nil); w.Code != http.StatusForbidden {
		t.Fatalf("staff-2 reading staff-1 thread = %d", w.Code)
	}
	w = call(r, http.MethodGet, "/chat/channel?channel=staff-staff-1-admin-1", "admin-1", nil)
	if w.Code != http.StatusOK || len(body[[]domain.ChatMessage](t, w)) != 1 {
		t.Fatalf("admin reading thread = %d %s", w.Code, w.Body.String())
	}
	if w := call(r, http.MethodGet, "/chat/channel", "admin-1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing channel = %d", w.Code)
	}
	w = call(r, http.MethodGet, "/chat/own-conversations", "staff-1", nil)
	if w.Code != http.StatusOK || len(body[[]domain.ChatMessage](t, w)) != 1 {
		t.Fatalf("own conversations = %d %s", w.Code, w.Body.String())
	}
}

func TestChat_BroadcastReplayAndStaffDirectChannel(t *testing.T) {
	r := newTestAPI(t)

	msg := map[string]any{"message": "Printer rusak"}
	w := call(r, http.MethodPost, "/chat/messages", "staff-1", msg, middleware.HeaderIdempotencyKey, "bc-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("broadcast = %d %s", w.Code, w.Body.String())
	}
	first := body[[]domain.ChatMessage](t, w)
	if len(first) != 2 {
		t.Fatalf("want one copy per admin/master, got %d", len(first))
	}
	w = call(r, http.MethodPost, "/chat/messages", "staff-1", msg, middleware.HeaderIdempotencyKey, "bc-1")
	again := body[[]domain.ChatMessage](t, w)
	if w.Code != http.StatusOK || len(again) != len(first) {
		t.Fatalf("replay = %d with %d copies", w.Code, len(again))
	}
	ids := map[string]bool{first[0].ID: true, first[1].ID: true}
	for _, m := range again {
		if !ids[m.ID] {
			t.Fatalf("replay returned unknown copy %s", m.ID)
		}
	}

	w = call(r, http.MethodPost, "/chat/messages", "staff-1", map[string]any{"recipient_id": "staff-2", "message": "hai"})
	if w.Code != http.StatusCreated || body[[]domain.ChatMessage](t, w)[0].ChatChannel != "staff-1-staff-2" {
		t.Fatalf("direct = %d %s", w.Code, w.Body.String())
	}
	for _, id := range []string{"staff-1", "staff-2"} {
		if w := call(r, http.MethodGet, "/chat/channel?channel=staff-1-staff-2", id, nil); w.Code != http.StatusOK {
			t.Fatalf("%s reading own direct channel = %d", id, w.Code)
		}
	}
	w = call(r, http.MethodPost, "/chat/read", "staff-2", map[string]any{"channel": "staff-1-staff-2"})
	if w.Code != http.StatusOK || body[MarkChannelReadResponse](t, w).Updated != 1 {
		t.Fatalf("mark read = %d %s", w.Code, w.Body.String())
	}
}

// ---------- users ----------

func TestUsers_ValidationSelfUpdateAndDelete(t *testing.T) {
	r := newTestAPI(t)

	w := call(r, http.MethodPost, "/users", "master-1", map[string]any{"name": "X", "email": "x@helpdesk.com", "password": "password123", "role": "owner"})
	if w.Code != http.StatusBadRequest || body[ErrorResponse](t, w).Code != ErrCodeValidation {
		t.Fatalf("bad role = %d %s", w.Code, w.Body.String())
	}
	if w := call(r, http.MethodGet, "/users?role=owner", "admin-1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad role filter = %d", w.Code)
	}

	w = call(r, http.MethodPatch, "/users/me", "staff-1", map[string]any{"name": "Budi"})
	if w.Code != http.StatusOK || body[domain.User](t, w).Name != "Budi" {
		t.Fatalf("update me = %d %s", w.Code, w.Body.String())
	}
	w = call(r, http.MethodPatch, "/users/me", "staff-1", map[string]any{"email": "admin@helpdesk.com"})
	if w.Code != http.StatusConflict || body[ErrorResponse](t, w).Code != ErrCodeEmailTaken {
		t.Fatalf("email collision = %d %s", w.Code, w.Body.String())
	}

	if w := call(r, http.MethodDelete, "/users/staff-2", "master-1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := call(r, http.MethodDelete, "/users/staff-2", "master-1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete absent = %d", w.Code)
	}
	// A deleted user's token no longer authenticates.
	if w := call(r, http.MethodGet, "/notifications", "staff-2", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("deleted user = %d", w.Code)
	}
}
