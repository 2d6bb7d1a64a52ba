package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

type stubPolicy map[string]bool

func (p stubPolicy) Enforce(role, obj, act string) (bool, error) {
	if role == "broken" {
		return false, errors.New("policy store down")
	}
	return p[role+":"+obj+":"+act], nil
}

func stubAuth() Authenticator {
	return AuthenticatorFunc(func(_ context.Context, token string) (*domain.User, *domain.Session, error) {
		switch token {
		case "good-staff":
			return &domain.User{ID: "staff-1", Role: domain.RoleStaff}, &domain.Session{ID: "sess-1"}, nil
		case "good-admin":
			return &domain.User{ID: "admin-1", Role: domain.RoleAdmin}, &domain.Session{ID: "sess-2"}, nil
		case "boom":
			return nil, nil, errors.New("db closed")
		default:
			return nil, nil, ErrUnauthenticated
		}
	})
}

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger())
	pol := stubPolicy{"admin:report:delete": true}

	g := r.Group("/", RequireAuth(stubAuth(), nil))
	g.GET("/me", func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": u.ID, "role": c.GetString(ctxRole), "session": SessionID(c)})
	})
	g.DELETE("/reports/:id", Authorize(pol, "report", "delete"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doAuth(r http.Handler, method, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	captureLogger(t)
	r := authRouter()

	cases := []struct {
		name  string
		authz string
		code  int
		ecode string
	}{
		{"missing header", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "unauthorized"},
		{"empty token", "Bearer   ", http.StatusUnauthorized, "unauthorized"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, "unauthorized"},
		{"server error", "Bearer boom", http.StatusInternalServerError, "internal_error"},
		{"valid lowercase scheme", "bearer good-staff", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doAuth(r, http.MethodGet, "/me", tc.authz)
			if w.Code != tc.code {
				t.Fatalf("code=%d; want %d body=%s", w.Code, tc.code, w.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if tc.ecode != "" && body["code"] != tc.ecode {
				t.Fatalf("error code=%v; want %s", body["code"], tc.ecode)
			}
			if tc.code == http.StatusOK && (body["id"] != "staff-1" || body["role"] != "staff" || body["session"] != "sess-1") {
				t.Fatalf("actor not stored: %v", body)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	captureLogger(t)
	r := authRouter()

	if w := doAuth(r, http.MethodDelete, "/reports/report-1", "Bearer good-staff"); w.Code != http.StatusForbidden {
		t.Fatalf("staff delete: code=%d; want 403", w.Code)
	}
	if w := doAuth(r, http.MethodDelete, "/reports/report-1", "Bearer good-admin"); w.Code != http.StatusNoContent {
		t.Fatalf("admin delete: code=%d; want 204", w.Code)
	}
}

func TestAuthorize_NoRoleAndPolicyError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.GET("/anon", Authorize(stubPolicy{}, "report", "read"), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/broken", func(c *gin.Context) { c.Set(ctxRole, "broken"); c.Next() },
		Authorize(stubPolicy{}, "report", "read"), func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := doAuth(r, http.MethodGet, "/anon", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no role: code=%d; want 401", w.Code)
	}
	if w := doAuth(r, http.MethodGet, "/broken", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("policy error: code=%d; want 500", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":    "abc",
		"  BEARER x.y ": "x.y",
		"Bearer":        "",
		"Token abc":     "",
		"":              "",
	}
	for in, want := range cases {
		got, ok := bearerToken(in)
		if got != want || ok != (want != "") {
			t.Fatalf("bearerToken(%q) = %q,%v; want %q", in, got, ok, want)
		}
	}
}
