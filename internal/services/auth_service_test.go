package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-helpdesk-backend/internal/repo"
)

func newAuth(t *testing.T) (*AuthService, *fakeClock) {
	t.Helper()
	db := newServiceDB(t)
	seedRoster(t, db)
	clk := &fakeClock{now: t0}
	s := NewAuthService(db, []byte("test-secret"), time.Hour)
	s.Now = clk.Now
	return s, clk
}

func TestLogin_SucceedsForEveryRosterUser(t *testing.T) {
	s, _ := newAuth(t)
	ctx := context.Background()
	for _, email := range []string{"master@helpdesk.com", "admin@helpdesk.com", "staff@helpdesk.com"} {
		res, err := s.Login(ctx, email, "password123")
		if err != nil {
			t.Fatalf("login %s: %v", email, err)
		}
		if res.User.Email != email || res.Token == "" {
			t.Fatalf("bad result for %s: %#v", email, res)
		}
		if !res.ExpiresAt.Equal(t0.Add(time.Hour)) {
			t.Fatalf("expires_at=%v", res.ExpiresAt)
		}
	}
}

func TestLogin_RejectsWrongPasswordUnknownEmailAndCase(t *testing.T) {
	s, _ := newAuth(t)
	ctx := context.Background()
	cases := []struct{ email, pw string }{
		{"staff@helpdesk.com", "wrong"},
		{"nobody@helpdesk.com", "password123"},
		{"STAFF@helpdesk.com", "password123"},
		{"staff@helpdesk.com", "PASSWORD123"},
		{" staff@helpdesk.com", "password123"},
		{"staff@helpdesk.com ", "password123"},
	}
	for _, c := range cases {
		if _, err := s.Login(ctx, c.email, c.pw); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("login(%q,%q) err=%v want ErrInvalidCredentials", c.email, c.pw, err)
		}
	}
}

func TestAuthenticate_LifecycleAndLogout(t *testing.T) {
	s, clk := newAuth(t)
	ctx := context.Background()

	res, err := s.Login(ctx, "admin@helpdesk.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	u, sess, err := s.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.ID != "admin-1" || sess.UserID != "admin-1" {
		t.Fatalf("unexpected identity: %v %v", u.ID, sess.UserID)
	}

	// A second login leaves the first session intact.
	res2, err := s.Login(ctx, "admin@helpdesk.com", "password123")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if err := s.Logout(ctx, sess.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := s.Authenticate(ctx, res.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("revoked token err=%v", err)
	}
	if _, _, err := s.Authenticate(ctx, res2.Token); err != nil {
		t.Fatalf("other session should survive: %v", err)
	}
	// Logging out twice is a no-op.
	if err := s.Logout(ctx, sess.ID); err != nil {
		t.Fatalf("second logout: %v", err)
	}

	clk.Advance(2 * time.Hour)
	if _, _, err := s.Authenticate(ctx, res2.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expired token err=%v", err)
	}
	n, err := s.PurgeSessions(ctx)
	if err != nil || n != 2 {
		t.Fatalf("purge n=%d err=%v", n, err)
	}
}

func TestAuthenticate_RejectsForeignAndGarbageTokens(t *testing.T) {
	s, _ := newAuth(t)
	ctx := context.Background()
	res, err := s.Login(ctx, "staff@helpdesk.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	other := NewAuthService(s.DB, []byte("another-secret"), time.Hour)
	other.Now = s.Now
	if _, _, err := other.Authenticate(ctx, res.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("foreign secret err=%v", err)
	}
	if _, _, err := s.Authenticate(ctx, "not-a-jwt"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("garbage err=%v", err)
	}
}

func TestAuthenticate_DeletedUserLosesSession(t *testing.T) {
	s, _ := newAuth(t)
	ctx := context.Background()
	res, err := s.Login(ctx, "staff@helpdesk.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := repo.DeleteUser(ctx, s.DB, "staff-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := s.Authenticate(ctx, res.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("deleted user err=%v", err)
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("", bcrypt.MinCost); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("empty password err=%v", err)
	}
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := HashPassword(string(long), bcrypt.MinCost); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("long password err=%v", err)
	}
	h, err := HashPassword("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(h, "s3cret") || CheckPassword(h, "S3cret") || CheckPassword("", "s3cret") {
		t.Fatalf("CheckPassword mismatch")
	}
}
