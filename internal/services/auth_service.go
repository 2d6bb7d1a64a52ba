// Package services – AuthService
//
// AuthService owns the login flow. Passwords are stored as bcrypt hashes;
// a successful login creates a Session row and returns an HS256 JWT whose
// jti is the session id, so logging out only has to revoke the row.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
)

const tokenIssuer = "helpdesk"

// AuthService issues and validates session tokens.
type AuthService struct {
	DB     *gorm.DB
	Secret []byte
	TTL    time.Duration

	Now   func() time.Time
	NewID func() string
}

// NewAuthService constructs an AuthService. A non-positive ttl defaults to 24h.
func NewAuthService(db *gorm.DB, secret []byte, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{DB: db, Secret: secret, TTL: ttl}
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// Login checks the email/password pair (email compared exactly) and opens a
// new session. Any mismatch yields ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Login")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			loginAttempts.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		loginAttempts.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}

	now := nowFrom(s.Now)
	sess := &domain.Session{
		ID:        idFrom(s.NewID),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.TTL),
	}
	if err := repo.CreateSession(ctx, s.DB, sess); err != nil {
		return nil, err
	}

	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   u.ID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", u.ID))
	loginAttempts.WithLabelValues("ok").Inc()
	zerolog.Ctx(ctx).Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("login")
	return &LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, User: u}, nil
}

// Authenticate resolves a bearer token to its user and session. Expired,
// revoked, or tampered tokens and tokens of deleted users all yield
// ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Authenticate")
	defer span.End()

	now := nowFrom(s.Now)
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || claims.ID == "" {
		return nil, nil, ErrUnauthenticated
	}

	sess, err := repo.GetSession(ctx, s.DB, claims.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, err
	}
	if !sess.Active(now) || sess.UserID != claims.Subject {
		return nil, nil, ErrUnauthenticated
	}

	u, err := repo.GetUser(ctx, s.DB, sess.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID), attribute.String("user.role", string(u.Role)))
	return u, sess, nil
}

// Logout revokes the session. Revoking an unknown or already revoked
// session is a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Logout",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()
	return repo.RevokeSession(ctx, s.DB, sessionID, nowFrom(s.Now))
}

// PurgeSessions deletes sessions that expired before now.
func (s *AuthService) PurgeSessions(ctx context.Context) (int64, error) {
	return repo.DeleteExpiredSessions(ctx, s.DB, nowFrom(s.Now))
}

// HashPassword returns the bcrypt hash of pw. Empty passwords and passwords
// longer than bcrypt's 72-byte limit are rejected with ErrInvalidPassword.
func HashPassword(pw string, cost int) (string, error) {
	if pw == "" {
		return "", ErrInvalidPassword
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrInvalidPassword
		}
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether pw matches the bcrypt hash.
func CheckPassword(hash, pw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
