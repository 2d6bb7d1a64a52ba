// Package services – UserService
//
// UserService manages the roster. Updates use merge-patch semantics: only
// non-nil fields of a UserPatch are written and updated_at is refreshed.
// Roles are fixed at creation. Deleting a user is allowed even when reports
// still reference them; readers resolve such ids to "Unknown user".
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
)

// UnknownUserName is shown for ids that no longer resolve to a user.
const UnknownUserName = "Unknown user"

// NewUser is the input of UserService.Add.
type NewUser struct {
	ID       string
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Address  string
	Avatar   string
}

// UserPatch is a partial update; nil fields are left untouched.
type UserPatch struct {
	Name     *string
	Email    *string
	Password *string
	Address  *string
	Avatar   *string
}

// UserService provides roster operations.
type UserService struct {
	DB         *gorm.DB
	BcryptCost int

	Now   func() time.Time
	NewID func() string
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, bcryptCost int) *UserService {
	return &UserService{DB: db, BcryptCost: bcryptCost}
}

// List returns the roster, optionally restricted to the given roles.
func (s *UserService) List(ctx context.Context, roles ...domain.Role) ([]domain.User, error) {
	return repo.ListUsers(ctx, s.DB, roles...)
}

// Get returns the user with the given id or ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// DisplayName returns the user's name, or UnknownUserName for dangling ids.
func (s *UserService) DisplayName(ctx context.Context, id string) string {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		return UnknownUserName
	}
	return u.Name
}

// Add appends a user to the roster. The id is generated when empty.
func (s *UserService) Add(ctx context.Context, in NewUser) (*domain.User, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Add",
		trace.WithAttributes(attribute.String("user.role", string(in.Role))))
	defer span.End()

	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}
	email := strings.TrimSpace(in.Email)
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = idFrom(s.NewID)
	}
	u := &domain.User{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Role:         in.Role,
		Address:      in.Address,
		Avatar:       in.Avatar,
		PasswordHash: hash,
		CreatedAt:    nowFrom(s.Now),
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("user added")
	return u, nil
}

// UpdateSelf applies p to the acting user's own record and returns the
// refreshed copy. The session references the user by id, so the caller's
// view and the roster can never diverge.
func (s *UserService) UpdateSelf(ctx context.Context, actorID string, p UserPatch) (*domain.User, error) {
	return s.UpdateByID(ctx, actorID, p)
}

// UpdateByID applies p to user id and returns the refreshed record.
func (s *UserService) UpdateByID(ctx context.Context, id string, p UserPatch) (*domain.User, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "UpdateByID",
		trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	fields := map[string]any{}
	if p.Name != nil {
		fields["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if err := s.ensureEmailFree(ctx, email, id); err != nil {
			return nil, err
		}
		fields["email"] = email
	}
	if p.Address != nil {
		fields["address"] = *p.Address
	}
	if p.Avatar != nil {
		fields["avatar"] = *p.Avatar
	}
	if p.Password != nil {
		hash, err := HashPassword(*p.Password, s.BcryptCost)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hash
	}
	fields["updated_at"] = nowFrom(s.Now)

	if err := repo.UpdateUserFields(ctx, s.DB, id, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes user id. Deleting an absent id is a no-op. The user's
// sessions stop authenticating because the user no longer resolves.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := repo.DeleteUser(ctx, s.DB, id); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("user_id", id).Msg("user deleted")
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := repo.GetUserByEmail(ctx, s.DB, email)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return ErrEmailTaken
	}
	return nil
}
