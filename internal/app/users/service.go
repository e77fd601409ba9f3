package users

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"mixnotes/internal/apperr"
	"mixnotes/internal/auth"
	"mixnotes/internal/logging"
	"mixnotes/internal/models"
)

var (
	// ErrInvalidCredentials indicates a login failure.
	ErrInvalidCredentials = apperr.Unauthorized("invalid email or password")
	// ErrWrongPassword rejects a password change whose current password does not match.
	ErrWrongPassword = apperr.Unauthorized("current password is incorrect")
)

// Store describes the persistence operations required by the user service.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) (*models.User, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID int64) (string, auth.Claims, error)
}

// Registration is the signup payload.
type Registration struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Details are the profile fields a user may change. Nil fields are left alone.
type Details struct {
	Name  *string
	Email *string
	Role  *string
}

// Service exposes account workflows.
type Service interface {
	Register(ctx context.Context, reg Registration) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Me(ctx context.Context, userID int64) (*models.User, error)
	UpdateDetails(ctx context.Context, userID int64, details Details) (*models.User, error)
	UpdatePassword(ctx context.Context, userID int64, current, next string) (string, *models.User, error)
}

type service struct {
	store  Store
	tokens TokenIssuer
}

// New wires a Service backed by the provided Store.
func New(store Store, tokens TokenIssuer) Service {
	return &service{store: store, tokens: tokens}
}

func (s *service) Register(ctx context.Context, reg Registration) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return nil, err
	}
	if len(reg.Password) < auth.MinPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", auth.MinPasswordLength)
	}
	role, err := models.ParseRole(reg.Role)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.store.CreateUser(ctx, &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx).Info().Int64("user_id", user.ID).Msg("user registered")
	return user, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, apperr.Validation("email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNotFound {
			return "", nil, fmt.Errorf("load user: %w", err)
		}
		auth.CheckPassword(nil, password)
		return "", nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		logging.WithContext(ctx).Debug().Int64("user_id", user.ID).Msg("login rejected")
		return "", nil, ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}

func (s *service) Me(ctx context.Context, userID int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, userID)
}

func (s *service) UpdateDetails(ctx context.Context, userID int64, details Details) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if details.Name == nil && details.Email == nil && details.Role == nil {
		return nil, apperr.Validation("nothing to update")
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if details.Name != nil {
		name := strings.TrimSpace(*details.Name)
		if name == "" {
			return nil, apperr.Validation("name is required")
		}
		user.Name = name
	}
	if details.Email != nil {
		email, err := normalizeEmail(*details.Email)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}
	if details.Role != nil {
		role, err := models.ParseRole(*details.Role)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		user.Role = role
	}

	updated, err := s.store.UpdateUser(ctx, user)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

// UpdatePassword re-hashes the password and returns a fresh token for the caller.
func (s *service) UpdatePassword(ctx context.Context, userID int64, current, next string) (string, *models.User, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if current == "" {
		return "", nil, apperr.Validation("current password is required")
	}
	if len(next) < auth.MinPasswordLength {
		return "", nil, apperr.Validation("password must be at least %d characters", auth.MinPasswordLength)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		logging.WithContext(ctx).Debug().Int64("user_id", user.ID).Msg("password change rejected")
		return "", nil, ErrWrongPassword
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return "", nil, err
	}
	user.PasswordHash = hash
	updated, err := s.store.UpdateUser(ctx, user)
	if err != nil {
		return "", nil, fmt.Errorf("update password: %w", err)
	}

	token, _, err := s.tokens.Issue(updated.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	logging.WithContext(ctx).Info().Int64("user_id", updated.ID).Msg("password changed")
	return token, updated, nil
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", apperr.Validation("email %q is not valid", trimmed)
	}
	return strings.ToLower(trimmed), nil
}
