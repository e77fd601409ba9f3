package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"mixnotes/internal/apperr"
	"mixnotes/internal/auth"
	"mixnotes/internal/models"
	"mixnotes/internal/store/memstore"
)

func newService(t *testing.T) (Service, *auth.TokenManager) {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret-0123456789", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return New(memstore.New(), tokens), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, Registration{Name: "Ada", Email: "Ada@Example.com", Password: "hunter22", Role: "producer"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "ada@example.com" || user.Role != models.RoleProducer {
		t.Fatalf("unexpected user: %+v", user)
	}
	if string(user.PasswordHash) == "hunter22" {
		t.Fatalf("password stored in clear text")
	}

	token, loggedIn, err := svc.Login(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, loggedIn.ID)
	}
	claims, err := tokens.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected token for %d, got %d", user.ID, claims.UserID)
	}

	me, err := svc.Me(ctx, user.ID)
	if err != nil || me.Name != "Ada" {
		t.Fatalf("Me: %+v (%v)", me, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name string
		reg  Registration
	}{
		{name: "missing name", reg: Registration{Email: "a@example.com", Password: "secret1"}},
		{name: "missing email", reg: Registration{Name: "A", Password: "secret1"}},
		{name: "bad email", reg: Registration{Name: "A", Email: "not-an-email", Password: "secret1"}},
		{name: "short password", reg: Registration{Name: "A", Email: "a@example.com", Password: "123"}},
		{name: "unknown role", reg: Registration{Name: "A", Email: "a@example.com", Password: "secret1", Role: "drummer"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tc.reg); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	reg := Registration{Name: "A", Email: "a@example.com", Password: "secret1"}

	if _, err := svc.Register(ctx, reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	reg.Email = "A@example.com"
	if _, err := svc.Register(ctx, reg); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, Registration{Name: "A", Email: "a@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "a@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateDetails(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	ada, err := svc.Register(ctx, Registration{Name: "Ada", Email: "ada@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, Registration{Name: "Bo", Email: "bo@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	name, email, role := " Ada L. ", "Ada.L@Example.com", "engineer"
	updated, err := svc.UpdateDetails(ctx, ada.ID, Details{Name: &name, Email: &email, Role: &role})
	if err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}
	if updated.Name != "Ada L." || updated.Email != "ada.l@example.com" || updated.Role != models.RoleEngineer {
		t.Fatalf("unexpected user: %+v", updated)
	}
	if _, _, err := svc.Login(ctx, "ada.l@example.com", "hunter22"); err != nil {
		t.Fatalf("expected login with new email, got %v", err)
	}

	blank, taken, badRole, badEmail := "  ", "bo@example.com", "drummer", "nope"
	tests := []struct {
		name    string
		userID  int64
		details Details
		want    error
	}{
		{name: "empty", userID: ada.ID, want: apperr.ErrValidation},
		{name: "blank name", userID: ada.ID, details: Details{Name: &blank}, want: apperr.ErrValidation},
		{name: "bad email", userID: ada.ID, details: Details{Email: &badEmail}, want: apperr.ErrValidation},
		{name: "bad role", userID: ada.ID, details: Details{Role: &badRole}, want: apperr.ErrValidation},
		{name: "email taken", userID: ada.ID, details: Details{Email: &taken}, want: apperr.ErrConflict},
		{name: "unknown user", userID: 9999, details: Details{Name: &name}, want: apperr.ErrNotFound},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.UpdateDetails(ctx, tc.userID, tc.details); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUpdatePassword(t *testing.T) {
	svc, tokens := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, Registration{Name: "Ada", Email: "ada@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.UpdatePassword(ctx, user.ID, "wrong-one", "new-secret"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if _, _, err := svc.UpdatePassword(ctx, user.ID, "hunter22", "short"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	token, updated, err := svc.UpdatePassword(ctx, user.ID, "hunter22", "new-secret")
	if err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if claims, err := tokens.Parse(token); err != nil || claims.UserID != user.ID {
		t.Fatalf("expected fresh token for %d, got %+v (%v)", user.ID, claims, err)
	}
	if string(updated.PasswordHash) == "new-secret" {
		t.Fatalf("password stored in clear text")
	}
	if _, _, err := svc.Login(ctx, "ada@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "ada@example.com", "new-secret"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
}
