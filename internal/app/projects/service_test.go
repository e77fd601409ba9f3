package projects

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"mixnotes/internal/app/comments"
	"mixnotes/internal/apperr"
	"mixnotes/internal/models"
	"mixnotes/internal/store/memstore"
)

func setup(t *testing.T) (Service, *memstore.Store, map[string]int64) {
	t.Helper()
	st := memstore.New()
	users := make(map[string]int64)
	for _, name := range []string{"owner", "admin", "bob", "carol"} {
		u, err := st.CreateUser(context.Background(), &models.User{Name: name, Email: name + "@example.com", Role: models.RoleArtist})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		users[name] = u.ID
	}
	return New(st), st, users
}

func create(t *testing.T, svc Service, owner int64) *models.Project {
	t.Helper()
	p, err := svc.Create(context.Background(), owner, Draft{Title: "  Night Drive ", Description: "second EP", Tags: []string{"synth", " synth", ""}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestCreateDefaults(t *testing.T) {
	svc, _, users := setup(t)
	p := create(t, svc, users["owner"])

	if p.Title != "Night Drive" || p.OwnerID != users["owner"] {
		t.Fatalf("unexpected project: %+v", p)
	}
	if p.Status != models.ProjectDraft || !p.IsPrivate {
		t.Fatalf("expected private draft, got status=%s private=%v", p.Status, p.IsPrivate)
	}
	if !reflect.DeepEqual(p.Tags, []string{"synth"}) {
		t.Fatalf("expected deduplicated tags, got %v", p.Tags)
	}
	if len(p.Collaborators) != 0 {
		t.Fatalf("owner must not be stored as a collaborator, got %+v", p.Collaborators)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, users := setup(t)

	tests := []struct {
		name  string
		draft Draft
	}{
		{name: "missing title", draft: Draft{Description: "d"}},
		{name: "long title", draft: Draft{Title: strings.Repeat("t", 101), Description: "d"}},
		{name: "missing description", draft: Draft{Title: "t"}},
		{name: "long description", draft: Draft{Title: "t", Description: strings.Repeat("d", 501)}},
		{name: "bad status", draft: Draft{Title: "t", Description: "d", Status: "shipped"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), users["owner"], tc.draft); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGetRespectsPrivacy(t *testing.T) {
	svc, _, users := setup(t)
	ctx := context.Background()
	p := create(t, svc, users["owner"])

	if _, err := svc.Get(ctx, users["bob"], p.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden on private project, got %v", err)
	}
	public := false
	if _, err := svc.Update(ctx, users["owner"], p.ID, Patch{IsPrivate: &public}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.Get(ctx, users["bob"], p.ID); err != nil {
		t.Fatalf("expected public project readable, got %v", err)
	}
	if _, err := svc.Get(ctx, users["bob"], 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	svc, _, users := setup(t)
	ctx := context.Background()
	p := create(t, svc, users["owner"])

	if _, err := svc.AddCollaborator(ctx, users["owner"], p.ID, CollaboratorInput{UserID: users["admin"], Permissions: []string{"view", "admin"}}); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	if _, err := svc.AddCollaborator(ctx, users["owner"], p.ID, CollaboratorInput{UserID: users["bob"]}); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}

	title, status := "Night Drive (Deluxe)", "review"
	updated, err := svc.Update(ctx, users["admin"], p.ID, Patch{Title: &title, Status: &status})
	if err != nil {
		t.Fatalf("Update by admin: %v", err)
	}
	if updated.Title != title || updated.Status != models.ProjectReview {
		t.Fatalf("unexpected update: %+v", updated)
	}

	if _, err := svc.Update(ctx, users["bob"], p.ID, Patch{Title: &title}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for non-admin, got %v", err)
	}

	newOwner := users["admin"]
	if _, err := svc.Update(ctx, users["owner"], p.ID, Patch{OwnerID: &newOwner}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error on owner change, got %v", err)
	}
	sameOwner := users["owner"]
	if _, err := svc.Update(ctx, users["owner"], p.ID, Patch{OwnerID: &sameOwner}); err != nil {
		t.Fatalf("echoing the owner must be accepted, got %v", err)
	}
}

func TestDeleteOwnerOnly(t *testing.T) {
	svc, _, users := setup(t)
	ctx := context.Background()
	p := create(t, svc, users["owner"])
	if _, err := svc.AddCollaborator(ctx, users["owner"], p.ID, CollaboratorInput{UserID: users["admin"], Permissions: []string{"view", "comment", "edit", "admin"}}); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}

	if err := svc.Delete(ctx, users["admin"], p.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected admin collaborator to be refused, got %v", err)
	}
	if err := svc.Delete(ctx, users["owner"], p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, users["owner"], p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestAddCollaborator(t *testing.T) {
	svc, _, users := setup(t)
	ctx := context.Background()
	p := create(t, svc, users["owner"])

	got, err := svc.AddCollaborator(ctx, users["owner"], p.ID, CollaboratorInput{UserID: users["bob"]})
	if err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	c, ok := got.Collaborator(users["bob"])
	if !ok {
		t.Fatalf("expected bob in collaborators: %+v", got.Collaborators)
	}
	if c.Role != models.RoleArtist || !reflect.DeepEqual(c.Permissions, models.DefaultPermissions) {
		t.Fatalf("expected default role and permissions, got %+v", c)
	}

	tests := []struct {
		name    string
		actor   int64
		in      CollaboratorInput
		wantErr error
	}{
		{name: "duplicate", actor: users["owner"], in: CollaboratorInput{UserID: users["bob"]}, wantErr: apperr.ErrValidation},
		{name: "owner target", actor: users["owner"], in: CollaboratorInput{UserID: users["owner"]}, wantErr: apperr.ErrValidation},
		{name: "missing user id", actor: users["owner"], in: CollaboratorInput{}, wantErr: apperr.ErrValidation},
		{name: "unknown permission", actor: users["owner"], in: CollaboratorInput{UserID: users["carol"], Permissions: []string{"own"}}, wantErr: apperr.ErrValidation},
		{name: "unknown user", actor: users["owner"], in: CollaboratorInput{UserID: 9999}, wantErr: apperr.ErrNotFound},
		{name: "non-admin actor", actor: users["bob"], in: CollaboratorInput{UserID: users["carol"]}, wantErr: apperr.ErrForbidden},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddCollaborator(ctx, tc.actor, p.ID, tc.in); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	final, _ := svc.Get(ctx, users["owner"], p.ID)
	if len(final.Collaborators) != 1 {
		t.Fatalf("expected exactly one collaborator, got %+v", final.Collaborators)
	}
}

func TestUpdateAndRemoveCollaborator(t *testing.T) {
	svc, _, users := setup(t)
	ctx := context.Background()
	p := create(t, svc, users["owner"])
	if _, err := svc.AddCollaborator(ctx, users["owner"], p.ID, CollaboratorInput{UserID: users["bob"], Role: "producer"}); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}

	got, err := svc.UpdateCollaborator(ctx, users["owner"], p.ID, CollaboratorInput{UserID: users["bob"], Permissions: []string{"edit", "view"}})
	if err != nil {
		t.Fatalf("UpdateCollaborator: %v", err)
	}
	c, _ := got.Collaborator(users["bob"])
	if c.Role != models.RoleProducer {
		t.Fatalf("expected role kept, got %s", c.Role)
	}
	if !reflect.DeepEqual(c.Permissions, []models.Permission{models.PermissionView, models.PermissionEdit}) {
		t.Fatalf("unexpected permissions: %v", c.Permissions)
	}

	if _, err := svc.UpdateCollaborator(ctx, users["owner"], p.ID, CollaboratorInput{UserID: users["owner"], Role: "manager"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for owner target, got %v", err)
	}
	if _, err := svc.UpdateCollaborator(ctx, users["owner"], p.ID, CollaboratorInput{UserID: users["carol"], Role: "manager"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for non-member, got %v", err)
	}

	if _, err := svc.RemoveCollaborator(ctx, users["owner"], p.ID, users["owner"]); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error removing owner, got %v", err)
	}
	got, err = svc.RemoveCollaborator(ctx, users["owner"], p.ID, users["bob"])
	if err != nil {
		t.Fatalf("RemoveCollaborator: %v", err)
	}
	if len(got.Collaborators) != 0 {
		t.Fatalf("expected no collaborators, got %+v", got.Collaborators)
	}
	if _, err := svc.RemoveCollaborator(ctx, users["owner"], p.ID, users["bob"]); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on second removal, got %v", err)
	}
}

func TestListForUser(t *testing.T) {
	svc, _, users := setup(t)
	ctx := context.Background()
	first := create(t, svc, users["owner"])
	second := create(t, svc, users["carol"])
	create(t, svc, users["admin"])

	if _, err := svc.AddCollaborator(ctx, users["carol"], second.ID, CollaboratorInput{UserID: users["owner"]}); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}

	got, err := svc.ListForUser(ctx, users["owner"])
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("expected most recently updated first, got %+v", got)
	}
}

func TestCollaboratorGainsCommentAccess(t *testing.T) {
	svc, st, users := setup(t)
	ctx := context.Background()
	p := create(t, svc, users["owner"])
	track, err := st.CreateTrack(ctx, &models.Track{ProjectID: p.ID, Title: "Intro", VersionNumber: 1, UploaderID: users["owner"]})
	if err != nil {
		t.Fatalf("CreateTrack: %v", err)
	}
	commentSvc := comments.New(st)

	if _, err := commentSvc.List(ctx, users["bob"], track.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden before membership, got %v", err)
	}
	if _, err := svc.AddCollaborator(ctx, users["owner"], p.ID, CollaboratorInput{UserID: users["bob"], Permissions: []string{"view", "comment"}}); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	if _, err := commentSvc.List(ctx, users["bob"], track.ID); err != nil {
		t.Fatalf("expected listing to succeed after membership, got %v", err)
	}
	ts := 12.0
	if _, err := commentSvc.Create(ctx, users["bob"], track.ID, comments.Draft{Text: "love the pads", Timestamp: &ts}); err != nil {
		t.Fatalf("expected comment to succeed, got %v", err)
	}
}
