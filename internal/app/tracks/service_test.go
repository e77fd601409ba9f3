package tracks

import (
	"context"
	"errors"
	"testing"

	"mixnotes/internal/apperr"
	"mixnotes/internal/lineage"
	"mixnotes/internal/models"
	"mixnotes/internal/store/memstore"
)

type env struct {
	svc     Service
	store   *memstore.Store
	project *models.Project
	owner   int64
	editor  int64
	viewer  int64
}

func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	p, err := st.CreateProject(ctx, &models.Project{Title: "Demo", Description: "d", OwnerID: 1, Status: models.ProjectDraft, IsPrivate: true})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := st.AddCollaborator(ctx, p.ID, models.Collaborator{UserID: 2, Role: models.RoleEngineer, Permissions: []models.Permission{models.PermissionView, models.PermissionEdit}}); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	if _, err := st.AddCollaborator(ctx, p.ID, models.Collaborator{UserID: 3, Role: models.RoleListener, Permissions: []models.Permission{models.PermissionView}}); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	return env{svc: New(st), store: st, project: p, owner: 1, editor: 2, viewer: 3}
}

func draft(title string) Draft {
	return Draft{
		Title:        title,
		AudioFile:    models.AudioFile{URL: "https://cdn.example.com/a.wav", FileID: "a", FileSize: 1024, Duration: 180, Format: "WAV"},
		WaveformData: "0,1,0.5,0.2",
	}
}

func TestCreateTrack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tr, err := e.svc.Create(ctx, e.editor, e.project.ID, draft("Single"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tr.VersionNumber != 1 || tr.UploaderID != e.editor || tr.PreviousVersionID != nil {
		t.Fatalf("unexpected track: %+v", tr)
	}
	if tr.AudioFile.Format != "wav" {
		t.Fatalf("expected normalized format, got %q", tr.AudioFile.Format)
	}

	if _, err := e.svc.Create(ctx, e.viewer, e.project.ID, draft("Nope")); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for viewer, got %v", err)
	}
	if _, err := e.svc.Create(ctx, e.owner, 9999, draft("Nope")); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateTrackValidation(t *testing.T) {
	e := newEnv(t)
	negative := -1

	tests := []struct {
		name   string
		mutate func(d *Draft)
	}{
		{name: "missing title", mutate: func(d *Draft) { d.Title = "" }},
		{name: "missing url", mutate: func(d *Draft) { d.AudioFile.URL = "" }},
		{name: "missing file id", mutate: func(d *Draft) { d.AudioFile.FileID = "" }},
		{name: "missing format", mutate: func(d *Draft) { d.AudioFile.Format = " " }},
		{name: "negative size", mutate: func(d *Draft) { d.AudioFile.FileSize = -1 }},
		{name: "negative sample rate", mutate: func(d *Draft) { d.AudioFile.SampleRate = &negative }},
		{name: "missing waveform", mutate: func(d *Draft) { d.WaveformData = "" }},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			d := draft("Single")
			tc.mutate(&d)
			if _, err := e.svc.Create(context.Background(), e.owner, e.project.ID, d); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestVersionChain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v1, err := e.svc.Create(ctx, e.owner, e.project.ID, draft("Anthem"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	chain := []*models.Track{v1}
	for i := 0; i < 3; i++ {
		next, err := e.svc.CreateVersion(ctx, e.editor, chain[len(chain)-1].ID, draft(""))
		if err != nil {
			t.Fatalf("CreateVersion: %v", err)
		}
		chain = append(chain, next)
	}

	last := chain[len(chain)-1]
	if last.VersionNumber != 4 || last.Title != "Anthem" {
		t.Fatalf("expected v4 inheriting title, got %+v", last)
	}

	for _, member := range chain {
		versions, err := e.svc.Versions(ctx, e.viewer, member.ID)
		if err != nil {
			t.Fatalf("Versions(%d): %v", member.ID, err)
		}
		if len(versions) != len(chain) {
			t.Fatalf("expected %d versions, got %d", len(chain), len(versions))
		}
		for i := range versions {
			if versions[i].ID != chain[i].ID {
				t.Fatalf("version %d: expected %d, got %d", i, chain[i].ID, versions[i].ID)
			}
		}

		latest, err := e.svc.Latest(ctx, e.viewer, member.ID)
		if err != nil {
			t.Fatalf("Latest(%d): %v", member.ID, err)
		}
		if latest.ID != last.ID {
			t.Fatalf("expected latest %d, got %d", last.ID, latest.ID)
		}
	}
}

func TestCreateVersionRejectsBranch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	v1, _ := e.svc.Create(ctx, e.owner, e.project.ID, draft("Anthem"))
	if _, err := e.svc.CreateVersion(ctx, e.owner, v1.ID, draft("")); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}

	_, err := e.svc.CreateVersion(ctx, e.owner, v1.ID, draft("alt mix"))
	if !errors.Is(err, apperr.ErrConsistency) {
		t.Fatalf("expected consistency error, got %v", err)
	}
	if _, err := e.svc.CreateVersion(ctx, e.viewer, v1.ID, draft("")); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for viewer, got %v", err)
	}
}

func TestLineageOnCorruptHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	link := func(id int64) *int64 { return &id }

	e.store.PutTrack(models.Track{ID: 100, ProjectID: e.project.ID, Title: "a", VersionNumber: 1})
	e.store.PutTrack(models.Track{ID: 101, ProjectID: e.project.ID, Title: "b", VersionNumber: 2, PreviousVersionID: link(100)})
	e.store.PutTrack(models.Track{ID: 102, ProjectID: e.project.ID, Title: "c", VersionNumber: 2, PreviousVersionID: link(100)})

	if _, err := e.svc.Latest(ctx, e.owner, 100); !errors.Is(err, lineage.ErrBranchedLineage) {
		t.Fatalf("expected branched lineage, got %v", err)
	}
	if _, err := e.svc.Versions(ctx, e.owner, 101); !errors.Is(err, apperr.ErrConsistency) {
		t.Fatalf("expected consistency error, got %v", err)
	}

	e.store.PutTrack(models.Track{ID: 200, ProjectID: e.project.ID, Title: "x", VersionNumber: 1, PreviousVersionID: link(201)})
	e.store.PutTrack(models.Track{ID: 201, ProjectID: e.project.ID, Title: "y", VersionNumber: 2, PreviousVersionID: link(200)})
	if _, err := e.svc.Versions(ctx, e.owner, 200); !errors.Is(err, lineage.ErrLineageCycle) {
		t.Fatalf("expected cycle, got %v", err)
	}
}

func TestReadsRequireView(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tr, _ := e.svc.Create(ctx, e.owner, e.project.ID, draft("Anthem"))
	const outsider = 42

	if _, err := e.svc.Get(ctx, outsider, tr.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := e.svc.ListByProject(ctx, outsider, e.project.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	list, err := e.svc.ListByProject(ctx, e.viewer, e.project.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one track, got %d (%v)", len(list), err)
	}
	if _, err := e.svc.Get(ctx, e.viewer, 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateTrack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tr, err := e.svc.Create(ctx, e.owner, e.project.ID, draft("Working Title"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	title, name := "  Final Title ", "master"
	bpm := 92.0
	updated, err := e.svc.Update(ctx, e.editor, tr.ID, Patch{Title: &title, VersionName: &name, Metadata: &models.TrackMetadata{BPM: &bpm, Genre: "soul"}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Final Title" || updated.VersionName != "master" || updated.Metadata.Genre != "soul" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if updated.AudioFile.URL != tr.AudioFile.URL || updated.VersionNumber != 1 {
		t.Fatalf("audio and version must not change: %+v", updated)
	}

	empty, zero := "", 0.0
	tests := []struct {
		name    string
		actor   int64
		trackID int64
		patch   Patch
		want    error
	}{
		{name: "viewer", actor: e.viewer, trackID: tr.ID, patch: Patch{Title: &title}, want: apperr.ErrForbidden},
		{name: "missing track", actor: e.owner, trackID: 9999, patch: Patch{Title: &title}, want: apperr.ErrNotFound},
		{name: "empty patch", actor: e.owner, trackID: tr.ID, want: apperr.ErrValidation},
		{name: "blank title", actor: e.owner, trackID: tr.ID, patch: Patch{Title: &empty}, want: apperr.ErrValidation},
		{name: "blank waveform", actor: e.owner, trackID: tr.ID, patch: Patch{WaveformData: &empty}, want: apperr.ErrValidation},
		{name: "zero bpm", actor: e.owner, trackID: tr.ID, patch: Patch{Metadata: &models.TrackMetadata{BPM: &zero}}, want: apperr.ErrValidation},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.svc.Update(ctx, tc.actor, tc.trackID, tc.patch); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDeleteMiddleVersionKeepsChain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v1, err := e.svc.Create(ctx, e.owner, e.project.ID, draft("Song"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	v2, err := e.svc.CreateVersion(ctx, e.owner, v1.ID, draft(""))
	if err != nil {
		t.Fatalf("CreateVersion v2: %v", err)
	}
	v3, err := e.svc.CreateVersion(ctx, e.owner, v2.ID, draft(""))
	if err != nil {
		t.Fatalf("CreateVersion v3: %v", err)
	}

	if err := e.svc.Delete(ctx, e.viewer, v2.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for viewer, got %v", err)
	}
	if err := e.svc.Delete(ctx, e.editor, v2.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	versions, err := e.svc.Versions(ctx, e.viewer, v3.ID)
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 2 || versions[0].ID != v1.ID || versions[1].ID != v3.ID {
		t.Fatalf("expected chain v1 -> v3, got %+v", versions)
	}
	latest, err := e.svc.Latest(ctx, e.viewer, v1.ID)
	if err != nil || latest.ID != v3.ID {
		t.Fatalf("expected latest v3, got %v (%v)", latest, err)
	}
	if _, err := e.svc.Get(ctx, e.owner, v2.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected deleted version gone, got %v", err)
	}

	v4, err := e.svc.CreateVersion(ctx, e.owner, v3.ID, draft(""))
	if err != nil {
		t.Fatalf("CreateVersion after delete: %v", err)
	}
	if v4.VersionNumber != 4 {
		t.Fatalf("expected version numbers to keep increasing, got %d", v4.VersionNumber)
	}
}
