package tracks

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"mixnotes/internal/access"
	"mixnotes/internal/apperr"
	"mixnotes/internal/lineage"
	"mixnotes/internal/logging"
	"mixnotes/internal/models"
	"mixnotes/internal/store"
)

const (
	maxTitleLength       = 100
	maxVersionNameLength = 50
)

// Store describes the persistence operations required by the track service.
type Store interface {
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	GetTrack(ctx context.Context, id int64) (*models.Track, error)
	ListTracks(ctx context.Context, projectID int64) ([]models.Track, error)
	ListSuccessors(ctx context.Context, trackID int64) ([]models.Track, error)
	CreateTrack(ctx context.Context, track *models.Track) (*models.Track, error)
	UpdateTrack(ctx context.Context, track *models.Track) (*models.Track, error)
	DeleteTrack(ctx context.Context, id int64) error
}

// Draft is the client-supplied description of an uploaded version.
type Draft struct {
	Title        string
	VersionName  string
	AudioFile    models.AudioFile
	WaveformData string
	Metadata     models.TrackMetadata
}

// Patch carries the editable descriptive fields. Nil fields are left alone;
// audio and lineage are fixed once uploaded.
type Patch struct {
	Title        *string
	VersionName  *string
	WaveformData *string
	Metadata     *models.TrackMetadata
}

// Service exposes track uploads and version history.
type Service interface {
	Create(ctx context.Context, actorID, projectID int64, draft Draft) (*models.Track, error)
	Get(ctx context.Context, actorID, trackID int64) (*models.Track, error)
	ListByProject(ctx context.Context, actorID, projectID int64) ([]models.Track, error)
	CreateVersion(ctx context.Context, actorID, trackID int64, draft Draft) (*models.Track, error)
	Versions(ctx context.Context, actorID, trackID int64) ([]models.Track, error)
	Latest(ctx context.Context, actorID, trackID int64) (*models.Track, error)
	Update(ctx context.Context, actorID, trackID int64, patch Patch) (*models.Track, error)
	Delete(ctx context.Context, actorID, trackID int64) error
}

type service struct {
	store  Store
	walker *lineage.Walker
}

// New wires a Service backed by the provided Store.
func New(st Store) Service {
	return &service{store: st, walker: lineage.New(st)}
}

func (s *service) Create(ctx context.Context, actorID, projectID int64, draft Draft) (*models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	track, err := buildTrack(draft, false)
	if err != nil {
		return nil, err
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actorID, project, models.PermissionEdit); err != nil {
		return nil, err
	}

	track.ProjectID = project.ID
	track.UploaderID = actorID
	track.VersionNumber = 1
	created, err := s.store.CreateTrack(ctx, track)
	if err != nil {
		return nil, fmt.Errorf("create track: %w", err)
	}
	logging.WithContext(ctx).Info().Int64("track_id", created.ID).Int64("project_id", project.ID).Msg("track uploaded")
	return created, nil
}

func (s *service) Get(ctx context.Context, actorID, trackID int64) (*models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	track, _, err := s.viewable(ctx, actorID, trackID)
	return track, err
}

func (s *service) ListByProject(ctx context.Context, actorID, projectID int64) ([]models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actorID, project, models.PermissionView); err != nil {
		return nil, err
	}
	tracks, err := s.store.ListTracks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	return tracks, nil
}

func (s *service) CreateVersion(ctx context.Context, actorID, trackID int64, draft Draft) (*models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next, err := buildTrack(draft, true)
	if err != nil {
		return nil, err
	}

	prev, err := s.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, prev.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actorID, project, models.PermissionEdit); err != nil {
		return nil, err
	}

	successors, err := s.store.ListSuccessors(ctx, prev.ID)
	if err != nil {
		return nil, fmt.Errorf("check successors: %w", err)
	}
	if len(successors) > 0 {
		return nil, store.ErrVersionExists
	}

	if next.Title == "" {
		next.Title = prev.Title
	}
	next.ProjectID = prev.ProjectID
	next.UploaderID = actorID
	next.VersionNumber = prev.VersionNumber + 1
	next.PreviousVersionID = &prev.ID

	created, err := s.store.CreateTrack(ctx, next)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConsistency {
			return nil, err
		}
		return nil, fmt.Errorf("create version: %w", err)
	}
	logging.WithContext(ctx).Info().
		Int64("track_id", created.ID).
		Int64("previous_version_id", prev.ID).
		Int("version", created.VersionNumber).
		Msg("track version uploaded")
	return created, nil
}

func (s *service) Versions(ctx context.Context, actorID, trackID int64) ([]models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	track, _, err := s.viewable(ctx, actorID, trackID)
	if err != nil {
		return nil, err
	}
	versions, err := s.walker.All(ctx, *track)
	if err != nil {
		s.logLineageFailure(ctx, trackID, err)
		return nil, err
	}
	return versions, nil
}

func (s *service) Latest(ctx context.Context, actorID, trackID int64) (*models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	track, _, err := s.viewable(ctx, actorID, trackID)
	if err != nil {
		return nil, err
	}
	latest, err := s.walker.Latest(ctx, *track)
	if err != nil {
		s.logLineageFailure(ctx, trackID, err)
		return nil, err
	}
	return &latest, nil
}

func (s *service) Update(ctx context.Context, actorID, trackID int64, patch Patch) (*models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	track, err := s.editable(ctx, actorID, trackID)
	if err != nil {
		return nil, err
	}
	if patch.Title == nil && patch.VersionName == nil && patch.WaveformData == nil && patch.Metadata == nil {
		return nil, apperr.Validation("nothing to update")
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.Validation("title is required")
		}
		if utf8.RuneCountInString(title) > maxTitleLength {
			return nil, apperr.Validation("title must be at most %d characters", maxTitleLength)
		}
		track.Title = title
	}
	if patch.VersionName != nil {
		name := strings.TrimSpace(*patch.VersionName)
		if utf8.RuneCountInString(name) > maxVersionNameLength {
			return nil, apperr.Validation("version name must be at most %d characters", maxVersionNameLength)
		}
		track.VersionName = name
	}
	if patch.WaveformData != nil {
		if strings.TrimSpace(*patch.WaveformData) == "" {
			return nil, apperr.Validation("waveform data is required")
		}
		track.WaveformData = *patch.WaveformData
	}
	if patch.Metadata != nil {
		if bpm := patch.Metadata.BPM; bpm != nil && *bpm <= 0 {
			return nil, apperr.Validation("bpm must be positive")
		}
		track.Metadata = *patch.Metadata
	}

	updated, err := s.store.UpdateTrack(ctx, track)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("update track: %w", err)
	}
	return updated, nil
}

// Delete removes a version and its comments. The store relinks any successor to the
// deleted version's predecessor, so the remaining history stays one chain.
func (s *service) Delete(ctx context.Context, actorID, trackID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	track, err := s.editable(ctx, actorID, trackID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTrack(ctx, track.ID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return err
		}
		return fmt.Errorf("delete track: %w", err)
	}
	logging.WithContext(ctx).Info().
		Int64("track_id", track.ID).
		Int("version", track.VersionNumber).
		Msg("track version deleted")
	return nil
}

func (s *service) editable(ctx context.Context, actorID, trackID int64) (*models.Track, error) {
	track, err := s.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, track.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actorID, project, models.PermissionEdit); err != nil {
		return nil, err
	}
	return track, nil
}

func (s *service) viewable(ctx context.Context, actorID, trackID int64) (*models.Track, *models.Project, error) {
	track, err := s.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, nil, err
	}
	project, err := s.store.GetProject(ctx, track.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if err := access.Require(actorID, project, models.PermissionView); err != nil {
		return nil, nil, err
	}
	return track, project, nil
}

func (s *service) logLineageFailure(ctx context.Context, trackID int64, err error) {
	if apperr.KindOf(err) == apperr.KindConsistency {
		logging.WithContext(ctx).Warn().Err(err).Int64("track_id", trackID).Msg("inconsistent version history")
	}
}

// buildTrack validates a draft. For new versions the title may be omitted and is inherited.
func buildTrack(draft Draft, titleOptional bool) (*models.Track, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" && !titleOptional {
		return nil, apperr.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, apperr.Validation("title must be at most %d characters", maxTitleLength)
	}
	versionName := strings.TrimSpace(draft.VersionName)
	if utf8.RuneCountInString(versionName) > maxVersionNameLength {
		return nil, apperr.Validation("version name must be at most %d characters", maxVersionNameLength)
	}

	audio := draft.AudioFile
	audio.URL = strings.TrimSpace(audio.URL)
	audio.FileID = strings.TrimSpace(audio.FileID)
	audio.Format = strings.ToLower(strings.TrimSpace(audio.Format))
	switch {
	case audio.URL == "":
		return nil, apperr.Validation("audio file url is required")
	case audio.FileID == "":
		return nil, apperr.Validation("audio file id is required")
	case audio.Format == "":
		return nil, apperr.Validation("audio format is required")
	case audio.FileSize < 0:
		return nil, apperr.Validation("audio file size must be zero or greater")
	case audio.Duration < 0:
		return nil, apperr.Validation("audio duration must be zero or greater")
	case audio.SampleRate != nil && *audio.SampleRate <= 0:
		return nil, apperr.Validation("sample rate must be positive")
	case audio.BitDepth != nil && *audio.BitDepth <= 0:
		return nil, apperr.Validation("bit depth must be positive")
	}

	if strings.TrimSpace(draft.WaveformData) == "" {
		return nil, apperr.Validation("waveform data is required")
	}
	if bpm := draft.Metadata.BPM; bpm != nil && *bpm <= 0 {
		return nil, apperr.Validation("bpm must be positive")
	}

	return &models.Track{
		Title:        title,
		VersionName:  versionName,
		AudioFile:    audio,
		WaveformData: draft.WaveformData,
		Metadata:     draft.Metadata,
	}, nil
}
