package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mixnotes/internal/models"
)

const trackColumns = `id, project_id, title, version_number, version_name, audio_file, waveform_data, uploader_id, uploaded_at, metadata, previous_version_id`

// CreateTrack inserts a track version. Linking a second successor to the same predecessor fails.
func (s *Store) CreateTrack(ctx context.Context, track *models.Track) (*models.Track, error) {
	created := *track

	audio, err := json.Marshal(created.AudioFile)
	if err != nil {
		return nil, fmt.Errorf("encode audio file: %w", err)
	}
	metadata, err := json.Marshal(created.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	var prev sql.NullInt64
	if created.PreviousVersionID != nil {
		prev = sql.NullInt64{Int64: *created.PreviousVersionID, Valid: true}
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO tracks (project_id, title, version_number, version_name, audio_file, waveform_data, uploader_id, metadata, previous_version_id)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8::jsonb, $9)
		RETURNING id, uploaded_at
	`, created.ProjectID, created.Title, created.VersionNumber, created.VersionName, string(audio),
		created.WaveformData, created.UploaderID, string(metadata), prev).
		Scan(&created.ID, &created.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrVersionExists
		}
		return nil, fmt.Errorf("insert track: %w", err)
	}
	return &created, nil
}

// GetTrack loads a track by id.
func (s *Store) GetTrack(ctx context.Context, id int64) (*models.Track, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE id = $1
	`, id)
	return scanTrack(row)
}

// ListTracks returns every version in a project in upload order.
func (s *Store) ListTracks(ctx context.Context, projectID int64) ([]models.Track, error) {
	return s.queryTracks(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE project_id = $1
		ORDER BY uploaded_at ASC, id ASC
	`, projectID)
}

// ListSuccessors returns the tracks naming trackID as their previous version.
func (s *Store) ListSuccessors(ctx context.Context, trackID int64) ([]models.Track, error) {
	return s.queryTracks(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE previous_version_id = $1
		ORDER BY id ASC
	`, trackID)
}

// UpdateTrack rewrites the descriptive fields of a track. Audio, lineage and project stay fixed.
func (s *Store) UpdateTrack(ctx context.Context, track *models.Track) (*models.Track, error) {
	metadata, err := json.Marshal(track.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE tracks
		SET title = $2, version_name = $3, waveform_data = $4, metadata = $5::jsonb
		WHERE id = $1
		RETURNING `+trackColumns+`
	`, track.ID, track.Title, track.VersionName, track.WaveformData, string(metadata))
	return scanTrack(row)
}

// DeleteTrack removes a version and its comments. A successor is relinked to the
// deleted track's predecessor so the chain stays linear.
func (s *Store) DeleteTrack(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var prev sql.NullInt64
		err := tx.QueryRowContext(ctx, `
			SELECT previous_version_id
			FROM tracks
			WHERE id = $1
			FOR UPDATE
		`, id).Scan(&prev)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTrackNotFound
		}
		if err != nil {
			return fmt.Errorf("lock track: %w", err)
		}

		// previous_version_id is unique, so release it before the successor takes it.
		if _, err := tx.ExecContext(ctx, `
			UPDATE tracks
			SET previous_version_id = NULL
			WHERE id = $1
		`, id); err != nil {
			return fmt.Errorf("detach track: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE tracks
			SET previous_version_id = $2
			WHERE previous_version_id = $1
		`, id, prev); err != nil {
			return fmt.Errorf("relink successor: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM tracks
			WHERE id = $1
		`, id)
		if err != nil {
			return fmt.Errorf("delete track: %w", err)
		}
		return expectAffected(res, ErrTrackNotFound)
	})
}

func (s *Store) queryTracks(ctx context.Context, query string, args ...any) ([]models.Track, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.Track{}
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}
	return tracks, nil
}

func scanTrack(row rowScanner) (*models.Track, error) {
	var (
		t        models.Track
		audio    []byte
		metadata []byte
		prev     sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.VersionNumber, &t.VersionName, &audio,
		&t.WaveformData, &t.UploaderID, &t.UploadedAt, &metadata, &prev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrackNotFound
		}
		return nil, fmt.Errorf("scan track: %w", err)
	}
	if err := json.Unmarshal(audio, &t.AudioFile); err != nil {
		return nil, fmt.Errorf("decode audio file of track %d: %w", t.ID, err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of track %d: %w", t.ID, err)
		}
	}
	if prev.Valid {
		id := prev.Int64
		t.PreviousVersionID = &id
	}
	return &t, nil
}
