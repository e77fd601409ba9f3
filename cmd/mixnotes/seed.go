package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"mixnotes/internal/app/comments"
	"mixnotes/internal/app/projects"
	"mixnotes/internal/app/tracks"
	"mixnotes/internal/app/users"
	"mixnotes/internal/models"
	"mixnotes/internal/store"
)

const (
	demoEmail    = "demo@mixnotes.local"
	demoPassword = "demo123"
)

// seedDemoData creates a demo account with one project, track and comment.
// It does nothing once the demo account owns a project.
func seedDemoData(ctx context.Context, b *backend) error {
	user, err := ensureDemoUser(ctx, b)
	if err != nil {
		return err
	}

	existing, err := b.projects.ListForUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list demo projects: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	project, err := b.projects.Create(ctx, user.ID, projects.Draft{
		Title:       "Night Drive EP",
		Description: "Rough mixes for the first three songs.",
		Tags:        []string{"synthwave", "demo"},
	})
	if err != nil {
		return fmt.Errorf("bootstrap demo project: %w", err)
	}

	bpm, position := 104.0, 62.0
	track, err := b.tracks.Create(ctx, user.ID, project.ID, tracks.Draft{
		Title:       "Neon Underpass",
		VersionName: "rough mix",
		AudioFile: models.AudioFile{
			URL:      "https://cdn.mixnotes.local/demo/neon-underpass.wav",
			FileID:   "demo-neon-underpass",
			FileSize: 48_000_000,
			Duration: 214.5,
			Format:   "wav",
		},
		WaveformData: "0.1,0.4,0.8,0.6,0.9,0.3",
		Metadata: models.TrackMetadata{
			BPM:         &bpm,
			Key:         "F minor",
			Genre:       "synthwave",
			Instruments: []string{"synth", "drum machine", "bass"},
		},
	})
	if err != nil {
		return fmt.Errorf("bootstrap demo track: %w", err)
	}

	if _, err := b.comments.Create(ctx, user.ID, track.ID, comments.Draft{
		Text:      "Snare is masking the lead around the first chorus.",
		Timestamp: &position,
		Category:  string(models.CategoryTechnical),
		FrequencyRange: &models.FrequencyRange{
			Low:  180,
			High: 2500,
		},
	}); err != nil {
		return fmt.Errorf("bootstrap demo comment: %w", err)
	}

	log.Info().Int64("project_id", project.ID).Int64("track_id", track.ID).Msg("demo data created")
	return nil
}

func ensureDemoUser(ctx context.Context, b *backend) (*models.User, error) {
	user, err := b.users.Register(ctx, users.Registration{
		Name:     "Demo Producer",
		Email:    demoEmail,
		Password: demoPassword,
		Role:     string(models.RoleProducer),
	})
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrUserExists) {
		return nil, fmt.Errorf("bootstrap demo user: %w", err)
	}
	user, err = b.store.GetUserByEmail(ctx, demoEmail)
	if err != nil {
		return nil, fmt.Errorf("lookup demo user: %w", err)
	}
	return user, nil
}
