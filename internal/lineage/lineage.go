// Package lineage walks the version chain of a track.
package lineage

import (
	"context"
	"fmt"

	"mixnotes/internal/apperr"
	"mixnotes/internal/models"
)

var (
	// ErrLineageCycle signals that following version links revisits a track.
	ErrLineageCycle = apperr.Consistency("track version history contains a cycle")
	// ErrBranchedLineage signals that a track has more than one successor.
	ErrBranchedLineage = apperr.Consistency("track version history is branched")
	// ErrBrokenLineage signals a link to a track that no longer exists.
	ErrBrokenLineage = apperr.Consistency("track version history references a missing track")
)

// Source looks up tracks and their successors.
type Source interface {
	GetTrack(ctx context.Context, id int64) (*models.Track, error)
	ListSuccessors(ctx context.Context, trackID int64) ([]models.Track, error)
}

// Walker follows previous/next version links.
type Walker struct {
	src Source
}

// New wires a Walker backed by src.
func New(src Source) *Walker {
	return &Walker{src: src}
}

// Latest returns the newest version reachable from track by following successors.
func (w *Walker) Latest(ctx context.Context, track models.Track) (models.Track, error) {
	visited := map[int64]bool{track.ID: true}
	current := track
	for {
		next, ok, err := w.successor(ctx, current.ID)
		if err != nil {
			return models.Track{}, err
		}
		if !ok {
			return current, nil
		}
		if visited[next.ID] {
			return models.Track{}, ErrLineageCycle
		}
		visited[next.ID] = true
		current = next
	}
}

// All returns every version in the chain containing track, oldest first.
// The forward pass starts at the root so a fork anywhere in the chain is reported.
func (w *Walker) All(ctx context.Context, track models.Track) ([]models.Track, error) {
	root, err := w.root(ctx, track)
	if err != nil {
		return nil, err
	}

	visited := map[int64]bool{root.ID: true}
	versions := []models.Track{root}
	current := root
	for {
		next, ok, err := w.successor(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if visited[next.ID] {
			return nil, ErrLineageCycle
		}
		visited[next.ID] = true
		versions = append(versions, next)
		current = next
	}

	if !visited[track.ID] {
		return nil, ErrBranchedLineage
	}
	return versions, nil
}

// root follows previous-version links back to the first version.
func (w *Walker) root(ctx context.Context, track models.Track) (models.Track, error) {
	visited := map[int64]bool{track.ID: true}
	current := track
	for current.PreviousVersionID != nil {
		if err := ctx.Err(); err != nil {
			return models.Track{}, err
		}
		prevID := *current.PreviousVersionID
		if visited[prevID] {
			return models.Track{}, ErrLineageCycle
		}
		prev, err := w.src.GetTrack(ctx, prevID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return models.Track{}, ErrBrokenLineage
			}
			return models.Track{}, fmt.Errorf("load previous version %d: %w", prevID, err)
		}
		visited[prevID] = true
		current = *prev
	}
	return current, nil
}

func (w *Walker) successor(ctx context.Context, trackID int64) (models.Track, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Track{}, false, err
	}
	next, err := w.src.ListSuccessors(ctx, trackID)
	if err != nil {
		return models.Track{}, false, fmt.Errorf("load successors of %d: %w", trackID, err)
	}
	switch len(next) {
	case 0:
		return models.Track{}, false, nil
	case 1:
		return next[0], true, nil
	default:
		return models.Track{}, false, ErrBranchedLineage
	}
}
