package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"mixnotes/internal/models"
)

const commentColumns = `id, track_id, author_id, parent_id, timestamp_seconds, duration_seconds, body, category, status, frequency_low, frequency_high, attachments, created_at, updated_at`

// CreateComment inserts a comment or reply.
func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	created := *comment
	if created.Attachments == nil {
		created.Attachments = []models.Attachment{}
	}
	attachments, err := json.Marshal(created.Attachments)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}

	var (
		parent    sql.NullInt64
		low, high sql.NullFloat64
	)
	if created.ParentID != nil {
		parent = sql.NullInt64{Int64: *created.ParentID, Valid: true}
	}
	if created.FrequencyRange != nil {
		low = sql.NullFloat64{Float64: created.FrequencyRange.Low, Valid: true}
		high = sql.NullFloat64{Float64: created.FrequencyRange.High, Valid: true}
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO comments (track_id, author_id, parent_id, timestamp_seconds, duration_seconds, body, category, status, frequency_low, frequency_high, attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		RETURNING id, created_at, updated_at
	`, created.TrackID, created.AuthorID, parent, created.Timestamp, created.Duration, created.Text,
		string(created.Category), string(created.Status), low, high, string(attachments)).
		Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if constraint, ok := foreignKeyViolation(err); ok {
		// The parent or track was deleted after the caller loaded it.
		switch constraint {
		case "comments_parent_id_fkey":
			return nil, ErrCommentNotFound
		case "comments_track_id_fkey":
			return nil, ErrTrackNotFound
		}
	}
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	created.Reactions = []models.Reaction{}
	return &created, nil
}

// GetComment loads a comment with its reactions.
func (s *Store) GetComment(ctx context.Context, id int64) (*models.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE id = $1
	`, id)
	c, err := scanComment(row)
	if err != nil {
		return nil, err
	}
	reactions, err := s.reactionsFor(ctx, []int64{c.ID})
	if err != nil {
		return nil, err
	}
	c.Reactions = nonNilReactions(reactions[c.ID])
	return c, nil
}

// ListTopLevelComments returns a track's top-level comments ordered by timestamp.
func (s *Store) ListTopLevelComments(ctx context.Context, trackID int64) ([]models.Comment, error) {
	return s.queryComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE track_id = $1 AND parent_id IS NULL
		ORDER BY timestamp_seconds ASC, created_at ASC, id ASC
	`, trackID)
}

// ListReplies returns the replies to any of parentIDs in creation order.
func (s *Store) ListReplies(ctx context.Context, parentIDs []int64) ([]models.Comment, error) {
	if len(parentIDs) == 0 {
		return []models.Comment{}, nil
	}
	return s.queryComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE parent_id = ANY($1)
		ORDER BY created_at ASC, id ASC
	`, pq.Array(parentIDs))
}

// UpdateComment writes text and status.
func (s *Store) UpdateComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	updated := *comment
	err := s.db.QueryRowContext(ctx, `
		UPDATE comments
		SET body = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, updated.ID, updated.Text, string(updated.Status)).Scan(&updated.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return &updated, nil
}

// DeleteComment removes a comment and its replies, returning how many rows went.
func (s *Store) DeleteComment(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM comments
			WHERE parent_id = $1
		`, id)
		if err != nil {
			return fmt.Errorf("delete replies: %w", err)
		}
		replies, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		res, err = tx.ExecContext(ctx, `
			DELETE FROM comments
			WHERE id = $1
		`, id)
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if err := expectAffected(res, ErrCommentNotFound); err != nil {
			return err
		}
		removed = replies + 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ToggleReaction removes the (user, type) reaction if present, otherwise adds it.
// It reports whether a reaction was added.
func (s *Store) ToggleReaction(ctx context.Context, commentID, userID int64, typ models.ReactionType, at time.Time) (bool, error) {
	var added bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM comment_reactions
			WHERE comment_id = $1 AND user_id = $2 AND reaction_type = $3
		`, commentID, userID, string(typ))
		if err != nil {
			return fmt.Errorf("delete reaction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO comment_reactions (comment_id, user_id, reaction_type, created_at)
			VALUES ($1, $2, $3, $4)
		`, commentID, userID, string(typ), at); err != nil {
			return fmt.Errorf("insert reaction: %w", err)
		}
		added = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

func (s *Store) queryComments(ctx context.Context, query string, args ...any) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	var ids []int64
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	if len(ids) == 0 {
		return comments, nil
	}

	reactions, err := s.reactionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].Reactions = nonNilReactions(reactions[comments[i].ID])
	}
	return comments, nil
}

func (s *Store) reactionsFor(ctx context.Context, commentIDs []int64) (map[int64][]models.Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT comment_id, user_id, reaction_type, created_at
		FROM comment_reactions
		WHERE comment_id = ANY($1)
		ORDER BY created_at ASC, user_id ASC, reaction_type ASC
	`, pq.Array(commentIDs))
	if err != nil {
		return nil, fmt.Errorf("select reactions: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.Reaction, len(commentIDs))
	for rows.Next() {
		var (
			commentID int64
			r         models.Reaction
			typ       string
		)
		if err := rows.Scan(&commentID, &r.UserID, &typ, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		r.Type = models.ReactionType(typ)
		out[commentID] = append(out[commentID], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return out, nil
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var (
		c           models.Comment
		parent      sql.NullInt64
		low, high   sql.NullFloat64
		category    string
		status      string
		attachments []byte
	)
	if err := row.Scan(&c.ID, &c.TrackID, &c.AuthorID, &parent, &c.Timestamp, &c.Duration, &c.Text,
		&category, &status, &low, &high, &attachments, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	c.Category = models.CommentCategory(category)
	c.Status = models.CommentStatus(status)
	if parent.Valid {
		id := parent.Int64
		c.ParentID = &id
	}
	if low.Valid && high.Valid {
		c.FrequencyRange = &models.FrequencyRange{Low: low.Float64, High: high.Float64}
	}
	c.Attachments = []models.Attachment{}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &c.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of comment %d: %w", c.ID, err)
		}
	}
	return &c, nil
}

func nonNilReactions(r []models.Reaction) []models.Reaction {
	if r == nil {
		return []models.Reaction{}
	}
	return r
}
