package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"mixnotes/internal/apperr"
)

var (
	// ErrUserExists signals the email is already registered.
	ErrUserExists = apperr.Conflict("email already registered")
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = apperr.NotFound("user not found")
	// ErrProjectNotFound indicates the project does not exist.
	ErrProjectNotFound = apperr.NotFound("project not found")
	// ErrTrackNotFound indicates the track does not exist.
	ErrTrackNotFound = apperr.NotFound("track not found")
	// ErrCommentNotFound indicates the comment does not exist.
	ErrCommentNotFound = apperr.NotFound("comment not found")
	// ErrCollaboratorNotFound indicates the user is not a collaborator on the project.
	ErrCollaboratorNotFound = apperr.NotFound("collaborator not found")
	// ErrDuplicateCollaborator signals the user already collaborates on the project.
	ErrDuplicateCollaborator = apperr.Validation("user is already a collaborator on this project")
	// ErrVersionExists signals the predecessor already has a successor.
	ErrVersionExists = apperr.Consistency("track already has a newer version")
)

// Store provides persistence backed by Postgres.
type Store struct {
	db *sql.DB
}

// New sets up a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// inTx runs fn inside a transaction and commits when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	tx = nil
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// foreignKeyViolation reports the violated constraint when err is SQLSTATE 23503.
func foreignKeyViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

type rowScanner interface {
	Scan(dest ...any) error
}
