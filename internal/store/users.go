package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mixnotes/internal/models"
)

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

// CreateUser inserts a user. Emails are stored lower-cased.
func (s *Store) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	created := *user
	created.Email = strings.ToLower(strings.TrimSpace(user.Email))

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, created.Name, created.Email, created.PasswordHash, string(created.Role)).
		Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &created, nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

// GetUserByEmail loads a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// UpdateUser saves name, email, role and password hash.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, role = $4, password_hash = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, user.ID, user.Name, strings.ToLower(strings.TrimSpace(user.Email)), string(user.Role), user.PasswordHash)
	updated, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return updated, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}
