package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"mixnotes/internal/models"
)

const projectColumns = `id, title, description, owner_id, status, tags, is_private, created_at, updated_at`

// CreateProject inserts a project. Collaborators on the input are ignored.
func (s *Store) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	created := *project
	created.Collaborators = nil
	if created.Tags == nil {
		created.Tags = []string{}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (title, description, owner_id, status, tags, is_private)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, created.Title, created.Description, created.OwnerID, string(created.Status), pq.Array(created.Tags), created.IsPrivate).
		Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	created.Collaborators = []models.Collaborator{}
	return &created, nil
}

// GetProject loads a project with its collaborators.
func (s *Store) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1
	`, id)
	project, err := scanProject(row)
	if err != nil {
		return nil, err
	}

	collaborators, err := s.collaboratorsFor(ctx, []int64{project.ID})
	if err != nil {
		return nil, err
	}
	project.Collaborators = collaborators[project.ID]
	if project.Collaborators == nil {
		project.Collaborators = []models.Collaborator{}
	}
	return project, nil
}

// ListProjectsForUser returns projects owned by or shared with userID, most recently updated first.
func (s *Store) ListProjectsForUser(ctx context.Context, userID int64) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects p
		WHERE p.owner_id = $1
		   OR EXISTS (
			SELECT 1 FROM project_collaborators c
			WHERE c.project_id = p.id AND c.user_id = $1
		   )
		ORDER BY p.updated_at DESC, p.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	defer rows.Close()

	var (
		projects []models.Project
		ids      []int64
	)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	if len(projects) == 0 {
		return []models.Project{}, nil
	}

	collaborators, err := s.collaboratorsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].Collaborators = collaborators[projects[i].ID]
		if projects[i].Collaborators == nil {
			projects[i].Collaborators = []models.Collaborator{}
		}
	}
	return projects, nil
}

// UpdateProject writes the mutable project fields. Owner and id are never changed.
func (s *Store) UpdateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	updated := *project
	if updated.Tags == nil {
		updated.Tags = []string{}
	}

	err := s.db.QueryRowContext(ctx, `
		UPDATE projects
		SET title = $2, description = $3, status = $4, tags = $5, is_private = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, updated.ID, updated.Title, updated.Description, string(updated.Status), pq.Array(updated.Tags), updated.IsPrivate).
		Scan(&updated.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("update project: %w", err)
	}
	return &updated, nil
}

// DeleteProject removes a project; tracks, comments and collaborators cascade.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectAffected(res, ErrProjectNotFound)
}

// AddCollaborator inserts a collaborator row. A second row for the same user fails.
func (s *Store) AddCollaborator(ctx context.Context, projectID int64, c models.Collaborator) (models.Collaborator, error) {
	added := c
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO project_collaborators (project_id, user_id, role, permissions)
		VALUES ($1, $2, $3, $4)
		RETURNING added_at
	`, projectID, c.UserID, string(c.Role), pq.Array(permissionStrings(c.Permissions))).Scan(&added.AddedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Collaborator{}, ErrDuplicateCollaborator
		}
		return models.Collaborator{}, fmt.Errorf("insert collaborator: %w", err)
	}
	if err := s.touchProject(ctx, projectID); err != nil {
		return models.Collaborator{}, err
	}
	return added, nil
}

// UpdateCollaborator replaces role and permissions of an existing collaborator.
func (s *Store) UpdateCollaborator(ctx context.Context, projectID int64, c models.Collaborator) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE project_collaborators
		SET role = $3, permissions = $4
		WHERE project_id = $1 AND user_id = $2
	`, projectID, c.UserID, string(c.Role), pq.Array(permissionStrings(c.Permissions)))
	if err != nil {
		return fmt.Errorf("update collaborator: %w", err)
	}
	if err := expectAffected(res, ErrCollaboratorNotFound); err != nil {
		return err
	}
	return s.touchProject(ctx, projectID)
}

// RemoveCollaborator deletes a collaborator row.
func (s *Store) RemoveCollaborator(ctx context.Context, projectID, userID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM project_collaborators
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("delete collaborator: %w", err)
	}
	if err := expectAffected(res, ErrCollaboratorNotFound); err != nil {
		return err
	}
	return s.touchProject(ctx, projectID)
}

func (s *Store) touchProject(ctx context.Context, projectID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE projects SET updated_at = NOW() WHERE id = $1
	`, projectID); err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	return nil
}

func (s *Store) collaboratorsFor(ctx context.Context, projectIDs []int64) (map[int64][]models.Collaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, user_id, role, permissions, added_at
		FROM project_collaborators
		WHERE project_id = ANY($1)
		ORDER BY added_at ASC, user_id ASC
	`, pq.Array(projectIDs))
	if err != nil {
		return nil, fmt.Errorf("select collaborators: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.Collaborator, len(projectIDs))
	for rows.Next() {
		var (
			projectID int64
			c         models.Collaborator
			role      string
			perms     pq.StringArray
		)
		if err := rows.Scan(&projectID, &c.UserID, &role, &perms, &c.AddedAt); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		c.Role = models.Role(role)
		c.Permissions = make([]models.Permission, len(perms))
		for i, p := range perms {
			c.Permissions[i] = models.Permission(p)
		}
		out[projectID] = append(out[projectID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaborators: %w", err)
	}
	return out, nil
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		p      models.Project
		status string
		tags   pq.StringArray
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.OwnerID, &status, &tags, &p.IsPrivate, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.Status = models.ProjectStatus(status)
	p.Tags = []string(tags)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

func permissionStrings(perms []models.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
