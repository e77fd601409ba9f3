package projects

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"mixnotes/internal/access"
	"mixnotes/internal/apperr"
	"mixnotes/internal/logging"
	"mixnotes/internal/models"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 500
)

// Store describes the persistence operations required by the project service.
type Store interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateProject(ctx context.Context, project *models.Project) (*models.Project, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	ListProjectsForUser(ctx context.Context, userID int64) ([]models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) (*models.Project, error)
	DeleteProject(ctx context.Context, id int64) error
	AddCollaborator(ctx context.Context, projectID int64, c models.Collaborator) (models.Collaborator, error)
	UpdateCollaborator(ctx context.Context, projectID int64, c models.Collaborator) error
	RemoveCollaborator(ctx context.Context, projectID, userID int64) error
}

// Draft is the input for a new project.
type Draft struct {
	Title       string
	Description string
	Status      string
	Tags        []string
	IsPrivate   *bool
}

// Patch lists the editable project fields. Nil fields are left alone.
// OwnerID may be echoed back unchanged but never reassigned.
type Patch struct {
	Title       *string
	Description *string
	Status      *string
	Tags        []string
	IsPrivate   *bool
	OwnerID     *int64
}

// CollaboratorInput describes a collaborator to add or edit.
// An empty Role or nil Permissions means "default" on add and "keep" on update.
type CollaboratorInput struct {
	UserID      int64
	Role        string
	Permissions []string
}

// Service exposes project and membership workflows.
type Service interface {
	Create(ctx context.Context, actorID int64, draft Draft) (*models.Project, error)
	Get(ctx context.Context, actorID, projectID int64) (*models.Project, error)
	ListForUser(ctx context.Context, actorID int64) ([]models.Project, error)
	Update(ctx context.Context, actorID, projectID int64, patch Patch) (*models.Project, error)
	Delete(ctx context.Context, actorID, projectID int64) error
	AddCollaborator(ctx context.Context, actorID, projectID int64, in CollaboratorInput) (*models.Project, error)
	UpdateCollaborator(ctx context.Context, actorID, projectID int64, in CollaboratorInput) (*models.Project, error)
	RemoveCollaborator(ctx context.Context, actorID, projectID, userID int64) (*models.Project, error)
}

type service struct {
	store Store
}

// New wires a Service backed by the provided Store.
func New(store Store) Service {
	return &service{store: store}
}

func (s *service) Create(ctx context.Context, actorID int64, draft Draft) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	title, err := validTitle(draft.Title)
	if err != nil {
		return nil, err
	}
	description, err := validDescription(draft.Description)
	if err != nil {
		return nil, err
	}
	status, err := models.ParseProjectStatus(draft.Status)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	private := true
	if draft.IsPrivate != nil {
		private = *draft.IsPrivate
	}

	created, err := s.store.CreateProject(ctx, &models.Project{
		Title:       title,
		Description: description,
		OwnerID:     actorID,
		Status:      status,
		Tags:        normalizeTags(draft.Tags),
		IsPrivate:   private,
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	logging.WithContext(ctx).Info().Int64("project_id", created.ID).Msg("project created")
	return created, nil
}

func (s *service) Get(ctx context.Context, actorID, projectID int64) (*models.Project, error) {
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
	return project, nil
}

func (s *service) ListForUser(ctx context.Context, actorID int64) ([]models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjectsForUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *service) Update(ctx context.Context, actorID, projectID int64, patch Patch) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actorID, project, models.PermissionAdmin); err != nil {
		return nil, err
	}
	if patch.OwnerID != nil && *patch.OwnerID != project.OwnerID {
		return nil, apperr.Validation("project owner cannot be changed")
	}

	if patch.Title != nil {
		if project.Title, err = validTitle(*patch.Title); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		if project.Description, err = validDescription(*patch.Description); err != nil {
			return nil, err
		}
	}
	if patch.Status != nil {
		if strings.TrimSpace(*patch.Status) == "" {
			return nil, apperr.Validation("status must not be empty")
		}
		status, err := models.ParseProjectStatus(*patch.Status)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		project.Status = status
	}
	if patch.Tags != nil {
		project.Tags = normalizeTags(patch.Tags)
	}
	if patch.IsPrivate != nil {
		project.IsPrivate = *patch.IsPrivate
	}

	updated, err := s.store.UpdateProject(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, actorID, projectID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !access.IsOwner(actorID, project) {
		return apperr.Forbidden("only the project owner can delete this project")
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	logging.WithContext(ctx).Info().Int64("project_id", projectID).Msg("project deleted")
	return nil
}

func (s *service) AddCollaborator(ctx context.Context, actorID, projectID int64, in CollaboratorInput) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.UserID <= 0 {
		return nil, apperr.Validation("userId is required")
	}
	role, perms, err := parseMembership(in)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = append([]models.Permission(nil), models.DefaultPermissions...)
	}

	project, err := s.manageable(ctx, actorID, projectID, in.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	if _, err := s.store.AddCollaborator(ctx, project.ID, models.Collaborator{
		UserID:      in.UserID,
		Role:        role,
		Permissions: perms,
	}); err != nil {
		return nil, err
	}
	return s.store.GetProject(ctx, project.ID)
}

func (s *service) UpdateCollaborator(ctx context.Context, actorID, projectID int64, in CollaboratorInput) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	role, perms, err := parseMembership(in)
	if err != nil {
		return nil, err
	}

	project, err := s.manageable(ctx, actorID, projectID, in.UserID)
	if err != nil {
		return nil, err
	}
	current, ok := project.Collaborator(in.UserID)
	if !ok {
		return nil, apperr.NotFound("collaborator not found")
	}
	if strings.TrimSpace(in.Role) != "" {
		current.Role = role
	}
	if perms != nil {
		current.Permissions = perms
	}

	if err := s.store.UpdateCollaborator(ctx, project.ID, current); err != nil {
		return nil, err
	}
	return s.store.GetProject(ctx, project.ID)
}

func (s *service) RemoveCollaborator(ctx context.Context, actorID, projectID, userID int64) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	project, err := s.manageable(ctx, actorID, projectID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.RemoveCollaborator(ctx, project.ID, userID); err != nil {
		return nil, err
	}
	return s.store.GetProject(ctx, project.ID)
}

// manageable loads the project and checks that actorID may change membership of targetID.
func (s *service) manageable(ctx context.Context, actorID, projectID, targetID int64) (*models.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actorID, project, models.PermissionAdmin); err != nil {
		logging.WithContext(ctx).Debug().Int64("project_id", projectID).Msg("membership change denied")
		return nil, err
	}
	if access.IsOwner(targetID, project) {
		return nil, apperr.Validation("the project owner always has full access and cannot be managed as a collaborator")
	}
	return project, nil
}

func parseMembership(in CollaboratorInput) (models.Role, []models.Permission, error) {
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return "", nil, apperr.Validation("%v", err)
	}
	if in.Permissions == nil {
		return role, nil, nil
	}
	perms, err := models.ParsePermissions(in.Permissions)
	if err != nil {
		return "", nil, apperr.Validation("%v", err)
	}
	return role, perms, nil
}

func validTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", apperr.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", apperr.Validation("title must be at most %d characters", maxTitleLength)
	}
	return title, nil
}

func validDescription(raw string) (string, error) {
	description := strings.TrimSpace(raw)
	if description == "" {
		return "", apperr.Validation("description is required")
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return "", apperr.Validation("description must be at most %d characters", maxDescriptionLength)
	}
	return description, nil
}

func normalizeTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}
