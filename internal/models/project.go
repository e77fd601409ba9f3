package models

import (
	"fmt"
	"strings"
	"time"
)

// Permission is a capability a project member may hold.
type Permission string

const (
	PermissionView    Permission = "view"
	PermissionComment Permission = "comment"
	PermissionEdit    Permission = "edit"
	PermissionAdmin   Permission = "admin"
)

// AllPermissions lists every capability in canonical order.
var AllPermissions = []Permission{PermissionView, PermissionComment, PermissionEdit, PermissionAdmin}

// DefaultPermissions is granted to collaborators added without an explicit set.
var DefaultPermissions = []Permission{PermissionView, PermissionComment}

// ParsePermissions validates and de-duplicates permission labels, keeping canonical order.
func ParsePermissions(raw []string) ([]Permission, error) {
	seen := make(map[Permission]bool, len(raw))
	for _, r := range raw {
		p := Permission(strings.ToLower(strings.TrimSpace(r)))
		switch p {
		case PermissionView, PermissionComment, PermissionEdit, PermissionAdmin:
			seen[p] = true
		default:
			return nil, fmt.Errorf("unknown permission %q", r)
		}
	}
	out := make([]Permission, 0, len(seen))
	for _, p := range AllPermissions {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// ProjectStatus tracks where a project is in its production cycle.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectReview     ProjectStatus = "review"
	ProjectCompleted  ProjectStatus = "completed"
)

// ParseProjectStatus normalizes a project status; empty input yields draft.
func ParseProjectStatus(raw string) (ProjectStatus, error) {
	switch status := ProjectStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case "":
		return ProjectDraft, nil
	case ProjectDraft, ProjectInProgress, ProjectReview, ProjectCompleted:
		return status, nil
	default:
		return "", fmt.Errorf("unknown project status %q", raw)
	}
}

// Collaborator is a non-owner member of a project.
type Collaborator struct {
	UserID      int64        `json:"user_id"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
	AddedAt     time.Time    `json:"added_at"`
}

// Project groups tracks under one owner.
type Project struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	OwnerID       int64          `json:"owner_id"`
	Collaborators []Collaborator `json:"collaborators"`
	Status        ProjectStatus  `json:"status"`
	Tags          []string       `json:"tags"`
	IsPrivate     bool           `json:"is_private"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Collaborator returns the stored entries for userID merged into one.
// Legacy data may hold several rows for the same user; their permissions are unioned.
func (p *Project) Collaborator(userID int64) (Collaborator, bool) {
	var (
		merged Collaborator
		found  bool
	)
	for _, c := range p.Collaborators {
		if c.UserID != userID {
			continue
		}
		if !found {
			merged = c
			merged.Permissions = append([]Permission(nil), c.Permissions...)
			found = true
			continue
		}
		merged.Permissions = append(merged.Permissions, c.Permissions...)
	}
	return merged, found
}

// Members lists the owner followed by the stored collaborators.
// The owner entry is synthesized with every permission.
func (p *Project) Members() []Collaborator {
	members := make([]Collaborator, 0, len(p.Collaborators)+1)
	members = append(members, Collaborator{
		UserID:      p.OwnerID,
		Role:        RoleArtist,
		Permissions: append([]Permission(nil), AllPermissions...),
		AddedAt:     p.CreatedAt,
	})
	for _, c := range p.Collaborators {
		if c.UserID == p.OwnerID {
			continue
		}
		members = append(members, c)
	}
	return members
}
