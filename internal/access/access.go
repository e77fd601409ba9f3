// Package access resolves what a user may do on a project.
package access

import (
	"mixnotes/internal/apperr"
	"mixnotes/internal/models"
)

// Set is a bitmask of permissions.
type Set uint8

const (
	View Set = 1 << iota
	Comment
	Edit
	Admin

	None Set = 0
	Full     = View | Comment | Edit | Admin
)

func bit(p models.Permission) Set {
	switch p {
	case models.PermissionView:
		return View
	case models.PermissionComment:
		return Comment
	case models.PermissionEdit:
		return Edit
	case models.PermissionAdmin:
		return Admin
	default:
		return None
	}
}

// FromPermissions folds a permission list into a Set. Unknown labels are ignored.
func FromPermissions(perms []models.Permission) Set {
	var s Set
	for _, p := range perms {
		s |= bit(p)
	}
	return s
}

// Has reports whether p is in the set.
func (s Set) Has(p models.Permission) bool {
	b := bit(p)
	return b != None && s&b == b
}

// Permissions lists the set in canonical order.
func (s Set) Permissions() []models.Permission {
	out := make([]models.Permission, 0, 4)
	for _, p := range models.AllPermissions {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Resolve returns the capabilities of userID on project.
// The owner always holds every capability regardless of stored collaborator rows.
func Resolve(userID int64, project *models.Project) Set {
	if project == nil {
		return None
	}
	if project.OwnerID == userID {
		return Full
	}
	c, ok := project.Collaborator(userID)
	if !ok {
		return None
	}
	return FromPermissions(c.Permissions)
}

// Can reports whether userID holds perm on project.
// Anyone may view a project that is not private.
func Can(userID int64, project *models.Project, perm models.Permission) bool {
	if project == nil {
		return false
	}
	if perm == models.PermissionView && !project.IsPrivate {
		return true
	}
	return Resolve(userID, project).Has(perm)
}

// Require returns a Forbidden error unless userID holds perm on project.
func Require(userID int64, project *models.Project, perm models.Permission) error {
	if Can(userID, project, perm) {
		return nil
	}
	return apperr.Forbidden("you do not have %s access to this project", perm)
}

// IsOwner reports whether userID owns project.
func IsOwner(userID int64, project *models.Project) bool {
	return project != nil && project.OwnerID == userID
}
