package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is an advisory label describing what a person does on a project.
// It never grants capabilities on its own.
type Role string

const (
	RoleArtist   Role = "artist"
	RoleProducer Role = "producer"
	RoleEngineer Role = "engineer"
	RoleManager  Role = "manager"
	RoleListener Role = "listener"
)

// ParseRole normalizes a role label; empty input yields the default artist role.
func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case "":
		return RoleArtist, nil
	case RoleArtist, RoleProducer, RoleEngineer, RoleManager, RoleListener:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
