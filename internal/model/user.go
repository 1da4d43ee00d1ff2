package model

import (
	"fmt"
	"time"
)

// User represents an authentication user (separate from facilities).
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
	RoleVolunteer   = "volunteer"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ValidatePassword checks that a password meets the minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidRole reports whether s is a known role.
func ValidRole(s string) bool {
	return s == RoleAdmin || s == RoleCoordinator || s == RoleVolunteer
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin:       3,
		RoleCoordinator: 2,
		RoleVolunteer:   1,
	}
	return levels[role] >= levels[minimum]
}
