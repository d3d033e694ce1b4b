package models

import "time"

// Role names recognised for users.
const (
	RoleBasic     = "basic"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User is an account that can author or be assigned tasks.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func IsValidRole(role string) bool {
	switch role {
	case RoleBasic, RoleModerator, RoleAdmin:
		return true
	}
	return false
}
