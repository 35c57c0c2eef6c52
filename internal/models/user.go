package models

import "time"

type UserRole string

const (
	RoleUser       UserRole = "user"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "superadmin"
)

var roleRank = map[UserRole]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

func IsValidRole(role UserRole) bool {
	_, ok := roleRank[role]
	return ok
}

// HasAtLeast reports whether role meets or exceeds the required tier.
func HasAtLeast(role, required UserRole) bool {
	return roleRank[role] >= roleRank[required]
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	IsActive     bool      `json:"is_active"`
	FcmToken     *string   `json:"fcm_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserToken is the projection the token cleanup job scans: just enough to
// probe the gateway and unset the token afterwards.
type UserToken struct {
	ID       string
	FcmToken string
}
