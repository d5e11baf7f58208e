package models

// Role enumerates the two capability levels the auth gate recognizes.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// User is the persisted `users/{uid}` record: subject identity plus role.
type User struct {
	Subject      string `json:"uid" db:"subject"`
	Email        string `json:"email,omitempty" db:"email"`
	Role         Role   `json:"role" db:"role"`
	PasswordHash string `json:"-" db:"password_hash"`
}
