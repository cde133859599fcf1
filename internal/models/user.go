package models

import (
	"time"

	"github.com/google/uuid"
)

type AuthType string

const (
	AuthTypeLocal  AuthType = "local"
	AuthTypeGoogle AuthType = "google"
)

const RoleCustomer = 2

type User struct {
	ID           uuid.UUID
	AuthType     AuthType
	Username     *string
	Email        string
	FirstName    *string
	LastName     *string
	About        *string
	AvatarURL    *string
	Phone        *string
	BirthDate    *time.Time
	PasswordHash *string
	IsActivated  bool
	IsLocked     bool
	RoleID       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is one login session. Deleting the row invalidates the
// session immediately; rotation replaces the row on every refresh.
type RefreshToken struct {
	ID        int64
	UserID    uuid.UUID
	Token     string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PendingRegistration lives only in the cache, keyed by the verification
// code, with a secondary user-id key pointing back at the code. ResendCount
// tracks how many times the code was re-issued.
type PendingRegistration struct {
	ID           uuid.UUID `json:"id"`
	AuthType     AuthType  `json:"auth_type"`
	Username     *string   `json:"username,omitempty"`
	Email        string    `json:"email"`
	FirstName    *string   `json:"first_name,omitempty"`
	LastName     *string   `json:"last_name,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash *string   `json:"hash_password,omitempty"`
	ResendCount  int       `json:"count"`
}
