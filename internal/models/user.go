// Package models defines the domain models for ScheduleHQ.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user authenticated via the hosted OIDC provider.
// Identity is owned by the provider; the subject is the stable link to it.
type User struct {
	ID          uuid.UUID `json:"id"`
	OIDCSubject string    `json:"oidc_subject"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewUser creates a new User with the given identity details.
func NewUser(oidcSubject, email, name string) *User {
	now := time.Now()
	return &User{
		ID:          uuid.New(),
		OIDCSubject: oidcSubject,
		Email:       email,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
