package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a multi-tenant agency. The creator is the owner;
// ownership is not transferable.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrganization creates a new Organization owned by the given user.
func NewOrganization(name, slug string, ownerID uuid.UUID) *Organization {
	now := time.Now()
	return &Organization{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsOwnedBy returns true if the given user created this organization.
func (o *Organization) IsOwnedBy(userID uuid.UUID) bool {
	return o.OwnerID == userID
}
