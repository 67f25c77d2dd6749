package models

import (
	"time"

	"github.com/google/uuid"
)

// MembershipRole defines the role of a user within an organization.
type MembershipRole string

const (
	// MembershipRoleOwner has full control over the organization.
	MembershipRoleOwner MembershipRole = "owner"
	// MembershipRoleMember can manage their own availability within the organization.
	MembershipRoleMember MembershipRole = "member"
)

// ValidMembershipRoles returns all valid membership roles.
func ValidMembershipRoles() []MembershipRole {
	return []MembershipRole{MembershipRoleOwner, MembershipRoleMember}
}

// IsValidMembershipRole checks if the given role is a valid membership role.
func IsValidMembershipRole(role string) bool {
	for _, r := range ValidMembershipRoles() {
		if string(r) == role {
			return true
		}
	}
	return false
}

// Membership represents a user's membership in an organization.
// A user holds at most one membership row per organization.
type Membership struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	OrgID     uuid.UUID      `json:"org_id"`
	Role      MembershipRole `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MembershipWithUser includes user details for display.
type MembershipWithUser struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	OrgID     uuid.UUID      `json:"org_id"`
	Role      MembershipRole `json:"role"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewMembership creates a new Membership.
func NewMembership(userID, orgID uuid.UUID, role MembershipRole) *Membership {
	now := time.Now()
	return &Membership{
		ID:        uuid.New(),
		UserID:    userID,
		OrgID:     orgID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsOwner returns true if the membership role is owner.
func (m *Membership) IsOwner() bool {
	return m.Role == MembershipRoleOwner
}
