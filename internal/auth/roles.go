package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schedulehq/schedulehq/internal/models"
)

// Role is the dashboard-level role derived for a user on each request.
// It selects exactly one of the three dashboard variants and gates which
// calendar views and invite flows are reachable. It is never persisted or
// cached across logins.
type Role string

const (
	// RoleOwner sees the agency dashboard and can read member availability.
	RoleOwner Role = "owner"
	// RoleMember sees the member dashboard.
	RoleMember Role = "member"
	// RoleFreelancer is the default for users with no organization ties.
	RoleFreelancer Role = "freelancer"
)

// DeriveRole classifies a user from their organization relationships.
// First match wins:
//  1. owns any organization -> owner
//  2. holds an owner membership -> owner
//  3. holds a member membership -> member
//  4. otherwise -> freelancer
//
// Ownership of any organization always beats a lesser membership elsewhere,
// so owner-level permissions are never hidden behind a lesser role.
func DeriveRole(ownsOrganization bool, membership models.MembershipRole) Role {
	switch {
	case ownsOrganization:
		return RoleOwner
	case membership == models.MembershipRoleOwner:
		return RoleOwner
	case membership == models.MembershipRoleMember:
		return RoleMember
	default:
		return RoleFreelancer
	}
}

// RoleStore is the storage contract the resolver needs.
type RoleStore interface {
	CountOrganizationsOwnedBy(ctx context.Context, userID uuid.UUID) (int, error)
	GetMembershipsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error)
}

// RoleResolver derives a user's dashboard role from the store.
type RoleResolver struct {
	store RoleStore
}

// NewRoleResolver creates a new RoleResolver.
func NewRoleResolver(store RoleStore) *RoleResolver {
	return &RoleResolver{store: store}
}

// Resolve derives the role for the given user. With multiple memberships the
// strongest membership role is used as the classification input.
func (r *RoleResolver) Resolve(ctx context.Context, userID uuid.UUID) (Role, error) {
	owned, err := r.store.CountOrganizationsOwnedBy(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("count owned organizations: %w", err)
	}

	memberships, err := r.store.GetMembershipsByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list memberships: %w", err)
	}

	var strongest models.MembershipRole
	for _, m := range memberships {
		if m.Role == models.MembershipRoleOwner {
			strongest = models.MembershipRoleOwner
			break
		}
		strongest = models.MembershipRoleMember
	}

	return DeriveRole(owned > 0, strongest), nil
}
