package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GuardStore is the storage contract the access guard needs.
type GuardStore interface {
	// OwnsOrganizationWithMember reports whether ownerID owns an organization
	// that memberID is a member of.
	OwnsOrganizationWithMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error)
}

// AccessGuard decides whether one user may read another's availability.
// Ownership is the only elevated relation recognized; there is no
// admin-level delegation.
type AccessGuard struct {
	store  GuardStore
	logger zerolog.Logger
}

// NewAccessGuard creates a new AccessGuard.
func NewAccessGuard(store GuardStore, logger zerolog.Logger) *AccessGuard {
	return &AccessGuard{
		store:  store,
		logger: logger.With().Str("component", "access_guard").Logger(),
	}
}

// CanViewAvailability returns true if acting may read target's availability:
// always for self-access, otherwise only when acting owns an organization
// the target belongs to. The guard fails closed: a store error denies.
func (g *AccessGuard) CanViewAvailability(ctx context.Context, acting, target uuid.UUID) bool {
	if acting == target {
		return true
	}

	ok, err := g.store.OwnsOrganizationWithMember(ctx, acting, target)
	if err != nil {
		g.logger.Warn().Err(err).
			Str("acting_user_id", acting.String()).
			Str("target_user_id", target.String()).
			Msg("membership lookup failed, denying access")
		return false
	}
	return ok
}
