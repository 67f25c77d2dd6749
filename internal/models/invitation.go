package models

import (
	"time"

	"github.com/google/uuid"
)

// Invitation represents an invitation to join an organization as a member.
//
// Lifecycle: Created -> Accepted | Expired. Accepting sets Used and creates
// the membership in the same transaction; expiry is derived from ExpiresAt
// and never written back.
type Invitation struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"` // never exposed in JSON
	InvitedBy uuid.UUID `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// InvitationWithDetails includes organization and inviter details for display.
type InvitationWithDetails struct {
	ID          uuid.UUID `json:"id"`
	OrgID       uuid.UUID `json:"org_id"`
	OrgName     string    `json:"org_name"`
	Email       string    `json:"email"`
	InvitedBy   uuid.UUID `json:"invited_by"`
	InviterName string    `json:"inviter_name"`
	ExpiresAt   time.Time `json:"expires_at"`
	Used        bool      `json:"used"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewInvitation creates a new Invitation in the Created state.
func NewInvitation(orgID uuid.UUID, email, token string, invitedBy uuid.UUID, expiresAt time.Time) *Invitation {
	return &Invitation{
		ID:        uuid.New(),
		OrgID:     orgID,
		Email:     email,
		Token:     token,
		InvitedBy: invitedBy,
		ExpiresAt: expiresAt,
		Used:      false,
		CreatedAt: time.Now(),
	}
}

// IsExpired returns true if the invitation expiry has passed.
func (i *Invitation) IsExpired() bool {
	return !time.Now().Before(i.ExpiresAt)
}

// IsPending returns true if the invitation is still in the Created state:
// unused and unexpired.
func (i *Invitation) IsPending() bool {
	return !i.Used && !i.IsExpired()
}
