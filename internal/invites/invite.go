// Package invites manages the organization invitation lifecycle.
package invites

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schedulehq/schedulehq/internal/models"
	"github.com/schedulehq/schedulehq/internal/notifications"
)

// DefaultExpiryDuration is the default expiry for invitations (7 days).
const DefaultExpiryDuration = 7 * 24 * time.Hour

// Store defines the interface for invitation persistence operations.
// RedeemInvitation must consume the token and create the membership as one
// atomic unit, returning models.ErrInvalidInvitation when the token is
// unknown, used, or expired.
type Store interface {
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitationByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error)
	GetPendingInvitationsByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.InvitationWithDetails, error)
	GetPendingInvitationsByEmail(ctx context.Context, email string) ([]*models.InvitationWithDetails, error)
	DeleteInvitation(ctx context.Context, id uuid.UUID) error
	RedeemInvitation(ctx context.Context, token string, userID uuid.UUID) (*models.Organization, error)

	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error)
	GetOrganizationByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Mailer sends invitation notification emails.
type Mailer interface {
	SendInvitation(to []string, data notifications.InvitationData) error
}

// InviteRequest represents a request to create an invitation.
type InviteRequest struct {
	Email     string    `json:"email" binding:"required,email"`
	OrgID     uuid.UUID `json:"-"`
	InvitedBy uuid.UUID `json:"-"`
}

// Service handles invitation operations. Invitations always grant the
// member role; owners are never invited, they create organizations.
type Service struct {
	store   Store
	mailer  Mailer
	baseURL string
	logger  zerolog.Logger
}

// NewService creates a new invite service. mailer may be nil, in which case
// no emails are sent.
func NewService(store Store, mailer Mailer, baseURL string, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		mailer:  mailer,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With().Str("component", "invite_service").Logger(),
	}
}

// GenerateToken generates a secure random token for invitations.
func GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// InviteLink returns the full invitation URL for a token.
func (s *Service) InviteLink(token string) string {
	return fmt.Sprintf("%s/invite/%s", s.baseURL, token)
}

// Create creates a new invitation and sends the notification email. Email
// delivery is fire-and-forget: a send failure is logged and the created
// invitation stays valid.
func (s *Service) Create(ctx context.Context, req InviteRequest) (*models.Invitation, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Refuse to invite someone who already belongs to the organization.
	if existing, err := s.store.GetUserByEmail(ctx, email); err == nil && existing != nil {
		if m, err := s.store.GetMembershipByUserAndOrg(ctx, existing.ID, req.OrgID); err == nil && m != nil {
			return nil, models.ErrAlreadyMember
		}
	}

	pending, err := s.store.GetPendingInvitationsByEmail(ctx, email)
	if err == nil {
		for _, inv := range pending {
			if inv.OrgID == req.OrgID {
				return nil, fmt.Errorf("a pending invitation already exists for %s", email)
			}
		}
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	inv := models.NewInvitation(req.OrgID, email, token, req.InvitedBy, time.Now().Add(DefaultExpiryDuration))
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("store invitation: %w", err)
	}

	s.logger.Info().
		Str("invitation_id", inv.ID.String()).
		Str("email", email).
		Str("org_id", req.OrgID.String()).
		Str("invited_by", req.InvitedBy.String()).
		Msg("invitation created")

	if err := s.sendEmail(ctx, inv); err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("failed to send invitation email")
	}

	return inv, nil
}

// Resend re-delivers the notification for an existing invitation. It issues
// no new token and changes no state; an invitation that is already used or
// expired returns models.ErrInvalidInvitation.
func (s *Service) Resend(ctx context.Context, invitationID uuid.UUID) error {
	inv, err := s.store.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return models.ErrInvalidInvitation
	}

	if !inv.IsPending() {
		return models.ErrInvalidInvitation
	}

	if err := s.sendEmail(ctx, inv); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info().
		Str("invitation_id", invitationID.String()).
		Str("email", inv.Email).
		Msg("invitation resent")

	return nil
}

// Revoke deletes a pending invitation. Used invitations cannot be revoked.
func (s *Service) Revoke(ctx context.Context, invitationID, revokedBy uuid.UUID) error {
	inv, err := s.store.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return models.ErrInvalidInvitation
	}
	if inv.Used {
		return models.ErrInvalidInvitation
	}

	if err := s.store.DeleteInvitation(ctx, invitationID); err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}

	s.logger.Info().
		Str("invitation_id", invitationID.String()).
		Str("email", inv.Email).
		Str("revoked_by", revokedBy.String()).
		Msg("invitation revoked")

	return nil
}

// Accept redeems an invitation token for the given user. The store applies
// the token consumption and membership creation atomically, so a raced
// double-accept lets exactly one caller through.
func (s *Service) Accept(ctx context.Context, token string, userID uuid.UUID) (*models.Organization, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	inv, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, models.ErrInvalidInvitation
	}
	if !strings.EqualFold(user.Email, inv.Email) {
		return nil, models.ErrInvitationEmailMismatch
	}

	org, err := s.store.RedeemInvitation(ctx, token, userID)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInvitation) || errors.Is(err, models.ErrAlreadyMember) {
			return nil, err
		}
		return nil, fmt.Errorf("redeem invitation: %w", err)
	}

	s.logger.Info().
		Str("invitation_id", inv.ID.String()).
		Str("user_id", userID.String()).
		Str("org_id", org.ID.String()).
		Msg("invitation accepted")

	return org, nil
}

// Details returns invitation details by token for the public accept page.
// Used and expired invitations return models.ErrInvalidInvitation so the
// page never offers a dead token.
func (s *Service) Details(ctx context.Context, token string) (*models.InvitationWithDetails, error) {
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, models.ErrInvalidInvitation
	}
	if !inv.IsPending() {
		return nil, models.ErrInvalidInvitation
	}

	org, err := s.store.GetOrganizationByID(ctx, inv.OrgID)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}

	inviterName := "A team member"
	if inviter, err := s.store.GetUserByID(ctx, inv.InvitedBy); err == nil && inviter != nil {
		inviterName = inviter.Name
		if inviterName == "" {
			inviterName = inviter.Email
		}
	}

	return &models.InvitationWithDetails{
		ID:          inv.ID,
		OrgID:       inv.OrgID,
		OrgName:     org.Name,
		Email:       inv.Email,
		InvitedBy:   inv.InvitedBy,
		InviterName: inviterName,
		ExpiresAt:   inv.ExpiresAt,
		Used:        inv.Used,
		CreatedAt:   inv.CreatedAt,
	}, nil
}

// Pending returns all pending invitations for an organization.
func (s *Service) Pending(ctx context.Context, orgID uuid.UUID) ([]*models.InvitationWithDetails, error) {
	return s.store.GetPendingInvitationsByOrgID(ctx, orgID)
}

// sendEmail renders and sends the invitation notification.
func (s *Service) sendEmail(ctx context.Context, inv *models.Invitation) error {
	if s.mailer == nil {
		return nil
	}

	org, err := s.store.GetOrganizationByID(ctx, inv.OrgID)
	if err != nil {
		return fmt.Errorf("get organization: %w", err)
	}

	inviterName := "A team member"
	if inviter, err := s.store.GetUserByID(ctx, inv.InvitedBy); err == nil && inviter != nil {
		inviterName = inviter.Name
		if inviterName == "" {
			inviterName = inviter.Email
		}
	}

	return s.mailer.SendInvitation([]string{inv.Email}, notifications.InvitationData{
		OrgName:     org.Name,
		InviterName: inviterName,
		InviteLink:  s.InviteLink(inv.Token),
		ExpiresAt:   inv.ExpiresAt,
	})
}
