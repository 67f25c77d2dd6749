package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schedulehq/schedulehq/internal/api/middleware"
	"github.com/schedulehq/schedulehq/internal/invites"
	"github.com/schedulehq/schedulehq/internal/metrics"
	"github.com/schedulehq/schedulehq/internal/models"
)

// InviteService defines the invitation lifecycle operations the handler needs.
type InviteService interface {
	Create(ctx context.Context, req invites.InviteRequest) (*models.Invitation, error)
	Resend(ctx context.Context, invitationID uuid.UUID) error
	Revoke(ctx context.Context, invitationID, revokedBy uuid.UUID) error
	Accept(ctx context.Context, token string, userID uuid.UUID) (*models.Organization, error)
	Details(ctx context.Context, token string) (*models.InvitationWithDetails, error)
	Pending(ctx context.Context, orgID uuid.UUID) ([]*models.InvitationWithDetails, error)
}

// InvitationOrgStore verifies organization ownership for invitation management.
type InvitationOrgStore interface {
	GetOrganizationByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetInvitationByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
}

// InvitationHandler handles invitation lifecycle endpoints.
type InvitationHandler struct {
	service InviteService
	store   InvitationOrgStore
	logger  zerolog.Logger
}

// NewInvitationHandler creates a new InvitationHandler.
func NewInvitationHandler(service InviteService, store InvitationOrgStore, logger zerolog.Logger) *InvitationHandler {
	return &InvitationHandler{
		service: service,
		store:   store,
		logger:  logger.With().Str("component", "invitation_handler").Logger(),
	}
}

// RegisterRoutes registers authenticated invitation routes.
func (h *InvitationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/organizations/:id/invitations", h.Create)
	r.GET("/organizations/:id/invitations", h.ListPending)
	r.POST("/organizations/:id/invitations/:invitation_id/resend", h.Resend)
	r.DELETE("/organizations/:id/invitations/:invitation_id", h.Revoke)
	r.POST("/invitations/accept", h.Accept)
}

// RegisterPublicRoutes registers routes that need no session, so an invitee
// can inspect an invitation before logging in.
func (h *InvitationHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/invitations/:token", h.Details)
}

// CreateInvitationRequest is the request body for creating an invitation.
type CreateInvitationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Create invites an email address to the organization. Owner only.
func (h *InvitationHandler) Create(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	org, ok := h.ownedOrg(c, user.ID)
	if !ok {
		return
	}

	var req CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv, err := h.service.Create(c.Request.Context(), invites.InviteRequest{
		Email:     req.Email,
		OrgID:     org.ID,
		InvitedBy: user.ID,
	})
	if err != nil {
		if errors.Is(err, models.ErrAlreadyMember) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("org_id", org.ID.String()).Msg("failed to create invitation")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	metrics.InvitationsCreated.Inc()
	c.JSON(http.StatusCreated, inv)
}

// ListPending returns the organization's pending invitations. Owner only.
func (h *InvitationHandler) ListPending(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	org, ok := h.ownedOrg(c, user.ID)
	if !ok {
		return
	}

	pending, err := h.service.Pending(c.Request.Context(), org.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("org_id", org.ID.String()).Msg("failed to list invitations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invitations"})
		return
	}
	if pending == nil {
		pending = []*models.InvitationWithDetails{}
	}

	c.JSON(http.StatusOK, pending)
}

// Resend re-sends the invitation email without changing the token. Owner only.
func (h *InvitationHandler) Resend(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	inv, ok := h.ownedInvitation(c, user.ID)
	if !ok {
		return
	}

	if err := h.service.Resend(c.Request.Context(), inv.ID); err != nil {
		if errors.Is(err, models.ErrInvalidInvitation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invitation is used or expired"})
			return
		}
		h.logger.Error().Err(err).Str("invitation_id", inv.ID.String()).Msg("failed to resend invitation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resend invitation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "invitation resent"})
}

// Revoke deletes a pending invitation. Owner only.
func (h *InvitationHandler) Revoke(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	inv, ok := h.ownedInvitation(c, user.ID)
	if !ok {
		return
	}

	if err := h.service.Revoke(c.Request.Context(), inv.ID, user.ID); err != nil {
		if errors.Is(err, models.ErrInvalidInvitation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invitation cannot be revoked"})
			return
		}
		h.logger.Error().Err(err).Str("invitation_id", inv.ID.String()).Msg("failed to revoke invitation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke invitation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "invitation revoked"})
}

// AcceptInvitationRequest is the request body for accepting an invitation.
type AcceptInvitationRequest struct {
	Token string `json:"token" binding:"required"`
}

// Accept redeems an invitation token for the caller, making them a member of
// the inviting organization. A token can be accepted exactly once.
func (h *InvitationHandler) Accept(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	var req AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	org, err := h.service.Accept(c.Request.Context(), req.Token, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidInvitation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invitation is invalid, used, or expired"})
		case errors.Is(err, models.ErrAlreadyMember):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, models.ErrInvitationEmailMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			h.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to accept invitation")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept invitation"})
		}
		return
	}

	metrics.InvitationsAccepted.Inc()
	h.logger.Info().
		Str("user_id", user.ID.String()).
		Str("org_id", org.ID.String()).
		Msg("invitation accepted")

	c.JSON(http.StatusOK, gin.H{"organization": org})
}

// Details returns public details for a pending invitation token.
func (h *InvitationHandler) Details(c *gin.Context) {
	details, err := h.service.Details(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, models.ErrInvalidInvitation) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invitation is invalid, used, or expired"})
			return
		}
		h.logger.Error().Err(err).Msg("failed to get invitation details")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get invitation"})
		return
	}

	c.JSON(http.StatusOK, details)
}

// ownedOrg loads the organization from the :id path parameter and verifies
// the caller owns it.
func (h *InvitationHandler) ownedOrg(c *gin.Context, userID uuid.UUID) (*models.Organization, bool) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return nil, false
	}

	org, err := h.store.GetOrganizationByID(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return nil, false
	}

	if !org.IsOwnedBy(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the organization owner may manage invitations"})
		return nil, false
	}

	return org, true
}

// ownedInvitation loads the invitation from the :invitation_id path
// parameter after verifying the caller owns the organization in the :id
// parameter, and checks the invitation belongs to that organization.
func (h *InvitationHandler) ownedInvitation(c *gin.Context, userID uuid.UUID) (*models.Invitation, bool) {
	org, ok := h.ownedOrg(c, userID)
	if !ok {
		return nil, false
	}

	invID, err := uuid.Parse(c.Param("invitation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invitation ID"})
		return nil, false
	}

	inv, err := h.store.GetInvitationByID(c.Request.Context(), invID)
	if err != nil || inv.OrgID != org.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "invitation not found"})
		return nil, false
	}

	return inv, true
}
