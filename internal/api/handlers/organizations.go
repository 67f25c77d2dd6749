package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schedulehq/schedulehq/internal/api/middleware"
	"github.com/schedulehq/schedulehq/internal/db"
	"github.com/schedulehq/schedulehq/internal/models"
	"github.com/schedulehq/schedulehq/internal/slug"
)

// OrgStore defines the interface for organization persistence operations.
type OrgStore interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganizationByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetUserOrganizations(ctx context.Context, userID uuid.UUID) ([]*models.Organization, error)
	GetMembershipsByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.MembershipWithUser, error)
}

// OrganizationHandler handles organization CRUD endpoints.
type OrganizationHandler struct {
	store  OrgStore
	roles  RoleResolver
	logger zerolog.Logger
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(store OrgStore, roles RoleResolver, logger zerolog.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		store:  store,
		roles:  roles,
		logger: logger.With().Str("component", "org_handler").Logger(),
	}
}

// RegisterRoutes registers organization routes on the given router group.
func (h *OrganizationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/organizations", h.Create)
	r.GET("/organizations", h.List)
	r.GET("/organizations/:id", h.Get)
	r.GET("/organizations/:id/members", h.ListMembers)
	r.GET("/me/role", h.MyRole)
}

// CreateOrganizationRequest is the request body for creating an organization.
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// Create creates a new organization owned by the caller. Creating an
// organization is what makes a user an owner; the owner membership is
// written by the store in the same transaction.
func (h *OrganizationHandler) Create(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	org := models.NewOrganization(req.Name, slug.Make(req.Name), user.ID)
	if err := h.store.CreateOrganization(c.Request.Context(), org); err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to create organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create organization"})
		return
	}

	h.logger.Info().
		Str("org_id", org.ID.String()).
		Str("owner_id", user.ID.String()).
		Str("slug", org.Slug).
		Msg("organization created")

	c.JSON(http.StatusCreated, org)
}

// List returns all organizations the caller belongs to.
func (h *OrganizationHandler) List(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	orgs, err := h.store.GetUserOrganizations(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to list organizations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list organizations"})
		return
	}
	if orgs == nil {
		orgs = []*models.Organization{}
	}

	c.JSON(http.StatusOK, orgs)
}

// Get returns one organization the caller belongs to.
func (h *OrganizationHandler) Get(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return
	}

	org, ok := h.memberOrg(c, user.ID, orgID)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, org)
}

// ListMembers returns the members of an organization. Only the organization's
// owner may list members.
func (h *OrganizationHandler) ListMembers(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	org, ok := h.ownedOrg(c, user.ID)
	if !ok {
		return
	}

	members, err := h.store.GetMembershipsByOrgID(c.Request.Context(), org.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("org_id", org.ID.String()).Msg("failed to list members")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
		return
	}
	if members == nil {
		members = []*models.MembershipWithUser{}
	}

	c.JSON(http.StatusOK, members)
}

// MyRole returns the caller's derived dashboard role.
func (h *OrganizationHandler) MyRole(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	role, err := h.roles.Resolve(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to resolve role")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve role"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"role": role})
}

// ownedOrg loads the organization from the :id path parameter and verifies
// the caller owns it, writing the error response on failure. Non-owners get
// 403 regardless of membership.
func (h *OrganizationHandler) ownedOrg(c *gin.Context, userID uuid.UUID) (*models.Organization, bool) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return nil, false
	}

	org, err := h.store.GetOrganizationByID(c.Request.Context(), orgID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
			return nil, false
		}
		h.logger.Error().Err(err).Str("org_id", orgID.String()).Msg("failed to get organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get organization"})
		return nil, false
	}

	if !org.IsOwnedBy(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the organization owner may do this"})
		return nil, false
	}

	return org, true
}

// memberOrg loads the organization and verifies the caller belongs to it.
func (h *OrganizationHandler) memberOrg(c *gin.Context, userID, orgID uuid.UUID) (*models.Organization, bool) {
	orgs, err := h.store.GetUserOrganizations(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list organizations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get organization"})
		return nil, false
	}

	for _, org := range orgs {
		if org.ID == orgID {
			return org, true
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
	return nil, false
}
