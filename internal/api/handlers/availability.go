package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schedulehq/schedulehq/internal/api/middleware"
	"github.com/schedulehq/schedulehq/internal/metrics"
	"github.com/schedulehq/schedulehq/internal/schedule"
)

// DefaultRangeDays is the span returned when no explicit range is requested:
// two weeks starting today.
const DefaultRangeDays = 14

// AvailabilityStore defines the persistence operations for availability.
type AvailabilityStore interface {
	ListAvailability(ctx context.Context, userID uuid.UUID, from, to time.Time) (map[string][]schedule.SlotStart, error)
	ReplaceAvailability(ctx context.Context, userID uuid.UUID, day time.Time, starts []schedule.SlotStart) error
}

// AvailabilityGuard decides whether one user may read another's availability.
type AvailabilityGuard interface {
	CanViewAvailability(ctx context.Context, acting, target uuid.UUID) bool
}

// AvailabilityHandler handles availability calendar endpoints.
type AvailabilityHandler struct {
	store  AvailabilityStore
	guard  AvailabilityGuard
	logger zerolog.Logger
}

// NewAvailabilityHandler creates a new AvailabilityHandler.
func NewAvailabilityHandler(store AvailabilityStore, guard AvailabilityGuard, logger zerolog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		store:  store,
		guard:  guard,
		logger: logger.With().Str("component", "availability_handler").Logger(),
	}
}

// RegisterRoutes registers availability routes on the given router group.
func (h *AvailabilityHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/availability", h.GetMine)
	r.PUT("/availability", h.SaveDay)
	r.GET("/availability/catalog", h.GetCatalog)
	r.GET("/members/:user_id/availability", h.GetMember)
}

// availabilityResponse maps date strings to the day's available slots. Each
// slot serializes with its derived end via schedule.Slot.
type availabilityResponse struct {
	UserID uuid.UUID                  `json:"user_id"`
	From   string                     `json:"from"`
	To     string                     `json:"to"`
	Days   map[string][]schedule.Slot `json:"days"`
}

// GetCatalog returns the fixed universe of bookable slots.
func (h *AvailabilityHandler) GetCatalog(c *gin.Context) {
	slots := make([]schedule.Slot, 0, schedule.CatalogSize)
	for _, s := range schedule.Catalog() {
		slots = append(slots, schedule.Slot{Start: s})
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// GetMine returns the caller's own availability for the requested range.
func (h *AvailabilityHandler) GetMine(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	h.respondRange(c, user.ID)
}

// GetMember returns another user's availability. Self-access is always
// allowed; otherwise the caller must own an organization the target belongs
// to, or the request is rejected with 403.
func (h *AvailabilityHandler) GetMember(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	if !h.guard.CanViewAvailability(c.Request.Context(), user.ID, targetID) {
		metrics.AccessDenied.Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "you may not view this user's availability"})
		return
	}

	h.respondRange(c, targetID)
}

func (h *AvailabilityHandler) respondRange(c *gin.Context, userID uuid.UUID) {
	from, to, err := parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	days, err := h.store.ListAvailability(c.Request.Context(), userID, from, to)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list availability")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list availability"})
		return
	}

	resp := availabilityResponse{
		UserID: userID,
		From:   from.Format(schedule.DateLayout),
		To:     to.Format(schedule.DateLayout),
		Days:   make(map[string][]schedule.Slot, len(days)),
	}
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(schedule.DateLayout)
		if starts, ok := days[key]; ok {
			resp.Days[key] = schedule.DaySlots(day, starts)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// SaveDayRequest is the request body for saving one day's availability.
// Slots is the complete desired selection for the date; an empty list clears
// the day.
type SaveDayRequest struct {
	Date  string               `json:"date" binding:"required"`
	Slots []schedule.SlotStart `json:"slots"`
}

// SaveDay replaces the caller's availability for one date with the submitted
// selection. The whole selection is validated against the catalog before
// anything is written, and persisted atomically.
func (h *AvailabilityHandler) SaveDay(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	var req SaveDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	day, err := schedule.ParseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	// Normalize through the set so duplicates collapse and invalid starts
	// are rejected before touching storage.
	set, err := schedule.NewAvailabilitySet(req.Slots...)
	if err != nil {
		metrics.AvailabilitySaves.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.ReplaceAvailability(c.Request.Context(), user.ID, day, set.Starts()); err != nil {
		if errors.Is(err, schedule.ErrSlotNotInCatalog) {
			metrics.AvailabilitySaves.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		metrics.AvailabilitySaves.WithLabelValues("error").Inc()
		h.logger.Error().Err(err).
			Str("user_id", user.ID.String()).
			Str("date", req.Date).
			Msg("failed to save availability")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save availability"})
		return
	}

	metrics.AvailabilitySaves.WithLabelValues("saved").Inc()
	h.logger.Info().
		Str("user_id", user.ID.String()).
		Str("date", req.Date).
		Int("slots", set.Len()).
		Msg("availability saved")

	c.JSON(http.StatusOK, gin.H{
		"date":  req.Date,
		"slots": schedule.DaySlots(day, set.Starts()),
	})
}

// parseRange reads the from/to query parameters, defaulting to a two-week
// window starting today. from must not be after to.
func parseRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	from, to := now, now.AddDate(0, 0, DefaultRangeDays-1)

	if v := c.Query("from"); v != "" {
		parsed, err := schedule.ParseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from date, expected YYYY-MM-DD")
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := schedule.ParseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to date, expected YYYY-MM-DD")
		}
		to = parsed
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, errors.New("from must not be after to")
	}
	return from, to, nil
}
