package handlers

import (
	"net/http"

	"github.com/getmentor/getmentor-sessions/internal/middleware"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/services"
	"github.com/gin-gonic/gin"
)

// AvailabilityHandler handles mentor availability endpoints
type AvailabilityHandler struct {
	service services.AvailabilityServiceInterface
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(service services.AvailabilityServiceInterface) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// AddSlot handles POST /api/v1/availability/slots
func (h *AvailabilityHandler) AddSlot(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	var req models.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Validation failed", ParseValidationErrors(err), err)
		return
	}

	slot, err := h.service.AddSlot(c.Request.Context(), session.UserID, &req)
	if err != nil {
		respondServiceError(c, err, "Failed to add slot")
		return
	}

	c.JSON(http.StatusCreated, slot)
}

// UpdateSlot handles PUT /api/v1/availability/slots/:id
func (h *AvailabilityHandler) UpdateSlot(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	slotID, ok := entityID(c, "slot")
	if !ok {
		return
	}

	var req models.UpdateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Validation failed", ParseValidationErrors(err), err)
		return
	}

	slot, err := h.service.UpdateSlot(c.Request.Context(), session.UserID, slotID, &req)
	if err != nil {
		respondServiceError(c, err, "Failed to update slot")
		return
	}

	c.JSON(http.StatusOK, slot)
}

// DeactivateSlot handles POST /api/v1/availability/slots/:id/deactivate
func (h *AvailabilityHandler) DeactivateSlot(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	slotID, ok := entityID(c, "slot")
	if !ok {
		return
	}

	slot, err := h.service.DeactivateSlot(c.Request.Context(), session.UserID, slotID)
	if err != nil {
		respondServiceError(c, err, "Failed to deactivate slot")
		return
	}

	c.JSON(http.StatusOK, slot)
}

// ListSlots handles GET /api/v1/mentors/:mentorId/availability
func (h *AvailabilityHandler) ListSlots(c *gin.Context) {
	mentorID := c.Param("mentorId")

	slots, err := h.service.ListActiveSlots(c.Request.Context(), mentorID)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch availability")
		return
	}

	c.JSON(http.StatusOK, models.SlotsResponse{MentorID: mentorID, Slots: slots})
}
