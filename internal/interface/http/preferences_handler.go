package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/prayer-companion/internal/domain/engine"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
)

type methodRequest struct {
	Method *int `json:"method"`
}

type locationRequest struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	DisplayName string   `json:"displayName"`
}

type notificationRequest struct {
	Enabled *bool `json:"enabled"`
}

// Preferences returns the persisted preference set.
func (h *Handler) Preferences(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Preferences(c.Request.Context()))
}

// SetMethod changes the calculation method and returns the refreshed snapshot.
func (h *Handler) SetMethod(c *gin.Context) {
	var req methodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}
	if req.Method == nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "method is required", nil))
		return
	}
	snapshot, err := h.engine.SetMethod(c.Request.Context(), prayer.Method(*req.Method))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// SaveLocation stores a manual coordinate override.
func (h *Handler) SaveLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "latitude and longitude are required", nil))
		return
	}
	coord := prayer.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude, DisplayName: req.DisplayName}
	snapshot, err := h.engine.SaveLocation(c.Request.Context(), coord)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// ClearLocation removes the override.
func (h *Handler) ClearLocation(c *gin.Context) {
	snapshot, err := h.engine.ClearLocation(c.Request.Context())
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// SetNotifications toggles alerts for one prayer.
func (h *Handler) SetNotifications(c *gin.Context) {
	name, ok := prayer.ParseName(c.Param("prayer"))
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "unknown prayer "+c.Param("prayer"), nil))
		return
	}
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}
	if req.Enabled == nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "enabled is required", nil))
		return
	}
	snapshot, err := h.engine.SetNotifications(c.Request.Context(), name, *req.Enabled)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// SetAdhanSettings updates playback volume and reciter.
func (h *Handler) SetAdhanSettings(c *gin.Context) {
	var req engine.AdhanSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}
	updated, err := h.engine.SetAdhanSettings(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, updated)
}
