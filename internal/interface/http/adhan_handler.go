package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdhanState returns the playback state of a slot.
func (h *Handler) AdhanState(c *gin.Context) {
	state, err := h.engine.AdhanState(c.Param("slot"))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, state)
}

// PlayAdhan starts the call to prayer for the slot's target prayer.
func (h *Handler) PlayAdhan(c *gin.Context) {
	state, err := h.engine.PlayAdhan(c.Request.Context(), c.Param("slot"))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, state)
}

// StopAdhan halts playback on a slot.
func (h *Handler) StopAdhan(c *gin.Context) {
	state, err := h.engine.StopAdhan(c.Param("slot"))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, state)
}

// RetryAdhan reloads the last source with a fresh cache key.
func (h *Handler) RetryAdhan(c *gin.Context) {
	state, err := h.engine.RetryAdhan(c.Request.Context(), c.Param("slot"))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, state)
}

// FallbackAdhan switches a failed slot to the alternate source once.
func (h *Handler) FallbackAdhan(c *gin.Context) {
	state, switched, err := h.engine.FallbackAdhan(c.Request.Context(), c.Param("slot"))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state, "switched": switched})
}
