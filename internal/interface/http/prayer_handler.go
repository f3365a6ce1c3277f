package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/prayer-companion/internal/domain/engine"
)

const streamBuffer = 4

// Schedule returns the full engine snapshot.
func (h *Handler) Schedule(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

// Countdown returns the derived countdown only.
func (h *Handler) Countdown(c *gin.Context) {
	snapshot := h.engine.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"current":   snapshot.Current,
		"next":      snapshot.Next,
		"countdown": snapshot.Countdown,
	})
}

// CountdownStream pushes every countdown tick using Server-Sent Events until the
// client disconnects or the engine stops.
func (h *Handler) CountdownStream(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}

	ticks, cancel := h.engine.Subscribe(streamBuffer)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case tick, open := <-ticks:
			if !open {
				return
			}
			payload, err := json.Marshal(tick)
			if err != nil {
				h.logger.Error("marshal tick failed", "error", err)
				continue
			}
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(payload)
			c.Writer.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// Calendar returns the monthly schedule. It defaults to the current month.
func (h *Handler) Calendar(c *gin.Context) {
	now := h.now()
	year, month := now.Year(), int(now.Month())
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "year must be a number", err))
			return
		}
		year = parsed
	}
	if raw := c.Query("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "month must be a number", err))
			return
		}
		month = parsed
	}

	days, err := h.engine.Calendar(c.Request.Context(), year, time.Month(month))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "month": month, "days": days})
}

// Refresh forces a refetch of today's schedule.
func (h *Handler) Refresh(c *gin.Context) {
	snapshot, err := h.engine.Refresh(c.Request.Context(), engine.ReasonManual)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
