package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hkim-dev/autopress/internal/common"
)

// Tick runs one bounded processing pass. The external scheduler calls this
// repeatedly; limit is the only backpressure knob.
func (h *Handler) Tick(c *gin.Context) {
	limit := h.Cfg.TickLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	ctx := c.Request.Context()
	if h.Cfg.TickBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Cfg.TickBudget)
		defer cancel()
	}

	// Best-effort overlap suppression. Row claims in the store keep
	// concurrent ticks correct regardless.
	if h.Locker != nil {
		ttl := h.Cfg.TickBudget
		if ttl <= 0 {
			ttl = time.Minute
		}
		acquired, release, err := h.Locker.TryLockTick(ctx, ttl)
		if err != nil {
			h.Logger.Warn("tick lock unavailable", "error", err)
		}
		if !acquired {
			common.OK(c, gin.H{"message": "Tick already running"})
			return
		}
		defer release()
	}

	result, err := h.Processor.Tick(ctx, limit)
	if err != nil {
		h.Logger.Error("tick failed", "error", err)
		common.Fail(c, http.StatusInternalServerError, 50002, "tick failed")
		return
	}

	common.OK(c, result)
}
