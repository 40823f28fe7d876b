package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hkim-dev/autopress/internal/auth"
	"github.com/hkim-dev/autopress/internal/common"
)

const tokenTTL = 24 * time.Hour

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if h.Cfg.AdminPasswordHash == "" {
		common.Fail(c, http.StatusForbidden, 40301, "admin login not configured")
		return
	}
	if !auth.CheckPassword(h.Cfg.AdminPasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40104, "wrong password")
		return
	}

	token, err := auth.SignToken(h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50040, "failed to sign token")
		return
	}

	common.OK(c, gin.H{"token": token, "expires_in": int(tokenTTL.Seconds())})
}
