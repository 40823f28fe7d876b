package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hkim-dev/autopress/internal/common"
	"github.com/hkim-dev/autopress/internal/site"
)

type siteReq struct {
	Name        string `json:"name" binding:"required"`
	URL         string `json:"url" binding:"required"`
	Username    string `json:"username" binding:"required"`
	AppPassword string `json:"app_password" binding:"required"`
}

func (h *Handler) ListSites(c *gin.Context) {
	sites, err := h.Sites.List(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50010, "failed to fetch sites")
		return
	}
	common.OK(c, sites)
}

func (h *Handler) CreateSite(c *gin.Context) {
	var req siteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	s := &site.Site{
		ID:             uuid.NewString(),
		Name:           req.Name,
		URL:            req.URL,
		Username:       req.Username,
		AppPasswordB64: base64.StdEncoding.EncodeToString([]byte(req.AppPassword)),
	}
	if err := h.Sites.Create(c.Request.Context(), s); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50011, "failed to add site")
		return
	}

	common.OK(c, gin.H{"id": s.ID})
}

func (h *Handler) UpdateSite(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Name        string `json:"name"`
		URL         string `json:"url"`
		Username    string `json:"username"`
		AppPassword string `json:"app_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	fields := map[string]any{}
	if req.Name != "" {
		fields["name"] = req.Name
	}
	if req.URL != "" {
		fields["url"] = req.URL
	}
	if req.Username != "" {
		fields["username"] = req.Username
	}
	if req.AppPassword != "" {
		fields["app_password_b64"] = base64.StdEncoding.EncodeToString([]byte(req.AppPassword))
	}
	if len(fields) == 0 {
		common.Fail(c, http.StatusBadRequest, 10002, "nothing to update")
		return
	}

	if err := h.Sites.Update(c.Request.Context(), id, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40010, "site not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50012, "failed to update site")
		return
	}
	common.OK(c, gin.H{"id": id})
}

func (h *Handler) DeleteSite(c *gin.Context) {
	if err := h.Sites.Delete(c.Request.Context(), c.Param("id")); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50013, "failed to delete site")
		return
	}
	common.OK(c, nil)
}
