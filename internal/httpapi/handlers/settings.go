package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hkim-dev/autopress/internal/common"
	"github.com/hkim-dev/autopress/internal/settings"
)

// Only the Gemini key is operator-editable today; reject anything else so a
// typo cannot create a dangling setting.
func validSettingKey(key string) bool {
	return key == settings.KeyGeminiAPIKey
}

func (h *Handler) GetSettings(c *gin.Context) {
	val, err := h.Settings.Get(c.Request.Context(), settings.KeyGeminiAPIKey)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50020, "failed to fetch settings")
		return
	}

	hasKey := val != ""
	var masked any
	if hasKey {
		masked = "****************"
	}
	common.OK(c, gin.H{"has_key": hasKey, "masked_key": masked})
}

func (h *Handler) SetSetting(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if !validSettingKey(req.Key) {
		common.Fail(c, http.StatusBadRequest, 10030, "invalid setting key")
		return
	}

	if err := h.Settings.Set(c.Request.Context(), req.Key, req.Value); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50021, "failed to save setting")
		return
	}
	common.OK(c, nil)
}

func (h *Handler) DeleteSetting(c *gin.Context) {
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if !validSettingKey(req.Key) {
		common.Fail(c, http.StatusBadRequest, 10030, "invalid setting key")
		return
	}

	if err := h.Settings.Delete(c.Request.Context(), req.Key); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50022, "failed to delete setting")
		return
	}
	common.OK(c, nil)
}
