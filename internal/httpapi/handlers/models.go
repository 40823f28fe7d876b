package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/hkim-dev/autopress/internal/common"
)

type modelInfo struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Default bool   `json:"default,omitempty"`
}

// ListModels serves the model catalog the create form offers. The catalog is
// static; the configured defaults are flagged.
func (h *Handler) ListModels(c *gin.Context) {
	textModels := []modelInfo{
		{ID: "gemini-2.0-flash", Label: "Gemini 2.0 Flash"},
		{ID: "gemini-2.0-flash-lite", Label: "Gemini 2.0 Flash Lite"},
		{ID: "gemini-1.5-pro", Label: "Gemini 1.5 Pro"},
	}
	imageModels := []modelInfo{
		{ID: "imagen-3.0-generate-002", Label: "Imagen 3"},
	}

	for i := range textModels {
		if textModels[i].ID == h.Cfg.DefaultTextModel {
			textModels[i].Default = true
		}
	}
	for i := range imageModels {
		if imageModels[i].ID == h.Cfg.DefaultImageModel {
			imageModels[i].Default = true
		}
	}

	common.OK(c, gin.H{
		"text_models":  textModels,
		"image_models": imageModels,
	})
}
