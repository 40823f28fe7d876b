package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hkim-dev/autopress/internal/batch"
	"github.com/hkim-dev/autopress/internal/common"
	"github.com/hkim-dev/autopress/internal/job"
)

type publishJSONReq struct {
	SiteID       string         `json:"site_id" binding:"required"`
	TextModelID  string         `json:"text_model_id"`
	ImageModelID string         `json:"image_model_id"`
	Rows         []batch.Record `json:"rows" binding:"required"`
	Instructions string         `json:"instructions"`
}

// Publish accepts a batch either as a multipart form with an xlsx upload or
// as a JSON body with inline rows, and dispatches one job.
func (h *Handler) Publish(c *gin.Context) {
	contentType := c.ContentType()

	var (
		siteID, textModel, imageModel, instructions string
		records                                     []batch.Record
	)

	if strings.HasPrefix(contentType, "multipart/form-data") {
		siteID = c.PostForm("site_id")
		textModel = c.PostForm("text_model_id")
		imageModel = c.PostForm("image_model_id")
		instructions = c.PostForm("instructions")

		file, err := c.FormFile("excel_file")
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10010, "excel_file is required")
			return
		}
		f, err := file.Open()
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10011, "cannot read upload")
			return
		}
		defer f.Close()

		records, err = batch.DecodeXLSX(f)
		if err != nil {
			if errors.Is(err, batch.ErrNoRows) {
				common.Fail(c, http.StatusBadRequest, 10012, "spreadsheet has no data rows")
				return
			}
			common.Fail(c, http.StatusBadRequest, 10013, "invalid spreadsheet")
			return
		}
	} else {
		var req publishJSONReq
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
			return
		}
		siteID = req.SiteID
		textModel = req.TextModelID
		imageModel = req.ImageModelID
		instructions = req.Instructions
		records = req.Rows
	}

	if textModel == "" {
		textModel = h.Cfg.DefaultTextModel
	}

	jobID, err := h.Dispatcher.Dispatch(c.Request.Context(), siteID, textModel, imageModel, records, instructions)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrEmptyBatch):
			common.Fail(c, http.StatusBadRequest, 10014, "batch contains no rows")
		case errors.Is(err, job.ErrMissingSite):
			common.Fail(c, http.StatusBadRequest, 10015, "site_id is required")
		default:
			h.Logger.Error("dispatch failed", "error", err)
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to create job")
		}
		return
	}

	common.OK(c, gin.H{"job_id": jobID, "rows": len(records)})
}
