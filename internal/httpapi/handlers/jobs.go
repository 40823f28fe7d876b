package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hkim-dev/autopress/internal/common"
)

func (h *Handler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	jobs, err := h.Jobs.ListRecentJobs(c.Request.Context(), limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50030, "failed to fetch jobs")
		return
	}
	common.OK(c, jobs)
}

func (h *Handler) GetJob(c *gin.Context) {
	id := c.Param("id")

	j, err := h.Jobs.GetJobByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40030, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50031, "failed to fetch job")
		return
	}

	rows, err := h.Jobs.ListRowsByJob(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50032, "failed to fetch job rows")
		return
	}

	common.OK(c, gin.H{"job": j, "rows": rows})
}

// DeleteJob removes a job and all its rows. In-flight rows of a deleted job
// settle as skipped on the next tick.
func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.Jobs.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50033, "failed to delete job")
		return
	}
	common.OK(c, nil)
}
