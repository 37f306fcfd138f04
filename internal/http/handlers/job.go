package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mentalhealthai/mhai-backend/internal/http/response"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func jobStatus(err error) (int, string) {
	if errors.Is(err, services.ErrJobNotFound) {
		return http.StatusNotFound, "job_not_found"
	}
	return http.StatusBadRequest, "job_request_failed"
}

// GET /api/jobs/:id
func (jh *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := jh.jobs.GetByIDForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		status, code := jobStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs/:id/children
func (jh *JobHandler) ListChildren(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	children, err := jh.jobs.ListChildrenForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		status, code := jobStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": children})
}

// GET /api/jobs/:id/events?limit=
func (jh *JobHandler) ListEvents(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, aErr := strconv.Atoi(raw)
		if aErr != nil || n < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", aErr)
			return
		}
		limit = n
	}
	events, err := jh.jobs.ListEventsForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, jobID, limit)
	if err != nil {
		status, code := jobStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"events": events})
}
