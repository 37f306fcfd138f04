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

type DiaryHandler struct {
	diary services.DiaryService
}

func NewDiaryHandler(diary services.DiaryService) *DiaryHandler {
	return &DiaryHandler{diary: diary}
}

func diaryStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrTurnNotFound):
		return http.StatusNotFound, "turn_not_found"
	case errors.Is(err, services.ErrScoreNotFound):
		return http.StatusNotFound, "score_not_found"
	default:
		return http.StatusBadRequest, "diary_request_failed"
	}
}

// POST /api/diary
func (dh *DiaryHandler) CreateTurn(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	turn, job, err := dh.diary.CreateTurn(dbctx.Context{Ctx: c.Request.Context()}, req.Prompt)
	if err != nil {
		status, code := diaryStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"turn":   turn,
		"job_id": job.ID,
	})
}

// GET /api/diary?since_id=&limit=
func (dh *DiaryHandler) ListTurns(c *gin.Context) {
	var sinceID *uuid.UUID
	if raw := c.Query("since_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_since_id", err)
			return
		}
		sinceID = &id
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	turns, err := dh.diary.ListTurns(dbctx.Context{Ctx: c.Request.Context()}, sinceID, limit)
	if err != nil {
		status, code := diaryStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"turns": turns})
}

// GET /api/diary/:id
func (dh *DiaryHandler) GetTurn(c *gin.Context) {
	turnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_turn_id", err)
		return
	}
	turn, err := dh.diary.GetTurn(dbctx.Context{Ctx: c.Request.Context()}, turnID)
	if err != nil {
		status, code := diaryStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, turn)
}

// GET /api/diary/:id/scores/:category
func (dh *DiaryHandler) GetScore(c *gin.Context) {
	turnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_turn_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}

	var score any
	switch c.Param("category") {
	case services.ScoreCategoryEmotions:
		score, err = dh.diary.GetEmotionScore(dbc, turnID)
	case services.ScoreCategoryMentBERT:
		score, err = dh.diary.GetMentBERTScore(dbc, turnID)
	case services.ScoreCategoryPsychBERT:
		score, err = dh.diary.GetPsychBERTScore(dbc, turnID)
	default:
		response.RespondError(c, http.StatusBadRequest, "unknown_category", services.ErrUnknownCategory)
		return
	}
	if err != nil {
		status, code := diaryStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"score": score})
}

// PATCH /api/diary/:id/scores/:category
func (dh *DiaryHandler) PatchScore(c *gin.Context) {
	turnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_turn_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}

	var score any
	switch c.Param("category") {
	case services.ScoreCategoryEmotions:
		var req services.EmotionScoreUpdate
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", bindErr)
			return
		}
		score, err = dh.diary.UpdateEmotionScore(dbc, turnID, req)
	case services.ScoreCategoryMentBERT:
		var req services.MentBERTScoreUpdate
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", bindErr)
			return
		}
		score, err = dh.diary.UpdateMentBERTScore(dbc, turnID, req)
	case services.ScoreCategoryPsychBERT:
		var req services.PsychBERTScoreUpdate
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", bindErr)
			return
		}
		score, err = dh.diary.UpdatePsychBERTScore(dbc, turnID, req)
	default:
		response.RespondError(c, http.StatusBadRequest, "unknown_category", services.ErrUnknownCategory)
		return
	}
	if err != nil {
		status, code := diaryStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"score": score})
}
