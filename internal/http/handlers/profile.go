package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mentalhealthai/mhai-backend/internal/http/response"
	"github.com/mentalhealthai/mhai-backend/internal/services"
)

type ProfileHandler struct {
	profiles services.ProfileService
}

func NewProfileHandler(profiles services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// profilePatch is the full-body PATCH shape. Every field is optional;
// section endpoints bind the matching subset directly.
type profilePatch struct {
	services.GeneralInfoUpdate
	services.InterestsUpdate
	services.EmotionsUpdate
	services.BiographyUpdate
}

func (p profilePatch) hasGeneral() bool {
	return p.Name != nil || p.Age != nil || p.Gender != nil || p.GenderCustom != nil
}

func profileStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		return http.StatusNotFound, "profile_not_found"
	case errors.Is(err, services.ErrEventNotFound):
		return http.StatusNotFound, "event_not_found"
	default:
		return http.StatusBadRequest, "profile_update_failed"
	}
}

// GET /api/profile
func (ph *ProfileHandler) GetUserProfile(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	p, err := ph.profiles.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/profile
func (ph *ProfileHandler) PatchUserProfile(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req profilePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	ctx := c.Request.Context()
	apply := func(err error) bool {
		if err != nil {
			status, code := profileStatus(err)
			response.RespondError(c, status, code, err)
			return false
		}
		return true
	}

	if req.hasGeneral() {
		if _, err := ph.profiles.UpdateUserGeneral(ctx, userID, req.GeneralInfoUpdate); !apply(err) {
			return
		}
	}
	if req.Interests != nil {
		if _, err := ph.profiles.UpdateUserInterests(ctx, userID, req.InterestsUpdate); !apply(err) {
			return
		}
	}
	if req.Emotions != nil {
		if _, err := ph.profiles.UpdateUserEmotions(ctx, userID, req.EmotionsUpdate); !apply(err) {
			return
		}
	}
	if _, err := ph.profiles.UpdateUserBiography(ctx, userID, req.BiographyUpdate); !apply(err) {
		return
	}

	p, err := ph.profiles.GetUserProfile(ctx, userID)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/profile/general
func (ph *ProfileHandler) PatchUserGeneral(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req services.GeneralInfoUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := ph.profiles.UpdateUserGeneral(c.Request.Context(), userID, req)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/profile/interests
func (ph *ProfileHandler) PatchUserInterests(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req services.InterestsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := ph.profiles.UpdateUserInterests(c.Request.Context(), userID, req)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/profile/emotions
func (ph *ProfileHandler) PatchUserEmotions(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req services.EmotionsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := ph.profiles.UpdateUserEmotions(c.Request.Context(), userID, req)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/profile/bio
func (ph *ProfileHandler) PatchUserBiography(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req services.BiographyUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := ph.profiles.UpdateUserBiography(c.Request.Context(), userID, req)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// GET /api/ai-profile
func (ph *ProfileHandler) GetAIProfile(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	p, err := ph.profiles.GetAIProfile(c.Request.Context(), userID)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/ai-profile
func (ph *ProfileHandler) PatchAIProfile(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req profilePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	ctx := c.Request.Context()
	apply := func(err error) bool {
		if err != nil {
			status, code := profileStatus(err)
			response.RespondError(c, status, code, err)
			return false
		}
		return true
	}

	if req.hasGeneral() {
		if _, err := ph.profiles.UpdateAIGeneral(ctx, userID, req.GeneralInfoUpdate); !apply(err) {
			return
		}
	}
	if req.Interests != nil {
		if _, err := ph.profiles.UpdateAIInterests(ctx, userID, req.InterestsUpdate); !apply(err) {
			return
		}
	}
	if req.Emotions != nil {
		if _, err := ph.profiles.UpdateAIEmotions(ctx, userID, req.EmotionsUpdate); !apply(err) {
			return
		}
	}
	if _, err := ph.profiles.UpdateAIBiography(ctx, userID, req.BiographyUpdate); !apply(err) {
		return
	}

	p, err := ph.profiles.GetAIProfile(ctx, userID)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/ai-profile/general
func (ph *ProfileHandler) PatchAIGeneral(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req services.GeneralInfoUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := ph.profiles.UpdateAIGeneral(c.Request.Context(), userID, req)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/ai-profile/interests
func (ph *ProfileHandler) PatchAIInterests(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req services.InterestsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := ph.profiles.UpdateAIInterests(c.Request.Context(), userID, req)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/ai-profile/emotions
func (ph *ProfileHandler) PatchAIEmotions(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req services.EmotionsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := ph.profiles.UpdateAIEmotions(c.Request.Context(), userID, req)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/ai-profile/bio
func (ph *ProfileHandler) PatchAIBiography(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req services.BiographyUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := ph.profiles.UpdateAIBiography(c.Request.Context(), userID, req)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// GET /api/profile/events
func (ph *ProfileHandler) ListCriticalEvents(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	events, err := ph.profiles.ListCriticalEvents(c.Request.Context(), userID)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"events": events})
}

// POST /api/profile/events
func (ph *ProfileHandler) CreateCriticalEvent(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var req services.CriticalEventInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Description == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("description is required"))
		return
	}
	event, err := ph.profiles.CreateCriticalEvent(c.Request.Context(), userID, req)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondCreated(c, gin.H{"event": event})
}

// GET /api/profile/events/:id
func (ph *ProfileHandler) GetCriticalEvent(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_event_id", err)
		return
	}
	event, err := ph.profiles.GetCriticalEvent(c.Request.Context(), userID, eventID)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"event": event})
}

// PATCH /api/profile/events/:id
func (ph *ProfileHandler) PatchCriticalEvent(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_event_id", err)
		return
	}
	var req struct {
		Date        *time.Time `json:"date"`
		Description *string    `json:"description"`
		Impact      *string    `json:"impact"`
		Resolved    *bool      `json:"resolved"`
		Treated     *bool      `json:"treated"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	fields := map[string]any{}
	if req.Date != nil {
		fields["date"] = *req.Date
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Impact != nil {
		fields["impact"] = *req.Impact
	}
	if req.Resolved != nil {
		fields["resolved"] = *req.Resolved
	}
	if req.Treated != nil {
		fields["treated"] = *req.Treated
	}
	event, err := ph.profiles.UpdateCriticalEvent(c.Request.Context(), userID, eventID, fields)
	if err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"event": event})
}

// DELETE /api/profile/events/:id
func (ph *ProfileHandler) DeleteCriticalEvent(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_event_id", err)
		return
	}
	if err := ph.profiles.DeleteCriticalEvent(c.Request.Context(), userID, eventID); err != nil {
		status, code := profileStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
