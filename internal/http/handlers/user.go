package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	userrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/user"
	"github.com/mentalhealthai/mhai-backend/internal/http/response"
	"github.com/mentalhealthai/mhai-backend/internal/requestdata"
	"github.com/mentalhealthai/mhai-backend/internal/services"
)

type UserHandler struct {
	users userrepo.UserRepo
}

func NewUserHandler(users userrepo.UserRepo) *UserHandler {
	return &UserHandler{users: users}
}

// requestUserID pulls the authenticated user id out of the request
// context, responding 401 itself when it is missing.
func requestUserID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}

// GET /api/me
func (uh *UserHandler) GetMe(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	me, err := uh.users.GetByID(c.Request.Context(), nil, userID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "load_user_failed", err)
		return
	}
	if me == nil {
		response.RespondError(c, http.StatusNotFound, "user_not_found", fmt.Errorf("user not found"))
		return
	}
	response.RespondOK(c, gin.H{
		"me":         me,
		"avatar_url": services.GravatarURL(me.Email, 0),
	})
}
