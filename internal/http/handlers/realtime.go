package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(baseLog *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{
		log: baseLog.With("handler", "RealtimeHandler"),
		hub: hub,
	}
}

// GET /api/events
//
// Long-lived SSE stream subscribed to the user's channel. The write
// loop runs until the client disconnects or the hub closes the client.
func (rh *RealtimeHandler) Stream(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	client := rh.hub.NewSSEClient(userID)
	rh.hub.AddChannel(client, realtime.UserChannel(userID.String()))
	rh.log.Debug("sse stream open", "user_id", userID.String(), "client_id", client.ID.String())

	rh.hub.ServeHTTP(c.Writer, c.Request, client)

	rh.hub.CloseClient(client)
	rh.log.Debug("sse stream closed", "user_id", userID.String(), "client_id", client.ID.String())
}
