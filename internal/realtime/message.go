package realtime

type SSEEvent string

const (
	SSEEventJobQueued    SSEEvent = "JobQueued"
	SSEEventJobRunning   SSEEvent = "JobRunning"
	SSEEventJobProgress  SSEEvent = "JobProgress"
	SSEEventJobSucceeded SSEEvent = "JobSucceeded"
	SSEEventJobFailed    SSEEvent = "JobFailed"
	SSEEventTurnUpdated  SSEEvent = "DiaryTurnUpdated"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// UserChannel is the per-user event channel name.
func UserChannel(userID string) string { return "user:" + userID }
