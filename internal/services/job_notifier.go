package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	jobsrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/jobs"
	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	domainjobs "github.com/mentalhealthai/mhai-backend/internal/domain/jobs"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/realtime"
	"github.com/mentalhealthai/mhai-backend/internal/realtime/bus"
)

// JobNotifier fans job lifecycle changes out to SSE subscribers and
// appends them to the job_run_event ledger. It satisfies the job
// runtime's Notifier interface.
type JobNotifier interface {
	JobQueued(ownerUserID uuid.UUID, job *types.JobRun)
	JobProgress(ownerUserID uuid.UUID, job *types.JobRun, stage string, pct int, msg string)
	JobFailed(ownerUserID uuid.UUID, job *types.JobRun, stage string, msg string)
	JobDone(ownerUserID uuid.UUID, job *types.JobRun)
	TurnUpdated(ownerUserID uuid.UUID, turn *types.DiaryTurn)
}

type jobNotifier struct {
	hub    *realtime.SSEHub
	bus    bus.Bus
	events jobsrepo.JobRunEventRepo
	log    *logger.Logger
}

// NewJobNotifier builds a notifier. bus may be nil for single-node
// deployments; when set, messages go through the bus only and arrive
// at the local hub via the forwarder, so nothing is delivered twice.
func NewJobNotifier(hub *realtime.SSEHub, b bus.Bus, events jobsrepo.JobRunEventRepo, baseLog *logger.Logger) JobNotifier {
	return &jobNotifier{
		hub:    hub,
		bus:    b,
		events: events,
		log:    baseLog.With("service", "JobNotifier"),
	}
}

func (n *jobNotifier) emit(msg realtime.SSEMessage) {
	if n.bus != nil {
		if err := n.bus.Publish(context.Background(), msg); err != nil {
			n.log.Warn("Bus publish failed, falling back to local hub", "channel", msg.Channel, "event", msg.Event, "error", err)
			n.hub.Broadcast(msg)
		}
		return
	}
	n.hub.Broadcast(msg)
}

func (n *jobNotifier) record(job *types.JobRun, kind domainjobs.JobEventKind, stage string, progress int, msg string, data map[string]any) {
	if n.events == nil || job == nil {
		return
	}
	var dataJSON datatypes.JSON
	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err == nil {
			dataJSON = datatypes.JSON(b)
		}
	}
	event := &types.JobRunEvent{
		JobID:       job.ID,
		OwnerUserID: job.OwnerUserID,
		JobType:     job.JobType,
		EntityType:  job.EntityType,
		Kind:        string(kind),
		Status:      job.Status,
		Stage:       stage,
		Progress:    progress,
		Message:     msg,
		Data:        dataJSON,
	}
	if err := n.events.Append(dbctx.Context{Ctx: context.Background()}, event); err != nil {
		n.log.Warn("Append job event failed", "job_id", job.ID, "kind", kind, "error", err)
	}
}

func (n *jobNotifier) JobQueued(ownerUserID uuid.UUID, job *types.JobRun) {
	n.emit(realtime.SSEMessage{
		Channel: realtime.UserChannel(ownerUserID.String()),
		Event:   realtime.SSEEventJobQueued,
		Data:    map[string]any{"job": job},
	})
	n.record(job, domainjobs.JobEventCreated, job.Stage, job.Progress, "Queued", nil)
}

func (n *jobNotifier) JobProgress(ownerUserID uuid.UUID, job *types.JobRun, stage string, pct int, msg string) {
	n.emit(realtime.SSEMessage{
		Channel: realtime.UserChannel(ownerUserID.String()),
		Event:   realtime.SSEEventJobProgress,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"stage":    stage,
			"progress": pct,
			"message":  msg,
			"job":      job,
		},
	})
	n.record(job, domainjobs.JobEventProgress, stage, pct, msg, nil)
}

func (n *jobNotifier) JobFailed(ownerUserID uuid.UUID, job *types.JobRun, stage string, msg string) {
	n.emit(realtime.SSEMessage{
		Channel: realtime.UserChannel(ownerUserID.String()),
		Event:   realtime.SSEEventJobFailed,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"stage":    stage,
			"error":    msg,
			"job":      job,
		},
	})
	n.record(job, domainjobs.JobEventFailed, stage, job.Progress, msg, nil)
}

func (n *jobNotifier) JobDone(ownerUserID uuid.UUID, job *types.JobRun) {
	n.emit(realtime.SSEMessage{
		Channel: realtime.UserChannel(ownerUserID.String()),
		Event:   realtime.SSEEventJobSucceeded,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"job":      job,
		},
	})
	n.record(job, domainjobs.JobEventSucceeded, job.Stage, 100, "", nil)
}

// TurnUpdated tells clients a diary turn changed state so they can
// refetch the reply and scores.
func (n *jobNotifier) TurnUpdated(ownerUserID uuid.UUID, turn *types.DiaryTurn) {
	if turn == nil {
		return
	}
	n.emit(realtime.SSEMessage{
		Channel: realtime.UserChannel(ownerUserID.String()),
		Event:   realtime.SSEEventTurnUpdated,
		Data: map[string]any{
			"turn_id": turn.ID,
			"status":  turn.Status,
		},
	})
}
