package jobrun

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"gorm.io/gorm"

	jobsrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/jobs"
	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	jobrt "github.com/mentalhealthai/mhai-backend/internal/jobs/runtime"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/platform/envutil"
)

// Activities executes job ticks against the shared registry, so the
// same handlers serve both the DB polling worker and the Temporal path.
type Activities struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Jobs     jobsrepo.JobRunRepo
	Registry *jobrt.Registry
	Notify   jobrt.Notifier
}

func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	res := TickResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.DB == nil || a.Jobs == nil || a.Registry == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}

	parsedJobID, err := uuid.Parse(res.JobID)
	if err != nil || parsedJobID == uuid.Nil {
		return res, fmt.Errorf("jobrun: invalid job_id")
	}

	job, err := a.Jobs.GetByID(dbctx.Context{Ctx: ctx}, parsedJobID)
	if err != nil {
		return res, err
	}
	if job == nil {
		return res, fmt.Errorf("jobrun: job not found")
	}

	if job.Terminal() {
		return a.observe(job), nil
	}

	// Honor scheduled delays without burning an execution.
	now := time.Now()
	if job.RunAfter != nil && job.RunAfter.After(now) {
		out := a.observe(job)
		out.WaitUntil = job.RunAfter
		return out, nil
	}
	if job.Status == "failed" && job.LastErrorAt != nil {
		retryAt := job.LastErrorAt.Add(envutil.Dur("WORKER_RETRY_DELAY", 30*time.Second))
		if retryAt.After(now) {
			out := a.observe(job)
			out.WaitUntil = &retryAt
			return out, nil
		}
	}

	stopHB := a.startHeartbeat(ctx, parsedJobID)
	defer stopHB()

	claimed := now.UTC()
	_ = a.DB.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND status <> ?", parsedJobID, "succeeded").
		Updates(map[string]any{
			"status":       "running",
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    claimed,
			"heartbeat_at": claimed,
			"updated_at":   claimed,
		}).Error

	job.Status = "running"
	job.Attempts++
	job.LockedAt = &claimed
	job.HeartbeatAt = &claimed
	job.UpdatedAt = claimed

	handlerReturnedNil := false
	jc := jobrt.NewContext(ctx, a.DB, job, a.Jobs, a.Notify)
	h, ok := a.Registry.Get(job.JobType)
	if !ok {
		jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					a.Log.Error("Job handler panic", "job_id", parsedJobID, "job_type", job.JobType, "panic", r)
					jc.Fail("panic", fmt.Errorf("panic: unexpected error"))
				}
			}()
			if runErr := h.Run(jc); runErr != nil {
				jc.Fail("run", runErr)
				return
			}
			handlerReturnedNil = true
		}()
	}

	updated, err := a.Jobs.GetByID(dbctx.Context{Ctx: ctx}, parsedJobID)
	if err != nil {
		return res, err
	}
	if updated == nil {
		return res, fmt.Errorf("jobrun: job not found after tick")
	}

	// A handler that returns nil while the row still says running never
	// settled or yielded. Treat it as success so the workflow does not
	// spin forever.
	if handlerReturnedNil && updated.Status == "running" {
		a.Log.Warn("Job handler returned nil without terminal status; marking succeeded", "job_id", parsedJobID, "job_type", updated.JobType, "stage", updated.Stage)
		var finalResult any
		if raw := strings.TrimSpace(string(updated.Result)); raw != "" && raw != "null" {
			finalResult = json.RawMessage(updated.Result)
		}
		jc.Succeed("done", finalResult)
		if r2, rerr := a.Jobs.GetByID(dbctx.Context{Ctx: ctx}, parsedJobID); rerr == nil && r2 != nil {
			updated = r2
		}
	}

	out := a.observe(updated)
	if updated.RunAfter != nil && updated.RunAfter.After(time.Now()) {
		out.WaitUntil = updated.RunAfter
	}
	return out, nil
}

func (a *Activities) observe(job *types.JobRun) TickResult {
	res := TickResult{
		JobID:    job.ID.String(),
		Status:   job.Status,
		Stage:    job.Stage,
		Progress: job.Progress,
		Terminal: job.Terminal(),
	}
	return res
}

func (a *Activities) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		temporalHB := time.NewTicker(10 * time.Second)
		defer temporalHB.Stop()
		dbHB := time.NewTicker(30 * time.Second)
		defer dbHB.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-temporalHB.C:
				activity.RecordHeartbeat(ctx)
			case <-dbHB.C:
				_ = a.Jobs.Heartbeat(dbctx.Context{Ctx: ctx}, jobID)
			}
		}
	}()
	return func() { close(done) }
}
