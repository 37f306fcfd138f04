package diary_pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	domaindiary "github.com/mentalhealthai/mhai-backend/internal/domain/diary"
	domainjobs "github.com/mentalhealthai/mhai-backend/internal/domain/jobs"
	jobrt "github.com/mentalhealthai/mhai-backend/internal/jobs/runtime"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/platform/envutil"
)

var branchJobTypes = []string{
	domainjobs.JobTypeDiaryAnswer,
	domainjobs.JobTypeEvalEmotions,
	domainjobs.JobTypeEvalMentBERT,
	domainjobs.JobTypeEvalPsychBERT,
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	turnID, ok := jc.PayloadUUID("turn_id")
	if !ok || turnID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing turn_id"))
		return nil
	}

	children, err := jc.Repo.ListByParentID(dbctx.Context{Ctx: jc.Ctx}, jc.Job.ID)
	if err != nil {
		jc.Fail("poll", err)
		return nil
	}
	if len(children) == 0 {
		return p.fanOut(jc, turnID)
	}
	return p.join(jc, turnID, children)
}

// fanOut marks the turn in-progress and enqueues all four branches in
// one transaction, then schedules the first poll.
func (p *Pipeline) fanOut(jc *jobrt.Context, turnID uuid.UUID) error {
	turn, err := p.turns.GetByID(jc.Ctx, nil, turnID)
	if err != nil {
		jc.Fail("load", err)
		return nil
	}
	if turn == nil {
		jc.Fail("load", fmt.Errorf("turn %s not found", turnID))
		return nil
	}

	jc.Progress("fan_out", 10, "Starting turn processing")

	err = p.db.WithContext(jc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := p.turns.SetStatus(jc.Ctx, txx, turnID, domaindiary.TurnStatusInProgress); err != nil {
			return fmt.Errorf("set turn in-progress: %w", err)
		}
		parentID := jc.Job.ID
		entityID := turnID
		for _, jobType := range branchJobTypes {
			if _, err := p.jobs.Enqueue(
				dbctx.Context{Ctx: jc.Ctx, Tx: txx},
				jc.Job.OwnerUserID,
				jobType,
				"diary_turn",
				&entityID,
				&parentID,
				map[string]any{"turn_id": turnID.String()},
			); err != nil {
				return fmt.Errorf("enqueue %s: %w", jobType, err)
			}
		}
		return nil
	})
	if err != nil {
		jc.Fail("fan_out", err)
		return nil
	}

	turn.Status = domaindiary.TurnStatusInProgress
	p.notify.TurnUpdated(jc.Job.OwnerUserID, turn)
	p.requeue(jc, 20)
	return nil
}

// join inspects the branch runs. Every branch terminal and succeeded
// means the turn completed; any branch out of attempts means error;
// otherwise poll again later.
func (p *Pipeline) join(jc *jobrt.Context, turnID uuid.UUID, children []*types.JobRun) error {
	terminal := 0
	var failed []string
	for _, child := range children {
		if !child.Terminal() {
			continue
		}
		terminal++
		if child.Status != domainjobs.JobStatusSucceeded {
			failed = append(failed, fmt.Sprintf("%s: %s", child.JobType, child.Error))
		}
	}

	if terminal < len(children) {
		progress := 20 + (70*terminal)/len(children)
		p.requeue(jc, progress)
		return nil
	}

	if len(failed) > 0 {
		if err := p.turns.SetStatus(jc.Ctx, nil, turnID, domaindiary.TurnStatusError); err != nil {
			jc.Fail("join", err)
			return nil
		}
		p.notifyTurn(jc, turnID)
		jc.Fail("join", fmt.Errorf("%d branch(es) failed: %s", len(failed), strings.Join(failed, "; ")))
		return nil
	}

	if err := p.turns.SetStatus(jc.Ctx, nil, turnID, domaindiary.TurnStatusCompleted); err != nil {
		jc.Fail("join", err)
		return nil
	}
	p.notifyTurn(jc, turnID)

	result := map[string]any{"turn_id": turnID.String()}
	for _, child := range children {
		result[child.JobType] = child.Status
	}
	jc.Succeed("done", result)
	return nil
}

func (p *Pipeline) notifyTurn(jc *jobrt.Context, turnID uuid.UUID) {
	turn, err := p.turns.GetByID(jc.Ctx, nil, turnID)
	if err != nil || turn == nil {
		return
	}
	p.notify.TurnUpdated(jc.Job.OwnerUserID, turn)
}

// requeue releases this run back to the queue with a poll delay. The
// worker re-claims it once run_after passes. Attempts goes back to
// zero: each claim increments it, and a poll cycle is not a retry, so
// the budget only counts claims since the last completed cycle.
func (p *Pipeline) requeue(jc *jobrt.Context, progress int) {
	delay := envutil.Dur("DIARY_PIPELINE_POLL_INTERVAL", 2*time.Second)
	now := time.Now()
	if err := jc.Update(map[string]any{
		"status":       domainjobs.JobStatusQueued,
		"stage":        "await",
		"progress":     progress,
		"attempts":     0,
		"run_after":    now.Add(delay),
		"locked_at":    nil,
		"heartbeat_at": now,
	}); err != nil {
		p.log.Warn("Pipeline requeue failed", "job_id", jc.Job.ID, "error", err)
	}
}
