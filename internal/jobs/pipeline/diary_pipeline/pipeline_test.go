package diary_pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mentalhealthai/mhai-backend/internal/data/db/dbtest"
	diaryrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/diary"
	jobsrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/jobs"
	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	domainjobs "github.com/mentalhealthai/mhai-backend/internal/domain/jobs"
	jobrt "github.com/mentalhealthai/mhai-backend/internal/jobs/runtime"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/realtime"
	"github.com/mentalhealthai/mhai-backend/internal/services"
)

type pipelineEnv struct {
	db       *gorm.DB
	turns    diaryrepo.TurnRepo
	jobRuns  jobsrepo.JobRunRepo
	pipeline *Pipeline
	notify   services.JobNotifier

	userID uuid.UUID
	turnID uuid.UUID
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	gdb := dbtest.Open(t)
	log := logger.NewNop()

	turns := diaryrepo.NewTurnRepo(gdb, log)
	jobRuns := jobsrepo.NewJobRunRepo(gdb, log)
	jobEvents := jobsrepo.NewJobRunEventRepo(gdb, log)
	hub := realtime.NewSSEHub(log)
	notify := services.NewJobNotifier(hub, nil, jobEvents, log)
	jobs := services.NewJobService(gdb, log, jobRuns, jobEvents, notify, nil, "")

	userID := uuid.New()
	turn, err := turns.Create(context.Background(), nil, &types.DiaryTurn{
		UserID:          userID,
		Prompt:          "long day at work",
		PromptTimestamp: time.Now().UTC(),
		Status:          "started",
	})
	require.NoError(t, err)

	return &pipelineEnv{
		db:       gdb,
		turns:    turns,
		jobRuns:  jobRuns,
		pipeline: New(gdb, log, turns, jobs, notify),
		notify:   notify,
		userID:   userID,
		turnID:   turn.ID,
	}
}

// rootJob inserts a claimed pipeline run for the env's turn.
func (e *pipelineEnv) rootJob(t *testing.T) *types.JobRun {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{"turn_id": e.turnID.String()})
	now := time.Now()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: e.userID,
		JobType:     domainjobs.JobTypeDiaryPipeline,
		EntityType:  "diary_turn",
		EntityID:    &e.turnID,
		Status:      domainjobs.JobStatusRunning,
		Stage:       "queued",
		Attempts:    1,
		MaxAttempts: 3,
		Payload:     payload,
		Result:      []byte(`{}`),
		LockedAt:    &now,
	}
	_, err := e.jobRuns.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job})
	require.NoError(t, err)
	return job
}

func (e *pipelineEnv) runOnce(t *testing.T, jobID uuid.UUID) *types.JobRun {
	t.Helper()
	job, err := e.jobRuns.GetByID(dbctx.Context{Ctx: context.Background()}, jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	jc := jobrt.NewContext(context.Background(), e.db, job, e.jobRuns, e.notify)
	require.NoError(t, e.pipeline.Run(jc))
	job, err = e.jobRuns.GetByID(dbctx.Context{Ctx: context.Background()}, jobID)
	require.NoError(t, err)
	return job
}

func (e *pipelineEnv) children(t *testing.T, parentID uuid.UUID) []*types.JobRun {
	t.Helper()
	out, err := e.jobRuns.ListByParentID(dbctx.Context{Ctx: context.Background()}, parentID)
	require.NoError(t, err)
	return out
}

func (e *pipelineEnv) turnStatus(t *testing.T) string {
	t.Helper()
	turn, err := e.turns.GetByID(context.Background(), nil, e.turnID)
	require.NoError(t, err)
	require.NotNil(t, turn)
	return turn.Status
}

func (e *pipelineEnv) finishChild(t *testing.T, child *types.JobRun, status string, attempts int, errMsg string) {
	t.Helper()
	require.NoError(t, e.jobRuns.UpdateFields(dbctx.Context{Ctx: context.Background()}, child.ID, map[string]interface{}{
		"status":   status,
		"attempts": attempts,
		"error":    errMsg,
	}))
}

func TestPipelineFanOut(t *testing.T) {
	env := newPipelineEnv(t)
	root := env.rootJob(t)

	after := env.runOnce(t, root.ID)

	children := env.children(t, root.ID)
	require.Len(t, children, 4)
	seen := map[string]bool{}
	for _, child := range children {
		seen[child.JobType] = true
		require.Equal(t, domainjobs.JobStatusQueued, child.Status)
		require.Equal(t, env.userID, child.OwnerUserID)
		require.NotNil(t, child.EntityID)
		require.Equal(t, env.turnID, *child.EntityID)
		require.JSONEq(t, `{"turn_id":"`+env.turnID.String()+`"}`, string(child.Payload))
	}
	for _, jobType := range branchJobTypes {
		require.True(t, seen[jobType], "missing branch %s", jobType)
	}

	require.Equal(t, "in-progress", env.turnStatus(t))

	// The root released itself back to the queue to poll its branches.
	require.Equal(t, domainjobs.JobStatusQueued, after.Status)
	require.Equal(t, "await", after.Stage)
	require.Equal(t, 20, after.Progress)
	require.Nil(t, after.LockedAt)
	require.NotNil(t, after.RunAfter)
	require.True(t, after.RunAfter.After(time.Now().Add(-time.Second)))
}

func TestPipelineJoinWaitsForBranches(t *testing.T) {
	env := newPipelineEnv(t)
	root := env.rootJob(t)
	env.runOnce(t, root.ID)

	children := env.children(t, root.ID)
	env.finishChild(t, children[0], domainjobs.JobStatusSucceeded, 1, "")
	env.finishChild(t, children[1], domainjobs.JobStatusSucceeded, 1, "")

	after := env.runOnce(t, root.ID)
	require.Equal(t, domainjobs.JobStatusQueued, after.Status)
	require.Equal(t, "await", after.Stage)
	// 20 + 70 * 2/4
	require.Equal(t, 55, after.Progress)
	require.Equal(t, "in-progress", env.turnStatus(t))

	// A failed branch with attempts left is not terminal yet.
	env.finishChild(t, children[2], domainjobs.JobStatusFailed, 1, "transient")
	after = env.runOnce(t, root.ID)
	require.Equal(t, domainjobs.JobStatusQueued, after.Status)
	require.Equal(t, 55, after.Progress)
}

func TestPipelineJoinCompletes(t *testing.T) {
	env := newPipelineEnv(t)
	root := env.rootJob(t)
	env.runOnce(t, root.ID)

	for _, child := range env.children(t, root.ID) {
		env.finishChild(t, child, domainjobs.JobStatusSucceeded, 1, "")
	}

	after := env.runOnce(t, root.ID)
	require.Equal(t, domainjobs.JobStatusSucceeded, after.Status)
	require.Equal(t, "done", after.Stage)
	require.Equal(t, 100, after.Progress)
	require.Equal(t, "completed", env.turnStatus(t))

	var result map[string]any
	require.NoError(t, json.Unmarshal(after.Result, &result))
	require.Equal(t, env.turnID.String(), result["turn_id"])
	for _, jobType := range branchJobTypes {
		require.Equal(t, "succeeded", result[jobType])
	}
}

func TestPipelineJoinFailsTurn(t *testing.T) {
	env := newPipelineEnv(t)
	root := env.rootJob(t)
	env.runOnce(t, root.ID)

	children := env.children(t, root.ID)
	for _, child := range children[:3] {
		env.finishChild(t, child, domainjobs.JobStatusSucceeded, 1, "")
	}
	// Out of attempts: terminal failure.
	env.finishChild(t, children[3], domainjobs.JobStatusFailed, 3, "model unavailable")

	after := env.runOnce(t, root.ID)
	require.Equal(t, domainjobs.JobStatusFailed, after.Status)
	require.Equal(t, "join", after.Stage)
	require.Contains(t, after.Error, "1 branch(es) failed")
	require.Contains(t, after.Error, "model unavailable")
	require.Equal(t, "error", env.turnStatus(t))
}

func TestPipelineMissingTurnID(t *testing.T) {
	env := newPipelineEnv(t)
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: env.userID,
		JobType:     domainjobs.JobTypeDiaryPipeline,
		Status:      domainjobs.JobStatusRunning,
		Stage:       "queued",
		Attempts:    1,
		MaxAttempts: 3,
		Payload:     []byte(`{}`),
		Result:      []byte(`{}`),
	}
	_, err := env.jobRuns.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job})
	require.NoError(t, err)

	after := env.runOnce(t, job.ID)
	require.Equal(t, domainjobs.JobStatusFailed, after.Status)
	require.Equal(t, "validate", after.Stage)
	require.Contains(t, after.Error, "missing turn_id")
}

func TestPipelineUnknownTurn(t *testing.T) {
	env := newPipelineEnv(t)
	payload, _ := json.Marshal(map[string]any{"turn_id": uuid.New().String()})
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: env.userID,
		JobType:     domainjobs.JobTypeDiaryPipeline,
		Status:      domainjobs.JobStatusRunning,
		Stage:       "queued",
		Attempts:    1,
		MaxAttempts: 3,
		Payload:     payload,
		Result:      []byte(`{}`),
	}
	_, err := env.jobRuns.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job})
	require.NoError(t, err)

	after := env.runOnce(t, job.ID)
	require.Equal(t, domainjobs.JobStatusFailed, after.Status)
	require.Equal(t, "load", after.Stage)
}

func TestPipelinePollingKeepsRetryBudget(t *testing.T) {
	env := newPipelineEnv(t)
	root := env.rootJob(t)

	// As if the worker had already claimed this run up to the budget.
	require.NoError(t, env.jobRuns.UpdateFields(dbctx.Context{Ctx: context.Background()}, root.ID, map[string]interface{}{
		"attempts": 3,
	}))

	after := env.runOnce(t, root.ID)
	require.Equal(t, domainjobs.JobStatusQueued, after.Status)
	require.Equal(t, 0, after.Attempts)

	// Every poll cycle releases with a fresh budget, so a transient
	// failure on a later claim stays reclaimable.
	require.NoError(t, env.jobRuns.UpdateFields(dbctx.Context{Ctx: context.Background()}, root.ID, map[string]interface{}{
		"attempts": 3,
	}))
	after = env.runOnce(t, root.ID)
	require.Equal(t, domainjobs.JobStatusQueued, after.Status)
	require.Equal(t, 0, after.Attempts)
	require.False(t, after.Terminal())
}
