package jobs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/mentalhealthai/mhai-backend/internal/data/db/dbtest"
	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
)

func newRepo(t *testing.T) (JobRunRepo, dbctx.Context) {
	t.Helper()
	gdb := dbtest.Open(t)
	return NewJobRunRepo(gdb, logger.NewNop()), dbctx.Context{Ctx: context.Background()}
}

func seedJob(t *testing.T, repo JobRunRepo, dbc dbctx.Context, mutate func(*types.JobRun)) *types.JobRun {
	t.Helper()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		JobType:     "diary_pipeline",
		EntityType:  "diary_turn",
		Status:      "queued",
		Stage:       "queued",
		MaxAttempts: 3,
		Payload:     []byte(`{}`),
		Result:      []byte(`{}`),
	}
	if mutate != nil {
		mutate(job)
	}
	_, err := repo.Create(dbc, []*types.JobRun{job})
	require.NoError(t, err)
	return job
}

func TestUpdateFieldsTouchesUpdatedAt(t *testing.T) {
	repo, dbc := newRepo(t)
	job := seedJob(t, repo, dbc, nil)

	before, err := repo.GetByID(dbc, job.ID)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.UpdateFields(dbc, job.ID, map[string]interface{}{"stage": "work"}))

	after, err := repo.GetByID(dbc, job.ID)
	require.NoError(t, err)
	require.Equal(t, "work", after.Stage)
	require.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestUpdateFieldsUnlessStatusGuards(t *testing.T) {
	repo, dbc := newRepo(t)
	job := seedJob(t, repo, dbc, func(j *types.JobRun) { j.Status = "succeeded" })

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, job.ID, []string{"succeeded"}, map[string]interface{}{
		"status": "failed",
	})
	require.NoError(t, err)
	require.False(t, ok)

	after, err := repo.GetByID(dbc, job.ID)
	require.NoError(t, err)
	require.Equal(t, "succeeded", after.Status)

	running := seedJob(t, repo, dbc, func(j *types.JobRun) { j.Status = "running" })
	ok, err = repo.UpdateFieldsUnlessStatus(dbc, running.ID, []string{"succeeded"}, map[string]interface{}{
		"status": "failed",
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHeartbeatOnlyRunning(t *testing.T) {
	repo, dbc := newRepo(t)
	queued := seedJob(t, repo, dbc, nil)
	running := seedJob(t, repo, dbc, func(j *types.JobRun) { j.Status = "running" })

	require.NoError(t, repo.Heartbeat(dbc, queued.ID))
	require.NoError(t, repo.Heartbeat(dbc, running.ID))

	q, err := repo.GetByID(dbc, queued.ID)
	require.NoError(t, err)
	require.Nil(t, q.HeartbeatAt)

	r, err := repo.GetByID(dbc, running.ID)
	require.NoError(t, err)
	require.NotNil(t, r.HeartbeatAt)
}

func TestHasRunnableForEntity(t *testing.T) {
	repo, dbc := newRepo(t)
	owner := uuid.New()
	entity := uuid.New()

	ok, err := repo.HasRunnableForEntity(dbc, owner, "diary_turn", entity, "diary_pipeline")
	require.NoError(t, err)
	require.False(t, ok)

	seedJob(t, repo, dbc, func(j *types.JobRun) {
		j.OwnerUserID = owner
		j.EntityID = &entity
	})

	ok, err = repo.HasRunnableForEntity(dbc, owner, "diary_turn", entity, "diary_pipeline")
	require.NoError(t, err)
	require.True(t, ok)

	// Scoped to the requested job type.
	ok, err = repo.HasRunnableForEntity(dbc, owner, "diary_turn", entity, "eval_emotions")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTerminal(t *testing.T) {
	cases := []struct {
		name string
		job  types.JobRun
		want bool
	}{
		{"succeeded", types.JobRun{Status: "succeeded"}, true},
		{"failed out of attempts", types.JobRun{Status: "failed", Attempts: 3, MaxAttempts: 3}, true},
		{"failed with attempts left", types.JobRun{Status: "failed", Attempts: 1, MaxAttempts: 3}, false},
		{"queued", types.JobRun{Status: "queued"}, false},
		{"running", types.JobRun{Status: "running"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.job.Terminal(); got != tc.want {
				t.Fatalf("Terminal() = %v, want %v", got, tc.want)
			}
		})
	}
}

// openPostgres connects to the database named by TEST_POSTGRES_DSN.
// The claim query uses FOR UPDATE SKIP LOCKED and cannot run on sqlite.
func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error)
	require.NoError(t, gdb.AutoMigrate(&types.JobRun{}))
	t.Cleanup(func() {
		_ = gdb.Exec(`TRUNCATE job_run`).Error
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func TestClaimNextRunnable(t *testing.T) {
	gdb := openPostgres(t)
	repo := NewJobRunRepo(gdb, logger.NewNop())
	dbc := dbctx.Context{Ctx: context.Background()}

	old := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	first := seedJob(t, repo, dbc, func(j *types.JobRun) { j.CreatedAt = old })
	second := seedJob(t, repo, dbc, nil)
	seedJob(t, repo, dbc, func(j *types.JobRun) { j.RunAfter = &future })
	seedJob(t, repo, dbc, func(j *types.JobRun) { j.Status = "succeeded" })
	seedJob(t, repo, dbc, func(j *types.JobRun) {
		j.Status = "failed"
		j.Attempts = 3
	})

	// Oldest runnable row wins.
	claimed, err := repo.ClaimNextRunnable(dbc, 3, time.Minute, 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, first.ID, claimed.ID)

	got, err := repo.GetByID(dbc, first.ID)
	require.NoError(t, err)
	require.Equal(t, "running", got.Status)
	require.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.LockedAt)
	require.NotNil(t, got.HeartbeatAt)

	claimed, err = repo.ClaimNextRunnable(dbc, 3, time.Minute, 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, second.ID, claimed.ID)

	// Deferred, succeeded and exhausted rows are not claimable.
	claimed, err = repo.ClaimNextRunnable(dbc, 3, time.Minute, 5*time.Minute)
	require.NoError(t, err)
	require.Nil(t, claimed)
}
