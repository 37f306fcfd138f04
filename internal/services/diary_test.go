package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainjobs "github.com/mentalhealthai/mhai-backend/internal/domain/jobs"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/platform/inference"
)

func TestCreateTurnEnqueuesPipeline(t *testing.T) {
	env := newTestEnv(t)
	ds := env.diaryService()
	u := env.seedUser(t, "diary@example.com")
	dbc := dbctx.Context{Ctx: authedCtx(u.ID)}

	turn, job, err := ds.CreateTurn(dbc, "today was rough")
	require.NoError(t, err)
	require.Equal(t, "today was rough", turn.Prompt)
	require.Equal(t, "started", turn.Status)
	require.False(t, turn.PromptTimestamp.IsZero())

	require.Equal(t, domainjobs.JobTypeDiaryPipeline, job.JobType)
	require.Equal(t, u.ID, job.OwnerUserID)
	require.Equal(t, "queued", job.Status)
	require.NotNil(t, job.EntityID)
	require.Equal(t, turn.ID, *job.EntityID)
	require.JSONEq(t, `{"turn_id":"`+turn.ID.String()+`"}`, string(job.Payload))

	stored, err := env.jobRuns.GetByID(dbctx.Context{Ctx: context.Background()}, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestCreateTurnValidation(t *testing.T) {
	env := newTestEnv(t)
	ds := env.diaryService()
	u := env.seedUser(t, "diaryval@example.com")

	_, _, err := ds.CreateTurn(dbctx.Context{Ctx: authedCtx(u.ID)}, "")
	require.EqualError(t, err, "missing prompt")

	// Whitespace trims to nothing, so no turn and no pipeline job.
	_, _, err = ds.CreateTurn(dbctx.Context{Ctx: authedCtx(u.ID)}, " \t\n ")
	require.EqualError(t, err, "missing prompt")
	listed, err := ds.ListTurns(dbctx.Context{Ctx: authedCtx(u.ID)}, nil, 0)
	require.NoError(t, err)
	require.Empty(t, listed)

	_, _, err = ds.CreateTurn(dbctx.Context{Ctx: context.Background()}, "hi")
	require.EqualError(t, err, "not authenticated")
}

func TestListTurns(t *testing.T) {
	env := newTestEnv(t)
	ds := env.diaryService()
	u := env.seedUser(t, "list@example.com")
	other := env.seedUser(t, "listother@example.com")
	dbc := dbctx.Context{Ctx: authedCtx(u.ID)}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t1 := env.seedTurn(t, u.ID, "first", base)
	t2 := env.seedTurn(t, u.ID, "second", base.Add(time.Hour))
	t3 := env.seedTurn(t, u.ID, "third", base.Add(2*time.Hour))
	foreign := env.seedTurn(t, other.ID, "not yours", base)

	t.Run("newest first without cursor", func(t *testing.T) {
		turns, err := ds.ListTurns(dbc, nil, 0)
		require.NoError(t, err)
		require.Len(t, turns, 3)
		require.Equal(t, t3.ID, turns[0].ID)
		require.Equal(t, t1.ID, turns[2].ID)
	})

	t.Run("limit applies", func(t *testing.T) {
		turns, err := ds.ListTurns(dbc, nil, 2)
		require.NoError(t, err)
		require.Len(t, turns, 2)
	})

	t.Run("since cursor is exclusive and oldest first", func(t *testing.T) {
		turns, err := ds.ListTurns(dbc, &t1.ID, 0)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		require.Equal(t, t2.ID, turns[0].ID)
		require.Equal(t, t3.ID, turns[1].ID)
	})

	t.Run("unknown cursor", func(t *testing.T) {
		id := newUUID(t)
		_, err := ds.ListTurns(dbc, &id, 0)
		require.ErrorIs(t, err, ErrTurnNotFound)
	})

	t.Run("foreign cursor reads as unknown", func(t *testing.T) {
		_, err := ds.ListTurns(dbc, &foreign.ID, 0)
		require.ErrorIs(t, err, ErrTurnNotFound)
	})
}

func TestGetTurnWithScores(t *testing.T) {
	env := newTestEnv(t)
	ds := env.diaryService()
	u := env.seedUser(t, "get@example.com")
	other := env.seedUser(t, "getother@example.com")
	dbc := dbctx.Context{Ctx: authedCtx(u.ID)}

	turn := env.seedTurn(t, u.ID, "how it went", time.Now().UTC())

	out, err := ds.GetTurn(dbc, turn.ID)
	require.NoError(t, err)
	require.Equal(t, turn.ID, out.Turn.ID)
	require.Nil(t, out.Emotions)
	require.Nil(t, out.MentBERT)
	require.Nil(t, out.PsychBERT)

	cl := &fakeClassifier{scores: []inference.LabelScore{{Label: "joy", Score: 0.8}}}
	ss := NewScoringService(env.db, env.log, env.turns, env.scores, cl, wordTruncator{})
	_, err = ss.ScoreEmotions(context.Background(), turn.ID)
	require.NoError(t, err)

	out, err = ds.GetTurn(dbc, turn.ID)
	require.NoError(t, err)
	require.NotNil(t, out.Emotions)
	require.InDelta(t, 0.8, out.Emotions.Joy, 1e-9)
	require.Nil(t, out.MentBERT)

	_, err = ds.GetTurn(dbctx.Context{Ctx: authedCtx(other.ID)}, turn.ID)
	require.ErrorIs(t, err, ErrTurnNotFound)
}

func TestScoreEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ds := env.diaryService()
	u := env.seedUser(t, "scores@example.com")
	dbc := dbctx.Context{Ctx: authedCtx(u.ID)}

	turn := env.seedTurn(t, u.ID, "a scored entry", time.Now().UTC())

	_, err := ds.GetEmotionScore(dbc, turn.ID)
	require.ErrorIs(t, err, ErrScoreNotFound)

	cl := &fakeClassifier{scores: []inference.LabelScore{
		{Label: "sadness", Score: 0.7},
		{Label: "joy", Score: 0.3},
	}}
	ss := NewScoringService(env.db, env.log, env.turns, env.scores, cl, wordTruncator{})
	_, err = ss.ScoreEmotions(context.Background(), turn.ID)
	require.NoError(t, err)

	got, err := ds.GetEmotionScore(dbc, turn.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.7, got.Sadness, 1e-9)

	t.Run("patch updates only provided fields", func(t *testing.T) {
		v := 0.55
		patched, err := ds.UpdateEmotionScore(dbc, turn.ID, EmotionScoreUpdate{Sadness: &v})
		require.NoError(t, err)
		require.InDelta(t, 0.55, patched.Sadness, 1e-9)
		require.InDelta(t, 0.3, patched.Joy, 1e-9)
	})

	t.Run("patch rejects out-of-range values", func(t *testing.T) {
		v := 1.5
		_, err := ds.UpdateEmotionScore(dbc, turn.ID, EmotionScoreUpdate{Fear: &v})
		require.EqualError(t, err, "fear must be between 0 and 1")
	})

	t.Run("patch of an unscored category is a not-found", func(t *testing.T) {
		v := 0.2
		_, err := ds.UpdateMentBERTScore(dbc, turn.ID, MentBERTScoreUpdate{Anxiety: &v})
		require.ErrorIs(t, err, ErrScoreNotFound)
	})
}
