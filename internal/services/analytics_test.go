package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
)

func TestPeriodCutoff(t *testing.T) {
	now := time.Date(2025, 8, 15, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		period string
		months int
		nilOut bool
		bad    bool
	}{
		{period: "1m", months: 1},
		{period: "3m", months: 3},
		{period: "6m", months: 6},
		{period: "1y", months: 12},
		{period: "max", nilOut: true},
		{period: "", nilOut: true},
		{period: "2w", bad: true},
	}
	for _, tc := range cases {
		t.Run("period "+tc.period, func(t *testing.T) {
			from, err := periodCutoff(tc.period, now)
			if tc.bad {
				require.ErrorIs(t, err, ErrUnknownPeriod)
				return
			}
			require.NoError(t, err)
			if tc.nilOut {
				require.Nil(t, from)
				return
			}
			require.NotNil(t, from)
			require.Equal(t, now.AddDate(0, -tc.months, 0), *from)
		})
	}
}

func TestDominantLabel(t *testing.T) {
	cases := []struct {
		name   string
		values map[string]float64
		want   string
	}{
		{"clear winner", map[string]float64{"joy": 0.1, "fear": 0.8, "anger": 0.1}, "fear"},
		{"tie goes to earlier label", map[string]float64{"sadness": 0.5, "anger": 0.5}, "anger"},
		{"all zero picks first label", map[string]float64{"joy": 0, "anger": 0}, "anger"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := dominantLabel(tc.values); got != tc.want {
				t.Fatalf("dominantLabel = %q, want %q", got, tc.want)
			}
		})
	}
}

// seedScoredTurn writes a turn plus an emotion row with a single
// dominant field set to 1.
func seedScoredTurn(t *testing.T, env *testEnv, userID uuid.UUID, at time.Time, emotion string) *types.DiaryTurn {
	t.Helper()
	turn := env.seedTurn(t, userID, "entry at "+at.Format(time.RFC3339), at)
	values := map[string]float64{emotion: 1}
	score := &types.EmotionScore{
		TurnID:   turn.ID,
		Neutral:  values["neutral"],
		Joy:      values["joy"],
		Disgust:  values["disgust"],
		Sadness:  values["sadness"],
		Anger:    values["anger"],
		Surprise: values["surprise"],
		Fear:     values["fear"],
	}
	require.NoError(t, env.scores.UpsertEmotion(context.Background(), nil, score))
	return turn
}

func TestAnalyticsSummary(t *testing.T) {
	env := newTestEnv(t)
	as := NewAnalyticsService(env.db, env.log, env.turns, env.scores)
	u := env.seedUser(t, "summary@example.com")
	dbc := dbctx.Context{Ctx: authedCtx(u.ID)}

	now := time.Now().UTC()
	env.seedTurn(t, u.ID, "recent", now.Add(-24*time.Hour))
	env.seedTurn(t, u.ID, "old", now.AddDate(0, -2, 0))
	env.seedTurn(t, u.ID, "   ", now) // blank prompts carry no signal

	sum, err := as.Summary(dbc, "")
	require.NoError(t, err)
	require.Equal(t, "max", sum.Period)
	require.Equal(t, 2, sum.Turns)

	sum, err = as.Summary(dbc, "1m")
	require.NoError(t, err)
	require.Equal(t, "1m", sum.Period)
	require.Equal(t, 1, sum.Turns)

	_, err = as.Summary(dbc, "2w")
	require.ErrorIs(t, err, ErrUnknownPeriod)

	_, err = as.Summary(dbctx.Context{Ctx: context.Background()}, "")
	require.EqualError(t, err, "not authenticated")
}

func TestAnalyticsFrequency(t *testing.T) {
	env := newTestEnv(t)
	as := NewAnalyticsService(env.db, env.log, env.turns, env.scores)
	u := env.seedUser(t, "freq@example.com")
	dbc := dbctx.Context{Ctx: authedCtx(u.ID)}

	now := time.Now().UTC()
	seedScoredTurn(t, env, u.ID, now.Add(-1*time.Hour), "sadness")
	seedScoredTurn(t, env, u.ID, now.Add(-2*time.Hour), "sadness")
	seedScoredTurn(t, env, u.ID, now.Add(-3*time.Hour), "joy")
	seedScoredTurn(t, env, u.ID, now.Add(-4*time.Hour), "fear")
	env.seedTurn(t, u.ID, "unscored, does not count", now)

	points, err := as.Frequency(dbc, ScoreCategoryEmotions, "max", 0)
	require.NoError(t, err)
	require.Equal(t, []FrequencyPoint{
		{Label: "sadness", Count: 2},
		{Label: "fear", Count: 1},
		{Label: "joy", Count: 1},
	}, points)

	t.Run("top truncates after ranking", func(t *testing.T) {
		points, err := as.Frequency(dbc, ScoreCategoryEmotions, "max", 1)
		require.NoError(t, err)
		require.Equal(t, []FrequencyPoint{{Label: "sadness", Count: 2}}, points)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := as.Frequency(dbc, "vibes", "max", 0)
		require.ErrorIs(t, err, ErrUnknownCategory)
	})

	t.Run("other categories are empty for emotion-only data", func(t *testing.T) {
		points, err := as.Frequency(dbc, ScoreCategoryMentBERT, "max", 0)
		require.NoError(t, err)
		require.Empty(t, points)
	})
}

func TestAnalyticsSeries(t *testing.T) {
	env := newTestEnv(t)
	as := NewAnalyticsService(env.db, env.log, env.turns, env.scores)
	u := env.seedUser(t, "series@example.com")
	dbc := dbctx.Context{Ctx: authedCtx(u.ID)}

	day1 := time.Now().UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour).Add(9 * time.Hour)
	day2 := day1.AddDate(0, 0, 1)
	seedScoredTurn(t, env, u.ID, day1, "sadness")
	seedScoredTurn(t, env, u.ID, day1.Add(time.Hour), "sadness")
	seedScoredTurn(t, env, u.ID, day1.Add(2*time.Hour), "joy")
	seedScoredTurn(t, env, u.ID, day2, "joy")

	points, err := as.Series(dbc, ScoreCategoryEmotions, "max", 0)
	require.NoError(t, err)
	require.Equal(t, []SeriesPoint{
		{Date: day1.Format("2006-01-02"), Label: "joy", Count: 1},
		{Date: day1.Format("2006-01-02"), Label: "sadness", Count: 2},
		{Date: day2.Format("2006-01-02"), Label: "joy", Count: 1},
	}, points)

	t.Run("top filters labels before bucketing", func(t *testing.T) {
		points, err := as.Series(dbc, ScoreCategoryEmotions, "max", 1)
		require.NoError(t, err)
		for _, p := range points {
			require.Equal(t, "joy", p.Label)
		}
		require.Len(t, points, 2)
	})
}
