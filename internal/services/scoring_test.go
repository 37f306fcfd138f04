package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mentalhealthai/mhai-backend/internal/platform/inference"
)

func TestNormalizeLabel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Joy", "joy"},
		{"Social Anxiety", "social_anxiety"},
		{"social-anxiety", "social_anxiety"},
		{"mental illnesses", "mental_illnesses"},
		{"PTSD", "ptsd"},
	}
	for _, tc := range cases {
		if got := normalizeLabel(tc.in); got != tc.want {
			t.Errorf("normalizeLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestScoreEmotions(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "score@example.com")
	turn := env.seedTurn(t, u.ID, "I felt really anxious today", time.Now().UTC())

	cl := &fakeClassifier{scores: []inference.LabelScore{
		{Label: "Fear", Score: 0.61},
		{Label: "sadness", Score: 0.22},
		{Label: "neutral", Score: 0.17},
	}}
	ss := NewScoringService(env.db, env.log, env.turns, env.scores, cl, wordTruncator{})

	score, err := ss.ScoreEmotions(context.Background(), turn.ID)
	require.NoError(t, err)
	require.NotNil(t, score)
	require.InDelta(t, 0.61, score.Fear, 1e-9)
	require.InDelta(t, 0.22, score.Sadness, 1e-9)
	require.InDelta(t, 0.17, score.Neutral, 1e-9)
	require.Zero(t, score.Joy)
	require.Equal(t, turn.Prompt, cl.lastInput)

	stored, err := env.scores.GetEmotionByTurnID(context.Background(), nil, turn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.InDelta(t, 0.61, stored.Fear, 1e-9)

	// A retry upserts rather than duplicating the row.
	cl.scores = []inference.LabelScore{{Label: "joy", Score: 0.9}}
	_, err = ss.ScoreEmotions(context.Background(), turn.ID)
	require.NoError(t, err)
	stored, err = env.scores.GetEmotionByTurnID(context.Background(), nil, turn.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.9, stored.Joy, 1e-9)
}

func TestScorePsychBERTRelabels(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "psych@example.com")
	turn := env.seedTurn(t, u.ID, "nobody talks to me anymore", time.Now().UTC())

	cl := &fakeClassifier{scores: []inference.LabelScore{
		{Label: "LABEL_0", Score: 0.05},
		{Label: "LABEL_1", Score: 0.30},
		{Label: "LABEL_4", Score: 0.15},
		{Label: "LABEL_5", Score: 0.50},
	}}
	ss := NewScoringService(env.db, env.log, env.turns, env.scores, cl, wordTruncator{})

	score, err := ss.ScorePsychBERT(context.Background(), turn.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.05, score.Unrelated, 1e-9)
	require.InDelta(t, 0.30, score.MentalIllnesses, 1e-9)
	require.InDelta(t, 0.15, score.SocialAnxiety, 1e-9)
	require.InDelta(t, 0.50, score.Loneliness, 1e-9)
}

func TestScoreMentBERT(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "ment@example.com")
	turn := env.seedTurn(t, u.ID, "my thoughts keep racing", time.Now().UTC())

	cl := &fakeClassifier{scores: []inference.LabelScore{
		{Label: "ADHD", Score: 0.4},
		{Label: "Bipolar", Score: 0.35},
		{Label: "OCD", Score: 0.25},
	}}
	ss := NewScoringService(env.db, env.log, env.turns, env.scores, cl, wordTruncator{})

	score, err := ss.ScoreMentBERT(context.Background(), turn.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.4, score.ADHD, 1e-9)
	require.InDelta(t, 0.35, score.Bipolar, 1e-9)
	require.InDelta(t, 0.25, score.OCD, 1e-9)
}

func TestScoreSkipsEmptyPrompt(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "empty@example.com")
	turn := env.seedTurn(t, u.ID, "   \n\t", time.Now().UTC())

	cl := &fakeClassifier{}
	ss := NewScoringService(env.db, env.log, env.turns, env.scores, cl, wordTruncator{})

	score, err := ss.ScoreEmotions(context.Background(), turn.ID)
	require.NoError(t, err)
	require.Nil(t, score)
	require.Zero(t, cl.classified)

	stored, err := env.scores.GetEmotionByTurnID(context.Background(), nil, turn.ID)
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestScoreUnknownLabel(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "unknown@example.com")
	turn := env.seedTurn(t, u.ID, "hello there", time.Now().UTC())

	cl := &fakeClassifier{scores: []inference.LabelScore{{Label: "excitement", Score: 1}}}
	ss := NewScoringService(env.db, env.log, env.turns, env.scores, cl, wordTruncator{})

	_, err := ss.ScoreEmotions(context.Background(), turn.ID)
	require.EqualError(t, err, `unexpected emotion label "excitement"`)
}

func TestScoreMissingTurn(t *testing.T) {
	env := newTestEnv(t)
	ss := NewScoringService(env.db, env.log, env.turns, env.scores, &fakeClassifier{}, wordTruncator{})

	_, err := ss.ScoreMentBERT(context.Background(), newUUID(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestScoreTruncatesLongPrompt(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "long@example.com")

	words := make([]string, EvalMaxTokens+50)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	turn := env.seedTurn(t, u.ID, strings.Join(words, " "), time.Now().UTC())

	cl := &fakeClassifier{scores: []inference.LabelScore{{Label: "neutral", Score: 1}}}
	ss := NewScoringService(env.db, env.log, env.turns, env.scores, cl, wordTruncator{})

	_, err := ss.ScoreEmotions(context.Background(), turn.ID)
	require.NoError(t, err)
	require.Equal(t, strings.Join(words[:EvalMaxTokens], " "), cl.lastInput)
}
