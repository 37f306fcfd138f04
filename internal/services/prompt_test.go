package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mentalhealthai/mhai-backend/internal/platform/openai"
)

func (e *testEnv) promptComposer() PromptComposer {
	return NewPromptComposer(e.db, e.log, e.turns, e.userProfiles, e.aiProfiles, e.criticalEvents)
}

func TestComposeSystemMessage(t *testing.T) {
	env := newTestEnv(t)
	pc := env.promptComposer()
	ps := env.profileService()
	ctx := context.Background()
	u := env.seedUser(t, "compose@example.com")

	_, err := ps.UpdateAIGeneral(ctx, u.ID, GeneralInfoUpdate{Name: strp("Nova")})
	require.NoError(t, err)
	_, err = ps.UpdateUserInterests(ctx, u.ID, InterestsUpdate{Interests: strp("gardening")})
	require.NoError(t, err)
	_, err = ps.CreateCriticalEvent(ctx, u.ID, CriticalEventInput{
		Date:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Description: "car accident",
	})
	require.NoError(t, err)

	messages, err := pc.Compose(ctx, u.ID, newUUID(t), "hey")
	require.NoError(t, err)
	require.NotEmpty(t, messages)

	system := messages[0]
	require.Equal(t, openai.RoleSystem, system.Role)
	require.Contains(t, system.Content, "You are a person called Nova")
	require.Contains(t, system.Content, "gardening")
	require.Contains(t, system.Content, "car accident")
	require.Contains(t, system.Content, "critical_events")

	require.Equal(t, openai.RoleUser, messages[len(messages)-1].Role)
	require.Equal(t, "hey", messages[len(messages)-1].Content)
}

func TestComposeDefaultPersonaName(t *testing.T) {
	env := newTestEnv(t)
	pc := env.promptComposer()
	ctx := context.Background()
	u := env.seedUser(t, "noname@example.com")

	messages, err := pc.Compose(ctx, u.ID, newUUID(t), "hello")
	require.NoError(t, err)
	require.Contains(t, messages[0].Content, "You are a person called Mhai")
	require.NotContains(t, messages[0].Content, "critical_events")
}

func TestComposeHistoryWindow(t *testing.T) {
	env := newTestEnv(t)
	pc := env.promptComposer()
	ctx := context.Background()
	u := env.seedUser(t, "history@example.com")

	base := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	old := env.seedTurn(t, u.ID, "old question", base)
	require.NoError(t, env.turns.SetResponse(ctx, nil, old.ID, "old answer", base.Add(time.Minute)))
	unanswered := env.seedTurn(t, u.ID, "no reply yet", base.Add(time.Hour))
	_ = unanswered
	current := env.seedTurn(t, u.ID, "what now", base.Add(2*time.Hour))

	messages, err := pc.Compose(ctx, u.ID, current.ID, "what now")
	require.NoError(t, err)

	// system, old question, old answer, unanswered prompt, current prompt
	require.Len(t, messages, 5)
	require.Equal(t, openai.RoleSystem, messages[0].Role)
	require.Equal(t, openai.Message{Role: openai.RoleUser, Content: "old question"}, messages[1])
	require.Equal(t, openai.Message{Role: openai.RoleAssistant, Content: "old answer"}, messages[2])
	require.Equal(t, openai.Message{Role: openai.RoleUser, Content: "no reply yet"}, messages[3])
	require.Equal(t, openai.Message{Role: openai.RoleUser, Content: "what now"}, messages[4])
}

func TestComposeHistoryCapped(t *testing.T) {
	env := newTestEnv(t)
	pc := env.promptComposer()
	ctx := context.Background()
	u := env.seedUser(t, "capped@example.com")

	base := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < HistoryLastK+5; i++ {
		env.seedTurn(t, u.ID, "entry", base.Add(time.Duration(i)*time.Minute))
	}

	messages, err := pc.Compose(ctx, u.ID, newUUID(t), "latest")
	require.NoError(t, err)
	// system + K history prompts + the current prompt.
	require.Len(t, messages, HistoryLastK+2)

	var userTurns int
	for _, m := range messages[1:] {
		require.Equal(t, openai.RoleUser, m.Role)
		if strings.HasPrefix(m.Content, "entry") {
			userTurns++
		}
	}
	require.Equal(t, HistoryLastK, userTurns)
}
