package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }
func boolp(b bool) *bool    { return &b }

func TestUpdateUserGeneral(t *testing.T) {
	env := newTestEnv(t)
	ps := env.profileService()
	ctx := context.Background()
	u := env.seedUser(t, "general@example.com")

	p, err := ps.UpdateUserGeneral(ctx, u.ID, GeneralInfoUpdate{
		Age:          intp(34),
		Gender:       strp("C"),
		GenderCustom: strp("genderfluid"),
	})
	require.NoError(t, err)
	require.Equal(t, 34, p.Age)
	require.Equal(t, "C", p.Gender)
	require.Equal(t, "genderfluid", p.GenderCustom)

	// Switching away from custom wipes the custom label.
	p, err = ps.UpdateUserGeneral(ctx, u.ID, GeneralInfoUpdate{Gender: strp("NB")})
	require.NoError(t, err)
	require.Equal(t, "NB", p.Gender)
	require.Equal(t, "", p.GenderCustom)

	_, err = ps.UpdateUserGeneral(ctx, u.ID, GeneralInfoUpdate{Gender: strp("X")})
	require.EqualError(t, err, `invalid gender "X"`)

	_, err = ps.UpdateUserGeneral(ctx, u.ID, GeneralInfoUpdate{Age: intp(-1)})
	require.EqualError(t, err, "age must be non-negative")

	// The user profile has no name column; the field is ignored.
	p, err = ps.UpdateUserGeneral(ctx, u.ID, GeneralInfoUpdate{Name: strp("ignored")})
	require.NoError(t, err)
	require.Equal(t, "NB", p.Gender)
}

func TestUpdateAIGeneralSetsName(t *testing.T) {
	env := newTestEnv(t)
	ps := env.profileService()
	ctx := context.Background()
	u := env.seedUser(t, "ainame@example.com")

	p, err := ps.UpdateAIGeneral(ctx, u.ID, GeneralInfoUpdate{
		Name:   strp("Mhai"),
		Gender: strp("F"),
	})
	require.NoError(t, err)
	require.Equal(t, "Mhai", p.Name)
	require.Equal(t, "F", p.Gender)
}

func TestEmotionsColumnsDiverge(t *testing.T) {
	env := newTestEnv(t)
	ps := env.profileService()
	ctx := context.Background()
	u := env.seedUser(t, "emotions@example.com")

	up, err := ps.UpdateUserEmotions(ctx, u.ID, EmotionsUpdate{Emotions: strp("anxious lately")})
	require.NoError(t, err)
	require.Equal(t, "anxious lately", up.EmotionalProfile)

	ap, err := ps.UpdateAIEmotions(ctx, u.ID, EmotionsUpdate{Emotions: strp("warm, patient")})
	require.NoError(t, err)
	require.Equal(t, "warm, patient", ap.Emotions)

	long := strings.Repeat("x", 1001)
	_, err = ps.UpdateUserEmotions(ctx, u.ID, EmotionsUpdate{Emotions: &long})
	require.EqualError(t, err, "emotional_profile too long")
	_, err = ps.UpdateAIEmotions(ctx, u.ID, EmotionsUpdate{Emotions: &long})
	require.EqualError(t, err, "emotions too long")
}

func TestUpdateBiography(t *testing.T) {
	env := newTestEnv(t)
	ps := env.profileService()
	ctx := context.Background()
	u := env.seedUser(t, "bio@example.com")

	p, err := ps.UpdateUserBiography(ctx, u.ID, BiographyUpdate{
		BioLife: strp("grew up by the sea"),
		BioPets: strp("one old cat"),
	})
	require.NoError(t, err)
	require.Equal(t, "grew up by the sea", p.BioLife)
	require.Equal(t, "one old cat", p.BioPets)
	require.Equal(t, "", p.BioWork)

	long := strings.Repeat("y", 4001)
	_, err = ps.UpdateUserBiography(ctx, u.ID, BiographyUpdate{BioHealth: &long})
	require.EqualError(t, err, "bio_health too long")
}

func TestProfileNotFound(t *testing.T) {
	env := newTestEnv(t)
	ps := env.profileService()
	ctx := context.Background()

	_, err := ps.GetUserProfile(ctx, newUUID(t))
	require.ErrorIs(t, err, ErrProfileNotFound)
	_, err = ps.UpdateAIInterests(ctx, newUUID(t), InterestsUpdate{Interests: strp("chess")})
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestCriticalEventLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ps := env.profileService()
	ctx := context.Background()
	u := env.seedUser(t, "events@example.com")
	other := env.seedUser(t, "other@example.com")

	_, err := ps.CreateCriticalEvent(ctx, u.ID, CriticalEventInput{Date: time.Now()})
	require.EqualError(t, err, "description is required")
	_, err = ps.CreateCriticalEvent(ctx, u.ID, CriticalEventInput{Description: "lost my job"})
	require.EqualError(t, err, "date is required")

	older := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC)
	first, err := ps.CreateCriticalEvent(ctx, u.ID, CriticalEventInput{
		Date:        older,
		Description: "lost my job",
		Impact:      "high",
	})
	require.NoError(t, err)
	second, err := ps.CreateCriticalEvent(ctx, u.ID, CriticalEventInput{
		Date:        newer,
		Description: "moved cities",
		Resolved:    boolp(true),
	})
	require.NoError(t, err)

	// Listed newest first.
	events, err := ps.ListCriticalEvents(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, second.ID, events[0].ID)
	require.Equal(t, first.ID, events[1].ID)

	// Other users cannot see, update or delete someone else's event.
	_, err = ps.GetCriticalEvent(ctx, other.ID, first.ID)
	require.ErrorIs(t, err, ErrEventNotFound)
	_, err = ps.UpdateCriticalEvent(ctx, other.ID, first.ID, map[string]any{"impact": "low"})
	require.ErrorIs(t, err, ErrEventNotFound)
	require.ErrorIs(t, ps.DeleteCriticalEvent(ctx, other.ID, first.ID), ErrEventNotFound)

	// Updates only touch whitelisted columns.
	updated, err := ps.UpdateCriticalEvent(ctx, u.ID, first.ID, map[string]any{
		"impact":     "medium",
		"treated":    true,
		"profile_id": newUUID(t).String(),
		"resolved":   true,
	})
	require.NoError(t, err)
	require.Equal(t, "medium", updated.Impact)
	require.True(t, updated.Treated)
	require.True(t, updated.Resolved)

	require.NoError(t, ps.DeleteCriticalEvent(ctx, u.ID, first.ID))
	_, err = ps.GetCriticalEvent(ctx, u.ID, first.ID)
	require.ErrorIs(t, err, ErrEventNotFound)
}
