package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mentalhealthai/mhai-backend/internal/data/db/dbtest"
	authrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/auth"
	diaryrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/diary"
	jobsrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/jobs"
	profilerepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/profile"
	userrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/user"
	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/platform/inference"
	"github.com/mentalhealthai/mhai-backend/internal/realtime"
	"github.com/mentalhealthai/mhai-backend/internal/requestdata"
)

type testEnv struct {
	db  *gorm.DB
	log *logger.Logger

	users          userrepo.UserRepo
	tokens         authrepo.UserTokenRepo
	userProfiles   profilerepo.UserProfileRepo
	aiProfiles     profilerepo.AIProfileRepo
	criticalEvents profilerepo.CriticalEventRepo
	turns          diaryrepo.TurnRepo
	scores         diaryrepo.ScoreRepo
	jobRuns        jobsrepo.JobRunRepo
	jobEvents      jobsrepo.JobRunEventRepo

	hub *realtime.SSEHub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := dbtest.Open(t)
	log := logger.NewNop()
	return &testEnv{
		db:             gdb,
		log:            log,
		users:          userrepo.NewUserRepo(gdb, log),
		tokens:         authrepo.NewUserTokenRepo(gdb, log),
		userProfiles:   profilerepo.NewUserProfileRepo(gdb, log),
		aiProfiles:     profilerepo.NewAIProfileRepo(gdb, log),
		criticalEvents: profilerepo.NewCriticalEventRepo(gdb, log),
		turns:          diaryrepo.NewTurnRepo(gdb, log),
		scores:         diaryrepo.NewScoreRepo(gdb, log),
		jobRuns:        jobsrepo.NewJobRunRepo(gdb, log),
		jobEvents:      jobsrepo.NewJobRunEventRepo(gdb, log),
		hub:            realtime.NewSSEHub(log),
	}
}

func (e *testEnv) authService() AuthService {
	return NewAuthService(e.db, e.log, e.users, e.tokens, e.userProfiles, e.aiProfiles, "test-secret", time.Hour, 24*time.Hour)
}

func (e *testEnv) profileService() ProfileService {
	return NewProfileService(e.db, e.log, e.userProfiles, e.aiProfiles, e.criticalEvents)
}

func (e *testEnv) jobService() JobService {
	notify := NewJobNotifier(e.hub, nil, e.jobEvents, e.log)
	return NewJobService(e.db, e.log, e.jobRuns, e.jobEvents, notify, nil, "")
}

func (e *testEnv) diaryService() DiaryService {
	return NewDiaryService(e.db, e.log, e.turns, e.scores, e.jobService())
}

// seedUser provisions an account with both profiles, same as register.
func (e *testEnv) seedUser(t *testing.T, email string) *types.User {
	t.Helper()
	u, err := e.authService().RegisterUser(context.Background(), RegisterInput{
		Email:    email,
		Name:     "Test User",
		Password: "secret123",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) seedTurn(t *testing.T, userID uuid.UUID, prompt string, at time.Time) *types.DiaryTurn {
	t.Helper()
	turn, err := e.turns.Create(context.Background(), nil, &types.DiaryTurn{
		UserID:          userID,
		Prompt:          prompt,
		PromptTimestamp: at,
		Status:          "completed",
	})
	require.NoError(t, err)
	return turn
}

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func authedCtx(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID})
}

// fakeClassifier returns a canned distribution, recording the inputs.
type fakeClassifier struct {
	scores     []inference.LabelScore
	err        error
	lastModel  string
	lastInput  string
	classified int
}

func (f *fakeClassifier) Classify(ctx context.Context, model, input string) ([]inference.LabelScore, error) {
	f.classified++
	f.lastModel = model
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

// wordTruncator keeps the first maxTokens whitespace-separated words,
// a stand-in for the BPE truncator that needs no network.
type wordTruncator struct{}

func (wordTruncator) Truncate(text string, maxTokens int) (string, error) {
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text, nil
	}
	return strings.Join(words[:maxTokens], " "), nil
}
