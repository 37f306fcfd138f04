package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	diaryrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/diary"
	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	domaindiary "github.com/mentalhealthai/mhai-backend/internal/domain/diary"
	domainjobs "github.com/mentalhealthai/mhai-backend/internal/domain/jobs"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/requestdata"
)

var (
	ErrTurnNotFound  = errors.New("turn not found")
	ErrScoreNotFound = errors.New("score not found")
)

// TurnWithScores is a turn plus whatever classifier rows exist for it.
// Score pointers stay nil while the pipeline is in flight or when the
// prompt was empty.
type TurnWithScores struct {
	Turn      *types.DiaryTurn      `json:"turn"`
	Emotions  *types.EmotionScore   `json:"emotions,omitempty"`
	MentBERT  *types.MentBERTScore  `json:"mentbert,omitempty"`
	PsychBERT *types.PsychBERTScore `json:"psychbert,omitempty"`
}

type EmotionScoreUpdate struct {
	Neutral  *float64 `json:"neutral"`
	Joy      *float64 `json:"joy"`
	Disgust  *float64 `json:"disgust"`
	Sadness  *float64 `json:"sadness"`
	Anger    *float64 `json:"anger"`
	Surprise *float64 `json:"surprise"`
	Fear     *float64 `json:"fear"`
}

type MentBERTScoreUpdate struct {
	Borderline    *float64 `json:"borderline"`
	Anxiety       *float64 `json:"anxiety"`
	Depression    *float64 `json:"depression"`
	Bipolar       *float64 `json:"bipolar"`
	OCD           *float64 `json:"ocd"`
	ADHD          *float64 `json:"adhd"`
	Schizophrenia *float64 `json:"schizophrenia"`
	Asperger      *float64 `json:"asperger"`
	PTSD          *float64 `json:"ptsd"`
}

type PsychBERTScoreUpdate struct {
	Unrelated       *float64 `json:"unrelated"`
	MentalIllnesses *float64 `json:"mental_illnesses"`
	Anxiety         *float64 `json:"anxiety"`
	Depression      *float64 `json:"depression"`
	SocialAnxiety   *float64 `json:"social_anxiety"`
	Loneliness      *float64 `json:"loneliness"`
}

// DiaryService is the request-user surface over diary turns. Writing a
// turn persists the prompt immediately and hands the rest to the
// background pipeline; the returned job id is what clients watch.
type DiaryService interface {
	CreateTurn(dbc dbctx.Context, prompt string) (*types.DiaryTurn, *types.JobRun, error)
	ListTurns(dbc dbctx.Context, sinceID *uuid.UUID, limit int) ([]*types.DiaryTurn, error)
	GetTurn(dbc dbctx.Context, turnID uuid.UUID) (*TurnWithScores, error)

	GetEmotionScore(dbc dbctx.Context, turnID uuid.UUID) (*types.EmotionScore, error)
	GetMentBERTScore(dbc dbctx.Context, turnID uuid.UUID) (*types.MentBERTScore, error)
	GetPsychBERTScore(dbc dbctx.Context, turnID uuid.UUID) (*types.PsychBERTScore, error)

	UpdateEmotionScore(dbc dbctx.Context, turnID uuid.UUID, in EmotionScoreUpdate) (*types.EmotionScore, error)
	UpdateMentBERTScore(dbc dbctx.Context, turnID uuid.UUID, in MentBERTScoreUpdate) (*types.MentBERTScore, error)
	UpdatePsychBERTScore(dbc dbctx.Context, turnID uuid.UUID, in PsychBERTScoreUpdate) (*types.PsychBERTScore, error)
}

type diaryService struct {
	db        *gorm.DB
	log       *logger.Logger
	turnRepo  diaryrepo.TurnRepo
	scoreRepo diaryrepo.ScoreRepo
	jobs      JobService
}

func NewDiaryService(
	db *gorm.DB,
	baseLog *logger.Logger,
	turnRepo diaryrepo.TurnRepo,
	scoreRepo diaryrepo.ScoreRepo,
	jobs JobService,
) DiaryService {
	return &diaryService{
		db:        db,
		log:       baseLog.With("service", "DiaryService"),
		turnRepo:  turnRepo,
		scoreRepo: scoreRepo,
		jobs:      jobs,
	}
}

func (s *diaryService) requestUserID(dbc dbctx.Context) (uuid.UUID, error) {
	rd := requestdata.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("not authenticated")
	}
	return rd.UserID, nil
}

func (s *diaryService) CreateTurn(dbc dbctx.Context, prompt string) (*types.DiaryTurn, *types.JobRun, error) {
	userID, err := s.requestUserID(dbc)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, nil, fmt.Errorf("missing prompt")
	}

	var turn *types.DiaryTurn
	var job *types.JobRun
	err = s.db.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		turn, err = s.turnRepo.Create(dbc.Ctx, txx, &types.DiaryTurn{
			UserID: userID,
			Prompt: prompt,
			Status: domaindiary.TurnStatusStarted,
		})
		if err != nil {
			return fmt.Errorf("create turn: %w", err)
		}

		entityID := turn.ID
		job, err = s.jobs.Enqueue(
			dbctx.Context{Ctx: dbc.Ctx, Tx: txx},
			userID,
			domainjobs.JobTypeDiaryPipeline,
			"diary_turn",
			&entityID,
			nil,
			map[string]any{"turn_id": turn.ID.String()},
		)
		if err != nil {
			return fmt.Errorf("enqueue pipeline: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// No-op without Temporal; the DB worker sees the committed row.
	if derr := s.jobs.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); derr != nil {
		s.log.Warn("Pipeline dispatch failed", "job_id", job.ID, "turn_id", turn.ID, "error", derr)
	}
	return turn, job, nil
}

// ListTurns returns the user's turns. Without a cursor they come newest
// first. With since_id the reply is every turn written strictly after
// the referenced one, oldest first; an unknown or foreign since_id is a
// not-found.
func (s *diaryService) ListTurns(dbc dbctx.Context, sinceID *uuid.UUID, limit int) ([]*types.DiaryTurn, error) {
	userID, err := s.requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	if sinceID == nil {
		return s.turnRepo.ListByUserID(dbc.Ctx, dbc.Tx, userID, limit)
	}
	ref, err := s.turnRepo.GetByID(dbc.Ctx, dbc.Tx, *sinceID)
	if err != nil {
		return nil, err
	}
	if ref == nil || ref.UserID != userID {
		return nil, ErrTurnNotFound
	}
	return s.turnRepo.ListSince(dbc.Ctx, dbc.Tx, userID, ref.PromptTimestamp, limit)
}

func (s *diaryService) getOwnedTurn(dbc dbctx.Context, turnID uuid.UUID) (*types.DiaryTurn, error) {
	userID, err := s.requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	turn, err := s.turnRepo.GetByID(dbc.Ctx, dbc.Tx, turnID)
	if err != nil {
		return nil, err
	}
	if turn == nil || turn.UserID != userID {
		return nil, ErrTurnNotFound
	}
	return turn, nil
}

func (s *diaryService) GetTurn(dbc dbctx.Context, turnID uuid.UUID) (*TurnWithScores, error) {
	turn, err := s.getOwnedTurn(dbc, turnID)
	if err != nil {
		return nil, err
	}
	out := &TurnWithScores{Turn: turn}
	if out.Emotions, err = s.scoreRepo.GetEmotionByTurnID(dbc.Ctx, dbc.Tx, turnID); err != nil {
		return nil, err
	}
	if out.MentBERT, err = s.scoreRepo.GetMentBERTByTurnID(dbc.Ctx, dbc.Tx, turnID); err != nil {
		return nil, err
	}
	if out.PsychBERT, err = s.scoreRepo.GetPsychBERTByTurnID(dbc.Ctx, dbc.Tx, turnID); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *diaryService) GetEmotionScore(dbc dbctx.Context, turnID uuid.UUID) (*types.EmotionScore, error) {
	if _, err := s.getOwnedTurn(dbc, turnID); err != nil {
		return nil, err
	}
	score, err := s.scoreRepo.GetEmotionByTurnID(dbc.Ctx, dbc.Tx, turnID)
	if err != nil {
		return nil, err
	}
	if score == nil {
		return nil, ErrScoreNotFound
	}
	return score, nil
}

func (s *diaryService) GetMentBERTScore(dbc dbctx.Context, turnID uuid.UUID) (*types.MentBERTScore, error) {
	if _, err := s.getOwnedTurn(dbc, turnID); err != nil {
		return nil, err
	}
	score, err := s.scoreRepo.GetMentBERTByTurnID(dbc.Ctx, dbc.Tx, turnID)
	if err != nil {
		return nil, err
	}
	if score == nil {
		return nil, ErrScoreNotFound
	}
	return score, nil
}

func (s *diaryService) GetPsychBERTScore(dbc dbctx.Context, turnID uuid.UUID) (*types.PsychBERTScore, error) {
	if _, err := s.getOwnedTurn(dbc, turnID); err != nil {
		return nil, err
	}
	score, err := s.scoreRepo.GetPsychBERTByTurnID(dbc.Ctx, dbc.Tx, turnID)
	if err != nil {
		return nil, err
	}
	if score == nil {
		return nil, ErrScoreNotFound
	}
	return score, nil
}

func scoreField(fields map[string]any, column string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 1 {
		return fmt.Errorf("%s must be between 0 and 1", column)
	}
	fields[column] = *v
	return nil
}

func (s *diaryService) UpdateEmotionScore(dbc dbctx.Context, turnID uuid.UUID, in EmotionScoreUpdate) (*types.EmotionScore, error) {
	if _, err := s.GetEmotionScore(dbc, turnID); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	for _, f := range []struct {
		column string
		value  *float64
	}{
		{"neutral", in.Neutral},
		{"joy", in.Joy},
		{"disgust", in.Disgust},
		{"sadness", in.Sadness},
		{"anger", in.Anger},
		{"surprise", in.Surprise},
		{"fear", in.Fear},
	} {
		if err := scoreField(fields, f.column, f.value); err != nil {
			return nil, err
		}
	}
	if err := s.scoreRepo.UpdateEmotionFields(dbc.Ctx, dbc.Tx, turnID, fields); err != nil {
		return nil, err
	}
	return s.scoreRepo.GetEmotionByTurnID(dbc.Ctx, dbc.Tx, turnID)
}

func (s *diaryService) UpdateMentBERTScore(dbc dbctx.Context, turnID uuid.UUID, in MentBERTScoreUpdate) (*types.MentBERTScore, error) {
	if _, err := s.GetMentBERTScore(dbc, turnID); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	for _, f := range []struct {
		column string
		value  *float64
	}{
		{"borderline", in.Borderline},
		{"anxiety", in.Anxiety},
		{"depression", in.Depression},
		{"bipolar", in.Bipolar},
		{"ocd", in.OCD},
		{"adhd", in.ADHD},
		{"schizophrenia", in.Schizophrenia},
		{"asperger", in.Asperger},
		{"ptsd", in.PTSD},
	} {
		if err := scoreField(fields, f.column, f.value); err != nil {
			return nil, err
		}
	}
	if err := s.scoreRepo.UpdateMentBERTFields(dbc.Ctx, dbc.Tx, turnID, fields); err != nil {
		return nil, err
	}
	return s.scoreRepo.GetMentBERTByTurnID(dbc.Ctx, dbc.Tx, turnID)
}

func (s *diaryService) UpdatePsychBERTScore(dbc dbctx.Context, turnID uuid.UUID, in PsychBERTScoreUpdate) (*types.PsychBERTScore, error) {
	if _, err := s.GetPsychBERTScore(dbc, turnID); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	for _, f := range []struct {
		column string
		value  *float64
	}{
		{"unrelated", in.Unrelated},
		{"mental_illnesses", in.MentalIllnesses},
		{"anxiety", in.Anxiety},
		{"depression", in.Depression},
		{"social_anxiety", in.SocialAnxiety},
		{"loneliness", in.Loneliness},
	} {
		if err := scoreField(fields, f.column, f.value); err != nil {
			return nil, err
		}
	}
	if err := s.scoreRepo.UpdatePsychBERTFields(dbc.Ctx, dbc.Tx, turnID, fields); err != nil {
		return nil, err
	}
	return s.scoreRepo.GetPsychBERTByTurnID(dbc.Ctx, dbc.Tx, turnID)
}
