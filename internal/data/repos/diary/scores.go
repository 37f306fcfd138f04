package diary

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
)

// ScoreRepo covers all three classifier tables. Upserts key on turn_id
// so a retried evaluation never duplicates a row.
type ScoreRepo interface {
	UpsertEmotion(ctx context.Context, tx *gorm.DB, s *types.EmotionScore) error
	UpsertMentBERT(ctx context.Context, tx *gorm.DB, s *types.MentBERTScore) error
	UpsertPsychBERT(ctx context.Context, tx *gorm.DB, s *types.PsychBERTScore) error

	GetEmotionByTurnID(ctx context.Context, tx *gorm.DB, turnID uuid.UUID) (*types.EmotionScore, error)
	GetMentBERTByTurnID(ctx context.Context, tx *gorm.DB, turnID uuid.UUID) (*types.MentBERTScore, error)
	GetPsychBERTByTurnID(ctx context.Context, tx *gorm.DB, turnID uuid.UUID) (*types.PsychBERTScore, error)

	UpdateEmotionFields(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, fields map[string]any) error
	UpdateMentBERTFields(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, fields map[string]any) error
	UpdatePsychBERTFields(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, fields map[string]any) error

	ListEmotionsByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.EmotionScore, error)
	ListMentBERTByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.MentBERTScore, error)
	ListPsychBERTByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.PsychBERTScore, error)
}

type scoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScoreRepo(db *gorm.DB, baseLog *logger.Logger) ScoreRepo {
	return &scoreRepo{db: db, log: baseLog.With("repo", "ScoreRepo")}
}

func (sr *scoreRepo) upsert(ctx context.Context, tx *gorm.DB, model any) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "turn_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

func (sr *scoreRepo) UpsertEmotion(ctx context.Context, tx *gorm.DB, s *types.EmotionScore) error {
	return sr.upsert(ctx, tx, s)
}

func (sr *scoreRepo) UpsertMentBERT(ctx context.Context, tx *gorm.DB, s *types.MentBERTScore) error {
	return sr.upsert(ctx, tx, s)
}

func (sr *scoreRepo) UpsertPsychBERT(ctx context.Context, tx *gorm.DB, s *types.PsychBERTScore) error {
	return sr.upsert(ctx, tx, s)
}

func (sr *scoreRepo) GetEmotionByTurnID(ctx context.Context, tx *gorm.DB, turnID uuid.UUID) (*types.EmotionScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var result types.EmotionScore
	if err := transaction.WithContext(ctx).
		Where("turn_id = ?", turnID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (sr *scoreRepo) GetMentBERTByTurnID(ctx context.Context, tx *gorm.DB, turnID uuid.UUID) (*types.MentBERTScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var result types.MentBERTScore
	if err := transaction.WithContext(ctx).
		Where("turn_id = ?", turnID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (sr *scoreRepo) GetPsychBERTByTurnID(ctx context.Context, tx *gorm.DB, turnID uuid.UUID) (*types.PsychBERTScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var result types.PsychBERTScore
	if err := transaction.WithContext(ctx).
		Where("turn_id = ?", turnID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (sr *scoreRepo) UpdateEmotionFields(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.EmotionScore{}).
		Where("turn_id = ?", turnID).
		Updates(fields).Error
}

func (sr *scoreRepo) UpdateMentBERTFields(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.MentBERTScore{}).
		Where("turn_id = ?", turnID).
		Updates(fields).Error
}

func (sr *scoreRepo) UpdatePsychBERTFields(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.PsychBERTScore{}).
		Where("turn_id = ?", turnID).
		Updates(fields).Error
}

func (sr *scoreRepo) ListEmotionsByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.EmotionScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.EmotionScore
	if err := transaction.WithContext(ctx).
		Joins("JOIN diary_turn ON diary_turn.id = emotion_score.turn_id").
		Where("diary_turn.user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *scoreRepo) ListMentBERTByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.MentBERTScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.MentBERTScore
	if err := transaction.WithContext(ctx).
		Joins("JOIN diary_turn ON diary_turn.id = mentbert_score.turn_id").
		Where("diary_turn.user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *scoreRepo) ListPsychBERTByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.PsychBERTScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.PsychBERTScore
	if err := transaction.WithContext(ctx).
		Joins("JOIN diary_turn ON diary_turn.id = psychbert_score.turn_id").
		Where("diary_turn.user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
