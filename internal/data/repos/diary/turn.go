package diary

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
)

type TurnRepo interface {
	Create(ctx context.Context, tx *gorm.DB, t *types.DiaryTurn) (*types.DiaryTurn, error)
	GetByID(ctx context.Context, tx *gorm.DB, turnID uuid.UUID) (*types.DiaryTurn, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.DiaryTurn, error)
	ListSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, after time.Time, limit int) ([]*types.DiaryTurn, error)
	ListRecent(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lastK int) ([]*types.DiaryTurn, error)
	ListInRange(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from *time.Time) ([]*types.DiaryTurn, error)
	SetResponse(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, response string, at time.Time) error
	SetStatus(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, status string) error
}

type turnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTurnRepo(db *gorm.DB, baseLog *logger.Logger) TurnRepo {
	return &turnRepo{db: db, log: baseLog.With("repo", "DiaryTurnRepo")}
}

func (tr *turnRepo) Create(ctx context.Context, tx *gorm.DB, t *types.DiaryTurn) (*types.DiaryTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	if err := transaction.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (tr *turnRepo) GetByID(ctx context.Context, tx *gorm.DB, turnID uuid.UUID) (*types.DiaryTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	var result types.DiaryTurn
	if err := transaction.WithContext(ctx).
		Where("id = ?", turnID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (tr *turnRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.DiaryTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("prompt_timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var results []*types.DiaryTurn
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListSince returns turns created strictly after the given timestamp,
// oldest first, so clients can append in order.
func (tr *turnRepo) ListSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, after time.Time, limit int) ([]*types.DiaryTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ? AND prompt_timestamp > ?", userID, after).
		Order("prompt_timestamp ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var results []*types.DiaryTurn
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListRecent returns the last K turns oldest first, for history windows.
func (tr *turnRepo) ListRecent(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lastK int) ([]*types.DiaryTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	if lastK <= 0 {
		return nil, nil
	}
	var results []*types.DiaryTurn
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("prompt_timestamp DESC").
		Limit(lastK).
		Find(&results).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

func (tr *turnRepo) ListInRange(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from *time.Time) ([]*types.DiaryTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	q := transaction.WithContext(ctx).Where("user_id = ?", userID)
	if from != nil {
		q = q.Where("prompt_timestamp >= ?", *from)
	}
	var results []*types.DiaryTurn
	if err := q.Order("prompt_timestamp ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (tr *turnRepo) SetResponse(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, response string, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.DiaryTurn{}).
		Where("id = ?", turnID).
		Updates(map[string]any{
			"response":           response,
			"response_timestamp": at,
		}).Error
}

func (tr *turnRepo) SetStatus(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.DiaryTurn{}).
		Where("id = ?", turnID).
		Update("status", status).Error
}
