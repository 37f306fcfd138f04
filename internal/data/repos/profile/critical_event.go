package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
)

type CriticalEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, e *types.CriticalEvent) (*types.CriticalEvent, error)
	GetByID(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*types.CriticalEvent, error)
	ListByProfileID(ctx context.Context, tx *gorm.DB, profileID uuid.UUID) ([]*types.CriticalEvent, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) error
}

type criticalEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCriticalEventRepo(db *gorm.DB, baseLog *logger.Logger) CriticalEventRepo {
	return &criticalEventRepo{db: db, log: baseLog.With("repo", "CriticalEventRepo")}
}

func (er *criticalEventRepo) Create(ctx context.Context, tx *gorm.DB, e *types.CriticalEvent) (*types.CriticalEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	if err := transaction.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

func (er *criticalEventRepo) GetByID(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*types.CriticalEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	var result types.CriticalEvent
	if err := transaction.WithContext(ctx).
		Where("id = ?", eventID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (er *criticalEventRepo) ListByProfileID(ctx context.Context, tx *gorm.DB, profileID uuid.UUID) ([]*types.CriticalEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	var results []*types.CriticalEvent
	if err := transaction.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("date DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (er *criticalEventRepo) UpdateFields(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.CriticalEvent{}).
		Where("id = ?", eventID).
		Updates(fields).Error
}

func (er *criticalEventRepo) Delete(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", eventID).
		Delete(&types.CriticalEvent{}).Error
}
