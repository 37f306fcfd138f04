package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
)

type UserProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, p *types.UserProfile) (*types.UserProfile, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserProfile, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, profileID uuid.UUID, fields map[string]any) error
}

type AIProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, p *types.AIProfile) (*types.AIProfile, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.AIProfile, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, profileID uuid.UUID, fields map[string]any) error
}

type userProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	return &userProfileRepo{db: db, log: baseLog.With("repo", "UserProfileRepo")}
}

func (pr *userProfileRepo) Create(ctx context.Context, tx *gorm.DB, p *types.UserProfile) (*types.UserProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if err := transaction.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (pr *userProfileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var result types.UserProfile
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (pr *userProfileRepo) UpdateFields(ctx context.Context, tx *gorm.DB, profileID uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.UserProfile{}).
		Where("id = ?", profileID).
		Updates(fields).Error
}

type aiProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAIProfileRepo(db *gorm.DB, baseLog *logger.Logger) AIProfileRepo {
	return &aiProfileRepo{db: db, log: baseLog.With("repo", "AIProfileRepo")}
}

func (pr *aiProfileRepo) Create(ctx context.Context, tx *gorm.DB, p *types.AIProfile) (*types.AIProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if err := transaction.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (pr *aiProfileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.AIProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var result types.AIProfile
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (pr *aiProfileRepo) UpdateFields(ctx context.Context, tx *gorm.DB, profileID uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.AIProfile{}).
		Where("id = ?", profileID).
		Updates(fields).Error
}
