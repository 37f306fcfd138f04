package jobs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
)

type JobRunEventRepo interface {
	Append(dbc dbctx.Context, e *types.JobRunEvent) error
	ListByJobID(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error)
}

type jobRunEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return &jobRunEventRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunEventRepo"),
	}
}

func (r *jobRunEventRepo) Append(dbc dbctx.Context, e *types.JobRunEvent) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if e == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(e).Error
}

func (r *jobRunEventRepo) ListByJobID(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobRunEvent
	if jobID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
