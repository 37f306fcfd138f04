package diary_pipeline

import (
	"gorm.io/gorm"

	diaryrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/diary"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/services"
)

// Pipeline is the root job behind POST /api/diary. It fans out the
// answer job and the three evaluation jobs, then polls its children by
// requeueing itself with a delay. It is the only writer of a turn's
// final status.
type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger

	turns  diaryrepo.TurnRepo
	jobs   services.JobService
	notify services.JobNotifier
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	turns diaryrepo.TurnRepo,
	jobs services.JobService,
	notify services.JobNotifier,
) *Pipeline {
	return &Pipeline{
		db:     db,
		log:    baseLog.With("job", "diary_pipeline"),
		turns:  turns,
		jobs:   jobs,
		notify: notify,
	}
}

func (p *Pipeline) Type() string { return "diary_pipeline" }
