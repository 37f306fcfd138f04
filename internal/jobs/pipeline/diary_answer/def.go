package diary_answer

import (
	"gorm.io/gorm"

	diaryrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/diary"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/platform/openai"
	"github.com/mentalhealthai/mhai-backend/internal/services"
)

type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger

	ai       openai.Client
	composer services.PromptComposer
	turns    diaryrepo.TurnRepo
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	ai openai.Client,
	composer services.PromptComposer,
	turns diaryrepo.TurnRepo,
) *Pipeline {
	return &Pipeline{
		db:       db,
		log:      baseLog.With("job", "diary_answer"),
		ai:       ai,
		composer: composer,
		turns:    turns,
	}
}

func (p *Pipeline) Type() string { return "diary_answer" }
