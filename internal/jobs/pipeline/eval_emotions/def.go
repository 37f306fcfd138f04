package eval_emotions

import (
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/services"
)

type Pipeline struct {
	log     *logger.Logger
	scoring services.ScoringService
}

func New(baseLog *logger.Logger, scoring services.ScoringService) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("job", "eval_emotions"),
		scoring: scoring,
	}
}

func (p *Pipeline) Type() string { return "eval_emotions" }
