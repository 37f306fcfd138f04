package eval_mentbert

import (
	"fmt"

	"github.com/google/uuid"

	jobrt "github.com/mentalhealthai/mhai-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	turnID, ok := jc.PayloadUUID("turn_id")
	if !ok || turnID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing turn_id"))
		return nil
	}

	jc.Progress("score", 30, "Scoring mental disorders")
	score, err := p.scoring.ScoreMentBERT(jc.Ctx, turnID)
	if err != nil {
		jc.Fail("score", err)
		return nil
	}

	jc.Succeed("done", map[string]any{
		"turn_id": turnID.String(),
		"scored":  score != nil,
	})
	return nil
}
