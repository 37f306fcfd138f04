package diary_answer

import (
	"fmt"
	"time"

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

	turn, err := p.turns.GetByID(jc.Ctx, nil, turnID)
	if err != nil {
		jc.Fail("load", err)
		return nil
	}
	if turn == nil {
		jc.Fail("load", fmt.Errorf("turn %s not found", turnID))
		return nil
	}

	jc.Progress("compose", 20, "Composing prompt")
	messages, err := p.composer.Compose(jc.Ctx, turn.UserID, turn.ID, turn.Prompt)
	if err != nil {
		jc.Fail("compose", err)
		return nil
	}

	jc.Progress("generate", 50, "Generating reply")
	reply, err := p.ai.ChatCompletion(jc.Ctx, messages)
	if err != nil {
		jc.Fail("generate", err)
		return nil
	}

	if err := p.turns.SetResponse(jc.Ctx, nil, turn.ID, reply, time.Now().UTC()); err != nil {
		jc.Fail("persist", err)
		return nil
	}

	jc.Succeed("done", map[string]any{
		"turn_id":     turn.ID.String(),
		"reply_chars": len(reply),
	})
	return nil
}
