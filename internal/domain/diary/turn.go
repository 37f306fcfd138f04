package diary

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mentalhealthai/mhai-backend/internal/domain/user"
)

// Turn lifecycle. The scoring pipeline root job is the only writer of
// the final state: a turn ends completed only when the answer and all
// three evaluations landed, error otherwise.
const (
	TurnStatusStarted    = "started"
	TurnStatusInProgress = "in-progress"
	TurnStatusCompleted  = "completed"
	TurnStatusError      = "error"
)

// Turn is one prompt/response exchange. The prompt is written at
// creation; response and response_timestamp are filled by the pipeline.
type Turn struct {
	ID     uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`

	Prompt            string     `gorm:"type:text;not null" json:"prompt"`
	Response          string     `gorm:"type:text" json:"response"`
	PromptTimestamp   time.Time  `gorm:"not null;index;column:prompt_timestamp" json:"prompt_timestamp"`
	ResponseTimestamp *time.Time `gorm:"column:response_timestamp" json:"response_timestamp,omitempty"`
	Status            string     `gorm:"not null;default:'started';index" json:"status"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Turn) TableName() string { return "diary_turn" }

func (t *Turn) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.PromptTimestamp.IsZero() {
		t.PromptTimestamp = time.Now().UTC()
	}
	return nil
}
