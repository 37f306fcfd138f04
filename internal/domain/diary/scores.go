package diary

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// One score row per turn per classifier. Every field is a probability
// in [0,1]. Rows are created by the pipeline only; an empty prompt
// produces no row at all.

type EmotionScore struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TurnID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"turn_id"`
	Turn   *Turn     `gorm:"constraint:OnDelete:CASCADE;foreignKey:TurnID;references:ID" json:"-"`

	Neutral  float64 `gorm:"not null;default:0" json:"neutral"`
	Joy      float64 `gorm:"not null;default:0" json:"joy"`
	Disgust  float64 `gorm:"not null;default:0" json:"disgust"`
	Sadness  float64 `gorm:"not null;default:0" json:"sadness"`
	Anger    float64 `gorm:"not null;default:0" json:"anger"`
	Surprise float64 `gorm:"not null;default:0" json:"surprise"`
	Fear     float64 `gorm:"not null;default:0" json:"fear"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (EmotionScore) TableName() string { return "emotion_score" }

func (s *EmotionScore) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type MentBERTScore struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TurnID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"turn_id"`
	Turn   *Turn     `gorm:"constraint:OnDelete:CASCADE;foreignKey:TurnID;references:ID" json:"-"`

	Borderline    float64 `gorm:"not null;default:0" json:"borderline"`
	Anxiety       float64 `gorm:"not null;default:0" json:"anxiety"`
	Depression    float64 `gorm:"not null;default:0" json:"depression"`
	Bipolar       float64 `gorm:"not null;default:0" json:"bipolar"`
	OCD           float64 `gorm:"not null;default:0;column:ocd" json:"ocd"`
	ADHD          float64 `gorm:"not null;default:0;column:adhd" json:"adhd"`
	Schizophrenia float64 `gorm:"not null;default:0" json:"schizophrenia"`
	Asperger      float64 `gorm:"not null;default:0" json:"asperger"`
	PTSD          float64 `gorm:"not null;default:0;column:ptsd" json:"ptsd"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MentBERTScore) TableName() string { return "mentbert_score" }

func (s *MentBERTScore) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type PsychBERTScore struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TurnID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"turn_id"`
	Turn   *Turn     `gorm:"constraint:OnDelete:CASCADE;foreignKey:TurnID;references:ID" json:"-"`

	Unrelated       float64 `gorm:"not null;default:0" json:"unrelated"`
	MentalIllnesses float64 `gorm:"not null;default:0;column:mental_illnesses" json:"mental_illnesses"`
	Anxiety         float64 `gorm:"not null;default:0" json:"anxiety"`
	Depression      float64 `gorm:"not null;default:0" json:"depression"`
	SocialAnxiety   float64 `gorm:"not null;default:0;column:social_anxiety" json:"social_anxiety"`
	Loneliness      float64 `gorm:"not null;default:0" json:"loneliness"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PsychBERTScore) TableName() string { return "psychbert_score" }

func (s *PsychBERTScore) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
