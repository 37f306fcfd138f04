package profile

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CriticalEvent is a significant life event attached to a user profile.
// It is surfaced to the persona as part of the conversation context.
type CriticalEvent struct {
	ID        uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProfileID uuid.UUID    `gorm:"type:uuid;not null;index" json:"profile_id"`
	Profile   *UserProfile `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProfileID;references:ID" json:"-"`

	Date        time.Time `gorm:"type:date;not null" json:"date" yaml:"date"`
	Description string    `gorm:"type:text;not null" json:"description" yaml:"description"`
	Impact      string    `gorm:"type:text" json:"impact" yaml:"impact"`
	Resolved    bool      `gorm:"not null;default:false" json:"resolved" yaml:"resolved"`
	Treated     bool      `gorm:"not null;default:false" json:"treated" yaml:"treated"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at" yaml:"-"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at" yaml:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty" yaml:"-"`
}

func (CriticalEvent) TableName() string { return "critical_event" }

func (e *CriticalEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
