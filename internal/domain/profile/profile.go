package profile

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mentalhealthai/mhai-backend/internal/domain/user"
)

// Gender codes shared by both profile kinds.
const (
	GenderMale      = "M"
	GenderFemale    = "F"
	GenderNonBinary = "NB"
	GenderOther     = "O"
	GenderCustom    = "C"
)

func ValidGender(g string) bool {
	switch g {
	case GenderMale, GenderFemale, GenderNonBinary, GenderOther, GenderCustom:
		return true
	}
	return false
}

// UserProfile describes the person on the other side of the conversation.
// One row per user, created together with the account.
type UserProfile struct {
	ID     uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User   *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`

	Age          int    `gorm:"not null;default:0" json:"age" yaml:"age"`
	Gender       string `gorm:"size:2;not null;default:'O'" json:"gender" yaml:"gender"`
	GenderCustom string `gorm:"size:50;column:gender_custom" json:"gender_custom" yaml:"gender_custom,omitempty"`

	Interests        string `gorm:"size:1000" json:"interests" yaml:"interests"`
	EmotionalProfile string `gorm:"size:1000;column:emotional_profile" json:"emotional_profile" yaml:"emotional_profile"`

	BioLife      string `gorm:"size:4000;column:bio_life" json:"bio_life" yaml:"bio_life"`
	BioEducation string `gorm:"size:4000;column:bio_education" json:"bio_education" yaml:"bio_education"`
	BioWork      string `gorm:"size:4000;column:bio_work" json:"bio_work" yaml:"bio_work"`
	BioFamily    string `gorm:"size:4000;column:bio_family" json:"bio_family" yaml:"bio_family"`
	BioFriends   string `gorm:"size:4000;column:bio_friends" json:"bio_friends" yaml:"bio_friends"`
	BioPets      string `gorm:"size:4000;column:bio_pets" json:"bio_pets" yaml:"bio_pets"`
	BioHealth    string `gorm:"size:4000;column:bio_health" json:"bio_health" yaml:"bio_health"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at" yaml:"-"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at" yaml:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty" yaml:"-"`
}

func (UserProfile) TableName() string { return "user_profile" }

func (p *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// AIProfile is the persona the assistant plays. Same shape as UserProfile
// plus a display name, since the persona is not a real account.
type AIProfile struct {
	ID     uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User   *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`

	Name         string `gorm:"size:255" json:"name" yaml:"name"`
	Age          int    `gorm:"not null;default:0" json:"age" yaml:"age"`
	Gender       string `gorm:"size:2;not null;default:'O'" json:"gender" yaml:"gender"`
	GenderCustom string `gorm:"size:50;column:gender_custom" json:"gender_custom" yaml:"gender_custom,omitempty"`

	Interests string `gorm:"size:1000" json:"interests" yaml:"interests"`
	Emotions  string `gorm:"size:1000" json:"emotions" yaml:"emotions"`

	BioLife      string `gorm:"size:4000;column:bio_life" json:"bio_life" yaml:"bio_life"`
	BioEducation string `gorm:"size:4000;column:bio_education" json:"bio_education" yaml:"bio_education"`
	BioWork      string `gorm:"size:4000;column:bio_work" json:"bio_work" yaml:"bio_work"`
	BioFamily    string `gorm:"size:4000;column:bio_family" json:"bio_family" yaml:"bio_family"`
	BioFriends   string `gorm:"size:4000;column:bio_friends" json:"bio_friends" yaml:"bio_friends"`
	BioPets      string `gorm:"size:4000;column:bio_pets" json:"bio_pets" yaml:"bio_pets"`
	BioHealth    string `gorm:"size:4000;column:bio_health" json:"bio_health" yaml:"bio_health"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at" yaml:"-"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at" yaml:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty" yaml:"-"`
}

func (AIProfile) TableName() string { return "ai_profile" }

func (p *AIProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
