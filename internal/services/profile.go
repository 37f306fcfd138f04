package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	profilerepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/profile"
	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/domain/profile"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
)

// Section update inputs. Pointer fields distinguish "not sent" from
// zero values so a PATCH only touches what the client provided.

type GeneralInfoUpdate struct {
	Name         *string `json:"name,omitempty"`
	Age          *int    `json:"age,omitempty"`
	Gender       *string `json:"gender,omitempty"`
	GenderCustom *string `json:"gender_custom,omitempty"`
}

type InterestsUpdate struct {
	Interests *string `json:"interests,omitempty"`
}

type EmotionsUpdate struct {
	Emotions *string `json:"emotions,omitempty"`
}

type BiographyUpdate struct {
	BioLife      *string `json:"bio_life,omitempty"`
	BioEducation *string `json:"bio_education,omitempty"`
	BioWork      *string `json:"bio_work,omitempty"`
	BioFamily    *string `json:"bio_family,omitempty"`
	BioFriends   *string `json:"bio_friends,omitempty"`
	BioPets      *string `json:"bio_pets,omitempty"`
	BioHealth    *string `json:"bio_health,omitempty"`
}

type CriticalEventInput struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Impact      string    `json:"impact"`
	Resolved    *bool     `json:"resolved,omitempty"`
	Treated     *bool     `json:"treated,omitempty"`
}

type ProfileService interface {
	GetUserProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error)
	GetAIProfile(ctx context.Context, userID uuid.UUID) (*types.AIProfile, error)

	UpdateUserGeneral(ctx context.Context, userID uuid.UUID, in GeneralInfoUpdate) (*types.UserProfile, error)
	UpdateUserInterests(ctx context.Context, userID uuid.UUID, in InterestsUpdate) (*types.UserProfile, error)
	UpdateUserEmotions(ctx context.Context, userID uuid.UUID, in EmotionsUpdate) (*types.UserProfile, error)
	UpdateUserBiography(ctx context.Context, userID uuid.UUID, in BiographyUpdate) (*types.UserProfile, error)

	UpdateAIGeneral(ctx context.Context, userID uuid.UUID, in GeneralInfoUpdate) (*types.AIProfile, error)
	UpdateAIInterests(ctx context.Context, userID uuid.UUID, in InterestsUpdate) (*types.AIProfile, error)
	UpdateAIEmotions(ctx context.Context, userID uuid.UUID, in EmotionsUpdate) (*types.AIProfile, error)
	UpdateAIBiography(ctx context.Context, userID uuid.UUID, in BiographyUpdate) (*types.AIProfile, error)

	ListCriticalEvents(ctx context.Context, userID uuid.UUID) ([]*types.CriticalEvent, error)
	CreateCriticalEvent(ctx context.Context, userID uuid.UUID, in CriticalEventInput) (*types.CriticalEvent, error)
	GetCriticalEvent(ctx context.Context, userID uuid.UUID, eventID uuid.UUID) (*types.CriticalEvent, error)
	UpdateCriticalEvent(ctx context.Context, userID uuid.UUID, eventID uuid.UUID, fields map[string]any) (*types.CriticalEvent, error)
	DeleteCriticalEvent(ctx context.Context, userID uuid.UUID, eventID uuid.UUID) error
}

type profileService struct {
	db        *gorm.DB
	log       *logger.Logger
	userRepo  profilerepo.UserProfileRepo
	aiRepo    profilerepo.AIProfileRepo
	eventRepo profilerepo.CriticalEventRepo
}

func NewProfileService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo profilerepo.UserProfileRepo,
	aiRepo profilerepo.AIProfileRepo,
	eventRepo profilerepo.CriticalEventRepo,
) ProfileService {
	return &profileService{
		db:        db,
		log:       log.With("service", "ProfileService"),
		userRepo:  userRepo,
		aiRepo:    aiRepo,
		eventRepo: eventRepo,
	}
}

var ErrProfileNotFound = fmt.Errorf("profile not found")
var ErrEventNotFound = fmt.Errorf("critical event not found")

func (ps *profileService) GetUserProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	p, err := ps.userRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

func (ps *profileService) GetAIProfile(ctx context.Context, userID uuid.UUID) (*types.AIProfile, error) {
	p, err := ps.aiRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// generalFields validates a general-info update and builds the column
// map. Picking any gender other than custom wipes gender_custom, so a
// stale custom label never lingers.
func generalFields(in GeneralInfoUpdate, allowName bool) (map[string]any, error) {
	fields := map[string]any{}
	if allowName && in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Age != nil {
		if *in.Age < 0 {
			return nil, fmt.Errorf("age must be non-negative")
		}
		fields["age"] = *in.Age
	}
	if in.Gender != nil {
		if !profile.ValidGender(*in.Gender) {
			return nil, fmt.Errorf("invalid gender %q", *in.Gender)
		}
		fields["gender"] = *in.Gender
		if *in.Gender != profile.GenderCustom {
			fields["gender_custom"] = ""
		}
	}
	if in.GenderCustom != nil {
		if len(*in.GenderCustom) > 50 {
			return nil, fmt.Errorf("gender_custom too long")
		}
		// Only meaningful when the row ends up with gender=C.
		if g, ok := fields["gender"]; !ok || g == profile.GenderCustom {
			fields["gender_custom"] = *in.GenderCustom
		}
	}
	return fields, nil
}

func biographyFields(in BiographyUpdate) (map[string]any, error) {
	fields := map[string]any{}
	set := func(col string, v *string) error {
		if v == nil {
			return nil
		}
		if len(*v) > 4000 {
			return fmt.Errorf("%s too long", col)
		}
		fields[col] = *v
		return nil
	}
	for col, v := range map[string]*string{
		"bio_life":      in.BioLife,
		"bio_education": in.BioEducation,
		"bio_work":      in.BioWork,
		"bio_family":    in.BioFamily,
		"bio_friends":   in.BioFriends,
		"bio_pets":      in.BioPets,
		"bio_health":    in.BioHealth,
	} {
		if err := set(col, v); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

func (ps *profileService) UpdateUserGeneral(ctx context.Context, userID uuid.UUID, in GeneralInfoUpdate) (*types.UserProfile, error) {
	fields, err := generalFields(in, false)
	if err != nil {
		return nil, err
	}
	return ps.applyUserUpdate(ctx, userID, fields)
}

func (ps *profileService) UpdateUserInterests(ctx context.Context, userID uuid.UUID, in InterestsUpdate) (*types.UserProfile, error) {
	fields := map[string]any{}
	if in.Interests != nil {
		if len(*in.Interests) > 1000 {
			return nil, fmt.Errorf("interests too long")
		}
		fields["interests"] = *in.Interests
	}
	return ps.applyUserUpdate(ctx, userID, fields)
}

func (ps *profileService) UpdateUserEmotions(ctx context.Context, userID uuid.UUID, in EmotionsUpdate) (*types.UserProfile, error) {
	fields := map[string]any{}
	if in.Emotions != nil {
		if len(*in.Emotions) > 1000 {
			return nil, fmt.Errorf("emotional_profile too long")
		}
		fields["emotional_profile"] = *in.Emotions
	}
	return ps.applyUserUpdate(ctx, userID, fields)
}

func (ps *profileService) UpdateUserBiography(ctx context.Context, userID uuid.UUID, in BiographyUpdate) (*types.UserProfile, error) {
	fields, err := biographyFields(in)
	if err != nil {
		return nil, err
	}
	return ps.applyUserUpdate(ctx, userID, fields)
}

func (ps *profileService) applyUserUpdate(ctx context.Context, userID uuid.UUID, fields map[string]any) (*types.UserProfile, error) {
	p, err := ps.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := ps.userRepo.UpdateFields(ctx, nil, p.ID, fields); err != nil {
		return nil, err
	}
	return ps.GetUserProfile(ctx, userID)
}

func (ps *profileService) UpdateAIGeneral(ctx context.Context, userID uuid.UUID, in GeneralInfoUpdate) (*types.AIProfile, error) {
	fields, err := generalFields(in, true)
	if err != nil {
		return nil, err
	}
	return ps.applyAIUpdate(ctx, userID, fields)
}

func (ps *profileService) UpdateAIInterests(ctx context.Context, userID uuid.UUID, in InterestsUpdate) (*types.AIProfile, error) {
	fields := map[string]any{}
	if in.Interests != nil {
		if len(*in.Interests) > 1000 {
			return nil, fmt.Errorf("interests too long")
		}
		fields["interests"] = *in.Interests
	}
	return ps.applyAIUpdate(ctx, userID, fields)
}

func (ps *profileService) UpdateAIEmotions(ctx context.Context, userID uuid.UUID, in EmotionsUpdate) (*types.AIProfile, error) {
	fields := map[string]any{}
	if in.Emotions != nil {
		if len(*in.Emotions) > 1000 {
			return nil, fmt.Errorf("emotions too long")
		}
		fields["emotions"] = *in.Emotions
	}
	return ps.applyAIUpdate(ctx, userID, fields)
}

func (ps *profileService) UpdateAIBiography(ctx context.Context, userID uuid.UUID, in BiographyUpdate) (*types.AIProfile, error) {
	fields, err := biographyFields(in)
	if err != nil {
		return nil, err
	}
	return ps.applyAIUpdate(ctx, userID, fields)
}

func (ps *profileService) applyAIUpdate(ctx context.Context, userID uuid.UUID, fields map[string]any) (*types.AIProfile, error) {
	p, err := ps.GetAIProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := ps.aiRepo.UpdateFields(ctx, nil, p.ID, fields); err != nil {
		return nil, err
	}
	return ps.GetAIProfile(ctx, userID)
}

func (ps *profileService) ListCriticalEvents(ctx context.Context, userID uuid.UUID) ([]*types.CriticalEvent, error) {
	p, err := ps.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ps.eventRepo.ListByProfileID(ctx, nil, p.ID)
}

func (ps *profileService) CreateCriticalEvent(ctx context.Context, userID uuid.UUID, in CriticalEventInput) (*types.CriticalEvent, error) {
	if in.Description == "" {
		return nil, fmt.Errorf("description is required")
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("date is required")
	}
	p, err := ps.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	e := &types.CriticalEvent{
		ProfileID:   p.ID,
		Date:        in.Date,
		Description: in.Description,
		Impact:      in.Impact,
	}
	if in.Resolved != nil {
		e.Resolved = *in.Resolved
	}
	if in.Treated != nil {
		e.Treated = *in.Treated
	}
	return ps.eventRepo.Create(ctx, nil, e)
}

// getOwnedEvent loads an event and checks it belongs to the caller's
// profile. Events from other users read as not-found.
func (ps *profileService) getOwnedEvent(ctx context.Context, userID uuid.UUID, eventID uuid.UUID) (*types.CriticalEvent, error) {
	p, err := ps.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	e, err := ps.eventRepo.GetByID(ctx, nil, eventID)
	if err != nil {
		return nil, err
	}
	if e == nil || e.ProfileID != p.ID {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (ps *profileService) GetCriticalEvent(ctx context.Context, userID uuid.UUID, eventID uuid.UUID) (*types.CriticalEvent, error) {
	return ps.getOwnedEvent(ctx, userID, eventID)
}

func (ps *profileService) UpdateCriticalEvent(ctx context.Context, userID uuid.UUID, eventID uuid.UUID, fields map[string]any) (*types.CriticalEvent, error) {
	e, err := ps.getOwnedEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	allowed := map[string]bool{
		"date": true, "description": true, "impact": true,
		"resolved": true, "treated": true,
	}
	filtered := map[string]any{}
	for k, v := range fields {
		if allowed[k] {
			filtered[k] = v
		}
	}
	if err := ps.eventRepo.UpdateFields(ctx, nil, e.ID, filtered); err != nil {
		return nil, err
	}
	return ps.eventRepo.GetByID(ctx, nil, e.ID)
}

func (ps *profileService) DeleteCriticalEvent(ctx context.Context, userID uuid.UUID, eventID uuid.UUID) error {
	e, err := ps.getOwnedEvent(ctx, userID, eventID)
	if err != nil {
		return err
	}
	return ps.eventRepo.Delete(ctx, nil, e.ID)
}
