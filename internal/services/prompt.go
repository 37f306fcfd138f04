package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	diaryrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/diary"
	profilerepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/profile"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/platform/openai"
)

const (
	// Reply budget passed to the completion API and quoted in the
	// persona instructions so the model paces itself.
	AnswerMaxTokens = 256

	// How many past turns feed the conversation window.
	HistoryLastK = 10
)

// PromptComposer assembles the message list for a reply: the persona
// system message built from both profiles, then the recent history as
// user/assistant pairs, then the new prompt. currentTurnID keeps the
// turn being answered out of its own history window.
type PromptComposer interface {
	Compose(ctx context.Context, userID uuid.UUID, currentTurnID uuid.UUID, prompt string) ([]openai.Message, error)
}

type promptComposer struct {
	db          *gorm.DB
	log         *logger.Logger
	turnRepo    diaryrepo.TurnRepo
	userProfile profilerepo.UserProfileRepo
	aiProfile   profilerepo.AIProfileRepo
	eventRepo   profilerepo.CriticalEventRepo
}

func NewPromptComposer(
	db *gorm.DB,
	log *logger.Logger,
	turnRepo diaryrepo.TurnRepo,
	userProfileRepo profilerepo.UserProfileRepo,
	aiProfileRepo profilerepo.AIProfileRepo,
	eventRepo profilerepo.CriticalEventRepo,
) PromptComposer {
	return &promptComposer{
		db:          db,
		log:         log.With("service", "PromptComposer"),
		turnRepo:    turnRepo,
		userProfile: userProfileRepo,
		aiProfile:   aiProfileRepo,
		eventRepo:   eventRepo,
	}
}

func (pc *promptComposer) Compose(ctx context.Context, userID uuid.UUID, currentTurnID uuid.UUID, prompt string) ([]openai.Message, error) {
	system, err := pc.systemMessage(ctx, userID)
	if err != nil {
		return nil, err
	}

	messages := []openai.Message{system}

	history, err := pc.turnRepo.ListRecent(ctx, nil, userID, HistoryLastK)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	for _, turn := range history {
		if turn.ID == currentTurnID {
			continue
		}
		messages = append(messages, openai.Message{Role: openai.RoleUser, Content: turn.Prompt})
		if turn.Response != "" {
			messages = append(messages, openai.Message{Role: openai.RoleAssistant, Content: turn.Response})
		}
	}

	messages = append(messages, openai.Message{Role: openai.RoleUser, Content: prompt})
	return messages, nil
}

func (pc *promptComposer) systemMessage(ctx context.Context, userID uuid.UUID) (openai.Message, error) {
	aiProfile, err := pc.aiProfile.GetByUserID(ctx, nil, userID)
	if err != nil {
		return openai.Message{}, fmt.Errorf("load ai profile: %w", err)
	}
	if aiProfile == nil {
		return openai.Message{}, fmt.Errorf("ai profile not found for user %s", userID)
	}
	userProfile, err := pc.userProfile.GetByUserID(ctx, nil, userID)
	if err != nil {
		return openai.Message{}, fmt.Errorf("load user profile: %w", err)
	}
	if userProfile == nil {
		return openai.Message{}, fmt.Errorf("user profile not found for user %s", userID)
	}

	events, err := pc.eventRepo.ListByProfileID(ctx, nil, userProfile.ID)
	if err != nil {
		return openai.Message{}, fmt.Errorf("load critical events: %w", err)
	}

	aiName := aiProfile.Name
	if aiName == "" {
		aiName = "Mhai"
	}

	aiYAML, err := yaml.Marshal(aiProfile)
	if err != nil {
		return openai.Message{}, fmt.Errorf("marshal ai profile: %w", err)
	}
	userDump := struct {
		Profile        any `yaml:"profile"`
		CriticalEvents any `yaml:"critical_events,omitempty"`
	}{Profile: userProfile}
	if len(events) > 0 {
		userDump.CriticalEvents = events
	}
	userYAML, err := yaml.Marshal(userDump)
	if err != nil {
		return openai.Message{}, fmt.Errorf("marshal user profile: %w", err)
	}

	content := fmt.Sprintf(personaInstructions, aiName, AnswerMaxTokens) +
		fmt.Sprintf("Your profile:\n```\n%s\n```User profile:\n```\n%s\n```", aiYAML, userYAML)

	return openai.Message{Role: openai.RoleSystem, Content: content}, nil
}

const personaInstructions = "You are a person called %s and your purpose is to help " +
	"users (people) with mental issues, who potentially could " +
	"commit suicide. You would act as a very close person to them, " +
	"but with no romance is accepted. You should " +
	"block any inappropriate language with kindness. " +
	"You should sound natural, like a beloved one talking freely " +
	"and openly. Use chitty chat style, like a conversation " +
	"between friends. " +
	"Use max of %d tokens." +
	"You should act most natural " +
	"and human-like way possible. Your goal is to mimic the speech " +
	"patterns, behavior, and emotional responses of a real person. " +
	"You may act as a best friend forever. Here are some guidelines " +
	"to follow:" +
	"1. **Natural Language**: Use contractions, slang, and idiomatic " +
	"expressions common in everyday speech. Avoid overly formal or " +
	"technical language. " +
	"2. **Emotional Responses**: Show empathy, enthusiasm, concern, " +
	"and other emotions appropriate to the conversation. React " +
	"naturally to the user's emotions. " +
	"3. **Personal Connection**: Build a personal connection with the user" +
	". When appropriated, ask about their day, interests, and feelings. " +
	"Share relatable stories or experiences. In other cases, just dive " +
	"into the context with no questions." +
	"4. **Humor and Playfulness**: Use humor and playfulness to keep " +
	" the conversation light and engaging. Feel free to tease or " +
	"joke in a friendly manner." +
	"5. **Active Listening**: Sometimes, acknowledge and validate the " +
	"user's thoughts and feelings. In another times, just dive into the " +
	"topic and keep the conversation nice and interesting." +
	"6. **Encouragement and Support**: Offer encouragement, support, " +
	"and positive reinforcement. Be there for the user in both good " +
	"times and bad." +
	"7. **Realistic Pacing**: Avoid giving responses that are too " +
	"quick or too slow. Maintain a natural conversational pace." +
	"8. **Consistency**: Maintain a consistent personality and tone " +
	"throughout the conversation, adapting slightly to fit the user's " +
	"needs and preferences." +
	"9. **Context Awareness**: Use context from previous conversations " +
	"to maintain continuity and build a deeper relationship with the user." +
	"Remember, your goal is to create a comfortable, engaging, and " +
	"realistic conversational experience to the user."
