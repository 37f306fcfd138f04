package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"gorm.io/gorm"

	diaryrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/diary"
	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/platform/envutil"
	"github.com/mentalhealthai/mhai-backend/internal/platform/inference"
)

// EvalMaxTokens caps classifier input. The upstream models reject long
// sequences, so prompts are truncated on the cl100k_base encoding
// before being sent.
const EvalMaxTokens = 450

// TokenTruncator shortens text to a token budget.
type TokenTruncator interface {
	Truncate(text string, maxTokens int) (string, error)
}

type tiktokenTruncator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTruncator loads the cl100k_base encoding. The library
// fetches the BPE ranks on first use unless TIKTOKEN_CACHE_DIR points
// at a pre-populated cache.
func NewTiktokenTruncator() (TokenTruncator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &tiktokenTruncator{enc: enc}, nil
}

func (t *tiktokenTruncator) Truncate(text string, maxTokens int) (string, error) {
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}
	return t.enc.Decode(tokens[:maxTokens]), nil
}

// normalizeLabel turns a classifier label into a column name: lower
// case with spaces and hyphens collapsed to underscores, so
// "Social Anxiety" and "social-anxiety" both land on social_anxiety.
func normalizeLabel(label string) string {
	out := strings.ToLower(label)
	out = strings.ReplaceAll(out, " ", "_")
	out = strings.ReplaceAll(out, "-", "_")
	return out
}

// psychbertLabels resolves the raw LABEL_N outputs of the fine-tuned
// checkpoint. LABEL_0 means "unrelated to mental health", stored under
// that name rather than the checkpoint's "negative".
var psychbertLabels = map[string]string{
	"LABEL_0": "unrelated",
	"LABEL_1": "mental illnesses",
	"LABEL_2": "anxiety",
	"LABEL_3": "depression",
	"LABEL_4": "social anxiety",
	"LABEL_5": "loneliness",
}

// ScoringService runs one classifier over a turn's prompt and persists
// the distribution. An empty prompt is a success that writes nothing.
type ScoringService interface {
	ScoreEmotions(ctx context.Context, turnID uuid.UUID) (*types.EmotionScore, error)
	ScoreMentBERT(ctx context.Context, turnID uuid.UUID) (*types.MentBERTScore, error)
	ScorePsychBERT(ctx context.Context, turnID uuid.UUID) (*types.PsychBERTScore, error)
}

type scoringService struct {
	db         *gorm.DB
	log        *logger.Logger
	turnRepo   diaryrepo.TurnRepo
	scoreRepo  diaryrepo.ScoreRepo
	classifier inference.Classifier
	truncator  TokenTruncator

	emotionsModel  string
	mentbertModel  string
	psychbertModel string
}

func NewScoringService(
	db *gorm.DB,
	log *logger.Logger,
	turnRepo diaryrepo.TurnRepo,
	scoreRepo diaryrepo.ScoreRepo,
	classifier inference.Classifier,
	truncator TokenTruncator,
) ScoringService {
	return &scoringService{
		db:             db,
		log:            log.With("service", "ScoringService"),
		turnRepo:       turnRepo,
		scoreRepo:      scoreRepo,
		classifier:     classifier,
		truncator:      truncator,
		emotionsModel:  envutil.Str("EVAL_EMOTIONS_MODEL", "j-hartmann/emotion-english-distilroberta-base"),
		mentbertModel:  envutil.Str("EVAL_MENTBERT_MODEL", "reab5555/mentBERT"),
		psychbertModel: envutil.Str("EVAL_PSYCHBERT_MODEL", "mnaylor/psychbert-finetuned-multiclass"),
	}
}

// classifyTurn loads the turn and returns its normalized label
// distribution, or nil when the prompt is empty.
func (ss *scoringService) classifyTurn(ctx context.Context, turnID uuid.UUID, model string, relabel map[string]string) (map[string]float64, error) {
	turn, err := ss.turnRepo.GetByID(ctx, nil, turnID)
	if err != nil {
		return nil, fmt.Errorf("load turn %s: %w", turnID, err)
	}
	if turn == nil {
		return nil, fmt.Errorf("turn %s not found", turnID)
	}
	if strings.TrimSpace(turn.Prompt) == "" {
		return nil, nil
	}

	text, err := ss.truncator.Truncate(turn.Prompt, EvalMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("truncate prompt: %w", err)
	}

	scores, err := ss.classifier.Classify(ctx, model, text)
	if err != nil {
		return nil, fmt.Errorf("classify with %s: %w", model, err)
	}

	dist := make(map[string]float64, len(scores))
	for _, ls := range scores {
		label := ls.Label
		if mapped, ok := relabel[label]; ok {
			label = mapped
		}
		dist[normalizeLabel(label)] = ls.Score
	}
	return dist, nil
}

func (ss *scoringService) ScoreEmotions(ctx context.Context, turnID uuid.UUID) (*types.EmotionScore, error) {
	dist, err := ss.classifyTurn(ctx, turnID, ss.emotionsModel, nil)
	if err != nil {
		return nil, err
	}
	if dist == nil {
		ss.log.Debug("empty prompt, skipping emotion score", "turnID", turnID)
		return nil, nil
	}

	score := &types.EmotionScore{TurnID: turnID}
	for label, value := range dist {
		switch label {
		case "neutral":
			score.Neutral = value
		case "joy":
			score.Joy = value
		case "disgust":
			score.Disgust = value
		case "sadness":
			score.Sadness = value
		case "anger":
			score.Anger = value
		case "surprise":
			score.Surprise = value
		case "fear":
			score.Fear = value
		default:
			return nil, fmt.Errorf("unexpected emotion label %q", label)
		}
	}
	if err := ss.scoreRepo.UpsertEmotion(ctx, nil, score); err != nil {
		return nil, fmt.Errorf("store emotion score: %w", err)
	}
	return score, nil
}

func (ss *scoringService) ScoreMentBERT(ctx context.Context, turnID uuid.UUID) (*types.MentBERTScore, error) {
	dist, err := ss.classifyTurn(ctx, turnID, ss.mentbertModel, nil)
	if err != nil {
		return nil, err
	}
	if dist == nil {
		ss.log.Debug("empty prompt, skipping mentbert score", "turnID", turnID)
		return nil, nil
	}

	score := &types.MentBERTScore{TurnID: turnID}
	for label, value := range dist {
		switch label {
		case "borderline":
			score.Borderline = value
		case "anxiety":
			score.Anxiety = value
		case "depression":
			score.Depression = value
		case "bipolar":
			score.Bipolar = value
		case "ocd":
			score.OCD = value
		case "adhd":
			score.ADHD = value
		case "schizophrenia":
			score.Schizophrenia = value
		case "asperger":
			score.Asperger = value
		case "ptsd":
			score.PTSD = value
		default:
			return nil, fmt.Errorf("unexpected mentbert label %q", label)
		}
	}
	if err := ss.scoreRepo.UpsertMentBERT(ctx, nil, score); err != nil {
		return nil, fmt.Errorf("store mentbert score: %w", err)
	}
	return score, nil
}

func (ss *scoringService) ScorePsychBERT(ctx context.Context, turnID uuid.UUID) (*types.PsychBERTScore, error) {
	dist, err := ss.classifyTurn(ctx, turnID, ss.psychbertModel, psychbertLabels)
	if err != nil {
		return nil, err
	}
	if dist == nil {
		ss.log.Debug("empty prompt, skipping psychbert score", "turnID", turnID)
		return nil, nil
	}

	score := &types.PsychBERTScore{TurnID: turnID}
	for label, value := range dist {
		switch label {
		case "unrelated":
			score.Unrelated = value
		case "mental_illnesses":
			score.MentalIllnesses = value
		case "anxiety":
			score.Anxiety = value
		case "depression":
			score.Depression = value
		case "social_anxiety":
			score.SocialAnxiety = value
		case "loneliness":
			score.Loneliness = value
		default:
			return nil, fmt.Errorf("unexpected psychbert label %q", label)
		}
	}
	if err := ss.scoreRepo.UpsertPsychBERT(ctx, nil, score); err != nil {
		return nil, fmt.Errorf("store psychbert score: %w", err)
	}
	return score, nil
}
