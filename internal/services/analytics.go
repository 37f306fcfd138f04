package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	diaryrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/diary"
	types "github.com/mentalhealthai/mhai-backend/internal/domain"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/ctxutil"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/requestdata"
)

const (
	ScoreCategoryEmotions  = "emotions"
	ScoreCategoryMentBERT  = "mentbert"
	ScoreCategoryPsychBERT = "psychbert"
)

const defaultTopLabels = 5

var (
	ErrUnknownPeriod   = errors.New("unknown period")
	ErrUnknownCategory = errors.New("unknown score category")
)

type AnalyticsSummary struct {
	Period string `json:"period"`
	Turns  int    `json:"turns"`
}

type FrequencyPoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SeriesPoint is one day of one label, dates formatted YYYY-MM-DD.
type SeriesPoint struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// AnalyticsService produces chart-ready aggregates over the request
// user's scored turns. Each turn contributes its dominant label, the
// argmax over the classifier's fields with ties broken by label
// ascending.
type AnalyticsService interface {
	Summary(dbc dbctx.Context, period string) (*AnalyticsSummary, error)
	Frequency(dbc dbctx.Context, category string, period string, top int) ([]FrequencyPoint, error)
	Series(dbc dbctx.Context, category string, period string, top int) ([]SeriesPoint, error)
}

type analyticsService struct {
	db        *gorm.DB
	log       *logger.Logger
	turnRepo  diaryrepo.TurnRepo
	scoreRepo diaryrepo.ScoreRepo
}

func NewAnalyticsService(
	db *gorm.DB,
	baseLog *logger.Logger,
	turnRepo diaryrepo.TurnRepo,
	scoreRepo diaryrepo.ScoreRepo,
) AnalyticsService {
	return &analyticsService{
		db:        db,
		log:       baseLog.With("service", "AnalyticsService"),
		turnRepo:  turnRepo,
		scoreRepo: scoreRepo,
	}
}

// periodCutoff maps a period name to its lower bound, nil for max.
func periodCutoff(period string, now time.Time) (*time.Time, error) {
	months := 0
	switch period {
	case "1m":
		months = 1
	case "3m":
		months = 3
	case "6m":
		months = 6
	case "1y":
		months = 12
	case "max", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
	from := now.AddDate(0, -months, 0)
	return &from, nil
}

// dataset is the in-memory join of a period's turns with their score
// rows, keyed by turn id.
type dataset struct {
	turns     []*types.DiaryTurn
	emotions  map[uuid.UUID]*types.EmotionScore
	mentbert  map[uuid.UUID]*types.MentBERTScore
	psychbert map[uuid.UUID]*types.PsychBERTScore
}

func (s *analyticsService) fetch(dbc dbctx.Context, period string) (*dataset, error) {
	rd := requestdata.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated")
	}
	from, err := periodCutoff(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	userID := rd.UserID

	ds := &dataset{
		emotions:  map[uuid.UUID]*types.EmotionScore{},
		mentbert:  map[uuid.UUID]*types.MentBERTScore{},
		psychbert: map[uuid.UUID]*types.PsychBERTScore{},
	}

	g, ctx := errgroup.WithContext(ctxutil.Default(dbc.Ctx))
	g.Go(func() error {
		turns, err := s.turnRepo.ListInRange(ctx, nil, userID, from)
		if err != nil {
			return fmt.Errorf("list turns: %w", err)
		}
		// Unscored drafts and blank prompts carry no signal.
		for _, t := range turns {
			if strings.TrimSpace(t.Prompt) == "" {
				continue
			}
			ds.turns = append(ds.turns, t)
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.scoreRepo.ListEmotionsByUserID(ctx, nil, userID)
		if err != nil {
			return fmt.Errorf("list emotion scores: %w", err)
		}
		for _, r := range rows {
			ds.emotions[r.TurnID] = r
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.scoreRepo.ListMentBERTByUserID(ctx, nil, userID)
		if err != nil {
			return fmt.Errorf("list mentbert scores: %w", err)
		}
		for _, r := range rows {
			ds.mentbert[r.TurnID] = r
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.scoreRepo.ListPsychBERTByUserID(ctx, nil, userID)
		if err != nil {
			return fmt.Errorf("list psychbert scores: %w", err)
		}
		for _, r := range rows {
			ds.psychbert[r.TurnID] = r
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ds, nil
}

// dominantLabel picks the argmax. Labels are walked in ascending order
// so ties resolve to the earlier label.
func dominantLabel(values map[string]float64) string {
	labels := make([]string, 0, len(values))
	for l := range values {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	best := ""
	bestVal := 0.0
	for _, l := range labels {
		if best == "" || values[l] > bestVal {
			best = l
			bestVal = values[l]
		}
	}
	return best
}

func emotionValues(s *types.EmotionScore) map[string]float64 {
	return map[string]float64{
		"neutral":  s.Neutral,
		"joy":      s.Joy,
		"disgust":  s.Disgust,
		"sadness":  s.Sadness,
		"anger":    s.Anger,
		"surprise": s.Surprise,
		"fear":     s.Fear,
	}
}

func mentbertValues(s *types.MentBERTScore) map[string]float64 {
	return map[string]float64{
		"borderline":    s.Borderline,
		"anxiety":       s.Anxiety,
		"depression":    s.Depression,
		"bipolar":       s.Bipolar,
		"ocd":           s.OCD,
		"adhd":          s.ADHD,
		"schizophrenia": s.Schizophrenia,
		"asperger":      s.Asperger,
		"ptsd":          s.PTSD,
	}
}

func psychbertValues(s *types.PsychBERTScore) map[string]float64 {
	return map[string]float64{
		"unrelated":        s.Unrelated,
		"mental_illnesses": s.MentalIllnesses,
		"anxiety":          s.Anxiety,
		"depression":       s.Depression,
		"social_anxiety":   s.SocialAnxiety,
		"loneliness":       s.Loneliness,
	}
}

// dominantByTurn maps each scored turn to its dominant label for the
// category.
func (ds *dataset) dominantByTurn(category string) (map[uuid.UUID]string, error) {
	out := map[uuid.UUID]string{}
	for _, t := range ds.turns {
		var values map[string]float64
		switch category {
		case ScoreCategoryEmotions:
			if row, ok := ds.emotions[t.ID]; ok {
				values = emotionValues(row)
			}
		case ScoreCategoryMentBERT:
			if row, ok := ds.mentbert[t.ID]; ok {
				values = mentbertValues(row)
			}
		case ScoreCategoryPsychBERT:
			if row, ok := ds.psychbert[t.ID]; ok {
				values = psychbertValues(row)
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		if values == nil {
			continue
		}
		out[t.ID] = dominantLabel(values)
	}
	return out, nil
}

func rankLabels(counts map[string]int, top int) []FrequencyPoint {
	points := make([]FrequencyPoint, 0, len(counts))
	for label, count := range counts {
		points = append(points, FrequencyPoint{Label: label, Count: count})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Count != points[j].Count {
			return points[i].Count > points[j].Count
		}
		return points[i].Label < points[j].Label
	})
	if top <= 0 {
		top = defaultTopLabels
	}
	if len(points) > top {
		points = points[:top]
	}
	return points
}

func (s *analyticsService) Summary(dbc dbctx.Context, period string) (*AnalyticsSummary, error) {
	ds, err := s.fetch(dbc, period)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = "max"
	}
	return &AnalyticsSummary{Period: period, Turns: len(ds.turns)}, nil
}

func (s *analyticsService) Frequency(dbc dbctx.Context, category string, period string, top int) ([]FrequencyPoint, error) {
	ds, err := s.fetch(dbc, period)
	if err != nil {
		return nil, err
	}
	dominant, err := ds.dominantByTurn(category)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, label := range dominant {
		counts[label]++
	}
	return rankLabels(counts, top), nil
}

func (s *analyticsService) Series(dbc dbctx.Context, category string, period string, top int) ([]SeriesPoint, error) {
	ds, err := s.fetch(dbc, period)
	if err != nil {
		return nil, err
	}
	dominant, err := ds.dominantByTurn(category)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, label := range dominant {
		counts[label]++
	}
	topLabels := map[string]bool{}
	for _, p := range rankLabels(counts, top) {
		topLabels[p.Label] = true
	}

	daily := map[string]map[string]int{}
	for _, t := range ds.turns {
		label, ok := dominant[t.ID]
		if !ok || !topLabels[label] {
			continue
		}
		day := t.PromptTimestamp.UTC().Format("2006-01-02")
		if daily[day] == nil {
			daily[day] = map[string]int{}
		}
		daily[day][label]++
	}

	var out []SeriesPoint
	for day, labels := range daily {
		for label, count := range labels {
			out = append(out, SeriesPoint{Date: day, Label: label, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}
