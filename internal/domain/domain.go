package domain

import (
	"github.com/mentalhealthai/mhai-backend/internal/domain/auth"
	"github.com/mentalhealthai/mhai-backend/internal/domain/diary"
	"github.com/mentalhealthai/mhai-backend/internal/domain/jobs"
	"github.com/mentalhealthai/mhai-backend/internal/domain/profile"
	"github.com/mentalhealthai/mhai-backend/internal/domain/user"
)

type User = user.User
type UserToken = auth.UserToken

type UserProfile = profile.UserProfile
type AIProfile = profile.AIProfile
type CriticalEvent = profile.CriticalEvent

type DiaryTurn = diary.Turn
type EmotionScore = diary.EmotionScore
type MentBERTScore = diary.MentBERTScore
type PsychBERTScore = diary.PsychBERTScore

type JobRun = jobs.JobRun
type JobRunEvent = jobs.JobRunEvent
