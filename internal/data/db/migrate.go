package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/mentalhealthai/mhai-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// Identity + auth
		&types.User{},
		&types.UserToken{},

		// Profiles
		&types.UserProfile{},
		&types.AIProfile{},
		&types.CriticalEvent{},

		// Diary + scoring
		&types.DiaryTurn{},
		&types.EmotionScore{},
		&types.MentBERTScore{},
		&types.PsychBERTScore{},

		// Jobs / worker
		&types.JobRun{},
		&types.JobRunEvent{},
	)
}

func EnsureDiaryIndexes(db *gorm.DB) error {
	// Turn listing per user, newest first.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_diary_turn_user_prompt_ts
		ON diary_turn (user_id, prompt_timestamp DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_diary_turn_user_prompt_ts: %w", err)
	}
	// Worker claim scan.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_status_run_after
		ON job_run (status, run_after, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_status_run_after: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureDiaryIndexes(s.db); err != nil {
		s.log.Error("Index migration failed", "error", err)
		return err
	}
	return nil
}
