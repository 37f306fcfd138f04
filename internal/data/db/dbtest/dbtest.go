// Package dbtest opens throwaway sqlite databases for package tests.
// The schema is declared by hand because the production models carry
// postgres-only defaults that sqlite cannot parse.
package dbtest

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE "user" (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		password TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE UNIQUE INDEX idx_user_email ON "user"(email)`,
	`CREATE TABLE user_token (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		expires_at DATETIME,
		revoked_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE user_profile (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		age INTEGER NOT NULL DEFAULT 0,
		gender TEXT NOT NULL DEFAULT 'O',
		gender_custom TEXT DEFAULT '',
		interests TEXT DEFAULT '',
		emotional_profile TEXT DEFAULT '',
		bio_life TEXT DEFAULT '',
		bio_education TEXT DEFAULT '',
		bio_work TEXT DEFAULT '',
		bio_family TEXT DEFAULT '',
		bio_friends TEXT DEFAULT '',
		bio_pets TEXT DEFAULT '',
		bio_health TEXT DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE ai_profile (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		name TEXT DEFAULT '',
		age INTEGER NOT NULL DEFAULT 0,
		gender TEXT NOT NULL DEFAULT 'O',
		gender_custom TEXT DEFAULT '',
		interests TEXT DEFAULT '',
		emotions TEXT DEFAULT '',
		bio_life TEXT DEFAULT '',
		bio_education TEXT DEFAULT '',
		bio_work TEXT DEFAULT '',
		bio_family TEXT DEFAULT '',
		bio_friends TEXT DEFAULT '',
		bio_pets TEXT DEFAULT '',
		bio_health TEXT DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE critical_event (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		date DATETIME NOT NULL,
		description TEXT NOT NULL,
		impact TEXT DEFAULT '',
		resolved INTEGER NOT NULL DEFAULT 0,
		treated INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE diary_turn (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT DEFAULT '',
		prompt_timestamp DATETIME NOT NULL,
		response_timestamp DATETIME,
		status TEXT NOT NULL DEFAULT 'started',
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE emotion_score (
		id TEXT PRIMARY KEY,
		turn_id TEXT NOT NULL UNIQUE,
		neutral REAL NOT NULL DEFAULT 0,
		joy REAL NOT NULL DEFAULT 0,
		disgust REAL NOT NULL DEFAULT 0,
		sadness REAL NOT NULL DEFAULT 0,
		anger REAL NOT NULL DEFAULT 0,
		surprise REAL NOT NULL DEFAULT 0,
		fear REAL NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE mentbert_score (
		id TEXT PRIMARY KEY,
		turn_id TEXT NOT NULL UNIQUE,
		borderline REAL NOT NULL DEFAULT 0,
		anxiety REAL NOT NULL DEFAULT 0,
		depression REAL NOT NULL DEFAULT 0,
		bipolar REAL NOT NULL DEFAULT 0,
		ocd REAL NOT NULL DEFAULT 0,
		adhd REAL NOT NULL DEFAULT 0,
		schizophrenia REAL NOT NULL DEFAULT 0,
		asperger REAL NOT NULL DEFAULT 0,
		ptsd REAL NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE psychbert_score (
		id TEXT PRIMARY KEY,
		turn_id TEXT NOT NULL UNIQUE,
		unrelated REAL NOT NULL DEFAULT 0,
		mental_illnesses REAL NOT NULL DEFAULT 0,
		anxiety REAL NOT NULL DEFAULT 0,
		depression REAL NOT NULL DEFAULT 0,
		social_anxiety REAL NOT NULL DEFAULT 0,
		loneliness REAL NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE job_run (
		id TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL,
		job_type TEXT NOT NULL,
		entity_type TEXT DEFAULT '',
		entity_id TEXT,
		parent_job_id TEXT,
		status TEXT NOT NULL,
		stage TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		error TEXT DEFAULT '',
		locked_at DATETIME,
		heartbeat_at DATETIME,
		last_error_at DATETIME,
		run_after DATETIME,
		payload TEXT,
		result TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE job_run_event (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		owner_user_id TEXT NOT NULL,
		job_type TEXT NOT NULL,
		entity_type TEXT DEFAULT '',
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		stage TEXT NOT NULL,
		progress INTEGER NOT NULL,
		message TEXT DEFAULT '',
		data TEXT,
		created_at DATETIME,
		deleted_at DATETIME
	)`,
}

// Open returns a fresh file-backed database with the full schema. A
// file under t.TempDir() rather than :memory: so every pooled
// connection sees the same database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	// WAL keeps readers off the writer's lock; the short busy timeout
	// makes side-channel writes issued during an open transaction fail
	// quickly instead of stalling the test.
	path := filepath.Join(t.TempDir(), "test.db") + "?_journal_mode=WAL&_busy_timeout=100"
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := gdb.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return gdb
}
