package store

import (
	"context"
	"fmt"
	"strings"
)

// schemaDDL is written once for both dialects; {{id}} and {{ts}} expand to
// the dialect's auto-increment key and timestamp types.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{id}},
		wa_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		native_lang TEXT NOT NULL DEFAULT 'es',
		target_lang TEXT NOT NULL DEFAULT 'en',
		level TEXT,
		is_premium BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		streak_days INTEGER NOT NULL DEFAULT 0,
		lessons_completed INTEGER NOT NULL DEFAULT 0,
		last_active_at {{ts}},
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS exercises (
		id {{id}},
		question TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		difficulty TEXT NOT NULL,
		exercise_type TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exercises_lookup
		ON exercises (source_lang, target_lang, difficulty, exercise_type)`,
	`CREATE TABLE IF NOT EXISTS user_progress (
		id {{id}},
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		exercise_id BIGINT NOT NULL REFERENCES exercises(id) ON DELETE CASCADE,
		is_correct BOOLEAN NOT NULL,
		user_answer TEXT NOT NULL DEFAULT '',
		response_time_ms BIGINT NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 1,
		error_type TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_progress_user ON user_progress (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS placement_issued (
		user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		questions TEXT NOT NULL,
		issued_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS curriculum_structure (
		id TEXT PRIMARY KEY,
		language_pair_id TEXT NOT NULL,
		level_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		exercise_type_id TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		generation_status TEXT NOT NULL DEFAULT 'pending',
		exercises_generated INTEGER NOT NULL DEFAULT 0,
		exercises_target INTEGER NOT NULL DEFAULT 10,
		last_generated {{ts}},
		priority INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_curriculum_status ON curriculum_structure (generation_status, priority)`,
	`CREATE TABLE IF NOT EXISTS exercise_schemas (
		id {{id}},
		exercise_type TEXT NOT NULL UNIQUE,
		field_theory_description TEXT NOT NULL DEFAULT '',
		field_introduction_description TEXT NOT NULL DEFAULT '',
		field_input_description TEXT NOT NULL DEFAULT '',
		field_output_description TEXT NOT NULL DEFAULT '',
		input_format TEXT NOT NULL DEFAULT '',
		output_format TEXT NOT NULL DEFAULT '',
		validation_rules TEXT NOT NULL DEFAULT '',
		example_theory TEXT NOT NULL DEFAULT '',
		example_introduction TEXT NOT NULL DEFAULT '',
		example_input TEXT NOT NULL DEFAULT '',
		example_output TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS generated_exercises (
		id {{id}},
		curriculum_id TEXT NOT NULL REFERENCES curriculum_structure(id) ON DELETE CASCADE,
		variation INTEGER NOT NULL,
		theory TEXT NOT NULL,
		exercise_introduction TEXT NOT NULL,
		exercise_input TEXT NOT NULL,
		expected_output TEXT NOT NULL,
		judge_score REAL NOT NULL DEFAULT 0,
		judge_result TEXT NOT NULL DEFAULT '',
		judge_feedback TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS content_generation_logs (
		id {{id}},
		run_id TEXT NOT NULL,
		curriculum_id TEXT NOT NULL,
		requested INTEGER NOT NULL DEFAULT 0,
		accepted INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at {{ts}} NOT NULL,
		finished_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id {{id}},
		timestamp {{ts}} NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms BIGINT NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
}

func (s *Store) ddlReplacer() *strings.Replacer {
	if s.dialect == DialectPostgres {
		return strings.NewReplacer("{{id}}", "BIGSERIAL PRIMARY KEY", "{{ts}}", "TIMESTAMPTZ")
	}
	return strings.NewReplacer("{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{ts}}", "TIMESTAMP")
}

func (s *Store) migrate(ctx context.Context) error {
	r := s.ddlReplacer()
	for _, stmt := range schemaDDL {
		if _, err := s.db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
