// Package store persists interviews, responses, learned patterns and
// quality alerts in Postgres via a pgx pool. Schema management is done
// with embedded goose migrations at startup.
package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/candorlabs/vox/pkg/core"
	"github.com/candorlabs/vox/pkg/core/analysis"
	"github.com/candorlabs/vox/pkg/core/interview"
	"github.com/candorlabs/vox/pkg/core/quality"
	"github.com/candorlabs/vox/pkg/core/session"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the Postgres persistence layer. It implements
// interview.Persister.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects a pool and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, core.NewPersistenceFailure("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.NewPersistenceFailure("ping", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return core.NewPersistenceFailure("migrate", err)
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return core.NewPersistenceFailure("migrate", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// CreateInterview inserts a scheduled interview row.
func (s *Store) CreateInterview(ctx context.Context, iv interview.Interview) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO interviews (id, guide_id, respondent, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)`,
		iv.ID, iv.GuideID, iv.Respondent, string(iv.Status), nullTime(iv.ScheduledAt))
	if err != nil {
		return core.NewPersistenceFailure("create interview", err)
	}
	return nil
}

// UpdateInterview updates an interview's lifecycle fields.
func (s *Store) UpdateInterview(ctx context.Context, iv interview.Interview) error {
	engagement, err := json.Marshal(iv.Engagement)
	if err != nil {
		return core.NewPersistenceFailure("encode engagement", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE interviews
		SET status = $2, started_at = $3, completed_at = $4,
		    failure_reason = $5, engagement = $6
		WHERE id = $1`,
		iv.ID, string(iv.Status), nullTime(iv.StartedAt), nullTime(iv.CompletedAt),
		iv.FailureReason, engagement)
	if err != nil {
		return core.NewPersistenceFailure("update interview", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.Error{Type: core.ErrNotFound, Message: "interview not found: " + iv.ID}
	}
	return nil
}

// GetInterview loads one interview row.
func (s *Store) GetInterview(ctx context.Context, id string) (interview.Interview, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, guide_id, respondent, status, scheduled_at, started_at,
		       completed_at, failure_reason, engagement
		FROM interviews WHERE id = $1`, id)
	iv, err := scanInterview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return interview.Interview{}, &core.Error{Type: core.ErrNotFound, Message: "interview not found: " + id}
	}
	if err != nil {
		return interview.Interview{}, core.NewPersistenceFailure("get interview", err)
	}
	return iv, nil
}

// SaveResponses stores a session's full response history in one batch.
func (s *Store) SaveResponses(ctx context.Context, interviewID string, responses []analysis.Response) error {
	if len(responses) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range responses {
		a, err := json.Marshal(r.Analysis)
		if err != nil {
			return core.NewPersistenceFailure("encode analysis", err)
		}
		batch.Queue(`
			INSERT INTO responses (interview_id, question_id, question, answer,
				is_follow_up, parent_question_id, stt_confidence, unintelligible,
				analysis, asked_at, answered_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			interviewID, r.QuestionID, r.Question, r.Text,
			r.IsFollowUp, r.ParentQuestionID, r.STTConfidence, r.Unintelligible,
			a, nullTime(r.AskedAt), nullTime(r.AnsweredAt))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return core.NewPersistenceFailure("save responses", err)
	}
	return nil
}

// DueInterviews returns scheduled interviews whose start time has
// passed, oldest first.
func (s *Store) DueInterviews(ctx context.Context, now time.Time, limit int) ([]interview.Interview, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, guide_id, respondent, status, scheduled_at, started_at,
		       completed_at, failure_reason, engagement
		FROM interviews
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3`,
		string(session.StatusScheduled), now, limit)
	if err != nil {
		return nil, core.NewPersistenceFailure("due interviews", err)
	}
	defer rows.Close()

	var out []interview.Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, core.NewPersistenceFailure("scan interview", err)
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewPersistenceFailure("due interviews", err)
	}
	return out, nil
}

// SavePatterns upserts the learning store snapshot. The table holds a
// single row; snapshot merge semantics live in the learning package.
func (s *Store) SavePatterns(ctx context.Context, snapshot []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO learned_patterns (id, snapshot, exported_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET snapshot = $1, exported_at = now()`,
		snapshot)
	if err != nil {
		return core.NewPersistenceFailure("save patterns", err)
	}
	return nil
}

// LoadPatterns returns the stored snapshot, or nil when none exists.
func (s *Store) LoadPatterns(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT snapshot FROM learned_patterns WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewPersistenceFailure("load patterns", err)
	}
	return data, nil
}

// SaveAlert stores one raised quality alert for audit.
func (s *Store) SaveAlert(ctx context.Context, a quality.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quality_alerts (id, interview_id, metric, severity, value,
			threshold, raised_at, acked_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET acked_at = $8, resolved_at = $9`,
		a.ID, a.SessionID, string(a.Metric), a.Severity.String(), a.Value,
		a.Threshold, a.RaisedAt, nullTime(a.AckedAt), nullTime(a.ResolvedAt))
	if err != nil {
		return core.NewPersistenceFailure("save alert", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner) (interview.Interview, error) {
	var iv interview.Interview
	var status string
	var scheduledAt, startedAt, completedAt *time.Time
	var engagement []byte
	err := row.Scan(&iv.ID, &iv.GuideID, &iv.Respondent, &status,
		&scheduledAt, &startedAt, &completedAt, &iv.FailureReason, &engagement)
	if err != nil {
		return interview.Interview{}, err
	}
	iv.Status = session.Status(status)
	iv.ScheduledAt = deref(scheduledAt)
	iv.StartedAt = deref(startedAt)
	iv.CompletedAt = deref(completedAt)
	if len(engagement) > 0 {
		if err := json.Unmarshal(engagement, &iv.Engagement); err != nil {
			return interview.Interview{}, err
		}
	}
	return iv, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
