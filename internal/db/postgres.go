package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/reporting"
)

const schema = `
CREATE TABLE IF NOT EXISTS aspect_summaries (
	run_id        TEXT        NOT NULL,
	batch_id      TEXT        NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	position      INT         NOT NULL,
	aspect        TEXT        NOT NULL,
	mention_count INT         NOT NULL,
	priority      TEXT        NOT NULL,
	positive      INT         NOT NULL,
	neutral       INT         NOT NULL,
	negative      INT         NOT NULL,
	PRIMARY KEY (run_id, aspect)
);
CREATE INDEX IF NOT EXISTS aspect_summaries_created_at_idx ON aspect_summaries (created_at);
CREATE INDEX IF NOT EXISTS aspect_summaries_aspect_idx ON aspect_summaries (aspect, created_at DESC);
CREATE TABLE IF NOT EXISTS analysis_runs (
	run_id       TEXT        PRIMARY KEY,
	batch_id     TEXT        NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	status       TEXT        NOT NULL,
	item_count   INT         NOT NULL,
	aspect_count INT         NOT NULL
);
CREATE INDEX IF NOT EXISTS analysis_runs_created_at_idx ON analysis_runs (created_at);
INSERT INTO analysis_runs (run_id, batch_id, created_at, status, item_count, aspect_count)
	SELECT run_id, MIN(batch_id), MIN(created_at), '', 0, COUNT(*) FROM aspect_summaries GROUP BY run_id
	ON CONFLICT (run_id) DO NOTHING;
`

const runColumns = `run_id, batch_id, created_at, status, item_count, aspect_count`

const selectColumns = `run_id, batch_id, created_at, position, aspect, mention_count, priority, positive, neutral, negative`

// PgxIface is satisfied by *pgxpool.Pool and pgx.Tx.
type PgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresHistory stores one analysis_runs marker and one row per aspect
// per run. Rows are never updated.
type PostgresHistory struct {
	db PgxIface
}

var _ reporting.HistoryStore = (*PostgresHistory)(nil)

func NewPostgresHistory(db PgxIface) *PostgresHistory {
	return &PostgresHistory{db: db}
}

func (p *PostgresHistory) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("[DB] failed to migrate: %w", err)
	}
	slog.Info("[DB] Schema ready")
	return nil
}

// SaveRun writes the marker and the aspect rows in one transaction;
// replays of the same run are ignored.
func (p *PostgresHistory) SaveRun(ctx context.Context, run models.AnalysisRun) error {
	marker, ok := reporting.Marker(run)
	if !ok {
		return nil
	}
	records := reporting.Records(run)

	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertRunQuery,
			marker.RunID, marker.BatchID, marker.CreatedAt, string(marker.Status), marker.ItemCount, marker.AspectCount); err != nil {
			return fmt.Errorf("[DB] failed to insert run marker: %w", err)
		}
		return saveRecords(ctx, tx, records)
	})
	if err != nil {
		return err
	}

	slog.Info("[DB] Stored analysis run",
		slog.String("run_id", run.RunID),
		slog.Int("aspects", len(records)))
	return nil
}

const insertRunQuery = `INSERT INTO analysis_runs (` + runColumns + `) VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (run_id) DO NOTHING`

// SaveRecords batch inserts rows outside a transaction.
func (p *PostgresHistory) SaveRecords(ctx context.Context, records []models.AspectRecord) error {
	return saveRecords(ctx, p.db, records)
}

func saveRecords(ctx context.Context, db execer, records []models.AspectRecord) error {
	if len(records) == 0 {
		return nil
	}

	query, values := insertQuery(records)
	if _, err := db.Exec(ctx, query, values...); err != nil {
		return fmt.Errorf("[DB] failed to insert aspect summaries: %w", err)
	}
	return nil
}

func insertQuery(records []models.AspectRecord) (string, []any) {
	const cols = 10
	values := make([]any, 0, len(records)*cols)
	placeholderParts := make([]string, 0, len(records))

	for i, r := range records {
		offset := i * cols
		ph := make([]string, cols)
		for c := range ph {
			ph[c] = fmt.Sprintf("$%d", offset+c+1)
		}
		placeholderParts = append(placeholderParts, "("+strings.Join(ph, ", ")+")")

		values = append(values,
			r.RunID, r.BatchID, r.CreatedAt, r.Order, r.Aspect, r.MentionCount, string(r.Priority),
			r.SentimentBreakdown.Positive, r.SentimentBreakdown.Neutral, r.SentimentBreakdown.Negative)
	}

	query := `INSERT INTO aspect_summaries (` + selectColumns + `) VALUES ` +
		strings.Join(placeholderParts, ", ") +
		` ON CONFLICT (run_id, aspect) DO NOTHING`
	return query, values
}

func (p *PostgresHistory) RunsSince(ctx context.Context, since time.Time) ([]models.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs
        WHERE created_at >= $1
        ORDER BY created_at, run_id`

	rows, err := p.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("[DB] failed to query analysis runs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RunRecord, error) {
		var r models.RunRecord
		var status string
		err := row.Scan(&r.RunID, &r.BatchID, &r.CreatedAt, &status, &r.ItemCount, &r.AspectCount)
		r.Status = models.RunStatus(status)
		return r, err
	})
}

func (p *PostgresHistory) AspectRecordsSince(ctx context.Context, since time.Time) ([]models.AspectRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM aspect_summaries
        WHERE created_at >= $1
        ORDER BY created_at, run_id, position`

	rows, err := p.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("[DB] failed to query aspect summaries: %w", err)
	}
	return collectRecords(rows)
}

func (p *PostgresHistory) AspectHistory(ctx context.Context, aspect string, limit int) ([]models.AspectRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM aspect_summaries
        WHERE ($1 = '' OR aspect = $1)
        ORDER BY created_at DESC, run_id, position
        LIMIT $2`

	rows, err := p.db.Query(ctx, query, aspect, limit)
	if err != nil {
		return nil, fmt.Errorf("[DB] failed to query aspect history: %w", err)
	}
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]models.AspectRecord, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AspectRecord, error) {
		var r models.AspectRecord
		var priority string
		err := row.Scan(&r.RunID, &r.BatchID, &r.CreatedAt, &r.Order, &r.Aspect, &r.MentionCount, &priority,
			&r.SentimentBreakdown.Positive, &r.SentimentBreakdown.Neutral, &r.SentimentBreakdown.Negative)
		if err != nil {
			return r, err
		}
		r.Priority, err = models.ParsePriority(priority)
		return r, err
	})
}
