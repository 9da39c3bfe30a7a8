package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"vrp/internal/model"
)

// SQL stores runs and webhook deliveries in Postgres (pgx) or SQLite (modernc).
// Timestamps are unix nanoseconds and JSON blobs are TEXT so one schema serves both.
type SQL struct {
	db     *sql.DB
	driver string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	job_id         TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL,
	algorithm      TEXT NOT NULL,
	distance_unit  TEXT NOT NULL,
	vehicles       INTEGER NOT NULL,
	orders         INTEGER NOT NULL,
	total_distance DOUBLE PRECISION NOT NULL,
	duration_ms    BIGINT NOT NULL,
	statistics     TEXT NOT NULL DEFAULT '{}',
	created_ns     BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_algorithm_created ON runs (algorithm, created_ns);
CREATE TABLE IF NOT EXISTS webhook_deliveries (
	id              TEXT PRIMARY KEY,
	job_id          TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	url             TEXT NOT NULL,
	payload         TEXT NOT NULL,
	status          TEXT NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	next_attempt_ns BIGINT NOT NULL,
	last_error      TEXT NOT NULL DEFAULT '',
	response_code   INTEGER NOT NULL DEFAULT 0,
	latency_ms      INTEGER NOT NULL DEFAULT 0,
	dedup_key       TEXT NOT NULL,
	created_ns      BIGINT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS webhook_deliveries_dedup ON webhook_deliveries (event_type, url, dedup_key);
CREATE INDEX IF NOT EXISTS webhook_deliveries_due ON webhook_deliveries (status, next_attempt_ns);
`

// NewSQL opens dsn and creates the schema. postgres:// and postgresql:// DSNs use pgx;
// anything else is a SQLite path, optionally prefixed with "sqlite:" or "sqlite://".
func NewSQL(dsn string) (*SQL, error) {
	driver, conn := "sqlite", dsn
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driver = "pgx"
	case strings.HasPrefix(dsn, "sqlite://"):
		conn = strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "sqlite:"):
		conn = strings.TrimPrefix(dsn, "sqlite:")
	}
	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// one writer; also keeps a shared in-memory database alive
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s := &SQL{db: db, driver: driver}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var pgParam = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders to SQLite's ?N form.
func rebind(driver, q string) string {
	if driver != "sqlite" {
		return q
	}
	return pgParam.ReplaceAllString(q, "?$1")
}

func (s *SQL) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, rebind(s.driver, q), args...)
}

func (s *SQL) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, rebind(s.driver, q), args...)
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQL) Close() error                   { return s.db.Close() }

func (s *SQL) SaveRun(ctx context.Context, run model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	stats, err := json.Marshal(run.Statistics)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	_, err = s.exec(ctx, `INSERT INTO runs (id, job_id, source, algorithm, distance_unit, vehicles, orders, total_distance, duration_ms, statistics, created_ns)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		run.ID, run.JobID, run.Source, run.Algorithm, run.DistanceUnit, run.Vehicles, run.Orders, run.TotalDistance, run.DurationMs, string(stats), run.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

const runColumns = `id, job_id, source, algorithm, distance_unit, vehicles, orders, total_distance, duration_ms, statistics, created_ns`

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner) (model.Run, error) {
	var r model.Run
	var stats string
	var created int64
	if err := row.Scan(&r.ID, &r.JobID, &r.Source, &r.Algorithm, &r.DistanceUnit, &r.Vehicles, &r.Orders, &r.TotalDistance, &r.DurationMs, &stats, &created); err != nil {
		return model.Run{}, err
	}
	if stats != "" && stats != "null" {
		if err := json.Unmarshal([]byte(stats), &r.Statistics); err != nil {
			return model.Run{}, fmt.Errorf("decode statistics: %w", err)
		}
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	return r, nil
}

func (s *SQL) GetRun(ctx context.Context, id string) (model.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, rebind(s.driver, `SELECT `+runColumns+` FROM runs WHERE id=$1`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	return r, err
}

func (s *SQL) ListRuns(ctx context.Context, algorithm, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	q := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := []any{}
	if cursor != "" {
		c, err := parseRunCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		args = append(args, c.ns, c.id)
		q += ` AND (created_ns < $1 OR (created_ns = $1 AND id < $2))`
	}
	if algorithm != "" {
		args = append(args, algorithm)
		q += fmt.Sprintf(` AND algorithm=$%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_ns DESC, id DESC LIMIT $%d`, len(args))
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		last := out[len(out)-1]
		next = runCursor{ns: last.CreatedAt.UnixNano(), id: last.ID}.String()
	}
	return out, next, nil
}

func (s *SQL) LatestRuns(ctx context.Context) (map[string]model.Run, error) {
	rows, err := s.query(ctx, `SELECT `+runColumns+` FROM runs r
		WHERE created_ns = (SELECT MAX(created_ns) FROM runs WHERE algorithm = r.algorithm)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out[r.Algorithm] = r
	}
	return out, rows.Err()
}

func (s *SQL) EnqueueWebhook(ctx context.Context, jobID, eventType, url string, payload []byte) (string, error) {
	id := uuid.New().String()
	now := time.Now().UnixNano()
	dk := computeDedupKey(payload)
	res, err := s.exec(ctx, `INSERT INTO webhook_deliveries (id, job_id, event_type, url, payload, status, attempts, next_attempt_ns, dedup_key, created_ns)
		VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7,$6)
		ON CONFLICT (event_type, url, dedup_key) DO NOTHING`, id, jobID, eventType, url, string(payload), now, dk)
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", nil
	}
	return id, nil
}

const deliveryColumns = `id, job_id, event_type, url, payload, status, attempts, next_attempt_ns, last_error, response_code, latency_ms, created_ns`

func scanDelivery(row scanner) (WebhookDelivery, error) {
	var d WebhookDelivery
	var payload string
	var next, created int64
	if err := row.Scan(&d.ID, &d.JobID, &d.EventType, &d.URL, &payload, &d.Status, &d.Attempts, &next, &d.LastError, &d.ResponseCode, &d.LatencyMs, &created); err != nil {
		return WebhookDelivery{}, err
	}
	d.Payload = []byte(payload)
	d.NextAttemptAt = time.Unix(0, next).UTC()
	d.CreatedAt = time.Unix(0, created).UTC()
	return d, nil
}

func (s *SQL) deliveries(ctx context.Context, q string, args ...any) ([]WebhookDelivery, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQL) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	return s.deliveries(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE status IN ('pending','retry') AND next_attempt_ns <= $1 ORDER BY next_attempt_ns ASC LIMIT $2`, time.Now().UnixNano(), limit)
}

func (s *SQL) updated(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQL) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		return s.updated(s.exec(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', last_error='', response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs))
	}
	if nextAttemptAt == nil {
		t := time.Now().Add(1 * time.Minute)
		nextAttemptAt = &t
	}
	return s.updated(s.exec(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_ns=$3, response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, lastError, nextAttemptAt.UnixNano(), responseCode, latencyMs))
}

func (s *SQL) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	return s.updated(s.exec(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, lastError, responseCode, latencyMs))
}

func (s *SQL) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]WebhookDelivery, string, error) {
	limit = clampLimit(limit)
	q := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE 1=1`
	args := []any{}
	if cursor != "" {
		var one int
		err := s.db.QueryRowContext(ctx, rebind(s.driver, `SELECT 1 FROM webhook_deliveries WHERE id=$1`), cursor).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("%w: %q", ErrBadCursor, cursor)
		}
		if err != nil {
			return nil, "", err
		}
		args = append(args, cursor)
		q += fmt.Sprintf(` AND (created_ns, id) > (SELECT created_ns, id FROM webhook_deliveries WHERE id=$%d)`, len(args))
	}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_ns, id LIMIT $%d`, len(args))
	out, err := s.deliveries(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (s *SQL) RetryWebhookDelivery(ctx context.Context, id string) error {
	return s.updated(s.exec(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_ns=$2 WHERE id=$1`, id, time.Now().UnixNano()))
}
