package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/safeart/postercheck/internal/job"
)

// Postgres is the production Store backed by the jobs table.
type Postgres struct {
	db     *sqlx.DB
	table  string
	logger *slog.Logger
}

// NewPostgres creates a Postgres store over the given table.
func NewPostgres(db *sqlx.DB, table string, logger *slog.Logger) *Postgres {
	if table == "" {
		table = "jobs"
	}
	return &Postgres{db: db, table: table, logger: logger}
}

type jobRow struct {
	JobID                string         `db:"job_id"`
	RequestID            sql.NullString `db:"request_id"`
	PosterHash           string         `db:"poster_hash"`
	Platform             string         `db:"platform"`
	SourceURL            string         `db:"source_url"`
	PageURL              sql.NullString `db:"page_url"`
	DiscoveredAt         time.Time      `db:"discovered_at"`
	Metadata             []byte         `db:"metadata"`
	Status               string         `db:"status"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
	StartedAt            sql.NullTime   `db:"started_at"`
	CompletedAt          sql.NullTime   `db:"completed_at"`
	Bucket               string         `db:"bucket"`
	ObjectKey            string         `db:"object_key"`
	Result               []byte         `db:"result"`
	ErrorCode            sql.NullString `db:"error_code"`
	ErrorMessage         sql.NullString `db:"error_message"`
	CachedFromJobID      sql.NullString `db:"cached_from_job_id"`
	RetryCount           int            `db:"retry_count"`
	ProcessingDurationMs int64          `db:"processing_duration_ms"`
}

const jobColumns = `
	job_id, request_id, poster_hash, platform, source_url, page_url,
	discovered_at, metadata, status, created_at, updated_at, started_at,
	completed_at, bucket, object_key, result, error_code, error_message,
	cached_from_job_id, retry_count, processing_duration_ms`

func (r *jobRow) toJob() (*job.Job, error) {
	j := &job.Job{
		JobID:      r.JobID,
		RequestID:  r.RequestID.String,
		PosterHash: r.PosterHash,
		Source: job.Source{
			Platform:     job.Platform(r.Platform),
			URL:          r.SourceURL,
			PageURL:      r.PageURL.String,
			DiscoveredAt: r.DiscoveredAt,
		},
		Status:    job.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Storage:   job.StorageRef{Bucket: r.Bucket, Key: r.ObjectKey},
		Cache: job.CacheInfo{
			PosterHash:      r.PosterHash,
			CachedFromJobID: r.CachedFromJobID.String,
		},
		RetryCount:           r.RetryCount,
		ProcessingDurationMs: r.ProcessingDurationMs,
	}

	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &j.Metadata); err != nil {
			return nil, fmt.Errorf("decode job metadata: %w", err)
		}
	}
	if len(r.Result) > 0 {
		j.Result = &job.Verdict{}
		if err := json.Unmarshal(r.Result, j.Result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		j.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		j.CompletedAt = &t
	}
	if r.ErrorCode.Valid || r.ErrorMessage.Valid {
		j.Error = &job.ErrorDetail{Code: r.ErrorCode.String, Message: r.ErrorMessage.String}
	}
	return j, nil
}

// Create inserts the job record. ON CONFLICT DO NOTHING makes the insert
// conditional on absence, so the first writer wins and everyone else gets
// job.ErrAlreadyExists.
func (s *Postgres) Create(ctx context.Context, j *job.Job) error {
	metadata, err := json.Marshal(j.Metadata)
	if err != nil {
		return fmt.Errorf("encode job metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			job_id, request_id, poster_hash, platform, source_url, page_url,
			discovered_at, metadata, status, created_at, updated_at,
			bucket, object_key, retry_count, processing_duration_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, 0, 0
		)
		ON CONFLICT (job_id) DO NOTHING
	`, s.table)

	res, err := s.db.ExecContext(ctx, query,
		j.JobID,
		nullString(j.RequestID),
		j.PosterHash,
		string(j.Source.Platform),
		j.Source.URL,
		nullString(j.Source.PageURL),
		j.Source.DiscoveredAt,
		metadata,
		string(j.Status),
		j.CreatedAt,
		j.UpdatedAt,
		j.Storage.Bucket,
		j.Storage.Key,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create job: rows affected: %w", err)
	}
	if rows == 0 {
		return job.ErrAlreadyExists
	}

	s.logger.Info("Job record created",
		slog.String("job_id", j.JobID),
		slog.String("poster_hash", j.PosterHash),
	)
	return nil
}

// Get retrieves a job by its ID.
func (s *Postgres) Get(ctx context.Context, jobID string) (*job.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE job_id = $1`, jobColumns, s.table)

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, job.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return row.toJob()
}

// FindByFingerprint returns the most recently created job for a hash.
func (s *Postgres) FindByFingerprint(ctx context.Context, posterHash string) (*job.Job, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE poster_hash = $1
		ORDER BY created_at DESC, job_id DESC
		LIMIT 1
	`, jobColumns, s.table)

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, posterHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, job.ErrNotFound
		}
		return nil, fmt.Errorf("find job by fingerprint: %w", err)
	}
	return row.toJob()
}

// UpdateStatus applies a transition as a compare-and-set on the current
// status. Zero rows affected means either the record is missing or its
// current status is not a legal source; a follow-up read tells them apart.
func (s *Postgres) UpdateStatus(ctx context.Context, jobID string, to job.Status, up Update) error {
	sources := job.TransitionSources(to)
	if len(sources) == 0 {
		return fmt.Errorf("transition to %s: %w", to, job.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	set := []string{"status = $1", "updated_at = $2"}
	args := []any{string(to), now}
	idx := 3

	appendSet := func(col string, v any) {
		set = append(set, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, v)
		idx++
	}

	if up.StartedAt != nil {
		appendSet("started_at", *up.StartedAt)
	}
	if up.CompletedAt != nil {
		appendSet("completed_at", *up.CompletedAt)
	}
	if up.Result != nil {
		result, err := json.Marshal(up.Result)
		if err != nil {
			return fmt.Errorf("encode job result: %w", err)
		}
		appendSet("result", result)
	}
	if up.Error != nil {
		appendSet("error_code", up.Error.Code)
		appendSet("error_message", up.Error.Message)
	}
	if up.ProcessingDurationMs != nil {
		appendSet("processing_duration_ms", *up.ProcessingDurationMs)
	}
	if up.RetryCount != nil {
		appendSet("retry_count", *up.RetryCount)
	}

	sourceStrs := make([]string, len(sources))
	for i, src := range sources {
		sourceStrs[i] = string(src)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s
		WHERE job_id = $%d AND status = ANY($%d)
	`, s.table, joinSet(set), idx, idx+1)
	args = append(args, jobID, pq.Array(sourceStrs))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job status: rows affected: %w", err)
	}
	if rows == 0 {
		var current string
		err := s.db.GetContext(ctx, &current,
			fmt.Sprintf(`SELECT status FROM %s WHERE job_id = $1`, s.table), jobID)
		if errors.Is(err, sql.ErrNoRows) {
			return job.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update job status: read current: %w", err)
		}
		s.logger.Warn("Rejected illegal status transition",
			slog.String("job_id", jobID),
			slog.String("current", current),
			slog.String("requested", string(to)),
		)
		return fmt.Errorf("transition %s -> %s: %w", current, to, job.ErrInvalidTransition)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(to)),
	)
	return nil
}

// List returns jobs matching the filter with cursor pagination.
func (s *Postgres) List(ctx context.Context, f Filter) ([]job.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE 1=1`, jobColumns, s.table)
	args := []any{}
	idx := 1

	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, string(f.Status))
		idx++
	}
	if f.Platform != "" {
		query += fmt.Sprintf(" AND platform = $%d", idx)
		args = append(args, string(f.Platform))
		idx++
	}
	if f.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", idx, idx+1)
		args = append(args, f.Cursor.CreatedAt, f.Cursor.JobID)
		idx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", idx)
	args = append(args, f.PageSize+1)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]job.Job, 0, len(rows))
	for i := range rows {
		j, err := rows[i].toJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func joinSet(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
