package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) CreateJob(ctx context.Context, j *Job) error {
	if j.StartedAt.IsZero() {
		j.StartedAt = time.Now()
	}
	if j.Status == "" {
		j.Status = JobRunning
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs(id, input_path, output_path, status, started_at) VALUES (?,?,?,?,?)`,
		j.ID, j.InputPath, j.OutputPath, string(j.Status), j.StartedAt.UnixMilli(),
	)
	return err
}

// FinishJob records the final state of a job.
func (r *Repo) FinishJob(ctx context.Context, j *Job) error {
	if j.FinishedAt.IsZero() {
		j.FinishedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET
		  status=?,
		  input_samples=?,
		  output_samples=?,
		  packets=?,
		  duration_ms=?,
		  error=?,
		  finished_at=?
		WHERE id=?`,
		string(j.Status), j.InputSamples, j.OutputSamples, j.Packets,
		j.Duration.Milliseconds(), j.Error, j.FinishedAt.UnixMilli(), j.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const jobColumns = `id, input_path, output_path, status, input_samples, output_samples,
	packets, duration_ms, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var status string
	var durMs, started int64
	var finished sql.NullInt64
	if err := row.Scan(
		&j.ID, &j.InputPath, &j.OutputPath, &status, &j.InputSamples, &j.OutputSamples,
		&j.Packets, &durMs, &j.Error, &started, &finished,
	); err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	j.Duration = time.Duration(durMs) * time.Millisecond
	j.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		j.FinishedAt = time.UnixMilli(finished.Int64)
	}
	return &j, nil
}

func (r *Repo) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return j, nil
}

// ListJobs returns the most recently started jobs first.
func (r *Repo) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY started_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (r *Repo) CacheTouch(ctx context.Context, hash string, size int64, created bool) error {
	now := time.Now().UnixNano()
	if created {
		_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO file_cache(hash,bytes,accessed_at,created_at) VALUES (?,?,?,COALESCE((SELECT created_at FROM file_cache WHERE hash=?),?))`,
			hash, size, now, hash, now)
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE file_cache SET accessed_at=? WHERE hash=?`, now, hash)
	return err
}

func (r *Repo) CacheRemove(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM file_cache WHERE hash=?`, hash)
	return err
}

func (r *Repo) CacheTotalBytes(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(bytes),0) FROM file_cache`)
	var v int64
	if err := row.Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (r *Repo) CacheOldest(ctx context.Context) (string, error) {
	row := r.db.QueryRowContext(ctx, `SELECT hash FROM file_cache ORDER BY accessed_at ASC LIMIT 1`)
	var hash string
	if err := row.Scan(&hash); err != nil {
		return "", err
	}
	return hash, nil
}
