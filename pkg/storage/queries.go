package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dougsko/qamd/pkg/protocol"
)

// ErrJobNotFound is returned by GetJob for unknown IDs
var ErrJobNotFound = errors.New("job not found")

// JobQuery represents query parameters for retrieving jobs
type JobQuery struct {
	Limit  int
	Offset int
	Mode   string // protocol.ModeModulate, protocol.ModeDemodulate, or "" for both
	Status string
}

// JobStats summarizes the stored history
type JobStats struct {
	TotalJobs           int     `json:"total_jobs"`
	ModulateJobs        int     `json:"modulate_jobs"`
	DemodulateJobs      int     `json:"demodulate_jobs"`
	FailedJobs          int     `json:"failed_jobs"`
	TotalSymbols        int64   `json:"total_symbols"`
	AverageMatchPercent float64 `json:"average_match_percentage"`
}

const jobColumns = `
	id, timestamp, mode, source, bits_per_symbol, snr_db,
	input_bytes, symbols, output_bytes, compared, mismatches,
	match_percentage, duration_ms, status, error
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (protocol.Job, error) {
	var job protocol.Job
	var snr sql.NullFloat64

	err := row.Scan(
		&job.ID, &job.Timestamp, &job.Mode, &job.Source, &job.BitsPerSymbol, &snr,
		&job.InputBytes, &job.Symbols, &job.OutputBytes, &job.Compared, &job.Mismatches,
		&job.MatchPercentage, &job.DurationMS, &job.Status, &job.Error,
	)
	if err != nil {
		return job, err
	}
	if snr.Valid {
		v := snr.Float64
		job.SNRDB = &v
	}
	return job, nil
}

// GetJob retrieves a single job by ID
func (js *JobStore) GetJob(id int64) (protocol.Job, error) {
	row := js.db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return job, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	if err != nil {
		return job, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs retrieves jobs newest first
func (js *JobStore) ListJobs(query JobQuery) ([]protocol.Job, error) {
	var args []interface{}
	var conditions []string

	if query.Mode != "" {
		conditions = append(conditions, "mode = ?")
		args = append(args, query.Mode)
	}
	if query.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, query.Status)
	}

	sqlQuery := "SELECT " + jobColumns + " FROM jobs"
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	sqlQuery += " ORDER BY timestamp DESC, id DESC"

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	sqlQuery += " LIMIT ? OFFSET ?"
	args = append(args, limit, query.Offset)

	rows, err := js.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]protocol.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// Stats returns aggregate counts over the stored jobs
func (js *JobStore) Stats() (JobStats, error) {
	var stats JobStats
	var avg sql.NullFloat64

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN mode = 'modulate' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN mode = 'demodulate' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(symbols), 0),
			AVG(CASE WHEN compared THEN match_percentage END)
		FROM jobs
	`

	err := js.db.QueryRow(query).Scan(
		&stats.TotalJobs, &stats.ModulateJobs, &stats.DemodulateJobs,
		&stats.FailedJobs, &stats.TotalSymbols, &avg,
	)
	if err != nil {
		return stats, fmt.Errorf("failed to get job stats: %w", err)
	}
	if avg.Valid {
		stats.AverageMatchPercent = avg.Float64
	}
	return stats, nil
}
