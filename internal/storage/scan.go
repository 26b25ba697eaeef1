package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rowbridge/internal/scan"

	"github.com/google/uuid"
)

// ScanStore implements persistence for scan jobs and run logs.
type ScanStore struct {
	db *DB
}

// NewScanStore creates a new ScanStore.
func NewScanStore(db *DB) *ScanStore {
	return &ScanStore{db: db}
}

// ── Job CRUD ───────────────────────────────────────────────

func (s *ScanStore) CreateJob(job *scan.Job) error {
	now := time.Now()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.UpdatedAt = now

	srcCfg, _ := json.Marshal(job.SourceCfg)

	_, err := s.db.conn.Exec(
		`INSERT INTO scan_jobs (id, name, source_type, source_config, recordkey_type,
		 mode, trigger_type, trigger_config, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.SourceType, string(srcCfg), job.RecordkeyType,
		job.Mode, job.TriggerType, job.TriggerConfig, job.Enabled,
		job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *ScanStore) GetJob(id string) (*scan.Job, error) {
	job := &scan.Job{}
	var srcCfg string

	err := s.db.conn.QueryRow(
		`SELECT id, name, source_type, source_config, recordkey_type,
		 mode, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM scan_jobs WHERE id = ?`, id,
	).Scan(
		&job.ID, &job.Name, &job.SourceType, &srcCfg, &job.RecordkeyType,
		&job.Mode, &job.TriggerType, &job.TriggerConfig, &job.Enabled,
		&job.LastRunAt, &job.LastStatus, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scan job not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(srcCfg), &job.SourceCfg)
	return job, nil
}

func (s *ScanStore) UpdateJob(job *scan.Job) error {
	job.UpdatedAt = time.Now()
	srcCfg, _ := json.Marshal(job.SourceCfg)

	_, err := s.db.conn.Exec(
		`UPDATE scan_jobs SET name=?, source_type=?, source_config=?, recordkey_type=?,
		 mode=?, trigger_type=?, trigger_config=?, enabled=?, updated_at=? WHERE id=?`,
		job.Name, job.SourceType, string(srcCfg), job.RecordkeyType,
		job.Mode, job.TriggerType, job.TriggerConfig, job.Enabled,
		job.UpdatedAt, job.ID,
	)
	return err
}

func (s *ScanStore) UpdateJobStatus(id, status, errMsg string) error {
	_, err := s.db.conn.Exec(
		`UPDATE scan_jobs SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		time.Now(), status, errMsg, time.Now(), id,
	)
	return err
}

func (s *ScanStore) DeleteJob(id string) error {
	// Delete run logs and results first.
	if _, err := s.db.conn.Exec(`DELETE FROM scan_run_logs WHERE job_id = ?`, id); err != nil {
		return err
	}
	if _, err := s.db.conn.Exec(`DELETE FROM scan_results WHERE job_id = ?`, id); err != nil {
		return err
	}
	if _, err := s.db.conn.Exec(`DELETE FROM scan_result_schemas WHERE job_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.conn.Exec(`DELETE FROM scan_jobs WHERE id = ?`, id)
	return err
}

func (s *ScanStore) ListJobs() ([]scan.Job, error) {
	return s.queryJobs(
		`SELECT id, name, source_type, source_config, recordkey_type,
		 mode, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM scan_jobs ORDER BY created_at ASC`,
	)
}

// ListEnabledTriggeredJobs returns jobs that are enabled with a schedule
// or file watch trigger.
func (s *ScanStore) ListEnabledTriggeredJobs() ([]scan.Job, error) {
	return s.queryJobs(
		`SELECT id, name, source_type, source_config, recordkey_type,
		 mode, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM scan_jobs WHERE enabled = 1 AND trigger_type IN ('schedule', 'file_watch')
		 ORDER BY created_at ASC`,
	)
}

func (s *ScanStore) queryJobs(query string) ([]scan.Job, error) {
	rows, err := s.db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []scan.Job
	for rows.Next() {
		var job scan.Job
		var srcCfg string
		if err := rows.Scan(
			&job.ID, &job.Name, &job.SourceType, &srcCfg, &job.RecordkeyType,
			&job.Mode, &job.TriggerType, &job.TriggerConfig, &job.Enabled,
			&job.LastRunAt, &job.LastStatus, &job.LastError,
			&job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(srcCfg), &job.SourceCfg)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ── Run Logs ───────────────────────────────────────────────

func (s *ScanStore) CreateRunLog(log *scan.ScanRunLog) error {
	log.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO scan_run_logs (id, job_id, started_at, finished_at, status, rows_read, rows_written, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobID, log.StartedAt, log.FinishedAt, log.Status, log.RowsRead, log.RowsWritten, log.Error,
	)
	return err
}

func (s *ScanStore) ListRunLogs(jobID string, limit int) ([]scan.ScanRunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, job_id, started_at, finished_at, status, rows_read, rows_written, error
		 FROM scan_run_logs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []scan.ScanRunLog
	for rows.Next() {
		var l scan.ScanRunLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.StartedAt, &l.FinishedAt, &l.Status, &l.RowsRead, &l.RowsWritten, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
