package storage

import (
	"database/sql"
	"fmt"

	"rowbridge/internal/scan"
)

// ResultStore persists scan output rows and schemas. It implements
// scan.ResultStore for the writer side and adds read access for the
// query surface.
type ResultStore struct {
	db *DB
}

// NewResultStore creates a new ResultStore.
func NewResultStore(db *DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) DeleteRowsByJob(jobID string) error {
	_, err := s.db.conn.Exec(`DELETE FROM scan_results WHERE job_id = ?`, jobID)
	return err
}

func (s *ResultStore) CreateRow(row *scan.ResultRow) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO scan_results (id, job_id, fields_json, position) VALUES (?, ?, ?, ?)`,
		row.ID, row.JobID, row.FieldsJSON, row.Position,
	)
	return err
}

func (s *ResultStore) SaveSchema(jobID string, schemaJSON string) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO scan_result_schemas (job_id, schema_json) VALUES (?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET schema_json = excluded.schema_json`,
		jobID, schemaJSON,
	)
	return err
}

// GetSchema returns the persisted schema JSON for a job.
func (s *ResultStore) GetSchema(jobID string) (string, error) {
	var schemaJSON string
	err := s.db.conn.QueryRow(
		`SELECT schema_json FROM scan_result_schemas WHERE job_id = ?`, jobID,
	).Scan(&schemaJSON)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no results for job: %s", jobID)
	}
	return schemaJSON, err
}

// ListRows returns up to limit persisted rows for a job, in scan order.
func (s *ResultStore) ListRows(jobID string, limit int) ([]scan.ResultRow, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, job_id, fields_json, position
		 FROM scan_results WHERE job_id = ? ORDER BY position ASC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scan.ResultRow
	for rows.Next() {
		var r scan.ResultRow
		if err := rows.Scan(&r.ID, &r.JobID, &r.FieldsJSON, &r.Position); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRows returns the number of persisted rows for a job.
func (s *ResultStore) CountRows(jobID string) (int, error) {
	var n int
	err := s.db.conn.QueryRow(
		`SELECT COUNT(*) FROM scan_results WHERE job_id = ?`, jobID,
	).Scan(&n)
	return n, err
}
