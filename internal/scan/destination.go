package scan

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"rowbridge/internal/record"
)

// ── Destination ────────────────────────────────────────────
// A Destination stores resolved rows for a job. The only built-in
// destination is the local result store.
//
// Pattern: Singer target protocol.

// ScanMode determines how rows are written to the destination.
type ScanMode string

const (
	ScanReplace ScanMode = "replace" // delete the job's existing rows, insert fresh
	ScanAppend  ScanMode = "append"  // add rows without deleting existing
)

// Destination persists the resolved rows of a scan.
type Destination interface {
	Write(ctx context.Context, jobID string, schema *record.Schema, rows [][]record.Field, mode ScanMode) (int, error)
}

// ── Result Store Destination ───────────────────────────────

// ResultRow is one persisted row of scan output.
type ResultRow struct {
	ID         string `json:"id"`
	JobID      string `json:"jobId"`
	FieldsJSON string `json:"fieldsJson"`
	Position   int    `json:"position"`
}

// ResultStore is the persistence surface the writer needs.
type ResultStore interface {
	DeleteRowsByJob(jobID string) error
	CreateRow(row *ResultRow) error
	SaveSchema(jobID string, schemaJSON string) error
}

// ResultWriter implements Destination on top of a ResultStore.
type ResultWriter struct {
	Store ResultStore
}

func (w *ResultWriter) Write(ctx context.Context, jobID string, schema *record.Schema, rows [][]record.Field, mode ScanMode) (int, error) {
	if mode == ScanReplace {
		if err := w.Store.DeleteRowsByJob(jobID); err != nil {
			return 0, fmt.Errorf("clear results: %w", err)
		}
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return 0, fmt.Errorf("marshal schema: %w", err)
	}
	if err := w.Store.SaveSchema(jobID, string(schemaJSON)); err != nil {
		return 0, fmt.Errorf("save schema: %w", err)
	}

	written := 0
	for i, fields := range rows {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		fieldsJSON, err := json.Marshal(fields)
		if err != nil {
			return written, fmt.Errorf("marshal row %d: %w", i, err)
		}
		row := &ResultRow{
			ID:         uuid.New().String(),
			JobID:      jobID,
			FieldsJSON: string(fieldsJSON),
			Position:   i + 1,
		}
		if err := w.Store.CreateRow(row); err != nil {
			return written, fmt.Errorf("create row %d: %w", i, err)
		}
		written++
	}
	return written, nil
}
