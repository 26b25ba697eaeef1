package scan

import (
	"context"
	"fmt"
	"time"

	"rowbridge/internal/record"
	"rowbridge/internal/recordkey"
)

// ── Job ────────────────────────────────────────────────────
// Orchestrates: source.Read → field resolution → recordkey append →
// destination.Write.

// Job holds the configuration for a single scan.
type Job struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	SourceType    string       `json:"sourceType"`
	SourceCfg     SourceConfig `json:"sourceConfig"`
	RecordkeyType string       `json:"recordkeyType,omitempty"` // output type name; empty means no key column
	Mode          ScanMode     `json:"mode"`
	TriggerType   string       `json:"triggerType"`   // "manual" | "schedule" | "file_watch"
	TriggerConfig string       `json:"triggerConfig"` // cron expression or watch path
	Enabled       bool         `json:"enabled"`
	LastRunAt     time.Time    `json:"lastRunAt"`
	LastStatus    string       `json:"lastStatus"` // "success" | "error" | "running" | ""
	LastError     string       `json:"lastError"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// ScanResult is the outcome of running a scan job.
type ScanResult struct {
	JobID       string        `json:"jobId"`
	Status      string        `json:"status"` // "success" | "error"
	RowsRead    int           `json:"rowsRead"`
	RowsWritten int           `json:"rowsWritten"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// ScanRunLog is a historical record of a scan run.
type ScanRunLog struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	Error       string    `json:"error,omitempty"`
}

// ── Engine ─────────────────────────────────────────────────

// Engine runs scan jobs using the registered sources and a destination.
type Engine struct {
	Dest Destination
}

// RunScan executes a scan job end-to-end.
func (e *Engine) RunScan(ctx context.Context, job *Job) (*ScanResult, error) {
	start := time.Now()
	result := &ScanResult{JobID: job.ID}

	fail := func(err error) (*ScanResult, error) {
		result.Status = "error"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result, err
	}

	// 1. Resolve source from registry.
	source, err := GetSource(job.SourceType)
	if err != nil {
		return fail(err)
	}

	// 2. Discover the source's schema, then attach the recordkey column
	// if the job asked for one. The schema is fixed before the first row.
	schema, err := source.Discover(ctx, job.SourceCfg)
	if err != nil {
		return fail(fmt.Errorf("discover: %w", err))
	}
	if job.RecordkeyType != "" {
		t, ok := record.TypeFromName(job.RecordkeyType)
		if !ok {
			return fail(fmt.Errorf("unknown recordkey type: %q", job.RecordkeyType))
		}
		schema.Recordkey = &record.Column{Name: record.RecordkeyColumnName, Type: t}
	}

	// 3. Read rows from the source. The read is cancelled on the first
	// resolution failure so the source goroutine does not leak.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rowCh, errCh := source.Read(readCtx, job.SourceCfg)

	// 4. Resolve each row: typed column fields plus the recordkey field.
	// One adapter per scan; the key kind resolves on the first row.
	resolver := NewFieldResolver(schema)
	adapter := recordkey.NewAdapter()

	var rows [][]record.Field
	var rowErr error
	for row := range rowCh {
		result.RowsRead++
		fields := resolver.Resolve(row)
		if _, err := adapter.AppendRecordkeyField(&fields, schema, row.Key); err != nil {
			rowErr = fmt.Errorf("row %d: %w", result.RowsRead, err)
			cancel()
			for range rowCh {
			}
			break
		}
		rows = append(rows, fields)
	}
	if err := <-errCh; rowErr == nil && err != nil {
		rowErr = fmt.Errorf("read: %w", err)
	}
	if rowErr != nil {
		return fail(rowErr)
	}

	// 5. Write to destination.
	written, err := e.Dest.Write(ctx, job.ID, schema, rows, job.Mode)
	if err != nil {
		return fail(fmt.Errorf("write: %w", err))
	}

	result.Status = "success"
	result.RowsWritten = written
	result.Duration = time.Since(start)
	return result, nil
}

// Preview executes only the read phase and returns up to maxRows of
// resolved fields, without touching the destination. recordkeyType may
// be empty to preview without a key column.
func (e *Engine) Preview(ctx context.Context, sourceType string, cfg SourceConfig, recordkeyType string, maxRows int) ([][]record.Field, *record.Schema, error) {
	source, err := GetSource(sourceType)
	if err != nil {
		return nil, nil, err
	}

	schema, err := source.Discover(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("discover: %w", err)
	}
	if recordkeyType != "" {
		t, ok := record.TypeFromName(recordkeyType)
		if !ok {
			return nil, nil, fmt.Errorf("unknown recordkey type: %q", recordkeyType)
		}
		schema.Recordkey = &record.Column{Name: record.RecordkeyColumnName, Type: t}
	}

	rowCh, errCh := source.Read(ctx, cfg)

	resolver := NewFieldResolver(schema)
	adapter := recordkey.NewAdapter()

	var rows [][]record.Field
	for row := range rowCh {
		fields := resolver.Resolve(row)
		if _, err := adapter.AppendRecordkeyField(&fields, schema, row.Key); err != nil {
			go drainRows(rowCh)
			<-errCh
			return rows, schema, err
		}
		rows = append(rows, fields)
		if len(rows) >= maxRows {
			break
		}
	}

	// Drain remaining and check for errors.
	go drainRows(rowCh)
	if err := <-errCh; err != nil {
		return rows, schema, err
	}
	return rows, schema, nil
}

func drainRows(ch <-chan Row) {
	for range ch {
	}
}
