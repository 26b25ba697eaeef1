package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"rowbridge/internal/record"
	"rowbridge/internal/scan"
	"rowbridge/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Scan Service — business logic for scan jobs
// ─────────────────────────────────────────────────────────────

// ScanService manages scan jobs, scheduling, and file watching.
// It is decoupled from the server surface via the EventEmitter interface.
type ScanService struct {
	store       *storage.ScanStore
	results     *storage.ResultStore
	emitter     EventEmitter
	runningJobs runningJobsGuard

	// watcher / cron lifecycle
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewScanService creates a ScanService ready for use.
func NewScanService(
	store *storage.ScanStore,
	results *storage.ResultStore,
	emitter EventEmitter,
) *ScanService {
	return &ScanService{
		store:   store,
		results: results,
		emitter: emitter,
	}
}

// ── Job CRUD ───────────────────────────────────────────────

type CreateScanJobInput struct {
	Name          string         `json:"name"`
	SourceType    string         `json:"sourceType"`
	SourceConfig  map[string]any `json:"sourceConfig"`
	RecordkeyType string         `json:"recordkeyType"`
	Mode          string         `json:"mode"`
	TriggerType   string         `json:"triggerType"`
	TriggerConfig string         `json:"triggerConfig"`
	Enabled       bool           `json:"enabled"`
}

func (s *ScanService) CreateJob(ctx context.Context, input CreateScanJobInput) (*scan.Job, error) {
	if _, err := scan.GetSource(input.SourceType); err != nil {
		return nil, err
	}
	if input.RecordkeyType != "" {
		if _, ok := record.TypeFromName(input.RecordkeyType); !ok {
			return nil, fmt.Errorf("unknown recordkey type: %q", input.RecordkeyType)
		}
	}

	job := &scan.Job{
		Name:          input.Name,
		SourceType:    input.SourceType,
		SourceCfg:     input.SourceConfig,
		RecordkeyType: input.RecordkeyType,
		Mode:          scan.ScanMode(input.Mode),
		TriggerType:   input.TriggerType,
		TriggerConfig: input.TriggerConfig,
		Enabled:       input.Enabled,
	}
	if job.Mode == "" {
		job.Mode = scan.ScanReplace
	}
	if job.TriggerType == "" {
		job.TriggerType = "manual"
	}

	if err := s.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create scan job: %w", err)
	}
	s.RestartTriggers(ctx)
	return job, nil
}

func (s *ScanService) GetJob(id string) (*scan.Job, error) {
	return s.store.GetJob(id)
}

func (s *ScanService) ListJobs() ([]scan.Job, error) {
	return s.store.ListJobs()
}

func (s *ScanService) UpdateJob(ctx context.Context, id string, input CreateScanJobInput) error {
	job, err := s.store.GetJob(id)
	if err != nil {
		return err
	}
	if input.RecordkeyType != "" {
		if _, ok := record.TypeFromName(input.RecordkeyType); !ok {
			return fmt.Errorf("unknown recordkey type: %q", input.RecordkeyType)
		}
	}
	job.Name = input.Name
	job.SourceType = input.SourceType
	job.SourceCfg = input.SourceConfig
	job.RecordkeyType = input.RecordkeyType
	job.Mode = scan.ScanMode(input.Mode)
	job.TriggerType = input.TriggerType
	job.TriggerConfig = input.TriggerConfig
	job.Enabled = input.Enabled

	if err := s.store.UpdateJob(job); err != nil {
		return err
	}
	s.RestartTriggers(ctx)
	return nil
}

func (s *ScanService) DeleteJob(ctx context.Context, id string) error {
	err := s.store.DeleteJob(id)
	if err == nil {
		s.RestartTriggers(ctx)
	}
	return err
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes a single scan job synchronously and emits events on success.
func (s *ScanService) RunJob(ctx context.Context, id string) (*scan.ScanResult, error) {
	// Prevent concurrent execution of the same job.
	if !s.runningJobs.TryLock(id) {
		return nil, fmt.Errorf("job %s is already running", id)
	}
	defer s.runningJobs.Unlock(id)

	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}

	s.store.UpdateJobStatus(id, "running", "")

	engine := &scan.Engine{
		Dest: &scan.ResultWriter{Store: s.results},
	}

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	result, runErr := engine.RunScan(runCtx, job)

	runLog := &scan.ScanRunLog{
		JobID:       id,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Status:      result.Status,
		RowsRead:    result.RowsRead,
		RowsWritten: result.RowsWritten,
	}
	if runErr != nil {
		runLog.Error = runErr.Error()
	}
	s.store.CreateRunLog(runLog)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	s.store.UpdateJobStatus(id, result.Status, errMsg)

	if result.Status == "success" {
		s.emitter.Emit(ctx, "scan:completed", map[string]string{"jobId": id})
	}

	return result, runErr
}

// ListSources returns the available source descriptors.
func (s *ScanService) ListSources() []scan.SourceSpec {
	return scan.ListSources()
}

// ListRunLogs returns the last 50 run logs for a job.
func (s *ScanService) ListRunLogs(jobID string) ([]scan.ScanRunLog, error) {
	return s.store.ListRunLogs(jobID, 50)
}

// GetResults returns up to limit persisted result rows and the schema
// they were resolved against.
func (s *ScanService) GetResults(jobID string, limit int) (*ResultsPage, error) {
	schemaJSON, err := s.results.GetSchema(jobID)
	if err != nil {
		return nil, err
	}
	var schema record.Schema
	if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		return nil, fmt.Errorf("parse stored schema: %w", err)
	}

	rows, err := s.results.ListRows(jobID, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.results.CountRows(jobID)
	if err != nil {
		return nil, err
	}

	page := &ResultsPage{Schema: &schema, TotalRows: total}
	for _, r := range rows {
		var fields []record.Field
		if err := json.Unmarshal([]byte(r.FieldsJSON), &fields); err != nil {
			return nil, fmt.Errorf("parse row %d: %w", r.Position, err)
		}
		page.Rows = append(page.Rows, fields)
	}
	return page, nil
}

// ResultsPage is the response from GetResults.
type ResultsPage struct {
	Schema    *record.Schema   `json:"schema"`
	Rows      [][]record.Field `json:"rows"`
	TotalRows int              `json:"totalRows"`
}

// ── Preview / Schema Discovery ─────────────────────────────

func (s *ScanService) PreviewSource(ctx context.Context, sourceType, recordkeyType string, cfgJSON string) (*PreviewResult, error) {
	var cfg scan.SourceConfig
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, fmt.Errorf("parse source config: %w", err)
	}

	engine := &scan.Engine{
		Dest: &scan.ResultWriter{Store: s.results},
	}

	previewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, schema, err := engine.Preview(previewCtx, sourceType, cfg, recordkeyType, 10)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Schema: schema, Rows: rows}, nil
}

// PreviewResult is the response from PreviewSource.
type PreviewResult struct {
	Schema *record.Schema   `json:"schema"`
	Rows   [][]record.Field `json:"rows"`
}

func (s *ScanService) DiscoverSchema(ctx context.Context, sourceType string, cfgJSON string) (*record.Schema, error) {
	var cfg scan.SourceConfig
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, fmt.Errorf("parse source config: %w", err)
	}

	source, err := scan.GetSource(sourceType)
	if err != nil {
		return nil, err
	}

	discCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	return source.Discover(discCtx, cfg)
}

// ── Triggers (cron + file_watch) ───────────────────────────

// RestartTriggers tears down the current watcher/cron and rebuilds them from scratch.
func (s *ScanService) RestartTriggers(ctx context.Context) {
	s.stopTriggers()

	jobs, err := s.store.ListEnabledTriggeredJobs()
	if err != nil {
		log.Printf("scan trigger: failed to list jobs: %v", err)
		return
	}

	// ── Cron jobs ──
	var cronJobs []struct {
		jobID string
		expr  string
	}
	for _, j := range jobs {
		if j.TriggerType == "schedule" && j.TriggerConfig != "" {
			cronJobs = append(cronJobs, struct {
				jobID string
				expr  string
			}{jobID: j.ID, expr: j.TriggerConfig})
		}
	}

	if len(cronJobs) > 0 {
		c := cron.New()
		for _, cj := range cronJobs {
			jid := cj.jobID
			_, err := c.AddFunc(cj.expr, func() {
				log.Printf("scan cron: running job %s", jid)
				if _, err := s.RunJob(ctx, jid); err != nil {
					log.Printf("scan cron: job %s failed: %v", jid, err)
				}
				s.emitter.Emit(ctx, "scan:job-completed", jid)
			})
			if err != nil {
				log.Printf("scan cron: invalid expression %q for job %s: %v", cj.expr, cj.jobID, err)
			}
		}
		c.Start()
		s.cronSched = c
		log.Printf("scan cron: scheduled %d job(s)", len(cronJobs))
	}

	// ── File watchers ──
	type watchEntry struct {
		jobID string
		path  string
	}
	var entries []watchEntry
	for _, j := range jobs {
		if j.TriggerType == "file_watch" && j.TriggerConfig != "" {
			entries = append(entries, watchEntry{jobID: j.ID, path: j.TriggerConfig})
		}
	}

	if len(entries) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("scan trigger: failed to create watcher: %v", err)
		return
	}
	s.watcher = watcher

	pathToJob := make(map[string]string)
	watchedDirs := make(map[string]bool)
	for _, e := range entries {
		absPath, err := filepath.Abs(e.path)
		if err != nil {
			log.Printf("scan trigger: bad path %q: %v", e.path, err)
			continue
		}
		pathToJob[absPath] = e.jobID

		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				log.Printf("scan trigger: failed to watch dir %q: %v", dir, err)
			} else {
				watchedDirs[dir] = true
			}
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		timers := make(map[string]*time.Timer)
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)
				jobID, ok := pathToJob[absPath]
				if !ok {
					continue
				}
				if t, exists := timers[jobID]; exists {
					t.Stop()
				}
				jid := jobID
				timers[jobID] = time.AfterFunc(500*time.Millisecond, func() {
					log.Printf("scan trigger: file changed %q, running job %s", absPath, jid)
					if _, err := s.RunJob(ctx, jid); err != nil {
						log.Printf("scan trigger: run failed for job %s: %v", jid, err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("scan trigger: error: %v", err)
			}
		}
	}()

	log.Printf("scan trigger: watching %d file(s)", len(pathToJob))
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ScanService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *ScanService) Stop() {
	s.stopTriggers()
}

func (s *ScanService) stopTriggers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
