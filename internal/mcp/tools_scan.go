package mcpserver

import (
	"context"
	"fmt"
	"strconv"

	"rowbridge/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerScanTools() {
	s.mcp.AddTool(mcp.NewTool("create_scan_job",
		mcp.WithDescription("Create a scan job that reads rows from a source into the local result store. Optionally request a recordkey output column carrying each row's source key."),
		mcp.WithString("name", mcp.Description("Job name"), mcp.Required()),
		mcp.WithString("sourceType", mcp.Description("Source type (use list_scan_sources to see available types)"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
		mcp.WithString("recordkeyType", mcp.Description("Output type for the recordkey column (bool|int2|int4|int8|text|float4|float8|timestamp). Leave empty to skip the key column.")),
		mcp.WithString("mode", mcp.Description("Write mode: replace (default) or append")),
		mcp.WithString("triggerType", mcp.Description("Trigger: manual (default), schedule, or file_watch")),
		mcp.WithString("triggerConfig", mcp.Description("Cron expression (schedule) or file path (file_watch)")),
	), s.handleCreateScanJob)

	s.mcp.AddTool(mcp.NewTool("list_scan_jobs",
		mcp.WithDescription("List all scan jobs with their trigger and last-run status"),
	), s.handleListScanJobs)

	s.mcp.AddTool(mcp.NewTool("run_scan_job",
		mcp.WithDescription("Execute a scan job. In replace mode this overwrites the job's stored results."),
		mcp.WithString("jobId", mcp.Description("Scan job ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunScanJob)

	s.mcp.AddTool(mcp.NewTool("delete_scan_job",
		mcp.WithDescription("Delete a scan job together with its run logs and stored results"),
		mcp.WithString("jobId", mcp.Description("Scan job ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteScanJob)

	s.mcp.AddTool(mcp.NewTool("list_scan_run_logs",
		mcp.WithDescription("List recent run logs for a scan job"),
		mcp.WithString("jobId", mcp.Description("Scan job ID"), mcp.Required()),
	), s.handleListScanRunLogs)

	s.mcp.AddTool(mcp.NewTool("get_scan_results",
		mcp.WithDescription("Fetch stored result rows of a scan job, resolved as typed fields"),
		mcp.WithString("jobId", mcp.Description("Scan job ID"), mcp.Required()),
		mcp.WithString("limit", mcp.Description("Maximum rows to return (default 50)")),
	), s.handleGetScanResults)

	s.mcp.AddTool(mcp.NewTool("preview_scan_source",
		mcp.WithDescription("Preview rows from a source without persisting anything"),
		mcp.WithString("sourceType", mcp.Description("Source type"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
		mcp.WithString("recordkeyType", mcp.Description("Optional recordkey output type")),
	), s.handlePreviewScanSource)
}

func (s *Server) handleCreateScanJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	sourceType := req.GetString("sourceType", "")
	sourceConfigStr := req.GetString("sourceConfigJSON", "")
	if name == "" || sourceType == "" || sourceConfigStr == "" {
		return nil, fmt.Errorf("name, sourceType, and sourceConfigJSON are required")
	}

	var sourceConfig map[string]any
	if err := parseJSON(sourceConfigStr, &sourceConfig); err != nil {
		return nil, fmt.Errorf("parse sourceConfig: %w", err)
	}

	input := service.CreateScanJobInput{
		Name:          name,
		SourceType:    sourceType,
		SourceConfig:  sourceConfig,
		RecordkeyType: req.GetString("recordkeyType", ""),
		Mode:          req.GetString("mode", ""),
		TriggerType:   req.GetString("triggerType", ""),
		TriggerConfig: req.GetString("triggerConfig", ""),
		Enabled:       true,
	}
	job, err := s.scans.CreateJob(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create scan job: %w", err)
	}
	return jsonResult(job)
}

func (s *Server) handleListScanJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.scans.ListJobs()
	if err != nil {
		return nil, fmt.Errorf("list scan jobs: %w", err)
	}
	return jsonResult(jobs)
}

func (s *Server) handleRunScanJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := req.GetString("jobId", "")
	if jobID == "" {
		return nil, fmt.Errorf("jobId is required")
	}

	result, err := s.scans.RunJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("run scan job: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handleDeleteScanJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := req.GetString("jobId", "")
	if jobID == "" {
		return nil, fmt.Errorf("jobId is required")
	}
	if err := s.scans.DeleteJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("delete scan job: %w", err)
	}
	return textResult("deleted " + jobID), nil
}

func (s *Server) handleListScanRunLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := req.GetString("jobId", "")
	if jobID == "" {
		return nil, fmt.Errorf("jobId is required")
	}
	logs, err := s.scans.ListRunLogs(jobID)
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	return jsonResult(logs)
}

func (s *Server) handleGetScanResults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := req.GetString("jobId", "")
	if jobID == "" {
		return nil, fmt.Errorf("jobId is required")
	}
	limit := 50
	if l := req.GetString("limit", ""); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	page, err := s.scans.GetResults(jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("get scan results: %w", err)
	}
	return jsonResult(page)
}

func (s *Server) handlePreviewScanSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceType := req.GetString("sourceType", "")
	sourceConfigStr := req.GetString("sourceConfigJSON", "")
	if sourceType == "" || sourceConfigStr == "" {
		return nil, fmt.Errorf("sourceType and sourceConfigJSON are required")
	}

	preview, err := s.scans.PreviewSource(ctx, sourceType, req.GetString("recordkeyType", ""), sourceConfigStr)
	if err != nil {
		return nil, fmt.Errorf("preview source: %w", err)
	}
	return jsonResult(preview)
}
