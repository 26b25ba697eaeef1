package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	mcpserver "rowbridge/internal/mcp"
	"rowbridge/internal/secret"
	"rowbridge/internal/service"
	"rowbridge/internal/storage"
)

// noopEmitter is a no-op EventEmitter used when no client is listening
// for notifications (one-shot runs).
type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ string, _ any) {}

func main() {
	homeDir, _ := os.UserHomeDir()
	defaultDB := filepath.Join(homeDir, ".local", "share", "rowbridge", "rowbridge.db")

	dbPath := flag.String("db", defaultDB, "path to the rowbridge SQLite database")
	runJobID := flag.String("run", "", "run a single scan job by ID and exit (no MCP server)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}

	db, err := storage.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Storage stores
	scanStore := storage.NewScanStore(db)
	resultStore := storage.NewResultStore(db)
	connStore := storage.NewDBConnectionStore(db)

	secretStore := secret.NewEnvStore()
	emitter := noopEmitter{}

	// Services
	connectionsSvc := service.NewConnectionService(connStore, secretStore)
	scansSvc := service.NewScanService(scanStore, resultStore, emitter)

	// Wire source adapters so the database source can reach connections
	service.WireSourceAdapters(connectionsSvc)

	if *runJobID != "" {
		runOnce(ctx, scansSvc, connectionsSvc, *runJobID)
		return
	}

	scansSvc.RestartTriggers(ctx)

	mcpSrv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:     emitter,
		Scans:       scansSvc,
		Connections: connectionsSvc,
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- mcpSrv.ServeStdio()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Printf("MCP server error: %v", err)
		}
	case <-ctx.Done():
	}

	// Graceful shutdown: let in-flight scans finish before closing.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	scansSvc.WaitRunning(shutdownCtx)
	scansSvc.Stop()
	connectionsSvc.Close()
}

// runOnce executes one scan job and prints the outcome. Used by the
// -run flag for cron-style invocation outside the MCP server.
func runOnce(ctx context.Context, scans *service.ScanService, connections *service.ConnectionService, jobID string) {
	defer connections.Close()

	result, err := scans.RunJob(ctx, jobID)
	if err != nil {
		log.Fatalf("scan job %s failed: %v", jobID, err)
	}
	fmt.Printf("job %s: %s (%d rows read, %d written)\n",
		jobID, result.Status, result.RowsRead, result.RowsWritten)
}
