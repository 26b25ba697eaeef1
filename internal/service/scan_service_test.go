package service_test

import (
	"context"
	"testing"
	"time"

	"rowbridge/internal/service"
)

// ─────────────────────────────────────────────────────────────
// ScanService unit tests
// Uses only the pure logic paths that don't require I/O:
//   - WaitRunning / Stop
//   - trigger teardown idempotence
// ─────────────────────────────────────────────────────────────

func TestScanService_NewScanService(t *testing.T) {
	emitter := &service.MockEmitter{}
	svc := service.NewScanService(nil, nil, emitter)
	if svc == nil {
		t.Fatal("expected non-nil ScanService")
	}
}

func TestScanService_WaitRunning_Immediate(t *testing.T) {
	// With no running jobs, WaitRunning should return immediately
	emitter := &service.MockEmitter{}
	svc := service.NewScanService(nil, nil, emitter)

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		svc.WaitRunning(ctx)
		close(done)
	}()

	select {
	case <-done:
		// expected — no jobs running
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitRunning hung with no running jobs")
	}
}

func TestScanService_Stop_Idempotent(t *testing.T) {
	// Stop with nothing started should not panic
	emitter := &service.MockEmitter{}
	svc := service.NewScanService(nil, nil, emitter)
	svc.Stop()
	svc.Stop() // second call should also be safe
}
