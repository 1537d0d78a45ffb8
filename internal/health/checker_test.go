package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error {
	return s.err
}

func TestCheckAllHealthy(t *testing.T) {
	checker := New(&stubPinger{}, &stubPinger{}, Config{ProbeTimeout: time.Second}, zap.NewNop())
	report := checker.Check(context.Background())

	if !report.Healthy {
		t.Fatalf("expected healthy report, got %+v", report)
	}
	if !report.Checks["database"].Healthy || !report.Checks["escrow_rpc"].Healthy {
		t.Fatalf("expected both checks healthy, got %+v", report.Checks)
	}
}

func TestCheckReportsDatabaseFailure(t *testing.T) {
	checker := New(&stubPinger{err: errors.New("connection refused")}, &stubPinger{}, Config{ProbeTimeout: time.Second}, zap.NewNop())
	report := checker.Check(context.Background())

	if report.Healthy {
		t.Fatal("expected unhealthy report when database ping fails")
	}
	if report.Checks["database"].Healthy {
		t.Fatal("expected database check to be unhealthy")
	}
	if report.Checks["database"].Error == "" {
		t.Fatal("expected database check to carry an error message")
	}
}

func TestCheckSkipsLedgerWhenNil(t *testing.T) {
	checker := New(&stubPinger{}, nil, Config{ProbeTimeout: time.Second}, zap.NewNop())
	report := checker.Check(context.Background())

	if !report.Healthy {
		t.Fatalf("expected healthy report, got %+v", report)
	}
	if _, ok := report.Checks["escrow_rpc"]; ok {
		t.Fatal("expected escrow_rpc check to be absent when ledger is nil")
	}
}
