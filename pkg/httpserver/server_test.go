package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/internal/execution"
	"github.com/sharehunt/shares-sniper/internal/monitor"
	"github.com/sharehunt/shares-sniper/internal/testutil"
	"github.com/sharehunt/shares-sniper/pkg/healthprobe"
	"github.com/sharehunt/shares-sniper/pkg/types"
)

type fakeExecutor struct{ status execution.Status }

func (f *fakeExecutor) Status() execution.Status { return f.status }

type fakeMonitor struct{ status monitor.Status }

func (f *fakeMonitor) GetStatus() monitor.Status { return f.status }

func TestStatusHandlerAggregatesComponents(t *testing.T) {
	ledger := testutil.NewMemoryLedger()
	ledger.Add(context.Background(), "0x1111111111111111111111111111111111111111", 3, "0xa")

	candidates := testutil.NewMemoryCandidates()
	candidates.Create(context.Background(), &types.Candidate{
		TokenAddress: "0x2222222222222222222222222222222222222222",
		Status:       types.StatusPending,
	})

	handler := NewStatusHandler(
		candidates,
		ledger,
		&fakeExecutor{status: execution.Status{Busy: true, QueueDepth: 2}},
		&fakeMonitor{status: monitor.Status{Monitoring: true, EventCount: 7}},
		zap.NewNop(),
	)

	rec := httptest.NewRecorder()
	handler.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Candidates[types.StatusPending] != 1 {
		t.Errorf("expected 1 pending candidate, got %d", resp.Candidates[types.StatusPending])
	}
	if len(resp.Positions) != 1 || resp.Positions[0].TotalAmount != 3 {
		t.Errorf("positions lost: %+v", resp.Positions)
	}
	if !resp.Executor.Busy || resp.Executor.QueueDepth != 2 {
		t.Errorf("executor status lost: %+v", resp.Executor)
	}
	if !resp.Monitor.Monitoring || resp.Monitor.EventCount != 7 {
		t.Errorf("monitor status lost: %+v", resp.Monitor)
	}
}

func TestServerRoutesHealthAndMetrics(t *testing.T) {
	health := healthprobe.New()
	health.SetReady(true)

	srv := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: health,
	})

	ts := httptest.NewServer(srv.server.Handler)
	defer ts.Close()

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
