package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/internal/allocation"
	"github.com/quantfolio/allocation-engine/internal/data"
	"github.com/quantfolio/allocation-engine/internal/kelly"
	"github.com/quantfolio/allocation-engine/internal/optimization"
	"github.com/quantfolio/allocation-engine/pkg/types"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		return path
	}

	metricsPath := writeFile("metrics.json", `[
		{"ticker": "AAPL", "strategy_type": "momentum", "total_return": 32.0,
		 "win_rate": 58.0, "profit_factor": 1.9, "sortino_ratio": 1.5,
		 "calmar_ratio": 0.7, "max_drawdown": 12.0, "volatility": 22.0,
		 "avg_winning_trade": 4.0, "avg_losing_trade": 2.0, "stop_loss": 8.0},
		{"ticker": "BROKEN", "win_rate": 55.0, "stop_loss": 0}
	]`)
	capitalPath := writeFile("capital.json", `{"balances": {"main": "50000"}}`)
	kellyPath := writeFile("kelly.json", `{"kelly_criterion": 4.48}`)

	defaults := types.EngineDefaults{
		FallbackKellyBase: 0.0448,
		FallbackCapital:   decimal.NewFromInt(10000),
		FallbackPrice:     decimal.NewFromInt(100),
		PriceTimeout:      time.Second,
	}

	engine := allocation.NewEngine(
		zap.NewNop(),
		defaults,
		kelly.DefaultRiskParams(),
		optimization.DefaultFrontierConfig(),
		&data.StaticPriceSource{Prices: map[string]decimal.Decimal{
			"AAPL": decimal.NewFromFloat(187.25),
		}},
	)

	return NewServer(
		zap.NewNop(),
		&types.ServerConfig{
			Host:          "localhost",
			Port:          0,
			WebSocketPath: "/ws",
			EnableMetrics: true,
		},
		types.DataConfig{
			MetricsPath: metricsPath,
			CapitalPath: capitalPath,
			KellyPath:   kellyPath,
		},
		defaults,
		types.DefaultPortfolioConstraints(),
		engine,
	)
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestRunSizingEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sizing/run", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var report types.RunReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid report body: %v", err)
	}
	if report.Method != types.MethodKelly {
		t.Errorf("method = %s, want kelly", report.Method)
	}
	if len(report.Results) != 1 || report.Results[0].Ticker != "AAPL" {
		t.Fatalf("results = %+v, want one AAPL result", report.Results)
	}
	if len(report.Excluded) != 1 || report.Excluded[0].Ticker != "BROKEN" {
		t.Errorf("excluded = %+v, want BROKEN", report.Excluded)
	}
	if !report.TotalCapital.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("total capital = %s, want 50000", report.TotalCapital)
	}

	// The completed run is retrievable by ID.
	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/sizing/"+report.RunID, nil)
	getRec := httptest.NewRecorder()
	s.Router().ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Errorf("get run status = %d, want 200", getRec.Code)
	}
}

func TestRunSizingDualMethod(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sizing/run",
		strings.NewReader(`{"method": "dual"}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var report types.RunReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid report body: %v", err)
	}
	if report.Method != types.MethodDual {
		t.Errorf("method = %s, want dual", report.Method)
	}
}

func TestRunSizingUnknownMethod(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sizing/run",
		strings.NewReader(`{"method": "martingale"}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRunSizingConstraintOverride(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sizing/run",
		strings.NewReader(`{"max_position_risk": 0.05}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var report types.RunReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid report body: %v", err)
	}
	for _, r := range report.Results {
		if r.FinalAllocation > 0.05+1e-9 {
			t.Errorf("%s allocation %.6f exceeds overridden cap 0.05", r.Ticker, r.FinalAllocation)
		}
	}
}

func TestRunSizingInvalidOverride(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sizing/run",
		strings.NewReader(`{"cvar_target": -1}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sizing/nope", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	s := testServer(t)

	runReq := httptest.NewRequest(http.MethodPost, "/api/v1/sizing/run", strings.NewReader(`{}`))
	runRec := httptest.NewRecorder()
	s.Router().ServeHTTP(runRec, runReq)
	if runRec.Code != http.StatusOK {
		t.Fatalf("run status = %d, want 200", runRec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sizing/runs", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Runs []string `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(body.Runs) != 1 {
		t.Errorf("got %d runs, want 1", len(body.Runs))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
