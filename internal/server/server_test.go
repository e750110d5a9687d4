package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/logging"
	"github.com/supplystack/chaincommand/internal/orchestrator"
)

func testServer(t *testing.T, apiKey string) (*Server, *orchestrator.Orchestrator) {
	t.Helper()
	cfg := config.Default()
	cfg.Simulation.NumProducts = 5
	cfg.Simulation.NumSuppliers = 3
	cfg.Simulation.HistoryDays = 30
	cfg.Simulation.EnableMonitoring = false
	cfg.Backend.Driver = "none"
	cfg.Server.APIKey = apiKey
	cfg.Server.RateLimitPerMinute = 0 // disable limiting in tests

	orch := orchestrator.New(cfg, logging.NopLogger())
	if err := orch.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { orch.Shutdown(context.Background()) })

	return New(cfg.Server, orch, logging.NopLogger()), orch
}

func doRequest(t *testing.T, s *Server, method, path, apiKey string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Bad JSON response: %v\n%s", err, rec.Body.String())
	}
	return out
}

func TestHealth_OpenWithoutKey(t *testing.T) {
	s, _ := testServer(t, "secret")

	rec := doRequest(t, s, "GET", "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestAPIKey_Enforced(t *testing.T) {
	s, _ := testServer(t, "secret")

	if rec := doRequest(t, s, "GET", "/api/kpi/current", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", rec.Code)
	}
	if rec := doRequest(t, s, "GET", "/api/kpi/current", "wrong", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", rec.Code)
	}
	if rec := doRequest(t, s, "GET", "/api/kpi/current", "secret", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with correct key, got %d", rec.Code)
	}
}

func TestAPIKey_OpenWhenUnset(t *testing.T) {
	s, _ := testServer(t, "")

	if rec := doRequest(t, s, "GET", "/api/kpi/current", "", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected open API without configured key, got %d", rec.Code)
	}
}

func TestKPICurrent_ReturnsSnapshot(t *testing.T) {
	s, _ := testServer(t, "")

	body := decode(t, doRequest(t, s, "GET", "/api/kpi/current", "", ""))
	if _, ok := body["otif"]; !ok {
		t.Errorf("Expected otif in snapshot, got %v", body)
	}
}

func TestInventoryStatus_AllAndFiltered(t *testing.T) {
	s, orch := testServer(t, "")

	body := decode(t, doRequest(t, s, "GET", "/api/inventory/status", "", ""))
	if body["count"] != float64(5) {
		t.Errorf("Expected 5 products, got %v", body["count"])
	}

	pid := orch.State().Products()[0].ProductID
	body = decode(t, doRequest(t, s, "GET", "/api/inventory/status?product_id="+pid, "", ""))
	if body["count"] != float64(1) {
		t.Errorf("Expected 1 filtered product, got %v", body["count"])
	}
}

func TestAgentsStatus_FullRoster(t *testing.T) {
	s, _ := testServer(t, "")

	body := decode(t, doRequest(t, s, "GET", "/api/agents/status", "", ""))
	if body["count"] != float64(10) {
		t.Errorf("Expected 10 agents, got %v", body["count"])
	}
}

func TestSimulationStatus_Fields(t *testing.T) {
	s, _ := testServer(t, "")

	body := decode(t, doRequest(t, s, "GET", "/api/simulation/status", "", ""))
	if body["running"] != false {
		t.Errorf("Expected not running, got %v", body["running"])
	}
	if body["products"] != float64(5) {
		t.Errorf("Expected 5 products, got %v", body["products"])
	}
}

func TestSimulationSpeed_Validation(t *testing.T) {
	s, orch := testServer(t, "")

	rec := doRequest(t, s, "POST", "/api/simulation/speed", "", `{"speed": 500}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for out-of-range speed, got %d", rec.Code)
	}

	rec = doRequest(t, s, "POST", "/api/simulation/speed", "", `{"speed": 2.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if orch.Speed() != 2.5 {
		t.Errorf("Expected speed 2.5 applied, got %v", orch.Speed())
	}
}

func TestTriggerAgent_UnknownLists404(t *testing.T) {
	s, _ := testServer(t, "")

	rec := doRequest(t, s, "POST", "/api/agents/nonexistent/trigger", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	body := decode(t, rec)
	if _, ok := body["available"]; !ok {
		t.Error("Expected available agent list in error response")
	}
}

func TestTriggerAgent_RunsCycle(t *testing.T) {
	s, _ := testServer(t, "")

	rec := doRequest(t, s, "POST", "/api/agents/market_intelligence/trigger", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["agent"] != "market_intelligence" {
		t.Errorf("Wrong agent in response: %v", body["agent"])
	}
}

func TestDecideApproval_ApprovesLinkedOrder(t *testing.T) {
	s, orch := testServer(t, "")

	po := &domain.PurchaseOrder{
		POID: "PO-9", SupplierID: "SUP-1", ProductID: "PRD-1",
		Quantity: 100, TotalCost: 60000,
		Status: domain.OrderPending, ApprovalStatus: domain.ApprovalPending,
		CreatedAt: time.Now().UTC(),
	}
	orch.State().AddPurchaseOrder(po)
	req := domain.NewApprovalRequest("purchase_order", "big order", 60000,
		domain.SeverityHigh, map[string]any{"po_id": "PO-9"})
	orch.State().AddApproval(req)

	rec := doRequest(t, s, "POST", "/api/approval/"+req.RequestID+"/decide", "",
		`{"approved": true, "decided_by": "alice", "reason": "capacity confirmed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["status"] != "approved" {
		t.Errorf("Expected approved, got %v", body["status"])
	}
	if got := orch.State().PurchaseOrder("PO-9").Status; got != domain.OrderApproved {
		t.Errorf("Expected linked PO approved, got %q", got)
	}
}

func TestDecideApproval_LaterDecisionOverwrites(t *testing.T) {
	s, orch := testServer(t, "")

	req := domain.NewApprovalRequest("general", "review", 0, domain.SeverityMedium, nil)
	orch.State().AddApproval(req)

	doRequest(t, s, "POST", "/api/approval/"+req.RequestID+"/decide", "",
		`{"approved": true, "decided_by": "alice"}`)
	rec := doRequest(t, s, "POST", "/api/approval/"+req.RequestID+"/decide", "",
		`{"approved": false, "decided_by": "bob", "reason": "budget freeze"}`)

	body := decode(t, rec)
	if body["status"] != "rejected" {
		t.Errorf("Expected later decision to overwrite, got %v", body["status"])
	}
	stored := orch.State().Approval(req.RequestID)
	if stored.DecidedBy != "bob" {
		t.Errorf("Expected bob as final decider, got %q", stored.DecidedBy)
	}
}

func TestDecideApproval_UnknownRequest(t *testing.T) {
	s, _ := testServer(t, "")

	rec := doRequest(t, s, "POST", "/api/approval/APR-missing/decide", "", `{"approved": true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestRateLimit_Enforced(t *testing.T) {
	limiter := newIPLimiter(60) // 1 rps, burst 60

	allowed := 0
	for i := 0; i < 100; i++ {
		if limiter.allow("10.0.0.1") {
			allowed++
		}
	}
	if allowed != 60 {
		t.Errorf("Expected burst of 60 allowed, got %d", allowed)
	}
	if !limiter.allow("10.0.0.2") {
		t.Error("Separate IP must have its own bucket")
	}
}

func TestCORS_Preflight(t *testing.T) {
	s, _ := testServer(t, "secret")

	req := httptest.NewRequest(http.MethodOptions, "/api/kpi/current", nil)
	req.Header.Set("Origin", "http://dash.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected wildcard CORS, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
