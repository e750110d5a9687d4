package tools

import (
	"context"
	"testing"

	"github.com/supplystack/chaincommand/internal/anomaly"
	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/forecast"
	"github.com/supplystack/chaincommand/internal/kpi"
	"github.com/supplystack/chaincommand/internal/logging"
	"github.com/supplystack/chaincommand/internal/optimize"
	"github.com/supplystack/chaincommand/internal/state"
)

func testDeps(t *testing.T) (Deps, *state.State, *event.Bus) {
	t.Helper()
	cfg := config.Default()
	st := state.New()
	st.SetDataset(
		[]*domain.Product{
			{ProductID: "PRD-1", Name: "Widget", UnitCost: 10, CurrentStock: 100,
				SafetyStock: 40, ReorderPoint: 80, DailyDemandAvg: 10, DailyDemandStd: 2, LeadTimeDays: 4, MinOrderQty: 10},
		},
		[]*domain.Supplier{
			{SupplierID: "SUP-1", Name: "Acme", IsActive: true, Products: []string{"PRD-1"},
				ReliabilityScore: 0.9, OnTimeRate: 0.95, DefectRate: 0.01, CostMultiplier: 1.0, LeadTimeMean: 5},
			{SupplierID: "SUP-2", Name: "Globex", IsActive: true, Products: []string{"PRD-1"},
				ReliabilityScore: 0.6, OnTimeRate: 0.7, DefectRate: 0.08, CostMultiplier: 1.2, LeadTimeMean: 12},
		},
		nil,
	)
	bus := event.NewBus(logging.NopLogger())
	deps := Deps{
		State:      st,
		Bus:        bus,
		KPI:        kpi.NewEngine(cfg.KPI, logging.NopLogger()),
		Forecaster: forecast.NewForecaster(logging.NopLogger(), 1),
		Detector:   anomaly.NewDetector(cfg.KPI, logging.NopLogger()),
		Optimizer:  optimize.NewOptimizer(logging.NopLogger()),
		Approval:   cfg.Approval,
		Log:        logging.NopLogger(),
	}
	return deps, st, bus
}

func TestRegistry_ClosedTable(t *testing.T) {
	deps, _, _ := testDeps(t)
	r := NewRegistry(deps)

	if got := len(r.Kinds()); got != 16 {
		t.Errorf("Expected 16 registered actions, got %d", got)
	}

	result := r.Execute(context.Background(), ActionKind("drop_tables"), nil)
	if !result.Failed() {
		t.Error("Expected unknown action to return a contained error")
	}
}

func TestCreatePurchaseOrder_AutoApproveBand(t *testing.T) {
	deps, st, _ := testDeps(t)
	r := NewRegistry(deps)

	// 5 units at 10 each: 50, far below the 10k auto-approve line.
	result := r.Execute(context.Background(), ActionCreatePurchaseOrder, Args{
		"supplier_id": "SUP-1",
		"product_id":  "PRD-1",
		"quantity":    5.0,
	})

	if result.Failed() {
		t.Fatalf("Unexpected error: %v", result["error"])
	}
	if result["approval_status"] != "auto_approved" {
		t.Errorf("Expected auto_approved, got %v", result["approval_status"])
	}

	po := st.PurchaseOrder(result["po_id"].(string))
	if po == nil {
		t.Fatal("PO not recorded in state")
	}
	if po.Status != domain.OrderApproved {
		t.Errorf("Expected order approved, got %q", po.Status)
	}
	if po.ApprovedBy != "system" {
		t.Errorf("Expected approved_by system, got %q", po.ApprovedBy)
	}
	if got := len(st.PendingApprovals()); got != 0 {
		t.Errorf("Auto-approved order must not create approval requests, got %d", got)
	}
}

func TestCreatePurchaseOrder_EscalationBand(t *testing.T) {
	deps, st, _ := testDeps(t)
	r := NewRegistry(deps)

	// 10000 units at 10 each: 100k, at or above the 50k escalation line.
	result := r.Execute(context.Background(), ActionCreatePurchaseOrder, Args{
		"supplier_id": "SUP-1",
		"product_id":  "PRD-1",
		"quantity":    10000.0,
	})

	if result["approval_status"] != "pending" {
		t.Errorf("Expected pending, got %v", result["approval_status"])
	}

	pending := st.PendingApprovals()
	if len(pending) != 1 {
		t.Fatalf("Expected 1 approval request, got %d", len(pending))
	}
	if pending[0].RiskLevel != domain.SeverityHigh {
		t.Errorf("Expected high risk at escalation threshold, got %q", pending[0].RiskLevel)
	}
	if pending[0].EstimatedCost != 100_000 {
		t.Errorf("Expected estimated cost 100000, got %v", pending[0].EstimatedCost)
	}
}

func TestCreatePurchaseOrder_MiddleBand(t *testing.T) {
	deps, st, _ := testDeps(t)
	r := NewRegistry(deps)

	// 2500 units at 10: 25k, between the bands.
	result := r.Execute(context.Background(), ActionCreatePurchaseOrder, Args{
		"supplier_id": "SUP-1",
		"product_id":  "PRD-1",
		"quantity":    2500.0,
	})

	if result["approval_status"] != "pending" {
		t.Errorf("Expected pending, got %v", result["approval_status"])
	}
	pending := st.PendingApprovals()
	if len(pending) != 1 || pending[0].RiskLevel != domain.SeverityMedium {
		t.Fatalf("Expected 1 medium-risk request, got %+v", pending)
	}
}

func TestCreatePurchaseOrder_Validation(t *testing.T) {
	deps, _, _ := testDeps(t)
	r := NewRegistry(deps)

	if res := r.Execute(context.Background(), ActionCreatePurchaseOrder, Args{
		"product_id": "PRD-1", "quantity": 5.0,
	}); !res.Failed() {
		t.Error("Expected error without supplier_id")
	}
	if res := r.Execute(context.Background(), ActionCreatePurchaseOrder, Args{
		"supplier_id": "SUP-1", "product_id": "PRD-1", "quantity": -3.0,
	}); !res.Failed() {
		t.Error("Expected error for negative quantity")
	}
}

func TestAdjustSafetyStock_SmallChangeApplied(t *testing.T) {
	deps, st, _ := testDeps(t)
	r := NewRegistry(deps)

	// 40 -> 45 is a 12.5% change, under the 25% gate.
	result := r.Execute(context.Background(), ActionAdjustSafetyStock, Args{
		"product_id":       "PRD-1",
		"new_safety_stock": 45.0,
	})

	if result["status"] != "applied" {
		t.Fatalf("Expected applied, got %v", result["status"])
	}
	if got := st.Product("PRD-1").SafetyStock; got != 45 {
		t.Errorf("Expected safety stock 45, got %v", got)
	}
}

func TestAdjustSafetyStock_LargeChangeNeedsApproval(t *testing.T) {
	deps, st, _ := testDeps(t)
	r := NewRegistry(deps)

	// 40 -> 80 is a 100% change.
	result := r.Execute(context.Background(), ActionAdjustSafetyStock, Args{
		"product_id":       "PRD-1",
		"new_safety_stock": 80.0,
	})

	if result["status"] != "pending_approval" {
		t.Fatalf("Expected pending_approval, got %v", result["status"])
	}
	if got := st.Product("PRD-1").SafetyStock; got != 40 {
		t.Errorf("Safety stock must stay 40 until approved, got %v", got)
	}
	pending := st.PendingApprovals()
	if len(pending) != 1 || pending[0].RequestType != "inventory_adjustment" {
		t.Fatalf("Expected 1 inventory_adjustment request, got %+v", pending)
	}
}

func TestAdjustSafetyStock_UnknownProduct(t *testing.T) {
	deps, _, _ := testDeps(t)
	r := NewRegistry(deps)

	res := r.Execute(context.Background(), ActionAdjustSafetyStock, Args{
		"product_id":       "PRD-404",
		"new_safety_stock": 10.0,
	})
	if !res.Failed() {
		t.Error("Expected contained error for unknown product")
	}
}

func TestEmitEvent_PublishesToBus(t *testing.T) {
	deps, _, bus := testDeps(t)
	r := NewRegistry(deps)

	received := make(chan event.Event, 1)
	bus.Subscribe("reorder_triggered", func(ev event.Event) {
		received <- ev
	})

	result := r.Execute(context.Background(), ActionEmitEvent, Args{
		"event_type":   "reorder_triggered",
		"severity":     "high",
		"source_agent": "inventory_optimizer",
		"description":  "PRD-1 below reorder point",
	})

	if result["published"] != true {
		t.Fatalf("Expected published=true, got %v", result["published"])
	}

	select {
	case ev := <-received:
		if ev.Severity != domain.SeverityHigh {
			t.Errorf("Expected high severity, got %q", ev.Severity)
		}
		if ev.Source != "inventory_optimizer" {
			t.Errorf("Expected source inventory_optimizer, got %q", ev.Source)
		}
	default:
		t.Fatal("Event was not dispatched")
	}
}

func TestEvaluateSupplier_RanksByCompositeScore(t *testing.T) {
	deps, _, _ := testDeps(t)
	r := NewRegistry(deps)

	result := r.Execute(context.Background(), ActionEvaluateSupplier, Args{"product_id": "PRD-1"})
	if result.Failed() {
		t.Fatalf("Unexpected error: %v", result["error"])
	}
	if result["recommended"] != "SUP-1" {
		t.Errorf("Expected SUP-1 (stronger metrics) recommended, got %v", result["recommended"])
	}
}

func TestQueryInventoryStatus_Tiers(t *testing.T) {
	deps, st, _ := testDeps(t)
	r := NewRegistry(deps)

	st.AdjustStock("PRD-1", 30) // below safety stock of 40

	result := r.Execute(context.Background(), ActionQueryInventory, Args{"product_id": "PRD-1"})
	products := result["products"].([]map[string]any)
	if len(products) != 1 {
		t.Fatalf("Expected 1 product, got %d", len(products))
	}
	if products[0]["status"] != "critical" {
		t.Errorf("Expected critical below safety stock, got %v", products[0]["status"])
	}
}

func TestRequestHumanApproval_Defaults(t *testing.T) {
	deps, st, _ := testDeps(t)
	r := NewRegistry(deps)

	result := r.Execute(context.Background(), ActionRequestApproval, Args{
		"description": "manual review of supplier contract",
	})

	if result["status"] != "pending" {
		t.Fatalf("Expected pending, got %v", result["status"])
	}
	req := st.Approval(result["request_id"].(string))
	if req == nil {
		t.Fatal("Request not stored")
	}
	if req.RequestType != "general" {
		t.Errorf("Expected default type general, got %q", req.RequestType)
	}
	if req.RiskLevel != domain.SeverityMedium {
		t.Errorf("Expected default medium risk, got %q", req.RiskLevel)
	}
}

func TestScanMarketIntel_RecordsInState(t *testing.T) {
	deps, st, _ := testDeps(t)
	r := NewRegistry(deps)

	result := r.Execute(context.Background(), ActionScanMarketIntel, nil)
	if result["intel_count"] != 3 {
		t.Fatalf("Expected 3 intel items, got %v", result["intel_count"])
	}
	if got := len(st.RecentMarketIntel(10)); got != 3 {
		t.Errorf("Expected 3 intel records in state, got %d", got)
	}
	for _, mi := range st.RecentMarketIntel(10) {
		if mi.ImpactScore < -1 || mi.ImpactScore > 1 {
			t.Errorf("Impact score %v outside [-1,1]", mi.ImpactScore)
		}
	}
}
