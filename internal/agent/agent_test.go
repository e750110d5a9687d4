package agent

import (
	"context"
	"testing"
	"time"

	"github.com/supplystack/chaincommand/internal/anomaly"
	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/forecast"
	"github.com/supplystack/chaincommand/internal/kpi"
	"github.com/supplystack/chaincommand/internal/llm"
	"github.com/supplystack/chaincommand/internal/logging"
	"github.com/supplystack/chaincommand/internal/optimize"
	"github.com/supplystack/chaincommand/internal/state"
	"github.com/supplystack/chaincommand/internal/tools"
)

func testAgentConfig(t *testing.T, products []*domain.Product) (Config, *state.State, *event.Bus) {
	t.Helper()
	appCfg := config.Default()
	st := state.New()
	st.SetDataset(
		products,
		[]*domain.Supplier{
			{SupplierID: "SUP-1", Name: "Acme", IsActive: true,
				Products:         productIDs(products),
				ReliabilityScore: 0.9, OnTimeRate: 0.95, DefectRate: 0.01,
				CostMultiplier: 1.0, LeadTimeMean: 5},
		},
		nil,
	)
	bus := event.NewBus(logging.NopLogger())
	reg := tools.NewRegistry(tools.Deps{
		State:      st,
		Bus:        bus,
		KPI:        kpi.NewEngine(appCfg.KPI, logging.NopLogger()),
		Forecaster: forecast.NewForecaster(logging.NopLogger(), 1),
		Detector:   anomaly.NewDetector(appCfg.KPI, logging.NopLogger()),
		Optimizer:  optimize.NewOptimizer(logging.NopLogger()),
		Approval:   appCfg.Approval,
		Log:        logging.NopLogger(),
	})
	cfg := Config{
		LLM:      llm.NewMockClient(1),
		Tools:    reg,
		State:    st,
		Approval: appCfg.Approval,
		Log:      logging.NopLogger(),
	}
	return cfg, st, bus
}

func productIDs(products []*domain.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ProductID
	}
	return ids
}

func lowStockProduct() *domain.Product {
	return &domain.Product{
		ProductID: "PRD-1", Name: "Widget", UnitCost: 10,
		CurrentStock: 30, SafetyStock: 40, ReorderPoint: 80,
		DailyDemandAvg: 10, DailyDemandStd: 2, LeadTimeDays: 4, MinOrderQty: 10,
	}
}

func TestRegistry_RosterOrder(t *testing.T) {
	cfg, _, _ := testAgentConfig(t, nil)

	r := NewRegistry()
	r.Register(NewMarketIntelligence(cfg))
	r.Register(NewInventoryOptimizer(cfg))
	r.Register(NewCoordinator(cfg))

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("Expected 3 agents, got %d", len(all))
	}
	if all[0].Name() != "market_intelligence" || all[2].Name() != "coordinator" {
		t.Errorf("Roster order not preserved: %s, %s", all[0].Name(), all[2].Name())
	}

	if _, ok := r.Get("inventory_optimizer"); !ok {
		t.Error("Lookup by name failed")
	}
	statuses := r.Statuses()
	if statuses["coordinator"]["layer"] != "orchestration" {
		t.Errorf("Expected orchestration layer, got %v", statuses["coordinator"]["layer"])
	}
}

func TestInventoryOptimizer_TriggersReorders(t *testing.T) {
	p := lowStockProduct()
	cfg, _, bus := testAgentConfig(t, []*domain.Product{p})

	var triggered []event.Event
	bus.Subscribe(event.TypeReorderTriggered, func(ev event.Event) {
		triggered = append(triggered, ev)
	})

	a := NewInventoryOptimizer(cfg)
	result := a.RunCycle(context.Background(), Context{Products: []*domain.Product{p}})

	reorders := result["reorders"].([]map[string]any)
	if len(reorders) != 1 {
		t.Fatalf("Expected 1 reorder, got %d", len(reorders))
	}
	if reorders[0]["product_id"] != "PRD-1" {
		t.Errorf("Wrong product in reorder: %v", reorders[0])
	}
	if len(triggered) != 1 {
		t.Fatalf("Expected 1 reorder_triggered event, got %d", len(triggered))
	}
	// Stock of 30 is below the safety stock of 40.
	if triggered[0].Severity != domain.SeverityHigh {
		t.Errorf("Expected high severity below safety stock, got %q", triggered[0].Severity)
	}
}

func TestInventoryOptimizer_HealthyStockNoReorder(t *testing.T) {
	p := lowStockProduct()
	p.CurrentStock = 200
	cfg, _, _ := testAgentConfig(t, []*domain.Product{p})

	a := NewInventoryOptimizer(cfg)
	result := a.RunCycle(context.Background(), Context{Products: []*domain.Product{p}})

	if reorders := result["reorders"].([]map[string]any); len(reorders) != 0 {
		t.Errorf("Expected no reorders at healthy stock, got %d", len(reorders))
	}
}

func TestSupplierManager_CreatesOrderForCheapReorder(t *testing.T) {
	p := lowStockProduct()
	cfg, st, _ := testAgentConfig(t, []*domain.Product{p})

	a := NewSupplierManager(cfg)
	result := a.RunCycle(context.Background(), Context{Products: []*domain.Product{p}})

	orders := result["orders_created"].([]map[string]any)
	if len(orders) != 1 {
		t.Fatalf("Expected 1 order created, got %d", len(orders))
	}
	// qty = ROP - stock + safety = 80 - 30 + 40 = 90, total 900: auto band.
	if orders[0]["approval_status"] != "auto_approved" {
		t.Errorf("Expected auto_approved, got %v", orders[0]["approval_status"])
	}
	if len(st.PurchaseOrders()) != 1 {
		t.Errorf("Expected PO recorded in state, got %d", len(st.PurchaseOrders()))
	}
}

func TestSupplierManager_EscalatesExpensiveReorder(t *testing.T) {
	p := lowStockProduct()
	p.UnitCost = 1000 // qty 90 -> $90k, above the escalation threshold
	cfg, st, _ := testAgentConfig(t, []*domain.Product{p})

	a := NewSupplierManager(cfg)
	result := a.RunCycle(context.Background(), Context{Products: []*domain.Product{p}})

	if orders := result["orders_created"].([]map[string]any); len(orders) != 0 {
		t.Fatalf("Expensive order must not be created directly, got %d", len(orders))
	}
	if len(st.PurchaseOrders()) != 0 {
		t.Errorf("Expected no PO in state, got %d", len(st.PurchaseOrders()))
	}
	pending := st.PendingApprovals()
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending approval, got %d", len(pending))
	}
	if pending[0].RiskLevel != domain.SeverityHigh {
		t.Errorf("Expected high risk, got %q", pending[0].RiskLevel)
	}
}

func TestLogisticsCoordinator_AdvancesOrderLifecycle(t *testing.T) {
	p := lowStockProduct()
	cfg, st, _ := testAgentConfig(t, []*domain.Product{p})

	st.AddPurchaseOrder(&domain.PurchaseOrder{
		POID: "PO-1", SupplierID: "SUP-1", ProductID: "PRD-1",
		Quantity: 50, Status: domain.OrderApproved,
		CreatedAt:        time.Now().UTC(),
		ExpectedDelivery: time.Now().UTC().AddDate(0, 0, 5),
	})

	a := NewLogisticsCoordinator(cfg)
	a.RunCycle(context.Background(), Context{Products: []*domain.Product{p}})

	if got := st.PurchaseOrder("PO-1").Status; got != domain.OrderShipped {
		t.Errorf("Expected approved order to ship, got %q", got)
	}
}

func TestLogisticsCoordinator_DeliversAndCreditsStock(t *testing.T) {
	p := lowStockProduct()
	cfg, st, bus := testAgentConfig(t, []*domain.Product{p})

	// Shipped and past its delivery date: should be delivered this cycle.
	st.AddPurchaseOrder(&domain.PurchaseOrder{
		POID: "PO-2", SupplierID: "SUP-1", ProductID: "PRD-1",
		Quantity: 50, Status: domain.OrderShipped,
		CreatedAt:        time.Now().UTC().AddDate(0, 0, -10),
		ExpectedDelivery: time.Now().UTC().AddDate(0, 0, -2),
	})

	var delayEvents int
	bus.Subscribe(event.TypeDeliveryDelayed, func(event.Event) { delayEvents++ })

	a := NewLogisticsCoordinator(cfg)
	result := a.RunCycle(context.Background(), Context{Products: []*domain.Product{p}})

	if got := st.PurchaseOrder("PO-2").Status; got != domain.OrderDelivered {
		t.Fatalf("Expected delivered, got %q", got)
	}
	if got := st.Product("PRD-1").CurrentStock; got != 80 {
		t.Errorf("Expected stock credited to 80, got %v", got)
	}
	if delays := result["delays"].([]map[string]any); len(delays) != 1 {
		t.Errorf("Expected 1 delay record, got %d", len(delays))
	}
	if delayEvents != 1 {
		t.Errorf("Expected 1 delivery_delayed event, got %d", delayEvents)
	}
}

func TestCoordinator_DetectsAndResolvesConflicts(t *testing.T) {
	cfg, _, _ := testAgentConfig(t, nil)

	a := NewCoordinator(cfg)
	result := a.RunCycle(context.Background(), Context{
		AgentResults: map[string]map[string]any{
			"inventory_optimizer": {
				"reorders": []map[string]any{{"product_id": "PRD-1"}},
			},
			"strategic_planner": {
				"recommendations": []map[string]any{{"product_id": "PRD-1"}},
			},
		},
	})

	conflicts := result["conflicts_resolved"].([]map[string]any)
	if len(conflicts) != 1 {
		t.Fatalf("Expected 1 resolved conflict, got %d", len(conflicts))
	}
	if conflicts[0]["resolved"] != true {
		t.Error("Conflict not marked resolved")
	}
}

func TestCoordinator_PrioritizesActions(t *testing.T) {
	actions := collectActions(map[string]map[string]any{
		"strategic_planner": {
			"adjustments": []map[string]any{{"product_id": "PRD-3"}},
		},
		"inventory_optimizer": {
			"reorders": []map[string]any{{"product_id": "PRD-1"}},
		},
		"risk_assessor": {
			"mitigations": []map[string]any{{"product_id": "PRD-2"}},
		},
	})

	prioritized := prioritizeActions(actions)
	if len(prioritized) != 3 {
		t.Fatalf("Expected 3 actions, got %d", len(prioritized))
	}
	want := []string{"reorders", "mitigations", "adjustments"}
	for i, w := range want {
		if prioritized[i]["type"] != w {
			t.Errorf("Position %d: expected %s, got %v", i, w, prioritized[i]["type"])
		}
	}
}

func TestCoordinator_EmitsCycleComplete(t *testing.T) {
	cfg, _, bus := testAgentConfig(t, nil)

	var done int
	bus.Subscribe(event.TypeCycleComplete, func(event.Event) { done++ })

	a := NewCoordinator(cfg)
	a.RunCycle(context.Background(), Context{})

	if done != 1 {
		t.Errorf("Expected 1 cycle_complete event, got %d", done)
	}
}

func TestReporter_BuildsStructuredReport(t *testing.T) {
	p := lowStockProduct()
	p.CurrentStock = 30 // below safety stock: critical
	cfg, _, _ := testAgentConfig(t, []*domain.Product{p})

	a := NewReporter(cfg)
	result := a.RunCycle(context.Background(), Context{
		CoordinatorSummary: "steady state",
		AgentResults: map[string]map[string]any{
			"inventory_optimizer": {"analysis": "stock is tight"},
		},
	})

	report := result["report"].(map[string]any)
	if report["report_id"] != "RPT-0001" {
		t.Errorf("Expected RPT-0001, got %v", report["report_id"])
	}
	if report["executive_summary"] != "steady state" {
		t.Errorf("Coordinator summary not carried into report")
	}
	inventory := report["inventory"].(map[string]any)
	if inventory["critical"] != 1 {
		t.Errorf("Expected 1 critical product, got %v", inventory["critical"])
	}
	if a.LatestReport() == nil {
		t.Error("LatestReport should return the stored report")
	}
}

func TestBase_ActionLogRecordsFailures(t *testing.T) {
	cfg, _, _ := testAgentConfig(t, nil)

	a := NewInventoryOptimizer(cfg)
	a.act(context.Background(), tools.ActionOptimizeInventory, "optimize missing product",
		tools.Args{"product_id": "PRD-404"})

	actions := a.RecentActions(5)
	if len(actions) != 1 {
		t.Fatalf("Expected 1 logged action, got %d", len(actions))
	}
	if actions[0].Success {
		t.Error("Failed tool call must be logged as unsuccessful")
	}
	if actions[0].Error == "" {
		t.Error("Expected error detail in action log")
	}
}

func TestBase_StatusReflectsCycles(t *testing.T) {
	cfg, _, _ := testAgentConfig(t, nil)

	a := NewMarketIntelligence(cfg)
	a.RunCycle(context.Background(), Context{})
	a.RunCycle(context.Background(), Context{})

	status := a.Status()
	if status["cycle_count"] != 2 {
		t.Errorf("Expected cycle_count 2, got %v", status["cycle_count"])
	}
	if status["active"] != true {
		t.Errorf("Expected active agent, got %v", status["active"])
	}
	if status["last_run"] == nil {
		t.Error("Expected last_run to be set after a cycle")
	}
}
