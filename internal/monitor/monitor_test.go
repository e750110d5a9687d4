package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/kpi"
	"github.com/supplystack/chaincommand/internal/logging"
	"github.com/supplystack/chaincommand/internal/state"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) record(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) byType(eventType string) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, ev := range r.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func testMonitor(t *testing.T, products []*domain.Product) (*Monitor, *state.State, *recorder) {
	t.Helper()
	cfg := config.Default()
	st := state.New()
	st.SetDataset(products, nil, nil)
	bus := event.NewBus(logging.NopLogger())

	rec := &recorder{}
	bus.SubscribeAll(rec.record)

	m := New(cfg.Simulation, st, bus, kpi.NewEngine(cfg.KPI, logging.NopLogger()), nil, logging.NopLogger())
	return m, st, rec
}

func TestTick_StockoutIsExclusive(t *testing.T) {
	m, _, rec := testMonitor(t, []*domain.Product{
		{ProductID: "PRD-1", Name: "Widget", CurrentStock: 0, SafetyStock: 40, ReorderPoint: 80},
	})

	m.Tick()

	if got := rec.byType(event.TypeStockoutAlert); len(got) != 1 {
		t.Fatalf("Expected 1 stockout alert, got %d", len(got))
	} else if got[0].Severity != domain.SeverityCritical {
		t.Errorf("Expected critical severity, got %q", got[0].Severity)
	}
	// Zero stock is also below safety stock, but the tiers are exclusive.
	if got := rec.byType(event.TypeLowStockAlert); len(got) != 0 {
		t.Errorf("Stockout must not also raise low stock, got %d", len(got))
	}
}

func TestTick_LowStockAndOverstock(t *testing.T) {
	m, _, rec := testMonitor(t, []*domain.Product{
		{ProductID: "PRD-1", Name: "Low", CurrentStock: 20, SafetyStock: 40, ReorderPoint: 80},
		{ProductID: "PRD-2", Name: "Over", CurrentStock: 500, SafetyStock: 40, ReorderPoint: 80},
		{ProductID: "PRD-3", Name: "Fine", CurrentStock: 100, SafetyStock: 40, ReorderPoint: 80},
	})

	m.Tick()

	low := rec.byType(event.TypeLowStockAlert)
	if len(low) != 1 || low[0].Severity != domain.SeverityHigh {
		t.Errorf("Expected 1 high low-stock alert, got %+v", low)
	}
	over := rec.byType(event.TypeOverstockAlert)
	if len(over) != 1 || over[0].Severity != domain.SeverityMedium {
		t.Errorf("Expected 1 medium overstock alert, got %+v", over)
	}
	if over[0].Data["product_id"] != "PRD-2" {
		t.Errorf("Overstock alert for wrong product: %v", over[0].Data)
	}
}

func TestTick_AlwaysEmitsTickEvent(t *testing.T) {
	m, _, rec := testMonitor(t, nil)

	m.Tick()
	m.Tick()

	ticks := rec.byType(event.TypeTick)
	if len(ticks) != 2 {
		t.Fatalf("Expected 2 tick events, got %d", len(ticks))
	}
	if ticks[1].Data["tick"] != 2 {
		t.Errorf("Expected tick counter 2, got %v", ticks[1].Data["tick"])
	}
}

func TestTick_KPISnapshotEveryFifthTick(t *testing.T) {
	m, _, rec := testMonitor(t, []*domain.Product{
		{ProductID: "PRD-1", Name: "Widget", CurrentStock: 100, SafetyStock: 40, ReorderPoint: 80, DailyDemandAvg: 10, UnitCost: 5},
	})

	for i := 0; i < 10; i++ {
		m.Tick()
	}

	if got := rec.byType(event.TypeKPISnapshotCreated); len(got) != 2 {
		t.Errorf("Expected 2 KPI snapshots over 10 ticks, got %d", len(got))
	}
}

func TestTick_DeliveryDelaySeverity(t *testing.T) {
	m, st, rec := testMonitor(t, nil)

	now := time.Now().UTC()
	st.AddPurchaseOrder(&domain.PurchaseOrder{
		POID: "PO-1", ProductID: "PRD-1", SupplierID: "SUP-1",
		Status: domain.OrderShipped, ExpectedDelivery: now.AddDate(0, 0, -5),
	})
	st.AddPurchaseOrder(&domain.PurchaseOrder{
		POID: "PO-2", ProductID: "PRD-2", SupplierID: "SUP-1",
		Status: domain.OrderShipped, ExpectedDelivery: now.AddDate(0, 0, -1),
	})
	st.AddPurchaseOrder(&domain.PurchaseOrder{
		POID: "PO-3", ProductID: "PRD-3", SupplierID: "SUP-1",
		Status: domain.OrderDelivered, ExpectedDelivery: now.AddDate(0, 0, -9),
	})

	m.Tick()

	delays := rec.byType(event.TypeDeliveryDelayed)
	if len(delays) != 2 {
		t.Fatalf("Expected 2 delay alerts (delivered order excluded), got %d", len(delays))
	}
	bySeverity := map[domain.Severity]int{}
	for _, ev := range delays {
		bySeverity[ev.Severity]++
	}
	if bySeverity[domain.SeverityHigh] != 1 || bySeverity[domain.SeverityMedium] != 1 {
		t.Errorf("Expected one high (5d) and one medium (1d) delay, got %v", bySeverity)
	}
}

func TestStartStop_Lifecycle(t *testing.T) {
	m, _, _ := testMonitor(t, nil)

	m.Start(context.Background())
	m.Stop()
	// A second stop must not panic or block.
	m.Stop()
}

// TestStartStop_Immediate hammers the start/stop pair so that Stop can
// run before the loop goroutine is scheduled. The loop must close the
// channel handed to it at start, not whatever the struct field holds by
// the time it runs.
func TestStartStop_Immediate(t *testing.T) {
	m, _, _ := testMonitor(t, nil)

	for i := 0; i < 2000; i++ {
		m.Start(context.Background())
		m.Stop()
	}
}

func TestStart_DisabledIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.EnableMonitoring = false
	st := state.New()
	bus := event.NewBus(logging.NopLogger())
	m := New(cfg.Simulation, st, bus, kpi.NewEngine(cfg.KPI, logging.NopLogger()), nil, logging.NopLogger())

	m.Start(context.Background())
	m.Stop()

	if m.TickCount() != 0 {
		t.Errorf("Disabled monitor must not tick, got %d", m.TickCount())
	}
}

func TestInterval_ScalesWithSpeed(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.TickSeconds = 10
	cfg.Simulation.Speed = 5
	m := New(cfg.Simulation, state.New(), event.NewBus(logging.NopLogger()),
		kpi.NewEngine(cfg.KPI, logging.NopLogger()), nil, logging.NopLogger())

	if got := m.Interval(); got != 2*time.Second {
		t.Errorf("Expected 2s interval at speed 5, got %v", got)
	}

	cfg.Simulation.Speed = 0 // clamped to 0.1
	m = New(cfg.Simulation, state.New(), event.NewBus(logging.NopLogger()),
		kpi.NewEngine(cfg.KPI, logging.NopLogger()), nil, logging.NopLogger())
	if got := m.Interval(); got != 100*time.Second {
		t.Errorf("Expected 100s interval at clamped speed, got %v", got)
	}
}
