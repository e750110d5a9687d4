// Package monitor implements the proactive monitoring loop: a periodic
// sweep over shared state that raises stock, KPI, delivery, and anomaly
// alerts on the event bus before any agent asks for them.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/supplystack/chaincommand/internal/anomaly"
	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/kpi"
	"github.com/supplystack/chaincommand/internal/logging"
	"github.com/supplystack/chaincommand/internal/state"
)

const (
	kpiCheckEvery     = 5 // ticks between KPI snapshots
	anomalyCheckEvery = 3 // ticks between anomaly batch scans
	anomalyBatchSize  = 10
	overstockFactor   = 3.0 // alert above this multiple of the reorder point
)

// Monitor sweeps shared state every tick.
type Monitor struct {
	cfg      config.SimulationConfig
	st       *state.State
	bus      *event.Bus
	kpi      *kpi.Engine
	detector *anomaly.Detector
	log      *logging.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	tickCount int
}

// New builds a Monitor over the shared services. The detector may be
// nil, in which case anomaly sweeps are skipped.
func New(cfg config.SimulationConfig, st *state.State, bus *event.Bus, engine *kpi.Engine, detector *anomaly.Detector, log *logging.Logger) *Monitor {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Monitor{
		cfg:      cfg,
		st:       st,
		bus:      bus,
		kpi:      engine,
		detector: detector,
		log:      log.WithComponent("monitor"),
	}
}

// Interval is the sleep between ticks, scaled by simulation speed.
func (m *Monitor) Interval() time.Duration {
	speed := m.cfg.Speed
	if speed < 0.1 {
		speed = 0.1
	}
	return time.Duration(m.cfg.TickSeconds / speed * float64(time.Second))
}

// Start launches the tick loop. It is a no-op when monitoring is
// disabled or the loop already runs.
func (m *Monitor) Start(ctx context.Context) {
	if !m.cfg.EnableMonitoring {
		m.log.Info("proactive_monitoring_disabled")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.loop(loopCtx, done)
	m.log.Info("proactive_monitor_started", "tick_seconds", m.cfg.TickSeconds)
}

// loop owns its done channel directly: Stop nils the struct fields, so
// the goroutine must not read them.
func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Stop cancels the loop and waits for it to exit. Safe to call more
// than once, and before Start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.log.Info("proactive_monitor_stopped", "total_ticks", m.TickCount())
}

// TickCount returns the number of completed ticks.
func (m *Monitor) TickCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickCount
}

// Tick runs one monitoring sweep. Exposed so the orchestrator and tests
// can drive the monitor without the timer loop.
func (m *Monitor) Tick() {
	m.mu.Lock()
	m.tickCount++
	tick := m.tickCount
	m.mu.Unlock()

	products := m.st.Products()
	orders := m.st.PurchaseOrders()

	m.checkStockLevels(products)

	if tick%kpiCheckEvery == 0 {
		m.checkKPIs(products, orders)
	}

	m.checkDeliveries(orders)

	if m.detector != nil && tick%anomalyCheckEvery == 0 {
		batch := products
		if len(batch) > anomalyBatchSize {
			batch = batch[:anomalyBatchSize]
		}
		for _, an := range m.detector.DetectBatch(batch) {
			m.bus.Publish(event.New(
				event.TypeAnomalyDetected, an.Severity, "monitor",
				an.Description, an.Map(),
			))
		}
	}

	m.bus.Publish(event.New(
		event.TypeTick, domain.SeverityLow, "monitor",
		fmt.Sprintf("Monitor tick #%d", tick),
		map[string]any{"tick": tick},
	))
}

// checkStockLevels raises at most one stock alert per product per tick:
// stockout, low stock, and overstock are mutually exclusive tiers.
func (m *Monitor) checkStockLevels(products []*domain.Product) {
	for _, p := range products {
		switch {
		case p.CurrentStock <= 0:
			m.bus.Publish(event.New(
				event.TypeStockoutAlert, domain.SeverityCritical, "monitor",
				fmt.Sprintf("STOCKOUT: %s (%s) has zero stock", p.Name, p.ProductID),
				map[string]any{"product_id": p.ProductID, "current_stock": p.CurrentStock},
			))

		case p.CurrentStock < p.SafetyStock:
			m.bus.Publish(event.New(
				event.TypeLowStockAlert, domain.SeverityHigh, "monitor",
				fmt.Sprintf("Low stock: %s (%s) at %.0f (safety=%.0f)",
					p.Name, p.ProductID, p.CurrentStock, p.SafetyStock),
				map[string]any{
					"product_id":    p.ProductID,
					"current_stock": p.CurrentStock,
					"safety_stock":  p.SafetyStock,
				},
			))

		case p.CurrentStock > p.ReorderPoint*overstockFactor:
			m.bus.Publish(event.New(
				event.TypeOverstockAlert, domain.SeverityMedium, "monitor",
				fmt.Sprintf("Overstock: %s (%s) at %.0f (3x ROP=%.0f)",
					p.Name, p.ProductID, p.CurrentStock, p.ReorderPoint*overstockFactor),
				map[string]any{
					"product_id":    p.ProductID,
					"current_stock": p.CurrentStock,
					"reorder_point": p.ReorderPoint,
				},
			))
		}
	}
}

func (m *Monitor) checkKPIs(products []*domain.Product, orders []*domain.PurchaseOrder) {
	snapshot := m.kpi.CalculateSnapshot(products, orders, m.st.Suppliers())
	for _, violation := range m.kpi.CheckThresholds(snapshot) {
		m.bus.Publish(violation)
	}
	m.bus.Publish(event.New(
		event.TypeKPISnapshotCreated, domain.SeverityLow, "monitor",
		"KPI snapshot calculated", snapshot.Map(),
	))
}

func (m *Monitor) checkDeliveries(orders []*domain.PurchaseOrder) {
	now := time.Now().UTC()
	for _, po := range orders {
		if !po.Active() || po.ExpectedDelivery.IsZero() || !po.ExpectedDelivery.Before(now) {
			continue
		}
		delayDays := int(now.Sub(po.ExpectedDelivery).Hours() / 24)
		severity := domain.SeverityMedium
		if delayDays > 3 {
			severity = domain.SeverityHigh
		}
		m.bus.Publish(event.New(
			event.TypeDeliveryDelayed, severity, "monitor",
			fmt.Sprintf("PO %s delayed by %d days (product=%s, supplier=%s)",
				po.POID, delayDays, po.ProductID, po.SupplierID),
			map[string]any{
				"po_id":       po.POID,
				"delay_days":  delayDays,
				"product_id":  po.ProductID,
				"supplier_id": po.SupplierID,
			},
		))
	}
}
