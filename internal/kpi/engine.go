// Package kpi computes supply chain KPI snapshots and checks them
// against configured thresholds.
package kpi

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/logging"
)

// Engine calculates KPI snapshots and keeps an append-only history.
// Safe for concurrent use: the monitor, orchestrator, and HTTP handlers
// all read from it.
type Engine struct {
	cfg config.KPIConfig
	log *logging.Logger

	mu      sync.RWMutex
	history []domain.KPISnapshot
}

// NewEngine creates a KPI engine with the given thresholds.
func NewEngine(cfg config.KPIConfig, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Engine{
		cfg: cfg,
		log: log.WithComponent("kpi_engine"),
	}
}

// seedMAPE is the forecast error assumed before any snapshot exists.
const seedMAPE = 12.0

// CalculateSnapshot computes all twelve metrics from current system
// state and appends the result to the history.
func (e *Engine) CalculateSnapshot(products []*domain.Product, orders []*domain.PurchaseOrder, suppliers []*domain.Supplier) domain.KPISnapshot {
	var delivered []*domain.PurchaseOrder
	totalOrders := 0
	for _, po := range orders {
		if po.Status != domain.OrderCancelled {
			totalOrders++
		}
		if po.Status == domain.OrderDelivered {
			delivered = append(delivered, po)
		}
	}

	// OTIF: delivered orders are treated as on-time and in-full.
	onTimeInFull := 0
	for _, po := range delivered {
		if !po.ExpectedDelivery.IsZero() && !po.CreatedAt.IsZero() {
			onTimeInFull++
		}
	}
	otif := float64(onTimeInFull) / math.Max(float64(len(delivered)), 1)

	var totalDemand, fulfilled, totalStock, totalValue, annualCOGS float64
	stockoutCount := 0
	backordered := 0
	for _, p := range products {
		totalDemand += p.DailyDemandAvg
		fulfilled += math.Min(p.CurrentStock, p.DailyDemandAvg)
		totalStock += p.CurrentStock
		totalValue += p.CurrentStock * p.UnitCost
		annualCOGS += p.DailyDemandAvg * p.UnitCost * 365
		if p.CurrentStock <= 0 {
			stockoutCount++
			if p.DailyDemandAvg > 0 {
				backordered++
			}
		}
	}
	fillRate := fulfilled / math.Max(totalDemand, 1)
	dsi := totalStock / math.Max(totalDemand, 1)

	// MAPE is owned by the forecaster; carry the last known value
	// forward, seeding the very first snapshot.
	mape := seedMAPE
	e.mu.RLock()
	if len(e.history) > 0 {
		mape = e.history[len(e.history)-1].MAPE
	}
	e.mu.RUnlock()

	carryingCost := totalValue * 0.25 / 365

	var cycleSum float64
	cycleN := 0
	for _, po := range delivered {
		if !po.ExpectedDelivery.IsZero() && !po.CreatedAt.IsZero() {
			cycleSum += po.ExpectedDelivery.Sub(po.CreatedAt).Seconds() / 86400
			cycleN++
		}
	}
	orderCycleTime := 7.0
	if cycleN > 0 {
		orderCycleTime = cycleSum / float64(cycleN)
	}

	perfect := 0
	for _, po := range delivered {
		if po.Quantity > 0 {
			perfect++
		}
	}
	perfectOrderRate := float64(perfect) / math.Max(float64(totalOrders), 1)

	inventoryTurnover := annualCOGS / math.Max(totalValue, 1)
	backorderRate := float64(backordered) / math.Max(float64(len(products)), 1)

	defectSum := 0.0
	activeSuppliers := 0
	for _, s := range suppliers {
		if s.IsActive {
			defectSum += s.DefectRate
			activeSuppliers++
		}
	}
	supplierDefectRate := 0.02
	if activeSuppliers > 0 {
		supplierDefectRate = defectSum / float64(activeSuppliers)
	}

	snapshot := domain.KPISnapshot{
		Timestamp:           time.Now().UTC(),
		OTIF:                round4(otif),
		FillRate:            round4(fillRate),
		MAPE:                round2(mape),
		DSI:                 round1(dsi),
		StockoutCount:       stockoutCount,
		TotalInventoryValue: round2(totalValue),
		CarryingCost:        round2(carryingCost),
		OrderCycleTime:      round1(orderCycleTime),
		PerfectOrderRate:    round4(perfectOrderRate),
		InventoryTurnover:   round2(inventoryTurnover),
		BackorderRate:       round4(backorderRate),
		SupplierDefectRate:  round4(supplierDefectRate),
	}

	e.mu.Lock()
	e.history = append(e.history, snapshot)
	e.mu.Unlock()

	e.log.Info("kpi_snapshot",
		"otif", snapshot.OTIF,
		"fill_rate", snapshot.FillRate,
		"dsi", snapshot.DSI,
		"stockouts", snapshot.StockoutCount,
	)
	return snapshot
}

// SetMAPE records a fresh forecast accuracy figure on the latest
// snapshot so subsequent snapshots carry it forward.
func (e *Engine) SetMAPE(mape float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) > 0 {
		e.history[len(e.history)-1].MAPE = round2(mape)
	}
}

// CheckThresholds compares a snapshot against the configured targets
// and returns one violation event per breached threshold. Comparisons
// are strict: a metric exactly at its target does not violate.
func (e *Engine) CheckThresholds(s domain.KPISnapshot) []event.Event {
	var events []event.Event

	violation := func(sev domain.Severity, desc, metric string, value, target float64) event.Event {
		return event.New(event.TypeKPIThresholdViolated, sev, "kpi_engine", desc, map[string]any{
			"metric": metric,
			"value":  value,
			"target": target,
		})
	}

	if s.OTIF < e.cfg.OTIFTarget {
		events = append(events, violation(domain.SeverityHigh,
			fmt.Sprintf("OTIF %.1f%% below target %.1f%%", s.OTIF*100, e.cfg.OTIFTarget*100),
			"otif", s.OTIF, e.cfg.OTIFTarget))
	}
	if s.FillRate < e.cfg.FillRateTarget {
		events = append(events, violation(domain.SeverityHigh,
			fmt.Sprintf("Fill rate %.1f%% below target %.1f%%", s.FillRate*100, e.cfg.FillRateTarget*100),
			"fill_rate", s.FillRate, e.cfg.FillRateTarget))
	}
	if s.MAPE > e.cfg.MAPEThreshold {
		events = append(events, violation(domain.SeverityMedium,
			fmt.Sprintf("MAPE %.1f%% exceeds threshold %.1f%%", s.MAPE, e.cfg.MAPEThreshold),
			"mape", s.MAPE, e.cfg.MAPEThreshold))
	}
	if s.DSI > e.cfg.DSIMax {
		events = append(events, violation(domain.SeverityMedium,
			fmt.Sprintf("DSI %.1f exceeds max %.1f", s.DSI, e.cfg.DSIMax),
			"dsi", s.DSI, e.cfg.DSIMax))
	}
	if s.DSI < e.cfg.DSIMin {
		events = append(events, violation(domain.SeverityHigh,
			fmt.Sprintf("DSI %.1f below min %.1f", s.DSI, e.cfg.DSIMin),
			"dsi", s.DSI, e.cfg.DSIMin))
	}
	if s.StockoutCount > e.cfg.StockoutTolerance {
		events = append(events, event.New(event.TypeKPIThresholdViolated, domain.SeverityCritical, "kpi_engine",
			fmt.Sprintf("Stockout count %d exceeds tolerance %d", s.StockoutCount, e.cfg.StockoutTolerance),
			map[string]any{
				"metric": "stockout_count",
				"value":  s.StockoutCount,
				"target": e.cfg.StockoutTolerance,
			}))
	}

	return events
}

// Trend summarizes the recent direction of one metric.
type Trend struct {
	Metric     string      `json:"metric"`
	Values     []float64   `json:"values"`
	Timestamps []time.Time `json:"timestamps"`
	Current    float64     `json:"current"`
	Average    float64     `json:"average"`
	Trend      string      `json:"trend"`
}

// Metrics where a falling value is an improvement.
var lowerIsBetter = map[string]bool{
	"mape":                 true,
	"dsi":                  true,
	"stockout_count":       true,
	"carrying_cost":        true,
	"backorder_rate":       true,
	"supplier_defect_rate": true,
	"order_cycle_time":     true,
}

// GetTrend returns trend data for one metric over the last periods
// snapshots. Fewer than three points yields "insufficient_data"; a
// slope within ±0.001 is "stable".
func (e *Engine) GetTrend(metric string, periods int) Trend {
	e.mu.RLock()
	recent := e.history
	if periods > 0 && len(recent) > periods {
		recent = recent[len(recent)-periods:]
	}
	values := make([]float64, len(recent))
	timestamps := make([]time.Time, len(recent))
	for i, s := range recent {
		values[i] = s.Metric(metric)
		timestamps[i] = s.Timestamp
	}
	e.mu.RUnlock()

	t := Trend{Metric: metric, Values: values, Timestamps: timestamps}
	if len(values) == 0 {
		t.Trend = "no_data"
		return t
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	t.Current = values[len(values)-1]
	t.Average = round4(sum / float64(len(values)))

	if len(values) < 3 {
		t.Trend = "insufficient_data"
		return t
	}

	slope := slope(values)
	improving := slope > 0.001
	declining := slope < -0.001
	if lowerIsBetter[metric] {
		improving, declining = declining, improving
	}
	switch {
	case improving:
		t.Trend = "improving"
	case declining:
		t.Trend = "declining"
	default:
		t.Trend = "stable"
	}
	return t
}

// slope is the least-squares slope of values against their indices.
func slope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// History returns a copy of the snapshot history, oldest first.
func (e *Engine) History() []domain.KPISnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.KPISnapshot, len(e.history))
	copy(out, e.history)
	return out
}

// Latest returns the most recent snapshot, or false if none exists.
func (e *Engine) Latest() (domain.KPISnapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.history) == 0 {
		return domain.KPISnapshot{}, false
	}
	return e.history[len(e.history)-1], true
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
