// Package event provides the supply chain event record and the pub-sub
// bus that connects the monitor, agents, and orchestrator without direct
// dependencies between them.
package event

import (
	"time"

	"github.com/supplystack/chaincommand/internal/domain"
)

// Event is a single supply chain occurrence: an alert, a KPI violation,
// a cycle boundary, or an agent action worth broadcasting.
type Event struct {
	EventID     string          `json:"event_id"`
	Timestamp   time.Time       `json:"timestamp"`
	EventType   string          `json:"event_type"`
	Severity    domain.Severity `json:"severity"`
	Source      string          `json:"source_agent"`
	Description string          `json:"description"`
	Data        map[string]any  `json:"data,omitempty"`
	Resolved    bool            `json:"resolved"`
}

// New creates an event with a fresh id and the current UTC time.
func New(eventType string, severity domain.Severity, source, description string, data map[string]any) Event {
	return Event{
		EventID:     domain.NewID("EVT"),
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		Severity:    severity,
		Source:      source,
		Description: description,
		Data:        data,
	}
}

// Well-known event types published by the core components. Agents may
// publish additional types via the emit_event tool; subscribers match
// on the string.
const (
	TypeTick                 = "tick"
	TypeStockoutAlert        = "stockout_alert"
	TypeLowStockAlert        = "low_stock_alert"
	TypeOverstockAlert       = "overstock_alert"
	TypeDeliveryDelayed      = "delivery_delayed"
	TypeKPIThresholdViolated = "kpi_threshold_violated"
	TypeKPISnapshotCreated   = "kpi_snapshot_created"
	TypeKPITrendAlert        = "kpi_trend_alert"
	TypeAnomalyDetected      = "anomaly_detected"
	TypeNewMarketIntel       = "new_market_intel"
	TypeForecastUpdated      = "forecast_updated"
	TypeReorderTriggered     = "reorder_triggered"
	TypeSupplierIssue        = "supplier_issue"
	TypeQualityAlert         = "quality_alert"
	TypePOCreated            = "po_created"
	TypeSupplyRiskAlert      = "supply_risk_alert"
	TypeApprovalRequested    = "human_approval_requested"
	TypeApprovalDecided      = "approval_decided"
	TypeCycleComplete        = "cycle_complete"
)
