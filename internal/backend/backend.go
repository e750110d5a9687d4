// Package backend persists cycle outcomes for later analysis. The
// orchestrator writes through the Backend interface at the end of each
// decision cycle; the HTTP API reads back KPI trends and event history.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/logging"
)

// TrendPoint is one persisted KPI metric value.
type TrendPoint struct {
	Cycle     int       `json:"cycle"`
	Timestamp time.Time `json:"timestamp"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
}

// StoredEvent is one persisted supply chain event.
type StoredEvent struct {
	EventID     string    `json:"event_id"`
	Cycle       int       `json:"cycle"`
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	Severity    string    `json:"severity"`
	Source      string    `json:"source_agent"`
	Description string    `json:"description"`
}

// Backend stores cycle outcomes.
type Backend interface {
	// Setup prepares the store (creates tables, opens files).
	Setup(ctx context.Context) error

	// Teardown flushes and closes the store.
	Teardown(ctx context.Context) error

	// PersistCycle records the end-of-cycle KPI snapshot, the events
	// published during the cycle, the current purchase order book, and
	// the product and supplier state at cycle end.
	PersistCycle(ctx context.Context, cycle int, snapshot domain.KPISnapshot, events []event.Event, orders []*domain.PurchaseOrder, products []*domain.Product, suppliers []*domain.Supplier) error

	// PersistDemandHistory bulk-loads the generated demand dataset.
	PersistDemandHistory(ctx context.Context, records []domain.DemandRecord) error

	// QueryKPITrend returns up to limit persisted values for one metric,
	// oldest first.
	QueryKPITrend(ctx context.Context, metric string, limit int) ([]TrendPoint, error)

	// QueryEvents returns up to limit persisted events, newest first.
	// An empty eventType matches all types.
	QueryEvents(ctx context.Context, eventType string, limit int) ([]StoredEvent, error)
}

// New selects a backend from configuration.
func New(cfg config.BackendConfig, log *logging.Logger) (Backend, error) {
	switch cfg.Driver {
	case "", "none":
		return NullBackend{}, nil
	case "sqlite":
		return NewSQLiteBackend(cfg.Path, log), nil
	default:
		return nil, fmt.Errorf("backend: unknown driver %q", cfg.Driver)
	}
}

// NullBackend discards everything. Used when persistence is disabled.
type NullBackend struct{}

func (NullBackend) Setup(context.Context) error    { return nil }
func (NullBackend) Teardown(context.Context) error { return nil }

func (NullBackend) PersistCycle(context.Context, int, domain.KPISnapshot, []event.Event, []*domain.PurchaseOrder, []*domain.Product, []*domain.Supplier) error {
	return nil
}

func (NullBackend) PersistDemandHistory(context.Context, []domain.DemandRecord) error {
	return nil
}

func (NullBackend) QueryKPITrend(context.Context, string, int) ([]TrendPoint, error) {
	return nil, nil
}

func (NullBackend) QueryEvents(context.Context, string, int) ([]StoredEvent, error) {
	return nil, nil
}
