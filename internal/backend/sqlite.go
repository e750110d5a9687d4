package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/logging"
)

// SQLiteBackend persists cycle outcomes to a SQLite database file.
type SQLiteBackend struct {
	path string
	log  *logging.Logger
	db   *sql.DB
}

// NewSQLiteBackend prepares a backend for the given database path. The
// file is opened in Setup.
func NewSQLiteBackend(path string, log *logging.Logger) *SQLiteBackend {
	if log == nil {
		log = logging.NopLogger()
	}
	return &SQLiteBackend{path: path, log: log.WithComponent("backend")}
}

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
    cycle INTEGER PRIMARY KEY,
    timestamp TEXT NOT NULL,
    event_count INTEGER NOT NULL,
    order_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS kpi_snapshots (
    cycle INTEGER NOT NULL,
    timestamp TEXT NOT NULL,
    metric TEXT NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (cycle, metric)
);

CREATE TABLE IF NOT EXISTS events (
    event_id TEXT PRIMARY KEY,
    cycle INTEGER NOT NULL,
    timestamp TEXT NOT NULL,
    event_type TEXT NOT NULL,
    severity TEXT NOT NULL,
    source_agent TEXT NOT NULL,
    description TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS purchase_orders (
    po_id TEXT PRIMARY KEY,
    supplier_id TEXT NOT NULL,
    product_id TEXT NOT NULL,
    quantity REAL NOT NULL,
    total_cost REAL NOT NULL,
    status TEXT NOT NULL,
    approval_status TEXT NOT NULL,
    created_at TEXT NOT NULL,
    expected_delivery TEXT
);

CREATE TABLE IF NOT EXISTS product_snapshots (
    cycle INTEGER NOT NULL,
    product_id TEXT NOT NULL,
    current_stock REAL NOT NULL,
    reorder_point REAL NOT NULL,
    safety_stock REAL NOT NULL,
    unit_cost REAL NOT NULL,
    PRIMARY KEY (cycle, product_id)
);

CREATE TABLE IF NOT EXISTS suppliers (
    supplier_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    reliability_score REAL NOT NULL,
    lead_time_mean REAL NOT NULL,
    cost_multiplier REAL NOT NULL,
    on_time_rate REAL NOT NULL,
    defect_rate REAL NOT NULL,
    is_active INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS demand_history (
    product_id TEXT NOT NULL,
    date TEXT NOT NULL,
    quantity REAL NOT NULL,
    promotion INTEGER NOT NULL,
    holiday INTEGER NOT NULL,
    PRIMARY KEY (product_id, date)
);

CREATE INDEX IF NOT EXISTS idx_events_cycle ON events(cycle);
CREATE INDEX IF NOT EXISTS idx_kpi_metric ON kpi_snapshots(metric, cycle);
`

// Setup opens the database and creates the schema.
func (b *SQLiteBackend) Setup(ctx context.Context) error {
	dsn := b.path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("backend: open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("backend: ping db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("backend: migrate: %w", err)
	}
	b.db = db
	b.log.Info("backend_ready", "driver", "sqlite", "path", b.path)
	return nil
}

// Teardown closes the database.
func (b *SQLiteBackend) Teardown(context.Context) error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// PersistCycle writes the cycle row, the KPI snapshot (one row per
// metric), the cycle's events, the current order book, per-cycle
// product state, and the supplier pool. Events are deduplicated on id;
// orders and suppliers are upserted so later values stick.
func (b *SQLiteBackend) PersistCycle(ctx context.Context, cycle int, snapshot domain.KPISnapshot, events []event.Event, orders []*domain.PurchaseOrder, products []*domain.Product, suppliers []*domain.Supplier) error {
	if b.db == nil {
		return fmt.Errorf("backend: not set up")
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("backend: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO cycles (cycle, timestamp, event_count, order_count) VALUES (?, ?, ?, ?)`,
		cycle, now, len(events), len(orders),
	); err != nil {
		return fmt.Errorf("backend: insert cycle: %w", err)
	}

	ts := snapshot.Timestamp.UTC().Format(time.RFC3339)
	for metric, value := range snapshot.Map() {
		v, ok := value.(float64)
		if !ok {
			if i, isInt := value.(int); isInt {
				v = float64(i)
			} else {
				continue
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO kpi_snapshots (cycle, timestamp, metric, value) VALUES (?, ?, ?, ?)`,
			cycle, ts, metric, v,
		); err != nil {
			return fmt.Errorf("backend: insert kpi %s: %w", metric, err)
		}
	}

	for _, ev := range events {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO events (event_id, cycle, timestamp, event_type, severity, source_agent, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.EventID, cycle, ev.Timestamp.UTC().Format(time.RFC3339),
			ev.EventType, string(ev.Severity), ev.Source, ev.Description,
		); err != nil {
			return fmt.Errorf("backend: insert event: %w", err)
		}
	}

	for _, po := range orders {
		expected := ""
		if !po.ExpectedDelivery.IsZero() {
			expected = po.ExpectedDelivery.UTC().Format(time.RFC3339)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO purchase_orders
			 (po_id, supplier_id, product_id, quantity, total_cost, status, approval_status, created_at, expected_delivery)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			po.POID, po.SupplierID, po.ProductID, po.Quantity, po.TotalCost,
			string(po.Status), string(po.ApprovalStatus),
			po.CreatedAt.UTC().Format(time.RFC3339), expected,
		); err != nil {
			return fmt.Errorf("backend: upsert order: %w", err)
		}
	}

	for _, p := range products {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO product_snapshots
			 (cycle, product_id, current_stock, reorder_point, safety_stock, unit_cost)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			cycle, p.ProductID, p.CurrentStock, p.ReorderPoint, p.SafetyStock, p.UnitCost,
		); err != nil {
			return fmt.Errorf("backend: insert product snapshot: %w", err)
		}
	}

	for _, s := range suppliers {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO suppliers
			 (supplier_id, name, reliability_score, lead_time_mean, cost_multiplier, on_time_rate, defect_rate, is_active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.SupplierID, s.Name, s.ReliabilityScore, s.LeadTimeMean,
			s.CostMultiplier, s.OnTimeRate, s.DefectRate, boolToInt(s.IsActive),
		); err != nil {
			return fmt.Errorf("backend: upsert supplier: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("backend: commit: %w", err)
	}
	b.log.Debug("cycle_persisted", "cycle", cycle, "events", len(events), "orders", len(orders))
	return nil
}

// PersistDemandHistory bulk-loads demand records in one transaction.
func (b *SQLiteBackend) PersistDemandHistory(ctx context.Context, records []domain.DemandRecord) error {
	if b.db == nil {
		return fmt.Errorf("backend: not set up")
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("backend: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO demand_history (product_id, date, quantity, promotion, holiday)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("backend: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ProductID, r.Date.UTC().Format("2006-01-02"), r.Quantity,
			boolToInt(r.IsPromotion), boolToInt(r.IsHoliday),
		); err != nil {
			return fmt.Errorf("backend: insert demand: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("backend: commit: %w", err)
	}
	b.log.Info("demand_history_persisted", "records", len(records))
	return nil
}

// QueryKPITrend returns persisted values for one metric, oldest first.
func (b *SQLiteBackend) QueryKPITrend(ctx context.Context, metric string, limit int) ([]TrendPoint, error) {
	if b.db == nil {
		return nil, fmt.Errorf("backend: not set up")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT cycle, timestamp, value FROM kpi_snapshots
		 WHERE metric = ? ORDER BY cycle DESC LIMIT ?`, metric, limit)
	if err != nil {
		return nil, fmt.Errorf("backend: query trend: %w", err)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		var ts string
		if err := rows.Scan(&p.Cycle, &ts, &p.Value); err != nil {
			return nil, fmt.Errorf("backend: scan trend: %w", err)
		}
		p.Metric = metric
		p.Timestamp, _ = time.Parse(time.RFC3339, ts)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("backend: trend rows: %w", err)
	}

	// Reverse to oldest-first for charting.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// QueryEvents returns persisted events, newest first. An empty
// eventType matches all types.
func (b *SQLiteBackend) QueryEvents(ctx context.Context, eventType string, limit int) ([]StoredEvent, error) {
	if b.db == nil {
		return nil, fmt.Errorf("backend: not set up")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_id, cycle, timestamp, event_type, severity, source_agent, description
		 FROM events`
	args := []any{}
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY timestamp DESC, event_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("backend: query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var ts string
		if err := rows.Scan(&ev.EventID, &ev.Cycle, &ts, &ev.EventType, &ev.Severity, &ev.Source, &ev.Description); err != nil {
			return nil, fmt.Errorf("backend: scan event: %w", err)
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("backend: event rows: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
