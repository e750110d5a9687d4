// Package tools implements the capabilities agents can invoke. The set
// of actions is a closed table: every capability is an ActionKind
// constant registered in the Registry at construction, and agents can
// only reach what the table holds.
package tools

import (
	"context"
	"fmt"

	"github.com/supplystack/chaincommand/internal/anomaly"
	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/forecast"
	"github.com/supplystack/chaincommand/internal/kpi"
	"github.com/supplystack/chaincommand/internal/logging"
	"github.com/supplystack/chaincommand/internal/optimize"
	"github.com/supplystack/chaincommand/internal/state"
)

// ActionKind names one capability in the closed table.
type ActionKind string

// The complete capability table.
const (
	ActionQueryDemandHistory  ActionKind = "query_demand_history"
	ActionQueryInventory      ActionKind = "query_inventory_status"
	ActionQuerySupplierInfo   ActionKind = "query_supplier_info"
	ActionQueryKPIHistory     ActionKind = "query_kpi_history"
	ActionRunDemandForecast   ActionKind = "run_demand_forecast"
	ActionGetForecastAccuracy ActionKind = "get_forecast_accuracy"
	ActionCalcReorderPoint    ActionKind = "calculate_reorder_point"
	ActionOptimizeInventory   ActionKind = "optimize_inventory"
	ActionEvaluateSupplier    ActionKind = "evaluate_supplier"
	ActionDetectAnomalies     ActionKind = "detect_anomalies"
	ActionAssessSupplyRisk    ActionKind = "assess_supply_risk"
	ActionScanMarketIntel     ActionKind = "scan_market_intelligence"
	ActionCreatePurchaseOrder ActionKind = "create_purchase_order"
	ActionRequestApproval     ActionKind = "request_human_approval"
	ActionAdjustSafetyStock   ActionKind = "adjust_safety_stock"
	ActionEmitEvent           ActionKind = "emit_event"
)

// Args are the named inputs to a tool invocation.
type Args map[string]any

// String fetches a string argument, or "" when absent.
func (a Args) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Float fetches a numeric argument, accepting float64 or int values.
func (a Args) Float(key string) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Int fetches an integer argument, falling back to def when absent or
// non-numeric.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// Map fetches a map argument, or nil.
func (a Args) Map(key string) map[string]any {
	if v, ok := a[key].(map[string]any); ok {
		return v
	}
	return nil
}

// Result is a tool's output. Failures are contained: tools never
// return Go errors to agents, they return a Result with an "error" key.
type Result map[string]any

// Failed reports whether the result carries an error.
func (r Result) Failed() bool {
	_, ok := r["error"]
	return ok
}

func errResult(format string, args ...any) Result {
	return Result{"error": fmt.Sprintf(format, args...)}
}

// Tool is one executable capability.
type Tool interface {
	Kind() ActionKind
	Description() string
	Execute(ctx context.Context, args Args) Result
}

// Deps are the shared services tools operate on.
type Deps struct {
	State      *state.State
	Bus        *event.Bus
	KPI        *kpi.Engine
	Forecaster *forecast.Forecaster
	Detector   *anomaly.Detector
	Optimizer  *optimize.Optimizer
	Approval   config.ApprovalConfig
	Log        *logging.Logger
}

// Registry is the closed capability table. Construction registers every
// tool; nothing can be added afterwards.
type Registry struct {
	tools map[ActionKind]Tool
}

// NewRegistry builds the full table over the given dependencies.
func NewRegistry(deps Deps) *Registry {
	if deps.Log == nil {
		deps.Log = logging.NopLogger()
	}

	all := []Tool{
		&queryDemandHistory{deps},
		&queryInventoryStatus{deps},
		&querySupplierInfo{deps},
		&queryKPIHistory{deps},
		&runDemandForecast{deps},
		&getForecastAccuracy{deps},
		&calculateReorderPoint{deps},
		&optimizeInventory{deps},
		&evaluateSupplier{deps},
		&detectAnomalies{deps},
		&assessSupplyRisk{deps},
		newScanMarketIntel(deps),
		&createPurchaseOrder{deps},
		&requestHumanApproval{deps},
		&adjustSafetyStock{deps},
		&emitEvent{deps},
	}

	tools := make(map[ActionKind]Tool, len(all))
	for _, t := range all {
		tools[t.Kind()] = t
	}
	return &Registry{tools: tools}
}

// Get returns the tool for an action kind.
func (r *Registry) Get(kind ActionKind) (Tool, bool) {
	t, ok := r.tools[kind]
	return t, ok
}

// Execute runs the named capability. An unknown kind is contained into
// an error result like any other tool failure.
func (r *Registry) Execute(ctx context.Context, kind ActionKind, args Args) Result {
	t, ok := r.tools[kind]
	if !ok {
		return errResult("unknown action %q", kind)
	}
	return t.Execute(ctx, args)
}

// Kinds lists every registered action kind.
func (r *Registry) Kinds() []ActionKind {
	kinds := make([]ActionKind, 0, len(r.tools))
	for k := range r.tools {
		kinds = append(kinds, k)
	}
	return kinds
}
