package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/state"
	"github.com/supplystack/chaincommand/internal/tools"
)

// Coordinator is the chief supply chain officer: it reconciles the
// other agents' outputs, arbitrates conflicts, ranks recommended
// actions, and closes each decision cycle.
type Coordinator struct {
	Base
	st *state.State

	mu          sync.Mutex
	conflictLog []map[string]any
}

func NewCoordinator(cfg Config) *Coordinator {
	return &Coordinator{
		Base: newBase(
			"coordinator",
			"Chief coordinator: orchestrate all agents, resolve conflicts, enforce budget/capacity constraints, produce executive summaries",
			LayerOrchestration, cfg,
		),
		st: cfg.State,
	}
}

// HandleEvent observes every event on the bus.
func (a *Coordinator) HandleEvent(_ context.Context, ev event.Event) {
	a.log.Debug("coordinator_event", "event_type", ev.EventType, "severity", string(ev.Severity))
}

func (a *Coordinator) RunCycle(ctx context.Context, c Context) map[string]any {
	cycle := a.beginCycle()

	conflictsResolved := make([]map[string]any, 0)
	for _, conflict := range a.detectConflicts(c.AgentResults) {
		conflictsResolved = append(conflictsResolved, a.resolveConflict(ctx, conflict))
	}

	prioritized := prioritizeActions(collectActions(c.AgentResults))
	if len(prioritized) > 10 {
		prioritized = prioritized[:10]
	}

	pending := len(a.st.PendingApprovals())

	kpiData := a.act(ctx, tools.ActionQueryKPIHistory, "Review KPIs for executive summary",
		tools.Args{"periods": 5})

	summary := a.think(ctx, map[string]any{
		"cycle":             cycle,
		"agents_reporting":  len(c.AgentResults),
		"conflicts":         len(conflictsResolved),
		"pending_approvals": pending,
		"priority_actions":  len(prioritized),
		"kpi_snapshots":     kpiData["count"],
	})

	a.act(ctx, tools.ActionEmitEvent, "Signal cycle completion", tools.Args{
		"event_type":   event.TypeCycleComplete,
		"severity":     "low",
		"source_agent": a.name,
		"description":  fmt.Sprintf("Decision cycle %d complete", cycle),
		"data": map[string]any{
			"cycle":     cycle,
			"conflicts": len(conflictsResolved),
			"actions":   len(prioritized),
		},
	})

	a.log.Info("coordinator_cycle_complete", "cycle", cycle,
		"conflicts", len(conflictsResolved), "actions", len(prioritized))
	return map[string]any{
		"agent":              a.name,
		"cycle":              cycle,
		"conflicts_resolved": conflictsResolved,
		"priority_actions":   prioritized,
		"pending_approvals":  pending,
		"executive_summary":  summary,
	}
}

// detectConflicts flags products where the inventory optimizer wants
// to reorder while the strategic planner issued its own recommendation
// for the same product.
func (a *Coordinator) detectConflicts(agentResults map[string]map[string]any) []map[string]any {
	var conflicts []map[string]any

	invReorders, _ := agentResults["inventory_optimizer"]["reorders"].([]map[string]any)
	plannerRecs, _ := agentResults["strategic_planner"]["recommendations"].([]map[string]any)

	for _, reorder := range invReorders {
		pid, _ := reorder["product_id"].(string)
		if pid == "" {
			continue
		}
		for _, rec := range plannerRecs {
			if recPID, _ := rec["product_id"].(string); recPID == pid {
				conflicts = append(conflicts, map[string]any{
					"type":           "reorder_vs_strategy",
					"product_id":     pid,
					"inventory_says": "reorder",
					"planner_says":   rec,
				})
			}
		}
	}
	return conflicts
}

// resolveConflict asks the LLM to arbitrate between the two
// recommendations and records the outcome.
func (a *Coordinator) resolveConflict(ctx context.Context, conflict map[string]any) map[string]any {
	resolution := a.think(ctx, map[string]any{
		"conflict_type": conflict["type"],
		"details":       conflict,
		"task":          "Resolve this conflict between agent recommendations",
	})

	a.mu.Lock()
	a.conflictLog = append(a.conflictLog, map[string]any{
		"conflict":   conflict,
		"resolution": resolution,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
	a.mu.Unlock()

	return map[string]any{
		"conflict":   conflict,
		"resolution": resolution,
		"resolved":   true,
	}
}

// actionPriority ranks action categories by urgency: stock coverage
// first, risk mitigation next, paperwork last.
var actionPriority = map[string]int{
	"reorders":       1,
	"mitigations":    2,
	"orders_created": 3,
	"alerts":         4,
	"adjustments":    5,
}

func collectActions(agentResults map[string]map[string]any) []map[string]any {
	var actions []map[string]any
	names := make([]string, 0, len(agentResults))
	for name := range agentResults {
		names = append(names, name)
	}
	sort.Strings(names)

	keys := []string{"reorders", "orders_created", "adjustments", "mitigations", "alerts"}
	for _, name := range names {
		result := agentResults[name]
		for _, key := range keys {
			items, _ := result[key].([]map[string]any)
			for _, item := range items {
				actions = append(actions, map[string]any{
					"source": name,
					"type":   key,
					"data":   item,
				})
			}
		}
	}
	return actions
}

func prioritizeActions(actions []map[string]any) []map[string]any {
	sort.SliceStable(actions, func(i, j int) bool {
		pi, ok := actionPriority[actions[i]["type"].(string)]
		if !ok {
			pi = 99
		}
		pj, ok := actionPriority[actions[j]["type"].(string)]
		if !ok {
			pj = 99
		}
		return pi < pj
	})
	return actions
}

// Reporter folds every agent's cycle output into a structured report
// for the dashboard and the console renderer.
type Reporter struct {
	Base

	mu      sync.Mutex
	reports []map[string]any
}

func NewReporter(cfg Config) *Reporter {
	return &Reporter{
		Base: newBase(
			"reporter",
			"Aggregate agent outputs into structured reports and dashboard data",
			LayerOrchestration, cfg,
		),
	}
}

func (a *Reporter) HandleEvent(_ context.Context, ev event.Event) {
	switch ev.EventType {
	case event.TypeCycleComplete:
		a.log.Info("reporter_cycle_triggered", "cycle", ev.Data["cycle"])
	case event.TypeKPISnapshotCreated:
		a.log.Debug("reporter_kpi_received")
	}
}

func (a *Reporter) RunCycle(ctx context.Context, c Context) map[string]any {
	cycle := a.beginCycle()

	kpiData := a.act(ctx, tools.ActionQueryKPIHistory, "Get KPI data for report",
		tools.Args{"periods": 10})
	invData := a.act(ctx, tools.ActionQueryInventory, "Get inventory status for report", nil)

	critical, low, healthy := 0, 0, 0
	if products, ok := invData["products"].([]map[string]any); ok {
		for _, p := range products {
			switch p["status"] {
			case "critical":
				critical++
			case "low":
				low++
			case "healthy":
				healthy++
			}
		}
	}

	agentSummaries := make(map[string]any, len(c.AgentResults))
	for name, result := range c.AgentResults {
		analysis, _ := result["analysis"].(string)
		agentSummaries[name] = map[string]any{
			"analysis": analysis,
		}
	}

	report := map[string]any{
		"report_id":         fmt.Sprintf("RPT-%04d", cycle),
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"cycle":             cycle,
		"executive_summary": c.CoordinatorSummary,
		"kpi": map[string]any{
			"snapshot_count": kpiData["count"],
			"snapshots":      kpiData["snapshots"],
		},
		"inventory": map[string]any{
			"total_products": invData["count"],
			"critical":       critical,
			"low":            low,
			"healthy":        healthy,
		},
		"agent_summaries": agentSummaries,
	}

	report["narrative"] = a.think(ctx, map[string]any{
		"cycle":             cycle,
		"kpi_count":         kpiData["count"],
		"critical_products": critical,
		"low_products":      low,
		"agents_reporting":  len(c.AgentResults),
	})

	a.mu.Lock()
	a.reports = append(a.reports, report)
	a.mu.Unlock()

	a.log.Info("reporter_cycle_complete", "cycle", cycle, "report_id", report["report_id"])
	return map[string]any{"agent": a.name, "report": report}
}

// LatestReport returns the most recent report, or nil.
func (a *Reporter) LatestReport() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.reports) == 0 {
		return nil
	}
	return a.reports[len(a.reports)-1]
}
