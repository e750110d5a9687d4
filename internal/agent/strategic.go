package agent

import (
	"context"
	"fmt"

	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/tools"
)

// DemandForecaster produces demand forecasts and publishes forecast
// updates for downstream planning agents.
type DemandForecaster struct {
	Base
}

func NewDemandForecaster(cfg Config) *DemandForecaster {
	return &DemandForecaster{
		Base: newBase(
			"demand_forecaster",
			"Analyze sales patterns, seasonality, and market trends to produce demand forecasts",
			LayerStrategic, cfg,
		),
	}
}

func (a *DemandForecaster) HandleEvent(_ context.Context, ev event.Event) {
	switch ev.EventType {
	case event.TypeKPIThresholdViolated:
		if metric, _ := ev.Data["metric"].(string); metric == "mape" {
			a.log.Info("forecaster_mape_alert", "mape", ev.Data["value"])
		}
	case event.TypeNewMarketIntel:
		a.log.Info("forecaster_market_intel", "topic", ev.Data["topic"])
	}
}

func (a *DemandForecaster) RunCycle(ctx context.Context, c Context) map[string]any {
	cycle := a.beginCycle()

	history := a.act(ctx, tools.ActionQueryDemandHistory, "Query recent demand data for analysis",
		tools.Args{"days": 90})

	avgDemand, _ := history["avg_demand"].(float64)
	analysis := a.think(ctx, map[string]any{
		"demand_summary": fmt.Sprintf("Avg demand: %.1f", avgDemand),
		"record_count":   history["record_count"],
		"cycle":          cycle,
	})

	forecasts := make([]tools.Result, 0)
	// Forecast the top 5 products per cycle.
	for _, p := range firstN(c.Products, 5) {
		forecastResult := a.act(ctx, tools.ActionRunDemandForecast,
			fmt.Sprintf("Forecast demand for %s", p.ProductID),
			tools.Args{"product_id": p.ProductID, "horizon": 30})
		forecasts = append(forecasts, forecastResult)

		a.act(ctx, tools.ActionEmitEvent, "Publish forecast update", tools.Args{
			"event_type":   event.TypeForecastUpdated,
			"severity":     "low",
			"source_agent": a.name,
			"description":  fmt.Sprintf("Forecast updated for %s", p.ProductID),
			"data":         map[string]any{"product_id": p.ProductID},
		})
	}

	accuracyProduct := ""
	if len(c.Products) > 0 {
		accuracyProduct = c.Products[0].ProductID
	}
	accuracy := a.act(ctx, tools.ActionGetForecastAccuracy, "Check forecast accuracy metrics",
		tools.Args{"product_id": accuracyProduct})

	a.log.Info("forecaster_cycle_complete", "cycle", cycle, "forecasts", len(forecasts))
	return map[string]any{
		"agent":     a.name,
		"forecasts": forecasts,
		"accuracy":  accuracy,
		"analysis":  analysis,
	}
}

// StrategicPlanner reviews KPI trends and inventory health, then
// issues smoothed optimization recommendations to dampen demand signal
// amplification down the chain.
type StrategicPlanner struct {
	Base
}

func NewStrategicPlanner(cfg Config) *StrategicPlanner {
	return &StrategicPlanner{
		Base: newBase(
			"strategic_planner",
			"Develop inventory policies, production plans, and distribution strategies. Apply consensus mechanism to reduce bullwhip effect.",
			LayerStrategic, cfg,
		),
	}
}

func (a *StrategicPlanner) HandleEvent(_ context.Context, ev event.Event) {
	switch ev.EventType {
	case event.TypeForecastUpdated:
		a.log.Info("planner_forecast_received", "product", ev.Data["product_id"])
	case event.TypeKPITrendAlert:
		a.log.Info("planner_kpi_trend", "metric", ev.Data["metric"])
	}
}

func (a *StrategicPlanner) RunCycle(ctx context.Context, c Context) map[string]any {
	cycle := a.beginCycle()

	kpiData := a.act(ctx, tools.ActionQueryKPIHistory, "Review KPI trends for strategic planning",
		tools.Args{"periods": 10})
	invData := a.act(ctx, tools.ActionQueryInventory, "Review overall inventory health", nil)

	strategy := a.think(ctx, map[string]any{
		"kpi_snapshots":      kpiData["count"],
		"inventory_products": invData["count"],
		"cycle":              cycle,
	})

	recommendations := make([]map[string]any, 0)
	for _, p := range firstN(c.Products, 3) {
		optResult := a.act(ctx, tools.ActionOptimizeInventory,
			fmt.Sprintf("Strategic optimization for %s", p.ProductID),
			tools.Args{"product_id": p.ProductID})
		if !optResult.Failed() {
			recommendations = append(recommendations, optResult)
		}
	}

	a.act(ctx, tools.ActionEmitEvent, "Publish strategy update", tools.Args{
		"event_type":   "strategy_updated",
		"severity":     "low",
		"source_agent": a.name,
		"description":  fmt.Sprintf("Strategic plan updated (cycle %d)", cycle),
		"data":         map[string]any{"recommendations_count": len(recommendations)},
	})

	a.log.Info("planner_cycle_complete", "cycle", cycle)
	return map[string]any{
		"agent":           a.name,
		"recommendations": recommendations,
		"strategy":        strategy,
	}
}
