package agent

import (
	"context"
	"fmt"
	"math"

	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/tools"
)

// MarketIntelligence watches market dynamics and surfaces significant
// signals as events.
type MarketIntelligence struct {
	Base
}

func NewMarketIntelligence(cfg Config) *MarketIntelligence {
	return &MarketIntelligence{
		Base: newBase(
			"market_intelligence",
			"Monitor market dynamics, identify trends, detect emerging product opportunities",
			LayerOperational, cfg,
		),
	}
}

func (a *MarketIntelligence) HandleEvent(_ context.Context, ev event.Event) {
	// Periodic scans run in RunCycle; ticks need no immediate reaction.
	if ev.EventType == event.TypeTick {
		return
	}
}

func (a *MarketIntelligence) RunCycle(ctx context.Context, c Context) map[string]any {
	cycle := a.beginCycle()

	scanResult := a.act(ctx, tools.ActionScanMarketIntel, "Periodic market intelligence scan", nil)
	items, _ := scanResult["items"].([]domain.MarketIntel)

	alerts := make([]map[string]any, 0)
	for _, item := range items {
		impact := math.Abs(item.ImpactScore)
		if impact <= 0.3 {
			continue
		}
		severity := "medium"
		if impact > 0.5 {
			severity = "high"
		}
		payload := map[string]any{
			"intel_id":     item.IntelID,
			"topic":        item.Topic,
			"source":       item.Source,
			"impact_score": item.ImpactScore,
		}
		a.act(ctx, tools.ActionEmitEvent, fmt.Sprintf("Market intel: %s", item.Topic), tools.Args{
			"event_type":   event.TypeNewMarketIntel,
			"severity":     severity,
			"source_agent": a.name,
			"description":  item.Summary,
			"data":         payload,
		})
		alerts = append(alerts, payload)
	}

	analysis := a.think(ctx, map[string]any{
		"intel_items":        len(items),
		"significant_alerts": len(alerts),
		"cycle":              cycle,
	})

	a.log.Info("market_intel_cycle_complete", "cycle", cycle, "items", len(items), "alerts", len(alerts))
	return map[string]any{
		"agent":       a.name,
		"intel_items": items,
		"alerts":      alerts,
		"analysis":    analysis,
	}
}

// AnomalyDetector scans products for demand spikes and stock
// imbalances each cycle.
type AnomalyDetector struct {
	Base
}

func NewAnomalyDetector(cfg Config) *AnomalyDetector {
	return &AnomalyDetector{
		Base: newBase(
			"anomaly_detector",
			"Real-time detection of demand anomalies, cost anomalies, and quality issues",
			LayerOperational, cfg,
		),
	}
}

func (a *AnomalyDetector) HandleEvent(_ context.Context, ev event.Event) {
	if ev.EventType == "new_data_point" {
		a.log.Debug("anomaly_new_data", "product", ev.Data["product_id"])
	}
}

func (a *AnomalyDetector) RunCycle(ctx context.Context, c Context) map[string]any {
	cycle := a.beginCycle()

	found := make([]domain.AnomalyRecord, 0)
	// Scan the top 10 products per cycle.
	for _, p := range firstN(c.Products, 10) {
		detectResult := a.act(ctx, tools.ActionDetectAnomalies,
			fmt.Sprintf("Detect anomalies for %s", p.ProductID),
			tools.Args{"product_id": p.ProductID})

		anomalies, _ := detectResult["anomalies"].([]domain.AnomalyRecord)
		for i := range anomalies {
			an := anomalies[i]
			found = append(found, an)
			a.act(ctx, tools.ActionEmitEvent, fmt.Sprintf("Alert: %s", an.AnomalyType), tools.Args{
				"event_type":   event.TypeAnomalyDetected,
				"severity":     string(an.Severity),
				"source_agent": a.name,
				"description":  an.Description,
				"data":         an.Map(),
			})
		}
	}

	a.act(ctx, tools.ActionQueryDemandHistory, "Get recent demand data for pattern analysis",
		tools.Args{"days": 14})

	analysis := a.think(ctx, map[string]any{
		"products_scanned": len(c.Products),
		"anomalies_found":  len(found),
		"cycle":            cycle,
	})

	a.log.Info("anomaly_cycle_complete", "cycle", cycle, "anomalies", len(found))
	return map[string]any{
		"agent":            a.name,
		"anomalies_found":  found,
		"products_scanned": len(c.Products),
		"analysis":         analysis,
	}
}

// RiskAssessor quantifies supply risk and raises alerts when a
// product's supplier base looks fragile.
type RiskAssessor struct {
	Base
}

func NewRiskAssessor(cfg Config) *RiskAssessor {
	return &RiskAssessor{
		Base: newBase(
			"risk_assessor",
			"Quantify supply risk (depth/breadth/criticality), trigger mitigation for high-risk scenarios",
			LayerOperational, cfg,
		),
	}
}

func (a *RiskAssessor) HandleEvent(_ context.Context, ev event.Event) {
	switch ev.EventType {
	case event.TypeAnomalyDetected:
		a.log.Info("risk_anomaly_received", "anomaly", ev.Data["anomaly_type"])
	case event.TypeSupplierIssue:
		a.log.Warn("risk_supplier_issue", "supplier", ev.Data["supplier_id"])
	}
}

func (a *RiskAssessor) RunCycle(ctx context.Context, c Context) map[string]any {
	cycle := a.beginCycle()

	assessments := make([]tools.Result, 0)
	mitigations := make([]map[string]any, 0)

	for _, p := range firstN(c.Products, 5) {
		riskResult := a.act(ctx, tools.ActionAssessSupplyRisk,
			fmt.Sprintf("Assess supply risk for %s", p.ProductID),
			tools.Args{"product_id": p.ProductID})
		assessments = append(assessments, riskResult)

		highest, _ := riskResult["highest_risk"].(map[string]any)
		level, _ := highest["level"].(string)
		if level != "critical" && level != "high" {
			continue
		}

		severity := "high"
		if level == "critical" {
			severity = "critical"
		}
		overall, _ := highest["overall_risk"].(float64)
		a.act(ctx, tools.ActionEmitEvent, fmt.Sprintf("High supply risk for %s", p.ProductID), tools.Args{
			"event_type":   event.TypeSupplyRiskAlert,
			"severity":     severity,
			"source_agent": a.name,
			"description":  fmt.Sprintf("High supply risk for %s: overall=%.3f (%s)", p.Name, overall, level),
			"data":         map[string]any{"product_id": p.ProductID, "risk": highest},
		})
		mitigations = append(mitigations, map[string]any{
			"product_id":     p.ProductID,
			"risk_level":     level,
			"recommendation": "Consider dual-sourcing or safety stock increase",
		})
	}

	intelResult := a.act(ctx, tools.ActionScanMarketIntel, "Scan for market risk signals", nil)

	analysis := a.think(ctx, map[string]any{
		"assessments":        len(assessments),
		"high_risk_products": len(mitigations),
		"market_signals":     intelResult["intel_count"],
	})

	a.log.Info("risk_cycle_complete", "cycle", cycle, "high_risk", len(mitigations))
	return map[string]any{
		"agent":            a.name,
		"risk_assessments": assessments,
		"mitigations":      mitigations,
		"market_intel":     intelResult,
		"analysis":         analysis,
	}
}
