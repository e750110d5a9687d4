package tools

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/supplystack/chaincommand/internal/domain"
)

// runDemandForecast triggers the forecaster for a product.
type runDemandForecast struct {
	deps Deps
}

func (t *runDemandForecast) Kind() ActionKind { return ActionRunDemandForecast }
func (t *runDemandForecast) Description() string {
	return "Run the demand forecaster to predict future demand for a product."
}

func (t *runDemandForecast) Execute(_ context.Context, args Args) Result {
	productID := args.String("product_id")
	horizon := args.Int("horizon", 30)

	if !t.deps.Forecaster.Fitted(productID) {
		return errResult("no forecast model for product %s", productID)
	}

	return Result{
		"product_id": productID,
		"horizon":    horizon,
		"forecasts":  t.deps.Forecaster.Predict(productID, horizon),
	}
}

// getForecastAccuracy reports holdout MAPE for a product.
type getForecastAccuracy struct {
	deps Deps
}

func (t *getForecastAccuracy) Kind() ActionKind { return ActionGetForecastAccuracy }
func (t *getForecastAccuracy) Description() string {
	return "Retrieve MAPE and other accuracy metrics for recent forecasts."
}

func (t *getForecastAccuracy) Execute(_ context.Context, args Args) Result {
	productID := args.String("product_id")
	acc := t.deps.Forecaster.GetAccuracy(productID)
	return Result{
		"product_id": productID,
		"mape":       acc.MAPE,
		"samples":    acc.Samples,
	}
}

// calculateReorderPoint computes a service-level reorder point.
type calculateReorderPoint struct {
	deps Deps
}

func (t *calculateReorderPoint) Kind() ActionKind { return ActionCalcReorderPoint }
func (t *calculateReorderPoint) Description() string {
	return "Compute reorder point based on demand, lead time, and service level."
}

var serviceZScores = map[float64]float64{
	0.90: 1.28,
	0.95: 1.65,
	0.97: 1.88,
	0.99: 2.33,
}

func (t *calculateReorderPoint) Execute(_ context.Context, args Args) Result {
	productID := args.String("product_id")
	serviceLevel := args.Float("service_level")
	if serviceLevel == 0 {
		serviceLevel = 0.95
	}

	p := t.deps.State.Product(productID)
	if p == nil {
		return errResult("product %s not found", productID)
	}

	z, ok := serviceZScores[serviceLevel]
	if !ok {
		z = 1.65
	}

	safetyStock := z * p.DailyDemandStd * math.Sqrt(float64(p.LeadTimeDays))
	reorderPoint := p.DailyDemandAvg*float64(p.LeadTimeDays) + safetyStock

	return Result{
		"product_id":       productID,
		"reorder_point":    math.Round(reorderPoint*10) / 10,
		"safety_stock":     math.Round(safetyStock*10) / 10,
		"lead_time_days":   p.LeadTimeDays,
		"service_level":    serviceLevel,
		"daily_demand_avg": p.DailyDemandAvg,
	}
}

// optimizeInventory runs the optimizer with a fresh forecast as input.
type optimizeInventory struct {
	deps Deps
}

func (t *optimizeInventory) Kind() ActionKind { return ActionOptimizeInventory }
func (t *optimizeInventory) Description() string {
	return "Optimize reorder point, safety stock, and order quantity for a product."
}

func (t *optimizeInventory) Execute(_ context.Context, args Args) Result {
	productID := args.String("product_id")

	p := t.deps.State.Product(productID)
	if p == nil {
		return errResult("product %s not found", productID)
	}

	forecast := t.deps.Forecaster.Predict(productID, 30)
	r := t.deps.Optimizer.Optimize(p, forecast)

	return Result{
		"product_id":                productID,
		"recommended_reorder_point": r.RecommendedReorderPoint,
		"recommended_safety_stock":  r.RecommendedSafetyStock,
		"recommended_order_qty":     r.RecommendedOrderQty,
		"expected_cost_saving":      r.ExpectedCostSaving,
		"method":                    r.Method,
	}
}

// evaluateSupplier ranks active suppliers of a product by a weighted
// composite score.
type evaluateSupplier struct {
	deps Deps
}

func (t *evaluateSupplier) Kind() ActionKind { return ActionEvaluateSupplier }
func (t *evaluateSupplier) Description() string {
	return "Evaluate supplier performance using weighted scoring across reliability, cost, and quality."
}

func (t *evaluateSupplier) Execute(_ context.Context, args Args) Result {
	productID := args.String("product_id")

	candidates := t.deps.State.SuppliersFor(productID)
	if len(candidates) == 0 {
		return Result{
			"error":    fmt.Sprintf("no active suppliers for %s", productID),
			"rankings": []map[string]any{},
		}
	}

	rankings := make([]map[string]any, 0, len(candidates))
	for _, s := range candidates {
		score := s.ReliabilityScore*0.30 +
			s.OnTimeRate*0.25 +
			(1-s.DefectRate)*0.20 +
			(1/math.Max(s.CostMultiplier, 0.5))*0.15 +
			(1/math.Max(s.LeadTimeMean, 1))*0.10

		rankings = append(rankings, map[string]any{
			"supplier_id":       s.SupplierID,
			"name":              s.Name,
			"composite_score":   math.Round(score*10000) / 10000,
			"reliability_score": s.ReliabilityScore,
			"on_time_rate":      s.OnTimeRate,
			"defect_rate":       s.DefectRate,
			"cost_multiplier":   s.CostMultiplier,
			"lead_time_mean":    s.LeadTimeMean,
		})
	}

	sort.Slice(rankings, func(i, j int) bool {
		return rankings[i]["composite_score"].(float64) > rankings[j]["composite_score"].(float64)
	})

	return Result{
		"product_id":  productID,
		"rankings":    rankings,
		"recommended": rankings[0]["supplier_id"],
	}
}

// detectAnomalies runs the anomaly detector for one product.
type detectAnomalies struct {
	deps Deps
}

func (t *detectAnomalies) Kind() ActionKind { return ActionDetectAnomalies }
func (t *detectAnomalies) Description() string {
	return "Detect demand spikes and stock imbalances from fitted demand statistics."
}

func (t *detectAnomalies) Execute(_ context.Context, args Args) Result {
	productID := args.String("product_id")

	p := t.deps.State.Product(productID)
	if p == nil && productID != "" {
		return errResult("product %s not found", productID)
	}

	var anomalies []domain.AnomalyRecord
	if p != nil {
		anomalies = t.deps.Detector.Detect(p)
	}
	if anomalies == nil {
		anomalies = []domain.AnomalyRecord{}
	}

	return Result{
		"product_id": productID,
		"anomalies":  anomalies,
		"count":      len(anomalies),
	}
}

// assessSupplyRisk scores supplier risk across depth, breadth, and
// criticality.
type assessSupplyRisk struct {
	deps Deps
}

func (t *assessSupplyRisk) Kind() ActionKind { return ActionAssessSupplyRisk }
func (t *assessSupplyRisk) Description() string {
	return "Quantify supply risk for a product or supplier using multi-dimensional scoring."
}

func (t *assessSupplyRisk) Execute(_ context.Context, args Args) Result {
	productID := args.String("product_id")
	supplierID := args.String("supplier_id")

	var relevant []*domain.Supplier
	switch {
	case productID != "":
		for _, s := range t.deps.State.Suppliers() {
			if s.Supplies(productID) {
				relevant = append(relevant, s)
			}
		}
	case supplierID != "":
		if s := t.deps.State.Supplier(supplierID); s != nil {
			relevant = append(relevant, s)
		}
	default:
		all := t.deps.State.Suppliers()
		if len(all) > 5 {
			all = all[:5]
		}
		relevant = all
	}

	scores := make([]map[string]any, 0, len(relevant))
	for _, s := range relevant {
		depth := 1 - s.ReliabilityScore
		breadth := 1.0 / math.Max(float64(len(relevant)), 1)
		criticality := s.DefectRate*0.5 + (1-s.OnTimeRate)*0.5
		overall := depth*0.4 + breadth*0.3 + criticality*0.3

		level := "low"
		switch {
		case overall > 0.6:
			level = "critical"
		case overall > 0.4:
			level = "high"
		case overall > 0.2:
			level = "medium"
		}

		scores = append(scores, map[string]any{
			"supplier_id":      s.SupplierID,
			"name":             s.Name,
			"depth_risk":       math.Round(depth*1000) / 1000,
			"breadth_risk":     math.Round(breadth*1000) / 1000,
			"criticality_risk": math.Round(criticality*1000) / 1000,
			"overall_risk":     math.Round(overall*1000) / 1000,
			"level":            level,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		return scores[i]["overall_risk"].(float64) > scores[j]["overall_risk"].(float64)
	})

	result := Result{
		"product_id":     productID,
		"supplier_risks": scores,
	}
	if len(scores) > 0 {
		result["highest_risk"] = scores[0]
	}
	return result
}

// Simulated market signal pool for mock-mode intelligence scans.
var intelTopics = []struct {
	topic  string
	source string
	impact float64
}{
	{"Raw material price increase", "commodity_price", -0.3},
	{"New trade tariff announced", "regulation", -0.5},
	{"Competitor supply shortage", "competitor", 0.4},
	{"Seasonal demand uptick expected", "seasonality", 0.2},
	{"Port congestion easing", "logistics", 0.3},
	{"Currency fluctuation risk", "forex", -0.2},
	{"New supplier market entry", "supplier_market", 0.3},
	{"Weather disruption forecast", "weather", -0.4},
}

// scanMarketIntel generates simulated market signals and records them
// in runtime state.
type scanMarketIntel struct {
	deps Deps
	mu   sync.Mutex
	rng  *rand.Rand
}

func newScanMarketIntel(deps Deps) *scanMarketIntel {
	return &scanMarketIntel{
		deps: deps,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *scanMarketIntel) Kind() ActionKind { return ActionScanMarketIntel }
func (t *scanMarketIntel) Description() string {
	return "Gather market signals: price changes, competitor moves, regulatory updates."
}

func (t *scanMarketIntel) Execute(_ context.Context, _ Args) Result {
	t.mu.Lock()
	picks := t.rng.Perm(len(intelTopics))[:3]
	jitter := make([]float64, len(picks))
	for i := range jitter {
		jitter[i] = -0.1 + t.rng.Float64()*0.2
	}
	t.mu.Unlock()

	items := make([]domain.MarketIntel, 0, len(picks))
	for i, idx := range picks {
		topic := intelTopics[idx]
		impact := math.Max(-1, math.Min(1, topic.impact+jitter[i]))
		intel := domain.MarketIntel{
			IntelID:     domain.NewID("INT"),
			Timestamp:   time.Now().UTC(),
			Source:      topic.source,
			Topic:       topic.topic,
			Summary:     fmt.Sprintf("Simulated: %s. Estimated impact on supply chain operations.", topic.topic),
			ImpactScore: math.Round(impact*100) / 100,
		}
		t.deps.State.AddMarketIntel(intel)
		items = append(items, intel)
	}

	return Result{
		"intel_count": len(items),
		"items":       items,
	}
}
