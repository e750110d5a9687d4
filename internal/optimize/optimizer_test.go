package optimize

import (
	"testing"

	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/logging"
)

func TestOptimize_FromProductStats(t *testing.T) {
	o := NewOptimizer(logging.NopLogger())
	p := &domain.Product{
		ProductID:      "PRD-1",
		DailyDemandAvg: 10,
		DailyDemandStd: 2,
		LeadTimeDays:   4,
		UnitCost:       5,
		MinOrderQty:    10,
		SafetyStock:    50,
		CurrentStock:   500,
	}

	r := o.Optimize(p, nil)

	// ss = 1.65 * 2 * sqrt(4) = 6.6; rop = 10*4 + 6.6 = 46.6
	if r.RecommendedSafetyStock != 6.6 {
		t.Errorf("Expected safety stock 6.6, got %v", r.RecommendedSafetyStock)
	}
	if r.RecommendedReorderPoint != 46.6 {
		t.Errorf("Expected reorder point 46.6, got %v", r.RecommendedReorderPoint)
	}
	if r.RecommendedOrderQty < float64(p.MinOrderQty) {
		t.Errorf("Order qty %v below minimum %d", r.RecommendedOrderQty, p.MinOrderQty)
	}
	if r.Method != "service_level_eoq" {
		t.Errorf("Expected method service_level_eoq, got %q", r.Method)
	}
}

func TestOptimize_ForecastOverridesStats(t *testing.T) {
	o := NewOptimizer(logging.NopLogger())
	p := &domain.Product{
		ProductID:      "PRD-1",
		DailyDemandAvg: 10,
		DailyDemandStd: 2,
		LeadTimeDays:   4,
		UnitCost:       5,
		MinOrderQty:    1,
	}

	// Constant forecast at 40/day: zero spread, so zero safety stock
	// and rop = 40 * 4.
	forecast := make([]domain.ForecastResult, 30)
	for i := range forecast {
		forecast[i] = domain.ForecastResult{ProductID: "PRD-1", PredictedDemand: 40}
	}

	r := o.Optimize(p, forecast)
	if r.RecommendedSafetyStock != 0 {
		t.Errorf("Expected zero safety stock for constant forecast, got %v", r.RecommendedSafetyStock)
	}
	if r.RecommendedReorderPoint != 160 {
		t.Errorf("Expected reorder point 160, got %v", r.RecommendedReorderPoint)
	}
}

func TestOptimize_SavingNeverNegative(t *testing.T) {
	o := NewOptimizer(logging.NopLogger())
	// Current policy carries nothing, so any recommendation "costs" more.
	p := &domain.Product{
		ProductID:      "PRD-2",
		DailyDemandAvg: 100,
		DailyDemandStd: 30,
		LeadTimeDays:   10,
		UnitCost:       50,
		MinOrderQty:    100,
	}

	if r := o.Optimize(p, nil); r.ExpectedCostSaving < 0 {
		t.Errorf("Expected non-negative saving, got %v", r.ExpectedCostSaving)
	}
}

func TestOptimize_ZeroCostProduct(t *testing.T) {
	o := NewOptimizer(logging.NopLogger())
	p := &domain.Product{ProductID: "PRD-3", MinOrderQty: 5}

	r := o.Optimize(p, nil)
	if r.RecommendedOrderQty != 5 {
		t.Errorf("Expected min order qty fallback 5, got %v", r.RecommendedOrderQty)
	}
}
