// Package optimize recommends replenishment parameters per product:
// service-level safety stock, reorder point, and an EOQ-based order
// quantity.
package optimize

import (
	"math"

	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/logging"
)

// Annual holding cost as a fraction of unit cost.
const holdingCostPct = 0.25

// Service factor for a ~95% cycle service level.
const serviceFactor = 1.65

// Optimizer computes inventory policy recommendations. Stateless and
// safe for concurrent use.
type Optimizer struct {
	log *logging.Logger
}

// NewOptimizer creates an optimizer.
func NewOptimizer(log *logging.Logger) *Optimizer {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Optimizer{log: log.WithComponent("optimizer")}
}

// Optimize recommends reorder point, safety stock, and order quantity
// for a product. When a demand forecast is supplied its mean and spread
// replace the product's historical demand statistics.
func (o *Optimizer) Optimize(p *domain.Product, forecast []domain.ForecastResult) domain.OptimizationResult {
	avgDemand := p.DailyDemandAvg
	stdDemand := p.DailyDemandStd

	if len(forecast) > 0 {
		var sum float64
		for _, f := range forecast {
			sum += f.PredictedDemand
		}
		avgDemand = sum / float64(len(forecast))

		var sq float64
		for _, f := range forecast {
			sq += (f.PredictedDemand - avgDemand) * (f.PredictedDemand - avgDemand)
		}
		stdDemand = math.Sqrt(sq / float64(len(forecast)))
	}

	leadTime := float64(p.LeadTimeDays)
	safetyStock := serviceFactor * stdDemand * math.Sqrt(leadTime)
	reorderPoint := avgDemand*leadTime + safetyStock

	// EOQ with ordering cost estimated from unit cost.
	orderingCost := p.UnitCost * 10
	annualDemand := avgDemand * 365
	orderQty := 0.0
	if p.UnitCost > 0 && annualDemand > 0 {
		orderQty = math.Sqrt(2 * annualDemand * orderingCost / (p.UnitCost * holdingCostPct))
	}
	orderQty = math.Max(orderQty, float64(p.MinOrderQty))

	// Monthly holding cost delta versus the current policy.
	currentHolding := (p.SafetyStock + p.CurrentStock/2) * p.UnitCost * holdingCostPct / 365 * 30
	newHolding := (safetyStock + orderQty/2) * p.UnitCost * holdingCostPct / 365 * 30
	saving := math.Max(0, currentHolding-newHolding)

	result := domain.OptimizationResult{
		ProductID:               p.ProductID,
		RecommendedReorderPoint: round1(reorderPoint),
		RecommendedSafetyStock:  round1(safetyStock),
		RecommendedOrderQty:     math.Round(orderQty),
		ExpectedCostSaving:      round2(saving),
		Method:                  "service_level_eoq",
	}
	o.log.Debug("optimized", "product_id", p.ProductID, "rop", result.RecommendedReorderPoint)
	return result
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
