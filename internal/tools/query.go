package tools

import (
	"context"
	"math"
	"time"
)

// queryDemandHistory retrieves demand records for a product.
type queryDemandHistory struct {
	deps Deps
}

func (t *queryDemandHistory) Kind() ActionKind { return ActionQueryDemandHistory }
func (t *queryDemandHistory) Description() string {
	return "Retrieve historical demand records for a given product and date range."
}

// Record cap on query results, matching the API payload budget.
const maxDemandRecords = 200

func (t *queryDemandHistory) Execute(_ context.Context, args Args) Result {
	productID := args.String("product_id")
	days := args.Int("days", 90)

	records := t.deps.State.DemandHistory(productID, 0)
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	filtered := records[:0:0]
	for _, r := range records {
		if !r.Date.Before(cutoff) {
			filtered = append(filtered, r)
		}
	}

	var sum float64
	for _, r := range filtered {
		sum += r.Quantity
	}
	avg, std := 0.0, 0.0
	if len(filtered) > 0 {
		avg = sum / float64(len(filtered))
		var sq float64
		for _, r := range filtered {
			sq += (r.Quantity - avg) * (r.Quantity - avg)
		}
		std = math.Sqrt(sq / float64(len(filtered)))
	}

	tail := filtered
	if len(tail) > maxDemandRecords {
		tail = tail[len(tail)-maxDemandRecords:]
	}

	return Result{
		"product_id":   productID,
		"record_count": len(tail),
		"records":      tail,
		"avg_demand":   avg,
		"std_demand":   std,
	}
}

// queryInventoryStatus snapshots stock levels for one or all products.
type queryInventoryStatus struct {
	deps Deps
}

func (t *queryInventoryStatus) Kind() ActionKind { return ActionQueryInventory }
func (t *queryInventoryStatus) Description() string {
	return "Get current inventory snapshot for one or all products."
}

func (t *queryInventoryStatus) Execute(_ context.Context, args Args) Result {
	productID := args.String("product_id")

	var snapshots []map[string]any
	for _, p := range t.deps.State.Products() {
		if productID != "" && p.ProductID != productID {
			continue
		}

		daysOfSupply := 999.0
		if p.DailyDemandAvg > 0 {
			daysOfSupply = p.CurrentStock / p.DailyDemandAvg
		}
		status := "healthy"
		switch {
		case p.CurrentStock < p.SafetyStock:
			status = "critical"
		case p.CurrentStock < p.ReorderPoint:
			status = "low"
		}

		snapshots = append(snapshots, map[string]any{
			"product_id":       p.ProductID,
			"name":             p.Name,
			"current_stock":    p.CurrentStock,
			"reorder_point":    p.ReorderPoint,
			"safety_stock":     p.SafetyStock,
			"daily_demand_avg": p.DailyDemandAvg,
			"days_of_supply":   daysOfSupply,
			"status":           status,
		})
	}

	return Result{"products": snapshots, "count": len(snapshots)}
}

// querySupplierInfo returns supplier performance details.
type querySupplierInfo struct {
	deps Deps
}

func (t *querySupplierInfo) Kind() ActionKind { return ActionQuerySupplierInfo }
func (t *querySupplierInfo) Description() string {
	return "Get supplier details including reliability, lead time, and defect rate."
}

func (t *querySupplierInfo) Execute(_ context.Context, args Args) Result {
	supplierID := args.String("supplier_id")
	productID := args.String("product_id")

	var results []map[string]any
	for _, s := range t.deps.State.Suppliers() {
		if supplierID != "" && s.SupplierID != supplierID {
			continue
		}
		if supplierID == "" && productID != "" && !s.Supplies(productID) {
			continue
		}
		results = append(results, map[string]any{
			"supplier_id":       s.SupplierID,
			"name":              s.Name,
			"reliability_score": s.ReliabilityScore,
			"lead_time_mean":    s.LeadTimeMean,
			"lead_time_std":     s.LeadTimeStd,
			"cost_multiplier":   s.CostMultiplier,
			"defect_rate":       s.DefectRate,
			"on_time_rate":      s.OnTimeRate,
			"capacity":          s.Capacity,
			"is_active":         s.IsActive,
			"products":          s.Products,
		})
	}

	return Result{"suppliers": results, "count": len(results)}
}

// queryKPIHistory returns recent KPI snapshots.
type queryKPIHistory struct {
	deps Deps
}

func (t *queryKPIHistory) Kind() ActionKind { return ActionQueryKPIHistory }
func (t *queryKPIHistory) Description() string {
	return "Retrieve recent KPI snapshots for trend analysis."
}

func (t *queryKPIHistory) Execute(_ context.Context, args Args) Result {
	periods := args.Int("periods", 30)

	history := t.deps.KPI.History()
	if len(history) > periods {
		history = history[len(history)-periods:]
	}

	return Result{"snapshots": history, "count": len(history)}
}
