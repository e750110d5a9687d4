package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/state"
	"github.com/supplystack/chaincommand/internal/tools"
)

// InventoryOptimizer watches stock levels against reorder points and
// triggers reorders and policy adjustments.
type InventoryOptimizer struct {
	Base
}

func NewInventoryOptimizer(cfg Config) *InventoryOptimizer {
	return &InventoryOptimizer{
		Base: newBase(
			"inventory_optimizer",
			"Monitor inventory levels, calculate reorder points, manage safety stock",
			LayerTactical, cfg,
		),
	}
}

func (a *InventoryOptimizer) HandleEvent(_ context.Context, ev event.Event) {
	switch ev.EventType {
	case event.TypeLowStockAlert, event.TypeStockoutAlert:
		a.log.Info("inventory_low_stock_event", "product", ev.Data["product_id"], "severity", string(ev.Severity))
	case event.TypeOverstockAlert:
		a.log.Info("inventory_overstock_event", "product", ev.Data["product_id"])
	case event.TypeForecastUpdated:
		a.log.Info("inventory_forecast_update", "product", ev.Data["product_id"])
	}
}

func (a *InventoryOptimizer) RunCycle(ctx context.Context, c Context) map[string]any {
	cycle := a.beginCycle()

	a.act(ctx, tools.ActionQueryInventory, "Check all inventory levels", nil)

	reorders := make([]map[string]any, 0)
	for _, p := range c.Products {
		if p.CurrentStock >= p.ReorderPoint {
			continue
		}

		ropResult := a.act(ctx, tools.ActionCalcReorderPoint,
			fmt.Sprintf("Calculate ROP for %s", p.ProductID),
			tools.Args{"product_id": p.ProductID, "service_level": 0.95})

		rop := p.ReorderPoint
		if v, ok := ropResult["reorder_point"].(float64); ok {
			rop = v
		}

		severity := "medium"
		if p.CurrentStock < p.SafetyStock {
			severity = "high"
		}
		a.act(ctx, tools.ActionEmitEvent, fmt.Sprintf("Trigger reorder for %s", p.ProductID), tools.Args{
			"event_type":   event.TypeReorderTriggered,
			"severity":     severity,
			"source_agent": a.name,
			"description": fmt.Sprintf("Reorder needed: %s (stock=%.0f, ROP=%.0f)",
				p.Name, p.CurrentStock, p.ReorderPoint),
			"data": map[string]any{
				"product_id":    p.ProductID,
				"current_stock": p.CurrentStock,
				"reorder_point": rop,
			},
		})
		reorders = append(reorders, map[string]any{
			"product_id":    p.ProductID,
			"current_stock": p.CurrentStock,
			"reorder_point": rop,
		})
	}

	adjustments := make([]map[string]any, 0)
	for _, p := range firstN(c.Products, 3) {
		optResult := a.act(ctx, tools.ActionOptimizeInventory,
			fmt.Sprintf("Optimize inventory for %s", p.ProductID),
			tools.Args{"product_id": p.ProductID})
		if !optResult.Failed() {
			adjustments = append(adjustments, optResult)
		}
	}

	analysis := a.think(ctx, map[string]any{
		"total_products":   len(c.Products),
		"reorders_needed":  len(reorders),
		"adjustments_made": len(adjustments),
	})

	a.log.Info("inventory_cycle_complete", "cycle", cycle, "reorders", len(reorders))
	return map[string]any{
		"agent":       a.name,
		"reorders":    reorders,
		"adjustments": adjustments,
		"analysis":    analysis,
	}
}

// SupplierManager evaluates suppliers and raises purchase orders for
// products below their reorder point, enforcing the human approval gate
// on expensive orders.
type SupplierManager struct {
	Base
	approval config.ApprovalConfig
}

func NewSupplierManager(cfg Config) *SupplierManager {
	return &SupplierManager{
		Base: newBase(
			"supplier_manager",
			"Evaluate supplier performance, select optimal suppliers, manage procurement. Enforce HITL approval gates for high-cost orders.",
			LayerTactical, cfg,
		),
		approval: cfg.Approval,
	}
}

func (a *SupplierManager) HandleEvent(_ context.Context, ev event.Event) {
	switch ev.EventType {
	case event.TypeReorderTriggered:
		a.log.Info("supplier_reorder_received", "product", ev.Data["product_id"])
	case event.TypeSupplierIssue:
		a.log.Warn("supplier_issue_event", "data", ev.Data)
	case event.TypeQualityAlert:
		a.log.Warn("supplier_quality_alert", "data", ev.Data)
	}
}

func (a *SupplierManager) RunCycle(ctx context.Context, c Context) map[string]any {
	cycle := a.beginCycle()

	var reorderProducts []*domain.Product
	for _, p := range c.Products {
		if p.CurrentStock < p.ReorderPoint {
			reorderProducts = append(reorderProducts, p)
		}
	}

	ordersCreated := make([]map[string]any, 0)
	evaluations := make([]tools.Result, 0)

	for _, p := range firstN(reorderProducts, 5) {
		evalResult := a.act(ctx, tools.ActionEvaluateSupplier,
			fmt.Sprintf("Evaluate suppliers for %s", p.ProductID),
			tools.Args{"product_id": p.ProductID})
		evaluations = append(evaluations, evalResult)

		recommended, _ := evalResult["recommended"].(string)
		if recommended == "" {
			continue
		}

		orderQty := p.ReorderPoint - p.CurrentStock + p.SafetyStock
		if orderQty < float64(p.MinOrderQty) {
			orderQty = float64(p.MinOrderQty)
		}
		totalCost := orderQty * p.UnitCost

		if totalCost >= a.approval.CostEscalationThreshold {
			a.act(ctx, tools.ActionRequestApproval,
				fmt.Sprintf("High-cost PO requires approval: $%.0f", totalCost),
				tools.Args{
					"request_type":   "purchase_order",
					"description":    fmt.Sprintf("PO for %s: %.0f units from %s at $%.0f", p.Name, orderQty, recommended, totalCost),
					"estimated_cost": totalCost,
					"risk_level":     "high",
					"data": map[string]any{
						"product_id":  p.ProductID,
						"supplier_id": recommended,
						"quantity":    orderQty,
					},
				})
			a.log.Info("supplier_approval_requested", "cost", totalCost)
			continue
		}

		poResult := a.act(ctx, tools.ActionCreatePurchaseOrder,
			fmt.Sprintf("Create PO for %s", p.ProductID),
			tools.Args{
				"supplier_id": recommended,
				"product_id":  p.ProductID,
				"quantity":    orderQty,
				"unit_cost":   p.UnitCost,
			})
		if poResult.Failed() {
			continue
		}
		ordersCreated = append(ordersCreated, poResult)

		a.act(ctx, tools.ActionEmitEvent, "Notify PO creation", tools.Args{
			"event_type":   event.TypePOCreated,
			"severity":     "low",
			"source_agent": a.name,
			"description":  fmt.Sprintf("PO created: %v", poResult["po_id"]),
			"data":         map[string]any(poResult),
		})
	}

	supplierData := a.act(ctx, tools.ActionQuerySupplierInfo, "Query all supplier status", nil)

	analysis := a.think(ctx, map[string]any{
		"reorder_products": len(reorderProducts),
		"orders_created":   len(ordersCreated),
		"suppliers":        supplierData["count"],
	})

	a.log.Info("supplier_cycle_complete", "cycle", cycle, "orders", len(ordersCreated))
	return map[string]any{
		"agent":          a.name,
		"orders_created": ordersCreated,
		"evaluations":    evaluations,
		"analysis":       analysis,
	}
}

// LogisticsCoordinator tracks open purchase orders, flags delivery
// delays, and advances orders through their lifecycle. Delivered orders
// credit stock through the shared state, which guards against double
// crediting.
type LogisticsCoordinator struct {
	Base
	st *state.State
}

func NewLogisticsCoordinator(cfg Config) *LogisticsCoordinator {
	return &LogisticsCoordinator{
		Base: newBase(
			"logistics_coordinator",
			"Track order status, optimize transportation, manage delivery timelines",
			LayerTactical, cfg,
		),
		st: cfg.State,
	}
}

func (a *LogisticsCoordinator) HandleEvent(_ context.Context, ev event.Event) {
	switch ev.EventType {
	case event.TypePOCreated:
		a.log.Info("logistics_new_po", "po_id", ev.Data["po_id"])
	case event.TypeDeliveryDelayed:
		a.log.Warn("logistics_delay", "po_id", ev.Data["po_id"], "days", ev.Data["delay_days"])
	}
}

func (a *LogisticsCoordinator) RunCycle(ctx context.Context, c Context) map[string]any {
	cycle := a.beginCycle()

	now := time.Now().UTC()
	shipments := make([]map[string]any, 0)
	delays := make([]map[string]any, 0)
	active := 0

	for _, po := range a.st.PurchaseOrders() {
		if !po.Active() {
			continue
		}
		active++

		info := map[string]any{
			"po_id":       po.POID,
			"product_id":  po.ProductID,
			"supplier_id": po.SupplierID,
			"status":      string(po.Status),
			"quantity":    po.Quantity,
		}

		if !po.ExpectedDelivery.IsZero() && po.ExpectedDelivery.Before(now) {
			delayDays := int(now.Sub(po.ExpectedDelivery).Hours() / 24)
			info["delay_days"] = delayDays
			delays = append(delays, info)

			severity := "medium"
			if delayDays > 5 {
				severity = "high"
			}
			a.act(ctx, tools.ActionEmitEvent, fmt.Sprintf("Delivery delay alert for PO %s", po.POID), tools.Args{
				"event_type":   event.TypeDeliveryDelayed,
				"severity":     severity,
				"source_agent": a.name,
				"description":  fmt.Sprintf("PO %s delayed %d days", po.POID, delayDays),
				"data":         info,
			})
		} else {
			shipments = append(shipments, info)
		}

		// Advance the order lifecycle.
		switch po.Status {
		case domain.OrderApproved:
			a.st.AdvanceOrder(po.POID, domain.OrderShipped)
		case domain.OrderShipped:
			if !po.ExpectedDelivery.IsZero() && !po.ExpectedDelivery.After(now) {
				a.st.AdvanceOrder(po.POID, domain.OrderDelivered)
			}
		}
	}

	a.act(ctx, tools.ActionQueryInventory, "Check inventory for logistics planning", nil)

	analysis := a.think(ctx, map[string]any{
		"active_orders": active,
		"delayed":       len(delays),
		"in_transit":    len(shipments),
	})

	a.log.Info("logistics_cycle_complete", "cycle", cycle, "active", active, "delays", len(delays))
	return map[string]any{
		"agent":     a.name,
		"shipments": shipments,
		"delays":    delays,
		"analysis":  analysis,
	}
}
