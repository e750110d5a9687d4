package tools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
)

// createPurchaseOrder raises a replenishment order and applies the
// human-in-the-loop cost gate: cheap orders auto-approve, expensive
// ones escalate, and the middle band waits for review.
type createPurchaseOrder struct {
	deps Deps
}

func (t *createPurchaseOrder) Kind() ActionKind { return ActionCreatePurchaseOrder }
func (t *createPurchaseOrder) Description() string {
	return "Generate a purchase order for a supplier and product."
}

func (t *createPurchaseOrder) Execute(_ context.Context, args Args) Result {
	supplierID := args.String("supplier_id")
	productID := args.String("product_id")
	quantity := args.Float("quantity")
	unitCost := args.Float("unit_cost")

	if supplierID == "" || productID == "" {
		return errResult("supplier_id and product_id are required")
	}
	if quantity <= 0 {
		return errResult("quantity must be positive, got %v", quantity)
	}

	if unitCost == 0 {
		if p := t.deps.State.Product(productID); p != nil {
			unitCost = p.UnitCost
		}
	}

	leadDays := 7.0
	if s := t.deps.State.Supplier(supplierID); s != nil {
		leadDays = s.LeadTimeMean
	}

	totalCost := quantity * unitCost
	po := &domain.PurchaseOrder{
		POID:             domain.NewID("PO"),
		SupplierID:       supplierID,
		ProductID:        productID,
		Quantity:         quantity,
		UnitCost:         unitCost,
		TotalCost:        totalCost,
		Status:           domain.OrderPending,
		CreatedAt:        time.Now().UTC(),
		ExpectedDelivery: time.Now().UTC().AddDate(0, 0, int(leadDays)),
	}

	switch {
	case totalCost < t.deps.Approval.AutoApproveBelow:
		po.ApprovalStatus = domain.ApprovalAutoApproved
		po.Status = domain.OrderApproved
		po.ApprovedBy = "system"

	case totalCost >= t.deps.Approval.CostEscalationThreshold:
		po.ApprovalStatus = domain.ApprovalPending
		t.escalate(po, domain.SeverityHigh)

	default:
		po.ApprovalStatus = domain.ApprovalPending
		t.escalate(po, domain.SeverityMedium)
	}

	t.deps.State.AddPurchaseOrder(po)

	return Result{
		"po_id":             po.POID,
		"total_cost":        totalCost,
		"approval_status":   string(po.ApprovalStatus),
		"expected_delivery": po.ExpectedDelivery.Format(time.RFC3339),
	}
}

func (t *createPurchaseOrder) escalate(po *domain.PurchaseOrder, risk domain.Severity) {
	req := domain.NewApprovalRequest(
		"purchase_order",
		fmt.Sprintf("PO %s: %v units of %s from %s", po.POID, po.Quantity, po.ProductID, po.SupplierID),
		po.TotalCost,
		risk,
		map[string]any{"po_id": po.POID},
	)
	t.deps.State.AddApproval(req)
}

// requestHumanApproval escalates an arbitrary action to human review.
type requestHumanApproval struct {
	deps Deps
}

func (t *requestHumanApproval) Kind() ActionKind { return ActionRequestApproval }
func (t *requestHumanApproval) Description() string {
	return "Escalate an action to human review."
}

func (t *requestHumanApproval) Execute(_ context.Context, args Args) Result {
	requestType := args.String("request_type")
	if requestType == "" {
		requestType = "general"
	}
	description := args.String("description")
	risk := domain.Severity(args.String("risk_level"))
	if risk == "" {
		risk = domain.SeverityMedium
	}

	req := domain.NewApprovalRequest(
		requestType,
		description,
		args.Float("estimated_cost"),
		risk,
		args.Map("data"),
	)
	t.deps.State.AddApproval(req)

	return Result{
		"request_id": req.RequestID,
		"status":     "pending",
		"message":    fmt.Sprintf("Approval request created: %s", description),
	}
}

// adjustSafetyStock applies a safety stock change directly, or routes
// it through approval when the change exceeds the configured
// percentage threshold.
type adjustSafetyStock struct {
	deps Deps
}

func (t *adjustSafetyStock) Kind() ActionKind { return ActionAdjustSafetyStock }
func (t *adjustSafetyStock) Description() string {
	return "Modify the safety stock level for a product."
}

func (t *adjustSafetyStock) Execute(_ context.Context, args Args) Result {
	productID := args.String("product_id")
	newValue := args.Float("new_safety_stock")

	p := t.deps.State.Product(productID)
	if p == nil {
		return errResult("product %s not found", productID)
	}

	oldValue := p.SafetyStock
	changePct := math.Abs(newValue-oldValue) / math.Max(oldValue, 1) * 100

	if changePct > t.deps.Approval.InventoryChangePctThreshold {
		req := domain.NewApprovalRequest(
			"inventory_adjustment",
			fmt.Sprintf("Safety stock change for %s: %.0f -> %.0f (%.1f%% change)",
				productID, oldValue, newValue, changePct),
			math.Abs(newValue-oldValue)*p.UnitCost,
			domain.SeverityMedium,
			map[string]any{
				"product_id": productID,
				"old_value":  oldValue,
				"new_value":  newValue,
			},
		)
		t.deps.State.AddApproval(req)
		return Result{
			"product_id": productID,
			"status":     "pending_approval",
			"request_id": req.RequestID,
			"change_pct": math.Round(changePct*10) / 10,
		}
	}

	t.deps.State.SetSafetyStock(productID, newValue)
	return Result{
		"product_id":       productID,
		"old_safety_stock": oldValue,
		"new_safety_stock": newValue,
		"status":           "applied",
	}
}

// emitEvent publishes an event on behalf of an agent.
type emitEvent struct {
	deps Deps
}

func (t *emitEvent) Kind() ActionKind { return ActionEmitEvent }
func (t *emitEvent) Description() string {
	return "Publish a supply chain event so other agents can react."
}

func (t *emitEvent) Execute(_ context.Context, args Args) Result {
	eventType := args.String("event_type")
	if eventType == "" {
		eventType = "general"
	}
	severity := domain.Severity(args.String("severity"))
	if severity == "" {
		severity = domain.SeverityMedium
	}
	source := args.String("source_agent")
	if source == "" {
		source = "unknown"
	}

	ev := event.New(eventType, severity, source, args.String("description"), args.Map("data"))
	t.deps.Bus.Publish(ev)

	return Result{
		"event_id":   ev.EventID,
		"event_type": ev.EventType,
		"published":  true,
	}
}
