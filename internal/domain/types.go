// Package domain defines the supply chain data model shared by all
// ChainCommand components.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProductCategory classifies products for seasonality and templating.
type ProductCategory string

const (
	CategoryElectronics ProductCategory = "electronics"
	CategoryFood        ProductCategory = "food"
	CategoryPharma      ProductCategory = "pharma"
	CategoryIndustrial  ProductCategory = "industrial"
	CategoryApparel     ProductCategory = "apparel"
)

// Categories lists every product category in a stable order.
var Categories = []ProductCategory{
	CategoryElectronics,
	CategoryFood,
	CategoryPharma,
	CategoryIndustrial,
	CategoryApparel,
}

// OrderStatus is the purchase order lifecycle state.
// Orders advance pending -> approved -> shipped -> delivered.
// Cancelled is a reserved transition that nothing currently takes.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderApproved  OrderStatus = "approved"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Severity grades events and alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ApprovalStatus is the state of a human approval request.
// A request is either born auto_approved, or transitions
// pending -> approved/rejected exactly once.
type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalRejected     ApprovalStatus = "rejected"
	ApprovalAutoApproved ApprovalStatus = "auto_approved"
)

// NewID returns a prefixed short identifier, e.g. "PO-3f2a9c1d".
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

// Product is a stocked SKU with its demand profile and replenishment
// parameters.
type Product struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	Category       ProductCategory `json:"category"`
	UnitCost       float64         `json:"unit_cost"`
	SellingPrice   float64         `json:"selling_price"`
	LeadTimeDays   int             `json:"lead_time_days"`
	MinOrderQty    int             `json:"min_order_qty"`
	CurrentStock   float64         `json:"current_stock"`
	ReorderPoint   float64         `json:"reorder_point"`
	SafetyStock    float64         `json:"safety_stock"`
	DailyDemandAvg float64         `json:"daily_demand_avg"`
	DailyDemandStd float64         `json:"daily_demand_std"`
}

// Supplier is a source of products with performance metrics used for
// evaluation and risk scoring.
type Supplier struct {
	SupplierID       string   `json:"supplier_id"`
	Name             string   `json:"name"`
	ReliabilityScore float64  `json:"reliability_score"` // 0-1
	LeadTimeMean     float64  `json:"lead_time_mean"`
	LeadTimeStd      float64  `json:"lead_time_std"`
	CostMultiplier   float64  `json:"cost_multiplier"`
	Capacity         float64  `json:"capacity"`
	Products         []string `json:"products"` // product IDs this supplier carries
	DefectRate       float64  `json:"defect_rate"`
	OnTimeRate       float64  `json:"on_time_rate"`
	IsActive         bool     `json:"is_active"`
}

// Supplies reports whether the supplier carries the given product.
func (s *Supplier) Supplies(productID string) bool {
	for _, id := range s.Products {
		if id == productID {
			return true
		}
	}
	return false
}

// DemandRecord is one day of observed demand for a product.
type DemandRecord struct {
	Date        time.Time `json:"date"`
	ProductID   string    `json:"product_id"`
	Quantity    float64   `json:"quantity"`
	IsPromotion bool      `json:"is_promotion"`
	IsHoliday   bool      `json:"is_holiday"`
	Temperature float64   `json:"temperature"`
	DayOfWeek   int       `json:"day_of_week"`
	Month       int       `json:"month"`
}

// PurchaseOrder is a replenishment order against a supplier.
// Status advances monotonically; the delivery transition credits the
// target product's stock exactly once.
type PurchaseOrder struct {
	POID             string         `json:"po_id"`
	SupplierID       string         `json:"supplier_id"`
	ProductID        string         `json:"product_id"`
	Quantity         float64        `json:"quantity"`
	UnitCost         float64        `json:"unit_cost"`
	TotalCost        float64        `json:"total_cost"`
	Status           OrderStatus    `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	ExpectedDelivery time.Time      `json:"expected_delivery"`
	ApprovalStatus   ApprovalStatus `json:"approval_status"`
	ApprovedBy       string         `json:"approved_by,omitempty"`
}

// Active reports whether the order is still in flight
// (pending, approved, or shipped).
func (po *PurchaseOrder) Active() bool {
	switch po.Status {
	case OrderPending, OrderApproved, OrderShipped:
		return true
	}
	return false
}

// KPISnapshot is a point-in-time computation of the twelve tracked
// supply chain metrics. History is append-only.
type KPISnapshot struct {
	Timestamp           time.Time `json:"timestamp"`
	OTIF                float64   `json:"otif"`
	FillRate            float64   `json:"fill_rate"`
	MAPE                float64   `json:"mape"`
	DSI                 float64   `json:"dsi"`
	StockoutCount       int       `json:"stockout_count"`
	TotalInventoryValue float64   `json:"total_inventory_value"`
	CarryingCost        float64   `json:"carrying_cost"`
	OrderCycleTime      float64   `json:"order_cycle_time"`
	PerfectOrderRate    float64   `json:"perfect_order_rate"`
	InventoryTurnover   float64   `json:"inventory_turnover"`
	BackorderRate       float64   `json:"backorder_rate"`
	SupplierDefectRate  float64   `json:"supplier_defect_rate"`
}

// Metric returns the named metric value from the snapshot, or 0 if the
// name is unknown.
func (s *KPISnapshot) Metric(name string) float64 {
	switch name {
	case "otif":
		return s.OTIF
	case "fill_rate":
		return s.FillRate
	case "mape":
		return s.MAPE
	case "dsi":
		return s.DSI
	case "stockout_count":
		return float64(s.StockoutCount)
	case "total_inventory_value":
		return s.TotalInventoryValue
	case "carrying_cost":
		return s.CarryingCost
	case "order_cycle_time":
		return s.OrderCycleTime
	case "perfect_order_rate":
		return s.PerfectOrderRate
	case "inventory_turnover":
		return s.InventoryTurnover
	case "backorder_rate":
		return s.BackorderRate
	case "supplier_defect_rate":
		return s.SupplierDefectRate
	}
	return 0
}

// Map returns the snapshot as a flat map for event payloads and the API.
func (s *KPISnapshot) Map() map[string]any {
	return map[string]any{
		"timestamp":             s.Timestamp,
		"otif":                  s.OTIF,
		"fill_rate":             s.FillRate,
		"mape":                  s.MAPE,
		"dsi":                   s.DSI,
		"stockout_count":        s.StockoutCount,
		"total_inventory_value": s.TotalInventoryValue,
		"carrying_cost":         s.CarryingCost,
		"order_cycle_time":      s.OrderCycleTime,
		"perfect_order_rate":    s.PerfectOrderRate,
		"inventory_turnover":    s.InventoryTurnover,
		"backorder_rate":        s.BackorderRate,
		"supplier_defect_rate":  s.SupplierDefectRate,
	}
}

// ApprovalRequest is a human-in-the-loop escalation. Created once;
// decided at most once by an external call (the decide endpoint does not
// guard against a second decision — see DESIGN.md).
type ApprovalRequest struct {
	RequestID     string         `json:"request_id"`
	Timestamp     time.Time      `json:"timestamp"`
	RequestType   string         `json:"request_type"` // purchase_order, inventory_adjustment, general
	Description   string         `json:"description"`
	EstimatedCost float64        `json:"estimated_cost"`
	RiskLevel     Severity       `json:"risk_level"`
	Data          map[string]any `json:"data,omitempty"`
	Status        ApprovalStatus `json:"status"`
	DecidedAt     time.Time      `json:"decided_at,omitempty"`
	DecidedBy     string         `json:"decided_by,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

// NewApprovalRequest creates a pending request with a fresh id.
func NewApprovalRequest(requestType, description string, cost float64, risk Severity, data map[string]any) *ApprovalRequest {
	return &ApprovalRequest{
		RequestID:     NewID("APR"),
		Timestamp:     time.Now().UTC(),
		RequestType:   requestType,
		Description:   description,
		EstimatedCost: cost,
		RiskLevel:     risk,
		Data:          data,
		Status:        ApprovalPending,
	}
}

// AnomalyRecord is a finding from the anomaly detector.
type AnomalyRecord struct {
	AnomalyID   string    `json:"anomaly_id"`
	Timestamp   time.Time `json:"timestamp"`
	AnomalyType string    `json:"anomaly_type"` // demand_spike, overstock, understock
	ProductID   string    `json:"product_id,omitempty"`
	SupplierID  string    `json:"supplier_id,omitempty"`
	Severity    Severity  `json:"severity"`
	Score       float64   `json:"score"` // 0-1 anomaly score
	Description string    `json:"description"`
	Resolved    bool      `json:"resolved"`
}

// Map returns the record as a map for event payloads.
func (a *AnomalyRecord) Map() map[string]any {
	return map[string]any{
		"anomaly_id":   a.AnomalyID,
		"timestamp":    a.Timestamp,
		"anomaly_type": a.AnomalyType,
		"product_id":   a.ProductID,
		"supplier_id":  a.SupplierID,
		"severity":     string(a.Severity),
		"score":        a.Score,
		"description":  a.Description,
		"resolved":     a.Resolved,
	}
}

// MarketIntel is a simulated market signal with an estimated impact.
type MarketIntel struct {
	IntelID          string    `json:"intel_id"`
	Timestamp        time.Time `json:"timestamp"`
	Source           string    `json:"source"`
	Topic            string    `json:"topic"`
	Summary          string    `json:"summary"`
	ImpactScore      float64   `json:"impact_score"` // -1 to 1
	AffectedProducts []string  `json:"affected_products,omitempty"`
}

// AgentAction records one tool invocation by an agent.
type AgentAction struct {
	ActionID    string         `json:"action_id"`
	Timestamp   time.Time      `json:"timestamp"`
	AgentName   string         `json:"agent_name"`
	ActionType  string         `json:"action_type"`
	Description string         `json:"description"`
	Input       map[string]any `json:"input_data,omitempty"`
	Output      map[string]any `json:"output_data,omitempty"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
}

// ForecastResult is one predicted demand point.
type ForecastResult struct {
	ProductID       string    `json:"product_id"`
	ForecastDate    time.Time `json:"forecast_date"`
	PredictedDemand float64   `json:"predicted_demand"`
	ConfidenceLower float64   `json:"confidence_lower"`
	ConfidenceUpper float64   `json:"confidence_upper"`
	ModelUsed       string    `json:"model_used"`
}

// OptimizationResult is the optimizer's recommendation for one product.
type OptimizationResult struct {
	ProductID               string  `json:"product_id"`
	RecommendedReorderPoint float64 `json:"recommended_reorder_point"`
	RecommendedSafetyStock  float64 `json:"recommended_safety_stock"`
	RecommendedOrderQty     float64 `json:"recommended_order_qty"`
	ExpectedCostSaving      float64 `json:"expected_cost_saving"`
	Method                  string  `json:"method"`
}
