// Package state holds the mutable runtime state shared by the monitor,
// agents, tools, and HTTP handlers. A single State value is constructed
// at startup and injected into every component that needs it; all access
// goes through methods that take the internal lock.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/supplystack/chaincommand/internal/domain"
)

// State is the shared runtime state. The zero value is not usable;
// construct with New.
type State struct {
	mu sync.RWMutex

	products  []*domain.Product
	suppliers []*domain.Supplier
	demand    []domain.DemandRecord

	purchaseOrders   []*domain.PurchaseOrder
	pendingApprovals map[string]*domain.ApprovalRequest
	marketIntel      []domain.MarketIntel
	anomalies        []domain.AnomalyRecord
}

// New creates an empty State.
func New() *State {
	return &State{
		pendingApprovals: make(map[string]*domain.ApprovalRequest),
	}
}

// SetDataset replaces the generated dataset. Called once at
// initialization, before any other component runs.
func (s *State) SetDataset(products []*domain.Product, suppliers []*domain.Supplier, demand []domain.DemandRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
	s.suppliers = suppliers
	s.demand = demand
}

// Products returns a snapshot of the product slice. The pointers are
// shared; callers mutating product fields must do so via the mutation
// helpers below.
func (s *State) Products() []*domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Product returns the product with the given id, or nil.
func (s *State) Product(id string) *domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ProductID == id {
			return p
		}
	}
	return nil
}

// Suppliers returns a snapshot of the supplier slice.
func (s *State) Suppliers() []*domain.Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Supplier, len(s.suppliers))
	copy(out, s.suppliers)
	return out
}

// Supplier returns the supplier with the given id, or nil.
func (s *State) Supplier(id string) *domain.Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sup := range s.suppliers {
		if sup.SupplierID == id {
			return sup
		}
	}
	return nil
}

// SuppliersFor returns active suppliers that carry the given product.
func (s *State) SuppliersFor(productID string) []*domain.Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Supplier
	for _, sup := range s.suppliers {
		if sup.IsActive && sup.Supplies(productID) {
			out = append(out, sup)
		}
	}
	return out
}

// DemandHistory returns the demand records for a product, oldest first,
// limited to the most recent n records (0 means all).
func (s *State) DemandHistory(productID string, n int) []domain.DemandRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DemandRecord
	for _, r := range s.demand {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// AllDemand returns every demand record. The returned slice is shared
// and must be treated as read-only.
func (s *State) AllDemand() []domain.DemandRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.demand
}

// AdjustStock sets a product's current stock, clamped at zero.
// Returns false if the product does not exist.
func (s *State) AdjustStock(productID string, newStock float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ProductID == productID {
			if newStock < 0 {
				newStock = 0
			}
			p.CurrentStock = newStock
			return true
		}
	}
	return false
}

// SetSafetyStock updates a product's safety stock and returns the old
// value. Returns false if the product does not exist.
func (s *State) SetSafetyStock(productID string, value float64) (old float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ProductID == productID {
			old = p.SafetyStock
			p.SafetyStock = value
			return old, true
		}
	}
	return 0, false
}

// ConsumeDemand draws down stock for every product by the given
// per-product quantities, clamping at zero.
func (s *State) ConsumeDemand(consumed map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if qty, ok := consumed[p.ProductID]; ok {
			p.CurrentStock -= qty
			if p.CurrentStock < 0 {
				p.CurrentStock = 0
			}
		}
	}
}

// AddPurchaseOrder appends a new purchase order.
func (s *State) AddPurchaseOrder(po *domain.PurchaseOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchaseOrders = append(s.purchaseOrders, po)
}

// PurchaseOrders returns a snapshot of all purchase orders.
func (s *State) PurchaseOrders() []*domain.PurchaseOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.PurchaseOrder, len(s.purchaseOrders))
	copy(out, s.purchaseOrders)
	return out
}

// PurchaseOrder returns the order with the given id, or nil.
func (s *State) PurchaseOrder(id string) *domain.PurchaseOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, po := range s.purchaseOrders {
		if po.POID == id {
			return po
		}
	}
	return nil
}

// AdvanceOrder moves a purchase order to the given status. When the
// order transitions to delivered for the first time, the ordered
// quantity is credited to the product's stock; repeated delivered
// transitions do not credit again.
func (s *State) AdvanceOrder(poID string, status domain.OrderStatus) (credited bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, po := range s.purchaseOrders {
		if po.POID != poID {
			continue
		}
		wasDelivered := po.Status == domain.OrderDelivered
		po.Status = status
		if status == domain.OrderDelivered && !wasDelivered {
			for _, p := range s.products {
				if p.ProductID == po.ProductID {
					p.CurrentStock += po.Quantity
					break
				}
			}
			return true, true
		}
		return false, true
	}
	return false, false
}

// AddApproval registers a pending approval request.
func (s *State) AddApproval(req *domain.ApprovalRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingApprovals[req.RequestID] = req
}

// Approval returns the request with the given id, or nil.
func (s *State) Approval(id string) *domain.ApprovalRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingApprovals[id]
}

// PendingApprovals returns requests still awaiting a decision, oldest
// first.
func (s *State) PendingApprovals() []*domain.ApprovalRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.ApprovalRequest
	for _, req := range s.pendingApprovals {
		if req.Status == domain.ApprovalPending {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// DecideApproval records a decision on a request. The decision
// overwrites any prior one; callers wanting at-most-once semantics must
// check Status first. Returns false if the request does not exist.
func (s *State) DecideApproval(id string, approved bool, decidedBy, reason string) (*domain.ApprovalRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pendingApprovals[id]
	if !ok {
		return nil, false
	}
	if approved {
		req.Status = domain.ApprovalApproved
	} else {
		req.Status = domain.ApprovalRejected
	}
	req.DecidedAt = time.Now().UTC()
	req.DecidedBy = decidedBy
	req.Reason = reason
	return req, true
}

// AddMarketIntel appends a market intelligence record.
func (s *State) AddMarketIntel(mi domain.MarketIntel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketIntel = append(s.marketIntel, mi)
}

// RecentMarketIntel returns up to the last n intel records.
func (s *State) RecentMarketIntel(n int) []domain.MarketIntel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.marketIntel) {
		n = len(s.marketIntel)
	}
	out := make([]domain.MarketIntel, n)
	copy(out, s.marketIntel[len(s.marketIntel)-n:])
	return out
}

// AddAnomalies appends anomaly records.
func (s *State) AddAnomalies(records []domain.AnomalyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = append(s.anomalies, records...)
}

// RecentAnomalies returns up to the last n anomaly records.
func (s *State) RecentAnomalies(n int) []domain.AnomalyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.anomalies) {
		n = len(s.anomalies)
	}
	out := make([]domain.AnomalyRecord, n)
	copy(out, s.anomalies[len(s.anomalies)-n:])
	return out
}
