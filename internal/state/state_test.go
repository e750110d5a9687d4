package state

import (
	"sync"
	"testing"
	"time"

	"github.com/supplystack/chaincommand/internal/domain"
)

func seeded() *State {
	s := New()
	s.SetDataset(
		[]*domain.Product{
			{ProductID: "PRD-1", Name: "Widget", CurrentStock: 100, SafetyStock: 20},
			{ProductID: "PRD-2", Name: "Gadget", CurrentStock: 0, SafetyStock: 10},
		},
		[]*domain.Supplier{
			{SupplierID: "SUP-1", Name: "Acme", IsActive: true, Products: []string{"PRD-1"}},
			{SupplierID: "SUP-2", Name: "Globex", IsActive: false, Products: []string{"PRD-1", "PRD-2"}},
		},
		[]domain.DemandRecord{
			{ProductID: "PRD-1", Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Quantity: 5},
			{ProductID: "PRD-1", Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Quantity: 3},
			{ProductID: "PRD-2", Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Quantity: 9},
		},
	)
	return s
}

func TestSuppliersFor_FiltersInactive(t *testing.T) {
	s := seeded()

	got := s.SuppliersFor("PRD-1")
	if len(got) != 1 {
		t.Fatalf("Expected 1 active supplier for PRD-1, got %d", len(got))
	}
	if got[0].SupplierID != "SUP-1" {
		t.Errorf("Expected SUP-1, got %s", got[0].SupplierID)
	}

	if got := s.SuppliersFor("PRD-2"); len(got) != 0 {
		t.Errorf("Expected no active suppliers for PRD-2, got %d", len(got))
	}
}

func TestDemandHistory_SortedAndLimited(t *testing.T) {
	s := seeded()

	all := s.DemandHistory("PRD-1", 0)
	if len(all) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(all))
	}
	if !all[0].Date.Before(all[1].Date) {
		t.Error("Expected records sorted oldest first")
	}

	last := s.DemandHistory("PRD-1", 1)
	if len(last) != 1 || last[0].Quantity != 5 {
		t.Errorf("Expected most recent record (qty 5), got %+v", last)
	}
}

func TestAdjustStock_ClampsAtZero(t *testing.T) {
	s := seeded()

	if !s.AdjustStock("PRD-1", -50) {
		t.Fatal("AdjustStock returned false for existing product")
	}
	if got := s.Product("PRD-1").CurrentStock; got != 0 {
		t.Errorf("Expected stock clamped to 0, got %v", got)
	}
	if s.AdjustStock("PRD-404", 10) {
		t.Error("AdjustStock returned true for missing product")
	}
}

func TestAdvanceOrder_CreditsStockExactlyOnce(t *testing.T) {
	s := seeded()
	po := &domain.PurchaseOrder{
		POID:      "PO-1",
		ProductID: "PRD-2",
		Quantity:  40,
		Status:    domain.OrderShipped,
	}
	s.AddPurchaseOrder(po)

	credited, ok := s.AdvanceOrder("PO-1", domain.OrderDelivered)
	if !ok || !credited {
		t.Fatalf("Expected first delivery to credit stock (credited=%v ok=%v)", credited, ok)
	}
	if got := s.Product("PRD-2").CurrentStock; got != 40 {
		t.Errorf("Expected stock 40 after delivery, got %v", got)
	}

	// A second delivered transition must not credit again.
	credited, ok = s.AdvanceOrder("PO-1", domain.OrderDelivered)
	if !ok {
		t.Fatal("AdvanceOrder returned false for existing order")
	}
	if credited {
		t.Error("Expected no second credit for repeated delivery")
	}
	if got := s.Product("PRD-2").CurrentStock; got != 40 {
		t.Errorf("Expected stock unchanged at 40, got %v", got)
	}
}

func TestDecideApproval_OverwritesPriorDecision(t *testing.T) {
	s := New()
	req := domain.NewApprovalRequest("purchase_order", "big PO", 60_000, domain.SeverityHigh, nil)
	s.AddApproval(req)

	if got := s.PendingApprovals(); len(got) != 1 {
		t.Fatalf("Expected 1 pending approval, got %d", len(got))
	}

	decided, ok := s.DecideApproval(req.RequestID, true, "alice", "looks fine")
	if !ok {
		t.Fatal("DecideApproval returned false for existing request")
	}
	if decided.Status != domain.ApprovalApproved {
		t.Errorf("Expected approved, got %q", decided.Status)
	}
	if got := s.PendingApprovals(); len(got) != 0 {
		t.Errorf("Expected no pending approvals after decision, got %d", len(got))
	}

	// A second decision overwrites the first; the store does not guard.
	decided, ok = s.DecideApproval(req.RequestID, false, "bob", "changed my mind")
	if !ok || decided.Status != domain.ApprovalRejected {
		t.Errorf("Expected second decision to overwrite, got %q", decided.Status)
	}
	if decided.DecidedBy != "bob" {
		t.Errorf("Expected decided_by bob, got %q", decided.DecidedBy)
	}
}

func TestConsumeDemand(t *testing.T) {
	s := seeded()

	s.ConsumeDemand(map[string]float64{"PRD-1": 30, "PRD-2": 5})

	if got := s.Product("PRD-1").CurrentStock; got != 70 {
		t.Errorf("Expected PRD-1 stock 70, got %v", got)
	}
	if got := s.Product("PRD-2").CurrentStock; got != 0 {
		t.Errorf("Expected PRD-2 stock clamped at 0, got %v", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := seeded()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.AdjustStock("PRD-1", 50)
			s.AddPurchaseOrder(&domain.PurchaseOrder{POID: domain.NewID("PO"), ProductID: "PRD-1"})
		}()
		go func() {
			defer wg.Done()
			_ = s.Products()
			_ = s.PurchaseOrders()
			_ = s.PendingApprovals()
		}()
	}
	wg.Wait()

	if got := len(s.PurchaseOrders()); got != 20 {
		t.Errorf("Expected 20 purchase orders, got %d", got)
	}
}
