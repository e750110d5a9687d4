package domain

import (
	"strings"
	"testing"
)

func TestNewID_Format(t *testing.T) {
	id := NewID("PO")
	if !strings.HasPrefix(id, "PO-") {
		t.Errorf("Expected PO- prefix, got %q", id)
	}
	if len(id) != len("PO-")+8 {
		t.Errorf("Expected 8-char suffix, got %q", id)
	}
	if id == NewID("PO") {
		t.Error("Expected distinct ids from successive calls")
	}
}

func TestPurchaseOrder_Active(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderPending, true},
		{OrderApproved, true},
		{OrderShipped, true},
		{OrderDelivered, false},
		{OrderCancelled, false},
	}

	for _, tt := range tests {
		po := &PurchaseOrder{Status: tt.status}
		if got := po.Active(); got != tt.want {
			t.Errorf("Active() with status %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSupplier_Supplies(t *testing.T) {
	s := &Supplier{Products: []string{"PRD-1", "PRD-2"}}

	if !s.Supplies("PRD-2") {
		t.Error("Expected supplier to carry PRD-2")
	}
	if s.Supplies("PRD-9") {
		t.Error("Expected supplier not to carry PRD-9")
	}
}

func TestKPISnapshot_Metric(t *testing.T) {
	s := &KPISnapshot{
		OTIF:          0.93,
		FillRate:      0.98,
		StockoutCount: 4,
	}

	if got := s.Metric("otif"); got != 0.93 {
		t.Errorf("Metric(otif) = %v, want 0.93", got)
	}
	if got := s.Metric("stockout_count"); got != 4.0 {
		t.Errorf("Metric(stockout_count) = %v, want 4", got)
	}
	if got := s.Metric("nonsense"); got != 0 {
		t.Errorf("Metric(nonsense) = %v, want 0", got)
	}
}

func TestNewApprovalRequest_StartsPending(t *testing.T) {
	req := NewApprovalRequest("purchase_order", "PO for PRD-1", 25_000, SeverityMedium, nil)

	if req.Status != ApprovalPending {
		t.Errorf("Expected pending status, got %q", req.Status)
	}
	if !strings.HasPrefix(req.RequestID, "APR-") {
		t.Errorf("Expected APR- prefix, got %q", req.RequestID)
	}
	if req.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}
