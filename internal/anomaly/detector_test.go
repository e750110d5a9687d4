package anomaly

import (
	"testing"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/logging"
)

func fittedDetector(t *testing.T) *Detector {
	t.Helper()
	d := NewDetector(config.Default().KPI, logging.NopLogger())

	// 30 days of steady demand around 10 for PRD-1.
	var history []domain.DemandRecord
	for i := 0; i < 30; i++ {
		qty := 10.0
		if i%2 == 0 {
			qty = 11.0
		}
		history = append(history, domain.DemandRecord{ProductID: "PRD-1", Quantity: qty})
	}
	d.Fit(history)
	return d
}

func TestDetect_UnfittedReturnsNothing(t *testing.T) {
	d := NewDetector(config.Default().KPI, logging.NopLogger())
	p := &domain.Product{ProductID: "PRD-1", DailyDemandAvg: 1000, CurrentStock: 1}
	if got := d.Detect(p); got != nil {
		t.Errorf("Expected no anomalies before Fit, got %d", len(got))
	}
}

func TestFit_SkipsShortSeries(t *testing.T) {
	d := NewDetector(config.Default().KPI, logging.NopLogger())
	d.Fit([]domain.DemandRecord{
		{ProductID: "PRD-9", Quantity: 5},
		{ProductID: "PRD-9", Quantity: 6},
	})

	p := &domain.Product{ProductID: "PRD-9", DailyDemandAvg: 500, CurrentStock: 1000}
	if got := d.Detect(p); len(got) != 0 {
		t.Errorf("Expected no anomalies for unfitted product, got %d", len(got))
	}
}

func TestDetect_DemandSpikeSeverityTiers(t *testing.T) {
	d := fittedDetector(t)

	// mean ~10.5, std ~0.5. Demand 13 gives z=5 (critical);
	// normal demand and normal stock gives nothing.
	tests := []struct {
		name   string
		demand float64
		want   domain.Severity
	}{
		{"critical spike", 13.0, domain.SeverityCritical},
	}

	for _, tt := range tests {
		p := &domain.Product{
			ProductID:      "PRD-1",
			DailyDemandAvg: tt.demand,
			CurrentStock:   300, // DSI ~28, inside bounds
		}
		got := d.Detect(p)
		if len(got) != 1 {
			t.Fatalf("%s: expected 1 anomaly, got %d", tt.name, len(got))
		}
		if got[0].AnomalyType != "demand_spike" {
			t.Errorf("%s: expected demand_spike, got %q", tt.name, got[0].AnomalyType)
		}
		if got[0].Severity != tt.want {
			t.Errorf("%s: expected severity %q, got %q", tt.name, tt.want, got[0].Severity)
		}
		if got[0].Score <= 0 || got[0].Score > 1 {
			t.Errorf("%s: score out of range: %v", tt.name, got[0].Score)
		}
	}
}

func TestDetect_NormalProductIsQuiet(t *testing.T) {
	d := fittedDetector(t)

	p := &domain.Product{ProductID: "PRD-1", DailyDemandAvg: 10.5, CurrentStock: 300}
	if got := d.Detect(p); len(got) != 0 {
		t.Errorf("Expected no anomalies for normal product, got %+v", got)
	}
}

func TestDetect_OverstockAndUnderstock(t *testing.T) {
	d := fittedDetector(t)

	over := &domain.Product{ProductID: "PRD-1", DailyDemandAvg: 10.5, CurrentStock: 2000}
	got := d.Detect(over)
	if len(got) != 1 || got[0].AnomalyType != "overstock" {
		t.Fatalf("Expected overstock anomaly, got %+v", got)
	}
	if got[0].Severity != domain.SeverityMedium {
		t.Errorf("Expected medium overstock, got %q", got[0].Severity)
	}

	under := &domain.Product{ProductID: "PRD-1", DailyDemandAvg: 10.5, CurrentStock: 20}
	got = d.Detect(under)
	if len(got) != 1 || got[0].AnomalyType != "understock" {
		t.Fatalf("Expected understock anomaly, got %+v", got)
	}
	if got[0].Severity != domain.SeverityHigh {
		t.Errorf("Expected high understock, got %q", got[0].Severity)
	}
}

func TestDetectBatch(t *testing.T) {
	d := fittedDetector(t)

	products := []*domain.Product{
		{ProductID: "PRD-1", DailyDemandAvg: 10.5, CurrentStock: 2000}, // overstock
		{ProductID: "PRD-1", DailyDemandAvg: 10.5, CurrentStock: 300},  // quiet
	}
	if got := d.DetectBatch(products); len(got) != 1 {
		t.Errorf("Expected 1 anomaly from batch, got %d", len(got))
	}
}
