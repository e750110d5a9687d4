// Package anomaly detects demand and stock-level anomalies from
// per-product demand statistics.
package anomaly

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/logging"
)

// productStats are the fitted statistics for one product's demand series.
type productStats struct {
	mean   float64
	std    float64
	median float64
	min    float64
	max    float64
}

// Detector flags demand spikes by z-score and stock imbalances by days
// of supply. Fit before Detect; an unfitted detector reports nothing.
type Detector struct {
	cfg config.KPIConfig
	log *logging.Logger

	mu     sync.RWMutex
	stats  map[string]productStats
	fitted bool
}

// NewDetector creates an anomaly detector using the configured DSI
// bounds for over/understock classification.
func NewDetector(cfg config.KPIConfig, log *logging.Logger) *Detector {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Detector{
		cfg:   cfg,
		log:   log.WithComponent("anomaly_detector"),
		stats: make(map[string]productStats),
	}
}

// minSamples is the fewest demand records needed to fit a product.
const minSamples = 10

// Fit computes per-product demand statistics from history. Products
// with fewer than ten records are skipped.
func (d *Detector) Fit(history []domain.DemandRecord) {
	series := make(map[string][]float64)
	for _, r := range history {
		series[r.ProductID] = append(series[r.ProductID], r.Quantity)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for pid, values := range series {
		if len(values) < minSamples {
			continue
		}
		d.stats[pid] = fitSeries(values)
	}
	d.fitted = true
	d.log.Info("anomaly_detector_fitted", "products", len(d.stats))
}

func fitSeries(values []float64) productStats {
	var sum float64
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(values)))

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}

	return productStats{mean: mean, std: std, median: median, min: min, max: max}
}

// Detect checks one product for a demand spike and for stock outside
// the DSI bounds. Returns nothing for products the detector was not
// fitted on.
func (d *Detector) Detect(p *domain.Product) []domain.AnomalyRecord {
	d.mu.RLock()
	stats, ok := d.stats[p.ProductID]
	fitted := d.fitted
	d.mu.RUnlock()
	if !fitted || !ok {
		return nil
	}

	var anomalies []domain.AnomalyRecord

	z := math.Abs(p.DailyDemandAvg-stats.mean) / math.Max(stats.std, 0.01)
	if z > 2.5 {
		severity := domain.SeverityMedium
		switch {
		case z > 4:
			severity = domain.SeverityCritical
		case z > 3:
			severity = domain.SeverityHigh
		}
		anomalies = append(anomalies, domain.AnomalyRecord{
			AnomalyID:   domain.NewID("ANM"),
			Timestamp:   time.Now().UTC(),
			AnomalyType: "demand_spike",
			ProductID:   p.ProductID,
			Severity:    severity,
			Score:       round3(math.Min(z/5, 1.0)),
			Description: fmt.Sprintf("Demand anomaly: z-score=%.2f, current=%.1f, mean=%.1f",
				z, p.DailyDemandAvg, stats.mean),
		})
	}

	if p.CurrentStock > 0 && stats.mean > 0 {
		dsi := p.CurrentStock / stats.mean
		if dsi > d.cfg.DSIMax {
			anomalies = append(anomalies, domain.AnomalyRecord{
				AnomalyID:   domain.NewID("ANM"),
				Timestamp:   time.Now().UTC(),
				AnomalyType: "overstock",
				ProductID:   p.ProductID,
				Severity:    domain.SeverityMedium,
				Score:       round3(math.Min(dsi/100, 1.0)),
				Description: fmt.Sprintf("Overstock: DSI=%.1f days (max=%.0f)", dsi, d.cfg.DSIMax),
			})
		} else if dsi < d.cfg.DSIMin {
			anomalies = append(anomalies, domain.AnomalyRecord{
				AnomalyID:   domain.NewID("ANM"),
				Timestamp:   time.Now().UTC(),
				AnomalyType: "understock",
				ProductID:   p.ProductID,
				Severity:    domain.SeverityHigh,
				Score:       round3(1 - dsi/d.cfg.DSIMin),
				Description: fmt.Sprintf("Understock: DSI=%.1f days (min=%.0f)", dsi, d.cfg.DSIMin),
			})
		}
	}

	return anomalies
}

// DetectBatch runs detection across the given products.
func (d *Detector) DetectBatch(products []*domain.Product) []domain.AnomalyRecord {
	var all []domain.AnomalyRecord
	for _, p := range products {
		all = append(all, d.Detect(p)...)
	}
	return all
}

// Fitted reports whether Fit has run.
func (d *Detector) Fitted() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fitted
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
