// Package forecast predicts per-product demand from historical records
// using a seasonal moving average with a linear trend.
package forecast

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/logging"
)

// fit holds the learned statistics for one product.
type fit struct {
	mean    float64
	std     float64
	trend   float64
	weekly  [7]float64 // average demand per weekday
	samples int
}

// Accuracy is the holdout evaluation of a fitted product.
type Accuracy struct {
	ProductID string  `json:"product_id"`
	MAPE      float64 `json:"mape"`
	Samples   int     `json:"samples"`
}

// Forecaster predicts demand as weekday seasonal average plus trend,
// with a 90% confidence band from the residual spread. Fit before
// Predict; unknown products predict nothing.
type Forecaster struct {
	log *logging.Logger
	rng *rand.Rand

	mu       sync.RWMutex
	fits     map[string]fit
	accuracy map[string]Accuracy
}

// NewForecaster creates a forecaster seeded for reproducible noise.
func NewForecaster(log *logging.Logger, seed int64) *Forecaster {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Forecaster{
		log:      log.WithComponent("forecaster"),
		rng:      rand.New(rand.NewSource(seed)),
		fits:     map[string]fit{},
		accuracy: map[string]Accuracy{},
	}
}

// minHistory is the fewest records needed to fit a product.
const minHistory = 14

// holdoutDays is the evaluation window used to compute MAPE when
// enough history exists.
const holdoutDays = 30

// Fit trains on the demand history for the given products. Products
// with under two weeks of records are skipped. When a product has more
// than 60 records the last 30 are held out to measure MAPE.
func (f *Forecaster) Fit(history []domain.DemandRecord, productIDs []string) {
	byProduct := make(map[string][]domain.DemandRecord)
	for _, r := range history {
		byProduct[r.ProductID] = append(byProduct[r.ProductID], r)
	}

	fitted := 0
	for _, pid := range productIDs {
		records := byProduct[pid]
		if len(records) < minHistory {
			f.log.Warn("forecast_fit_skip", "product_id", pid, "records", len(records))
			continue
		}

		train := records
		var holdout []domain.DemandRecord
		if len(records) > 2*holdoutDays {
			train = records[:len(records)-holdoutDays]
			holdout = records[len(records)-holdoutDays:]
		}

		model := fitRecords(train)
		f.mu.Lock()
		f.fits[pid] = model
		f.mu.Unlock()

		if len(holdout) > 0 {
			f.evaluate(pid, model, holdout)
		}
		fitted++
	}
	f.log.Info("forecaster_fitted", "products", fitted)
}

func fitRecords(records []domain.DemandRecord) fit {
	var sum float64
	var weekSum [7]float64
	var weekN [7]int
	for _, r := range records {
		sum += r.Quantity
		dow := r.DayOfWeek % 7
		weekSum[dow] += r.Quantity
		weekN[dow]++
	}
	mean := sum / float64(len(records))

	var sq float64
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Quantity
		sq += (r.Quantity - mean) * (r.Quantity - mean)
	}
	std := math.Sqrt(sq / float64(len(records)))

	var weekly [7]float64
	for d := 0; d < 7; d++ {
		if weekN[d] > 0 {
			weekly[d] = weekSum[d] / float64(weekN[d])
		} else {
			weekly[d] = mean
		}
	}

	return fit{
		mean:    mean,
		std:     std,
		trend:   slope(values),
		weekly:  weekly,
		samples: len(records),
	}
}

func (f *Forecaster) evaluate(pid string, model fit, holdout []domain.DemandRecord) {
	var errSum float64
	n := 0
	for i, r := range holdout {
		if r.Quantity <= 0 {
			continue
		}
		predicted := model.weekly[r.DayOfWeek%7] + model.trend*float64(i)
		errSum += math.Abs(r.Quantity-predicted) / r.Quantity * 100
		n++
	}
	mape := 100.0
	if n > 0 {
		mape = errSum / float64(n)
	}

	f.mu.Lock()
	f.accuracy[pid] = Accuracy{ProductID: pid, MAPE: math.Round(mape*100) / 100, Samples: n}
	f.mu.Unlock()
}

// Predict forecasts demand for the next horizon days, starting
// tomorrow. Unknown products return nil.
func (f *Forecaster) Predict(productID string, horizon int) []domain.ForecastResult {
	f.mu.RLock()
	model, ok := f.fits[productID]
	f.mu.RUnlock()
	if !ok || horizon <= 0 {
		return nil
	}

	now := time.Now().UTC()
	results := make([]domain.ForecastResult, 0, horizon)
	for i := 0; i < horizon; i++ {
		date := now.AddDate(0, 0, i+1)
		base := model.weekly[int(date.Weekday())]

		f.mu.Lock()
		noise := f.rng.NormFloat64() * model.std * 0.2
		f.mu.Unlock()

		predicted := math.Max(0, base+model.trend*float64(i)+noise)
		results = append(results, domain.ForecastResult{
			ProductID:       productID,
			ForecastDate:    date,
			PredictedDemand: round1(predicted),
			ConfidenceLower: round1(math.Max(0, predicted-1.65*model.std)),
			ConfidenceUpper: round1(predicted + 1.65*model.std),
			ModelUsed:       "seasonal_ma",
		})
	}
	return results
}

// GetAccuracy returns the holdout accuracy for a product. Products
// without a holdout evaluation report zero MAPE and equal placeholder
// figures.
func (f *Forecaster) GetAccuracy(productID string) Accuracy {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if acc, ok := f.accuracy[productID]; ok {
		return acc
	}
	return Accuracy{ProductID: productID}
}

// MeanMAPE averages MAPE across all evaluated products, or false when
// nothing was evaluated.
func (f *Forecaster) MeanMAPE() (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.accuracy) == 0 {
		return 0, false
	}
	var sum float64
	for _, acc := range f.accuracy {
		sum += acc.MAPE
	}
	return math.Round(sum/float64(len(f.accuracy))*100) / 100, true
}

// Fitted reports whether the product has a trained model.
func (f *Forecaster) Fitted(productID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.fits[productID]
	return ok
}

func slope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
