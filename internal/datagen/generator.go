// Package datagen produces the synthetic supply chain dataset the
// simulation runs on: products, suppliers, and daily demand history
// with seasonal structure.
package datagen

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
)

// template is a product name with baseline costs.
type template struct {
	name         string
	unitCost     float64
	sellingPrice float64
}

var productTemplates = map[domain.ProductCategory][]template{
	domain.CategoryElectronics: {
		{"Wireless Earbuds", 15.0, 39.99},
		{"USB-C Hub", 8.0, 24.99},
		{"Power Bank 10K", 12.0, 29.99},
		{"Smart Watch Band", 3.0, 14.99},
		{"Bluetooth Speaker", 18.0, 49.99},
		{"Laptop Stand", 10.0, 34.99},
		{"Webcam HD", 14.0, 44.99},
		{"Wireless Mouse", 6.0, 19.99},
		{"Phone Case Premium", 2.0, 12.99},
		{"LED Desk Lamp", 9.0, 29.99},
	},
	domain.CategoryFood: {
		{"Organic Coffee 1kg", 5.0, 14.99},
		{"Protein Bar Box", 8.0, 24.99},
		{"Olive Oil 500ml", 4.0, 12.99},
		{"Almond Butter", 3.5, 9.99},
		{"Granola Mix", 2.0, 7.99},
		{"Green Tea 100ct", 3.0, 11.99},
		{"Dried Mango Pack", 2.5, 8.99},
		{"Coconut Water 12pk", 6.0, 18.99},
		{"Dark Chocolate Bar", 1.5, 4.99},
		{"Quinoa 2kg", 4.0, 13.99},
	},
	domain.CategoryPharma: {
		{"Vitamin D3 5000IU", 3.0, 12.99},
		{"Omega-3 Fish Oil", 5.0, 19.99},
		{"Probiotic 30ct", 4.0, 24.99},
		{"Zinc Tablets", 1.5, 8.99},
		{"Magnesium Citrate", 2.5, 14.99},
		{"Collagen Powder", 8.0, 29.99},
		{"Melatonin 5mg", 1.0, 7.99},
		{"Iron Supplement", 2.0, 11.99},
		{"Vitamin C 1000mg", 1.5, 9.99},
		{"Calcium + D3", 3.0, 13.99},
	},
	domain.CategoryIndustrial: {
		{"Steel Bolt M10 100pk", 4.0, 12.99},
		{"Bearing 6205-2RS", 3.0, 9.99},
		{"Hydraulic Hose 1m", 8.0, 22.99},
		{"Safety Gloves 12pk", 5.0, 18.99},
		{"Cable Ties 500pk", 1.5, 6.99},
		{"Lubricant WD-40 400ml", 2.0, 7.99},
		{"Sandpaper Set", 1.0, 5.99},
		{"Drill Bit Set", 6.0, 19.99},
		{"Welding Rod 5kg", 7.0, 24.99},
		{"Pipe Fitting 1in", 2.5, 8.99},
	},
	domain.CategoryApparel: {
		{"Cotton T-Shirt", 3.0, 14.99},
		{"Running Socks 6pk", 4.0, 16.99},
		{"Work Boots", 25.0, 79.99},
		{"Rain Jacket", 15.0, 49.99},
		{"Baseball Cap", 4.0, 14.99},
		{"Thermal Underwear", 8.0, 24.99},
		{"Cargo Pants", 12.0, 39.99},
		{"Fleece Hoodie", 10.0, 34.99},
		{"Wool Scarf", 6.0, 19.99},
		{"Leather Belt", 5.0, 22.99},
	},
}

var supplierNames = []string{
	"GlobalTech Supply", "Pacific Rim Trading", "EuroLogistics GmbH",
	"ShenZhen Direct", "Midwest Materials", "Atlantic Imports",
	"Nordic Components", "Sahara Trading Co", "Southern Cross Supply",
	"Maple Leaf Logistics", "Rhine Valley Parts", "Tokyo Express Co",
	"Mumbai Manufacturing", "Santiago Exports", "Cairo Distribution",
	"Seoul Smart Supply", "Berlin Precision", "Sydney Freight",
	"Dubai Hub Trading", "Vancouver Components",
}

// Generator builds the synthetic dataset. Seeded for reproducible
// test runs.
type Generator struct {
	cfg config.SimulationConfig
	rng *rand.Rand
}

// New creates a generator with the given simulation parameters.
func New(cfg config.SimulationConfig, seed int64) *Generator {
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// A share of products start over-stocked at 2.2x their lead-time
// demand, reflecting the imbalance pattern the system is meant to
// surface.
const (
	overstockFactor = 2.2
	overstockShare  = 0.3
)

// Products generates n synthetic products cycling through category
// templates, with variant suffixes once templates repeat.
func (g *Generator) Products(n int) []*domain.Product {
	if n <= 0 {
		n = g.cfg.NumProducts
	}
	products := make([]*domain.Product, 0, n)

	for i := 0; i < n; i++ {
		cat := domain.Categories[i%len(domain.Categories)]
		templates := productTemplates[cat]
		tmpl := templates[i%len(templates)]

		name := tmpl.name
		if variant := i / len(templates); variant > 0 {
			name = fmt.Sprintf("%s v%d", name, variant+1)
		}

		leadTime := 3 + g.rng.Intn(19) // 3-21 days
		demandAvg := 10 + g.rng.Float64()*190
		demandStd := demandAvg * (0.15 + g.rng.Float64()*0.30)

		stockFactor := 1.0
		if g.rng.Float64() < overstockShare {
			stockFactor = overstockFactor
		}
		safetyStock := demandStd * math.Sqrt(float64(leadTime)) * 1.65
		reorderPoint := demandAvg*float64(leadTime) + safetyStock

		moqs := []int{50, 100, 200, 500}
		products = append(products, &domain.Product{
			ProductID:      fmt.Sprintf("PRD-%04d", i+1),
			Name:           name,
			Category:       cat,
			UnitCost:       tmpl.unitCost * (0.9 + g.rng.Float64()*0.2),
			SellingPrice:   tmpl.sellingPrice * (0.95 + g.rng.Float64()*0.1),
			LeadTimeDays:   leadTime,
			MinOrderQty:    moqs[g.rng.Intn(len(moqs))],
			CurrentStock:   demandAvg * float64(leadTime) * stockFactor,
			ReorderPoint:   reorderPoint,
			SafetyStock:    safetyStock,
			DailyDemandAvg: demandAvg,
			DailyDemandStd: demandStd,
		})
	}

	return products
}

// Suppliers generates n synthetic suppliers from the name pool.
func (g *Generator) Suppliers(n int) []*domain.Supplier {
	if n <= 0 {
		n = g.cfg.NumSuppliers
	}
	suppliers := make([]*domain.Supplier, 0, n)

	for i := 0; i < n; i++ {
		name := supplierNames[i%len(supplierNames)]
		if variant := i / len(supplierNames); variant > 0 {
			name = fmt.Sprintf("%s #%d", name, variant+1)
		}

		suppliers = append(suppliers, &domain.Supplier{
			SupplierID:       fmt.Sprintf("SUP-%04d", i+1),
			Name:             name,
			ReliabilityScore: round3(clamp(g.rng.NormFloat64()*0.1+0.85, 0.5, 0.99)),
			LeadTimeMean:     3 + g.rng.Float64()*11,
			LeadTimeStd:      0.5 + g.rng.Float64()*3.5,
			CostMultiplier:   0.85 + g.rng.Float64()*0.40,
			Capacity:         5000 + g.rng.Float64()*45000,
			DefectRate:       round4(clamp(g.rng.NormFloat64()*0.01+0.02, 0.001, 0.1)),
			OnTimeRate:       round3(clamp(g.rng.NormFloat64()*0.08+0.9, 0.6, 0.99)),
			IsActive:         true,
		})
	}

	return suppliers
}

// AssignSuppliers links each product to one to three suppliers.
func (g *Generator) AssignSuppliers(products []*domain.Product, suppliers []*domain.Supplier) {
	if len(suppliers) == 0 {
		return
	}
	for _, p := range products {
		n := 1 + g.rng.Intn(min(3, len(suppliers)))
		for _, idx := range g.rng.Perm(len(suppliers))[:n] {
			s := suppliers[idx]
			if !s.Supplies(p.ProductID) {
				s.Products = append(s.Products, p.ProductID)
			}
		}
	}
}

// DemandHistory generates days of daily demand per product with weekly
// and monthly seasonality, a Q4 spike for electronics and apparel, a
// mild trend, promotions on roughly 5% of days, and gaussian noise.
func (g *Generator) DemandHistory(products []*domain.Product, days int) []domain.DemandRecord {
	if days <= 0 {
		days = g.cfg.HistoryDays
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -days)

	var records []domain.DemandRecord
	for _, p := range products {
		trendSlope := -0.05 + g.rng.Float64()*0.20

		for i := 0; ; i++ {
			date := start.AddDate(0, 0, i)
			if date.After(end) {
				break
			}

			dow := int(date.Weekday())
			weeklyFactor := 1.0
			if dow == 0 || dow == 6 {
				weeklyFactor = 0.7
			}

			monthlyFactor := 1.0 + 0.1*math.Sin(2*math.Pi*float64(date.Day())/30)

			annualFactor := 1.0
			if p.Category == domain.CategoryElectronics || p.Category == domain.CategoryApparel {
				switch date.Month() {
				case time.November, time.December:
					annualFactor = 1.5
				case time.January, time.February:
					annualFactor = 0.8
				}
			}

			trend := 1.0 + trendSlope*float64(i)/float64(days)

			isPromo := g.rng.Float64() < 0.05
			promoFactor := 1.0
			if isPromo {
				promoFactor = 1.5 + g.rng.Float64()*1.5
			}

			isHoliday := date.Month() == time.December && date.Day() >= 20

			base := p.DailyDemandAvg * weeklyFactor * monthlyFactor * annualFactor * trend * promoFactor
			qty := math.Max(0, base+g.rng.NormFloat64()*p.DailyDemandStd)

			records = append(records, domain.DemandRecord{
				Date:        date,
				ProductID:   p.ProductID,
				Quantity:    math.Round(qty*10) / 10,
				IsPromotion: isPromo,
				IsHoliday:   isHoliday,
				Temperature: math.Round((15+10*math.Sin(2*math.Pi*float64(date.YearDay()-80)/365))*10) / 10,
				DayOfWeek:   dow,
				Month:       int(date.Month()),
			})
		}
	}

	return records
}

// GenerateAll builds the complete dataset with configured sizes.
func (g *Generator) GenerateAll() ([]*domain.Product, []*domain.Supplier, []domain.DemandRecord) {
	products := g.Products(0)
	suppliers := g.Suppliers(0)
	g.AssignSuppliers(products, suppliers)
	demand := g.DemandHistory(products, 0)
	return products, suppliers, demand
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
