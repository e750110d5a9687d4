package llm

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"
)

// Intent patterns checked in order; the first match wins.
var (
	demandKeywords     = regexp.MustCompile(`(?i)demand|forecast|predict|sales|trend`)
	riskKeywords       = regexp.MustCompile(`(?i)risk|disrupt|shortage|delay|threat|vulnerability`)
	inventoryKeywords  = regexp.MustCompile(`(?i)inventory|stock|reorder|safety.?stock|warehouse`)
	supplierKeywords   = regexp.MustCompile(`(?i)supplier|vendor|procurement|purchase|sourcing`)
	anomalyKeywords    = regexp.MustCompile(`(?i)anomal|outlier|unusual|spike|abnormal`)
	logisticsKeywords  = regexp.MustCompile(`(?i)logistics|shipping|delivery|transport|route`)
	marketKeywords     = regexp.MustCompile(`(?i)market|intelligence|news|economic|industry`)
	reportKeywords     = regexp.MustCompile(`(?i)report|summary|dashboard|executive|overview`)
	coordinateKeywords = regexp.MustCompile(`(?i)coordinate|conflict|priorit|arbitrat|consensus`)
	optimizeKeywords   = regexp.MustCompile(`(?i)optimi|improve|efficien|reduce.?cost|saving`)
)

// MockClient matches prompt intent by keyword and returns a plausible
// canned response. No network, no key; the default backend.
type MockClient struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockClient creates a mock backend. A zero seed seeds from the
// clock.
func NewMockClient(seed int64) *MockClient {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockClient{rng: rand.New(rand.NewSource(seed))}
}

// Name implements Client.
func (m *MockClient) Name() string { return "mock" }

// Generate implements Client. Never fails.
func (m *MockClient) Generate(_ context.Context, prompt, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case demandKeywords.MatchString(prompt):
		trend := m.pick("upward", "stable", "seasonal spike")
		return fmt.Sprintf(
			"Based on analysis, demand shows a %s pattern. "+
				"Recommended forecast adjustment: %.1f%%. Confidence: %.0f%%. "+
				"Key drivers: seasonal effects and recent promotional activity.",
			trend, m.between(-5, 15), m.between(70, 95)), nil

	case riskKeywords.MatchString(prompt):
		level := m.pick("low", "medium", "high")
		return fmt.Sprintf(
			"Risk assessment: overall supply risk is %s. "+
				"Top concern: lead-time variability (score %.2f). "+
				"Mitigation: consider dual-sourcing for critical SKUs and increasing safety stock by 10-15%%.",
			level, m.between(0.2, 0.9)), nil

	case inventoryKeywords.MatchString(prompt):
		action := m.pick(
			"increase safety stock by 12%",
			"reduce reorder point by 8%",
			"maintain current levels",
			"trigger emergency replenishment",
		)
		return fmt.Sprintf(
			"Inventory recommendation: %s. Current DSI: %.1f days. "+
				"Estimated cost impact: $%.0f.",
			action, m.between(15, 55), m.between(-5000, 10000)), nil

	case supplierKeywords.MatchString(prompt):
		supplier := m.pick("GlobalTech Supply", "Pacific Rim Trading", "EuroLogistics")
		return fmt.Sprintf(
			"Recommended supplier: %s (reliability: %.0f%%, cost multiplier: %.2f). "+
				"Alternative suppliers identified as backup options.",
			supplier, m.between(80, 98), m.between(0.9, 1.15)), nil

	case anomalyKeywords.MatchString(prompt):
		atype := m.pick("demand spike", "cost anomaly", "lead-time anomaly")
		return fmt.Sprintf(
			"Anomaly detected: %s with score %.2f. "+
				"Recommend investigation and potential corrective action.",
			atype, m.between(0.6, 0.99)), nil

	case logisticsKeywords.MatchString(prompt):
		return fmt.Sprintf(
			"Logistics status: %d shipments in transit. "+
				"Average delivery time: %.1f days. On-time rate: %.0f%%.",
			2+m.rng.Intn(7), m.between(3, 12), m.between(82, 97)), nil

	case marketKeywords.MatchString(prompt):
		topic := m.pick(
			"raw material price increase",
			"new competitor entry",
			"regulatory change",
			"seasonal demand shift",
		)
		return fmt.Sprintf(
			"Market intelligence: %s detected. Estimated impact: %s. "+
				"Recommend monitoring over next 2 weeks.",
			topic, m.pick("positive", "negative", "neutral")), nil

	case reportKeywords.MatchString(prompt):
		return fmt.Sprintf(
			"Executive Summary: System operating within normal parameters. "+
				"OTIF: %.0f%%, Fill Rate: %.0f%%, Active alerts: %d. "+
				"No critical issues requiring immediate attention.",
			m.between(88, 98), m.between(92, 99), m.rng.Intn(6)), nil

	case coordinateKeywords.MatchString(prompt):
		return fmt.Sprintf(
			"Coordination assessment: all agents aligned. Resolved %d minor conflicts. "+
				"Priority actions queued for execution. No escalation required this cycle.",
			m.rng.Intn(4)), nil

	case optimizeKeywords.MatchString(prompt):
		return fmt.Sprintf(
			"Optimization complete. Estimated savings: $%.0f. Efficiency gain: %.1f%%. "+
				"Recommended changes applied to reorder parameters.",
			m.between(1000, 25000), m.between(2, 12)), nil
	}

	return "Analysis complete. Current supply chain status is stable. " +
		"No immediate actions required. Continuing monitoring.", nil
}

func (m *MockClient) pick(options ...string) string {
	return options[m.rng.Intn(len(options))]
}

func (m *MockClient) between(lo, hi float64) float64 {
	return lo + m.rng.Float64()*(hi-lo)
}
