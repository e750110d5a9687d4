// Package console renders cycle results and inventory summaries for
// terminal output.
package console

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/orchestrator"
)

var (
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	goodColor    = lipgloss.Color("#10B981") // Green
	warnColor    = lipgloss.Color("#F59E0B") // Amber
	badColor     = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	borderColor  = lipgloss.Color("#6B7280") // Gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(goodColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	warnStyle = lipgloss.NewStyle().
			Foreground(warnColor)

	badStyle = lipgloss.NewStyle().
			Foreground(badColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)
)

// kpiRow pairs a snapshot key with its display label and format.
type kpiRow struct {
	key    string
	label  string
	format string
	pct    bool
}

var kpiRows = []kpiRow{
	{"otif", "OTIF", "%.1f%%", true},
	{"fill_rate", "Fill Rate", "%.1f%%", true},
	{"mape", "Forecast MAPE", "%.1f%%", false},
	{"dsi", "Days of Supply", "%.1f", false},
	{"stockout_count", "Stockouts", "%.0f", false},
	{"total_inventory_value", "Inventory Value", "$%.0f", false},
	{"perfect_order_rate", "Perfect Orders", "%.1f%%", true},
	{"inventory_turnover", "Turnover", "%.1f", false},
}

// RenderCycle produces the per-cycle report shown by the run command.
func RenderCycle(res orchestrator.CycleResult) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Cycle %d", res.Cycle)))
	if res.ReportID != "" {
		b.WriteString(mutedStyle.Render("  " + res.ReportID))
	}
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Key Metrics"))
	b.WriteString("\n")
	for _, row := range kpiRows {
		v, ok := res.KPI[row.key].(float64)
		if !ok {
			continue
		}
		if row.pct {
			v *= 100
		}
		b.WriteString(fmt.Sprintf("  %-16s %s\n", row.label, fmt.Sprintf(row.format, v)))
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Agents"))
	b.WriteString("\n")
	names := make([]string, 0, len(res.AgentResults))
	for name := range res.AgentResults {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		summary := res.AgentResults[name]
		if summary == "" {
			summary = "no activity"
		}
		b.WriteString(fmt.Sprintf("  %-22s %s\n", name, mutedStyle.Render(summary)))
	}
	b.WriteString("\n")

	switch {
	case res.Violations == 0:
		b.WriteString(mutedStyle.Render("No KPI threshold violations"))
	case res.Violations <= 2:
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d KPI threshold violation(s)", res.Violations)))
	default:
		b.WriteString(badStyle.Render(fmt.Sprintf("%d KPI threshold violations", res.Violations)))
	}
	b.WriteString("\n")

	return boxStyle.Render(b.String())
}

// RenderInventory lists per-product stock standing, critical items
// first.
func RenderInventory(products []*domain.Product) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Inventory"))
	b.WriteString("\n\n")

	sorted := make([]*domain.Product, len(products))
	copy(sorted, products)
	sort.Slice(sorted, func(i, j int) bool {
		return tierRank(sorted[i]) < tierRank(sorted[j])
	})

	critical, low := 0, 0
	for _, p := range sorted {
		line := fmt.Sprintf("  %-10s %-28s stock %6.0f  rop %6.0f",
			p.ProductID, truncate(p.Name, 28), p.CurrentStock, p.ReorderPoint)
		switch tierRank(p) {
		case 0:
			critical++
			line = badStyle.Render(line + "  CRITICAL")
		case 1:
			low++
			line = warnStyle.Render(line + "  LOW")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"%d products: %d critical, %d low, %d healthy",
		len(sorted), critical, low, len(sorted)-critical-low)))
	b.WriteString("\n")

	return b.String()
}

func tierRank(p *domain.Product) int {
	switch {
	case p.CurrentStock < p.SafetyStock:
		return 0
	case p.CurrentStock < p.ReorderPoint:
		return 1
	}
	return 2
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
