package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/budgetopt/budgetopt/internal/model"
)

// NegativeSavingsWarning is shown when the savings allocation is below zero.
const NegativeSavingsWarning = "Negative savings predicted. Consider reducing some expenses."

// SeparatorRow marks a horizontal rule inside Table.Rows.
var SeparatorRow = []string{"---"}

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Widths  []int // optional column widths, auto-calculated if nil
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(active.Border).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table with headers and rows.
// The first column is left-aligned, the rest right-aligned.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	numCols := len(t.Headers)
	if numCols == 0 {
		numCols = len(t.Rows[0])
	}
	widths := columnWidths(t, numCols)

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	b.WriteString(rule(widths, "╭", "┬", "╮"))
	if len(t.Headers) > 0 {
		b.WriteString(row(t.Headers, widths, headerStyle, false))
		b.WriteString(rule(widths, "├", "┼", "┤"))
	}
	for _, r := range t.Rows {
		if isSeparator(r) {
			b.WriteString(rule(widths, "├", "┼", "┤"))
			continue
		}
		b.WriteString(row(r, widths, valueStyle, true))
	}
	b.WriteString(rule(widths, "╰", "┴", "╯"))

	return b.String()
}

func columnWidths(t Table, numCols int) []int {
	widths := make([]int, numCols)
	if t.Widths != nil {
		copy(widths, t.Widths)
		return widths
	}
	grow := func(cells []string) {
		for i, cell := range cells {
			if i < numCols {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	grow(t.Headers)
	for _, r := range t.Rows {
		if !isSeparator(r) {
			grow(r)
		}
	}
	return widths
}

func isSeparator(r []string) bool {
	return len(r) == 1 && r[0] == SeparatorRow[0]
}

func rule(widths []int, left, mid, right string) string {
	var b strings.Builder
	b.WriteString(left)
	for i, w := range widths {
		b.WriteString(strings.Repeat("─", w+2))
		if i < len(widths)-1 {
			b.WriteString(mid)
		}
	}
	b.WriteString(right)
	return dimStyle.Render(b.String()) + "\n"
}

func row(cells []string, widths []int, style lipgloss.Style, alignNumbers bool) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render("│"))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		b.WriteString(style.Render(" " + pad(cell, w, alignNumbers && i > 0) + " "))
		b.WriteString(dimStyle.Render("│"))
	}
	b.WriteString("\n")
	return b.String()
}

// pad fills s to w display cells; multi-byte currency symbols count once.
func pad(s string, w int, right bool) string {
	gap := w - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// Shares returns each allocation's fraction of the positive total.
// Negative amounts get a zero share.
func Shares(items []model.Allocation) []float64 {
	var positive float64
	for _, it := range items {
		if it.Amount > 0 {
			positive += it.Amount
		}
	}
	out := make([]float64, len(items))
	if positive == 0 {
		return out
	}
	for i, it := range items {
		if it.Amount > 0 {
			out[i] = it.Amount / positive
		}
	}
	return out
}

// AllocationTable builds the category/amount/share table for a result.
func AllocationTable(res model.AllocationResult, currency string) Table {
	shares := Shares(res.Items)
	rows := make([][]string, 0, len(res.Items)+2)
	for i, it := range res.Items {
		share := FormatPercent(shares[i])
		if it.Amount < 0 {
			share = "-"
		}
		rows = append(rows, []string{it.Name, FormatAmount(it.Amount, currency), share})
	}
	rows = append(rows, SeparatorRow, []string{"Total", FormatAmount(res.Total(), currency), ""})

	return Table{
		Headers: []string{"Category", "Amount", "Share"},
		Rows:    rows,
	}
}

// RenderAllocation renders a titled allocation table, a share chart and,
// when savings went negative, the warning line.
func RenderAllocation(title string, res model.AllocationResult, currency string) string {
	var b strings.Builder
	b.WriteString(RenderTitle(title))
	b.WriteString("\n\n")
	b.WriteString(RenderTable(AllocationTable(res, currency)))
	b.WriteString("\n")
	b.WriteString(RenderShareChart(res.Items, 30))
	if res.NegativeSavings {
		b.WriteString("\n")
		b.WriteString(RenderWarning(NegativeSavingsWarning))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderShareChart draws one colored bar per category, scaled so the
// largest share spans width cells.
func RenderShareChart(items []model.Allocation, width int) string {
	shares := Shares(items)
	colors := categoryColors(active)

	var top float64
	labelW := 0
	for i, it := range items {
		top = max(top, shares[i])
		labelW = max(labelW, lipgloss.Width(it.Name))
	}

	var b strings.Builder
	for i, it := range items {
		color := colors[int(it.Category)%len(colors)]
		bar := RenderHorizontalBar(shares[i], top, width)
		fmt.Fprintf(&b, "  %s %s %s\n",
			mutedStyle.Render(pad(it.Name, labelW, false)),
			lipgloss.NewStyle().Foreground(color).Render(pad(bar, width, false)),
			valueStyle.Render(FormatPercent(shares[i])),
		)
	}
	return b.String()
}

// RenderHorizontalBar returns a bar of value/maxValue*maxWidth blocks.
func RenderHorizontalBar(value, maxValue float64, maxWidth int) string {
	if maxValue <= 0 || value <= 0 {
		return ""
	}
	n := int(value / maxValue * float64(maxWidth))
	n = min(max(n, 1), maxWidth)
	return strings.Repeat("█", n)
}

// RenderPercentageTables renders the rural and urban tables side by side.
func RenderPercentageTables(rural, urban model.PercentageTable) string {
	rows := make([][]string, 0, model.NumCategories+2)
	for _, c := range model.Categories() {
		rows = append(rows, []string{c.String(), FormatPercent(rural[c]), FormatPercent(urban[c])})
	}
	rows = append(rows, SeparatorRow, []string{"Total", FormatPercent(rural.Sum()), FormatPercent(urban.Sum())})
	return RenderTable(Table{
		Title:   "Allocation Rules",
		Headers: []string{"Category", model.Rural.String(), model.Urban.String()},
		Rows:    rows,
	})
}

// RenderWarning renders a highlighted warning line.
func RenderWarning(msg string) string {
	return "  " + warnStyle.Render("⚠ "+msg)
}

// RenderError renders an error line.
func RenderError(msg string) string {
	return "  " + errorStyle.Render("✗ "+msg)
}

// RenderTotal renders a bold "label: value" line.
func RenderTotal(label, value string) string {
	return "  " + mutedStyle.Render(label+": ") + totalStyle.Render(value)
}
