package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/stockread/internal/analyst"
	"github.com/wonny/stockread/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a titled double-line header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintInsight prints one verdict
func PrintInsight(ticker string, ins *contracts.Insight) {
	PrintHeader("AI Analysis: " + ticker)
	PrintKeyValue("Score", fmt.Sprintf("%d (%s)", ins.Score, contracts.SignalFromScore(ins.Score)), 8)
	PrintKeyValue("Risk", string(ins.Risk), 8)
	PrintKeyValue("Thesis", string(ins.Thesis), 8)
	if len(ins.Tags) > 0 {
		PrintKeyValue("Tags", strings.Join(ins.Tags, ", "), 8)
	}
	PrintSeparator()
	fmt.Println(ins.Summary)
	PrintDoubleSeparator()
}

// PrintRunReport prints a per-tier summary of an analyst run
func PrintRunReport(r analyst.RunReport) {
	PrintHeader("Analyst run " + r.ID)
	widths := []int{8, 8, 8, 8, 8}
	PrintTableHeader([]string{"Tier", "Symbols", "Chunks", "Failed", "Stored"}, widths)
	for _, t := range r.Tiers {
		PrintTableRow([]string{
			t.Tier,
			fmt.Sprint(t.Symbols),
			fmt.Sprint(t.Chunks),
			fmt.Sprint(t.FailedChunks),
			fmt.Sprint(t.Analyzed),
		}, widths)
	}
	PrintSeparator()
	fmt.Printf("Analyzed %d tickers in %s\n", r.Analyzed(), r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
}
