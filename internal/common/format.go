package common

import (
	"fmt"
	"strings"
	"time"

	"delayed-pool-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// PrintField prints a labelled value aligned for the report layout
func PrintField(label string, value any) {
	fmt.Printf("%-22s %v\n", label+":", value)
}

// FormatAmount renders atomic units as "<units> <symbol> (<atomic>)"
func FormatAmount(asset models.AssetConfig, atomic decimal.Decimal) string {
	return fmt.Sprintf("%s %s (%s)", asset.FormatUnits(atomic), asset.Symbol, atomic.String())
}

// FormatTime renders t for reports; the zero time reads as "never"
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}

// FormatQueueItem renders one queue line for the report
func FormatQueueItem(asset models.AssetConfig, item models.QueueItem, now time.Time) string {
	line := fmt.Sprintf("#%d %-10s %s -> %s (fee %d bps, ready %s)",
		item.Id,
		item.EffectiveState(now),
		FormatAmount(asset, item.Amount),
		item.Recipient,
		item.FeeRateBps,
		FormatTime(item.ReadyAt))
	if item.FailureReason != "" {
		line += ": " + item.FailureReason
	}
	return line
}
