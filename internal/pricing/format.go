package pricing

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

func formatUSD(v float64) string {
	return printer.Sprintf("$%d", int64(math.Round(v)))
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.1f", v)
}

// FormatUSD renders a whole-dollar amount with thousands separators, e.g. $45,000.
func FormatUSD(v float64) string {
	return formatUSD(v)
}
