package analytics

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatAmount renders a currency amount with digit grouping.
func formatAmount(v float64) string {
	return printer.Sprintf("%.0f", v)
}

func formatPercent(v float64) string {
	return printer.Sprintf("%.1f%%", v)
}

// clockLabel renders an hour of day on a 12-hour clock.
func clockLabel(hour int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d %s", h, suffix)
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
