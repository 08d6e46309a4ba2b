package billing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders amount as US dollars, e.g. "$1,234.50".
func FormatCurrency(amount float64) string {
	amount = roundCents(amount)
	if amount < 0 {
		return "-$" + usPrinter.Sprintf("%.2f", -amount)
	}
	return "$" + usPrinter.Sprintf("%.2f", amount)
}
