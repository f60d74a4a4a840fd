package format

import (
	"fmt"
	"strings"
	"time"
)

// FmtPrice formats an amount in cents for display on the purchase control.
// Example: FmtPrice(299, "USD") => "$2.99"
func FmtPrice(cents int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	neg := cents < 0
	if neg {
		cents = -cents
	}
	major := cents / 100
	minor := cents % 100
	var out string
	switch currency {
	case "", "USD":
		out = fmt.Sprintf("$%s.%02d", thousandSep(major), minor)
	case "EUR":
		out = fmt.Sprintf("€%s.%02d", thousandSep(major), minor)
	default:
		out = fmt.Sprintf("%s %s.%02d", currency, thousandSep(major), minor)
	}
	if neg {
		return "-" + out
	}
	return out
}

func thousandSep(n int64) string {
	s := fmt.Sprintf("%d", n)
	out := ""
	for i, c := range s {
		if i != 0 && (len(s)-i)%3 == 0 {
			out += ","
		}
		out += string(c)
	}
	return out
}

// FmtDate formats a timestamp in the short form used on content pages.
func FmtDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}
