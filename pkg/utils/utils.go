package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TruncateString cuts str to num bytes, ending in "..." when there is room.
func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// ShortenAddress keeps the first six and last four characters: 0x1234…abcd.
func ShortenAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign = "-"
		intPart = intPart[1:]
	}

	n := len(intPart)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	b.WriteString(sign)
	head := n % 3
	if head > 0 {
		b.WriteString(intPart[:head])
	}
	for i := head; i < n; i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// FormatAmount rounds to places decimals, drops trailing zeros and groups
// thousands: 1234.50000 -> "1,234.5".
func FormatAmount(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return AddCommas(s)
}

// DecimalToFloat64 is lossy and only meant for charts.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
