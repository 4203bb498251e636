// Package utils provides shared formatting helpers.
package utils

import (
	"fmt"
	"strings"
)

// FormatCNY formats an amount as Chinese yuan with thousands separators.
func FormatCNY(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	intPart := parts[0]
	decPart := parts[1]

	result := "¥" + groupThousands(intPart) + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 3 {
		result = s[len(s)-3:] + "," + result
		s = s[:len(s)-3]
	}
	return s + "," + result
}

// FormatPercent formats a ratio as a signed percentage.
func FormatPercent(ratio float64) string {
	sign := ""
	if ratio > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, ratio*100)
}

// FormatPnL formats profit or loss with an explicit sign.
func FormatPnL(pnl float64) string {
	formatted := FormatCNY(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatVolume formats a share count with thousands separators.
func FormatVolume(volume int64) string {
	negative := volume < 0
	if negative {
		volume = -volume
	}
	result := groupThousands(fmt.Sprintf("%d", volume))
	if negative {
		return "-" + result
	}
	return result
}

// FormatCompact formats an amount using the Chinese numeric units
// wan (1e4) and yi (1e8).
func FormatCompact(amount float64) string {
	abs := amount
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e8:
		return fmt.Sprintf("%.2f亿", amount/1e8)
	case abs >= 1e4:
		return fmt.Sprintf("%.2f万", amount/1e4)
	default:
		return fmt.Sprintf("%.2f", amount)
	}
}
