package utils

import (
	"fmt"
	"math"
)

// FormatMoney keeps consistent decimal formatting for currency fields.
func FormatMoney(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// FormatRinggit renders "RM 12.50".
func FormatRinggit(amount float64) string {
	return "RM " + FormatMoney(amount)
}

// ToCents converts a decimal amount to the smallest currency unit.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// RoundMoney rounds to two decimals.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}
