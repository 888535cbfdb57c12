// Package utils provides utility functions for the allocation engine.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// GenerateID generates a unique ID with optional prefix.
func GenerateID(prefix string) string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	id := hex.EncodeToString(bytes)
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateRunID generates a unique sizing-run ID.
func GenerateRunID() string {
	return GenerateID("run")
}

// FormatTicker normalizes a ticker symbol.
func FormatTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Clamp bounds v to [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampNonNegative floors v at zero.
func ClampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Min returns the smaller of two floats.
func Min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// SumFloats sums a slice of floats.
func SumFloats(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// AlmostEqual reports whether two floats agree within epsilon.
func AlmostEqual(a, b, epsilon float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= epsilon
}

// MinDecimal returns the minimum of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the maximum of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// FormatMoney formats a decimal as a dollar amount.
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
