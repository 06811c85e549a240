package aireg_protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TokensToBaseUnits converts a decimal token amount to base units, rounding
// to the nearest unit.
func TokensToBaseUnits(tokens float64) (uint64, error) {
	if math.IsNaN(tokens) || math.IsInf(tokens, 0) {
		return 0, &ValidationError{Field: "amount", Constraint: "must be a finite number"}
	}
	if tokens < 0 {
		return 0, &ValidationError{Field: "amount", Constraint: "must not be negative"}
	}
	units := math.Round(tokens * TokenBaseUnits)
	if units >= math.MaxUint64 {
		return 0, &ValidationError{Field: "amount", Constraint: "exceeds the representable range"}
	}
	return uint64(units), nil
}

// BaseUnitsToTokens is the inverse of TokensToBaseUnits, exact to 1e-9.
func BaseUnitsToTokens(units uint64) float64 {
	return float64(units) / TokenBaseUnits
}

// FormatTokens renders base units as an exact decimal string without
// trailing zeros, e.g. 1500000000 -> "1.5".
func FormatTokens(units uint64) string {
	whole := units / TokenBaseUnits
	frac := units % TokenBaseUnits
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fs := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return strconv.FormatUint(whole, 10) + "." + fs
}

// ParseTokens parses a decimal string exactly, without going through float64.
func ParseTokens(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Field: "amount", Constraint: "must not be empty"}
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > TokenDecimals {
		return 0, &ValidationError{Field: "amount", Constraint: fmt.Sprintf("at most %d decimal places", TokenDecimals)}
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Constraint: fmt.Sprintf("invalid number %q", s)}
	}
	var f uint64
	if frac != "" {
		f, err = strconv.ParseUint(frac+strings.Repeat("0", TokenDecimals-len(frac)), 10, 64)
		if err != nil {
			return 0, &ValidationError{Field: "amount", Constraint: fmt.Sprintf("invalid number %q", s)}
		}
	}
	if w > (math.MaxUint64-f)/TokenBaseUnits {
		return 0, &ValidationError{Field: "amount", Constraint: "exceeds the representable range"}
	}
	return w*TokenBaseUnits + f, nil
}
