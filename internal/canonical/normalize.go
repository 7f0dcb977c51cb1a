package canonical

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a normalized field value. Unparseable numeric input degrades to
// opaque-string comparison instead of failing, so the detector never throws
// on malformed documents.
type Value struct {
	Raw         string
	Norm        string
	Cents       int64
	Units       int64
	Unparseable bool
}

// Equal reports whether two values agree after normalization.
func (v Value) Equal(other Value) bool {
	return v.Norm == other.Norm
}

// IsEmpty reports whether the raw value is blank.
func (v Value) IsEmpty() bool {
	return strings.TrimSpace(v.Raw) == ""
}

// Normalize converts a raw form value into its comparable representation for
// the given kind.
func Normalize(raw string, kind Kind) Value {
	switch kind {
	case KindMoney:
		return normalizeMoney(raw)
	case KindQuantity:
		return normalizeQuantity(raw)
	default:
		return normalizeText(raw)
	}
}

// normalizeText trims and collapses internal whitespace. Comparison stays
// case-sensitive: "FOB Shanghai" and "fob shanghai" are different wordings
// worth flagging.
func normalizeText(raw string) Value {
	return Value{Raw: raw, Norm: strings.Join(strings.Fields(raw), " ")}
}

// normalizeMoney parses currency input to fixed-precision cents, accepting
// symbols and thousands separators. Rounds half away from zero to 2 places.
func normalizeMoney(raw string) Value {
	cleaned := cleanNumeric(raw)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return Value{Raw: raw, Norm: strings.Join(strings.Fields(raw), " "), Unparseable: true}
	}
	cents := int64(math.Round(f * 100))
	return Value{Raw: raw, Norm: FormatCents(cents), Cents: cents}
}

// normalizeQuantity parses a quantity to an integer unit count.
func normalizeQuantity(raw string) Value {
	cleaned := cleanNumeric(raw)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return Value{Raw: raw, Norm: strings.Join(strings.Fields(raw), " "), Unparseable: true}
	}
	units := int64(math.Round(f))
	return Value{Raw: raw, Norm: strconv.FormatInt(units, 10), Units: units}
}

// cleanNumeric strips currency symbols, separators, and whitespace.
func cleanNumeric(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',', r == ' ', r == '$', r == '¥', r == '€', r == '£':
			// separator or currency marker, drop it
		default:
			return raw // leave unexpected characters for ParseFloat to reject
		}
	}
	return b.String()
}

// FormatCents renders fixed-precision cents as a decimal string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
