package freq

// Frequency key normalization
// ---------------------------
// A frequency is an arbitrary-precision decimal. It is never used as a map
// key (or placed inside signed canonical bytes) in its raw textual form;
// callers always go through Key(), which returns the canonical base-10
// string: no leading '+', no redundant leading zeros, no trailing zeros
// after the decimal point, no trailing dot, and "-0" collapsed to "0".
// Two decimals denote the same value iff their keys are byte-equal.
//
// Binary floating point is deliberately never involved: parsing keeps the
// full digit string (big.Int mantissa + decimal scale), so values like
// "100.5000000000000000000001" survive exactly.

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shortwave/go-shortwave/internal/errors"
)

// Decimal is an immutable arbitrary-precision decimal value. The zero value
// is not valid; obtain one via Parse or MustParse.
type Decimal struct {
	key string
}

// Magnitude bounds. Parse feeds untrusted gossip and HTTP path input, so
// the exponent and digit count are capped before any materialization: an
// unbounded "1e100000000" would otherwise expand to a ~100 MB key.
const (
	maxDigits   = 64
	maxExponent = 64
)

// Parse reads a decimal from its textual form. Accepted grammar is an
// optional sign, digits with at most one decimal point (at least one digit
// overall), and an optional e/E exponent. Inputs beyond maxDigits digits or
// with an exponent beyond ±maxExponent are rejected as invalid input.
func Parse(s string) (Decimal, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return Decimal{}, errors.NewInputError("parse.frequency", fmt.Errorf("empty input"))
	}

	neg := false
	switch t[0] {
	case '+':
		t = t[1:]
	case '-':
		neg = true
		t = t[1:]
	}

	// Split off the exponent part, if any, and bound it before anything is
	// materialized from it.
	exp := 0
	if i := strings.IndexAny(t, "eE"); i >= 0 {
		e, err := strconv.Atoi(t[i+1:])
		if err != nil {
			return Decimal{}, errors.NewInputError("parse.frequency", fmt.Errorf("%q: bad exponent", s))
		}
		if e > maxExponent || e < -maxExponent {
			return Decimal{}, errors.NewInputError("parse.frequency", fmt.Errorf("%q: exponent out of range", s))
		}
		exp = e
		t = t[:i]
	}

	intPart, fracPart, _ := strings.Cut(t, ".")
	if strings.Contains(fracPart, ".") {
		return Decimal{}, errors.NewInputError("parse.frequency", fmt.Errorf("%q: multiple decimal points", s))
	}
	digits := intPart + fracPart
	if digits == "" {
		return Decimal{}, errors.NewInputError("parse.frequency", fmt.Errorf("%q: no digits", s))
	}
	if len(digits) > maxDigits {
		return Decimal{}, errors.NewInputError("parse.frequency", fmt.Errorf("%q: too many digits", s))
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return Decimal{}, errors.NewInputError("parse.frequency", fmt.Errorf("%q: invalid character %q", s, r))
		}
	}
	// value = mantissa * 10^-scale; both factors are bounded above, so the
	// canonical key is at most a couple hundred bytes.
	scale := len(fracPart) - exp

	mant, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, errors.NewInputError("parse.frequency", fmt.Errorf("%q: bad mantissa", s))
	}
	return Decimal{key: canonical(neg, mant, scale)}, nil
}

// MustParse is Parse for literals in tests and configuration defaults; it
// panics on malformed input.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// canonical renders sign/mantissa/scale as the canonical key string.
func canonical(neg bool, mant *big.Int, scale int) string {
	if mant.Sign() == 0 {
		return "0" // covers "-0", "0.000", "0e9"
	}
	digits := mant.String() // leading zeros already gone

	// Fold the scale into the digit string: drop trailing zeros that sit
	// behind the decimal point, pad out negative scales (positive exponents).
	for scale > 0 && strings.HasSuffix(digits, "0") {
		digits = digits[:len(digits)-1]
		scale--
	}
	if scale < 0 {
		digits += strings.Repeat("0", -scale)
		scale = 0
	}

	var b strings.Builder
	b.Grow(len(digits) + scale + 3)
	if neg {
		b.WriteByte('-')
	}
	switch {
	case scale == 0:
		b.WriteString(digits)
	case scale >= len(digits):
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", scale-len(digits)))
		b.WriteString(digits)
	default:
		b.WriteString(digits[:len(digits)-scale])
		b.WriteByte('.')
		b.WriteString(digits[len(digits)-scale:])
	}
	return b.String()
}

// Key returns the canonical string form: the registry key and the value
// embedded in signed canonical bytes.
func (d Decimal) Key() string { return d.key }

// String returns the same canonical form as Key.
func (d Decimal) String() string { return d.key }

// IsZero reports whether d is the (invalid) zero value, i.e. never parsed.
func (d Decimal) IsZero() bool { return d.key == "" }

// Equal reports value equality (key equality by construction).
func (d Decimal) Equal(o Decimal) bool { return d.key == o.key }

// MarshalJSON serializes the decimal as a string to preserve precision on
// the wire.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.key)), nil
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("decimal: %w", err)
		}
		s = unq
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
