// Package decimalx provides the fixed-point decimal arithmetic the core
// uses for order quantities, prices and holding costs. It wraps
// github.com/cockroachdb/apd so that money and quantity math never loses
// precision the way float64 would, and rounds half-to-even (banker's
// rounding) when a division can't be represented exactly.
package decimalx

import (
	"database/sql/driver"
	"fmt"

	"github.com/cockroachdb/apd"
)

// scale is the number of fractional digits retained by division results
// (weighted-average cost, fee computation). Quantities must resolve to at
// least 4 fractional digits of precision; 8 gives headroom for chained
// divisions without losing that floor.
const scale = 8

// arithCtx is used for addition, subtraction and multiplication, which are
// exact for the magnitudes this system deals in and never need rounding.
var arithCtx = apd.Context{
	Precision:   40,
	MaxExponent: apd.MaxExponent,
	MinExponent: apd.MinExponent,
	Traps:       apd.DefaultTraps,
}

// divCtx additionally rounds half-to-even, for operations (division) that
// can produce a non-terminating or over-long result.
var divCtx = apd.Context{
	Precision:   40,
	MaxExponent: apd.MaxExponent,
	MinExponent: apd.MinExponent,
	Traps:       apd.DefaultTraps,
	Rounding:    apd.RoundHalfEven,
}

// Decimal is a fixed-point decimal value. The zero value is zero.
type Decimal struct {
	d apd.Decimal
}

// New builds a Decimal from an integer coefficient and base-10 exponent,
// e.g. New(500, -2) is 5.00.
func New(coeff int64, exponent int32) Decimal {
	return Decimal{d: *apd.New(coeff, exponent)}
}

// Zero is the additive identity.
func Zero() Decimal { return Decimal{} }

// Parse reads a decimal from its canonical string form ("12.3400").
func Parse(s string) (Decimal, error) {
	var dec Decimal
	if s == "" {
		return dec, nil
	}
	_, _, err := dec.d.SetString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("decimalx: invalid decimal %q: %w", s, err)
	}
	return dec, nil
}

// MustParse is Parse, panicking on error. Intended for literals in tests
// and seed data, never for untrusted input.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromFloat64 converts a float64 into a Decimal. Use only at boundaries
// (JSON request bodies) where the wire format is already a float; never
// use it for chained internal arithmetic.
func FromFloat64(f float64) Decimal {
	var dec Decimal
	dec.d.SetFloat64(f)
	return dec
}

// Float64 converts to float64, for display or JSON responses only.
func (d Decimal) Float64() float64 {
	f, _ := d.d.Float64()
	return f
}

// String renders the canonical decimal text form.
func (d Decimal) String() string {
	return d.d.String()
}

// IsZero reports whether the value is exactly zero.
func (d Decimal) IsZero() bool {
	return d.d.IsZero()
}

// Sign returns -1, 0 or 1.
func (d Decimal) Sign() int {
	return d.d.Sign()
}

// Cmp compares d to other, returning -1, 0 or 1.
func (d Decimal) Cmp(other Decimal) int {
	return d.d.Cmp(&other.d)
}

// GreaterThan reports whether d > other.
func (d Decimal) GreaterThan(other Decimal) bool { return d.Cmp(other) > 0 }

// GreaterThanOrEqual reports whether d >= other.
func (d Decimal) GreaterThanOrEqual(other Decimal) bool { return d.Cmp(other) >= 0 }

// LessThan reports whether d < other.
func (d Decimal) LessThan(other Decimal) bool { return d.Cmp(other) < 0 }

// Add returns d + other, exactly.
func (d Decimal) Add(other Decimal) Decimal {
	var r Decimal
	if _, err := arithCtx.Add(&r.d, &d.d, &other.d); err != nil {
		panic(fmt.Errorf("decimalx: add: %w", err))
	}
	return r
}

// Sub returns d - other, exactly.
func (d Decimal) Sub(other Decimal) Decimal {
	var r Decimal
	if _, err := arithCtx.Sub(&r.d, &d.d, &other.d); err != nil {
		panic(fmt.Errorf("decimalx: sub: %w", err))
	}
	return r
}

// Mul returns d * other, exactly.
func (d Decimal) Mul(other Decimal) Decimal {
	var r Decimal
	if _, err := arithCtx.Mul(&r.d, &d.d, &other.d); err != nil {
		panic(fmt.Errorf("decimalx: mul: %w", err))
	}
	return r
}

// Quo returns d / other, rounded half-to-even at the package scale.
// Returns an error instead of panicking since division by zero is a
// reachable runtime condition (e.g. a holding reduced to zero quantity),
// not a programming error.
func (d Decimal) Quo(other Decimal) (Decimal, error) {
	if other.IsZero() {
		return Decimal{}, fmt.Errorf("decimalx: division by zero")
	}
	var r Decimal
	if _, err := divCtx.Quo(&r.d, &d.d, &other.d); err != nil {
		return Decimal{}, fmt.Errorf("decimalx: quo: %w", err)
	}
	return r.round(), nil
}

func (d Decimal) round() Decimal {
	var r Decimal
	exp := int32(-scale)
	if _, err := divCtx.Quantize(&r.d, &d.d, exp); err != nil {
		// Quantize only fails when the rounded value would overflow the
		// context's exponent range, which the sizes this system handles
		// never approach.
		return d
	}
	return r
}

// Value implements database/sql/driver.Valuer so GORM can persist a
// Decimal as TEXT without the precision loss float64 would introduce.
func (d Decimal) Value() (driver.Value, error) {
	return d.d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Decimal) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Decimal{}
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case float64:
		*d = FromFloat64(v)
		return nil
	case int64:
		*d = New(v, 0)
		return nil
	default:
		return fmt.Errorf("decimalx: unsupported scan type %T", src)
	}
}

// MarshalJSON renders the value as a bare JSON number so it serializes
// like any other numeric field in the HTTP request/response bodies.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.d.String()), nil
}

// UnmarshalJSON accepts either a JSON number or string.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" || s == "" {
		*d = Decimal{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
