// Package fixedpoint implements the signed fixed-point arithmetic used for
// every price, weight, amount, and value computation in the risk engine.
// It wraps shopspring/decimal, whose arbitrary precision is a strict
// superset of the >=80 integer bit / >=48 fractional bit range the
// valuation math requires. float64 enters only through FromFloat (config
// values) and leaves only through Float64 (logging and telemetry); the
// valuation math itself never uses floating point.
package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Value is a signed fixed-point number used throughout the risk engine.
type Value struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Value{d: decimal.Zero}

// One is the multiplicative identity.
var One = Value{d: decimal.NewFromInt(1)}

// FromInt builds a Value from a native integer amount (no scaling applied).
func FromInt(v int64) Value {
	return Value{d: decimal.NewFromInt(v)}
}

// FromUint builds a Value from a native unsigned integer amount.
func FromUint(v uint64) Value {
	return Value{d: decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)}
}

// FromString parses a decimal string, e.g. an oracle price or a config
// default such as "0.01".
func FromString(s string) (Value, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}, fmt.Errorf("fixedpoint: parse %q: %w", s, err)
	}
	return Value{d: d}, nil
}

// MustFromString is FromString but panics on malformed input; reserved for
// compile-time-known constants (config defaults, test fixtures).
func MustFromString(s string) Value {
	v, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromFloat builds a Value from a float64. Only used at the config-parsing
// boundary (dust_threshold, max_sol_balance are authored as decimal
// literals in config files); never used in the valuation critical path.
func FromFloat(f float64) Value {
	return Value{d: decimal.NewFromFloat(f)}
}

func (v Value) Add(o Value) Value { return Value{d: v.d.Add(o.d)} }
func (v Value) Sub(o Value) Value { return Value{d: v.d.Sub(o.d)} }
func (v Value) Mul(o Value) Value { return Value{d: v.d.Mul(o.d)} }

// Div divides v by o. Division by zero returns Zero rather than panicking;
// callers that can hit a legitimately-zero denominator (e.g. a bank with no
// configured price) are expected to check IsZero on the divisor first and
// surface a "missing price" error per spec.
func (v Value) Div(o Value) Value {
	if o.d.IsZero() {
		return Zero
	}
	return Value{d: v.d.Div(o.d)}
}

func (v Value) Neg() Value { return Value{d: v.d.Neg()} }

func (v Value) IsZero() bool     { return v.d.IsZero() }
func (v Value) IsNegative() bool { return v.d.IsNegative() }
func (v Value) IsPositive() bool { return v.d.IsPositive() }

func (v Value) Cmp(o Value) int                 { return v.d.Cmp(o.d) }
func (v Value) GreaterThan(o Value) bool        { return v.d.GreaterThan(o.d) }
func (v Value) GreaterThanOrEqual(o Value) bool { return v.d.GreaterThanOrEqual(o.d) }
func (v Value) LessThan(o Value) bool           { return v.d.LessThan(o.d) }
func (v Value) LessThanOrEqual(o Value) bool    { return v.d.LessThanOrEqual(o.d) }
func (v Value) Equal(o Value) bool              { return v.d.Equal(o.d) }

// Max returns the larger of a and b.
func Max(a, b Value) Value {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b Value) Value {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxZero clamps v to be at least Zero; used for free-collateral's
// max(0, assets_init - liabs_init) and similar clamps.
func MaxZero(v Value) Value {
	return Max(v, Zero)
}

func (v Value) String() string { return v.d.String() }

// Float64 surfaces a float approximation for logging/telemetry only; never
// feed the result back into a valuation computation.
func (v Value) Float64() float64 {
	f, _ := v.d.Float64()
	return f
}

// Uint64 truncates v to a native u64 amount, rounding toward zero. Used when
// converting a computed value back into an on-chain instruction argument.
func (v Value) Uint64() uint64 {
	if v.d.IsNegative() {
		return 0
	}
	return v.d.BigInt().Uint64()
}

// pow10 returns 10^n as a Value, n may be negative.
func pow10(n int32) Value {
	return Value{d: decimal.New(1, n)}
}

// CalcValue converts a native token amount to a risk-weighted value:
//
//	value = amount * price * 10^(-decimals) * weight
//
// weight has no default; pass One explicitly for an unweighted/equity
// valuation.
func CalcValue(amount, price Value, decimals int32, weight Value) Value {
	scaled := amount.Mul(pow10(-decimals))
	return scaled.Mul(price).Mul(weight)
}

// ScaleByDecimals multiplies v by 10^decimals, converting a UI/whole-token
// quantity into native integer-unit terms (or back, with a negative
// decimals).
func ScaleByDecimals(v Value, decimals int32) Value {
	return v.Mul(pow10(decimals))
}

// CalcAmount is the inverse of CalcValue with weight implicitly One:
//
//	amount = value / price * 10^decimals
func CalcAmount(value, price Value, decimals int32) Value {
	if price.IsZero() {
		return Zero
	}
	return value.Div(price).Mul(pow10(decimals))
}
