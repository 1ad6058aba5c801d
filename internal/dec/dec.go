// Package dec implements the fixed-point and integer arithmetic every price,
// reserve and trade amount flows through.
package dec

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Precision is the number of fractional digits carried by every Dec.
const Precision = 18

// sqrtIterationLimit caps the newton root finder.
const sqrtIterationLimit = 100

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrNegativeSqrt   = errors.New("square root of negative decimal")

	precisionReuse       = new(big.Int).Exp(big.NewInt(10), big.NewInt(Precision), nil)
	fivePrecision        = new(big.Int).Quo(precisionReuse, big.NewInt(2))
	precisionMultipliers [Precision + 1]*big.Int

	bigZero = new(big.Int)
	bigOne  = big.NewInt(1)

	decimalPattern = regexp.MustCompile(`^(-?\d+\.\d+)$|^(-?\d+)$`)
)

func init() {
	for i := 0; i <= Precision; i++ {
		precisionMultipliers[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Precision-i)), nil)
	}
}

// ParseError reports a string that is not a decimal or integer literal.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

// Dec is a signed fixed-point number stored as an integer scaled by 10^18.
// Values are immutable: every operation allocates its result, so a Dec can be
// handed across goroutines without copying. The zero value is 0.
type Dec struct {
	i *big.Int
}

func ZeroDec() Dec { return Dec{new(big.Int)} }
func OneDec() Dec  { return Dec{new(big.Int).Set(precisionReuse)} }

// NewDec returns i as a Dec.
func NewDec(i int64) Dec {
	return NewDecWithPrec(i, 0)
}

// NewDecWithPrec returns i * 10^-prec, so NewDecWithPrec(5, 3) is 0.005.
// prec outside [0, 18] is a programming error and panics.
func NewDecWithPrec(i int64, prec int) Dec {
	return Dec{new(big.Int).Mul(big.NewInt(i), multiplier(prec))}
}

// NewDecFromBigIntWithPrec returns i * 10^-prec without aliasing i.
func NewDecFromBigIntWithPrec(i *big.Int, prec int) Dec {
	return Dec{new(big.Int).Mul(i, multiplier(prec))}
}

func NewDecFromBigInt(i *big.Int) Dec {
	return NewDecFromBigIntWithPrec(i, 0)
}

func NewDecFromInt(i Int) Dec {
	return NewDecFromBigIntWithPrec(i.raw(), 0)
}

// NewDecFromStr parses "-12", "3.14" and the like. The number of fractional
// digits is taken from the string and may not exceed Precision.
func NewDecFromStr(s string) (Dec, error) {
	if s == "" {
		return Dec{}, &ParseError{Input: s, Reason: "empty string"}
	}
	if !decimalPattern.MatchString(s) {
		return Dec{}, &ParseError{Input: s, Reason: "invalid decimal"}
	}

	digits := s
	prec := 0
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		prec = len(s) - idx - 1
		digits = s[:idx] + s[idx+1:]
	}
	if prec > Precision {
		return Dec{}, &ParseError{Input: s, Reason: "too much precision"}
	}

	i, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Dec{}, &ParseError{Input: s, Reason: "invalid decimal"}
	}
	return Dec{i.Mul(i, precisionMultipliers[prec])}, nil
}

// MustNewDecFromStr is NewDecFromStr for literals known to be valid.
func MustNewDecFromStr(s string) Dec {
	d, err := NewDecFromStr(s)
	if err != nil {
		panic(err)
	}
	return d
}

func multiplier(prec int) *big.Int {
	if prec < 0 || prec > Precision {
		panic(fmt.Sprintf("dec: precision %d out of range [0, %d]", prec, Precision))
	}
	return precisionMultipliers[prec]
}

func (d Dec) raw() *big.Int {
	if d.i == nil {
		return bigZero
	}
	return d.i
}

func (d Dec) IsNil() bool      { return d.i == nil }
func (d Dec) IsZero() bool     { return d.raw().Sign() == 0 }
func (d Dec) IsNegative() bool { return d.raw().Sign() < 0 }
func (d Dec) IsPositive() bool { return d.raw().Sign() > 0 }

func (d Dec) Cmp(d2 Dec) int       { return d.raw().Cmp(d2.raw()) }
func (d Dec) Equal(d2 Dec) bool    { return d.Cmp(d2) == 0 }
func (d Dec) GT(d2 Dec) bool       { return d.Cmp(d2) > 0 }
func (d Dec) GTE(d2 Dec) bool      { return d.Cmp(d2) >= 0 }
func (d Dec) LT(d2 Dec) bool       { return d.Cmp(d2) < 0 }
func (d Dec) LTE(d2 Dec) bool      { return d.Cmp(d2) <= 0 }
func (d Dec) Sign() int            { return d.raw().Sign() }
func (d Dec) BigInt() *big.Int     { return new(big.Int).Set(d.raw()) }
func (d Dec) IsInteger() bool      { return new(big.Int).Rem(d.raw(), precisionReuse).Sign() == 0 }
func (d Dec) Neg() Dec             { return Dec{new(big.Int).Neg(d.raw())} }
func (d Dec) Abs() Dec             { return Dec{new(big.Int).Abs(d.raw())} }
func (d Dec) Add(d2 Dec) Dec       { return Dec{new(big.Int).Add(d.raw(), d2.raw())} }
func (d Dec) Sub(d2 Dec) Dec       { return Dec{new(big.Int).Sub(d.raw(), d2.raw())} }
func (d Dec) MulInt(i Int) Dec     { return Dec{new(big.Int).Mul(d.raw(), i.raw())} }
func (d Dec) MulInt64(i int64) Dec { return Dec{new(big.Int).Mul(d.raw(), big.NewInt(i))} }

func MinDec(a, b Dec) Dec {
	if a.LT(b) {
		return a
	}
	return b
}

func MaxDec(a, b Dec) Dec {
	if a.GT(b) {
		return a
	}
	return b
}

// Mul multiplies with banker's rounding of the 36-digit product.
func (d Dec) Mul(d2 Dec) Dec {
	return Dec{chopPrecisionAndRound(d.mulRaw(d2))}
}

func (d Dec) MulTruncate(d2 Dec) Dec {
	return Dec{chopPrecisionAndTruncate(d.mulRaw(d2))}
}

func (d Dec) MulRoundUp(d2 Dec) Dec {
	return Dec{chopPrecisionAndRoundUp(d.mulRaw(d2))}
}

func (d Dec) mulRaw(d2 Dec) *big.Int {
	return new(big.Int).Mul(d.raw(), d2.raw())
}

// Quo divides with banker's rounding. A zero divisor panics with
// ErrDivisionByZero, the same way math/big does; use SafeQuo when the divisor
// is not already known to be non-zero.
func (d Dec) Quo(d2 Dec) Dec {
	return Dec{chopPrecisionAndRound(d.quoRaw(d2))}
}

func (d Dec) QuoTruncate(d2 Dec) Dec {
	return Dec{chopPrecisionAndTruncate(d.quoRaw(d2))}
}

func (d Dec) QuoRoundUp(d2 Dec) Dec {
	return Dec{chopPrecisionAndRoundUp(d.quoRaw(d2))}
}

func (d Dec) SafeQuo(d2 Dec) (Dec, error) {
	if d2.IsZero() {
		return Dec{}, ErrDivisionByZero
	}
	return d.Quo(d2), nil
}

func (d Dec) QuoInt64(i int64) Dec {
	return d.Quo(NewDec(i))
}

// quoRaw scales the dividend twice so the quotient keeps 36 fractional digits
// for the chop step.
func (d Dec) quoRaw(d2 Dec) *big.Int {
	if d2.IsZero() {
		panic(ErrDivisionByZero)
	}
	q := new(big.Int).Mul(d.raw(), precisionReuse)
	q.Mul(q, precisionReuse)
	return q.Quo(q, d2.raw())
}

// Sqrt runs integer newton iterations on the scaled value, which yields the
// floor of the exact root at 18 digits.
func (d Dec) Sqrt() (Dec, error) {
	if d.IsNegative() {
		return Dec{}, ErrNegativeSqrt
	}
	v := new(big.Int).Mul(d.raw(), precisionReuse)
	return Dec{newtonSqrt(v)}, nil
}

func newtonSqrt(v *big.Int) *big.Int {
	if v.Sign() == 0 {
		return new(big.Int)
	}
	// start above the root so the sequence decreases monotonically
	x := new(big.Int).Lsh(bigOne, uint((v.BitLen()+1)/2))
	y := new(big.Int)
	for i := 0; i < sqrtIterationLimit; i++ {
		y.Quo(v, x)
		y.Add(y, x)
		y.Rsh(y, 1)
		if y.Cmp(x) >= 0 {
			break
		}
		x.Set(y)
	}
	return x
}

// Truncate drops the fractional part.
func (d Dec) Truncate() Int { return Int{chopPrecisionAndTruncate(d.raw())} }

// Round rounds half to even.
func (d Dec) Round() Int { return Int{chopPrecisionAndRound(d.raw())} }

// RoundUp rounds toward positive infinity.
func (d Dec) RoundUp() Int { return Int{chopPrecisionAndRoundUp(d.raw())} }

func (d Dec) TruncateDec() Dec { return NewDecFromInt(d.Truncate()) }

// chopPrecisionAndRound divides by 10^18, resolving ties to the even quotient.
// negative values are rounded on their magnitude.
func chopPrecisionAndRound(d *big.Int) *big.Int {
	if d.Sign() < 0 {
		r := chopPrecisionAndRound(new(big.Int).Neg(d))
		return r.Neg(r)
	}

	quo, rem := new(big.Int).QuoRem(d, precisionReuse, new(big.Int))
	switch rem.Cmp(fivePrecision) {
	case -1:
		return quo
	case 1:
		return quo.Add(quo, bigOne)
	default:
		if quo.Bit(0) == 0 {
			return quo
		}
		return quo.Add(quo, bigOne)
	}
}

func chopPrecisionAndTruncate(d *big.Int) *big.Int {
	return new(big.Int).Quo(d, precisionReuse)
}

func chopPrecisionAndRoundUp(d *big.Int) *big.Int {
	if d.Sign() < 0 {
		r := chopPrecisionAndTruncate(new(big.Int).Neg(d))
		return r.Neg(r)
	}

	quo, rem := new(big.Int).QuoRem(d, precisionReuse, new(big.Int))
	if rem.Sign() == 0 {
		return quo
	}
	return quo.Add(quo, bigOne)
}

// String renders all 18 fractional digits.
func (d Dec) String() string {
	return d.StringFixed(Precision)
}

// StringFixed renders prec fractional digits, truncating the rest. A value
// that truncates to zero prints without a sign.
func (d Dec) StringFixed(prec int) string {
	if prec < 0 {
		prec = 0
	}
	if prec > Precision {
		prec = Precision
	}

	abs := new(big.Int).Abs(d.raw())
	whole, frac := new(big.Int).QuoRem(abs, precisionReuse, new(big.Int))

	fracStr := frac.String()
	fracStr = strings.Repeat("0", Precision-len(fracStr)) + fracStr
	fracStr = fracStr[:prec]

	var b strings.Builder
	if d.IsNegative() && (whole.Sign() != 0 || strings.Trim(fracStr, "0") != "") {
		b.WriteByte('-')
	}
	b.WriteString(whole.String())
	if prec > 0 {
		b.WriteByte('.')
		b.WriteString(fracStr)
	}
	return b.String()
}

func (d Dec) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Dec) UnmarshalText(text []byte) error {
	v, err := NewDecFromStr(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
