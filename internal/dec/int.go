package dec

import (
	"math/big"
	"strings"
)

// Int is an immutable arbitrary-precision integer used for on-chain amounts
// and exponents. The zero value is 0.
type Int struct {
	i *big.Int
}

func ZeroInt() Int { return Int{new(big.Int)} }
func OneInt() Int  { return Int{big.NewInt(1)} }

func NewInt(n int64) Int { return Int{big.NewInt(n)} }

// NewIntFromBigInt copies i.
func NewIntFromBigInt(i *big.Int) Int {
	if i == nil {
		return ZeroInt()
	}
	return Int{new(big.Int).Set(i)}
}

func NewIntFromUint64(n uint64) Int { return Int{new(big.Int).SetUint64(n)} }

// NewIntFromString parses a base-10 integer with an optional leading '-'.
func NewIntFromString(s string) (Int, error) {
	if s == "" {
		return Int{}, &ParseError{Input: s, Reason: "empty string"}
	}
	if !decimalPattern.MatchString(s) || strings.ContainsRune(s, '.') {
		return Int{}, &ParseError{Input: s, Reason: "invalid integer"}
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int{}, &ParseError{Input: s, Reason: "invalid integer"}
	}
	return Int{i}, nil
}

func (i Int) raw() *big.Int {
	if i.i == nil {
		return bigZero
	}
	return i.i
}

func (i Int) Add(j Int) Int { return Int{new(big.Int).Add(i.raw(), j.raw())} }
func (i Int) Sub(j Int) Int { return Int{new(big.Int).Sub(i.raw(), j.raw())} }
func (i Int) Mul(j Int) Int { return Int{new(big.Int).Mul(i.raw(), j.raw())} }
func (i Int) Neg() Int      { return Int{new(big.Int).Neg(i.raw())} }
func (i Int) Abs() Int      { return Int{new(big.Int).Abs(i.raw())} }

// Quo truncates toward zero and panics on a zero divisor.
func (i Int) Quo(j Int) Int {
	if j.IsZero() {
		panic(ErrDivisionByZero)
	}
	return Int{new(big.Int).Quo(i.raw(), j.raw())}
}

// Mod is the truncated remainder; its sign follows the dividend.
func (i Int) Mod(j Int) Int {
	if j.IsZero() {
		panic(ErrDivisionByZero)
	}
	return Int{new(big.Int).Rem(i.raw(), j.raw())}
}

func (i Int) Cmp(j Int) int        { return i.raw().Cmp(j.raw()) }
func (i Int) Equal(j Int) bool     { return i.Cmp(j) == 0 }
func (i Int) GT(j Int) bool        { return i.Cmp(j) > 0 }
func (i Int) GTE(j Int) bool       { return i.Cmp(j) >= 0 }
func (i Int) LT(j Int) bool        { return i.Cmp(j) < 0 }
func (i Int) LTE(j Int) bool       { return i.Cmp(j) <= 0 }
func (i Int) Sign() int            { return i.raw().Sign() }
func (i Int) IsZero() bool         { return i.Sign() == 0 }
func (i Int) IsNegative() bool     { return i.Sign() < 0 }
func (i Int) IsPositive() bool     { return i.Sign() > 0 }
func (i Int) IsInt64() bool        { return i.raw().IsInt64() }
func (i Int) Int64() int64         { return i.raw().Int64() }
func (i Int) BigInt() *big.Int     { return new(big.Int).Set(i.raw()) }
func (i Int) String() string       { return i.raw().String() }
func (i Int) ToDec() Dec           { return NewDecFromInt(i) }
func (i Int) MulInt64(n int64) Int { return Int{new(big.Int).Mul(i.raw(), big.NewInt(n))} }

func (i Int) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Int) UnmarshalText(text []byte) error {
	v, err := NewIntFromString(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}
