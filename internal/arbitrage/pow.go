package arbitrage

import (
	"fmt"

	"github.com/pulkyeet/xchain-arb/internal/dec"
)

// powPrecision is where the taylor series stops adding terms.
var powPrecision = dec.NewDecWithPrec(1, 8)

// powApproxIterationLimit bounds the series for bases close to 0 or 2, where
// the terms shrink slowly.
const powApproxIterationLimit = 1000

// Pow computes base^exp for 0 < base < 2 and exp >= 0. The integer part of exp
// is done by squaring, the fractional part by PowApprox.
func Pow(base, exp dec.Dec) (dec.Dec, error) {
	if !base.IsPositive() {
		return dec.Dec{}, domainErrorf("pow base must be greater than 0, got %s", base)
	}
	if base.GTE(twoDec) {
		return dec.Dec{}, domainErrorf("pow base must be less than 2, got %s", base)
	}
	if exp.IsNegative() {
		return dec.Dec{}, domainErrorf("pow exponent must not be negative, got %s", exp)
	}

	integer := exp.Truncate()
	fractional := exp.Sub(dec.NewDecFromInt(integer))

	integerPow := powInt(base, integer)
	if fractional.IsZero() {
		return integerPow, nil
	}
	fractionalPow, err := PowApprox(base, fractional, powPrecision)
	if err != nil {
		return dec.Dec{}, err
	}
	return integerPow.Mul(fractionalPow), nil
}

func powInt(base dec.Dec, power dec.Int) dec.Dec {
	if power.IsZero() {
		return dec.OneDec()
	}

	one := dec.OneInt()
	two := dec.NewInt(2)
	tmp := dec.OneDec()
	for i := power; i.GT(one); i = i.Quo(two) {
		if !i.Mod(two).IsZero() {
			tmp = tmp.Mul(base)
		}
		base = base.Mul(base)
	}
	return base.Mul(tmp)
}

// PowApprox expands base^exp as a binomial series around base-1:
//
//	term_k = term_{k-1} * (exp - k + 1) * (base - 1) / k
//
// Magnitudes are tracked separately from signs so every step stays
// non-negative. The sum stops once a term drops below precision. Running
// out of iterations first is an InvariantError rather than a partial sum.
func PowApprox(base, exp, precision dec.Dec) (dec.Dec, error) {
	if exp.IsZero() {
		return dec.OneDec(), nil
	}

	a := exp
	x, xneg := absDifferenceWithSign(base, oneDec)
	term := dec.OneDec()
	sum := dec.OneDec()
	negative := false

	for i := int64(1); term.GTE(precision); i++ {
		if i > powApproxIterationLimit {
			return dec.Dec{}, &InvariantError{
				Check:  "pow series did not converge",
				Detail: fmt.Sprintf("%s^%s, last term %s after %d terms", base, exp, term, powApproxIterationLimit),
			}
		}
		bigK := dec.NewDec(i)
		c, cneg := absDifferenceWithSign(a, bigK.Sub(oneDec))
		term = term.Mul(c.Mul(x)).Quo(bigK)
		if term.IsZero() {
			break
		}

		if xneg {
			negative = !negative
		}
		if cneg {
			negative = !negative
		}

		if negative {
			sum = sum.Sub(term)
		} else {
			sum = sum.Add(term)
		}
	}
	return sum, nil
}

func absDifferenceWithSign(a, b dec.Dec) (dec.Dec, bool) {
	if a.GTE(b) {
		return a.Sub(b), false
	}
	return b.Sub(a), true
}
