package arbitrage

import (
	"fmt"

	"github.com/pulkyeet/xchain-arb/internal/dec"
)

// neighbourhoodStep is the fraction of x the optimality check samples on each side.
var neighbourhoodStep = dec.NewDec(1000)

// TradeBounds restricts the solver's trade size. A zero bound is ignored.
type TradeBounds struct {
	Min dec.Dec
	Max dec.Dec
}

func (b TradeBounds) allows(x dec.Dec) bool {
	if !b.Min.IsZero() && x.LT(b.Min) {
		return false
	}
	if !b.Max.IsZero() && x.GT(b.Max) {
		return false
	}
	return true
}

// SolveForPools runs CalcOptimalTradeAmount on two snapshots, buying on buy
// and selling on sell.
func SolveForPools(buy, sell PoolData, bounds TradeBounds) (TradeSolution, bool, error) {
	sol, ok, err := CalcOptimalTradeAmount(
		buy.CentralAmount, buy.SecondaryAmount, buy.SwapFee,
		sell.CentralAmount, sell.SecondaryAmount, sell.SwapFee,
	)
	if err != nil || !ok {
		return sol, ok, err
	}
	if !bounds.allows(sol.SecondaryAmount) {
		return TradeSolution{}, false, nil
	}
	return sol, true, nil
}

// CalcOptimalTradeAmount finds the secondary amount x that maximises
//
//	P(x) = cS*x*(1-fS)/(sS+x) - cB*x*(1+fB)/(sB-x)
//
// where x is bought on the buy pool (cB, sB, fB) and sold on the sell pool
// (cS, sS, fS). With m = cS(1-fS), k = cB(1+fB), A = sS*m and B = sB*k,
// P'(x) = 0 reduces to
//
//	x = (±sqrt(AB)(sS+sB) + A*sB + B*sS) / (A - B)
//
// ok is false when neither root is a feasible, profitable trade.
func CalcOptimalTradeAmount(cB, sB, fB, cS, sS, fS dec.Dec) (sol TradeSolution, ok bool, err error) {
	for _, v := range []struct {
		name string
		val  dec.Dec
	}{{"cB", cB}, {"sB", sB}, {"cS", cS}, {"sS", sS}} {
		if err := requirePositive(v.name, v.val); err != nil {
			return TradeSolution{}, false, err
		}
	}
	if err := requireFee(fB); err != nil {
		return TradeSolution{}, false, err
	}
	if err := requireFee(fS); err != nil {
		return TradeSolution{}, false, err
	}

	a, b, c := cS, oneDec.Sub(fS), sS
	d, e, f := cB, oneDec.Add(fB), sB

	k := d.Mul(e)
	m := a.Mul(b)
	A := c.Mul(m)
	B := f.Mul(k)

	sAB := A.Sub(B)
	if sAB.IsZero() {
		return TradeSolution{}, false, nil
	}
	rAB, err := A.Mul(B).Sqrt()
	if err != nil {
		return TradeSolution{}, false, fmt.Errorf("sqrt(AB): %w", err)
	}
	cBfA := c.Mul(B).Add(f.Mul(A))
	cf := c.Add(f)

	x1 := rAB.Mul(cf).Add(cBfA).Quo(sAB)
	x2 := rAB.Neg().Mul(cf).Add(cBfA).Quo(sAB)

	profitAt := func(x dec.Dec) (cIn, cOut, profit dec.Dec) {
		cOut = m.Mul(x).Quo(c.Add(x))
		cIn = k.Mul(x).Quo(f.Sub(x))
		return cIn, cOut, cOut.Sub(cIn)
	}

	for _, x := range []dec.Dec{x1, x2} {
		if !x.IsPositive() || x.GTE(f) || x.GTE(c) {
			continue
		}
		cIn, cOut, profit := profitAt(x)
		if !profit.IsPositive() {
			continue
		}

		if err := checkLocalMaximum(x, f, profit, profitAt); err != nil {
			return TradeSolution{}, false, err
		}
		return TradeSolution{
			SecondaryAmount:      x,
			CentralBuyMaxAmount:  cIn,
			CentralSellMinAmount: cOut,
			Profit:               profit,
		}, true, nil
	}
	return TradeSolution{}, false, nil
}

// checkLocalMaximum evaluates P at x±x/1000. A neighbour with more profit means
// the root is not the maximiser and the model is broken.
func checkLocalMaximum(x, f, profit dec.Dec, profitAt func(dec.Dec) (dec.Dec, dec.Dec, dec.Dec)) error {
	step := x.Quo(neighbourhoodStep)
	if step.IsZero() {
		return nil
	}
	for _, nb := range []dec.Dec{x.Sub(step), x.Add(step)} {
		if !nb.IsPositive() || nb.GTE(f) {
			continue
		}
		_, _, p := profitAt(nb)
		if p.GT(profit) {
			return &InvariantError{
				Check:  "optimal trade amount is not a local maximum",
				Detail: fmt.Sprintf("P(%s)=%s exceeds P(%s)=%s", nb, p, x, profit),
			}
		}
	}
	return nil
}
