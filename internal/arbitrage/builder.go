package arbitrage

import (
	"fmt"

	"github.com/pulkyeet/xchain-arb/internal/dec"
)

// fallbackSpendMultiple caps the buy leg when the smoothed max spend rounds
// to nothing.
const fallbackSpendMultiple = 10

// ToBaseUnits converts a human amount to integer base units, rounding half to
// even: ToBaseUnits(1.5, 6) is 1500000.
func ToBaseUnits(d dec.Dec, decimals int) dec.Int {
	return d.Mul(dec.NewDecFromInt(pow10(decimals))).Round()
}

// FromBaseUnits is the inverse of ToBaseUnits.
func FromBaseUnits(i dec.Int, decimals int) dec.Dec {
	return i.ToDec().Quo(dec.NewDecFromInt(pow10(decimals)))
}

func pow10(n int) dec.Int {
	v := dec.OneInt()
	ten := dec.NewInt(10)
	for i := 0; i < n; i++ {
		v = v.Mul(ten)
	}
	return v
}

// BuildTradeParams widens the solver's quote by smoothRate (more spend
// allowed on the buy leg, less return accepted on the sell leg) and converts
// every amount to base units.
func BuildTradeParams(sol TradeSolution, smoothRate dec.Dec, decimals int) (TradeParams, error) {
	if smoothRate.IsNegative() || smoothRate.GTE(oneDec) {
		return TradeParams{}, domainErrorf("smooth trade rate must be in [0, 1), got %s", smoothRate)
	}
	if decimals < 0 || decimals > dec.Precision {
		return TradeParams{}, fmt.Errorf("amount decimals %d out of range", decimals)
	}

	amount := ToBaseUnits(sol.SecondaryAmount, decimals)
	if !amount.IsPositive() {
		return TradeParams{}, domainErrorf("trade amount %s rounds to zero", sol.SecondaryAmount)
	}

	maxSpend := ToBaseUnits(sol.CentralBuyMaxAmount.Mul(oneDec.Add(smoothRate)), decimals)
	if maxSpend.IsZero() {
		maxSpend = amount.MulInt64(fallbackSpendMultiple)
	}
	minReturn := ToBaseUnits(sol.CentralSellMinAmount.Mul(oneDec.Sub(smoothRate)), decimals)
	if minReturn.IsZero() {
		minReturn = dec.OneInt()
	}

	return TradeParams{
		SecondaryAmount: amount,
		MaxSpend:        maxSpend,
		MinReturn:       minReturn,
		Solution:        sol,
	}, nil
}
