package arbitrage

import (
	"github.com/pulkyeet/xchain-arb/internal/dec"
)

// DiffRate is priceA/priceB - 1. Negative means A is cheaper.
func DiffRate(priceA, priceB dec.Dec) (dec.Dec, error) {
	if err := requirePositive("price A", priceA); err != nil {
		return dec.Dec{}, err
	}
	if err := requirePositive("price B", priceB); err != nil {
		return dec.Dec{}, err
	}
	return priceA.Quo(priceB).Sub(oneDec), nil
}

// DetectOpportunity compares the two venue prices. It returns nil when the
// gap is below threshold; otherwise the cheaper venue is the buy side.
func DetectOpportunity(priceA, priceB, threshold dec.Dec) (*Opportunity, error) {
	diff, err := DiffRate(priceA, priceB)
	if err != nil {
		return nil, err
	}
	if diff.Abs().LT(threshold) {
		return nil, nil
	}

	buy := VenueB
	if diff.IsNegative() {
		buy = VenueA
	}
	return &Opportunity{
		PriceA:    priceA,
		PriceB:    priceB,
		DiffRate:  diff,
		BuyVenue:  buy,
		SellVenue: buy.Other(),
	}, nil
}
