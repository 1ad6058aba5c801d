package arbitrage

import (
	"github.com/pulkyeet/xchain-arb/internal/dec"
)

// PoolData is a snapshot of one venue's reserves, weights and fee, in human
// units of the central (numeraire) and secondary assets.
type PoolData struct {
	CentralAmount   dec.Dec
	SecondaryAmount dec.Dec
	CentralWeight   dec.Dec
	SecondaryWeight dec.Dec
	SwapFee         dec.Dec
}

// SpotPrice is the central price of one secondary token.
func (p PoolData) SpotPrice(includeFee bool) (dec.Dec, error) {
	fee := p.SwapFee
	if !includeFee {
		fee = dec.ZeroDec()
	}
	return CalcSpotPrice(p.CentralAmount, p.CentralWeight, p.SecondaryAmount, p.SecondaryWeight, fee)
}

// TradeSolution is the solver output for one cycle.
type TradeSolution struct {
	SecondaryAmount      dec.Dec
	CentralBuyMaxAmount  dec.Dec
	CentralSellMinAmount dec.Dec
	Profit               dec.Dec
}

// Venue identifies one of the two pools the agent trades between.
type Venue int

const (
	VenueA Venue = iota
	VenueB
)

func (v Venue) String() string {
	switch v {
	case VenueA:
		return "A"
	case VenueB:
		return "B"
	default:
		return "unknown"
	}
}

// Other returns the opposite venue.
func (v Venue) Other() Venue {
	if v == VenueA {
		return VenueB
	}
	return VenueA
}

// Opportunity is a price gap wide enough to try solving for a trade.
type Opportunity struct {
	PriceA    dec.Dec
	PriceB    dec.Dec
	DiffRate  dec.Dec
	BuyVenue  Venue
	SellVenue Venue
}

// TradeParams are the leg amounts handed to the pools, in base units.
type TradeParams struct {
	SecondaryAmount dec.Int
	MaxSpend        dec.Int
	MinReturn       dec.Int
	Solution        TradeSolution
}
