// Package pool adapts each trading venue to the capability the bot drives.
package pool

import (
	"context"
	"errors"

	"github.com/pulkyeet/xchain-arb/internal/arbitrage"
	"github.com/pulkyeet/xchain-arb/internal/dec"
)

var ErrPoolClosed = errors.New("pool is shut down")

// Pool is one venue's view of the central/secondary pair. Amounts passed to
// BuyToken and SellToken are integer base units.
//
// A trade that the venue rejects or reverts returns false with a nil error.
// Errors are reserved for transport failures and broken invariants.
type Pool interface {
	// GetSpotPrice is the central price of one secondary token.
	GetSpotPrice(ctx context.Context, includeFee bool) (dec.Dec, error)
	GetPoolData(ctx context.Context) (arbitrage.PoolData, error)
	// BuyToken acquires outAmount of the secondary asset for at most maxSpend.
	BuyToken(ctx context.Context, outAmount, maxSpend dec.Int) (bool, error)
	// SellToken sells inAmount of the secondary asset for at least minReturn.
	SellToken(ctx context.Context, inAmount, minReturn dec.Int) (bool, error)
	Shutdown(ctx context.Context) error
}
