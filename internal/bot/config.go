package bot

import (
	"fmt"

	"github.com/pulkyeet/xchain-arb/internal/arbitrage"
	"github.com/pulkyeet/xchain-arb/internal/dec"
)

type Config struct {
	// CheckInterval is the number of time-authority ticks between cycles.
	CheckInterval int64
	// MaxRunCount is how many cycles run before the bot shuts down.
	MaxRunCount int
	// PriceDiffThreshold is the minimum |priceA/priceB - 1| worth solving for.
	PriceDiffThreshold dec.Dec
	// MinProfitThreshold is in central-asset units.
	MinProfitThreshold dec.Dec
	// SmoothTradeRate widens max spend and narrows min return.
	SmoothTradeRate dec.Dec
	AmountDecimals  int
	Bounds          arbitrage.TradeBounds
	// DryRun checks and solves once without sending legs, then shuts down.
	DryRun bool
}

func DefaultConfig() Config {
	return Config{
		CheckInterval:      10,
		MaxRunCount:        10,
		PriceDiffThreshold: dec.NewDecWithPrec(5, 4),
		MinProfitThreshold: dec.NewDecWithPrec(5, 1),
		SmoothTradeRate:    dec.NewDecWithPrec(5, 3),
		AmountDecimals:     6,
		Bounds: arbitrage.TradeBounds{
			Min: dec.OneDec(),
			Max: dec.NewDec(1000),
		},
	}
}

func (c Config) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive, got %d", c.CheckInterval)
	}
	if c.MaxRunCount <= 0 {
		return fmt.Errorf("max run count must be positive, got %d", c.MaxRunCount)
	}
	for _, v := range []struct {
		name string
		val  dec.Dec
	}{
		{"price diff threshold", c.PriceDiffThreshold},
		{"min profit threshold", c.MinProfitThreshold},
		{"smooth trade rate", c.SmoothTradeRate},
	} {
		if v.val.IsNil() || v.val.IsNegative() {
			return fmt.Errorf("%s must be non-negative", v.name)
		}
	}
	if c.SmoothTradeRate.GTE(dec.OneDec()) {
		return fmt.Errorf("smooth trade rate must be below 1, got %s", c.SmoothTradeRate)
	}
	if c.AmountDecimals < 0 || c.AmountDecimals > dec.Precision {
		return fmt.Errorf("amount decimals %d out of range", c.AmountDecimals)
	}
	b := c.Bounds
	if (!b.Min.IsNil() && b.Min.IsNegative()) || (!b.Max.IsNil() && b.Max.IsNegative()) {
		return fmt.Errorf("trade bounds must be non-negative")
	}
	if !b.Min.IsNil() && !b.Max.IsNil() && !b.Max.IsZero() && b.Min.GT(b.Max) {
		return fmt.Errorf("min trade amount %s above max %s", b.Min, b.Max)
	}
	return nil
}
