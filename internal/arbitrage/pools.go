package arbitrage

import (
	"fmt"
	"regexp"

	"github.com/pulkyeet/xchain-arb/internal/dec"
)

var coinPattern = regexp.MustCompile(`^([0-9]+)\s*([a-zA-Z][a-zA-Z0-9/]*)$`)

// Coin is an integer amount of a denom, as venues report balances.
type Coin struct {
	Denom  string
	Amount dec.Int
}

// ParseCoin reads "1000uosmo" or "1000 uosmo".
func ParseCoin(s string) (Coin, error) {
	m := coinPattern.FindStringSubmatch(s)
	if m == nil {
		return Coin{}, &dec.ParseError{Input: s, Reason: "invalid coin"}
	}
	amount, err := dec.NewIntFromString(m[1])
	if err != nil {
		return Coin{}, err
	}
	return Coin{Denom: m[2], Amount: amount}, nil
}

func (c Coin) String() string {
	return c.Amount.String() + c.Denom
}

type PoolAsset struct {
	Token  Coin
	Weight dec.Int
}

// WeightedPool is an immutable snapshot of a balancer-style pool with integer
// balances and weights.
type WeightedPool struct {
	ID          uint64
	Assets      []PoolAsset
	SwapFee     dec.Dec
	ExitFee     dec.Dec
	TotalShares Coin
}

func (p *WeightedPool) TotalWeight() dec.Int {
	total := dec.ZeroInt()
	for _, a := range p.Assets {
		total = total.Add(a.Weight)
	}
	return total
}

func (p *WeightedPool) Asset(denom string) (PoolAsset, error) {
	for _, a := range p.Assets {
		if a.Token.Denom == denom {
			return a, nil
		}
	}
	return PoolAsset{}, fmt.Errorf("pool %d has no asset %s", p.ID, denom)
}

func (p *WeightedPool) pair(inDenom, outDenom string) (in, out PoolAsset, err error) {
	if in, err = p.Asset(inDenom); err != nil {
		return
	}
	out, err = p.Asset(outDenom)
	return
}

// SpotPrice is the price of outDenom in inDenom.
func (p *WeightedPool) SpotPrice(inDenom, outDenom string, includeFee bool) (dec.Dec, error) {
	in, out, err := p.pair(inDenom, outDenom)
	if err != nil {
		return dec.Dec{}, err
	}
	fee := p.SwapFee
	if !includeFee {
		fee = dec.ZeroDec()
	}
	return CalcSpotPrice(in.Token.Amount.ToDec(), in.Weight.ToDec(), out.Token.Amount.ToDec(), out.Weight.ToDec(), fee)
}

func (p *WeightedPool) SlippageSlope(inDenom, outDenom string) (dec.Dec, error) {
	in, out, err := p.pair(inDenom, outDenom)
	if err != nil {
		return dec.Dec{}, err
	}
	return CalcSlippageSlope(in.Token.Amount.ToDec(), in.Weight.ToDec(), out.Weight.ToDec(), p.SwapFee), nil
}

// SwapEstimate describes a quoted swap. Amount is the computed side: tokens
// out for an exact-in swap, tokens in for an exact-out swap.
type SwapEstimate struct {
	Amount          dec.Int
	SpotPriceBefore dec.Dec
	SpotPriceAfter  dec.Dec
	EffectivePrice  dec.Dec
	Slippage        dec.Dec
}

// EstimateSwapExactAmountIn quotes selling exactly tokenIn for outDenom.
func (p *WeightedPool) EstimateSwapExactAmountIn(tokenIn Coin, outDenom string) (SwapEstimate, error) {
	in, out, err := p.pair(tokenIn.Denom, outDenom)
	if err != nil {
		return SwapEstimate{}, err
	}
	balanceIn, weightIn := in.Token.Amount.ToDec(), in.Weight.ToDec()
	balanceOut, weightOut := out.Token.Amount.ToDec(), out.Weight.ToDec()

	before, err := CalcSpotPrice(balanceIn, weightIn, balanceOut, weightOut, p.SwapFee)
	if err != nil {
		return SwapEstimate{}, fmt.Errorf("spot price before: %w", err)
	}
	outAmount, err := CalcOutGivenIn(balanceIn, weightIn, balanceOut, weightOut, tokenIn.Amount.ToDec(), p.SwapFee)
	if err != nil {
		return SwapEstimate{}, fmt.Errorf("out given in: %w", err)
	}
	tokenOut := outAmount.Truncate()
	if !tokenOut.IsPositive() {
		return SwapEstimate{}, domainErrorf("swap of %s yields nothing", tokenIn)
	}
	after, err := CalcSpotPrice(balanceIn.Add(tokenIn.Amount.ToDec()), weightIn, balanceOut.Sub(tokenOut.ToDec()), weightOut, p.SwapFee)
	if err != nil {
		return SwapEstimate{}, fmt.Errorf("spot price after: %w", err)
	}
	if after.LT(before) {
		return SwapEstimate{}, &InvariantError{
			Check:  "spot price can't be decreased after swap",
			Detail: fmt.Sprintf("before %s after %s", before, after),
		}
	}

	effective := tokenIn.Amount.ToDec().Quo(tokenOut.ToDec())
	return SwapEstimate{
		Amount:          tokenOut,
		SpotPriceBefore: before,
		SpotPriceAfter:  after,
		EffectivePrice:  effective,
		Slippage:        effective.Quo(before).Sub(oneDec),
	}, nil
}

// EstimateSwapExactAmountOut quotes buying exactly tokenOut with inDenom.
func (p *WeightedPool) EstimateSwapExactAmountOut(inDenom string, tokenOut Coin) (SwapEstimate, error) {
	in, out, err := p.pair(inDenom, tokenOut.Denom)
	if err != nil {
		return SwapEstimate{}, err
	}
	if !tokenOut.Amount.IsPositive() {
		return SwapEstimate{}, domainErrorf("token out %s must be positive", tokenOut)
	}
	balanceIn, weightIn := in.Token.Amount.ToDec(), in.Weight.ToDec()
	balanceOut, weightOut := out.Token.Amount.ToDec(), out.Weight.ToDec()

	before, err := CalcSpotPrice(balanceIn, weightIn, balanceOut, weightOut, p.SwapFee)
	if err != nil {
		return SwapEstimate{}, fmt.Errorf("spot price before: %w", err)
	}
	inAmount, err := CalcInGivenOut(balanceIn, weightIn, balanceOut, weightOut, tokenOut.Amount.ToDec(), p.SwapFee)
	if err != nil {
		return SwapEstimate{}, fmt.Errorf("in given out: %w", err)
	}
	tokenIn := inAmount.Truncate()
	after, err := CalcSpotPrice(balanceIn.Add(tokenIn.ToDec()), weightIn, balanceOut.Sub(tokenOut.Amount.ToDec()), weightOut, p.SwapFee)
	if err != nil {
		return SwapEstimate{}, fmt.Errorf("spot price after: %w", err)
	}
	if after.LT(before) {
		return SwapEstimate{}, &InvariantError{
			Check:  "spot price can't be decreased after swap",
			Detail: fmt.Sprintf("before %s after %s", before, after),
		}
	}

	effective := tokenIn.ToDec().Quo(tokenOut.Amount.ToDec())
	return SwapEstimate{
		Amount:          tokenIn,
		SpotPriceBefore: before,
		SpotPriceAfter:  after,
		EffectivePrice:  effective,
		Slippage:        effective.Quo(before).Sub(oneDec),
	}, nil
}

// EstimateJoinPool returns the proportional deposit for minting shareOut.
func (p *WeightedPool) EstimateJoinPool(shareOut dec.Int) ([]Coin, error) {
	return p.proportional(shareOut)
}

// EstimateExitPool returns the proportional payout for burning shareIn.
func (p *WeightedPool) EstimateExitPool(shareIn dec.Int) ([]Coin, error) {
	return p.proportional(shareIn)
}

func (p *WeightedPool) proportional(shares dec.Int) ([]Coin, error) {
	if !p.TotalShares.Amount.IsPositive() {
		return nil, domainErrorf("pool %d has no shares", p.ID)
	}
	ratio := shares.ToDec().Quo(p.TotalShares.Amount.ToDec())
	if !ratio.IsPositive() {
		return nil, domainErrorf("share ratio is zero or negative")
	}

	coins := make([]Coin, 0, len(p.Assets))
	for _, a := range p.Assets {
		coins = append(coins, Coin{
			Denom:  a.Token.Denom,
			Amount: ratio.Mul(a.Token.Amount.ToDec()).Truncate(),
		})
	}
	return coins, nil
}

// EstimateJoinSwapExternAmountIn returns the shares minted for a
// single-asset deposit.
func (p *WeightedPool) EstimateJoinSwapExternAmountIn(tokenIn Coin) (dec.Int, error) {
	a, err := p.Asset(tokenIn.Denom)
	if err != nil {
		return dec.Int{}, err
	}
	shares, err := CalcPoolOutGivenSingleIn(
		a.Token.Amount.ToDec(),
		a.Weight.ToDec(),
		p.TotalShares.Amount.ToDec(),
		p.TotalWeight().ToDec(),
		tokenIn.Amount.ToDec(),
		p.SwapFee,
	)
	if err != nil {
		return dec.Int{}, err
	}
	return shares.Truncate(), nil
}

// WithSwap returns the pool after paying in and taking out. The receiver is
// left untouched.
func (p *WeightedPool) WithSwap(in, out Coin) (*WeightedPool, error) {
	next := *p
	next.Assets = make([]PoolAsset, len(p.Assets))
	copy(next.Assets, p.Assets)

	var seenIn, seenOut bool
	for i, a := range next.Assets {
		switch a.Token.Denom {
		case in.Denom:
			next.Assets[i].Token.Amount = a.Token.Amount.Add(in.Amount)
			seenIn = true
		case out.Denom:
			remaining := a.Token.Amount.Sub(out.Amount)
			if !remaining.IsPositive() {
				return nil, domainErrorf("swap drains %s from pool %d", out.Denom, p.ID)
			}
			next.Assets[i].Token.Amount = remaining
			seenOut = true
		}
	}
	if !seenIn || !seenOut {
		return nil, fmt.Errorf("pool %d does not trade %s for %s", p.ID, in.Denom, out.Denom)
	}
	return &next, nil
}

// SlippageTokenIn is the minimum output for tokenIn given a tolerated
// slippage over the spot price.
func SlippageTokenIn(spotPriceBefore dec.Dec, tokenIn dec.Int, slippage dec.Dec) dec.Int {
	effective := spotPriceBefore.Mul(slippage.Add(oneDec))
	return tokenIn.ToDec().Quo(effective).Truncate()
}

// SlippageTokenOut is the maximum input for tokenOut given a tolerated
// slippage over the spot price.
func SlippageTokenOut(spotPriceBefore dec.Dec, tokenOut dec.Int, slippage dec.Dec) dec.Int {
	effective := spotPriceBefore.Mul(slippage.Add(oneDec))
	return tokenOut.ToDec().Mul(effective).Truncate()
}
