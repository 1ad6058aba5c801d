package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/pulkyeet/xchain-arb/internal/arbitrage"
	"github.com/pulkyeet/xchain-arb/internal/dec"
	"github.com/pulkyeet/xchain-arb/internal/fund"
)

// LedgerConfig describes the local weighted pool. Reserves are in base units.
type LedgerConfig struct {
	PoolID           uint64
	CentralReserve   arbitrage.Coin
	SecondaryReserve arbitrage.Coin
	CentralWeight    dec.Int
	SecondaryWeight  dec.Int
	TotalShares      dec.Int
	SwapFee          dec.Dec
	Decimals         int
}

// Custody is the part of the fund a ledger venue settles against.
// *fund.Fund satisfies it.
type Custody interface {
	Withdraw(class fund.AssetClass, amount dec.Dec) (*fund.Payment, error)
	Deposit(p *fund.Payment) (dec.Dec, error)
}

var _ Custody = (*fund.Fund)(nil)

// LedgerPool is the Chain A venue: a weighted pool living in the same ledger
// as the agent's Fund. Trades debit the fund, move the reserves and credit the
// payout in one step.
type LedgerPool struct {
	mu     sync.Mutex
	pool   *arbitrage.WeightedPool
	cfg    LedgerConfig
	fund   Custody
	closed bool
	log    log.Logger
}

func NewLedgerPool(cfg LedgerConfig, f Custody) (*LedgerPool, error) {
	if f == nil {
		return nil, errors.New("ledger pool needs a fund")
	}
	if cfg.CentralReserve.Denom == cfg.SecondaryReserve.Denom {
		return nil, fmt.Errorf("central and secondary denom are both %s", cfg.CentralReserve.Denom)
	}
	if !cfg.CentralReserve.Amount.IsPositive() || !cfg.SecondaryReserve.Amount.IsPositive() {
		return nil, fmt.Errorf("ledger pool reserves must be positive")
	}
	if !cfg.CentralWeight.IsPositive() || !cfg.SecondaryWeight.IsPositive() {
		return nil, fmt.Errorf("ledger pool weights must be positive")
	}
	shares := cfg.TotalShares
	if shares.IsZero() {
		shares = dec.NewInt(100).Mul(dec.NewInt(1_000_000_000_000_000_000))
	}

	return &LedgerPool{
		pool: &arbitrage.WeightedPool{
			ID: cfg.PoolID,
			Assets: []arbitrage.PoolAsset{
				{Token: cfg.CentralReserve, Weight: cfg.CentralWeight},
				{Token: cfg.SecondaryReserve, Weight: cfg.SecondaryWeight},
			},
			SwapFee:     cfg.SwapFee,
			ExitFee:     dec.ZeroDec(),
			TotalShares: arbitrage.Coin{Denom: fmt.Sprintf("pool/%d", cfg.PoolID), Amount: shares},
		},
		cfg:  cfg,
		fund: f,
		log:  log.Root().With("component", "pool", "venue", "ledger"),
	}, nil
}

func (p *LedgerPool) central() string   { return p.cfg.CentralReserve.Denom }
func (p *LedgerPool) secondary() string { return p.cfg.SecondaryReserve.Denom }

func (p *LedgerPool) snapshot() (*arbitrage.WeightedPool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	return p.pool, nil
}

func (p *LedgerPool) GetSpotPrice(_ context.Context, includeFee bool) (dec.Dec, error) {
	wp, err := p.snapshot()
	if err != nil {
		return dec.Dec{}, err
	}
	return wp.SpotPrice(p.central(), p.secondary(), includeFee)
}

func (p *LedgerPool) GetPoolData(_ context.Context) (arbitrage.PoolData, error) {
	wp, err := p.snapshot()
	if err != nil {
		return arbitrage.PoolData{}, err
	}
	c, err := wp.Asset(p.central())
	if err != nil {
		return arbitrage.PoolData{}, err
	}
	s, err := wp.Asset(p.secondary())
	if err != nil {
		return arbitrage.PoolData{}, err
	}
	return arbitrage.PoolData{
		CentralAmount:   arbitrage.FromBaseUnits(c.Token.Amount, p.cfg.Decimals),
		SecondaryAmount: arbitrage.FromBaseUnits(s.Token.Amount, p.cfg.Decimals),
		CentralWeight:   c.Weight.ToDec(),
		SecondaryWeight: s.Weight.ToDec(),
		SwapFee:         wp.SwapFee,
	}, nil
}

func (p *LedgerPool) BuyToken(_ context.Context, outAmount, maxSpend dec.Int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrPoolClosed
	}

	want := arbitrage.Coin{Denom: p.secondary(), Amount: outAmount}
	est, err := p.pool.EstimateSwapExactAmountOut(p.central(), want)
	if err != nil {
		return p.rejected("buy", err)
	}
	if est.Amount.GT(maxSpend) {
		p.log.Warn("buy rejected, price moved", "out", outAmount, "cost", est.Amount, "maxSpend", maxSpend)
		return false, nil
	}
	give := arbitrage.Coin{Denom: p.central(), Amount: est.Amount}
	return p.settle(give, want, fund.Central, fund.Secondary)
}

func (p *LedgerPool) SellToken(_ context.Context, inAmount, minReturn dec.Int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrPoolClosed
	}

	give := arbitrage.Coin{Denom: p.secondary(), Amount: inAmount}
	est, err := p.pool.EstimateSwapExactAmountIn(give, p.central())
	if err != nil {
		return p.rejected("sell", err)
	}
	if est.Amount.LT(minReturn) {
		p.log.Warn("sell rejected, price moved", "in", inAmount, "proceeds", est.Amount, "minReturn", minReturn)
		return false, nil
	}
	want := arbitrage.Coin{Denom: p.central(), Amount: est.Amount}
	return p.settle(give, want, fund.Secondary, fund.Central)
}

// rejected turns quote failures the venue would refuse into a false result.
// Broken invariants still surface as errors.
func (p *LedgerPool) rejected(side string, err error) (bool, error) {
	if errors.Is(err, arbitrage.ErrDomain) {
		p.log.Warn("trade rejected", "side", side, "err", err)
		return false, nil
	}
	return false, fmt.Errorf("quote %s: %w", side, err)
}

// settle pays give out of the fund, deposits want and only then moves the
// reserves. A failed deposit puts the withdrawn payment back. Caller holds
// p.mu.
func (p *LedgerPool) settle(give, want arbitrage.Coin, giveClass, wantClass fund.AssetClass) (bool, error) {
	next, err := p.pool.WithSwap(give, want)
	if err != nil {
		return p.rejected("settle", err)
	}
	payout, err := fund.NewPayment(wantClass, arbitrage.FromBaseUnits(want.Amount, p.cfg.Decimals))
	if err != nil {
		return false, err
	}

	payment, err := p.fund.Withdraw(giveClass, arbitrage.FromBaseUnits(give.Amount, p.cfg.Decimals))
	if errors.Is(err, fund.ErrInsufficientFunds) {
		p.log.Warn("trade rejected, fund too small", "class", giveClass, "err", err)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("withdraw %s: %w", giveClass, err)
	}

	if _, err := p.fund.Deposit(payout); err != nil {
		err = fmt.Errorf("deposit %s: %w", wantClass, err)
		if _, rerr := p.fund.Deposit(payment); rerr != nil {
			return false, errors.Join(err, fmt.Errorf("restore %s: %w", giveClass, rerr))
		}
		return false, err
	}
	if _, err := payment.Claim(); err != nil {
		return false, fmt.Errorf("claim %s: %w", giveClass, err)
	}
	p.pool = next

	p.log.Info("trade settled", "paid", give, "received", want)
	return want.Amount.IsPositive(), nil
}

func (p *LedgerPool) Shutdown(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.log.Info("ledger pool shut down")
	return nil
}
