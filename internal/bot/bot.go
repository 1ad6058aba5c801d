// Package bot runs the check/solve/trade cycle between two venues.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/pulkyeet/xchain-arb/internal/arbitrage"
	"github.com/pulkyeet/xchain-arb/internal/dec"
	"github.com/pulkyeet/xchain-arb/internal/fund"
	"github.com/pulkyeet/xchain-arb/internal/pool"
	"github.com/pulkyeet/xchain-arb/internal/storage"
	"github.com/pulkyeet/xchain-arb/internal/timer"
)

// Deps are the capabilities the bot drives. Journal and Logger are optional.
type Deps struct {
	PoolA   pool.Pool
	PoolB   pool.Pool
	Fund    *fund.Fund
	Timer   timer.TimeAuthority
	Journal storage.Recorder
	Logger  log.Logger
}

type Bot struct {
	cfg     Config
	pools   [2]pool.Pool
	fund    *fund.Fund
	timer   timer.TimeAuthority
	journal storage.Recorder
	log     log.Logger

	// runMu serializes cycles and shutdown; wakeups may arrive on any goroutine
	runMu  sync.Mutex
	ctx    context.Context
	count  int
	cycles int

	stateMu sync.Mutex
	state   State
	done    chan struct{}
}

func New(cfg Config, deps Deps) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.PoolA == nil || deps.PoolB == nil || deps.Fund == nil || deps.Timer == nil {
		return nil, errors.New("bot needs both pools, a fund and a timer")
	}
	if deps.Journal == nil {
		deps.Journal = storage.NoopJournal{}
	}
	if deps.Logger == nil {
		deps.Logger = log.Root()
	}
	return &Bot{
		cfg:     cfg,
		pools:   [2]pool.Pool{arbitrage.VenueA: deps.PoolA, arbitrage.VenueB: deps.PoolB},
		fund:    deps.Fund,
		timer:   deps.Timer,
		journal: deps.Journal,
		log:     deps.Logger.With("component", "bot"),
		done:    make(chan struct{}),
	}, nil
}

func (b *Bot) State() State {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.state
}

func (b *Bot) setState(s State) {
	b.stateMu.Lock()
	prev := b.state
	b.state = s
	b.stateMu.Unlock()
	b.log.Debug("state", "from", prev, "to", s)
}

// Done is closed once the bot has terminated.
func (b *Bot) Done() <-chan struct{} { return b.done }

func (b *Bot) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start registers the first wakeup. Cancelling ctx shuts the bot down.
func (b *Bot) Start(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.State() != Idle || b.ctx != nil {
		return errors.New("bot already started")
	}
	b.ctx = ctx

	go func() {
		select {
		case <-ctx.Done():
			b.Stop()
		case <-b.done:
		}
	}()

	b.log.Info("bot started", "checkInterval", b.cfg.CheckInterval, "maxRunCount", b.cfg.MaxRunCount, "dryRun", b.cfg.DryRun)
	b.registerNextWakeup()
	return nil
}

// Stop shuts the bot down after any running cycle finishes.
func (b *Bot) Stop() {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	b.shutdown()
}

// registerNextWakeup schedules the next cycle or shuts down once
// MaxRunCount cycles have been scheduled. Caller holds runMu.
func (b *Bot) registerNextWakeup() {
	b.count++
	if b.count > b.cfg.MaxRunCount {
		b.log.Info("run count reached", "maxRunCount", b.cfg.MaxRunCount)
		b.shutdown()
		return
	}

	now, err := b.timer.CurrentTimestamp(b.ctx)
	if err == nil {
		err = b.timer.SetWakeup(b.ctx, now+b.cfg.CheckInterval, b.wake)
	}
	if err != nil {
		b.log.Error("cannot schedule next cycle", "err", err)
		b.shutdown()
		return
	}
	b.log.Debug("next wakeup", "at", now+b.cfg.CheckInterval, "run", b.count)
}

func (b *Bot) wake() {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if s := b.State(); s == ShuttingDown || s == Terminated {
		return
	}

	b.cycles++
	run := b.cycles
	err := b.runCycle(b.ctx, run)
	switch {
	case arbitrage.IsInvariantError(err):
		b.log.Error("pricing invariant violated, shutting down", "run", run, "err", err)
		b.shutdown()
		return
	case err != nil:
		b.log.Error("cycle aborted", "run", run, "err", err)
	}

	if b.cfg.DryRun {
		b.shutdown()
		return
	}
	b.registerNextWakeup()
}

func (b *Bot) runCycle(ctx context.Context, run int) (err error) {
	rec := storage.Cycle{Run: run}
	if ts, terr := b.timer.CurrentTimestamp(ctx); terr == nil {
		rec.Timestamp = ts
	}
	defer func() {
		if err != nil {
			rec.Decision = storage.DecisionAborted
			rec.Error = err.Error()
		}
		b.record(ctx, rec)
	}()

	b.setState(Checking)
	prices, err := b.spotPrices(ctx)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}
	priceA, priceB := prices[arbitrage.VenueA], prices[arbitrage.VenueB]
	rec.PriceA, rec.PriceB = priceA.String(), priceB.String()

	diff, err := arbitrage.DiffRate(priceA, priceB)
	if err != nil {
		return fmt.Errorf("compare prices: %w", err)
	}
	rec.DiffRate = diff.String()
	b.log.Info("price check", "run", run, "priceA", priceA, "priceB", priceB, "diffRate", diff)

	opp, err := arbitrage.DetectOpportunity(priceA, priceB, b.cfg.PriceDiffThreshold)
	if err != nil {
		return fmt.Errorf("compare prices: %w", err)
	}
	if opp == nil {
		b.setState(NoTrade)
		rec.Decision = storage.DecisionNoTradeThreshold
		b.log.Info("no trade, gap below threshold", "run", run, "threshold", b.cfg.PriceDiffThreshold)
		return nil
	}
	rec.BuyVenue = opp.BuyVenue.String()

	buyData, sellData, err := b.poolData(ctx, opp)
	if err != nil {
		return fmt.Errorf("fetch pool data: %w", err)
	}
	sol, ok, err := arbitrage.SolveForPools(buyData, sellData, b.cfg.Bounds)
	if err != nil {
		return fmt.Errorf("solve: %w", err)
	}
	if !ok {
		b.setState(NoTrade)
		rec.Decision = storage.DecisionNoSolution
		b.log.Info("no trade, no profitable size", "run", run, "buy", opp.BuyVenue)
		return nil
	}
	rec.Profit = sol.Profit.String()
	if sol.Profit.LT(b.cfg.MinProfitThreshold) {
		b.setState(NoTrade)
		rec.Decision = storage.DecisionBelowMinProfit
		b.log.Info("no trade, profit below minimum", "run", run, "profit", sol.Profit, "min", b.cfg.MinProfitThreshold)
		return nil
	}

	params, err := arbitrage.BuildTradeParams(sol, b.cfg.SmoothTradeRate, b.cfg.AmountDecimals)
	if err != nil {
		return fmt.Errorf("trade params: %w", err)
	}
	rec.SecondaryAmount = params.SecondaryAmount.String()
	rec.MaxSpend = params.MaxSpend.String()
	rec.MinReturn = params.MinReturn.String()

	b.setState(TradeProposed)
	b.log.Info("trade proposed", "run", run, "buy", opp.BuyVenue, "sell", opp.SellVenue,
		"amount", params.SecondaryAmount, "maxSpend", params.MaxSpend, "minReturn", params.MinReturn,
		"expectedProfit", sol.Profit)
	if b.cfg.DryRun {
		rec.Decision = storage.DecisionDryRun
		b.log.Info("dry run, legs not sent", "run", run)
		return nil
	}

	b.setState(Executing)
	buyOK, sellOK, err := b.execute(ctx, opp, params)
	rec.BuyOK, rec.SellOK = buyOK, sellOK
	if err != nil {
		return fmt.Errorf("execute legs: %w", err)
	}

	b.setState(Settled)
	rec.Decision = storage.DecisionExecuted
	if post, perr := b.spotPrices(ctx); perr == nil {
		rec.PostPriceA = post[arbitrage.VenueA].String()
		rec.PostPriceB = post[arbitrage.VenueB].String()
		b.log.Info("post-trade prices", "run", run, "priceA", post[arbitrage.VenueA], "priceB", post[arbitrage.VenueB])
	} else {
		b.log.Warn("post-trade price check failed", "run", run, "err", perr)
	}

	if buyOK && sellOK {
		b.log.Info("trade executed", "run", run, "buy", opp.BuyVenue, "sell", opp.SellVenue)
	} else {
		b.log.Warn("degraded outcome", "run", run, "buyOK", buyOK, "sellOK", sellOK)
	}
	bal := b.fund.Balances()
	b.log.Info("fund balances", "run", run, "central", bal.Central, "secondary", bal.Secondary)
	return nil
}

// spotPrices fetches both venues' fee-inclusive prices concurrently.
func (b *Bot) spotPrices(ctx context.Context) ([2]dec.Dec, error) {
	var prices [2]dec.Dec
	g, gctx := errgroup.WithContext(ctx)
	for v, p := range b.pools {
		v, p := v, p
		g.Go(func() error {
			price, err := p.GetSpotPrice(gctx, true)
			if err != nil {
				return fmt.Errorf("venue %s: %w", arbitrage.Venue(v), err)
			}
			prices[v] = price
			return nil
		})
	}
	return prices, g.Wait()
}

func (b *Bot) poolData(ctx context.Context, opp *arbitrage.Opportunity) (buy, sell arbitrage.PoolData, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if buy, err = b.pools[opp.BuyVenue].GetPoolData(gctx); err != nil {
			return fmt.Errorf("venue %s: %w", opp.BuyVenue, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if sell, err = b.pools[opp.SellVenue].GetPoolData(gctx); err != nil {
			return fmt.Errorf("venue %s: %w", opp.SellVenue, err)
		}
		return nil
	})
	err = g.Wait()
	return buy, sell, err
}

// execute sends both legs at once. Neither leg cancels the other, so one can
// settle while the other fails.
func (b *Bot) execute(ctx context.Context, opp *arbitrage.Opportunity, params arbitrage.TradeParams) (buyOK, sellOK bool, err error) {
	var g errgroup.Group
	var buyErr, sellErr error
	g.Go(func() error {
		buyOK, buyErr = b.pools[opp.BuyVenue].BuyToken(ctx, params.SecondaryAmount, params.MaxSpend)
		if buyErr != nil {
			buyErr = fmt.Errorf("buy on %s: %w", opp.BuyVenue, buyErr)
		}
		return buyErr
	})
	g.Go(func() error {
		sellOK, sellErr = b.pools[opp.SellVenue].SellToken(ctx, params.SecondaryAmount, params.MinReturn)
		if sellErr != nil {
			sellErr = fmt.Errorf("sell on %s: %w", opp.SellVenue, sellErr)
		}
		return sellErr
	})
	if g.Wait() != nil {
		return buyOK, sellOK, errors.Join(buyErr, sellErr)
	}
	return buyOK, sellOK, nil
}

func (b *Bot) record(ctx context.Context, rec storage.Cycle) {
	if err := b.journal.RecordCycle(context.WithoutCancel(ctx), rec); err != nil {
		b.log.Warn("journal write failed", "run", rec.Run, "err", err)
	}
}

// shutdown releases both pools, returns the fund and closes the journal.
// Caller holds runMu.
func (b *Bot) shutdown() {
	if s := b.State(); s == ShuttingDown || s == Terminated {
		return
	}
	b.setState(ShuttingDown)

	base := b.ctx
	if base == nil {
		base = context.Background()
	}
	ctx := context.WithoutCancel(base)

	var g errgroup.Group
	for v, p := range b.pools {
		v, p := v, p
		g.Go(func() error {
			if err := p.Shutdown(ctx); err != nil {
				return fmt.Errorf("venue %s: %w", arbitrage.Venue(v), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.log.Error("pool shutdown failed", "err", err)
	}
	if err := b.fund.Cleanup(ctx); err != nil {
		b.log.Error("fund cleanup failed", "err", err)
	}
	if err := b.journal.Close(); err != nil {
		b.log.Error("journal close failed", "err", err)
	}

	b.setState(Terminated)
	close(b.done)
	b.log.Info("bot terminated", "cycles", b.cycles)
}
