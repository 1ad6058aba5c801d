package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pulkyeet/xchain-arb/internal/app"
	"github.com/pulkyeet/xchain-arb/internal/config"
	"github.com/pulkyeet/xchain-arb/internal/storage"
	"github.com/pulkyeet/xchain-arb/internal/timer"
)

// lastCycle keeps the single cycle a scan runs.
type lastCycle struct {
	storage.NoopJournal
	cycle *storage.Cycle
}

func (l *lastCycle) RecordCycle(_ context.Context, c storage.Cycle) error {
	l.cycle = &c
	return nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	cfg.Bot.DryRun = true
	cfg.Bot.MaxRunCount = 1
	if err := cfg.Validate(); err != nil {
		fail(err)
	}
	lvl, _ := cfg.LogLevel()
	app.SetupLogging(lvl)

	ctx := context.Background()
	clock := timer.NewManualTimer(0)
	journal := &lastCycle{}
	rt, err := app.Build(ctx, cfg, clock, journal)
	if err != nil {
		fail(err)
	}

	fmt.Printf("scanning ledger pool %d against %s/%s on %s...\n\n",
		cfg.LedgerPool.PoolID, cfg.EVMPool.SecondaryToken, cfg.EVMPool.CentralToken, cfg.EVMPool.DEX)

	fmt.Println("Pool Reserves:")
	fmt.Println("==============")
	for _, v := range []struct {
		name string
		get  func(context.Context) (string, error)
	}{
		{"A (ledger)", func(ctx context.Context) (string, error) {
			d, err := rt.Ledger.GetPoolData(ctx)
			return fmt.Sprintf("central=%s secondary=%s fee=%s", d.CentralAmount, d.SecondaryAmount, d.SwapFee), err
		}},
		{"B (evm)", func(ctx context.Context) (string, error) {
			d, err := rt.EVM.GetPoolData(ctx)
			return fmt.Sprintf("central=%s secondary=%s fee=%s", d.CentralAmount, d.SecondaryAmount, d.SwapFee), err
		}},
	} {
		line, err := v.get(ctx)
		if err != nil {
			fail(fmt.Errorf("pool %s: %w", v.name, err))
		}
		fmt.Printf("\n%s:\n  %s\n", v.name, line)
	}

	if err := rt.Bot.Start(ctx); err != nil {
		fail(err)
	}
	clock.Advance(cfg.Bot.CheckInterval)
	<-rt.Bot.Done()

	c := journal.cycle
	if c == nil {
		fail(fmt.Errorf("no cycle recorded"))
	}

	fmt.Println("\n\nPrices:")
	fmt.Println("=======")
	fmt.Printf("  A: %s\n", c.PriceA)
	fmt.Printf("  B: %s\n", c.PriceB)
	fmt.Printf("  diff rate: %s (threshold %s)\n", c.DiffRate, cfg.Bot.PriceDiffThreshold)

	fmt.Println("\n\nDecision:")
	fmt.Println("=========")
	fmt.Printf("  %s\n", c.Decision)
	switch c.Decision {
	case storage.DecisionDryRun:
		fmt.Printf("\nTrade (buy on %s):\n", c.BuyVenue)
		fmt.Printf("  amount:     %s\n", c.SecondaryAmount)
		fmt.Printf("  max spend:  %s\n", c.MaxSpend)
		fmt.Printf("  min return: %s\n", c.MinReturn)
		fmt.Printf("  profit:     %s\n", c.Profit)
	case storage.DecisionBelowMinProfit:
		fmt.Printf("  profit %s below minimum %s\n", c.Profit, cfg.Bot.MinProfitThreshold)
	case storage.DecisionAborted:
		fmt.Printf("  error: %s\n", c.Error)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "scan: %v\n", err)
	os.Exit(1)
}
