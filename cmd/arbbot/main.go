package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/pulkyeet/xchain-arb/internal/app"
	"github.com/pulkyeet/xchain-arb/internal/config"
	"github.com/pulkyeet/xchain-arb/internal/fund"
	"github.com/pulkyeet/xchain-arb/internal/storage"
	"github.com/pulkyeet/xchain-arb/internal/timer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "check and solve once without trading")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.Bot.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	lvl, _ := cfg.LogLevel()
	app.SetupLogging(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, err := storage.NewSQLiteJournal(cfg.Journal.Path)
	if err != nil {
		log.Crit("open journal", "path", cfg.Journal.Path, "err", err)
	}

	clock := timer.NewCronTimer()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = clock.Stop(sctx)
	}()

	rt, err := app.Build(ctx, cfg, clock, journal)
	if err != nil {
		journal.Close()
		log.Crit("build bot", "err", err)
	}
	if err := rt.Bot.Start(ctx); err != nil {
		log.Crit("start bot", "err", err)
	}

	<-rt.Bot.Done()
	log.Info("wallet after shutdown",
		"central", rt.Purse.Balance(fund.Central),
		"secondary", rt.Purse.Balance(fund.Secondary))
}
