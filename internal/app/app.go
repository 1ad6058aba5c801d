// Package app wires configuration into a runnable bot.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"

	"github.com/pulkyeet/xchain-arb/internal/bot"
	"github.com/pulkyeet/xchain-arb/internal/config"
	"github.com/pulkyeet/xchain-arb/internal/eth"
	"github.com/pulkyeet/xchain-arb/internal/fund"
	"github.com/pulkyeet/xchain-arb/internal/pool"
	"github.com/pulkyeet/xchain-arb/internal/storage"
	"github.com/pulkyeet/xchain-arb/internal/timer"
)

// SetupLogging installs a colored terminal handler as the default logger.
func SetupLogging(lvl slog.Level) {
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}

// Runtime is a bot with the pieces a command may want to inspect.
type Runtime struct {
	Bot    *bot.Bot
	Purse  *fund.Purse
	Fund   *fund.Fund
	Ledger *pool.LedgerPool
	EVM    *pool.EVMPool
}

// Build funds the agent from a fresh purse, opens both venues and
// assembles the bot. The ledger pool is venue A and the EVM pair venue B.
func Build(ctx context.Context, cfg *config.Config, t timer.TimeAuthority, journal storage.Recorder) (*Runtime, error) {
	botCfg, err := cfg.BotConfig()
	if err != nil {
		return nil, err
	}

	central, secondary, err := cfg.Funding()
	if err != nil {
		return nil, err
	}
	purse := fund.NewPurse(central, secondary)
	cp, err := purse.Withdraw(fund.Central, central)
	if err != nil {
		return nil, err
	}
	sp, err := purse.Withdraw(fund.Secondary, secondary)
	if err != nil {
		return nil, err
	}
	f, err := fund.New(purse, cp, sp)
	if err != nil {
		return nil, fmt.Errorf("open fund: %w", err)
	}

	ledgerCfg, err := cfg.LedgerConfig()
	if err != nil {
		return nil, err
	}
	ledger, err := pool.NewLedgerPool(ledgerCfg, f)
	if err != nil {
		return nil, fmt.Errorf("ledger pool: %w", err)
	}

	evmCfg, err := cfg.EVMConfig()
	if err != nil {
		return nil, err
	}
	key, err := cfg.PrivateKey()
	if err != nil {
		return nil, err
	}
	client, err := eth.NewClient(ctx, cfg.EVMPool.RPCURL)
	if err != nil {
		return nil, err
	}
	evm, err := pool.NewEVMPool(client, key, evmCfg)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("evm pool: %w", err)
	}

	b, err := bot.New(botCfg, bot.Deps{
		PoolA:   ledger,
		PoolB:   evm,
		Fund:    f,
		Timer:   t,
		Journal: journal,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	gas, err := client.BalanceAt(ctx, evm.Account(), nil)
	switch {
	case err != nil:
		log.Warn("could not read gas balance", "account", evm.Account().Hex(), "err", err)
	case gas.Sign() == 0:
		log.Warn("trading account has no gas", "account", evm.Account().Hex())
	}
	log.Info("agent ready", "account", evm.Account().Hex(), "pair", evmCfg.Pair.Hex(),
		"central", central, "secondary", secondary, "gasWei", gas)

	return &Runtime{Bot: b, Purse: purse, Fund: f, Ledger: ledger, EVM: evm}, nil
}
