package config

import (
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pulkyeet/xchain-arb/internal/arbitrage"
	"github.com/pulkyeet/xchain-arb/internal/bot"
	"github.com/pulkyeet/xchain-arb/internal/dec"
	"github.com/pulkyeet/xchain-arb/internal/eth"
	"github.com/pulkyeet/xchain-arb/internal/pool"
)

// Config holds all application configuration. Decimal options are strings
// and are parsed when converted for the component that uses them.
type Config struct {
	Bot struct {
		CheckInterval      int64  `yaml:"check_interval"`
		MaxRunCount        int    `yaml:"max_run_count"`
		PriceDiffThreshold string `yaml:"price_diff_threshold"`
		MinProfitThreshold string `yaml:"min_profit_threshold"`
		SmoothTradeRate    string `yaml:"smooth_trade_rate"`
		AmountDecimals     *int   `yaml:"amount_decimals"`
		MinTradeAmount     string `yaml:"min_trade_amount"`
		MaxTradeAmount     string `yaml:"max_trade_amount"`
		DryRun             bool   `yaml:"dry_run"`
	} `yaml:"bot"`
	LedgerPool struct {
		PoolID           uint64 `yaml:"pool_id"`
		CentralReserve   string `yaml:"central_reserve"`
		SecondaryReserve string `yaml:"secondary_reserve"`
		CentralWeight    string `yaml:"central_weight"`
		SecondaryWeight  string `yaml:"secondary_weight"`
		SwapFee          string `yaml:"swap_fee"`
	} `yaml:"ledger_pool"`
	EVMPool struct {
		RPCURL            string        `yaml:"rpc_url"`
		PrivateKey        string        `yaml:"private_key"`
		DEX               string        `yaml:"dex"`
		Pair              string        `yaml:"pair"`
		Router            string        `yaml:"router"`
		CentralToken      string        `yaml:"central_token"`
		CentralDecimals   int           `yaml:"central_decimals"`
		SecondaryToken    string        `yaml:"secondary_token"`
		SecondaryDecimals int           `yaml:"secondary_decimals"`
		SwapFee           string        `yaml:"swap_fee"`
		GasLimit          uint64        `yaml:"gas_limit"`
		Deadline          time.Duration `yaml:"deadline"`
		ReceiptTimeout    time.Duration `yaml:"receipt_timeout"`
	} `yaml:"evm_pool"`
	Fund struct {
		Central   string `yaml:"central"`
		Secondary string `yaml:"secondary"`
	} `yaml:"fund"`
	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides. A missing file leaves everything to the environment
// and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(eth.RPCURLEnv); v != "" {
		c.EVMPool.RPCURL = v
	}
	if v := os.Getenv("CHAIN_B_PRIVATE_KEY"); v != "" {
		c.EVMPool.PrivateKey = v
	}
	if v := os.Getenv("ARB_CHECK_INTERVAL"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ARB_CHECK_INTERVAL: %w", err)
		}
		c.Bot.CheckInterval = n
	}
	if v := os.Getenv("ARB_MAX_RUN_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ARB_MAX_RUN_COUNT: %w", err)
		}
		c.Bot.MaxRunCount = n
	}
	if v := os.Getenv("ARB_DRY_RUN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ARB_DRY_RUN: %w", err)
		}
		c.Bot.DryRun = b
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Bot.CheckInterval == 0 {
		c.Bot.CheckInterval = 10
	}
	if c.Bot.MaxRunCount == 0 {
		c.Bot.MaxRunCount = 10
	}
	if c.Bot.PriceDiffThreshold == "" {
		c.Bot.PriceDiffThreshold = "0.0005"
	}
	if c.Bot.MinProfitThreshold == "" {
		c.Bot.MinProfitThreshold = "0.5"
	}
	if c.Bot.SmoothTradeRate == "" {
		c.Bot.SmoothTradeRate = "0.005"
	}
	if c.Bot.AmountDecimals == nil {
		six := 6
		c.Bot.AmountDecimals = &six
	}
	if c.Bot.MinTradeAmount == "" {
		c.Bot.MinTradeAmount = "1"
	}
	if c.Bot.MaxTradeAmount == "" {
		c.Bot.MaxTradeAmount = "1000"
	}
	if c.LedgerPool.SwapFee == "" {
		c.LedgerPool.SwapFee = "0.003"
	}
	if c.EVMPool.DEX == "" {
		c.EVMPool.DEX = "uniswap"
	}
	if c.EVMPool.SwapFee == "" {
		c.EVMPool.SwapFee = "0.003"
	}
	if c.EVMPool.GasLimit == 0 {
		c.EVMPool.GasLimit = 250_000
	}
	if c.EVMPool.Deadline == 0 {
		c.EVMPool.Deadline = 120 * time.Second
	}
	if c.EVMPool.ReceiptTimeout == 0 {
		c.EVMPool.ReceiptTimeout = 120 * time.Second
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/journal.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all required fields are set and every value parses.
func (c *Config) Validate() error {
	if c.EVMPool.RPCURL == "" {
		return fmt.Errorf("evm_pool.rpc_url is required")
	}
	if c.EVMPool.PrivateKey == "" {
		return fmt.Errorf("evm_pool.private_key is required")
	}
	if _, err := c.BotConfig(); err != nil {
		return err
	}
	if _, err := c.LedgerConfig(); err != nil {
		return err
	}
	if _, err := c.EVMConfig(); err != nil {
		return err
	}
	if _, _, err := c.Funding(); err != nil {
		return err
	}
	if _, err := c.PrivateKey(); err != nil {
		return err
	}
	_, err := c.LogLevel()
	return err
}

func parseDec(key, s string) (dec.Dec, error) {
	d, err := dec.NewDecFromStr(strings.TrimSpace(s))
	if err != nil {
		return dec.Dec{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func (c *Config) BotConfig() (bot.Config, error) {
	out := bot.Config{
		CheckInterval:  c.Bot.CheckInterval,
		MaxRunCount:    c.Bot.MaxRunCount,
		AmountDecimals: *c.Bot.AmountDecimals,
		DryRun:         c.Bot.DryRun,
	}
	var err error
	if out.PriceDiffThreshold, err = parseDec("bot.price_diff_threshold", c.Bot.PriceDiffThreshold); err != nil {
		return bot.Config{}, err
	}
	if out.MinProfitThreshold, err = parseDec("bot.min_profit_threshold", c.Bot.MinProfitThreshold); err != nil {
		return bot.Config{}, err
	}
	if out.SmoothTradeRate, err = parseDec("bot.smooth_trade_rate", c.Bot.SmoothTradeRate); err != nil {
		return bot.Config{}, err
	}
	var bounds arbitrage.TradeBounds
	if bounds.Min, err = parseDec("bot.min_trade_amount", c.Bot.MinTradeAmount); err != nil {
		return bot.Config{}, err
	}
	if bounds.Max, err = parseDec("bot.max_trade_amount", c.Bot.MaxTradeAmount); err != nil {
		return bot.Config{}, err
	}
	out.Bounds = bounds

	if err := out.Validate(); err != nil {
		return bot.Config{}, fmt.Errorf("bot: %w", err)
	}
	return out, nil
}

func (c *Config) LedgerConfig() (pool.LedgerConfig, error) {
	lp := c.LedgerPool
	central, err := arbitrage.ParseCoin(lp.CentralReserve)
	if err != nil {
		return pool.LedgerConfig{}, fmt.Errorf("ledger_pool.central_reserve: %w", err)
	}
	secondary, err := arbitrage.ParseCoin(lp.SecondaryReserve)
	if err != nil {
		return pool.LedgerConfig{}, fmt.Errorf("ledger_pool.secondary_reserve: %w", err)
	}
	weights := [2]dec.Int{dec.OneInt(), dec.OneInt()}
	for i, w := range []struct{ key, val string }{
		{"ledger_pool.central_weight", lp.CentralWeight},
		{"ledger_pool.secondary_weight", lp.SecondaryWeight},
	} {
		if w.val == "" {
			continue
		}
		if weights[i], err = dec.NewIntFromString(w.val); err != nil {
			return pool.LedgerConfig{}, fmt.Errorf("%s: %w", w.key, err)
		}
	}
	fee, err := parseDec("ledger_pool.swap_fee", lp.SwapFee)
	if err != nil {
		return pool.LedgerConfig{}, err
	}
	return pool.LedgerConfig{
		PoolID:           lp.PoolID,
		CentralReserve:   central,
		SecondaryReserve: secondary,
		CentralWeight:    weights[0],
		SecondaryWeight:  weights[1],
		SwapFee:          fee,
		Decimals:         *c.Bot.AmountDecimals,
	}, nil
}

// EVMConfig resolves tokens and, unless given explicitly, the pair and
// router addresses from the configured dex.
func (c *Config) EVMConfig() (pool.EVMConfig, error) {
	ep := c.EVMPool
	central, err := eth.LookupToken(ep.CentralToken, ep.CentralDecimals)
	if err != nil {
		return pool.EVMConfig{}, fmt.Errorf("evm_pool.central_token: %w", err)
	}
	secondary, err := eth.LookupToken(ep.SecondaryToken, ep.SecondaryDecimals)
	if err != nil {
		return pool.EVMConfig{}, fmt.Errorf("evm_pool.secondary_token: %w", err)
	}
	dex, err := eth.LookupDEX(ep.DEX)
	if err != nil {
		return pool.EVMConfig{}, fmt.Errorf("evm_pool.dex: %w", err)
	}

	pair := eth.ComputePairAddress(dex, central.Address, secondary.Address)
	if ep.Pair != "" {
		if !common.IsHexAddress(ep.Pair) {
			return pool.EVMConfig{}, fmt.Errorf("evm_pool.pair: invalid address %q", ep.Pair)
		}
		pair = common.HexToAddress(ep.Pair)
	}
	router := dex.Router
	if ep.Router != "" {
		if !common.IsHexAddress(ep.Router) {
			return pool.EVMConfig{}, fmt.Errorf("evm_pool.router: invalid address %q", ep.Router)
		}
		router = common.HexToAddress(ep.Router)
	}
	fee, err := parseDec("evm_pool.swap_fee", ep.SwapFee)
	if err != nil {
		return pool.EVMConfig{}, err
	}

	return pool.EVMConfig{
		Pair:           pair,
		Router:         router,
		Central:        central,
		Secondary:      secondary,
		SwapFee:        fee,
		AmountDecimals: *c.Bot.AmountDecimals,
		GasLimit:       ep.GasLimit,
		Deadline:       ep.Deadline,
		ReceiptTimeout: ep.ReceiptTimeout,
	}, nil
}

// Funding is the initial fund, in human units.
func (c *Config) Funding() (central, secondary dec.Dec, err error) {
	if central, err = parseDec("fund.central", c.Fund.Central); err != nil {
		return
	}
	if secondary, err = parseDec("fund.secondary", c.Fund.Secondary); err != nil {
		return
	}
	if central.IsNegative() || secondary.IsNegative() {
		err = fmt.Errorf("fund amounts must be non-negative")
	}
	return
}

func (c *Config) PrivateKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.EVMPool.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("evm_pool.private_key: %w", err)
	}
	return key, nil
}

func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info", "":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	}
	return 0, fmt.Errorf("log.level: unknown level %q", c.Log.Level)
}
