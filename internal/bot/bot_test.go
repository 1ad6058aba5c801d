package bot

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pulkyeet/xchain-arb/internal/arbitrage"
	"github.com/pulkyeet/xchain-arb/internal/dec"
	"github.com/pulkyeet/xchain-arb/internal/fund"
	"github.com/pulkyeet/xchain-arb/internal/storage"
	"github.com/pulkyeet/xchain-arb/internal/timer"
)

type mockPool struct {
	mock.Mock
}

func (m *mockPool) GetSpotPrice(ctx context.Context, includeFee bool) (dec.Dec, error) {
	args := m.Called(ctx, includeFee)
	return args.Get(0).(dec.Dec), args.Error(1)
}

func (m *mockPool) GetPoolData(ctx context.Context) (arbitrage.PoolData, error) {
	args := m.Called(ctx)
	return args.Get(0).(arbitrage.PoolData), args.Error(1)
}

func (m *mockPool) BuyToken(ctx context.Context, outAmount, maxSpend dec.Int) (bool, error) {
	args := m.Called(ctx, outAmount, maxSpend)
	return args.Bool(0), args.Error(1)
}

func (m *mockPool) SellToken(ctx context.Context, inAmount, minReturn dec.Int) (bool, error) {
	args := m.Called(ctx, inAmount, minReturn)
	return args.Bool(0), args.Error(1)
}

func (m *mockPool) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type memJournal struct {
	mu     sync.Mutex
	cycles []storage.Cycle
	closed bool
}

func (j *memJournal) RecordCycle(_ context.Context, c storage.Cycle) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cycles = append(j.cycles, c)
	return nil
}

func (j *memJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

func d(s string) dec.Dec { return dec.MustNewDecFromStr(s) }

func intEq(v int64) interface{} {
	return mock.MatchedBy(func(i dec.Int) bool { return i.Equal(dec.NewInt(v)) })
}

func poolData(central, secondary string) arbitrage.PoolData {
	return arbitrage.PoolData{
		CentralAmount:   d(central),
		SecondaryAmount: d(secondary),
		CentralWeight:   d("0.5"),
		SecondaryWeight: d("0.5"),
		SwapFee:         d("0.003"),
	}
}

type harness struct {
	a, b    *mockPool
	purse   *fund.Purse
	timer   *timer.ManualTimer
	journal *memJournal
	logs    *bytes.Buffer
	bot     *Bot
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		a:       new(mockPool),
		b:       new(mockPool),
		purse:   fund.NewPurse(d("500"), d("200")),
		timer:   timer.NewManualTimer(1_000),
		journal: new(memJournal),
		logs:    new(bytes.Buffer),
	}
	central, err := h.purse.Withdraw(fund.Central, d("500"))
	require.NoError(t, err)
	secondary, err := h.purse.Withdraw(fund.Secondary, d("200"))
	require.NoError(t, err)
	f, err := fund.New(h.purse, central, secondary)
	require.NoError(t, err)

	h.a.On("Shutdown", mock.Anything).Return(nil)
	h.b.On("Shutdown", mock.Anything).Return(nil)

	h.bot, err = New(cfg, Deps{
		PoolA:   h.a,
		PoolB:   h.b,
		Fund:    f,
		Timer:   h.timer,
		Journal: h.journal,
		Logger:  log.NewLogger(log.JSONHandler(h.logs)),
	})
	require.NoError(t, err)
	return h
}

func (h *harness) prices(a, b string) {
	h.a.On("GetSpotPrice", mock.Anything, true).Return(d(a), nil)
	h.b.On("GetSpotPrice", mock.Anything, true).Return(d(b), nil)
}

// tradeSetup prices A above B so the bot buys on B and sells on A, with the
// reserves of the solver's reference case.
func (h *harness) tradeSetup() {
	h.prices("12.3", "3.35")
	h.b.On("GetPoolData", mock.Anything).Return(poolData("1000", "2000"), nil)
	h.a.On("GetPoolData", mock.Anything).Return(poolData("1200", "1800"), nil)
}

func (h *harness) run(t *testing.T, cycles int) {
	t.Helper()
	require.NoError(t, h.bot.Start(context.Background()))
	for i := 0; i < cycles; i++ {
		h.timer.Advance(h.bot.cfg.CheckInterval)
	}
}

func config(runs int) Config {
	cfg := DefaultConfig()
	cfg.MaxRunCount = runs
	return cfg
}

func TestEndToEndTrade(t *testing.T) {
	h := newHarness(t, config(1))
	h.tradeSetup()
	h.b.On("BuyToken", mock.Anything, intEq(133_702_950), intEq(72_214_967)).Return(true, nil).Once()
	h.a.On("SellToken", mock.Anything, intEq(133_702_950), intEq(82_309_643)).Return(true, nil).Once()

	h.run(t, 1)

	assert.Equal(t, Terminated, h.bot.State())
	h.a.AssertExpectations(t)
	h.b.AssertExpectations(t)

	require.Len(t, h.journal.cycles, 1)
	c := h.journal.cycles[0]
	assert.Equal(t, storage.DecisionExecuted, c.Decision)
	assert.Equal(t, "B", c.BuyVenue)
	assert.Equal(t, "2.671641791044776119", c.DiffRate)
	assert.Equal(t, "10.867570533027700903", c.Profit)
	assert.Equal(t, "133702950", c.SecondaryAmount)
	assert.Equal(t, "72214967", c.MaxSpend)
	assert.Equal(t, "82309643", c.MinReturn)
	assert.True(t, c.BuyOK)
	assert.True(t, c.SellOK)
	assert.Equal(t, int64(1_010), c.Timestamp)
	assert.NotEmpty(t, c.PostPriceA)

	assert.True(t, h.journal.closed)
	assert.Equal(t, "500.000000000000000000", h.purse.Balance(fund.Central).String())
	assert.Equal(t, "200.000000000000000000", h.purse.Balance(fund.Secondary).String())
	assert.Contains(t, h.logs.String(), "trade executed")
}

func TestBelowThresholdNeverSolvesOrTrades(t *testing.T) {
	h := newHarness(t, config(3))
	h.prices("3.350", "3.351")

	h.run(t, 3)

	h.a.AssertNotCalled(t, "GetPoolData", mock.Anything)
	h.b.AssertNotCalled(t, "GetPoolData", mock.Anything)
	for _, p := range []*mockPool{h.a, h.b} {
		p.AssertNotCalled(t, "BuyToken", mock.Anything, mock.Anything, mock.Anything)
		p.AssertNotCalled(t, "SellToken", mock.Anything, mock.Anything, mock.Anything)
	}
	require.Len(t, h.journal.cycles, 3)
	for _, c := range h.journal.cycles {
		assert.Equal(t, storage.DecisionNoTradeThreshold, c.Decision)
	}
}

func TestRunsExactlyMaxRunCount(t *testing.T) {
	h := newHarness(t, config(4))
	h.prices("3.350", "3.351")

	require.NoError(t, h.bot.Start(context.Background()))
	fired := 0
	for i := 0; i < 10; i++ {
		fired += h.timer.Advance(10)
	}

	assert.Equal(t, 4, fired)
	assert.Len(t, h.journal.cycles, 4)
	assert.Equal(t, 0, h.timer.Pending())
	select {
	case <-h.bot.Done():
	default:
		t.Fatal("bot did not terminate")
	}
	h.a.AssertNumberOfCalls(t, "Shutdown", 1)
	h.b.AssertNumberOfCalls(t, "Shutdown", 1)
}

func TestPartialFailureIsDegradedNotFatal(t *testing.T) {
	h := newHarness(t, config(2))
	h.tradeSetup()
	h.b.On("BuyToken", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	h.a.On("SellToken", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	h.run(t, 2)

	require.Len(t, h.journal.cycles, 2)
	for _, c := range h.journal.cycles {
		assert.Equal(t, storage.DecisionExecuted, c.Decision)
		assert.False(t, c.BuyOK)
		assert.True(t, c.SellOK)
	}
	assert.Contains(t, h.logs.String(), "degraded outcome")
	assert.Equal(t, Terminated, h.bot.State())
}

func TestTransportErrorAbortsOnlyTheCycle(t *testing.T) {
	h := newHarness(t, config(2))
	h.a.On("GetSpotPrice", mock.Anything, true).Return(dec.Dec{}, errors.New("rpc unavailable")).Once()
	h.prices("3.350", "3.351")

	h.run(t, 2)

	require.Len(t, h.journal.cycles, 2)
	assert.Equal(t, storage.DecisionAborted, h.journal.cycles[0].Decision)
	assert.Contains(t, h.journal.cycles[0].Error, "rpc unavailable")
	assert.Equal(t, storage.DecisionNoTradeThreshold, h.journal.cycles[1].Decision)
	assert.Contains(t, h.logs.String(), "cycle aborted")
}

func TestLegTransportErrorKeepsOtherLegResult(t *testing.T) {
	h := newHarness(t, config(1))
	h.tradeSetup()
	h.b.On("BuyToken", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("receipt timeout"))
	h.a.On("SellToken", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	h.run(t, 1)

	require.Len(t, h.journal.cycles, 1)
	c := h.journal.cycles[0]
	assert.Equal(t, storage.DecisionAborted, c.Decision)
	assert.True(t, c.SellOK)
	assert.Contains(t, c.Error, "buy on B")
}

func TestInvariantErrorShutsDown(t *testing.T) {
	h := newHarness(t, config(5))
	h.tradeSetup()
	h.b.On("BuyToken", mock.Anything, mock.Anything, mock.Anything).
		Return(false, &arbitrage.InvariantError{Check: "spot price can't be decreased after swap"})
	h.a.On("SellToken", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	h.run(t, 5)

	assert.Equal(t, Terminated, h.bot.State())
	assert.Len(t, h.journal.cycles, 1)
	assert.Equal(t, 0, h.timer.Pending())
	h.a.AssertNumberOfCalls(t, "Shutdown", 1)
	assert.Contains(t, h.logs.String(), "pricing invariant violated")
}

func TestNoSolutionAndBelowMinProfit(t *testing.T) {
	h := newHarness(t, config(1))
	h.prices("12.3", "3.35")
	h.a.On("GetPoolData", mock.Anything).Return(poolData("1000", "2000"), nil)
	h.b.On("GetPoolData", mock.Anything).Return(poolData("1000", "2000"), nil)
	h.run(t, 1)
	require.Len(t, h.journal.cycles, 1)
	assert.Equal(t, storage.DecisionNoSolution, h.journal.cycles[0].Decision)

	cfg := config(1)
	cfg.MinProfitThreshold = d("20")
	h = newHarness(t, cfg)
	h.tradeSetup()
	h.run(t, 1)
	require.Len(t, h.journal.cycles, 1)
	assert.Equal(t, storage.DecisionBelowMinProfit, h.journal.cycles[0].Decision)
	assert.Equal(t, "10.867570533027700903", h.journal.cycles[0].Profit)

	for _, p := range []*mockPool{h.a, h.b} {
		p.AssertNotCalled(t, "BuyToken", mock.Anything, mock.Anything, mock.Anything)
		p.AssertNotCalled(t, "SellToken", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestDryRunStopsAfterOneCheck(t *testing.T) {
	cfg := config(10)
	cfg.DryRun = true
	h := newHarness(t, cfg)
	h.tradeSetup()

	h.run(t, 3)

	assert.Equal(t, Terminated, h.bot.State())
	require.Len(t, h.journal.cycles, 1)
	assert.Equal(t, storage.DecisionDryRun, h.journal.cycles[0].Decision)
	assert.Equal(t, "133702950", h.journal.cycles[0].SecondaryAmount)
	h.b.AssertNotCalled(t, "BuyToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestContextCancelShutsDown(t *testing.T) {
	h := newHarness(t, config(10))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.bot.Start(ctx))
	cancel()

	wctx, wcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer wcancel()
	require.NoError(t, h.bot.Wait(wctx))
	assert.Equal(t, Terminated, h.bot.State())
	assert.Error(t, h.bot.Start(context.Background()))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"interval":   func(c *Config) { c.CheckInterval = 0 },
		"runs":       func(c *Config) { c.MaxRunCount = 0 },
		"threshold":  func(c *Config) { c.PriceDiffThreshold = d("-0.1") },
		"smooth":     func(c *Config) { c.SmoothTradeRate = d("1") },
		"nil profit": func(c *Config) { c.MinProfitThreshold = dec.Dec{} },
		"decimals":   func(c *Config) { c.AmountDecimals = 19 },
		"bounds":     func(c *Config) { c.Bounds.Min = d("2000") },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "trade_proposed", TradeProposed.String())
	assert.Equal(t, "unknown", State(42).String())
}
