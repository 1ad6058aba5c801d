package pool

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulkyeet/xchain-arb/internal/dec"
	"github.com/pulkyeet/xchain-arb/internal/eth"
)

// fakeChain answers pair reads from fixed reserves and mines every
// transaction after a configurable number of receipt polls.
type fakeChain struct {
	mu       sync.Mutex
	pairABI  abi.ABI
	token0   common.Address
	reserve0 *big.Int
	reserve1 *big.Int
	head     uint64

	calls      int
	simErr     error
	sent       []*types.Transaction
	status     uint64
	pending    int
	receiptErr error
	closed     bool
}

func newFakeChain(t *testing.T) *fakeChain {
	t.Helper()
	pairABI, err := abi.JSON(strings.NewReader(eth.UniswapV2PairABI))
	require.NoError(t, err)
	usdc, _ := new(big.Int).SetString("2000000000000", 10)
	weth, _ := new(big.Int).SetString("1000000000000000000000", 10)
	return &fakeChain{
		pairABI:  pairABI,
		token0:   eth.USDCAddress,
		reserve0: usdc,
		reserve1: weth,
		head:     100,
		status:   types.ReceiptStatusSuccessful,
	}
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	switch {
	case bytes.Equal(msg.Data[:4], f.pairABI.Methods["getReserves"].ID):
		return f.pairABI.Methods["getReserves"].Outputs.Pack(f.reserve0, f.reserve1, uint32(0))
	case bytes.Equal(msg.Data[:4], f.pairABI.Methods["token0"].ID):
		return f.pairABI.Methods["token0"].Outputs.Pack(f.token0)
	}
	return nil, f.simErr
}

// revertError mimics the JSON-RPC error returned for a reverting eth_call.
type revertError struct{ data string }

func (e revertError) Error() string          { return "execution reverted" }
func (e revertError) ErrorCode() int         { return 3 }
func (e revertError) ErrorData() interface{} { return e.data }

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(30e9), nil
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.pending != 0 {
		if f.pending > 0 {
			f.pending--
		}
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: hash, Status: f.status, BlockNumber: big.NewInt(int64(f.head)), GasUsed: 120_000}, nil
}

func (f *fakeChain) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newEVM(t *testing.T, chain *fakeChain, central, secondary string) *EVMPool {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	p, err := NewEVMPool(chain, key, EVMConfig{
		Pair:           common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
		Router:         eth.KnownDEXes[0].Router,
		Central:        eth.KnownTokens[central],
		Secondary:      eth.KnownTokens[secondary],
		AmountDecimals: 6,
		PollInterval:   time.Millisecond,
	})
	require.NoError(t, err)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestEVMPoolData(t *testing.T) {
	chain := newFakeChain(t)
	p := newEVM(t, chain, "USDC", "WETH")
	ctx := context.Background()

	data, err := p.GetPoolData(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2000000.000000000000000000", data.CentralAmount.String())
	assert.Equal(t, "1000.000000000000000000", data.SecondaryAmount.String())
	assert.Equal(t, "0.003000000000000000", data.SwapFee.String())

	price, err := p.GetSpotPrice(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "2000.000000000000000000", price.String())
	withFee, err := p.GetSpotPrice(ctx, true)
	require.NoError(t, err)
	assert.True(t, withFee.GT(price))
}

func TestEVMPoolDataFollowsTokenOrder(t *testing.T) {
	chain := newFakeChain(t)
	p := newEVM(t, chain, "WETH", "USDC")

	price, err := p.GetSpotPrice(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "0.000500000000000000", price.String())
}

func TestEVMPoolDataRejectsForeignPair(t *testing.T) {
	chain := newFakeChain(t)
	chain.token0 = eth.DAIAddress
	p := newEVM(t, chain, "USDC", "WETH")

	_, err := p.GetPoolData(context.Background())
	assert.Error(t, err)
}

func TestEVMPoolDataCachedPerBlock(t *testing.T) {
	chain := newFakeChain(t)
	p := newEVM(t, chain, "USDC", "WETH")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.GetPoolData(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, chain.calls, "token0 and one getReserves")

	chain.mu.Lock()
	chain.head++
	chain.reserve0 = new(big.Int).Mul(chain.reserve0, big.NewInt(2))
	chain.mu.Unlock()

	data, err := p.GetPoolData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, chain.calls)
	assert.Equal(t, "4000000.000000000000000000", data.CentralAmount.String())
}

func decodeSwap(t *testing.T, tx *types.Transaction) (string, []interface{}) {
	t.Helper()
	routerABI, err := abi.JSON(strings.NewReader(eth.UniswapV2RouterABI))
	require.NoError(t, err)
	method, err := routerABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	return method.Name, args
}

func TestEVMBuyToken(t *testing.T) {
	chain := newFakeChain(t)
	chain.pending = 2
	p := newEVM(t, chain, "USDC", "WETH")

	ok, err := p.BuyToken(context.Background(), dec.NewInt(1_500_000), dec.NewInt(3_100_000_000))
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, chain.sent, 1)

	tx := chain.sent[0]
	assert.Equal(t, eth.KnownDEXes[0].Router, *tx.To())
	assert.Equal(t, uint64(250_000), tx.Gas())
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), tx)
	require.NoError(t, err)
	assert.Equal(t, p.Account(), sender)

	name, args := decodeSwap(t, tx)
	assert.Equal(t, "swapTokensForExactTokens", name)
	assert.Equal(t, "1500000000000000000", args[0].(*big.Int).String())
	assert.Equal(t, "3100000000", args[1].(*big.Int).String())
	assert.Equal(t, []common.Address{eth.USDCAddress, eth.WETHAddress}, args[2])
	assert.Equal(t, p.Account(), args[3])
	assert.Equal(t, fixedNow.Add(2*time.Minute).Unix(), args[4].(*big.Int).Int64())
}

func TestEVMSellToken(t *testing.T) {
	chain := newFakeChain(t)
	p := newEVM(t, chain, "USDC", "WETH")

	ok, err := p.SellToken(context.Background(), dec.NewInt(2_000_000), dec.NewInt(3_900_000_000))
	require.NoError(t, err)
	assert.True(t, ok)

	name, args := decodeSwap(t, chain.sent[0])
	assert.Equal(t, "swapExactTokensForTokens", name)
	assert.Equal(t, "2000000000000000000", args[0].(*big.Int).String())
	assert.Equal(t, "3900000000", args[1].(*big.Int).String())
	assert.Equal(t, []common.Address{eth.WETHAddress, eth.USDCAddress}, args[2])
}

func TestEVMRevertIsNotAnError(t *testing.T) {
	chain := newFakeChain(t)
	chain.status = types.ReceiptStatusFailed
	p := newEVM(t, chain, "USDC", "WETH")

	ok, err := p.SellToken(context.Background(), dec.NewInt(1), dec.NewInt(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEVMSimulatedRevertSkipsSend(t *testing.T) {
	chain := newFakeChain(t)
	chain.simErr = revertError{data: "0x08c379a0"}
	p := newEVM(t, chain, "USDC", "WETH")

	ok, err := p.BuyToken(context.Background(), dec.NewInt(1_500_000), dec.NewInt(1))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, chain.sent)

	chain.simErr = errors.New("dial tcp: connection refused")
	_, err = p.BuyToken(context.Background(), dec.NewInt(1_500_000), dec.NewInt(1))
	assert.ErrorContains(t, err, "simulate buy")
	assert.Empty(t, chain.sent)
}

func TestEVMTransportFailures(t *testing.T) {
	chain := newFakeChain(t)
	chain.receiptErr = errors.New("connection reset")
	p := newEVM(t, chain, "USDC", "WETH")

	_, err := p.BuyToken(context.Background(), dec.NewInt(1), dec.NewInt(1))
	assert.ErrorContains(t, err, "connection reset")

	chain.receiptErr = nil
	chain.pending = -1
	p.cfg.ReceiptTimeout = 20 * time.Millisecond
	_, err = p.BuyToken(context.Background(), dec.NewInt(1), dec.NewInt(1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEVMShutdown(t *testing.T) {
	chain := newFakeChain(t)
	p := newEVM(t, chain, "USDC", "WETH")
	ctx := context.Background()

	require.NoError(t, p.Shutdown(ctx))
	require.NoError(t, p.Shutdown(ctx))
	assert.True(t, chain.closed)

	_, err := p.GetPoolData(ctx)
	assert.ErrorIs(t, err, ErrPoolClosed)
	_, err = p.SellToken(ctx, dec.NewInt(1), dec.NewInt(1))
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestTokenAmount(t *testing.T) {
	v, err := tokenAmount(dec.NewInt(1_234_567), 6, 18)
	require.NoError(t, err)
	assert.Equal(t, "1234567000000000000", v.String())

	v, err = tokenAmount(dec.NewInt(1_234_567), 6, 2)
	require.NoError(t, err)
	assert.Equal(t, "123", v.String())

	_, err = tokenAmount(dec.NewInt(-1), 6, 6)
	var amountErr *TokenAmountError
	assert.ErrorAs(t, err, &amountErr)

	huge := dec.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 256))
	_, err = tokenAmount(huge, 0, 0)
	assert.ErrorAs(t, err, &amountErr)
}

func TestReserveDec(t *testing.T) {
	v, err := reserveDec(big.NewInt(1_234_567), 6)
	require.NoError(t, err)
	assert.Equal(t, "1.234567000000000000", v.String())

	v, err = reserveDec(big.NewInt(1), 30)
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}
