package pool

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pulkyeet/xchain-arb/internal/arbitrage"
	"github.com/pulkyeet/xchain-arb/internal/dec"
	"github.com/pulkyeet/xchain-arb/internal/eth"
)

// ChainClient is the slice of an RPC client the EVM venue needs.
// *eth.Client satisfies it.
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Close()
}

var _ ChainClient = (*eth.Client)(nil)

type EVMConfig struct {
	Pair           common.Address
	Router         common.Address
	Central        eth.TokenInfo
	Secondary      eth.TokenInfo
	SwapFee        dec.Dec
	AmountDecimals int

	GasLimit       uint64
	Deadline       time.Duration
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	CacheSize      int
}

func (c *EVMConfig) setDefaults() {
	if c.GasLimit == 0 {
		c.GasLimit = 250_000
	}
	if c.Deadline == 0 {
		c.Deadline = 2 * time.Minute
	}
	if c.ReceiptTimeout == 0 {
		c.ReceiptTimeout = 2 * time.Minute
	}
	if c.PollInterval == 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.CacheSize == 0 {
		c.CacheSize = 64
	}
	if c.SwapFee.IsNil() {
		c.SwapFee = dec.NewDecWithPrec(3, 3)
	}
}

// EVMPool is the Chain B venue: a Uniswap V2 pair traded through its router.
// The account is expected to have approved the router for both tokens.
type EVMPool struct {
	client    ChainClient
	cfg       EVMConfig
	key       *ecdsa.PrivateKey
	from      common.Address
	pairABI   abi.ABI
	routerABI abi.ABI
	snapshots *lru.Cache[uint64, arbitrage.PoolData]

	// serializes nonce assignment and caches chain facts
	mu              sync.Mutex
	chainID         *big.Int
	centralIsToken0 *bool
	closed          bool

	now func() time.Time
	log log.Logger
}

func NewEVMPool(client ChainClient, key *ecdsa.PrivateKey, cfg EVMConfig) (*EVMPool, error) {
	if client == nil || key == nil {
		return nil, errors.New("evm pool needs a client and a signing key")
	}
	if cfg.Central.Address == cfg.Secondary.Address {
		return nil, fmt.Errorf("central and secondary token are both %s", cfg.Central.Address.Hex())
	}
	cfg.setDefaults()

	pairABI, err := abi.JSON(strings.NewReader(eth.UniswapV2PairABI))
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	routerABI, err := abi.JSON(strings.NewReader(eth.UniswapV2RouterABI))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	cache, err := lru.New[uint64, arbitrage.PoolData](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("snapshot cache: %w", err)
	}

	return &EVMPool{
		client:    client,
		cfg:       cfg,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		pairABI:   pairABI,
		routerABI: routerABI,
		snapshots: cache,
		now:       time.Now,
		log:       log.Root().With("component", "pool", "venue", "evm", "pair", cfg.Pair.Hex()),
	}, nil
}

// Account is the address trades are sent from.
func (p *EVMPool) Account() common.Address { return p.from }

func (p *EVMPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *EVMPool) call(ctx context.Context, method string, block *big.Int) ([]interface{}, error) {
	data, err := p.pairABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	result, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &p.cfg.Pair, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := p.pairABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func (p *EVMPool) tokenOrder(ctx context.Context, block *big.Int) (bool, error) {
	p.mu.Lock()
	known := p.centralIsToken0
	p.mu.Unlock()
	if known != nil {
		return *known, nil
	}

	out, err := p.call(ctx, "token0", block)
	if err != nil {
		return false, err
	}
	token0, ok := out[0].(common.Address)
	if !ok {
		return false, fmt.Errorf("token0 type assertion failed")
	}
	var isToken0 bool
	switch token0 {
	case p.cfg.Central.Address:
		isToken0 = true
	case p.cfg.Secondary.Address:
	default:
		return false, fmt.Errorf("pair %s does not hold %s", p.cfg.Pair.Hex(), p.cfg.Central.Symbol)
	}

	p.mu.Lock()
	p.centralIsToken0 = &isToken0
	p.mu.Unlock()
	return isToken0, nil
}

// GetPoolData reads the pair's reserves at the latest block. Snapshots are
// cached per block.
func (p *EVMPool) GetPoolData(ctx context.Context) (arbitrage.PoolData, error) {
	if p.isClosed() {
		return arbitrage.PoolData{}, ErrPoolClosed
	}
	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		return arbitrage.PoolData{}, fmt.Errorf("block number: %w", err)
	}
	if data, ok := p.snapshots.Get(head); ok {
		return data, nil
	}

	block := new(big.Int).SetUint64(head)
	centralIsToken0, err := p.tokenOrder(ctx, block)
	if err != nil {
		return arbitrage.PoolData{}, err
	}
	out, err := p.call(ctx, "getReserves", block)
	if err != nil {
		return arbitrage.PoolData{}, err
	}
	if len(out) < 2 {
		return arbitrage.PoolData{}, fmt.Errorf("unexpected unpack result length: %d", len(out))
	}
	reserve0, ok0 := out[0].(*big.Int)
	reserve1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return arbitrage.PoolData{}, fmt.Errorf("reserve type assertion failed")
	}
	centralRaw, secondaryRaw := reserve0, reserve1
	if !centralIsToken0 {
		centralRaw, secondaryRaw = reserve1, reserve0
	}

	central, err := reserveDec(centralRaw, p.cfg.Central.Decimals)
	if err != nil {
		return arbitrage.PoolData{}, err
	}
	secondary, err := reserveDec(secondaryRaw, p.cfg.Secondary.Decimals)
	if err != nil {
		return arbitrage.PoolData{}, err
	}
	half := dec.NewDecWithPrec(5, 1)
	data := arbitrage.PoolData{
		CentralAmount:   central,
		SecondaryAmount: secondary,
		CentralWeight:   half,
		SecondaryWeight: half,
		SwapFee:         p.cfg.SwapFee,
	}
	p.snapshots.Add(head, data)
	p.log.Debug("reserves", "block", head, "central", central, "secondary", secondary)
	return data, nil
}

func (p *EVMPool) GetSpotPrice(ctx context.Context, includeFee bool) (dec.Dec, error) {
	data, err := p.GetPoolData(ctx)
	if err != nil {
		return dec.Dec{}, err
	}
	return data.SpotPrice(includeFee)
}

func (p *EVMPool) BuyToken(ctx context.Context, outAmount, maxSpend dec.Int) (bool, error) {
	out, err := tokenAmount(outAmount, p.cfg.AmountDecimals, p.cfg.Secondary.Decimals)
	if err != nil {
		return false, err
	}
	inMax, err := tokenAmount(maxSpend, p.cfg.AmountDecimals, p.cfg.Central.Decimals)
	if err != nil {
		return false, err
	}
	path := []common.Address{p.cfg.Central.Address, p.cfg.Secondary.Address}
	return p.swap(ctx, "buy", "swapTokensForExactTokens", out, inMax, path)
}

func (p *EVMPool) SellToken(ctx context.Context, inAmount, minReturn dec.Int) (bool, error) {
	in, err := tokenAmount(inAmount, p.cfg.AmountDecimals, p.cfg.Secondary.Decimals)
	if err != nil {
		return false, err
	}
	outMin, err := tokenAmount(minReturn, p.cfg.AmountDecimals, p.cfg.Central.Decimals)
	if err != nil {
		return false, err
	}
	path := []common.Address{p.cfg.Secondary.Address, p.cfg.Central.Address}
	return p.swap(ctx, "sell", "swapExactTokensForTokens", in, outMin, path)
}

func (p *EVMPool) swap(ctx context.Context, side, method string, amount, limit *big.Int, path []common.Address) (bool, error) {
	if p.isClosed() {
		return false, ErrPoolClosed
	}
	deadline := big.NewInt(p.now().Add(p.cfg.Deadline).Unix())
	data, err := p.routerABI.Pack(method, amount, limit, path, p.from, deadline)
	if err != nil {
		return false, fmt.Errorf("pack %s: %w", method, err)
	}

	if ok, err := p.preflight(ctx, side, data); !ok || err != nil {
		return false, err
	}

	hash, err := p.send(ctx, data)
	if err != nil {
		return false, err
	}
	p.log.Info("swap sent", "side", side, "tx", hash.Hex(), "amount", amount, "limit", limit)

	receipt, err := p.waitMined(ctx, hash)
	if err != nil {
		return false, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		p.log.Warn("swap reverted", "side", side, "tx", hash.Hex(), "block", receipt.BlockNumber)
		return false, nil
	}
	p.log.Info("swap mined", "side", side, "tx", hash.Hex(), "gasUsed", receipt.GasUsed)
	return true, nil
}

// preflight runs the swap as an eth_call against the pending head so a
// leg that would revert (stale reserves, slippage, missing allowance)
// is rejected without paying gas.
func (p *EVMPool) preflight(ctx context.Context, side string, data []byte) (bool, error) {
	msg := ethereum.CallMsg{From: p.from, To: &p.cfg.Router, Gas: p.cfg.GasLimit, Data: data}
	if _, err := p.client.CallContract(ctx, msg, nil); err != nil {
		var revert rpc.DataError
		if errors.As(err, &revert) {
			p.log.Warn("swap would revert", "side", side, "reason", err, "data", revert.ErrorData())
			return false, nil
		}
		return false, fmt.Errorf("simulate %s: %w", side, err)
	}
	return true, nil
}

func (p *EVMPool) send(ctx context.Context, data []byte) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return common.Hash{}, ErrPoolClosed
	}

	if p.chainID == nil {
		id, err := p.client.ChainID(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("chain id: %w", err)
		}
		p.chainID = id
	}
	nonce, err := p.client.PendingNonceAt(ctx, p.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &p.cfg.Router,
		Value:    new(big.Int),
		Gas:      p.cfg.GasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := p.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send: %w", err)
	}
	return signed.Hash(), nil
}

func (p *EVMPool) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := p.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *EVMPool) Shutdown(_ context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.snapshots.Purge()
	p.client.Close()
	p.log.Info("evm pool shut down")
	return nil
}
