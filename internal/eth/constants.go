package eth

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Token addresses, Ethereum mainnet
var (
	WETHAddress = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	USDCAddress = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	USDTAddress = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	DAIAddress  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	WBTCAddress = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

const (
	WETHDecimals = 18
	USDCDecimals = 6
	USDTDecimals = 6
	DAIDecimals  = 18
	WBTCDecimals = 8
)

type TokenInfo struct {
	Address  common.Address
	Decimals int
	Symbol   string
}

var KnownTokens = map[string]TokenInfo{
	"WETH": {WETHAddress, WETHDecimals, "WETH"},
	"USDC": {USDCAddress, USDCDecimals, "USDC"},
	"USDT": {USDTAddress, USDTDecimals, "USDT"},
	"DAI":  {DAIAddress, DAIDecimals, "DAI"},
	"WBTC": {WBTCAddress, WBTCDecimals, "WBTC"},
}

// LookupToken resolves a known symbol, or a hex address with explicit
// decimals.
func LookupToken(symbolOrAddress string, decimals int) (TokenInfo, error) {
	if info, ok := KnownTokens[strings.ToUpper(symbolOrAddress)]; ok {
		return info, nil
	}
	if !common.IsHexAddress(symbolOrAddress) {
		return TokenInfo{}, fmt.Errorf("unknown token %q", symbolOrAddress)
	}
	if decimals <= 0 {
		return TokenInfo{}, fmt.Errorf("token %s needs explicit decimals", symbolOrAddress)
	}
	addr := common.HexToAddress(symbolOrAddress)
	return TokenInfo{Address: addr, Decimals: decimals, Symbol: addr.Hex()}, nil
}

// DEXConfig: factory + init code hash is all you need to derive any pair
// address. Router is where swaps are sent.
type DEXConfig struct {
	Name         string
	Factory      common.Address
	Router       common.Address
	InitCodeHash [32]byte
}

// KnownDEXes are the Uniswap V2 forks on Ethereum mainnet.
var KnownDEXes = []DEXConfig{
	{
		Name:         "uniswap",
		Factory:      common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		Router:       common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
		InitCodeHash: hexToBytes32("96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"),
	},
	{
		Name:         "sushiswap",
		Factory:      common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac"),
		Router:       common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"),
		InitCodeHash: hexToBytes32("e18a34eb0e04b04f7a0ac29a6e80748dca96319b42c54d679cb821dca90c6303"),
	},
	{
		Name:         "shibaswap",
		Factory:      common.HexToAddress("0x115934131916C8b277DD010Ee02de363c09d037c"),
		Router:       common.HexToAddress("0x03f7724180AA6b939894B5Ca4314783B0b36b329"),
		InitCodeHash: hexToBytes32("65d1a3b1e46c6e4f1be1ad5f99ef14dc488ae0549dc97db9b30afe2241ce1c7a"),
	},
}

func LookupDEX(name string) (DEXConfig, error) {
	for _, d := range KnownDEXes {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return DEXConfig{}, fmt.Errorf("unknown dex %q", name)
}

func hexToBytes32(s string) [32]byte {
	var b [32]byte
	copy(b[:], common.FromHex(s))
	return b
}

// SortTokens orders two tokens the way the factory does.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// ComputePairAddress derives the CREATE2 address of the a/b pair.
func ComputePairAddress(dex DEXConfig, a, b common.Address) common.Address {
	token0, token1 := SortTokens(a, b)
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(dex.Factory, salt, dex.InitCodeHash[:])
}

const UniswapV2PairABI = `[
	{
		"constant": true,
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint112", "name": "reserve0", "type": "uint112"},
			{"internalType": "uint112", "name": "reserve1", "type": "uint112"},
			{"internalType": "uint32",  "name": "blockTimestampLast", "type": "uint32"}
		],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "token0",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`

const UniswapV2RouterABI = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"}
		],
		"name": "swapExactTokensForTokens",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountOut", "type": "uint256"},
			{"internalType": "uint256", "name": "amountInMax", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"}
		],
		"name": "swapTokensForExactTokens",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`
