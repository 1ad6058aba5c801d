package eth

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePairAddress(t *testing.T) {
	uni, err := LookupDEX("uniswap")
	require.NoError(t, err)
	sushi, err := LookupDEX("SushiSwap")
	require.NoError(t, err)

	assert.Equal(t,
		common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
		ComputePairAddress(uni, WETHAddress, USDCAddress))
	assert.Equal(t,
		common.HexToAddress("0x397FF1542f962076d0BFE58eA045FfA2d347ACa0"),
		ComputePairAddress(sushi, USDCAddress, WETHAddress))
	assert.Equal(t,
		ComputePairAddress(uni, WETHAddress, USDCAddress),
		ComputePairAddress(uni, USDCAddress, WETHAddress))
}

func TestLookupToken(t *testing.T) {
	info, err := LookupToken("usdc", 0)
	require.NoError(t, err)
	assert.Equal(t, USDCDecimals, info.Decimals)

	addr := "0x1111111111111111111111111111111111111111"
	info, err = LookupToken(addr, 9)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(addr), info.Address)
	assert.Equal(t, 9, info.Decimals)

	_, err = LookupToken(addr, 0)
	assert.Error(t, err)
	_, err = LookupToken("NOPE", 18)
	assert.Error(t, err)
	_, err = LookupDEX("nope")
	assert.Error(t, err)
}
