package pool

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/pulkyeet/xchain-arb/internal/dec"
)

// tokenAmount rescales an amount in agent base units to the token's own
// decimals. Precision finer than the token supports is truncated.
func tokenAmount(amount dec.Int, amountDecimals, tokenDecimals int) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, &TokenAmountError{Amount: amount.String(), Reason: "negative"}
	}
	v := decimal.NewFromBigInt(amount.BigInt(), int32(-amountDecimals)).Shift(int32(tokenDecimals))
	u, overflow := uint256.FromBig(v.Truncate(0).BigInt())
	if overflow {
		return nil, &TokenAmountError{Amount: amount.String(), Reason: "overflows uint256"}
	}
	return u.ToBig(), nil
}

// reserveDec turns a raw on-chain reserve into whole tokens.
func reserveDec(raw *big.Int, tokenDecimals int) (dec.Dec, error) {
	v := decimal.NewFromBigInt(raw, int32(-tokenDecimals)).Truncate(dec.Precision)
	return dec.NewDecFromStr(v.String())
}

type TokenAmountError struct {
	Amount string
	Reason string
}

func (e *TokenAmountError) Error() string {
	return "token amount " + e.Amount + ": " + e.Reason
}
