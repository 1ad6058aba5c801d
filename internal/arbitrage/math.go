package arbitrage

import (
	"github.com/pulkyeet/xchain-arb/internal/dec"
)

var (
	oneDec = dec.OneDec()
	twoDec = dec.NewDec(2)
)

func requirePositive(name string, v dec.Dec) error {
	if !v.IsPositive() {
		return domainErrorf("%s must be positive, got %s", name, v)
	}
	return nil
}

func requireFee(fee dec.Dec) error {
	if fee.IsNegative() || fee.GTE(oneDec) {
		return domainErrorf("swap fee must be in [0, 1), got %s", fee)
	}
	return nil
}

func checkSide(balanceIn, weightIn, balanceOut, weightOut, fee dec.Dec) error {
	if err := requirePositive("balance in", balanceIn); err != nil {
		return err
	}
	if err := requirePositive("weight in", weightIn); err != nil {
		return err
	}
	if err := requirePositive("balance out", balanceOut); err != nil {
		return err
	}
	if err := requirePositive("weight out", weightOut); err != nil {
		return err
	}
	return requireFee(fee)
}

// CalcSpotPrice = (Bin/Win) / (Bout/Wout) * 1/(1-fee)
func CalcSpotPrice(balanceIn, weightIn, balanceOut, weightOut, swapFee dec.Dec) (dec.Dec, error) {
	if err := checkSide(balanceIn, weightIn, balanceOut, weightOut, swapFee); err != nil {
		return dec.Dec{}, err
	}
	number := balanceIn.Quo(weightIn)
	denom := balanceOut.Quo(weightOut)
	scale := oneDec.Quo(oneDec.Sub(swapFee))
	return number.Quo(denom).Mul(scale), nil
}

// CalcSlippageSlope = (1-fee)*(Win+Wout) - 2*Bin*Wout
func CalcSlippageSlope(balanceIn, weightIn, weightOut, swapFee dec.Dec) dec.Dec {
	return oneDec.Sub(swapFee).
		Mul(weightIn.Add(weightOut)).
		Sub(twoDec.Mul(balanceIn).Mul(weightOut))
}

// CalcOutGivenIn = Bout * (1 - (Bin / (Bin + Ain*(1-fee)))^(Win/Wout))
func CalcOutGivenIn(balanceIn, weightIn, balanceOut, weightOut, amountIn, swapFee dec.Dec) (dec.Dec, error) {
	if err := checkSide(balanceIn, weightIn, balanceOut, weightOut, swapFee); err != nil {
		return dec.Dec{}, err
	}
	if amountIn.IsNegative() {
		return dec.Dec{}, domainErrorf("amount in must not be negative, got %s", amountIn)
	}

	weightRatio := weightIn.Quo(weightOut)
	adjustedIn := amountIn.Mul(oneDec.Sub(swapFee))
	y := balanceIn.Quo(balanceIn.Add(adjustedIn))
	foo, err := Pow(y, weightRatio)
	if err != nil {
		return dec.Dec{}, err
	}
	return balanceOut.Mul(oneDec.Sub(foo)), nil
}

// CalcInGivenOut = Bin * ((Bout / (Bout - Aout))^(Wout/Win) - 1) / (1-fee)
func CalcInGivenOut(balanceIn, weightIn, balanceOut, weightOut, amountOut, swapFee dec.Dec) (dec.Dec, error) {
	if err := checkSide(balanceIn, weightIn, balanceOut, weightOut, swapFee); err != nil {
		return dec.Dec{}, err
	}
	if amountOut.IsNegative() || amountOut.GTE(balanceOut) {
		return dec.Dec{}, domainErrorf("amount out %s must be in [0, %s)", amountOut, balanceOut)
	}

	weightRatio := weightOut.Quo(weightIn)
	y := balanceOut.Quo(balanceOut.Sub(amountOut))
	foo, err := Pow(y, weightRatio)
	if err != nil {
		return dec.Dec{}, err
	}
	return balanceIn.Mul(foo.Sub(oneDec)).Quo(oneDec.Sub(swapFee)), nil
}

func checkShares(balance, weight, supply, totalWeight, fee dec.Dec) error {
	if err := requirePositive("token balance", balance); err != nil {
		return err
	}
	if err := requirePositive("token weight", weight); err != nil {
		return err
	}
	if err := requirePositive("pool supply", supply); err != nil {
		return err
	}
	if err := requirePositive("total weight", totalWeight); err != nil {
		return err
	}
	if weight.GT(totalWeight) {
		return domainErrorf("token weight %s exceeds total weight %s", weight, totalWeight)
	}
	return requireFee(fee)
}

// CalcPoolOutGivenSingleIn is the share amount minted for a single-asset
// deposit. Only the part of the deposit that is implicitly swapped pays the fee.
func CalcPoolOutGivenSingleIn(balanceIn, weightIn, poolSupply, totalWeight, amountIn, swapFee dec.Dec) (dec.Dec, error) {
	if err := checkShares(balanceIn, weightIn, poolSupply, totalWeight, swapFee); err != nil {
		return dec.Dec{}, err
	}

	normalizedWeight := weightIn.Quo(totalWeight)
	zaz := oneDec.Sub(normalizedWeight).Mul(swapFee)
	amountInAfterFee := amountIn.Mul(oneDec.Sub(zaz))
	tokenInRatio := balanceIn.Add(amountInAfterFee).Quo(balanceIn)

	poolRatio, err := Pow(tokenInRatio, normalizedWeight)
	if err != nil {
		return dec.Dec{}, err
	}
	return poolRatio.Mul(poolSupply).Sub(poolSupply), nil
}

// CalcSingleInGivenPoolOut is the single-asset deposit needed to mint
// poolAmountOut shares, the inverse of CalcPoolOutGivenSingleIn.
func CalcSingleInGivenPoolOut(balanceIn, weightIn, poolSupply, totalWeight, poolAmountOut, swapFee dec.Dec) (dec.Dec, error) {
	if err := checkShares(balanceIn, weightIn, poolSupply, totalWeight, swapFee); err != nil {
		return dec.Dec{}, err
	}

	normalizedWeight := weightIn.Quo(totalWeight)
	poolRatio := poolSupply.Add(poolAmountOut).Quo(poolSupply)
	tokenInRatio, err := Pow(poolRatio, oneDec.Quo(normalizedWeight))
	if err != nil {
		return dec.Dec{}, err
	}
	amountInAfterFee := tokenInRatio.Mul(balanceIn).Sub(balanceIn)

	zar := oneDec.Sub(normalizedWeight).Mul(swapFee)
	return amountInAfterFee.Quo(oneDec.Sub(zar)), nil
}

// CalcSingleOutGivenPoolIn is the single asset paid out for burning
// poolAmountIn shares. There is no exit fee.
func CalcSingleOutGivenPoolIn(balanceOut, weightOut, poolSupply, totalWeight, poolAmountIn, swapFee dec.Dec) (dec.Dec, error) {
	if err := checkShares(balanceOut, weightOut, poolSupply, totalWeight, swapFee); err != nil {
		return dec.Dec{}, err
	}
	if poolAmountIn.GTE(poolSupply) {
		return dec.Dec{}, domainErrorf("pool amount in %s must be below supply %s", poolAmountIn, poolSupply)
	}

	normalizedWeight := weightOut.Quo(totalWeight)
	poolRatio := poolSupply.Sub(poolAmountIn).Quo(poolSupply)
	tokenOutRatio, err := Pow(poolRatio, oneDec.Quo(normalizedWeight))
	if err != nil {
		return dec.Dec{}, err
	}
	amountOutBeforeFee := balanceOut.Sub(tokenOutRatio.Mul(balanceOut))

	zaz := oneDec.Sub(normalizedWeight).Mul(swapFee)
	return amountOutBeforeFee.Mul(oneDec.Sub(zaz)), nil
}

// CalcPoolInGivenSingleOut is the share amount to burn for a single-asset
// withdrawal of amountOut.
func CalcPoolInGivenSingleOut(balanceOut, weightOut, poolSupply, totalWeight, amountOut, swapFee dec.Dec) (dec.Dec, error) {
	if err := checkShares(balanceOut, weightOut, poolSupply, totalWeight, swapFee); err != nil {
		return dec.Dec{}, err
	}

	normalizedWeight := weightOut.Quo(totalWeight)
	zar := oneDec.Sub(normalizedWeight).Mul(swapFee)
	amountOutBeforeFee := amountOut.Quo(oneDec.Sub(zar))
	if amountOutBeforeFee.GTE(balanceOut) {
		return dec.Dec{}, domainErrorf("amount out %s drains balance %s", amountOut, balanceOut)
	}
	tokenOutRatio := balanceOut.Sub(amountOutBeforeFee).Quo(balanceOut)

	poolRatio, err := Pow(tokenOutRatio, normalizedWeight)
	if err != nil {
		return dec.Dec{}, err
	}
	return poolSupply.Sub(poolRatio.Mul(poolSupply)), nil
}
