package adapterparams

import (
	"fmt"
	"math/big"
)

// PriceRatioDenominator scales ExecutorFee.PriceRatio.
const PriceRatioDenominator = 10_000_000_000

// GasLimitSafetyBps is the headroom added to measured gas, in basis points.
const GasLimitSafetyBps = 2000

// ExecutorFee is an executor's fee schedule toward one remote chain.
type ExecutorFee struct {
	AirdropAmtCap uint64
	PriceRatio    uint64
	GasPrice      uint64
}

// QuoteExecutorFee returns ((gas * gasPrice + airdrop) * priceRatio) / 1e10
// for the encoded params.
func QuoteExecutorFee(params []byte, fee ExecutorFee) (*big.Int, error) {
	p, err := Decode(params)
	if err != nil {
		return nil, err
	}
	if p.Amount > fee.AirdropAmtCap {
		return nil, fmt.Errorf("airdrop amount %d exceeds cap %d", p.Amount, fee.AirdropAmtCap)
	}
	total := new(big.Int).SetUint64(p.GasLimit)
	total.Mul(total, new(big.Int).SetUint64(fee.GasPrice))
	total.Add(total, new(big.Int).SetUint64(p.Amount))
	total.Mul(total, new(big.Int).SetUint64(fee.PriceRatio))
	return total.Quo(total, big.NewInt(PriceRatioDenominator)), nil
}

// ApplyGasLimitSafety adds GasLimitSafetyBps of headroom to gas.
func ApplyGasLimitSafety(gas uint64) *big.Int {
	out := new(big.Int).SetUint64(gas)
	out.Mul(out, big.NewInt(10_000+GasLimitSafetyBps))
	return out.Quo(out, big.NewInt(10_000))
}
