package plan

import (
	"math/big"

	"github.com/roach88/omniwire/internal/config"
)

// QuoteULNFee returns the messaging fee for a payload of payloadSize bytes:
// relayer base fee plus per-byte fee plus oracle fee, with treasuryBps basis
// points of that sum added on top.
func QuoteULNFee(relayer config.RelayerFee, oracleFee, payloadSize, treasuryBps uint64) *big.Int {
	total := new(big.Int).SetUint64(relayer.FeePerByte)
	total.Mul(total, new(big.Int).SetUint64(payloadSize))
	total.Add(total, new(big.Int).SetUint64(relayer.BaseFee))
	total.Add(total, new(big.Int).SetUint64(oracleFee))

	treasury := new(big.Int).Mul(total, new(big.Int).SetUint64(treasuryBps))
	treasury.Quo(treasury, big.NewInt(10_000))
	return total.Add(total, treasury)
}
