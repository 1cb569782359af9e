package wallet

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputeLineID derives the identifier of the line issued by issuer, falling
// due at maturityDate, denominated in the token at unit. It is the Keccak-256
// hash of the Solidity packed encoding (address || uint256 || address) and
// matches the contract's own derivation bit for bit.
func ComputeLineID(issuer common.Address, maturityDate uint64, unit common.Address) common.Hash {
	return crypto.Keccak256Hash(issuer.Bytes(), packUint256(maturityDate), unit.Bytes())
}

// ComputeLineIDForSymbol is the variant used by deployments that denominate
// lines in a currency symbol instead of a token address: the packed encoding
// is (address || uint256 || string bytes).
func ComputeLineIDForSymbol(issuer common.Address, maturityDate uint64, symbol string) common.Hash {
	return crypto.Keccak256Hash(issuer.Bytes(), packUint256(maturityDate), []byte(symbol))
}

func packUint256(v uint64) []byte {
	var buf [32]byte
	new(big.Int).SetUint64(v).FillBytes(buf[:])
	return buf[:]
}
