package wallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

func TestComputeLineIDDeterministic(t *testing.T) {
	issuer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	unit := common.HexToAddress("0x2222222222222222222222222222222222222222")

	a := ComputeLineID(issuer, 1767225600, unit)
	b := ComputeLineID(issuer, 1767225600, unit)
	assert.Equal(t, a, b, "same inputs must yield the same line id")
	assert.NotEqual(t, common.Hash{}, a)
}

func TestComputeLineIDDistinguishesFields(t *testing.T) {
	issuer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	otherIssuer := common.HexToAddress("0x3333333333333333333333333333333333333333")
	unit := common.HexToAddress("0x2222222222222222222222222222222222222222")
	otherUnit := common.HexToAddress("0x4444444444444444444444444444444444444444")

	base := ComputeLineID(issuer, 1767225600, unit)
	assert.NotEqual(t, base, ComputeLineID(otherIssuer, 1767225600, unit))
	assert.NotEqual(t, base, ComputeLineID(issuer, 1767225601, unit))
	assert.NotEqual(t, base, ComputeLineID(issuer, 1767225600, otherUnit))
}

func TestComputeLineIDPacking(t *testing.T) {
	issuer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	unit := common.HexToAddress("0x2222222222222222222222222222222222222222")

	// Packed encoding: 20-byte address, 32-byte big-endian uint256,
	// 20-byte address, no length prefixes.
	var maturity [32]byte
	maturity[30] = 0x01
	maturity[31] = 0x00
	want := crypto.Keccak256Hash(issuer.Bytes(), maturity[:], unit.Bytes())
	assert.Equal(t, want, ComputeLineID(issuer, 256, unit))
}

func TestComputeLineIDForSymbol(t *testing.T) {
	issuer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	unit := common.HexToAddress("0x2222222222222222222222222222222222222222")

	bySymbol := ComputeLineIDForSymbol(issuer, 1767225600, "USD")
	assert.NotEqual(t, ComputeLineID(issuer, 1767225600, unit), bySymbol)
	assert.Equal(t, bySymbol, ComputeLineIDForSymbol(issuer, 1767225600, "USD"))
	assert.NotEqual(t, bySymbol, ComputeLineIDForSymbol(issuer, 1767225600, "EUR"))
}
