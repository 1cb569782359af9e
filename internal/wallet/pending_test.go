package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testLineID = common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testTxHash = common.HexToHash("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testPeer   = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

func TestPendingLedgerRecordAndLookup(t *testing.T) {
	ledger := NewPendingLedger()
	assert.Empty(t, ledger.Lookup(testLineID))
	assert.Zero(t, ledger.Size())

	ledger.Record(testLineID, &PendingEntry{
		Amount:   big.NewInt(100),
		Receiver: testPeer,
		TxHash:   testTxHash,
		TxType:   TxIssue,
	})
	ledger.Record(testLineID, &PendingEntry{
		Amount:   big.NewInt(40),
		Receiver: testPeer,
		TxHash:   testTxHash,
		TxType:   TxTransfer,
	})

	entries := ledger.Lookup(testLineID)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, ledger.Size())
	assert.False(t, entries[0].Validated)
	assert.Equal(t, TxIssue, entries[0].TxType)
	assert.Equal(t, TxTransfer, entries[1].TxType)
}

func TestPendingLedgerMatchValidates(t *testing.T) {
	ledger := NewPendingLedger()
	ledger.Record(testLineID, &PendingEntry{
		Amount:   big.NewInt(100),
		Receiver: testPeer,
		TxHash:   testTxHash,
		TxType:   TxTransfer,
	})
	ledger.Record(testLineID, &PendingEntry{
		Amount:   big.NewInt(100),
		Receiver: testPeer,
		TxHash:   common.HexToHash("0xcc"),
		TxType:   TxTransfer,
	})

	matched := ledger.match(testLineID, big.NewInt(100), testPeer, testTxHash)
	assert.Equal(t, 1, matched, "only the entry with the matching tx hash validates")

	entries := ledger.Lookup(testLineID)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Validated)
	assert.False(t, entries[1].Validated)
}

func TestPendingLedgerMatchIsIdempotent(t *testing.T) {
	ledger := NewPendingLedger()
	ledger.Record(testLineID, &PendingEntry{
		Amount:   big.NewInt(100),
		Receiver: testPeer,
		TxHash:   testTxHash,
		TxType:   TxTransfer,
	})

	require.Equal(t, 1, ledger.match(testLineID, big.NewInt(100), testPeer, testTxHash))
	// A second delivery of the same confirmation still counts the entry
	// but the flag stays set rather than toggling.
	assert.Equal(t, 1, ledger.match(testLineID, big.NewInt(100), testPeer, testTxHash))
	assert.True(t, ledger.Lookup(testLineID)[0].Validated)
}

func TestPendingLedgerMatchRequiresAllAttributes(t *testing.T) {
	ledger := NewPendingLedger()
	ledger.Record(testLineID, &PendingEntry{
		Amount:   big.NewInt(100),
		Receiver: testPeer,
		TxHash:   testTxHash,
		TxType:   TxTransfer,
	})

	otherPeer := common.HexToAddress("0x6666666666666666666666666666666666666666")
	assert.Zero(t, ledger.match(testLineID, big.NewInt(99), testPeer, testTxHash))
	assert.Zero(t, ledger.match(testLineID, big.NewInt(100), otherPeer, testTxHash))
	assert.Zero(t, ledger.match(testLineID, big.NewInt(100), testPeer, common.HexToHash("0xdd")))
	assert.Zero(t, ledger.match(common.HexToHash("0xee"), big.NewInt(100), testPeer, testTxHash))
	assert.False(t, ledger.Lookup(testLineID)[0].Validated)
}
