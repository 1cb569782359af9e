package walletstatedb

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defterhane/defter-wallet/internal/wallet"
)

func initTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitSQLiteDB(filepath.Join(t.TempDir(), "wallet_state.db")))
}

func TestLineRoundTrip(t *testing.T) {
	initTestDB(t)

	line := wallet.Line{
		LineID:       common.HexToHash("0xaa"),
		Issuer:       common.HexToAddress("0x11"),
		MaturityDate: 1767225600,
		Unit:         common.HexToAddress("0x22"),
		Status:       wallet.StatusOpen,
	}
	require.NoError(t, SaveLine(line))
	require.NoError(t, SaveLine(line), "re-saving the same line id must not fail")

	lines, err := GetLines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, line, lines[0])
}

func TestHistoryEntriesDedupeOnDeliveryKey(t *testing.T) {
	initTestDB(t)

	lineID := common.HexToHash("0xaa")
	entry := wallet.SentEntry{
		Date:     time.Now().UTC().Truncate(time.Second),
		Amount:   big.NewInt(100),
		Receiver: common.HexToAddress("0x33"),
		TxHash:   common.HexToHash("0xbb"),
		LogIndex: 2,
	}
	require.NoError(t, SaveSentEntry(lineID, entry))
	require.NoError(t, SaveSentEntry(lineID, entry))

	got, err := GetSentEntries(lineID)
	require.NoError(t, err)
	require.Len(t, got, 1, "one delivery, one row")
	assert.Zero(t, got[0].Amount.Cmp(entry.Amount))
	assert.Equal(t, entry.Receiver, got[0].Receiver)
}

func TestPendingEntryUpdateFlipsValidated(t *testing.T) {
	initTestDB(t)

	lineID := common.HexToHash("0xaa")
	entry := &wallet.PendingEntry{
		Amount:   big.NewInt(50),
		Receiver: common.HexToAddress("0x33"),
		TxHash:   common.HexToHash("0xbb"),
		TxType:   wallet.TxTransfer,
	}
	require.NoError(t, SavePendingEntry(lineID, entry))

	entry.Validated = true
	require.NoError(t, SavePendingEntry(lineID, entry))

	got, err := GetPendingEntries(lineID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Validated)
	assert.Equal(t, wallet.TxTransfer, got[0].TxType)
}

func TestReplayCheckpoint(t *testing.T) {
	initTestDB(t)

	height, err := GetLastReplayedBlock()
	require.NoError(t, err)
	assert.Zero(t, height, "fresh wallet starts from genesis")

	require.NoError(t, SetLastReplayedBlock(1234))
	require.NoError(t, SetLastReplayedBlock(5678))

	height, err = GetLastReplayedBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(5678), height)
}
