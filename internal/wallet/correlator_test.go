package wallet

import (
	"math/big"
	"testing"

	"github.com/defterhane/defter-wallet/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	peerA    = common.HexToAddress("0x2000000000000000000000000000000000000002")
	peerB    = common.HexToAddress("0x3000000000000000000000000000000000000003")
	testUnit = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

func newTestCorrelator(dropDuplicates bool) (*Correlator, *PendingLedger, *HistoryStore) {
	pending := NewPendingLedger()
	history := NewHistoryStore()
	return NewCorrelator(owner, pending, history, dropDuplicates), pending, history
}

func openEvent(issuer, receiver common.Address, amount int64, txHash common.Hash) chain.LineOpened {
	return chain.LineOpened{
		EventLog:     chain.EventLog{TxHash: txHash, LogIndex: 0, BlockNumber: 10},
		LineID:       ComputeLineID(issuer, 1767225600, testUnit),
		Issuer:       issuer,
		Receiver:     receiver,
		Unit:         testUnit,
		Amount:       big.NewInt(amount),
		MaturityDate: 1767225600,
	}
}

func TestApplyOpenAsIssuerValidatesPending(t *testing.T) {
	c, pending, history := newTestCorrelator(false)
	ev := openEvent(owner, peerA, 100, testTxHash)
	pending.Record(ev.LineID, &PendingEntry{
		Amount:   big.NewInt(100),
		Receiver: peerA,
		TxHash:   testTxHash,
		TxType:   TxIssue,
	})

	c.ApplyOpen(ev)

	entries := pending.Lookup(ev.LineID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Validated)

	sent := history.SentFor(ev.LineID)
	require.Len(t, sent, 1)
	assert.Equal(t, peerA, sent[0].Receiver)
	assert.Zero(t, sent[0].Amount.Cmp(big.NewInt(100)))
	assert.Empty(t, history.ReceivedFor(ev.LineID))

	lines := history.LinesFor(ev.LineID)
	require.Len(t, lines, 1)
	assert.Equal(t, StatusOpen, lines[0].Status)
	assert.Equal(t, owner, lines[0].Issuer)
}

func TestApplyOpenAsIssuerWithoutPending(t *testing.T) {
	c, pending, history := newTestCorrelator(false)
	ev := openEvent(owner, peerA, 100, testTxHash)

	c.ApplyOpen(ev)

	assert.Zero(t, pending.Size())
	require.Len(t, history.SentFor(ev.LineID), 1, "replayed own issue still lands in the sent log")
}

func TestApplyOpenAsReceiver(t *testing.T) {
	c, _, history := newTestCorrelator(false)
	ev := openEvent(peerA, owner, 250, testTxHash)

	c.ApplyOpen(ev)

	received := history.ReceivedFor(ev.LineID)
	require.Len(t, received, 1)
	assert.Equal(t, peerA, received[0].Sender)
	assert.Zero(t, received[0].Amount.Cmp(big.NewInt(250)))
	assert.Empty(t, history.SentFor(ev.LineID))
	assert.Len(t, history.LinesFor(ev.LineID), 1)
}

func TestApplyOpenBetweenStrangersRecordsLineOnly(t *testing.T) {
	c, _, history := newTestCorrelator(false)
	ev := openEvent(peerA, peerB, 250, testTxHash)

	c.ApplyOpen(ev)

	assert.Empty(t, history.SentFor(ev.LineID))
	assert.Empty(t, history.ReceivedFor(ev.LineID))
	assert.Len(t, history.LinesFor(ev.LineID), 1)
}

func transferEvent(from, to common.Address, lineID common.Hash, amount int64, txHash common.Hash) chain.LineTransferred {
	return chain.LineTransferred{
		EventLog: chain.EventLog{TxHash: txHash, LogIndex: 1, BlockNumber: 11},
		From:     from,
		To:       to,
		Pairs:    []chain.TransferPair{{LineID: lineID, Amount: big.NewInt(amount)}},
	}
}

func TestApplyTransferAsSenderValidatesEachMatch(t *testing.T) {
	c, pending, history := newTestCorrelator(false)
	lineID := ComputeLineID(peerA, 1767225600, testUnit)
	for i := 0; i < 2; i++ {
		pending.Record(lineID, &PendingEntry{
			Amount:   big.NewInt(70),
			Receiver: peerB,
			TxHash:   testTxHash,
			TxType:   TxTransfer,
		})
	}

	c.ApplyTransfer(transferEvent(owner, peerB, lineID, 70, testTxHash))

	for _, e := range pending.Lookup(lineID) {
		assert.True(t, e.Validated)
	}
	sent := history.SentFor(lineID)
	require.Len(t, sent, 2, "one sent entry per validated pending entry")
	assert.Empty(t, history.ReceivedFor(lineID))
}

func TestApplyTransferAsSenderWithoutPending(t *testing.T) {
	c, _, history := newTestCorrelator(false)
	lineID := ComputeLineID(peerA, 1767225600, testUnit)

	c.ApplyTransfer(transferEvent(owner, peerB, lineID, 70, testTxHash))

	require.Len(t, history.SentFor(lineID), 1)
}

func TestApplyTransferAsReceiver(t *testing.T) {
	c, _, history := newTestCorrelator(false)
	lineID := ComputeLineID(peerA, 1767225600, testUnit)

	c.ApplyTransfer(transferEvent(peerB, owner, lineID, 70, testTxHash))

	received := history.ReceivedFor(lineID)
	require.Len(t, received, 1)
	assert.Equal(t, peerB, received[0].Sender)
	assert.Empty(t, history.SentFor(lineID))
}

func TestApplyTransferBetweenStrangersIsDiscarded(t *testing.T) {
	c, pending, history := newTestCorrelator(false)
	lineID := ComputeLineID(peerA, 1767225600, testUnit)

	c.ApplyTransfer(transferEvent(peerA, peerB, lineID, 70, testTxHash))

	assert.Zero(t, pending.Size())
	assert.Zero(t, history.Size())
}

func TestApplyTransferBatchKeepsPairOrder(t *testing.T) {
	c, _, history := newTestCorrelator(false)
	lineA := ComputeLineID(peerA, 1767225600, testUnit)
	lineB := ComputeLineID(peerB, 1767225600, testUnit)

	c.ApplyTransfer(chain.LineTransferred{
		EventLog: chain.EventLog{TxHash: testTxHash, LogIndex: 2, BlockNumber: 12},
		From:     owner,
		To:       peerB,
		Pairs: []chain.TransferPair{
			{LineID: lineA, Amount: big.NewInt(10)},
			{LineID: lineB, Amount: big.NewInt(20)},
		},
	})

	require.Len(t, history.SentFor(lineA), 1)
	require.Len(t, history.SentFor(lineB), 1)
}

func TestDuplicateDeliveriesAppendTwiceByDefault(t *testing.T) {
	c, _, history := newTestCorrelator(false)
	ev := openEvent(peerA, owner, 250, testTxHash)

	c.ApplyOpen(ev)
	c.ApplyOpen(ev)

	assert.Len(t, history.ReceivedFor(ev.LineID), 2)
	assert.Len(t, history.LinesFor(ev.LineID), 2)
}

func TestDuplicateDeliveriesDroppedWhenEnabled(t *testing.T) {
	c, _, history := newTestCorrelator(true)
	ev := openEvent(peerA, owner, 250, testTxHash)

	c.ApplyOpen(ev)
	c.ApplyOpen(ev)

	assert.Len(t, history.ReceivedFor(ev.LineID), 1)
	assert.Len(t, history.LinesFor(ev.LineID), 1)

	lineID := ComputeLineID(peerA, 1767225600, testUnit)
	tr := transferEvent(peerB, owner, lineID, 70, common.HexToHash("0x99"))
	c.ApplyTransfer(tr)
	c.ApplyTransfer(tr)
	assert.Len(t, history.ReceivedFor(lineID), 2, "one from the open, one from the transfer")
}

func TestApplyCloseAndWithdrawLeaveStoresUntouched(t *testing.T) {
	c, pending, history := newTestCorrelator(false)
	lineID := ComputeLineID(owner, 1767225600, testUnit)

	c.ApplyClose(chain.LineClosed{
		EventLog: chain.EventLog{TxHash: testTxHash, LogIndex: 3, BlockNumber: 13},
		LineID:   lineID,
		Issuer:   owner,
	})
	c.ApplyWithdraw(chain.Withdrawn{
		EventLog: chain.EventLog{TxHash: testTxHash, LogIndex: 4, BlockNumber: 13},
		LineID:   lineID,
		Receiver: owner,
		Amount:   big.NewInt(5),
	})

	assert.Zero(t, pending.Size())
	assert.Zero(t, history.Size())
}
