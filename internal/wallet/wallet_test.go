package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/defterhane/defter-wallet/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource stands in for the deployed contract: writes hand out
// sequential transaction hashes, filters serve preloaded history, and
// watches fan out over event feeds with the same address filtering the
// real log queries apply.
type fakeSource struct {
	mu        sync.Mutex
	writes    int
	nextTx    uint64
	rejectErr error

	opens     []chain.LineOpened
	transfers []chain.LineTransferred
	balances  map[common.Hash]*big.Int

	openFeed     event.Feed
	transferFeed event.Feed
}

var _ chain.Source = (*fakeSource)(nil)

func newFakeSource() *fakeSource {
	return &fakeSource{balances: make(map[common.Hash]*big.Int)}
}

func (f *fakeSource) submit() (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.rejectErr != nil {
		err := f.rejectErr
		f.rejectErr = nil
		return common.Hash{}, err
	}
	f.nextTx++
	return common.BigToHash(new(big.Int).SetUint64(f.nextTx)), nil
}

func (f *fakeSource) OpenLine(ctx context.Context, maturityDate uint64, unit, receiver common.Address, amount *big.Int) (common.Hash, error) {
	return f.submit()
}

func (f *fakeSource) TransferLines(ctx context.Context, lineIDs []common.Hash, amounts []*big.Int, to common.Address) (common.Hash, error) {
	return f.submit()
}

func (f *fakeSource) CloseLine(ctx context.Context, maturityDate uint64, unit common.Address, totalAmount *big.Int) (common.Hash, error) {
	return f.submit()
}

func (f *fakeSource) Withdraw(ctx context.Context, lineID common.Hash, unit common.Address) (common.Hash, error) {
	return f.submit()
}

func (f *fakeSource) BalanceOf(ctx context.Context, lineID common.Hash, holder common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bal, ok := f.balances[lineID]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeSource) FilterOpens(ctx context.Context, fromBlock uint64, toBlock *uint64, lineID *common.Hash, issuer *common.Address) ([]chain.LineOpened, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chain.LineOpened
	for _, ev := range f.opens {
		if lineID != nil && ev.LineID != *lineID {
			continue
		}
		if issuer != nil && ev.Issuer != *issuer {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeSource) FilterTransfers(ctx context.Context, fromBlock uint64, toBlock *uint64, from, to *common.Address) ([]chain.LineTransferred, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chain.LineTransferred
	for _, ev := range f.transfers {
		if from != nil && ev.From != *from {
			continue
		}
		if to != nil && ev.To != *to {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeSource) WatchOpens(ctx context.Context, issuer *common.Address, sink chan<- chain.LineOpened) (event.Subscription, error) {
	ch := make(chan chain.LineOpened, 16)
	sub := f.openFeed.Subscribe(ch)
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-ch:
				if issuer != nil && ev.Issuer != *issuer {
					continue
				}
				select {
				case sink <- ev:
				case <-quit:
					return nil
				}
			case <-quit:
				return nil
			case err := <-sub.Err():
				return err
			}
		}
	}), nil
}

func (f *fakeSource) WatchTransfers(ctx context.Context, from, to *common.Address, sink chan<- chain.LineTransferred) (event.Subscription, error) {
	ch := make(chan chain.LineTransferred, 16)
	sub := f.transferFeed.Subscribe(ch)
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-ch:
				if from != nil && ev.From != *from {
					continue
				}
				if to != nil && ev.To != *to {
					continue
				}
				select {
				case sink <- ev:
				case <-quit:
					return nil
				}
			case <-quit:
				return nil
			case err := <-sub.Err():
				return err
			}
		}
	}), nil
}

func (f *fakeSource) WatchCloses(ctx context.Context, issuer *common.Address, sink chan<- chain.LineClosed) (event.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	}), nil
}

func (f *fakeSource) WatchWithdrawals(ctx context.Context, receiver *common.Address, sink chan<- chain.Withdrawn) (event.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	}), nil
}

func (f *fakeSource) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func TestOpenLineRecordsPendingIntent(t *testing.T) {
	source := newFakeSource()
	w := New(owner, source, Options{})
	defer w.Close()

	lineID, txHash, err := w.OpenLine(context.Background(), 1767225600, testUnit, peerA, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, ComputeLineID(owner, 1767225600, testUnit), lineID, "line id is derivable before confirmation")
	assert.NotEqual(t, common.Hash{}, txHash)

	entries := w.Pending(lineID)
	require.Len(t, entries, 1)
	assert.Equal(t, TxIssue, entries[0].TxType)
	assert.Equal(t, peerA, entries[0].Receiver)
	assert.Equal(t, txHash, entries[0].TxHash)
	assert.False(t, entries[0].Validated)
}

func TestOpenLineRejectedLeavesNoPending(t *testing.T) {
	source := newFakeSource()
	source.rejectErr = &chain.RejectedError{Reason: chain.ReasonZeroAmount}
	w := New(owner, source, Options{})
	defer w.Close()

	_, _, err := w.OpenLine(context.Background(), 1767225600, testUnit, peerA, big.NewInt(0))
	require.Error(t, err)

	var rejected *chain.RejectedError
	assert.True(t, errors.As(err, &rejected))
	assert.Zero(t, w.pending.Size(), "a refused submission must not leave intent behind")
}

func TestTransferLinesRecordsPendingPerLine(t *testing.T) {
	source := newFakeSource()
	w := New(owner, source, Options{})
	defer w.Close()

	lineA := ComputeLineID(peerA, 1767225600, testUnit)
	lineB := ComputeLineID(peerB, 1767225600, testUnit)
	txHash, err := w.TransferLines(context.Background(),
		[]common.Hash{lineA, lineB},
		[]*big.Int{big.NewInt(10), big.NewInt(20)}, peerB)
	require.NoError(t, err)

	for _, lineID := range []common.Hash{lineA, lineB} {
		entries := w.Pending(lineID)
		require.Len(t, entries, 1)
		assert.Equal(t, TxTransfer, entries[0].TxType)
		assert.Equal(t, txHash, entries[0].TxHash)
	}
}

func TestTransferLinesRejectsMismatchedBatch(t *testing.T) {
	source := newFakeSource()
	w := New(owner, source, Options{})
	defer w.Close()

	_, err := w.TransferLines(context.Background(),
		[]common.Hash{ComputeLineID(peerA, 1767225600, testUnit)},
		[]*big.Int{big.NewInt(10), big.NewInt(20)}, peerB)
	require.Error(t, err)
	assert.Zero(t, source.writeCount(), "a malformed batch never reaches the chain")

	_, err = w.TransferLines(context.Background(), nil, nil, peerB)
	require.Error(t, err)
}

func TestReplayValidatesEarlierIntent(t *testing.T) {
	source := newFakeSource()
	w := New(owner, source, Options{})
	defer w.Close()

	lineID, txHash, err := w.OpenLine(context.Background(), 1767225600, testUnit, peerA, big.NewInt(100))
	require.NoError(t, err)

	source.opens = append(source.opens, chain.LineOpened{
		EventLog:     chain.EventLog{TxHash: txHash, LogIndex: 0, BlockNumber: 5},
		LineID:       lineID,
		Issuer:       owner,
		Receiver:     peerA,
		Unit:         testUnit,
		Amount:       big.NewInt(100),
		MaturityDate: 1767225600,
	})
	source.transfers = append(source.transfers, chain.LineTransferred{
		EventLog: chain.EventLog{TxHash: common.HexToHash("0x77"), LogIndex: 0, BlockNumber: 6},
		From:     peerA,
		To:       owner,
		Pairs:    []chain.TransferPair{{LineID: lineID, Amount: big.NewInt(30)}},
	})

	require.NoError(t, w.Replay(context.Background(), 0, nil))

	entries := w.Pending(lineID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Validated)
	assert.Len(t, w.Sent(lineID), 1)
	assert.Len(t, w.Received(lineID), 1)
	assert.Equal(t, []common.Hash{lineID}, w.KnownLines())
}

func TestListenAsSenderValidatesLiveConfirmation(t *testing.T) {
	source := newFakeSource()
	w := New(owner, source, Options{})
	defer w.Close()

	lineID := ComputeLineID(peerA, 1767225600, testUnit)
	txHash, err := w.TransferLine(context.Background(), lineID, big.NewInt(40), peerB)
	require.NoError(t, err)

	sub, err := w.ListenAsSender(context.Background())
	require.NoError(t, err)
	defer sub.Unsubscribe()

	source.transferFeed.Send(chain.LineTransferred{
		EventLog: chain.EventLog{TxHash: txHash, LogIndex: 0, BlockNumber: 20},
		From:     owner,
		To:       peerB,
		Pairs:    []chain.TransferPair{{LineID: lineID, Amount: big.NewInt(40)}},
	})

	require.Eventually(t, func() bool {
		entries := w.Pending(lineID)
		return len(entries) == 1 && entries[0].Validated
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, w.Sent(lineID), 1)
}

func TestSubscriptionHandlesAreIndependent(t *testing.T) {
	source := newFakeSource()
	w := New(owner, source, Options{})
	defer w.Close()

	senderSub, err := w.ListenAsSender(context.Background())
	require.NoError(t, err)
	receiverSub, err := w.ListenAsReceiver(context.Background())
	require.NoError(t, err)
	defer receiverSub.Unsubscribe()

	senderSub.Unsubscribe()
	_, open := <-senderSub.Err()
	assert.False(t, open, "unsubscribed handle reports closure")

	lineID := ComputeLineID(peerA, 1767225600, testUnit)
	source.transferFeed.Send(chain.LineTransferred{
		EventLog: chain.EventLog{TxHash: common.HexToHash("0x88"), LogIndex: 0, BlockNumber: 21},
		From:     peerB,
		To:       owner,
		Pairs:    []chain.TransferPair{{LineID: lineID, Amount: big.NewInt(15)}},
	})

	require.Eventually(t, func() bool {
		return len(w.Received(lineID)) == 1
	}, 2*time.Second, 10*time.Millisecond, "sibling subscription keeps delivering")
}

func TestListenOpensAsIssuerFoldsLiveOpen(t *testing.T) {
	source := newFakeSource()
	w := New(owner, source, Options{})
	defer w.Close()

	lineID, txHash, err := w.OpenLine(context.Background(), 1767225600, testUnit, peerA, big.NewInt(60))
	require.NoError(t, err)

	sub, err := w.ListenOpensAsIssuer(context.Background())
	require.NoError(t, err)
	defer sub.Unsubscribe()

	source.openFeed.Send(chain.LineOpened{
		EventLog:     chain.EventLog{TxHash: txHash, LogIndex: 0, BlockNumber: 22},
		LineID:       lineID,
		Issuer:       owner,
		Receiver:     peerA,
		Unit:         testUnit,
		Amount:       big.NewInt(60),
		MaturityDate: 1767225600,
	})

	require.Eventually(t, func() bool {
		entries := w.Pending(lineID)
		return len(entries) == 1 && entries[0].Validated
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetLine(t *testing.T) {
	source := newFakeSource()
	w := New(owner, source, Options{})
	defer w.Close()

	unknown := common.HexToHash("0xdeadbeef")
	line, err := w.GetLine(context.Background(), unknown)
	require.NoError(t, err)
	assert.Nil(t, line, "a line no event ever opened resolves to nothing")

	lineID := ComputeLineID(peerA, 1767225600, testUnit)
	source.opens = append(source.opens, chain.LineOpened{
		EventLog:     chain.EventLog{TxHash: testTxHash, LogIndex: 0, BlockNumber: 5},
		LineID:       lineID,
		Issuer:       peerA,
		Receiver:     peerB,
		Unit:         testUnit,
		Amount:       big.NewInt(100),
		MaturityDate: 1767225600,
	})

	line, err = w.GetLine(context.Background(), lineID)
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, peerA, line.Issuer)
	assert.Equal(t, uint64(1767225600), line.MaturityDate)
	assert.Equal(t, StatusOpen, line.Status)
}

func TestBalanceQueriesSource(t *testing.T) {
	source := newFakeSource()
	lineID := ComputeLineID(peerA, 1767225600, testUnit)
	source.balances[lineID] = big.NewInt(420)

	w := New(owner, source, Options{})
	defer w.Close()

	bal, err := w.Balance(context.Background(), lineID)
	require.NoError(t, err)
	assert.Zero(t, bal.Cmp(big.NewInt(420)))
}

func TestCloseTearsDownSubscriptions(t *testing.T) {
	source := newFakeSource()
	w := New(owner, source, Options{})

	sub, err := w.ListenAsReceiver(context.Background())
	require.NoError(t, err)

	w.Close()
	_, open := <-sub.Err()
	assert.False(t, open)
}
