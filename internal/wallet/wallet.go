package wallet

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/defterhane/defter-wallet/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// Options tunes wallet behavior beyond its chain wiring.
type Options struct {
	// DropDuplicateDeliveries suppresses re-application of an event the
	// wallet has already folded in, keyed on (txHash, logIndex, lineID).
	// Off by default so replay windows behave the way callers expect.
	DropDuplicateDeliveries bool
}

// Wallet is the command facade over one keypair's view of the Defter
// contract. It submits writes through its chain source, records local
// intent in the pending ledger, and folds confirmed events into the
// history store through its correlator. All methods are safe for
// concurrent use.
type Wallet struct {
	address common.Address
	source  chain.Source

	pending    *PendingLedger
	history    *HistoryStore
	correlator *Correlator

	mu   sync.Mutex
	subs []event.Subscription
}

func New(address common.Address, source chain.Source, opts Options) *Wallet {
	pending := NewPendingLedger()
	history := NewHistoryStore()
	return &Wallet{
		address:    address,
		source:     source,
		pending:    pending,
		history:    history,
		correlator: NewCorrelator(address, pending, history, opts.DropDuplicateDeliveries),
	}
}

// Address returns the account this wallet acts as.
func (w *Wallet) Address() common.Address {
	return w.address
}

// OpenLine issues a new credit line to receiver and records the local
// intent. The line identifier is deterministic, so it is computed before
// submission; the pending entry is only recorded once the node accepts
// the transaction. A rejected submission leaves the ledger untouched.
func (w *Wallet) OpenLine(ctx context.Context, maturityDate uint64, unit common.Address, receiver common.Address, amount *big.Int) (common.Hash, common.Hash, error) {
	lineID := ComputeLineID(w.address, maturityDate, unit)
	txHash, err := w.source.OpenLine(ctx, maturityDate, unit, receiver, amount)
	if err != nil {
		return common.Hash{}, common.Hash{}, fmt.Errorf("open line: %v", err)
	}
	w.pending.Record(lineID, &PendingEntry{
		Amount:   new(big.Int).Set(amount),
		Receiver: receiver,
		TxHash:   txHash,
		TxType:   TxIssue,
	})
	log.Printf("open line submitted: line=%s tx=%s amount=%s", lineID.Hex(), txHash.Hex(), amount)
	return lineID, txHash, nil
}

// TransferLine moves amount on a single line to a new holder.
func (w *Wallet) TransferLine(ctx context.Context, lineID common.Hash, amount *big.Int, to common.Address) (common.Hash, error) {
	return w.TransferLines(ctx, []common.Hash{lineID}, []*big.Int{amount}, to)
}

// TransferLines moves amounts on several lines to the same holder in one
// transaction, recording one pending entry per line.
func (w *Wallet) TransferLines(ctx context.Context, lineIDs []common.Hash, amounts []*big.Int, to common.Address) (common.Hash, error) {
	if len(lineIDs) != len(amounts) {
		return common.Hash{}, fmt.Errorf("transfer lines: %d line ids for %d amounts", len(lineIDs), len(amounts))
	}
	if len(lineIDs) == 0 {
		return common.Hash{}, fmt.Errorf("transfer lines: empty batch")
	}
	txHash, err := w.source.TransferLines(ctx, lineIDs, amounts, to)
	if err != nil {
		return common.Hash{}, fmt.Errorf("transfer lines: %v", err)
	}
	for i, lineID := range lineIDs {
		w.pending.Record(lineID, &PendingEntry{
			Amount:   new(big.Int).Set(amounts[i]),
			Receiver: to,
			TxHash:   txHash,
			TxType:   TxTransfer,
		})
	}
	log.Printf("transfer submitted: lines=%d to=%s tx=%s", len(lineIDs), to.Hex(), txHash.Hex())
	return txHash, nil
}

// CloseLine settles one of the wallet's own lines at maturity. Closes are
// settlements rather than promises, so nothing is recorded as pending.
func (w *Wallet) CloseLine(ctx context.Context, maturityDate uint64, unit common.Address, totalAmount *big.Int) (common.Hash, error) {
	txHash, err := w.source.CloseLine(ctx, maturityDate, unit, totalAmount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("close line: %v", err)
	}
	log.Printf("close submitted: line=%s tx=%s", ComputeLineID(w.address, maturityDate, unit).Hex(), txHash.Hex())
	return txHash, nil
}

// Withdraw redeems the wallet's matured balance on a line. Like closes,
// withdrawals record no pending entry.
func (w *Wallet) Withdraw(ctx context.Context, lineID common.Hash, unit common.Address) (common.Hash, error) {
	txHash, err := w.source.Withdraw(ctx, lineID, unit)
	if err != nil {
		return common.Hash{}, fmt.Errorf("withdraw: %v", err)
	}
	log.Printf("withdraw submitted: line=%s tx=%s", lineID.Hex(), txHash.Hex())
	return txHash, nil
}

// Balance queries the wallet's confirmed holding on a line straight from
// the contract.
func (w *Wallet) Balance(ctx context.Context, lineID common.Hash) (*big.Int, error) {
	bal, err := w.source.BalanceOf(ctx, lineID, w.address)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %v", lineID.Hex(), err)
	}
	return bal, nil
}

// GetLine resolves a line's static attributes, preferring the local
// history and falling back to a full historical query. A line no open
// event ever mentioned yields (nil, nil).
func (w *Wallet) GetLine(ctx context.Context, lineID common.Hash) (*Line, error) {
	if lines := w.history.LinesFor(lineID); len(lines) > 0 {
		line := lines[0]
		return &line, nil
	}
	opens, err := w.source.FilterOpens(ctx, 0, nil, &lineID, nil)
	if err != nil {
		return nil, fmt.Errorf("get line %s: %v", lineID.Hex(), err)
	}
	if len(opens) == 0 {
		return nil, nil
	}
	ev := opens[0]
	return &Line{
		LineID:       ev.LineID,
		Issuer:       ev.Issuer,
		MaturityDate: ev.MaturityDate,
		Unit:         ev.Unit,
		Status:       StatusOpen,
	}, nil
}

// Pending returns the wallet's unconfirmed intents for a line.
func (w *Wallet) Pending(lineID common.Hash) []*PendingEntry {
	return w.pending.Lookup(lineID)
}

// Sent returns the confirmed outgoing history for a line.
func (w *Wallet) Sent(lineID common.Hash) []SentEntry {
	return w.history.SentFor(lineID)
}

// Received returns the confirmed incoming history for a line.
func (w *Wallet) Received(lineID common.Hash) []ReceivedEntry {
	return w.history.ReceivedFor(lineID)
}

// Lines returns every observed open record for a line.
func (w *Wallet) Lines(lineID common.Hash) []Line {
	return w.history.LinesFor(lineID)
}

// KnownLines lists every line the wallet has observed an open event for.
func (w *Wallet) KnownLines() []common.Hash {
	return w.history.LineIDs()
}

// RestoreLine seeds the stores with state persisted by an earlier run.
// Meant for startup, before replay and live subscriptions begin.
func (w *Wallet) RestoreLine(line Line, sent []SentEntry, received []ReceivedEntry, pending []*PendingEntry) {
	w.history.AppendLine(line.LineID, line)
	for _, entry := range sent {
		w.history.AppendSent(line.LineID, entry)
	}
	for _, entry := range received {
		w.history.AppendReceived(line.LineID, entry)
	}
	for _, entry := range pending {
		w.pending.Record(line.LineID, entry)
	}
}

// HistorySize reports the total number of confirmed entries across all
// lines.
func (w *Wallet) HistorySize() int {
	return w.history.Size()
}

// Replay folds every historical open and transfer in [fromBlock, toBlock]
// through the correlator, in chain order per event kind. A nil toBlock
// means up to the latest block.
func (w *Wallet) Replay(ctx context.Context, fromBlock uint64, toBlock *uint64) error {
	start := time.Now()
	opens, err := w.source.FilterOpens(ctx, fromBlock, toBlock, nil, nil)
	if err != nil {
		return fmt.Errorf("replay opens: %v", err)
	}
	for _, ev := range opens {
		w.correlator.ApplyOpen(ev)
	}
	transfers, err := w.source.FilterTransfers(ctx, fromBlock, toBlock, nil, nil)
	if err != nil {
		return fmt.Errorf("replay transfers: %v", err)
	}
	for _, ev := range transfers {
		w.correlator.ApplyTransfer(ev)
	}
	log.Printf("replay complete: opens=%d transfers=%d from=%d took=%s",
		len(opens), len(transfers), fromBlock, time.Since(start).Round(time.Millisecond))
	return nil
}

// ListenOpensAsIssuer subscribes to open events issued by this wallet and
// folds them in as they arrive.
func (w *Wallet) ListenOpensAsIssuer(ctx context.Context) (event.Subscription, error) {
	sink := make(chan chain.LineOpened)
	sub, err := w.source.WatchOpens(ctx, &w.address, sink)
	if err != nil {
		return nil, fmt.Errorf("watch opens: %v", err)
	}
	return w.pump(sub, func(quit <-chan struct{}) error {
		for {
			select {
			case ev := <-sink:
				w.correlator.ApplyOpen(ev)
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// ListenAsSender subscribes to transfer events originating from this
// wallet. Matching pending entries are validated as confirmations land.
func (w *Wallet) ListenAsSender(ctx context.Context) (event.Subscription, error) {
	return w.listenTransfers(ctx, &w.address, nil)
}

// ListenAsReceiver subscribes to transfer events addressed to this wallet.
func (w *Wallet) ListenAsReceiver(ctx context.Context) (event.Subscription, error) {
	return w.listenTransfers(ctx, nil, &w.address)
}

func (w *Wallet) listenTransfers(ctx context.Context, from, to *common.Address) (event.Subscription, error) {
	sink := make(chan chain.LineTransferred)
	sub, err := w.source.WatchTransfers(ctx, from, to, sink)
	if err != nil {
		return nil, fmt.Errorf("watch transfers: %v", err)
	}
	return w.pump(sub, func(quit <-chan struct{}) error {
		for {
			select {
			case ev := <-sink:
				w.correlator.ApplyTransfer(ev)
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// pump wraps an upstream subscription in a draining goroutine and tracks
// the handle so Close can tear it down. Unsubscribing the returned handle
// also unsubscribes upstream.
func (w *Wallet) pump(upstream event.Subscription, loop func(quit <-chan struct{}) error) event.Subscription {
	sub := event.NewSubscription(func(quit <-chan struct{}) error {
		defer upstream.Unsubscribe()
		return loop(quit)
	})
	w.mu.Lock()
	w.subs = append(w.subs, sub)
	w.mu.Unlock()
	return sub
}

// Close tears down every live subscription the wallet opened. The local
// stores stay readable afterwards.
func (w *Wallet) Close() {
	w.mu.Lock()
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
