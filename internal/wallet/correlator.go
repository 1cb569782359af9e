package wallet

import (
	"sync"
	"time"

	"github.com/defterhane/defter-wallet/internal/chain"
	"github.com/ethereum/go-ethereum/common"
)

// Correlator bridges local intent and chain truth: every confirmed event,
// whether it arrives through startup replay or a live subscription, passes
// through here exactly the same way. Events where the wallet is the sender
// feed the sent log, events where it is the receiver feed the received log,
// and anything matching a pending entry flips that entry to validated.
type Correlator struct {
	owner   common.Address
	pending *PendingLedger
	history *HistoryStore

	// When dropDuplicates is set, a (txHash, logIndex, lineID) triple is
	// applied at most once. Off by default: replay and live catch-up may
	// then both append, which callers opted into.
	dropDuplicates bool
	mu             sync.Mutex
	seen           map[deliveryKey]struct{}
}

type deliveryKey struct {
	txHash   common.Hash
	logIndex uint
	lineID   common.Hash
}

func NewCorrelator(owner common.Address, pending *PendingLedger, history *HistoryStore, dropDuplicates bool) *Correlator {
	return &Correlator{
		owner:          owner,
		pending:        pending,
		history:        history,
		dropDuplicates: dropDuplicates,
		seen:           make(map[deliveryKey]struct{}),
	}
}

// ApplyOpen folds one confirmed open event into the stores. The line record
// is appended for every observed open regardless of role; the sent/received
// logs only when the wallet issued or received the line.
func (c *Correlator) ApplyOpen(ev chain.LineOpened) {
	if c.duplicate(ev.TxHash, ev.LogIndex, ev.LineID) {
		return
	}

	// TODO: fold LineClosed events into Status instead of always OPEN.
	c.history.AppendLine(ev.LineID, Line{
		LineID:       ev.LineID,
		Issuer:       ev.Issuer,
		MaturityDate: ev.MaturityDate,
		Unit:         ev.Unit,
		Status:       StatusOpen,
	})

	switch c.owner {
	case ev.Issuer:
		matched := c.pending.match(ev.LineID, ev.Amount, ev.Receiver, ev.TxHash)
		if matched == 0 {
			matched = 1
		}
		for i := 0; i < matched; i++ {
			c.history.AppendSent(ev.LineID, SentEntry{
				Date:     time.Now(),
				Amount:   ev.Amount,
				Receiver: ev.Receiver,
				TxHash:   ev.TxHash,
				LogIndex: ev.LogIndex,
			})
		}
	case ev.Receiver:
		c.history.AppendReceived(ev.LineID, ReceivedEntry{
			Date:     time.Now(),
			Amount:   ev.Amount,
			Sender:   ev.Issuer,
			TxHash:   ev.TxHash,
			LogIndex: ev.LogIndex,
		})
	}
}

// ApplyTransfer folds one confirmed transfer event into the stores, one
// iteration per (lineID, amount) pair in batch order. Events between two
// foreign addresses leave every store untouched.
func (c *Correlator) ApplyTransfer(ev chain.LineTransferred) {
	if ev.From != c.owner && ev.To != c.owner {
		return
	}
	for _, pair := range ev.Pairs {
		if c.duplicate(ev.TxHash, ev.LogIndex, pair.LineID) {
			continue
		}
		matched := c.pending.match(pair.LineID, pair.Amount, ev.To, ev.TxHash)
		if matched == 0 {
			// No local intent: another wallet instance initiated this, or
			// this is historical replay. Logged directly.
			matched = 1
		}
		for i := 0; i < matched; i++ {
			if ev.From == c.owner {
				c.history.AppendSent(pair.LineID, SentEntry{
					Date:     time.Now(),
					Amount:   pair.Amount,
					Receiver: ev.To,
					TxHash:   ev.TxHash,
					LogIndex: ev.LogIndex,
				})
			} else {
				c.history.AppendReceived(pair.LineID, ReceivedEntry{
					Date:     time.Now(),
					Amount:   pair.Amount,
					Sender:   ev.From,
					TxHash:   ev.TxHash,
					LogIndex: ev.LogIndex,
				})
			}
		}
	}
}

// ApplyClose observes a confirmed close. Line status derivation from close
// events is deliberately not implemented yet; see DESIGN.md.
func (c *Correlator) ApplyClose(ev chain.LineClosed) {
	_ = c.duplicate(ev.TxHash, ev.LogIndex, ev.LineID)
}

// ApplyWithdraw observes a confirmed withdrawal. Like closes, withdrawals
// are not folded into any store yet.
func (c *Correlator) ApplyWithdraw(ev chain.Withdrawn) {
	_ = c.duplicate(ev.TxHash, ev.LogIndex, ev.LineID)
}

// duplicate records the delivery and reports whether it was already applied.
// Always false when duplicate dropping is disabled.
func (c *Correlator) duplicate(txHash common.Hash, logIndex uint, lineID common.Hash) bool {
	if !c.dropDuplicates {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := deliveryKey{txHash: txHash, logIndex: logIndex, lineID: lineID}
	if _, ok := c.seen[key]; ok {
		return true
	}
	c.seen[key] = struct{}{}
	return false
}
