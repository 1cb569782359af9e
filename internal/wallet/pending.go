package wallet

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// PendingLedger records locally submitted writes per line until (and after)
// their confirmation is observed. It is append-only: validated entries stay
// around for auditability, unmatched ones stay unvalidated indefinitely.
type PendingLedger struct {
	mu      sync.Mutex
	entries map[common.Hash][]*PendingEntry
}

func NewPendingLedger() *PendingLedger {
	return &PendingLedger{entries: make(map[common.Hash][]*PendingEntry)}
}

// Record appends entry to the sequence for lineID, creating it if absent.
func (l *PendingLedger) Record(lineID common.Hash, entry *PendingEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[lineID] = append(l.entries[lineID], entry)
}

// Lookup returns a snapshot of the current entries for lineID, possibly
// empty. The returned pointers are shared with the ledger; the snapshot
// slice is the caller's.
func (l *PendingLedger) Lookup(lineID common.Hash) []*PendingEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.entries[lineID]
	out := make([]*PendingEntry, len(entries))
	copy(out, entries)
	return out
}

// Size reports the total number of recorded entries across all lines.
func (l *PendingLedger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, entries := range l.entries {
		n += len(entries)
	}
	return n
}

// match marks every entry for lineID whose (amount, counterparty, txHash)
// equal the confirmed event's as validated and reports how many matched.
// Re-marking an already validated entry is a no-op on the flag but still
// counts as a match, so a re-delivered confirmation correlates the same way
// the first delivery did.
func (l *PendingLedger) match(lineID common.Hash, amount *big.Int, counterparty common.Address, txHash common.Hash) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	matched := 0
	for _, e := range l.entries[lineID] {
		if e.Amount.Cmp(amount) == 0 && e.Receiver == counterparty && e.TxHash == txHash {
			e.Validated = true
			matched++
		}
	}
	return matched
}
