package wallet

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// HistoryStore keeps the three per-line append-only logs the wallet rebuilds
// from the event stream: confirmed outgoing transfers, confirmed incoming
// transfers, and observed line opens. It is a client-side cache, rebuilt from
// replay on demand; the chain stays the source of truth.
type HistoryStore struct {
	mu       sync.RWMutex
	sent     map[common.Hash][]SentEntry
	received map[common.Hash][]ReceivedEntry
	lines    map[common.Hash][]Line
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		sent:     make(map[common.Hash][]SentEntry),
		received: make(map[common.Hash][]ReceivedEntry),
		lines:    make(map[common.Hash][]Line),
	}
}

// AppendSent appends one confirmed outgoing movement in observation order.
func (h *HistoryStore) AppendSent(lineID common.Hash, entry SentEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent[lineID] = append(h.sent[lineID], entry)
}

// AppendReceived appends one confirmed incoming movement in observation order.
func (h *HistoryStore) AppendReceived(lineID common.Hash, entry ReceivedEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received[lineID] = append(h.received[lineID], entry)
}

// AppendLine appends one observed open event. Opens are not deduplicated;
// the same logical line recurs when the issuer opens it again.
func (h *HistoryStore) AppendLine(lineID common.Hash, line Line) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines[lineID] = append(h.lines[lineID], line)
}

// SentFor returns the accumulated outgoing log for lineID, empty if none.
func (h *HistoryStore) SentFor(lineID common.Hash) []SentEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entries := h.sent[lineID]
	out := make([]SentEntry, len(entries))
	copy(out, entries)
	return out
}

// ReceivedFor returns the accumulated incoming log for lineID, empty if none.
func (h *HistoryStore) ReceivedFor(lineID common.Hash) []ReceivedEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entries := h.received[lineID]
	out := make([]ReceivedEntry, len(entries))
	copy(out, entries)
	return out
}

// LinesFor returns every observed open for lineID, empty if none.
func (h *HistoryStore) LinesFor(lineID common.Hash) []Line {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entries := h.lines[lineID]
	out := make([]Line, len(entries))
	copy(out, entries)
	return out
}

// LineIDs returns every line identifier with at least one observed open.
func (h *HistoryStore) LineIDs() []common.Hash {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]common.Hash, 0, len(h.lines))
	for id := range h.lines {
		ids = append(ids, id)
	}
	return ids
}

// Size reports the total entry count across all three logs.
func (h *HistoryStore) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, entries := range h.sent {
		n += len(entries)
	}
	for _, entries := range h.received {
		n += len(entries)
	}
	for _, entries := range h.lines {
		n += len(entries)
	}
	return n
}
