package walletstatedb

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/defterhane/defter-wallet/internal/wallet"
)

const (
	LastReplayedBlockKey = "last_replayed_block"
)

// Helper wrapper functions that redirect to SQLite implementations

func SaveLine(line wallet.Line) error {
	return SaveLineToSQLite(line)
}

func GetLines() ([]wallet.Line, error) {
	return GetLinesFromSQLite()
}

func SaveSentEntry(lineID common.Hash, entry wallet.SentEntry) error {
	return SaveSentEntryToSQLite(lineID, entry)
}

func GetSentEntries(lineID common.Hash) ([]wallet.SentEntry, error) {
	return GetSentEntriesFromSQLite(lineID)
}

func SaveReceivedEntry(lineID common.Hash, entry wallet.ReceivedEntry) error {
	return SaveReceivedEntryToSQLite(lineID, entry)
}

func GetReceivedEntries(lineID common.Hash) ([]wallet.ReceivedEntry, error) {
	return GetReceivedEntriesFromSQLite(lineID)
}

func SavePendingEntry(lineID common.Hash, entry *wallet.PendingEntry) error {
	return SavePendingEntryToSQLite(lineID, entry)
}

func GetPendingEntries(lineID common.Hash) ([]*wallet.PendingEntry, error) {
	return GetPendingEntriesFromSQLite(lineID)
}

func SetLastReplayedBlock(height uint64) error {
	return SetLastReplayedBlockInSQLite(height)
}

func GetLastReplayedBlock() (uint64, error) {
	return GetLastReplayedBlockFromSQLite()
}

// PersistHistory flushes one line's in-memory state to disk. Unique
// indexes make re-flushing the same deliveries harmless.
func PersistHistory(w *wallet.Wallet, lineID common.Hash) error {
	for _, line := range w.Lines(lineID) {
		if err := SaveLine(line); err != nil {
			return err
		}
	}
	for _, entry := range w.Sent(lineID) {
		if err := SaveSentEntry(lineID, entry); err != nil {
			return err
		}
	}
	for _, entry := range w.Received(lineID) {
		if err := SaveReceivedEntry(lineID, entry); err != nil {
			return err
		}
	}
	for _, entry := range w.Pending(lineID) {
		if err := SavePendingEntry(lineID, entry); err != nil {
			return err
		}
	}
	return nil
}
