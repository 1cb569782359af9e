package walletstatedb

import (
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/defterhane/defter-wallet/internal/wallet"
)

// DB is the global SQLite database instance
var DB *gorm.DB

// InitSQLiteDB initializes the SQLite database
func InitSQLiteDB(dbPath string) error {
	var err error

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := ensureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory: %v", err)
		}
	}

	// Configure GORM to be less verbose
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}

	// Open the database
	DB, err = gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}

	// Auto-migrate schemas
	err = DB.AutoMigrate(
		&SQLiteLine{},
		&SQLiteSentEntry{},
		&SQLiteReceivedEntry{},
		&SQLitePendingEntry{},
		&SQLiteMetadata{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}

	log.Println("SQLite database initialized successfully")
	return nil
}

// ensureDir creates a directory if it doesn't exist
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// SaveLineToSQLite saves an observed line to the SQLite database. Re-saving
// the same line id is a no-op; line attributes never change on chain.
func SaveLineToSQLite(line wallet.Line) error {
	record := SQLiteLine{
		LineID:       line.LineID.Hex(),
		Issuer:       line.Issuer.Hex(),
		MaturityDate: line.MaturityDate,
		Unit:         line.Unit.Hex(),
		Status:       line.Status.String(),
	}
	return DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

// GetLinesFromSQLite retrieves every observed line from SQLite
func GetLinesFromSQLite() ([]wallet.Line, error) {
	var records []SQLiteLine
	result := DB.Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}

	lines := make([]wallet.Line, len(records))
	for i, r := range records {
		status := wallet.StatusOpen
		if r.Status == wallet.StatusClosed.String() {
			status = wallet.StatusClosed
		}
		lines[i] = wallet.Line{
			LineID:       common.HexToHash(r.LineID),
			Issuer:       common.HexToAddress(r.Issuer),
			MaturityDate: r.MaturityDate,
			Unit:         common.HexToAddress(r.Unit),
			Status:       status,
		}
	}
	return lines, nil
}

// SaveSentEntryToSQLite saves a confirmed outgoing movement. Replays of a
// delivery already on disk are dropped by the unique index.
func SaveSentEntryToSQLite(lineID common.Hash, entry wallet.SentEntry) error {
	record := SQLiteSentEntry{
		LineID:   lineID.Hex(),
		TxHash:   entry.TxHash.Hex(),
		LogIndex: entry.LogIndex,
		Receiver: entry.Receiver.Hex(),
		Amount:   entry.Amount.String(),
		Date:     entry.Date,
	}
	return DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

// GetSentEntriesFromSQLite retrieves the outgoing history of one line
func GetSentEntriesFromSQLite(lineID common.Hash) ([]wallet.SentEntry, error) {
	var records []SQLiteSentEntry
	result := DB.Where("line_id = ?", lineID.Hex()).Order("date").Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}

	entries := make([]wallet.SentEntry, len(records))
	for i, r := range records {
		amount, err := parseAmount(r.Amount)
		if err != nil {
			return nil, err
		}
		entries[i] = wallet.SentEntry{
			Date:     r.Date,
			Amount:   amount,
			Receiver: common.HexToAddress(r.Receiver),
			TxHash:   common.HexToHash(r.TxHash),
			LogIndex: r.LogIndex,
		}
	}
	return entries, nil
}

// SaveReceivedEntryToSQLite saves a confirmed incoming movement
func SaveReceivedEntryToSQLite(lineID common.Hash, entry wallet.ReceivedEntry) error {
	record := SQLiteReceivedEntry{
		LineID:   lineID.Hex(),
		TxHash:   entry.TxHash.Hex(),
		LogIndex: entry.LogIndex,
		Sender:   entry.Sender.Hex(),
		Amount:   entry.Amount.String(),
		Date:     entry.Date,
	}
	return DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

// GetReceivedEntriesFromSQLite retrieves the incoming history of one line
func GetReceivedEntriesFromSQLite(lineID common.Hash) ([]wallet.ReceivedEntry, error) {
	var records []SQLiteReceivedEntry
	result := DB.Where("line_id = ?", lineID.Hex()).Order("date").Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}

	entries := make([]wallet.ReceivedEntry, len(records))
	for i, r := range records {
		amount, err := parseAmount(r.Amount)
		if err != nil {
			return nil, err
		}
		entries[i] = wallet.ReceivedEntry{
			Date:     r.Date,
			Amount:   amount,
			Sender:   common.HexToAddress(r.Sender),
			TxHash:   common.HexToHash(r.TxHash),
			LogIndex: r.LogIndex,
		}
	}
	return entries, nil
}

// SavePendingEntryToSQLite saves or updates a local intent. The row is
// keyed on (line, tx hash, receiver, amount, type) so re-saving after
// validation flips the stored flag instead of inserting a duplicate.
func SavePendingEntryToSQLite(lineID common.Hash, entry *wallet.PendingEntry) error {
	var existing SQLitePendingEntry
	query := DB.Where(
		"line_id = ? AND tx_hash = ? AND receiver = ? AND amount = ? AND tx_type = ?",
		lineID.Hex(), entry.TxHash.Hex(), entry.Receiver.Hex(), entry.Amount.String(), entry.TxType.String(),
	).First(&existing)
	if query.Error == nil {
		if existing.Validated != entry.Validated {
			return DB.Model(&existing).Update("validated", entry.Validated).Error
		}
		return nil
	}
	if !errors.Is(query.Error, gorm.ErrRecordNotFound) {
		return query.Error
	}

	record := SQLitePendingEntry{
		LineID:    lineID.Hex(),
		Amount:    entry.Amount.String(),
		Receiver:  entry.Receiver.Hex(),
		TxHash:    entry.TxHash.Hex(),
		TxType:    entry.TxType.String(),
		Validated: entry.Validated,
	}
	return DB.Create(&record).Error
}

// GetPendingEntriesFromSQLite retrieves the recorded intents for one line
func GetPendingEntriesFromSQLite(lineID common.Hash) ([]*wallet.PendingEntry, error) {
	var records []SQLitePendingEntry
	result := DB.Where("line_id = ?", lineID.Hex()).Order("id").Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}

	entries := make([]*wallet.PendingEntry, len(records))
	for i, r := range records {
		amount, err := parseAmount(r.Amount)
		if err != nil {
			return nil, err
		}
		txType := wallet.TxIssue
		if r.TxType == wallet.TxTransfer.String() {
			txType = wallet.TxTransfer
		}
		entries[i] = &wallet.PendingEntry{
			Amount:    amount,
			Receiver:  common.HexToAddress(r.Receiver),
			TxHash:    common.HexToHash(r.TxHash),
			TxType:    txType,
			Validated: r.Validated,
		}
	}
	return entries, nil
}

// SetLastReplayedBlockInSQLite stores the replay checkpoint
func SetLastReplayedBlockInSQLite(height uint64) error {
	metadata := SQLiteMetadata{
		Key:   LastReplayedBlockKey,
		Value: strconv.FormatUint(height, 10),
	}
	return DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&metadata).Error
}

// GetLastReplayedBlockFromSQLite retrieves the replay checkpoint, zero if
// the wallet has never replayed
func GetLastReplayedBlockFromSQLite() (uint64, error) {
	var metadata SQLiteMetadata
	result := DB.Where("key = ?", LastReplayedBlockKey).First(&metadata)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return strconv.ParseUint(metadata.Value, 10, 64)
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt amount in database: %q", s)
	}
	return amount, nil
}
