package walletstatedb

import (
	"time"

	"gorm.io/gorm"
)

// SQLiteLine represents the static attributes of an observed credit line
type SQLiteLine struct {
	gorm.Model
	LineID       string `gorm:"uniqueIndex"`
	Issuer       string `gorm:"index"`
	MaturityDate uint64
	Unit         string
	Status       string `gorm:"index"` // OPEN or CLOSED
}

// SQLiteSentEntry represents one confirmed outgoing movement on a line
type SQLiteSentEntry struct {
	gorm.Model
	LineID   string    `gorm:"index;uniqueIndex:idx_sent_delivery"`
	TxHash   string    `gorm:"uniqueIndex:idx_sent_delivery"`
	LogIndex uint      `gorm:"uniqueIndex:idx_sent_delivery"`
	Receiver string    `gorm:"index"`
	Amount   string    // decimal string, amounts exceed int64
	Date     time.Time `gorm:"index"`
}

// SQLiteReceivedEntry represents one confirmed incoming movement on a line
type SQLiteReceivedEntry struct {
	gorm.Model
	LineID   string    `gorm:"index;uniqueIndex:idx_received_delivery"`
	TxHash   string    `gorm:"uniqueIndex:idx_received_delivery"`
	LogIndex uint      `gorm:"uniqueIndex:idx_received_delivery"`
	Sender   string    `gorm:"index"`
	Amount   string
	Date     time.Time `gorm:"index"`
}

// SQLitePendingEntry represents a submitted but not yet confirmed intent
type SQLitePendingEntry struct {
	gorm.Model
	LineID    string `gorm:"index"`
	Amount    string
	Receiver  string `gorm:"index"`
	TxHash    string `gorm:"index"`
	TxType    string // ISSUE or TRANSFER
	Validated bool   `gorm:"index"`
}

// SQLiteMetadata stores miscellaneous metadata about the wallet
type SQLiteMetadata struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex"`
	Value string
}
