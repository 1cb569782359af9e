package wallet

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LineStatus mirrors the on-chain lifecycle of a credit line.
type LineStatus int

const (
	StatusOpen LineStatus = iota
	StatusClosed
)

func (s LineStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// TxType classifies a locally initiated write.
type TxType int

const (
	TxIssue TxType = iota
	TxTransfer
)

func (t TxType) String() string {
	switch t {
	case TxIssue:
		return "ISSUE"
	case TxTransfer:
		return "TRANSFER"
	default:
		return "UNKNOWN"
	}
}

// Line is one observed open event for a credit line. The same logical line
// can show up more than once if the issuer tops it up; entries are never
// mutated in place.
type Line struct {
	LineID       common.Hash    `json:"lineID"`
	Issuer       common.Address `json:"issuer"`
	MaturityDate uint64         `json:"maturityDate"`
	Unit         common.Address `json:"unit"`
	Status       LineStatus     `json:"status"`
}

// PendingEntry records a locally submitted write before its confirmation has
// been observed. Validated flips true at most once, when the correlator
// matches a confirmed event against it; entries are never removed.
type PendingEntry struct {
	Amount    *big.Int       `json:"amount"`
	Receiver  common.Address `json:"receiver"`
	TxHash    common.Hash    `json:"txHash"`
	TxType    TxType         `json:"txType"`
	Validated bool           `json:"validated"`
}

// SentEntry is one confirmed outgoing movement on a line.
type SentEntry struct {
	Date     time.Time      `json:"date"`
	Amount   *big.Int       `json:"amount"`
	Receiver common.Address `json:"receiver"`
	TxHash   common.Hash    `json:"txHash"`
	LogIndex uint           `json:"logIndex"`
}

// ReceivedEntry is one confirmed incoming movement on a line.
type ReceivedEntry struct {
	Date     time.Time      `json:"date"`
	Amount   *big.Int       `json:"amount"`
	Sender   common.Address `json:"sender"`
	TxHash   common.Hash    `json:"txHash"`
	LogIndex uint           `json:"logIndex"`
}
