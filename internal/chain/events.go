package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventLog carries the fields every confirmed contract event shares: the
// transaction that produced it and the log's position inside that transaction.
type EventLog struct {
	TxHash      common.Hash
	LogIndex    uint
	BlockNumber uint64
}

// LineOpened is emitted once per receiver when an issuer opens a credit line.
type LineOpened struct {
	EventLog
	LineID       common.Hash
	Issuer       common.Address
	Receiver     common.Address
	Unit         common.Address
	Amount       *big.Int
	MaturityDate uint64
}

// TransferPair is one (line, amount) movement inside a transfer event.
type TransferPair struct {
	LineID common.Hash
	Amount *big.Int
}

// LineTransferred covers both the single and the batch transfer event; a
// single transfer arrives as one pair. Pair order matches the on-chain
// encoding of the batch.
type LineTransferred struct {
	EventLog
	From  common.Address
	To    common.Address
	Pairs []TransferPair
}

// LineClosed is emitted when an issuer settles a line at maturity.
type LineClosed struct {
	EventLog
	LineID common.Hash
	Issuer common.Address
}

// Withdrawn is emitted when a holder withdraws settled funds from a line.
type Withdrawn struct {
	EventLog
	LineID   common.Hash
	Receiver common.Address
	Amount   *big.Int
}
