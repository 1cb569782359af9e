package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// Source is the minimum surface the wallet needs from the deployed Defter
// contract: submitting writes, querying historical events, and subscribing
// to live ones. Writes return the transaction hash as soon as the node has
// accepted the submission; confirmation arrives later as an event.
type Source interface {
	// Writes. A business-rule refusal surfaces as *RejectedError.
	OpenLine(ctx context.Context, maturityDate uint64, unit common.Address, receiver common.Address, amount *big.Int) (common.Hash, error)
	TransferLines(ctx context.Context, lineIDs []common.Hash, amounts []*big.Int, to common.Address) (common.Hash, error)
	CloseLine(ctx context.Context, maturityDate uint64, unit common.Address, totalAmount *big.Int) (common.Hash, error)
	Withdraw(ctx context.Context, lineID common.Hash, unit common.Address) (common.Hash, error)

	// Reads.
	BalanceOf(ctx context.Context, lineID common.Hash, holder common.Address) (*big.Int, error)
	FilterOpens(ctx context.Context, fromBlock uint64, toBlock *uint64, lineID *common.Hash, issuer *common.Address) ([]LineOpened, error)
	FilterTransfers(ctx context.Context, fromBlock uint64, toBlock *uint64, from, to *common.Address) ([]LineTransferred, error)

	// Live subscriptions. Each call returns its own handle; Unsubscribe
	// cancels that subscription only, never its peers.
	WatchOpens(ctx context.Context, issuer *common.Address, sink chan<- LineOpened) (event.Subscription, error)
	WatchTransfers(ctx context.Context, from, to *common.Address, sink chan<- LineTransferred) (event.Subscription, error)
	WatchCloses(ctx context.Context, issuer *common.Address, sink chan<- LineClosed) (event.Subscription, error)
	WatchWithdrawals(ctx context.Context, receiver *common.Address, sink chan<- Withdrawn) (event.Subscription, error)
}
