package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
)

// DefterABI is the interface of the deployed Defter contract, reduced to the
// methods and events the wallet consumes.
const DefterABI = `[
{"type":"function","name":"openLine","inputs":[{"name":"maturityDate","type":"uint256"},{"name":"unit","type":"address"},{"name":"receiver","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"transferLines","inputs":[{"name":"lineIDs","type":"bytes32[]"},{"name":"amounts","type":"uint256[]"},{"name":"to","type":"address"}],"outputs":[]},
{"type":"function","name":"closeLine","inputs":[{"name":"maturityDate","type":"uint256"},{"name":"unit","type":"address"},{"name":"totalAmount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"withdraw","inputs":[{"name":"lineID","type":"bytes32"},{"name":"unit","type":"address"}],"outputs":[]},
{"type":"function","name":"getBalances","inputs":[{"name":"lineID","type":"bytes32"},{"name":"holder","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
{"type":"event","name":"LineOpened","inputs":[{"name":"lineID","type":"bytes32","indexed":true},{"name":"issuer","type":"address","indexed":true},{"name":"receiver","type":"address","indexed":true},{"name":"unit","type":"address","indexed":false},{"name":"amount","type":"uint256","indexed":false},{"name":"maturityDate","type":"uint256","indexed":false}]},
{"type":"event","name":"LineTransferred","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"lineID","type":"bytes32","indexed":false},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"LinesTransferred","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"lineIDs","type":"bytes32[]","indexed":false},{"name":"amounts","type":"uint256[]","indexed":false}]},
{"type":"event","name":"LineClosed","inputs":[{"name":"lineID","type":"bytes32","indexed":true},{"name":"issuer","type":"address","indexed":true}]},
{"type":"event","name":"Withdrawn","inputs":[{"name":"lineID","type":"bytes32","indexed":true},{"name":"receiver","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

// Contract talks to a deployed Defter instance through a go-ethereum backend.
// It implements Source.
type Contract struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
	opts    *bind.TransactOpts
}

var _ Source = (*Contract)(nil)

// Dial connects to the node at rpcURL and binds the contract at addr. The
// transact options carry the wallet's signer; they may be nil for a
// read-only (watch/replay) wallet.
func Dial(ctx context.Context, rpcURL string, addr common.Address, opts *bind.TransactOpts) (*Contract, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to node %s: %v", rpcURL, err)
	}
	return NewContract(addr, client, opts)
}

// NewContract binds the contract at addr on an existing backend.
func NewContract(addr common.Address, backend bind.ContractBackend, opts *bind.TransactOpts) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(DefterABI))
	if err != nil {
		return nil, fmt.Errorf("error parsing contract ABI: %v", err)
	}
	return &Contract{
		address: addr,
		abi:     parsed,
		bound:   bind.NewBoundContract(addr, parsed, backend, backend, backend),
		opts:    opts,
	}, nil
}

// Address returns the bound contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.opts == nil {
		return nil, fmt.Errorf("wallet has no signer; write operations unavailable")
	}
	opts := *c.opts
	opts.Context = ctx
	return &opts, nil
}

func (c *Contract) OpenLine(ctx context.Context, maturityDate uint64, unit common.Address, receiver common.Address, amount *big.Int) (common.Hash, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := c.bound.Transact(opts, "openLine", new(big.Int).SetUint64(maturityDate), unit, receiver, amount)
	if err != nil {
		return common.Hash{}, classifyRejection(err)
	}
	return tx.Hash(), nil
}

func (c *Contract) TransferLines(ctx context.Context, lineIDs []common.Hash, amounts []*big.Int, to common.Address) (common.Hash, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	ids := make([][32]byte, len(lineIDs))
	for i, id := range lineIDs {
		ids[i] = id
	}
	tx, err := c.bound.Transact(opts, "transferLines", ids, amounts, to)
	if err != nil {
		return common.Hash{}, classifyRejection(err)
	}
	return tx.Hash(), nil
}

func (c *Contract) CloseLine(ctx context.Context, maturityDate uint64, unit common.Address, totalAmount *big.Int) (common.Hash, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := c.bound.Transact(opts, "closeLine", new(big.Int).SetUint64(maturityDate), unit, totalAmount)
	if err != nil {
		return common.Hash{}, classifyRejection(err)
	}
	return tx.Hash(), nil
}

func (c *Contract) Withdraw(ctx context.Context, lineID common.Hash, unit common.Address) (common.Hash, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := c.bound.Transact(opts, "withdraw", [32]byte(lineID), unit)
	if err != nil {
		return common.Hash{}, classifyRejection(err)
	}
	return tx.Hash(), nil
}

func (c *Contract) BalanceOf(ctx context.Context, lineID common.Hash, holder common.Address) (*big.Int, error) {
	var out []interface{}
	err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getBalances", [32]byte(lineID), holder)
	if err != nil {
		return nil, fmt.Errorf("error calling getBalances: %v", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Contract) FilterOpens(ctx context.Context, fromBlock uint64, toBlock *uint64, lineID *common.Hash, issuer *common.Address) ([]LineOpened, error) {
	opts := &bind.FilterOpts{Start: fromBlock, End: toBlock, Context: ctx}
	logs, sub, err := c.bound.FilterLogs(opts, "LineOpened", hashQuery(lineID), addrQuery(issuer), nil)
	if err != nil {
		return nil, fmt.Errorf("error filtering LineOpened logs: %v", err)
	}
	defer sub.Unsubscribe()

	var events []LineOpened
	for {
		l, ok, err := nextLog(logs, sub)
		if err != nil {
			return nil, err
		}
		if !ok {
			return events, nil
		}
		ev, err := c.unpackOpen(l)
		if err != nil {
			log.Printf("Skipping undecodable LineOpened log in tx %s: %v", l.TxHash, err)
			continue
		}
		events = append(events, ev)
	}
}

func (c *Contract) FilterTransfers(ctx context.Context, fromBlock uint64, toBlock *uint64, from, to *common.Address) ([]LineTransferred, error) {
	opts := &bind.FilterOpts{Start: fromBlock, End: toBlock, Context: ctx}

	var events []LineTransferred
	for _, name := range []string{"LineTransferred", "LinesTransferred"} {
		logs, sub, err := c.bound.FilterLogs(opts, name, addrQuery(from), addrQuery(to))
		if err != nil {
			return nil, fmt.Errorf("error filtering %s logs: %v", name, err)
		}
		for {
			l, ok, err := nextLog(logs, sub)
			if err != nil {
				sub.Unsubscribe()
				return nil, err
			}
			if !ok {
				break
			}
			ev, err := c.unpackTransfer(l)
			if err != nil {
				log.Printf("Skipping undecodable %s log in tx %s: %v", name, l.TxHash, err)
				continue
			}
			events = append(events, ev)
		}
		sub.Unsubscribe()
	}

	// Single and batch logs come from two queries; restore chain order.
	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	return events, nil
}

func (c *Contract) WatchOpens(ctx context.Context, issuer *common.Address, sink chan<- LineOpened) (event.Subscription, error) {
	logs, sub, err := c.bound.WatchLogs(&bind.WatchOpts{Context: ctx}, "LineOpened", nil, addrQuery(issuer), nil)
	if err != nil {
		return nil, fmt.Errorf("error watching LineOpened logs: %v", err)
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				ev, err := c.unpackOpen(l)
				if err != nil {
					log.Printf("Skipping undecodable LineOpened log in tx %s: %v", l.TxHash, err)
					continue
				}
				select {
				case sink <- ev:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (c *Contract) WatchTransfers(ctx context.Context, from, to *common.Address, sink chan<- LineTransferred) (event.Subscription, error) {
	singles, singleSub, err := c.bound.WatchLogs(&bind.WatchOpts{Context: ctx}, "LineTransferred", addrQuery(from), addrQuery(to))
	if err != nil {
		return nil, fmt.Errorf("error watching LineTransferred logs: %v", err)
	}
	batches, batchSub, err := c.bound.WatchLogs(&bind.WatchOpts{Context: ctx}, "LinesTransferred", addrQuery(from), addrQuery(to))
	if err != nil {
		singleSub.Unsubscribe()
		return nil, fmt.Errorf("error watching LinesTransferred logs: %v", err)
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer singleSub.Unsubscribe()
		defer batchSub.Unsubscribe()
		for {
			var l types.Log
			select {
			case l = <-singles:
			case l = <-batches:
			case err := <-singleSub.Err():
				return err
			case err := <-batchSub.Err():
				return err
			case <-quit:
				return nil
			}
			ev, err := c.unpackTransfer(l)
			if err != nil {
				log.Printf("Skipping undecodable transfer log in tx %s: %v", l.TxHash, err)
				continue
			}
			select {
			case sink <- ev:
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (c *Contract) WatchCloses(ctx context.Context, issuer *common.Address, sink chan<- LineClosed) (event.Subscription, error) {
	logs, sub, err := c.bound.WatchLogs(&bind.WatchOpts{Context: ctx}, "LineClosed", nil, addrQuery(issuer))
	if err != nil {
		return nil, fmt.Errorf("error watching LineClosed logs: %v", err)
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				var raw lineClosedLog
				if err := c.bound.UnpackLog(&raw, "LineClosed", l); err != nil {
					log.Printf("Skipping undecodable LineClosed log in tx %s: %v", l.TxHash, err)
					continue
				}
				ev := LineClosed{EventLog: envelope(l), LineID: common.Hash(raw.LineID), Issuer: raw.Issuer}
				select {
				case sink <- ev:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (c *Contract) WatchWithdrawals(ctx context.Context, receiver *common.Address, sink chan<- Withdrawn) (event.Subscription, error) {
	logs, sub, err := c.bound.WatchLogs(&bind.WatchOpts{Context: ctx}, "Withdrawn", nil, addrQuery(receiver))
	if err != nil {
		return nil, fmt.Errorf("error watching Withdrawn logs: %v", err)
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				var raw withdrawnLog
				if err := c.bound.UnpackLog(&raw, "Withdrawn", l); err != nil {
					log.Printf("Skipping undecodable Withdrawn log in tx %s: %v", l.TxHash, err)
					continue
				}
				ev := Withdrawn{EventLog: envelope(l), LineID: common.Hash(raw.LineID), Receiver: raw.Receiver, Amount: raw.Amount}
				select {
				case sink <- ev:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// Log decoding targets; field names follow the ABI argument names.

type lineOpenedLog struct {
	LineID       [32]byte
	Issuer       common.Address
	Receiver     common.Address
	Unit         common.Address
	Amount       *big.Int
	MaturityDate *big.Int
}

type lineTransferredLog struct {
	From   common.Address
	To     common.Address
	LineID [32]byte
	Amount *big.Int
}

type linesTransferredLog struct {
	From    common.Address
	To      common.Address
	LineIDs [][32]byte
	Amounts []*big.Int
}

type lineClosedLog struct {
	LineID [32]byte
	Issuer common.Address
}

type withdrawnLog struct {
	LineID   [32]byte
	Receiver common.Address
	Amount   *big.Int
}

func (c *Contract) unpackOpen(l types.Log) (LineOpened, error) {
	var raw lineOpenedLog
	if err := c.bound.UnpackLog(&raw, "LineOpened", l); err != nil {
		return LineOpened{}, err
	}
	return LineOpened{
		EventLog:     envelope(l),
		LineID:       common.Hash(raw.LineID),
		Issuer:       raw.Issuer,
		Receiver:     raw.Receiver,
		Unit:         raw.Unit,
		Amount:       raw.Amount,
		MaturityDate: raw.MaturityDate.Uint64(),
	}, nil
}

func (c *Contract) unpackTransfer(l types.Log) (LineTransferred, error) {
	if len(l.Topics) > 0 && l.Topics[0] == c.abi.Events["LineTransferred"].ID {
		var raw lineTransferredLog
		if err := c.bound.UnpackLog(&raw, "LineTransferred", l); err != nil {
			return LineTransferred{}, err
		}
		return LineTransferred{
			EventLog: envelope(l),
			From:     raw.From,
			To:       raw.To,
			Pairs:    []TransferPair{{LineID: common.Hash(raw.LineID), Amount: raw.Amount}},
		}, nil
	}
	var raw linesTransferredLog
	if err := c.bound.UnpackLog(&raw, "LinesTransferred", l); err != nil {
		return LineTransferred{}, err
	}
	if len(raw.LineIDs) != len(raw.Amounts) {
		return LineTransferred{}, fmt.Errorf("batch length mismatch: %d lineIDs, %d amounts", len(raw.LineIDs), len(raw.Amounts))
	}
	pairs := make([]TransferPair, len(raw.LineIDs))
	for i := range raw.LineIDs {
		pairs[i] = TransferPair{LineID: common.Hash(raw.LineIDs[i]), Amount: raw.Amounts[i]}
	}
	return LineTransferred{EventLog: envelope(l), From: raw.From, To: raw.To, Pairs: pairs}, nil
}

func envelope(l types.Log) EventLog {
	return EventLog{TxHash: l.TxHash, LogIndex: l.Index, BlockNumber: l.BlockNumber}
}

func addrQuery(a *common.Address) []interface{} {
	if a == nil {
		return nil
	}
	return []interface{}{*a}
}

func hashQuery(h *common.Hash) []interface{} {
	if h == nil {
		return nil
	}
	return []interface{}{*h}
}

// nextLog drains a filter result channel the way generated iterators do:
// buffered logs first, then the subscription's terminal error.
func nextLog(logs chan types.Log, sub event.Subscription) (types.Log, bool, error) {
	select {
	case l, ok := <-logs:
		return l, ok, nil
	default:
	}
	select {
	case l, ok := <-logs:
		return l, ok, nil
	case err := <-sub.Err():
		return types.Log{}, false, err
	}
}
