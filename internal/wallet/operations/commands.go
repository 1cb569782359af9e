package operations

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	walletstatedb "github.com/defterhane/defter-wallet/internal/database"
	"github.com/defterhane/defter-wallet/internal/logger"
)

const commandTimeout = 2 * time.Minute

func parseAddressArg(s, what string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", what, s)
	}
	return common.HexToAddress(s), nil
}

func parseLineIDArg(s string) (common.Hash, error) {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return common.Hash{}, fmt.Errorf("invalid line id: %q", s)
	}
	return common.HexToHash(s), nil
}

func parseAmountArg(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	return amount, nil
}

// OpenLineAPI submits an open through the facade for IPC clients.
func (s *WalletServer) OpenLineAPI(maturityStr, unitStr, receiverStr, amountStr string) (map[string]interface{}, error) {
	maturity, err := strconv.ParseUint(maturityStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid maturity date: %q", maturityStr)
	}
	unit, err := parseAddressArg(unitStr, "unit")
	if err != nil {
		return nil, err
	}
	receiver, err := parseAddressArg(receiverStr, "receiver")
	if err != nil {
		return nil, err
	}
	amount, err := parseAmountArg(amountStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	lineID, txHash, err := s.API.Wallet.OpenLine(ctx, maturity, unit, receiver, amount)
	if err != nil {
		return nil, err
	}

	s.persistState()
	return map[string]interface{}{
		"line_id": lineID.Hex(),
		"txid":    txHash.Hex(),
		"status":  "pending",
	}, nil
}

// TransferLineAPI submits a single line transfer for IPC clients.
func (s *WalletServer) TransferLineAPI(lineIDStr, amountStr, toStr string) (map[string]interface{}, error) {
	lineID, err := parseLineIDArg(lineIDStr)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmountArg(amountStr)
	if err != nil {
		return nil, err
	}
	to, err := parseAddressArg(toStr, "recipient")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	txHash, err := s.API.Wallet.TransferLine(ctx, lineID, amount, to)
	if err != nil {
		return nil, err
	}

	s.persistState()
	return map[string]interface{}{
		"txid":   txHash.Hex(),
		"status": "pending",
	}, nil
}

func (s *WalletServer) CloseLineAPI(maturityStr, unitStr, totalStr string) (map[string]interface{}, error) {
	maturity, err := strconv.ParseUint(maturityStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid maturity date: %q", maturityStr)
	}
	unit, err := parseAddressArg(unitStr, "unit")
	if err != nil {
		return nil, err
	}
	total, err := parseAmountArg(totalStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	txHash, err := s.API.Wallet.CloseLine(ctx, maturity, unit, total)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{"txid": txHash.Hex(), "status": "pending"}, nil
}

func (s *WalletServer) WithdrawAPI(lineIDStr, unitStr string) (map[string]interface{}, error) {
	lineID, err := parseLineIDArg(lineIDStr)
	if err != nil {
		return nil, err
	}
	unit, err := parseAddressArg(unitStr, "unit")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	txHash, err := s.API.Wallet.Withdraw(ctx, lineID, unit)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{"txid": txHash.Hex(), "status": "pending"}, nil
}

func (s *WalletServer) BalanceAPI(lineIDStr string) (map[string]interface{}, error) {
	lineID, err := parseLineIDArg(lineIDStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	balance, err := s.API.Wallet.Balance(ctx, lineID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"line_id": lineID.Hex(),
		"balance": balance.String(),
	}, nil
}

func (s *WalletServer) GetLineAPI(lineIDStr string) (map[string]interface{}, error) {
	lineID, err := parseLineIDArg(lineIDStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	line, err := s.API.Wallet.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return map[string]interface{}{"found": false}, nil
	}

	return map[string]interface{}{
		"found":         true,
		"line_id":       line.LineID.Hex(),
		"issuer":        line.Issuer.Hex(),
		"maturity_date": line.MaturityDate,
		"unit":          line.Unit.Hex(),
		"status":        line.Status.String(),
	}, nil
}

func (s *WalletServer) LineHistoryAPI(lineIDStr string) (map[string]interface{}, error) {
	lineID, err := parseLineIDArg(lineIDStr)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"line_id":  lineID.Hex(),
		"sent":     s.API.Wallet.Sent(lineID),
		"received": s.API.Wallet.Received(lineID),
	}, nil
}

func (s *WalletServer) PendingAPI(lineIDStr string) (map[string]interface{}, error) {
	lineID, err := parseLineIDArg(lineIDStr)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"line_id": lineID.Hex(),
		"pending": s.API.Wallet.Pending(lineID),
	}, nil
}

func (s *WalletServer) ListLinesAPI() (map[string]interface{}, error) {
	lineIDs := s.API.Wallet.KnownLines()
	ids := make([]string, len(lineIDs))
	for i, id := range lineIDs {
		ids[i] = id.Hex()
	}
	return map[string]interface{}{"line_ids": ids}, nil
}

func (s *WalletServer) ExitWalletCMD() error {
	exitMutex.Lock()
	defer exitMutex.Unlock()

	if exiting {
		return nil // Exit is already in progress, do nothing
	}

	engaged = true
	defer func() { engaged = false }()

	exiting = true
	fmt.Println("Initiating graceful shutdown...")

	s.persistState()
	s.API.Wallet.Close()
	logger.Info("Wallet shut down")

	return nil
}

func (s *WalletServer) ExitWallet() error {
	exitMutex.Lock()
	defer exitMutex.Unlock()

	if exiting {
		return nil // Exit is already in progress, do nothing
	}

	engaged = true
	defer func() { engaged = false }()

	fmt.Print("Are you sure you want to exit? (y/n): ")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	confirmation := strings.ToLower(strings.TrimSpace(scanner.Text()))

	if confirmation == "y" {
		exiting = true
		fmt.Println("Initiating graceful shutdown...")
		s.persistState()
		s.API.Wallet.Close()
	} else {
		fmt.Println("Shutdown cancelled.")
	}
	return nil
}

// PerformOpenLine walks the user through opening a line in the terminal.
func (s *WalletServer) PerformOpenLine() error {
	engaged = true
	defer func() { engaged = false }()

	scanner := bufio.NewScanner(os.Stdin)

	fmt.Print("Maturity date (unix timestamp): ")
	scanner.Scan()
	maturityStr := strings.TrimSpace(scanner.Text())

	fmt.Print("Unit token address: ")
	scanner.Scan()
	unitStr := strings.TrimSpace(scanner.Text())

	fmt.Print("Receiver address: ")
	scanner.Scan()
	receiverStr := strings.TrimSpace(scanner.Text())

	fmt.Print("Amount: ")
	scanner.Scan()
	amountStr := strings.TrimSpace(scanner.Text())

	result, err := s.OpenLineAPI(maturityStr, unitStr, receiverStr, amountStr)
	if err != nil {
		return err
	}

	fmt.Printf("Line %s opened, transaction %s\n", result["line_id"], result["txid"])
	fmt.Println("The entry stays pending until the confirmation event arrives.")
	return nil
}

// PerformTransfer walks the user through a transfer in the terminal.
func (s *WalletServer) PerformTransfer() error {
	engaged = true
	defer func() { engaged = false }()

	scanner := bufio.NewScanner(os.Stdin)

	fmt.Print("Line id: ")
	scanner.Scan()
	lineIDStr := strings.TrimSpace(scanner.Text())

	fmt.Print("Amount: ")
	scanner.Scan()
	amountStr := strings.TrimSpace(scanner.Text())

	fmt.Print("Recipient address: ")
	scanner.Scan()
	toStr := strings.TrimSpace(scanner.Text())

	result, err := s.TransferLineAPI(lineIDStr, amountStr, toStr)
	if err != nil {
		return err
	}

	fmt.Printf("Transfer submitted, transaction %s\n", result["txid"])
	return nil
}

func (s *WalletServer) ShowKnownLines() error {
	engaged = true
	defer func() { engaged = false }()

	lineIDs := s.API.Wallet.KnownLines()
	if len(lineIDs) == 0 {
		fmt.Println("No lines observed yet.")
		return nil
	}

	fmt.Printf("%d line(s) observed:\n", len(lineIDs))
	for _, id := range lineIDs {
		fmt.Printf("  %s\n", id.Hex())
	}
	return nil
}

func (s *WalletServer) ShowLineHistory() error {
	engaged = true
	defer func() { engaged = false }()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("Line id: ")
	scanner.Scan()
	lineID, err := parseLineIDArg(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return err
	}

	sent := s.API.Wallet.Sent(lineID)
	received := s.API.Wallet.Received(lineID)
	pending := s.API.Wallet.Pending(lineID)

	fmt.Printf("Sent (%d):\n", len(sent))
	for _, e := range sent {
		fmt.Printf("  %s  %s -> %s  tx %s\n", e.Date.Format(timeFormat), e.Amount, e.Receiver.Hex(), e.TxHash.Hex())
	}
	fmt.Printf("Received (%d):\n", len(received))
	for _, e := range received {
		fmt.Printf("  %s  %s <- %s  tx %s\n", e.Date.Format(timeFormat), e.Amount, e.Sender.Hex(), e.TxHash.Hex())
	}
	fmt.Printf("Pending (%d):\n", len(pending))
	for _, e := range pending {
		validated := " "
		if e.Validated {
			validated = "validated"
		}
		fmt.Printf("  %s  %s -> %s  tx %s  %s\n", e.TxType, e.Amount, e.Receiver.Hex(), e.TxHash.Hex(), validated)
	}

	if checkpoint, err := walletstatedb.GetLastReplayedBlock(); err == nil {
		fmt.Printf("Replayed through block %d.\n", checkpoint)
	} else {
		log.Printf("Error reading replay checkpoint: %v", err)
	}
	return nil
}
