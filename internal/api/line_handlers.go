package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defterhane/defter-wallet/internal/chain"
	"github.com/defterhane/defter-wallet/internal/wallet"
)

func parseAddr(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseLineID(s string) (common.Hash, error) {
	if len(s) != 66 || s[:2] != "0x" {
		return common.Hash{}, fmt.Errorf("invalid line id %q", s)
	}
	return common.HexToHash(s), nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func writeError(w http.ResponseWriter, err error) {
	var rejected *chain.RejectedError
	status := "failed"
	if errors.As(err, &rejected) {
		status = "rejected"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WriteResponse{Status: status, Message: err.Error()})
}

func (s *API) HandleOpenLine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req OpenLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	unit, err := parseAddr(req.Unit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	receiver, err := parseAddr(req.Receiver)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	lineID, txHash, err := s.Wallet.OpenLine(r.Context(), req.MaturityDate, unit, receiver, amount)
	if err != nil {
		log.Printf("open line failed: %v", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WriteResponse{
		TxID:    txHash.Hex(),
		LineID:  lineID.Hex(),
		Status:  "pending",
		Message: "Open submitted. The entry validates once the confirmation event arrives.",
	})
}

func (s *API) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	to, err := parseAddr(req.To)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	lineIDs := make([]common.Hash, len(req.LineIDs))
	for i, s := range req.LineIDs {
		if lineIDs[i], err = parseLineID(s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	amounts := make([]*big.Int, len(req.Amounts))
	for i, s := range req.Amounts {
		if amounts[i], err = parseAmount(s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	txHash, err := s.Wallet.TransferLines(r.Context(), lineIDs, amounts, to)
	if err != nil {
		log.Printf("transfer failed: %v", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WriteResponse{
		TxID:    txHash.Hex(),
		Status:  "pending",
		Message: fmt.Sprintf("Transfer of %d line(s) submitted.", len(lineIDs)),
	})
}

func (s *API) HandleCloseLine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CloseLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	unit, err := parseAddr(req.Unit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	totalAmount, err := parseAmount(req.TotalAmount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	txHash, err := s.Wallet.CloseLine(r.Context(), req.MaturityDate, unit, totalAmount)
	if err != nil {
		log.Printf("close line failed: %v", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WriteResponse{TxID: txHash.Hex(), Status: "pending"})
}

func (s *API) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	lineID, err := parseLineID(req.LineID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	unit, err := parseAddr(req.Unit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	txHash, err := s.Wallet.Withdraw(r.Context(), lineID, unit)
	if err != nil {
		log.Printf("withdraw failed: %v", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WriteResponse{TxID: txHash.Hex(), Status: "pending"})
}

func (s *API) HandleBalance(w http.ResponseWriter, r *http.Request) {
	lineID, err := parseLineID(r.URL.Query().Get("line_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	balance, err := s.Wallet.Balance(r.Context(), lineID)
	if err != nil {
		log.Printf("balance query failed: %v", err)
		http.Error(w, "Failed to query balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"line_id": lineID.Hex(),
		"balance": balance.String(),
	})
}

func (s *API) HandleGetLine(w http.ResponseWriter, r *http.Request) {
	lineID, err := parseLineID(r.URL.Query().Get("line_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	line, err := s.Wallet.GetLine(r.Context(), lineID)
	if err != nil {
		log.Printf("line query failed: %v", err)
		http.Error(w, "Failed to query line", http.StatusInternalServerError)
		return
	}
	if line == nil {
		http.Error(w, "Line not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(line)
}

func (s *API) HandleKnownLines(w http.ResponseWriter, r *http.Request) {
	lineIDs := s.Wallet.KnownLines()
	ids := make([]string, len(lineIDs))
	for i, id := range lineIDs {
		ids[i] = id.Hex()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"line_ids": ids})
}

func (s *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	lineID, err := parseLineID(r.URL.Query().Get("line_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"line_id":  lineID.Hex(),
		"sent":     s.Wallet.Sent(lineID),
		"received": s.Wallet.Received(lineID),
	})
}

func (s *API) HandlePending(w http.ResponseWriter, r *http.Request) {
	lineID, err := parseLineID(r.URL.Query().Get("line_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries := s.Wallet.Pending(lineID)
	if entries == nil {
		entries = []*wallet.PendingEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"line_id": lineID.Hex(),
		"pending": entries,
	})
}
