package api

import (
	"github.com/defterhane/defter-wallet/internal/wallet"
)

type API struct {
	Wallet   *wallet.Wallet
	Name     string
	HttpMode bool
}

// OpenLineRequest asks the wallet to issue a new credit line.
type OpenLineRequest struct {
	MaturityDate uint64 `json:"maturity_date"`
	Unit         string `json:"unit"`
	Receiver     string `json:"receiver"`
	Amount       string `json:"amount"`
}

// TransferRequest moves amounts on one or more lines to a single holder.
type TransferRequest struct {
	LineIDs []string `json:"line_ids"`
	Amounts []string `json:"amounts"`
	To      string   `json:"to"`
}

// CloseLineRequest settles one of the wallet's own lines.
type CloseLineRequest struct {
	MaturityDate uint64 `json:"maturity_date"`
	Unit         string `json:"unit"`
	TotalAmount  string `json:"total_amount"`
}

// WithdrawRequest redeems the wallet's matured balance on a line.
type WithdrawRequest struct {
	LineID string `json:"line_id"`
	Unit   string `json:"unit"`
}

type WriteResponse struct {
	TxID    string `json:"txid"`
	LineID  string `json:"line_id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type contextKey string
