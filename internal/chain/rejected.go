package chain

import (
	"fmt"
	"strings"
)

// Rejection reasons the contract is known to revert with.
const (
	ReasonInsufficientBalance = "insufficient balance"
	ReasonZeroAmount          = "zero amount"
	ReasonZeroReceiver        = "zero receiver"
	ReasonStaleAuthorization  = "stale authorization"
	ReasonUnknown             = "rejected"
)

// RejectedError reports that the contract refused a write because it
// violates a business rule. Nothing was recorded locally; the caller may
// retry with corrected arguments.
type RejectedError struct {
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submission rejected (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("submission rejected (%s)", e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// classifyRejection maps a node error onto a known rejection reason by its
// revert message. Errors that are not reverts (connection loss, timeouts)
// pass through unchanged.
func classifyRejection(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "revert") && !strings.Contains(msg, "execution reverted") {
		return err
	}
	switch {
	case strings.Contains(msg, "insufficient"):
		return &RejectedError{Reason: ReasonInsufficientBalance, Err: err}
	case strings.Contains(msg, "zero amount"):
		return &RejectedError{Reason: ReasonZeroAmount, Err: err}
	case strings.Contains(msg, "zero address"), strings.Contains(msg, "zero receiver"):
		return &RejectedError{Reason: ReasonZeroReceiver, Err: err}
	case strings.Contains(msg, "nonce"), strings.Contains(msg, "signature"):
		return &RejectedError{Reason: ReasonStaleAuthorization, Err: err}
	default:
		return &RejectedError{Reason: ReasonUnknown, Err: err}
	}
}
