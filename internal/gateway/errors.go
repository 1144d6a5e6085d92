package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// SponsorshipCode classifies why a paymaster declined an operation. The
// caller's fallback policy depends on the class, so these are structured
// errors rather than opaque strings.
type SponsorshipCode int

const (
	SponsorshipUnknown SponsorshipCode = iota
	SponsorshipInsufficientFunds
	SponsorshipPolicyRejected
	SponsorshipOperationIneligible
)

func (c SponsorshipCode) String() string {
	switch c {
	case SponsorshipInsufficientFunds:
		return "insufficient paymaster funds"
	case SponsorshipPolicyRejected:
		return "policy rejected"
	case SponsorshipOperationIneligible:
		return "operation ineligible"
	}
	return "unknown"
}

type SponsorshipError struct {
	Code   SponsorshipCode
	Detail string
}

func (e *SponsorshipError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("sponsorship failed: %s", e.Code)
	}
	return fmt.Sprintf("sponsorship failed: %s: %s", e.Code, e.Detail)
}

// AsSponsorshipError unwraps err into a SponsorshipError when it carries one.
func AsSponsorshipError(err error) (*SponsorshipError, bool) {
	var se *SponsorshipError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Paymaster RPC error codes, per the sponsorship service contract.
const (
	rpcCodeInsufficientFunds   = -32050
	rpcCodePolicyRejected      = -32051
	rpcCodeOperationIneligible = -32052
)

func classifySponsorshipError(err error) *SponsorshipError {
	detail := err.Error()
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case rpcCodeInsufficientFunds:
			return &SponsorshipError{Code: SponsorshipInsufficientFunds, Detail: detail}
		case rpcCodePolicyRejected:
			return &SponsorshipError{Code: SponsorshipPolicyRejected, Detail: detail}
		case rpcCodeOperationIneligible:
			return &SponsorshipError{Code: SponsorshipOperationIneligible, Detail: detail}
		}
	}
	lowered := strings.ToLower(detail)
	switch {
	case strings.Contains(lowered, "insufficient"):
		return &SponsorshipError{Code: SponsorshipInsufficientFunds, Detail: detail}
	case strings.Contains(lowered, "policy"):
		return &SponsorshipError{Code: SponsorshipPolicyRejected, Detail: detail}
	case strings.Contains(lowered, "ineligible"):
		return &SponsorshipError{Code: SponsorshipOperationIneligible, Detail: detail}
	}
	return &SponsorshipError{Code: SponsorshipUnknown, Detail: detail}
}

// SubmissionError is a bundler rejection of a signed operation. Submission
// errors are never retried automatically: resubmitting a rejected operation
// risks nonce conflicts.
type SubmissionError struct {
	Code    int
	Message string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("bundler rejected operation (code %d): %s", e.Code, e.Message)
}

// ReceiptTimeoutError is the third polling outcome beside success and
// failure: the deadline passed with no receipt. The operation may still land
// later; the handle is retained so the caller can resume polling.
type ReceiptTimeoutError struct {
	Handle  OperationHandle
	Elapsed time.Duration
}

func (e *ReceiptTimeoutError) Error() string {
	return fmt.Sprintf("no receipt for %s after %s", e.Handle.Hex(), e.Elapsed)
}

// AsReceiptTimeout unwraps err into a ReceiptTimeoutError when it is one.
func AsReceiptTimeout(err error) (*ReceiptTimeoutError, bool) {
	var te *ReceiptTimeoutError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// ErrReceiptNotFound means the bundler has no receipt for the handle yet.
var ErrReceiptNotFound = errors.New("receipt not available yet")
