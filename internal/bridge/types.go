package bridge

import (
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal statuses admit no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	ErrInvalidAmount       = errors.New("invalid bridge amount")
	ErrUnsupportedChain    = errors.New("unsupported chain")
	ErrInsufficientBalance = errors.New("insufficient source balance")
	ErrTransactionNotFound = errors.New("bridge transaction not found")
	ErrOrchestratorClosed  = errors.New("bridge orchestrator closed")
)

// BridgeTransaction tracks one cross-chain transfer through its burn,
// relay and mint steps. Amounts are exact decimals, never floats.
type BridgeTransaction struct {
	ID          string            `json:"id"`
	SourceChain string            `json:"sourceChain"`
	DestChain   string            `json:"destChain"`
	SourceToken string            `json:"sourceToken"`
	DestToken   string            `json:"destToken"`
	Amount      decimal.Decimal   `json:"amount"`
	DestAmount  decimal.Decimal   `json:"destAmount"`
	Sender      ethcommon.Address `json:"sender"`
	Recipient   ethcommon.Address `json:"recipient"`
	Status      Status            `json:"status"`

	// SourceTxHash is retained through failure: a destination-side failure
	// after a successful source settlement needs it for reconciliation.
	SourceTxHash string `json:"sourceTxHash,omitempty"`
	DestTxHash   string `json:"destTxHash,omitempty"`

	// Simulated marks settlements that never touched a real bridge; a
	// simulated hash must never be mistaken for a real one.
	Simulated bool `json:"simulated"`

	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	ETASeconds    int64     `json:"etaSeconds"`
}

func (tx *BridgeTransaction) Copy() *BridgeTransaction {
	cp := *tx
	return &cp
}

// Quote is a priced route for a transfer. Fallback quotes come from the
// static-rate estimate and carry degraded confidence.
type Quote struct {
	DestAmount decimal.Decimal `json:"destAmount"`
	FeeAmount  decimal.Decimal `json:"feeAmount"`
	ETASeconds int64           `json:"etaSeconds"`
	RouteID    string          `json:"bridgeRouteId,omitempty"`
	Fallback   bool            `json:"fallback"`
}
