package bridge

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-gateway/internal/chainstate"
)

const (
	// fallbackETASeconds is reported when the aggregator cannot price the
	// route and the static estimate is used instead.
	fallbackETASeconds = 300

	destinationStepTimeout = 30 * time.Second

	nativeTokenDecimals = 18
)

// Settler performs a chain-level settlement (burn on the source side, mint
// on the destination side) through the account-abstraction pipeline and
// returns the resulting transaction hash.
type Settler interface {
	Settle(ctx context.Context, chainName string, to ethcommon.Address, value *big.Int, callData []byte) (string, error)
}

// Options tune the orchestrator; zero values fall back to safe defaults.
type Options struct {
	RelayInterval     time.Duration
	FallbackFeeRate   decimal.Decimal
	SlippageTolerance string
	// SupportedPairs lists "source:dest" pairs the real bridge path serves;
	// every other pair settles through the simulated demo path.
	SupportedPairs []string
}

// Orchestrator owns BridgeTransaction records and drives each one through
// the pending → processing → completed state machine, falling back to a
// simulated settlement when the real bridge path cannot serve the pair.
type Orchestrator struct {
	store      Store
	aggregator Aggregator
	readers    map[string]chainstate.Reader
	chainIDs   map[string]uint64
	settler    Settler
	logger     logrus.FieldLogger

	relayInterval   time.Duration
	fallbackFeeRate decimal.Decimal
	slippage        string
	supportedPairs  map[string]bool

	timerMu sync.Mutex
	timers  map[string]*time.Timer
	closed  bool

	// transitionMu serializes every status transition. The fsm guards a
	// single record; the lock makes the read-transition-write against the
	// store atomic, so a stale copy can never overwrite a terminal status.
	transitionMu sync.Mutex
}

func NewOrchestrator(
	store Store,
	aggregator Aggregator,
	readers map[string]chainstate.Reader,
	chainIDs map[string]uint64,
	settler Settler,
	opts Options,
	logger logrus.FieldLogger,
) *Orchestrator {
	if opts.RelayInterval <= 0 {
		opts.RelayInterval = 15 * time.Second
	}
	if opts.FallbackFeeRate.IsZero() {
		opts.FallbackFeeRate = decimal.RequireFromString("0.005")
	}
	pairs := make(map[string]bool, len(opts.SupportedPairs))
	for _, pair := range opts.SupportedPairs {
		pairs[pair] = true
	}
	return &Orchestrator{
		store:           store,
		aggregator:      aggregator,
		readers:         readers,
		chainIDs:        chainIDs,
		settler:         settler,
		logger:          logger,
		relayInterval:   opts.RelayInterval,
		fallbackFeeRate: opts.FallbackFeeRate,
		slippage:        opts.SlippageTolerance,
		supportedPairs:  pairs,
		timers:          make(map[string]*time.Timer),
	}
}

// Quote prices a transfer, preferring the aggregator and falling back to a
// static-rate estimate flagged as degraded confidence.
func (o *Orchestrator) Quote(ctx context.Context, sourceChain, destChain, sourceToken, destToken, amount string, recipient ethcommon.Address) (*Quote, error) {
	amt, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	if err := o.checkChains(sourceChain, destChain); err != nil {
		return nil, err
	}

	if o.aggregator != nil {
		req := &QuoteRequest{
			SourceChainID:     o.chainIDs[sourceChain],
			DestChainID:       o.chainIDs[destChain],
			SourceToken:       sourceToken,
			DestToken:         destToken,
			Amount:            amt.String(),
			SlippageTolerance: o.slippage,
		}
		if recipient != (ethcommon.Address{}) {
			req.Recipient = recipient.Hex()
		}
		quote, err := o.aggregator.Quote(ctx, req)
		if err == nil {
			return quote, nil
		}
		o.logger.WithFields(logrus.Fields{
			"sourceChain": sourceChain,
			"destChain":   destChain,
			"err":         err,
		}).Warn("Aggregator quote unavailable, returning static fallback quote")
	}

	fee := amt.Mul(o.fallbackFeeRate)
	return &Quote{
		DestAmount: amt.Sub(fee),
		FeeAmount:  fee,
		ETASeconds: fallbackETASeconds,
		Fallback:   true,
	}, nil
}

// ExecuteRequest describes one cross-chain transfer.
type ExecuteRequest struct {
	SourceChain string
	DestChain   string
	SourceToken string
	DestToken   string
	Amount      string
	Sender      ethcommon.Address
	Recipient   ethcommon.Address
}

// Execute runs the transfer's source side and schedules the destination
// side. Preconditions (amount, chains, balance) are checked before any
// record is created: a rejected request leaves no trace in the store.
func (o *Orchestrator) Execute(ctx context.Context, req *ExecuteRequest) (*BridgeTransaction, error) {
	o.timerMu.Lock()
	closed := o.closed
	o.timerMu.Unlock()
	if closed {
		return nil, ErrOrchestratorClosed
	}

	amt, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := o.checkChains(req.SourceChain, req.DestChain); err != nil {
		return nil, err
	}

	balance, err := o.readers[req.SourceChain].BalanceAt(ctx, req.Sender)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s balance on %s", req.Sender, req.SourceChain)
	}
	amountWei := amt.Shift(nativeTokenDecimals).BigInt()
	if balance.Cmp(amountWei) < 0 {
		return nil, errors.Wrapf(ErrInsufficientBalance,
			"balance %s, need %s", decimal.NewFromBigInt(balance, -nativeTokenDecimals), amt)
	}

	quote, err := o.Quote(ctx, req.SourceChain, req.DestChain, req.SourceToken, req.DestToken, req.Amount, req.Recipient)
	if err != nil {
		return nil, err
	}

	tx := &BridgeTransaction{
		ID:          uuid.NewString(),
		SourceChain: req.SourceChain,
		DestChain:   req.DestChain,
		SourceToken: req.SourceToken,
		DestToken:   req.DestToken,
		Amount:      amt,
		DestAmount:  quote.DestAmount,
		Sender:      req.Sender,
		Recipient:   req.Recipient,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
		ETASeconds:  quote.ETASeconds,
	}
	o.store.Put(tx)

	if err := o.settleSource(ctx, tx, quote); err != nil {
		if failed := o.failTransaction(tx.ID, err.Error()); failed != nil {
			return failed, err
		}
		return tx.Copy(), err
	}

	stored, err := o.transitionAndStore(tx.ID, eventProcess, func(cur *BridgeTransaction) {
		cur.SourceTxHash = tx.SourceTxHash
		cur.Simulated = tx.Simulated
	})
	if err != nil {
		return nil, err
	}
	o.scheduleDestination(tx.ID)

	o.logger.WithFields(logrus.Fields{
		"id":           stored.ID,
		"sourceTxHash": stored.SourceTxHash,
		"simulated":    stored.Simulated,
	}).Info("Bridge source settlement submitted")
	return stored, nil
}

// transitionAndStore applies event to the stored record and writes it back in
// one critical section. Every status writer goes through here, so a terminal
// status set by a concurrent Cancel or failure is re-read before the
// transition and can never be overwritten by a stale copy.
func (o *Orchestrator) transitionAndStore(id, event string, mutate func(tx *BridgeTransaction)) (*BridgeTransaction, error) {
	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	tx, ok := o.store.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrTransactionNotFound, "id %s", id)
	}
	if err := transition(tx, event); err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(tx)
	}
	o.store.Put(tx)
	return tx, nil
}

// settleSource performs the source-side settlement. Pairs the real bridge
// serves go through the aggregator-built call and the pipeline settler;
// everything else gets a simulated hash, explicitly marked as such.
func (o *Orchestrator) settleSource(ctx context.Context, tx *BridgeTransaction, quote *Quote) error {
	pair := tx.SourceChain + ":" + tx.DestChain
	realPath := o.supportedPairs[pair] && o.settler != nil && o.aggregator != nil && !quote.Fallback

	if !realPath {
		tx.Simulated = true
		tx.SourceTxHash = simulatedHash(tx.ID, "burn")
		return nil
	}

	call, err := o.aggregator.BuildTransaction(ctx, quote.RouteID)
	if err != nil {
		return errors.Wrap(err, "build source settlement")
	}
	hash, err := o.settler.Settle(ctx, tx.SourceChain, call.To, call.Value, call.Data)
	if err != nil {
		return errors.Wrap(err, "source settlement")
	}
	tx.SourceTxHash = hash
	return nil
}

// scheduleDestination arms the relay timer for the destination-side step.
// Timers are tracked so Close and Cancel can stop them before a stale
// completion fires.
func (o *Orchestrator) scheduleDestination(id string) {
	o.timerMu.Lock()
	defer o.timerMu.Unlock()
	if o.closed {
		return
	}
	o.timers[id] = time.AfterFunc(o.relayInterval, func() {
		o.completeDestination(id)
	})
}

func (o *Orchestrator) completeDestination(id string) {
	o.timerMu.Lock()
	if o.closed {
		o.timerMu.Unlock()
		return
	}
	delete(o.timers, id)
	o.timerMu.Unlock()

	tx, ok := o.store.Get(id)
	if !ok {
		o.logger.WithField("id", id).Error("Relay timer fired for unknown transaction")
		return
	}
	if tx.Status != StatusProcessing {
		o.logger.WithFields(logrus.Fields{
			"id":     id,
			"status": tx.Status,
		}).Warn("Skipping destination settlement, transaction no longer processing")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), destinationStepTimeout)
	defer cancel()

	var destTxHash string
	if tx.Simulated {
		destTxHash = simulatedHash(tx.ID, "mint")
	} else {
		status, err := o.aggregator.Status(ctx, tx.SourceTxHash)
		switch {
		case err != nil:
			// Keep the source hash: funds are locked on the source side and
			// manual reconciliation needs it.
			o.failTransaction(tx.ID, fmt.Sprintf("destination confirmation failed: %s", err))
			return
		case status.Status == "pending" || status.Status == "processing":
			o.scheduleDestination(tx.ID)
			return
		case status.Status != "completed":
			o.failTransaction(tx.ID, fmt.Sprintf("bridge reported status %q", status.Status))
			return
		}
		destTxHash = status.DestTxHash
	}

	done, err := o.transitionAndStore(tx.ID, eventComplete, func(cur *BridgeTransaction) {
		if destTxHash != "" {
			cur.DestTxHash = destTxHash
		}
	})
	if err != nil {
		o.logger.WithFields(logrus.Fields{"id": tx.ID, "err": err}).Warn("Refusing completion of terminal transaction")
		return
	}
	o.logger.WithFields(logrus.Fields{
		"id":         done.ID,
		"destTxHash": done.DestTxHash,
		"simulated":  done.Simulated,
	}).Info("Bridge transfer completed")
}

func (o *Orchestrator) failTransaction(id, reason string) *BridgeTransaction {
	tx, err := o.transitionAndStore(id, eventFail, func(cur *BridgeTransaction) {
		cur.FailureReason = reason
	})
	if err != nil {
		o.logger.WithFields(logrus.Fields{"id": id, "err": err}).Warn("Refusing failure of terminal transaction")
		return nil
	}
	o.logger.WithFields(logrus.Fields{
		"id":           tx.ID,
		"sourceTxHash": tx.SourceTxHash,
		"reason":       reason,
	}).Error("Bridge transfer failed")
	return tx
}

// GetStatus returns the current record for id.
func (o *Orchestrator) GetStatus(id string) (*BridgeTransaction, error) {
	tx, ok := o.store.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrTransactionNotFound, "id %s", id)
	}
	return tx, nil
}

// GetHistory returns the recipient's transfers, newest first.
func (o *Orchestrator) GetHistory(recipient ethcommon.Address) []*BridgeTransaction {
	return o.store.ByRecipient(recipient)
}

// Cancel stops a transfer's pending relay step and marks it failed. Terminal
// transactions are left untouched.
func (o *Orchestrator) Cancel(id string) error {
	o.timerMu.Lock()
	if timer, ok := o.timers[id]; ok {
		timer.Stop()
		delete(o.timers, id)
	}
	o.timerMu.Unlock()

	tx, ok := o.store.Get(id)
	if !ok {
		return errors.Wrapf(ErrTransactionNotFound, "id %s", id)
	}
	if tx.Status.Terminal() {
		return nil
	}
	o.failTransaction(id, "cancelled by caller")
	return nil
}

// Close stops every pending relay timer; no destination settlement fires
// after Close returns.
func (o *Orchestrator) Close() {
	o.timerMu.Lock()
	defer o.timerMu.Unlock()
	o.closed = true
	for id, timer := range o.timers {
		timer.Stop()
		delete(o.timers, id)
	}
}

func (o *Orchestrator) checkChains(chains ...string) error {
	for _, chain := range chains {
		if _, ok := o.readers[chain]; !ok {
			return errors.Wrapf(ErrUnsupportedChain, "chain %q", chain)
		}
	}
	return nil
}

func parseAmount(amount string) (decimal.Decimal, error) {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrInvalidAmount, "%q", amount)
	}
	if !amt.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrInvalidAmount, "%s is not positive", amt)
	}
	return amt, nil
}

// simulatedHash produces a demo-path stand-in hash. It is always paired with
// the Simulated marker; nothing downstream may treat it as a settlement.
func simulatedHash(id, step string) string {
	return hexutil.Encode(crypto.Keccak256(
		[]byte(id),
		[]byte(step),
		[]byte(time.Now().String()),
	))
}
