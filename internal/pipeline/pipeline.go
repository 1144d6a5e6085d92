package pipeline

import (
	"context"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-gateway/internal/chainstate"
	"github.com/axiomesh/axiom-aa-gateway/internal/gateway"
	"github.com/axiomesh/axiom-aa-gateway/internal/saccount"
)

// PaymasterClient is the sponsorship capability the pipeline consumes.
type PaymasterClient interface {
	Sponsor(ctx context.Context, op *saccount.UserOperation, entryPoint ethcommon.Address, policy string) (*gateway.SponsorshipResult, error)
}

// BundlerClient is the submission capability the pipeline consumes.
type BundlerClient interface {
	EstimateGas(ctx context.Context, op *saccount.UserOperation) *gateway.GasEstimate
	Submit(ctx context.Context, op *saccount.UserOperation) (gateway.OperationHandle, error)
	PollReceipt(ctx context.Context, handle gateway.OperationHandle, timeout time.Duration) (*gateway.Receipt, error)
}

// Result is the outcome of one pipeline run. Receipt is nil when polling
// timed out; Handle stays usable for manual polling in that case.
type Result struct {
	UserOpHash ethcommon.Hash
	Handle     gateway.OperationHandle
	Receipt    *gateway.Receipt
}

// Options configure policy knobs the pipeline enforces.
type Options struct {
	// AllowUnsponsored lets a run continue with the user paying gas after a
	// sponsorship failure. Off by default: silently downgrading the gasless
	// guarantee is a caller decision, not a fallback.
	AllowUnsponsored bool
	PaymasterPolicy  string
	ReceiptTimeout   time.Duration
}

// Pipeline drives one user operation end to end: build, estimate, sponsor,
// sign, submit, await receipt.
type Pipeline struct {
	builder   *saccount.OperationBuilder
	state     *chainstate.ChainState
	signer    saccount.Signer
	paymaster PaymasterClient
	bundler   BundlerClient
	opts      Options
	logger    logrus.FieldLogger
}

func New(
	builder *saccount.OperationBuilder,
	state *chainstate.ChainState,
	signer saccount.Signer,
	paymaster PaymasterClient,
	bundler BundlerClient,
	opts Options,
	logger logrus.FieldLogger,
) *Pipeline {
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 60 * time.Second
	}
	return &Pipeline{
		builder:   builder,
		state:     state,
		signer:    signer,
		paymaster: paymaster,
		bundler:   bundler,
		opts:      opts,
		logger:    logger,
	}
}

// Execute runs the full operation pipeline for account calling target.
// Sponsorship failures surface before any bundler submission; a receipt
// polling timeout comes back as *gateway.ReceiptTimeoutError alongside a
// Result carrying the still-valid handle.
func (p *Pipeline) Execute(ctx context.Context, account *saccount.SmartAccount, target ethcommon.Address, value *big.Int, callData []byte, credentialID string) (*Result, error) {
	op, err := p.builder.Build(ctx, account, target, value, callData)
	if err != nil {
		return nil, err
	}

	estimate := p.bundler.EstimateGas(ctx, op)
	op.CallGasLimit = estimate.CallGasLimit
	op.VerificationGasLimit = estimate.VerificationGasLimit
	op.PreVerificationGas = estimate.PreVerificationGas

	sponsorship, err := p.paymaster.Sponsor(ctx, op, p.builder.EntryPoint(), p.opts.PaymasterPolicy)
	if err != nil {
		if !p.opts.AllowUnsponsored {
			return nil, err
		}
		p.logger.WithFields(logrus.Fields{
			"sender": account.Address.Hex(),
			"err":    err,
		}).Warn("Sponsorship declined, proceeding with user-paid gas")
	} else {
		sponsorship.Apply(op)
	}

	userOpHash := p.builder.ComputeHash(op)

	signCtx, cancel := context.WithTimeout(ctx, saccount.HumanInteractionTimeout)
	signature, err := p.signer.Sign(signCtx, userOpHash, credentialID)
	cancel()
	if err != nil {
		return nil, errors.Wrap(err, "sign user operation")
	}
	op.Signature = signature

	handle, err := p.bundler.Submit(ctx, op)
	if err != nil {
		return nil, err
	}
	// Submission changed chain state the cached observation can't see.
	p.state.Invalidate(account.Address)

	result := &Result{UserOpHash: userOpHash, Handle: handle}
	receipt, err := p.bundler.PollReceipt(ctx, handle, p.opts.ReceiptTimeout)
	if err != nil {
		return result, err
	}
	result.Receipt = receipt

	p.logger.WithFields(logrus.Fields{
		"userOpHash": userOpHash.Hex(),
		"txHash":     receipt.TxHash.Hex(),
		"success":    receipt.Success,
	}).Info("User operation executed")
	return result, nil
}
