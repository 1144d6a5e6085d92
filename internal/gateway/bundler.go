package gateway

import (
	"context"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-gateway/internal/saccount"
)

// OperationHandle identifies a submitted operation at the bundler. It is the
// operation hash and stays valid after a polling timeout.
type OperationHandle ethcommon.Hash

func (h OperationHandle) Hex() string {
	return ethcommon.Hash(h).Hex()
}

type GasEstimate struct {
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
}

// Receipt reports the outcome of an executed operation. Success refers to
// the on-chain execution; an operation the bundler accepted can still fail
// when executed.
type Receipt struct {
	UserOpHash    ethcommon.Hash
	TxHash        ethcommon.Hash
	BlockNumber   uint64
	Success       bool
	Reason        string
	ActualGasCost *big.Int
	ActualGasUsed *big.Int
}

// BundlerGateway submits signed operations and polls for their receipts.
type BundlerGateway struct {
	client       rpcCaller
	entryPoint   ethcommon.Address
	pollInterval time.Duration
	logger       logrus.FieldLogger
}

func DialBundler(ctx context.Context, rawURL string, entryPoint ethcommon.Address, pollInterval time.Duration, logger logrus.FieldLogger) (*BundlerGateway, error) {
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial bundler %s", rawURL)
	}
	return NewBundlerGateway(client, entryPoint, pollInterval, logger), nil
}

func NewBundlerGateway(client rpcCaller, entryPoint ethcommon.Address, pollInterval time.Duration, logger logrus.FieldLogger) *BundlerGateway {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &BundlerGateway{
		client:       client,
		entryPoint:   entryPoint,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

type rpcGasEstimate struct {
	CallGasLimit         *hexutil.Big `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
}

// EstimateGas asks the bundler to estimate the operation's gas fields.
// Estimation failures are common and non-fatal, so this never errors: it
// falls back to the conservative static defaults.
func (g *BundlerGateway) EstimateGas(ctx context.Context, op *saccount.UserOperation) *GasEstimate {
	fallback := &GasEstimate{
		CallGasLimit:       new(big.Int).Set(saccount.DefaultCallGasLimit),
		PreVerificationGas: new(big.Int).Set(saccount.DefaultPreVerificationGas),
	}
	if len(op.InitCode) > 0 {
		fallback.VerificationGasLimit = new(big.Int).Set(saccount.DeployVerificationGasLimit)
	} else {
		fallback.VerificationGasLimit = new(big.Int).Set(saccount.DefaultVerificationGasLimit)
	}

	var res rpcGasEstimate
	err := g.client.CallContext(ctx, &res, "eth_estimateUserOperationGas", toRPCUserOp(op), g.entryPoint)
	if err != nil {
		g.logger.WithField("err", err).Debug("Gas estimation failed, using static estimate")
		return fallback
	}
	if res.CallGasLimit == nil || res.VerificationGasLimit == nil || res.PreVerificationGas == nil {
		return fallback
	}
	return &GasEstimate{
		CallGasLimit:         (*big.Int)(res.CallGasLimit),
		VerificationGasLimit: (*big.Int)(res.VerificationGasLimit),
		PreVerificationGas:   (*big.Int)(res.PreVerificationGas),
	}
}

// Submit sends a fully signed operation to the bundler. Rejections surface
// as *SubmissionError and are not retried here.
func (g *BundlerGateway) Submit(ctx context.Context, op *saccount.UserOperation) (OperationHandle, error) {
	if len(op.Signature) == 0 {
		return OperationHandle{}, errors.New("refusing to submit unsigned operation")
	}

	var hash ethcommon.Hash
	err := g.client.CallContext(ctx, &hash, "eth_sendUserOperation", toRPCUserOp(op), g.entryPoint)
	if err != nil {
		code := 0
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			code = rpcErr.ErrorCode()
		}
		return OperationHandle{}, &SubmissionError{Code: code, Message: err.Error()}
	}

	g.logger.WithFields(logrus.Fields{
		"sender":     op.Sender.Hex(),
		"userOpHash": hash.Hex(),
	}).Info("User operation submitted")
	return OperationHandle(hash), nil
}

type rpcReceipt struct {
	UserOpHash    ethcommon.Hash `json:"userOpHash"`
	Success       bool           `json:"success"`
	Reason        string         `json:"reason"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Receipt       struct {
		TransactionHash ethcommon.Hash `json:"transactionHash"`
		BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	} `json:"receipt"`
}

// GetReceipt fetches the receipt once. ErrReceiptNotFound means the
// operation has not been included yet.
func (g *BundlerGateway) GetReceipt(ctx context.Context, handle OperationHandle) (*Receipt, error) {
	var res *rpcReceipt
	err := g.client.CallContext(ctx, &res, "eth_getUserOperationReceipt", ethcommon.Hash(handle))
	if err != nil {
		return nil, errors.Wrap(err, "fetch user operation receipt")
	}
	if res == nil {
		return nil, ErrReceiptNotFound
	}
	return &Receipt{
		UserOpHash:    res.UserOpHash,
		TxHash:        res.Receipt.TransactionHash,
		BlockNumber:   uint64(res.Receipt.BlockNumber),
		Success:       res.Success,
		Reason:        res.Reason,
		ActualGasCost: (*big.Int)(res.ActualGasCost),
		ActualGasUsed: (*big.Int)(res.ActualGasUsed),
	}, nil
}

// PollReceipt polls at a fixed interval until the receipt arrives, the
// caller's context is cancelled, or the timeout passes. The timeout outcome
// is a *ReceiptTimeoutError carrying the handle: the operation may still
// land later and the caller can keep polling manually.
func (g *BundlerGateway) PollReceipt(ctx context.Context, handle OperationHandle, timeout time.Duration) (*Receipt, error) {
	start := time.Now()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, &ReceiptTimeoutError{Handle: handle, Elapsed: time.Since(start)}
		case <-ticker.C:
			receipt, err := g.GetReceipt(ctx, handle)
			if err == nil {
				return receipt, nil
			}
			if !errors.Is(err, ErrReceiptNotFound) {
				g.logger.WithFields(logrus.Fields{
					"userOpHash": handle.Hex(),
					"err":        err,
				}).Warn("Receipt fetch failed, will retry")
			}
		}
	}
}
