package gateway

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-gateway/internal/saccount"
)

// SponsorshipResult carries the paymaster data and the gas fields the
// paymaster insists on. Fields left nil keep the builder's values.
type SponsorshipResult struct {
	PaymasterAndData     []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Apply overwrites op's sponsorship-controlled fields in place.
func (r *SponsorshipResult) Apply(op *saccount.UserOperation) {
	op.PaymasterAndData = append([]byte(nil), r.PaymasterAndData...)
	for dst, src := range map[**big.Int]*big.Int{
		&op.CallGasLimit:         r.CallGasLimit,
		&op.VerificationGasLimit: r.VerificationGasLimit,
		&op.PreVerificationGas:   r.PreVerificationGas,
		&op.MaxFeePerGas:         r.MaxFeePerGas,
		&op.MaxPriorityFeePerGas: r.MaxPriorityFeePerGas,
	} {
		if src != nil {
			*dst = new(big.Int).Set(src)
		}
	}
}

// PaymasterGateway requests gas sponsorship from the paymaster RPC service.
type PaymasterGateway struct {
	client rpcCaller
	logger logrus.FieldLogger
}

func DialPaymaster(ctx context.Context, rawURL string, logger logrus.FieldLogger) (*PaymasterGateway, error) {
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial paymaster %s", rawURL)
	}
	return NewPaymasterGateway(client, logger), nil
}

func NewPaymasterGateway(client rpcCaller, logger logrus.FieldLogger) *PaymasterGateway {
	return &PaymasterGateway{client: client, logger: logger}
}

type rpcSponsorship struct {
	PaymasterAndData     hexutil.Bytes `json:"paymasterAndData"`
	CallGasLimit         *hexutil.Big  `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big  `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big  `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big  `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big  `json:"maxPriorityFeePerGas"`
}

// Sponsor asks the paymaster to cover gas for the unsigned operation.
// Failures come back as *SponsorshipError; the caller decides whether to
// proceed unsponsored.
func (g *PaymasterGateway) Sponsor(ctx context.Context, op *saccount.UserOperation, entryPoint ethcommon.Address, policy string) (*SponsorshipResult, error) {
	var res rpcSponsorship
	err := g.client.CallContext(ctx, &res, "pm_sponsorUserOperation", toRPCUserOp(op), entryPoint, map[string]string{"policy": policy})
	if err != nil {
		se := classifySponsorshipError(err)
		g.logger.WithFields(logrus.Fields{
			"sender": op.Sender.Hex(),
			"code":   se.Code.String(),
		}).Warn("Paymaster declined sponsorship")
		return nil, se
	}
	if len(res.PaymasterAndData) == 0 {
		return nil, &SponsorshipError{Code: SponsorshipUnknown, Detail: "paymaster returned empty paymasterAndData"}
	}

	g.logger.WithField("sender", op.Sender.Hex()).Debug("Operation sponsored")
	return &SponsorshipResult{
		PaymasterAndData:     res.PaymasterAndData,
		CallGasLimit:         (*big.Int)(res.CallGasLimit),
		VerificationGasLimit: (*big.Int)(res.VerificationGasLimit),
		PreVerificationGas:   (*big.Int)(res.PreVerificationGas),
		MaxFeePerGas:         (*big.Int)(res.MaxFeePerGas),
		MaxPriorityFeePerGas: (*big.Int)(res.MaxPriorityFeePerGas),
	}, nil
}
