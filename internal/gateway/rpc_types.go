package gateway

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/axiomesh/axiom-aa-gateway/internal/saccount"
)

// rpcCaller is the slice of rpc.Client the gateways use; tests install an
// in-memory implementation.
type rpcCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// rpcUserOperation is the bundler/paymaster wire encoding of a user
// operation: quantities as hex, byte fields as 0x-prefixed hex.
type rpcUserOperation struct {
	Sender               ethcommon.Address `json:"sender"`
	Nonce                *hexutil.Big      `json:"nonce"`
	InitCode             hexutil.Bytes     `json:"initCode"`
	CallData             hexutil.Bytes     `json:"callData"`
	CallGasLimit         *hexutil.Big      `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big      `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big      `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes     `json:"paymasterAndData"`
	Signature            hexutil.Bytes     `json:"signature"`
}

func toRPCUserOp(op *saccount.UserOperation) *rpcUserOperation {
	return &rpcUserOperation{
		Sender:               op.Sender,
		Nonce:                (*hexutil.Big)(op.Nonce),
		InitCode:             op.InitCode,
		CallData:             op.CallData,
		CallGasLimit:         (*hexutil.Big)(op.CallGasLimit),
		VerificationGasLimit: (*hexutil.Big)(op.VerificationGasLimit),
		PreVerificationGas:   (*hexutil.Big)(op.PreVerificationGas),
		MaxFeePerGas:         (*hexutil.Big)(op.MaxFeePerGas),
		MaxPriorityFeePerGas: (*hexutil.Big)(op.MaxPriorityFeePerGas),
		PaymasterAndData:     op.PaymasterAndData,
		Signature:            op.Signature,
	}
}
