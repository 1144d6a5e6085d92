package saccount

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	AddressType, _ = abi.NewType("address", "", nil)
	BigIntType, _  = abi.NewType("uint256", "", nil)
	Bytes32Type, _ = abi.NewType("bytes32", "", nil)
	BytesType, _   = abi.NewType("bytes", "", nil)
)

// UserOperation is an intent to execute a call through a smart account,
// submitted to a bundler instead of directly to the chain.
type UserOperation struct {
	Sender               ethcommon.Address `json:"sender"`
	Nonce                *big.Int          `json:"nonce"`
	InitCode             []byte            `json:"initCode"`
	CallData             []byte            `json:"callData"`
	CallGasLimit         *big.Int          `json:"callGasLimit"`
	VerificationGasLimit *big.Int          `json:"verificationGasLimit"`
	PreVerificationGas   *big.Int          `json:"preVerificationGas"`
	MaxFeePerGas         *big.Int          `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *big.Int          `json:"maxPriorityFeePerGas"`
	PaymasterAndData     []byte            `json:"paymasterAndData"`
	Signature            []byte            `json:"signature"`
}

func PackForSignature(userOp *UserOperation) []byte {
	args := abi.Arguments{
		{Name: "sender", Type: AddressType},
		{Name: "nonce", Type: BigIntType},
		{Name: "initCode", Type: Bytes32Type},
		{Name: "callData", Type: Bytes32Type},
		{Name: "callGasLimit", Type: BigIntType},
		{Name: "verificationGasLimit", Type: BigIntType},
		{Name: "preVerificationGas", Type: BigIntType},
		{Name: "maxFeePerGas", Type: BigIntType},
		{Name: "maxPriorityFeePerGas", Type: BigIntType},
		{Name: "paymasterAndData", Type: Bytes32Type},
	}
	packed, _ := args.Pack(
		userOp.Sender,
		userOp.Nonce,
		crypto.Keccak256Hash(userOp.InitCode),
		crypto.Keccak256Hash(userOp.CallData),
		userOp.CallGasLimit,
		userOp.VerificationGasLimit,
		userOp.PreVerificationGas,
		userOp.MaxFeePerGas,
		userOp.MaxPriorityFeePerGas,
		crypto.Keccak256Hash(userOp.PaymasterAndData),
	)

	return packed
}

// GetUserOpHash returns the hash of the userOp + entryPoint address + chainID.
// The entry point recomputes exactly this hash when validating the signature,
// so any divergence here is a hard validation failure.
func GetUserOpHash(userOp *UserOperation, entryPoint ethcommon.Address, chainID *big.Int) ethcommon.Hash {
	return crypto.Keccak256Hash(
		crypto.Keccak256(PackForSignature(userOp)),
		ethcommon.LeftPadBytes(entryPoint.Bytes(), 32),
		ethcommon.LeftPadBytes(chainID.Bytes(), 32),
	)
}

func GetGasPrice(userOp *UserOperation) *big.Int {
	return math.BigMin(userOp.MaxFeePerGas, userOp.MaxPriorityFeePerGas)
}

// Copy returns a deep copy so that sponsorship enrichment never mutates the
// operation a caller still holds.
func (userOp *UserOperation) Copy() *UserOperation {
	cp := &UserOperation{
		Sender:           userOp.Sender,
		InitCode:         append([]byte(nil), userOp.InitCode...),
		CallData:         append([]byte(nil), userOp.CallData...),
		PaymasterAndData: append([]byte(nil), userOp.PaymasterAndData...),
		Signature:        append([]byte(nil), userOp.Signature...),
	}
	for dst, src := range map[**big.Int]*big.Int{
		&cp.Nonce:                userOp.Nonce,
		&cp.CallGasLimit:         userOp.CallGasLimit,
		&cp.VerificationGasLimit: userOp.VerificationGasLimit,
		&cp.PreVerificationGas:   userOp.PreVerificationGas,
		&cp.MaxFeePerGas:         userOp.MaxFeePerGas,
		&cp.MaxPriorityFeePerGas: userOp.MaxPriorityFeePerGas,
	} {
		if src != nil {
			*dst = new(big.Int).Set(src)
		}
	}
	return cp
}
