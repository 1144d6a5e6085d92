package saccount

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-gateway/internal/chainstate"
)

var (
	executeSelector       = crypto.Keccak256([]byte("execute(address,uint256,bytes)"))[:4]
	createAccountSelector = crypto.Keccak256([]byte("createAccount(bytes,uint256)"))[:4]
	getAddressSelector    = crypto.Keccak256([]byte("getAddress(address,uint256)"))[:4]
)

var ErrInvalidCallValue = errors.New("invalid call value")

// PackExecute encodes the smart account's execute(dest, value, func) call.
func PackExecute(target ethcommon.Address, value *big.Int, callData []byte) []byte {
	args := abi.Arguments{
		{Name: "dest", Type: AddressType},
		{Name: "value", Type: BigIntType},
		{Name: "func", Type: BytesType},
	}
	packed, _ := args.Pack(target, value, callData)
	return append(append([]byte(nil), executeSelector...), packed...)
}

// PackCreateAccount encodes the factory's createAccount(pubKey, salt) call.
func PackCreateAccount(pubKey *PublicKey, salt *big.Int) []byte {
	args := abi.Arguments{
		{Name: "pubKey", Type: BytesType},
		{Name: "salt", Type: BigIntType},
	}
	packed, _ := args.Pack(pubKey.Bytes(), salt)
	return append(append([]byte(nil), createAccountSelector...), packed...)
}

// PackGetAddress encodes the factory's read-only getAddress(owner, salt)
// entry point.
func PackGetAddress(owner ethcommon.Address, salt *big.Int) []byte {
	args := abi.Arguments{
		{Name: "owner", Type: AddressType},
		{Name: "salt", Type: BigIntType},
	}
	packed, _ := args.Pack(owner, salt)
	return append(append([]byte(nil), getAddressSelector...), packed...)
}

// BuildInitCode is the factory address followed by the createAccount
// calldata. Deterministic for a given (factory, pubKey, salt).
func BuildInitCode(factory ethcommon.Address, pubKey *PublicKey, salt *big.Int) []byte {
	return append(append([]byte(nil), factory.Bytes()...), PackCreateAccount(pubKey, salt)...)
}

// OperationBuilder assembles unsigned user operations for one chain and
// computes their canonical hash.
type OperationBuilder struct {
	entryPoint ethcommon.Address
	factory    ethcommon.Address
	chainID    *big.Int
	state      *chainstate.ChainState
	logger     logrus.FieldLogger
}

func NewOperationBuilder(entryPoint, factory ethcommon.Address, state *chainstate.ChainState, logger logrus.FieldLogger) *OperationBuilder {
	return &OperationBuilder{
		entryPoint: entryPoint,
		factory:    factory,
		chainID:    state.Reader().ChainID(),
		state:      state,
		logger:     logger,
	}
}

func (b *OperationBuilder) EntryPoint() ethcommon.Address {
	return b.entryPoint
}

func (b *OperationBuilder) ChainID() *big.Int {
	return new(big.Int).Set(b.chainID)
}

// Build assembles an unsigned operation for account calling target. InitCode
// is populated from the factory when the account is not yet deployed. Gas
// fields are seeded with conservative defaults and a doubled suggested gas
// price; sponsorship or estimation usually overwrites them.
func (b *OperationBuilder) Build(ctx context.Context, account *SmartAccount, target ethcommon.Address, value *big.Int, callData []byte) (*UserOperation, error) {
	if account == nil || account.Identity.PublicKey == nil {
		return nil, errors.Wrap(ErrInvalidPublicKey, "build operation")
	}
	if value == nil || value.Sign() < 0 {
		return nil, errors.Wrap(ErrInvalidCallValue, "build operation")
	}

	ob, err := b.state.Observe(ctx, account.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "observe account %s", account.Address)
	}

	op := &UserOperation{
		Sender:               account.Address,
		Nonce:                new(big.Int).Set(ob.Nonce),
		CallData:             PackExecute(target, value, callData),
		CallGasLimit:         new(big.Int).Set(DefaultCallGasLimit),
		VerificationGasLimit: new(big.Int).Set(DefaultVerificationGasLimit),
		PreVerificationGas:   new(big.Int).Set(DefaultPreVerificationGas),
	}
	if !ob.Deployed {
		op.InitCode = BuildInitCode(b.factory, account.Identity.PublicKey, account.Salt)
		op.VerificationGasLimit = new(big.Int).Set(DeployVerificationGasLimit)
	}

	gasPrice, err := b.state.Reader().SuggestGasPrice(ctx)
	if err != nil {
		b.logger.WithField("err", err).Debug("Gas price suggestion failed, using default")
		gasPrice = new(big.Int).Set(DefaultGasPrice)
	}
	op.MaxFeePerGas = new(big.Int).Mul(gasPrice, big.NewInt(2))
	op.MaxPriorityFeePerGas = gasPrice

	b.logger.WithFields(logrus.Fields{
		"sender":   op.Sender.Hex(),
		"nonce":    op.Nonce,
		"deployed": ob.Deployed,
	}).Debug("Built unsigned user operation")
	return op, nil
}

// ComputeHash returns the canonical operation hash bound to this chain's
// entry point and chain id.
func (b *OperationBuilder) ComputeHash(op *UserOperation) ethcommon.Hash {
	return GetUserOpHash(op, b.entryPoint, b.chainID)
}
