package gateway

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomesh/axiom-aa-gateway/internal/saccount"
	"github.com/axiomesh/axiom-aa-gateway/pkg/loggers"
)

func newTestBundler(caller rpcCaller, pollInterval time.Duration) *BundlerGateway {
	return NewBundlerGateway(caller, testEntryPoint, pollInterval, loggers.Logger(loggers.Bundler))
}

func signedOp() *saccount.UserOperation {
	op := testOp()
	op.Signature = []byte{0x01, 0x02, 0x03}
	return op
}

func TestEstimateGas_BundlerEstimate(t *testing.T) {
	caller := &fakeCaller{fn: func(result any, method string, args ...any) error {
		require.Equal(t, "eth_estimateUserOperationGas", method)
		res := result.(*rpcGasEstimate)
		res.CallGasLimit = (*hexutil.Big)(big.NewInt(120_000))
		res.VerificationGasLimit = (*hexutil.Big)(big.NewInt(800_000))
		res.PreVerificationGas = (*hexutil.Big)(big.NewInt(45_000))
		return nil
	}}
	gw := newTestBundler(caller, 0)

	est := gw.EstimateGas(context.Background(), testOp())
	assert.Equal(t, big.NewInt(120_000), est.CallGasLimit)
	assert.Equal(t, big.NewInt(800_000), est.VerificationGasLimit)
	assert.Equal(t, big.NewInt(45_000), est.PreVerificationGas)
}

func TestEstimateGas_FallbackOnError(t *testing.T) {
	caller := &fakeCaller{fn: func(any, string, ...any) error {
		return errors.New("estimation unsupported")
	}}
	gw := newTestBundler(caller, 0)

	est := gw.EstimateGas(context.Background(), testOp())
	assert.Equal(t, saccount.DefaultCallGasLimit, est.CallGasLimit)
	assert.Equal(t, saccount.DefaultVerificationGasLimit, est.VerificationGasLimit)
	assert.Equal(t, saccount.DefaultPreVerificationGas, est.PreVerificationGas)

	deploying := testOp()
	deploying.InitCode = []byte{0x01}
	est = gw.EstimateGas(context.Background(), deploying)
	assert.Equal(t, saccount.DeployVerificationGasLimit, est.VerificationGasLimit)
}

func TestSubmit_Success(t *testing.T) {
	opHash := ethcommon.HexToHash("0x4444444444444444444444444444444444444444444444444444444444444444")
	caller := &fakeCaller{fn: func(result any, method string, args ...any) error {
		require.Equal(t, "eth_sendUserOperation", method)
		require.Equal(t, testEntryPoint, args[1])
		*result.(*ethcommon.Hash) = opHash
		return nil
	}}
	gw := newTestBundler(caller, 0)

	handle, err := gw.Submit(context.Background(), signedOp())
	require.Nil(t, err)
	assert.Equal(t, OperationHandle(opHash), handle)
}

func TestSubmit_RefusesUnsigned(t *testing.T) {
	caller := &fakeCaller{}
	gw := newTestBundler(caller, 0)

	_, err := gw.Submit(context.Background(), testOp())
	assert.NotNil(t, err)
	assert.Empty(t, caller.calls)
}

func TestSubmit_Rejection(t *testing.T) {
	caller := &fakeCaller{fn: func(any, string, ...any) error {
		return &fakeRPCError{code: -32500, msg: "AA21 didn't pay prefund"}
	}}
	gw := newTestBundler(caller, 0)

	_, err := gw.Submit(context.Background(), signedOp())
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, -32500, se.Code)
	assert.Contains(t, se.Message, "AA21")
}

func TestGetReceipt_NotFound(t *testing.T) {
	gw := newTestBundler(&fakeCaller{}, 0)

	_, err := gw.GetReceipt(context.Background(), OperationHandle{})
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestPollReceipt_Success(t *testing.T) {
	handle := OperationHandle(ethcommon.HexToHash("0x55"))
	attempts := 0
	caller := &fakeCaller{fn: func(result any, method string, args ...any) error {
		require.Equal(t, "eth_getUserOperationReceipt", method)
		attempts++
		if attempts < 3 {
			return nil
		}
		res := result.(**rpcReceipt)
		*res = &rpcReceipt{
			UserOpHash:    ethcommon.Hash(handle),
			Success:       true,
			ActualGasUsed: (*hexutil.Big)(big.NewInt(90_000)),
		}
		(*res).Receipt.TransactionHash = ethcommon.HexToHash("0x66")
		(*res).Receipt.BlockNumber = 42
		return nil
	}}
	gw := newTestBundler(caller, 10*time.Millisecond)

	receipt, err := gw.PollReceipt(context.Background(), handle, time.Second)
	require.Nil(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, ethcommon.Hash(handle), receipt.UserOpHash)
	assert.Equal(t, uint64(42), receipt.BlockNumber)
	assert.Equal(t, 3, attempts)
}

func TestPollReceipt_Timeout(t *testing.T) {
	handle := OperationHandle(ethcommon.HexToHash("0x77"))
	gw := newTestBundler(&fakeCaller{}, 10*time.Millisecond)

	start := time.Now()
	_, err := gw.PollReceipt(context.Background(), handle, 100*time.Millisecond)
	te, ok := AsReceiptTimeout(err)
	require.True(t, ok)
	assert.Equal(t, handle, te.Handle)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollReceipt_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := newTestBundler(&fakeCaller{}, 10*time.Millisecond)

	_, err := gw.PollReceipt(ctx, OperationHandle{}, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollReceipt_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	caller := &fakeCaller{fn: func(result any, method string, args ...any) error {
		attempts++
		if attempts == 1 {
			return errors.New("bundler overloaded")
		}
		res := result.(**rpcReceipt)
		*res = &rpcReceipt{Success: true}
		return nil
	}}
	gw := newTestBundler(caller, 10*time.Millisecond)

	receipt, err := gw.PollReceipt(context.Background(), OperationHandle{}, time.Second)
	require.Nil(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, 2, attempts)
}
