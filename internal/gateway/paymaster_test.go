package gateway

import (
	"context"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomesh/axiom-aa-gateway/internal/saccount"
	"github.com/axiomesh/axiom-aa-gateway/pkg/loggers"
)

var testEntryPoint = ethcommon.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

// fakeCaller records every RPC method and delegates to fn.
type fakeCaller struct {
	calls []string
	fn    func(result any, method string, args ...any) error
}

func (f *fakeCaller) CallContext(_ context.Context, result any, method string, args ...any) error {
	f.calls = append(f.calls, method)
	if f.fn == nil {
		return nil
	}
	return f.fn(result, method, args...)
}

// fakeRPCError mimics a JSON-RPC error response with a numeric code.
type fakeRPCError struct {
	code int
	msg  string
}

func (e *fakeRPCError) Error() string  { return e.msg }
func (e *fakeRPCError) ErrorCode() int { return e.code }

func testOp() *saccount.UserOperation {
	return &saccount.UserOperation{
		Sender:               ethcommon.HexToAddress("0x3333333333333333333333333333333333333333"),
		Nonce:                big.NewInt(0),
		CallData:             []byte{0xb6, 0x1d, 0x27, 0xf6},
		CallGasLimit:         big.NewInt(200_000),
		VerificationGasLimit: big.NewInt(1_000_000),
		PreVerificationGas:   big.NewInt(50_000),
		MaxFeePerGas:         big.NewInt(4_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
	}
}

func TestSponsor_Success(t *testing.T) {
	pmData := hexutil.MustDecode("0x00000000000000000000000000000000000000aa010203")
	caller := &fakeCaller{fn: func(result any, method string, args ...any) error {
		require.Equal(t, "pm_sponsorUserOperation", method)
		res := result.(*rpcSponsorship)
		res.PaymasterAndData = pmData
		res.VerificationGasLimit = (*hexutil.Big)(big.NewInt(1_500_000))
		return nil
	}}
	gw := NewPaymasterGateway(caller, loggers.Logger(loggers.Paymaster))

	result, err := gw.Sponsor(context.Background(), testOp(), testEntryPoint, "default")
	require.Nil(t, err)
	assert.Equal(t, []byte(pmData), result.PaymasterAndData)
	assert.Equal(t, big.NewInt(1_500_000), result.VerificationGasLimit)
	assert.Nil(t, result.CallGasLimit)
}

func TestSponsor_ApplyKeepsUnsetFields(t *testing.T) {
	op := testOp()
	result := &SponsorshipResult{
		PaymasterAndData:     []byte{0xaa},
		VerificationGasLimit: big.NewInt(1_500_000),
	}
	result.Apply(op)

	assert.Equal(t, []byte{0xaa}, op.PaymasterAndData)
	assert.Equal(t, big.NewInt(1_500_000), op.VerificationGasLimit)
	assert.Equal(t, big.NewInt(200_000), op.CallGasLimit)
	assert.Equal(t, big.NewInt(4_000_000_000), op.MaxFeePerGas)
}

func TestSponsor_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code SponsorshipCode
	}{
		{"insufficient funds rpc code", &fakeRPCError{code: -32050, msg: "paymaster deposit too low"}, SponsorshipInsufficientFunds},
		{"policy rejected rpc code", &fakeRPCError{code: -32051, msg: "sender not allowlisted"}, SponsorshipPolicyRejected},
		{"operation ineligible rpc code", &fakeRPCError{code: -32052, msg: "callData not supported"}, SponsorshipOperationIneligible},
		{"insufficient funds by message", errors.New("insufficient paymaster balance"), SponsorshipInsufficientFunds},
		{"policy by message", errors.New("rejected by policy engine"), SponsorshipPolicyRejected},
		{"ineligible by message", errors.New("operation ineligible for sponsorship"), SponsorshipOperationIneligible},
		{"unclassified", errors.New("connection reset by peer"), SponsorshipUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &fakeCaller{fn: func(any, string, ...any) error {
				return tt.err
			}}
			gw := NewPaymasterGateway(caller, loggers.Logger(loggers.Paymaster))

			_, err := gw.Sponsor(context.Background(), testOp(), testEntryPoint, "default")
			se, ok := AsSponsorshipError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, se.Code)
			assert.Contains(t, se.Detail, tt.err.Error())
		})
	}
}

func TestSponsor_EmptyPaymasterAndData(t *testing.T) {
	gw := NewPaymasterGateway(&fakeCaller{}, loggers.Logger(loggers.Paymaster))

	_, err := gw.Sponsor(context.Background(), testOp(), testEntryPoint, "default")
	se, ok := AsSponsorshipError(err)
	require.True(t, ok)
	assert.Equal(t, SponsorshipUnknown, se.Code)
}
