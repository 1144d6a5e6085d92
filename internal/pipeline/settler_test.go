package pipeline

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomesh/axiom-aa-gateway/internal/gateway"
	"github.com/axiomesh/axiom-aa-gateway/internal/saccount"
)

func newSettlerPipeline(t *testing.T, bundler *fakeBundler) (*BridgeSettler, *fakeBundler) {
	t.Helper()
	paymaster := &fakePaymaster{result: &gateway.SponsorshipResult{PaymasterAndData: []byte{0xaa}}}
	signer := &fakeSigner{signature: []byte{0x01}}
	p, _ := newTestPipeline(t, paymaster, bundler, signer, Options{})
	settler := NewBridgeSettler(
		map[string]*Pipeline{"sepolia": p},
		map[string]*saccount.SmartAccount{"sepolia": testAccount(t)},
		"cred-1",
	)
	return settler, bundler
}

func TestSettle_Success(t *testing.T) {
	txHash := ethcommon.HexToHash("0x99")
	settler, _ := newSettlerPipeline(t, &fakeBundler{
		receipt: &gateway.Receipt{TxHash: txHash, Success: true},
	})

	hash, err := settler.Settle(context.Background(), "sepolia", testTarget, big.NewInt(0), nil)
	require.Nil(t, err)
	assert.Equal(t, txHash.Hex(), hash)
}

func TestSettle_UnknownChain(t *testing.T) {
	settler, _ := newSettlerPipeline(t, &fakeBundler{})

	_, err := settler.Settle(context.Background(), "arbitrum", testTarget, big.NewInt(0), nil)
	assert.NotNil(t, err)
}

func TestSettle_RevertedExecution(t *testing.T) {
	settler, _ := newSettlerPipeline(t, &fakeBundler{
		receipt: &gateway.Receipt{Success: false, Reason: "AA23 reverted"},
	})

	_, err := settler.Settle(context.Background(), "sepolia", testTarget, big.NewInt(0), nil)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "AA23 reverted")
}

func TestSettle_ReceiptTimeoutReportsHandle(t *testing.T) {
	handle := gateway.OperationHandle(ethcommon.HexToHash("0xbb"))
	settler, _ := newSettlerPipeline(t, &fakeBundler{
		handle:  handle,
		pollErr: &gateway.ReceiptTimeoutError{Handle: handle, Elapsed: 5 * time.Second},
	})

	_, err := settler.Settle(context.Background(), "sepolia", testTarget, big.NewInt(0), nil)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), handle.Hex())
}
