package pipeline

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/axiomesh/axiom-aa-gateway/internal/bridge"
	"github.com/axiomesh/axiom-aa-gateway/internal/gateway"
	"github.com/axiomesh/axiom-aa-gateway/internal/saccount"
)

var _ bridge.Settler = (*BridgeSettler)(nil)

// BridgeSettler lets the bridge orchestrator settle through the
// account-abstraction pipeline: one pipeline and smart account per chain,
// signed with a single credential.
type BridgeSettler struct {
	pipelines    map[string]*Pipeline
	accounts     map[string]*saccount.SmartAccount
	credentialID string
}

func NewBridgeSettler(pipelines map[string]*Pipeline, accounts map[string]*saccount.SmartAccount, credentialID string) *BridgeSettler {
	return &BridgeSettler{
		pipelines:    pipelines,
		accounts:     accounts,
		credentialID: credentialID,
	}
}

func (s *BridgeSettler) Settle(ctx context.Context, chainName string, to ethcommon.Address, value *big.Int, callData []byte) (string, error) {
	pipe, ok := s.pipelines[chainName]
	if !ok {
		return "", errors.Errorf("no pipeline for chain %q", chainName)
	}
	account, ok := s.accounts[chainName]
	if !ok {
		return "", errors.Errorf("no account for chain %q", chainName)
	}

	result, err := pipe.Execute(ctx, account, to, value, callData, s.credentialID)
	if err != nil {
		if timeout, ok := gateway.AsReceiptTimeout(err); ok {
			// The operation may still land; report the handle so the caller
			// can reconcile instead of resubmitting.
			return "", errors.Wrapf(err, "settlement unconfirmed, handle %s", timeout.Handle.Hex())
		}
		return "", err
	}
	if !result.Receipt.Success {
		return "", errors.Errorf("settlement reverted on chain: %s", result.Receipt.Reason)
	}
	return result.Receipt.TxHash.Hex(), nil
}
