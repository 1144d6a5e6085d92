package bridge

import (
	"context"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// stubAggregator serves canned responses; setStatus changes the reported
// bridge status while relay timers are live.
type stubAggregator struct {
	mu         sync.Mutex
	quote      *Quote
	quoteErr   error
	call       *BridgeCall
	callErr    error
	status     string
	destTxHash string
	statusErr  error

	lastQuoteReq *QuoteRequest
}

func (s *stubAggregator) Quote(_ context.Context, req *QuoteRequest) (*Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuoteReq = req
	return s.quote, s.quoteErr
}

func (s *stubAggregator) BuildTransaction(context.Context, string) (*BridgeCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call, s.callErr
}

func (s *stubAggregator) Status(context.Context, string) (*BridgeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &BridgeStatus{Status: s.status, DestTxHash: s.destTxHash}, nil
}

func (s *stubAggregator) setStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *stubAggregator) quoteRequest() *QuoteRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuoteReq
}

// blockingAggregator holds every Status call open until released, exposing
// the window between the relay's status check and its completion write.
type blockingAggregator struct {
	stubAggregator
	statusEntered chan struct{}
	statusRelease chan struct{}
}

func (b *blockingAggregator) Status(ctx context.Context, txHash string) (*BridgeStatus, error) {
	b.statusEntered <- struct{}{}
	<-b.statusRelease
	return b.stubAggregator.Status(ctx, txHash)
}

// stubSettler records settlement calls per chain.
type stubSettler struct {
	mu      sync.Mutex
	hash    string
	err     error
	settled []string
}

func (s *stubSettler) Settle(_ context.Context, chainName string, _ ethcommon.Address, _ *big.Int, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.settled = append(s.settled, chainName)
	return s.hash, nil
}
