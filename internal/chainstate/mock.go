package chainstate

import (
	"context"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var _ Reader = (*MockReader)(nil)

// MockReader is an in-memory Reader for tests and the demo path.
type MockReader struct {
	mu sync.RWMutex

	chainID  *big.Int
	balances map[ethcommon.Address]*big.Int
	code     map[ethcommon.Address][]byte
	nonces   map[ethcommon.Address]*big.Int
	gasPrice *big.Int

	// CallFn handles eth_call requests; nil means every call errors.
	CallFn func(to ethcommon.Address, data []byte) ([]byte, error)
	// Err forces every method to fail, simulating an unreachable RPC.
	Err error
}

func NewMockReader(chainID uint64) *MockReader {
	return &MockReader{
		chainID:  new(big.Int).SetUint64(chainID),
		balances: make(map[ethcommon.Address]*big.Int),
		code:     make(map[ethcommon.Address][]byte),
		nonces:   make(map[ethcommon.Address]*big.Int),
		gasPrice: big.NewInt(2_000_000_000),
	}
}

func (m *MockReader) SetBalance(addr ethcommon.Address, balance *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[addr] = new(big.Int).Set(balance)
}

func (m *MockReader) SetCode(addr ethcommon.Address, code []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code[addr] = code
}

func (m *MockReader) SetNonce(addr ethcommon.Address, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces[addr] = new(big.Int).SetUint64(nonce)
}

func (m *MockReader) SetGasPrice(price *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gasPrice = new(big.Int).Set(price)
}

func (m *MockReader) ChainID() *big.Int {
	return new(big.Int).Set(m.chainID)
}

func (m *MockReader) BalanceAt(_ context.Context, addr ethcommon.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if balance, ok := m.balances[addr]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (m *MockReader) CodeAt(_ context.Context, addr ethcommon.Address) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.code[addr], nil
}

func (m *MockReader) NonceAt(_ context.Context, addr ethcommon.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if nonce, ok := m.nonces[addr]; ok {
		return new(big.Int).Set(nonce), nil
	}
	return big.NewInt(0), nil
}

func (m *MockReader) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return new(big.Int).Set(m.gasPrice), nil
}

func (m *MockReader) CallContract(_ context.Context, to ethcommon.Address, data []byte) ([]byte, error) {
	m.mu.RLock()
	callFn := m.CallFn
	err := m.Err
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if callFn == nil {
		return nil, errors.New("mock reader: no call handler installed")
	}
	return callFn(to, data)
}
