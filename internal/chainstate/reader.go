package chainstate

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// Reader is the read-only view of one chain the pipeline needs. All methods
// are keyed by the chain the reader was dialed for.
type Reader interface {
	ChainID() *big.Int
	BalanceAt(ctx context.Context, addr ethcommon.Address) (*big.Int, error)
	CodeAt(ctx context.Context, addr ethcommon.Address) ([]byte, error)
	NonceAt(ctx context.Context, addr ethcommon.Address) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, to ethcommon.Address, data []byte) ([]byte, error)
}

var _ Reader = (*EthReader)(nil)

// EthReader backs Reader with a real JSON-RPC endpoint.
type EthReader struct {
	client  *ethclient.Client
	chainID *big.Int
}

func DialReader(ctx context.Context, rawURL string, chainID uint64) (*EthReader, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial chain rpc %s", rawURL)
	}
	return &EthReader{
		client:  client,
		chainID: new(big.Int).SetUint64(chainID),
	}, nil
}

func (r *EthReader) ChainID() *big.Int {
	return new(big.Int).Set(r.chainID)
}

func (r *EthReader) BalanceAt(ctx context.Context, addr ethcommon.Address) (*big.Int, error) {
	return r.client.BalanceAt(ctx, addr, nil)
}

func (r *EthReader) CodeAt(ctx context.Context, addr ethcommon.Address) ([]byte, error) {
	return r.client.CodeAt(ctx, addr, nil)
}

func (r *EthReader) NonceAt(ctx context.Context, addr ethcommon.Address) (*big.Int, error) {
	nonce, err := r.client.NonceAt(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(nonce), nil
}

func (r *EthReader) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return r.client.SuggestGasPrice(ctx)
}

func (r *EthReader) CallContract(ctx context.Context, to ethcommon.Address, data []byte) ([]byte, error) {
	return r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

func (r *EthReader) Close() {
	r.client.Close()
}
