package bridge

import (
	"sort"

	ethcommon "github.com/ethereum/go-ethereum/common"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/samber/lo"
)

// Store is the transaction registry contract: concurrent insert, update and
// read without corruption. Injected into the orchestrator so a persistent
// implementation can replace the in-memory one without touching
// orchestration logic.
type Store interface {
	Put(tx *BridgeTransaction)
	Get(id string) (*BridgeTransaction, bool)
	ByRecipient(recipient ethcommon.Address) []*BridgeTransaction
}

var _ Store = (*MemoryStore)(nil)

type MemoryStore struct {
	txs cmap.ConcurrentMap[string, *BridgeTransaction]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: cmap.New[*BridgeTransaction]()}
}

// Put stores a snapshot; the caller keeps ownership of its copy.
func (s *MemoryStore) Put(tx *BridgeTransaction) {
	s.txs.Set(tx.ID, tx.Copy())
}

func (s *MemoryStore) Get(id string) (*BridgeTransaction, bool) {
	tx, ok := s.txs.Get(id)
	if !ok {
		return nil, false
	}
	return tx.Copy(), true
}

// ByRecipient returns the recipient's transactions, newest first.
func (s *MemoryStore) ByRecipient(recipient ethcommon.Address) []*BridgeTransaction {
	matches := lo.FilterMap(lo.Values(s.txs.Items()), func(tx *BridgeTransaction, _ int) (*BridgeTransaction, bool) {
		if tx.Recipient != recipient {
			return nil, false
		}
		return tx.Copy(), true
	})
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches
}
