package bridge

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetIsolation(t *testing.T) {
	store := NewMemoryStore()
	tx := &BridgeTransaction{ID: "tx-1", Status: StatusPending, Recipient: testRecipient}
	store.Put(tx)

	// mutating either side must not leak into the other
	tx.Status = StatusFailed
	got, ok := store.Get("tx-1")
	require.True(t, ok)
	assert.Equal(t, StatusPending, got.Status)

	got.Status = StatusCompleted
	again, ok := store.Get("tx-1")
	require.True(t, ok)
	assert.Equal(t, StatusPending, again.Status)
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	store := NewMemoryStore()
	_, ok := store.Get("nope")
	assert.False(t, ok)
}

func TestMemoryStore_PutOverwrites(t *testing.T) {
	store := NewMemoryStore()
	store.Put(&BridgeTransaction{ID: "tx-1", Status: StatusPending})
	store.Put(&BridgeTransaction{ID: "tx-1", Status: StatusProcessing})

	got, ok := store.Get("tx-1")
	require.True(t, ok)
	assert.Equal(t, StatusProcessing, got.Status)
}

func TestMemoryStore_ByRecipient(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.Put(&BridgeTransaction{ID: "tx-1", Recipient: testRecipient, CreatedAt: now.Add(-2 * time.Minute)})
	store.Put(&BridgeTransaction{ID: "tx-2", Recipient: testRecipient, CreatedAt: now})
	store.Put(&BridgeTransaction{ID: "tx-3", Recipient: testSender, CreatedAt: now.Add(-time.Minute)})

	txs := store.ByRecipient(testRecipient)
	require.Len(t, txs, 2)
	assert.Equal(t, "tx-2", txs[0].ID)
	assert.Equal(t, "tx-1", txs[1].ID)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("tx-%d", i)
			store.Put(&BridgeTransaction{ID: id, Recipient: testRecipient})
			_, _ = store.Get(id)
			_ = store.ByRecipient(testRecipient)
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.ByRecipient(testRecipient), 32)
}
