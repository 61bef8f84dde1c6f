package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

// memoryStore mimics the atomic upsert semantics of the SQL store
type memoryStore struct {
	mu      sync.Mutex
	quotas  map[string]*models.Quota
	ensured int
	failGet error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{quotas: make(map[string]*models.Quota)}
}

func (m *memoryStore) GetQuota(ctx context.Context, userID string) (*models.Quota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGet != nil {
		return nil, m.failGet
	}
	q, ok := m.quotas[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memoryStore) upsert(userID string, limit int) *models.Quota {
	q, ok := m.quotas[userID]
	if !ok {
		q = &models.Quota{UserID: userID, CallsLimit: limit}
		m.quotas[userID] = q
	}
	return q
}

func (m *memoryStore) EnsureQuota(ctx context.Context, userID string, defaultLimit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensured++
	m.upsert(userID, defaultLimit)
	return nil
}

func (m *memoryStore) IncrementQuota(ctx context.Context, userID string, defaultLimit int) (*models.Quota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.upsert(userID, defaultLimit)
	q.CallsUsed++
	q.UpdatedAt = time.Now()
	cp := *q
	return &cp, nil
}

func (m *memoryStore) ResetQuota(ctx context.Context, userID string, defaultLimit int) (*models.Quota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.upsert(userID, defaultLimit)
	q.CallsUsed = 0
	cp := *q
	return &cp, nil
}

func TestGetUsageCreatesDefaultRecord(t *testing.T) {
	store := newMemoryStore()
	ledger := NewLedger(store, 20, PolicySoft, nil)

	usage, err := ledger.GetUsage(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, Usage{Used: 0, Limit: 20}, usage)
	assert.Equal(t, 1, store.ensured)

	// Second read finds the record
	_, err = ledger.GetUsage(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.ensured)
}

func TestGetUsageConcurrentFirstReads(t *testing.T) {
	store := newMemoryStore()
	ledger := NewLedger(store, 20, PolicySoft, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.GetUsage(context.Background(), "u-1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Len(t, store.quotas, 1)
}

func TestGetUsageStoreError(t *testing.T) {
	store := newMemoryStore()
	store.failGet = errors.New("connection reset")
	ledger := NewLedger(store, 20, PolicySoft, nil)

	_, err := ledger.GetUsage(context.Background(), "u-1")
	assert.Error(t, err)
	assert.Equal(t, 0, store.ensured)
}

func TestIncrementCountsEveryCall(t *testing.T) {
	store := newMemoryStore()
	ledger := NewLedger(store, 20, PolicySoft, nil)
	ctx := context.Background()

	const n = 7
	for i := 0; i < n; i++ {
		_, err := ledger.Increment(ctx, "u-1")
		require.NoError(t, err)
	}

	usage, err := ledger.GetUsage(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, n, usage.Used)
}

func TestIncrementConcurrent(t *testing.T) {
	store := newMemoryStore()
	ledger := NewLedger(store, 20, PolicySoft, nil)
	ctx := context.Background()

	const m = 100
	var wg sync.WaitGroup
	for i := 0; i < m; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Increment(ctx, "u-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	usage, err := ledger.GetUsage(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, m, usage.Used)
}

func TestCheckLimitBoundaries(t *testing.T) {
	tests := []struct {
		used, limit int
		exceeded    bool
		remaining   int
	}{
		{0, 20, false, 20},
		{19, 20, false, 1},
		{20, 20, true, 0},
		{25, 20, true, 0},
		{0, 0, true, 0},
	}

	for _, tt := range tests {
		store := newMemoryStore()
		store.quotas["u"] = &models.Quota{UserID: "u", CallsUsed: tt.used, CallsLimit: tt.limit}
		ledger := NewLedger(store, 20, PolicySoft, nil)

		snap, err := ledger.CheckLimit(context.Background(), "u")
		require.NoError(t, err)
		assert.Equal(t, tt.exceeded, snap.Exceeded, "used=%d limit=%d", tt.used, tt.limit)
		assert.Equal(t, tt.remaining, snap.Remaining, "used=%d limit=%d", tt.used, tt.limit)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	store.quotas["u"] = &models.Quota{UserID: "u", CallsUsed: 15, CallsLimit: 50}
	ledger := NewLedger(store, 20, PolicySoft, nil)

	for i := 0; i < 2; i++ {
		snap, err := ledger.Reset(context.Background(), "u")
		require.NoError(t, err)
		assert.Equal(t, 0, snap.Used)
		assert.Equal(t, 50, snap.Limit)
	}
}

func TestPolicyBlocks(t *testing.T) {
	over := NewSnapshot(20, 20)
	under := NewSnapshot(3, 20)

	soft := NewLedger(newMemoryStore(), 20, PolicySoft, nil)
	hard := NewLedger(newMemoryStore(), 20, PolicyHard, nil)

	assert.False(t, soft.Blocks(over))
	assert.True(t, hard.Blocks(over))
	assert.False(t, hard.Blocks(under))
}

func TestSnapshotWarning(t *testing.T) {
	assert.Empty(t, NewSnapshot(1, 20).Warning())
	assert.Equal(t, LimitWarning, NewSnapshot(20, 20).Warning())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("hard")
	require.NoError(t, err)
	assert.Equal(t, PolicyHard, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySoft, p)

	_, err = ParsePolicy("strict")
	assert.Error(t, err)
}
