package keys

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/randsrc"
)

func TestSharedAllocatesWholeRangeThenFails(t *testing.T) {
	a := NewShared("id", 1, 5, nil)
	src := randsrc.New(3)
	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		k, err := a.Allocate(src)
		require.NoError(t, err)
		require.False(t, seen[k], "duplicate key %d", k)
		require.GreaterOrEqual(t, k, int64(1))
		require.LessOrEqual(t, k, int64(5))
		seen[k] = true
	}

	_, err := a.Allocate(src)
	var exhausted *domain.KeyRangeExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, "id", exhausted.Field)
}

func TestSharedConcurrentWorkersNeverCollide(t *testing.T) {
	const (
		workers   = 8
		perWorker = 250
	)
	// Range exactly as large as the demand forces contention on the last keys.
	a := NewShared("id", 1000, 1000+workers*perWorker-1, nil)

	var (
		mu   sync.Mutex
		seen = map[int64]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			src := randsrc.New(seed)
			for i := 0; i < perWorker; i++ {
				k, err := a.Allocate(src)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[k]++
				mu.Unlock()
			}
		}(int64(w))
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
	for k, n := range seen {
		require.Equal(t, 1, n, "key %d allocated %d times", k, n)
	}
	require.Equal(t, workers*perWorker, a.Used())
}

// stuckSource always draws the lower bound.
type stuckSource struct{ randsrc.Source }

func (stuckSource) IntRange(min, _ int64) int64 { return min }

func TestSaturatedDrawsFallBackToProbe(t *testing.T) {
	total := 0
	a := NewShared("id", 1, 3, func(field string, collisions int) {
		require.Equal(t, "id", field)
		total += collisions
	})
	src := stuckSource{}
	got := map[int64]bool{}
	for i := 0; i < 3; i++ {
		k, err := a.Allocate(src)
		require.NoError(t, err)
		got[k] = true
	}
	require.Len(t, got, 3)
	require.Equal(t, 2*MaxRandomAttempts, total)
}

func TestCheckCapacity(t *testing.T) {
	require.NoError(t, CheckCapacity("id", 1, 10, 10))
	require.NoError(t, CheckCapacity("id", 1, 10, 0))

	err := CheckCapacity("id", 1, 10, 11)
	var exhausted *domain.KeyRangeExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 11, exhausted.Requested)
}

func TestPartitionIsDisjointAndCoversQuotas(t *testing.T) {
	quotas := []int{10, 10, 5}
	parts, ok := Partition("id", 1, 100, quotas, nil)
	require.True(t, ok)
	require.Len(t, parts, 3)

	prevHi := int64(0)
	for i, p := range parts {
		lo, hi := p.(*Local).Bounds()
		require.Equal(t, prevHi+1, lo)
		require.GreaterOrEqual(t, hi-lo+1, int64(quotas[i]))
		prevHi = hi
	}
	require.Equal(t, int64(100), prevHi)

	src := randsrc.New(5)
	seen := map[int64]bool{}
	for i, p := range parts {
		for n := 0; n < quotas[i]; n++ {
			k, err := p.Allocate(src)
			require.NoError(t, err)
			require.False(t, seen[k])
			seen[k] = true
		}
	}
}

func TestPartitionRefusesTightRange(t *testing.T) {
	_, ok := Partition("id", 1, 20, []int{10, 11}, nil)
	require.False(t, ok)

	_, ok = Partition("id", 1, 20, nil, nil)
	require.False(t, ok)
}
