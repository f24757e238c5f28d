// Package keys hands out collision-free primary keys within one domain run.
package keys

import (
	"sync"

	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/randsrc"
)

// MaxRandomAttempts bounds the random draws before an allocator falls back
// to probing for a free key.
const MaxRandomAttempts = 64

// Allocator claims primary keys. A key is returned to at most one caller.
type Allocator interface {
	Allocate(src randsrc.Source) (int64, error)
}

// Observer is told how many random draws collided before a key was found.
type Observer func(field string, collisions int)

type keySet struct {
	field string
	start int64
	end   int64
	used  map[int64]struct{}
	obs   Observer
}

func newKeySet(field string, start, end int64, obs Observer) *keySet {
	return &keySet{field: field, start: start, end: end, used: make(map[int64]struct{}), obs: obs}
}

func (s *keySet) size() int64 { return s.end - s.start + 1 }

func (s *keySet) allocate(src randsrc.Source) (int64, error) {
	if s.end < s.start || int64(len(s.used)) >= s.size() {
		return 0, &domain.KeyRangeExhaustedError{Field: s.field, Start: s.start, End: s.end}
	}

	for attempt := 0; attempt < MaxRandomAttempts; attempt++ {
		k := src.IntRange(s.start, s.end)
		if _, taken := s.used[k]; !taken {
			s.used[k] = struct{}{}
			if s.obs != nil && attempt > 0 {
				s.obs(s.field, attempt)
			}
			return k, nil
		}
	}

	// Saturated range: walk from a random offset to the next free key.
	if s.obs != nil {
		s.obs(s.field, MaxRandomAttempts)
	}
	size := s.size()
	offset := src.IntRange(0, size-1)
	for i := int64(0); i < size; i++ {
		k := s.start + (offset+i)%size
		if _, taken := s.used[k]; !taken {
			s.used[k] = struct{}{}
			return k, nil
		}
	}
	return 0, &domain.KeyRangeExhaustedError{Field: s.field, Start: s.start, End: s.end}
}

// Shared is a mutex-guarded used-key set shared by every worker of a domain.
type Shared struct {
	mu  sync.Mutex
	set *keySet
}

func NewShared(field string, start, end int64, obs Observer) *Shared {
	return &Shared{set: newKeySet(field, start, end, obs)}
}

func (a *Shared) Allocate(src randsrc.Source) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.set.allocate(src)
}

// Used reports how many keys have been claimed.
func (a *Shared) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.set.used)
}

// Local is an unlocked used-key set owned by a single worker.
type Local struct {
	set *keySet
}

func NewLocal(field string, start, end int64, obs Observer) *Local {
	return &Local{set: newKeySet(field, start, end, obs)}
}

func (a *Local) Allocate(src randsrc.Source) (int64, error) {
	return a.set.allocate(src)
}

func (a *Local) Bounds() (int64, int64) { return a.set.start, a.set.end }

// CheckCapacity fails when [start, end] cannot hold requested unique keys.
func CheckCapacity(field string, start, end int64, requested int) error {
	if requested <= 0 {
		return nil
	}
	if end < start || end-start+1 < int64(requested) {
		return &domain.KeyRangeExhaustedError{Field: field, Start: start, End: end, Requested: requested}
	}
	return nil
}

// Partition splits [start, end] into disjoint sub-ranges, one per quota,
// each at least as large as its quota. It reports false when the range is
// too small for a disjoint split.
func Partition(field string, start, end int64, quotas []int, obs Observer) ([]Allocator, bool) {
	if len(quotas) == 0 || end < start {
		return nil, false
	}
	total := int64(0)
	for _, q := range quotas {
		total += int64(q)
	}
	size := end - start + 1
	if total == 0 || size < total {
		return nil, false
	}

	// Each sub-range is quota*stride wide; the last one takes the remainder.
	stride := size / total
	out := make([]Allocator, len(quotas))
	lo := start
	for i, q := range quotas {
		hi := lo + int64(q)*stride - 1
		if i == len(quotas)-1 {
			hi = end
		}
		out[i] = NewLocal(field, lo, hi, obs)
		lo = hi + 1
	}
	return out, true
}
