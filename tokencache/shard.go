package tokencache

import (
	"hash/fnv"
	"sync"
)

// shard owns a slice of the identity space. Its mutex is held for the whole
// read-classify-issue-store sequence of one operation.
type shard struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	order    orderPolicy
	capacity int
}

func newShard(capacity int, policy EvictionPolicy) *shard {
	return &shard{
		entries:  make(map[string]*Entry),
		order:    newOrderPolicy(policy),
		capacity: capacity,
	}
}

// put stores e for identity and returns the identity evicted to make room, if any.
func (s *shard) put(identity string, e *Entry) (string, bool) {
	var victim string
	var evicted bool
	if _, exists := s.entries[identity]; !exists && len(s.entries) >= s.capacity {
		if victim, evicted = s.order.Evict(); evicted {
			delete(s.entries, victim)
		}
	}
	s.entries[identity] = e
	s.order.OnPut(identity)
	return victim, evicted
}

func (s *shard) remove(identity string) bool {
	if _, ok := s.entries[identity]; !ok {
		return false
	}
	delete(s.entries, identity)
	s.order.Remove(identity)
	return true
}

func (s *shard) reset() {
	for identity := range s.entries {
		s.order.Remove(identity)
	}
	clear(s.entries)
}

func shardIndex(identity string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return int(h.Sum32() % uint32(n))
}

// splitCapacity divides total across n shards, giving the remainder to the
// first shards so the sum is exact.
func splitCapacity(total, n int) []int {
	caps := make([]int, n)
	base, rem := total/n, total%n
	for i := range caps {
		caps[i] = base
		if i < rem {
			caps[i]++
		}
	}
	return caps
}
