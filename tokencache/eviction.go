package tokencache

import (
	"container/list"
	"fmt"
	"strings"
)

// EvictionPolicy selects which identity a full shard gives up.
type EvictionPolicy string

const (
	// EvictLRU evicts the least recently returned or stored identity.
	EvictLRU EvictionPolicy = "lru"
	// EvictFIFO evicts the identity whose entry was stored first.
	EvictFIFO EvictionPolicy = "fifo"
)

// ParseEvictionPolicy accepts "lru" or "fifo" in any case. An empty string means LRU.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch EvictionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", EvictLRU:
		return EvictLRU, nil
	case EvictFIFO:
		return EvictFIFO, nil
	default:
		return "", fmt.Errorf("unknown eviction policy %q", s)
	}
}

// EvictReason explains why an entry left the cache without an explicit invalidate.
type EvictReason uint8

const (
	// EvictCapacity is a removal to make room in a full shard.
	EvictCapacity EvictReason = iota
	// EvictTTL is a removal by the hard TTL.
	EvictTTL
	// EvictExpired is a removal of an entry whose token expired.
	EvictExpired
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictTTL:
		return "ttl"
	case EvictExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// orderPolicy tracks identities of one shard in eviction order. It is not
// safe for concurrent use; the owning shard's lock guards it.
type orderPolicy interface {
	OnGet(key string)
	OnPut(key string)
	Remove(key string)
	Evict() (string, bool)
}

// listPolicy keeps keys in a list with the eviction victim at the back.
// LRU promotes on reads, FIFO does not.
type listPolicy struct {
	promoteOnGet bool
	order        *list.List
	nodes        map[string]*list.Element
}

func newOrderPolicy(p EvictionPolicy) orderPolicy {
	return &listPolicy{
		promoteOnGet: p != EvictFIFO,
		order:        list.New(),
		nodes:        make(map[string]*list.Element),
	}
}

func (l *listPolicy) OnGet(key string) {
	if !l.promoteOnGet {
		return
	}
	if n, ok := l.nodes[key]; ok {
		l.order.MoveToFront(n)
	}
}

// OnPut records a store. Replacing an existing key counts as a fresh insertion.
func (l *listPolicy) OnPut(key string) {
	if n, ok := l.nodes[key]; ok {
		l.order.MoveToFront(n)
		return
	}
	l.nodes[key] = l.order.PushFront(key)
}

func (l *listPolicy) Remove(key string) {
	if n, ok := l.nodes[key]; ok {
		l.order.Remove(n)
		delete(l.nodes, key)
	}
}

func (l *listPolicy) Evict() (string, bool) {
	back := l.order.Back()
	if back == nil {
		return "", false
	}
	key := back.Value.(string)
	l.order.Remove(back)
	delete(l.nodes, key)
	return key, true
}
