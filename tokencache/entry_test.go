package tokencache

import (
	"testing"
	"time"
)

func TestEntryClassify(t *testing.T) {
	exp := time.Unix(1_700_001_000, 0)
	e := Entry{ExpiresAt: exp}
	buffer := 300 * time.Second

	tests := []struct {
		name string
		now  time.Time
		want State
	}{
		{name: "well before buffer", now: exp.Add(-600 * time.Second), want: StateFresh},
		{name: "one second before buffer", now: exp.Add(-301 * time.Second), want: StateFresh},
		{name: "exactly buffer left", now: exp.Add(-buffer), want: StateStale},
		{name: "one second left", now: exp.Add(-time.Second), want: StateStale},
		{name: "at expiry", now: exp, want: StateExpired},
		{name: "after expiry", now: exp.Add(time.Hour), want: StateExpired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.Classify(tc.now, buffer); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestEntryRemaining(t *testing.T) {
	exp := time.Unix(1_700_001_000, 0)
	e := Entry{ExpiresAt: exp}

	if got := e.RemainingSeconds(exp.Add(-1500 * time.Millisecond)); got != 1 {
		t.Fatalf("expected 1s remaining, got %d", got)
	}
	if got := e.Remaining(exp.Add(time.Minute)); got != 0 {
		t.Fatalf("expected no remaining time after expiry, got %s", got)
	}
}

func TestParseEvictionPolicy(t *testing.T) {
	for in, want := range map[string]EvictionPolicy{"": EvictLRU, "LRU": EvictLRU, " fifo ": EvictFIFO} {
		got, err := ParseEvictionPolicy(in)
		if err != nil || got != want {
			t.Fatalf("parse %q: got %q err %v", in, got, err)
		}
	}
	if _, err := ParseEvictionPolicy("lfu"); err == nil {
		t.Fatal("expected unsupported policy to fail")
	}
}

func TestListPolicyOrder(t *testing.T) {
	lru := newOrderPolicy(EvictLRU)
	for _, k := range []string{"a", "b", "c"} {
		lru.OnPut(k)
	}
	lru.OnGet("a")
	lru.Remove("b")
	if k, ok := lru.Evict(); !ok || k != "c" {
		t.Fatalf("expected c, got %q", k)
	}
	if k, ok := lru.Evict(); !ok || k != "a" {
		t.Fatalf("expected a, got %q", k)
	}
	if _, ok := lru.Evict(); ok {
		t.Fatal("expected empty policy")
	}
}
