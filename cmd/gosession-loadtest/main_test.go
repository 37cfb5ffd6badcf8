package main

import (
	"context"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 0); got != 1 {
		t.Fatalf("p0 = %v", got)
	}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %v", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %v", got)
	}
	if percentile(nil, 50) != 0 {
		t.Fatal("empty percentile must be 0")
	}
}

func TestRunSmall(t *testing.T) {
	err := run(context.Background(), options{
		identities:  20,
		concurrency: 4,
		ops:         200,
		stormSize:   8,
		users:       5,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}
