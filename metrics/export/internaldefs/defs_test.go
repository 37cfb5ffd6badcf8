package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterDefsUnique(t *testing.T) {
	names := map[string]bool{}
	ids := map[uint16]bool{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "gosession_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
		if names[def.Name] || ids[uint16(def.ID)] {
			t.Fatalf("duplicate counter %q", def.Name)
		}
		names[def.Name] = true
		ids[uint16(def.ID)] = true
	}
}

func TestBucketHelpers(t *testing.T) {
	if len(HistogramBounds) != len(HistogramBoundSuffix) || len(HistogramBounds) != 8 {
		t.Fatal("bucket tables disagree")
	}
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
