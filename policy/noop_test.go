package policy_test

import (
	"testing"

	"github.com/pithecene-io/scriptrun/policy"
)

func TestNoopPolicy_CountsWithoutPersisting(t *testing.T) {
	pol := policy.NewNoopPolicy()

	for i := 1; i <= 3; i++ {
		if err := pol.IngestLine(t.Context(), line(i, "x")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	stats := pol.Stats()
	if stats.TotalLines != 3 {
		t.Errorf("TotalLines = %d, want 3", stats.TotalLines)
	}
	if stats.LinesPersisted != 0 {
		t.Errorf("LinesPersisted = %d, want 0", stats.LinesPersisted)
	}
	if stats.FlushCount != 1 {
		t.Errorf("FlushCount = %d, want 1", stats.FlushCount)
	}
	if err := pol.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
