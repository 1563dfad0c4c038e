package disabled

import (
	"sync"
	"testing"
)

func TestCheck_TriState(t *testing.T) {
	c := New(100)

	if got := c.Check(1); got != StatusUnknown {
		t.Fatalf("unseen hash: Check = %v, want StatusUnknown", got)
	}

	c.MarkDisabled(1)
	if got := c.Check(1); got != StatusDisabled {
		t.Fatalf("after MarkDisabled: Check = %v, want StatusDisabled", got)
	}

	c.MarkChecked(2)
	if got := c.Check(2); got != StatusNotDisabled {
		t.Fatalf("after MarkChecked: Check = %v, want StatusNotDisabled", got)
	}

	// a later disable wins over an earlier negative result
	c.MarkDisabled(2)
	if got := c.Check(2); got != StatusDisabled {
		t.Fatalf("disable after check: Check = %v, want StatusDisabled", got)
	}
}

func TestCheckBatch_Partitions(t *testing.T) {
	c := New(100)
	c.MarkDisabled(10)
	c.MarkDisabled(11)
	c.MarkChecked(20)

	disabled, unknown := c.CheckBatch([]uint64{10, 11, 20, 30, 31})
	if len(disabled) != 2 || disabled[0] != 10 || disabled[1] != 11 {
		t.Fatalf("disabled = %v", disabled)
	}
	// 20 has a cached negative result: neither disabled nor unknown
	if len(unknown) != 2 || unknown[0] != 30 || unknown[1] != 31 {
		t.Fatalf("unknown = %v", unknown)
	}
}

func TestLoadDisabled_CapAndTruncation(t *testing.T) {
	c := New(3)
	c.LoadDisabled([]uint64{1, 2, 3, 4, 5})
	if got := c.Len(); got != 3 {
		t.Fatalf("Len = %d, want capacity 3", got)
	}
	if c.Check(1) != StatusDisabled || c.Check(3) != StatusDisabled {
		t.Fatal("loaded hashes not disabled")
	}
	// beyond the cap nothing was loaded
	if c.Check(5) != StatusUnknown {
		t.Fatal("hash past capacity should be unknown")
	}

	// MarkDisabled at cap: set insert is a no-op, recency entry still lands
	c.MarkDisabled(6)
	if got := c.Len(); got != 3 {
		t.Fatalf("Len after MarkDisabled at cap = %d, want 3", got)
	}
	if c.Check(6) != StatusDisabled {
		t.Fatal("recency entry should still report disabled")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(10_000)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			for i := uint64(0); i < 1_000; i++ {
				h := seed*1_000 + i
				c.MarkDisabled(h)
				c.Check(h)
				c.MarkChecked(h + 1_000_000)
				c.CheckBatch([]uint64{h, h + 1})
			}
		}(uint64(w))
	}
	wg.Wait()
	if c.Len() == 0 {
		t.Fatal("nothing recorded")
	}
}
