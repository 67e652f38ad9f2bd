package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestLRUBasicOperations(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := c.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected value1, got %s", val)
		}
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		val, err := c.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for missing key, got %s", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c.Set(ctx, "key2", []byte("value2"), time.Minute)
		if err := c.Delete(ctx, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		val, _ := c.Get(ctx, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		c.Set(ctx, "fleeting", []byte("value"), 10*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		val, _ := c.Get(ctx, "fleeting")
		if val != nil {
			t.Error("expected expired entry to be gone")
		}
	})
}

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache(3)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Set(ctx, fmt.Sprintf("key%d", i), []byte("v"), time.Minute)
	}

	size, capacity := c.Stats()
	if size != 3 {
		t.Errorf("expected size 3 after eviction, got %d", size)
	}
	if capacity != 3 {
		t.Errorf("expected capacity 3, got %d", capacity)
	}

	// Oldest entries evicted
	if val, _ := c.Get(ctx, "key0"); val != nil {
		t.Error("expected key0 evicted")
	}
	if val, _ := c.Get(ctx, "key4"); val == nil {
		t.Error("expected key4 present")
	}
}

func TestLRURuleSet(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	t.Run("MissBeforeSet", func(t *testing.T) {
		rules, err := c.GetRules(ctx)
		if err != nil {
			t.Fatalf("GetRules failed: %v", err)
		}
		if rules != nil {
			t.Errorf("expected nil on miss, got %d rules", len(rules))
		}
	})

	rules := []*domain.Rule{
		{ID: "r1", Name: "High Amount", Field: domain.FieldAmount, Condition: domain.CondGreaterThan, Value: "500000", Enabled: true, SeverityWeight: 40},
		{ID: "r2", Name: "Risky Location", Field: domain.FieldLocation, Condition: domain.CondIn, Value: "NG-LAGOS", Enabled: true, SeverityWeight: 30},
	}

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.SetRules(ctx, rules, time.Minute); err != nil {
			t.Fatalf("SetRules failed: %v", err)
		}

		cached, err := c.GetRules(ctx)
		if err != nil {
			t.Fatalf("GetRules failed: %v", err)
		}
		if len(cached) != 2 {
			t.Fatalf("expected 2 cached rules, got %d", len(cached))
		}
		if cached[0].Name != "High Amount" || cached[0].SeverityWeight != 40 {
			t.Errorf("unexpected cached rule: %+v", cached[0])
		}
	})

	t.Run("Invalidate", func(t *testing.T) {
		if err := c.InvalidateRules(ctx); err != nil {
			t.Fatalf("InvalidateRules failed: %v", err)
		}
		cached, err := c.GetRules(ctx)
		if err != nil {
			t.Fatalf("GetRules failed: %v", err)
		}
		if cached != nil {
			t.Errorf("expected nil after invalidation, got %d rules", len(cached))
		}
	})
}

func TestLRUCounter(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, err := c.IncrementCounter(ctx, "acc-001", time.Minute)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count != i {
			t.Errorf("expected count %d, got %d", i, count)
		}
	}

	// Separate key has its own counter
	count, _ := c.IncrementCounter(ctx, "acc-002", time.Minute)
	if count != 1 {
		t.Errorf("expected fresh counter 1, got %d", count)
	}
}

func TestLRUCounterWindowReset(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	c.IncrementCounter(ctx, "acc-001", 10*time.Millisecond)
	c.IncrementCounter(ctx, "acc-001", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	count, err := c.IncrementCounter(ctx, "acc-001", time.Minute)
	if err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected counter reset to 1 after window, got %d", count)
	}
}

func TestLRUConcurrentAccess(t *testing.T) {
	c := NewLRUCache(100)
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", n%5)
			c.Set(ctx, key, []byte("v"), time.Minute)
			c.Get(ctx, key)
			c.IncrementCounter(ctx, "shared", time.Minute)
		}(i)
	}
	wg.Wait()

	count, err := c.IncrementCounter(ctx, "shared", time.Minute)
	if err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if count != 21 {
		t.Errorf("expected count 21 after 20 concurrent increments, got %d", count)
	}
}

func TestNewUnsupportedType(t *testing.T) {
	_, err := New(domain.CacheConfig{Type: "memcached"})
	if err == nil {
		t.Error("expected error for unsupported cache type")
	}
}

func TestNewMemory(t *testing.T) {
	c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 10})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
