package cache

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestCache_GetSet(t *testing.T) {
	c := New[string](time.Minute, 10, nil)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() on empty cache returned a value")
	}

	c.Set("k", "v")
	if got, ok := c.Get("k"); !ok || got != "v" {
		t.Errorf("Get(k) = %q, %v; want v, true", got, ok)
	}

	c.Set("k", "v2")
	if got, _ := c.Get("k"); got != "v2" {
		t.Errorf("Get(k) after update = %q, want v2", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_Expiry(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[int](15*time.Minute, 10, clk.now)

	c.Set("k", 1)
	clk.t = clk.t.Add(14 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired before its TTL")
	}

	clk.t = clk.t.Add(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("entry still served at its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want expired entry removed", c.Len())
	}
}

func TestCache_EvictsOldest(t *testing.T) {
	c := New[int](time.Minute, 2, nil)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry not evicted")
	}
	for _, key := range []string{"b", "c"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("Get(%s) missing", key)
		}
	}
}
