package workingmemory_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kagent-dev/memoryanchor/internal/workingmemory"
)

func TestSetGet_RoundTrip(t *testing.T) {
	c := workingmemory.New(10)
	c.Set("sess-1", "last_file", "main.go", time.Minute)
	assert.Equal(t, "main.go", c.Get("sess-1", "last_file", nil))
}

func TestGet_DefaultWhenAbsent(t *testing.T) {
	c := workingmemory.New(10)
	assert.Equal(t, "fallback", c.Get("sess-1", "missing", "fallback"))
}

func TestSessionIsolation(t *testing.T) {
	c := workingmemory.New(10)
	c.Set("sess-1", "key", "a", time.Minute)
	c.Set("sess-2", "key", "b", time.Minute)

	assert.Equal(t, "a", c.Get("sess-1", "key", nil))
	assert.Equal(t, "b", c.Get("sess-2", "key", nil))
}

func TestDelete(t *testing.T) {
	c := workingmemory.New(10)
	c.Set("sess-1", "key", "a", time.Minute)
	c.Delete("sess-1", "key")
	assert.Nil(t, c.Get("sess-1", "key", nil))
}

func TestClearSession(t *testing.T) {
	c := workingmemory.New(10)
	c.Set("sess-1", "a", 1, time.Minute)
	c.Set("sess-1", "b", 2, time.Minute)
	c.Set("sess-2", "c", 3, time.Minute)

	c.ClearSession("sess-1")

	assert.Nil(t, c.Get("sess-1", "a", nil))
	assert.Nil(t, c.Get("sess-1", "b", nil))
	assert.Equal(t, 3, c.Get("sess-2", "c", nil))
}

func TestListKeysAndGetAll(t *testing.T) {
	c := workingmemory.New(10)
	c.Set("sess-1", "a", 1, time.Minute)
	c.Set("sess-1", "b", 2, time.Minute)

	keys := c.ListKeys("sess-1")
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	all := c.GetAll("sess-1")
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, all)
}

func TestReset(t *testing.T) {
	c := workingmemory.New(10)
	c.Set("sess-1", "a", 1, time.Minute)
	c.Reset()
	assert.Nil(t, c.Get("sess-1", "a", nil))
}

func TestExpiry_LazyEviction(t *testing.T) {
	c := workingmemory.New(10)
	c.Set("sess-1", "a", 1, time.Nanosecond)
	time.Sleep(time.Millisecond)
	assert.Nil(t, c.Get("sess-1", "a", nil))
}

func TestMaxItems_EvictsEarliestExpiryFirst(t *testing.T) {
	c := workingmemory.New(2)
	c.Set("sess-1", "a", 1, time.Second)
	c.Set("sess-1", "b", 2, time.Hour)
	c.Set("sess-1", "c", 3, time.Hour)

	// "a" had the earliest expiry and should have been evicted to make
	// room for "c".
	assert.Nil(t, c.Get("sess-1", "a", nil))
	assert.Equal(t, 2, c.Get("sess-1", "b", nil))
	assert.Equal(t, 3, c.Get("sess-1", "c", nil))
}

func TestConcurrentAccess(t *testing.T) {
	c := workingmemory.New(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("sess-1", "key", i, time.Minute)
			c.Get("sess-1", "key", nil)
		}(i)
	}
	wg.Wait()
}
