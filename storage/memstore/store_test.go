package memstore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStore(t *testing.T) {
	now := time.Date(2021, time.January, 10, 8, 0, 0, 0, time.UTC)
	store := New[string](time.Minute)
	store.NowFunc = func() time.Time { return now }

	store.Put("a", "A")
	store.Put("b", "B")

	val, ok := store.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", val)
	assert.Equal(t, 2, store.Len())

	store.Delete("a")
	_, ok = store.Get("a")
	assert.False(t, ok)

	tests := []struct {
		name   string
		after  time.Duration
		wantOk bool
	}{
		{name: "before ttl", after: 59 * time.Second, wantOk: true},
		{name: "at ttl", after: time.Minute, wantOk: false},
		{name: "after ttl", after: 2 * time.Minute, wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.Put("c", "C")
			store.NowFunc = func() time.Time { return now.Add(tt.after) }
			defer func() { store.NowFunc = func() time.Time { return now } }()

			_, ok := store.Get("c")
			assert.Equal(t, tt.wantOk, ok)
		})
	}
}

func TestStore_NoTTL(t *testing.T) {
	store := New[int](0)
	store.Put("x", 1)
	store.NowFunc = func() time.Time { return time.Now().Add(100 * 365 * 24 * time.Hour) }

	val, ok := store.Get("x")
	assert.True(t, ok)
	assert.Equal(t, 1, val)
}

func TestStore_Len(t *testing.T) {
	now := time.Now()
	store := New[int](time.Second)
	store.NowFunc = func() time.Time { return now }
	store.Put("x", 1)
	store.Put("y", 2)

	store.NowFunc = func() time.Time { return now.Add(time.Second) }
	store.Put("z", 3)
	assert.Equal(t, 1, store.Len())
}

func TestStore_Concurrent(t *testing.T) {
	store := New[int](time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			store.Put(key, i)
			if v, ok := store.Get(key); ok {
				assert.Equal(t, i, v)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, store.Len())
}
