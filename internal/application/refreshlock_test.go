package application

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefreshKey(t *testing.T) {
	assert.Equal(t, "alice_3_42", RefreshKey("alice", 3, 42))
	assert.NotEqual(t, RefreshKey("alice", 1, 2), RefreshKey("alice", 2, 1))
}

func TestRefreshRegistry_AcquireRelease(t *testing.T) {
	r := NewRefreshRegistry()

	assert.True(t, r.TryAcquire("k"))
	assert.True(t, r.IsHeld("k"))
	assert.False(t, r.TryAcquire("k"), "second acquire must fail while held")
	assert.True(t, r.TryAcquire("other"), "distinct keys are independent")
	assert.Equal(t, 2, r.Len())

	r.Release("k")
	assert.False(t, r.IsHeld("k"))
	assert.True(t, r.TryAcquire("k"), "key is reusable after release")

	r.Release("missing")
	assert.Equal(t, 2, r.Len())
}

func TestRefreshRegistry_ConcurrentAcquireHasOneWinner(t *testing.T) {
	r := NewRefreshRegistry()

	const contenders = 64
	var winners atomic.Int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(contenders)
	for range contenders {
		go func() {
			defer wg.Done()
			<-start
			if r.TryAcquire("alice_1_1") {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
