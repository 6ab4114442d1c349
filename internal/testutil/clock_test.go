package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWallClock_Frozen(t *testing.T) {
	c := NewWallClock(Reference, 0)
	assert.Equal(t, Reference, c.Now())
	assert.Equal(t, Reference, c.Now())
}

func TestWallClock_Steps(t *testing.T) {
	c := NewWallClock(Reference, time.Second)
	assert.Equal(t, Reference, c.Now())
	assert.Equal(t, Reference.Add(time.Second), c.Now())

	c.Set(DaysAgo(1))
	assert.Equal(t, time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC), c.Now())
}

func TestWallClock_ConcurrentReads(t *testing.T) {
	c := NewWallClock(Reference, time.Millisecond)
	var wg sync.WaitGroup
	seen := make(chan time.Time, 100)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- c.Now()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[time.Time]bool{}
	for ts := range seen {
		unique[ts] = true
	}
	assert.Len(t, unique, 100)
}
