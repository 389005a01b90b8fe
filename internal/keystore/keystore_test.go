package keystore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	s := New([]string{"demo-1", "demo-2", ""})

	assert.True(t, s.Authorize("demo-1"))
	assert.True(t, s.Authorize("demo-1"))
	assert.True(t, s.Authorize("demo-2"))
	assert.False(t, s.Authorize("unknown"))
	assert.False(t, s.Authorize(""))

	count, ok := s.Usage("demo-1")
	assert.True(t, ok)
	assert.Equal(t, 2, count)

	_, ok = s.Usage("unknown")
	assert.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	s := New([]string{"demo-1"})
	s.Authorize("demo-1")

	snap := s.Snapshot()
	assert.Equal(t, map[string]int{"demo-1": 1}, snap)

	// Mutating the snapshot must not affect the store.
	snap["demo-1"] = 99
	count, _ := s.Usage("demo-1")
	assert.Equal(t, 1, count)
}

func TestAuthorizeConcurrent(t *testing.T) {
	s := New([]string{"demo-1"})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Authorize("demo-1")
		}()
	}
	wg.Wait()

	count, _ := s.Usage("demo-1")
	assert.Equal(t, 50, count)
}
