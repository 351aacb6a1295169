package id

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUniqueAndSorted(t *testing.T) {
	t.Parallel()

	prev := ""
	for i := 0; i < 1000; i++ {
		s := New()
		require.Len(t, s, 26)
		assert.Greater(t, s, prev)
		prev = s
	}
}

func TestNewConcurrent(t *testing.T) {
	t.Parallel()

	const workers, per = 8, 250

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*per)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				s := New()
				mu.Lock()
				seen[s] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*per)
}

func TestTime(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	ts, err := Time(New())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Time("not-an-id")
	assert.Error(t, err)
}
