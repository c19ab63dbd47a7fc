package ids

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New(PrefixProject)
	assert.True(t, strings.HasPrefix(id, "PRJ-"))
	assert.Equal(t, strings.ToUpper(id), id)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New(PrefixCredit)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSerialGenerator_Format(t *testing.T) {
	g := NewSerialGenerator()
	g.now = func() time.Time { return time.UnixMilli(1700000000000) }
	g.random = func() string { return "00C0FFEE" }

	assert.Equal(t, "CC-2024-ABC123-1700000000000-00C0FFEE", g.Next("PRJ-LZ3ABC123", "2024"))
	assert.Equal(t, "CC-2024-NOPROJ-1700000000001-00C0FFEE", g.Next("", "2024"))
}

func TestSerialGenerator_SeparateGeneratorsDoNotCollide(t *testing.T) {
	clock := func() time.Time { return time.UnixMilli(1700000000000) }
	a, b := NewSerialGenerator(), NewSerialGenerator()
	a.now, b.now = clock, clock

	first, second := a.Next("PRJ-1", "2025"), b.Next("PRJ-1", "2025")
	assert.NotEqual(t, first, second)
	assert.Regexp(t, `^CC-2025-PRJ1-1700000000000-[0-9A-F]{8}$`, first)
}

func TestSerialGenerator_MonotonicUnderContention(t *testing.T) {
	g := NewSerialGenerator()

	var (
		mu      sync.Mutex
		serials = make(map[string]bool)
		wg      sync.WaitGroup
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := g.Next("PRJ-1", "2025")
			mu.Lock()
			serials[s] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, serials, 200)
}
