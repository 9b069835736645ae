package stateengine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapLoadOrStoreReturnsSameEntry(t *testing.T) {
	m := NewMap[string, int]()
	e1, existed := m.LoadOrStore("a", 1)
	assert.False(t, existed)
	e2, existed := m.LoadOrStore("a", 2)
	assert.True(t, existed)
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, e2.Snapshot())
}

func TestEntryTryWriteFailsUnderContention(t *testing.T) {
	e := &Entry[int]{value: 1}
	e.mu.Lock()
	defer e.mu.Unlock()

	ok := e.TryWrite(func(v *int) { *v = 2 })
	assert.False(t, ok, "TryWrite must not block or succeed while the entry is already locked")
}

func TestMapConcurrentWritesAreIsolatedPerEntry(t *testing.T) {
	m := NewMap[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		m.LoadOrStore(i, 0)
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, _ := m.Load(i)
			for n := 0; n < 100; n++ {
				e.Write(func(v *int) { *v++ })
			}
		}()
	}
	wg.Wait()

	m.Range(func(_ int, e *Entry[int]) bool {
		assert.Equal(t, 100, e.Snapshot())
		return true
	})
}

func TestSetContains(t *testing.T) {
	s := NewSet[string]()
	assert.False(t, s.Contains("x"))
	s.Add("x")
	assert.True(t, s.Contains("x"))
	assert.Equal(t, 1, s.Len())
}
