package hub

import (
	"net"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T, id uint64) *Conn {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return newConn(id, a, Config{}.withDefaults(), zerolog.Nop())
}

func TestRegistryAddIsSet(t *testing.T) {
	r := NewRegistry()
	c := pipeConn(t, 1)

	assert.True(t, r.Add(c))
	assert.False(t, r.Add(c), "duplicate add")
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Contains(c))
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a, b := pipeConn(t, 1), pipeConn(t, 2)
	r.Add(a)
	r.Add(b)

	assert.True(t, r.Remove(a))
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.Remove(a), "absent connection")
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.Contains(a))
}

func TestRegistryForEachExcept(t *testing.T) {
	r := NewRegistry()
	conns := []*Conn{pipeConn(t, 1), pipeConn(t, 2), pipeConn(t, 3), pipeConn(t, 4)}
	for _, c := range conns {
		r.Add(c)
	}

	var visited []uint64
	r.ForEachExcept(conns[1], func(c *Conn) { visited = append(visited, c.ID()) })
	sort.Slice(visited, func(i, j int) bool { return visited[i] < visited[j] })
	assert.Equal(t, []uint64{1, 3, 4}, visited)

	visited = visited[:0]
	r.ForEachExcept(nil, func(c *Conn) { visited = append(visited, c.ID()) })
	assert.Len(t, visited, 4)
}

func TestRegistrySnapshotSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []uint64{7, 3, 5} {
		r.Add(pipeConn(t, id))
	}
	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, uint64(3), snap[0].ID)
	assert.Equal(t, uint64(5), snap[1].ID)
	assert.Equal(t, uint64(7), snap[2].ID)
	assert.Equal(t, "connecting", snap[0].State)
	assert.Equal(t, "pipe", snap[0].Remote)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	conns := make([]*Conn, 32)
	for i := range conns {
		conns[i] = pipeConn(t, uint64(i+1))
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(3)
		go func(c *Conn) {
			defer wg.Done()
			r.Add(c)
		}(c)
		go func(c *Conn) {
			defer wg.Done()
			r.ForEachExcept(c, func(*Conn) {})
		}(c)
		go func(c *Conn) {
			defer wg.Done()
			_ = r.Snapshot()
		}(c)
	}
	wg.Wait()
	assert.Equal(t, len(conns), r.Len())

	for _, c := range conns {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			r.Remove(c)
			r.Remove(c)
		}(c)
	}
	wg.Wait()
	assert.Zero(t, r.Len())
}

func TestConnShutdownOnce(t *testing.T) {
	c := pipeConn(t, 9)
	require.True(t, c.open())
	assert.Equal(t, StateOpen, c.State())
	_, _ = c.out.push([]byte("pending"))

	assert.Equal(t, 1, c.shutdown(ErrQueueFull))
	assert.Equal(t, -1, c.shutdown(ErrServerClosed))
	assert.ErrorIs(t, c.Err(), ErrQueueFull)
	assert.Equal(t, StateClosed, c.State())
	assert.False(t, c.open(), "closed never reopens")

	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
}
