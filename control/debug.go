// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Named debug probes, evaluated on demand for /debug/state.

package control

import (
	"runtime"
	"sync"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts or replaces a named probe.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState evaluates every probe. Probes run outside the registry lock so
// they may take their own locks.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	fns := make(map[string]func() any, len(dp.probes))
	for k, fn := range dp.probes {
		fns[k] = fn
	}
	dp.mu.RUnlock()

	out := make(map[string]any, len(fns))
	for k, fn := range fns {
		out[k] = fn()
	}
	return out
}

// RegisterRuntimeProbes adds Go runtime probes.
func RegisterRuntimeProbes(dp *DebugProbes) {
	dp.RegisterProbe("runtime.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("runtime.goroutines", func() any {
		return runtime.NumGoroutine()
	})
	dp.RegisterProbe("runtime.version", func() any {
		return runtime.Version()
	})
}
