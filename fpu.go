package raidz

import (
	"runtime"
	"sync/atomic"
)

var (
	vectorOff atomic.Bool
	// Kernel calls currently holding the vector unit.
	vectorHeld atomic.Int64
)

// VectorAllowed reports whether vector kernels may run.
func VectorAllowed() bool { return !vectorOff.Load() }

// SetVectorAllowed enables or disables vector kernels process-wide
// and returns the previous setting. While disabled every call runs
// the scalar implementation. Disabling waits for vector kernels
// already running to return.
func SetVectorAllowed(ok bool) (prev bool) {
	prev = !vectorOff.Swap(!ok)
	if !ok {
		for vectorHeld.Load() > 0 {
			runtime.Gosched()
		}
	}
	return prev
}

// vectorGuard is held for the duration of one kernel call.
type vectorGuard struct {
	held bool
}

// beginVector returns the descriptor the call runs with: i itself, or
// scalar when vector kernels were disabled after i was resolved.
func beginVector(i *impl) (*impl, vectorGuard) {
	if !i.vector {
		return i, vectorGuard{}
	}
	vectorHeld.Add(1)
	if vectorOff.Load() {
		vectorHeld.Add(-1)
		return scalarImpl, vectorGuard{}
	}
	return i, vectorGuard{held: true}
}

func (g *vectorGuard) end() {
	if g.held {
		vectorHeld.Add(-1)
		g.held = false
	}
}
