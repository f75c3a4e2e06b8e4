package script

import (
	"fmt"
	"sync"
	"time"

	"github.com/chazu/badplaner/pkg/room"
)

// EvalTimeout is the hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

type evalResult struct {
	layout room.Layout
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, giving up after EvalTimeout.
// A result whose generation is no longer current is discarded.
//
// On timeout the evaluating goroutine may still be running; its result is
// dropped into the buffered channel and never read.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) (room.Layout, []EvalError, error) {
	timer := time.NewTimer(EvalTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return room.Layout{}, nil, fmt.Errorf("evaluation superseded by newer request")
		}
		return res.layout, res.errors, res.err

	case <-timer.C:
		return room.Layout{}, nil, fmt.Errorf("evaluation timed out after %s", EvalTimeout)
	}
}
