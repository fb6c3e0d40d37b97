package scheduler

import (
	"errors"
	"sync/atomic"
)

// ErrAborted is returned from checkpoints once cancellation has been
// requested. Effects treat it as an expected outcome, not a failure.
var ErrAborted = errors.New("effect aborted")

// Abort is the process-wide cancellation flag. Effects poll it at every
// checkpoint; the flag is cleared by a dedicated queued action so the clear
// only lands after the running effect had a chance to observe it.
type Abort struct {
	flag atomic.Bool
}

// Raise sets the abort flag.
func (a *Abort) Raise() {
	a.flag.Store(true)
}

// Clear resets the abort flag.
func (a *Abort) Clear() {
	a.flag.Store(false)
}

// Check returns ErrAborted while the flag is raised.
func (a *Abort) Check() error {
	if a.flag.Load() {
		return ErrAborted
	}
	return nil
}
