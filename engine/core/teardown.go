package core

import (
	"errors"
	"fmt"
)

type teardownStep struct {
	name string
	fn   func() error
}

// Teardown is a stack of cleanup steps run in reverse order of registration.
type Teardown struct {
	steps []teardownStep
}

// Push registers a cleanup step.
func (t *Teardown) Push(name string, fn func() error) {
	t.steps = append(t.steps, teardownStep{name: name, fn: fn})
}

// PushFunc registers a cleanup step that cannot fail.
func (t *Teardown) PushFunc(name string, fn func()) {
	t.Push(name, func() error {
		fn()
		return nil
	})
}

// Len reports the number of pending steps.
func (t *Teardown) Len() int {
	return len(t.steps)
}

// Unwind runs every step last-in first-out. A failing step is logged and the
// remaining steps still run; all failures are joined into the result.
func (t *Teardown) Unwind() error {
	var errs []error
	for i := len(t.steps) - 1; i >= 0; i-- {
		s := t.steps[i]
		if err := s.fn(); err != nil {
			LogError("teardown of %s failed: %s", s.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	t.steps = nil
	return errors.Join(errs...)
}
