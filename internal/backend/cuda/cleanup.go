package cuda

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// teardown is a stack of release steps recorded while acquiring resources.
// Unwinding runs them newest first, so a partially initialized device is
// released in the reverse order of acquisition.
type teardown struct {
	steps []step
}

type step struct {
	name    string
	release func() error
}

// push records the release of a resource that was just acquired.
func (t *teardown) push(name string, release func() error) {
	t.steps = append(t.steps, step{name: name, release: release})
}

// unwind runs every recorded step, newest first, and empties the stack.
// All steps run even if some fail; the first failure is returned.
func (t *teardown) unwind() error {
	var first error
	for i := len(t.steps) - 1; i >= 0; i-- {
		s := t.steps[i]
		klog.V(2).InfoS("cuda: releasing", "resource", s.name)
		if err := s.release(); err != nil {
			err = errors.Wrapf(err, "cuda: releasing %s", s.name)
			klog.ErrorS(err, "teardown step failed")
			if first == nil {
				first = err
			}
		}
	}
	t.steps = nil
	return first
}

// names returns the recorded resources in acquisition order.
func (t *teardown) names() []string {
	out := make([]string, len(t.steps))
	for i, s := range t.steps {
		out[i] = s.name
	}
	return out
}
