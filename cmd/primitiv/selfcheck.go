package main

import (
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/menphim/primitiv/internal/backend/blocks"
	"github.com/menphim/primitiv/tensor"
)

type check struct {
	name string
	run  func(dev tensor.Device) error
}

var checks = []check{
	{"scalar dispatch", checkScalarDispatch},
	{"batch broadcast", checkBatchBroadcast},
	{"slice and concat", checkSliceConcat},
	{"log-softmax normalizes", checkLogSoftmax},
	{"matmul identity", checkMatMul},
	{"shape mismatch rejected", checkMismatch},
}

// liveBlocks reports the number of allocated blocks on devices that track
// them.
func liveBlocks(dev tensor.Device) (int, bool) {
	s, ok := dev.(interface{ Stats() blocks.Stats })
	if !ok {
		return 0, false
	}
	return s.Stats().LiveBlocks, true
}

// selfcheck runs every check on dev and reports one line per check. It
// fails if any check fails or if a check leaks tensors.
func selfcheck(dev tensor.Device, w io.Writer) error {
	fmt.Fprintf(w, "selfcheck on %s\n", dev.Name())
	failed := 0
	for _, c := range checks {
		before, tracked := liveBlocks(dev)
		err := c.run(dev)
		if after, _ := liveBlocks(dev); err == nil && tracked && after != before {
			err = errors.Errorf("leaked %d blocks", after-before)
		}
		status := "ok"
		if err != nil {
			status = "FAIL: " + err.Error()
			failed++
		}
		fmt.Fprintf(w, "  %-26s %s\n", c.name, status)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}

// pool releases every tensor it has seen.
type pool []*tensor.Tensor

func (p *pool) keep(x *tensor.Tensor, err error) (*tensor.Tensor, error) {
	if err == nil {
		*p = append(*p, x)
	}
	return x, err
}

func (p *pool) release() {
	for _, x := range *p {
		x.Release()
	}
	*p = nil
}

func expect(x *tensor.Tensor, want []float32, tol float64) error {
	got, err := tensor.ToHost(x)
	if err != nil {
		return err
	}
	if len(got) != len(want) {
		return errors.Errorf("got %d values, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > tol {
			return errors.Errorf("value %d: got %g, want %g", i, got[i], want[i])
		}
	}
	return nil
}

func checkScalarDispatch(dev tensor.Device) error {
	var p pool
	defer p.release()
	k, err := p.keep(tensor.FromValues(tensor.MustShape(nil, 1), []float32{1}, dev))
	if err != nil {
		return err
	}
	x, err := p.keep(tensor.FromValues(tensor.MustShape([]int{2}, 2), []float32{1, 2, 3, 4}, dev))
	if err != nil {
		return err
	}
	y, err := p.keep(tensor.Divide(k, x))
	if err != nil {
		return err
	}
	return expect(y, []float32{1, 0.5, 1.0 / 3, 0.25}, 1e-6)
}

func checkBatchBroadcast(dev tensor.Device) error {
	var p pool
	defer p.release()
	a, err := p.keep(tensor.FromValues(tensor.MustShape([]int{2}, 3), []float32{1, 2, 3, 4, 5, 6}, dev))
	if err != nil {
		return err
	}
	b, err := p.keep(tensor.FromValues(tensor.MustShape([]int{2}, 1), []float32{10, 20}, dev))
	if err != nil {
		return err
	}
	y, err := p.keep(tensor.Add(a, b))
	if err != nil {
		return err
	}
	return expect(y, []float32{11, 22, 13, 24, 15, 26}, 0)
}

func checkSliceConcat(dev tensor.Device) error {
	var p pool
	defer p.release()
	x, err := p.keep(tensor.FromValues(tensor.MustShape([]int{2, 3}, 1), []float32{1, 2, 3, 4, 5, 6}, dev))
	if err != nil {
		return err
	}
	left, err := p.keep(tensor.Slice(x, 1, 0, 1))
	if err != nil {
		return err
	}
	right, err := p.keep(tensor.Slice(x, 1, 1, 3))
	if err != nil {
		return err
	}
	y, err := p.keep(tensor.Concat([]*tensor.Tensor{right, left}, 1))
	if err != nil {
		return err
	}
	return expect(y, []float32{3, 4, 5, 6, 1, 2}, 0)
}

func checkLogSoftmax(dev tensor.Device) error {
	var p pool
	defer p.release()
	x, err := p.keep(tensor.RandomNormal(tensor.MustShape([]int{5, 3}, 2), 0, 3, dev))
	if err != nil {
		return err
	}
	ls, err := p.keep(tensor.LogSoftmax(x, 0))
	if err != nil {
		return err
	}
	e, err := p.keep(tensor.Exp(ls))
	if err != nil {
		return err
	}
	s, err := p.keep(tensor.Sum(e, 0))
	if err != nil {
		return err
	}
	return expect(s, []float32{1, 1, 1, 1, 1, 1}, 1e-5)
}

func checkMatMul(dev tensor.Device) error {
	var p pool
	defer p.release()
	id, err := p.keep(tensor.Identity(3, dev))
	if err != nil {
		return err
	}
	values := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	x, err := p.keep(tensor.FromValues(tensor.MustShape([]int{3, 2}, 2), values, dev))
	if err != nil {
		return err
	}
	y, err := p.keep(tensor.MatMul(id, x))
	if err != nil {
		return err
	}
	return expect(y, values, 1e-6)
}

func checkMismatch(dev tensor.Device) error {
	var p pool
	defer p.release()
	a, err := p.keep(tensor.Zeros(tensor.MustShape([]int{2}, 2), dev))
	if err != nil {
		return err
	}
	b, err := p.keep(tensor.Zeros(tensor.MustShape([]int{2}, 3), dev))
	if err != nil {
		return err
	}
	if _, err := tensor.Add(a, b); !errors.Is(err, tensor.ErrValidation) {
		return errors.Errorf("expected a validation error, got %v", err)
	}
	return nil
}
