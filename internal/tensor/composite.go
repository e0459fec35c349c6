package tensor

// LogSoftmax returns x - broadcast(logsumexp(x, axis), axis, x.Dim(axis)).
func LogSoftmax(x *Tensor, axis int) (*Tensor, error) {
	if err := checkValid("log softmax", x); err != nil {
		return nil, err
	}
	lse, err := LogSumExp(x, axis)
	if err != nil {
		return nil, err
	}
	b, err := Broadcast(lse, axis, x.shape.Dim(axis))
	lse.Release()
	if err != nil {
		return nil, err
	}
	defer b.Release()
	return Subtract(x, b)
}

// Softmax returns exp(LogSoftmax(x, axis)).
func Softmax(x *Tensor, axis int) (*Tensor, error) {
	ls, err := LogSoftmax(x, axis)
	if err != nil {
		return nil, err
	}
	defer ls.Release()
	return Exp(ls)
}

// SoftmaxCrossEntropy returns -sum(t * LogSoftmax(x, axis), axis) for a
// dense target distribution t.
func SoftmaxCrossEntropy(x, t *Tensor, axis int) (*Tensor, error) {
	if err := checkValid("softmax cross entropy", x, t); err != nil {
		return nil, err
	}
	if _, err := ElementwiseShape(x.shape, t.shape); err != nil {
		return nil, err
	}
	ls, err := LogSoftmax(x, axis)
	if err != nil {
		return nil, err
	}
	prod, err := Multiply(t, ls)
	ls.Release()
	if err != nil {
		return nil, err
	}
	s, err := Sum(prod, axis)
	prod.Release()
	if err != nil {
		return nil, err
	}
	defer s.Release()
	return Negate(s)
}

// SparseSoftmaxCrossEntropy returns pick(-LogSoftmax(x, axis), ids, axis)
// for integer class targets.
func SparseSoftmaxCrossEntropy(x *Tensor, ids []int, axis int) (*Tensor, error) {
	if err := checkValid("sparse softmax cross entropy", x); err != nil {
		return nil, err
	}
	if _, err := PickShape(x.shape, ids, axis); err != nil {
		return nil, err
	}
	ls, err := LogSoftmax(x, axis)
	if err != nil {
		return nil, err
	}
	neg, err := Negate(ls)
	ls.Release()
	if err != nil {
		return nil, err
	}
	defer neg.Release()
	return Pick(neg, ids, axis)
}
