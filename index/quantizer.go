package index

import "unsafe"

// Quantizer maps attribute values onto index keys. Several values may share
// one key; the index then answers with the whole bucket, filtered by the
// predicate.
//
// Quantize must be monotonic: a <= b implies Quantize(a) <= Quantize(b).
type Quantizer[A any] interface {
	Quantize(v A) A
}

// Integer is the set of integer types.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// IntegerQuantizer groups integers into buckets of Step consecutive values,
// keyed by the bucket's lower bound (floor division, also for negatives).
type IntegerQuantizer[A Integer] struct {
	Step A
}

// NewIntegerQuantizer returns a quantizer with the given step. Steps below 2
// quantize nothing.
func NewIntegerQuantizer[A Integer](step A) IntegerQuantizer[A] {
	return IntegerQuantizer[A]{Step: step}
}

// Quantize returns the lower bound of the bucket holding v. A bucket reaching
// below the smallest value of A is keyed by that value.
func (q IntegerQuantizer[A]) Quantize(v A) A {
	if q.Step <= 1 {
		return v
	}
	r := v % q.Step
	if r < 0 {
		r += q.Step
	}
	if f := v - r; f <= v {
		return f
	}
	return lowest[A]()
}

// lowest returns the smallest value of A.
func lowest[A Integer]() A {
	var zero A
	if ^zero > 0 {
		return 0
	}
	return A(1) << (8*unsafe.Sizeof(zero) - 1)
}
