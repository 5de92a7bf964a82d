package query

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/cqgo/attribute"
)

// hasher accumulates a structural hash. Field order matters.
type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func newHasher(k Kind) *hasher {
	h := &hasher{d: xxhash.New()}
	h.uint64(uint64(k))
	return h
}

func (h *hasher) uint64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:])
}

func (h *hasher) bool(v bool) {
	if v {
		h.uint64(1)
		return
	}
	h.uint64(0)
}

func (h *hasher) string(s string) {
	h.uint64(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

func (h *hasher) attribute(id attribute.ID) {
	h.string(id.ObjectType)
	h.string(id.Name)
}

func (h *hasher) sum() uint64 { return h.d.Sum64() }

// hashValue hashes an operand. Values that compare equal under the attribute
// ordering must hash equally for predicates to be recognised as equal; this
// holds for the builtin scalar types under cmp.Compare (-0.0 is folded onto
// 0.0). Other types hash their %v representation, so custom orderings must
// agree with it (see attribute.NewFunc). A mismatch only costs plan cache
// hits: Equal then reports false, never true for unequal predicates.
func hashValue[A any](v A) uint64 {
	switch x := any(v).(type) {
	case string:
		return xxhash.Sum64String(x)
	case int:
		return hashUint(uint64(x))
	case int8:
		return hashUint(uint64(x))
	case int16:
		return hashUint(uint64(x))
	case int32:
		return hashUint(uint64(x))
	case int64:
		return hashUint(uint64(x))
	case uint:
		return hashUint(uint64(x))
	case uint8:
		return hashUint(uint64(x))
	case uint16:
		return hashUint(uint64(x))
	case uint32:
		return hashUint(uint64(x))
	case uint64:
		return hashUint(x)
	case uintptr:
		return hashUint(uint64(x))
	case float32:
		return hashFloat(float64(x))
	case float64:
		return hashFloat(x)
	case bool:
		if x {
			return hashUint(1)
		}
		return hashUint(0)
	case []byte:
		return xxhash.Sum64(x)
	default:
		return xxhash.Sum64String(fmt.Sprintf("%v", v))
	}
}

func hashUint(v uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return xxhash.Sum64(b[:])
}

func hashFloat(f float64) uint64 {
	switch {
	case f == 0:
		f = 0 // fold -0.0
	case math.IsNaN(f):
		f = math.NaN()
	}
	return hashUint(math.Float64bits(f))
}
