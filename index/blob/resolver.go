package blob

// Resolver maps object ordinals stored in posting lists back to objects.
type Resolver[O comparable] interface {
	Object(ord uint32) (O, bool)
	Ordinal(o O) (uint32, bool)
}

// Table is an immutable Resolver built from an ordinal assignment.
type Table[O comparable] struct {
	objs []O
	live []bool
	ords map[O]uint32
}

var _ Resolver[int] = (*Table[int])(nil)

// NewTable returns a table for ords. The map is copied.
func NewTable[O comparable](ords map[O]uint32) *Table[O] {
	var size uint32
	for _, ord := range ords {
		size = max(size, ord+1)
	}
	t := &Table[O]{
		objs: make([]O, size),
		live: make([]bool, size),
		ords: make(map[O]uint32, len(ords)),
	}
	for o, ord := range ords {
		t.objs[ord] = o
		t.live[ord] = true
		t.ords[o] = ord
	}
	return t
}

// Object returns the object with ordinal ord.
func (t *Table[O]) Object(ord uint32) (O, bool) {
	if int(ord) >= len(t.objs) || !t.live[ord] {
		var zero O
		return zero, false
	}
	return t.objs[ord], true
}

// Ordinal returns the ordinal of o.
func (t *Table[O]) Ordinal(o O) (uint32, bool) {
	ord, ok := t.ords[o]
	return ord, ok
}

// Len returns the number of objects in the table.
func (t *Table[O]) Len() int { return len(t.ords) }
