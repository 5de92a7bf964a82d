package query

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cqgo/attribute"
)

type item struct {
	N    int
	Tags []int
	Name string
}

var (
	attrN    = attribute.New("n", func(i *item) int { return i.N })
	attrTags = attribute.NewMulti("tags", func(i *item) []int { return i.Tags })
	attrName = attribute.New("name", func(i *item) string { return i.Name })
)

func matchN(t *testing.T, q Query[*item], values ...int) []int {
	t.Helper()
	var out []int
	for _, v := range values {
		ok, err := q.Matches(&item{N: v}, nil)
		require.NoError(t, err)
		if ok {
			out = append(out, v)
		}
	}
	return out
}

func TestBetweenInclusivityMatrix(t *testing.T) {
	population := []int{5, 10, 15}

	tests := []struct {
		name           string
		lowerInclusive bool
		upperInclusive bool
		want           []int
	}{
		{"inclusive/inclusive", true, true, []int{10, 15}},
		{"inclusive/exclusive", true, false, []int{10}},
		{"exclusive/inclusive", false, true, []int{15}},
		{"exclusive/exclusive", false, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Between(attrN, 10, tt.lowerInclusive, 15, tt.upperInclusive)
			assert.Equal(t, tt.want, matchN(t, q, population...))
		})
	}
}

func TestComparisonPredicates(t *testing.T) {
	population := []int{5, 10, 15}

	tests := []struct {
		name string
		q    Query[*item]
		want []int
	}{
		{"equal", Equal(attrN, 10), []int{10}},
		{"equal absent", Equal(attrN, 11), nil},
		{"greater exclusive", GreaterThan(attrN, 10, false), []int{15}},
		{"greater inclusive", GreaterThan(attrN, 10, true), []int{10, 15}},
		{"less exclusive", LessThan(attrN, 10, false), []int{5}},
		{"less inclusive", LessThan(attrN, 10, true), []int{5, 10}},
		{"in", In(attrN, 15, 5, 7), []int{5, 15}},
		{"in empty", In(attrN), nil},
		{"has", Has(attrN), []int{5, 10, 15}},
		{"between inverted", Between(attrN, 15, true, 5, true), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchN(t, tt.q, population...))
		})
	}
}

func TestMultiValuedExistential(t *testing.T) {
	o := &item{Tags: []int{1, 3, 7}}

	tests := []struct {
		name string
		q    Query[*item]
		want bool
	}{
		{"greater 5 via 7", GreaterThan(attrTags, 5, false), true},
		{"greater 10", GreaterThan(attrTags, 10, false), false},
		{"less 2 via 1", LessThan(attrTags, 2, false), true},
		{"equal 3", Equal(attrTags, 3), true},
		{"equal 4", Equal(attrTags, 4), false},
		{"between 4 and 6", Between(attrTags, 4, true, 6, true), false},
		{"between 2 and 4", Between(attrTags, 2, true, 4, true), true},
		{"in", In(attrTags, 9, 7), true},
		{"in miss", In(attrTags, 2, 4), false},
		{"has", Has(attrTags), true},
		{"is null", IsNull(attrTags), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.q.Matches(o, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	t.Run("no values", func(t *testing.T) {
		empty := &item{}

		ok, err := Has(attrTags).Matches(empty, nil)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = IsNull(attrTags).Matches(empty, nil)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = GreaterThan(attrTags, 0, false).Matches(empty, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPredicateEqualityLaw(t *testing.T) {
	t.Run("identical operands", func(t *testing.T) {
		pairs := [][2]Query[*item]{
			{Equal(attrN, 10), Equal(attrN, 10)},
			{GreaterThan(attrN, 10, true), GreaterThan(attrN, 10, true)},
			{LessThan(attrN, 10, false), LessThan(attrN, 10, false)},
			{Between(attrN, 1, true, 9, false), Between(attrN, 1, true, 9, false)},
			{In(attrN, 1, 2, 3), In(attrN, 3, 1, 2)},
			{In(attrN, 1, 1, 2), In(attrN, 2, 1)},
			{Has(attrN), Has(attrN)},
			{Equal(attrName, "a"), Equal(attrName, "a")},
		}
		for _, p := range pairs {
			assert.True(t, p[0].Equal(p[1]), "%s vs %s", p[0], p[1])
			assert.True(t, p[1].Equal(p[0]), "%s vs %s", p[1], p[0])
			assert.Equal(t, p[0].Hash(), p[1].Hash(), "%s", p[0])
		}
	})

	t.Run("distinct operands", func(t *testing.T) {
		pairs := [][2]Query[*item]{
			{Equal(attrN, 10), Equal(attrN, 11)},
			{Equal(attrN, 10), Equal(attrTags, 10)},
			{GreaterThan(attrN, 10, true), GreaterThan(attrN, 10, false)},
			{GreaterThan(attrN, 10, false), LessThan(attrN, 10, false)},
			{Between(attrN, 1, true, 9, true), Between(attrN, 9, true, 1, true)},
			{Between(attrN, 1, true, 9, true), Between(attrN, 1, false, 9, true)},
			{Between(attrN, 10, true, 10, true), Equal(attrN, 10)},
			{In(attrN, 1, 2), In(attrN, 1, 2, 3)},
			{Has(attrN), Has(attrTags)},
		}
		for _, p := range pairs {
			assert.False(t, p[0].Equal(p[1]), "%s vs %s", p[0], p[1])
		}
	})

	t.Run("combinators", func(t *testing.T) {
		a := And[*item](Equal(attrN, 1), Has(attrTags))
		b := And[*item](Equal(attrN, 1), Has(attrTags))
		assert.True(t, a.Equal(b))
		assert.Equal(t, a.Hash(), b.Hash())

		assert.False(t, a.Equal(Or[*item](Equal(attrN, 1), Has(attrTags))))
		assert.False(t, a.Equal(And[*item](Has(attrTags), Equal(attrN, 1))))

		n1 := Not[*item](In(attrN, 1, 2))
		n2 := Not[*item](In(attrN, 2, 1))
		assert.True(t, n1.Equal(n2))
		assert.Equal(t, n1.Hash(), n2.Hash())

		assert.True(t, All[*item]().Equal(All[*item]()))
		assert.False(t, All[*item]().Equal(None[*item]()))
		assert.NotEqual(t, All[*item]().Hash(), None[*item]().Hash())
		assert.Equal(t, All[*item]().Hash(), All[*item]().Hash())
		assert.Equal(t, None[*item]().Hash(), PushDownNot[*item](Not[*item](All[*item]())).Hash())
	})

	t.Run("float operands", func(t *testing.T) {
		score := attribute.New("score", func(i *item) float64 { return float64(i.N) })

		nan1, nan2 := Equal(score, math.NaN()), Equal(score, math.Float64frombits(0x7ff8000000000001))
		assert.Equal(t, nan1.Hash(), nan2.Hash())
		assert.True(t, nan1.Equal(nan2))

		zero, negZero := Equal(score, 0.0), Equal(score, math.Copysign(0, -1))
		assert.Equal(t, zero.Hash(), negZero.Hash())
		assert.True(t, zero.Equal(negZero))

		assert.False(t, zero.Equal(nan1))
	})

	t.Run("usable as map key via hash", func(t *testing.T) {
		seen := map[uint64]Query[*item]{}
		for _, q := range []Query[*item]{In(attrN, 3, 2, 1), In(attrN, 1, 2, 3), Equal(attrN, 1)} {
			if prev, ok := seen[q.Hash()]; ok {
				assert.True(t, prev.Equal(q))
				continue
			}
			seen[q.Hash()] = q
		}
		assert.Len(t, seen, 2)
	})
}

func TestPredicateAccessors(t *testing.T) {
	p := Between(attrN, 1, true, 9, false)

	lo, loInc, ok := p.Lower()
	assert.True(t, ok)
	assert.Equal(t, 1, lo)
	assert.True(t, loInc)

	hi, hiInc, ok := p.Upper()
	assert.True(t, ok)
	assert.Equal(t, 9, hi)
	assert.False(t, hiInc)

	assert.Equal(t, KindBetween, p.Kind())
	assert.Equal(t, attrN.ID(), p.AttributeID())
	assert.False(t, p.IsEmptyRange())
	assert.True(t, Between(attrN, 9, true, 1, true).IsEmptyRange())
	assert.True(t, Between(attrN, 5, true, 5, false).IsEmptyRange())
	assert.False(t, Between(attrN, 5, true, 5, true).IsEmptyRange())

	_, _, ok = GreaterThan(attrN, 1, false).Upper()
	assert.False(t, ok)

	assert.Equal(t, []int{1, 2, 3}, In(attrN, 3, 2, 1, 2).Values())
}

func TestString(t *testing.T) {
	tests := []struct {
		q    Query[*item]
		want string
	}{
		{Equal(attrN, 10), "equal(item.n, 10)"},
		{GreaterThan(attrN, 10, true), "greaterThan(item.n, 10, inclusive=true)"},
		{LessThan(attrN, 10, false), "lessThan(item.n, 10, inclusive=false)"},
		{Between(attrN, 1, true, 9, false), "between(item.n, 1, true, 9, false)"},
		{In(attrN, 3, 1), "in(item.n, [1, 3])"},
		{Has(attrTags), "has(item.tags)"},
		{And[*item](Equal(attrN, 1), Not[*item](Has(attrTags))), "and(equal(item.n, 1), not(has(item.tags)))"},
		{Or[*item](), "or()"},
		{All[*item](), "all()"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.String())
		})
	}
}

func TestLogicalMatches(t *testing.T) {
	q := And[*item](
		GreaterThan(attrN, 5, false),
		LessThan(attrN, 15, false),
	)
	assert.Equal(t, []int{10}, matchN(t, q, 5, 10, 15))

	q2 := Or[*item](Equal(attrN, 5), Equal(attrN, 15))
	assert.Equal(t, []int{5, 15}, matchN(t, q2, 5, 10, 15))

	q3 := Not[*item](q2)
	assert.Equal(t, []int{10}, matchN(t, q3, 5, 10, 15))

	assert.Equal(t, []int{5, 10}, matchN(t, And[*item](), 5, 10))
	assert.Nil(t, matchN(t, Or[*item](), 5, 10))
	assert.Nil(t, matchN(t, None[*item](), 5, 10))
}

func TestMatchesPropagatesAccessError(t *testing.T) {
	boom := errors.New("boom")
	failing := attribute.NewFunc(
		attribute.ID{ObjectType: "item", Name: "failing"},
		func(*item) (int, error) { return 0, boom },
		func(a, b int) int { return a - b },
	)

	_, err := Equal(failing, 1).Matches(&item{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, attribute.ErrAccess)

	_, err = Or[*item](Equal(attrN, 0), Equal(failing, 1)).Matches(&item{N: 1}, nil)
	assert.ErrorIs(t, err, boom)
}
