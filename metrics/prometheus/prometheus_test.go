package prometheus

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cqgo"
	"github.com/hupe1980/cqgo/index/hash"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/testutil"
)

func TestCollector(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewCollector(reg, "cars")

	c := cqgo.New[*testutil.Car](cqgo.WithMetricsCollector(m))
	defer c.Close()

	require.NoError(t, c.AddIndex(ctx, hash.New("model", testutil.CarModel)))
	cars := testutil.Cars(testutil.NewRNG(1), 50)
	require.NoError(t, c.Add(ctx, cars...))
	require.NoError(t, c.Remove(ctx, cars[:5]...))

	_, err := c.Query(ctx, query.Equal(testutil.CarModel, "Focus"))
	require.NoError(t, err)
	_, err = c.Query(ctx, query.Equal(testutil.CarModel, "Focus"))
	require.NoError(t, err)
	_, err = c.Query(ctx, query.Equal(testutil.CarColor, "red"), query.WithStrict[*testutil.Car]())
	require.Error(t, err)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.queries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.queries.WithLabelValues("error")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.leaves.WithLabelValues(testutil.CarModel.ID().String(), "model")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.planCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.planCache.WithLabelValues("miss")))

	assert.Equal(t, 1.0, promtest.ToFloat64(m.mutations.WithLabelValues("add", "ok")))
	assert.Equal(t, 50.0, promtest.ToFloat64(m.objects.WithLabelValues("add")))
	assert.Equal(t, 5.0, promtest.ToFloat64(m.objects.WithLabelValues("remove")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.indexBuilds.WithLabelValues("model", "ok")))

	m.OnRelease(errors.New("close failed"))
	expected := `
# HELP cars_result_release_errors_total Result sets whose close failed
# TYPE cars_result_release_errors_total counter
cars_result_release_errors_total 1
`
	assert.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected), "cars_result_release_errors_total"))
}

func TestCollectorRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg, "a")

	assert.Panics(t, func() { NewCollector(reg, "a") })
	assert.NotPanics(t, func() { NewCollector(reg, "b") })
}
