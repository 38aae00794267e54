package dbclient

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedSpan(t *testing.T) {
	span, err := BoundedSpan("postgresql", 1, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), span)

	span, err = BoundedSpan("postgresql", -3, -3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), span)

	// widest exactly-representable width: 2^53 - 1, span 2^53
	span, err = BoundedSpan("duckdb", 0, 1<<53-1)
	require.NoError(t, err)
	assert.Equal(t, int64(1)<<53, span)

	_, err = BoundedSpan("duckdb", 0, 1<<53)
	assert.ErrorContains(t, err, "wider than 2^53")

	// the raw subtraction would overflow int64 here
	_, err = BoundedSpan("trino", math.MinInt64, math.MaxInt64)
	assert.ErrorContains(t, err, "wider than 2^53")
}
