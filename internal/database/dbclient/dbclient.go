// Package dbclient holds the types shared by every dialect adapter: the
// row-streaming contract, transformation options and the fail-fast errors
// for unsupported spec kinds. It sits below the adapter packages so the
// factory can import them without a cycle.
package dbclient

import (
	"fmt"

	"github.com/fabrica-io/fabrica/internal/spec"
)

// Rows streams query results back as ordered column/value pairs. It is the
// smallest common surface over pgx rows, clickhouse-go rows and sql.Rows.
type Rows interface {
	Columns() []string
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// TransformOptions tunes transformation compilation.
type TransformOptions struct {
	// StrictTemplates turns unresolved {placeholder} tokens in template
	// transformations into a spec error instead of literal pass-through.
	StrictTemplates bool
}

// UnsupportedGenerator is the fail-fast error for a generator kind a dialect
// compiler cannot express. Reaching it is a programmer error, not a data
// condition.
func UnsupportedGenerator(dialect string, g spec.Generator) error {
	return fmt.Errorf("dialect %s: unsupported generator kind %q", dialect, g.Kind())
}

// UnsupportedTransformation is the transformation-side counterpart.
func UnsupportedTransformation(dialect string, tr spec.Transformation) error {
	return fmt.Errorf("dialect %s: unsupported transformation kind %q", dialect, tr.Kind())
}

// BoundedSpan returns the closed-interval width max-min+1 for a randomInt
// draw. Widths of 2^53 and above are rejected: the float64-scaled draw paths
// lose integer precision past that point and can land outside the bounds,
// and the raw subtraction would overflow int64 long before.
func BoundedSpan(dialect string, min, max int64) (int64, error) {
	width := uint64(max) - uint64(min)
	if width >= 1<<53 {
		return 0, fmt.Errorf("dialect %s: randomInt span %d..%d is wider than 2^53 and cannot be drawn exactly", dialect, min, max)
	}
	return int64(width) + 1, nil
}
