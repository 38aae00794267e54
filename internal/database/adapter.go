package database

import (
	"context"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

// Dialect is the per-engine strategy object: escaping, expression
// compilation, bulk-insert assembly and transformation execution for one
// target database. All SQL-building methods are pure string transforms; the
// ctx-taking methods talk to the engine through the adapter's native client.
type Dialect interface {
	Name() string

	// Connection bootstrap.
	Connect(ctx context.Context, url string) error
	Close() error
	Ping(ctx context.Context) error

	// Raw statement execution, the collaborator contract of the engine.
	Exec(ctx context.Context, query string) error
	Query(ctx context.Context, query string) (dbclient.Rows, error)

	// Escaping. Every user-supplied identifier that reaches generated SQL
	// must pass through QuoteIdentifier; it is the injection boundary.
	QuoteIdentifier(name string) string
	QuoteLiteral(value string) string

	// Schema DDL.
	ColumnType(c spec.Column) (string, error)
	CreateTableSQL(t spec.Table) (string, error)
	DropTableSQL(table string) string
	TruncateTableSQL(table string) string
	OptimizeSQL(table string) []string

	// Expression compilation. rowIdx is the dialect's 1-based row ordinal
	// expression within the current bulk statement.
	CompileExpression(g spec.Generator, rowIdx string) (string, error)

	// InsertBatchSQL assembles one set-based INSERT for rows (origin+1 ..
	// origin+rows). The origin is baked into the row source so sequence
	// generators stay globally monotonic across chunks.
	InsertBatchSQL(t spec.Table, origin, rows int64) (string, error)

	// MaxSequenceValue probes MAX(column), returning nil for an empty table.
	// Used to resolve sequence resume points.
	MaxSequenceValue(ctx context.Context, table, column string) (*int64, error)

	// ApplyBatch executes one transformation batch, as a single native
	// UPDATE where the dialect permits it, or through the dialect's
	// replacement protocol where it does not.
	ApplyBatch(ctx context.Context, t spec.Table, batch spec.Batch, opts dbclient.TransformOptions) error
}
