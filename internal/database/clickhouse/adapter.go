package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

// Adapter is the ClickHouse dialect over the native protocol. It is the one
// engine in the matrix that cannot express correlated subqueries inside an
// UPDATE, which is why lookup and swap go through the table-replacement
// protocol in transform.go.
type Adapter struct {
	conn chdriver.Conn
}

var typeMap = map[spec.ColumnType]string{
	spec.TypeInteger:  "Int32",
	spec.TypeBigint:   "Int64",
	spec.TypeFloat:    "Float64",
	spec.TypeString:   "String",
	spec.TypeBoolean:  "Bool",
	spec.TypeDatetime: "DateTime",
	spec.TypeDate:     "Date",
}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return "clickhouse" }

func (a *Adapter) Connect(ctx context.Context, url string) error {
	options, err := clickhouse.ParseDSN(url)
	if err != nil {
		return fmt.Errorf("failed to parse connection URL: %w", err)
	}
	if options.Settings == nil {
		options.Settings = clickhouse.Settings{}
	}
	options.Settings["max_execution_time"] = 300
	options.DialTimeout = 10 * time.Second
	options.MaxOpenConns = 2
	options.MaxIdleConns = 1
	options.ConnMaxLifetime = time.Hour

	conn, err := clickhouse.Open(options)
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	a.conn = conn
	return nil
}

func (a *Adapter) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.conn.Ping(ctx)
}

func (a *Adapter) Exec(ctx context.Context, query string) error {
	return a.conn.Exec(ctx, query)
}

func (a *Adapter) Query(ctx context.Context, query string) (dbclient.Rows, error) {
	rows, err := a.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return &chRows{rows: rows}, nil
}

func (a *Adapter) QuoteIdentifier(name string) string { return QuoteIdentifier(name) }
func (a *Adapter) QuoteLiteral(value string) string   { return QuoteLiteral(value) }

func (a *Adapter) ColumnType(c spec.Column) (string, error) {
	pt, ok := typeMap[c.Type]
	if !ok {
		return "", fmt.Errorf("clickhouse: no physical type for %q", c.Type)
	}
	if c.Nullable {
		pt = fmt.Sprintf("Nullable(%s)", pt)
	}
	return pt, nil
}

// CreateTableSQL builds a MergeTree table ordered by the first column, which
// is the engine-required sort key.
func (a *Adapter) CreateTableSQL(t spec.Table) (string, error) {
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		pt, err := a.ColumnType(c)
		if err != nil {
			return "", err
		}
		cols = append(cols, fmt.Sprintf("%s %s", QuoteIdentifier(c.Name), pt))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s) ENGINE = MergeTree ORDER BY %s",
		QuoteIdentifier(t.Name),
		strings.Join(cols, ", "),
		QuoteIdentifier(t.Columns[0].Name)), nil
}

func (a *Adapter) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdentifier(table))
}

func (a *Adapter) TruncateTableSQL(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", QuoteIdentifier(table))
}

// OptimizeSQL forces a merge of all parts after a bulk load.
func (a *Adapter) OptimizeSQL(table string) []string {
	return []string{fmt.Sprintf("OPTIMIZE TABLE %s FINAL", QuoteIdentifier(table))}
}

// MaxSequenceValue probes MAX(column). The column is wrapped in toNullable
// so an empty table yields NULL instead of the aggregate's default zero.
func (a *Adapter) MaxSequenceValue(ctx context.Context, table, column string) (*int64, error) {
	query := fmt.Sprintf("SELECT max(toNullable(toInt64(%s))) FROM %s",
		QuoteIdentifier(column), QuoteIdentifier(table))
	var max *int64
	if err := a.conn.QueryRow(ctx, query).Scan(&max); err != nil {
		return nil, fmt.Errorf("failed to resolve resume point for %s.%s: %w", table, column, err)
	}
	return max, nil
}

type chRows struct {
	rows chdriver.Rows
}

func (r *chRows) Columns() []string      { return r.rows.Columns() }
func (r *chRows) Next() bool             { return r.rows.Next() }
func (r *chRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *chRows) Err() error             { return r.rows.Err() }
func (r *chRows) Close() error           { return r.rows.Close() }
