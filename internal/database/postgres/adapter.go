package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

// Adapter is the PostgreSQL dialect. Generated SQL goes over a pgx pool;
// hot-path statements carry inlined escaped literals, no bind parameters.
type Adapter struct {
	pool *pgxpool.Pool
	qb   squirrel.StatementBuilderType
}

var typeMap = map[spec.ColumnType]string{
	spec.TypeInteger:  "INTEGER",
	spec.TypeBigint:   "BIGINT",
	spec.TypeFloat:    "DOUBLE PRECISION",
	spec.TypeString:   "TEXT",
	spec.TypeBoolean:  "BOOLEAN",
	spec.TypeDatetime: "TIMESTAMP",
	spec.TypeDate:     "DATE",
}

func New() *Adapter {
	return &Adapter{
		qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (a *Adapter) Name() string { return "postgres" }

func (a *Adapter) Connect(ctx context.Context, url string) error {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return fmt.Errorf("failed to parse connection URL: %w", err)
	}

	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	config.MaxConns = 2
	config.MinConns = 0
	config.MaxConnLifetime = 15 * time.Minute
	config.MaxConnIdleTime = 3 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	a.pool = pool
	return nil
}

func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Adapter) Exec(ctx context.Context, query string) error {
	_, err := a.pool.Exec(ctx, query)
	return err
}

func (a *Adapter) Query(ctx context.Context, query string) (dbclient.Rows, error) {
	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (a *Adapter) QuoteIdentifier(name string) string { return QuoteIdentifier(name) }
func (a *Adapter) QuoteLiteral(value string) string   { return QuoteLiteral(value) }

func (a *Adapter) ColumnType(c spec.Column) (string, error) {
	pt, ok := typeMap[c.Type]
	if !ok {
		return "", fmt.Errorf("postgres: no physical type for %q", c.Type)
	}
	if !c.Nullable {
		pt += " NOT NULL"
	}
	return pt, nil
}

func (a *Adapter) CreateTableSQL(t spec.Table) (string, error) {
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		pt, err := a.ColumnType(c)
		if err != nil {
			return "", err
		}
		cols = append(cols, fmt.Sprintf("%s %s", QuoteIdentifier(c.Name), pt))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdentifier(t.Name), strings.Join(cols, ", ")), nil
}

func (a *Adapter) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdentifier(table))
}

func (a *Adapter) TruncateTableSQL(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", QuoteIdentifier(table))
}

// OptimizeSQL refreshes planner statistics and reclaims dead tuples after a
// bulk load.
func (a *Adapter) OptimizeSQL(table string) []string {
	return []string{fmt.Sprintf("VACUUM (ANALYZE) %s", QuoteIdentifier(table))}
}

func (a *Adapter) MaxSequenceValue(ctx context.Context, table, column string) (*int64, error) {
	query, _, err := a.qb.
		Select(fmt.Sprintf("MAX(%s)", QuoteIdentifier(column))).
		From(QuoteIdentifier(table)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build resume probe: %w", err)
	}
	var max *int64
	if err := a.pool.QueryRow(ctx, query).Scan(&max); err != nil {
		return nil, fmt.Errorf("failed to resolve resume point for %s.%s: %w", table, column, err)
	}
	return max, nil
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Columns() []string {
	fds := r.rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	return cols
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Err() error             { return r.rows.Err() }

func (r *pgxRows) Close() error {
	r.rows.Close()
	return nil
}
