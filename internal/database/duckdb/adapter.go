package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

// Adapter is the DuckDB dialect: an embedded file database reached through
// database/sql. DuckDB is single-writer, so the pool is pinned to one
// connection.
type Adapter struct {
	dbclient.SQLConn
	qb squirrel.StatementBuilderType
}

var typeMap = map[spec.ColumnType]string{
	spec.TypeInteger:  "INTEGER",
	spec.TypeBigint:   "BIGINT",
	spec.TypeFloat:    "DOUBLE",
	spec.TypeString:   "VARCHAR",
	spec.TypeBoolean:  "BOOLEAN",
	spec.TypeDatetime: "TIMESTAMP",
	spec.TypeDate:     "DATE",
}

func New() *Adapter {
	return &Adapter{
		qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

func (a *Adapter) Name() string { return "duckdb" }

// Connect opens (or creates) the database file. An empty URL is an
// in-memory database.
func (a *Adapter) Connect(ctx context.Context, url string) error {
	db, err := sql.Open("duckdb", url)
	if err != nil {
		return fmt.Errorf("failed to open duckdb database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}
	a.DB = db
	return nil
}

func (a *Adapter) QuoteIdentifier(name string) string { return QuoteIdentifier(name) }
func (a *Adapter) QuoteLiteral(value string) string   { return QuoteLiteral(value) }

func (a *Adapter) ColumnType(c spec.Column) (string, error) {
	pt, ok := typeMap[c.Type]
	if !ok {
		return "", fmt.Errorf("duckdb: no physical type for %q", c.Type)
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
	return fmt.Sprintf("DELETE FROM %s", QuoteIdentifier(table))
}

// OptimizeSQL refreshes statistics and flushes the WAL into the file.
func (a *Adapter) OptimizeSQL(table string) []string {
	return []string{"ANALYZE", "CHECKPOINT"}
}

func (a *Adapter) MaxSequenceValue(ctx context.Context, table, column string) (*int64, error) {
	query, _, err := a.qb.
		Select(fmt.Sprintf("MAX(%s)", QuoteIdentifier(column))).
		From(QuoteIdentifier(table)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build resume probe: %w", err)
	}
	max, err := a.MaxBigint(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resume point for %s.%s: %w", table, column, err)
	}
	return max, nil
}

// QuoteIdentifier double-quotes an identifier, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a string literal, doubling embedded quotes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return QuoteLiteral(x), nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 64), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case time.Time:
		return QuoteLiteral(x.UTC().Format("2006-01-02 15:04:05")), nil
	default:
		return "", fmt.Errorf("duckdb: cannot render %T as a literal", v)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
