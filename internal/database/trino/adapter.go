package trino

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/trinodb/trino-go-client/trino"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

// Adapter is the Trino dialect, targeting Iceberg tables through a Trino
// coordinator. Everything the engine needs travels as SQL text over the
// Trino HTTP protocol; there is no native bulk path.
type Adapter struct {
	dbclient.SQLConn
	qb   squirrel.StatementBuilderType
	salt func() string
}

var typeMap = map[spec.ColumnType]string{
	spec.TypeInteger:  "integer",
	spec.TypeBigint:   "bigint",
	spec.TypeFloat:    "double",
	spec.TypeString:   "varchar",
	spec.TypeBoolean:  "boolean",
	spec.TypeDatetime: "timestamp(6)",
	spec.TypeDate:     "date",
}

func New() *Adapter {
	return &Adapter{
		qb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		salt: newSalt,
	}
}

func (a *Adapter) Name() string { return "trino" }

func (a *Adapter) Connect(ctx context.Context, url string) error {
	db, err := sql.Open("trino", url)
	if err != nil {
		return fmt.Errorf("failed to open trino connection: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping trino: %w", err)
	}
	a.DB = db
	return nil
}

func (a *Adapter) QuoteIdentifier(name string) string { return QuoteIdentifier(name) }
func (a *Adapter) QuoteLiteral(value string) string   { return QuoteLiteral(value) }

func (a *Adapter) ColumnType(c spec.Column) (string, error) {
	pt, ok := typeMap[c.Type]
	if !ok {
		return "", fmt.Errorf("trino: no physical type for %q", c.Type)
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

// OptimizeSQL compacts small files and expires old Iceberg snapshots. The
// rewrites issued by the transformation engine copy whole partitions, so
// without this the table accumulates one snapshot per statement.
func (a *Adapter) OptimizeSQL(table string) []string {
	return []string{
		fmt.Sprintf("ALTER TABLE %s EXECUTE optimize", QuoteIdentifier(table)),
		fmt.Sprintf("ALTER TABLE %s EXECUTE expire_snapshots(retention_threshold => '7d')", QuoteIdentifier(table)),
	}
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
