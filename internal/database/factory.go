package database

import (
	"fmt"

	"github.com/fabrica-io/fabrica/internal/database/clickhouse"
	"github.com/fabrica-io/fabrica/internal/database/duckdb"
	"github.com/fabrica-io/fabrica/internal/database/postgres"
	"github.com/fabrica-io/fabrica/internal/database/trino"
)

// NewDialect returns the adapter for a provider name.
func NewDialect(provider string) (Dialect, error) {
	switch provider {
	case "postgresql", "postgres":
		return postgres.New(), nil
	case "clickhouse":
		return clickhouse.New(), nil
	case "duckdb":
		return duckdb.New(), nil
	case "trino", "iceberg":
		return trino.New(), nil
	default:
		return nil, fmt.Errorf("unknown database provider %q", provider)
	}
}
