package dbclient

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLConn adapts a database/sql handle to the adapter surface. The DuckDB
// and Trino adapters embed it; Postgres and ClickHouse speak their native
// protocols instead.
type SQLConn struct {
	DB *sql.DB
}

func (c *SQLConn) Exec(ctx context.Context, query string) error {
	if c.DB == nil {
		return fmt.Errorf("not connected")
	}
	_, err := c.DB.ExecContext(ctx, query)
	return err
}

func (c *SQLConn) Query(ctx context.Context, query string) (Rows, error) {
	if c.DB == nil {
		return nil, fmt.Errorf("not connected")
	}
	rows, err := c.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (c *SQLConn) Ping(ctx context.Context) error {
	if c.DB == nil {
		return fmt.Errorf("not connected")
	}
	return c.DB.PingContext(ctx)
}

func (c *SQLConn) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// MaxBigint runs a MAX probe and maps an empty/all-NULL table to nil.
func (c *SQLConn) MaxBigint(ctx context.Context, query string) (*int64, error) {
	if c.DB == nil {
		return nil, fmt.Errorf("not connected")
	}
	var max sql.NullInt64
	if err := c.DB.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return nil, err
	}
	if !max.Valid {
		return nil, nil
	}
	v := max.Int64
	return &v, nil
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Columns() []string {
	cols, err := r.rows.Columns()
	if err != nil {
		return nil
	}
	return cols
}

func (r *sqlRows) Next() bool             { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqlRows) Err() error             { return r.rows.Err() }
func (r *sqlRows) Close() error           { return r.rows.Close() }
