package trino

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

func testAdapter() *Adapter {
	a := New()
	a.salt = func() string { return "fixedsalt" }
	return a
}

func testTable() spec.Table {
	return spec.Table{
		Name: "users",
		Columns: []spec.Column{
			{Name: "id", Type: spec.TypeBigint, Generator: spec.Sequence{Start: 1, Step: 1}},
			{Name: "first", Type: spec.TypeString, Generator: spec.RandomString{Length: 8}},
			{Name: "last", Type: spec.TypeString, Generator: spec.RandomString{Length: 8}},
			{Name: "email", Type: spec.TypeString, Generator: spec.RandomString{Length: 16}},
		},
	}
}

func TestCompileSequenceMatchesOtherDialects(t *testing.T) {
	a := testAdapter()
	expr, err := a.CompileExpression(spec.Sequence{Start: 100, Step: 5}, "r.i")
	require.NoError(t, err)
	assert.Equal(t, "(r.i - 1) * 5 + 100", expr)
}

func TestCompileGenerators(t *testing.T) {
	a := testAdapter()

	tests := []struct {
		gen  spec.Generator
		want string
	}{
		{spec.RandomInt{Min: 1, Max: 6}, "(random(CAST(6 AS bigint)) + 1)"},
		{spec.Choice{Values: []any{"a", "b"}}, "element_at(ARRAY['a', 'b'], 1 + CAST(random(CAST(2 AS bigint)) AS integer))"},
		{spec.UUID{}, "CAST(uuid() AS varchar)"},
		{spec.Constant{Value: "x"}, "'x'"},
	}
	for _, tt := range tests {
		expr, err := a.CompileExpression(tt.gen, "r.i")
		require.NoError(t, err, tt.gen.Kind())
		assert.Equal(t, tt.want, expr, tt.gen.Kind())
	}
}

func TestInsertBatchSmallUsesSequence(t *testing.T) {
	a := testAdapter()
	tbl := testTable()

	query, err := a.InsertBatchSQL(tbl, 0, 1000)
	require.NoError(t, err)
	assert.Contains(t, query, "FROM UNNEST(sequence(1, 1000)) AS r(i)")
	assert.NotContains(t, query, "WHERE")

	query, err = a.InsertBatchSQL(tbl, 5000, 1000)
	require.NoError(t, err)
	assert.Contains(t, query, "FROM UNNEST(sequence(5001, 6000)) AS r(i)")
}

// sequence() caps at 10000 elements, so bigger batches fan out as block ×
// offset cross joins and trim the overshoot.
func TestInsertBatchLargeFansOut(t *testing.T) {
	a := testAdapter()
	tbl := testTable()

	query, err := a.InsertBatchSQL(tbl, 0, 25000)
	require.NoError(t, err)
	assert.Contains(t, query, "SELECT 0 + b.j * 10000 + u.k AS i")
	assert.Contains(t, query, "FROM UNNEST(sequence(0, 2)) AS b(j)")
	assert.Contains(t, query, "CROSS JOIN UNNEST(sequence(1, 10000)) AS u(k)")
	assert.Contains(t, query, "WHERE r.i <= 25000")
}

func TestNullInjectionBoundaries(t *testing.T) {
	a := testAdapter()
	tbl := spec.Table{
		Name: "t",
		Columns: []spec.Column{
			{Name: "c", Type: spec.TypeString, Generator: spec.RandomString{Length: 4}, Nullable: true, NullProbability: 1},
		},
	}

	query, err := a.InsertBatchSQL(tbl, 0, 1)
	require.NoError(t, err)
	assert.Contains(t, query, "CAST(NULL AS varchar)")
	assert.NotContains(t, query, "random()")

	tbl.Columns[0].NullProbability = 0.5
	query, err = a.InsertBatchSQL(tbl, 0, 1)
	require.NoError(t, err)
	assert.Contains(t, query, "IF(random() < 0.5, CAST(NULL AS varchar),")
}

func TestBatchSQLUpdateThenMerges(t *testing.T) {
	a := testAdapter()
	tbl := testTable()

	stmts, err := a.BatchSQL(tbl, spec.Batch{
		spec.Lookup{Column: "email", SourceTable: "emails", SourceColumn: "addr", MatchColumn: "id", SourceMatchColumn: "user_id"},
		spec.Template{Column: "first", Pattern: "u-{id}"},
	}, dbclient.TransformOptions{})
	require.NoError(t, err)
	require.Len(t, stmts, 2)

	// the in-place UPDATE runs first and pre-clears the lookup target
	assert.True(t, strings.HasPrefix(stmts[0], `UPDATE "users"`))
	assert.Contains(t, stmts[0], `"email" = NULL`)
	assert.Contains(t, stmts[0], `"first" = concat('u-', coalesce(CAST("id" AS varchar), ''))`)

	assert.True(t, strings.HasPrefix(stmts[1], `MERGE INTO "users" AS t`))
	assert.Contains(t, stmts[1], `USING (SELECT "user_id" AS k, "addr" AS v FROM "emails") AS s`)
	assert.Contains(t, stmts[1], `ON t."id" = s.k`)
	assert.Contains(t, stmts[1], `WHEN MATCHED THEN UPDATE SET "email" = s.v`)
}

func TestSwapSharesOneHashDraw(t *testing.T) {
	a := testAdapter()
	tbl := testTable()

	stmts, err := a.BatchSQL(tbl, spec.Batch{
		spec.Swap{Column1: "first", Column2: "last", Probability: 0.3},
	}, dbclient.TransformOptions{})
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	// both sides gate on the same salted draw, textually identical
	assert.Contains(t, stmts[0], "'fixedsalt:0'")
	assert.Equal(t, 2, strings.Count(stmts[0], "'fixedsalt:0'"))
	assert.Contains(t, stmts[0], "xxhash64")
	assert.Contains(t, stmts[0], "< 300000")
	assert.Contains(t, stmts[0], `"first" = IF(`)
	assert.Contains(t, stmts[0], `"last" = IF(`)
}

func TestMutateDrawsAreDistinct(t *testing.T) {
	a := testAdapter()
	tbl := testTable()

	stmts, err := a.BatchSQL(tbl, spec.Batch{
		spec.Mutate{Column: "first", Probability: 0.1, Operations: []spec.MutateOp{spec.MutateReplace, spec.MutateDelete}},
	}, dbclient.TransformOptions{})
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	// gate, position, character and operation draws carry distinct suffixes
	for _, suffix := range []string{"'fixedsalt:0'", "'fixedsalt:1'", "'fixedsalt:2'", "'fixedsalt:3'"} {
		assert.Contains(t, stmts[0], suffix)
	}
	assert.Contains(t, stmts[0], "< 100000")
}

func TestEmptyBatch(t *testing.T) {
	a := testAdapter()
	stmts, err := a.BatchSQL(testTable(), nil, dbclient.TransformOptions{})
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestDDL(t *testing.T) {
	a := testAdapter()
	tbl := spec.Table{
		Name: "t",
		Columns: []spec.Column{
			{Name: "id", Type: spec.TypeBigint, Generator: spec.Sequence{Start: 1, Step: 1}},
			{Name: "ts", Type: spec.TypeDatetime, Generator: spec.UUID{}, Nullable: true},
		},
	}

	ddl, err := a.CreateTableSQL(tbl)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "t" ("id" bigint NOT NULL, "ts" timestamp(6))`, ddl)

	assert.Equal(t, `DELETE FROM "t"`, a.TruncateTableSQL("t"))
	assert.Equal(t, []string{
		`ALTER TABLE "t" EXECUTE optimize`,
		`ALTER TABLE "t" EXECUTE expire_snapshots(retention_threshold => '7d')`,
	}, a.OptimizeSQL("t"))
}
