package clickhouse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

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
	a := New()
	expr, err := a.CompileExpression(spec.Sequence{Start: 100, Step: 5}, "(number + 1)")
	require.NoError(t, err)
	assert.Equal(t, "((number + 1) - 1) * 5 + 100", expr)
}

// Identical subexpressions are one draw per row in ClickHouse, so every
// random call in one statement must carry its own seed.
func TestDrawsAreSeededDistinctly(t *testing.T) {
	a := New()
	tbl := spec.Table{
		Name: "t",
		Columns: []spec.Column{
			{Name: "a", Type: spec.TypeString, Generator: spec.RandomString{Length: 8}},
			{Name: "b", Type: spec.TypeString, Generator: spec.RandomString{Length: 8}},
		},
	}

	query, err := a.InsertBatchSQL(tbl, 0, 10)
	require.NoError(t, err)
	assert.Contains(t, query, "rand(0)")
	assert.Contains(t, query, "rand(1)")
	// no two textual occurrences of the same seeded call
	assert.Equal(t, 1, strings.Count(query, "rand(0)"))
	assert.Equal(t, 1, strings.Count(query, "rand(1)"))
}

func TestInsertBatchRowSource(t *testing.T) {
	a := New()
	tbl := testTable()

	query, err := a.InsertBatchSQL(tbl, 0, 1000)
	require.NoError(t, err)
	assert.Contains(t, query, "FROM numbers(0, 1000)")

	query, err = a.InsertBatchSQL(tbl, 5000, 1000)
	require.NoError(t, err)
	assert.Contains(t, query, "FROM numbers(5000, 1000)")
	assert.Contains(t, query, "((number + 1) - 1) * 1 + 1")
}

func TestNullInjectionBoundaries(t *testing.T) {
	a := New()
	tbl := spec.Table{
		Name: "t",
		Columns: []spec.Column{
			{Name: "c", Type: spec.TypeString, Generator: spec.RandomString{Length: 4}, Nullable: true, NullProbability: 1},
		},
	}

	query, err := a.InsertBatchSQL(tbl, 0, 1)
	require.NoError(t, err)
	assert.Contains(t, query, "CAST(NULL AS Nullable(String))")
	assert.NotContains(t, query, "rand(")

	tbl.Columns[0].NullProbability = 0.5
	query, err = a.InsertBatchSQL(tbl, 0, 1)
	require.NoError(t, err)
	// the generator draw takes rand(0); the gate takes the next seed
	assert.Contains(t, query, "if((rand(1) / 4294967296) < 0.5, NULL,")
}

func TestCreateTableSQL(t *testing.T) {
	a := New()
	tbl := spec.Table{
		Name: "t",
		Columns: []spec.Column{
			{Name: "id", Type: spec.TypeBigint, Generator: spec.Sequence{Start: 1, Step: 1}},
			{Name: "note", Type: spec.TypeString, Generator: spec.RandomString{Length: 4}, Nullable: true},
		},
	}

	ddl, err := a.CreateTableSQL(tbl)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE `t` (`id` Int64, `note` Nullable(String)) ENGINE = MergeTree ORDER BY `id`", ddl)
}

func TestAlterUpdateSQL(t *testing.T) {
	a := New()
	tbl := testTable()

	query, err := a.AlterUpdateSQL(tbl, spec.Batch{
		spec.Template{Column: "email", Pattern: "{first}@x", Lowercase: true},
	}, dbclient.TransformOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE `users` UPDATE `email` = lower(concat(coalesce(toString(`first`), ''), '@x')) WHERE 1 SETTINGS mutations_sync = 2", query)
}

func TestMutateDrawsAreSeeded(t *testing.T) {
	a := New()
	tbl := testTable()

	query, err := a.AlterUpdateSQL(tbl, spec.Batch{
		spec.Mutate{Column: "first", Probability: 0.1, Operations: []spec.MutateOp{spec.MutateReplace}},
		spec.Mutate{Column: "last", Probability: 0.1, Operations: []spec.MutateOp{spec.MutateReplace}},
	}, dbclient.TransformOptions{})
	require.NoError(t, err)

	// the two mutations must not share any seed
	assert.Contains(t, query, "rand(1000)")
	assert.Contains(t, query, "rand(1004)")
	// the position draw is reused textually and binds through CSE
	assert.GreaterOrEqual(t, strings.Count(query, "rand(1001)"), 2)
}

func TestReplacementPlan(t *testing.T) {
	tbl := testTable()
	lookups := []spec.Lookup{{
		Column: "email", SourceTable: "emails", SourceColumn: "addr",
		MatchColumn: "id", SourceMatchColumn: "user_id",
	}}
	swaps := []spec.Swap{{Column1: "first", Column2: "last", Probability: 0.3}}

	plan := ReplacementPlan(tbl, lookups, swaps, "20240101000000_abcd1234")

	assert.Equal(t, "users__new_20240101000000_abcd1234", plan.ShadowTable)
	assert.Equal(t, "users__old_20240101000000_abcd1234", plan.OldTable)

	assert.Equal(t, "CREATE TABLE `users__new_20240101000000_abcd1234` AS `users`", plan.CreateShadow)

	// single-pass populate: draws bound in the inner subquery, one LEFT
	// JOIN per lookup, NULLs for unmatched rows
	assert.Contains(t, plan.Populate, "SELECT *, (rand(0) / 4294967296) AS __swap_draw_0 FROM `users`")
	assert.Contains(t, plan.Populate, "LEFT JOIN `emails` AS s0 ON t.`id` = s0.`user_id`")
	assert.Contains(t, plan.Populate, "s0.`addr`")
	assert.Contains(t, plan.Populate, "if(t.__swap_draw_0 < 0.3, t.`last`, t.`first`)")
	assert.Contains(t, plan.Populate, "if(t.__swap_draw_0 < 0.3, t.`first`, t.`last`)")
	assert.True(t, strings.HasSuffix(plan.Populate, "SETTINGS join_use_nulls = 1"))

	// original→old and shadow→original in one atomic statement
	assert.Equal(t, "RENAME TABLE `users` TO `users__old_20240101000000_abcd1234`, `users__new_20240101000000_abcd1234` TO `users`", plan.Rename)
	assert.Equal(t, "DROP TABLE `users__old_20240101000000_abcd1234`", plan.DropOld)
}

func TestReplacementPlanCoalescesSwaps(t *testing.T) {
	tbl := testTable()
	swaps := []spec.Swap{
		{Column1: "first", Column2: "last", Probability: 0.3},
		{Column1: "id", Column2: "email", Probability: 0.1},
	}

	plan := ReplacementPlan(tbl, nil, swaps, "s")

	// one table copy no matter how many swaps, each with its own draw
	assert.Contains(t, plan.Populate, "__swap_draw_0")
	assert.Contains(t, plan.Populate, "__swap_draw_1")
	assert.Equal(t, 1, strings.Count(plan.Populate, "INSERT INTO"))
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, "`weird``name`", QuoteIdentifier("weird`name"))
	assert.Equal(t, `'it\'s'`, QuoteLiteral("it's"))
}
