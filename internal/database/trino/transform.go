package trino

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

const mutateAlphabet = "abcdefghijklmnopqrstuvwxyz"

// draws is the resolution of a hash draw: every draw is an integer in
// [0, drawSpan), and a probability p gates at floor(p * drawSpan).
const drawSpan = 1000000

// ApplyBatch runs one transformation batch. Trino cannot evaluate a
// subquery inside an UPDATE assignment, so a batch compiles into an
// in-place UPDATE for templates, mutations and swaps, followed by one
// MERGE per lookup. The UPDATE pre-clears every lookup target so rows
// without a match end up NULL rather than stale.
func (a *Adapter) ApplyBatch(ctx context.Context, t spec.Table, batch spec.Batch, opts dbclient.TransformOptions) error {
	stmts, err := a.BatchSQL(t, batch, opts)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to transform %s: %w", t.Name, err)
		}
	}
	return nil
}

// BatchSQL compiles a batch into its statement list: at most one UPDATE,
// then the lookup MERGEs in declaration order.
//
// Per-row randomness inside the UPDATE comes from hashing the row's own
// column values with a salt that is fresh per statement, reduced to an
// integer draw. Distinct draws within one statement get distinct suffixes.
// Rows whose column values are fully identical therefore receive identical
// draws and move together.
func (a *Adapter) BatchSQL(t spec.Table, batch spec.Batch, opts dbclient.TransformOptions) ([]string, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	table := QuoteIdentifier(t.Name)
	digest := rowDigest(t)
	salt := a.salt()

	nDraws := 0
	draw := func() string {
		expr := hashDraw(digest, fmt.Sprintf("%s:%d", salt, nDraws))
		nDraws++
		return expr
	}

	var sets []string
	var merges []string
	for _, tr := range batch {
		switch x := tr.(type) {
		case spec.Template:
			expr, err := templateExpr(t, x, opts)
			if err != nil {
				return nil, err
			}
			sets = append(sets, fmt.Sprintf("%s = %s", QuoteIdentifier(x.Column), expr))

		case spec.Mutate:
			sets = append(sets, mutateClause(x, draw))

		case spec.Swap:
			r := draw()
			gate := gateValue(x.Probability)
			c1 := QuoteIdentifier(x.Column1)
			c2 := QuoteIdentifier(x.Column2)
			sets = append(sets,
				fmt.Sprintf("%s = IF(%s < %d, %s, %s)", c1, r, gate, c2, c1),
				fmt.Sprintf("%s = IF(%s < %d, %s, %s)", c2, r, gate, c1, c2))

		case spec.Lookup:
			sets = append(sets, fmt.Sprintf("%s = NULL", QuoteIdentifier(x.Column)))
			merges = append(merges, fmt.Sprintf(
				"MERGE INTO %s AS t\nUSING (SELECT %s AS k, %s AS v FROM %s) AS s\nON t.%s = s.k\nWHEN MATCHED THEN UPDATE SET %s = s.v",
				table,
				QuoteIdentifier(x.SourceMatchColumn), QuoteIdentifier(x.SourceColumn),
				QuoteIdentifier(x.SourceTable),
				QuoteIdentifier(x.MatchColumn),
				QuoteIdentifier(x.Column)))

		default:
			return nil, dbclient.UnsupportedTransformation("trino", tr)
		}
	}

	stmts := make([]string, 0, 1+len(merges))
	if len(sets) > 0 {
		stmts = append(stmts, fmt.Sprintf("UPDATE %s\nSET %s", table, strings.Join(sets, ",\n    ")))
	}
	return append(stmts, merges...), nil
}

// rowDigest concatenates every column of the row as text, NULLs as empty
// strings, to serve as the per-row hash input.
func rowDigest(t spec.Table) string {
	parts := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		parts[i] = fmt.Sprintf("coalesce(CAST(%s AS varchar), '')", QuoteIdentifier(c.Name))
	}
	return strings.Join(parts, ", ")
}

// hashDraw folds the row digest plus a salt into an integer in [0, drawSpan).
// from_big_endian_64 can come out negative and mod keeps the dividend's
// sign, so the result is remapped into the non-negative range.
func hashDraw(digest, salt string) string {
	return fmt.Sprintf(
		"mod(mod(from_big_endian_64(xxhash64(to_utf8(concat(%s, %s)))), %d) + %d, %d)",
		digest, QuoteLiteral(salt), drawSpan, drawSpan, drawSpan)
}

func gateValue(p float64) int64 {
	return int64(p * drawSpan)
}

func templateExpr(t spec.Table, tpl spec.Template, opts dbclient.TransformOptions) (string, error) {
	var parts []string
	for _, seg := range tpl.Segments() {
		switch {
		case seg.Column == "":
			parts = append(parts, QuoteLiteral(seg.Literal))
		case t.HasColumn(seg.Column):
			parts = append(parts, fmt.Sprintf("coalesce(CAST(%s AS varchar), '')", QuoteIdentifier(seg.Column)))
		case opts.StrictTemplates:
			return "", fmt.Errorf("template: pattern references unknown column %q in table %s", seg.Column, t.Name)
		default:
			parts = append(parts, QuoteLiteral("{"+seg.Column+"}"))
		}
	}
	expr := fmt.Sprintf("concat(%s)", strings.Join(parts, ", "))
	if tpl.Lowercase {
		expr = fmt.Sprintf("lower(%s)", expr)
	}
	return expr, nil
}

func mutateClause(m spec.Mutate, draw func() string) string {
	gate := draw()
	pos := draw()
	chr := draw()

	col := QuoteIdentifier(m.Column)
	posAt := fmt.Sprintf("(1 + CAST(mod(%s, greatest(length(%s), 1)) AS integer))", pos, col)
	posIns := fmt.Sprintf("(1 + CAST(mod(%s, length(%s) + 1) AS integer))", pos, col)
	ch := fmt.Sprintf("substr('%s', 1 + CAST(mod(%s, %d) AS integer), 1)", mutateAlphabet, chr, len(mutateAlphabet))

	edits := make([]string, len(m.Operations))
	for i, op := range m.Operations {
		switch op {
		case spec.MutateReplace:
			edits[i] = fmt.Sprintf("substr(%s, 1, %s - 1) || %s || substr(%s, %s + 1)", col, posAt, ch, col, posAt)
		case spec.MutateDelete:
			edits[i] = fmt.Sprintf("substr(%s, 1, %s - 1) || substr(%s, %s + 1)", col, posAt, col, posAt)
		case spec.MutateInsert:
			edits[i] = fmt.Sprintf("substr(%s, 1, %s - 1) || %s || substr(%s, %s)", col, posIns, ch, col, posIns)
		}
	}

	edit := edits[0]
	if len(edits) > 1 {
		op := draw()
		var b strings.Builder
		fmt.Fprintf(&b, "CASE CAST(mod(%s, %d) AS integer)", op, len(edits))
		for i, e := range edits {
			fmt.Fprintf(&b, " WHEN %d THEN %s", i, e)
		}
		b.WriteString(" END")
		edit = b.String()
	}

	return fmt.Sprintf("%s = CASE WHEN %s < %d THEN %s ELSE %s END",
		col, gate, gateValue(m.Probability), edit, col)
}

func newSalt() string {
	return uuid.NewString()[:8]
}
