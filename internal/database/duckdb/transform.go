package duckdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

const mutateAlphabet = "abcdefghijklmnopqrstuvwxyz"

// ApplyBatch runs one transformation batch as a single UPDATE. When any
// transformation needs per-row draws that must be read more than once (swap,
// mutate), the update joins a rowid-keyed snapshot of the table that carries
// the draws as columns; reading a draw column twice is then trivially
// consistent, and every input read comes from the pre-update snapshot.
func (a *Adapter) ApplyBatch(ctx context.Context, t spec.Table, batch spec.Batch, opts dbclient.TransformOptions) error {
	if len(batch) == 0 {
		return nil
	}
	query, err := a.UpdateBatchSQL(t, batch, opts)
	if err != nil {
		return err
	}
	return a.Exec(ctx, query)
}

// UpdateBatchSQL compiles a whole batch into one UPDATE statement.
func (a *Adapter) UpdateBatchSQL(t spec.Table, batch spec.Batch, opts dbclient.TransformOptions) (string, error) {
	table := QuoteIdentifier(t.Name)

	var draws []string
	drawName := func(kind string) string {
		name := fmt.Sprintf("__%s%d", kind, len(draws))
		draws = append(draws, fmt.Sprintf("random() AS %s", name))
		return "d." + name
	}

	var sets []string
	for _, tr := range batch {
		switch x := tr.(type) {
		case spec.Template:
			expr, err := templateExpr(t, x, opts)
			if err != nil {
				return "", err
			}
			sets = append(sets, fmt.Sprintf("%s = %s", QuoteIdentifier(x.Column), expr))

		case spec.Mutate:
			sets = append(sets, mutateClause(x, drawName))

		case spec.Lookup:
			sets = append(sets, fmt.Sprintf("%s = (SELECT s.%s FROM %s AS s WHERE s.%s = %s.%s)",
				QuoteIdentifier(x.Column),
				QuoteIdentifier(x.SourceColumn),
				QuoteIdentifier(x.SourceTable),
				QuoteIdentifier(x.SourceMatchColumn),
				table, QuoteIdentifier(x.MatchColumn)))

		case spec.Swap:
			r := drawName("swap")
			p := formatFloat(x.Probability)
			c1 := QuoteIdentifier(x.Column1)
			c2 := QuoteIdentifier(x.Column2)
			sets = append(sets,
				fmt.Sprintf("%s = CASE WHEN %s < %s THEN d.%s ELSE d.%s END", c1, r, p, c2, c1),
				fmt.Sprintf("%s = CASE WHEN %s < %s THEN d.%s ELSE d.%s END", c2, r, p, c1, c2))

		default:
			return "", dbclient.UnsupportedTransformation("duckdb", tr)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s\nSET %s", table, strings.Join(sets, ",\n    "))
	if len(draws) > 0 {
		fmt.Fprintf(&b, "\nFROM (SELECT rowid AS __rid, *, %s FROM %s) AS d", strings.Join(draws, ", "), table)
		fmt.Fprintf(&b, "\nWHERE %s.rowid = d.__rid", table)
	}
	return b.String(), nil
}

func templateExpr(t spec.Table, tpl spec.Template, opts dbclient.TransformOptions) (string, error) {
	var parts []string
	for _, seg := range tpl.Segments() {
		switch {
		case seg.Column == "":
			parts = append(parts, QuoteLiteral(seg.Literal))
		case t.HasColumn(seg.Column):
			// Table-qualified so the reference stays unambiguous when the
			// statement also joins the rowid draw snapshot.
			parts = append(parts, fmt.Sprintf("CAST(%s.%s AS VARCHAR)", QuoteIdentifier(t.Name), QuoteIdentifier(seg.Column)))
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

func mutateClause(m spec.Mutate, drawName func(string) string) string {
	gate := drawName("gate")
	pos := drawName("pos")
	chr := drawName("chr")

	col := "d." + QuoteIdentifier(m.Column)
	posAt := fmt.Sprintf("(1 + CAST(floor(%s * greatest(length(%s), 1)) AS INTEGER))", pos, col)
	posIns := fmt.Sprintf("(1 + CAST(floor(%s * (length(%s) + 1)) AS INTEGER))", pos, col)
	ch := fmt.Sprintf("substr('%s', 1 + CAST(floor(%s * %d) AS INTEGER), 1)", mutateAlphabet, chr, len(mutateAlphabet))

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
		op := drawName("op")
		var b strings.Builder
		fmt.Fprintf(&b, "CASE CAST(floor(%s * %d) AS INTEGER)", op, len(edits))
		for i, e := range edits {
			fmt.Fprintf(&b, " WHEN %d THEN %s", i, e)
		}
		b.WriteString(" END")
		edit = b.String()
	}

	return fmt.Sprintf("%s = CASE WHEN %s < %s THEN %s ELSE %s END",
		QuoteIdentifier(m.Column), gate, formatFloat(m.Probability), edit, col)
}
