package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

const mutateAlphabet = "abcdefghijklmnopqrstuvwxyz"

// ApplyBatch runs one transformation batch as a single UPDATE. Every SET
// expression reads the row's pre-update values, which is exactly the
// "logically concurrent within a batch" contract.
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
	sets := make([]string, 0, len(batch))
	for _, tr := range batch {
		clause, err := a.setClause(t, tr, opts)
		if err != nil {
			return "", err
		}
		sets = append(sets, clause)
	}
	return fmt.Sprintf("UPDATE %s AS t\nSET %s", QuoteIdentifier(t.Name), strings.Join(sets, ",\n    ")), nil
}

func (a *Adapter) setClause(t spec.Table, tr spec.Transformation, opts dbclient.TransformOptions) (string, error) {
	switch x := tr.(type) {
	case spec.Template:
		expr, err := templateExpr(t, x, opts)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", QuoteIdentifier(x.Column), expr), nil

	case spec.Mutate:
		return mutateClause(x), nil

	case spec.Lookup:
		return fmt.Sprintf("%s = (SELECT s.%s FROM %s AS s WHERE s.%s = t.%s)",
			QuoteIdentifier(x.Column),
			QuoteIdentifier(x.SourceColumn),
			QuoteIdentifier(x.SourceTable),
			QuoteIdentifier(x.SourceMatchColumn),
			QuoteIdentifier(x.MatchColumn)), nil

	case spec.Swap:
		return swapClause(x), nil

	default:
		return "", dbclient.UnsupportedTransformation("postgres", tr)
	}
}

func templateExpr(t spec.Table, tpl spec.Template, opts dbclient.TransformOptions) (string, error) {
	var parts []string
	for _, seg := range tpl.Segments() {
		switch {
		case seg.Column == "":
			parts = append(parts, QuoteLiteral(seg.Literal))
		case t.HasColumn(seg.Column):
			parts = append(parts, fmt.Sprintf("t.%s::text", QuoteIdentifier(seg.Column)))
		case opts.StrictTemplates:
			return "", fmt.Errorf("template: pattern references unknown column %q in table %s", seg.Column, t.Name)
		default:
			// Unresolved tokens pass through as literal text.
			parts = append(parts, QuoteLiteral("{"+seg.Column+"}"))
		}
	}
	expr := fmt.Sprintf("concat(%s)", strings.Join(parts, ", "))
	if tpl.Lowercase {
		expr = fmt.Sprintf("lower(%s)", expr)
	}
	return expr, nil
}

// mutateClause binds the gate, position, operation and character draws in a
// per-row correlated subquery so each draw is made exactly once per row and
// reused across the edit expression.
func mutateClause(m spec.Mutate) string {
	col := "t." + QuoteIdentifier(m.Column)
	posAt := fmt.Sprintf("(1 + floor(d.pos * greatest(length(%s), 1))::int)", col)
	posIns := fmt.Sprintf("(1 + floor(d.pos * (length(%s) + 1))::int)", col)
	ch := fmt.Sprintf("substr('%s', 1 + floor(d.chr * %d)::int, 1)", mutateAlphabet, len(mutateAlphabet))

	edits := make([]string, len(m.Operations))
	for i, op := range m.Operations {
		switch op {
		case spec.MutateReplace:
			edits[i] = fmt.Sprintf("overlay(%s placing %s from %s for 1)", col, ch, posAt)
		case spec.MutateDelete:
			edits[i] = fmt.Sprintf("overlay(%s placing '' from %s for 1)", col, posAt)
		case spec.MutateInsert:
			edits[i] = fmt.Sprintf("overlay(%s placing %s from %s for 0)", col, ch, posIns)
		}
	}

	var edit string
	if len(edits) == 1 {
		edit = edits[0]
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "CASE floor(d.op * %d)::int", len(edits))
		for i, e := range edits {
			fmt.Fprintf(&b, " WHEN %d THEN %s", i, e)
		}
		b.WriteString(" END")
		edit = b.String()
	}

	return fmt.Sprintf(
		"%s = (SELECT CASE WHEN d.gate < %s THEN %s ELSE %s END FROM (SELECT random() AS gate, random() AS pos, random() AS op, random() AS chr) AS d)",
		QuoteIdentifier(m.Column), formatFloat(m.Probability), edit, col)
}

// swapClause exchanges both columns from one draw via the multi-column SET
// form; the row subquery is correlated, so random() is evaluated exactly
// once per row and gates both sides.
func swapClause(s spec.Swap) string {
	c1 := QuoteIdentifier(s.Column1)
	c2 := QuoteIdentifier(s.Column2)
	p := formatFloat(s.Probability)
	return fmt.Sprintf(
		"(%s, %s) = (SELECT CASE WHEN d.r < %s THEN t.%s ELSE t.%s END, CASE WHEN d.r < %s THEN t.%s ELSE t.%s END FROM (SELECT random() AS r) AS d)",
		c1, c2, p, c2, c1, p, c1, c2)
}
