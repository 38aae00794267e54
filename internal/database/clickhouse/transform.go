package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

const mutateAlphabet = "abcdefghijklmnopqrstuvwxyz"

// ApplyBatch executes one transformation batch.
//
// ClickHouse cannot express correlated subqueries inside ALTER TABLE UPDATE
// and evaluates volatile functions independently across assignments, so
// lookup and swap cannot be UPDATEs here. They run through the atomic
// table-replacement protocol instead — and therefore run BEFORE any template
// or mutate declared in the same batch, regardless of declaration order.
// That ordering exception is part of the contract: callers who need a lookup
// ordered after other transformations must put it in a later batch.
func (a *Adapter) ApplyBatch(ctx context.Context, t spec.Table, batch spec.Batch, opts dbclient.TransformOptions) error {
	var lookups []spec.Lookup
	var swaps []spec.Swap
	var updates spec.Batch
	for _, tr := range batch {
		switch x := tr.(type) {
		case spec.Lookup:
			lookups = append(lookups, x)
		case spec.Swap:
			swaps = append(swaps, x)
		case spec.Template, spec.Mutate:
			updates = append(updates, tr)
		default:
			return dbclient.UnsupportedTransformation("clickhouse", tr)
		}
	}

	if len(lookups) > 0 || len(swaps) > 0 {
		if err := a.runReplacement(ctx, t, lookups, swaps); err != nil {
			return err
		}
	}
	if len(updates) > 0 {
		query, err := a.AlterUpdateSQL(t, updates, opts)
		if err != nil {
			return err
		}
		if err := a.Exec(ctx, query); err != nil {
			return fmt.Errorf("mutation on %s failed: %w", t.Name, err)
		}
	}
	return nil
}

func (a *Adapter) runReplacement(ctx context.Context, t spec.Table, lookups []spec.Lookup, swaps []spec.Swap) error {
	suffix := scratchSuffix()
	plan := ReplacementPlan(t, lookups, swaps, suffix)

	// Create + populate. A failure here leaves the scratch table behind on
	// purpose: there is no automatic cleanup in the protocol.
	if err := a.Exec(ctx, plan.CreateShadow); err != nil {
		return fmt.Errorf("table replacement for %s failed creating %s: %w", t.Name, plan.ShadowTable, err)
	}
	if err := a.Exec(ctx, plan.Populate); err != nil {
		return fmt.Errorf("table replacement for %s failed, scratch table %s left behind: %w", t.Name, plan.ShadowTable, err)
	}
	if err := a.Exec(ctx, plan.Rename); err != nil {
		return fmt.Errorf("table replacement for %s failed renaming, scratch table %s left behind: %w", t.Name, plan.ShadowTable, err)
	}
	if err := a.Exec(ctx, plan.DropOld); err != nil {
		return fmt.Errorf("table replacement for %s succeeded but dropping %s failed: %w", t.Name, plan.OldTable, err)
	}
	return nil
}

// Plan is the four-statement table-replacement protocol: create a shadow
// table, populate it in a single pass, atomically rename original→old and
// shadow→original (the only atomic primitive available), drop the old table.
type Plan struct {
	ShadowTable string
	OldTable    string

	CreateShadow string
	Populate     string
	Rename       string
	DropOld      string
}

// ReplacementPlan coalesces all lookups and swaps of one batch into a single
// replacement pass: one table copy no matter how many transformations, with
// each swap pair drawing its own per-row random exactly once in the inner
// subquery and reusing it for both destination columns.
func ReplacementPlan(t spec.Table, lookups []spec.Lookup, swaps []spec.Swap, suffix string) Plan {
	shadow := t.Name + "__new_" + suffix
	old := t.Name + "__old_" + suffix

	// Inner subquery: the source rows plus one bound draw column per swap.
	inner := fmt.Sprintf("SELECT *%s FROM %s", swapDrawColumns(swaps), QuoteIdentifier(t.Name))

	// Joins: one LEFT JOIN per lookup; join_use_nulls makes unmatched rows
	// NULL instead of type defaults.
	var joins strings.Builder
	for i, lk := range lookups {
		fmt.Fprintf(&joins, "\nLEFT JOIN %s AS s%d ON t.%s = s%d.%s",
			QuoteIdentifier(lk.SourceTable), i,
			QuoteIdentifier(lk.MatchColumn), i,
			QuoteIdentifier(lk.SourceMatchColumn))
	}

	names := make([]string, 0, len(t.Columns))
	projs := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		names = append(names, QuoteIdentifier(col.Name))
		projs = append(projs, projection(col.Name, lookups, swaps))
	}

	populate := fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s\nFROM (%s) AS t%s\nSETTINGS join_use_nulls = 1",
		QuoteIdentifier(shadow), strings.Join(names, ", "),
		strings.Join(projs, ", "), inner, joins.String())

	return Plan{
		ShadowTable:  shadow,
		OldTable:     old,
		CreateShadow: fmt.Sprintf("CREATE TABLE %s AS %s", QuoteIdentifier(shadow), QuoteIdentifier(t.Name)),
		Populate:     populate,
		Rename: fmt.Sprintf("RENAME TABLE %s TO %s, %s TO %s",
			QuoteIdentifier(t.Name), QuoteIdentifier(old),
			QuoteIdentifier(shadow), QuoteIdentifier(t.Name)),
		DropOld: fmt.Sprintf("DROP TABLE %s", QuoteIdentifier(old)),
	}
}

func swapDrawColumns(swaps []spec.Swap) string {
	var b strings.Builder
	for i := range swaps {
		fmt.Fprintf(&b, ", (rand(%d) / 4294967296) AS __swap_draw_%d", i, i)
	}
	return b.String()
}

// projection picks the SELECT expression for one destination column: the
// looked-up source column, a swap branch gated by the pair's shared draw, or
// the row's own value.
func projection(column string, lookups []spec.Lookup, swaps []spec.Swap) string {
	for i, lk := range lookups {
		if lk.Column == column {
			return fmt.Sprintf("s%d.%s", i, QuoteIdentifier(lk.SourceColumn))
		}
	}
	for i, sw := range swaps {
		gate := fmt.Sprintf("t.__swap_draw_%d < %s", i, formatFloat(sw.Probability))
		if sw.Column1 == column {
			return fmt.Sprintf("if(%s, t.%s, t.%s)", gate, QuoteIdentifier(sw.Column2), QuoteIdentifier(sw.Column1))
		}
		if sw.Column2 == column {
			return fmt.Sprintf("if(%s, t.%s, t.%s)", gate, QuoteIdentifier(sw.Column1), QuoteIdentifier(sw.Column2))
		}
	}
	return "t." + QuoteIdentifier(column)
}

// AlterUpdateSQL compiles the batch's template and mutate transformations
// into one synchronous ALTER TABLE UPDATE mutation.
func (a *Adapter) AlterUpdateSQL(t spec.Table, batch spec.Batch, opts dbclient.TransformOptions) (string, error) {
	seeds := 0
	sets := make([]string, 0, len(batch))
	for _, tr := range batch {
		switch x := tr.(type) {
		case spec.Template:
			expr, err := templateExpr(t, x, opts)
			if err != nil {
				return "", err
			}
			sets = append(sets, fmt.Sprintf("%s = %s", QuoteIdentifier(x.Column), expr))
		case spec.Mutate:
			sets = append(sets, mutateClause(x, &seeds))
		default:
			return "", dbclient.UnsupportedTransformation("clickhouse", tr)
		}
	}
	return fmt.Sprintf("ALTER TABLE %s UPDATE %s WHERE 1 SETTINGS mutations_sync = 2",
		QuoteIdentifier(t.Name), strings.Join(sets, ", ")), nil
}

func templateExpr(t spec.Table, tpl spec.Template, opts dbclient.TransformOptions) (string, error) {
	var parts []string
	for _, seg := range tpl.Segments() {
		switch {
		case seg.Column == "":
			parts = append(parts, QuoteLiteral(seg.Literal))
		case t.HasColumn(seg.Column):
			parts = append(parts, fmt.Sprintf("coalesce(toString(%s), '')", QuoteIdentifier(seg.Column)))
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

// mutateClause builds the single-character edit. Per-row binding rides on
// common-subexpression elimination: every textual occurrence of the same
// rand(seed) call is one draw per row, so the position draw can safely
// appear in several substring arguments. Distinct seeds keep the gate,
// position, operation and character draws independent of each other.
func mutateClause(m spec.Mutate, seeds *int) string {
	next := func() string {
		*seeds++
		return fmt.Sprintf("rand(%d)", 1000+*seeds-1)
	}
	col := QuoteIdentifier(m.Column)
	gate := fmt.Sprintf("(%s / 4294967296)", next())
	pos := next()
	op := next()
	chr := next()

	posAt := fmt.Sprintf("(1 + toInt32(floor((%s / 4294967296) * greatest(length(%s), 1))))", pos, col)
	posIns := fmt.Sprintf("(1 + toInt32(floor((%s / 4294967296) * (length(%s) + 1))))", pos, col)
	ch := fmt.Sprintf("substring('%s', 1 + toInt32(%s %% %d), 1)", mutateAlphabet, chr, len(mutateAlphabet))

	edits := make([]string, len(m.Operations))
	for i, o := range m.Operations {
		switch o {
		case spec.MutateReplace:
			edits[i] = fmt.Sprintf("concat(substring(%s, 1, %s - 1), %s, substring(%s, %s + 1, length(%s)))",
				col, posAt, ch, col, posAt, col)
		case spec.MutateDelete:
			edits[i] = fmt.Sprintf("concat(substring(%s, 1, %s - 1), substring(%s, %s + 1, length(%s)))",
				col, posAt, col, posAt, col)
		case spec.MutateInsert:
			edits[i] = fmt.Sprintf("concat(substring(%s, 1, %s - 1), %s, substring(%s, %s, length(%s)))",
				col, posIns, ch, col, posIns, col)
		}
	}

	edit := edits[0]
	if len(edits) > 1 {
		var args []string
		for i := 0; i < len(edits)-1; i++ {
			args = append(args, fmt.Sprintf("%s %% %d = %d", op, len(edits), i), edits[i])
		}
		args = append(args, edits[len(edits)-1])
		edit = fmt.Sprintf("multiIf(%s)", strings.Join(args, ", "))
	}

	return fmt.Sprintf("%s = if(%s < %s, %s, %s)",
		col, gate, formatFloat(m.Probability), edit, col)
}

// scratchSuffix builds a collision-resistant temporary-name suffix. It
// reduces, not eliminates, cross-instance collisions; concurrent runs
// against the same table are unsupported.
func scratchSuffix() string {
	return fmt.Sprintf("%s_%s", time.Now().Format("20060102150405"), uuid.NewString()[:8])
}
