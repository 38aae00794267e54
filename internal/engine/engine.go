package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/fabrica-io/fabrica/internal/database"
	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

// DefaultBatchSize is the insert chunk size when the caller does not set one.
const DefaultBatchSize = 10000

// Options tunes a run. Zero values are the conservative defaults: keep the
// existing table, append to it, no optimize pass.
type Options struct {
	// BatchSize caps the rows per bulk INSERT statement.
	BatchSize int64
	// Drop drops the target table first; implies Create.
	Drop bool
	// Create issues CREATE TABLE before generating.
	Create bool
	// Truncate empties the table before generating. Ignored when Drop is set.
	Truncate bool
	// Resume probes the table's first sequence column and continues numbering
	// past its current maximum.
	Resume bool
	// Optimize runs the dialect's maintenance statements once per touched
	// table after all steps finish.
	Optimize bool
	// StrictTemplates makes unresolved template placeholders an error.
	StrictTemplates bool
	// Quiet suppresses progress output.
	Quiet bool
}

// StepReport is the outcome of one scenario step.
type StepReport struct {
	Table     string
	Kind      string
	Rows      int64
	Batches   int
	Generate  time.Duration
	Transform time.Duration
}

// Report aggregates a full run.
type Report struct {
	Scenario  string
	Steps     []StepReport
	TotalRows int64
	Optimize  time.Duration
	Elapsed   time.Duration
}

// Runner drives generation and transformation against one connected dialect.
type Runner struct {
	dialect database.Dialect
	opts    Options
}

func NewRunner(d database.Dialect, opts Options) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Drop {
		opts.Create = true
	}
	return &Runner{dialect: d, opts: opts}
}

func (r *Runner) transformOpts() dbclient.TransformOptions {
	return dbclient.TransformOptions{StrictTemplates: r.opts.StrictTemplates}
}

func (r *Runner) progress(format string, args ...any) {
	if r.opts.Quiet {
		return
	}
	color.Cyan(format, args...)
}

// Run replays a scenario top to bottom. Optimize statements are deferred
// and issued once per distinct touched table, in first-touch order, after
// every step has finished.
func (r *Runner) Run(ctx context.Context, sc spec.Scenario) (Report, error) {
	start := time.Now()
	report := Report{Scenario: sc.Name}

	if err := sc.Validate(); err != nil {
		return report, fmt.Errorf("invalid scenario: %w", err)
	}

	var touched []string
	seen := make(map[string]bool)
	touch := func(table string) {
		if !seen[table] {
			seen[table] = true
			touched = append(touched, table)
		}
	}

	for i, step := range sc.Steps {
		r.progress("▶ step %d/%d: %s", i+1, len(sc.Steps), step.TableName())
		var sr StepReport
		var err error
		switch st := step.(type) {
		case spec.GenerateStep:
			sr, err = r.Generate(ctx, st)
		case spec.TransformStep:
			sr, err = r.Transform(ctx, st)
		default:
			err = fmt.Errorf("unknown step type %T", step)
		}
		if err != nil {
			return report, fmt.Errorf("step %d (%s): %w", i+1, step.TableName(), err)
		}
		touch(step.TableName())
		report.Steps = append(report.Steps, sr)
		report.TotalRows += sr.Rows
	}

	if r.opts.Optimize {
		optStart := time.Now()
		for _, table := range touched {
			r.progress("⚙ optimizing %s", table)
			for _, stmt := range r.dialect.OptimizeSQL(table) {
				if err := r.dialect.Exec(ctx, stmt); err != nil {
					return report, fmt.Errorf("failed to optimize %s: %w", table, err)
				}
			}
		}
		report.Optimize = time.Since(optStart)
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

// Generate fabricates the step's rows in chunks and then runs its
// transformation batches.
func (r *Runner) Generate(ctx context.Context, step spec.GenerateStep) (StepReport, error) {
	sr := StepReport{Table: step.Table.Name, Kind: "generate", Rows: step.Rows}
	t := step.Table

	if r.opts.Drop {
		if err := r.dialect.Exec(ctx, r.dialect.DropTableSQL(t.Name)); err != nil {
			return sr, fmt.Errorf("failed to drop table %s: %w", t.Name, err)
		}
	}
	if r.opts.Create {
		ddl, err := r.dialect.CreateTableSQL(t)
		if err != nil {
			return sr, err
		}
		if err := r.dialect.Exec(ctx, ddl); err != nil {
			return sr, fmt.Errorf("failed to create table %s: %w", t.Name, err)
		}
	}
	if r.opts.Truncate && !r.opts.Drop {
		if err := r.dialect.Exec(ctx, r.dialect.TruncateTableSQL(t.Name)); err != nil {
			return sr, fmt.Errorf("failed to truncate table %s: %w", t.Name, err)
		}
	}

	if step.Resume || r.opts.Resume {
		resumed, err := r.resumeTable(ctx, t)
		if err != nil {
			return sr, err
		}
		t = resumed
	}

	genStart := time.Now()
	for origin := int64(0); origin < step.Rows; origin += r.opts.BatchSize {
		rows := step.Rows - origin
		if rows > r.opts.BatchSize {
			rows = r.opts.BatchSize
		}
		query, err := r.dialect.InsertBatchSQL(t, origin, rows)
		if err != nil {
			return sr, fmt.Errorf("failed to compile insert for %s: %w", t.Name, err)
		}
		if err := r.dialect.Exec(ctx, query); err != nil {
			return sr, fmt.Errorf("failed to insert rows %d..%d into %s: %w",
				origin+1, origin+rows, t.Name, err)
		}
	}
	sr.Generate = time.Since(genStart)

	n, d, err := r.applyBatches(ctx, step.Table, step.Batches)
	sr.Batches, sr.Transform = n, d
	return sr, err
}

// Transform runs the step's transformation batches against the existing
// table.
func (r *Runner) Transform(ctx context.Context, step spec.TransformStep) (StepReport, error) {
	sr := StepReport{Table: step.Table.Name, Kind: "transform"}
	n, d, err := r.applyBatches(ctx, step.Table, step.Batches)
	sr.Batches, sr.Transform = n, d
	return sr, err
}

func (r *Runner) applyBatches(ctx context.Context, t spec.Table, batches []spec.Batch) (int, time.Duration, error) {
	if len(batches) == 0 {
		return 0, 0, nil
	}
	start := time.Now()
	for i, b := range batches {
		if err := r.dialect.ApplyBatch(ctx, t, b, r.transformOpts()); err != nil {
			return i, time.Since(start), fmt.Errorf("batch %d on %s: %w", i+1, t.Name, err)
		}
	}
	return len(batches), time.Since(start), nil
}

// resumeTable rewrites the table's first sequence column to continue past
// the values already present. A table without a sequence column, or an
// empty table, resumes from the declared start.
func (r *Runner) resumeTable(ctx context.Context, t spec.Table) (spec.Table, error) {
	col, seq, ok := t.FirstSequenceColumn()
	if !ok {
		return t, nil
	}
	max, err := r.dialect.MaxSequenceValue(ctx, t.Name, col.Name)
	if err != nil {
		return t, err
	}
	if max == nil {
		return t, nil
	}
	r.progress("↻ resuming %s.%s past %d", t.Name, col.Name, *max)
	return t.WithSequenceStart(*max + seq.Step), nil
}
