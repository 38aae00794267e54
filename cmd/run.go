package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fabrica-io/fabrica/internal/config"
	"github.com/fabrica-io/fabrica/internal/database"
	"github.com/fabrica-io/fabrica/internal/engine"
	"github.com/fabrica-io/fabrica/internal/spec"
)

var runFlags struct {
	engine          string
	batchSize       int64
	drop            bool
	create          bool
	truncate        bool
	resume          bool
	optimize        bool
	strictTemplates bool
	quiet           bool
}

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario: generate tables and apply transformations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := config.LoadScenario(args[0])
		if err != nil {
			return err
		}
		return runScenario(cmd.Context(), sc)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runFlags.engine, "engine", "", "database engine (default from config)")
	cmd.Flags().Int64Var(&runFlags.batchSize, "batch-size", 0, "rows per bulk INSERT (default from config)")
	cmd.Flags().BoolVar(&runFlags.drop, "drop", false, "drop target tables before generating")
	cmd.Flags().BoolVar(&runFlags.create, "create", false, "create target tables before generating")
	cmd.Flags().BoolVar(&runFlags.truncate, "truncate", false, "truncate target tables before generating")
	cmd.Flags().BoolVar(&runFlags.resume, "resume", false, "continue sequences past existing data")
	cmd.Flags().BoolVar(&runFlags.optimize, "optimize", false, "run engine maintenance after the scenario")
	cmd.Flags().BoolVar(&runFlags.strictTemplates, "strict-templates", false, "fail on unresolved template placeholders")
	cmd.Flags().BoolVarP(&runFlags.quiet, "quiet", "q", false, "suppress progress output")
}

func runScenario(ctx context.Context, sc spec.Scenario) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if runFlags.engine != "" {
		cfg.Database.Provider = runFlags.engine
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dialect, err := database.NewDialect(cfg.Database.Provider)
	if err != nil {
		return err
	}

	dbURL, err := cfg.GetDatabaseURL()
	if err != nil {
		return err
	}
	if err := dialect.Connect(ctx, dbURL); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", dialect.Name(), err)
	}
	defer dialect.Close()

	opts := engine.Options{
		BatchSize:       runFlags.batchSize,
		Drop:            runFlags.drop,
		Create:          runFlags.create,
		Truncate:        runFlags.truncate,
		Resume:          runFlags.resume,
		Optimize:        runFlags.optimize || cfg.Run.Optimize,
		StrictTemplates: runFlags.strictTemplates || cfg.Run.StrictTemplates,
		Quiet:           runFlags.quiet,
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = cfg.Run.BatchSize
	}

	runner := engine.NewRunner(dialect, opts)
	report, err := runner.Run(ctx, sc)
	if err != nil {
		color.Red("❌ Scenario failed: %v", err)
		return err
	}

	printReport(report)
	return nil
}

func printReport(report engine.Report) {
	color.Green("✅ Scenario %q finished in %s (%d rows inserted)",
		report.Scenario, report.Elapsed.Round(time.Millisecond), report.TotalRows)
	for _, s := range report.Steps {
		switch s.Kind {
		case "generate":
			fmt.Printf("   %s: %d rows in %s", s.Table, s.Rows, s.Generate.Round(time.Millisecond))
			if s.Batches > 0 {
				fmt.Printf(", %d batches in %s", s.Batches, s.Transform.Round(time.Millisecond))
			}
			fmt.Println()
		case "transform":
			fmt.Printf("   %s: %d batches in %s\n", s.Table, s.Batches, s.Transform.Round(time.Millisecond))
		}
	}
	if report.Optimize > 0 {
		fmt.Printf("   optimize: %s\n", report.Optimize.Round(time.Millisecond))
	}
}
