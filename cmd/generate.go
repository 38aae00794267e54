package cmd

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fabrica-io/fabrica/internal/config"
	"github.com/fabrica-io/fabrica/internal/spec"
)

var generateCmd = &cobra.Command{
	Use:   "generate <scenario.yaml>",
	Short: "Fabricate the scenario's tables without applying transformations",
	Long: `Generate runs only the data fabrication half of a scenario: tables are
created and filled, but transformation batches are skipped and transform-only
steps are dropped. Useful to inspect the clean data before degrading it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := config.LoadScenario(args[0])
		if err != nil {
			return err
		}
		return runGenerate(cmd.Context(), sc)
	},
}

func runGenerate(ctx context.Context, sc spec.Scenario) error {
	sc = stripTransformations(sc)
	if len(sc.Steps) == 0 {
		color.Yellow("nothing to generate: scenario %q has only transformation steps", sc.Name)
		return nil
	}
	return runScenario(ctx, sc)
}

func init() {
	rootCmd.AddCommand(generateCmd)
	addRunFlags(generateCmd)
}

func stripTransformations(sc spec.Scenario) spec.Scenario {
	out := spec.Scenario{Name: sc.Name}
	for _, step := range sc.Steps {
		if gen, ok := step.(spec.GenerateStep); ok {
			gen.Batches = nil
			out.Steps = append(out.Steps, gen)
		}
	}
	return out
}
