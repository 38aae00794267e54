package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fabrica-io/fabrica/internal/config"
	"github.com/fabrica-io/fabrica/internal/database"
)

var sampleLimit int

var sampleCmd = &cobra.Command{
	Use:   "sample <table>",
	Short: "Print a few rows from a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
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
		ctx := cmd.Context()
		if err := dialect.Connect(ctx, dbURL); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", dialect.Name(), err)
		}
		defer dialect.Close()

		query := fmt.Sprintf("SELECT * FROM %s LIMIT %d",
			dialect.QuoteIdentifier(args[0]), sampleLimit)
		rows, err := dialect.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to sample %s: %w", args[0], err)
		}
		defer rows.Close()

		cols := rows.Columns()
		color.Cyan(strings.Join(cols, "\t"))

		dest := make([]any, len(cols))
		for i := range dest {
			dest[i] = new(any)
		}
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			cells := make([]string, len(cols))
			for i, d := range dest {
				v := *(d.(*any))
				if v == nil {
					cells[i] = "NULL"
				} else {
					cells[i] = fmt.Sprintf("%v", v)
				}
			}
			fmt.Println(strings.Join(cells, "\t"))
		}
		return rows.Err()
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().IntVarP(&sampleLimit, "limit", "n", 10, "rows to print")
}
