package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	Version = "0.4.2"
)

func showBanner() {
	greenColor := color.New(color.FgGreen, color.Bold)

	banner := []string{
		"╔══════════════════════════════════════════════════╗",
		"║  ███████╗ █████╗ ██████╗ ██████╗ ██╗ ██████╗ █████╗  ║",
		"║  ██╔════╝██╔══██╗██╔══██╗██╔══██╗██║██╔════╝██╔══██╗ ║",
		"║  █████╗  ███████║██████╔╝██████╔╝██║██║     ███████║ ║",
		"║  ██╔══╝  ██╔══██║██╔══██╗██╔══██╗██║██║     ██╔══██║ ║",
		"║  ██║     ██║  ██║██████╔╝██║  ██║██║╚██████╗██║  ██║ ║",
		"║  ╚═╝     ╚═╝  ╚═╝╚═════╝ ╚═╝  ╚═╝╚═╝ ╚═════╝╚═╝  ╚═╝ ║",
		"║                                                      ║",
		"║      🏭 Synthetic Data Fabrication Toolkit 🏭        ║",
		"╚══════════════════════════════════════════════════╝",
	}

	for _, line := range banner {
		greenColor.Println(line)
	}

	fmt.Print("                  ")
	color.New(color.FgCyan, color.Bold).Print("Version: ")
	color.New(color.FgYellow, color.Bold).Printf("%s\n", Version)
}

var rootCmd = &cobra.Command{
	Use:   "fabrica",
	Short: "Fabricate and degrade synthetic table data across SQL engines",
	Long: `
Fabrica fabricates synthetic table data from a declarative scenario and then
degrades it in controlled ways to exercise data-quality tooling.

Everything is generated inside the target database with set-based SQL; no
rows travel through the client.

Supported Engines:
- PostgreSQL (row store)
- ClickHouse (columnar)
- DuckDB (embedded)
- Trino on Iceberg (federated)`,

	Run: func(cmd *cobra.Command, args []string) {
		showVersion, _ := cmd.Flags().GetBool("version")
		if showVersion {
			fmt.Printf("fabrica CLI version %s\n", Version)
			os.Exit(0)
		}

		if len(args) == 0 {
			showBanner()
			fmt.Println()
			cmd.Help()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./fabrica.config.json)")
	rootCmd.Flags().BoolP("version", "v", false, "Show CLI version")
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env")
		godotenv.Load(".env.local")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("json")
		viper.SetConfigName("fabrica.config")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		// fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
