package cli

import (
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	appVersion string // set in Execute, reported by the MCP server
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "forge",
		Short: "Reflect a database schema into a typed model",
		Long: `crud-forge reflects the tables, views, functions and procedures of a database
into a typed schema model.

It resolves every column and parameter type, samples JSON columns to describe
their structure, derives the payload shapes an API would accept and return,
and publishes the result as an OpenAPI contract or through an MCP server for
AI agents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./forge.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	viper.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newRoutinesCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newDiffCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("forge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.forge")
	}

	viper.SetEnvPrefix("FORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
