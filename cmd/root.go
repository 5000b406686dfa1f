package cmd

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "easyterm",
	Short: "Real-time port terminal simulator with a traffic dispatcher",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(viper.GetString("log"))
	},
}

// setupLogging applies the --log level. An unknown level is fatal.
func setupLogging(name string) {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", name)
	}
	logrus.SetLevel(level)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("EASYTERM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// init sets up persistent flags and subcommands
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().String("defaults", "defaults.yaml", "Path to the service-time and dispatcher defaults")
	rootCmd.PersistentFlags().String("addr", "", "Dispatcher address (overrides defaults.yaml)")
	_ = viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))
	_ = viper.BindPFlag("defaults", rootCmd.PersistentFlags().Lookup("defaults"))
	_ = viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr"))

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDispatchCmd())
	rootCmd.AddCommand(newRouteCmd())
}
