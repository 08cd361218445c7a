package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmingolla/cognit-optimizer/internal/config"
)

var (
	cfgFile string
	cfg     config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cognit-optimizer",
	Short: "Carbon-aware device to cluster assignment optimizer",
	Long: `Cognit Optimizer assigns edge devices to serverless runtime clusters so
that total carbon emissions are minimized.

It derives per-cluster energy consumption curves from infrastructure
snapshots, builds a mixed-integer assignment model, and solves it with an
external MIP solver. Each device ends up on exactly one cluster from its
feasible set, and each cluster gets the VM count needed to host its share.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: cognit.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")

	// Global flags that map to config
	rootCmd.PersistentFlags().String("snapshot", "", "path to infrastructure snapshot JSON")
	rootCmd.PersistentFlags().String("devices", "", "path to device records JSON")
	rootCmd.PersistentFlags().String("carbon-source", "", "carbon intensity source: attribute, static, prometheus")
	rootCmd.PersistentFlags().String("prometheus-url", "", "Prometheus endpoint URL")
	rootCmd.PersistentFlags().String("solver", "", "MIP solver backend")

	_ = viper.BindPFlag("snapshot.path", rootCmd.PersistentFlags().Lookup("snapshot"))
	_ = viper.BindPFlag("devices.path", rootCmd.PersistentFlags().Lookup("devices"))
	_ = viper.BindPFlag("carbon.source", rootCmd.PersistentFlags().Lookup("carbon-source"))
	_ = viper.BindPFlag("carbon.url", rootCmd.PersistentFlags().Lookup("prometheus-url"))
	_ = viper.BindPFlag("solver.backend", rootCmd.PersistentFlags().Lookup("solver"))
}

func loadConfig() error {
	// Start with defaults
	cfg = config.Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("cognit")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.cognit")
	}

	// Environment variable overrides
	viper.SetEnvPrefix("COGNIT")
	viper.AutomaticEnv()

	// Read config file (not an error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	return cfg.Validate()
}
