package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool
	Logger  = zap.NewNop()
)

var RootCmd = &cobra.Command{
	Use:   "db-migrate",
	Short: "Schema and data migration between SQLite and PostgreSQL",
	Long: `db-migrate introspects a source and a target database, reconciles the
target schema and copies rows across in batches, translating types between
SQLite and PostgreSQL on the way.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(viper.GetString("log.level"), verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		Logger = logger
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = Logger.Sync()
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-migrate.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	RootCmd.PersistentFlags().String("source-dsn", "", "source database DSN")
	RootCmd.PersistentFlags().String("source-dialect", "", "source dialect (sqlite or postgres)")
	RootCmd.PersistentFlags().String("target-dsn", "", "target database DSN")
	RootCmd.PersistentFlags().String("target-dialect", "", "target dialect (sqlite or postgres)")

	viper.BindPFlag("source.dsn", RootCmd.PersistentFlags().Lookup("source-dsn"))
	viper.BindPFlag("source.dialect", RootCmd.PersistentFlags().Lookup("source-dialect"))
	viper.BindPFlag("target.dsn", RootCmd.PersistentFlags().Lookup("target-dsn"))
	viper.BindPFlag("target.dialect", RootCmd.PersistentFlags().Lookup("target-dialect"))

	viper.SetDefault("log.level", "info")
	viper.SetDefault("options.batch_size", 1000)
	viper.SetDefault("options.parallel_workers", 4)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// executable directory first, then the working directory
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		viper.AddConfigPath(".")

		viper.SetConfigName("db-migrate")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DB_MIGRATE")
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}
