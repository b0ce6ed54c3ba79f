package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zimmed/zimmed-core/internal/config"
	"github.com/zimmed/zimmed-core/internal/log"
)

// localConfigPath is checked before the user config directory.
const localConfigPath = ".zcore/config.yaml"

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "zcore",
	Short: "Inspect and exercise rule-bound data models",
	Long: `zcore manages models derived from controller attributes by declarative
rules. Models are persisted to a local sqlite database.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .zcore/config.yaml, then ~/.config/zcore/config.yaml)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "",
		"directory holding zcore.db (default: ./.zcore)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"write debug logs (also ZCORE_DEBUG=1)")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("engine.max_dispatch_depth", defaults.Engine.MaxDispatchDepth)
	viper.SetDefault("cache.expiration", defaults.Cache.Expiration)
	viper.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	viper.SetDefault("store.id_strategy", defaults.Store.IDStrategy)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("watch.autosave_debounce", defaults.Watch.AutosaveDebounce)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(localConfigPath); err == nil {
		viper.SetConfigFile(localConfigPath)
	} else if dir := config.DefaultConfigDir(); dir != "" {
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// A missing config file means defaults.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "zcore: reading config: %v\n", err)
		}
	}

	cfg = defaults
	_ = viper.Unmarshal(&cfg)
}

// setup validates the loaded config and starts logging.
func setup(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if !debugFlag && os.Getenv("ZCORE_DEBUG") == "" && !cfg.Log.Enabled {
		return nil
	}
	logPath := cfg.Log.Path
	if env := os.Getenv("ZCORE_LOG"); env != "" {
		logPath = env
	}
	if logPath == "" {
		logPath = filepath.Join(os.TempDir(), "zcore-debug.log")
	}
	level := log.LevelDebug
	if !debugFlag {
		level, _ = log.ParseLevel(cfg.Log.Level)
	}
	cats, _ := log.ParseCategories(cfg.Log.Categories)
	cleanup, err := log.Init(logPath, log.WithLevel(level), log.WithCategories(cats...))
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	cobra.OnFinalize(cleanup)

	log.Info(log.CatConfig, "zcore starting", "command", cmd.CommandPath(), "config", viper.ConfigFileUsed(), "logPath", logPath)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
