package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/appid"
	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/observability"
)

var (
	cfgFile string
	verbose bool

	appIdentity *appidentity.Identity

	// Set by main from -ldflags.
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity is nil until the identity has been loaded.
func GetAppIdentity() *appidentity.Identity {
	return appIdentity
}

var rootCmd = &cobra.Command{
	Use:   filepath.Base(os.Args[0]),
	Short: "Ad campaign A/B verdicts with rate-limited platform calls",
	Long: `Evaluate ad variant A/B tests for agency clients.

Platform and model calls share one rate-limited retry executor.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep config loading from printing metrics to stdout; serve installs a
	// real telemetry system later.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	// Help output runs before initConfig, so brand it now.
	if identity, err := appid.Get(context.Background()); err == nil {
		applyIdentity(identity)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults to app identity config path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// applyIdentity brands the root command from the app identity.
func applyIdentity(identity *appidentity.Identity) {
	if identity == nil {
		return
	}
	appIdentity = identity

	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
		rootCmd.Long = fmt.Sprintf("%s - %s\n\nUse the subcommands to perform specific operations.", identity.BinaryName, identity.Description)
	}
	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}
}

func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity from .fulmen/app.yaml", err)
	}
	applyIdentity(identity)

	observability.InitCLILogger(appIdentity.BinaryName, verbose)
	logger := observability.CLILogger

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		addConfigSearchPaths(logger)
	}

	viper.SetEnvPrefix(appIdentity.EnvPrefix)
	viper.AutomaticEnv()

	// A missing config file is fine; defaults and env cover everything.
	err = viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		logger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
	case errors.As(err, &notFound):
		logger.Debug("No config file found, using defaults and environment variables")
	default:
		logger.Warn("Error reading config file", zap.Error(err))
	}

	setDefaults()
}

// addConfigSearchPaths looks in the XDG config dir (plus the binary-named
// legacy dir), falling back to ~/.<config name>, and always ./config.
func addConfigSearchPaths(logger *logging.Logger) {
	configName := appIdentity.ConfigName
	dir := gfconfig.GetAppConfigDir(configName)

	if dir == "" {
		logger.Warn("Could not resolve XDG config directory, falling back to home directory")
		home, err := os.UserHomeDir()
		if err != nil {
			ExitWithCode(logger, foundry.ExitFileNotFound, "Could not find home directory", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName("." + configName)
	} else {
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		if binary := appIdentity.BinaryName; binary != "" && binary != configName {
			if legacy := gfconfig.GetAppConfigDir(binary); legacy != "" {
				viper.AddConfigPath(legacy)
			}
		}
	}

	viper.AddConfigPath("./config")
	viper.SetConfigType("yaml")
}

// viperDefaults mirrors config/adpilot/v0/adpilot-defaults.yaml for the
// keys commands read straight from viper.
var viperDefaults = map[string]any{
	"server.host":             "localhost",
	"server.port":             8080,
	"server.read_timeout":     "30s",
	"server.write_timeout":    "30s",
	"server.idle_timeout":     "120s",
	"server.shutdown_timeout": "10s",

	"logging.level":   "info",
	"logging.profile": "structured",

	"store.driver":     "libsql",
	"store.url":        "",
	"store.auth_token": "",

	"executor.default_deadline": "90s",
	"executor.max_retries":      3,
	"executor.base_delay":       "300ms",
	"executor.max_delay":        "10s",
	"executor.safety_margin":    1.0,

	"ailink.provider": "anthropic",
	"ailink.model":    "claude-sonnet-4-5",

	"metrics.enabled":     true,
	"metrics.port":        9090,
	"health.enabled":      true,
	"debug.enabled":       false,
	"debug.pprof_enabled": false,
}

func setDefaults() {
	for key, value := range viperDefaults {
		viper.SetDefault(key, value)
	}
	viper.SetDefault("store.path", config.DefaultStorePath())
}
