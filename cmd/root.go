// Package cmd implements the relayfleet CLI: serving either tool
// surface over stdio, team/task management, and a read-only dashboard.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	viperlib "github.com/spf13/viper"

	"github.com/relayfleet/relayfleet/internal/config"
	"github.com/relayfleet/relayfleet/internal/log"
)

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	debugFlag bool

	viper = viperlib.NewWithOptions(viperlib.KeyDelimiter("::"))
)

var rootCmd = &cobra.Command{
	Use:     "relayfleet",
	Short:   "Coordinate a team of AI coding agents over a file-backed message bus",
	Long:    `relayfleet routes messages and tracks tasks between a team-lead session and external coding agents driven through tmux panes.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./.relayfleet/config.yaml if present, else ~/.config/relayfleet/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&cfg.Root, "root", "",
		"storage root (default: ~/.claude, override with RELAYFLEET_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also: RELAYFLEET_DEBUG=1)")

	_ = viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("root", defaults.Root)
	viper.SetDefault("poll_interval", defaults.PollInterval)
	viper.SetDefault("chunk_bytes", defaults.ChunkBytes)
	viper.SetDefault("chunk_delay", defaults.ChunkDelay)
	viper.SetDefault("settle_delay", defaults.SettleDelay)
	viper.SetDefault("use_tmux_windows", defaults.UseTmuxWindows)
	viper.SetDefault("backend_binary", defaults.BackendBinary)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(".relayfleet/config.yaml"); err == nil {
		viper.SetConfigFile(".relayfleet/config.yaml")
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(filepath.Join(home, ".config", "relayfleet"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viperlib.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn(log.CatConfig, "failed reading config file", "error", err.Error())
		}
	} else {
		log.Info(log.CatConfig, "config loaded", "path", viper.ConfigFileUsed())
	}

	_ = viper.Unmarshal(&cfg)
	if cfg.Root == "" {
		cfg.Root = defaults.Root
	}
}

func initDebugLogging(component string) func() {
	debug := os.Getenv("RELAYFLEET_DEBUG") != "" || debugFlag
	if !debug {
		return func() {}
	}
	logPath := os.Getenv("RELAYFLEET_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	cleanup, err := log.InitWithTeaLog(logPath, component)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logging: %v\n", err)
		return func() {}
	}
	log.Info(log.CatConfig, component+" starting", "debug", true, "logPath", logPath)
	return cleanup
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by `relayfleet --version`.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
