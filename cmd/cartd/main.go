// Command cartd runs the cart state service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"harvestcart/internal/buildinfo"
	"harvestcart/internal/config"
	"harvestcart/internal/logger"
)

var (
	configPath string
	port       string
	storeKind  string
	backendURL string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "cartd",
	Short:         "Cart state service with server-authoritative stock checks",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "Print the effective data domain to consistency policy table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg, err := cfg.Registry()
		if err != nil {
			return err
		}
		table := reg.Table()
		for _, dt := range reg.DataTypes() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", dt, table[dt])
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := buildinfo.Info()
		fmt.Fprintf(cmd.OutOrStdout(), "cartd %s (commit %s, built %s, %s)\n", info["version"], info["commit"], info["builtAt"], info["go"])
	},
}

// loadConfig reads file and environment, then applies flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CARTD_CONFIG")
	}
	cfg, err := config.Load(path, nil)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("store") {
		cfg.StoreBackend = storeKind
	}
	if flags.Changed("backend-url") {
		cfg.BackendURL = backendURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $CARTD_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().StringVarP(&port, "port", "p", "8080", "HTTP listen port")
	rootCmd.Flags().StringVar(&storeKind, "store", "", "State store backend: memory, sqlite, postgres, redis")
	rootCmd.Flags().StringVar(&backendURL, "backend-url", "", "Storefront server base URL")

	rootCmd.AddCommand(strategiesCmd, versionCmd, watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Errorf("cartd: %v", err)
		stop()
		os.Exit(1)
	}
}
