// Command remat-probe configures a rematerializer from a file and fetches one
// row, printing it as JSON. It is meant for checking connectivity, column
// types and key binding against a live backing database.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/rematerializer/pkg/rematerializer"
)

var (
	configPath string
	schemaName string
	tableName  string
	pkCount    int
	timeout    time.Duration
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "remat-probe [pk...]",
	Short: "Fetch one row by primary key through a rematerializer",
	Long: `Loads a rematerializer configuration (YAML or JSON, or REMAT_* environment
variables when --config is empty), configures it and fetches the row whose
primary key matches the given values. Key values are parsed according to the
configured primary key column types.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (.yaml, .yml or .json)")
	rootCmd.Flags().StringVar(&schemaName, "schema", "", "Override the configured schema")
	rootCmd.Flags().StringVar(&tableName, "table", "", "Override the configured table")
	rootCmd.Flags().IntVar(&pkCount, "pk-count", 0, "Number of key values to bind (default: all given)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout for configure and fetch")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress component logs")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := rematerializer.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if schemaName != "" {
		cfg.Schema = schemaName
	}
	if tableName != "" {
		cfg.Table = tableName
	}

	columns, err := cfg.ColumnTypes()
	if err != nil {
		return fmt.Errorf("column types: %w", err)
	}
	key, err := parseKey(columns, args)
	if err != nil {
		return err
	}
	n := len(key)
	if pkCount > 0 {
		n = pkCount
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if quiet {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := rematerializer.Open(ctx, cfg, rematerializer.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer client.Close()

	if client.IsBroken() {
		logger.Printf("[PROBE] configure reported: %v (fetch will reconnect)", client.LastError())
	}
	logger.Printf("[PROBE] %s", client.StatementText())

	row, err := client.Fetch(ctx, key, n)
	if err != nil {
		return err
	}
	return renderRow(cmd.OutOrStdout(), columns, row)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
