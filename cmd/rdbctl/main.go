package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/rdb/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rdbctl",
	Short: "rdbctl - inspect and operate an rdb database directory",
	Long: `rdbctl is the operator CLI for an rdb database: it opens a
database directory (acquiring its exclusive lock), replays the commit
log, and reports on tables, indexes, sequences and commit log segments.

It does not expose a network API - rdb has none (see Non-goals); every
rdbctl subcommand is a one-shot open-inspect-close.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(statCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
