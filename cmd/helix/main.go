// Command helix is a thin developer CLI over the core engine: open a
// data directory, compile HQL source against its schema, and execute a
// named query. It is deliberately not the product gateway — no network
// server, no cluster membership, no installer — grounded on the
// teacher's cmd/warren root-command wiring (persistent flags,
// cobra.OnInitialize for logging, one subcommand per file) but scoped
// down to exercising the core directly instead of a running cluster.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixdb/helix-core/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "helix",
	Short: "Direct access to a HelixDB data directory for local inspection",
	Long: `helix opens a HelixDB data directory, compiles HQL source, and executes
named queries against it — a debugging entry point, not a server.`,
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "./helix-data", "database data directory")
	rootCmd.PersistentFlags().String("backend", "bolt", "storage backend (bolt, pebble)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(execCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}
