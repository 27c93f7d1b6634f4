package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile <file.hql>",
	Short: "Compile HQL source against the data directory's schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func runCompile(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("helix: read %s: %w", args[0], err)
	}

	result, compileErr := db.reqs.Compile(string(source))
	for _, d := range result.Diagnostics {
		fmt.Fprintln(os.Stderr, d.String())
	}
	if compileErr != nil {
		return compileErr
	}

	fmt.Printf("registered queries: %v\n", result.Queries)
	return nil
}
