package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a data directory and print its schema summary",
	RunE:  runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	vectors := db.reg.VectorLabels()
	sort.Strings(vectors)

	fmt.Printf("schema version: %d\n", db.reg.Version())
	fmt.Printf("vector labels:  %v\n", vectors)

	liveness := db.maint.CheckLiveness()
	fmt.Printf("liveness:       healthy=%v (%s)\n", liveness.Healthy, liveness.Duration)
	return nil
}
