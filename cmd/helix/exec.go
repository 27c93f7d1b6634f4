package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixdb/helix-core/pkg/codec"
)

var execCmd = &cobra.Command{
	Use:   "exec <file.hql> <query-name> [params.json]",
	Short: "Compile a query file and execute one named query from it",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("helix: read %s: %w", args[0], err)
	}
	if _, err := db.reqs.Compile(string(source)); err != nil {
		return err
	}

	// The registry's wire format is msgpack (pkg/codec.Msgpack), but a
	// human typing parameters on a command line reaches for JSON; this
	// re-encode step is purely that ergonomic bridge, not a second
	// structured-value codec for the engine itself.
	named := map[string]interface{}{}
	if len(args) == 3 {
		raw, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("helix: read %s: %w", args[2], err)
		}
		if err := json.Unmarshal(raw, &named); err != nil {
			return fmt.Errorf("helix: parse %s: %w", args[2], err)
		}
	}
	params, err := codec.Msgpack(named)
	if err != nil {
		return err
	}

	out, err := db.reqs.Execute(cmd.Context(), args[1], params)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := codec.MsgpackDecode(out, &result); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
