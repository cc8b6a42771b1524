package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// newDLQCmd builds the `dlq` command group: list unresolved dead-letter
// items and mark one resolved (spec §6 operational triggers (iii)).
func newDLQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and resolve the dead-letter queue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List unresolved dead-letter entries",
		RunE:  runDLQList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a dead-letter entry resolved (does not delete it)",
		Args:  cobra.ExactArgs(1),
		RunE:  runDLQResolve,
	})
	return cmd
}

func runDLQList(cmd *cobra.Command, args []string) error {
	configPath, envPath := configFlags(cmd)
	a, err := bootstrap(configPath, envPath)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.dlq.Unresolved(cmd.Context())
	if err != nil {
		return fmt.Errorf("list dlq: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("no unresolved dead-letter entries")
		return nil
	}
	fmt.Printf("%-6s %-10s %-20s %-10s %s\n", "ID", "SYMBOL", "STAGE", "CREATED", "ERROR")
	for _, it := range items {
		fmt.Printf("%-6d %-10s %-20s %-10s %s\n", it.ID, it.Symbol, it.Stage, it.CreatedAt.Format("2006-01-02"), it.ErrorMessage)
	}
	return nil
}

func runDLQResolve(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", args[0], err)
	}

	configPath, envPath := configFlags(cmd)
	a, err := bootstrap(configPath, envPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.dlq.Resolve(cmd.Context(), id); err != nil {
		return fmt.Errorf("resolve dlq item %d: %w", id, err)
	}
	fmt.Printf("resolved dlq item %d\n", id)
	return nil
}
