package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// gateResultRow is one workflow_gate_results row, scanned directly
// since GateAuditRepo only exposes Record (write path) — this command
// reads the audit trail it leaves behind for diagnosis.
type gateResultRow struct {
	Stage      string `db:"stage"`
	Symbol     string `db:"symbol"`
	GateName   string `db:"gate_name"`
	Passed     bool   `db:"passed"`
	Reason     string `db:"reason"`
	Action     string `db:"action"`
	RecordedAt string `db:"recorded_at"`
}

// newGatesCmd builds the `gates explain` diagnostic command: the
// recorded gate audit trail for one workflow, optionally filtered to a
// single symbol.
func newGatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gates",
		Short: "Inspect recorded gate evaluations",
	}
	explainCmd := &cobra.Command{
		Use:   "explain <workflow-id>",
		Short: "Show every gate result recorded for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE:  runGatesExplain,
	}
	explainCmd.Flags().String("symbol", "", "restrict output to one symbol")
	cmd.AddCommand(explainCmd)
	return cmd
}

func runGatesExplain(cmd *cobra.Command, args []string) error {
	workflowID := args[0]
	symbol, _ := cmd.Flags().GetString("symbol")

	configPath, envPath := configFlags(cmd)
	a, err := bootstrap(configPath, envPath)
	if err != nil {
		return err
	}
	defer a.Close()

	query := `SELECT stage, symbol, gate_name, passed, reason, action, recorded_at
		FROM workflow_gate_results WHERE workflow_id = $1`
	queryArgs := []any{workflowID}
	if symbol != "" {
		query += " AND symbol = $2"
		queryArgs = append(queryArgs, symbol)
	}
	query += " ORDER BY recorded_at"

	var rows []gateResultRow
	if err := a.db.SelectContext(cmd.Context(), &rows, query, queryArgs...); err != nil {
		return fmt.Errorf("query gate results: %w", err)
	}
	if len(rows) == 0 {
		fmt.Println("no gate results recorded for this workflow")
		return nil
	}

	fmt.Printf("%-22s %-8s %-20s %-7s %s\n", "STAGE", "SYMBOL", "GATE", "PASSED", "REASON / ACTION")
	for _, r := range rows {
		detail := r.Reason
		if r.Action != "" {
			detail = fmt.Sprintf("%s (%s)", r.Reason, r.Action)
		}
		fmt.Printf("%-22s %-8s %-20s %-7t %s\n", r.Stage, r.Symbol, r.GateName, r.Passed, detail)
	}
	return nil
}
