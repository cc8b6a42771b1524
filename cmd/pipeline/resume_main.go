package main

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// resumeState mirrors the orchestrator's checkpoint blob; kept in sync
// with httpapi's copy since the checkpoint store treats the blob as
// opaque bytes and both surfaces decode the same wire shape.
type resumeState struct {
	Symbols []string `json:"symbols"`
}

func newResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <workflow-id>",
		Short: "Re-run a workflow over the symbols in its last checkpoint",
		Long:  "Loads the workflow's newest checkpoint and runs every stage again, starting from ingestion, for the symbols it lists. Stages that had completed before the checkpoint are not skipped.",
		Args:  cobra.ExactArgs(1),
		RunE:  runResume,
	}
	cmd.Flags().Bool("force", false, "overwrite stored bars even when the incoming rows are not newer")
	return cmd
}

func runResume(cmd *cobra.Command, args []string) error {
	workflowID := args[0]
	force, _ := cmd.Flags().GetBool("force")

	configPath, envPath := configFlags(cmd)
	a, err := bootstrap(configPath, envPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	wf, err := a.orchestratorRepo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}
	if wf == nil {
		return fmt.Errorf("no such workflow: %s", workflowID)
	}

	cp, err := a.checkpoints.Load(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil {
		return fmt.Errorf("workflow %s has no checkpoint to resume from", workflowID)
	}

	var state resumeState
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}
	if len(state.Symbols) == 0 {
		return fmt.Errorf("workflow %s has no symbols remaining to resume", workflowID)
	}

	log.Info().Str("workflow_id", workflowID).Strs("symbols", state.Symbols).Msg("resuming workflow")
	if err := a.orchestrator.ExecuteWorkflow(ctx, workflowID, wf.Type, state.Symbols, force); err != nil {
		return fmt.Errorf("execute workflow: %w", err)
	}
	log.Info().Str("workflow_id", workflowID).Msg("resumed workflow finished")
	return nil
}
