package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/report"
	"github.com/roach88/omniwire/internal/store"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Chains []uint // remote lookup ids in scope; empty means all declared
}

// PlanResult is the JSON payload of plan.
type PlanResult struct {
	RunID    string   `json:"run_id"`
	Audit    string   `json:"audit"`
	Tasks    int      `json:"tasks"`
	Changes  int      `json:"changes"`
	Excluded []string `json:"excluded,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <declaration>",
		Short: "Show the writes that would reconcile the ledgers",
		Long: `Read the current ledger state and plan the writes that would make it
match the declaration. Nothing is submitted.

Every comparison is exported to an audit CSV in --out, whether or not it
needs a change. The run is recorded in the history as a plan.

Examples:
  omniwire plan deploy.yaml --fixture local.yaml
  omniwire plan deploy.cue --chains 101,110 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().UintSliceVar(&opts.Chains, "chains", nil, "remote chain lookup ids in scope (default all declared)")

	return cmd
}

func runPlan(opts *PlanOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := openSession(opts.RootOptions, cmd, path, opts.Chains)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDeclaration, "open", err)
	}
	defer s.Close()

	res, err := s.plan(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLedger, "plan", err)
	}

	runID := engine.UUIDv7Generator{}.Generate()
	auditPath, err := report.ExportAudit(s.settings.OutDir, runID, res.Tasks)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "export audit", err)
	}
	if err := s.begin(ctx, runID, store.ModePlan, res.Tasks); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "record plan", err)
	}
	if err := s.finish(ctx, runID, outcomePlanned); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "record plan", err)
	}

	result := PlanResult{RunID: runID, Audit: auditPath, Tasks: len(res.Tasks), Changes: res.Changes()}
	for _, e := range res.Excluded {
		result.Excluded = append(result.Excluded, e.Error())
	}
	return formatter.Success(result, func(w io.Writer) {
		report.WritePlanSummary(w, res)
		fmt.Fprintf(w, "audit: %s\n", auditPath)
		fmt.Fprintf(w, "run: %s\n", runID)
	})
}
