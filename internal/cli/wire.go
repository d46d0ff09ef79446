package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/report"
	"github.com/roach88/omniwire/internal/store"
)

// Outcomes recorded for wire runs that never reach the engine.
const (
	outcomeDeclined = "declined"
	outcomePlanned  = "planned"
)

// WireOptions holds flags for the wire command.
type WireOptions struct {
	*RootOptions
	Chains []uint
	Yes    bool // skip the confirmation prompt
	DryRun bool // run the lanes without submitting
}

// WireResult is the JSON payload of wire.
type WireResult struct {
	RunID       string   `json:"run_id"`
	Audit       string   `json:"audit"`
	Outcome     string   `json:"outcome"`
	Changes     int      `json:"changes"`
	Applied     int      `json:"applied"`
	FailedLanes []string `json:"failed_lanes,omitempty"`
}

// NewWireCommand creates the wire command.
func NewWireCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WireOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "wire <declaration>",
		Short: "Plan and apply the writes that reconcile the ledgers",
		Long: `Plan the writes that would make the ledgers match the declaration,
ask for confirmation, then submit them.

Writes run one lane per signing authority. Lanes run concurrently; inside a
lane writes run in order and the first failure skips the rest of that lane.
Other lanes are unaffected.

Exit codes:
  0 - Every lane finished, nothing needed a change, or the prompt was declined
  1 - One or more lanes failed
  2 - Command error (unreadable declaration, unreachable ledger, etc.)

Examples:
  omniwire wire deploy.yaml --fixture local.yaml
  omniwire wire deploy.yaml --chains 101 --yes
  omniwire wire deploy.yaml --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWire(opts, args[0], cmd)
		},
	}

	cmd.Flags().UintSliceVar(&opts.Chains, "chains", nil, "remote chain lookup ids in scope (default all declared)")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "apply without asking")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "run every lane without submitting")

	return cmd
}

func runWire(opts *WireOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	formatter := newFormatter(opts.RootOptions, out, cmd.ErrOrStderr())

	s, err := openSession(opts.RootOptions, cmd, path, opts.Chains)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDeclaration, "open", err)
	}
	defer s.Close()

	res, err := s.plan(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLedger, "plan", err)
	}
	if opts.Format != "json" {
		report.WritePlanSummary(out, res)
	}

	runID := engine.UUIDv7Generator{}.Generate()
	auditPath, err := report.ExportAudit(s.settings.OutDir, runID, res.Tasks)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "export audit", err)
	}
	formatter.VerboseLog("audit: %s", auditPath)
	if err := s.begin(ctx, runID, store.ModeWire, res.Tasks); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "record run", err)
	}

	result := WireResult{RunID: runID, Audit: auditPath, Changes: res.Changes()}
	if result.Changes == 0 {
		result.Outcome = string(report.OutcomeNoChanges)
		if err := s.finish(ctx, runID, result.Outcome); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "record run", err)
		}
		return formatter.Success(result, func(w io.Writer) {
			report.WriteRunSummary(w, nil)
		})
	}

	// JSON output keeps stdout for the result, so the prompt goes to stderr.
	prompt := out
	if opts.Format == "json" {
		prompt = cmd.ErrOrStderr()
	}
	question := fmt.Sprintf("Apply %d changes?", result.Changes)
	ok, err := report.Confirm(cmd.InOrStdin(), prompt, question, opts.Yes || opts.DryRun)
	if errors.Is(err, report.ErrNotInteractive) {
		_ = s.finish(ctx, runID, outcomePlanned)
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "confirm", err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "confirm", err)
	}
	if !ok {
		result.Outcome = outcomeDeclined
		if err := s.finish(ctx, runID, result.Outcome); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "record run", err)
		}
		return formatter.Success(result, func(w io.Writer) {
			fmt.Fprintln(w, "Declined; nothing was submitted.")
		})
	}

	engineOpts := []engine.Option{
		engine.WithTimeout(s.settings.Timeout),
		engine.WithDryRun(opts.DryRun),
		engine.WithLogger(s.logger),
	}
	if opts.Format != "json" {
		board := report.NewBoard(out, isTerminal(out))
		engineOpts = append(engineOpts, engine.WithObserver(board.Observe))
	}
	sum := engine.New(s.submitter, engineOpts...).Run(ctx, runID, res.Tasks)

	if err := s.store.RecordResults(ctx, runID, sum.Results); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "record results", err)
	}
	outcome := report.Classify(sum)
	if err := s.finish(ctx, runID, string(outcome)); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "record run", err)
	}
	if !opts.DryRun {
		if err := s.saveLocal(); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "save local ledger", err)
		}
	}

	result.Outcome = string(outcome)
	result.Applied = sum.Applied()
	for _, le := range engine.LaneErrors(sum.Err) {
		result.FailedLanes = append(result.FailedLanes, string(le.Authority))
	}
	if err := formatter.Success(result, func(w io.Writer) {
		report.WriteRunSummary(w, sum)
	}); err != nil {
		return err
	}
	if sum.Err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d lane(s) failed", len(result.FailedLanes)), sum.Err)
	}
	return nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
