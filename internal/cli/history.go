package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/omniwire/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// RunView is the JSON form of a recorded run.
type RunView struct {
	ID              string     `json:"id"`
	Seq             int64      `json:"seq"`
	Mode            string     `json:"mode"`
	Network         string     `json:"network"`
	DeclarationHash string     `json:"declaration_hash"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Outcome         string     `json:"outcome,omitempty"`
	Tasks           int        `json:"tasks"`
	Changes         int        `json:"changes"`
}

// TaskView is the JSON form of a recorded task.
type TaskView struct {
	Seq        int64  `json:"seq"`
	Authority  string `json:"authority"`
	Task       string `json:"task"`
	NeedChange bool   `json:"need_change"`
	Outcome    string `json:"outcome,omitempty"`
	Ref        string `json:"ref,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunDetail is the JSON payload of history show.
type RunDetail struct {
	Run      RunView    `json:"run"`
	Tasks    []TaskView `json:"tasks"`
	Applied  int        `json:"applied"`
	Failed   int        `json:"failed"`
	Skipped  int        `json:"skipped"`
	Pending  int        `json:"pending"`
	Complete bool       `json:"complete"`
	Verified bool       `json:"verified"`
}

// NewHistoryCommand creates the history command and its show subcommand.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded plan and wire runs",
		Long: `List the runs recorded in the run history, newest first.

A wire run with no finish time stopped before recording its outcome; use
"history show" to see which of its writes may still be owed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one run with every task and its outcome",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(rootOpts, args[0], cmd)
		},
	})

	return cmd
}

func openStore(opts *RootOptions, cmd *cobra.Command) (*store.Store, error) {
	settings, err := opts.Settings(cmd)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(settings.StorePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "run history", err)
	}
	return st, nil
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "open run history", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "list runs", err)
	}

	views := make([]RunView, len(runs))
	for i, r := range runs {
		views[i] = runView(r)
	}
	return formatter.Success(views, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return
		}
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Seq", "Run", "Mode", "Network", "Started", "Outcome", "Tasks", "Changes"})
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		for _, r := range runs {
			table.Append([]string{
				strconv.FormatInt(r.Seq, 10),
				r.ID,
				string(r.Mode),
				r.Network,
				r.StartedAt.Format(time.RFC3339),
				runOutcome(r),
				strconv.Itoa(r.TaskCount),
				strconv.Itoa(r.ChangeCount),
			})
		}
		table.Render()
	})
}

func runHistoryShow(opts *RootOptions, runID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "open run history", err)
	}
	defer st.Close()

	rs, err := st.GetRunState(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run %s", runID), err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "load run", err)
	}
	verifyErr := st.VerifyRun(ctx, runID)

	detail := RunDetail{
		Run:      runView(rs.Run),
		Tasks:    make([]TaskView, len(rs.Tasks)),
		Applied:  rs.Applied,
		Failed:   rs.Failed,
		Skipped:  rs.Skipped,
		Pending:  rs.Pending,
		Complete: rs.IsComplete,
		Verified: verifyErr == nil,
	}
	for i, t := range rs.Tasks {
		detail.Tasks[i] = TaskView{
			Seq:        t.Seq,
			Authority:  string(t.Authority),
			Task:       t.Label(),
			NeedChange: t.NeedChange,
			Outcome:    string(t.Outcome),
			Ref:        t.Ref,
			Error:      t.Error,
		}
	}

	return formatter.Success(detail, func(w io.Writer) {
		r := rs.Run
		fmt.Fprintf(w, "run %s (%s on %s): %s\n", r.ID, r.Mode, r.Network, runOutcome(r))
		fmt.Fprintf(w, "declaration %s\n", r.DeclarationHash)

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Seq", "Authority", "Task", "Change", "Outcome", "Ref"})
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		for _, t := range detail.Tasks {
			change := ""
			if t.NeedChange {
				change = "yes"
			}
			table.Append([]string{strconv.FormatInt(t.Seq, 10), t.Authority, t.Task, change, t.Outcome, t.Ref})
		}
		table.Render()

		fmt.Fprintf(w, "%d applied, %d failed, %d skipped, %d pending\n", rs.Applied, rs.Failed, rs.Skipped, rs.Pending)
		for _, t := range detail.Tasks {
			if t.Error != "" {
				fmt.Fprintf(w, "  %s %s: %s\n", t.Authority, t.Task, t.Error)
			}
		}
		if verifyErr != nil {
			fmt.Fprintf(w, "✗ integrity: %v\n", verifyErr)
		} else {
			fmt.Fprintln(w, "✓ integrity: every task matches its id")
		}
	})
}

func runView(r store.Run) RunView {
	return RunView{
		ID:              r.ID,
		Seq:             r.Seq,
		Mode:            string(r.Mode),
		Network:         r.Network,
		DeclarationHash: r.DeclarationHash,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		Outcome:         r.Outcome,
		Tasks:           r.TaskCount,
		Changes:         r.ChangeCount,
	}
}

// runOutcome shows an unfinished run as interrupted.
func runOutcome(r store.Run) string {
	if r.FinishedAt == nil {
		return "interrupted"
	}
	return r.Outcome
}
