package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/plan"
	"github.com/roach88/omniwire/internal/state"
	"github.com/roach88/omniwire/internal/testutil"
)

// ValidationError is one problem found in a declaration.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Remotes int               `json:"remotes"`
	Tasks   int               `json:"tasks"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <declaration>",
		Short: "Validate a declaration without touching any ledger",
		Long: `Validate a YAML or CUE declaration offline.

Builds the target configuration for every declared remote, then plans it
against an empty in-memory ledger. Every task whose call cannot be built
(an empty signer, an address of the wrong width) is reported.

Exit codes:
  0 - Declaration is valid
  1 - Declaration has errors
  2 - Command error (unreadable file, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(ctx context.Context, opts *RootOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	decl, err := loadDeclaration(path)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Err == nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, exitErr.Message, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeDeclaration, "load declaration", errors.Unwrap(err))
	}

	result, err := ValidateDeclaration(ctx, decl)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "validate", err)
	}
	formatter.VerboseLog("Planned %d task(s) over %d remote(s)", result.Tasks, result.Remotes)

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Declaration valid (%d remotes, %d tasks)\n", result.Remotes, result.Tasks)
	})
}

// ValidateDeclaration checks decl over its full scope. A declaration
// problem is reported in the result; err is reserved for failures of the
// check itself.
func ValidateDeclaration(ctx context.Context, decl config.Declaration) (ValidationResult, error) {
	cfg, err := config.NewBuilder(decl).Build(nil)
	if err != nil {
		return ValidationResult{
			Errors: []ValidationError{{Code: errorCode(err, ErrCodeDeclaration), Message: err.Error()}},
		}, nil
	}

	local, err := testutil.SeededLedger(cfg, cfg.Oracle.Threshold)
	if err != nil {
		return ValidationResult{}, err
	}
	snap, err := state.Read(ctx, cfg, state.Sources{Local: state.NewReader(local, cfg.Addresses)}, 1)
	if err != nil {
		return ValidationResult{}, err
	}
	res, err := plan.Build(cfg, snap)
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{Remotes: len(cfg.Remotes), Tasks: len(res.Tasks)}
	for _, e := range res.Excluded {
		result.Errors = append(result.Errors, ValidationError{
			Code:    errorCode(e.Err, ErrCodeDeclaration),
			Message: e.Error(),
		})
	}
	result.Valid = len(result.Errors) == 0
	return result, nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
