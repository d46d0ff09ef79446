package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/omniwire/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	// ConfigFile is the settings file. Empty searches for omniwire.yaml in
	// the working directory.
	ConfigFile string

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// settingFlags are the persistent flags bound to viper settings keys.
var settingFlags = []string{config.KeyStore, config.KeyOut, config.KeyTimeout, config.KeyFixture}

// NewRootCommand creates the root command for the omniwire CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "omniwire",
		Short: "omniwire - declarative cross-chain wiring",
		Long: `Reconcile a cross-chain messaging deployment with its declared configuration.

omniwire reads what the local ledger and every EVM peer currently hold,
plans the writes that would make them match the declaration, and executes
them one lane per signing authority.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "settings file (default ./omniwire.yaml)")
	pf.String(config.KeyStore, "omniwire.db", "run history database")
	pf.String(config.KeyOut, ".", "directory for audit CSV exports")
	pf.Duration(config.KeyTimeout, 60*time.Second, "bound on each ledger read and write")
	pf.String(config.KeyFixture, "", "serve the local ledger from this memledger fixture")

	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewWireCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewPacketCommand(opts))
	cmd.AddCommand(NewAdapterParamsCommand(opts))
	cmd.AddCommand(NewLimiterCommand(opts))
	cmd.AddCommand(NewFeeCommand(opts))

	return cmd
}

// Logger returns the logger configured by the root command, or one that
// discards everything when a subcommand runs on its own.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

// Settings reads process settings. Flags bound here take precedence over
// OMNIWIRE_* variables and the settings file.
func (o *RootOptions) Settings(cmd *cobra.Command) (config.Settings, error) {
	v := config.NewViper(o.ConfigFile)
	if err := bindSettingFlags(v, cmd); err != nil {
		return config.Settings{}, err
	}
	s, err := config.ReadSettings(v)
	if err != nil {
		return config.Settings{}, WrapExitError(ExitCommandError, "settings", err)
	}
	return s, nil
}

func bindSettingFlags(v *viper.Viper, cmd *cobra.Command) error {
	for _, key := range settingFlags {
		flag := lookupFlag(cmd, key)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// lookupFlag finds name among the command's own and inherited flags.
func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.Root().PersistentFlags().Lookup(name)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
