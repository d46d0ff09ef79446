package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/testutil"
)

// sessionDir writes a freshly seeded local ledger fixture for the test
// declaration and returns the flags that point a command at it.
func sessionDir(t *testing.T) (dir string, flags []string) {
	t.Helper()
	decl, err := config.Load(declarationFile)
	require.NoError(t, err)
	cfg, err := config.NewBuilder(decl).Build(nil)
	require.NoError(t, err)

	data, err := yaml.Marshal(testutil.SeedFixture(cfg, cfg.Oracle.Threshold))
	require.NoError(t, err)

	dir = t.TempDir()
	fixture := filepath.Join(dir, "local.yaml")
	require.NoError(t, os.WriteFile(fixture, data, 0o644))

	return dir, []string{
		"--fixture", fixture,
		"--store", filepath.Join(dir, "history.db"),
		"--out", filepath.Join(dir, "audit"),
	}
}

func withFlags(flags []string, args ...string) []string {
	return append(append([]string{}, args...), flags...)
}

func TestPlanCommand(t *testing.T) {
	dir, flags := sessionDir(t)

	out, err := execRoot(t, withFlags(flags, "plan", declarationFile)...)
	require.NoError(t, err)
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "audit: "+filepath.Join(dir, "audit"))
	assert.Contains(t, out, "run: ")

	out, err = execRoot(t, withFlags(flags, "--format", "json", "plan", declarationFile)...)
	require.NoError(t, err)
	var res PlanResult
	jsonData(t, out, &res)
	assert.Equal(t, 20, res.Tasks)
	assert.Equal(t, 17, res.Changes)
	assert.Empty(t, res.Excluded)

	audit, err := os.ReadFile(res.Audit)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(audit)), "\n")
	assert.Len(t, lines, res.Tasks+1, "one row per task after the header")
}

func TestWireCommandLifecycle(t *testing.T) {
	_, flags := sessionDir(t)

	// A dry run leaves the fixture untouched.
	out, err := execRoot(t, withFlags(flags, "wire", declarationFile, "--dry-run")...)
	require.NoError(t, err)
	assert.Contains(t, out, "dry run, nothing submitted (0 applied, 0 failed lanes)")
	assert.NotContains(t, out, "fully applied")

	out, err = execRoot(t, withFlags(flags, "--format", "json", "plan", declarationFile)...)
	require.NoError(t, err)
	var planned PlanResult
	jsonData(t, out, &planned)
	assert.Equal(t, 17, planned.Changes)

	out, err = execRoot(t, withFlags(flags, "wire", declarationFile, "--yes")...)
	require.NoError(t, err)
	assert.Contains(t, out, "fully applied (17 applied, 0 failed lanes)")

	out, err = execRoot(t, withFlags(flags, "--format", "json", "wire", declarationFile)...)
	require.NoError(t, err)
	var again WireResult
	jsonData(t, out, &again)
	assert.Equal(t, "no changes needed", again.Outcome)
	assert.Zero(t, again.Changes)

	out, err = execRoot(t, withFlags(flags, "--format", "json", "history")...)
	require.NoError(t, err)
	var runs []RunView
	jsonData(t, out, &runs)
	require.Len(t, runs, 4)
	assert.Equal(t, "dry run, nothing submitted", runs[3].Outcome)
	assert.Equal(t, "no changes needed", runs[0].Outcome)
	assert.Equal(t, "fully applied", runs[1].Outcome)
	assert.Equal(t, 17, runs[1].Changes)
	assert.Equal(t, "planned", runs[2].Outcome)
	assert.Equal(t, "plan", runs[2].Mode)

	out, err = execRoot(t, withFlags(flags, "history", "show", runs[1].ID)...)
	require.NoError(t, err)
	assert.Contains(t, out, "17 applied, 0 failed, 0 skipped, 0 pending")
	assert.Contains(t, out, "✓ integrity: every task matches its id")

	out, err = execRoot(t, withFlags(flags, "history")...)
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].ID)
}

func TestWireCommandDeclined(t *testing.T) {
	_, flags := sessionDir(t)

	out, err := execRootIn(t, "n\n", withFlags(flags, "wire", declarationFile)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Apply 17 changes? [y/N]")
	assert.Contains(t, out, "Declined; nothing was submitted.")

	out, err = execRoot(t, withFlags(flags, "--format", "json", "history")...)
	require.NoError(t, err)
	var runs []RunView
	jsonData(t, out, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, "declined", runs[0].Outcome)
}

func TestHistoryEmptyAndUnknownRun(t *testing.T) {
	_, flags := sessionDir(t)

	out, err := execRoot(t, withFlags(flags, "history")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	out, err = execRoot(t, withFlags(flags, "history", "show", "missing")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E005")
}

func TestLimiterRemaining(t *testing.T) {
	_, flags := sessionDir(t)

	out, err := execRoot(t, withFlags(flags, "limiter", "remaining", declarationFile, "WETH")...)
	require.NoError(t, err)
	assert.Equal(t, "WETH: not limited\n", out)
}

func TestSessionErrors(t *testing.T) {
	dir, flags := sessionDir(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "no fixture",
			args: []string{"plan", declarationFile, "--store", filepath.Join(dir, "h.db")},
			want: "no local ledger",
		},
		{
			name: "missing fixture file",
			args: []string{"plan", declarationFile, "--fixture", filepath.Join(dir, "absent.yaml"), "--store", filepath.Join(dir, "h.db")},
			want: "local ledger",
		},
		{
			name: "chain id wider than 16 bits",
			args: withFlags(flags, "plan", declarationFile, "--chains", "65637"),
			want: "chain id 65637 out of range",
		},
		{
			name: "missing declaration",
			args: withFlags(flags, "wire", filepath.Join(dir, "absent.yaml"), "--yes"),
			want: "declaration not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execRoot(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestWireCommandJSONNeedsConfirmation(t *testing.T) {
	_, flags := sessionDir(t)

	out, err := execRootIn(t, "n\n", withFlags(flags, "--format", "json", "wire", declarationFile)...)
	require.NoError(t, err)
	var declined WireResult
	jsonData(t, out, &declined)
	assert.Equal(t, "declined", declined.Outcome)
	assert.Zero(t, declined.Applied)

	// Nothing was submitted, so every change is still owed.
	out, err = execRoot(t, withFlags(flags, "--format", "json", "plan", declarationFile)...)
	require.NoError(t, err)
	var planned PlanResult
	jsonData(t, out, &planned)
	assert.Equal(t, 17, planned.Changes)

	out, err = execRootIn(t, "y\n", withFlags(flags, "--format", "json", "wire", declarationFile)...)
	require.NoError(t, err)
	var applied WireResult
	jsonData(t, out, &applied)
	assert.Equal(t, "fully applied", applied.Outcome)
	assert.Equal(t, 17, applied.Applied)
}

func TestWireCommandJSONNonInteractive(t *testing.T) {
	_, flags := sessionDir(t)

	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err)
	defer stdin.Close()

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(stdin)
	cmd.SetArgs(withFlags(flags, "--format", "json", "wire", declarationFile))

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out.String(), `"status":"error"`)
}

func TestScopeOf(t *testing.T) {
	scope, err := scopeOf(nil)
	require.NoError(t, err)
	assert.Nil(t, scope)

	scope, err = scopeOf([]uint{101, 65535})
	require.NoError(t, err)
	assert.Equal(t, []chain.EndpointID{101, 65535}, scope)

	_, err = scopeOf([]uint{101, 65536})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
