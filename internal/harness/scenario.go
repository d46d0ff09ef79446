package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/ledger/memledger"
)

// Scenario defines one wiring run to execute and check.
type Scenario struct {
	// Name identifies the scenario and its golden file. Defaults to the
	// file name without extension.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID fixes the run id. If empty, testutil's default is used.
	RunID string `yaml:"run_id,omitempty"`

	// Seed is the state the protocol modules publish at init.
	Seed Seed `yaml:"seed,omitempty"`

	// Declaration is the configuration the run converges on.
	Declaration config.Declaration `yaml:"declaration"`

	// Scope limits the run to these remote chain ids. Empty means all.
	Scope []uint16 `yaml:"scope,omitempty"`

	// Fixture is ledger state applied on top of the seed, e.g. values a
	// previous run already wrote.
	Fixture memledger.Fixture `yaml:"fixture,omitempty"`

	// Failures are writes the ledger rejects.
	Failures []Failure `yaml:"failures,omitempty"`

	// DryRun walks the plan without submitting.
	DryRun bool `yaml:"dry_run,omitempty"`

	Expect Expect `yaml:"expect,omitempty"`

	// Assertions check individual tasks and calls.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Seed configures the init state. Threshold defaults to 1.
type Seed struct {
	Threshold uint64 `yaml:"threshold,omitempty"`
}

func (s Seed) threshold() uint64 {
	if s.Threshold == 0 {
		return 1
	}
	return s.Threshold
}

// Failure makes the ledger reject every call to Module::Function. Module is
// the short module name, e.g. uln_signer.
type Failure struct {
	Module   string `yaml:"module"`
	Function string `yaml:"function"`
	Message  string `yaml:"message,omitempty"`
}

// Expect holds run-level expectations. Nil fields are not checked.
type Expect struct {
	// Outcome is the report outcome, e.g. "fully applied".
	Outcome  string `yaml:"outcome,omitempty"`
	Changes  *int   `yaml:"changes,omitempty"`
	Excluded *int   `yaml:"excluded,omitempty"`
	Applied  *int   `yaml:"applied,omitempty"`
	// FailedLanes lists the failed authorities in lane order. Nil means
	// not checked; an empty list means no lane may fail.
	FailedLanes []string `yaml:"failed_lanes,omitempty"`
	// Replan is the number of changes a second plan still finds.
	Replan *int `yaml:"replan,omitempty"`
}

// Assertion checks one task or call.
type Assertion struct {
	// Type is one of task_outcome, task_order, call_count, lane_failed.
	Type string `yaml:"type"`

	// Task is a task label such as relayer-fee@10121 (task_outcome).
	Task string `yaml:"task,omitempty"`

	// Authority narrows Task to one lane (task_outcome) or names the
	// lane (lane_failed).
	Authority string `yaml:"authority,omitempty"`

	// Outcome is the expected task status (task_outcome).
	Outcome string `yaml:"outcome,omitempty"`

	// Tasks are labels in expected plan order (task_order).
	Tasks []string `yaml:"tasks,omitempty"`

	// Module and Function name the entry point (call_count).
	Module   string `yaml:"module,omitempty"`
	Function string `yaml:"function,omitempty"`
	Count    int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTaskOutcome = "task_outcome"
	AssertTaskOrder   = "task_order"
	AssertCallCount   = "call_count"
	AssertLaneFailed  = "lane_failed"
)

// Task statuses beyond engine outcomes.
const (
	StatusUnchanged = "unchanged"
	StatusPending   = "pending"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// ParseScenario parses scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func (s *Scenario) scope() []chain.EndpointID {
	if len(s.Scope) == 0 {
		return nil
	}
	out := make([]chain.EndpointID, len(s.Scope))
	for i, id := range s.Scope {
		out[i] = chain.EndpointID(id)
	}
	return out
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Declaration.Stage == "" {
		return fmt.Errorf("declaration.stage is required")
	}

	for i, f := range s.Failures {
		if f.Module == "" || f.Function == "" {
			return fmt.Errorf("failures[%d]: module and function are required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTaskOutcome:
		if a.Task == "" || a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: task and outcome are required for task_outcome", index)
		}
	case AssertTaskOrder:
		if len(a.Tasks) < 2 {
			return fmt.Errorf("assertions[%d]: task_order needs at least two tasks", index)
		}
	case AssertCallCount:
		if a.Module == "" || a.Function == "" {
			return fmt.Errorf("assertions[%d]: module and function are required for call_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
	case AssertLaneFailed:
		if a.Authority == "" {
			return fmt.Errorf("assertions[%d]: authority is required for lane_failed", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
