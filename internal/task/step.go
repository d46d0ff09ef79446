package task

import (
	"fmt"
	"slices"

	"github.com/roach88/omniwire/internal/fault"
)

// Step is one kind of configuration write.
type Step string

const (
	StepChainAddressSize     Step = "chain-address-size"
	StepDefaultAppConfig     Step = "default-app-config"
	StepDefaultSendMsglib    Step = "default-send-msglib"
	StepDefaultReceiveMsglib Step = "default-receive-msglib"
	StepDefaultExecutor      Step = "default-executor"
	StepDefaultAdapterParams Step = "default-adapter-params"
	StepRegisterExecutor     Step = "register-executor"
	StepExecutorFee          Step = "executor-fee"
	StepRegisterRelayer      Step = "register-relayer"
	StepRelayerFee           Step = "relayer-fee"
	StepOracleValidator      Step = "oracle-validator"
	StepOracleThreshold      Step = "oracle-threshold"
	StepOracleFee            Step = "oracle-fee"
	StepCustomAdapterParams  Step = "custom-adapter-params"
	StepRegisterCoin         Step = "register-coin"
	StepCoinLimiter          Step = "coin-limiter"
	StepRemoteCoin           Step = "remote-coin"
	StepRemoteBridge         Step = "remote-bridge"
	StepMinDstGas            Step = "min-dst-gas"

	StepEVMCustomAdapterParams Step = "evm-custom-adapter-params"
	StepEVMBridgeFee           Step = "evm-bridge-fee"
	StepEVMTrustedRemote       Step = "evm-trusted-remote"
	StepEVMMinDstGas           Step = "evm-min-dst-gas"
	StepEVMRegisterToken       Step = "evm-register-token"
	StepEVMWETH                Step = "evm-weth"
)

// Graph maps a step to the steps whose tasks must run before it within the
// same lane.
type Graph map[Step][]Step

// Dependencies is the declared order between steps.
var Dependencies = Graph{
	StepExecutorFee:          {StepRegisterExecutor},
	StepRelayerFee:           {StepRegisterRelayer},
	StepOracleThreshold:      {StepOracleValidator},
	StepCoinLimiter:          {StepRegisterCoin},
	StepRemoteCoin:           {StepRegisterCoin},
	StepMinDstGas:            {StepRemoteBridge},
	StepDefaultAdapterParams: {StepDefaultExecutor},
}

// Validate fails if the graph has a cycle.
func (g Graph) Validate() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[Step]int)
	var visit func(s Step, path []Step) error
	visit = func(s Step, path []Step) error {
		switch state[s] {
		case visiting:
			return fault.InvariantViolation("task.graph", string(s), fmt.Sprintf("dependency cycle %v", append(path, s)))
		case done:
			return nil
		}
		state[s] = visiting
		for _, dep := range g[s] {
			if err := visit(dep, append(path, s)); err != nil {
				return err
			}
		}
		state[s] = done
		return nil
	}
	steps := make([]Step, 0, len(g))
	for s := range g {
		steps = append(steps, s)
	}
	slices.Sort(steps)
	for _, s := range steps {
		if err := visit(s, nil); err != nil {
			return err
		}
	}
	return nil
}

// Order returns the lane's tasks in an order that respects g. Steps keep
// the order in which they first appear unless a dependency moves them
// later; tasks of one step keep their relative order.
func (g Graph) Order(tasks []Task) ([]Task, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	var steps []Step
	byStep := make(map[Step][]Task)
	for _, t := range tasks {
		if _, seen := byStep[t.Step]; !seen {
			steps = append(steps, t.Step)
		}
		byStep[t.Step] = append(byStep[t.Step], t)
	}

	present := func(s Step) bool {
		_, ok := byStep[s]
		return ok
	}
	emitted := make(map[Step]bool, len(steps))
	out := make([]Task, 0, len(tasks))
	for len(emitted) < len(steps) {
		progressed := false
		for _, s := range steps {
			if emitted[s] {
				continue
			}
			ready := true
			for _, dep := range g[s] {
				if present(dep) && !emitted[dep] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			out = append(out, byStep[s]...)
			emitted[s] = true
			progressed = true
			break
		}
		if !progressed {
			return nil, fault.InvariantViolation("task.order", "steps", "unsatisfiable ordering")
		}
	}
	return out, nil
}

// GroupByAuthority splits tasks into lanes, keeping each lane's order, and
// returns the authorities in order of first appearance.
func GroupByAuthority(tasks []Task) ([]Authority, map[Authority][]Task) {
	var order []Authority
	lanes := make(map[Authority][]Task)
	for _, t := range tasks {
		if _, ok := lanes[t.Authority]; !ok {
			order = append(order, t.Authority)
		}
		lanes[t.Authority] = append(lanes[t.Authority], t)
	}
	return order, lanes
}
