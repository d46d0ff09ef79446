// Package harness runs wiring scenarios end to end against an in-memory
// ledger.
//
// A scenario declares a configuration, the ledger state it starts from and
// the writes the ledger should reject. The harness plans against that
// state, executes the plan through the reconciler, records the run in a
// fresh in-memory store, and plans a second time against the final ledger.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: relayer-fee-rejected
//	description: "A rejected write fails only its own lane"
//	run_id: run-relayer
//	seed:
//	  threshold: 1
//	declaration:
//	  stage: sandbox
//	  local: {id: 10108, name: aptos}
//	  ...
//	fixture:
//	  resources: [...]
//	failures:
//	  - module: uln_signer
//	    function: set_fee
//	    message: fee rejected
//	expect:
//	  outcome: applied with failures
//	  failed_lanes: [relayer]
//	  replan: 1
//	assertions:
//	  - type: task_outcome
//	    task: relayer-fee@10121
//	    outcome: failed
//
// # Assertion Types
//
//   - task_outcome: a task ended as unchanged, applied, failed, skipped,
//     pending or dry-run
//   - task_order: tasks appear in the plan in the given order
//   - call_count: the ledger accepted module::function exactly N times
//   - lane_failed: the authority's lane failed
//
// # Determinism
//
// Every scenario runs with a fixed run id and testutil.DeterministicClock,
// so the transcript written by Transcript is stable across runs and can be
// compared against golden files.
//
// # Usage
//
//	s, err := harness.LoadScenario("testdata/scenarios/fresh-sandbox.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := harness.Run(ctx, s)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !res.Pass {
//	    for _, e := range res.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
