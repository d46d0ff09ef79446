// Package store provides SQLite-backed run history.
//
// Every plan and wire run is recorded:
//   - Runs: one row per invocation, ordered by seq
//   - Tasks: the run's plan, keyed by the task's content hash
//   - Results: what the reconciler did with each executed task
//
// Task ids are the domain-separated hash of the task's canonical JSON
// (internal/ir/hash.go), so the stored canonical text can be re-hashed to
// check a run's plan was not altered.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
