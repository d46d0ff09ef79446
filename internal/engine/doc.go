// Package engine executes a plan.
//
// Tasks are grouped by signing authority into lanes. A lane runs its tasks
// strictly in plan order and stops at the first failure; lanes run
// concurrently and never affect each other. Each lane owns one progress
// slot. Slot snapshots travel through a FIFO queue to a single aggregator
// goroutine, which is the only caller of the observer, so an observer needs
// no locking of its own.
//
// Lane lifecycle:
//
//	Idle -> Running -> Done
//	                -> Failed
//
// A failed write is terminal for its lane and is never retried. Recovery is
// a fresh run: planning is idempotent, so writes that already landed read
// back as needing no change.
package engine
