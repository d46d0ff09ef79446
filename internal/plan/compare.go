package plan

import (
	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/task"
)

// diff accumulates the fields that differ between chain and target.
type diff map[string]task.Change

func (d diff) uint(field string, cur, target uint64) {
	if ir.U64(cur).Cmp(ir.U64(target)) != 0 {
		d[field] = task.Change{Old: ir.U64(cur), New: ir.U64(target)}
	}
}

func (d diff) bool(field string, cur, target bool) {
	if cur != target {
		d[field] = task.Change{Old: ir.Bool(cur), New: ir.Bool(target)}
	}
}

func (d diff) str(field, cur, target string) {
	if cur != target {
		d[field] = task.Change{Old: ir.String(cur), New: ir.String(target)}
	}
}

// address compares after left-padding both sides to width.
func (d diff) address(field, cur, target string, width int) {
	if !chain.EqualAddressHex(cur, target, width) {
		d[field] = task.Change{Old: ir.String(cur), New: ir.String(target)}
	}
}

func (d diff) changed() bool { return len(d) > 0 }

// result returns the diff for a task, nil when nothing differs.
func (d diff) result() map[string]task.Change {
	if len(d) == 0 {
		return nil
	}
	return d
}
