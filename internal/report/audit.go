// Package report renders plans and runs for operators: the audit CSV, the
// live progress board, summaries and the confirmation gate.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/task"
)

// AuditColumns is the audit CSV header.
var AuditColumns = []string{
	"authority", "needChange", "chainId", "remoteChainId",
	"module", "function", "args", "diff", "payload",
}

// AuditRow renders one task as audit fields. Absent values are empty.
func AuditRow(t task.Task) ([]string, error) {
	args, err := ir.MarshalCanonical(argsOrEmpty(t.Call.Args))
	if err != nil {
		return nil, fmt.Errorf("audit %s: args: %w", t.Label(), err)
	}
	var diff string
	if obj := t.DiffObject(); obj != nil {
		b, err := ir.MarshalCanonical(obj)
		if err != nil {
			return nil, fmt.Errorf("audit %s: diff: %w", t.Label(), err)
		}
		diff = string(b)
	}
	var remote string
	if t.RemoteChainID != nil {
		remote = strconv.FormatUint(uint64(*t.RemoteChainID), 10)
	}
	var payload string
	if len(t.Call.Payload) > 0 {
		payload = t.PayloadHex()
	}
	return []string{
		string(t.Authority),
		strconv.FormatBool(t.NeedChange),
		strconv.FormatUint(uint64(t.ChainID), 10),
		remote,
		t.Call.Module,
		function(t),
		string(args),
		diff,
		payload,
	}, nil
}

// function renders the entry function with its type arguments, if any.
func function(t task.Task) string {
	if len(t.Call.TypeArgs) == 0 {
		return t.Call.Function
	}
	return t.Call.Function + "<" + strings.Join(t.Call.TypeArgs, ", ") + ">"
}

func argsOrEmpty(a ir.Array) ir.Array {
	if a == nil {
		return ir.Array{}
	}
	return a
}

// WriteAudit writes the audit CSV for tasks: a header, then one row per
// task whether or not it needs a change. Every field is quoted.
func WriteAudit(w io.Writer, tasks []task.Task) error {
	bw := bufio.NewWriter(w)
	writeRecord(bw, AuditColumns)
	for _, t := range tasks {
		row, err := AuditRow(t)
		if err != nil {
			return err
		}
		writeRecord(bw, row)
	}
	return bw.Flush()
}

// writeRecord writes one CSV record with every field quoted. encoding/csv
// only quotes fields that need it.
func writeRecord(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

// AuditFileName is the export file name for a run.
func AuditFileName(runID string) string {
	return "omniwire-audit-" + runID + ".csv"
}

// ExportAudit writes the audit CSV for a run into dir and returns its path.
func ExportAudit(dir, runID string, tasks []task.Task) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export audit: %w", err)
	}
	path := filepath.Join(dir, AuditFileName(runID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export audit: %w", err)
	}
	if err := WriteAudit(f, tasks); err != nil {
		f.Close()
		return "", fmt.Errorf("export audit: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("export audit: %w", err)
	}
	return path, nil
}
