package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/task"
)

// marshalTask returns a task's content id and canonical JSON text.
func marshalTask(t task.Task) (string, string, error) {
	obj := t.Canonical()
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", "", fmt.Errorf("marshal task %s: %w", t.Label(), err)
	}
	id, err := ir.Identity(ir.DomainTask, obj)
	if err != nil {
		return "", "", fmt.Errorf("marshal task %s: %w", t.Label(), err)
	}
	return id, string(data), nil
}

// unmarshalCanonical parses stored canonical JSON back into an ir object.
// Numbers stay exact.
func unmarshalCanonical(text string) (ir.Object, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal canonical: %w", err)
	}
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal canonical: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal canonical: expected object, got %T", v)
	}
	return obj, nil
}

func nullableChainID(id *chain.EndpointID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func chainIDPtr(n sql.NullInt64) *chain.EndpointID {
	if !n.Valid {
		return nil
	}
	return task.Remote(chain.EndpointID(n.Int64))
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Times are stored as RFC 3339 text in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
