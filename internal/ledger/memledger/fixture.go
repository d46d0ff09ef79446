package memledger

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/omniwire/internal/ir"
)

// Fixture is the YAML form of a ledger's state.
type Fixture struct {
	NowMicros uint64         `yaml:"now_microseconds"`
	Resources []FixtureRes   `yaml:"resources"`
	Tables    []FixtureTable `yaml:"tables"`
	Named     []FixtureNamed `yaml:"named"`
}

// FixtureRes is one account resource.
type FixtureRes struct {
	Address string         `yaml:"address"`
	Type    string         `yaml:"type"`
	Data    map[string]any `yaml:"data"`
}

// FixtureTable is one table and its entries.
type FixtureTable struct {
	Handle  string         `yaml:"handle"`
	Entries []FixtureEntry `yaml:"entries"`
}

// FixtureEntry is one table entry.
type FixtureEntry struct {
	Key   any `yaml:"key"`
	Value any `yaml:"value"`
}

// FixtureNamed is one named value.
type FixtureNamed struct {
	Module string `yaml:"module"`
	Key    string `yaml:"key"`
	Value  any    `yaml:"value"`
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture parses YAML fixture content.
func ParseFixture(data []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	return f, nil
}

// Apply loads f into m, replacing entries with the same location.
func (m *Ledger) Apply(f Fixture) error {
	if f.NowMicros != 0 {
		m.SetNowMicros(f.NowMicros)
	}
	for _, r := range f.Resources {
		if err := m.PutResource(r.Address, r.Type, r.Data); err != nil {
			return err
		}
	}
	for _, tbl := range f.Tables {
		m.reserveHandle(tbl.Handle)
		for i, e := range tbl.Entries {
			key, err := ir.FromAny(e.Key)
			if err != nil {
				return fmt.Errorf("table %s entry %d: %w", tbl.Handle, i, err)
			}
			if err := m.PutTableEntry(tbl.Handle, key, e.Value); err != nil {
				return err
			}
		}
	}
	for _, n := range f.Named {
		if err := m.PutNamedValue(n.Module, n.Key, n.Value); err != nil {
			return err
		}
	}
	return nil
}

// Dump exports m as a Fixture with deterministic ordering.
func (m *Ledger) Dump() (Fixture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f := Fixture{NowMicros: m.nowMicros}
	for addr, byType := range m.resources {
		for typ, raw := range byType {
			var data map[string]any
			if err := json.Unmarshal(raw, &data); err != nil {
				return Fixture{}, err
			}
			f.Resources = append(f.Resources, FixtureRes{Address: addr, Type: typ, Data: data})
		}
	}
	sort.Slice(f.Resources, func(i, j int) bool {
		if f.Resources[i].Address != f.Resources[j].Address {
			return f.Resources[i].Address < f.Resources[j].Address
		}
		return f.Resources[i].Type < f.Resources[j].Type
	})
	for handle, entries := range m.tables {
		tbl := FixtureTable{Handle: handle}
		for k, raw := range entries {
			var key, value any
			if err := json.Unmarshal([]byte(k), &key); err != nil {
				return Fixture{}, err
			}
			if err := json.Unmarshal(raw, &value); err != nil {
				return Fixture{}, err
			}
			tbl.Entries = append(tbl.Entries, FixtureEntry{Key: key, Value: value})
		}
		sort.Slice(tbl.Entries, func(i, j int) bool {
			return fmt.Sprint(tbl.Entries[i].Key) < fmt.Sprint(tbl.Entries[j].Key)
		})
		f.Tables = append(f.Tables, tbl)
	}
	sort.Slice(f.Tables, func(i, j int) bool { return f.Tables[i].Handle < f.Tables[j].Handle })
	for name, raw := range m.named {
		// Values read with arguments cannot be expressed in a fixture.
		i := strings.LastIndex(name, "::")
		if i < 0 || strings.HasSuffix(name, "]") {
			continue
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return Fixture{}, err
		}
		f.Named = append(f.Named, FixtureNamed{Module: name[:i], Key: name[i+2:], Value: value})
	}
	sort.Slice(f.Named, func(i, j int) bool {
		return f.Named[i].Module+"::"+f.Named[i].Key < f.Named[j].Module+"::"+f.Named[j].Key
	})
	return f, nil
}

// reserveHandle keeps handles created later from reusing a loaded one.
func (m *Ledger) reserveHandle(handle string) {
	n, err := strconv.ParseUint(strings.TrimPrefix(handle, "0x"), 16, 64)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > m.nextHandle {
		m.nextHandle = n
	}
}

// MarshalYAML renders m as fixture YAML.
func (m *Ledger) MarshalYAML() (any, error) {
	return m.Dump()
}
