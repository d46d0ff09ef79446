// Package chain describes the chains a reconciliation run spans: their
// endpoint ids, families and canonical address widths.
package chain

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/omniwire/internal/fault"
)

// EndpointID identifies a chain and network-stage pair.
type EndpointID uint16

// Family groups chains that share an address format and client.
type Family string

const (
	FamilyLocal Family = "local"
	FamilyEVM   Family = "evm"
)

// Width returns the canonical address width of the family in bytes.
func (f Family) Width() int {
	switch f {
	case FamilyEVM:
		return 20
	default:
		return 32
	}
}

// Stage is a network stage.
type Stage string

const (
	StageMainnet Stage = "mainnet"
	StageTestnet Stage = "testnet"
	StageSandbox Stage = "sandbox"
)

// ChainIDBias offsets sandbox endpoint ids from their lookup ids.
const ChainIDBias = 100

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	switch st := Stage(strings.ToLower(s)); st {
	case StageMainnet, StageTestnet, StageSandbox:
		return st, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// RemoteID maps a lookup id to the endpoint id used on chain at stage.
func (s Stage) RemoteID(lookup EndpointID) EndpointID {
	if s == StageSandbox {
		return lookup + ChainIDBias
	}
	return lookup
}

// LookupID is the inverse of RemoteID.
func (s Stage) LookupID(remote EndpointID) EndpointID {
	if s == StageSandbox {
		return remote - ChainIDBias
	}
	return remote
}

// Chain is one entry of a Registry.
type Chain struct {
	ID     EndpointID
	Name   string
	Family Family
	// AddressWidth overrides Family.Width when non-zero.
	AddressWidth int
}

// Width returns the canonical address width of c.
func (c Chain) Width() int {
	if c.AddressWidth > 0 {
		return c.AddressWidth
	}
	return c.Family.Width()
}

// Registry is the set of chains in scope for one run. It is built from
// configuration and never shared between runs.
type Registry struct {
	chains map[EndpointID]Chain
}

// NewRegistry builds a Registry. Duplicate ids are an error.
func NewRegistry(chains ...Chain) (*Registry, error) {
	r := &Registry{chains: make(map[EndpointID]Chain, len(chains))}
	for _, c := range chains {
		if _, dup := r.chains[c.ID]; dup {
			return nil, fault.InvariantViolation("chain.registry", fmt.Sprintf("chain %d", c.ID), "declared twice")
		}
		r.chains[c.ID] = c
	}
	return r, nil
}

// Lookup returns the chain with id.
func (r *Registry) Lookup(id EndpointID) (Chain, bool) {
	c, ok := r.chains[id]
	return c, ok
}

// WidthOf returns the address width of a chain. It satisfies packet.Width.
func (r *Registry) WidthOf(id uint16) (int, error) {
	c, ok := r.chains[EndpointID(id)]
	if !ok {
		return 0, fmt.Errorf("chain %d is not in scope", id)
	}
	return c.Width(), nil
}

// IDs returns every endpoint id in ascending order.
func (r *Registry) IDs() []EndpointID {
	ids := make([]EndpointID, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ByFamily returns the ids of one family in ascending order.
func (r *Registry) ByFamily(f Family) []EndpointID {
	var ids []EndpointID
	for id, c := range r.chains {
		if c.Family == f {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
