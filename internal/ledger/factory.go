package ledger

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/omniwire/internal/chain"
)

// Network describes how to reach one chain.
type Network struct {
	Name    string
	ChainID chain.EndpointID
	Family  chain.Family
	URL     string
}

// Dialer opens a Client for a network.
type Dialer func(ctx context.Context, network Network) (Client, error)

// Factory opens clients on first use and reuses them for the rest of its
// lifetime. Each run constructs its own Factory; nothing is cached across
// factories.
type Factory struct {
	dial Dialer

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	once   sync.Once
	client Client
	err    error
}

// NewFactory creates a Factory that opens clients with dial.
func NewFactory(dial Dialer) *Factory {
	return &Factory{dial: dial, entries: make(map[string]*entry)}
}

// Client returns the client for network, dialing it at most once. Concurrent
// callers for the same network wait for the same dial.
func (f *Factory) Client(ctx context.Context, network Network) (Client, error) {
	f.mu.Lock()
	e, ok := f.entries[network.Name]
	if !ok {
		e = &entry{}
		f.entries[network.Name] = e
	}
	f.mu.Unlock()

	e.once.Do(func() {
		e.client, e.err = f.dial(ctx, network)
		if e.err != nil {
			e.err = fmt.Errorf("dial %s: %w", network.Name, e.err)
		}
	})
	return e.client, e.err
}

// Close closes every opened client that implements io.Closer.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result *multierror.Error
	for name, e := range f.entries {
		if c, ok := e.client.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	f.entries = make(map[string]*entry)
	return result.ErrorOrNil()
}
