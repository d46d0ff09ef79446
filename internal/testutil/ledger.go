package testutil

import (
	"strconv"

	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/ledger/memledger"
)

// SeedFixture returns the local ledger state every deployment starts with:
// the oracle config with its threshold and resource account, and the
// bridge config. The protocol modules publish these at init.
func SeedFixture(cfg *config.TargetConfig, threshold uint64) memledger.Fixture {
	return memledger.Fixture{
		Resources: []memledger.FixtureRes{
			{
				Address: cfg.Addresses.Oracle,
				Type:    cfg.Addresses.OracleConfig(),
				Data: map[string]any{
					"threshold":     strconv.FormatUint(threshold, 10),
					"validators":    map[string]any{},
					"resource_addr": cfg.Oracle.Signer,
				},
			},
			{
				Address: cfg.Addresses.Bridge,
				Type:    cfg.Addresses.BridgeConfig(),
				Data:    map[string]any{"custom_adapter_params": false},
			},
		},
	}
}

// SeededLedger returns a memledger loaded with SeedFixture.
func SeededLedger(cfg *config.TargetConfig, threshold uint64, opts ...memledger.Option) (*memledger.Ledger, error) {
	m := memledger.New(cfg.Addresses, opts...)
	if err := m.Apply(SeedFixture(cfg, threshold)); err != nil {
		return nil, err
	}
	return m, nil
}
