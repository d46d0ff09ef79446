package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings are process settings, as opposed to the declared protocol
// configuration. Sources in priority order: flags bound by the CLI,
// OMNIWIRE_* environment variables, the settings file, defaults.
type Settings struct {
	// StorePath is the SQLite run history.
	StorePath string `mapstructure:"store"`
	// OutDir receives audit CSV exports.
	OutDir string `mapstructure:"out"`
	// Timeout bounds each ledger read and write.
	Timeout time.Duration `mapstructure:"timeout"`
	// ReadConcurrency bounds concurrent state reads.
	ReadConcurrency int `mapstructure:"read_concurrency"`
	// Fixture serves the local ledger from a memledger fixture file.
	Fixture string `mapstructure:"fixture"`
	// Networks overrides RPC URLs by chain name.
	Networks map[string]string `mapstructure:"networks"`
	// EVMKey is the hex private key that signs EVM bridge calls. Usually
	// supplied as OMNIWIRE_EVM_KEY rather than in the settings file.
	EVMKey string `mapstructure:"evm_key"`
}

// Setting keys.
const (
	KeyStore           = "store"
	KeyOut             = "out"
	KeyTimeout         = "timeout"
	KeyReadConcurrency = "read_concurrency"
	KeyFixture         = "fixture"
	KeyNetworks        = "networks"
	KeyEVMKey          = "evm_key"
)

// NewViper returns a viper instance with omniwire's defaults and
// environment binding. file may be empty to search for omniwire.yaml in the
// working directory.
func NewViper(file string) *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyStore, "omniwire.db")
	v.SetDefault(KeyOut, ".")
	v.SetDefault(KeyTimeout, 60*time.Second)
	v.SetDefault(KeyReadConcurrency, 8)
	// Unmarshal only sees keys viper knows, so env-only keys need a default.
	v.SetDefault(KeyFixture, "")
	v.SetDefault(KeyEVMKey, "")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("omniwire")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("OMNIWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadSettings reads the settings file, if any, and decodes Settings. A
// missing settings file is not an error unless it was named explicitly.
func ReadSettings(v *viper.Viper) (Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if s.Timeout <= 0 {
		return Settings{}, fmt.Errorf("decode settings: timeout must be positive, got %s", s.Timeout)
	}
	if s.ReadConcurrency <= 0 {
		s.ReadConcurrency = 1
	}
	return s, nil
}

// RPC returns the RPC URL for a chain: the settings override if present,
// else the declared URL.
func (s Settings) RPC(name, declared string) string {
	if url, ok := s.Networks[strings.ToLower(name)]; ok && url != "" {
		return url
	}
	return declared
}
