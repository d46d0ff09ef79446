package memledger

import (
	"fmt"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/limiter"
	"github.com/roach88/omniwire/internal/protocol"
)

type handler func(t *txn, call ledger.Call) error

// handlers simulate the configuration entry functions, keyed by
// module::function. Each writes where the state reader looks.
var handlers = map[string]handler{
	protocol.ModULNConfig + "::" + protocol.FnSetChainAddressSize: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(2); err != nil {
			return err
		}
		h, err := t.tableOf(t.m.addrs.LayerZero, t.m.addrs.ChainConfig(), "chain_address_size")
		if err != nil {
			return err
		}
		return t.putEntry(h, a.uint(0), a.uint(1).Big().String())
	},
	protocol.ModULNConfig + "::" + protocol.FnSetDefaultConfig: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(5); err != nil {
			return err
		}
		h, err := t.tableOf(t.m.addrs.LayerZero, t.m.addrs.DefaultULNConfig(), "config")
		if err != nil {
			return err
		}
		return t.putEntry(h, a.uint(0), map[string]string{
			"oracle":                 a.str(1),
			"relayer":                a.str(2),
			"inbound_confirmations":  a.uint(3).Big().String(),
			"outbound_confirmations": a.uint(4).Big().String(),
		})
	},
	protocol.ModMsglibConfig + "::" + protocol.FnSetDefaultSendMsglib: func(t *txn, c ledger.Call) error {
		return putSemver(t, c, "send_version")
	},
	protocol.ModMsglibConfig + "::" + protocol.FnSetDefaultReceiveMsglib: func(t *txn, c ledger.Call) error {
		return putSemver(t, c, "receive_version")
	},
	protocol.ModExecutorConfig + "::" + protocol.FnSetDefaultExecutor: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(3); err != nil {
			return err
		}
		h, err := t.tableOf(t.m.addrs.LayerZero, t.m.addrs.ExecutorConfigStore(), "config")
		if err != nil {
			return err
		}
		return t.putEntry(h, a.uint(0), map[string]string{
			"version":  a.uint(1).Big().String(),
			"executor": a.str(2),
		})
	},
	protocol.ModExecutorV1 + "::" + protocol.FnSetDefaultAdapterParams: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(2); err != nil {
			return err
		}
		h, err := t.tableOf(t.m.addrs.LayerZero, t.m.addrs.AdapterParamsConfig(), "params")
		if err != nil {
			return err
		}
		return t.putEntry(h, a.uint(0), string(a.bytes(1)))
	},
	protocol.ModExecutorV1 + "::" + protocol.FnRegister: func(t *txn, c ledger.Call) error {
		return register(t, c.Sender, t.m.addrs.ExecutorConfig(), "fee")
	},
	protocol.ModExecutorV1 + "::" + protocol.FnSetFee: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(4); err != nil {
			return err
		}
		h, err := registeredTable(t, c.Sender, t.m.addrs.ExecutorConfig(), "fee")
		if err != nil {
			return err
		}
		return t.putEntry(h, a.uint(0), map[string]string{
			"airdrop_amt_cap": a.uint(1).Big().String(),
			"price_ratio":     a.uint(2).Big().String(),
			"gas_price":       a.uint(3).Big().String(),
		})
	},
	protocol.ModULNSigner + "::" + protocol.FnRegister: func(t *txn, c ledger.Call) error {
		return register(t, c.Sender, t.m.addrs.SignerConfig(), "fees")
	},
	protocol.ModULNSigner + "::" + protocol.FnSetFee: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(3); err != nil {
			return err
		}
		h, err := registeredTable(t, c.Sender, t.m.addrs.SignerConfig(), "fees")
		if err != nil {
			return err
		}
		return t.putEntry(h, a.uint(0), map[string]string{
			"base_fee":     a.uint(1).Big().String(),
			"fee_per_byte": a.uint(2).Big().String(),
		})
	},
	protocol.ModOracle + "::" + protocol.FnSetValidator: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(2); err != nil {
			return err
		}
		validator, err := chain.FullAddress(a.str(0))
		if err != nil {
			return err
		}
		return t.updateResource(t.m.addrs.Oracle, t.m.addrs.OracleConfig(), true, func(res map[string]any) error {
			vs, _ := res["validators"].(map[string]any)
			if vs == nil {
				vs = map[string]any{}
			}
			vs[validator] = bool(a.boolean(1))
			res["validators"] = vs
			return nil
		})
	},
	protocol.ModOracle + "::" + protocol.FnSetThreshold: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(1); err != nil {
			return err
		}
		return t.updateResource(t.m.addrs.Oracle, t.m.addrs.OracleConfig(), true, func(res map[string]any) error {
			res["threshold"] = a.uint(0).Big().String()
			return nil
		})
	},
	protocol.ModOracle + "::" + protocol.FnSetFee: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(2); err != nil {
			return err
		}
		res, ok, err := t.resource(t.m.addrs.Oracle, t.m.addrs.OracleConfig())
		if err != nil {
			return err
		}
		signer, _ := res["resource_addr"].(string)
		if !ok || signer == "" {
			return fmt.Errorf("oracle has no resource account")
		}
		h, err := t.tableOf(signer, t.m.addrs.SignerConfig(), "fees")
		if err != nil {
			return err
		}
		return t.putEntry(h, a.uint(0), map[string]string{
			"base_fee":     a.uint(1).Big().String(),
			"fee_per_byte": "0",
		})
	},
	protocol.ModCoinBridge + "::" + protocol.FnEnableCustomAdapter: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(1); err != nil {
			return err
		}
		return t.updateResource(t.m.addrs.Bridge, t.m.addrs.BridgeConfig(), true, func(res map[string]any) error {
			res["custom_adapter_params"] = bool(a.boolean(0))
			return nil
		})
	},
	protocol.ModCoinBridge + "::" + protocol.FnRegisterCoin: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(4); err != nil {
			return err
		}
		coin, err := typeArg(c)
		if err != nil {
			return err
		}
		if _, exists, _ := t.resource(t.m.addrs.Bridge, t.m.addrs.CoinStore(coin)); exists {
			return fmt.Errorf("coin %s already registered", coin)
		}
		store := map[string]any{
			"name":          a.str(0),
			"symbol":        a.str(1),
			"decimals":      a.uint(2).Big().String(),
			"ld2sd_rate":    "1",
			"remote_coins":  map[string]any{"handle": t.newHandle()},
			"remote_chains": []string{},
		}
		if err := t.putResource(t.m.addrs.Bridge, t.m.addrs.CoinStore(coin), store); err != nil {
			return err
		}
		lim := limiter.Default()
		return t.putResource(t.m.addrs.Bridge, t.m.addrs.Limiter(coin), map[string]any{
			"enabled":    lim.Enabled,
			"cap_sd":     a.uint(3).Big().String(),
			"window_sec": fmt.Sprintf("%d", lim.WindowSec),
			"t0_sec":     "0",
			"sum_sd":     "0",
		})
	},
	protocol.ModCoinBridge + "::" + protocol.FnSetLimiterCap: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(3); err != nil {
			return err
		}
		coin, err := typeArg(c)
		if err != nil {
			return err
		}
		return t.updateResource(t.m.addrs.Bridge, t.m.addrs.Limiter(coin), false, func(res map[string]any) error {
			res["enabled"] = bool(a.boolean(0))
			res["cap_sd"] = a.uint(1).Big().String()
			res["window_sec"] = a.uint(2).Big().String()
			return nil
		})
	},
	protocol.ModCoinBridge + "::" + protocol.FnSetRemoteCoin: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(3); err != nil {
			return err
		}
		coin, err := typeArg(c)
		if err != nil {
			return err
		}
		var handle string
		err = t.updateResource(t.m.addrs.Bridge, t.m.addrs.CoinStore(coin), false, func(res map[string]any) error {
			f, _ := res["remote_coins"].(map[string]any)
			handle, _ = f["handle"].(string)
			if handle == "" {
				return fmt.Errorf("coin store has no remote_coins table")
			}
			remote := a.uint(0).Big().String()
			chains, _ := res["remote_chains"].([]any)
			for _, ch := range chains {
				if ch == remote {
					return nil
				}
			}
			res["remote_chains"] = append(chains, remote)
			return nil
		})
		if err != nil {
			return err
		}
		return t.putEntry(handle, a.uint(0), map[string]any{
			"remote_address": string(a.bytes(1)),
			"unwrappable":    bool(a.boolean(2)),
		})
	},
	protocol.ModRemote + "::" + protocol.FnSetRemote: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(2); err != nil {
			return err
		}
		ua, err := uaAddress(c)
		if err != nil {
			return err
		}
		h, err := t.tableOf(ua, t.m.addrs.Remotes(), "peers")
		if err != nil {
			return err
		}
		return t.putEntry(h, a.uint(0), string(a.bytes(1)))
	},
	protocol.ModLzApp + "::" + protocol.FnSetMinDstGas: func(t *txn, c ledger.Call) error {
		a := args(c.Args)
		if err := a.want(3); err != nil {
			return err
		}
		ua, err := uaAddress(c)
		if err != nil {
			return err
		}
		h, err := t.tableOf(ua, t.m.addrs.LzAppConfig(), "min_dst_gas_lookup")
		if err != nil {
			return err
		}
		key := ir.ObjectOf(ir.P("chain_id", a.uint(0)), ir.P("packet_type", a.uint(1)))
		return t.putEntry(h, key, a.uint(2).Big().String())
	},
}

func putSemver(t *txn, c ledger.Call, field string) error {
	a := args(c.Args)
	if err := a.want(3); err != nil {
		return err
	}
	h, err := t.tableOf(t.m.addrs.LayerZero, t.m.addrs.MsglibConfig(), field)
	if err != nil {
		return err
	}
	return t.putEntry(h, a.uint(0), map[string]string{
		"major": a.uint(1).Big().String(),
		"minor": a.uint(2).Big().String(),
	})
}

func register(t *txn, sender, typ, table string) error {
	if sender == "" {
		return fmt.Errorf("register needs a sender")
	}
	if _, exists, _ := t.resource(sender, typ); exists {
		return fmt.Errorf("%s already registered", sender)
	}
	return t.putResource(sender, typ, map[string]any{table: map[string]any{"handle": t.newHandle()}})
}

func registeredTable(t *txn, sender, typ, table string) (string, error) {
	if _, exists, _ := t.resource(sender, typ); !exists {
		return "", fmt.Errorf("%s is not registered", sender)
	}
	return t.tableOf(sender, typ, table)
}

func typeArg(c ledger.Call) (string, error) {
	if len(c.TypeArgs) != 1 {
		return "", fmt.Errorf("%s needs one type argument, got %d", c.Function, len(c.TypeArgs))
	}
	return c.TypeArgs[0], nil
}

// uaAddress returns the account of the application type passed as the
// call's type argument.
func uaAddress(c ledger.Call) (string, error) {
	ua, err := typeArg(c)
	if err != nil {
		return "", err
	}
	addr, _, ok := protocol.SplitModule(ua)
	if !ok {
		return "", fmt.Errorf("malformed application type %q", ua)
	}
	addr, _, ok = protocol.SplitModule(addr)
	if !ok {
		return "", fmt.Errorf("malformed application type %q", ua)
	}
	return addr, nil
}

// args reads positional call arguments. Accessors return zero values for
// missing or mistyped arguments; handlers check arity with want.
type args ir.Array

func (a args) want(n int) error {
	if len(a) != n {
		return fmt.Errorf("want %d arguments, got %d", n, len(a))
	}
	return nil
}

func (a args) uint(i int) ir.Uint {
	if i < len(a) {
		if u, ok := a[i].(ir.Uint); ok {
			return u
		}
	}
	return "0"
}

func (a args) str(i int) string {
	if i < len(a) {
		if s, ok := a[i].(ir.String); ok {
			return string(s)
		}
	}
	return ""
}

func (a args) boolean(i int) ir.Bool {
	if i < len(a) {
		if b, ok := a[i].(ir.Bool); ok {
			return b
		}
	}
	return false
}

func (a args) bytes(i int) ir.Bytes {
	if i < len(a) {
		if b, ok := a[i].(ir.Bytes); ok {
			return b
		}
	}
	return "0x"
}
