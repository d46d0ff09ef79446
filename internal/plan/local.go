package plan

import (
	"github.com/roach88/omniwire/internal/adapterparams"
	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/fault"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/protocol"
	"github.com/roach88/omniwire/internal/state"
	"github.com/roach88/omniwire/internal/task"
)

func remoteArg(r *config.Remote) ir.Value { return ir.U64(uint64(r.LocalID)) }

// fullAddress is the canonical 32-byte form used in local call arguments.
func fullAddress(op, field, addr string) (ir.Value, error) {
	if err := required(op, field, addr); err != nil {
		return nil, err
	}
	full, err := chain.FullAddress(addr)
	if err != nil {
		return nil, fault.InvariantViolation(op, field, err.Error())
	}
	return ir.String(full), nil
}

func (p *planner) layerZero() {
	lz := p.cfg.Addresses.LayerZero
	for i := range p.cfg.Remotes {
		r := &p.cfg.Remotes[i]
		cur := &p.snap.Remotes[i]

		p.add(p.chainAddressSize(lz, r, cur))
		p.add(p.defaultAppConfig(lz, r, cur))
		p.add(p.msglibVersion(lz, r, task.StepDefaultSendMsglib, protocol.FnSetDefaultSendMsglib, cur.SendVersion, p.cfg.Msglib.SendVersion))
		p.add(p.msglibVersion(lz, r, task.StepDefaultReceiveMsglib, protocol.FnSetDefaultReceiveMsglib, cur.ReceiveVersion, p.cfg.Msglib.ReceiveVersion))
		p.add(p.defaultExecutor(lz, r, cur))
		p.add(p.defaultAdapterParams(lz, r, cur))
	}
}

func (p *planner) chainAddressSize(lz string, r *config.Remote, cur *state.RemoteState) (task.Task, error) {
	t := p.local(task.AuthorityLayerZero, task.StepChainAddressSize, r)
	call, err := LocalCall(lz, lz, protocol.ModULNConfig, protocol.FnSetChainAddressSize, nil, remoteArg(r), ir.U64(r.AddressSize))
	if err != nil {
		return t, err
	}
	t.Call = call
	d := diff{}
	d.uint("address_size", cur.AddressSize, r.AddressSize)
	return finish(t, d), nil
}

func (p *planner) defaultAppConfig(lz string, r *config.Remote, cur *state.RemoteState) (task.Task, error) {
	t := p.local(task.AuthorityLayerZero, task.StepDefaultAppConfig, r)
	const op = "plan.default_app_config"
	target := r.AppConfig
	oracle, err := fullAddress(op, "oracle", target.Oracle)
	if err != nil {
		return t, err
	}
	relayer, err := fullAddress(op, "relayer", target.Relayer)
	if err != nil {
		return t, err
	}
	call, err := LocalCall(lz, lz, protocol.ModULNConfig, protocol.FnSetDefaultConfig, nil,
		remoteArg(r), oracle, relayer, ir.U64(target.InboundConfirmations), ir.U64(target.OutboundConfirmations))
	if err != nil {
		return t, err
	}
	t.Call = call
	d := diff{}
	d.address("oracle", cur.AppConfig.Oracle, target.Oracle, chain.LocalAddressWidth)
	d.address("relayer", cur.AppConfig.Relayer, target.Relayer, chain.LocalAddressWidth)
	d.uint("inbound_confirmations", cur.AppConfig.InboundConfirmations, target.InboundConfirmations)
	d.uint("outbound_confirmations", cur.AppConfig.OutboundConfirmations, target.OutboundConfirmations)
	return finish(t, d), nil
}

func (p *planner) msglibVersion(lz string, r *config.Remote, step task.Step, fn string, cur, target config.SemVer) (task.Task, error) {
	t := p.local(task.AuthorityLayerZero, step, r)
	call, err := LocalCall(lz, lz, protocol.ModMsglibConfig, fn, nil, remoteArg(r), ir.U64(target.Major), ir.U64(target.Minor))
	if err != nil {
		return t, err
	}
	t.Call = call
	d := diff{}
	d.str("version", cur.String(), target.String())
	return finish(t, d), nil
}

func (p *planner) defaultExecutor(lz string, r *config.Remote, cur *state.RemoteState) (task.Task, error) {
	t := p.local(task.AuthorityLayerZero, task.StepDefaultExecutor, r)
	target := p.cfg.Executor
	executor, err := fullAddress("plan.default_executor", "executor", target.Address)
	if err != nil {
		return t, err
	}
	call, err := LocalCall(lz, lz, protocol.ModExecutorConfig, protocol.FnSetDefaultExecutor, nil, remoteArg(r), ir.U64(target.Version), executor)
	if err != nil {
		return t, err
	}
	t.Call = call
	d := diff{}
	d.uint("version", cur.Executor.Version, target.Version)
	d.address("executor", cur.Executor.Address, target.Address, chain.LocalAddressWidth)
	return finish(t, d), nil
}

func (p *planner) defaultAdapterParams(lz string, r *config.Remote, cur *state.RemoteState) (task.Task, error) {
	t := p.local(task.AuthorityLayerZero, task.StepDefaultAdapterParams, r)
	target, err := adapterparams.Decode(r.AdapterParams)
	if err != nil {
		return t, err
	}
	call, err := LocalCall(lz, lz, protocol.ModExecutorV1, protocol.FnSetDefaultAdapterParams, nil, remoteArg(r), ir.BytesOf(r.AdapterParams))
	if err != nil {
		return t, err
	}
	t.Call = call
	d := diff{}
	if current, err := adapterparams.Decode(cur.AdapterParams); err != nil {
		d["adapter_params"] = task.Change{Old: ir.BytesOf(cur.AdapterParams), New: ir.BytesOf(r.AdapterParams)}
	} else {
		d.uint("gas_limit", current.GasLimit, target.GasLimit)
	}
	return finish(t, d), nil
}

func (p *planner) executor() {
	addr := p.cfg.Executor.Address
	lz := p.cfg.Addresses.LayerZero

	t := p.local(task.AuthorityExecutor, task.StepRegisterExecutor, nil)
	call, err := LocalCall(addr, lz, protocol.ModExecutorV1, protocol.FnRegister, nil)
	if err == nil {
		t.Call = call
		d := diff{}
		d.bool("registered", p.snap.ExecutorRegistered, true)
		t = finish(t, d)
	}
	p.add(t, err)

	for i := range p.cfg.Remotes {
		r := &p.cfg.Remotes[i]
		cur := p.snap.Remotes[i].ExecutorFee
		target := r.ExecutorFee

		t := p.local(task.AuthorityExecutor, task.StepExecutorFee, r)
		call, err := LocalCall(addr, lz, protocol.ModExecutorV1, protocol.FnSetFee, nil,
			remoteArg(r), ir.U64(target.AirdropAmtCap), ir.U64(target.PriceRatio), ir.U64(target.GasPrice))
		if err == nil {
			t.Call = call
			// Ratio and gas price belong to the price feed once nonzero.
			d := diff{}
			d.uint("airdrop_amt_cap", cur.AirdropAmtCap, target.AirdropAmtCap)
			if cur.PriceRatio == 0 {
				d.uint("price_ratio", cur.PriceRatio, target.PriceRatio)
			}
			if cur.GasPrice == 0 {
				d.uint("gas_price", cur.GasPrice, target.GasPrice)
			}
			t = finish(t, d)
		}
		p.add(t, err)
	}
}

func (p *planner) relayer() {
	signer := p.cfg.Relayer.Signer
	lz := p.cfg.Addresses.LayerZero

	t := p.local(task.AuthorityRelayer, task.StepRegisterRelayer, nil)
	call, err := LocalCall(signer, lz, protocol.ModULNSigner, protocol.FnRegister, nil)
	if err == nil {
		t.Call = call
		d := diff{}
		d.bool("registered", p.snap.RelayerRegistered, true)
		t = finish(t, d)
	}
	p.add(t, err)

	for i := range p.cfg.Remotes {
		r := &p.cfg.Remotes[i]
		cur := p.snap.Remotes[i].RelayerFee

		t := p.local(task.AuthorityRelayer, task.StepRelayerFee, r)
		call, err := LocalCall(signer, lz, protocol.ModULNSigner, protocol.FnSetFee, nil,
			remoteArg(r), ir.U64(r.RelayerFee.BaseFee), ir.U64(r.RelayerFee.FeePerByte))
		if err == nil {
			t.Call = call
			d := diff{}
			d.uint("base_fee", cur.BaseFee, r.RelayerFee.BaseFee)
			d.uint("fee_per_byte", cur.FeePerByte, r.RelayerFee.FeePerByte)
			t = finish(t, d)
		}
		p.add(t, err)
	}
}

func (p *planner) oracle() {
	o := p.cfg.Addresses.Oracle

	for i, v := range p.cfg.Oracle.Validators {
		t := p.local(task.AuthorityOracle, task.StepOracleValidator, nil)
		t.Subject = v.Address
		addr, err := fullAddress("plan.oracle_validator", "validator", v.Address)
		if err == nil {
			t.Call, err = LocalCall(o, o, protocol.ModOracle, protocol.FnSetValidator, nil, addr, ir.Bool(v.Active))
		}
		if err == nil {
			d := diff{}
			d.bool("active", p.snap.Validators[i], v.Active)
			t = finish(t, d)
		}
		p.add(t, err)
	}

	t := p.local(task.AuthorityOracle, task.StepOracleThreshold, nil)
	var err error
	if p.cfg.Oracle.Threshold == 0 {
		err = fault.InvariantViolation("plan.oracle_threshold", "threshold", "must be positive")
	} else {
		t.Call, err = LocalCall(o, o, protocol.ModOracle, protocol.FnSetThreshold, nil, ir.U64(p.cfg.Oracle.Threshold))
	}
	if err == nil {
		d := diff{}
		d.uint("threshold", p.snap.OracleThreshold, p.cfg.Oracle.Threshold)
		t = finish(t, d)
	}
	p.add(t, err)

	for i := range p.cfg.Remotes {
		r := &p.cfg.Remotes[i]
		t := p.local(task.AuthorityOracle, task.StepOracleFee, r)
		err := required("plan.oracle_fee", "oracle signer", p.cfg.Oracle.Signer)
		if err == nil {
			t.Call, err = LocalCall(o, o, protocol.ModOracle, protocol.FnSetFee, nil, remoteArg(r), ir.U64(r.OracleFee))
		}
		if err == nil {
			d := diff{}
			d.uint("base_fee", p.snap.Remotes[i].OracleFee, r.OracleFee)
			t = finish(t, d)
		}
		p.add(t, err)
	}
}

func (p *planner) bridge() {
	b := p.cfg.Addresses.Bridge
	lz := p.cfg.Addresses.LayerZero

	t := p.local(task.AuthorityBridge, task.StepCustomAdapterParams, nil)
	call, err := LocalCall(b, b, protocol.ModCoinBridge, protocol.FnEnableCustomAdapter, nil, ir.Bool(p.cfg.Bridge.CustomAdapterParams))
	if err == nil {
		t.Call = call
		d := diff{}
		d.bool("enabled", p.snap.CustomAdapterParams, p.cfg.Bridge.CustomAdapterParams)
		t = finish(t, d)
	}
	p.add(t, err)

	for i, coin := range p.cfg.Bridge.Coins {
		p.coin(b, coin, &p.snap.Coins[i])
	}

	ua := []string{p.cfg.Addresses.BridgeUA()}
	for i := range p.cfg.Remotes {
		r := &p.cfg.Remotes[i]
		if r.Peer == "" {
			continue
		}
		cur := &p.snap.Remotes[i]
		width := r.Chain.Width()

		t := p.local(task.AuthorityBridge, task.StepRemoteBridge, r)
		peer, err := chain.ParseAddress(r.Peer)
		if err == nil {
			err = chain.CheckWidth("plan.remote_bridge", peer, width)
		}
		if err == nil {
			t.Call, err = LocalCall(b, lz, protocol.ModRemote, protocol.FnSetRemote, ua, remoteArg(r), ir.BytesOf(peer))
		}
		if err == nil {
			d := diff{}
			d.address("peer", cur.Peer, r.Peer, width)
			t = finish(t, d)
		}
		p.add(t, err)

		t = p.local(task.AuthorityBridge, task.StepMinDstGas, r)
		t.Call, err = LocalCall(b, lz, protocol.ModLzApp, protocol.FnSetMinDstGas, ua,
			remoteArg(r), ir.U64(protocol.PacketTypeSend), ir.U64(r.MinDstGas))
		if err == nil {
			d := diff{}
			d.uint("min_dst_gas", cur.MinDstGas, r.MinDstGas)
			t = finish(t, d)
		}
		p.add(t, err)
	}
}

func (p *planner) coin(b string, coin config.Coin, cur *state.CoinState) {
	coinType := []string{p.cfg.Addresses.CoinType(coin.Symbol)}

	t := p.local(task.AuthorityBridge, task.StepRegisterCoin, nil)
	t.Subject = coin.Symbol
	var err error
	if coin.Name == "" {
		err = fault.InvariantViolation("plan.register_coin", coin.Symbol+" name", "must not be empty")
	} else {
		t.Call, err = LocalCall(b, b, protocol.ModCoinBridge, protocol.FnRegisterCoin, coinType,
			ir.String(coin.Name), ir.String(coin.Symbol), ir.U64(uint64(coin.Decimals)), ir.U64(coin.Limiter.CapSD))
	}
	if err == nil {
		d := diff{}
		d.bool("registered", cur.Registered, true)
		t = finish(t, d)
	}
	p.add(t, err)

	t = p.local(task.AuthorityBridge, task.StepCoinLimiter, nil)
	t.Subject = coin.Symbol
	t.Call, err = LocalCall(b, b, protocol.ModCoinBridge, protocol.FnSetLimiterCap, coinType,
		ir.Bool(coin.Limiter.Enabled), ir.U64(coin.Limiter.CapSD), ir.U64(coin.Limiter.WindowSec))
	if err == nil {
		d := diff{}
		d.bool("enabled", cur.Limiter.Enabled, coin.Limiter.Enabled)
		d.uint("cap_sd", cur.Limiter.CapSD, coin.Limiter.CapSD)
		d.uint("window_sec", cur.Limiter.WindowSec, coin.Limiter.WindowSec)
		t = finish(t, d)
	}
	p.add(t, err)

	for j, rc := range coin.Remotes {
		r, ok := p.cfg.Remote(rc.ChainID)
		if !ok {
			continue
		}
		width := r.Chain.Width()

		t := p.local(task.AuthorityBridge, task.StepRemoteCoin, &r)
		t.Subject = coin.Symbol
		addr, err := chain.ParseAddress(rc.Address)
		if err == nil {
			err = chain.CheckWidth("plan.remote_coin", addr, width)
		}
		if err == nil {
			t.Call, err = LocalCall(b, b, protocol.ModCoinBridge, protocol.FnSetRemoteCoin, coinType,
				remoteArg(&r), ir.BytesOf(addr), ir.Bool(rc.Unwrappable))
		}
		if err == nil {
			d := diff{}
			d.address("address", cur.Remotes[j].Address, rc.Address, width)
			d.bool("unwrappable", cur.Remotes[j].Unwrappable, rc.Unwrappable)
			t = finish(t, d)
		}
		p.add(t, err)
	}
}
