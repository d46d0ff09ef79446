package plan

import (
	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/protocol"
	"github.com/roach88/omniwire/internal/state"
	"github.com/roach88/omniwire/internal/task"
)

// evm plans the TokenBridge on every EVM remote that was read.
func (p *planner) evm() {
	for i := range p.cfg.Remotes {
		r := &p.cfg.Remotes[i]
		cur := p.snap.Remotes[i].EVM
		if r.EVM == nil || cur == nil {
			continue
		}
		p.evmBridge(r, r.EVM, cur)
	}
}

func (p *planner) evmTask(r *config.Remote, step task.Step) task.Task {
	return task.Task{
		Authority:     task.EVMBridge(r.Chain.ID),
		Step:          step,
		ChainID:       r.Chain.ID,
		RemoteChainID: task.Remote(p.cfg.Local.ID),
	}
}

func (p *planner) evmBridge(r *config.Remote, target *config.EVMBridge, cur *state.EVMState) {
	bridge := target.Address
	localID := ir.U64(uint64(target.LocalID))

	t := p.evmTask(r, task.StepEVMCustomAdapterParams)
	call, err := EVMCall(bridge, protocol.EvmSetUseCustomAdapterParams, ir.Bool(target.CustomAdapterParams))
	if err == nil {
		t.Call = call
		d := diff{}
		d.bool("enabled", cur.CustomAdapterParams, target.CustomAdapterParams)
		t = finish(t, d)
	}
	p.add(t, err)

	t = p.evmTask(r, task.StepEVMBridgeFee)
	t.Call, err = EVMCall(bridge, protocol.EvmSetBridgeFeeBP, ir.U64(target.FeeBP))
	if err == nil {
		d := diff{}
		d.uint("fee_bp", cur.FeeBP, target.FeeBP)
		t = finish(t, d)
	}
	p.add(t, err)

	t = p.evmTask(r, task.StepEVMTrustedRemote)
	path, err := protocol.TrustedRemotePath(p.cfg.Addresses.Bridge, bridge)
	if err == nil {
		t.Call, err = EVMCall(bridge, protocol.EvmSetTrustedRemote, localID, ir.BytesOf(path))
	}
	if err == nil {
		d := diff{}
		d.bool("trusted", cur.TrustedRemote, true)
		t = finish(t, d)
	}
	p.add(t, err)

	t = p.evmTask(r, task.StepEVMMinDstGas)
	t.Call, err = EVMCall(bridge, protocol.EvmSetMinDstGas, localID, ir.U64(protocol.EvmPacketTypeSendToLocal), ir.U64(target.MinDstGas))
	if err == nil {
		d := diff{}
		d.uint("min_dst_gas", cur.MinDstGas, target.MinDstGas)
		t = finish(t, d)
	}
	p.add(t, err)

	for j, token := range target.Tokens {
		t := p.evmTask(r, task.StepEVMRegisterToken)
		t.Subject = token
		t.Call, err = EVMCall(bridge, protocol.EvmRegisterToken, ir.String(token))
		if err == nil {
			d := diff{}
			d.bool("supported", cur.Tokens[j], true)
			t = finish(t, d)
		}
		p.add(t, err)
	}

	if target.WETH == "" {
		return
	}
	t = p.evmTask(r, task.StepEVMWETH)
	t.Call, err = EVMCall(bridge, protocol.EvmSetWETH, ir.String(target.WETH))
	if err == nil {
		// WETH can be set once; a nonzero value is left alone.
		d := diff{}
		if cur.WETH == "" || chain.IsZeroAddress(cur.WETH) {
			d.str("weth", cur.WETH, target.WETH)
		}
		t = finish(t, d)
	}
	p.add(t, err)
}
