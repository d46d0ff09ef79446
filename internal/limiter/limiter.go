// Package limiter computes the remaining capacity of a decaying-window rate
// limiter.
//
// Accumulated usage is anchored at (T0Sec, SumSD) and halves once per
// elapsed window. Reads derive the decayed value from the anchor and never
// move it; only Record, the usage-recording write, advances the anchor.
package limiter

import (
	"errors"
	"fmt"
	"math/big"
)

const (
	// DefaultCapSD is the cap applied to a coin with no limiter configured.
	DefaultCapSD uint64 = 1_000_000_000_000

	// DefaultWindowSec is the default decay window.
	DefaultWindowSec uint64 = 14400
)

// ErrCapExceeded is returned by Record when usage would exceed the cap.
var ErrCapExceeded = errors.New("limiter cap exceeded")

// State is the stored limiter anchor. Amounts are shared-decimal.
type State struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	CapSD     uint64 `json:"cap_sd,string" yaml:"cap_sd"`
	WindowSec uint64 `json:"window_sec,string" yaml:"window_sec"`
	T0Sec     uint64 `json:"t0_sec,string" yaml:"t0_sec"`
	SumSD     uint64 `json:"sum_sd,string" yaml:"sum_sd"`
}

// Default returns the state of a coin with no limiter configured: disabled,
// with the default cap and window.
func Default() State {
	return State{CapSD: DefaultCapSD, WindowSec: DefaultWindowSec}
}

// Reading is the result of a limiter read.
type Reading struct {
	Limited     bool
	RemainingSD uint64
	RemainingLD *big.Int
}

// EffectiveSum returns SumSD decayed to nowSec.
func (s State) EffectiveSum(nowSec uint64) uint64 {
	if s.WindowSec == 0 || nowSec <= s.T0Sec {
		return s.SumSD
	}
	elapsed := (nowSec - s.T0Sec) / s.WindowSec
	if elapsed >= 64 {
		return 0
	}
	return s.SumSD >> elapsed
}

// Remaining returns the capacity left at nowSec, converted to local decimals
// with ld2sdRate. Remaining capacity saturates at zero when usage exceeds a
// lowered cap.
func (s State) Remaining(nowSec uint64, ld2sdRate uint64) Reading {
	sum := s.EffectiveSum(nowSec)
	var remaining uint64
	if s.CapSD > sum {
		remaining = s.CapSD - sum
	}
	return Reading{
		Limited:     s.Enabled,
		RemainingSD: remaining,
		RemainingLD: ToLD(remaining, ld2sdRate),
	}
}

// Record returns the state after spending amountSD at nowSec. The anchor
// moves to nowSec with the decayed sum plus the new amount. s is unchanged.
func (s State) Record(nowSec, amountSD uint64) (State, error) {
	if !s.Enabled {
		return s, nil
	}
	sum := s.EffectiveSum(nowSec)
	if amountSD > s.CapSD || sum > s.CapSD-amountSD {
		return s, fmt.Errorf("record %d with %d used of %d: %w", amountSD, sum, s.CapSD, ErrCapExceeded)
	}
	next := s
	next.T0Sec = max(nowSec, s.T0Sec)
	next.SumSD = sum + amountSD
	return next, nil
}

// ToLD converts a shared-decimal amount to local decimals.
func ToLD(amountSD, ld2sdRate uint64) *big.Int {
	out := new(big.Int).SetUint64(amountSD)
	return out.Mul(out, new(big.Int).SetUint64(ld2sdRate))
}

// MicrosToSec converts a ledger timestamp in microseconds to seconds.
func MicrosToSec(micros uint64) uint64 {
	return micros / 1_000_000
}
