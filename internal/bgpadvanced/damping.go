// Package bgpadvanced implements the BGP modules that interlock with
// the core without changing its invariants (spec section 4.6): route
// flap damping (RFC 2439), graceful restart bookkeeping (RFC 4724),
// RPKI origin validation (RFC 6811), a FlowSpec rule matcher (RFC
// 5575), and route reflection (RFC 4456).
package bgpadvanced

import (
	"math"
	"time"

	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

// Damping config defaults (spec section 4.6).
const (
	DefaultHalfLife        = 900 * time.Second
	DefaultSuppressThresh  = 3000.0
	DefaultReuseThresh     = 750.0
	DefaultMaxSuppressTime = 3600 * time.Second
	WithdrawPenalty        = 1000.0
	AttrChangePenalty      = 500.0
)

// DampingConfig holds the tunables; zero value is invalid, use
// DefaultDampingConfig for the spec defaults.
type DampingConfig struct {
	HalfLife        time.Duration
	SuppressThresh  float64
	ReuseThresh     float64
	MaxSuppressTime time.Duration
}

func DefaultDampingConfig() DampingConfig {
	return DampingConfig{
		HalfLife:        DefaultHalfLife,
		SuppressThresh:  DefaultSuppressThresh,
		ReuseThresh:     DefaultReuseThresh,
		MaxSuppressTime: DefaultMaxSuppressTime,
	}
}

// dampState is one prefix's flap-damping bookkeeping.
type dampState struct {
	penalty      float64
	lastUpdate   time.Time
	suppressedAt time.Time
	suppressed   bool
}

// Damping tracks per-prefix flap penalty, keyed by prefix, for
// eBGP-learned routes (spec section 4.6 default scope).
type Damping struct {
	cfg    DampingConfig
	states map[bgp.Prefix]*dampState
}

func NewDamping(cfg DampingConfig) *Damping {
	return &Damping{cfg: cfg, states: make(map[bgp.Prefix]*dampState)}
}

func (d *Damping) decay(s *dampState, now time.Time) {
	elapsed := now.Sub(s.lastUpdate)
	if elapsed <= 0 {
		return
	}
	halfLives := elapsed.Seconds() / d.cfg.HalfLife.Seconds()
	s.penalty *= math.Pow(0.5, halfLives)
	s.lastUpdate = now
}

func (d *Damping) get(prefix bgp.Prefix, now time.Time) *dampState {
	s, ok := d.states[prefix]
	if !ok {
		s = &dampState{lastUpdate: now}
		d.states[prefix] = s
	}
	return s
}

// RecordWithdraw applies the withdraw penalty and returns whether the
// prefix is now suppressed.
func (d *Damping) RecordWithdraw(prefix bgp.Prefix, now time.Time) bool {
	return d.addPenalty(prefix, WithdrawPenalty, now)
}

// RecordAttributeChange applies the attribute-change penalty and
// returns whether the prefix is now suppressed.
func (d *Damping) RecordAttributeChange(prefix bgp.Prefix, now time.Time) bool {
	return d.addPenalty(prefix, AttrChangePenalty, now)
}

func (d *Damping) addPenalty(prefix bgp.Prefix, amount float64, now time.Time) bool {
	s := d.get(prefix, now)
	d.decay(s, now)
	s.penalty += amount
	if !s.suppressed && s.penalty >= d.cfg.SuppressThresh {
		s.suppressed = true
		s.suppressedAt = now
	}
	return s.suppressed
}

// IsSuppressed reports the prefix's current suppression state,
// clearing it if the penalty has decayed below the reuse threshold or
// the hard max-suppress-time cap has elapsed.
func (d *Damping) IsSuppressed(prefix bgp.Prefix, now time.Time) bool {
	s, ok := d.states[prefix]
	if !ok {
		return false
	}
	d.decay(s, now)
	if !s.suppressed {
		return false
	}
	if now.Sub(s.suppressedAt) >= d.cfg.MaxSuppressTime {
		s.suppressed = false
		s.penalty = 0
		return false
	}
	if s.penalty < d.cfg.ReuseThresh {
		s.suppressed = false
		return false
	}
	return true
}

// Clear removes all damping state for a prefix (used when a route is
// permanently withdrawn by policy rather than by a flap).
func (d *Damping) Clear(prefix bgp.Prefix) { delete(d.states, prefix) }
