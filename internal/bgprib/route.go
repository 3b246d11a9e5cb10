// Package bgprib holds the Adj-RIB-In, Loc-RIB, and Adj-RIB-Out primitives
// of spec section 4.2: plain in-memory maps behind a small, explicit
// operation set. No locking lives here — the decision process (see
// internal/bgpdecision) is the single owner of these structures and
// callers reach them only from that owning task, per the single-owner
// discipline of spec section 5.
package bgprib

import (
	"net/netip"
	"time"

	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

// SourceTag identifies how a route entered the RIB (spec section 3).
type SourceTag string

const (
	SourceFromPeer         SourceTag = "from-peer"
	SourceLocalOrigination SourceTag = "local-origination"
	SourceAggregate        SourceTag = "aggregate"
)

// RPKIState is the RFC 6811 origin-validation outcome attached to a route.
type RPKIState string

const (
	RPKIValid    RPKIState = "Valid"
	RPKIInvalid  RPKIState = "Invalid"
	RPKINotFound RPKIState = "NotFound"
)

// PeerIdentity names the peer a route was learned from or is destined to.
type PeerIdentity struct {
	Address  netip.Addr
	RouterID netip.Addr
}

// BgpRoute is one route as held in Adj-RIB-In, Loc-RIB, or Adj-RIB-Out
// (spec section 3).
type BgpRoute struct {
	Prefix     bgp.Prefix
	Attributes bgp.AttributeMap
	Peer       PeerIdentity
	Source     SourceTag
	Timestamp  time.Time
	Best       bool
	Stale      bool
	RPKI       RPKIState
}

// Clone returns a deep-enough copy for safe mutation by egress transforms:
// the attribute map is cloned (see bgp.AttributeMap.Clone), the rest are
// value fields.
func (r BgpRoute) Clone() BgpRoute {
	cp := r
	cp.Attributes = r.Attributes.Clone()
	return cp
}
