package bgpadvanced

import "sort"

// FlowspecAction is the effect a matched rule applies to a packet (RFC
// 5575 §5's traffic-filtering/QoS actions).
type FlowspecAction struct {
	Kind       FlowspecActionKind
	RateBps    uint64
	DSCP       uint8
	RedirectTo string
}

type FlowspecActionKind int

const (
	ActionPass FlowspecActionKind = iota
	ActionDrop
	ActionRateLimit
	ActionRedirect
	ActionMarkDSCP
	ActionSample
)

// PortRange is an inclusive [Low, High] port match; Low == High matches
// a single port.
type PortRange struct{ Low, High uint16 }

func (r PortRange) contains(p uint16) bool { return p >= r.Low && p <= r.High }

// PacketDescriptor is the 5-tuple-plus-metadata a FlowspecRule is matched
// against.
type PacketDescriptor struct {
	DestAddr [4]byte
	DestBits int
	SrcAddr  [4]byte
	SrcBits  int
	Protocol uint8
	SrcPort  uint16
	DstPort  uint16
	ICMPType uint8
	ICMPCode uint8
	TCPFlags uint8
	Length   uint16
	DSCP     uint8
}

// FlowspecRule is a conjunction of match conditions and one action (spec
// section 4.6). A nil/zero-value condition field is absent and always
// matches; present conditions are themselves disjunctions (any listed
// value matches), per RFC 5575.
type FlowspecRule struct {
	Priority   int
	DestPrefix *maskedPrefix
	SrcPrefix  *maskedPrefix
	Protocols  []uint8
	SrcPorts   []PortRange
	DstPorts   []PortRange
	ICMPTypes  []uint8
	ICMPCodes  []uint8
	TCPFlags   *tcpFlagsMatch
	Lengths    []PortRange
	DSCPs      []uint8
	Action     FlowspecAction
}

type maskedPrefix struct {
	Addr [4]byte
	Bits int
}

// tcpFlagsMatch matches when packet.TCPFlags&Mask == Value.
type tcpFlagsMatch struct {
	Mask  uint8
	Value uint8
}

func (m maskedPrefix) matches(addr [4]byte, addrBits int) bool {
	if m.Bits > addrBits {
		return false
	}
	for i := 0; i < m.Bits; i++ {
		byteIdx, bitIdx := i/8, 7-(i%8)
		mBit := (m.Addr[byteIdx] >> bitIdx) & 1
		aBit := (addr[byteIdx] >> bitIdx) & 1
		if mBit != aBit {
			return false
		}
	}
	return true
}

func matchU8(values []uint8, v uint8) bool {
	if len(values) == 0 {
		return true
	}
	for _, want := range values {
		if want == v {
			return true
		}
	}
	return false
}

func matchPort(ranges []PortRange, v uint16) bool {
	if len(ranges) == 0 {
		return true
	}
	for _, r := range ranges {
		if r.contains(v) {
			return true
		}
	}
	return false
}

func (r FlowspecRule) matches(pkt PacketDescriptor) bool {
	if r.DestPrefix != nil && !r.DestPrefix.matches(pkt.DestAddr, pkt.DestBits) {
		return false
	}
	if r.SrcPrefix != nil && !r.SrcPrefix.matches(pkt.SrcAddr, pkt.SrcBits) {
		return false
	}
	if !matchU8(r.Protocols, pkt.Protocol) {
		return false
	}
	if !matchPort(r.SrcPorts, pkt.SrcPort) {
		return false
	}
	if !matchPort(r.DstPorts, pkt.DstPort) {
		return false
	}
	if !matchU8(r.ICMPTypes, pkt.ICMPType) {
		return false
	}
	if !matchU8(r.ICMPCodes, pkt.ICMPCode) {
		return false
	}
	if r.TCPFlags != nil && pkt.TCPFlags&r.TCPFlags.Mask != r.TCPFlags.Value {
		return false
	}
	if !matchPort(r.Lengths, pkt.Length) {
		return false
	}
	if !matchU8(r.DSCPs, pkt.DSCP) {
		return false
	}
	return true
}

// FlowspecTable holds rules indexed by priority (lower value = higher
// priority, spec section 4.6).
type FlowspecTable struct {
	rules []FlowspecRule
}

func NewFlowspecTable() *FlowspecTable { return &FlowspecTable{} }

// Insert appends r and keeps the table sorted by priority (stable, so
// rules of equal priority stay in insertion order). It never replaces an
// existing rule: a second rule with the same priority and conditions is
// kept as a distinct rule, and the table has no method to remove one.
func (t *FlowspecTable) Insert(r FlowspecRule) {
	t.rules = append(t.rules, r)
	sort.SliceStable(t.rules, func(i, j int) bool { return t.rules[i].Priority < t.rules[j].Priority })
}

// Match returns the highest-priority rule matching pkt, or false if none
// apply.
func (t *FlowspecTable) Match(pkt PacketDescriptor) (FlowspecRule, bool) {
	for _, r := range t.rules {
		if r.matches(pkt) {
			return r, true
		}
	}
	return FlowspecRule{}, false
}

// Apply returns the action rule specifies; it is a pure lookup, kept
// separate from Match so callers can log the matched rule before acting.
func Apply(rule FlowspecRule) FlowspecAction { return rule.Action }
