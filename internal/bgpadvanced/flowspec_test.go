package bgpadvanced

import "testing"

func mp(a byte, b byte, c byte, d byte, bits int) *maskedPrefix {
	return &maskedPrefix{Addr: [4]byte{a, b, c, d}, Bits: bits}
}

func TestFlowspecTable_MatchesHighestPriority(t *testing.T) {
	table := NewFlowspecTable()
	table.Insert(FlowspecRule{Priority: 10, DestPrefix: mp(10, 0, 0, 0, 8), Action: FlowspecAction{Kind: ActionPass}})
	table.Insert(FlowspecRule{Priority: 5, DestPrefix: mp(10, 0, 0, 0, 8), Action: FlowspecAction{Kind: ActionDrop}})

	pkt := PacketDescriptor{DestAddr: [4]byte{10, 1, 2, 3}, DestBits: 32}
	got, ok := table.Match(pkt)
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Action.Kind != ActionDrop {
		t.Fatalf("got action %v, want Drop (priority 5 beats priority 10)", got.Action.Kind)
	}
}

func TestFlowspecTable_NoMatchReturnsFalse(t *testing.T) {
	table := NewFlowspecTable()
	table.Insert(FlowspecRule{Priority: 1, DestPrefix: mp(10, 0, 0, 0, 8)})
	pkt := PacketDescriptor{DestAddr: [4]byte{192, 0, 2, 1}, DestBits: 32}
	if _, ok := table.Match(pkt); ok {
		t.Fatal("expected no match for a packet outside the destination prefix")
	}
}

func TestFlowspecRule_ConjunctionOfConditions(t *testing.T) {
	rule := FlowspecRule{
		Priority:  1,
		Protocols: []uint8{6},
		DstPorts:  []PortRange{{Low: 443, High: 443}},
		Action:    FlowspecAction{Kind: ActionDrop},
	}
	table := NewFlowspecTable()
	table.Insert(rule)

	matching := PacketDescriptor{Protocol: 6, DstPort: 443}
	if _, ok := table.Match(matching); !ok {
		t.Fatal("expected match: protocol and port both satisfied")
	}

	wrongPort := PacketDescriptor{Protocol: 6, DstPort: 80}
	if _, ok := table.Match(wrongPort); ok {
		t.Fatal("expected no match: destination port condition fails the conjunction")
	}

	wrongProto := PacketDescriptor{Protocol: 17, DstPort: 443}
	if _, ok := table.Match(wrongProto); ok {
		t.Fatal("expected no match: protocol condition fails the conjunction")
	}
}

func TestFlowspecRule_AbsentConditionAlwaysMatches(t *testing.T) {
	rule := FlowspecRule{Priority: 1, Action: FlowspecAction{Kind: ActionDrop}}
	table := NewFlowspecTable()
	table.Insert(rule)
	if _, ok := table.Match(PacketDescriptor{Protocol: 253, DstPort: 9999}); !ok {
		t.Fatal("a rule with no conditions set should match any packet")
	}
}

func TestFlowspecRule_TCPFlagsMaskedMatch(t *testing.T) {
	rule := FlowspecRule{
		Priority: 1,
		TCPFlags: &tcpFlagsMatch{Mask: 0x02, Value: 0x02}, // SYN set
		Action:   FlowspecAction{Kind: ActionDrop},
	}
	table := NewFlowspecTable()
	table.Insert(rule)

	synAck := PacketDescriptor{TCPFlags: 0x12} // SYN+ACK
	if _, ok := table.Match(synAck); !ok {
		t.Fatal("expected match: SYN bit set regardless of other flags")
	}
	ackOnly := PacketDescriptor{TCPFlags: 0x10}
	if _, ok := table.Match(ackOnly); ok {
		t.Fatal("expected no match: SYN bit not set")
	}
}

func TestMaskedPrefix_ZeroLengthMatchesEverything(t *testing.T) {
	m := mp(0, 0, 0, 0, 0)
	if !m.matches([4]byte{203, 0, 113, 5}, 32) {
		t.Fatal("a /0 prefix condition should match any address")
	}
}
