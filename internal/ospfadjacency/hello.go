// Package ospfadjacency realizes the OSPF Hello protocol, DR/BDR
// election, and Database Description exchange of spec section 4.7,
// driving internal/ospffsm's pure neighbor FSM with the events those
// procedures detect.
package ospfadjacency

import (
	"github.com/route-beacon/ribagent/internal/ospffsm"
	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

// InterfaceConfig is the set of Hello parameters an interface must agree
// on with a neighbor (spec section 4.7): a mismatch is logged and the
// Hello is dropped rather than accepted.
type InterfaceConfig struct {
	NetworkMask   uint32
	HelloInterval uint16
	DeadInterval  uint32
	AreaID        uint32
	Network       ospffsm.NetworkKind
}

// HelloMismatch names which field failed to match, for logging; zero
// value means the Hello was accepted.
type HelloMismatch int

const (
	MismatchNone HelloMismatch = iota
	MismatchNetworkMask
	MismatchHelloInterval
	MismatchDeadInterval
	MismatchAreaID
)

// ValidateHello checks hello against cfg per spec section 4.7's match
// rules. The network mask is not checked on point-to-point links, where
// it carries no meaning.
func ValidateHello(cfg InterfaceConfig, hello ospf.HelloPacket, areaID uint32) HelloMismatch {
	if areaID != cfg.AreaID {
		return MismatchAreaID
	}
	if cfg.Network != ospffsm.PointToPoint && hello.NetworkMask != cfg.NetworkMask {
		return MismatchNetworkMask
	}
	if hello.HelloInterval != cfg.HelloInterval {
		return MismatchHelloInterval
	}
	if hello.RouterDeadInterval != cfg.DeadInterval {
		return MismatchDeadInterval
	}
	return MismatchNone
}

// TwoWayDetected implements the 2-Way detector of spec section 4.7: our
// own router id must appear in the neighbor's Hello neighbor list.
func TwoWayDetected(hello ospf.HelloPacket, localRouterID uint32) bool {
	return hello.HasNeighbor(localRouterID)
}

// Neighbor is one OSPF neighbor's adjacency state, owned exclusively by
// the interface task that runs the Hello/DD/flooding procedures for it
// (spec section 5's single-owner discipline).
type Neighbor struct {
	RouterID uint32
	Address  string
	Priority uint8
	DR       uint32
	BDR      uint32
	FSM      *ospffsm.FSM
	IsDR     bool
	IsBDR    bool
}

func NewNeighbor(routerID uint32, address string) *Neighbor {
	return &Neighbor{RouterID: routerID, Address: address, FSM: ospffsm.New()}
}

// ApplyHello folds a received Hello into n's state and returns the
// sequence of FSM events it implies: HelloReceived always; then
// TwoWayReceived or OneWay depending on the 2-Way detector; AdjOK is
// left for the caller to inject once DR/BDR election (if any) settles,
// since that decision needs the full neighbor set, not just one Hello.
func (n *Neighbor) ApplyHello(hello ospf.HelloPacket, localRouterID uint32) []ospffsm.Event {
	n.Priority = hello.RouterPriority
	n.DR = hello.DesignatedRouter
	n.BDR = hello.BackupDesignatedRouter
	n.IsDR = hello.DesignatedRouter == n.RouterID
	n.IsBDR = hello.BackupDesignatedRouter == n.RouterID

	events := []ospffsm.Event{ospffsm.HelloReceived}
	if TwoWayDetected(hello, localRouterID) {
		events = append(events, ospffsm.TwoWayReceived)
	} else {
		events = append(events, ospffsm.OneWay)
	}
	return events
}
