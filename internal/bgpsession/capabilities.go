package bgpsession

import (
	"net/netip"

	"github.com/route-beacon/ribagent/internal/bgpadvanced"
	"github.com/route-beacon/ribagent/internal/config"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

// BuildOpenMessage assembles the OPEN message spec section 4.4 sends to
// open a session: the four-octet-ASN capability is added unconditionally
// by bgp.EncodeOpen, so only the optional MP-BGP (RFC 4760), FlowSpec
// (RFC 5575), and graceful restart (RFC 4724) capabilities are added
// here, gated on the peer's configuration.
func BuildOpenMessage(localAS uint32, holdTime uint16, routerID netip.Addr, peer config.PeerConfig, restartTime uint16) bgp.OpenMessage {
	caps := []bgp.Capability{
		bgp.EncodeMultiprotocol(bgp.MultiprotocolValue{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIUnicast}),
	}
	if peer.EnableFlowspec {
		caps = append(caps, bgp.EncodeMultiprotocol(bgp.MultiprotocolValue{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIFlowspecUnicast}))
	}
	if peer.EnableGracefulRestart {
		caps = append(caps, bgp.EncodeGracefulRestart(bgp.GracefulRestartValue{
			RestartTimeSeconds: restartTime,
			AFs: []bgp.GracefulRestartAF{
				{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIUnicast, ForwardingPreserved: true},
			},
		}))
	}
	return bgp.OpenMessage{
		ASN:          localAS,
		HoldTime:     holdTime,
		RouterID:     routerID,
		Capabilities: caps,
	}
}

// NegotiatedCapabilities is what the two OPENs of a session agreed on.
type NegotiatedCapabilities struct {
	FlowspecUnicast bool
	GracefulRestart *bgp.GracefulRestartValue
}

// Negotiate compares the local OPEN this router sent against the peer's
// OPEN: RFC 4271 does not require symmetric capabilities, but this core
// only turns on FlowSpec/graceful-restart handling for a session when
// both sides advertised it.
func Negotiate(local, peer bgp.OpenMessage) NegotiatedCapabilities {
	var out NegotiatedCapabilities
	out.FlowspecUnicast = hasMP(local, bgp.SAFIFlowspecUnicast) && hasMP(peer, bgp.SAFIFlowspecUnicast)

	_, localOK := findGracefulRestart(local)
	peerGR, peerOK := findGracefulRestart(peer)
	if localOK && peerOK {
		out.GracefulRestart = &peerGR
	}
	return out
}

func hasMP(open bgp.OpenMessage, safi uint8) bool {
	for _, c := range open.Capabilities {
		if c.Code != bgp.CapMultiprotocol {
			continue
		}
		v, err := bgp.DecodeMultiprotocol(c)
		if err == nil && v.AFI == bgp.AFIIPv4 && v.SAFI == safi {
			return true
		}
	}
	return false
}

func findGracefulRestart(open bgp.OpenMessage) (bgp.GracefulRestartValue, bool) {
	for _, c := range open.Capabilities {
		if c.Code != bgp.CapGracefulRestart {
			continue
		}
		v, err := bgp.DecodeGracefulRestart(c)
		if err == nil {
			return v, true
		}
	}
	return bgp.GracefulRestartValue{}, false
}

// restartAddressFamilies converts a negotiated graceful-restart
// capability's AFI/SAFI entries into the ForwardingPreserved map
// internal/bgpadvanced.RestartState expects.
func restartAddressFamilies(v bgp.GracefulRestartValue) map[bgpadvanced.AddressFamily]bool {
	out := make(map[bgpadvanced.AddressFamily]bool, len(v.AFs))
	for _, af := range v.AFs {
		out[bgpadvanced.AddressFamily{AFI: af.AFI, SAFI: af.SAFI}] = af.ForwardingPreserved
	}
	return out
}
