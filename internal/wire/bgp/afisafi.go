package bgp

// Address family identifiers and subsequent address family identifiers
// used by MP_REACH_NLRI/MP_UNREACH_NLRI (RFC 4760) and FlowSpec (RFC 5575).
const (
	AFIIPv4 uint16 = 1
	AFIIPv6 uint16 = 2

	SAFIUnicast         uint8 = 1
	SAFIFlowspecUnicast uint8 = 133
	SAFIFlowspecVPN     uint8 = 134
)
