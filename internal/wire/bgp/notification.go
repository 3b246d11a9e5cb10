package bgp

import (
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// NOTIFICATION error codes (RFC 4271 section 4.5 and RFC 4486).
const (
	ErrCodeMessageHeader     uint8 = 1
	ErrCodeOpenMessage       uint8 = 2
	ErrCodeUpdateMessage     uint8 = 3
	ErrCodeHoldTimerExpired  uint8 = 4
	ErrCodeFSM               uint8 = 5
	ErrCodeCease             uint8 = 6
)

// Message Header error subcodes.
const (
	SubcodeConnectionNotSynchronized uint8 = 1
	SubcodeBadMessageLength          uint8 = 2
	SubcodeBadMessageType            uint8 = 3
)

// OPEN Message error subcodes.
const (
	SubcodeUnsupportedVersionNumber     uint8 = 1
	SubcodeBadPeerAS                    uint8 = 2
	SubcodeBadBGPIdentifier             uint8 = 3
	SubcodeUnsupportedOptionalParameter uint8 = 4
	SubcodeUnacceptableHoldTime         uint8 = 6
)

// UPDATE Message error subcodes.
const (
	SubcodeMalformedAttributeList    uint8 = 1
	SubcodeUnrecognizedWellKnownAttr uint8 = 2
	SubcodeMissingWellKnownAttr      uint8 = 3
	SubcodeAttributeFlagsError       uint8 = 4
	SubcodeAttributeLengthError      uint8 = 5
	SubcodeInvalidOriginAttribute    uint8 = 6
	SubcodeInvalidNextHopAttribute   uint8 = 8
	SubcodeOptionalAttributeError    uint8 = 9
	SubcodeInvalidNetworkField       uint8 = 10
	SubcodeMalformedASPath           uint8 = 11
)

// Cease subcodes (RFC 4486).
const (
	SubcodeMaxPrefixesReached  uint8 = 1
	SubcodeAdministrativeShutdown uint8 = 2
	SubcodePeerDeconfigured    uint8 = 3
	SubcodeAdministrativeReset uint8 = 4
	SubcodeConnectionRejected  uint8 = 5
	SubcodeOtherConfigChange   uint8 = 6
	SubcodeConnectionCollisionResolution uint8 = 7
	SubcodeOutOfResources      uint8 = 8

)

// NotificationMessage is the RFC 4271 section 4.5 NOTIFICATION message.
type NotificationMessage struct {
	ErrorCode    uint8
	ErrorSubcode uint8
	Data         []byte
}

func (NotificationMessage) Type() uint8 { return MsgNotification }

func EncodeNotification(m NotificationMessage) []byte {
	out := make([]byte, 2, 2+len(m.Data))
	out[0] = m.ErrorCode
	out[1] = m.ErrorSubcode
	out = append(out, m.Data...)
	return out
}

func DecodeNotification(data []byte) (NotificationMessage, error) {
	if len(data) < 2 {
		return NotificationMessage{}, fmt.Errorf("%w: NOTIFICATION truncated", rerrors.ErrWireFormat)
	}
	d := make([]byte, len(data)-2)
	copy(d, data[2:])
	return NotificationMessage{ErrorCode: data[0], ErrorSubcode: data[1], Data: d}, nil
}

// KeepaliveMessage carries no body (RFC 4271 section 4.4).
type KeepaliveMessage struct{}

func (KeepaliveMessage) Type() uint8 { return MsgKeepalive }

func EncodeKeepalive() []byte { return nil }

func DecodeKeepalive(data []byte) (KeepaliveMessage, error) {
	if len(data) != 0 {
		return KeepaliveMessage{}, fmt.Errorf("%w: KEEPALIVE must have an empty body", rerrors.ErrWireFormat)
	}
	return KeepaliveMessage{}, nil
}

// RouteRefreshMessage is the RFC 2918 ROUTE-REFRESH message.
type RouteRefreshMessage struct {
	AFI  uint16
	SAFI uint8
}

func (RouteRefreshMessage) Type() uint8 { return MsgRouteRefresh }

func EncodeRouteRefresh(m RouteRefreshMessage) []byte {
	out := make([]byte, 4)
	out[0] = byte(m.AFI >> 8)
	out[1] = byte(m.AFI)
	out[2] = 0
	out[3] = m.SAFI
	return out
}

func DecodeRouteRefresh(data []byte) (RouteRefreshMessage, error) {
	if len(data) != 4 {
		return RouteRefreshMessage{}, fmt.Errorf("%w: ROUTE-REFRESH length %d, want 4", rerrors.ErrWireFormat, len(data))
	}
	afi := uint16(data[0])<<8 | uint16(data[1])
	return RouteRefreshMessage{AFI: afi, SAFI: data[3]}, nil
}
