package bgp

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

const bgpVersion uint8 = 4

// OpenMessage is the RFC 4271 section 4.2 OPEN message. ASN is always the
// 4-byte value; EncodeOpen always sends it in the four-octet-ASN capability
// and, when it does not fit in 2 bytes, puts the AS_TRANS placeholder
// (23456) in the fixed field. DecodeOpen prefers the capability's value
// over the fixed field when the capability is present.
type OpenMessage struct {
	ASN             uint32
	HoldTime        uint16
	RouterID        netip.Addr
	Capabilities    []Capability
}

func (OpenMessage) Type() uint8 { return MsgOpen }

const asTrans uint32 = 23456

// EncodeOpen serializes an OPEN message body (without the 19-byte header).
func EncodeOpen(m OpenMessage) ([]byte, error) {
	if !m.RouterID.Is4() {
		return nil, fmt.Errorf("%w: OPEN BGP Identifier must be an IPv4 address", rerrors.ErrWireFormat)
	}
	caps := append([]Capability{EncodeFourOctetASN(m.ASN)}, m.Capabilities...)
	params := EncodeCapabilities(caps)

	fixedASN := m.ASN
	if fixedASN > 0xFFFF {
		fixedASN = asTrans
	}

	out := make([]byte, 10, 10+len(params))
	out[0] = bgpVersion
	binary.BigEndian.PutUint16(out[1:3], uint16(fixedASN))
	binary.BigEndian.PutUint16(out[3:5], m.HoldTime)
	rid := m.RouterID.As4()
	copy(out[5:9], rid[:])
	out[9] = byte(len(params))
	out = append(out, params...)
	return out, nil
}

// DecodeOpen parses an OPEN message body.
func DecodeOpen(data []byte) (OpenMessage, error) {
	if len(data) < 10 {
		return OpenMessage{}, fmt.Errorf("%w: OPEN truncated", rerrors.ErrWireFormat)
	}
	if data[0] != bgpVersion {
		return OpenMessage{}, fmt.Errorf("%w: unsupported BGP version %d", rerrors.ErrProtocolViolation, data[0])
	}
	fixedASN := uint32(binary.BigEndian.Uint16(data[1:3]))
	holdTime := binary.BigEndian.Uint16(data[3:5])
	var ridBytes [4]byte
	copy(ridBytes[:], data[5:9])
	optLen := int(data[9])
	if 10+optLen > len(data) {
		return OpenMessage{}, fmt.Errorf("%w: OPEN optional parameters truncated", rerrors.ErrWireFormat)
	}
	caps, err := DecodeCapabilities(data[10 : 10+optLen])
	if err != nil {
		return OpenMessage{}, err
	}

	asn := fixedASN
	var remaining []Capability
	for _, c := range caps {
		if c.Code == CapFourOctetASN {
			asn, err = DecodeFourOctetASN(c)
			if err != nil {
				return OpenMessage{}, err
			}
			continue
		}
		remaining = append(remaining, c)
	}

	return OpenMessage{
		ASN:          asn,
		HoldTime:     holdTime,
		RouterID:     netip.AddrFrom4(ridBytes),
		Capabilities: remaining,
	}, nil
}

// HasCapability reports whether the OPEN advertised a capability with the
// given code.
func (m OpenMessage) HasCapability(code uint8) bool {
	for _, c := range m.Capabilities {
		if c.Code == code {
			return true
		}
	}
	return false
}
