package bgp

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// Capability codes (RFC 5492 and extensions).
const (
	CapMultiprotocol      uint8 = 1
	CapRouteRefresh       uint8 = 2
	CapGracefulRestart    uint8 = 64
	CapFourOctetASN       uint8 = 65
	CapAddPath            uint8 = 69
)

// Capability is one decoded OPEN optional-parameter capability.
type Capability struct {
	Code  uint8
	Value []byte
}

// MultiprotocolValue decodes a CapMultiprotocol value (AFI/SAFI pair).
type MultiprotocolValue struct {
	AFI  uint16
	SAFI uint8
}

func DecodeMultiprotocol(c Capability) (MultiprotocolValue, error) {
	if len(c.Value) != 4 {
		return MultiprotocolValue{}, fmt.Errorf("%w: MP capability length %d, want 4", rerrors.ErrWireFormat, len(c.Value))
	}
	return MultiprotocolValue{
		AFI:  binary.BigEndian.Uint16(c.Value[0:2]),
		SAFI: c.Value[3],
	}, nil
}

func EncodeMultiprotocol(v MultiprotocolValue) Capability {
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:2], v.AFI)
	b[2] = 0
	b[3] = v.SAFI
	return Capability{Code: CapMultiprotocol, Value: b}
}

func EncodeFourOctetASN(asn uint32) Capability {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, asn)
	return Capability{Code: CapFourOctetASN, Value: b}
}

func DecodeFourOctetASN(c Capability) (uint32, error) {
	if len(c.Value) != 4 {
		return 0, fmt.Errorf("%w: four-octet ASN capability length %d, want 4", rerrors.ErrWireFormat, len(c.Value))
	}
	return binary.BigEndian.Uint32(c.Value), nil
}

// GracefulRestartValue decodes the RFC 4724 graceful restart capability:
// a restart-time plus a list of (AFI, SAFI, forwarding-preserved) entries.
type GracefulRestartValue struct {
	RestartTimeSeconds uint16
	RestartFlagSet     bool
	AFs                []GracefulRestartAF
}

type GracefulRestartAF struct {
	AFI               uint16
	SAFI              uint8
	ForwardingPreserved bool
}

func DecodeGracefulRestart(c Capability) (GracefulRestartValue, error) {
	if len(c.Value) < 2 {
		return GracefulRestartValue{}, fmt.Errorf("%w: graceful restart capability truncated", rerrors.ErrWireFormat)
	}
	restartWord := binary.BigEndian.Uint16(c.Value[0:2])
	v := GracefulRestartValue{
		RestartTimeSeconds: restartWord & 0x0FFF,
		RestartFlagSet:     restartWord&0x8000 != 0,
	}
	offset := 2
	for offset+4 <= len(c.Value) {
		v.AFs = append(v.AFs, GracefulRestartAF{
			AFI:                 binary.BigEndian.Uint16(c.Value[offset : offset+2]),
			SAFI:                c.Value[offset+2],
			ForwardingPreserved: c.Value[offset+3]&0x80 != 0,
		})
		offset += 4
	}
	return v, nil
}

func EncodeGracefulRestart(v GracefulRestartValue) Capability {
	out := make([]byte, 2, 2+4*len(v.AFs))
	word := v.RestartTimeSeconds & 0x0FFF
	if v.RestartFlagSet {
		word |= 0x8000
	}
	binary.BigEndian.PutUint16(out[0:2], word)
	for _, af := range v.AFs {
		var entry [4]byte
		binary.BigEndian.PutUint16(entry[0:2], af.AFI)
		entry[2] = af.SAFI
		if af.ForwardingPreserved {
			entry[3] = 0x80
		}
		out = append(out, entry[:]...)
	}
	return Capability{Code: CapGracefulRestart, Value: out}
}

// EncodeCapabilities wraps each capability as an OPEN optional parameter
// (type 2) containing one capability TLV (code, length, value), per RFC 5492.
func EncodeCapabilities(caps []Capability) []byte {
	var out []byte
	for _, c := range caps {
		tlv := append([]byte{c.Code, byte(len(c.Value))}, c.Value...)
		out = append(out, 2, byte(len(tlv)))
		out = append(out, tlv...)
	}
	return out
}

// DecodeCapabilities parses the optional-parameters section of an OPEN
// message, returning every capability TLV found inside type-2 parameters.
func DecodeCapabilities(data []byte) ([]Capability, error) {
	var out []Capability
	offset := 0
	for offset < len(data) {
		if offset+2 > len(data) {
			return nil, fmt.Errorf("%w: optional parameter header truncated", rerrors.ErrWireFormat)
		}
		paramType := data[offset]
		paramLen := int(data[offset+1])
		offset += 2
		if offset+paramLen > len(data) {
			return nil, fmt.Errorf("%w: optional parameter value truncated", rerrors.ErrWireFormat)
		}
		value := data[offset : offset+paramLen]
		offset += paramLen
		if paramType != 2 {
			continue
		}
		capOffset := 0
		for capOffset < len(value) {
			if capOffset+2 > len(value) {
				return nil, fmt.Errorf("%w: capability header truncated", rerrors.ErrWireFormat)
			}
			code := value[capOffset]
			clen := int(value[capOffset+1])
			capOffset += 2
			if capOffset+clen > len(value) {
				return nil, fmt.Errorf("%w: capability value truncated", rerrors.ErrWireFormat)
			}
			cv := make([]byte, clen)
			copy(cv, value[capOffset:capOffset+clen])
			capOffset += clen
			out = append(out, Capability{Code: code, Value: cv})
		}
	}
	return out, nil
}
