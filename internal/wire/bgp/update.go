package bgp

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// UpdateMessage is the RFC 4271 section 4.3 UPDATE message: withdrawn
// IPv4 routes, path attributes (which may themselves carry MP_REACH/
// MP_UNREACH NLRI for other address families), and advertised IPv4 NLRI.
type UpdateMessage struct {
	WithdrawnRoutes []Prefix
	Attributes      AttributeMap
	NLRI            []Prefix
}

func (UpdateMessage) Type() uint8 { return MsgUpdate }

// EncodeUpdate serializes an UPDATE message body.
func EncodeUpdate(m UpdateMessage) ([]byte, error) {
	var withdrawn []byte
	for _, p := range m.WithdrawnRoutes {
		withdrawn = append(withdrawn, EncodeNLRI(p)...)
	}
	if len(withdrawn) > 0xFFFF {
		return nil, fmt.Errorf("%w: withdrawn routes length %d exceeds uint16", rerrors.ErrWireFormat, len(withdrawn))
	}

	attrs, err := EncodeAttributes(m.Attributes)
	if err != nil {
		return nil, err
	}
	if len(attrs) > 0xFFFF {
		return nil, fmt.Errorf("%w: path attributes length %d exceeds uint16", rerrors.ErrWireFormat, len(attrs))
	}

	var nlri []byte
	for _, p := range m.NLRI {
		nlri = append(nlri, EncodeNLRI(p)...)
	}

	out := make([]byte, 2, 2+len(withdrawn)+2+len(attrs)+len(nlri))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(withdrawn)))
	out = append(out, withdrawn...)
	var attrLenBuf [2]byte
	binary.BigEndian.PutUint16(attrLenBuf[:], uint16(len(attrs)))
	out = append(out, attrLenBuf[:]...)
	out = append(out, attrs...)
	out = append(out, nlri...)
	return out, nil
}

// DecodeUpdate parses an UPDATE message body.
func DecodeUpdate(data []byte) (UpdateMessage, error) {
	if len(data) < 2 {
		return UpdateMessage{}, fmt.Errorf("%w: UPDATE truncated before withdrawn-routes length", rerrors.ErrWireFormat)
	}
	withdrawnLen := int(binary.BigEndian.Uint16(data[0:2]))
	offset := 2
	if offset+withdrawnLen > len(data) {
		return UpdateMessage{}, fmt.Errorf("%w: UPDATE withdrawn routes truncated", rerrors.ErrWireFormat)
	}
	withdrawn, err := DecodeNLRIList(data[offset:offset+withdrawnLen], false)
	if err != nil {
		return UpdateMessage{}, err
	}
	offset += withdrawnLen

	if offset+2 > len(data) {
		return UpdateMessage{}, fmt.Errorf("%w: UPDATE truncated before path-attributes length", rerrors.ErrWireFormat)
	}
	attrLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if offset+attrLen > len(data) {
		return UpdateMessage{}, fmt.Errorf("%w: UPDATE path attributes truncated", rerrors.ErrWireFormat)
	}
	attrs, err := DecodeAttributes(data[offset : offset+attrLen])
	if err != nil {
		return UpdateMessage{}, err
	}
	offset += attrLen

	nlri, err := DecodeNLRIList(data[offset:], false)
	if err != nil {
		return UpdateMessage{}, err
	}

	return UpdateMessage{
		WithdrawnRoutes: withdrawn,
		Attributes:      attrs,
		NLRI:            nlri,
	}, nil
}

// IsEndOfRIBMarker reports whether m is the empty UPDATE that signals
// completion of initial table advertisement (RFC 4724 section 2).
func (m UpdateMessage) IsEndOfRIBMarker() bool {
	return len(m.WithdrawnRoutes) == 0 && len(m.NLRI) == 0 && len(m.Attributes) == 0
}
