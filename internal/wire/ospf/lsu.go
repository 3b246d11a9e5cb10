package ospf

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// LSA is a fully decoded link-state advertisement: its header plus the
// raw, still-encoded body bytes. Typed bodies are decoded on demand via
// DecodeRouterLSABody/DecodeNetworkLSABody/DecodeSummaryLSABody/DecodeASExternalLSABody,
// matching the header's Type field.
type LSA struct {
	Header LSAHeader
	Body   []byte
}

// EncodeLSA serializes an LSA, filling in Length and Checksum from h and
// body (any values already in h for those fields are overwritten).
func EncodeLSA(h LSAHeader, body []byte) []byte {
	h.Length = uint16(LSAHeaderSize + len(body))
	out := EncodeLSAHeader(h)
	out = append(out, body...)
	c0, c1 := LSAChecksum(out)
	out[lsaChecksumFieldOffset] = c0
	out[lsaChecksumFieldOffset+1] = c1
	return out
}

// DecodeLSA parses one complete LSA (header plus body) from data, which
// must be exactly the LSA's own length (as given by the header once
// decoded) — callers slicing a longer LSU body by the header's Length
// field get this naturally.
func DecodeLSA(data []byte) (LSA, error) {
	h, err := DecodeLSAHeader(data)
	if err != nil {
		return LSA{}, err
	}
	if int(h.Length) < LSAHeaderSize || int(h.Length) > len(data) {
		return LSA{}, fmt.Errorf("%w: LSA length %d inconsistent with buffer of %d bytes", rerrors.ErrWireFormat, h.Length, len(data))
	}
	body := make([]byte, int(h.Length)-LSAHeaderSize)
	copy(body, data[LSAHeaderSize:h.Length])
	return LSA{Header: h, Body: body}, nil
}

// VerifyChecksum reports whether the LSA's stored checksum matches the
// recomputed Fletcher checksum of its encoded form.
func (l LSA) VerifyChecksum() bool {
	encoded := EncodeLSAHeader(l.Header)
	encoded[lsaChecksumFieldOffset] = 0
	encoded[lsaChecksumFieldOffset+1] = 0
	encoded = append(encoded, l.Body...)
	c0, c1 := LSAChecksum(encoded)
	return c0 == byte(l.Header.Checksum>>8) && c1 == byte(l.Header.Checksum)
}

type LinkStateUpdatePacket struct {
	LSAs []LSA
}

func EncodeLinkStateUpdate(p LinkStateUpdatePacket) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(p.LSAs)))
	for _, lsa := range p.LSAs {
		body := lsa.Body
		out = append(out, EncodeLSA(lsa.Header, body)...)
	}
	return out
}

func DecodeLinkStateUpdate(data []byte) (LinkStateUpdatePacket, error) {
	if len(data) < 4 {
		return LinkStateUpdatePacket{}, fmt.Errorf("%w: LSU packet truncated", rerrors.ErrWireFormat)
	}
	count := binary.BigEndian.Uint32(data[0:4])
	offset := 4
	p := LinkStateUpdatePacket{}
	for i := uint32(0); i < count; i++ {
		if offset+LSAHeaderSize > len(data) {
			return LinkStateUpdatePacket{}, fmt.Errorf("%w: LSU packet truncated before LSA %d", rerrors.ErrWireFormat, i)
		}
		lenHint, err := DecodeLSAHeader(data[offset:])
		if err != nil {
			return LinkStateUpdatePacket{}, err
		}
		if offset+int(lenHint.Length) > len(data) {
			return LinkStateUpdatePacket{}, fmt.Errorf("%w: LSU packet LSA %d body truncated", rerrors.ErrWireFormat, i)
		}
		lsa, err := DecodeLSA(data[offset : offset+int(lenHint.Length)])
		if err != nil {
			return LinkStateUpdatePacket{}, err
		}
		p.LSAs = append(p.LSAs, lsa)
		offset += int(lenHint.Length)
	}
	return p, nil
}
