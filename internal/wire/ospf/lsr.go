package ospf

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// LSRequest is one entry of a Link State Request packet (RFC 2328
// section A.3.4): the three fields that identify an LSA without needing
// its full body.
type LSRequest struct {
	LSType            uint32
	LinkStateID       uint32
	AdvertisingRouter uint32
}

func (r LSRequest) Key() Key {
	return Key{Type: uint8(r.LSType), LinkStateID: r.LinkStateID, AdvertisingRouter: r.AdvertisingRouter}
}

type LinkStateRequestPacket struct {
	Requests []LSRequest
}

func EncodeLinkStateRequest(p LinkStateRequestPacket) []byte {
	out := make([]byte, 0, 12*len(p.Requests))
	for _, r := range p.Requests {
		var b [12]byte
		binary.BigEndian.PutUint32(b[0:4], r.LSType)
		binary.BigEndian.PutUint32(b[4:8], r.LinkStateID)
		binary.BigEndian.PutUint32(b[8:12], r.AdvertisingRouter)
		out = append(out, b[:]...)
	}
	return out
}

func DecodeLinkStateRequest(data []byte) (LinkStateRequestPacket, error) {
	if len(data)%12 != 0 {
		return LinkStateRequestPacket{}, fmt.Errorf("%w: LSR packet has a partial entry", rerrors.ErrWireFormat)
	}
	var p LinkStateRequestPacket
	for offset := 0; offset < len(data); offset += 12 {
		p.Requests = append(p.Requests, LSRequest{
			LSType:            binary.BigEndian.Uint32(data[offset : offset+4]),
			LinkStateID:       binary.BigEndian.Uint32(data[offset+4 : offset+8]),
			AdvertisingRouter: binary.BigEndian.Uint32(data[offset+8 : offset+12]),
		})
	}
	return p, nil
}
