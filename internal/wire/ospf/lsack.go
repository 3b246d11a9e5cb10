package ospf

import (
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

type LinkStateAckPacket struct {
	LSAHeaders []LSAHeader
}

func EncodeLinkStateAck(p LinkStateAckPacket) []byte {
	out := make([]byte, 0, LSAHeaderSize*len(p.LSAHeaders))
	for _, h := range p.LSAHeaders {
		out = append(out, EncodeLSAHeader(h)...)
	}
	return out
}

func DecodeLinkStateAck(data []byte) (LinkStateAckPacket, error) {
	if len(data)%LSAHeaderSize != 0 {
		return LinkStateAckPacket{}, fmt.Errorf("%w: LSAck packet has a partial header", rerrors.ErrWireFormat)
	}
	var p LinkStateAckPacket
	for offset := 0; offset < len(data); offset += LSAHeaderSize {
		h, err := DecodeLSAHeader(data[offset : offset+LSAHeaderSize])
		if err != nil {
			return LinkStateAckPacket{}, err
		}
		p.LSAHeaders = append(p.LSAHeaders, h)
	}
	return p, nil
}
