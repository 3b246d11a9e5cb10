package ospf

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// Option bits (RFC 2328 section A.2). This core only ever sets/reads the
// E-bit (external-routing capability).
const (
	OptionE uint8 = 0x02
)

// HelloPacket is the RFC 2328 section A.3.2 Hello packet.
type HelloPacket struct {
	NetworkMask       uint32
	HelloInterval     uint16
	Options           uint8
	RouterPriority    uint8
	RouterDeadInterval uint32
	DesignatedRouter  uint32
	BackupDesignatedRouter uint32
	Neighbors         []uint32
}

func EncodeHello(h HelloPacket) []byte {
	out := make([]byte, 20, 20+4*len(h.Neighbors))
	binary.BigEndian.PutUint32(out[0:4], h.NetworkMask)
	binary.BigEndian.PutUint16(out[4:6], h.HelloInterval)
	out[6] = h.Options
	out[7] = h.RouterPriority
	binary.BigEndian.PutUint32(out[8:12], h.RouterDeadInterval)
	binary.BigEndian.PutUint32(out[12:16], h.DesignatedRouter)
	binary.BigEndian.PutUint32(out[16:20], h.BackupDesignatedRouter)
	for _, n := range h.Neighbors {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], n)
		out = append(out, b[:]...)
	}
	return out
}

func DecodeHello(data []byte) (HelloPacket, error) {
	if len(data) < 20 {
		return HelloPacket{}, fmt.Errorf("%w: Hello packet truncated", rerrors.ErrWireFormat)
	}
	if (len(data)-20)%4 != 0 {
		return HelloPacket{}, fmt.Errorf("%w: Hello neighbor list has a partial entry", rerrors.ErrWireFormat)
	}
	h := HelloPacket{
		NetworkMask:            binary.BigEndian.Uint32(data[0:4]),
		HelloInterval:          binary.BigEndian.Uint16(data[4:6]),
		Options:                data[6],
		RouterPriority:         data[7],
		RouterDeadInterval:     binary.BigEndian.Uint32(data[8:12]),
		DesignatedRouter:       binary.BigEndian.Uint32(data[12:16]),
		BackupDesignatedRouter: binary.BigEndian.Uint32(data[16:20]),
	}
	for offset := 20; offset < len(data); offset += 4 {
		h.Neighbors = append(h.Neighbors, binary.BigEndian.Uint32(data[offset:offset+4]))
	}
	return h, nil
}

// HasNeighbor reports whether routerID appears in the neighbor list, the
// test the neighbor FSM applies for the 2-WayReceived/1-WayReceived
// transitions (RFC 2328 section 10.5).
func (h HelloPacket) HasNeighbor(routerID uint32) bool {
	for _, n := range h.Neighbors {
		if n == routerID {
			return true
		}
	}
	return false
}
