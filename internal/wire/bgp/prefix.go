package bgp

import (
	"fmt"
	"net/netip"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// Prefix is an IP network address plus a prefix length, IPv4 or IPv6
// (spec section 3, "Prefix").
type Prefix struct {
	Addr netip.Addr
	Len  int
}

func (p Prefix) String() string {
	return fmt.Sprintf("%s/%d", p.Addr, p.Len)
}

func (p Prefix) Is4() bool { return p.Addr.Is4() }

// significantBytes returns ceil(bitLen/8).
func significantBytes(bitLen int) int {
	return (bitLen + 7) / 8
}

// EncodeNLRI encodes a prefix as (length-in-bits, significant bytes), the
// representation shared by NLRI and MP_REACH/MP_UNREACH NLRI.
func EncodeNLRI(p Prefix) []byte {
	nbytes := significantBytes(p.Len)
	out := make([]byte, 1+nbytes)
	out[0] = byte(p.Len)
	raw := p.Addr.AsSlice()
	copy(out[1:], raw[:nbytes])
	return out
}

// DecodeNLRI decodes one (length, bytes) prefix from data, returning the
// prefix and the number of bytes consumed.
func DecodeNLRI(data []byte, v6 bool) (Prefix, int, error) {
	if len(data) < 1 {
		return Prefix{}, 0, fmt.Errorf("%w: NLRI truncated", rerrors.ErrWireFormat)
	}
	bitLen := int(data[0])
	maxBits := 32
	addrLen := 4
	if v6 {
		maxBits = 128
		addrLen = 16
	}
	if bitLen > maxBits {
		return Prefix{}, 0, fmt.Errorf("%w: NLRI prefix length %d exceeds %d", rerrors.ErrWireFormat, bitLen, maxBits)
	}
	nbytes := significantBytes(bitLen)
	if len(data) < 1+nbytes {
		return Prefix{}, 0, fmt.Errorf("%w: NLRI truncated: need %d bytes, have %d", rerrors.ErrWireFormat, nbytes, len(data)-1)
	}
	raw := make([]byte, addrLen)
	copy(raw, data[1:1+nbytes])
	var addr netip.Addr
	var err error
	if v6 {
		var a16 [16]byte
		copy(a16[:], raw)
		addr = netip.AddrFrom16(a16)
	} else {
		var a4 [4]byte
		copy(a4[:], raw)
		addr = netip.AddrFrom4(a4)
	}
	if err != nil {
		return Prefix{}, 0, err
	}
	return Prefix{Addr: addr, Len: bitLen}, 1 + nbytes, nil
}

// DecodeNLRIList decodes a consecutive run of (length, bytes) prefixes
// until data is exhausted.
func DecodeNLRIList(data []byte, v6 bool) ([]Prefix, error) {
	var out []Prefix
	offset := 0
	for offset < len(data) {
		p, n, err := DecodeNLRI(data[offset:], v6)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		offset += n
	}
	return out, nil
}
