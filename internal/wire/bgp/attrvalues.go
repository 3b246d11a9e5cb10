package bgp

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// decodeAttrValue parses the value portion of one path attribute. AS_PATH
// and AGGREGATOR always use 4-byte ASNs (RFC 6793); this core does not
// negotiate the legacy 2-byte encoding.
func decodeAttrValue(code AttrType, raw []byte) (AttrValue, error) {
	switch code {
	case AttrOrigin:
		if len(raw) != 1 {
			return nil, fmt.Errorf("%w: ORIGIN length %d, want 1", rerrors.ErrWireFormat, len(raw))
		}
		return OriginValue(raw[0]), nil

	case AttrASPath:
		return decodeASPath(raw)

	case AttrNextHop:
		if len(raw) != 4 {
			return nil, fmt.Errorf("%w: NEXT_HOP length %d, want 4", rerrors.ErrWireFormat, len(raw))
		}
		var a4 [4]byte
		copy(a4[:], raw)
		return NextHopValue{Addr: netip.AddrFrom4(a4)}, nil

	case AttrMED:
		if len(raw) != 4 {
			return nil, fmt.Errorf("%w: MULTI_EXIT_DISC length %d, want 4", rerrors.ErrWireFormat, len(raw))
		}
		return MedValue(binary.BigEndian.Uint32(raw)), nil

	case AttrLocalPref:
		if len(raw) != 4 {
			return nil, fmt.Errorf("%w: LOCAL_PREF length %d, want 4", rerrors.ErrWireFormat, len(raw))
		}
		return LocalPrefValue(binary.BigEndian.Uint32(raw)), nil

	case AttrAtomicAggregate:
		if len(raw) != 0 {
			return nil, fmt.Errorf("%w: ATOMIC_AGGREGATE length %d, want 0", rerrors.ErrWireFormat, len(raw))
		}
		return AtomicAggregateValue{}, nil

	case AttrAggregator:
		if len(raw) != 8 {
			return nil, fmt.Errorf("%w: AGGREGATOR length %d, want 8", rerrors.ErrWireFormat, len(raw))
		}
		var a4 [4]byte
		copy(a4[:], raw[4:8])
		return AggregatorValue{
			ASN:      binary.BigEndian.Uint32(raw[0:4]),
			RouterID: netip.AddrFrom4(a4),
		}, nil

	case AttrCommunities:
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("%w: COMMUNITIES length %d not a multiple of 4", rerrors.ErrWireFormat, len(raw))
		}
		vals := make([]uint32, 0, len(raw)/4)
		for i := 0; i < len(raw); i += 4 {
			vals = append(vals, binary.BigEndian.Uint32(raw[i:i+4]))
		}
		return CommunitiesValue{Values: vals}, nil

	case AttrOriginatorID:
		if len(raw) != 4 {
			return nil, fmt.Errorf("%w: ORIGINATOR_ID length %d, want 4", rerrors.ErrWireFormat, len(raw))
		}
		var a4 [4]byte
		copy(a4[:], raw)
		return OriginatorIDValue{RouterID: netip.AddrFrom4(a4)}, nil

	case AttrClusterList:
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("%w: CLUSTER_LIST length %d not a multiple of 4", rerrors.ErrWireFormat, len(raw))
		}
		ids := make([]uint32, 0, len(raw)/4)
		for i := 0; i < len(raw); i += 4 {
			ids = append(ids, binary.BigEndian.Uint32(raw[i:i+4]))
		}
		return ClusterListValue{ClusterIDs: ids}, nil

	case AttrMpReachNLRI:
		return decodeMpReach(raw)

	case AttrMpUnreachNLRI:
		return decodeMpUnreach(raw)

	default:
		cp := make([]byte, len(raw))
		copy(cp, raw)
		return UnknownValue{Raw: cp}, nil
	}
}

func decodeASPath(raw []byte) (AttrValue, error) {
	var segs []ASPathSegment
	offset := 0
	for offset < len(raw) {
		if offset+2 > len(raw) {
			return nil, fmt.Errorf("%w: AS_PATH segment header truncated", rerrors.ErrWireFormat)
		}
		segType := raw[offset]
		count := int(raw[offset+1])
		offset += 2
		need := count * 4
		if offset+need > len(raw) {
			return nil, fmt.Errorf("%w: AS_PATH segment truncated", rerrors.ErrWireFormat)
		}
		asns := make([]uint32, count)
		for i := 0; i < count; i++ {
			asns[i] = binary.BigEndian.Uint32(raw[offset : offset+4])
			offset += 4
		}
		segs = append(segs, ASPathSegment{Type: segType, ASNs: asns})
	}
	return ASPathValue{Segments: segs}, nil
}

func decodeMpReach(raw []byte) (AttrValue, error) {
	if len(raw) < 5 {
		return nil, fmt.Errorf("%w: MP_REACH_NLRI truncated", rerrors.ErrWireFormat)
	}
	afi := binary.BigEndian.Uint16(raw[0:2])
	safi := raw[2]
	nhLen := int(raw[3])
	offset := 4
	if offset+nhLen > len(raw) {
		return nil, fmt.Errorf("%w: MP_REACH_NLRI next-hop truncated", rerrors.ErrWireFormat)
	}
	v6 := afi == AFIIPv6
	addrLen := 4
	if v6 {
		addrLen = 16
	}
	var nextHops []netip.Addr
	if nhLen > 0 {
		if nhLen%addrLen != 0 {
			return nil, fmt.Errorf("%w: MP_REACH_NLRI next-hop length %d not a multiple of %d", rerrors.ErrWireFormat, nhLen, addrLen)
		}
		nh := raw[offset : offset+nhLen]
		for i := 0; i < len(nh); i += addrLen {
			if v6 {
				var a16 [16]byte
				copy(a16[:], nh[i:i+16])
				nextHops = append(nextHops, netip.AddrFrom16(a16))
			} else {
				var a4 [4]byte
				copy(a4[:], nh[i:i+4])
				nextHops = append(nextHops, netip.AddrFrom4(a4))
			}
		}
	}
	offset += nhLen
	if offset >= len(raw) {
		return nil, fmt.Errorf("%w: MP_REACH_NLRI missing reserved byte", rerrors.ErrWireFormat)
	}
	offset++ // reserved (SNPA count, always zero in practice)
	prefixes, err := DecodeNLRIList(raw[offset:], v6)
	if err != nil {
		return nil, err
	}
	return MpReachNLRIValue{AFI: afi, SAFI: safi, NextHops: nextHops, NLRI: prefixes}, nil
}

func decodeMpUnreach(raw []byte) (AttrValue, error) {
	if len(raw) < 3 {
		return nil, fmt.Errorf("%w: MP_UNREACH_NLRI truncated", rerrors.ErrWireFormat)
	}
	afi := binary.BigEndian.Uint16(raw[0:2])
	safi := raw[2]
	v6 := afi == AFIIPv6
	prefixes, err := DecodeNLRIList(raw[3:], v6)
	if err != nil {
		return nil, err
	}
	return MpUnreachNLRIValue{AFI: afi, SAFI: safi, Withdrawn: prefixes}, nil
}

// encodeAttrValue serializes the value portion of a path attribute.
func encodeAttrValue(a *Attribute) ([]byte, error) {
	switch v := a.Value.(type) {
	case OriginValue:
		return []byte{byte(v)}, nil

	case ASPathValue:
		var out []byte
		for _, seg := range v.Segments {
			if len(seg.ASNs) > 255 {
				return nil, fmt.Errorf("%w: AS_PATH segment has %d ASNs, max 255", rerrors.ErrWireFormat, len(seg.ASNs))
			}
			out = append(out, seg.Type, byte(len(seg.ASNs)))
			for _, asn := range seg.ASNs {
				var b [4]byte
				binary.BigEndian.PutUint32(b[:], asn)
				out = append(out, b[:]...)
			}
		}
		return out, nil

	case NextHopValue:
		if !v.Addr.Is4() {
			return nil, fmt.Errorf("%w: NEXT_HOP requires an IPv4 address", rerrors.ErrWireFormat)
		}
		b := v.Addr.As4()
		return b[:], nil

	case MedValue:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		return b[:], nil

	case LocalPrefValue:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		return b[:], nil

	case AtomicAggregateValue:
		return nil, nil

	case AggregatorValue:
		if !v.RouterID.Is4() {
			return nil, fmt.Errorf("%w: AGGREGATOR requires an IPv4 router id", rerrors.ErrWireFormat)
		}
		out := make([]byte, 8)
		binary.BigEndian.PutUint32(out[0:4], v.ASN)
		rid := v.RouterID.As4()
		copy(out[4:8], rid[:])
		return out, nil

	case CommunitiesValue:
		out := make([]byte, 0, len(v.Values)*4)
		for _, c := range v.Values {
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], c)
			out = append(out, b[:]...)
		}
		return out, nil

	case OriginatorIDValue:
		if !v.RouterID.Is4() {
			return nil, fmt.Errorf("%w: ORIGINATOR_ID requires an IPv4 address", rerrors.ErrWireFormat)
		}
		b := v.RouterID.As4()
		return b[:], nil

	case ClusterListValue:
		out := make([]byte, 0, len(v.ClusterIDs)*4)
		for _, id := range v.ClusterIDs {
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], id)
			out = append(out, b[:]...)
		}
		return out, nil

	case MpReachNLRIValue:
		return encodeMpReach(v)

	case MpUnreachNLRIValue:
		return encodeMpUnreach(v)

	case UnknownValue:
		return v.Raw, nil

	default:
		return nil, fmt.Errorf("%w: no encoder for attribute type %d", rerrors.ErrWireFormat, a.Code)
	}
}

func encodeMpReach(v MpReachNLRIValue) ([]byte, error) {
	v6 := v.AFI == AFIIPv6
	addrLen := 4
	if v6 {
		addrLen = 16
	}
	nh := make([]byte, 0, len(v.NextHops)*addrLen)
	for _, a := range v.NextHops {
		raw := a.AsSlice()
		if len(raw) != addrLen {
			return nil, fmt.Errorf("%w: MP_REACH_NLRI next-hop address family mismatch", rerrors.ErrWireFormat)
		}
		nh = append(nh, raw...)
	}
	out := make([]byte, 0, 4+len(nh)+1)
	var afiBuf [2]byte
	binary.BigEndian.PutUint16(afiBuf[:], v.AFI)
	out = append(out, afiBuf[0], afiBuf[1], v.SAFI, byte(len(nh)))
	out = append(out, nh...)
	out = append(out, 0) // reserved
	for _, p := range v.NLRI {
		out = append(out, EncodeNLRI(p)...)
	}
	return out, nil
}

func encodeMpUnreach(v MpUnreachNLRIValue) ([]byte, error) {
	out := make([]byte, 3)
	binary.BigEndian.PutUint16(out[0:2], v.AFI)
	out[2] = v.SAFI
	for _, p := range v.Withdrawn {
		out = append(out, EncodeNLRI(p)...)
	}
	return out, nil
}
