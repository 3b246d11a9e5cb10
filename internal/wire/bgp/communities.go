package bgp

import (
	"fmt"
	"strconv"
	"strings"
)

// CommunityString renders a community value in "A:B" form, or the
// well-known mnemonic if it has one.
func CommunityString(c uint32) string {
	switch c {
	case CommunityNoExport:
		return "NO_EXPORT"
	case CommunityNoAdvertise:
		return "NO_ADVERTISE"
	case CommunityNoExportSubconfed:
		return "NO_EXPORT_SUBCONFED"
	case CommunityNoPeer:
		return "NOPEER"
	default:
		return fmt.Sprintf("%d:%d", c>>16, c&0xFFFF)
	}
}

// ParseCommunity accepts "A:B" or a well-known mnemonic and returns the
// encoded uint32 value.
func ParseCommunity(s string) (uint32, error) {
	switch strings.ToUpper(s) {
	case "NO_EXPORT":
		return CommunityNoExport, nil
	case "NO_ADVERTISE":
		return CommunityNoAdvertise, nil
	case "NO_EXPORT_SUBCONFED":
		return CommunityNoExportSubconfed, nil
	case "NOPEER":
		return CommunityNoPeer, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("community %q: expected A:B or a well-known name", s)
	}
	a, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("community %q: %w", s, err)
	}
	b, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("community %q: %w", s, err)
	}
	return Community(uint16(a), uint16(b)), nil
}
