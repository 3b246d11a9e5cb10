package bgp

import "testing"

func TestCommunityString_WellKnown(t *testing.T) {
	if CommunityString(CommunityNoExport) != "NO_EXPORT" {
		t.Fatalf("got %q", CommunityString(CommunityNoExport))
	}
}

func TestCommunityString_Numeric(t *testing.T) {
	c := Community(65001, 100)
	if got := CommunityString(c); got != "65001:100" {
		t.Fatalf("got %q", got)
	}
}

func TestParseCommunity_RoundTrip(t *testing.T) {
	c, err := ParseCommunity("65001:100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != Community(65001, 100) {
		t.Fatalf("got %d", c)
	}
}

func TestParseCommunity_WellKnown(t *testing.T) {
	c, err := ParseCommunity("no_export")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != CommunityNoExport {
		t.Fatalf("got %d", c)
	}
}

func TestParseCommunity_Invalid(t *testing.T) {
	if _, err := ParseCommunity("not-a-community"); err == nil {
		t.Fatal("expected error")
	}
}
