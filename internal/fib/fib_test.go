package fib

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

type recordingBackend struct {
	installs []Route
	removes  []netip.Prefix
	failNext bool
}

func (b *recordingBackend) Install(_ context.Context, route Route) error {
	if b.failNext {
		b.failNext = false
		return errors.New("backend unavailable")
	}
	b.installs = append(b.installs, route)
	return nil
}

func (b *recordingBackend) Remove(_ context.Context, prefix netip.Prefix) error {
	b.removes = append(b.removes, prefix)
	return nil
}

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("parsing prefix %q: %v", s, err)
	}
	return p
}

func TestManager_InstallIsIdempotent(t *testing.T) {
	backend := &recordingBackend{}
	m := NewManager(backend, nil, nil)
	route := Route{Prefix: mustPrefix(t, "10.0.0.0/24"), NextHop: netip.MustParseAddr("192.0.2.1"), Source: SourceBGP, Metric: 100}

	if err := m.Install(context.Background(), route); err != nil {
		t.Fatalf("first install: %v", err)
	}
	if err := m.Install(context.Background(), route); err != nil {
		t.Fatalf("second install: %v", err)
	}
	if len(backend.installs) != 1 {
		t.Fatalf("got %d backend installs, want 1 (identical re-install must be a no-op)", len(backend.installs))
	}
}

func TestManager_OSPFBeatsBGPAtEqualMetric(t *testing.T) {
	backend := &recordingBackend{}
	m := NewManager(backend, nil, nil)
	prefix := mustPrefix(t, "10.0.0.0/24")

	bgpRoute := Route{Prefix: prefix, NextHop: netip.MustParseAddr("192.0.2.1"), Source: SourceBGP, Metric: 10}
	ospfRoute := Route{Prefix: prefix, NextHop: netip.MustParseAddr("192.0.2.2"), Source: SourceOSPF, Metric: 10}

	if err := m.Install(context.Background(), bgpRoute); err != nil {
		t.Fatalf("installing bgp route: %v", err)
	}
	if err := m.Install(context.Background(), ospfRoute); err != nil {
		t.Fatalf("installing ospf route: %v", err)
	}
	got, ok := m.Lookup(prefix)
	if !ok || got.Source != SourceOSPF {
		t.Fatalf("got %+v, want ospf route to win at equal metric", got)
	}

	// BGP retrying the same losing route must not reach the backend again.
	if err := m.Install(context.Background(), bgpRoute); err != nil {
		t.Fatalf("re-installing displaced bgp route: %v", err)
	}
	if len(backend.installs) != 2 {
		t.Fatalf("got %d backend installs, want 2 (bgp, then ospf; the re-attempt must be suppressed)", len(backend.installs))
	}
}

func TestManager_BetterMetricWinsWithinSameSource(t *testing.T) {
	backend := &recordingBackend{}
	m := NewManager(backend, nil, nil)
	prefix := mustPrefix(t, "10.0.0.0/24")

	worse := Route{Prefix: prefix, NextHop: netip.MustParseAddr("192.0.2.1"), Source: SourceBGP, Metric: 200}
	better := Route{Prefix: prefix, NextHop: netip.MustParseAddr("192.0.2.2"), Source: SourceBGP, Metric: 100}

	if err := m.Install(context.Background(), worse); err != nil {
		t.Fatalf("installing worse route: %v", err)
	}
	if err := m.Install(context.Background(), better); err != nil {
		t.Fatalf("installing better route: %v", err)
	}
	got, _ := m.Lookup(prefix)
	if got.NextHop != better.NextHop {
		t.Fatalf("got next hop %v, want the better-metric route to win", got.NextHop)
	}

	// A worse re-announcement from the same source must not displace it.
	if err := m.Install(context.Background(), worse); err != nil {
		t.Fatalf("re-installing worse route: %v", err)
	}
	got, _ = m.Lookup(prefix)
	if got.NextHop != better.NextHop {
		t.Fatal("a worse-metric re-announcement from the same source displaced the installed route")
	}
}

func TestManager_RemoveRequiresMatchingOwner(t *testing.T) {
	backend := &recordingBackend{}
	m := NewManager(backend, nil, nil)
	prefix := mustPrefix(t, "10.0.0.0/24")

	route := Route{Prefix: prefix, NextHop: netip.MustParseAddr("192.0.2.1"), Source: SourceOSPF, Metric: 10}
	if err := m.Install(context.Background(), route); err != nil {
		t.Fatalf("install: %v", err)
	}

	// BGP never owned this prefix; its remove must be a no-op.
	if err := m.Remove(context.Background(), prefix, SourceBGP); err != nil {
		t.Fatalf("remove from non-owner: %v", err)
	}
	if len(backend.removes) != 0 {
		t.Fatal("a non-owner's remove reached the backend")
	}
	if _, ok := m.Lookup(prefix); !ok {
		t.Fatal("a non-owner's remove evicted the owner's route")
	}

	if err := m.Remove(context.Background(), prefix, SourceOSPF); err != nil {
		t.Fatalf("remove from owner: %v", err)
	}
	if len(backend.removes) != 1 {
		t.Fatalf("got %d backend removes, want 1", len(backend.removes))
	}
	if _, ok := m.Lookup(prefix); ok {
		t.Fatal("route still tracked after owner removed it")
	}
}

func TestManager_InstallFailureIsWrappedAndLogged(t *testing.T) {
	backend := &recordingBackend{failNext: true}
	m := NewManager(backend, nil, nil)
	route := Route{Prefix: mustPrefix(t, "10.0.0.0/24"), NextHop: netip.MustParseAddr("192.0.2.1"), Source: SourceStatic, Metric: 0}

	err := m.Install(context.Background(), route)
	if err == nil {
		t.Fatal("expected an error from a failing backend")
	}
	if !errors.Is(err, rerrors.ErrFib) {
		t.Fatalf("got %v, want an error wrapping rerrors.ErrFib", err)
	}

	// A failed install must still be tracked locally: the spec treats FIB
	// failures as best-effort and logged, not as a reason to keep retrying
	// every subsequent identical request.
	got, ok := m.Lookup(route.Prefix)
	if !ok || got != route {
		t.Fatal("a failed install was not recorded")
	}
}

func TestLoggingBackend_ImplementsInstaller(t *testing.T) {
	b := NewLoggingBackend(nil)
	if err := b.Install(context.Background(), Route{Prefix: mustPrefix(t, "10.0.0.0/24"), NextHop: netip.MustParseAddr("192.0.2.1"), Source: SourceStatic}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := b.Remove(context.Background(), mustPrefix(t, "10.0.0.0/24")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}
