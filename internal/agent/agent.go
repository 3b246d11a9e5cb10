// Package agent wires the OSPF and BGP engines together into one
// router process (spec section 4.10): it owns the single
// internal/fib.Manager both engines install into, starts whichever
// engines the configuration enables, and coordinates a best-effort
// graceful shutdown across both protocols.
package agent

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/ribagent/internal/config"
	"github.com/route-beacon/ribagent/internal/diagnostics"
	"github.com/route-beacon/ribagent/internal/events"
	"github.com/route-beacon/ribagent/internal/eventbus"
	"github.com/route-beacon/ribagent/internal/fib"
	"github.com/route-beacon/ribagent/internal/journal"
	"github.com/route-beacon/ribagent/internal/transport"
)

// Agent owns zero-or-one OSPF engine and zero-or-one BGP engine
// (spec section 4.10) plus the fib.Manager both install into. Neither
// engine is aware of the other; Agent only ever cancels a shared
// context and waits for both to return.
type Agent struct {
	cfg    *config.Config
	logger *zap.Logger
	fib    *fib.Manager

	journal *journal.Journal
	bus     *eventbus.Bus
	diag    *diagnostics.Buffer

	ospf *ospfEngine
	bgp  *bgpEngine
}

// New builds an Agent from cfg, starting neither engine yet. fibBackend
// is the Installer the fib.Manager forwards to; pass
// fib.NewLoggingBackend(logger) when no real FIB integration is wired.
// A nil logger uses zap.NewNop(). The optional journal, event bus, and
// diagnostics capture sinks are built from cfg here too, each inert
// unless its own config section enables it.
func New(cfg *config.Config, fibBackend fib.Installer, logger *zap.Logger) (*Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	routerAddr, err := netip.ParseAddr(cfg.RouterID)
	if err != nil || !routerAddr.Is4() {
		return nil, fmt.Errorf("%w: router_id %q must be a dotted-quad IPv4 address", config.ErrConfiguration, cfg.RouterID)
	}

	fibMgr := fib.NewManager(fibBackend, nil, logger.Named("fib"))

	j, err := journal.New(context.Background(), cfg.Journal, logger.Named("journal"))
	if err != nil {
		return nil, fmt.Errorf("starting journal: %w", err)
	}
	bus, err := eventbus.New(cfg.EventBus, logger.Named("eventbus"))
	if err != nil {
		return nil, fmt.Errorf("starting event bus: %w", err)
	}
	diag, err := diagnostics.New(cfg.Diag)
	if err != nil {
		return nil, fmt.Errorf("starting diagnostics buffer: %w", err)
	}
	hook := events.Multi{j, bus}

	a := &Agent{cfg: cfg, logger: logger, fib: fibMgr, journal: j, bus: bus, diag: diag}

	if cfg.OSPF != nil {
		ospfEng, err := newOSPFEngine(*cfg.OSPF, addrToUint32(routerAddr), transport.RawIPv4{}, fibMgr, hook, diag, logger.Named("ospf"))
		if err != nil {
			return nil, err
		}
		a.ospf = ospfEng
	}

	if cfg.BGP != nil {
		bgpEng, err := newBGPEngine(*cfg.BGP, routerAddr, transport.NetTCP{}, fibMgr, hook, diag, logger.Named("bgp"))
		if err != nil {
			return nil, err
		}
		a.bgp = bgpEng
	}

	return a, nil
}

// Journal returns the agent's event journal, for wiring into the HTTP
// server's readiness check. Never nil, even when disabled.
func (a *Agent) Journal() *journal.Journal { return a.journal }

// EventBus returns the agent's event bus, for wiring into the HTTP
// server's readiness check. Never nil, even when disabled.
func (a *Agent) EventBus() *eventbus.Bus { return a.bus }

// Run starts every configured engine and blocks until ctx is cancelled,
// then waits up to the configured shutdown timeout (default 5s, spec
// section 5) for both engines' own graceful-shutdown sequences —
// OSPF's empty-neighbor-list hellos and BGP's Cease NOTIFICATIONs,
// each already triggered by ctx cancellation inside the engines
// themselves — to finish before returning.
func (a *Agent) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	if a.ospf != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.ospf.Run(ctx); err != nil {
				a.logger.Error("ospf engine stopped", zap.Error(err))
			}
		}()
	}
	if a.bgp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.bgp.Run(ctx); err != nil {
				a.logger.Error("bgp engine stopped", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	a.logger.Info("agent shutting down")

	timeout := time.Duration(a.cfg.Service.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("agent stopped gracefully")
	case <-time.After(timeout):
		a.logger.Warn("agent shutdown timeout reached, some engines may not have finished")
	}

	a.journal.Close()
	a.bus.Close()

	return nil
}
