package fib

import (
	"context"
	"net/netip"

	"go.uber.org/zap"
)

// LoggingBackend is the default Installer: host FIB/netlink manipulation
// is explicitly out of scope for this core (spec section 6 only
// specifies the collaborator contract), so the default backend just
// records each operation at Info level, the way a syslog daemon would
// record a routing-table change it didn't make itself. A real deployment
// supplies its own Installer (netlink, a gRPC sidecar, FRR's zebra API,
// ...) in its place.
type LoggingBackend struct {
	logger *zap.Logger
}

// NewLoggingBackend builds a LoggingBackend. A nil logger uses zap.NewNop().
func NewLoggingBackend(logger *zap.Logger) LoggingBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return LoggingBackend{logger: logger}
}

func (b LoggingBackend) Install(_ context.Context, route Route) error {
	b.logger.Info("fib install",
		zap.String("prefix", route.Prefix.String()),
		zap.String("next_hop", route.NextHop.String()),
		zap.String("source", string(route.Source)),
		zap.Uint32("metric", route.Metric))
	return nil
}

func (b LoggingBackend) Remove(_ context.Context, prefix netip.Prefix) error {
	b.logger.Info("fib remove", zap.String("prefix", prefix.String()))
	return nil
}

var _ Installer = LoggingBackend{}
