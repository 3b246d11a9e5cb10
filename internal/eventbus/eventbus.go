// Package eventbus implements the optional Kafka event publisher: an
// events.Hook that JSON-encodes each event and produces it asynchronously
// to the configured topic via franz-go, adapting the donor's kgo client
// construction (internal/kafka's consumer-side SeedBrokers/ClientID
// options) to the producer side this agent needs instead.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/route-beacon/ribagent/internal/config"
	"github.com/route-beacon/ribagent/internal/events"
	"github.com/route-beacon/ribagent/internal/metrics"
)

// message is the wire shape published for every event, discriminated by
// Type so a downstream consumer can decode without four separate topics.
type message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Protocol  string    `json:"protocol,omitempty"`
	Prefix    string    `json:"prefix,omitempty"`
	NextHop   string    `json:"next_hop,omitempty"`
	Peer      string    `json:"peer,omitempty"`
	ASPath    string    `json:"as_path,omitempty"`
	Neighbor  string    `json:"neighbor,omitempty"`
	State     string    `json:"state,omitempty"`
	RouterID  string    `json:"router_id,omitempty"`
	LSType    uint8     `json:"lsa_type,omitempty"`
	LSID      string    `json:"link_state_id,omitempty"`
	SeqNumber int32     `json:"seq_number,omitempty"`
}

// Bus is the optional Kafka event publisher. A disabled Bus
// (EventBusConfig.Enabled false) is a valid zero-cost events.Hook: every
// method is a no-op and Close does nothing.
type Bus struct {
	client  *kgo.Client
	topic   string
	logger  *zap.Logger
	enabled bool
}

// New builds the franz-go client and seeds it against the configured
// brokers. If cfg.Enabled is false it returns a disabled Bus without
// dialing anything.
func New(cfg config.EventBusConfig, logger *zap.Logger) (*Bus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return &Bus{logger: logger}, nil
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	return &Bus{client: client, topic: cfg.Topic, logger: logger, enabled: true}, nil
}

// Close flushes any in-flight produce requests and closes the client. A
// disabled Bus's Close is a no-op.
func (b *Bus) Close() {
	if !b.enabled {
		return
	}
	b.client.Close()
}

// Ready reports whether the client can reach at least one seed broker.
// A disabled Bus is always ready — it has nothing to wait on.
func (b *Bus) Ready(ctx context.Context) error {
	if !b.enabled {
		return nil
	}
	return b.client.Ping(ctx)
}

func (b *Bus) publish(eventType string, m message) {
	if !b.enabled {
		return
	}
	m.Type = eventType
	payload, err := json.Marshal(m)
	if err != nil {
		b.logger.Warn("eventbus: marshaling event failed", zap.Error(err), zap.String("type", eventType))
		metrics.EventBusPublishTotal.WithLabelValues(eventType, "marshal_error").Inc()
		return
	}

	record := &kgo.Record{Topic: b.topic, Value: payload}
	b.client.Produce(nil, record, func(_ *kgo.Record, err error) {
		if err != nil {
			b.logger.Warn("eventbus: produce failed", zap.Error(err), zap.String("type", eventType))
			metrics.EventBusPublishTotal.WithLabelValues(eventType, "error").Inc()
			return
		}
		metrics.EventBusPublishTotal.WithLabelValues(eventType, "ok").Inc()
	})
}

// InstallBest implements events.Hook.
func (b *Bus) InstallBest(e events.BestPathEvent) { b.publish("install_best", bestPathMessage(e)) }

// WithdrawBest implements events.Hook.
func (b *Bus) WithdrawBest(e events.BestPathEvent) { b.publish("withdraw_best", bestPathMessage(e)) }

func bestPathMessage(e events.BestPathEvent) message {
	prefix := ""
	if e.Prefix.IsValid() {
		prefix = e.Prefix.String()
	}
	nextHop := ""
	if e.NextHop.IsValid() {
		nextHop = e.NextHop.String()
	}
	peer := ""
	if e.Peer.IsValid() {
		peer = e.Peer.String()
	}
	return message{Timestamp: e.Timestamp, Protocol: "bgp", Prefix: prefix, NextHop: nextHop, Peer: peer, ASPath: e.ASPath}
}

// AdjacencyChange implements events.Hook.
func (b *Bus) AdjacencyChange(e events.AdjacencyEvent) {
	b.publish("adjacency_change", message{Timestamp: e.Timestamp, Protocol: e.Protocol, Neighbor: e.Neighbor, State: e.State})
}

// LsaInstalled implements events.Hook.
func (b *Bus) LsaInstalled(e events.LSAEvent) {
	b.publish("lsa_installed", message{
		Timestamp: e.Timestamp, Protocol: "ospf", RouterID: e.RouterID,
		LSType: e.LSType, LSID: e.LinkStateID, SeqNumber: e.SeqNumber,
	})
}
