// Package diagnostics implements the optional wire-capture ring buffer:
// a fixed-size, zstd-compressed log of raw protocol messages an operator
// can snapshot for offline debugging, adapted from the donor's
// internal/history zstd-encoder usage (there applied to BMP payloads
// bound for Postgres; here applied to an in-memory ring with no
// database dependency).
package diagnostics

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/route-beacon/ribagent/internal/config"
	"github.com/route-beacon/ribagent/internal/metrics"
)

// Entry is one captured message, independently zstd-compressed so a
// Snapshot can decompress entries one at a time without buffering the
// whole ring.
type Entry struct {
	Protocol   string
	Peer       string
	Captured   time.Time
	Compressed []byte
}

// RawEntry is one Entry decompressed back to its original wire bytes.
type RawEntry struct {
	Protocol string
	Peer     string
	Captured time.Time
	Raw      []byte
}

// Buffer is the optional capture ring. A disabled Buffer
// (DiagnosticsConfig.Enabled false) accepts Capture calls and drops them
// immediately, costing one branch and no allocation.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	maxSize int
	enabled bool
	encoder *zstd.Encoder
}

// New builds a Buffer bounded at cfg.CaptureBytes of compressed payload.
// If cfg.Enabled is false, Capture is a no-op.
func New(cfg config.DiagnosticsConfig) (*Buffer, error) {
	if !cfg.Enabled {
		return &Buffer{}, nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: building zstd encoder: %w", err)
	}
	return &Buffer{maxSize: cfg.CaptureBytes, enabled: true, encoder: enc}, nil
}

// Capture compresses and appends raw, evicting the oldest entries until
// the ring is back under its configured byte budget. The newest entry is
// always kept, even when it alone exceeds the budget.
func (b *Buffer) Capture(protocol, peer string, raw []byte) {
	if !b.enabled {
		return
	}
	compressed := b.encoder.EncodeAll(raw, nil)
	metrics.DiagnosticsBytesCapturedTotal.WithLabelValues(protocol).Add(float64(len(compressed)))

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, Entry{Protocol: protocol, Peer: peer, Captured: time.Now(), Compressed: compressed})
	b.size += len(compressed)
	for b.size > b.maxSize && len(b.entries) > 1 {
		b.size -= len(b.entries[0].Compressed)
		b.entries = b.entries[1:]
	}
}

// Snapshot decompresses and returns every entry currently retained, in
// capture order, for an operator to inspect.
func (b *Buffer) Snapshot() ([]RawEntry, error) {
	b.mu.Lock()
	entries := make([]Entry, len(b.entries))
	copy(entries, b.entries)
	b.mu.Unlock()

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: building zstd decoder: %w", err)
	}
	defer decoder.Close()

	out := make([]RawEntry, 0, len(entries))
	for _, e := range entries {
		raw, err := decoder.DecodeAll(e.Compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("diagnostics: decompressing entry captured at %s: %w", e.Captured, err)
		}
		out = append(out, RawEntry{Protocol: e.Protocol, Peer: e.Peer, Captured: e.Captured, Raw: raw})
	}
	return out, nil
}

// WriteSnapshot decompresses every retained entry and concatenates their
// raw bytes, one message after another, for a quick operator dump
// without caring about per-message boundaries.
func (b *Buffer) WriteSnapshot() ([]byte, error) {
	entries, err := b.Snapshot()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, e := range entries {
		buf.Write(e.Raw)
	}
	return buf.Bytes(), nil
}
