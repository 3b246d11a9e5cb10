// Package journal implements the optional durable event journal: a
// pgx-backed, batching events.Hook that records every InstallBest,
// WithdrawBest, AdjacencyChange, and LsaInstalled event into a daily-
// partitioned ribagent_events table, adapted from the donor's
// internal/history writer/pipeline pair and internal/maintenance
// partition sweep.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/route-beacon/ribagent/internal/config"
	"github.com/route-beacon/ribagent/internal/events"
	"github.com/route-beacon/ribagent/internal/metrics"
)

const (
	batchSize     = 200
	flushInterval = 2 * time.Second
	maxQueuedRows = batchSize * 20
)

// Journal is the optional durable event sink: it batches events.Hook
// calls and flushes them to ribagent_events, running its own partition
// maintenance on a daily tick. A disabled Journal (JournalConfig.Enabled
// false) is a valid zero-cost events.Hook — every method is a no-op and
// Close does nothing.
type Journal struct {
	pool    *pgxpool.Pool
	logger  *zap.Logger
	rows    chan row
	done    chan struct{}
	enabled bool
}

type row struct {
	eventType   string
	protocol    string
	prefix      string
	nextHop     string
	peer        string
	asPath      string
	neighbor    string
	state       string
	routerID    string
	lsType      int16
	linkStateID string
	seqNumber   int32
	ingestTime  time.Time
}

// New opens the journal's connection pool, runs its migrations, and
// starts its batching goroutine and daily partition-maintenance ticker.
// If cfg.Enabled is false it returns a disabled Journal without touching
// the network.
func New(ctx context.Context, cfg config.JournalConfig, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return &Journal{logger: logger}, nil
	}

	pool, err := newPool(ctx, cfg.DSN, cfg.MaxConns, cfg.MinConns)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running journal migrations: %w", err)
	}

	j := &Journal{
		pool:    pool,
		logger:  logger,
		rows:    make(chan row, maxQueuedRows),
		done:    make(chan struct{}),
		enabled: true,
	}

	pm := newPartitionManager(pool, cfg.RetentionDays, logger)
	pm.run(ctx)

	go j.runPipeline(ctx)
	go j.runPartitionTicker(ctx, pm)

	return j, nil
}

func (j *Journal) runPartitionTicker(ctx context.Context, pm *partitionManager) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.run(ctx)
		}
	}
}

// Close stops the batching goroutine, flushing whatever remains, and
// closes the pool. A disabled Journal's Close is a no-op.
func (j *Journal) Close() {
	if !j.enabled {
		return
	}
	close(j.done)
	j.pool.Close()
}

// Ready reports whether the journal's connection pool can reach
// Postgres. A disabled Journal is always ready — it has nothing to
// wait on.
func (j *Journal) Ready(ctx context.Context) error {
	if !j.enabled {
		return nil
	}
	return j.pool.Ping(ctx)
}

func (j *Journal) enqueue(r row) {
	if !j.enabled {
		return
	}
	select {
	case j.rows <- r:
	default:
		metrics.JournalBatchDroppedTotal.WithLabelValues("queue_full").Inc()
	}
}

// InstallBest implements events.Hook.
func (j *Journal) InstallBest(e events.BestPathEvent) { j.enqueue(bestPathRow("install_best", e)) }

// WithdrawBest implements events.Hook.
func (j *Journal) WithdrawBest(e events.BestPathEvent) { j.enqueue(bestPathRow("withdraw_best", e)) }

func bestPathRow(eventType string, e events.BestPathEvent) row {
	nextHop := ""
	if e.NextHop.IsValid() {
		nextHop = e.NextHop.String()
	}
	peer := ""
	if e.Peer.IsValid() {
		peer = e.Peer.String()
	}
	prefix := ""
	if e.Prefix.IsValid() {
		prefix = e.Prefix.String()
	}
	return row{
		eventType:  eventType,
		protocol:   "bgp",
		prefix:     prefix,
		nextHop:    nextHop,
		peer:       peer,
		asPath:     e.ASPath,
		ingestTime: e.Timestamp,
	}
}

// AdjacencyChange implements events.Hook.
func (j *Journal) AdjacencyChange(e events.AdjacencyEvent) {
	j.enqueue(row{
		eventType:  "adjacency_change",
		protocol:   e.Protocol,
		neighbor:   e.Neighbor,
		state:      e.State,
		ingestTime: e.Timestamp,
	})
}

// LsaInstalled implements events.Hook.
func (j *Journal) LsaInstalled(e events.LSAEvent) {
	j.enqueue(row{
		eventType:   "lsa_installed",
		protocol:    "ospf",
		routerID:    e.RouterID,
		lsType:      int16(e.LSType),
		linkStateID: e.LinkStateID,
		seqNumber:   e.SeqNumber,
		ingestTime:  e.Timestamp,
	})
}

// runPipeline batches incoming rows by count or by flushInterval,
// whichever comes first — the same two-trigger shape as the donor's
// history.Pipeline.Run, generalized from a Kafka record channel to this
// journal's own in-process row channel.
func (j *Journal) runPipeline(ctx context.Context) {
	var batch []row
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := j.flushBatch(ctx, batch); err != nil {
			j.logger.Warn("journal: batch flush failed", zap.Error(err), zap.Int("rows", len(batch)))
		}
		batch = nil
	}

	for {
		select {
		case <-j.done:
			flush()
			return
		case r := <-j.rows:
			batch = append(batch, r)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

const insertSQL = `
	INSERT INTO ribagent_events (event_type, protocol, prefix, next_hop, peer, as_path,
		neighbor, state, router_id, lsa_type, link_state_id, seq_number, ingest_time)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func (j *Journal) flushBatch(ctx context.Context, rows []row) error {
	start := time.Now()

	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		ingest := r.ingestTime
		if ingest.IsZero() {
			ingest = time.Now()
		}
		batch.Queue(insertSQL,
			r.eventType, r.protocol, nilIfEmpty(r.prefix), nilIfEmpty(r.nextHop),
			nilIfEmpty(r.peer), nilIfEmpty(r.asPath), nilIfEmpty(r.neighbor), nilIfEmpty(r.state),
			nilIfEmpty(r.routerID), nilIfZeroInt16(r.lsType), nilIfEmpty(r.linkStateID),
			nilIfZeroInt32(r.seqNumber), ingest,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("insert ribagent_event: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch results: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	metrics.JournalWriteDuration.WithLabelValues("ribagent_events").Observe(time.Since(start).Seconds())
	for _, r := range rows {
		metrics.JournalRowsInsertedTotal.WithLabelValues(r.eventType).Inc()
	}
	return nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nilIfZeroInt16(v int16) any {
	if v == 0 {
		return nil
	}
	return v
}

func nilIfZeroInt32(v int32) any {
	if v == 0 {
		return nil
	}
	return v
}
