package journal

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var validPartitionName = regexp.MustCompile(`^ribagent_events_\d{8}$`)

// partitionManager creates tomorrow's and today's daily partitions of
// ribagent_events ahead of need and drops whatever has aged out past the
// configured retention window, the same two-part maintenance cycle the
// donor's history retention sweep runs, narrowed to the one table this
// journal writes.
type partitionManager struct {
	pool          *pgxpool.Pool
	retentionDays int
	logger        *zap.Logger
}

func newPartitionManager(pool *pgxpool.Pool, retentionDays int, logger *zap.Logger) *partitionManager {
	return &partitionManager{pool: pool, retentionDays: retentionDays, logger: logger}
}

func (pm *partitionManager) run(ctx context.Context) {
	if err := pm.createPartitions(ctx); err != nil {
		pm.logger.Warn("journal: creating partitions failed", zap.Error(err))
	}
	if err := pm.dropOldPartitions(ctx); err != nil {
		pm.logger.Warn("journal: dropping old partitions failed", zap.Error(err))
	}
}

func (pm *partitionManager) createPartitions(ctx context.Context) error {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)
	dayAfter := today.AddDate(0, 0, 2)

	if err := pm.createPartition(ctx, today, tomorrow); err != nil {
		return err
	}
	return pm.createPartition(ctx, tomorrow, dayAfter)
}

func (pm *partitionManager) createPartition(ctx context.Context, from, to time.Time) error {
	name := fmt.Sprintf("ribagent_events_%s", from.Format("20060102"))
	safeName := pgx.Identifier{name}.Sanitize()
	fromStr := from.Format("2006-01-02 15:04:05+00")
	toStr := to.Format("2006-01-02 15:04:05+00")

	createSQL := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF ribagent_events FOR VALUES FROM ('%s') TO ('%s')`,
		safeName, fromStr, toStr,
	)
	if _, err := pm.pool.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("creating partition %s: %w", name, err)
	}
	pm.logger.Debug("journal partition ensured", zap.String("partition", name))
	return nil
}

func (pm *partitionManager) dropOldPartitions(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -pm.retentionDays)
	cutoffDate := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)

	rows, err := pm.pool.Query(ctx,
		`SELECT inhrelid::regclass::text FROM pg_inherits WHERE inhparent = 'ribagent_events'::regclass`)
	if err != nil {
		return fmt.Errorf("listing partitions: %w", err)
	}
	var partitions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scanning partition name: %w", err)
		}
		partitions = append(partitions, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating partitions: %w", err)
	}

	for _, name := range partitions {
		if !validPartitionName.MatchString(name) {
			continue
		}
		dateStr := name[len(name)-8:]
		partDate, err := time.ParseInLocation("20060102", dateStr, time.UTC)
		if err != nil {
			continue
		}
		if partDate.Before(cutoffDate) {
			safeName := pgx.Identifier{name}.Sanitize()
			if _, err := pm.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", safeName)); err != nil {
				return fmt.Errorf("dropping partition %s: %w", name, err)
			}
			pm.logger.Info("journal: dropped retained-past-window partition", zap.String("partition", name))
		}
	}
	return nil
}
