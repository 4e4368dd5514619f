// Package store persists crawl results in PostgreSQL.
//
// Writes are grouped per table and bulk-loaded with COPY inside one
// transaction. Deduplication keeps the earliest physical row per key and is
// serialised per table with a transaction-scoped advisory lock, so shards that
// finish at the same time never delete each other's survivors.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/ozon-catalog-crawler/internal/crawler"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrStore wraps every failure reported by the store.
var ErrStore = errors.New("store operation failed")

var (
	rowsCopied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_rows_copied_total",
		Help: "Rows bulk-loaded by table",
	}, []string{"table"})

	rowsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_rows_deduplicated_total",
		Help: "Duplicate rows removed by table",
	}, []string{"table"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_operation_duration_seconds",
		Help:    "Store operation duration by operation",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"operation"})
)

const defaultMaxConns = 10

// Store is a crawler.Store backed by a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

var _ crawler.Store = (*Store)(nil)

// Open connects to databaseURL. maxConns <= 0 uses the default pool size.
func Open(ctx context.Context, databaseURL string, maxConns int32, logger zerolog.Logger) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("%w: database url is required", ErrStore)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database url: %w", ErrStore, err)
	}
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %w", ErrStore, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrStore, err)
	}

	return New(pool, logger)
}

// New wraps an existing pool. The caller keeps ownership of the pool unless
// Close is called.
func New(pool *pgxpool.Pool, logger zerolog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: pgx pool is required", ErrStore)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// tableBatch is the rows of one table in a write batch.
type tableBatch struct {
	table   string
	columns []string
	rows    [][]any
}

// groupWrites groups writes by table, keeping first-seen table order. All
// writes to one table must use the same columns.
func groupWrites(batch []crawler.Write) ([]*tableBatch, error) {
	var groups []*tableBatch
	byTable := make(map[string]*tableBatch)

	for i, w := range batch {
		if w.Table == "" {
			return nil, fmt.Errorf("write %d: empty table name", i)
		}
		if len(w.Columns) == 0 || len(w.Columns) != len(w.Values) {
			return nil, fmt.Errorf("write %d to %s: %d columns for %d values", i, w.Table, len(w.Columns), len(w.Values))
		}

		g, ok := byTable[w.Table]
		if !ok {
			g = &tableBatch{table: w.Table, columns: w.Columns}
			byTable[w.Table] = g
			groups = append(groups, g)
		} else if !sameColumns(g.columns, w.Columns) {
			return nil, fmt.Errorf("write %d to %s: columns %v differ from %v", i, w.Table, w.Columns, g.columns)
		}
		g.rows = append(g.rows, w.Values)
	}

	return groups, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ExecuteWrites bulk-loads batch in one transaction. An empty batch is a no-op.
func (s *Store) ExecuteWrites(ctx context.Context, batch []crawler.Write) error {
	if len(batch) == 0 {
		return nil
	}

	groups, err := groupWrites(batch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}

	start := time.Now()
	defer func() {
		operationDuration.WithLabelValues("write").Observe(time.Since(start).Seconds())
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrStore, err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.logger.Warn().Err(rollbackErr).Msg("Rollback failed")
		}
	}()

	for _, g := range groups {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{g.table}, g.columns, pgx.CopyFromRows(g.rows))
		if err != nil {
			return fmt.Errorf("%w: copy into %s: %w", ErrStore, g.table, err)
		}
		if int(n) != len(g.rows) {
			return fmt.Errorf("%w: copy into %s: copied %d of %d rows", ErrStore, g.table, n, len(g.rows))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStore, err)
	}

	for _, g := range groups {
		rowsCopied.WithLabelValues(g.table).Add(float64(len(g.rows)))
		s.logger.Debug().Str("table", g.table).Int("rows", len(g.rows)).Msg("Rows copied")
	}
	return nil
}

// dedupSQL builds the statement that removes every row of table whose key
// repeats an earlier row (by ctid).
func dedupSQL(table string, key []string) (string, error) {
	if table == "" {
		return "", errors.New("empty table name")
	}
	if len(key) == 0 {
		return "", fmt.Errorf("empty dedup key for %s", table)
	}

	cols := make([]string, len(key))
	for i, k := range key {
		if k == "" {
			return "", fmt.Errorf("empty key column for %s", table)
		}
		cols[i] = pgx.Identifier{k}.Sanitize()
	}
	t := pgx.Identifier{table}.Sanitize()

	return fmt.Sprintf(
		`DELETE FROM %s WHERE ctid IN (`+
			`SELECT ctid FROM (`+
			`SELECT ctid, row_number() OVER (PARTITION BY %s ORDER BY ctid) AS rn FROM %s`+
			`) ranked WHERE rn > 1)`,
		t, strings.Join(cols, ", "), t,
	), nil
}

// Deduplicate removes rows of table that repeat key, keeping the earliest
// physical row. Concurrent calls for the same table run one at a time.
func (s *Store) Deduplicate(ctx context.Context, table string, key []string) error {
	query, err := dedupSQL(table, key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}

	start := time.Now()
	defer func() {
		operationDuration.WithLabelValues("dedup").Observe(time.Since(start).Seconds())
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrStore, err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.logger.Warn().Err(rollbackErr).Msg("Rollback failed")
		}
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "dedup:"+table); err != nil {
		return fmt.Errorf("%w: lock %s: %w", ErrStore, table, err)
	}

	tag, err := tx.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: dedup %s: %w", ErrStore, table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStore, err)
	}

	removed := tag.RowsAffected()
	rowsDeduplicated.WithLabelValues(table).Add(float64(removed))
	s.logger.Debug().Str("table", table).Int64("removed", removed).Msg("Duplicates removed")
	return nil
}
