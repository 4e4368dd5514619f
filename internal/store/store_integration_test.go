//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Sternrassler/ozon-catalog-crawler/internal/crawler"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

// setupTestStore starts a Postgres container and returns a migrated store.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("crawler"),
		postgres.WithUsername("crawler"),
		postgres.WithPassword("crawler"),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() { tc.CleanupContainer(t, container) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	s, err := Open(ctx, connStr, 8, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.MigrateUp(ctx); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	// Re-running must be harmless.
	if err := s.MigrateUp(ctx); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}

	return s
}

func countRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestIntegration_ExecuteWritesAndDeduplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := []crawler.Write{
		crawler.CategoryRecord{Name: "Books", CategoryID: "1", MarketplaceID: 1}.Write(),
		crawler.CategoryRecord{Name: "Toys", CategoryID: "2", MarketplaceID: 1}.Write(),
	}
	second := []crawler.Write{
		crawler.CategoryRecord{Name: "Books (renamed)", CategoryID: "1", MarketplaceID: 1}.Write(),
	}

	if err := s.ExecuteWrites(ctx, first); err != nil {
		t.Fatalf("ExecuteWrites failed: %v", err)
	}
	if err := s.ExecuteWrites(ctx, second); err != nil {
		t.Fatalf("ExecuteWrites failed: %v", err)
	}
	if got := countRows(t, s.pool, `SELECT count(*) FROM category`); got != 3 {
		t.Fatalf("rows before dedup = %d, want 3", got)
	}

	if err := s.Deduplicate(ctx, crawler.TableCategory, crawler.CategoryDedupKey); err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}

	if got := countRows(t, s.pool, `SELECT count(*) FROM category`); got != 2 {
		t.Errorf("rows after dedup = %d, want 2", got)
	}

	var name string
	if err := s.pool.QueryRow(ctx, `SELECT "name" FROM category WHERE cat_id = '1'`).Scan(&name); err != nil {
		t.Fatalf("select survivor failed: %v", err)
	}
	if name != "Books" {
		t.Errorf("survivor = %q, want the earliest row %q", name, "Books")
	}
}

func TestIntegration_DeduplicateIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := crawler.DictionaryValueRecord{Value: "Acme", AttributeParamID: 971, AttributeID: 85}
	batch := []crawler.Write{rec.Write(), rec.Write(), rec.Write()}
	if err := s.ExecuteWrites(ctx, batch); err != nil {
		t.Fatalf("ExecuteWrites failed: %v", err)
	}

	for range 2 {
		if err := s.Deduplicate(ctx, crawler.TableDictionaryValue, crawler.DictionaryValueDedupKey); err != nil {
			t.Fatalf("Deduplicate failed: %v", err)
		}
	}

	if got := countRows(t, s.pool, `SELECT count(*) FROM attr_param_list WHERE db_i = $1`, "85971"); got != 1 {
		t.Errorf("rows for db_i 85971 = %d, want 1", got)
	}
}

func TestIntegration_ConcurrentWritersAndDedup(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var batch []crawler.Write
			for i := range 50 {
				// Every worker writes the same 50 keys.
				batch = append(batch, crawler.AttributeRecord{
					AttrID:     fmt.Sprint(i),
					Name:       fmt.Sprintf("attr-%d-from-%d", i, w),
					CategoryID: "7",
				}.Write())
			}
			if err := s.ExecuteWrites(ctx, batch); err != nil {
				errs <- err
				return
			}
			if err := s.Deduplicate(ctx, crawler.TableAttribute, crawler.AttributeDedupKey); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("worker failed: %v", err)
	}

	if got := countRows(t, s.pool, `SELECT count(*) FROM cat_list`); got != 50 {
		t.Errorf("rows = %d, want 50 unique keys", got)
	}
}

func TestIntegration_ExecuteWritesRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	batch := []crawler.Write{
		crawler.CategoryRecord{Name: "Books", CategoryID: "1", MarketplaceID: 1}.Write(),
		{Table: "no_such_table", Columns: []string{"x"}, Values: []any{"y"}},
	}

	err := s.ExecuteWrites(ctx, batch)
	if !errors.Is(err, ErrStore) {
		t.Fatalf("Expected ErrStore, got %v", err)
	}
	if got := countRows(t, s.pool, `SELECT count(*) FROM category`); got != 0 {
		t.Errorf("rows = %d, want 0 after rollback", got)
	}
}

func TestIntegration_LoadCredentialsAndCategoryIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO seller_credentials (client_id, api_key, active) VALUES
			('b', 'key-b', TRUE), ('a', 'key-a', TRUE), ('c', 'key-c', FALSE);
		INSERT INTO crawl_category (cat_id) VALUES ('2'), ('1'), ('0');
	`); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	creds, err := s.LoadCredentials(ctx, "")
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	want := []crawler.Credential{{ClientID: "a", APIKey: "key-a"}, {ClientID: "b", APIKey: "key-b"}}
	if len(creds) != len(want) || creds[0] != want[0] || creds[1] != want[1] {
		t.Errorf("credentials = %v, want %v", creds, want)
	}

	ids, err := s.LoadCategoryIDs(ctx, "")
	if err != nil {
		t.Fatalf("LoadCategoryIDs failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != "0" || ids[2] != "2" {
		t.Errorf("category ids = %v, want [0 1 2]", ids)
	}

	custom, err := s.LoadCategoryIDs(ctx, `SELECT cat_id FROM crawl_category WHERE cat_id <> '0' ORDER BY cat_id DESC`)
	if err != nil {
		t.Fatalf("LoadCategoryIDs with custom query failed: %v", err)
	}
	if len(custom) != 2 || custom[0] != "2" {
		t.Errorf("custom ids = %v, want [2 1]", custom)
	}
}

func TestIntegration_MigrateDown(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	if err := s.ExecuteWrites(ctx, []crawler.Write{
		crawler.CategoryRecord{Name: "x", CategoryID: "1", MarketplaceID: 1}.Write(),
	}); !errors.Is(err, ErrStore) {
		t.Errorf("Expected ErrStore after MigrateDown, got %v", err)
	}
}
