package crawler

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/Sternrassler/ozon-catalog-crawler/internal/shard"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the category phase and the dictionary phase across all
// credentials, with a full barrier between them.
type Orchestrator struct {
	categories   *CategoryWorker
	dictionaries *DictionaryPager
	logger       zerolog.Logger
}

// NewOrchestrator creates an orchestrator over api and store.
func NewOrchestrator(api CatalogAPI, store Store, cfg WorkerConfig, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		categories:   NewCategoryWorker(api, store, cfg, logger),
		dictionaries: NewDictionaryPager(api, store, cfg, logger),
		logger:       logger,
	}
}

// RunAll crawls ids with one shard per credential. The only error is
// shard.ErrInvalidPartition (no credentials), returned before any work
// starts; unit failures are reported in the Summary.
func (o *Orchestrator) RunAll(ctx context.Context, creds []Credential, ids []CategoryID) (*Summary, error) {
	work := make([]CategoryID, 0, len(ids))
	for _, id := range ids {
		if id != SentinelCategoryID {
			work = append(work, id)
		}
	}

	categoryShards, err := shard.Partition(work, len(creds))
	if err != nil {
		return nil, fmt.Errorf("partition categories: %w", err)
	}

	summary := &Summary{Shards: len(creds), CategoryIDs: len(work)}

	o.logger.Info().
		Int("credentials", len(creds)).
		Int("category_ids", len(work)).
		Msg("Starting category phase")

	// Phase 1: categories and attributes.
	results := make([]CategoryResult, len(creds))
	runPhase(ctx, "categories", len(creds), func(ctx context.Context, i int) {
		results[i] = o.categories.Run(ctx, i, creds[i], categoryShards[i])
	})

	dictKeys := make(map[DictAttributeKey]struct{})
	for _, r := range results {
		summary.merge(r.Report)
		maps.Copy(dictKeys, r.DictKeys)
	}
	summary.DictionaryKeys = len(dictKeys)

	// Phase 2: dictionary values.
	keys := slices.SortedFunc(maps.Keys(dictKeys), compareDictKeys)
	keyShards, err := shard.Partition(keys, len(creds))
	if err != nil {
		return nil, fmt.Errorf("partition dictionary keys: %w", err)
	}

	o.logger.Info().
		Int("dictionary_keys", len(keys)).
		Msg("Starting dictionary phase")

	reports := make([]ShardReport, len(creds))
	runPhase(ctx, "dictionaries", len(creds), func(ctx context.Context, i int) {
		reports[i] = o.runDictionaryShard(ctx, i, creds[i], keyShards[i])
	})

	for _, r := range reports {
		summary.merge(r)
	}

	summary.Log(o.logger)
	return summary, nil
}

func (o *Orchestrator) runDictionaryShard(ctx context.Context, i int, cred Credential, keys []DictAttributeKey) (report ShardReport) {
	report = ShardReport{ClientID: cred.ClientID, Shard: i}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			o.logger.Error().Err(err).Str("client_id", cred.ClientID).Msg("Unexpected error in dictionary worker")
			report.fail(UnitShard, fmt.Sprintf("dictionaries#%d", i), err)
		}
	}()

	for _, key := range keys {
		o.dictionaries.Run(ctx, cred, key, &report)
	}

	o.logger.Info().
		Str("client_id", cred.ClientID).
		Int("shard", i).
		Int("pairs", len(keys)).
		Int("pages", report.PagesWritten).
		Msg("Dictionary values committed")

	return report
}

// runPhase starts one task per shard on a pool with one slot per credential
// and blocks until every task has returned. Tasks never cancel each other.
func runPhase(ctx context.Context, phase string, shards int, task func(ctx context.Context, i int)) {
	start := time.Now()
	defer func() {
		phaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}()

	var g errgroup.Group
	g.SetLimit(shards)
	for i := range shards {
		g.Go(func() error {
			shardsActive.WithLabelValues(phase).Inc()
			defer shardsActive.WithLabelValues(phase).Dec()
			task(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}
