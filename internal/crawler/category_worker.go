package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/ozon-catalog-crawler/pkg/logging"
	"github.com/rs/zerolog"
)

// WorkerConfig holds per-worker crawl settings.
type WorkerConfig struct {
	// MarketplaceID is stored with every category row.
	MarketplaceID int

	// AttributeBatchSize is the number of categories per attribute request (API maximum 20).
	AttributeBatchSize int

	// DictionaryPageLimit is the page size for dictionary values.
	DictionaryPageLimit int
}

// DefaultWorkerConfig returns the settings the seller API expects.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MarketplaceID:       defaultMarketplaceID,
		AttributeBatchSize:  defaultAttributeBatch,
		DictionaryPageLimit: defaultDictionaryPage,
	}
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.MarketplaceID <= 0 {
		c.MarketplaceID = defaultMarketplaceID
	}
	if c.AttributeBatchSize <= 0 || c.AttributeBatchSize > defaultAttributeBatch {
		c.AttributeBatchSize = defaultAttributeBatch
	}
	if c.DictionaryPageLimit <= 0 {
		c.DictionaryPageLimit = defaultDictionaryPage
	}
	return c
}

// CategoryResult is what one category shard produced.
type CategoryResult struct {
	Report   ShardReport
	DictKeys map[DictAttributeKey]struct{}
}

// CategoryWorker resolves a shard of category IDs into category and attribute
// rows and reports the dictionary attributes it discovered.
type CategoryWorker struct {
	api    CatalogAPI
	store  Store
	config WorkerConfig
	logger zerolog.Logger
}

// NewCategoryWorker creates a category worker.
func NewCategoryWorker(api CatalogAPI, store Store, cfg WorkerConfig, logger zerolog.Logger) *CategoryWorker {
	return &CategoryWorker{
		api:    api,
		store:  store,
		config: cfg.withDefaults(),
		logger: logger,
	}
}

// Run crawls ids with cred. It never fails as a whole: failed units are
// recorded in the report, and the dictionary keys gathered before a fatal
// step are always returned.
func (w *CategoryWorker) Run(ctx context.Context, shard int, cred Credential, ids []CategoryID) (result CategoryResult) {
	result = CategoryResult{
		Report:   ShardReport{ClientID: cred.ClientID, Shard: shard},
		DictKeys: make(map[DictAttributeKey]struct{}),
	}
	logger := logging.WithShard(w.logger, cred.ClientID, shard)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error().Err(err).Msg("Unexpected error in category worker")
			result.Report.fail(UnitShard, fmt.Sprintf("categories#%d", shard), err)
		}
	}()

	if len(ids) == 0 {
		logger.Debug().Msg("Empty category shard")
		return result
	}

	// Step 1: resolve category names.
	var categories []Write
	var valid []CategoryID
	for _, id := range ids {
		if id == SentinelCategoryID {
			continue
		}

		info, err := w.api.CategoryInfo(ctx, cred, id)
		if err != nil {
			logger.Warn().Err(err).Str("category_id", string(id)).Msg("Category info failed, skipping category")
			result.Report.fail(UnitCategoryInfo, string(id), err)
			continue
		}
		unitsTotal.WithLabelValues(string(UnitCategoryInfo), "ok").Inc()

		categories = append(categories, CategoryRecord{
			Name:          info.Title,
			CategoryID:    id,
			MarketplaceID: w.config.MarketplaceID,
		}.Write())
		valid = append(valid, id)
	}

	// Step 2: persist categories.
	if err := persistBatch(ctx, w.store, &result.Report, TableCategory, CategoryDedupKey, categories); err != nil {
		logger.Error().Err(err).Msg("Category write failed, aborting shard")
		return result
	}
	result.Report.CategoriesWritten = len(categories)

	// Step 3: attribute metadata in batches.
	var attributes []Write
	for start := 0; start < len(valid); start += w.config.AttributeBatchSize {
		batch := valid[start:min(start+w.config.AttributeBatchSize, len(valid))]

		reported, err := w.api.CategoryAttributes(ctx, cred, batch)
		if err != nil {
			logger.Warn().Err(err).Int("batch_start", start).Int("batch_size", len(batch)).Msg("Attribute batch failed")
			result.Report.fail(UnitAttributeBatch, joinIDs(batch), err)
			continue
		}
		unitsTotal.WithLabelValues(string(UnitAttributeBatch), "ok").Inc()

		for _, category := range reported {
			if category.CategoryID == SentinelCategoryID {
				continue
			}
			for _, attr := range category.Attributes {
				attributes = append(attributes, attributeRecord(category.CategoryID, attr).Write())
				if attr.DictionaryID != 0 {
					result.DictKeys[DictAttributeKey{AttributeID: attr.ID, CategoryID: category.CategoryID}] = struct{}{}
				}
			}
			for _, name := range NamedAttributes {
				attributes = append(attributes, namedAttributeRecord(category.CategoryID, name).Write())
			}
		}
	}

	// Step 4: persist attributes.
	if err := persistBatch(ctx, w.store, &result.Report, TableAttribute, AttributeDedupKey, attributes); err != nil {
		logger.Error().Err(err).Msg("Attribute write failed")
		return result
	}
	result.Report.AttributesWritten = len(attributes)

	logger.Info().
		Int("categories", len(categories)).
		Int("attributes", len(attributes)).
		Int("dictionary_keys", len(result.DictKeys)).
		Msg("Categories info committed")

	return result
}

// persistBatch writes batch and deduplicates table. Writes already issued
// stay committed when the dedup fails.
func persistBatch(ctx context.Context, store Store, report *ShardReport, table string, key []string, batch []Write) error {
	if err := store.ExecuteWrites(ctx, batch); err != nil {
		err = fmt.Errorf("write %s: %w", table, err)
		report.fail(UnitWrite, table, err)
		return err
	}
	unitsTotal.WithLabelValues(string(UnitWrite), "ok").Inc()
	recordsWrittenTotal.WithLabelValues(table).Add(float64(len(batch)))

	if err := store.Deduplicate(ctx, table, key); err != nil {
		err = fmt.Errorf("deduplicate %s: %w", table, err)
		report.fail(UnitDedup, table, err)
		return err
	}
	unitsTotal.WithLabelValues(string(UnitDedup), "ok").Inc()

	return nil
}

func joinIDs(ids []CategoryID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
