package crawler

import (
	"context"

	"github.com/Sternrassler/ozon-catalog-crawler/pkg/logging"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/pagination"
	"github.com/rs/zerolog"
)

// DictionaryPager resolves all values of one attribute dictionary.
type DictionaryPager struct {
	api       CatalogAPI
	store     Store
	pageLimit int
	logger    zerolog.Logger
}

// NewDictionaryPager creates a pager that fetches cfg.DictionaryPageLimit values per call.
func NewDictionaryPager(api CatalogAPI, store Store, cfg WorkerConfig, logger zerolog.Logger) *DictionaryPager {
	return &DictionaryPager{
		api:       api,
		store:     store,
		pageLimit: cfg.withDefaults().DictionaryPageLimit,
		logger:    logger,
	}
}

// Run pages through key's dictionary, writing and deduplicating after every
// page. Failures stop this pair only: they are logged and recorded in report,
// and pages already written stay in the store.
func (p *DictionaryPager) Run(ctx context.Context, cred Credential, key DictAttributeKey, report *ShardReport) {
	logger := logging.WithCredential(p.logger, cred.ClientID).With().
		Int64("attribute_id", key.AttributeID).
		Str("category_id", string(key.CategoryID)).
		Logger()

	report.DictionaryPairs++

	pager := pagination.NewCursorPager(
		func(ctx context.Context, cursor pagination.Cursor[int64]) (pagination.Page[DictionaryValue], error) {
			var lastValueID *int64
			if cursor.Valid {
				lastValueID = &cursor.Last
			}
			page, err := p.api.DictionaryValues(ctx, cred, key.AttributeID, key.CategoryID, lastValueID, p.pageLimit)
			if err != nil {
				return pagination.Page[DictionaryValue]{}, err
			}
			return pagination.Page[DictionaryValue]{Items: page.Values, HasNext: page.HasNext}, nil
		},
		func(v DictionaryValue) int64 { return v.ID },
	)

	for page, err := range pager.Pages(ctx) {
		if err != nil {
			logger.Error().Err(err).Msg("Dictionary pagination stopped")
			report.fail(UnitDictionaryPair, key.String(), err)
			return
		}

		batch := make([]Write, len(page.Items))
		for i, v := range page.Items {
			batch[i] = dictionaryValueRecord(key.AttributeID, v).Write()
		}

		if err := persistBatch(ctx, p.store, report, TableDictionaryValue, DictionaryValueDedupKey, batch); err != nil {
			logger.Error().Err(err).Int("page", page.Number).Msg("Dictionary page write failed")
			return
		}

		dictionaryPagesTotal.Inc()
		report.PagesWritten++
		report.ValuesWritten += len(batch)

		logger.Debug().
			Int("page", page.Number).
			Int("values", len(batch)).
			Bool("has_next", page.HasNext).
			Msg("Dictionary page committed")
	}

	unitsTotal.WithLabelValues(string(UnitDictionaryPair), "ok").Inc()
}
