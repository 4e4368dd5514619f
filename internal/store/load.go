package store

import (
	"context"
	"fmt"

	"github.com/Sternrassler/ozon-catalog-crawler/internal/crawler"
	"github.com/jackc/pgx/v5"
)

// Default startup queries. Both must return text columns.
const (
	DefaultCredentialsQuery = `SELECT client_id, api_key FROM seller_credentials WHERE active ORDER BY client_id`
	DefaultCategoryIDsQuery = `SELECT cat_id FROM crawl_category ORDER BY cat_id`
)

// LoadCredentials runs query, which must return (client_id, api_key) rows.
func (s *Store) LoadCredentials(ctx context.Context, query string) ([]crawler.Credential, error) {
	if query == "" {
		query = DefaultCredentialsQuery
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: load credentials: %w", ErrStore, err)
	}

	creds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (crawler.Credential, error) {
		var c crawler.Credential
		err := row.Scan(&c.ClientID, &c.APIKey)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan credentials: %w", ErrStore, err)
	}

	s.logger.Info().Int("count", len(creds)).Msg("Credentials loaded")
	return creds, nil
}

// LoadCategoryIDs runs query, which must return one category ID column.
func (s *Store) LoadCategoryIDs(ctx context.Context, query string) ([]crawler.CategoryID, error) {
	if query == "" {
		query = DefaultCategoryIDsQuery
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: load category ids: %w", ErrStore, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: scan category ids: %w", ErrStore, err)
	}

	out := make([]crawler.CategoryID, len(ids))
	for i, id := range ids {
		out[i] = crawler.CategoryID(id)
	}

	s.logger.Info().Int("count", len(out)).Msg("Category IDs collected")
	return out, nil
}
