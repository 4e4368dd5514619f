package crawler

import "context"

// CatalogAPI is the remote catalog. Every call is scoped to one credential.
// Implementations classify failures as connection, bad response or parse errors.
type CatalogAPI interface {
	// CategoryInfo resolves the name of one category.
	CategoryInfo(ctx context.Context, cred Credential, id CategoryID) (CategoryInfo, error)

	// CategoryAttributes returns attribute metadata for up to 20 categories.
	CategoryAttributes(ctx context.Context, cred Credential, ids []CategoryID) ([]CategoryAttributes, error)

	// DictionaryValues returns one page of values. lastValueID is nil for the first page.
	DictionaryValues(ctx context.Context, cred Credential, attributeID int64, categoryID CategoryID, lastValueID *int64, limit int) (DictionaryPage, error)
}

// Store is the shared bulk-write sink. It must be safe for concurrent use.
type Store interface {
	// ExecuteWrites applies a batch of row inserts. An empty batch is a no-op.
	ExecuteWrites(ctx context.Context, batch []Write) error

	// Deduplicate removes rows of table that repeat key, keeping one survivor per key.
	Deduplicate(ctx context.Context, table string, key []string) error
}
