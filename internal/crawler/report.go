package crawler

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// UnitKind names a unit of work whose failure is isolated from its siblings.
type UnitKind string

const (
	// UnitCategoryInfo is one category name lookup.
	UnitCategoryInfo UnitKind = "category_info"

	// UnitAttributeBatch is one attribute request for up to 20 categories.
	UnitAttributeBatch UnitKind = "attribute_batch"

	// UnitWrite is one batched write to the store.
	UnitWrite UnitKind = "write"

	// UnitDedup is one dedup pass over a table.
	UnitDedup UnitKind = "dedup"

	// UnitDictionaryPair is the full pagination of one (attribute, category) pair.
	UnitDictionaryPair UnitKind = "dictionary_pair"

	// UnitShard is a whole shard task, used when a worker panics.
	UnitShard UnitKind = "shard"
)

// Failure is a unit of work that did not complete.
type Failure struct {
	Kind     UnitKind
	ClientID string
	Subject  string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s (client %s): %v", f.Kind, f.Subject, f.ClientID, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// ShardReport accumulates what one shard task did. Each task owns its
// report; reports are merged only after the phase barrier.
type ShardReport struct {
	ClientID string
	Shard    int

	CategoriesWritten int
	AttributesWritten int
	DictionaryPairs   int
	PagesWritten      int
	ValuesWritten     int

	Failures []Failure
}

func (r *ShardReport) fail(kind UnitKind, subject string, err error) {
	r.Failures = append(r.Failures, Failure{
		Kind:     kind,
		ClientID: r.ClientID,
		Subject:  subject,
		Err:      err,
	})
	unitsTotal.WithLabelValues(string(kind), "failed").Inc()
}

// Summary is the merged result of a complete run.
type Summary struct {
	Shards            int
	CategoryIDs       int
	CategoriesWritten int
	AttributesWritten int
	DictionaryKeys    int
	DictionaryPairs   int
	DictionaryPages   int
	DictionaryValues  int
	Failures          []Failure
}

func (s *Summary) merge(r ShardReport) {
	s.CategoriesWritten += r.CategoriesWritten
	s.AttributesWritten += r.AttributesWritten
	s.DictionaryPairs += r.DictionaryPairs
	s.DictionaryPages += r.PagesWritten
	s.DictionaryValues += r.ValuesWritten
	s.Failures = append(s.Failures, r.Failures...)
}

// Err joins all failures, or returns nil when every unit completed.
func (s *Summary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(s.Failures))
	for i, f := range s.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// FailuresByKind counts failures per unit kind.
func (s *Summary) FailuresByKind() map[UnitKind]int {
	counts := make(map[UnitKind]int)
	for _, f := range s.Failures {
		counts[f.Kind]++
	}
	return counts
}

// Log writes the end-of-run summary.
func (s *Summary) Log(logger zerolog.Logger) {
	event := logger.Info()
	if len(s.Failures) > 0 {
		event = logger.Warn()
	}

	failures := zerolog.Dict()
	for kind, n := range s.FailuresByKind() {
		failures.Int(string(kind), n)
	}

	event.
		Int("shards", s.Shards).
		Int("category_ids", s.CategoryIDs).
		Int("categories_written", s.CategoriesWritten).
		Int("attributes_written", s.AttributesWritten).
		Int("dictionary_keys", s.DictionaryKeys).
		Int("dictionary_pairs", s.DictionaryPairs).
		Int("dictionary_pages", s.DictionaryPages).
		Int("dictionary_values", s.DictionaryValues).
		Dict("failures", failures).
		Msg("Crawl run completed")
}
