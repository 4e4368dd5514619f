package crawler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

var errFake = errors.New("fake failure")

type infoCall struct {
	ClientID string
	ID       CategoryID
}

type dictCall struct {
	ClientID    string
	Key         DictAttributeKey
	LastValueID *int64
	Limit       int
}

// fakeAPI serves a scripted catalog and records every call.
type fakeAPI struct {
	mu sync.Mutex

	titles      map[CategoryID]string
	attributes  map[CategoryID][]Attribute
	failInfo    map[CategoryID]bool
	failAttrs   bool
	dictPages   map[DictAttributeKey][]DictionaryPage
	dictFailAt  map[DictAttributeKey]int
	panicOnInfo bool

	infoCalls  []infoCall
	attrCalls  [][]CategoryID
	dictCalls  []dictCall
	dictCursor map[DictAttributeKey]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		titles:     make(map[CategoryID]string),
		attributes: make(map[CategoryID][]Attribute),
		failInfo:   make(map[CategoryID]bool),
		dictPages:  make(map[DictAttributeKey][]DictionaryPage),
		dictFailAt: make(map[DictAttributeKey]int),
		dictCursor: make(map[DictAttributeKey]int),
	}
}

func (f *fakeAPI) CategoryInfo(_ context.Context, cred Credential, id CategoryID) (CategoryInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panicOnInfo {
		panic("exploding transport")
	}
	f.infoCalls = append(f.infoCalls, infoCall{ClientID: cred.ClientID, ID: id})
	if f.failInfo[id] {
		return CategoryInfo{}, fmt.Errorf("category %s: %w", id, errFake)
	}
	title, ok := f.titles[id]
	if !ok {
		title = "Category " + string(id)
	}
	return CategoryInfo{CategoryID: id, Title: title}, nil
}

func (f *fakeAPI) CategoryAttributes(_ context.Context, _ Credential, ids []CategoryID) ([]CategoryAttributes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attrCalls = append(f.attrCalls, slices.Clone(ids))
	if f.failAttrs {
		return nil, errFake
	}
	out := make([]CategoryAttributes, 0, len(ids))
	for _, id := range ids {
		out = append(out, CategoryAttributes{CategoryID: id, Attributes: f.attributes[id]})
	}
	return out, nil
}

func (f *fakeAPI) DictionaryValues(_ context.Context, cred Credential, attributeID int64, categoryID CategoryID, lastValueID *int64, limit int) (DictionaryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := DictAttributeKey{AttributeID: attributeID, CategoryID: categoryID}
	var cursorCopy *int64
	if lastValueID != nil {
		v := *lastValueID
		cursorCopy = &v
	}
	f.dictCalls = append(f.dictCalls, dictCall{ClientID: cred.ClientID, Key: key, LastValueID: cursorCopy, Limit: limit})

	n := f.dictCursor[key]
	f.dictCursor[key] = n + 1
	if at, ok := f.dictFailAt[key]; ok && at == n {
		return DictionaryPage{}, errFake
	}
	pages := f.dictPages[key]
	if n >= len(pages) {
		return DictionaryPage{}, nil
	}
	return pages[n], nil
}

func (f *fakeAPI) dictCallsFor(key DictAttributeKey) []dictCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []dictCall
	for _, c := range f.dictCalls {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}

type dedupCall struct {
	Table string
	Key   []string
}

// fakeStore records batches and dedup calls.
type fakeStore struct {
	mu sync.Mutex

	failWriteTable string
	failDedup      bool

	batches [][]Write
	dedups  []dedupCall
}

func (s *fakeStore) ExecuteWrites(_ context.Context, batch []Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range batch {
		if w.Table == s.failWriteTable {
			return errFake
		}
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeStore) Deduplicate(_ context.Context, table string, key []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failDedup {
		return errFake
	}
	s.dedups = append(s.dedups, dedupCall{Table: table, Key: slices.Clone(key)})
	return nil
}

func (s *fakeStore) rows(table string) []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Write
	for _, b := range s.batches {
		for _, w := range b {
			if w.Table == table {
				out = append(out, w)
			}
		}
	}
	return out
}

func (s *fakeStore) dedupsOn(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.dedups {
		if d.Table == table {
			n++
		}
	}
	return n
}

func column(w Write, name string) any {
	i := slices.Index(w.Columns, name)
	if i < 0 {
		return nil
	}
	return w.Values[i]
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func valuesPage(firstID int64, n int, hasNext bool) DictionaryPage {
	values := make([]DictionaryValue, n)
	for i := range values {
		id := firstID + int64(i)
		values[i] = DictionaryValue{ID: id, Value: fmt.Sprintf("v%d", id)}
	}
	return DictionaryPage{Values: values, HasNext: hasNext}
}
