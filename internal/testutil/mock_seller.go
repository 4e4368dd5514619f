// Package testutil provides an in-memory seller API server for tests.
package testutil

import (
	"cmp"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"time"
)

// Seller API paths served by the mock.
const (
	PathCategoryTree       = "/v2/category/tree"
	PathCategoryAttributes = "/v3/category/attribute"
	PathDictionaryValues   = "/v2/category/attribute/values"
)

// MockResponse defines a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAttribute is one attribute entry served by the attribute endpoint.
type MockAttribute struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Type         string `json:"type"`
	IsCollection bool   `json:"is_collection"`
	IsRequired   bool   `json:"is_required"`
	GroupID      int64  `json:"group_id"`
	GroupName    string `json:"group_name"`
	DictionaryID int64  `json:"dictionary_id"`
}

// MockValue is one dictionary value.
type MockValue struct {
	ID      int64  `json:"id"`
	Value   string `json:"value"`
	Info    string `json:"info"`
	Picture string `json:"picture"`
}

type dictKey struct {
	attributeID int64
	categoryID  int64
}

// MockSeller is a configurable seller API server. Catalog data is served from
// memory; individual paths can be overridden with canned responses.
type MockSeller struct {
	server *httptest.Server

	mu           sync.RWMutex
	titles       map[int64]string
	attributes   map[int64][]MockAttribute
	dictionaries map[dictKey][]MockValue
	overrides    map[string][]MockResponse
	requests     map[string]int
	clients      map[string]int

	// LastRequestHeader is the header of the most recent request.
	LastRequestHeader http.Header
}

// NewMockSeller starts a mock seller API server.
func NewMockSeller() *MockSeller {
	mock := &MockSeller{
		titles:       make(map[int64]string),
		attributes:   make(map[int64][]MockAttribute),
		dictionaries: make(map[dictKey][]MockValue),
		overrides:    make(map[string][]MockResponse),
		requests:     make(map[string]int),
		clients:      make(map[string]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the mock server URL.
func (m *MockSeller) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSeller) Close() {
	m.server.Close()
}

// AddCategory registers a category title.
func (m *MockSeller) AddCategory(id int64, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles[id] = title
}

// AddAttributes registers the attributes of a category.
func (m *MockSeller) AddAttributes(categoryID int64, attrs ...MockAttribute) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributes[categoryID] = append(m.attributes[categoryID], attrs...)
}

// AddDictionary registers dictionary values for an (attribute, category) pair.
// Values are served in ascending ID order.
func (m *MockSeller) AddDictionary(attributeID, categoryID int64, values ...MockValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dictKey{attributeID, categoryID}
	m.dictionaries[key] = append(m.dictionaries[key], values...)
	slices.SortFunc(m.dictionaries[key], func(a, b MockValue) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

// QueueResponse makes the next request to path return resp instead of catalog
// data. Queued responses are consumed in order.
func (m *MockSeller) QueueResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[path] = append(m.overrides[path], resp)
}

// RequestCount returns the number of requests made to path.
func (m *MockSeller) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// ClientRequestCount returns the number of requests made with a Client-Id.
func (m *MockSeller) ClientRequestCount(clientID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients[clientID]
}

// LastHeader returns the header of the most recent request.
func (m *MockSeller) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

func (m *MockSeller) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests[r.URL.Path]++
	m.clients[r.Header.Get("Client-Id")]++
	m.LastRequestHeader = r.Header.Clone()
	var override *MockResponse
	if queue := m.overrides[r.URL.Path]; len(queue) > 0 {
		override = &queue[0]
		m.overrides[r.URL.Path] = queue[1:]
	}
	m.mu.Unlock()

	if override != nil {
		writeCanned(w, *override)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.Header.Get("Client-Id") == "" || r.Header.Get("Api-Key") == "" {
		writeError(w, http.StatusUnauthorized, "Client-Id and Api-Key headers are required")
		return
	}

	switch r.URL.Path {
	case PathCategoryTree:
		m.categoryTree(w, r)
	case PathCategoryAttributes:
		m.categoryAttributes(w, r)
	case PathDictionaryValues:
		m.dictionaryValues(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (m *MockSeller) categoryTree(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID int64  `json:"category_id"`
		Language   string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m.mu.RLock()
	title, ok := m.titles[req.CategoryID]
	m.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("category %d not found", req.CategoryID))
		return
	}

	writeJSON(w, map[string]any{
		"result": []map[string]any{{
			"category_id": req.CategoryID,
			"title":       title,
			"children":    []any{},
		}},
	})
}

func (m *MockSeller) categoryAttributes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AttributeType string  `json:"attribute_type"`
		CategoryID    []int64 `json:"category_id"`
		Language      string  `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.CategoryID) == 0 || len(req.CategoryID) > 20 {
		writeError(w, http.StatusBadRequest, "category_id must contain 1 to 20 entries")
		return
	}

	type entry struct {
		CategoryID int64           `json:"category_id"`
		Attributes []MockAttribute `json:"attributes"`
	}
	result := make([]entry, 0, len(req.CategoryID))

	m.mu.RLock()
	for _, id := range req.CategoryID {
		if attrs, ok := m.attributes[id]; ok {
			result = append(result, entry{CategoryID: id, Attributes: attrs})
		}
	}
	m.mu.RUnlock()

	writeJSON(w, map[string]any{"result": result})
}

func (m *MockSeller) dictionaryValues(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AttributeID int64  `json:"attribute_id"`
		CategoryID  int64  `json:"category_id"`
		LastValueID *int64 `json:"last_value_id"`
		Language    string `json:"language"`
		Limit       int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be positive")
		return
	}

	m.mu.RLock()
	values := m.dictionaries[dictKey{req.AttributeID, req.CategoryID}]
	m.mu.RUnlock()

	start := 0
	if req.LastValueID != nil {
		start = len(values)
		for i, v := range values {
			if v.ID > *req.LastValueID {
				start = i
				break
			}
		}
	}
	end := min(start+req.Limit, len(values))
	page := make([]MockValue, 0, end-start)
	page = append(page, values[start:end]...)

	writeJSON(w, map[string]any{
		"result":   page,
		"has_next": end < len(values),
	})
}

func writeCanned(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"code": status, "message": message})
}

// NewRateLimitResponse creates a 429 response with a Retry-After header.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"code":8,"message":"You have reached request rate limit per second"}`,
		Headers: map[string]string{
			"Retry-After":  fmt.Sprintf("%d", retryAfterSeconds),
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code":13,"message":"internal error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewClientErrorResponse creates a 400 Bad Request response.
func NewClientErrorResponse(message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       fmt.Sprintf(`{"code":3,"message":%q}`, message),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRawResponse creates a 200 response with an arbitrary body.
func NewRawResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
