// Package helpers provides test doubles and fixtures for the ETL integration suite.
package helpers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
)

// FakeCluster serves the subset of the Elasticsearch API used by the ETL and
// keeps the indexed documents in memory
type FakeCluster struct {
	server *httptest.Server

	mu       sync.Mutex
	indices  map[string]map[string]json.RawMessage
	mappings map[string]json.RawMessage
	bulks    int
	rejectID string
}

// NewFakeCluster starts the cluster; Close must be called when done
func NewFakeCluster() *FakeCluster {
	c := &FakeCluster{
		indices:  map[string]map[string]json.RawMessage{},
		mappings: map[string]json.RawMessage{},
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Elastic-Product", "Elasticsearch")
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	})
	r.Head("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/_alias", c.listAliases)
	r.Put("/{index}", c.createIndex)
	r.Post("/{index}/_bulk", c.bulk)

	c.server = httptest.NewServer(r)
	return c
}

// URL returns the cluster address
func (c *FakeCluster) URL() string {
	return c.server.URL
}

// Close stops the cluster
func (c *FakeCluster) Close() {
	c.server.Close()
}

// RejectDocument makes every bulk item with this id fail
func (c *FakeCluster) RejectDocument(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectID = id
}

// Documents returns a copy of the documents of index keyed by id
func (c *FakeCluster) Documents(index string) map[string]json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]json.RawMessage, len(c.indices[index]))
	for id, doc := range c.indices[index] {
		out[id] = doc
	}
	return out
}

// Mapping returns the body the index was created with
func (c *FakeCluster) Mapping(index string) json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mappings[index]
}

// BulkRequests returns the number of bulk requests received
func (c *FakeCluster) BulkRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bulks
}

func (c *FakeCluster) listAliases(w http.ResponseWriter, _ *http.Request) {
	c.mu.Lock()
	names := make([]string, 0, len(c.indices))
	for name := range c.indices {
		names = append(names, name)
	}
	c.mu.Unlock()
	sort.Strings(names)

	out := map[string]any{}
	for _, name := range names {
		out[name] = map[string]any{"aliases": map[string]any{}}
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (c *FakeCluster) createIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "index")
	body, _ := io.ReadAll(r.Body)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.indices[name]; ok {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintf(w, `{"error":{"type":"resource_already_exists_exception","reason":"index [%s] already exists"},"status":400}`, name)
		return
	}
	c.indices[name] = map[string]json.RawMessage{}
	c.mappings[name] = body
	_, _ = fmt.Fprintf(w, `{"acknowledged":true,"index":%q}`, name)
}

func (c *FakeCluster) bulk(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "index")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bulks++

	docs, ok := c.indices[name]
	if !ok {
		// dynamic index creation
		docs = map[string]json.RawMessage{}
		c.indices[name] = docs
	}

	items := []map[string]any{}
	hasErrors := false
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		action := bytes.Clone(scanner.Bytes())
		if !scanner.Scan() {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		source := bytes.Clone(scanner.Bytes())
		id := gjson.GetBytes(action, "index._id").String()

		if id == c.rejectID {
			hasErrors = true
			items = append(items, map[string]any{"index": map[string]any{
				"_id":    id,
				"status": http.StatusBadRequest,
				"error":  map[string]any{"type": "mapper_parsing_exception", "reason": "failed to parse"},
			}})
			continue
		}
		docs[id] = source
		items = append(items, map[string]any{"index": map[string]any{"_id": id, "status": http.StatusOK}})
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"took": 1, "errors": hasErrors, "items": items})
}
