package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/tidwall/gjson"

	"github.com/stacklok/movies-etl/internal/document"
)

// maxErrorBodySize bounds how much of an error response is kept in HTTPError
const maxErrorBodySize = 4 << 10

// ClientConfig holds the cluster connection settings
type ClientConfig struct {
	// Address is the cluster URL, e.g. http://localhost:9200
	Address string

	// Username and Password enable basic authentication when set
	Username string
	Password string

	// Transport overrides the HTTP transport
	Transport http.RoundTripper
}

type esClient struct {
	es      *elasticsearch.Client
	address string
}

// NewElasticsearchClient creates a Client for the cluster at cfg.Address.
// The client does not retry on its own.
func NewElasticsearchClient(cfg ClientConfig) (Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("elasticsearch address is required")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{cfg.Address},
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    cfg.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &esClient{
		es:      es,
		address: strings.TrimSuffix(cfg.Address, "/"),
	}, nil
}

// Ping checks that the cluster answers
func (c *esClient) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return c.httpError(res, "/")
	}
	return nil
}

// ListIndices returns the sorted names of every index, read from the alias listing
func (c *esClient) ListIndices(ctx context.Context) ([]string, error) {
	res, err := c.es.Indices.GetAlias(c.es.Indices.GetAlias.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list indices: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, c.httpError(res, "/_alias")
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read index listing: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid index listing response")
	}

	var names []string
	gjson.ParseBytes(body).ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	slices.Sort(names)
	return names, nil
}

// CreateIndex creates the index. An index created concurrently by someone else
// counts as success.
func (c *esClient) CreateIndex(ctx context.Context, name string, body []byte) error {
	opts := []func(*esapi.IndicesCreateRequest){c.es.Indices.Create.WithContext(ctx)}
	if len(body) > 0 {
		opts = append(opts, c.es.Indices.Create.WithBody(bytes.NewReader(body)))
	}

	res, err := c.es.Indices.Create(name, opts...)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	defer closeBody(res)

	if res.IsError() {
		herr := c.httpError(res, "/"+name)
		if strings.Contains(herr.Error(), "resource_already_exists_exception") {
			return nil
		}
		return herr
	}
	return nil
}

// Bulk sends one index action per document, keyed by the document id
func (c *esClient) Bulk(ctx context.Context, index string, docs []document.Document) (BulkResult, error) {
	if len(docs) == 0 {
		return BulkResult{}, nil
	}

	payload, err := encodeBulk(index, docs)
	if err != nil {
		return BulkResult{}, err
	}

	res, err := c.es.Bulk(bytes.NewReader(payload),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(index),
	)
	if err != nil {
		return BulkResult{}, fmt.Errorf("bulk request failed: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return BulkResult{}, c.httpError(res, "/"+index+"/_bulk")
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return BulkResult{}, fmt.Errorf("failed to read bulk response: %w", err)
	}

	result, err := parseBulkResponse(body)
	if err != nil {
		return BulkResult{}, err
	}
	if total := result.Succeeded + result.Failed; total != len(docs) {
		return result, fmt.Errorf("bulk response covers %d of %d documents", total, len(docs))
	}
	return result, nil
}

// encodeBulk renders the newline-delimited bulk body
func encodeBulk(index string, docs []document.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i := range docs {
		action := map[string]map[string]string{
			"index": {"_index": index, "_id": docs[i].DocumentID()},
		}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := enc.Encode(&docs[i]); err != nil {
			return nil, fmt.Errorf("failed to encode document %s: %w", docs[i].DocumentID(), err)
		}
	}
	return buf.Bytes(), nil
}

func parseBulkResponse(body []byte) (BulkResult, error) {
	if !gjson.ValidBytes(body) {
		return BulkResult{}, fmt.Errorf("invalid bulk response")
	}

	var result BulkResult
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		op := item.Get("index")
		status := int(op.Get("status").Int())
		if status >= 200 && status < 300 {
			result.Succeeded++
			return true
		}
		result.Failed++
		result.Errors = append(result.Errors, ItemError{
			ID:     op.Get("_id").String(),
			Status: status,
			Type:   op.Get("error.type").String(),
			Reason: op.Get("error.reason").String(),
		})
		return true
	})
	return result, nil
}

func (c *esClient) httpError(res *esapi.Response, path string) error {
	message := http.StatusText(res.StatusCode)
	if res.Body != nil {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
		if errType := gjson.GetBytes(body, "error.type"); errType.Exists() {
			message = errType.String() + ": " + gjson.GetBytes(body, "error.reason").String()
		} else if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
			message = trimmed
		}
	}
	return NewHTTPError(res.StatusCode, c.address+path, message)
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}
