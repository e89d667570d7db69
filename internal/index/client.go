// Package index publishes search documents to Elasticsearch.
package index

import (
	"context"

	"github.com/stacklok/movies-etl/internal/document"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// ItemError describes one document rejected by a bulk request
type ItemError struct {
	ID     string
	Status int
	Type   string
	Reason string
}

// BulkResult counts the outcome of one bulk request
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []ItemError
}

// Client is the subset of the cluster API the writer needs
type Client interface {
	// Ping checks that the cluster is reachable
	Ping(ctx context.Context) error

	// ListIndices returns the names of the existing indices
	ListIndices(ctx context.Context) ([]string, error)

	// CreateIndex creates an index from a settings and mappings JSON document
	CreateIndex(ctx context.Context, name string, body []byte) error

	// Bulk indexes docs by id, replacing documents that already exist
	Bulk(ctx context.Context, index string, docs []document.Document) (BulkResult, error)
}
