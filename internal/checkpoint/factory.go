package checkpoint

import (
	"context"
	"fmt"
)

// Backend selects where the checkpoint record is stored
type Backend string

const (
	// BackendFile stores the checkpoint as a JSON file
	BackendFile Backend = "file"
	// BackendSQLite stores the checkpoint in a SQLite database
	BackendSQLite Backend = "sqlite"
)

// NewStore creates a Store for the configured backend.
// An empty backend defaults to the JSON file.
func NewStore(ctx context.Context, backend Backend, path string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path)
	case BackendSQLite:
		if path == "" {
			return nil, fmt.Errorf("checkpoint path is required for the %s backend", backend)
		}
		return NewSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported checkpoint backend %q", backend)
	}
}
