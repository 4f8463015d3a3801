package storage

import "errors"

const componentName = "storage"

// Log key strings.
const (
	logKeyComponent = "component"
	logKeyItemID    = "item_id"
	logKeyClusterID = "cluster_id"
)

// ErrDuplicateURL is returned by InsertItem when the canonical URL is
// already stored. Duplicates are expected during routine ingestion and are
// not failures.
var ErrDuplicateURL = errors.New("item url already stored")

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("not found")
