// Package docstore is the generic keyed-document persistence port the hiring
// workflow is written against, plus its Postgres and in-memory adapters.
//
// Documents are JSON bodies keyed by (collection, id) with the status field
// lifted out so transitions can be expressed as compare-and-swap writes.
package docstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Document is a stored entity as seen through the port.
type Document struct {
	ID     string
	Status string
	Data   []byte // JSON body
	// Version counts writes to this document, starting at 1 on insert. It
	// lets transitions detect concurrent updates that left the status alone.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Unmarshal decodes the document body into v.
func (d *Document) Unmarshal(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Transition describes an atomic state change: a status compare-and-swap, a
// payload merge, and one history append, applied as a single unit. If the
// stored status no longer equals ExpectedStatus nothing is written and the
// store reports StaleState. A non-zero ExpectedVersion additionally requires
// the stored version to match, so self-loop transitions still lose to a
// concurrent write instead of overwriting it.
type Transition struct {
	ExpectedStatus  string
	ExpectedVersion int64
	NewStatus       string
	Patch           map[string]any // dot-separated field paths -> values
	Append          map[string]any // dot-separated array paths -> appended entry
	HistoryEntry    any            // appended to the document's "history" array
}

// Store is the document persistence port.
type Store interface {
	// Get returns one document or a not_found error.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Insert creates a new document; an occupied id is an already_exists
	// conflict.
	Insert(ctx context.Context, collection, id, status string, data []byte) error

	// Put creates or replaces a document. Used for derived records whose
	// writes must be idempotent under retry.
	Put(ctx context.Context, collection, id, status string, data []byte) error

	// List returns every document in a collection.
	List(ctx context.Context, collection string) ([]*Document, error)

	// Query returns documents whose field equals value. The field "status"
	// matches the lifted status column.
	Query(ctx context.Context, collection, field, value string) ([]*Document, error)

	// CountByField groups documents by a field value. Counting by "status"
	// always recomputes from the stored documents, never from a cache.
	CountByField(ctx context.Context, collection, field string) (map[string]int, error)

	// WriteConditional merges patch into the document body. A non-empty
	// expectedStatus turns the write into a compare-and-swap that fails with
	// stale_state when the stored status differs. The patch never changes
	// the document status.
	WriteConditional(ctx context.Context, collection, id, expectedStatus string, patch map[string]any) error

	// AppendToArray appends entry to the array at fieldPath.
	AppendToArray(ctx context.Context, collection, id, fieldPath string, entry any) error

	// ApplyTransition performs the status CAS, payload merge and history
	// append of a workflow transition atomically.
	ApplyTransition(ctx context.Context, collection, id string, t Transition) error
}

// applyPatch merges dot-path keyed values into a decoded JSON object,
// creating intermediate objects as needed.
func applyPatch(doc map[string]any, patch map[string]any) {
	for path, value := range patch {
		parts := strings.Split(path, ".")
		node := doc
		for _, key := range parts[:len(parts)-1] {
			child, ok := node[key].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[key] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = normalize(value)
	}
}

// appendAt appends entry to the array at a dot path, creating it if absent.
func appendAt(doc map[string]any, path string, entry any) {
	parts := strings.Split(path, ".")
	node := doc
	for _, key := range parts[:len(parts)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[key] = child
		}
		node = child
	}
	leaf := parts[len(parts)-1]
	arr, _ := node[leaf].([]any)
	node[leaf] = append(arr, normalize(entry))
}

// normalize round-trips a value through JSON so typed structs merge into the
// document body the same way in both adapters.
func normalize(v any) any {
	switch v.(type) {
	case nil, bool, string, float64, map[string]any, []any:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
