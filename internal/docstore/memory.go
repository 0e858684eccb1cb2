package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/ongbase/be-hiring-workflow/internal/errors"
)

// Memory is an in-memory Store used by tests and local development. All
// operations take one lock, which gives transitions the same all-or-nothing
// behavior the Postgres adapter gets from transactions.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]*memDoc
}

type memDoc struct {
	status    string
	body      map[string]any
	version   int64
	createdAt time.Time
	updatedAt time.Time
	seq       int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]*memDoc)}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, errors.NotFound(collection, id)
	}
	return m.toDocument(id, doc)
}

func (m *Memory) Insert(ctx context.Context, collection, id, status string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]*memDoc)
	}
	if _, exists := m.collections[collection][id]; exists {
		return errors.AlreadyExists(collection, id)
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "invalid document body")
	}
	now := time.Now().UTC()
	m.collections[collection][id] = &memDoc{
		status:    status,
		body:      body,
		version:   1,
		createdAt: now,
		updatedAt: now,
		seq:       m.nextSeq(collection),
	}
	return nil
}

func (m *Memory) Put(ctx context.Context, collection, id, status string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]*memDoc)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "invalid document body")
	}

	now := time.Now().UTC()
	if existing, ok := m.collections[collection][id]; ok {
		existing.status = status
		existing.body = body
		existing.version++
		existing.updatedAt = now
		return nil
	}
	m.collections[collection][id] = &memDoc{
		status:    status,
		body:      body,
		version:   1,
		createdAt: now,
		updatedAt: now,
		seq:       m.nextSeq(collection),
	}
	return nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(collection, func(*memDoc) bool { return true })
}

func (m *Memory) Query(ctx context.Context, collection, field, value string) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(collection, func(doc *memDoc) bool {
		if field == "status" {
			return doc.status == value
		}
		got, _ := doc.body[field].(string)
		return got == value
	})
}

func (m *Memory) CountByField(ctx context.Context, collection, field string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, doc := range m.collections[collection] {
		key := doc.status
		if field != "status" {
			key, _ = doc.body[field].(string)
		}
		counts[key]++
	}
	return counts, nil
}

func (m *Memory) WriteConditional(ctx context.Context, collection, id, expectedStatus string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return errors.NotFound(collection, id)
	}
	if expectedStatus != "" && doc.status != expectedStatus {
		return errors.StaleState(expectedStatus, doc.status)
	}
	applyPatch(doc.body, patch)
	doc.version++
	doc.updatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) AppendToArray(ctx context.Context, collection, id, fieldPath string, entry any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return errors.NotFound(collection, id)
	}
	appendAt(doc.body, fieldPath, entry)
	doc.version++
	doc.updatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) ApplyTransition(ctx context.Context, collection, id string, t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return errors.NotFound(collection, id)
	}
	if doc.status != t.ExpectedStatus {
		return errors.StaleState(t.ExpectedStatus, doc.status)
	}
	if t.ExpectedVersion != 0 && doc.version != t.ExpectedVersion {
		return errors.StaleVersion(t.ExpectedVersion, doc.version)
	}

	applyPatch(doc.body, t.Patch)
	for path, entry := range t.Append {
		appendAt(doc.body, path, entry)
	}
	doc.status = t.NewStatus
	doc.body["status"] = t.NewStatus
	if t.HistoryEntry != nil {
		appendAt(doc.body, "history", t.HistoryEntry)
	}
	doc.version++
	doc.updatedAt = time.Now().UTC()
	return nil
}

// ── internals ─────────────────────────────────────────────────────────────────

func (m *Memory) collect(collection string, keep func(*memDoc) bool) ([]*Document, error) {
	type pair struct {
		id  string
		doc *memDoc
	}
	var matched []pair
	for id, doc := range m.collections[collection] {
		if keep(doc) {
			matched = append(matched, pair{id, doc})
		}
	}
	// Insertion order keeps listings deterministic.
	sort.Slice(matched, func(i, j int) bool { return matched[i].doc.seq < matched[j].doc.seq })

	out := make([]*Document, 0, len(matched))
	for _, p := range matched {
		doc, err := m.toDocument(p.id, p.doc)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *Memory) toDocument(id string, doc *memDoc) (*Document, error) {
	raw, err := json.Marshal(doc.body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode document")
	}
	return &Document{
		ID:        id,
		Status:    doc.status,
		Data:      raw,
		Version:   doc.version,
		CreatedAt: doc.createdAt,
		UpdatedAt: doc.updatedAt,
	}, nil
}

func (m *Memory) nextSeq(collection string) int {
	max := 0
	for _, doc := range m.collections[collection] {
		if doc.seq > max {
			max = doc.seq
		}
	}
	return max + 1
}
