package docstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ongbase/be-hiring-workflow/internal/errors"
)

func insertTestDoc(t *testing.T, store *Memory, collection, id, status string, body map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	if err := store.Insert(context.Background(), collection, id, status, raw); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func getBody(t *testing.T, store *Memory, collection, id string) map[string]any {
	t.Helper()
	doc, err := store.Get(context.Background(), collection, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body map[string]any
	if err := doc.Unmarshal(&body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return body
}

func TestGetNotFound(t *testing.T) {
	store := NewMemory()
	_, err := store.Get(context.Background(), "vagas", "missing")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestApplyTransitionUpdatesStatusPatchAndHistory(t *testing.T) {
	store := NewMemory()
	insertTestDoc(t, store, "vagas", "v1", "drafting", map[string]any{
		"status": "drafting",
		"title":  "Designer",
	})

	err := store.ApplyTransition(context.Background(), "vagas", "v1", Transition{
		ExpectedStatus: "drafting",
		NewStatus:      "pending_approval",
		Patch:          map[string]any{"art.link": "http://x"},
		HistoryEntry:   map[string]any{"action": "submit"},
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	doc, err := store.Get(context.Background(), "vagas", "v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Status != "pending_approval" {
		t.Fatalf("status = %q, want pending_approval", doc.Status)
	}

	body := getBody(t, store, "vagas", "v1")
	if body["status"] != "pending_approval" {
		t.Fatalf("body status = %v, want pending_approval", body["status"])
	}
	art, _ := body["art"].(map[string]any)
	if art["link"] != "http://x" {
		t.Fatalf("nested patch not applied: %v", body["art"])
	}
	history, _ := body["history"].([]any)
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
}

func TestApplyTransitionStaleStateLeavesDocumentUntouched(t *testing.T) {
	store := NewMemory()
	insertTestDoc(t, store, "vagas", "v1", "publishing", map[string]any{"status": "publishing"})

	err := store.ApplyTransition(context.Background(), "vagas", "v1", Transition{
		ExpectedStatus: "drafting",
		NewStatus:      "pending_approval",
		HistoryEntry:   map[string]any{"action": "submit"},
	})
	if !errors.Is(err, errors.ErrCodeStaleState) {
		t.Fatalf("expected stale_state, got %v", err)
	}

	doc, _ := store.Get(context.Background(), "vagas", "v1")
	if doc.Status != "publishing" {
		t.Fatalf("status mutated on stale write: %q", doc.Status)
	}
	body := getBody(t, store, "vagas", "v1")
	if _, ok := body["history"]; ok {
		t.Fatal("history appended despite stale write")
	}
}

func TestInsertDuplicateReportsConflict(t *testing.T) {
	store := NewMemory()
	insertTestDoc(t, store, "vagas", "v1", "drafting", map[string]any{})

	err := store.Insert(context.Background(), "vagas", "v1", "drafting", []byte(`{}`))
	if !errors.Is(err, errors.ErrCodeAlreadyExists) {
		t.Fatalf("expected already_exists, got %v", err)
	}
}

func TestPutCreatesThenReplaces(t *testing.T) {
	store := NewMemory()

	if err := store.Put(context.Background(), "test_statistics", "t1:c1", "", []byte(`{"correct_count":3}`)); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := store.Put(context.Background(), "test_statistics", "t1:c1", "", []byte(`{"correct_count":4}`)); err != nil {
		t.Fatalf("second put: %v", err)
	}

	body := getBody(t, store, "test_statistics", "t1:c1")
	if body["correct_count"] != float64(4) {
		t.Fatalf("second put did not replace: %v", body)
	}
}

func TestApplyTransitionVersionMismatch(t *testing.T) {
	// A self-loop keeps the status unchanged, so only the version guard can
	// detect a write that raced in between read and transition.
	store := NewMemory()
	insertTestDoc(t, store, "candidaturas", "c1", "test_sent", map[string]any{"status": "test_sent"})

	doc, err := store.Get(context.Background(), "candidaturas", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := store.ApplyTransition(context.Background(), "candidaturas", "c1", Transition{
		ExpectedStatus: "test_sent",
		NewStatus:      "test_sent",
		Append:         map[string]any{"tests_assigned": map[string]any{"test_id": "t2"}},
	}); err != nil {
		t.Fatalf("concurrent self-loop: %v", err)
	}

	err = store.ApplyTransition(context.Background(), "candidaturas", "c1", Transition{
		ExpectedStatus:  "test_sent",
		ExpectedVersion: doc.Version,
		NewStatus:       "test_answered",
		Patch:           map[string]any{"tests_assigned": []any{}},
	})
	if !errors.Is(err, errors.ErrCodeStaleState) {
		t.Fatalf("expected stale_state, got %v", err)
	}

	// The concurrent append survived.
	body := getBody(t, store, "candidaturas", "c1")
	assigned, _ := body["tests_assigned"].([]any)
	if len(assigned) != 1 {
		t.Fatalf("concurrent write lost: %v", body["tests_assigned"])
	}
}

func TestWriteConditionalUnconditionalPatch(t *testing.T) {
	store := NewMemory()
	insertTestDoc(t, store, "candidaturas", "c1", "received_pending_screening", map[string]any{
		"screening": map[string]any{"general_comments": "keep me"},
	})

	err := store.WriteConditional(context.Background(), "candidaturas", "c1", "", map[string]any{
		"screening.checklist": map[string]bool{"minimum_requirements": true},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	body := getBody(t, store, "candidaturas", "c1")
	screening, _ := body["screening"].(map[string]any)
	if screening["general_comments"] != "keep me" {
		t.Fatal("sibling field reset by checklist patch")
	}
	if screening["checklist"] == nil {
		t.Fatal("checklist not saved")
	}
}

func TestWriteConditionalExpectedStatusMismatch(t *testing.T) {
	store := NewMemory()
	insertTestDoc(t, store, "candidaturas", "c1", "test_sent", map[string]any{})

	err := store.WriteConditional(context.Background(), "candidaturas", "c1", "received_pending_screening", map[string]any{"x": 1})
	if !errors.Is(err, errors.ErrCodeStaleState) {
		t.Fatalf("expected stale_state, got %v", err)
	}
}

func TestAppendToArrayKeepsOrder(t *testing.T) {
	store := NewMemory()
	insertTestDoc(t, store, "vagas", "v1", "drafting", map[string]any{})

	for _, action := range []string{"a", "b", "c"} {
		if err := store.AppendToArray(context.Background(), "vagas", "v1", "history", map[string]any{"action": action}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	body := getBody(t, store, "vagas", "v1")
	history, _ := body["history"].([]any)
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, want := range []string{"a", "b", "c"} {
		entry, _ := history[i].(map[string]any)
		if entry["action"] != want {
			t.Fatalf("history[%d] = %v, want %s", i, entry, want)
		}
	}
}

func TestQueryByStatusAndField(t *testing.T) {
	store := NewMemory()
	insertTestDoc(t, store, "candidaturas", "c1", "test_sent", map[string]any{"vaga_id": "v1"})
	insertTestDoc(t, store, "candidaturas", "c2", "hired", map[string]any{"vaga_id": "v1"})
	insertTestDoc(t, store, "candidaturas", "c3", "test_sent", map[string]any{"vaga_id": "v2"})

	byStatus, err := store.Query(context.Background(), "candidaturas", "status", "test_sent")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byStatus) != 2 {
		t.Fatalf("status query returned %d docs, want 2", len(byStatus))
	}

	byVaga, err := store.Query(context.Background(), "candidaturas", "vaga_id", "v1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byVaga) != 2 {
		t.Fatalf("vaga query returned %d docs, want 2", len(byVaga))
	}
}

func TestCountByStatus(t *testing.T) {
	store := NewMemory()
	insertTestDoc(t, store, "vagas", "v1", "drafting", map[string]any{})
	insertTestDoc(t, store, "vagas", "v2", "drafting", map[string]any{})
	insertTestDoc(t, store, "vagas", "v3", "publishing", map[string]any{})

	counts, err := store.CountByField(context.Background(), "vagas", "status")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["drafting"] != 2 || counts["publishing"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
