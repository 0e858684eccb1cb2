package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ongbase/be-hiring-workflow/internal/docstore"
	"github.com/ongbase/be-hiring-workflow/internal/errors"
	"github.com/ongbase/be-hiring-workflow/internal/hiring"
	"github.com/ongbase/be-hiring-workflow/internal/logger"
)

var (
	hr      = hiring.Actor{ID: "ana.hr", Role: hiring.RoleHR}
	manager = hiring.Actor{ID: "bruno.gestor", Role: hiring.RoleManager}
)

func newVagaWorkflow(t *testing.T) (*VagaWorkflow, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	return NewVagaWorkflow(store, nil, logger.Nop()), store
}

func createDraftVaga(t *testing.T, s *VagaWorkflow) *hiring.Vaga {
	t.Helper()
	vaga, err := s.Create(context.Background(), CreateVagaRequest{
		Title:        "Analista de Comunicação",
		Department:   "Comunicação",
		Salary:       "R$ 4.500",
		WorkRegime:   "CLT",
		WorkModality: "Híbrido",
	}, hr)
	if err != nil {
		t.Fatalf("create vaga: %v", err)
	}
	return vaga
}

func mustSubmit(t *testing.T, s *VagaWorkflow, id, event string, payload VagaEventPayload, actor hiring.Actor) *hiring.Vaga {
	t.Helper()
	vaga, err := s.SubmitEvent(context.Background(), id, event, payload, actor)
	if err != nil {
		t.Fatalf("%s: %v", event, err)
	}
	return vaga
}

func TestCreateVagaStartsDrafting(t *testing.T) {
	s, _ := newVagaWorkflow(t)
	vaga := createDraftVaga(t, s)

	if vaga.Status != hiring.VagaDrafting {
		t.Fatalf("status = %v, want drafting", vaga.Status)
	}
	if len(vaga.History) != 1 || vaga.History[0].Action != "created" {
		t.Fatalf("unexpected history: %+v", vaga.History)
	}
}

func TestSubmitForApprovalRequiresFields(t *testing.T) {
	s, _ := newVagaWorkflow(t)
	vaga, err := s.Create(context.Background(), CreateVagaRequest{Title: "Sem regime"}, hr)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = s.SubmitEvent(context.Background(), vaga.ID, EventSubmitForApproval, VagaEventPayload{}, hr)
	if !errors.Is(err, errors.ErrCodeValidation) {
		t.Fatalf("expected validation_failed, got %v", err)
	}

	// Guard failure must not mutate state or history.
	after, _ := s.Get(context.Background(), vaga.ID)
	if after.Status != hiring.VagaDrafting {
		t.Fatalf("status changed on failed guard: %v", after.Status)
	}
	if len(after.History) != 1 {
		t.Fatalf("history grew on failed guard: %d", len(after.History))
	}
}

func TestManagerApprovalRequiresManagerRole(t *testing.T) {
	s, _ := newVagaWorkflow(t)
	vaga := createDraftVaga(t, s)
	mustSubmit(t, s, vaga.ID, EventSubmitForApproval, VagaEventPayload{}, hr)

	_, err := s.SubmitEvent(context.Background(), vaga.ID, EventManagerApproves, VagaEventPayload{}, hr)
	if !errors.Is(err, errors.ErrCodeValidation) {
		t.Fatalf("expected validation_failed for non-manager, got %v", err)
	}
}

func TestRejectionRequiresJustification(t *testing.T) {
	s, _ := newVagaWorkflow(t)
	vaga := createDraftVaga(t, s)
	mustSubmit(t, s, vaga.ID, EventSubmitForApproval, VagaEventPayload{}, hr)

	_, err := s.SubmitEvent(context.Background(), vaga.ID, EventManagerRejects, VagaEventPayload{}, manager)
	if !errors.Is(err, errors.ErrCodeValidation) {
		t.Fatalf("expected validation_failed, got %v", err)
	}

	after, _ := s.Get(context.Background(), vaga.ID)
	if after.Status != hiring.VagaPendingApproval {
		t.Fatalf("status changed on rejected guard: %v", after.Status)
	}
	if len(after.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(after.History))
	}
}

func TestApprovalRejectionLoop(t *testing.T) {
	// End to end: draft -> submit -> reject(reason) -> resubmit -> approve ->
	// art link -> art approved -> publishing.
	s, _ := newVagaWorkflow(t)
	vaga := createDraftVaga(t, s)

	mustSubmit(t, s, vaga.ID, EventSubmitForApproval, VagaEventPayload{}, hr)
	rejected := mustSubmit(t, s, vaga.ID, EventManagerRejects, VagaEventPayload{Justification: "salary too low"}, manager)
	if rejected.Status != hiring.VagaDrafting {
		t.Fatalf("status = %v, want drafting after rejection", rejected.Status)
	}
	if rejected.RejectionJustification != "salary too low" {
		t.Fatalf("justification not persisted on entity: %+v", rejected)
	}
	if len(rejected.History) != 3 {
		t.Fatalf("history = %d, want 3 (created, submit, reject)", len(rejected.History))
	}
	if rejected.History[2].Justification != "salary too low" {
		t.Fatalf("rejection history entry missing reason: %+v", rejected.History[2])
	}

	mustSubmit(t, s, vaga.ID, EventSubmitForApproval, VagaEventPayload{}, hr)
	approved := mustSubmit(t, s, vaga.ID, EventManagerApproves, VagaEventPayload{}, manager)
	if approved.Status != hiring.VagaCreativePending {
		t.Fatalf("status = %v, want creative_pending", approved.Status)
	}

	withArt := mustSubmit(t, s, vaga.ID, EventHRSubmitsArtLink, VagaEventPayload{ArtLink: "http://x"}, hr)
	if withArt.Status != hiring.VagaCreativePending {
		t.Fatalf("submitting art must keep creative_pending, got %v", withArt.Status)
	}
	if withArt.Art.Status != hiring.ArtPendingReview || withArt.Art.Link != "http://x" {
		t.Fatalf("art not recorded: %+v", withArt.Art)
	}

	published := mustSubmit(t, s, vaga.ID, EventManagerApprovesArt, VagaEventPayload{}, manager)
	if published.Status != hiring.VagaPublishing {
		t.Fatalf("status = %v, want publishing", published.Status)
	}
	if published.Art.Status != hiring.ArtApproved {
		t.Fatalf("art status = %v, want approved", published.Art.Status)
	}
}

func TestApproveArtWithoutLinkFails(t *testing.T) {
	s, _ := newVagaWorkflow(t)
	vaga := createDraftVaga(t, s)
	mustSubmit(t, s, vaga.ID, EventSubmitForApproval, VagaEventPayload{}, hr)
	mustSubmit(t, s, vaga.ID, EventManagerApproves, VagaEventPayload{}, manager)

	_, err := s.SubmitEvent(context.Background(), vaga.ID, EventManagerApprovesArt, VagaEventPayload{}, manager)
	if !errors.Is(err, errors.ErrCodeValidation) {
		t.Fatalf("expected validation_failed, got %v", err)
	}
}

func TestRequestArtChangesKeepsCreativePending(t *testing.T) {
	s, _ := newVagaWorkflow(t)
	vaga := createDraftVaga(t, s)
	mustSubmit(t, s, vaga.ID, EventSubmitForApproval, VagaEventPayload{}, hr)
	mustSubmit(t, s, vaga.ID, EventManagerApproves, VagaEventPayload{}, manager)
	mustSubmit(t, s, vaga.ID, EventHRSubmitsArtLink, VagaEventPayload{ArtLink: "http://x"}, hr)

	changed := mustSubmit(t, s, vaga.ID, EventManagerRequestsArtChanges, VagaEventPayload{ChangeDescription: "wrong logo"}, manager)
	if changed.Status != hiring.VagaCreativePending {
		t.Fatalf("status = %v, want creative_pending", changed.Status)
	}
	if changed.Art.PendingChanges != "wrong logo" || changed.Art.Status != hiring.ArtAlterationRequested {
		t.Fatalf("change request not recorded: %+v", changed.Art)
	}
}

func TestTerminalVagaRejectsAllEvents(t *testing.T) {
	s, _ := newVagaWorkflow(t)
	vaga := createDraftVaga(t, s)
	mustSubmit(t, s, vaga.ID, EventSubmitForApproval, VagaEventPayload{}, hr)
	mustSubmit(t, s, vaga.ID, EventManagerApproves, VagaEventPayload{}, manager)
	mustSubmit(t, s, vaga.ID, EventHRSubmitsArtLink, VagaEventPayload{ArtLink: "http://x"}, hr)
	mustSubmit(t, s, vaga.ID, EventManagerApprovesArt, VagaEventPayload{}, manager)
	mustSubmit(t, s, vaga.ID, EventHRCloses, VagaEventPayload{}, hr)

	events := []string{
		EventSubmitForApproval, EventManagerApproves, EventManagerRejects,
		EventHRSubmitsArtLink, EventManagerApprovesArt, EventManagerRequestsArtChanges,
		EventHRCancels, EventHRCloses,
	}
	for _, event := range events {
		_, err := s.SubmitEvent(context.Background(), vaga.ID, event, VagaEventPayload{Justification: "x", ArtLink: "x", ChangeDescription: "x"}, manager)
		if !errors.Is(err, errors.ErrCodeInvalidTransition) {
			t.Fatalf("event %s on closed vaga: got %v, want invalid_transition", event, err)
		}
	}
}

func TestEventsNotInTableReturnInvalidTransition(t *testing.T) {
	s, _ := newVagaWorkflow(t)
	vaga := createDraftVaga(t, s)

	// Drafting only accepts submit-for-approval.
	for _, event := range []string{EventManagerApproves, EventHRSubmitsArtLink, EventHRCancels, EventHRCloses, "made-up-event"} {
		_, err := s.SubmitEvent(context.Background(), vaga.ID, event, VagaEventPayload{ArtLink: "x"}, manager)
		if !errors.Is(err, errors.ErrCodeInvalidTransition) {
			t.Fatalf("event %s in drafting: got %v, want invalid_transition", event, err)
		}
	}
}

func TestAuditTrailGrowsByExactlyOnePerTransition(t *testing.T) {
	s, _ := newVagaWorkflow(t)
	vaga := createDraftVaga(t, s)

	steps := []struct {
		event   string
		payload VagaEventPayload
		actor   hiring.Actor
	}{
		{EventSubmitForApproval, VagaEventPayload{}, hr},
		{EventManagerRejects, VagaEventPayload{Justification: "revisar salário"}, manager},
		{EventSubmitForApproval, VagaEventPayload{}, hr},
		{EventManagerApproves, VagaEventPayload{}, manager},
	}

	prevLen := 1 // "created"
	var prevHistory []hiring.AuditEntry
	for _, step := range steps {
		after := mustSubmit(t, s, vaga.ID, step.event, step.payload, step.actor)
		if len(after.History) != prevLen+1 {
			t.Fatalf("after %s history = %d, want %d", step.event, len(after.History), prevLen+1)
		}
		// Prior entries are never modified or reordered.
		for i, prev := range prevHistory {
			if after.History[i].Action != prev.Action || after.History[i].ActorID != prev.ActorID {
				t.Fatalf("history entry %d mutated: %+v -> %+v", i, prev, after.History[i])
			}
		}
		prevLen = len(after.History)
		prevHistory = after.History
	}
}

// interposedStore runs a hook once before the next ApplyTransition, standing
// in for a concurrent actor that writes between this caller's read and write.
type interposedStore struct {
	docstore.Store
	beforeApply func()
}

func (s *interposedStore) ApplyTransition(ctx context.Context, collection, id string, t docstore.Transition) error {
	if s.beforeApply != nil {
		fn := s.beforeApply
		s.beforeApply = nil
		fn()
	}
	return s.Store.ApplyTransition(ctx, collection, id, t)
}

func TestStaleStateDetectedOnConcurrentTransition(t *testing.T) {
	mem := docstore.NewMemory()
	wrapped := &interposedStore{Store: mem}
	s := NewVagaWorkflow(wrapped, nil, logger.Nop())
	vaga := createDraftVaga(t, s)

	// Another session submits the same draft while this event is in flight.
	wrapped.beforeApply = func() {
		err := mem.ApplyTransition(context.Background(), hiring.CollectionVagas, vaga.ID, docstore.Transition{
			ExpectedStatus: string(hiring.VagaDrafting),
			NewStatus:      string(hiring.VagaPendingApproval),
			HistoryEntry:   hiring.AuditEntry{ActorID: "other.session", Action: EventSubmitForApproval},
		})
		if err != nil {
			t.Fatalf("concurrent write: %v", err)
		}
	}

	_, err := s.SubmitEvent(context.Background(), vaga.ID, EventSubmitForApproval, VagaEventPayload{}, hr)
	if !errors.Is(err, errors.ErrCodeStaleState) {
		t.Fatalf("expected stale_state, got %v", err)
	}

	// The concurrent write stands; the losing event left no trace.
	after, getErr := s.Get(context.Background(), vaga.ID)
	if getErr != nil {
		t.Fatalf("get: %v", getErr)
	}
	if after.Status != hiring.VagaPendingApproval {
		t.Fatalf("status = %v, want pending_approval", after.Status)
	}
	if len(after.History) != 2 {
		t.Fatalf("history = %d, want 2", len(after.History))
	}
	if after.History[1].ActorID != "other.session" {
		t.Fatalf("winning entry = %+v", after.History[1])
	}
}

func seedLegacyVaga(t *testing.T, store docstore.Store, id, label string) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":            id,
		"title":         "Assistente Administrativo",
		"department":    "Projetos",
		"work_regime":   "CLT",
		"work_modality": "Presencial",
		"status":        label,
		"history": []any{
			map[string]any{"actor_id": "import", "action": "created"},
		},
	})
	if err != nil {
		t.Fatalf("encode seed: %v", err)
	}
	if err := store.Insert(context.Background(), hiring.CollectionVagas, id, label, raw); err != nil {
		t.Fatalf("seed legacy vaga: %v", err)
	}
}

func TestLegacyStatusLabelStillTransitions(t *testing.T) {
	// A vaga persisted by the old portal carries the free-text label. The
	// canonical workflow must read it, act on it, and migrate the status key
	// on the first successful transition.
	s, store := newVagaWorkflow(t)
	seedLegacyVaga(t, store, "v-legacy", "Em Divulgação")

	closed := mustSubmit(t, s, "v-legacy", EventHRCloses, VagaEventPayload{}, hr)
	if closed.Status != hiring.VagaClosed {
		t.Fatalf("status = %v, want closed", closed.Status)
	}

	doc, err := store.Get(context.Background(), hiring.CollectionVagas, "v-legacy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Status != string(hiring.VagaClosed) {
		t.Fatalf("stored status not migrated: %q", doc.Status)
	}
}
