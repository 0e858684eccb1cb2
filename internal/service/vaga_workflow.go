package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ongbase/be-hiring-workflow/internal/docstore"
	"github.com/ongbase/be-hiring-workflow/internal/errors"
	"github.com/ongbase/be-hiring-workflow/internal/hiring"
	"github.com/ongbase/be-hiring-workflow/internal/logger"
)

// Vaga workflow events.
const (
	EventSubmitForApproval         = "submit-for-approval"
	EventManagerApproves           = "manager-approves"
	EventManagerRejects            = "manager-rejects"
	EventHRSubmitsArtLink          = "hr-submits-art-link"
	EventManagerApprovesArt        = "manager-approves-art"
	EventManagerRequestsArtChanges = "manager-requests-art-changes"
	EventHRCancels                 = "hr-cancels"
	EventHRCloses                  = "hr-closes"
)

// Notifier publishes workflow events to interested collaborators. Publishing
// is fire-and-forget; implementations must never fail the caller.
type Notifier interface {
	PublishWorkflowEvent(ctx context.Context, eventType, entityType, entityID, actorID string, payload map[string]any)
}

// CreateVagaRequest carries the fields HR fills in when drafting a requisition.
type CreateVagaRequest struct {
	Title        string `json:"title"`
	Department   string `json:"department"`
	Salary       string `json:"salary"`
	WorkRegime   string `json:"work_regime"`
	WorkModality string `json:"work_modality"`
}

// VagaEventPayload carries the event-specific data of a Vaga transition.
type VagaEventPayload struct {
	Justification     string `json:"justification,omitempty"`
	ArtLink           string `json:"art_link,omitempty"`
	ArtObservation    string `json:"art_observation,omitempty"`
	ChangeDescription string `json:"change_description,omitempty"`
}

// VagaWorkflow owns the job requisition state machine.
type VagaWorkflow struct {
	store    docstore.Store
	notifier Notifier
	log      *logger.Logger
}

// NewVagaWorkflow creates a new VagaWorkflow. notifier may be nil.
func NewVagaWorkflow(store docstore.Store, notifier Notifier, log *logger.Logger) *VagaWorkflow {
	return &VagaWorkflow{store: store, notifier: notifier, log: log}
}

// Create registers a new requisition in drafting.
func (s *VagaWorkflow) Create(ctx context.Context, req CreateVagaRequest, actor hiring.Actor) (*hiring.Vaga, error) {
	if req.Title == "" {
		return nil, errors.ValidationFailed("title")
	}

	now := time.Now().UTC()
	vaga := &hiring.Vaga{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Department:   req.Department,
		Salary:       req.Salary,
		WorkRegime:   req.WorkRegime,
		WorkModality: req.WorkModality,
		Status:       hiring.VagaDrafting,
		Art:          hiring.Art{Status: hiring.ArtNone},
		History: []hiring.AuditEntry{
			{Timestamp: now, ActorID: actor.ID, Action: "created"},
		},
		CreatedAt: now,
	}

	if err := insertDocument(ctx, s.store, hiring.CollectionVagas, vaga.ID, string(vaga.Status), vaga); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("vaga_id", vaga.ID).
		Str("title", vaga.Title).
		Str("actor_id", actor.ID).
		Msg("Vaga created")

	return vaga, nil
}

// Get retrieves a requisition by id.
func (s *VagaWorkflow) Get(ctx context.Context, id string) (*hiring.Vaga, error) {
	doc, err := s.store.Get(ctx, hiring.CollectionVagas, id)
	if err != nil {
		return nil, err
	}
	return decodeVaga(doc)
}

// List returns requisitions, optionally filtered by canonical status.
func (s *VagaWorkflow) List(ctx context.Context, status string) ([]*hiring.Vaga, error) {
	var docs []*docstore.Document
	var err error
	if status == "" {
		docs, err = s.store.List(ctx, hiring.CollectionVagas)
	} else {
		docs, err = s.store.Query(ctx, hiring.CollectionVagas, "status", status)
	}
	if err != nil {
		return nil, err
	}

	vagas := make([]*hiring.Vaga, 0, len(docs))
	for _, doc := range docs {
		vaga, err := decodeVaga(doc)
		if err != nil {
			return nil, err
		}
		vagas = append(vagas, vaga)
	}
	return vagas, nil
}

// History returns the ordered audit trail of a requisition.
func (s *VagaWorkflow) History(ctx context.Context, id string) ([]hiring.AuditEntry, error) {
	vaga, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return vaga.History, nil
}

// SubmitEvent validates and applies one workflow event. On success the new
// status, the event payload and exactly one audit entry are written as a
// single conditional unit; a guard failure leaves the document untouched.
func (s *VagaWorkflow) SubmitEvent(ctx context.Context, vagaID, event string, payload VagaEventPayload, actor hiring.Actor) (*hiring.Vaga, error) {
	doc, err := s.store.Get(ctx, hiring.CollectionVagas, vagaID)
	if err != nil {
		return nil, err
	}
	vaga, err := decodeVaga(doc)
	if err != nil {
		return nil, err
	}

	transition, err := s.resolveTransition(vaga, event, payload, actor)
	if err != nil {
		return nil, err
	}

	// The stored status string may still be a legacy label; the CAS must
	// compare against what is actually stored. The write migrates it to the
	// canonical key. The version guard catches concurrent writes the status
	// comparison alone would miss.
	transition.ExpectedStatus = doc.Status
	transition.ExpectedVersion = doc.Version
	if err := s.store.ApplyTransition(ctx, hiring.CollectionVagas, vagaID, *transition); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("vaga_id", vagaID).
		Str("event", event).
		Str("from", string(vaga.Status)).
		Str("to", transition.NewStatus).
		Str("actor_id", actor.ID).
		Msg("Vaga transition applied")

	s.notify(ctx, event, vagaID, actor, map[string]any{
		"from": string(vaga.Status),
		"to":   transition.NewStatus,
	})

	return s.Get(ctx, vagaID)
}

// resolveTransition checks the guard for (state, event) and builds the write.
// It is pure: no store access, no mutation.
func (s *VagaWorkflow) resolveTransition(vaga *hiring.Vaga, event string, payload VagaEventPayload, actor hiring.Actor) (*docstore.Transition, error) {
	from := vaga.Status
	entry := hiring.AuditEntry{
		Timestamp: time.Now().UTC(),
		ActorID:   actor.ID,
		Action:    event,
	}

	switch {
	case from == hiring.VagaDrafting && event == EventSubmitForApproval:
		var missing []string
		if vaga.Title == "" {
			missing = append(missing, "title")
		}
		if vaga.Department == "" {
			missing = append(missing, "department")
		}
		if vaga.WorkRegime == "" {
			missing = append(missing, "work_regime")
		}
		if vaga.WorkModality == "" {
			missing = append(missing, "work_modality")
		}
		if len(missing) > 0 {
			return nil, errors.ValidationFailed(missing...)
		}
		return &docstore.Transition{
			NewStatus:    string(hiring.VagaPendingApproval),
			HistoryEntry: entry,
		}, nil

	case from == hiring.VagaPendingApproval && event == EventManagerApproves:
		if actor.Role != hiring.RoleManager {
			return nil, errors.InvalidInput("actor", "approval requires the manager role")
		}
		return &docstore.Transition{
			NewStatus:    string(hiring.VagaCreativePending),
			HistoryEntry: entry,
		}, nil

	case from == hiring.VagaPendingApproval && event == EventManagerRejects:
		if strings.TrimSpace(payload.Justification) == "" {
			return nil, errors.ValidationFailed("justification")
		}
		entry.Justification = payload.Justification
		return &docstore.Transition{
			NewStatus:    string(hiring.VagaDrafting),
			Patch:        map[string]any{"rejection_justification": payload.Justification},
			HistoryEntry: entry,
		}, nil

	case from == hiring.VagaCreativePending && event == EventHRSubmitsArtLink:
		if strings.TrimSpace(payload.ArtLink) == "" {
			return nil, errors.ValidationFailed("art_link")
		}
		return &docstore.Transition{
			NewStatus: string(hiring.VagaCreativePending),
			Patch: map[string]any{
				"art.link":            payload.ArtLink,
				"art.observation":     payload.ArtObservation,
				"art.status":          string(hiring.ArtPendingReview),
				"art.pending_changes": "",
			},
			HistoryEntry: entry,
		}, nil

	case from == hiring.VagaCreativePending && event == EventManagerApprovesArt:
		if vaga.Art.Link == "" {
			return nil, errors.ValidationFailed("art.link")
		}
		return &docstore.Transition{
			NewStatus: string(hiring.VagaPublishing),
			Patch: map[string]any{
				"art.status": string(hiring.ArtApproved),
			},
			HistoryEntry: entry,
		}, nil

	case from == hiring.VagaCreativePending && event == EventManagerRequestsArtChanges:
		if strings.TrimSpace(payload.ChangeDescription) == "" {
			return nil, errors.ValidationFailed("change_description")
		}
		entry.Justification = payload.ChangeDescription
		return &docstore.Transition{
			NewStatus: string(hiring.VagaCreativePending),
			Patch: map[string]any{
				"art.pending_changes": payload.ChangeDescription,
				"art.status":          string(hiring.ArtAlterationRequested),
			},
			HistoryEntry: entry,
		}, nil

	case from == hiring.VagaPublishing && event == EventHRCancels:
		return &docstore.Transition{
			NewStatus:    string(hiring.VagaCancelled),
			HistoryEntry: entry,
		}, nil

	case from == hiring.VagaPublishing && event == EventHRCloses:
		return &docstore.Transition{
			NewStatus:    string(hiring.VagaClosed),
			HistoryEntry: entry,
		}, nil
	}

	return nil, errors.InvalidTransition(string(from), event)
}

func (s *VagaWorkflow) notify(ctx context.Context, event, vagaID string, actor hiring.Actor, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishWorkflowEvent(ctx, eventType("vaga", event), "vaga", vagaID, actor.ID, payload)
}

// ── shared helpers ────────────────────────────────────────────────────────────

func eventType(entity, event string) string {
	return entity + "_" + strings.ReplaceAll(event, "-", "_")
}

func insertDocument(ctx context.Context, store docstore.Store, collection, id, status string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode document")
	}
	return store.Insert(ctx, collection, id, status, raw)
}

func decodeVaga(doc *docstore.Document) (*hiring.Vaga, error) {
	vaga := &hiring.Vaga{}
	if err := doc.Unmarshal(vaga); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "corrupt vaga document")
	}
	// Legacy documents store the old label; expose the canonical status.
	if status, ok := hiring.ParseVagaStatus(string(vaga.Status)); ok {
		vaga.Status = status
	}
	return vaga, nil
}
