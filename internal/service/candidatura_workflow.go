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
	"github.com/ongbase/be-hiring-workflow/internal/hiring/checklist"
	"github.com/ongbase/be-hiring-workflow/internal/hiring/scoring"
	"github.com/ongbase/be-hiring-workflow/internal/logger"
)

// Candidatura workflow events.
const (
	EventSubmitScreening          = "submit-screening"
	EventApproveInterview         = "approve-interview"
	EventSendTest                 = "send-test"
	EventRecordTestResponse       = "record-test-response"
	EventEvaluateTests            = "evaluate-tests"
	EventManagerInterviewDecision = "manager-interview-decision"
	EventCompleteAdmission        = "complete-admission"
	EventWithdraw                 = "withdraw"
)

// Screening decision outcomes.
const (
	OutcomeEligible    = "eligible"
	OutcomeNotEligible = "not_eligible"
	OutcomeIncomplete  = "incomplete"
)

// Dual-outcome decision results (test evaluation, manager interview).
const (
	ResultApproved = "approved"
	ResultRejected = "rejected"
)

// CreateCandidaturaRequest carries an incoming application.
type CreateCandidaturaRequest struct {
	VagaID        string `json:"vaga_id"`
	CandidateName string `json:"candidate_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
}

// ScreeningDecision is the HR screening submission.
type ScreeningDecision struct {
	Outcome          string          `json:"outcome"` // eligible | not_eligible | incomplete
	Checklist        map[string]bool `json:"checklist,omitempty"`
	PrerequisitesMet string          `json:"prerequisites_met,omitempty"`
	GeneralComments  string          `json:"general_comments,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
}

// TestSend names the written test to (re)send.
type TestSend struct {
	TestID string `json:"test_id"`
}

// TestResponse records the collected answers and correctness counts for one
// sent test.
type TestResponse struct {
	TestID         string            `json:"test_id"`
	Answers        map[string]string `json:"answers,omitempty"`
	CorrectCount   int               `json:"correct_count"`
	IncorrectCount int               `json:"incorrect_count"`
	TotalQuestions int               `json:"total_questions"`
}

// TestEvaluationDecision is the HR verdict after tests are answered.
type TestEvaluationDecision struct {
	Result            string `json:"result"` // approved | rejected
	Observations      string `json:"observations,omitempty"`
	AssignedManagerID string `json:"assigned_manager_id,omitempty"`
}

// InterviewDecision is the hiring manager's final interview outcome.
type InterviewDecision struct {
	Outcome       string `json:"outcome"` // approved | rejected
	Justification string `json:"justification,omitempty"`
}

// CandidaturaEventPayload carries the event-specific data of a transition.
// Exactly one member matching the event must be set.
type CandidaturaEventPayload struct {
	Screening  *ScreeningDecision      `json:"screening,omitempty"`
	Test       *TestSend               `json:"test,omitempty"`
	Response   *TestResponse           `json:"response,omitempty"`
	Evaluation *TestEvaluationDecision `json:"evaluation,omitempty"`
	Interview  *InterviewDecision      `json:"interview,omitempty"`
}

// CandidaturaWorkflow owns the application state machine.
type CandidaturaWorkflow struct {
	store      docstore.Store
	checklists *checklist.Engine
	scores     *scoring.Aggregator
	notifier   Notifier
	log        *logger.Logger
}

// NewCandidaturaWorkflow creates a new CandidaturaWorkflow. notifier may be nil.
func NewCandidaturaWorkflow(store docstore.Store, checklists *checklist.Engine, scores *scoring.Aggregator, notifier Notifier, log *logger.Logger) *CandidaturaWorkflow {
	return &CandidaturaWorkflow{
		store:      store,
		checklists: checklists,
		scores:     scores,
		notifier:   notifier,
		log:        log,
	}
}

// Create registers an application against a published Vaga.
func (s *CandidaturaWorkflow) Create(ctx context.Context, req CreateCandidaturaRequest) (*hiring.Candidatura, error) {
	var missing []string
	if req.VagaID == "" {
		missing = append(missing, "vaga_id")
	}
	if req.CandidateName == "" {
		missing = append(missing, "candidate_name")
	}
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return nil, errors.ValidationFailed(missing...)
	}

	vagaDoc, err := s.store.Get(ctx, hiring.CollectionVagas, req.VagaID)
	if err != nil {
		return nil, err
	}
	vaga, err := decodeVaga(vagaDoc)
	if err != nil {
		return nil, err
	}
	if vaga.Status != hiring.VagaPublishing {
		return nil, errors.InvalidInput("vaga_id", "vaga is not open for applications")
	}

	now := time.Now().UTC()
	cand := &hiring.Candidatura{
		ID:            uuid.NewString(),
		VagaID:        req.VagaID,
		CandidateName: req.CandidateName,
		Email:         req.Email,
		Phone:         req.Phone,
		Status:        hiring.StageReceived,
		History: []hiring.AuditEntry{
			{Timestamp: now, ActorID: req.Email, Action: "application-received"},
		},
		CreatedAt: now,
	}

	if err := insertDocument(ctx, s.store, hiring.CollectionCandidaturas, cand.ID, string(cand.Status), cand); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("candidatura_id", cand.ID).
		Str("vaga_id", cand.VagaID).
		Msg("Candidatura created")

	return cand, nil
}

// Get retrieves an application by id.
func (s *CandidaturaWorkflow) Get(ctx context.Context, id string) (*hiring.Candidatura, error) {
	doc, err := s.store.Get(ctx, hiring.CollectionCandidaturas, id)
	if err != nil {
		return nil, err
	}
	return decodeCandidatura(doc)
}

// List returns applications filtered by vaga and/or canonical stage.
func (s *CandidaturaWorkflow) List(ctx context.Context, vagaID, stage string) ([]*hiring.Candidatura, error) {
	var docs []*docstore.Document
	var err error
	if vagaID != "" {
		docs, err = s.store.Query(ctx, hiring.CollectionCandidaturas, "vaga_id", vagaID)
	} else {
		docs, err = s.store.List(ctx, hiring.CollectionCandidaturas)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*hiring.Candidatura, 0, len(docs))
	for _, doc := range docs {
		cand, err := decodeCandidatura(doc)
		if err != nil {
			return nil, err
		}
		if stage != "" && string(cand.Status) != stage {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

// History returns the ordered audit trail of an application.
func (s *CandidaturaWorkflow) History(ctx context.Context, id string) ([]hiring.AuditEntry, error) {
	cand, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return cand.History, nil
}

// AggregateScore recomputes the candidate's written-test score on demand.
func (s *CandidaturaWorkflow) AggregateScore(ctx context.Context, id string) (scoring.Score, error) {
	cand, err := s.Get(ctx, id)
	if err != nil {
		return scoring.Score{}, err
	}
	return s.scores.Aggregate(ctx, cand)
}

// SaveChecklist autosaves the screening checklist without touching the rest
// of the screening fields or the status. Last writer wins on the checklist
// sub-field only.
func (s *CandidaturaWorkflow) SaveChecklist(ctx context.Context, id string, responses map[string]bool, actor hiring.Actor) error {
	if _, err := s.checklists.Evaluate(responses); err != nil {
		return err
	}
	err := s.store.WriteConditional(ctx, hiring.CollectionCandidaturas, id, "", map[string]any{
		"screening.checklist": responses,
	})
	if err != nil {
		return err
	}

	s.log.Debug().
		Str("candidatura_id", id).
		Str("actor_id", actor.ID).
		Msg("Screening checklist autosaved")
	return nil
}

// SubmitEvent validates and applies one workflow event. Status, payload and
// one audit entry are written as a single conditional unit; guard failures
// leave the document untouched. Test responses additionally persist a
// statistics record before the transition.
func (s *CandidaturaWorkflow) SubmitEvent(ctx context.Context, candidaturaID, event string, payload CandidaturaEventPayload, actor hiring.Actor) (*hiring.Candidatura, error) {
	doc, err := s.store.Get(ctx, hiring.CollectionCandidaturas, candidaturaID)
	if err != nil {
		return nil, err
	}
	cand, err := decodeCandidatura(doc)
	if err != nil {
		return nil, err
	}

	transition, stats, err := s.resolveTransition(cand, event, payload, actor)
	if err != nil {
		return nil, err
	}

	// Derived statistics are written first as an idempotent put keyed per
	// test and candidate, so when the transition fails a retry of the same
	// event just rewrites the same record.
	if stats != nil {
		if err := s.recordStatistics(ctx, stats); err != nil {
			return nil, err
		}
	}

	transition.ExpectedStatus = doc.Status
	transition.ExpectedVersion = doc.Version
	if err := s.store.ApplyTransition(ctx, hiring.CollectionCandidaturas, candidaturaID, *transition); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("candidatura_id", candidaturaID).
		Str("event", event).
		Str("from", string(cand.Status)).
		Str("to", transition.NewStatus).
		Str("actor_id", actor.ID).
		Msg("Candidatura transition applied")

	s.notify(ctx, event, candidaturaID, actor, map[string]any{
		"from": string(cand.Status),
		"to":   transition.NewStatus,
	})

	return s.Get(ctx, candidaturaID)
}

// resolveTransition checks the guard for (stage, event) and builds the write.
// It is pure except for checklist validation; no store access, no mutation.
func (s *CandidaturaWorkflow) resolveTransition(cand *hiring.Candidatura, event string, payload CandidaturaEventPayload, actor hiring.Actor) (*docstore.Transition, *hiring.TestStatistics, error) {
	from := cand.Status
	entry := hiring.AuditEntry{
		Timestamp: time.Now().UTC(),
		ActorID:   actor.ID,
		Action:    event,
	}

	// Withdrawal is candidate-initiated and legal from every non-terminal stage.
	if event == EventWithdraw {
		if from.Terminal() {
			return nil, nil, errors.InvalidTransition(string(from), event)
		}
		return &docstore.Transition{
			NewStatus:    string(hiring.StageWithdrawn),
			HistoryEntry: entry,
		}, nil, nil
	}

	switch {
	case from == hiring.StageReceived && event == EventSubmitScreening:
		t, err := s.resolveScreening(payload.Screening, entry)
		return t, nil, err

	case from == hiring.StagePendingInterview && event == EventApproveInterview:
		return &docstore.Transition{
			NewStatus:    string(hiring.StagePendingTest),
			HistoryEntry: entry,
		}, nil, nil

	case (from == hiring.StagePendingTest || from == hiring.StageTestSent) && event == EventSendTest:
		if payload.Test == nil || strings.TrimSpace(payload.Test.TestID) == "" {
			return nil, nil, errors.ValidationFailed("test_id")
		}
		assignment := hiring.TestAssignment{
			TestID:  payload.Test.TestID,
			TokenID: uuid.NewString(),
			Status:  hiring.TestPending,
			SentAt:  time.Now().UTC(),
		}
		entry.Justification = "test " + assignment.TestID
		return &docstore.Transition{
			NewStatus:    string(hiring.StageTestSent),
			Append:       map[string]any{"tests_assigned": assignment},
			HistoryEntry: entry,
		}, nil, nil

	case from == hiring.StageTestSent && event == EventRecordTestResponse:
		return s.resolveTestResponse(cand, payload.Response, entry)

	case from == hiring.StageTestAnswered && event == EventEvaluateTests:
		t, err := s.resolveEvaluation(payload.Evaluation, entry)
		return t, nil, err

	case from == hiring.StagePendingManagerInterview && event == EventManagerInterviewDecision:
		t, err := s.resolveInterviewDecision(payload.Interview, entry)
		return t, nil, err

	case from == hiring.StagePendingAdmission && event == EventCompleteAdmission:
		return &docstore.Transition{
			NewStatus:    string(hiring.StageHired),
			HistoryEntry: entry,
		}, nil, nil
	}

	return nil, nil, errors.InvalidTransition(string(from), event)
}

// resolveScreening handles the triage decision. The checklist is advisory
// input: it is validated and stored verbatim, but an unchecked box does not
// block eligibility. A "not completed" outcome returns the candidate to the
// screening queue without a structured reason; only a negative decision
// requires one.
func (s *CandidaturaWorkflow) resolveScreening(decision *ScreeningDecision, entry hiring.AuditEntry) (*docstore.Transition, error) {
	if decision == nil {
		return nil, errors.ValidationFailed("screening")
	}
	if _, err := s.checklists.Evaluate(decision.Checklist); err != nil {
		return nil, err
	}

	patch := map[string]any{
		"screening.checklist":         decision.Checklist,
		"screening.prerequisites_met": decision.PrerequisitesMet,
		"screening.general_comments":  decision.GeneralComments,
	}

	switch decision.Outcome {
	case OutcomeEligible:
		patch["screening.eligible_for_interview"] = true
		patch["screening.rejection_reason"] = ""
		return &docstore.Transition{
			NewStatus:    string(hiring.StagePendingInterview),
			Patch:        patch,
			HistoryEntry: entry,
		}, nil

	case OutcomeNotEligible:
		if strings.TrimSpace(decision.RejectionReason) == "" {
			return nil, errors.ValidationFailed("rejection_reason")
		}
		patch["screening.eligible_for_interview"] = false
		patch["screening.rejection_reason"] = decision.RejectionReason
		patch["rejection"] = hiring.Rejection{
			Stage:         "Screening",
			Justification: decision.RejectionReason,
			RejectedAt:    entry.Timestamp,
		}
		entry.Justification = decision.RejectionReason
		return &docstore.Transition{
			NewStatus:    string(hiring.StageScreeningRejected),
			Patch:        patch,
			HistoryEntry: entry,
		}, nil

	case OutcomeIncomplete:
		// Back to the screening queue, no reason required.
		entry.Action = "screening-incomplete"
		return &docstore.Transition{
			NewStatus:    string(hiring.StageReceived),
			Patch:        patch,
			HistoryEntry: entry,
		}, nil
	}

	return nil, errors.InvalidInput("outcome", "must be eligible, not_eligible or incomplete")
}

// resolveTestResponse marks the matching assignment answered and builds the
// statistics record for the scoring aggregator.
func (s *CandidaturaWorkflow) resolveTestResponse(cand *hiring.Candidatura, response *TestResponse, entry hiring.AuditEntry) (*docstore.Transition, *hiring.TestStatistics, error) {
	if response == nil || response.TestID == "" {
		return nil, nil, errors.ValidationFailed("test_id")
	}

	matched := false
	updated := make([]hiring.TestAssignment, len(cand.TestsAssigned))
	copy(updated, cand.TestsAssigned)
	for i := range updated {
		if updated[i].TestID == response.TestID && updated[i].Status == hiring.TestPending {
			updated[i].Status = hiring.TestAnswered
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil, errors.InvalidInput("test_id", "no pending assignment for this test")
	}

	stats := &hiring.TestStatistics{
		TestID:         response.TestID,
		CandidateID:    cand.ID,
		Answers:        response.Answers,
		CorrectCount:   response.CorrectCount,
		IncorrectCount: response.IncorrectCount,
		TotalQuestions: response.TotalQuestions,
	}
	entry.Justification = "test " + response.TestID

	return &docstore.Transition{
		NewStatus:    string(hiring.StageTestAnswered),
		Patch:        map[string]any{"tests_assigned": updated},
		HistoryEntry: entry,
	}, stats, nil
}

func (s *CandidaturaWorkflow) resolveEvaluation(decision *TestEvaluationDecision, entry hiring.AuditEntry) (*docstore.Transition, error) {
	if decision == nil {
		return nil, errors.ValidationFailed("evaluation")
	}

	switch decision.Result {
	case ResultApproved:
		if strings.TrimSpace(decision.AssignedManagerID) == "" {
			return nil, errors.ValidationFailed("assigned_manager_id")
		}
		return &docstore.Transition{
			NewStatus: string(hiring.StagePendingManagerInterview),
			Patch: map[string]any{
				"test_evaluation": hiring.TestEvaluation{
					Result:            ResultApproved,
					Observations:      decision.Observations,
					AssignedManagerID: decision.AssignedManagerID,
				},
			},
			HistoryEntry: entry,
		}, nil

	case ResultRejected:
		if strings.TrimSpace(decision.Observations) == "" {
			return nil, errors.ValidationFailed("observations")
		}
		entry.Justification = decision.Observations
		return &docstore.Transition{
			NewStatus: string(hiring.StageRejectedClosed),
			Patch: map[string]any{
				"test_evaluation": hiring.TestEvaluation{
					Result:       ResultRejected,
					Observations: decision.Observations,
				},
				"rejection": hiring.Rejection{
					Stage:         "Test Evaluation",
					Justification: decision.Observations,
					RejectedAt:    entry.Timestamp,
				},
			},
			HistoryEntry: entry,
		}, nil
	}

	return nil, errors.ValidationFailed("result")
}

func (s *CandidaturaWorkflow) resolveInterviewDecision(decision *InterviewDecision, entry hiring.AuditEntry) (*docstore.Transition, error) {
	if decision == nil {
		return nil, errors.ValidationFailed("interview")
	}

	switch decision.Outcome {
	case ResultApproved:
		return &docstore.Transition{
			NewStatus:    string(hiring.StagePendingAdmission),
			HistoryEntry: entry,
		}, nil

	case ResultRejected:
		if strings.TrimSpace(decision.Justification) == "" {
			return nil, errors.ValidationFailed("justification")
		}
		entry.Justification = decision.Justification
		return &docstore.Transition{
			NewStatus: string(hiring.StageRejectedClosed),
			Patch: map[string]any{
				"rejection": hiring.Rejection{
					Stage:         "Manager Interview",
					Justification: decision.Justification,
					RejectedAt:    entry.Timestamp,
				},
			},
			HistoryEntry: entry,
		}, nil
	}

	return nil, errors.ValidationFailed("outcome")
}

func (s *CandidaturaWorkflow) recordStatistics(ctx context.Context, stats *hiring.TestStatistics) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode test statistics")
	}
	key := hiring.StatisticsKey(stats.TestID, stats.CandidateID)
	return s.store.Put(ctx, hiring.CollectionTestStatistics, key, "", raw)
}

func (s *CandidaturaWorkflow) notify(ctx context.Context, event, candidaturaID string, actor hiring.Actor, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishWorkflowEvent(ctx, eventType("candidatura", event), "candidatura", candidaturaID, actor.ID, payload)
}

func decodeCandidatura(doc *docstore.Document) (*hiring.Candidatura, error) {
	cand := &hiring.Candidatura{}
	if err := doc.Unmarshal(cand); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "corrupt candidatura document")
	}
	// Legacy documents store the old label; expose the canonical stage.
	if stage, ok := hiring.ParseStage(string(cand.Status)); ok {
		cand.Status = stage
	}
	return cand, nil
}
