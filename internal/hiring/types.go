package hiring

import "time"

// Collection names in the document store.
const (
	CollectionVagas          = "vagas"
	CollectionCandidaturas   = "candidaturas"
	CollectionTestStatistics = "test_statistics"
)

// Actor identifies who triggered a workflow event.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"` // hr | manager | designer | candidate
}

const (
	RoleHR        = "hr"
	RoleManager   = "manager"
	RoleDesigner  = "designer"
	RoleCandidate = "candidate"
)

// AuditEntry is one immutable record in an entity's history. Entries keep
// insertion order; server-assigned timestamps may lag and are never used to
// reorder.
type AuditEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	ActorID       string    `json:"actor_id"`
	Action        string    `json:"action"`
	Justification string    `json:"justification,omitempty"`
}

// Art is the creative material attached to a Vaga during the creative stage.
type Art struct {
	Link           string    `json:"link,omitempty"`
	Observation    string    `json:"observation,omitempty"`
	Status         ArtStatus `json:"status"`
	PendingChanges string    `json:"pending_changes,omitempty"`
}

// Vaga is a job requisition.
type Vaga struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Department   string     `json:"department"`
	Salary       string     `json:"salary,omitempty"`
	WorkRegime   string     `json:"work_regime"`
	WorkModality string     `json:"work_modality"`
	Status       VagaStatus `json:"status"`
	Art          Art        `json:"art"`
	// RejectionJustification keeps the manager's last rejection text for
	// display while HR reworks the draft.
	RejectionJustification string       `json:"rejection_justification,omitempty"`
	History                []AuditEntry `json:"history"`
	CreatedAt              time.Time    `json:"created_at"`
}

// Screening holds the HR screening decision and its advisory checklist.
type Screening struct {
	Checklist            map[string]bool `json:"checklist,omitempty"`
	PrerequisitesMet     string          `json:"prerequisites_met,omitempty"`
	GeneralComments      string          `json:"general_comments,omitempty"`
	EligibleForInterview bool            `json:"eligible_for_interview"`
	RejectionReason      string          `json:"rejection_reason,omitempty"`
}

// TestAssignmentStatus tracks one sent test.
type TestAssignmentStatus string

const (
	TestPending  TestAssignmentStatus = "pending"
	TestAnswered TestAssignmentStatus = "answered"
)

// TestAssignment is one written test sent to a candidate.
type TestAssignment struct {
	TestID  string               `json:"test_id"`
	TokenID string               `json:"token_id"`
	Status  TestAssignmentStatus `json:"status"`
	SentAt  time.Time            `json:"sent_at"`
}

// TestEvaluation is the HR verdict on the candidate's answered tests.
type TestEvaluation struct {
	Result            string `json:"result,omitempty"` // approved | rejected
	Observations      string `json:"observations,omitempty"`
	AssignedManagerID string `json:"assigned_manager_id,omitempty"`
}

// Rejection records where and why an application was closed negatively.
type Rejection struct {
	Stage         string    `json:"stage"`
	Justification string    `json:"justification"`
	RejectedAt    time.Time `json:"rejected_at"`
}

// Candidatura is one application against a Vaga.
type Candidatura struct {
	ID             string           `json:"id"`
	VagaID         string           `json:"vaga_id"`
	CandidateName  string           `json:"candidate_name"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone,omitempty"`
	Status         Stage            `json:"status"`
	Screening      Screening        `json:"screening"`
	TestsAssigned  []TestAssignment `json:"tests_assigned,omitempty"`
	TestEvaluation TestEvaluation   `json:"test_evaluation"`
	Rejection      *Rejection       `json:"rejection,omitempty"`
	History        []AuditEntry     `json:"history"`
	CreatedAt      time.Time        `json:"created_at"`
}

// TestStatistics is the derived correctness record for one answered test.
// Never hand-edited; written once when the response is collected.
type TestStatistics struct {
	TestID         string            `json:"test_id,omitempty"`
	CandidateID    string            `json:"candidate_id"`
	Answers        map[string]string `json:"answers,omitempty"` // question index -> answer text
	CorrectCount   int               `json:"correct_count"`
	IncorrectCount int               `json:"incorrect_count"`
	TotalQuestions int               `json:"total_questions"`
}

// StatisticsKey is the primary document id for a TestStatistics record.
// Older records were stored under the candidate id alone.
func StatisticsKey(testID, candidateID string) string {
	return testID + ":" + candidateID
}
