// Package hiring holds the domain types of the recruitment workflow: job
// requisitions (Vaga), applications (Candidatura), their status sets and the
// legacy status labels still present in older documents.
package hiring

// VagaStatus is the canonical state of a job requisition.
type VagaStatus string

const (
	VagaDrafting        VagaStatus = "drafting"
	VagaPendingApproval VagaStatus = "pending_approval"
	VagaCreativePending VagaStatus = "creative_pending"
	VagaPublishing      VagaStatus = "publishing"
	VagaClosed          VagaStatus = "closed"
	VagaCancelled       VagaStatus = "cancelled"
)

// vagaLabels maps canonical states to their human-readable labels.
var vagaLabels = map[VagaStatus]string{
	VagaDrafting:        "Em Elaboração",
	VagaPendingApproval: "Aprovação Pendente",
	VagaCreativePending: "Criativo Pendente",
	VagaPublishing:      "Em Divulgação",
	VagaClosed:          "Encerrada",
	VagaCancelled:       "Cancelada",
}

// legacyVagaStatuses maps the free-text labels persisted by the old portal to
// canonical states. Lookup only; never matched by substring.
var legacyVagaStatuses = map[string]VagaStatus{
	"Em Elaboração":      VagaDrafting,
	"Aprovação Pendente": VagaPendingApproval,
	"Criativo Pendente":  VagaCreativePending,
	"Em Divulgação":      VagaPublishing,
	"Encerrada":          VagaClosed,
	"Cancelada":          VagaCancelled,
}

// Label returns the human-readable label for the status.
func (s VagaStatus) Label() string {
	if label, ok := vagaLabels[s]; ok {
		return label
	}
	return string(s)
}

// Terminal reports whether no further transition is legal.
func (s VagaStatus) Terminal() bool {
	return s == VagaClosed || s == VagaCancelled
}

// ParseVagaStatus resolves a stored status string, canonical or legacy.
func ParseVagaStatus(raw string) (VagaStatus, bool) {
	switch VagaStatus(raw) {
	case VagaDrafting, VagaPendingApproval, VagaCreativePending, VagaPublishing, VagaClosed, VagaCancelled:
		return VagaStatus(raw), true
	}
	status, ok := legacyVagaStatuses[raw]
	return status, ok
}

// ArtStatus tracks the creative review of a Vaga. Meaningful only while the
// Vaga itself is in creative_pending.
type ArtStatus string

const (
	ArtNone                ArtStatus = "none"
	ArtPendingReview       ArtStatus = "pending_review"
	ArtAlterationRequested ArtStatus = "alteration_requested"
	ArtApproved            ArtStatus = "approved"
)

// Stage is the canonical state of a Candidatura.
type Stage string

const (
	StageReceived                Stage = "received_pending_screening"
	StagePendingInterview        Stage = "screening_approved_pending_interview"
	StageScreeningRejected       Stage = "screening_rejected_closed"
	StagePendingTest             Stage = "interview_approved_pending_test"
	StageTestSent                Stage = "test_sent"
	StageTestAnswered            Stage = "test_answered"
	StagePendingManagerInterview Stage = "approved_pending_manager_interview"
	StageRejectedClosed          Stage = "rejected_closed"
	StagePendingAdmission        Stage = "pending_admission"
	StageHired                   Stage = "hired"
	StageWithdrawn               Stage = "withdrawn"
)

var stageLabels = map[Stage]string{
	StageReceived:                "Recebida (Triagem Pendente)",
	StagePendingInterview:        "Triagem Aprovada (Entrevista Pendente)",
	StageScreeningRejected:       "Triagem Reprovada (Encerrada)",
	StagePendingTest:             "Entrevista Aprovada (Testes Pendentes)",
	StageTestSent:                "Testes Pendente (Enviado)",
	StageTestAnswered:            "Testes Respondidos",
	StagePendingManagerInterview: "Aprovada (Entrevista com Gestor Pendente)",
	StageRejectedClosed:          "Reprovada (Encerrada)",
	StagePendingAdmission:        "Admissão Pendente",
	StageHired:                   "Contratada",
	StageWithdrawn:               "Desistência",
}

// legacyStages maps every label the old portal ever persisted to its
// canonical stage. Documents written before the migration keep these strings
// in their status field.
var legacyStages = map[string]Stage{
	"Recebida (Triagem Pendente)":                StageReceived,
	"Triagem Aprovada (Entrevista Pendente)":     StagePendingInterview,
	"Triagem Reprovada (Encerrada)":              StageScreeningRejected,
	"Entrevista Aprovada (Testes Pendentes)":     StagePendingTest,
	"Testes Pendente (Enviado)":                  StageTestSent,
	"Testes Respondidos":                         StageTestAnswered,
	"Aprovada (Entrevista com Gestor Pendente)":  StagePendingManagerInterview,
	"Reprovada (Encerrada)":                      StageRejectedClosed,
	"Admissão Pendente":                          StagePendingAdmission,
	"Contratada":                                 StageHired,
	"Desistência":                                StageWithdrawn,
}

// Label returns the human-readable label for the stage.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// Terminal reports whether the application can no longer move.
func (s Stage) Terminal() bool {
	switch s {
	case StageScreeningRejected, StageRejectedClosed, StageHired, StageWithdrawn:
		return true
	}
	return false
}

// ParseStage resolves a stored status string, canonical or legacy.
func ParseStage(raw string) (Stage, bool) {
	switch Stage(raw) {
	case StageReceived, StagePendingInterview, StageScreeningRejected, StagePendingTest,
		StageTestSent, StageTestAnswered, StagePendingManagerInterview, StageRejectedClosed,
		StagePendingAdmission, StageHired, StageWithdrawn:
		return Stage(raw), true
	}
	stage, ok := legacyStages[raw]
	return stage, ok
}
