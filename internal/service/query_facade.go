package service

import (
	"context"

	"github.com/ongbase/be-hiring-workflow/internal/docstore"
	"github.com/ongbase/be-hiring-workflow/internal/errors"
	"github.com/ongbase/be-hiring-workflow/internal/hiring"
	"github.com/ongbase/be-hiring-workflow/internal/logger"
)

// QueryFacade serves the read side of the dashboards: stage counts and
// stage-filtered listings. Counts are always recomputed from the stored
// status set, never from a cached counter, and legacy status labels are
// folded into their canonical stage through the lookup tables.
type QueryFacade struct {
	store docstore.Store
	log   *logger.Logger
}

// NewQueryFacade creates a new QueryFacade.
func NewQueryFacade(store docstore.Store, log *logger.Logger) *QueryFacade {
	return &QueryFacade{store: store, log: log}
}

// CountVagasByStatus groups all requisitions by canonical status.
func (q *QueryFacade) CountVagasByStatus(ctx context.Context) (map[string]int, error) {
	raw, err := q.store.CountByField(ctx, hiring.CollectionVagas, "status")
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for stored, n := range raw {
		status, ok := hiring.ParseVagaStatus(stored)
		if !ok {
			q.log.Warn().Str("status", stored).Msg("Unclassifiable vaga status in store")
			continue
		}
		counts[string(status)] += n
	}
	return counts, nil
}

// CountCandidaturasByStage groups all applications by canonical stage.
func (q *QueryFacade) CountCandidaturasByStage(ctx context.Context) (map[string]int, error) {
	raw, err := q.store.CountByField(ctx, hiring.CollectionCandidaturas, "status")
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for stored, n := range raw {
		stage, ok := hiring.ParseStage(stored)
		if !ok {
			q.log.Warn().Str("status", stored).Msg("Unclassifiable candidatura status in store")
			continue
		}
		counts[string(stage)] += n
	}
	return counts, nil
}

// CountByStage dispatches on entity type: "vagas" or "candidaturas".
func (q *QueryFacade) CountByStage(ctx context.Context, entityType string) (map[string]int, error) {
	switch entityType {
	case hiring.CollectionVagas:
		return q.CountVagasByStatus(ctx)
	case hiring.CollectionCandidaturas:
		return q.CountCandidaturasByStage(ctx)
	}
	return nil, errors.InvalidInput("entity", "must be vagas or candidaturas")
}

// ListCandidaturasByStage returns applications whose stored status maps to
// the given canonical stage, including documents still carrying a legacy
// label. Aliases come from the lookup table, never from string matching.
func (q *QueryFacade) ListCandidaturasByStage(ctx context.Context, stage hiring.Stage) ([]*hiring.Candidatura, error) {
	var out []*hiring.Candidatura
	for _, alias := range stageAliases(stage) {
		docs, err := q.store.Query(ctx, hiring.CollectionCandidaturas, "status", alias)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			cand, err := decodeCandidatura(doc)
			if err != nil {
				return nil, err
			}
			out = append(out, cand)
		}
	}
	return out, nil
}

// stageAliases returns every stored status string classifying as the stage:
// the canonical key plus its legacy label.
func stageAliases(stage hiring.Stage) []string {
	aliases := []string{string(stage)}
	if label := stage.Label(); label != string(stage) {
		aliases = append(aliases, label)
	}
	return aliases
}
