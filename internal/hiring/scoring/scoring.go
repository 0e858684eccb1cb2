// Package scoring aggregates per-test correctness statistics into a single
// candidate score. The aggregate is derived data recomputed on demand; it is
// never persisted, so it cannot drift from the underlying per-test records.
package scoring

import (
	"context"

	"github.com/ongbase/be-hiring-workflow/internal/docstore"
	"github.com/ongbase/be-hiring-workflow/internal/errors"
	"github.com/ongbase/be-hiring-workflow/internal/hiring"
)

// Score is the aggregate result across all answered tests.
type Score struct {
	// Defined is false when no answered test has any questions; callers
	// render that as 0%.
	Defined        bool    `json:"defined"`
	PassRate       float64 `json:"pass_rate"`
	CorrectCount   int     `json:"correct_count"`
	IncorrectCount int     `json:"incorrect_count"`
	TotalQuestions int     `json:"total_questions"`
}

// Aggregator looks up test statistics and sums them per candidate.
type Aggregator struct {
	store docstore.Store
}

// NewAggregator creates an Aggregator backed by the given store.
func NewAggregator(store docstore.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Aggregate sums correctness counts over every answered test assignment.
// Statistics are keyed by test id + candidate id; older records were stored
// under the candidate id alone, so a missing primary key falls back to a
// candidate-only lookup.
func (a *Aggregator) Aggregate(ctx context.Context, cand *hiring.Candidatura) (Score, error) {
	var score Score
	for _, assignment := range cand.TestsAssigned {
		if assignment.Status != hiring.TestAnswered {
			continue
		}

		stats, err := a.lookup(ctx, assignment.TestID, cand.ID)
		if err != nil {
			if errors.Is(err, errors.ErrCodeNotFound) {
				continue
			}
			return Score{}, err
		}

		score.CorrectCount += stats.CorrectCount
		score.IncorrectCount += stats.IncorrectCount
		score.TotalQuestions += stats.TotalQuestions
	}

	if score.TotalQuestions > 0 {
		score.Defined = true
		score.PassRate = float64(score.CorrectCount) / float64(score.TotalQuestions)
	}
	return score, nil
}

func (a *Aggregator) lookup(ctx context.Context, testID, candidateID string) (*hiring.TestStatistics, error) {
	doc, err := a.store.Get(ctx, hiring.CollectionTestStatistics, hiring.StatisticsKey(testID, candidateID))
	if err == nil {
		return decodeStatistics(doc)
	}
	if !errors.Is(err, errors.ErrCodeNotFound) {
		return nil, err
	}

	// Legacy records: keyed and queryable by candidate id only.
	docs, err := a.store.Query(ctx, hiring.CollectionTestStatistics, "candidate_id", candidateID)
	if err != nil {
		return nil, err
	}
	for _, legacy := range docs {
		stats, err := decodeStatistics(legacy)
		if err != nil {
			return nil, err
		}
		if stats.TestID == "" || stats.TestID == testID {
			return stats, nil
		}
	}
	return nil, errors.NotFound(hiring.CollectionTestStatistics, candidateID)
}

func decodeStatistics(doc *docstore.Document) (*hiring.TestStatistics, error) {
	stats := &hiring.TestStatistics{}
	if err := doc.Unmarshal(stats); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "corrupt test statistics record")
	}
	return stats, nil
}
