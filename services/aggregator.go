// services/aggregator.go
package services

import (
	"sort"

	"bounty-marketplace/models"

	"github.com/shopspring/decimal"
)

// ScoreAggregator decides how the outcomes of a submission's scoring
// jobs combine into one submission status and score. The policy is a
// product decision, so it is injected into the scoring service rather
// than hard-coded; Aggregate is only consulted once every job has
// reached a terminal state.
type ScoreAggregator interface {
	Aggregate(jobs []models.ScoringJob) (models.SubmissionStatus, *decimal.Decimal)
}

// HighestPriorityAggregator is the default policy: the score reported
// by the highest-priority screener with a completed job stands, and
// the submission is approved when that score meets the threshold.
// Submissions with no completed job are rejected.
type HighestPriorityAggregator struct {
	ApprovalThreshold decimal.Decimal
}

func NewHighestPriorityAggregator(threshold decimal.Decimal) *HighestPriorityAggregator {
	return &HighestPriorityAggregator{ApprovalThreshold: threshold}
}

func (a *HighestPriorityAggregator) Aggregate(jobs []models.ScoringJob) (models.SubmissionStatus, *decimal.Decimal) {
	completed := make([]models.ScoringJob, 0, len(jobs))
	for _, j := range jobs {
		if j.Status == models.ScoringJobStatusCompleted && j.Score != nil {
			completed = append(completed, j)
		}
	}
	if len(completed) == 0 {
		return models.SubmissionStatusRejected, nil
	}

	sort.SliceStable(completed, func(i, k int) bool {
		pi, pk := 0, 0
		if completed[i].Screener != nil {
			pi = completed[i].Screener.Priority
		}
		if completed[k].Screener != nil {
			pk = completed[k].Screener.Priority
		}
		return pi > pk
	})

	score := completed[0].Score
	if score.GreaterThanOrEqual(a.ApprovalThreshold) {
		return models.SubmissionStatusApproved, score
	}
	return models.SubmissionStatusRejected, score
}
