package services

import (
	"errors"
	"testing"

	"bounty-marketplace/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newScoringService(db *gorm.DB) *ScoringService {
	return NewScoringService(db, NewHighestPriorityAggregator(decimal.NewFromInt(60)), nil)
}

func TestRescoreSubmissionSuccess(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)
	seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusCompleted, decPtr(80))
	seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusFailed, nil)

	require.NoError(t, db.Model(sub).Select("status", "score", "scored_by").Updates(models.Submission{
		Status:   models.SubmissionStatusApproved,
		Score:    decPtr(80),
		ScoredBy: []string{screener.ID},
	}).Error)

	require.NoError(t, svc.rescoreSubmission(sub.ID, Requester{ID: "admin", IsAdmin: true}))

	var jobCount, taskCount int64
	require.NoError(t, db.Model(&models.ScoringJob{}).Where("submission_id = ?", sub.ID).Count(&jobCount).Error)
	require.NoError(t, db.Model(&models.ScoringTask{}).Count(&taskCount).Error)
	require.Zero(t, jobCount)
	require.Zero(t, taskCount)

	var reloaded models.Submission
	require.NoError(t, db.First(&reloaded, "id = ?", sub.ID).Error)
	require.Equal(t, models.SubmissionStatusPending, reloaded.Status)
	require.Nil(t, reloaded.Score)
	require.Empty(t, reloaded.ScoredBy)
}

func TestRescoreSubmissionRequiresAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")

	err := svc.rescoreSubmission(sub.ID, Requester{ID: "submitter"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRescoreSubmissionNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	err := svc.rescoreSubmission("missing", Requester{ID: "admin", IsAdmin: true})
	require.ErrorIs(t, err, ErrNotFound)
}

// A failure injected after the rescore steps must roll back the whole
// operation: the old jobs, tasks, and submission state all survive.
func TestRescoreSubmissionAtomicRollback(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)
	seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusCompleted, decPtr(80))

	require.NoError(t, db.Model(sub).Select("status", "score", "scored_by").Updates(models.Submission{
		Status:   models.SubmissionStatusApproved,
		Score:    decPtr(80),
		ScoredBy: []string{screener.ID},
	}).Error)

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.rescoreInTx(tx, sub.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var jobCount, taskCount int64
	require.NoError(t, db.Model(&models.ScoringJob{}).Where("submission_id = ?", sub.ID).Count(&jobCount).Error)
	require.NoError(t, db.Model(&models.ScoringTask{}).Count(&taskCount).Error)
	require.EqualValues(t, 1, jobCount)
	require.EqualValues(t, 2, taskCount)

	var reloaded models.Submission
	require.NoError(t, db.First(&reloaded, "id = ?", sub.ID).Error)
	require.Equal(t, models.SubmissionStatusApproved, reloaded.Status)
	require.NotNil(t, reloaded.Score)
	require.Equal(t, []string{screener.ID}, reloaded.ScoredBy)
}

func TestRegisterJobBumpsScreenerLoad(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)

	job, err := svc.registerJob(RegisterJobRequest{
		SubmissionID: sub.ID,
		ScreenerID:   screener.ID,
		Dimensions:   []string{"quality"},
	})
	require.NoError(t, err)
	require.Equal(t, models.ScoringJobStatusPending, job.Status)
	require.Len(t, job.Tasks, 1)

	var reloaded models.Screener
	require.NoError(t, db.First(&reloaded, "id = ?", screener.ID).Error)
	require.Equal(t, 1, reloaded.CurrentLoad)
}

func TestRegisterJobInactiveScreener(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)
	require.NoError(t, db.Model(screener).Update("active", false).Error)

	_, err := svc.registerJob(RegisterJobRequest{SubmissionID: sub.ID, ScreenerID: screener.ID})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecordJobOutcomeRejectsInvalidTransition(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)
	job := seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusPending, nil)

	// pending → completed skips assigned/scoring
	_, err := svc.recordJobOutcome(job.ID, JobOutcomeRequest{
		Status: models.ScoringJobStatusCompleted,
		Score:  decPtr(90),
	})
	require.ErrorIs(t, err, ErrValidation)

	// terminal states are never re-entered
	done := seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusCompleted, decPtr(90))
	_, err = svc.recordJobOutcome(done.ID, JobOutcomeRequest{Status: models.ScoringJobStatusCancelled})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecordJobOutcomeCompletionUpdatesSubmission(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)
	job := seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusPending, nil)

	for _, step := range []models.ScoringJobStatus{
		models.ScoringJobStatusAssigned,
		models.ScoringJobStatusScoring,
	} {
		_, err := svc.recordJobOutcome(job.ID, JobOutcomeRequest{Status: step})
		require.NoError(t, err)
	}

	// first screener activity moves the submission to validating
	var mid models.Submission
	require.NoError(t, db.First(&mid, "id = ?", sub.ID).Error)
	require.Equal(t, models.SubmissionStatusValidating, mid.Status)

	updated, err := svc.recordJobOutcome(job.ID, JobOutcomeRequest{
		Status: models.ScoringJobStatusCompleted,
		Score:  decPtr(85),
	})
	require.NoError(t, err)
	require.Equal(t, models.ScoringJobStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)

	var reloaded models.Submission
	require.NoError(t, db.First(&reloaded, "id = ?", sub.ID).Error)
	// all jobs terminal → aggregation advances the submission
	require.Equal(t, models.SubmissionStatusApproved, reloaded.Status)
	require.NotNil(t, reloaded.Score)
	require.True(t, reloaded.Score.Equal(decimal.NewFromInt(85)))
	require.Equal(t, []string{screener.ID}, reloaded.ScoredBy)
}

func TestRecordJobOutcomeBelowThresholdRejects(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)
	job := seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusScoring, nil)

	_, err := svc.recordJobOutcome(job.ID, JobOutcomeRequest{
		Status: models.ScoringJobStatusCompleted,
		Score:  decPtr(40),
	})
	require.NoError(t, err)

	var reloaded models.Submission
	require.NoError(t, db.First(&reloaded, "id = ?", sub.ID).Error)
	require.Equal(t, models.SubmissionStatusRejected, reloaded.Status)
}

func TestRecordJobOutcomeWaitsForAllJobs(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)
	job := seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusScoring, nil)
	seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusScoring, nil)

	_, err := svc.recordJobOutcome(job.ID, JobOutcomeRequest{
		Status: models.ScoringJobStatusCompleted,
		Score:  decPtr(90),
	})
	require.NoError(t, err)

	// second job still in flight — the submission must not advance yet
	var reloaded models.Submission
	require.NoError(t, db.First(&reloaded, "id = ?", sub.ID).Error)
	require.Equal(t, models.SubmissionStatusPending, reloaded.Status)
}

func TestRecordJobOutcomeRetryExhaustion(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)

	job := seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusFailed, nil)
	require.NoError(t, db.Model(job).Updates(map[string]any{"retry_count": 3, "max_retries": 3}).Error)

	_, err := svc.recordJobOutcome(job.ID, JobOutcomeRequest{Status: models.ScoringJobStatusPending})
	require.ErrorIs(t, err, ErrValidation)

	// under the limit the retry goes through and counts
	fresh := seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusFailed, nil)
	retried, err := svc.recordJobOutcome(fresh.ID, JobOutcomeRequest{Status: models.ScoringJobStatusPending})
	require.NoError(t, err)
	require.Equal(t, models.ScoringJobStatusPending, retried.Status)
	require.Equal(t, 1, retried.RetryCount)
}

// A report based on a stale read must not apply once another report
// has already moved the job.
func TestApplyJobOutcomeStaleReadConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)
	job := seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusPending, nil)

	var stale models.ScoringJob
	require.NoError(t, db.First(&stale, "id = ?", job.ID).Error)

	// a concurrent report cancels the job after the read
	require.NoError(t, db.Model(&models.ScoringJob{}).Where("id = ?", job.ID).
		Update("status", models.ScoringJobStatusCancelled).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.applyJobOutcome(tx, &stale, JobOutcomeRequest{Status: models.ScoringJobStatusAssigned})
	})
	require.ErrorIs(t, err, ErrConflict)

	var reloaded models.ScoringJob
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	require.Equal(t, models.ScoringJobStatusCancelled, reloaded.Status)
}

func TestGetJobAccessControl(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")
	screener := seedScreener(t, db, 1)
	job := seedJob(t, db, sub.ID, screener.ID, models.ScoringJobStatusPending, nil)

	for _, requester := range []Requester{
		{ID: "submitter"},
		{ID: "creator"},
		{ID: "other", IsAdmin: true},
	} {
		got, _, _, err := svc.getJob(job.ID, requester)
		require.NoError(t, err)
		require.Equal(t, job.ID, got.ID)
	}

	_, _, _, err := svc.getJob(job.ID, Requester{ID: "stranger"})
	require.ErrorIs(t, err, ErrForbidden)

	_, _, _, err = svc.getJob("missing", Requester{ID: "other", IsAdmin: true})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListJobsScoping(t *testing.T) {
	db := newTestDB(t)
	svc := newScoringService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	mine := seedSubmission(t, db, bounty.ID, "me")
	theirs := seedSubmission(t, db, bounty.ID, "them")
	screener := seedScreener(t, db, 1)
	seedJob(t, db, mine.ID, screener.ID, models.ScoringJobStatusPending, nil)
	seedJob(t, db, theirs.ID, screener.ID, models.ScoringJobStatusPending, nil)
	seedJob(t, db, theirs.ID, screener.ID, models.ScoringJobStatusCompleted, decPtr(70))

	// non-admin without filter sees only their own jobs
	jobs, err := svc.listJobs(JobFilter{}, Requester{ID: "me"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, mine.ID, jobs[0].SubmissionID)

	// explicit filter on someone else's submission is a denial
	_, err = svc.listJobs(JobFilter{SubmissionID: theirs.ID}, Requester{ID: "me"})
	require.ErrorIs(t, err, ErrForbidden)

	// admins see everything and can filter by status
	jobs, err = svc.listJobs(JobFilter{Status: models.ScoringJobStatusCompleted}, Requester{ID: "admin", IsAdmin: true})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, models.ScoringJobStatusCompleted, jobs[0].Status)
}
