// services/scoring_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"bounty-marketplace/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ScoringService owns the submission/scoring-job lifecycle: it keeps a
// submission's status, score, and scorer list consistent with its set
// of scoring jobs as jobs are created, progress, fail, and are reset.
// Job dispatch itself happens in an external process; that process
// reports back through RegisterJob and RecordJobOutcome.
type ScoringService struct {
	DB         *gorm.DB
	Aggregator ScoreAggregator
	Logs       *LogClient
}

func NewScoringService(db *gorm.DB, aggregator ScoreAggregator, logs *LogClient) *ScoringService {
	return &ScoringService{DB: db, Aggregator: aggregator, Logs: logs}
}

type RegisterJobRequest struct {
	SubmissionID string   `json:"submission_id"`
	ScreenerID   string   `json:"screener_id"`
	MaxRetries   int      `json:"max_retries"`
	Dimensions   []string `json:"dimensions"`
}

type JobOutcomeRequest struct {
	Status models.ScoringJobStatus `json:"status"`
	Score  *decimal.Decimal        `json:"score,omitempty"`
}

type JobFilter struct {
	SubmissionID string
	Status       models.ScoringJobStatus
}

// rescoreSubmission discards the submission's entire scoring history
// and returns it to pending evaluation. The delete/update sequence is
// one transaction: readers never see a pending submission with old
// jobs still attached, nor deleted jobs with a stale status.
func (s *ScoringService) rescoreSubmission(submissionID string, requester Requester) error {
	if !requester.IsAdmin {
		return ForbiddenError("only admins may rescore submissions")
	}

	var sub models.Submission
	if err := s.DB.First(&sub, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError("submission not found")
		}
		return err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return s.rescoreInTx(tx, submissionID)
	})
	if err != nil {
		log.Printf("[SCORING] ❌ Rescore transaction failed for submission %s: %v", submissionID, err)
		return err
	}

	log.Printf("[SCORING] ✅ Submission %s reset to pending, scoring history discarded", submissionID)
	return nil
}

// rescoreInTx performs the rescore steps inside the caller's
// transaction: tasks first, then jobs, then the submission reset.
func (s *ScoringService) rescoreInTx(tx *gorm.DB, submissionID string) error {
	if err := tx.Where("job_id IN (?)",
		tx.Model(&models.ScoringJob{}).Select("id").Where("submission_id = ?", submissionID),
	).Delete(&models.ScoringTask{}).Error; err != nil {
		return err
	}

	if err := tx.Where("submission_id = ?", submissionID).Delete(&models.ScoringJob{}).Error; err != nil {
		return err
	}

	return tx.Model(&models.Submission{}).Where("id = ?", submissionID).
		Select("status", "score", "scored_by").
		Updates(models.Submission{
			Status:   models.SubmissionStatusPending,
			Score:    nil,
			ScoredBy: []string{},
		}).Error
}

// registerJob records an assignment made by the external dispatcher
// and bumps the screener's load counter.
func (s *ScoringService) registerJob(req RegisterJobRequest) (*models.ScoringJob, error) {
	if req.SubmissionID == "" || req.ScreenerID == "" {
		return nil, ValidationError("submission_id and screener_id are required")
	}

	var sub models.Submission
	if err := s.DB.First(&sub, "id = ?", req.SubmissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("submission not found")
		}
		return nil, err
	}
	var screener models.Screener
	if err := s.DB.First(&screener, "id = ?", req.ScreenerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("screener not found")
		}
		return nil, err
	}
	if !screener.Active {
		return nil, ValidationError("screener is not active")
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	job := &models.ScoringJob{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		ScreenerID:   screener.ID,
		Status:       models.ScoringJobStatusPending,
		MaxRetries:   maxRetries,
	}
	for _, dim := range req.Dimensions {
		job.Tasks = append(job.Tasks, models.ScoringTask{
			ID:        uuid.NewString(),
			JobID:     job.ID,
			Dimension: dim,
			Status:    models.ScoringJobStatusPending,
		})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		return tx.Model(&screener).Update("current_load", gorm.Expr("current_load + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// recordJobOutcome applies one state-machine step reported by the
// external dispatcher, then reconciles the owning submission.
func (s *ScoringService) recordJobOutcome(jobID string, req JobOutcomeRequest) (*models.ScoringJob, error) {
	var job models.ScoringJob
	if err := s.DB.Preload("Screener").First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("scoring job not found")
		}
		return nil, err
	}

	if !models.ValidJobTransition(job.Status, req.Status) {
		return nil, ValidationError(fmt.Sprintf("invalid job transition %s → %s", job.Status, req.Status))
	}
	if job.Status == models.ScoringJobStatusFailed && req.Status == models.ScoringJobStatusPending &&
		job.RetryCount >= job.MaxRetries {
		return nil, ValidationError("job has exhausted its retries")
	}
	if req.Status == models.ScoringJobStatusCompleted && req.Score == nil {
		return nil, ValidationError("a completed job requires a score")
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return s.applyJobOutcome(tx, &job, req)
	})
	if err != nil {
		return nil, err
	}

	var updated models.ScoringJob
	if err := s.DB.Preload("Screener").Preload("Tasks").First(&updated, "id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

// applyJobOutcome performs the outcome steps inside the caller's
// transaction. The status update is conditional on the status the job
// was read with, so a concurrent report that already moved the job
// surfaces as a conflict instead of applying twice.
func (s *ScoringService) applyJobOutcome(tx *gorm.DB, job *models.ScoringJob, req JobOutcomeRequest) error {
	now := time.Now()
	updates := map[string]any{"status": req.Status}

	switch req.Status {
	case models.ScoringJobStatusScoring:
		updates["started_at"] = now
	case models.ScoringJobStatusCompleted:
		updates["score"] = req.Score
		updates["completed_at"] = now
	case models.ScoringJobStatusFailed:
		updates["completed_at"] = now
	case models.ScoringJobStatusPending:
		// failed → pending retry
		updates["retry_count"] = gorm.Expr("retry_count + 1")
		updates["started_at"] = nil
		updates["completed_at"] = nil
	}

	result := tx.Model(&models.ScoringJob{}).
		Where("id = ? AND status = ?", job.ID, job.Status).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ConflictError("job outcome already recorded")
	}

	if req.Status.IsTerminal() && job.Screener != nil {
		if err := tx.Model(&models.Screener{}).Where("id = ? AND current_load > 0", job.ScreenerID).
			Update("current_load", gorm.Expr("current_load - 1")).Error; err != nil {
			return err
		}
	}

	if req.Status == models.ScoringJobStatusScoring {
		// First screener activity moves the submission out of pending.
		if err := tx.Model(&models.Submission{}).
			Where("id = ? AND status = ?", job.SubmissionID, models.SubmissionStatusPending).
			Update("status", models.SubmissionStatusValidating).Error; err != nil {
			return err
		}
	}

	if req.Status == models.ScoringJobStatusCompleted {
		if err := s.applyCompletedScore(tx, job, *req.Score); err != nil {
			return err
		}
	}

	if req.Status.IsTerminal() {
		return s.reconcileSubmission(tx, job.SubmissionID)
	}
	return nil
}

// applyCompletedScore records the screener's score and identity on the
// owning submission.
func (s *ScoringService) applyCompletedScore(tx *gorm.DB, job *models.ScoringJob, score decimal.Decimal) error {
	var sub models.Submission
	if err := tx.First(&sub, "id = ?", job.SubmissionID).Error; err != nil {
		return err
	}

	scoredBy := sub.ScoredBy
	already := false
	for _, id := range scoredBy {
		if id == job.ScreenerID {
			already = true
			break
		}
	}
	if !already {
		scoredBy = append(scoredBy, job.ScreenerID)
	}

	return tx.Model(&sub).Select("score", "scored_by").
		Updates(models.Submission{Score: &score, ScoredBy: scoredBy}).Error
}

// reconcileSubmission advances the submission once every job has
// reached a terminal state, using the injected aggregation strategy.
func (s *ScoringService) reconcileSubmission(tx *gorm.DB, submissionID string) error {
	var jobs []models.ScoringJob
	if err := tx.Preload("Screener").Where("submission_id = ?", submissionID).Find(&jobs).Error; err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}
	for _, j := range jobs {
		if !j.Status.IsTerminal() {
			return nil
		}
	}

	var sub models.Submission
	if err := tx.First(&sub, "id = ?", submissionID).Error; err != nil {
		return err
	}
	// Only pending/validating submissions advance; winner finalization
	// and earlier outcomes are never overwritten.
	if sub.Status != models.SubmissionStatusPending && sub.Status != models.SubmissionStatusValidating {
		return nil
	}

	status, score := s.Aggregator.Aggregate(jobs)
	columns := []string{"status"}
	if score != nil {
		columns = append(columns, "score")
	}
	return tx.Model(&sub).Select(columns).
		Updates(models.Submission{Status: status, Score: score}).Error
}

// getJob returns a job with its submission/bounty/screener context,
// gated by the scoring-data visibility policy.
func (s *ScoringService) getJob(jobID string, requester Requester) (*models.ScoringJob, *models.Submission, *models.Bounty, error) {
	var job models.ScoringJob
	err := s.DB.Preload("Tasks").Preload("Screener").First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil, NotFoundError("scoring job not found")
	}
	if err != nil {
		return nil, nil, nil, err
	}

	var sub models.Submission
	if err := s.DB.First(&sub, "id = ?", job.SubmissionID).Error; err != nil {
		return nil, nil, nil, err
	}
	var bounty models.Bounty
	if err := s.DB.First(&bounty, "id = ?", sub.BountyID).Error; err != nil {
		return nil, nil, nil, err
	}

	if !CanViewScoringJob(&sub, &bounty, requester) {
		return nil, nil, nil, ForbiddenError("not allowed to view this scoring job")
	}
	return &job, &sub, &bounty, nil
}

// listJobs restricts non-admins to jobs on their own submissions. An
// explicit filter for someone else's submission is a denial, not an
// empty result.
func (s *ScoringService) listJobs(filter JobFilter, requester Requester) ([]models.ScoringJob, error) {
	query := s.DB.Preload("Screener").Order("created_at DESC")

	if filter.SubmissionID != "" {
		if !requester.IsAdmin {
			var sub models.Submission
			if err := s.DB.First(&sub, "id = ?", filter.SubmissionID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, NotFoundError("submission not found")
				}
				return nil, err
			}
			if sub.SubmitterID != requester.ID {
				return nil, ForbiddenError("not allowed to list jobs for this submission")
			}
		}
		query = query.Where("submission_id = ?", filter.SubmissionID)
	} else if !requester.IsAdmin {
		query = query.Where(
			"submission_id IN (?)",
			s.DB.Model(&models.Submission{}).Select("id").Where("submitter_id = ?", requester.ID),
		)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var jobs []models.ScoringJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// --- fiber handlers ---

func (s *ScoringService) RescoreSubmission(c *fiber.Ctx) error {
	if err := s.rescoreSubmission(c.Params("id"), RequesterFromCtx(c)); err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{"rescored": true})
}

func (s *ScoringService) RegisterJob(c *fiber.Ctx) error {
	var req RegisterJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	job, err := s.registerJob(req)
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(job)
}

func (s *ScoringService) RecordJobOutcome(c *fiber.Ctx) error {
	var req JobOutcomeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	job, err := s.recordJobOutcome(c.Params("id"), req)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(job)
}

func (s *ScoringService) GetScoringJob(c *fiber.Ctx) error {
	job, sub, bounty, err := s.getJob(c.Params("id"), RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{
		"job":        job,
		"submission": fiber.Map{"id": sub.ID, "status": sub.Status, "submitter_id": sub.SubmitterID},
		"bounty":     fiber.Map{"id": bounty.ID, "title": bounty.Title, "creator_id": bounty.CreatorID},
		"screener":   job.Screener,
	})
}

func (s *ScoringService) ListScoringJobs(c *fiber.Ctx) error {
	filter := JobFilter{
		SubmissionID: c.Query("submission_id"),
		Status:       models.ScoringJobStatus(c.Query("status")),
	}
	jobs, err := s.listJobs(filter, RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(jobs)
}

// GetScoringJobLogs proxies a time-range log query for one job,
// behind the same visibility check as the job itself.
func (s *ScoringService) GetScoringJobLogs(c *fiber.Ctx) error {
	job, _, _, err := s.getJob(c.Params("id"), RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}

	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid from timestamp"})
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid to timestamp"})
		}
		to = parsed
	}

	entries, err := s.Logs.QueryJobLogs(job.ID, from, to)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch job logs"})
	}
	return c.JSON(fiber.Map{"job_id": job.ID, "entries": entries})
}

func (s *ScoringService) ListScreeners(c *fiber.Ctx) error {
	if !RequesterFromCtx(c).IsAdmin {
		return RespondError(c, ForbiddenError("only admins may view screeners"))
	}
	var screeners []models.Screener
	if err := s.DB.Order("priority DESC").Find(&screeners).Error; err != nil {
		return RespondError(c, err)
	}
	return c.JSON(screeners)
}
