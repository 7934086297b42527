// services/access.go
package services

import (
	"time"

	"bounty-marketplace/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Requester is the identity extracted from gateway headers by the user
// context middleware. The service trusts it as given.
type Requester struct {
	ID      string
	IsAdmin bool
}

// RequesterFromCtx reads the identity placed in locals by
// middleware.UserContextMiddleware.
func RequesterFromCtx(c *fiber.Ctx) Requester {
	req := Requester{}
	if id, ok := c.Locals("user_id").(string); ok {
		req.ID = id
	}
	if roles, ok := c.Locals("user_roles").([]string); ok {
		for _, r := range roles {
			if r == "admin" {
				req.IsAdmin = true
				break
			}
		}
	}
	return req
}

// CanViewSubmissionContent: submitter, bounty creator, admin, or anyone
// once the bounty is completed.
func CanViewSubmissionContent(sub *models.Submission, bounty *models.Bounty, req Requester) bool {
	return req.ID == sub.SubmitterID ||
		req.ID == bounty.CreatorID ||
		req.IsAdmin ||
		bounty.Status == models.BountyStatusCompleted
}

// CanViewScoringJob: admin, the job's submitter, or the bounty creator.
// Completion does not open scoring data to the public.
func CanViewScoringJob(sub *models.Submission, bounty *models.Bounty, req Requester) bool {
	return req.IsAdmin || req.ID == sub.SubmitterID || req.ID == bounty.CreatorID
}

// CanAccessFile follows submission-content visibility, evaluated
// against the file's owning submission and bounty.
func CanAccessFile(sub *models.Submission, bounty *models.Bounty, req Requester) bool {
	return CanViewSubmissionContent(sub, bounty, req)
}

// SubmissionView is the serialized form of a submission. Redaction
// happens here, never by omitting the record: hidden submissions keep
// their score and vote count but lose description, content, and URLs.
type SubmissionView struct {
	ID           string                       `json:"id"`
	BountyID     string                       `json:"bounty_id"`
	SubmitterID  string                       `json:"submitter_id"`
	Status       models.SubmissionStatus      `json:"status"`
	ContentType  models.SubmissionContentType `json:"content_type"`
	Title        string                       `json:"title"`
	Description  string                       `json:"description"`
	Content      string                       `json:"content"`
	URLs         []string                     `json:"urls"`
	Score        *decimal.Decimal             `json:"score"`
	VoteCount    int                          `json:"vote_count"`
	IsAnonymized bool                         `json:"is_anonymized"`
	Files        []models.SubmissionFile      `json:"files,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
}

// SerializeSubmission applies the visibility policy uniformly at the
// serialization boundary.
func SerializeSubmission(sub *models.Submission, bounty *models.Bounty, req Requester) SubmissionView {
	view := SubmissionView{
		ID:          sub.ID,
		BountyID:    sub.BountyID,
		SubmitterID: sub.SubmitterID,
		Status:      sub.Status,
		ContentType: sub.ContentType,
		Title:       sub.Title,
		Description: sub.Description,
		Content:     sub.Content,
		URLs:        sub.URLs,
		Score:       sub.Score,
		VoteCount:   len(sub.Votes),
		Files:       sub.Files,
		CreatedAt:   sub.CreatedAt,
		UpdatedAt:   sub.UpdatedAt,
	}

	if !CanViewSubmissionContent(sub, bounty, req) {
		view.Description = models.HiddenContentPlaceholder
		view.Content = models.HiddenContentPlaceholder
		view.URLs = []string{}
		view.Files = nil
		view.IsAnonymized = true
	}

	return view
}
