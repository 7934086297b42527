// services/votes.go
package services

import (
	"errors"

	"bounty-marketplace/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoteResult reports what a cast did: "created", "removed" (same type
// re-cast), or "switched" (opposite type).
type VoteResult struct {
	Action string          `json:"action"`
	Type   models.VoteType `json:"type,omitempty"`
}

// castVote is check-then-act; the (user, submission) unique index is
// the backstop for concurrent first casts, surfacing the loser as a
// conflict instead of a second row.
func (s *SubmissionService) castVote(submissionID string, voteType models.VoteType, requester Requester) (*VoteResult, error) {
	if voteType != models.VoteTypeUp && voteType != models.VoteTypeDown {
		return nil, ValidationError("vote type must be upvote or downvote")
	}

	var sub models.Submission
	if err := s.DB.First(&sub, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("submission not found")
		}
		return nil, err
	}

	var existing models.Vote
	err := s.DB.Where("user_id = ? AND submission_id = ?", requester.ID, submissionID).
		First(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		vote := models.Vote{
			ID:           uuid.NewString(),
			UserID:       requester.ID,
			SubmissionID: submissionID,
			Type:         voteType,
		}
		if err := s.DB.Create(&vote).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ConflictError("vote already recorded")
			}
			return nil, err
		}
		return &VoteResult{Action: "created", Type: voteType}, nil

	case err != nil:
		return nil, err

	case existing.Type == voteType:
		// Re-casting the same type removes the vote.
		if err := s.DB.Delete(&existing).Error; err != nil {
			return nil, err
		}
		return &VoteResult{Action: "removed"}, nil

	default:
		if err := s.DB.Model(&existing).Update("type", voteType).Error; err != nil {
			return nil, err
		}
		return &VoteResult{Action: "switched", Type: voteType}, nil
	}
}

func (s *SubmissionService) CastVote(c *fiber.Ctx) error {
	var req struct {
		Type models.VoteType `json:"type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	result, err := s.castVote(c.Params("id"), req.Type, RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(result)
}
