// services/suggestion_service.go
package services

import (
	"errors"
	"log"

	"bounty-marketplace/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SuggestionService struct {
	DB *gorm.DB
}

func NewSuggestionService(db *gorm.DB) *SuggestionService {
	return &SuggestionService{DB: db}
}

type CreateSuggestionRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Reward      decimal.Decimal `json:"reward"`
}

func (s *SuggestionService) createSuggestion(req CreateSuggestionRequest, requester Requester) (*models.SuggestedBounty, error) {
	if req.Title == "" {
		return nil, ValidationError("title is required")
	}
	if req.Reward.IsNegative() {
		return nil, ValidationError("reward must not be negative")
	}

	suggestion := &models.SuggestedBounty{
		ID:          uuid.NewString(),
		SuggesterID: requester.ID,
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		Status:      models.SuggestionStatusPending,
	}
	if err := s.DB.Create(suggestion).Error; err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (s *SuggestionService) getSuggestion(id string) (*models.SuggestedBounty, error) {
	var suggestion models.SuggestedBounty
	err := s.DB.First(&suggestion, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("suggestion not found")
	}
	if err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// approveSuggestion materializes the suggestion into a draft bounty
// with a single first-place spot, links it back, and flips the status
// — all in one transaction so an approved suggestion without a bounty
// can never be observed.
func (s *SuggestionService) approveSuggestion(id string, requester Requester) (*models.SuggestedBounty, *models.Bounty, error) {
	if !requester.IsAdmin {
		return nil, nil, ForbiddenError("only admins may review suggestions")
	}
	suggestion, err := s.getSuggestion(id)
	if err != nil {
		return nil, nil, err
	}
	if suggestion.Status != models.SuggestionStatusPending {
		return nil, nil, ValidationError("suggestion has already been reviewed")
	}

	bounty := &models.Bounty{
		ID:              uuid.NewString(),
		CreatorID:       requester.ID,
		Title:           suggestion.Title,
		LongDescription: suggestion.Description,
		Status:          models.BountyStatusDraft,
	}
	bounty.Slug = slug.Make(suggestion.Title) + "-" + bounty.ID[:8]
	bounty.WinningSpots = []models.WinningSpotConfig{{
		ID:        uuid.NewString(),
		BountyID:  bounty.ID,
		Position:  1,
		Reward:    suggestion.Reward,
		RewardCap: suggestion.Reward,
	}}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bounty).Error; err != nil {
			return err
		}
		return tx.Model(suggestion).Updates(map[string]any{
			"status":            models.SuggestionStatusApproved,
			"reviewer_id":       requester.ID,
			"created_bounty_id": bounty.ID,
		}).Error
	})
	if err != nil {
		log.Printf("[SUGGESTION] ❌ Approval transaction failed for %s: %v", id, err)
		return nil, nil, err
	}

	suggestion.Status = models.SuggestionStatusApproved
	suggestion.ReviewerID = requester.ID
	suggestion.CreatedBountyID = &bounty.ID
	return suggestion, bounty, nil
}

func (s *SuggestionService) rejectSuggestion(id, note string, requester Requester) (*models.SuggestedBounty, error) {
	if !requester.IsAdmin {
		return nil, ForbiddenError("only admins may review suggestions")
	}
	suggestion, err := s.getSuggestion(id)
	if err != nil {
		return nil, err
	}
	if suggestion.Status != models.SuggestionStatusPending {
		return nil, ValidationError("suggestion has already been reviewed")
	}

	if err := s.DB.Model(suggestion).Updates(map[string]any{
		"status":        models.SuggestionStatusRejected,
		"reviewer_id":   requester.ID,
		"reviewer_note": note,
	}).Error; err != nil {
		return nil, err
	}
	suggestion.Status = models.SuggestionStatusRejected
	suggestion.ReviewerID = requester.ID
	suggestion.ReviewerNote = note
	return suggestion, nil
}

// --- fiber handlers ---

func (s *SuggestionService) CreateSuggestion(c *fiber.Ctx) error {
	var req CreateSuggestionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	suggestion, err := s.createSuggestion(req, RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(suggestion)
}

// GetSuggestions: admins see everything, users see their own.
func (s *SuggestionService) GetSuggestions(c *fiber.Ctx) error {
	requester := RequesterFromCtx(c)
	query := s.DB.Order("created_at DESC")
	if !requester.IsAdmin {
		query = query.Where("suggester_id = ?", requester.ID)
	}
	var suggestions []models.SuggestedBounty
	if err := query.Find(&suggestions).Error; err != nil {
		return RespondError(c, err)
	}
	return c.JSON(suggestions)
}

func (s *SuggestionService) ApproveSuggestion(c *fiber.Ctx) error {
	suggestion, bounty, err := s.approveSuggestion(c.Params("id"), RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{"suggestion": suggestion, "bounty": bounty})
}

func (s *SuggestionService) RejectSuggestion(c *fiber.Ctx) error {
	var req struct {
		Note string `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	suggestion, err := s.rejectSuggestion(c.Params("id"), req.Note, RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(suggestion)
}
