// services/bounty_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"bounty-marketplace/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BountyService struct {
	DB *gorm.DB
}

func NewBountyService(db *gorm.DB) *BountyService {
	return &BountyService{DB: db}
}

type WinningSpotInput struct {
	Position  int             `json:"position"`
	Reward    decimal.Decimal `json:"reward"`
	RewardCap decimal.Decimal `json:"reward_cap"`
	PayoutKey string          `json:"payout_key"`
}

type CreateBountyRequest struct {
	Title            string             `json:"title"`
	ShortDescription string             `json:"short_description"`
	LongDescription  string             `json:"long_description"`
	AcceptedTypes    []string           `json:"accepted_types"`
	Deadline         *time.Time         `json:"deadline,omitempty"`
	WinningSpots     []WinningSpotInput `json:"winning_spots"`
}

// UpdateBountyRequest is an allow-listed partial update. Only the
// fields enumerated here can ever reach the store.
type UpdateBountyRequest struct {
	Title            *string             `json:"title,omitempty"`
	ShortDescription *string             `json:"short_description,omitempty"`
	LongDescription  *string             `json:"long_description,omitempty"`
	AcceptedTypes    *[]string           `json:"accepted_types,omitempty"`
	Deadline         *time.Time          `json:"deadline,omitempty"`
	WinningSpots     *[]WinningSpotInput `json:"winning_spots,omitempty"`
}

// BountyListItem is the list-view shape. CurrentReward is the
// position-1 reward only; detail views report the full sum instead.
type BountyListItem struct {
	ID            string              `json:"id"`
	Slug          string              `json:"slug"`
	Title         string              `json:"title"`
	Status        models.BountyStatus `json:"status"`
	CurrentReward decimal.Decimal     `json:"current_reward"`
	RewardDisplay string              `json:"reward_display"`
	Deadline      *time.Time          `json:"deadline,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func validateWinningSpots(spots []WinningSpotInput) error {
	seen := make(map[int]bool, len(spots))
	for _, s := range spots {
		if s.Position < 1 {
			return ValidationError("winning spot positions must be >= 1")
		}
		if seen[s.Position] {
			return ValidationError(fmt.Sprintf("duplicate winning spot position %d", s.Position))
		}
		seen[s.Position] = true
		if s.Reward.IsNegative() || s.RewardCap.IsNegative() {
			return ValidationError("rewards must not be negative")
		}
	}
	return nil
}

func (s *BountyService) createBounty(req CreateBountyRequest, requester Requester) (*models.Bounty, error) {
	if !requester.IsAdmin {
		return nil, ForbiddenError("only admins may create bounties")
	}
	if req.Title == "" {
		return nil, ValidationError("title is required")
	}
	if err := validateWinningSpots(req.WinningSpots); err != nil {
		return nil, err
	}

	bounty := &models.Bounty{
		ID:               uuid.NewString(),
		CreatorID:        requester.ID,
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		AcceptedTypes:    req.AcceptedTypes,
		Deadline:         req.Deadline,
		Status:           models.BountyStatusDraft,
	}
	bounty.Slug = slug.Make(req.Title) + "-" + bounty.ID[:8]

	for _, spot := range req.WinningSpots {
		bounty.WinningSpots = append(bounty.WinningSpots, models.WinningSpotConfig{
			ID:        uuid.NewString(),
			BountyID:  bounty.ID,
			Position:  spot.Position,
			Reward:    spot.Reward,
			RewardCap: spot.RewardCap,
			PayoutKey: spot.PayoutKey,
		})
	}

	if err := s.DB.Create(bounty).Error; err != nil {
		return nil, err
	}
	return bounty, nil
}

func (s *BountyService) getBounty(id string) (*models.Bounty, error) {
	var bounty models.Bounty
	err := s.DB.Preload("WinningSpots").First(&bounty, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("bounty not found")
	}
	if err != nil {
		return nil, err
	}
	return &bounty, nil
}

// updateBounty applies an allow-listed patch. Replacing winning spots
// swaps the whole set in one transaction so readers never see a
// half-replaced reward ladder.
func (s *BountyService) updateBounty(id string, req UpdateBountyRequest, requester Requester) (*models.Bounty, error) {
	bounty, err := s.getBounty(id)
	if err != nil {
		return nil, err
	}
	if !requester.IsAdmin && requester.ID != bounty.CreatorID {
		return nil, ForbiddenError("not allowed to update this bounty")
	}
	if req.WinningSpots != nil {
		if err := validateWinningSpots(*req.WinningSpots); err != nil {
			return nil, err
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{}
		if req.Title != nil {
			updates["title"] = *req.Title
		}
		if req.ShortDescription != nil {
			updates["short_description"] = *req.ShortDescription
		}
		if req.LongDescription != nil {
			updates["long_description"] = *req.LongDescription
		}
		if req.Deadline != nil {
			updates["deadline"] = *req.Deadline
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Bounty{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.AcceptedTypes != nil {
			if err := tx.Model(&models.Bounty{}).Where("id = ?", id).
				Select("accepted_types").
				Updates(models.Bounty{AcceptedTypes: *req.AcceptedTypes}).Error; err != nil {
				return err
			}
		}

		if req.WinningSpots != nil {
			if err := tx.Where("bounty_id = ?", id).Delete(&models.WinningSpotConfig{}).Error; err != nil {
				return err
			}
			for _, spot := range *req.WinningSpots {
				cfg := models.WinningSpotConfig{
					ID:        uuid.NewString(),
					BountyID:  id,
					Position:  spot.Position,
					Reward:    spot.Reward,
					RewardCap: spot.RewardCap,
					PayoutKey: spot.PayoutKey,
				}
				if err := tx.Create(&cfg).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[BOUNTY] ❌ Update transaction failed for %s: %v", id, err)
		return nil, err
	}

	return s.getBounty(id)
}

func (s *BountyService) updateBountyStatus(id string, to models.BountyStatus, requester Requester) (*models.Bounty, error) {
	if !requester.IsAdmin {
		return nil, ForbiddenError("only admins may change bounty status")
	}
	bounty, err := s.getBounty(id)
	if err != nil {
		return nil, err
	}
	if !models.ValidBountyTransition(bounty.Status, to) {
		return nil, ValidationError(fmt.Sprintf("cannot move bounty from %s to %s", bounty.Status, to))
	}
	if err := s.DB.Model(bounty).Update("status", to).Error; err != nil {
		return nil, err
	}
	bounty.Status = to
	return bounty, nil
}

func (s *BountyService) listBounties(requester Requester) ([]BountyListItem, error) {
	query := s.DB.Preload("WinningSpots").Order("created_at DESC")
	if !requester.IsAdmin {
		query = query.Where("status <> ?", models.BountyStatusDraft)
	}

	var bounties []models.Bounty
	if err := query.Find(&bounties).Error; err != nil {
		return nil, err
	}

	items := make([]BountyListItem, 0, len(bounties))
	for _, b := range bounties {
		// List views headline only the first-place reward.
		current := FirstPlaceReward(b.WinningSpots)
		items = append(items, BountyListItem{
			ID:            b.ID,
			Slug:          b.Slug,
			Title:         b.Title,
			Status:        b.Status,
			CurrentReward: current,
			RewardDisplay: FormatRewardShort(current),
			Deadline:      b.Deadline,
			CreatedAt:     b.CreatedAt,
		})
	}
	return items, nil
}

// bountyDetail serializes a bounty with the summed reward fields the
// detail endpoints report.
func (s *BountyService) bountyDetail(bounty *models.Bounty) fiber.Map {
	return fiber.Map{
		"id":                bounty.ID,
		"slug":              bounty.Slug,
		"creator_id":        bounty.CreatorID,
		"title":             bounty.Title,
		"short_description": bounty.ShortDescription,
		"long_description":  bounty.LongDescription,
		"status":            bounty.Status,
		"accepted_types":    bounty.AcceptedTypes,
		"winning_spots":     bounty.WinningSpots,
		"deadline":          bounty.Deadline,
		"total_reward":      TotalReward(bounty.WinningSpots),
		"total_reward_cap":  TotalRewardCap(bounty.WinningSpots),
		"created_at":        bounty.CreatedAt,
		"updated_at":        bounty.UpdatedAt,
	}
}

// --- fiber handlers ---

func (s *BountyService) CreateBounty(c *fiber.Ctx) error {
	var req CreateBountyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	bounty, err := s.createBounty(req, RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.bountyDetail(bounty))
}

func (s *BountyService) GetAllBounties(c *fiber.Ctx) error {
	items, err := s.listBounties(RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(items)
}

func (s *BountyService) GetBountyByID(c *fiber.Ctx) error {
	bounty, err := s.getBounty(c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(s.bountyDetail(bounty))
}

func (s *BountyService) UpdateBounty(c *fiber.Ctx) error {
	var req UpdateBountyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	bounty, err := s.updateBounty(c.Params("id"), req, RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(s.bountyDetail(bounty))
}

func (s *BountyService) UpdateBountyStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.BountyStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	bounty, err := s.updateBountyStatus(c.Params("id"), req.Status, RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(s.bountyDetail(bounty))
}

func (s *BountyService) DeleteBounty(c *fiber.Ctx) error {
	requester := RequesterFromCtx(c)
	if !requester.IsAdmin {
		return RespondError(c, ForbiddenError("only admins may delete bounties"))
	}
	result := s.DB.Delete(&models.Bounty{}, "id = ?", c.Params("id"))
	if result.Error != nil {
		return RespondError(c, result.Error)
	}
	if result.RowsAffected == 0 {
		return RespondError(c, NotFoundError("bounty not found"))
	}
	return c.JSON(fiber.Map{"deleted": true})
}
