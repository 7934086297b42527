// models/bounty.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BountyStatus is the publishing/lifecycle state of a bounty
type BountyStatus string

const (
	BountyStatusDraft     BountyStatus = "draft"
	BountyStatusActive    BountyStatus = "active"
	BountyStatusPaused    BountyStatus = "paused"
	BountyStatusCompleted BountyStatus = "completed"
	BountyStatusCancelled BountyStatus = "cancelled"
)

type Bounty struct {
	ID               string `json:"id" gorm:"primaryKey"`
	Slug             string `json:"slug" gorm:"uniqueIndex"`
	CreatorID        string `json:"creator_id" gorm:"index;not null"`
	Title            string `json:"title" gorm:"not null"`
	ShortDescription string `json:"short_description"`
	LongDescription  string `json:"long_description" gorm:"type:text"`

	Status BountyStatus `json:"status" gorm:"default:'draft'"`

	// Submission content types this bounty accepts (e.g. ["url","file"])
	AcceptedTypes []string `json:"accepted_types" gorm:"serializer:json"`

	// Reward tiers, one per winning position
	WinningSpots []WinningSpotConfig `json:"winning_spots" gorm:"foreignKey:BountyID"`

	Deadline *time.Time `json:"deadline,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Submissions []Submission `json:"submissions,omitempty" gorm:"foreignKey:BountyID"`
}

// WinningSpotConfig defines one reward tier of a bounty.
// Positions are unique per bounty and start at 1.
type WinningSpotConfig struct {
	ID        string          `json:"id" gorm:"primaryKey"`
	BountyID  string          `json:"bounty_id" gorm:"uniqueIndex:idx_bounty_position;not null"`
	Position  int             `json:"position" gorm:"uniqueIndex:idx_bounty_position;check:position >= 1"`
	Reward    decimal.Decimal `json:"reward" gorm:"type:decimal(30,10)"`
	RewardCap decimal.Decimal `json:"reward_cap" gorm:"type:decimal(30,10)"`
	PayoutKey string          `json:"payout_key"`
}

// ValidBountyTransition reports whether a bounty may move between the
// two statuses. Completed and cancelled are final.
func ValidBountyTransition(from, to BountyStatus) bool {
	switch from {
	case BountyStatusDraft:
		return to == BountyStatusActive || to == BountyStatusCancelled
	case BountyStatusActive:
		return to == BountyStatusPaused || to == BountyStatusCompleted || to == BountyStatusCancelled
	case BountyStatusPaused:
		return to == BountyStatusActive || to == BountyStatusCompleted || to == BountyStatusCancelled
	default:
		return false
	}
}
