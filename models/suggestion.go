// models/suggestion.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SuggestionStatus string

const (
	SuggestionStatusPending  SuggestionStatus = "pending"
	SuggestionStatusApproved SuggestionStatus = "approved"
	SuggestionStatusRejected SuggestionStatus = "rejected"
)

// SuggestedBounty is a user-proposed bounty awaiting admin review.
// On approval it is materialized into a real draft Bounty and linked
// back through CreatedBountyID.
type SuggestedBounty struct {
	ID          string           `json:"id" gorm:"primaryKey"`
	SuggesterID string           `json:"suggester_id" gorm:"index;not null"`
	Title       string           `json:"title" gorm:"not null"`
	Description string           `json:"description" gorm:"type:text"`
	Reward      decimal.Decimal  `json:"reward" gorm:"type:decimal(30,10)"`
	Status      SuggestionStatus `json:"status" gorm:"default:'pending'"`

	ReviewerID      string  `json:"reviewer_id,omitempty"`
	ReviewerNote    string  `json:"reviewer_note,omitempty"`
	CreatedBountyID *string `json:"created_bounty_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
