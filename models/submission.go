// models/submission.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SubmissionStatus string

const (
	SubmissionStatusPending    SubmissionStatus = "pending"
	SubmissionStatusValidating SubmissionStatus = "validating"
	SubmissionStatusApproved   SubmissionStatus = "approved"
	SubmissionStatusRejected   SubmissionStatus = "rejected"
	SubmissionStatusWinner     SubmissionStatus = "winner"
)

type SubmissionContentType string

const (
	ContentTypeURL   SubmissionContentType = "url"
	ContentTypeFile  SubmissionContentType = "file"
	ContentTypeText  SubmissionContentType = "text"
	ContentTypeMixed SubmissionContentType = "mixed"
)

// HiddenContentPlaceholder replaces submission content for requesters
// who may not view it. The record itself is never omitted.
const HiddenContentPlaceholder = "Hidden for privacy"

type Submission struct {
	ID          string `json:"id" gorm:"primaryKey"`
	BountyID    string `json:"bounty_id" gorm:"index;not null"`
	SubmitterID string `json:"submitter_id" gorm:"index;not null"`

	Status      SubmissionStatus      `json:"status" gorm:"default:'pending'"`
	ContentType SubmissionContentType `json:"content_type" gorm:"not null"`

	Title       string   `json:"title"`
	Description string   `json:"description" gorm:"type:text"`
	Content     string   `json:"content" gorm:"type:text"`
	URLs        []string `json:"urls" gorm:"serializer:json"`

	// Set once scoring jobs complete; nil until then
	Score    *decimal.Decimal `json:"score" gorm:"type:decimal(30,10)"`
	ScoredBy []string         `json:"scored_by" gorm:"serializer:json"`

	Files []SubmissionFile `json:"files" gorm:"foreignKey:SubmissionID"`
	Votes []Vote           `json:"votes,omitempty" gorm:"foreignKey:SubmissionID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// SubmissionFile is metadata for an object held in blob storage.
type SubmissionFile struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	SubmissionID string    `json:"submission_id" gorm:"index;not null"`
	OriginalName string    `json:"original_name"`
	StorageKey   string    `json:"storage_key" gorm:"not null"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
}

type VoteType string

const (
	VoteTypeUp   VoteType = "upvote"
	VoteTypeDown VoteType = "downvote"
)

// Vote: at most one per (user, submission); re-casting the same type
// removes it, casting the other type switches it in place.
type Vote struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"uniqueIndex:idx_user_submission;not null"`
	SubmissionID string    `json:"submission_id" gorm:"uniqueIndex:idx_user_submission;not null"`
	Type         VoteType  `json:"type" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RequiresURLs reports whether the content type demands at least one URL.
func (t SubmissionContentType) RequiresURLs() bool {
	return t == ContentTypeURL || t == ContentTypeMixed
}

// RequiresText reports whether the content type demands free-text content.
func (t SubmissionContentType) RequiresText() bool {
	return t == ContentTypeText || t == ContentTypeMixed
}
