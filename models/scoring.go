// models/scoring.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ScoringJobStatus string

const (
	ScoringJobStatusPending   ScoringJobStatus = "pending"
	ScoringJobStatusAssigned  ScoringJobStatus = "assigned"
	ScoringJobStatusScoring   ScoringJobStatus = "scoring"
	ScoringJobStatusCompleted ScoringJobStatus = "completed"
	ScoringJobStatusFailed    ScoringJobStatus = "failed"
	ScoringJobStatusCancelled ScoringJobStatus = "cancelled"
)

// ScoringJob is one assignment of a submission to a screener.
// Owned exclusively by its submission; deleted wholesale on rescore.
type ScoringJob struct {
	ID           string `json:"id" gorm:"primaryKey"`
	SubmissionID string `json:"submission_id" gorm:"index;not null"`
	ScreenerID   string `json:"screener_id" gorm:"index;not null"`

	Status ScoringJobStatus `json:"status" gorm:"default:'pending'"`
	Score  *decimal.Decimal `json:"score" gorm:"type:decimal(30,10)"`

	RetryCount int `json:"retry_count" gorm:"default:0"`
	MaxRetries int `json:"max_retries" gorm:"default:3"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Tasks    []ScoringTask `json:"tasks,omitempty" gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
	Screener *Screener     `json:"screener,omitempty" gorm:"foreignKey:ScreenerID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoringTask is one evaluation dimension under a scoring job.
type ScoringTask struct {
	ID        string           `json:"id" gorm:"primaryKey"`
	JobID     string           `json:"job_id" gorm:"index;not null"`
	Dimension string           `json:"dimension" gorm:"not null"`
	Status    ScoringJobStatus `json:"status" gorm:"default:'pending'"`
	Score     *decimal.Decimal `json:"score" gorm:"type:decimal(30,10)"`
	Detail    string           `json:"detail" gorm:"type:text"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Screener is an external scoring service descriptor. The service only
// reads and writes its job-assignment records; dispatch is external.
type Screener struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	IdentityKey string    `json:"identity_key" gorm:"uniqueIndex;not null"`
	Endpoint    string    `json:"endpoint"`
	Active      bool      `json:"active" gorm:"default:true"`
	Priority    int       `json:"priority" gorm:"default:0"` // higher = preferred
	Capacity    int       `json:"capacity" gorm:"default:1"`
	CurrentLoad int       `json:"current_load" gorm:"default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsTerminal reports whether the job status is final. Terminal states
// are only left via a full rescore, which deletes the job outright.
func (s ScoringJobStatus) IsTerminal() bool {
	return s == ScoringJobStatusCompleted || s == ScoringJobStatusFailed || s == ScoringJobStatusCancelled
}

// ValidJobTransition enforces the job state machine:
// pending → assigned → scoring → {completed | failed};
// failed → pending while retries remain (checked by the caller);
// cancelled from any non-terminal state.
func ValidJobTransition(from, to ScoringJobStatus) bool {
	if to == ScoringJobStatusCancelled {
		return !from.IsTerminal()
	}
	switch from {
	case ScoringJobStatusPending:
		return to == ScoringJobStatusAssigned
	case ScoringJobStatusAssigned:
		return to == ScoringJobStatusScoring
	case ScoringJobStatusScoring:
		return to == ScoringJobStatusCompleted || to == ScoringJobStatusFailed
	case ScoringJobStatusFailed:
		return to == ScoringJobStatusPending
	default:
		return false
	}
}
