package services

import (
	"fmt"
	"testing"

	"bounty-marketplace/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory SQLite database, migrates the full
// schema, and closes the connection when the test finishes.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Bounty{},
		&models.WinningSpotConfig{},
		&models.Submission{},
		&models.SubmissionFile{},
		&models.Vote{},
		&models.ScoringJob{},
		&models.ScoringTask{},
		&models.Screener{},
		&models.SuggestedBounty{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func seedBounty(t *testing.T, db *gorm.DB, creatorID string, status models.BountyStatus) *models.Bounty {
	t.Helper()
	bounty := &models.Bounty{
		ID:            uuid.NewString(),
		CreatorID:     creatorID,
		Title:         "Find the bug",
		Status:        status,
		AcceptedTypes: []string{"url", "text", "mixed"},
		WinningSpots: []models.WinningSpotConfig{
			{ID: uuid.NewString(), Position: 1, Reward: decimal.NewFromInt(100), RewardCap: decimal.NewFromInt(500)},
			{ID: uuid.NewString(), Position: 2, Reward: decimal.NewFromInt(50), RewardCap: decimal.NewFromInt(200)},
		},
	}
	bounty.Slug = "find-the-bug-" + bounty.ID[:8]
	for i := range bounty.WinningSpots {
		bounty.WinningSpots[i].BountyID = bounty.ID
	}
	if err := db.Create(bounty).Error; err != nil {
		t.Fatalf("failed to seed bounty: %v", err)
	}
	return bounty
}

func seedSubmission(t *testing.T, db *gorm.DB, bountyID, submitterID string) *models.Submission {
	t.Helper()
	sub := &models.Submission{
		ID:          uuid.NewString(),
		BountyID:    bountyID,
		SubmitterID: submitterID,
		Status:      models.SubmissionStatusPending,
		ContentType: models.ContentTypeURL,
		Title:       "my entry",
		Description: "how I did it",
		Content:     "details",
		URLs:        []string{"https://example.com/work"},
		ScoredBy:    []string{},
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("failed to seed submission: %v", err)
	}
	return sub
}

func seedScreener(t *testing.T, db *gorm.DB, priority int) *models.Screener {
	t.Helper()
	screener := &models.Screener{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("screener-p%d", priority),
		IdentityKey: uuid.NewString(),
		Endpoint:    "https://screener.example.com",
		Active:      true,
		Priority:    priority,
		Capacity:    4,
	}
	if err := db.Create(screener).Error; err != nil {
		t.Fatalf("failed to seed screener: %v", err)
	}
	return screener
}

func seedJob(t *testing.T, db *gorm.DB, submissionID, screenerID string, status models.ScoringJobStatus, score *decimal.Decimal) *models.ScoringJob {
	t.Helper()
	job := &models.ScoringJob{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		ScreenerID:   screenerID,
		Status:       status,
		Score:        score,
		MaxRetries:   3,
		Tasks: []models.ScoringTask{
			{ID: uuid.NewString(), Dimension: "quality", Status: status},
			{ID: uuid.NewString(), Dimension: "originality", Status: status},
		},
	}
	for i := range job.Tasks {
		job.Tasks[i].JobID = job.ID
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("failed to seed scoring job: %v", err)
	}
	return job
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
