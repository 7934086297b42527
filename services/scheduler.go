// services/scheduler.go
package services

import (
	"log"
	"time"

	"bounty-marketplace/models"

	"github.com/go-co-op/gocron/v2"
)

// StartDeadlineScheduler pauses active bounties once their deadline
// passes so they stop accepting submissions. Winner finalization stays
// external; paused bounties can still be completed.
func (s *BountyService) StartDeadlineScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var bounties []models.Bounty
			now := time.Now()
			err := s.DB.Where("status = ? AND deadline IS NOT NULL AND deadline <= ?",
				models.BountyStatusActive, now).
				Find(&bounties).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, b := range bounties {
				b.Status = models.BountyStatusPaused
				if err := s.DB.Save(&b).Error; err != nil {
					log.Printf("[Scheduler] Failed to pause bounty %s: %v", b.ID, err)
				} else {
					log.Printf("✅ Auto-paused bounty past deadline: %s", b.Title)
				}
			}
		}),
	)
}
