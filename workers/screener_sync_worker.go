// workers/screener_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"bounty-marketplace/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteScreener matches the JSON shape of the screener registry service.
type RemoteScreener struct {
	Name        string `json:"name"`
	IdentityKey string `json:"identity_key"`
	Endpoint    string `json:"endpoint"`
	Active      bool   `json:"active"`
	Priority    int    `json:"priority"`
	Capacity    int    `json:"capacity"`
	CurrentLoad int    `json:"current_load"`
}

type GetScreenersResponse struct {
	Screeners []RemoteScreener `json:"screeners"`
}

// ScreenerSyncWorker mirrors the external screener registry into the
// local screeners table. It only observes the registry — dispatching
// work to screeners happens in the external dispatcher, never here.
type ScreenerSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewScreenerSyncWorker(db *gorm.DB, registryBaseURL, endpointPath, serviceToken string) *ScreenerSyncWorker {
	return &ScreenerSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      registryBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ScreenerSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Screener Sync Worker (registry → screeners)…")
	go w.run(ctx)
}

func (w *ScreenerSyncWorker) run(ctx context.Context) {
	if err := w.syncBatch(ctx); err != nil {
		log.Printf("⚠️ Initial screener sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx); err != nil {
				log.Printf("❌ Screener sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Screener Sync Worker stopped")
			return
		}
	}
}

// syncBatch fetches the registry and upserts every screener by its
// identity key.
func (w *ScreenerSyncWorker) syncBatch(ctx context.Context) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid screener registry URL '%s': %w", w.baseURL, err)
	}
	finalURL := base.JoinPath(w.endpointPath).String()

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to screener registry failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("screener registry non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetScreenersResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode screener registry response: %w", err)
	}

	if len(response.Screeners) == 0 {
		log.Println("[SYNC] ✅ No screeners in registry response")
		return nil
	}

	var upsertCount, errorCount int
	for _, remote := range response.Screeners {
		local := models.Screener{
			ID:          uuid.NewString(),
			Name:        remote.Name,
			IdentityKey: remote.IdentityKey,
			Endpoint:    remote.Endpoint,
			Active:      remote.Active,
			Priority:    remote.Priority,
			Capacity:    remote.Capacity,
		}

		// Load counters stay local: this service tracks them as jobs
		// are registered and finish.
		if err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "identity_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "endpoint", "active", "priority", "capacity",
			}),
		}).Create(&local).Error; err != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Failed to upsert screener (identity_key=%q): %v", remote.IdentityKey, err)
		} else {
			upsertCount++
		}
	}

	log.Printf("[SYNC] ✅ Synced %d screeners (%d upserted, %d errors)", len(response.Screeners), upsertCount, errorCount)
	return nil
}
