// services/log_client.go
package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// LogClient queries the log-aggregation backend for a single scoring
// job's log lines over a time range. The backend does authentication
// by service token, same as the gateway.
type LogClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewLogClient(baseURL, token string) *LogClient {
	return &LogClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

type logQueryResponse struct {
	Entries []LogEntry `json:"entries"`
}

// QueryJobLogs proxies a time-range query for one job's logs.
func (c *LogClient) QueryJobLogs(jobID string, from, to time.Time) ([]LogEntry, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid log service URL '%s': %w", c.BaseURL, err)
	}

	endpoint := base.JoinPath("/api/v1/logs")
	q := endpoint.Query()
	q.Set("job_id", jobID)
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequest("GET", endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("log service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("[LOGS] ❌ Log service returned %d for job %s: %s", resp.StatusCode, jobID, string(body))
		return nil, fmt.Errorf("log service non-200 response: %d", resp.StatusCode)
	}

	var out logQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode log service response: %w", err)
	}
	return out.Entries, nil
}
