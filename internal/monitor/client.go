package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guildview/panel-service/config"
	"github.com/guildview/panel-service/internal/domain/model"
)

// StatsClient polls a running panel's admin stats endpoint.
type StatsClient struct {
	base  string
	token string
	http  *http.Client
}

func NewStatsClient(cfg config.MonitorConfig) *StatsClient {
	return &StatsClient{
		base:  strings.TrimRight(cfg.URL, "/"),
		token: cfg.Token,
		http:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *StatsClient) Fetch(ctx context.Context) (*model.StatsReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/admin/stats", nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("panel answered %s", resp.Status)
	}

	var report model.StatsReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &report, nil
}
