package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hearthwise/hearthwise/internal/domain"
	"go.uber.org/zap"
)

// Client talks to the home hub's REST API: event history, device and
// entity registries, and the automation listing. It implements the
// EventSource, InventorySource, and AutomationSource collaborators.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type historyRow struct {
	EntityID    string    `json:"entity_id"`
	State       string    `json:"state"`
	LastChanged time.Time `json:"last_changed"`
}

// FetchEvents reads state changes in [start, end], optionally filtered by
// entity ids or domains, capped at filter.Limit rows.
func (c *Client) FetchEvents(ctx context.Context, start, end time.Time, filter domain.EventFilter) ([]domain.Event, error) {
	q := url.Values{}
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	if len(filter.EntityIDs) > 0 {
		q.Set("entity_ids", strings.Join(filter.EntityIDs, ","))
	}
	if len(filter.Domains) > 0 {
		q.Set("domains", strings.Join(filter.Domains, ","))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	var rows []historyRow
	if err := c.getJSON(ctx, "/api/history", q, &rows); err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	events := make([]domain.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, domain.Event{
			EntityID:  r.EntityID,
			State:     r.State,
			Timestamp: r.LastChanged,
		})
	}
	return events, nil
}

func (c *Client) FetchDevices(ctx context.Context) ([]domain.Device, error) {
	var devices []domain.Device
	if err := c.getJSON(ctx, "/api/devices", nil, &devices); err != nil {
		return nil, fmt.Errorf("fetch devices: %w", err)
	}
	return devices, nil
}

func (c *Client) FetchEntities(ctx context.Context) ([]domain.Entity, error) {
	var entities []domain.Entity
	if err := c.getJSON(ctx, "/api/entities", nil, &entities); err != nil {
		return nil, fmt.Errorf("fetch entities: %w", err)
	}
	return entities, nil
}

func (c *Client) FetchAutomations(ctx context.Context) ([]domain.Automation, error) {
	var automations []domain.Automation
	if err := c.getJSON(ctx, "/api/automations", nil, &automations); err != nil {
		return nil, fmt.Errorf("fetch automations: %w", err)
	}
	return automations, nil
}

// getJSON performs one GET with bounded retry for transient failures.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("hub request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read hub response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("hub returned status %d: %s", resp.StatusCode, string(body))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal hub response: %w", err)
		}
		return nil
	})
}
