package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
)

// AcelleClient talks to the Acelle Mail statistics API.
type AcelleClient struct {
	endpoint string
	apiToken string
	client   *http.Client
	logger   *zap.Logger
}

// NewAcelleClient constructs a client for the given endpoint and token.
func NewAcelleClient(endpoint, apiToken string, timeout time.Duration, logger *zap.Logger) *AcelleClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcelleClient{
		endpoint: endpoint,
		apiToken: apiToken,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type acelleCampaignPayload struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	Statistics struct {
		SubscriberCount  int     `json:"subscriber_count"`
		DeliveredCount   int     `json:"delivered_count"`
		DeliveredRate    float64 `json:"delivered_rate"`
		OpenCount        int     `json:"open_count"`
		UniqOpenRate     float64 `json:"uniq_open_rate"`
		ClickedCount     int     `json:"clicked_count"`
		ClickedRate      float64 `json:"clicked_rate"`
		BounceCount      int     `json:"bounce_count"`
		UnsubscribeCount int     `json:"unsubscribe_count"`
	} `json:"statistics"`
}

// CampaignStats fetches the statistics snapshot for one campaign UID.
func (c *AcelleClient) CampaignStats(ctx context.Context, campaignUID string) (*models.CampaignStats, error) {
	u, err := url.Parse(fmt.Sprintf("%s/campaigns/%s", c.endpoint, url.PathEscape(campaignUID)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid acelle endpoint")
	}
	q := u.Query()
	q.Set("api_token", c.apiToken)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build acelle request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "acelle request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("acelle returned unexpected status",
			zap.String("campaign_uid", campaignUID), zap.Int("status", resp.StatusCode))
		return nil, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("acelle returned status %d", resp.StatusCode))
	}

	var payload acelleCampaignPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to decode acelle response")
	}

	return &models.CampaignStats{
		CampaignUID:      payload.UID,
		CampaignName:     payload.Name,
		SubscriberCount:  payload.Statistics.SubscriberCount,
		DeliveredCount:   payload.Statistics.DeliveredCount,
		DeliveredRate:    payload.Statistics.DeliveredRate,
		OpenCount:        payload.Statistics.OpenCount,
		UniqOpenRate:     payload.Statistics.UniqOpenRate,
		ClickedCount:     payload.Statistics.ClickedCount,
		ClickedRate:      payload.Statistics.ClickedRate,
		BounceCount:      payload.Statistics.BounceCount,
		UnsubscribeCount: payload.Statistics.UnsubscribeCount,
		FetchedAt:        time.Now().UTC(),
	}, nil
}
