package models

import "time"

// CampaignStats is a statistics snapshot for one Acelle campaign.
type CampaignStats struct {
	CampaignUID      string    `json:"campaign_uid"`
	CampaignName     string    `json:"campaign_name"`
	SubscriberCount  int       `json:"subscriber_count"`
	DeliveredCount   int       `json:"delivered_count"`
	DeliveredRate    float64   `json:"delivered_rate"`
	OpenCount        int       `json:"open_count"`
	UniqOpenRate     float64   `json:"uniq_open_rate"`
	ClickedCount     int       `json:"clicked_count"`
	ClickedRate      float64   `json:"clicked_rate"`
	BounceCount      int       `json:"bounce_count"`
	UnsubscribeCount int       `json:"unsubscribe_count"`
	FetchedAt        time.Time `json:"fetched_at"`
}
