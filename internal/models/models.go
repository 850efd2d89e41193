// Package models provides shared data types for the bin collection service.
package models

import (
	"time"
)

// ServiceHeader is one schedule header of an upstream service record.
type ServiceHeader struct {
	TaskType            string `json:"TaskType"`
	Last                string `json:"Last"`
	Next                string `json:"Next"`
	ScheduleDescription string `json:"ScheduleDescription"`
}

// RawServiceRecord is a single waste service as returned by the upstream notice board.
type RawServiceRecord struct {
	Type           string          `json:"__type,omitempty"`
	ServiceName    string          `json:"ServiceName"`
	ServiceHeaders []ServiceHeader `json:"ServiceHeaders"`
}

// UpstreamResponse is the ASMX envelope around the service records.
type UpstreamResponse struct {
	D []RawServiceRecord `json:"d"`
}

// ServiceType classifies the waste stream of a service.
type ServiceType string

const (
	// ServiceTypeRefuse is general household waste.
	ServiceTypeRefuse ServiceType = "refuse"
	// ServiceTypeRecycling is mixed recycling.
	ServiceTypeRecycling ServiceType = "recycling"
	// ServiceTypeFood is the food waste caddy.
	ServiceTypeFood ServiceType = "food"
	// ServiceTypeGarden is the garden waste bin.
	ServiceTypeGarden ServiceType = "garden"
	// ServiceTypeDefault is used for anything unrecognised.
	ServiceTypeDefault ServiceType = "default"
)

// ProcessedService is the canonical form of one service within a collection day.
type ProcessedService struct {
	ServiceName         string      `json:"serviceName"`
	ServiceType         ServiceType `json:"serviceType"`
	TaskType            string      `json:"taskType"`
	Last                string      `json:"last"`
	Next                string      `json:"next"`
	ScheduleDescription string      `json:"scheduleDescription"`
}

// ProcessedCollectionDate groups all services collected on the same local calendar day.
type ProcessedCollectionDate struct {
	// Date is an ISO 8601 datetime, e.g. "2025-09-05T00:00:00+01:00".
	Date string `json:"date"`
	// DaysUntil is computed at read time and never trusted from cache.
	DaysUntil int                `json:"daysUntil"`
	Services  []ProcessedService `json:"services"`
}

// ProcessedApiResponse is the payload served to dashboard clients.
type ProcessedApiResponse struct {
	Collections []ProcessedCollectionDate `json:"collections"`
}

// Source describes where a served schedule came from.
type Source string

const (
	// SourceLive is data fetched from the upstream service within the cache TTL.
	SourceLive Source = "live"
	// SourceStale is previously fetched upstream data served after a failed refresh.
	SourceStale Source = "stale"
	// SourceFallback is a predicted schedule synthesized from the known rotation.
	SourceFallback Source = "fallback"
	// SourceTest is canned data served in test mode.
	SourceTest Source = "test"
)

// TestScenario selects the canned data returned in test mode.
type TestScenario string

const (
	// ScenarioTomorrow has the next collection tomorrow.
	ScenarioTomorrow TestScenario = "tomorrow"
	// ScenarioToday has the next collection today.
	ScenarioToday TestScenario = "today"
	// ScenarioGap has no collection in the next few days.
	ScenarioGap TestScenario = "gap"
)

// FetchRecord is one archived fetch outcome.
type FetchRecord struct {
	UPRN            string
	Source          Source
	FetchedAt       time.Time
	CollectionCount int
	NextCollection  *time.Time
	RawResponse     []byte
	Error           string
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CacheStatus describes the cache slot for the health endpoint.
type CacheStatus struct {
	HasData      bool   `json:"hasData"`
	AgeInMinutes *int64 `json:"ageInMinutes"`
	IsValid      bool   `json:"isValid"`
	Source       Source `json:"source,omitempty"`
}

// TestModeStatus reports the test mode configuration.
type TestModeStatus struct {
	Enabled bool         `json:"enabled"`
	Variant TestScenario `json:"variant"`
}

// UpstreamStatus holds the operational status of the upstream service.
type UpstreamStatus struct {
	LastFetchAt        *time.Time `json:"lastFetchAt"`
	LastFetchSuccess   bool       `json:"lastFetchSuccess"`
	LastResponseTimeMs int64      `json:"lastResponseTimeMs"`
	LastError          *string    `json:"lastError"`
	TotalRequests      int64      `json:"totalRequests"`
	TotalErrors        int64      `json:"totalErrors"`
}

// ArchiveStatus holds the fetch archive connection status.
type ArchiveStatus struct {
	Enabled      bool  `json:"enabled"`
	Connected    bool  `json:"connected"`
	TotalFetches int64 `json:"totalFetches"`
}

// HealthResponse is the response for the /api/health endpoint.
type HealthResponse struct {
	Status        string         `json:"status"`
	UPRN          string         `json:"uprn,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	UptimeSeconds int64          `json:"uptimeSeconds"`
	Cache         CacheStatus    `json:"cache"`
	TestMode      TestModeStatus `json:"testMode"`
	Upstream      UpstreamStatus `json:"upstream"`
	Archive       ArchiveStatus  `json:"archive"`
}
