// Package collector owns the cached collection schedule for one premises and
// keeps it fresh: live upstream data first, then stale data, then a predicted
// fallback schedule.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/andygrunwald/bin-collection/internal/api"
	"github.com/andygrunwald/bin-collection/internal/models"
	"github.com/andygrunwald/bin-collection/internal/schedule"
)

// DefaultTTL is how long a live fetch stays fresh.
const DefaultTTL = 7 * 24 * time.Hour

// archiveTimeout bounds a single archive write.
const archiveTimeout = 5 * time.Second

// ErrNoData is returned when the upstream failed, nothing usable is cached
// and the fallback schedule is disabled.
var ErrNoData = errors.New("no collection data available")

// Recorder receives collector outcomes as metrics.
type Recorder interface {
	RecordUpstreamRequest(provider, status string, duration float64)
	RecordLastFetch(provider string, timestamp float64)
	RecordCacheResult(result string)
	RecordNextCollection(daysUntil float64)
}

// Archiver stores the history of fetch outcomes.
type Archiver interface {
	RecordFetch(ctx context.Context, record models.FetchRecord) error
}

// Entry is the single cache slot. Raw is nil for a fallback schedule.
// Processed is never modified after it has been stored.
type Entry struct {
	Raw       *models.UpstreamResponse
	Body      []byte
	Processed *models.ProcessedApiResponse
	FetchedAt *time.Time
	Source    models.Source
}

// Stats holds upstream request statistics.
type Stats struct {
	mu               sync.RWMutex
	TotalRequests    int64
	TotalErrors      int64
	LastFetchAt      *time.Time
	LastFetchSuccess bool
	LastResponseTime time.Duration
	LastError        *string
}

// GetSnapshot returns a thread-safe snapshot of the stats.
func (s *Stats) GetSnapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsSnapshot{
		TotalRequests:    s.TotalRequests,
		TotalErrors:      s.TotalErrors,
		LastFetchAt:      s.LastFetchAt,
		LastFetchSuccess: s.LastFetchSuccess,
		LastResponseTime: s.LastResponseTime,
		LastError:        s.LastError,
	}
}

// StatsSnapshot is a thread-safe copy of Stats data.
type StatsSnapshot struct {
	TotalRequests    int64
	TotalErrors      int64
	LastFetchAt      *time.Time
	LastFetchSuccess bool
	LastResponseTime time.Duration
	LastError        *string
}

// Collector serves the collection schedule of one UPRN.
type Collector struct {
	fetcher       api.Fetcher
	uprn          string
	ttl           time.Duration
	loc           *time.Location
	now           func() time.Time
	fallback      bool
	fallbackWeeks int
	metrics       Recorder
	archive       Archiver
	logger        zerolog.Logger

	mu    sync.RWMutex
	entry Entry
	stats Stats
	group singleflight.Group
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Collector) {
		c.ttl = ttl
	}
}

// WithLocation sets the time zone used for calendar days.
func WithLocation(loc *time.Location) Option {
	return func(c *Collector) {
		c.loc = loc
	}
}

// WithFallback enables or disables the predicted fallback schedule.
func WithFallback(enabled bool) Option {
	return func(c *Collector) {
		c.fallback = enabled
	}
}

// WithFallbackWeeks sets how many weeks the fallback schedule covers.
func WithFallbackWeeks(weeks int) Option {
	return func(c *Collector) {
		c.fallbackWeeks = weeks
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(metrics Recorder) Option {
	return func(c *Collector) {
		c.metrics = metrics
	}
}

// WithArchive attaches a fetch archive.
func WithArchive(archive Archiver) Option {
	return func(c *Collector) {
		c.archive = archive
	}
}

// New creates a Collector for uprn.
func New(fetcher api.Fetcher, uprn string, logger zerolog.Logger, opts ...Option) *Collector {
	c := &Collector{
		fetcher:       fetcher,
		uprn:          uprn,
		ttl:           DefaultTTL,
		loc:           time.Local,
		now:           time.Now,
		fallback:      true,
		fallbackWeeks: schedule.DefaultFallbackWeeks,
		logger:        logger.With().Str("component", "collector").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UPRN returns the premises identifier this collector serves.
func (c *Collector) UPRN() string {
	return c.uprn
}

// Location returns the time zone used for calendar days.
func (c *Collector) Location() *time.Location {
	return c.loc
}

// Now returns the collector's current time.
func (c *Collector) Now() time.Time {
	return c.now()
}

// Stats returns a snapshot of the upstream request statistics.
func (c *Collector) Stats() StatsSnapshot {
	return c.stats.GetSnapshot()
}

// Snapshot returns a copy of the cache slot.
func (c *Collector) Snapshot() Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry
}

// IsFresh reports whether the cache holds live data younger than the TTL.
func (c *Collector) IsFresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isFreshLocked()
}

func (c *Collector) isFreshLocked() bool {
	if c.entry.Raw == nil || c.entry.Processed == nil || c.entry.FetchedAt == nil {
		return false
	}
	return c.now().Sub(*c.entry.FetchedAt) < c.ttl
}

// CacheStatus describes the cache slot for health checks.
func (c *Collector) CacheStatus() models.CacheStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := models.CacheStatus{
		HasData: c.entry.Processed != nil,
		IsValid: c.isFreshLocked(),
		Source:  c.entry.Source,
	}
	if c.entry.FetchedAt != nil {
		age := int64(c.now().Sub(*c.entry.FetchedAt) / time.Minute)
		status.AgeInMinutes = &age
	}
	return status
}

// EnsureFresh returns the cache slot, refreshing it first when it is empty
// or stale. The returned entry's Source is stale when a failed refresh was
// answered with older live data. Concurrent refreshes share one upstream call.
func (c *Collector) EnsureFresh(ctx context.Context) (Entry, error) {
	c.mu.RLock()
	if c.isFreshLocked() {
		entry := c.entry
		c.mu.RUnlock()
		c.recordCacheResult("fresh")
		return entry, nil
	}
	c.mu.RUnlock()

	v, err, shared := c.group.Do(c.uprn, func() (interface{}, error) {
		c.mu.RLock()
		if c.isFreshLocked() {
			entry := c.entry
			c.mu.RUnlock()
			return entry, nil
		}
		c.mu.RUnlock()

		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return Entry{}, err
	}

	entry := v.(Entry)
	if shared {
		c.logger.Debug().Str("source", string(entry.Source)).Msg("joined in-flight refresh")
	}
	c.recordCacheResult(string(entry.Source))
	return entry, nil
}

// Collections is the read path: EnsureFresh followed by a projection of
// daysUntil against the current time.
func (c *Collector) Collections(ctx context.Context) (models.ProcessedApiResponse, Entry, error) {
	entry, err := c.EnsureFresh(ctx)
	if err != nil {
		return models.ProcessedApiResponse{}, Entry{}, err
	}

	projected := schedule.Project(*entry.Processed, c.now(), c.loc)
	if next, ok := schedule.NextCollection(projected); ok && c.metrics != nil {
		c.metrics.RecordNextCollection(float64(next.DaysUntil))
	}
	return projected, entry, nil
}

func (c *Collector) refresh(ctx context.Context) (Entry, error) {
	c.logger.Info().Str("uprn", c.uprn).Msg("refreshing collection schedule")

	start := time.Now()
	c.stats.mu.Lock()
	c.stats.TotalRequests++
	c.stats.mu.Unlock()

	resp, body, err := c.fetcher.Fetch(ctx, c.uprn)
	duration := time.Since(start)
	c.recordAttempt(duration, err)

	if err == nil {
		now := c.now()
		processed := schedule.Normalize(resp.D, c.loc)
		entry := Entry{
			Raw:       resp,
			Body:      body,
			Processed: &processed,
			FetchedAt: &now,
			Source:    models.SourceLive,
		}
		c.store(entry)

		c.logger.Info().
			Int("collections", len(processed.Collections)).
			Dur("duration", duration).
			Msg("fetched collection schedule")
		c.archiveFetch(ctx, entry, models.SourceLive, nil)
		return entry, nil
	}

	if api.IsBlocked(err) {
		c.logger.Warn().Err(err).Msg("upstream is blocking requests, using fallback schedule")
		return c.useFallback(ctx, err)
	}

	c.mu.RLock()
	last := c.entry
	c.mu.RUnlock()
	if last.Raw != nil && last.Processed != nil {
		c.logger.Warn().
			Err(err).
			Time("fetchedAt", *last.FetchedAt).
			Msg("refresh failed, serving stale schedule")
		last.Source = models.SourceStale
		c.archiveFetch(ctx, last, models.SourceStale, err)
		return last, nil
	}

	c.logger.Warn().Err(err).Msg("refresh failed without cached data, using fallback schedule")
	return c.useFallback(ctx, err)
}

func (c *Collector) useFallback(ctx context.Context, cause error) (Entry, error) {
	if !c.fallback {
		return Entry{}, fmt.Errorf("%w: %w", ErrNoData, cause)
	}

	now := c.now()
	processed := schedule.GenerateFallback(now, c.loc, c.fallbackWeeks)
	entry := Entry{
		Processed: &processed,
		FetchedAt: &now,
		Source:    models.SourceFallback,
	}
	c.store(entry)
	c.archiveFetch(ctx, entry, models.SourceFallback, cause)
	return entry, nil
}

// store replaces the whole slot at once.
func (c *Collector) store(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = entry
}

func (c *Collector) recordAttempt(duration time.Duration, err error) {
	now := c.now()
	c.stats.mu.Lock()
	c.stats.LastFetchAt = &now
	c.stats.LastResponseTime = duration
	if err != nil {
		c.stats.TotalErrors++
		c.stats.LastFetchSuccess = false
		errStr := err.Error()
		c.stats.LastError = &errStr
	} else {
		c.stats.LastFetchSuccess = true
		c.stats.LastError = nil
	}
	c.stats.mu.Unlock()

	if c.metrics == nil {
		return
	}
	c.metrics.RecordUpstreamRequest(c.fetcher.Name(), upstreamStatus(err), duration.Seconds())
	if err == nil {
		c.metrics.RecordLastFetch(c.fetcher.Name(), float64(now.Unix()))
	}
}

func (c *Collector) recordCacheResult(result string) {
	if c.metrics != nil {
		c.metrics.RecordCacheResult(result)
	}
}

// archiveFetch appends the outcome to the archive. Failures are only logged.
func (c *Collector) archiveFetch(ctx context.Context, entry Entry, outcome models.Source, cause error) {
	if c.archive == nil {
		return
	}

	record := models.FetchRecord{
		UPRN:        c.uprn,
		Source:      outcome,
		FetchedAt:   c.now(),
		RawResponse: entry.Body,
	}
	if cause != nil {
		record.Error = cause.Error()
	}
	if entry.Processed != nil {
		record.CollectionCount = len(entry.Processed.Collections)
		if len(entry.Processed.Collections) > 0 {
			if next, err := schedule.ParseTimestamp(entry.Processed.Collections[0].Date, c.loc); err == nil {
				record.NextCollection = &next
			}
		}
	}
	if outcome == models.SourceStale {
		// The body belongs to the earlier fetch.
		record.RawResponse = nil
	}

	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()
	if err := c.archive.RecordFetch(ctx, record); err != nil {
		c.logger.Error().Err(err).Str("source", string(record.Source)).Msg("failed to archive fetch")
	}
}

func upstreamStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case api.IsBlocked(err):
		return "blocked"
	case api.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
