// Package veolia provides an API client for the Veolia notice board service
// used by St Albans to publish bin collection dates.
package veolia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/andygrunwald/bin-collection/internal/api"
	"github.com/andygrunwald/bin-collection/internal/models"
	"github.com/andygrunwald/bin-collection/internal/retry"
)

const (
	// ProviderName is the identifier for this source.
	ProviderName = "veolia"
	// DefaultURL is the notice board endpoint.
	DefaultURL = "https://gis.stalbans.gov.uk/NoticeBoard9/VeoliaProxy.NoticeBoard.asmx/GetServicesByUprnAndNoticeBoard"
	// RequestTimeout bounds a single attempt.
	RequestTimeout = 10 * time.Second

	noticeBoard = "default"
	// maxMessageLength caps upstream bodies quoted in errors.
	maxMessageLength = 200
)

// requestBody is the JSON body expected by the notice board.
type requestBody struct {
	UPRN        int64  `json:"uprn"`
	NoticeBoard string `json:"noticeBoard"`
}

// Provider implements api.Fetcher for the Veolia notice board.
type Provider struct {
	client  *retryablehttp.Client
	logger  zerolog.Logger
	url     string
	timeout time.Duration
	policy  retry.Policy
}

// Option configures a Provider.
type Option func(*Provider)

// WithURL overrides the notice board endpoint.
func WithURL(url string) Option {
	return func(p *Provider) {
		p.url = url
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Provider) {
		p.policy = policy
	}
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		p.timeout = timeout
	}
}

// New creates a new Veolia provider.
func New(logger zerolog.Logger, opts ...Option) *Provider {
	p := &Provider{
		logger:  logger.With().Str("provider", ProviderName).Logger(),
		url:     DefaultURL,
		timeout: RequestTimeout,
		policy:  retry.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = p.timeout
	client.RetryMax = p.policy.MaxRetries()
	client.RetryWaitMin = p.policy.Delay
	client.RetryWaitMax = p.policy.Delay
	client.CheckRetry = p.policy.CheckRetry
	client.Backoff = p.policy.Backoff
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = leveledLogger{logger: p.logger}
	p.client = client

	return p
}

// Name returns the source identifier.
func (p *Provider) Name() string {
	return ProviderName
}

// Fetch posts the UPRN to the notice board and decodes the service records.
func (p *Provider) Fetch(ctx context.Context, uprn string) (*models.UpstreamResponse, []byte, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(uprn), 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing UPRN %q: %w", uprn, err)
	}

	payload, err := json.Marshal(requestBody{UPRN: id, NoticeBoard: noticeBoard})
	if err != nil {
		return nil, nil, fmt.Errorf("encoding request: %w", err)
	}

	p.logger.Debug().
		Str("url", p.url).
		Int64("uprn", id).
		Msg("fetching collection schedule")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.url, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if p.policy.ShouldRetry(err) {
			return nil, nil, &api.TransientError{Attempts: p.policy.Attempts, Err: err}
		}
		if api.BlockedMessage(err.Error()) {
			return nil, nil, &api.BlockedError{Message: err.Error()}
		}
		return nil, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if p.policy.ShouldRetry(err) {
			return nil, nil, &api.TransientError{Attempts: 1, Err: err}
		}
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}

	if api.BlockedStatus(resp.StatusCode) {
		return nil, body, &api.BlockedError{StatusCode: resp.StatusCode, Message: upstreamMessage(body)}
	}
	if resp.StatusCode != http.StatusOK {
		msg := upstreamMessage(body)
		if api.BlockedMessage(msg) {
			return nil, body, &api.BlockedError{StatusCode: resp.StatusCode, Message: msg}
		}
		return nil, body, &api.StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	upstream, err := decode(body)
	if err != nil {
		return nil, body, err
	}

	p.logger.Info().
		Int("serviceCount", len(upstream.D)).
		Msg("fetched collection schedule")

	return upstream, body, nil
}

// decode unwraps the ASMX envelope. ASMX reports faults as {"Message": ...}
// without a "d" member, and a WAF may answer 200 with an HTML page.
func decode(body []byte) (*models.UpstreamResponse, error) {
	if !gjson.ValidBytes(body) {
		if api.BlockedMessage(string(body)) {
			return nil, &api.BlockedError{StatusCode: http.StatusOK, Message: truncate(string(body))}
		}
		return nil, fmt.Errorf("parsing response JSON: invalid document: %s", truncate(string(body)))
	}

	d := gjson.GetBytes(body, "d")
	if !d.Exists() {
		msg := gjson.GetBytes(body, "Message").String()
		if api.BlockedMessage(msg) {
			return nil, &api.BlockedError{StatusCode: http.StatusOK, Message: msg}
		}
		if msg != "" {
			return nil, fmt.Errorf("upstream fault: %s", msg)
		}
		return nil, fmt.Errorf("parsing response JSON: missing \"d\" member")
	}

	upstream := &models.UpstreamResponse{D: []models.RawServiceRecord{}}
	if d.Type == gjson.Null {
		return upstream, nil
	}
	if err := json.Unmarshal([]byte(d.Raw), &upstream.D); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}
	return upstream, nil
}

// upstreamMessage extracts something readable from an error body.
func upstreamMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "Message"); msg.Exists() {
			return truncate(msg.String())
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if len(s) > maxMessageLength {
		return s[:maxMessageLength] + "..."
	}
	return s
}
