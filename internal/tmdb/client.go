package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// FindResult is a single entry of a /find response.
type FindResult struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

// FindResponse models the TMDB /find payload.
type FindResponse struct {
	MovieResults []FindResult `json:"movie_results"`
	TVResults    []FindResult `json:"tv_results"`
}

// Provider is one watch provider entry.
type Provider struct {
	ID              int64  `json:"provider_id"`
	Name            string `json:"provider_name"`
	DisplayPriority int    `json:"display_priority"`
}

// RegionProviders lists providers by offer type for one region.
type RegionProviders struct {
	Link     string     `json:"link"`
	Flatrate []Provider `json:"flatrate"`
	Rent     []Provider `json:"rent"`
	Buy      []Provider `json:"buy"`
	Free     []Provider `json:"free"`
	Ads      []Provider `json:"ads"`
}

// ProvidersResponse models the /watch/providers payload keyed by region code.
type ProvidersResponse struct {
	ID      int64                      `json:"id"`
	Results map[string]RegionProviders `json:"results"`
}

// API defines the TMDB operations used by the resolver and fetcher.
type API interface {
	FindByIMDbID(ctx context.Context, imdbID string) (*FindResponse, error)
	WatchProviders(ctx context.Context, mediaType string, id int64) (*ProvidersResponse, error)
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

var _ API = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// BreakerSettings tunes the circuit breaker that guards TMDB calls.
type BreakerSettings struct {
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenRequests int
}

// DefaultBreakerSettings trips after five consecutive failures and probes again
// after thirty seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{FailureThreshold: 5, OpenTimeout: 30 * time.Second, HalfOpenRequests: 1}
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(settings BreakerSettings) Option {
	return func(c *Client) {
		c.breaker = newBreaker(settings)
	}
}

func newBreaker(settings BreakerSettings) *gobreaker.CircuitBreaker[*http.Response] {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = DefaultBreakerSettings().FailureThreshold
	}
	if settings.HalfOpenRequests <= 0 {
		settings.HalfOpenRequests = 1
	}
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: uint32(settings.HalfOpenRequests),
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(settings.FailureThreshold)
		},
		IsSuccessful: breakerNeutral,
	})
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    newBreaker(DefaultBreakerSettings()),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// FindByIMDbID looks up TMDB entries carrying the given IMDb identifier.
func (c *Client) FindByIMDbID(ctx context.Context, imdbID string) (*FindResponse, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, errors.New("imdb id must not be empty")
	}
	params := url.Values{}
	params.Set("external_source", "imdb_id")

	var payload FindResponse
	if err := c.get(ctx, "find", "/find/"+url.PathEscape(imdbID), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// WatchProviders returns per-region provider lists for a movie or TV show.
func (c *Client) WatchProviders(ctx context.Context, mediaType string, id int64) (*ProvidersResponse, error) {
	if id <= 0 {
		return nil, errors.New("tmdb id must be positive")
	}
	switch mediaType {
	case MediaMovie, MediaTV:
	default:
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}

	var payload ProvidersResponse
	path := fmt.Sprintf("/%s/%d/watch/providers", mediaType, id)
	if err := c.get(ctx, "watch providers", path, url.Values{}, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) get(ctx context.Context, endpointName, path string, params url.Values, dest any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := &StatusError{
				Endpoint:   endpointName,
				StatusCode: resp.StatusCode,
				Latency:    time.Since(requestStart),
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
			resp.Body.Close()
			return nil, statusErr
		}
		return resp, nil
	})
	latency := time.Since(requestStart)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s", ErrCircuitOpen, endpointName)
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return statusErr
		}
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode tmdb %s response: %w", endpointName, err)
	}
	return nil
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait
		}
	}
	return 0
}
