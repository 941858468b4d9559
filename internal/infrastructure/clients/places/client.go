package places

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/soberbookings/backend/internal/domain/providers"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
	"github.com/soberbookings/backend/pkg/retry"
)

const (
	DefaultBaseURL = "https://places.googleapis.com/v1"

	defaultHTTPTimeout = 8 * time.Second
	defaultCacheTTL    = 60 * 60 * 24
	maxBiasRadiusMeter = 50000.0
	metersPerMile      = 1609.344

	textSearchFieldMask = "places.id,places.displayName,places.formattedAddress," +
		"places.addressComponents,places.location,places.types,places.businessStatus," +
		"places.nationalPhoneNumber,places.websiteUri"
	detailsFieldMask = "id,displayName,formattedAddress,addressComponents,location," +
		"types,businessStatus,nationalPhoneNumber,websiteUri"
)

// ErrMissingAPIKey is returned when the client has no API key configured.
var ErrMissingAPIKey = errors.New("places: api key is required")

// StatusError is a non-2xx answer from the Places API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("places: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Circle biases a text search around a center.
type Circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

// LocationBias wraps the bias shape accepted by the API.
type LocationBias struct {
	Circle *Circle `json:"circle,omitempty"`
}

// TextSearchRequest is the body of a places:searchText call.
type TextSearchRequest struct {
	TextQuery      string        `json:"textQuery"`
	MaxResultCount int           `json:"maxResultCount,omitempty"`
	LocationBias   *LocationBias `json:"locationBias,omitempty"`
}

// CircleBias builds a location bias of radiusMiles around a point, clamped to
// the largest radius the API accepts.
func CircleBias(lat, lon, radiusMiles float64) *LocationBias {
	radius := radiusMiles * metersPerMile
	if radius > maxBiasRadiusMeter {
		radius = maxBiasRadiusMeter
	}
	return &LocationBias{Circle: &Circle{Center: LatLng{Latitude: lat, Longitude: lon}, Radius: radius}}
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the API.
type Place struct {
	ID                  string             `json:"id"`
	DisplayName         DisplayName        `json:"displayName"`
	FormattedAddress    string             `json:"formattedAddress"`
	AddressComponents   []AddressComponent `json:"addressComponents"`
	Location            *LatLng            `json:"location,omitempty"`
	Types               []string           `json:"types"`
	BusinessStatus      string             `json:"businessStatus"`
	NationalPhoneNumber string             `json:"nationalPhoneNumber"`
	WebsiteURI          string             `json:"websiteUri"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// AddressComponent is one typed part of a formatted address.
type AddressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText"`
	Types     []string `json:"types"`
}

// Component returns the short text of the first component carrying any of
// the given types.
func (p Place) Component(types ...string) string {
	for _, t := range types {
		for _, c := range p.AddressComponents {
			for _, ct := range c.Types {
				if ct == t {
					return c.ShortText
				}
			}
		}
	}
	return ""
}

// Street joins the street number and route components.
func (p Place) Street() string {
	number := p.Component("street_number")
	route := p.Component("route")
	return strings.TrimSpace(number + " " + route)
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if strings.TrimSpace(u) != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit caps outbound requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithCache stores responses for ttlSeconds.
func WithCache(cache providers.CacheProvider, ttlSeconds int) Option {
	return func(c *Client) {
		c.cache = cache
		if ttlSeconds > 0 {
			c.cacheTTL = ttlSeconds
		}
	}
}

// WithRetryConfig overrides the retry policy for upstream calls.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// Client performs Google Places API (v1) operations.
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	cache    providers.CacheProvider
	cacheTTL int
	retry    retry.Config
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		baseURL:  DefaultBaseURL,
		http:     &http.Client{Timeout: defaultHTTPTimeout},
		cacheTTL: defaultCacheTTL,
		retry:    retry.RequestConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TextSearch runs a free-text place search.
func (c *Client) TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("places: marshal request: %w", err)
	}

	var result TextSearchResponse
	cacheKey := "places:v1:search:" + hashKey(body)
	if c.fromCache(ctx, cacheKey, &result) {
		return &result, nil
	}

	respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/places:searchText", body, textSearchFieldMask)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("places: unmarshal response: %w", err)
	}

	c.store(ctx, cacheKey, respBody)
	return &result, nil
}

// Details fetches a single place by its resource id.
func (c *Client) Details(ctx context.Context, placeID string) (*Place, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, fmt.Errorf("places: place id is required")
	}

	var place Place
	cacheKey := "places:v1:details:" + placeID
	if c.fromCache(ctx, cacheKey, &place) {
		return &place, nil
	}

	respBody, err := c.do(ctx, http.MethodGet, c.baseURL+"/places/"+url.PathEscape(placeID), nil, detailsFieldMask)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(respBody, &place); err != nil {
		return nil, fmt.Errorf("places: unmarshal response: %w", err)
	}

	c.store(ctx, cacheKey, respBody)
	return &place, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, fieldMask string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	logger := observability.LoggerFromContext(ctx)
	cfg := c.retry
	cfg.OnRetry = func(attempt int, err error, nextDelay time.Duration) {
		logger.Debug().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("retrying places request")
	}

	var respBody []byte
	err := retry.Do(ctx, cfg, "places", func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return retry.Permanent(fmt.Errorf("places: create request: %w", err))
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
		req.Header.Set("X-Goog-FieldMask", fieldMask)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			return fmt.Errorf("places: send request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("places: read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
			if statusErr.Retryable() {
				return statusErr
			}
			return retry.Permanent(statusErr)
		}

		respBody = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

func (c *Client) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if c.cache == nil {
		return false
	}
	cached, err := c.cache.Get(ctx, key)
	if err != nil || len(cached) == 0 {
		return false
	}
	return json.Unmarshal(cached, dest) == nil
}

func (c *Client) store(ctx context.Context, key string, payload []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, payload, c.cacheTTL); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to cache places response")
	}
}

func hashKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
