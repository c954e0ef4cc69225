package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"agriport/internal/database"
	"agriport/internal/metrics"
	"agriport/internal/models"
)

// Calculator provides road distances between coordinates
type Calculator interface {
	CheckConnection(ctx context.Context) bool
	GetDistance(ctx context.Context, origin, dest models.Coordinates) models.NullFloat
	GetDistanceMatrix(ctx context.Context, origins, destinations []models.Coordinates, batchSize int) [][]models.NullFloat
	ComputeGridToPortsDistances(ctx context.Context, gridPoints []models.GridPoint, ports []models.Port) []models.DistanceRecord
}

// Config configures the OSRM client
type Config struct {
	BaseURL      string
	Profile      string
	Timeout      time.Duration // per request
	MinInterval  time.Duration // between the starts of any two requests, across workers
	BatchSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	HealthPath   string

	// BreakerThreshold consecutive temporary failures open the circuit
	// breaker; 0 disables it
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:5000",
		Profile:      "driving",
		Timeout:      30 * time.Second,
		MinInterval:  500 * time.Millisecond,
		BatchSize:    100,
		Workers:      1,
		MaxRetries:   0,
		RetryBackoff: time.Second,
		HealthPath:   "/health",

		BreakerCooldown: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Profile == "" {
		c.Profile = def.Profile
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MinInterval < 0 {
		c.MinInterval = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = def.RetryBackoff
	}
	if c.HealthPath == "" {
		c.HealthPath = def.HealthPath
	}
	if c.BreakerThreshold < 0 {
		c.BreakerThreshold = 0
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = def.BreakerCooldown
	}
	return c
}

// ErrRoutingFailed is returned when a routing service request fails
type ErrRoutingFailed struct {
	Endpoint   string
	StatusCode int
	Reason     string
	Err        error
}

func (e *ErrRoutingFailed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %s: %v", e.Endpoint, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s request failed: %s", e.Endpoint, e.Reason)
}

func (e *ErrRoutingFailed) Unwrap() error {
	return e.Err
}

// Temporary reports whether a retry could succeed
func (e *ErrRoutingFailed) Temporary() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return true
	}
	return e.StatusCode == 0 && e.Err != nil && !errors.Is(e.Err, context.Canceled)
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the routing metrics
func WithMetrics(m *metrics.Routing) Option {
	return func(c *Client) { c.metrics = m }
}

// WithCache sets the distance cache used by ComputeGridToPortsDistances
func WithCache(cache database.DistanceCacheRepository) Option {
	return func(c *Client) { c.cache = cache }
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Client is an OSRM routing client. Safe for concurrent use; all requests
// share one pacing limiter.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitBreaker
	cache      database.DistanceCacheRepository
	metrics    *metrics.Routing
	logger     *zap.Logger
}

var _ Calculator = (*Client)(nil)

// NewClient creates a new OSRM client
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    newCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration
func (c *Client) Config() Config {
	return c.cfg
}

type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance *float64 `json:"distance"`
	} `json:"routes"`
}

type osrmTableResponse struct {
	Code      string       `json:"code"`
	Distances [][]*float64 `json:"distances"`
}

// CheckConnection probes the routing service health endpoint
func (c *Client) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+c.cfg.HealthPath, nil)
	if err != nil {
		c.logger.Error("[OSRM] Failed to create health request", zap.Error(err))
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("[OSRM] Health check failed", zap.String("url", c.cfg.BaseURL), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("[OSRM] Health check returned non-OK status", zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}

// GetDistance returns the road distance in km from origin to dest, or
// unreachable if the service fails or finds no route.
func (c *Client) GetDistance(ctx context.Context, origin, dest models.Coordinates) models.NullFloat {
	queryURL := fmt.Sprintf("%s/route/v1/%s/%s;%s?overview=false",
		c.cfg.BaseURL, c.cfg.Profile, formatCoord(origin), formatCoord(dest))

	var resp osrmRouteResponse
	if err := c.fetch(ctx, "route", queryURL, &resp); err != nil {
		c.logger.Warn("[OSRM] Route request failed",
			zap.String("origin", formatCoord(origin)), zap.String("dest", formatCoord(dest)), zap.Error(err))
		c.metrics.AddUnreachable(1)
		return models.Unreachable()
	}

	if resp.Code != "Ok" || len(resp.Routes) == 0 {
		c.logger.Warn("[OSRM] No route found",
			zap.String("origin", formatCoord(origin)), zap.String("dest", formatCoord(dest)), zap.String("code", resp.Code))
		c.metrics.AddUnreachable(1)
		return models.Unreachable()
	}

	d := resp.Routes[0].Distance
	if d == nil || *d < 0 {
		c.logger.Warn("[OSRM] Route without usable distance",
			zap.String("origin", formatCoord(origin)), zap.String("dest", formatCoord(dest)))
		c.metrics.AddUnreachable(1)
		return models.Unreachable()
	}

	return models.Known(*d / 1000)
}

// fetch performs a paced GET and decodes the JSON body into out, retrying
// temporary failures when MaxRetries > 0.
func (c *Client) fetch(ctx context.Context, endpoint, queryURL string, out interface{}) error {
	var err error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.cfg.RetryBackoff
			c.logger.Info("[OSRM] Retrying request",
				zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Duration("backoff", backoff))

			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		if !c.breaker.allow() {
			c.metrics.RejectRequest(endpoint)
			return &ErrRoutingFailed{Endpoint: endpoint, Reason: "not attempted", Err: ErrCircuitOpen}
		}

		err = c.fetchOnce(ctx, endpoint, queryURL, out)
		if err == nil {
			c.breaker.recordSuccess()
			return nil
		}

		if ctx.Err() != nil {
			c.breaker.release()
			return err
		}

		var rf *ErrRoutingFailed
		if !errors.As(err, &rf) || !rf.Temporary() {
			// the service answered, so it is up
			c.breaker.recordSuccess()
			return err
		}
		if c.breaker.recordFailure() {
			c.logger.Warn("[OSRM] Circuit breaker opened",
				zap.String("endpoint", endpoint), zap.Duration("cooldown", c.cfg.BreakerCooldown))
		}
	}
	return err
}

func (c *Client) fetchOnce(ctx context.Context, endpoint, queryURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return &ErrRoutingFailed{Endpoint: endpoint, Reason: "failed to create request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, "error", time.Since(start))
		return &ErrRoutingFailed{Endpoint: endpoint, Reason: "transport error", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.ObserveRequest(endpoint, "http_error", time.Since(start))
		return &ErrRoutingFailed{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.ObserveRequest(endpoint, "malformed", time.Since(start))
		return &ErrRoutingFailed{Endpoint: endpoint, Reason: "malformed response", Err: err}
	}

	c.metrics.ObserveRequest(endpoint, "ok", time.Since(start))
	return nil
}

// formatCoord renders a coordinate in OSRM lon,lat order
func formatCoord(c models.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lon, c.Lat)
}
