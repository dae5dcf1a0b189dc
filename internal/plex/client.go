package plex

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"plexsleep/internal/logging"
)

const (
	// DefaultTimeout bounds a single sessions request
	DefaultTimeout = 10 * time.Second

	productName = "plexsleep"

	breakerName          = "plex-sessions"
	breakerTripFailures  = 3
	breakerOpenTimeout   = 90 * time.Second
	maxResponseBodyBytes = 8 << 20
)

// Config describes how to reach the Plex server
type Config struct {
	Address string
	Port    int
	Token   string
	Timeout time.Duration
}

// Client fetches active sessions from /status/sessions
type Client struct {
	endpoint   string
	token      string
	clientID   string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]Session]
	logger     *logging.Logger
}

// NewClient creates a sessions client guarded by a circuit breaker
func NewClient(cfg Config, logger *logging.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		endpoint:   "http://" + net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)) + "/status/sessions",
		token:      cfg.Token,
		clientID:   uuid.NewString(),
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]Session](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("plex.breaker.state", "Session probe circuit breaker changed state", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return c
}

// Endpoint returns the sessions URL without the token
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Sessions returns the sessions currently playing on the server.
// While the breaker is open it fails fast with gobreaker.ErrOpenState.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	return c.breaker.Execute(func() ([]Session, error) {
		return c.fetch(ctx)
	})
}

func (c *Client) fetch(ctx context.Context) ([]Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := url.Values{"X-Plex-Token": {c.token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build sessions request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Plex-Product", productName)
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the full URL including the token
		if uerr, ok := err.(*url.Error); ok {
			err = uerr.Err
		}
		return nil, fmt.Errorf("request sessions from %s: %w", c.endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sessions request failed: %s", resp.Status)
	}

	return ParseSessions(io.LimitReader(resp.Body, maxResponseBodyBytes))
}
