// Package timesource is the HTTP client for the time service. It spreads calls
// over the configured instances round-robin, skips instances whose circuit is
// open or whose call budget is spent, and hands back the raw response body.
package timesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Priya8975/event-recorder/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxPayloadBytes = 64 << 10

var tracer = otel.Tracer("github.com/Priya8975/event-recorder/internal/timesource")

// ErrPayloadTooLarge is returned when an instance answers with a body larger
// than the 64 KiB cap. It counts as a failed call.
var ErrPayloadTooLarge = errors.New("time source payload exceeds 64 KiB")

// Breaker decides whether an instance may be called and learns from outcomes.
type Breaker interface {
	AllowRequest(ctx context.Context, instance string) (string, bool)
	RecordSuccess(ctx context.Context, instance string)
	RecordFailure(ctx context.Context, instance string)
}

// Limiter caps calls per instance.
type Limiter interface {
	Allow(ctx context.Context, instance string, limit int) bool
}

// StatusError is returned when an instance answers with a non-2xx status.
type StatusError struct {
	Instance   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s answered %d", e.Instance, e.StatusCode)
}

// Options configures a Client. Breaker and Limiter are optional.
type Options struct {
	Instances         []string
	Path              string
	Timeout           time.Duration
	RetriesNextServer int
	RateLimit         int
	Breaker           Breaker
	Limiter           Limiter
}

// Client fetches the current time from one of several instances.
type Client struct {
	httpClient        *http.Client
	instances         []string
	path              string
	retriesNextServer int
	rateLimit         int
	breaker           Breaker
	limiter           Limiter
	next              atomic.Uint64
	logger            *slog.Logger
}

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if len(opts.Instances) == 0 {
		return nil, errors.New("timesource: at least one instance is required")
	}

	path := opts.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	instances := make([]string, len(opts.Instances))
	for i, in := range opts.Instances {
		instances[i] = strings.TrimRight(in, "/")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Client{
		httpClient:        &http.Client{Timeout: timeout},
		instances:         instances,
		path:              path,
		retriesNextServer: opts.RetriesNextServer,
		rateLimit:         opts.RateLimit,
		breaker:           opts.Breaker,
		limiter:           opts.Limiter,
		logger:            logger,
	}, nil
}

// Instances returns the configured instance base URLs.
func (c *Client) Instances() []string {
	out := make([]string, len(c.instances))
	copy(out, c.instances)
	return out
}

// Fetch returns the body of one successful time query. Each call starts at
// the next instance in rotation and makes at most 1+RetriesNextServer calls.
// Ineligible instances are skipped without using up an attempt.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "timesource.Fetch")
	defer span.End()

	body, err := c.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("payload.bytes", len(body)))
	return body, nil
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	start := int(c.next.Add(1)-1) % len(c.instances)
	budget := 1 + c.retriesNextServer

	var lastErr error
	attempts := 0
	for i := 0; i < len(c.instances) && attempts < budget; i++ {
		instance := c.instances[(start+i)%len(c.instances)]

		if c.breaker != nil {
			if _, ok := c.breaker.AllowRequest(ctx, instance); !ok {
				c.logger.Debug("skipping instance, circuit open", "instance", instance)
				continue
			}
		}
		if c.limiter != nil && !c.limiter.Allow(ctx, instance, c.rateLimit) {
			continue
		}

		attempts++
		body, err := c.call(ctx, instance)
		if err == nil {
			if c.breaker != nil {
				c.breaker.RecordSuccess(ctx, instance)
			}
			return body, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("querying %s: %w", instance, ctxErr)
		}

		if c.breaker != nil {
			c.breaker.RecordFailure(ctx, instance)
		}
		c.logger.Warn("time source call failed", "instance", instance, "attempt", attempts, "error", err)
		lastErr = err
	}

	if attempts == 0 {
		return nil, fmt.Errorf("%w: no eligible instance among %d", domain.ErrCircuitOpen, len(c.instances))
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrTimeSourceUnavailable, lastErr)
}

func (c *Client) call(ctx context.Context, instance string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instance+c.path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", instance, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		return nil, &StatusError{Instance: instance, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", instance, err)
	}
	if len(body) > maxPayloadBytes {
		return nil, fmt.Errorf("%s: %w", instance, ErrPayloadTooLarge)
	}
	return body, nil
}
