// Package geocoding resolves addresses to coordinates and back through an
// external provider, translating provider failures into domain errors.
package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/luizclaudiolc/ozmap/shared/geo"
	"github.com/luizclaudiolc/ozmap/shared/provider"
)

// DefaultTimeout bounds every provider call.
const DefaultTimeout = 10 * time.Second

const (
	OperationReverse = "reverse"
	OperationSearch  = "search"
)

// OutcomeCached labels calls answered from the cache after a provider failure.
const OutcomeCached = "cached"

var (
	ErrAddressNotFound     = errors.New("address not found")
	ErrAddressInvalid      = errors.New("address must not be empty")
	ErrCoordinatesNotFound = errors.New("coordinates not found")
	ErrCoordinatesInvalid  = errors.New("coordinates must be valid numbers")
	ErrTimeout             = errors.New("geocoding request timed out")
	ErrGeoService          = errors.New("geocoding service failure")
)

// Provider is the raw geocoding backend.
type Provider interface {
	Search(ctx context.Context, address string) ([]provider.SearchResult, error)
	Reverse(ctx context.Context, lat, lng float64) (*provider.ReverseResult, error)
}

// Recorder receives one observation per provider call.
type Recorder interface {
	ObserveGeocode(operation, outcome string, elapsed time.Duration)
}

// Gateway is the only entry point the rest of the service uses for geocoding.
type Gateway struct {
	provider Provider
	timeout  time.Duration
	logger   *zerolog.Logger
	recorder Recorder
	cache    Cache
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithRecorder reports every call to r.
func WithRecorder(r Recorder) Option {
	return func(g *Gateway) {
		g.recorder = r
	}
}

// WithCache stores every resolved lookup in c and serves it back only when
// the provider fails or times out.
func WithCache(c Cache) Option {
	return func(g *Gateway) {
		g.cache = c
	}
}

// NewGateway creates a new Gateway around p.
func NewGateway(p Provider, logger *zerolog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		provider: p,
		timeout:  DefaultTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// ResolveAddress returns the display address for c.
func (g *Gateway) ResolveAddress(ctx context.Context, c geo.Coordinates) (address string, err error) {
	start := time.Now()
	var cached bool
	defer func() { g.observe(OperationReverse, start, err, cached) }()

	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCoordinatesInvalid, err)
	}

	key := reverseKey(c)
	address, err = g.reverse(ctx, c)
	if err == nil {
		g.store(ctx, key, address)
		return address, nil
	}

	if stale, ok := g.fallback(ctx, key, err); ok {
		cached = true
		return stale, nil
	}

	return "", err
}

// ResolveCoordinates returns the coordinates of the best match for address.
func (g *Gateway) ResolveCoordinates(ctx context.Context, address string) (c geo.Coordinates, err error) {
	start := time.Now()
	var cached bool
	defer func() { g.observe(OperationSearch, start, err, cached) }()

	address = strings.TrimSpace(address)
	if address == "" {
		return geo.Coordinates{}, ErrAddressInvalid
	}

	key := searchKey(address)
	c, err = g.search(ctx, address)
	if err == nil {
		g.store(ctx, key, encodeCoordinates(c))
		return c, nil
	}

	if raw, ok := g.fallback(ctx, key, err); ok {
		if stale, decodeErr := decodeCoordinates(raw); decodeErr == nil {
			cached = true
			return stale, nil
		}
	}

	return geo.Coordinates{}, err
}

func (g *Gateway) reverse(ctx context.Context, c geo.Coordinates) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.provider.Reverse(ctx, c.Lat, c.Lng)
	if err != nil {
		return "", g.translate(ctx, err)
	}

	if result == nil || result.DisplayName == "" {
		return "", ErrAddressNotFound
	}

	return result.DisplayName, nil
}

func (g *Gateway) search(ctx context.Context, address string) (geo.Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.provider.Search(ctx, address)
	if err != nil {
		return geo.Coordinates{}, g.translate(ctx, err)
	}

	if len(results) == 0 || results[0].Lat == "" || results[0].Lon == "" {
		return geo.Coordinates{}, ErrCoordinatesNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return geo.Coordinates{}, fmt.Errorf("%w: latitude %q: %v", ErrGeoService, results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return geo.Coordinates{}, fmt.Errorf("%w: longitude %q: %v", ErrGeoService, results[0].Lon, err)
	}

	return geo.Coordinates{Lat: lat, Lng: lng}, nil
}

// fallback serves the last stored result when the provider is unavailable.
// Definitive answers such as not found are never overridden.
func (g *Gateway) fallback(ctx context.Context, key string, err error) (string, bool) {
	if !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrGeoService) {
		return "", false
	}

	value, ok := g.lookup(ctx, key)
	if ok && g.logger != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("geocoding provider unavailable, serving stored result")
	}

	return value, ok
}

func (g *Gateway) lookup(ctx context.Context, key string) (string, bool) {
	if g.cache == nil {
		return "", false
	}

	value, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) && g.logger != nil {
			g.logger.Warn().Err(err).Str("key", key).Msg("geocoding cache read failed")
		}
		return "", false
	}

	return value, true
}

func (g *Gateway) store(ctx context.Context, key, value string) {
	if g.cache == nil {
		return
	}

	if err := g.cache.Set(ctx, key, value); err != nil && g.logger != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("geocoding cache write failed")
	}
}

func (g *Gateway) translate(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
	}

	return fmt.Errorf("%w: %v", ErrGeoService, err)
}

func (g *Gateway) observe(operation string, start time.Time, err error, cached bool) {
	elapsed := time.Since(start)
	outcome := Outcome(err)
	if cached {
		outcome = OutcomeCached
	}

	if err != nil && g.logger != nil {
		g.logger.Warn().
			Err(err).
			Str("operation", operation).
			Dur("elapsed", elapsed).
			Msg("geocoding request failed")
	}

	if g.recorder != nil {
		g.recorder.ObserveGeocode(operation, outcome, elapsed)
	}
}

// Outcome classifies err into a short label suitable for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAddressNotFound), errors.Is(err, ErrCoordinatesNotFound):
		return "not_found"
	case errors.Is(err, ErrAddressInvalid), errors.Is(err, ErrCoordinatesInvalid):
		return "invalid"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
