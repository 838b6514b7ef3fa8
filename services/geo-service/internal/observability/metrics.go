package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// GeoCollector bundles the Prometheus metrics of the geo service.
type GeoCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests     *prometheus.CounterVec
	HTTPDurations    *prometheus.HistogramVec
	GeocodeRequests  *prometheus.CounterVec
	GeocodeDurations *prometheus.HistogramVec
	RPCRequests      *prometheus.CounterVec
}

// NewGeoCollector registers the metrics against reg, defaulting to the
// global registry when nil.
func NewGeoCollector(reg prometheus.Registerer) (*GeoCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	httpRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geo_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "geo_http_requests_total")
	if err != nil {
		return nil, err
	}

	httpDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geo_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: latencyBuckets,
	}, []string{"method", "route"}), "geo_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	geocodeRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geo_geocoder_requests_total",
		Help: "Total number of geocoding provider calls, labeled by operation and outcome.",
	}, []string{"operation", "outcome"}), "geo_geocoder_requests_total")
	if err != nil {
		return nil, err
	}

	geocodeDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geo_geocoder_request_duration_seconds",
		Help:    "Geocoding provider latency in seconds.",
		Buckets: latencyBuckets,
	}, []string{"operation"}), "geo_geocoder_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	rpcRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geo_grpc_requests_total",
		Help: "Total number of handled gRPC calls, labeled by method and status code.",
	}, []string{"method", "code"}), "geo_grpc_requests_total")
	if err != nil {
		return nil, err
	}

	return &GeoCollector{
		gatherer:         gatherer,
		HTTPRequests:     httpRequests,
		HTTPDurations:    httpDurations,
		GeocodeRequests:  geocodeRequests,
		GeocodeDurations: geocodeDurations,
		RPCRequests:      rpcRequests,
	}, nil
}

// Middleware records a count and latency sample for every HTTP request,
// labeled by the matched chi route pattern.
func (c *GeoCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		if c == nil {
			return
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}

		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		c.HTTPDurations.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveGeocode records one geocoding provider call.
func (c *GeoCollector) ObserveGeocode(operation, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.GeocodeRequests.WithLabelValues(operation, outcome).Inc()
	c.GeocodeDurations.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// UnaryServerInterceptor counts unary gRPC calls by method and status code.
func (c *GeoCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)

		if c != nil && info != nil {
			c.RPCRequests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		}

		return resp, err
	}
}

// Handler exposes the /metrics endpoint.
func (c *GeoCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
