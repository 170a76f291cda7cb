// Package metrics exposes prometheus metrics for resource store traffic.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/miabis/miabis/internal/platform/fhir"
)

type Collector struct {
	StoreRequestsTotal   *prometheus.CounterVec
	StoreRequestDuration *prometheus.HistogramVec
	HTTPRetriesTotal     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewCollector registers the collector's metrics on reg. A nil reg uses a
// fresh registry.
func NewCollector(namespace string, reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Collector{
		StoreRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "requests_total",
			Help:      "Resource store requests by operation, resource type and outcome.",
		}, []string{"operation", "resource_type", "outcome"}),

		StoreRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "request_duration_seconds",
			Help:      "Resource store request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation", "resource_type"}),

		HTTPRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "retries_total",
			Help:      "Requests to the FHIR server retried after a transient failure, by method.",
		}, []string{"method"}),

		gatherer: reg,
	}
}

// Handler serves the collector's registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Push sends the collector's registry to a Prometheus Pushgateway under job,
// replacing what the gateway held for that job. One-shot commands exit
// before any scrape, so they report through the gateway instead.
func (c *Collector) Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(c.gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// ObserveRequest records one store request.
func (c *Collector) ObserveRequest(operation, resourceType string, start time.Time, err error) {
	c.StoreRequestsTotal.WithLabelValues(operation, resourceType, outcome(err)).Inc()
	c.StoreRequestDuration.WithLabelValues(operation, resourceType).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, fhir.ErrResourceNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Store is the resource store surface being instrumented.
type Store interface {
	Create(ctx context.Context, resourceType string, resource map[string]interface{}) (string, error)
	Read(ctx context.Context, resourceType, id string) (map[string]interface{}, error)
	Update(ctx context.Context, resourceType, id string, resource map[string]interface{}) error
	Delete(ctx context.Context, resourceType, id string) error
	Search(ctx context.Context, resourceType string, params url.Values) ([]map[string]interface{}, error)
}

// InstrumentedStore records every call to the wrapped store.
type InstrumentedStore struct {
	next Store
	c    *Collector
}

func Instrument(next Store, c *Collector) *InstrumentedStore {
	return &InstrumentedStore{next: next, c: c}
}

func (s *InstrumentedStore) Create(ctx context.Context, resourceType string, resource map[string]interface{}) (string, error) {
	start := time.Now()
	id, err := s.next.Create(ctx, resourceType, resource)
	s.c.ObserveRequest("create", resourceType, start, err)
	return id, err
}

func (s *InstrumentedStore) Read(ctx context.Context, resourceType, id string) (map[string]interface{}, error) {
	start := time.Now()
	res, err := s.next.Read(ctx, resourceType, id)
	s.c.ObserveRequest("read", resourceType, start, err)
	return res, err
}

func (s *InstrumentedStore) Update(ctx context.Context, resourceType, id string, resource map[string]interface{}) error {
	start := time.Now()
	err := s.next.Update(ctx, resourceType, id, resource)
	s.c.ObserveRequest("update", resourceType, start, err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, resourceType, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, resourceType, id)
	s.c.ObserveRequest("delete", resourceType, start, err)
	return err
}

func (s *InstrumentedStore) Search(ctx context.Context, resourceType string, params url.Values) ([]map[string]interface{}, error) {
	start := time.Now()
	res, err := s.next.Search(ctx, resourceType, params)
	s.c.ObserveRequest("search", resourceType, start, err)
	return res, err
}
