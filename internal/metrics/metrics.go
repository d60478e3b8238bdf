// Package metrics exports store, HTTP, upload and append-retry metrics to
// Prometheus.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Observer implements the observer interfaces of the store, cdn and
// collection packages. A nil *Observer records nothing.
type Observer struct {
	storeDuration *promclient.HistogramVec
	storeErrors   *promclient.CounterVec
	httpDuration  *promclient.HistogramVec
	uploadBytes   promclient.Counter
	uploadErrors  promclient.Counter
	appendRetries *promclient.CounterVec
}

// New registers all collectors under namespace. Collectors that are already
// registered (a second server in the same process, tests) are reused.
func New(namespace string, reg promclient.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "reelshelf"
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	o := &Observer{}
	var err error
	if o.storeDuration, err = register(reg, promclient.NewHistogramVec(promclient.HistogramOpts{
		Namespace: namespace,
		Name:      "store_operation_duration_seconds",
		Help:      "Latency of object store operations.",
		Buckets:   promclient.DefBuckets,
	}, []string{"operation"})); err != nil {
		return nil, fmt.Errorf("register store histogram: %w", err)
	}
	if o.storeErrors, err = register(reg, promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "store_operation_errors_total",
		Help:      "Count of failed object store operations.",
	}, []string{"operation"})); err != nil {
		return nil, fmt.Errorf("register store counter: %w", err)
	}
	if o.httpDuration, err = register(reg, promclient.NewHistogramVec(promclient.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Latency of HTTP requests by route and status.",
		Buckets:   promclient.DefBuckets,
	}, []string{"method", "route", "status"})); err != nil {
		return nil, fmt.Errorf("register http histogram: %w", err)
	}
	if o.uploadBytes, err = register(reg, promclient.NewCounter(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Cumulative payload size successfully relayed to the CDN.",
	})); err != nil {
		return nil, fmt.Errorf("register uploaded bytes counter: %w", err)
	}
	if o.uploadErrors, err = register(reg, promclient.NewCounter(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "upload_errors_total",
		Help:      "Count of failed CDN uploads.",
	})); err != nil {
		return nil, fmt.Errorf("register upload error counter: %w", err)
	}
	if o.appendRetries, err = register(reg, promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "append_conflict_retries_total",
		Help:      "Read-modify-write retries caused by version conflicts.",
	}, []string{"namespace"})); err != nil {
		return nil, fmt.Errorf("register retry counter: %w", err)
	}
	return o, nil
}

func register[C promclient.Collector](reg promclient.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(promclient.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveStoreOp records one store call.
func (o *Observer) ObserveStoreOp(op string, d time.Duration, err error) {
	if o == nil {
		return
	}
	o.storeDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		o.storeErrors.WithLabelValues(op).Inc()
	}
}

// ObserveHTTP records one served request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (o *Observer) ObserveHTTP(method, route string, status int, d time.Duration) {
	if o == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	o.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordUpload tracks relayed bytes and failures.
func (o *Observer) RecordUpload(_ time.Duration, sizeBytes int64, err error) {
	if o == nil {
		return
	}
	if err != nil {
		o.uploadErrors.Inc()
		return
	}
	o.uploadBytes.Add(float64(sizeBytes))
}

// RecordAppendRetry counts a conflict retry in the given namespace.
func (o *Observer) RecordAppendRetry(namespace string) {
	if o == nil {
		return
	}
	o.appendRetries.WithLabelValues(namespace).Inc()
}
