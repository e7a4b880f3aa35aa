// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider selects the metrics exporter.
type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OTLPProvider       Provider = "otlp"
	StdoutProvider     Provider = "stdout"
)

const meterName = "rivaas.dev/hello/metrics"

// DefaultDurationBuckets are the request duration histogram boundaries in seconds.
var DefaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Recorder holds the meter provider and the server instruments.
// All methods are safe for concurrent use and are no-ops on a nil Recorder.
type Recorder struct {
	provider        Provider
	serviceName     string
	serviceVersion  string
	exportInterval  time.Duration
	durationBuckets []float64
	otlpEndpoint    string
	stdoutWriter    io.Writer
	registerGlobal  bool
	logger          *slog.Logger

	meterProvider       metric.MeterProvider
	sdkProvider         *sdkmetric.MeterProvider // nil for custom providers
	customMeterProvider bool
	prometheusRegistry  *promclient.Registry
	prometheusHandler   http.Handler

	requestCount      metric.Int64Counter
	requestDuration   metric.Float64Histogram
	activeConnections metric.Int64UpDownCounter
	handlerErrors     metric.Int64Counter
	serviceAttrs      []attribute.KeyValue

	serverMu      sync.Mutex
	metricsServer *http.Server
}

// New creates a Recorder with the given options.
func New(opts ...Option) (*Recorder, error) {
	r := &Recorder{
		provider:        PrometheusProvider,
		serviceName:     "helloserver",
		serviceVersion:  "dev",
		exportInterval:  30 * time.Second,
		durationBuckets: DefaultDurationBuckets,
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("invalid metrics configuration: %w", err)
	}
	if err := r.initializeProvider(); err != nil {
		return nil, err
	}
	if err := r.initializeInstruments(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNew creates a Recorder or panics on error.
func MustNew(opts ...Option) *Recorder {
	r, err := New(opts...)
	if err != nil {
		panic("metrics initialization failed: " + err.Error())
	}
	return r
}

// Disabled returns a nil Recorder, which records nothing.
func Disabled() *Recorder {
	return nil
}

func (r *Recorder) validate() error {
	if r.serviceName == "" {
		return errors.New("service name cannot be empty")
	}
	if r.exportInterval <= 0 {
		return errors.New("export interval must be positive")
	}
	if r.customMeterProvider && r.meterProvider == nil {
		return errors.New("custom meter provider is nil")
	}
	return nil
}

func (r *Recorder) initializeInstruments() error {
	meter := r.meterProvider.Meter(meterName)
	r.serviceAttrs = []attribute.KeyValue{
		attribute.String("service.name", r.serviceName),
		attribute.String("service.version", r.serviceVersion),
	}

	var err error
	r.requestCount, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of completed HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create request counter: %w", err)
	}

	r.requestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(r.durationBuckets...),
	)
	if err != nil {
		return fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	r.activeConnections, err = meter.Int64UpDownCounter(
		"http.server.active_connections",
		metric.WithDescription("Number of open client connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create active connections counter: %w", err)
	}

	r.handlerErrors, err = meter.Int64Counter(
		"http.server.handler_errors",
		metric.WithDescription("Handler invocations that returned an error or panicked"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create handler error counter: %w", err)
	}
	return nil
}

// Provider returns the configured provider.
func (r *Recorder) Provider() Provider {
	if r == nil {
		return ""
	}
	return r.provider
}

// IsEnabled reports whether the recorder records anything.
func (r *Recorder) IsEnabled() bool {
	return r != nil
}

// Handler returns the Prometheus scrape handler.
func (r *Recorder) Handler() (http.Handler, error) {
	if r == nil || r.prometheusHandler == nil {
		return nil, fmt.Errorf("metrics handler not available for provider %q", r.Provider())
	}
	return r.prometheusHandler, nil
}

// StartServer binds addr and serves the Prometheus handler at path in the
// background. It returns the bound address. The server stops on
// [Recorder.Shutdown].
func (r *Recorder) StartServer(addr, path string) (net.Addr, error) {
	handler, err := r.Handler()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	r.serverMu.Lock()
	r.metricsServer = server
	r.serverMu.Unlock()

	r.logger.Info("metrics server starting", "address", ln.Addr().String(), "path", path)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server error", "error", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the metrics server and flushes the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.serverMu.Lock()
	server := r.metricsServer
	r.metricsServer = nil
	r.serverMu.Unlock()

	var errs []error
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if r.sdkProvider != nil {
		if err := r.sdkProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
