package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultUserAgent       = "margin-router"
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 4
	defaultDialTimeout     = 5 * time.Second
	defaultDialKeepAlive   = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
	defaultTLSTimeout      = 5 * time.Second

	instrumentationName  = "github.com/fd1az/margin-router/internal/httpclient"
	metricRequestCounter = "upstream_http_requests_total"
)

// Client issues instrumented requests against one upstream API.
type Client interface {
	NewRequest() Request
	NewRequestWithOptions(opts ...RequestOption) Request
	// CloseIdleConnections releases pooled connections on shutdown.
	CloseIdleConnections()
}

// InstrumentedClient traces every request and counts it per provider.
type InstrumentedClient struct {
	http           *http.Client
	requestCounter metric.Int64Counter
	opts           *ClientOptions
	tracer         trace.Tracer
}

var _ Client = (*InstrumentedClient)(nil)

// NewInstrumentedClient builds a client with its own connection pool.
// The transport is wrapped by otelhttp so connection phases show up as
// child spans of the request span.
func NewInstrumentedClient(opts ...ClientOption) (*InstrumentedClient, error) {
	o := newClientOptions(opts...)

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		MaxIdleConnsPerHost: o.maxConnsPerHost,
		MaxConnsPerHost:     o.maxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSTimeout,
		ForceAttemptHTTP2:   true,
	}

	meter := otel.GetMeterProvider().Meter(instrumentationName)
	counter, err := meter.Int64Counter(
		metricRequestCounter,
		metric.WithDescription("Requests sent to upstream APIs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return &InstrumentedClient{
		http: &http.Client{
			Timeout: o.requestTimeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				}),
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return o.providerName + " " + r.Method
				}),
			),
		},
		requestCounter: counter,
		opts:           o,
		tracer:         tracer,
	}, nil
}

// NewRequest starts a request with the client defaults.
func (c *InstrumentedClient) NewRequest() Request {
	return c.NewRequestWithOptions()
}

// NewRequestWithOptions starts a request with per-request options.
func (c *InstrumentedClient) NewRequestWithOptions(opts ...RequestOption) Request {
	ro := newRequestOptions(opts...)

	headers := make(map[string]string, len(c.opts.headers)+1)
	for k, v := range c.opts.headers {
		headers[k] = v
	}
	headers["User-Agent"] = c.opts.userAgent

	var exclude []string
	if c.opts.logHeaders {
		exclude = maskedHeaders
	}

	return &requestBuilder{
		client:           c.http,
		requestCounter:   c.requestCounter,
		providerName:     c.opts.providerName,
		tracer:           c.tracer,
		baseURL:          c.opts.baseURL,
		headers:          headers,
		errorHandler:     ro.responseErrorHandler,
		labels:           ro.labels,
		excludeHeaders:   exclude,
		enableLogHeaders: c.opts.logHeaders,
		logRequest:       c.opts.logRequest,
		logResponse:      c.opts.logResponse,
	}
}

// CloseIdleConnections closes pooled keep-alive connections.
func (c *InstrumentedClient) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}
