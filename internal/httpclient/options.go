// Package httpclient is the traced JSON client used for the aggregator
// and listing APIs.
package httpclient

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceOption selects what a request records on its span.
type TraceOption string

const (
	TraceRequest  TraceOption = "request"
	TraceResponse TraceOption = "response"
	// TraceHeaders records request headers. Credentials are masked.
	TraceHeaders TraceOption = "headers"
)

// maskedHeaders are never written to spans in clear text.
var maskedHeaders = []string{"authorization", "x-api-key", "cookie"}

// ClientOptions configures NewInstrumentedClient.
type ClientOptions struct {
	providerName    string
	baseURL         string
	userAgent       string
	requestTimeout  time.Duration
	maxConnsPerHost int
	headers         map[string]string
	tracer          trace.Tracer
	logRequest      bool
	logResponse     bool
	logHeaders      bool
}

// ClientOption is a function that configures ClientOptions.
type ClientOption func(*ClientOptions)

func newClientOptions(opts ...ClientOption) *ClientOptions {
	o := &ClientOptions{
		providerName:    "default",
		userAgent:       defaultUserAgent,
		requestTimeout:  defaultRequestTimeout,
		maxConnsPerHost: defaultMaxConnsPerHost,
		headers:         map[string]string{"Accept": "application/json"},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithProviderName names the upstream in spans, errors and the request
// counter.
func WithProviderName(name string) ClientOption {
	return func(o *ClientOptions) {
		if name != "" {
			o.providerName = name
		}
	}
}

// WithBaseURL resolves relative request paths against url.
func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.baseURL = url
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(o *ClientOptions) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithRequestTimeout bounds each request including the body read.
// Non-positive values keep the default.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if timeout > 0 {
			o.requestTimeout = timeout
		}
	}
}

// WithMaxConnsPerHost caps concurrent connections to the upstream.
func WithMaxConnsPerHost(n int) ClientOption {
	return func(o *ClientOptions) {
		if n > 0 {
			o.maxConnsPerHost = n
		}
	}
}

// WithHeaders adds default headers. They override the built-in Accept.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithTraceOptions sets the tracer and what each request records.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(o *ClientOptions) {
		o.tracer = tracer
		for _, opt := range opts {
			switch opt {
			case TraceRequest:
				o.logRequest = true
			case TraceResponse:
				o.logResponse = true
			case TraceHeaders:
				o.logHeaders = true
			}
		}
	}
}

// RequestOptions holds per-request configuration.
type RequestOptions struct {
	responseErrorHandler ResponseErrorHandler
	labels               []*Label
}

// RequestOption configures a single request.
type RequestOption func(*RequestOptions)

func newRequestOptions(opts ...RequestOption) *RequestOptions {
	o := &RequestOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ResponseErrorHandler decides whether a response is an error. It runs
// before the result is decoded.
type ResponseErrorHandler func(statusCode int, body []byte) error

// WithResponseErrorHandler replaces StatusErrorHandler for one request.
// The aggregator uses it to surface its own error payloads.
func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(o *RequestOptions) {
		o.responseErrorHandler = handler
	}
}

// Label is an extra attribute on the request counter, e.g. the endpoint
// or listing name.
type Label struct {
	Key   string
	Value string
}

func NewLabel(key, value string) *Label {
	return &Label{Key: key, Value: value}
}

// WithLabels appends counter labels for the request.
func WithLabels(labels ...*Label) RequestOption {
	return func(o *RequestOptions) {
		o.labels = append(o.labels, labels...)
	}
}
