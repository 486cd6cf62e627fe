package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fd1az/margin-router/internal/apperror"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewInstrumentedClient(
		WithProviderName("test"),
		WithBaseURL(srv.URL+"/api/"),
		WithRequestTimeout(2*time.Second),
		WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRequest_GetDecodesResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/quote" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("protocols"); got != "A,B C" {
			t.Errorf("protocols = %q", got)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing default header")
		}
		w.Write([]byte(`{"toAmount":"42"}`))
	})

	var out struct {
		ToAmount string `json:"toAmount"`
	}
	resp, err := c.NewRequest().
		SetQueryParam("protocols", "A,B C").
		SetResult(&out).
		Get(context.Background(), "quote")
	if err != nil {
		t.Fatal(err)
	}
	if resp.IsError() || out.ToAmount != "42" {
		t.Errorf("status %d, toAmount %q", resp.StatusCode, out.ToAmount)
	}
}

func TestRequest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		handler ResponseErrorHandler
		want    apperror.Code
	}{
		{name: "bad status", status: http.StatusBadGateway, body: "upstream down", want: apperror.CodeHTTPBadStatus},
		{name: "bad json", status: http.StatusOK, body: "{", want: apperror.CodeHTTPDecodeFailed},
		{
			name:   "custom handler",
			status: http.StatusOK,
			body:   `{"error":"nope"}`,
			handler: func(int, []byte) error {
				return apperror.New(apperror.CodeAggregatorQuoteFailed)
			},
			want: apperror.CodeAggregatorQuoteFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			var opts []RequestOption
			if tt.handler != nil {
				opts = append(opts, WithResponseErrorHandler(tt.handler))
			}
			var out map[string]any
			_, err := c.NewRequestWithOptions(opts...).SetResult(&out).Get(context.Background(), "x")
			if !errors.Is(err, apperror.New(tt.want)) {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestRequest_TransportFailure(t *testing.T) {
	c, err := NewInstrumentedClient(WithProviderName("test"))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.NewRequest().Get(ctx, "http://127.0.0.1:1/unreachable")
	if !errors.Is(err, apperror.New(apperror.CodeHTTPRequestFailed)) {
		t.Errorf("err = %v, want HTTP_REQUEST_FAILED", err)
	}
}

func TestRequest_PostJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("method %s content-type %q", r.Method, r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if _, err := c.NewRequest().SetBody(map[string]int{"a": 1}).Post(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
}

func TestClient_DefaultHeaders(t *testing.T) {
	tests := []struct {
		name      string
		opts      []ClientOption
		wantUA    string
		wantExtra string
	}{
		{name: "defaults", wantUA: defaultUserAgent},
		{
			name:      "overrides",
			opts:      []ClientOption{WithUserAgent("margin-router/test"), WithHeaders(map[string]string{"X-Chain": "56"})},
			wantUA:    "margin-router/test",
			wantExtra: "56",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("User-Agent"); got != tt.wantUA {
					t.Errorf("User-Agent = %q, want %q", got, tt.wantUA)
				}
				if got := r.Header.Get("Accept"); got != "application/json" {
					t.Errorf("Accept = %q", got)
				}
				if got := r.Header.Get("X-Chain"); got != tt.wantExtra {
					t.Errorf("X-Chain = %q, want %q", got, tt.wantExtra)
				}
			}))
			defer srv.Close()

			c, err := NewInstrumentedClient(append(tt.opts, WithBaseURL(srv.URL))...)
			if err != nil {
				t.Fatal(err)
			}
			defer c.CloseIdleConnections()

			if _, err := c.NewRequest().Get(context.Background(), "/"); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestClientOptions_IgnoresInvalidValues(t *testing.T) {
	o := newClientOptions(
		WithProviderName(""),
		WithRequestTimeout(-time.Second),
		WithMaxConnsPerHost(0),
	)
	if o.providerName != "default" || o.requestTimeout != defaultRequestTimeout || o.maxConnsPerHost != defaultMaxConnsPerHost {
		t.Errorf("options = %+v", o)
	}
}
