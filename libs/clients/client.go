package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"regexp"
	"time"

	appctx "github.com/folioshop/storefront/libs/context"
	"github.com/folioshop/storefront/libs/errors"
	"github.com/folioshop/storefront/libs/logging"
	"github.com/folioshop/storefront/libs/middleware"
	"github.com/folioshop/storefront/libs/requestutils"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultTimeout bounds every call made through a SimpleHTTPClient
const DefaultTimeout = 10 * time.Second

// regular expression mapped to the replacement
var redactHeaders = map[*regexp.Regexp][]byte{
	regexp.MustCompile(`(?i)authorization: (?i)basic.+\n`):  []byte("Authorization: Basic <token>\n"),
	regexp.MustCompile(`(?i)authorization: (?i)bearer.+\n`): []byte("Authorization: Bearer <token>\n"),
	regexp.MustCompile(`(?i)apikey: .+\n`):                  []byte("Apikey: <key>\n"),
	regexp.MustCompile(`(?i)"password":"[^"]*"`):            []byte(`"password":"<redacted>"`),
}

// RedactSensitiveHeaders from http request dumps
func RedactSensitiveHeaders(corpus []byte) []byte {
	for k, v := range redactHeaders {
		corpus = k.ReplaceAll(corpus, v)
	}
	return corpus
}

var concurrentClientRequests = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "concurrent_client_requests",
		Help: "Gauge that holds the current number of client requests",
	},
	[]string{
		"host",
		"method",
	},
)

func init() {
	prometheus.MustRegister(concurrentClientRequests)
}

// QueryStringBody - a type to generate the query string from a request "body" for the client
type QueryStringBody interface {
	// GenerateQueryString - function to generate the query string
	GenerateQueryString() (url.Values, error)
}

// SimpleHTTPClient wraps http.Client for making simple token authorized requests
type SimpleHTTPClient struct {
	BaseURL   *url.URL
	AuthToken string
	Timeout   time.Duration

	client *http.Client
}

// New returns a new SimpleHTTPClient
func New(serverURL string, authToken string) (*SimpleHTTPClient, error) {
	return NewWithHTTPClient(serverURL, authToken, &http.Client{
		Timeout: DefaultTimeout,
	})
}

// NewWithHTTPClient returns a new SimpleHTTPClient, using the provided http.Client
func NewWithHTTPClient(serverURL string, authToken string, client *http.Client) (*SimpleHTTPClient, error) {
	baseURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}

	return &SimpleHTTPClient{
		BaseURL:   baseURL,
		AuthToken: authToken,
		Timeout:   DefaultTimeout,
		client:    client,
	}, nil
}

// NewInstrumented returns a new SimpleHTTPClient whose transport reports prometheus metrics under name
func NewInstrumented(name string, serverURL string, authToken string) (*SimpleHTTPClient, error) {
	return NewWithHTTPClient(serverURL, authToken, &http.Client{
		Timeout:   DefaultTimeout,
		Transport: middleware.InstrumentRoundTripper(http.DefaultTransport, name),
	})
}

// newRequest creates a request, JSON encoding the body passed
func (c *SimpleHTTPClient) newRequest(
	ctx context.Context,
	method,
	path string,
	body interface{},
	qsb QueryStringBody,
) (*http.Request, string, int, error) {
	var buf io.ReadWriter
	qs := ""

	if qsb != nil {
		v, err := qsb.GenerateQueryString()
		if err != nil {
			return nil, path, 0, fmt.Errorf("failed to generate query string: %w", err)
		}
		qs = v.Encode()
	}

	resolvedURL := c.BaseURL.ResolveReference(&url.URL{
		Path:     path,
		RawQuery: qs,
	}).String()

	if body != nil && method != http.MethodGet {
		buf = new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, resolvedURL, 0, errors.Wrap(err, ErrUnableToEncodeBody)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, resolvedURL, buf)
	if err != nil {
		switch err.(type) {
		case url.EscapeError:
			return nil, resolvedURL, http.StatusBadRequest, errors.Wrap(err, ErrUnableToEscapeURL)
		case url.InvalidHostError:
			return nil, resolvedURL, http.StatusBadRequest, errors.Wrap(err, ErrInvalidHost)
		default:
			return nil, resolvedURL, http.StatusBadRequest, errors.Wrap(err, ErrMalformedRequest)
		}
	}

	req.Header.Set("accept", "application/json")
	if buf != nil {
		req.Header.Add("content-type", "application/json")
	}
	requestutils.SetRequestID(ctx, req)
	if c.AuthToken != "" {
		req.Header.Set("authorization", "Bearer "+c.AuthToken)
	}
	return req, resolvedURL, 0, nil
}

// NewRequest wraps the new request with a particular error type
func (c *SimpleHTTPClient) NewRequest(
	ctx context.Context,
	method,
	path string,
	body interface{},
	qsb QueryStringBody,
) (*http.Request, error) {
	req, resolved, status, err := c.newRequest(ctx, method, path, body, qsb)
	if err != nil {
		return nil, NewHTTPError(err, resolved, "request", status, body)
	}
	return req, nil
}

// do the specified http request, decoding the JSON result into v
func (c *SimpleHTTPClient) do(ctx context.Context, req *http.Request, v interface{}) (*http.Response, []byte, error) {
	labels := prometheus.Labels{"host": req.URL.Host, "method": req.Method}
	concurrentClientRequests.With(labels).Inc()
	defer concurrentClientRequests.With(labels).Dec()

	logger := logging.Logger(ctx, "clients.SimpleHTTPClient")
	debug, _ := ctx.Value(appctx.DebugLoggingCTXKey).(bool)

	if debug {
		if dump, err := httputil.DumpRequestOut(req, true); err != nil {
			logger.Error().Err(err).Str("type", "http.Request").Msg("failed to dump request body")
		} else {
			logger.Debug().Str("type", "http.Request").Msg(string(RedactSensitiveHeaders(dump)))
		}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()

	resp, err := c.client.Do(req.WithContext(reqCtx))
	if err != nil {
		return nil, nil, err
	}

	bodyBytes, err := requestutils.Read(ctx, resp.Body)
	if err != nil {
		return resp, nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if debug {
		logger.Debug().Str("type", "http.Response").Int("status", resp.StatusCode).Msg(string(bodyBytes))
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if v != nil {
			if err := json.Unmarshal(bodyBytes, v); err != nil {
				return resp, bodyBytes, errors.Wrap(err, ErrUnableToDecode)
			}
		}
		return resp, bodyBytes, nil
	}

	logger.Warn().
		Int("response_status", resp.StatusCode).
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Msg("failed http client call")

	return resp, bodyBytes, errors.Wrap(nil, ErrProtocolError)
}

// RespErrData - error data for http response
type RespErrData struct {
	ResponseHeaders interface{}
	Body            interface{}
}

// Do the specified http request, decoding the JSON result into v
func (c *SimpleHTTPClient) Do(ctx context.Context, req *http.Request, v interface{}) (*http.Response, error) {
	resp, body, err := c.do(ctx, req, v)
	if err != nil {
		if resp != nil {
			return resp, NewHTTPError(err, req.URL.String(), "response", resp.StatusCode, RespErrData{
				ResponseHeaders: resp.Header,
				Body:            string(body),
			})
		}
		return nil, fmt.Errorf("failed c.do, no response body: %w", err)
	}
	return resp, nil
}
