package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-store-orders/internal/apperr"
)

// maxResponseSize caps how much of a store response is read (10MB).
const maxResponseSize = 10 * 1024 * 1024

// Client talks to the store admin API. All failures come back as
// *apperr.Error; nothing here panics on a bad response.
type Client struct {
	cfg     Config
	http    *http.Client
	tracer  trace.Tracer
	metrics *Metrics
	log     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its Timeout is forced to
// the configured bound when unset.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTracer(t trace.Tracer) Option { return func(c *Client) { c.tracer = t } }

func WithMetrics(m *Metrics) Option { return func(c *Client) { c.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
		tracer: otel.Tracer("github.com/ariefcatur/go-store-orders/internal/platform"),
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http.Timeout <= 0 {
		c.http.Timeout = cfg.Timeout
	}
	return c, nil
}

// call names one endpoint and the messages used when it fails.
type call struct {
	name    string // metric/span label
	method  string
	path    string
	query   url.Values
	body    any
	failure string // transport failure message
	remote  string // prefix for a platform-reported error
}

// envelope catches either spelling of the platform's error key.
type envelope struct {
	Error  json.RawMessage `json:"error"`
	Errors json.RawMessage `json:"errors"`
}

func (e envelope) message() (string, bool) {
	for _, raw := range []json.RawMessage{e.Error, e.Errors} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		return errorText(raw), true
	}
	return "", false
}

// errorText renders an error payload verbatim: strings unquoted,
// anything else as compact JSON.
func errorText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	u := c.cfg.BaseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, "platform."+cl.name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", cl.method),
		attribute.String("http.url", u),
	)

	start := time.Now()
	outcome := "ok"
	defer func() { c.metrics.observe(cl.name, outcome, time.Since(start)) }()

	fail := func(kind apperr.Kind, msg string, cause error) error {
		outcome = strings.ToLower(string(kind))
		span.RecordError(cause)
		span.SetStatus(codes.Error, msg)
		c.log.Warn("store call failed",
			zap.String("call", cl.name),
			zap.String("kind", string(kind)),
			zap.String("message", msg),
			zap.Error(cause),
		)
		return apperr.Wrap(kind, msg, cause)
	}

	var reqBody io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fail(apperr.KindTransport, cl.failure, fmt.Errorf("encode body: %w", err))
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, reqBody)
	if err != nil {
		return fail(apperr.KindTransport, cl.failure, err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.AccessToken != "" {
		req.Header.Set(AccessTokenHeader, c.cfg.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(apperr.KindTransport, cl.failure, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fail(apperr.KindTransport, cl.failure, fmt.Errorf("read body: %w", err))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= 400 {
			return fail(apperr.KindRemote, cl.remote+": "+resp.Status, fmt.Errorf("status %d", resp.StatusCode))
		}
		return fail(apperr.KindTransport, cl.failure, fmt.Errorf("decode body: %w", err))
	}
	if msg, ok := env.message(); ok {
		return fail(apperr.KindRemote, cl.remote+": "+msg, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return fail(apperr.KindRemote, cl.remote+": "+resp.Status, fmt.Errorf("status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fail(apperr.KindTransport, cl.failure, fmt.Errorf("decode %s: %w", cl.name, err))
		}
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
