package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrTransport matches every *TransportError.
var ErrTransport = errors.New("clinic api transport error")

// TransportError reports a failed call to the clinic API: the connection
// failed, the status was not 2xx, or the body could not be decoded.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

type Options struct {
	BaseURL string
	// Token is a static bearer token. Ignored when ClientID is set.
	Token        string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
	// MaxChars tail-truncates the texts sent for safety checks. Zero disables it.
	MaxChars int
}

type Client struct {
	baseURL  string
	http     *http.Client
	maxChars int
	tracer   trace.Tracer
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	// The oauth2 transports take their base client from the context.
	base := &http.Client{Timeout: opts.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	var hc *http.Client
	switch {
	case opts.ClientID != "":
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			Scopes:       opts.Scopes,
		}
		hc = cc.Client(ctx)
	case opts.Token != "":
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	default:
		hc = base
	}
	hc.Timeout = opts.Timeout

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     hc,
		maxChars: opts.MaxChars,
		tracer:   otel.Tracer("clinicapi"),
	}
}

func (c *Client) patientPath(patientID, suffix string) string {
	return "/patients/" + url.PathEscape(patientID) + suffix
}

// do sends the request and decodes a JSON response into out when out is not nil.
func (c *Client) do(ctx context.Context, op string, req *http.Request, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
	)

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, resp.Status)
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		span.RecordError(err)
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, op, req, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
