// Package transport issues conditional GETs against the flag-delivery service.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flagbase/flagbase-go/internal/domain"
	"github.com/flagbase/flagbase-go/internal/telemetry"
)

// Header names exchanged with the service.
const (
	HeaderSDKKey = "x-sdk-key"
	HeaderETag   = "ETag"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 32 << 20

// Request describes one conditional fetch.
type Request struct {
	URL       string
	ServerKey string
	ETag      string
}

// Response is a successfully classified reply. Flags and ETag are only set
// when StatusCode is 200.
type Response struct {
	StatusCode int
	ETag       string
	Flags      []domain.RawFlag
}

// NotModified reports whether the service confirmed the cached flagset.
func (r *Response) NotModified() bool {
	return r.StatusCode == http.StatusNotModified
}

type envelope struct {
	Data *[]struct {
		Attributes map[string]interface{} `json:"attributes"`
	} `json:"data"`
}

// Config configures an HTTPClient.
type Config struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Telemetry  telemetry.Provider
}

// HTTPClient performs the poller's conditional GET.
type HTTPClient struct {
	httpClient *http.Client
	telemetry  telemetry.Provider
}

// NewHTTPClient creates a new transport client
func NewHTTPClient(config Config) *HTTPClient {
	hc := config.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: config.Timeout}
	}
	tp := config.Telemetry
	if tp == nil {
		tp = telemetry.NewNoOp()
	}
	return &HTTPClient{httpClient: hc, telemetry: tp}
}

// Fetch issues one GET. It returns a *domain.TransientError for every
// outcome other than 200 or 304.
func (c *HTTPClient) Fetch(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "flagbase.fetch",
		telemetry.WithAttributes(
			telemetry.String("http.method", http.MethodGet),
			telemetry.String("http.url", req.URL),
		),
	)
	defer span.End()

	resp, err := c.do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		telemetry.Int("http.status_code", resp.StatusCode),
		telemetry.Int("flagbase.flag_count", len(resp.Flags)),
	)
	return resp, nil
}

func (c *HTTPClient) do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, domain.NewTransientError(domain.FaultNetwork, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set(HeaderSDKKey, req.ServerKey)
	httpReq.Header.Set(HeaderETag, req.ETag)
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewTransientError(domain.FaultNetwork, fmt.Errorf("request failed: %w", err))
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK:
		return decode(httpResp)
	case http.StatusNotModified:
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxBodyBytes))
		return &Response{StatusCode: http.StatusNotModified}, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, domain.NewStatusError(httpResp.StatusCode, string(body))
	}
}

func decode(httpResp *http.Response) (*Response, error) {
	etag := httpResp.Header.Get(HeaderETag)
	if etag == "" {
		return nil, domain.NewTransientError(domain.FaultDecode, errors.New("response is missing the Etag header"))
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, domain.NewTransientError(domain.FaultNetwork, fmt.Errorf("failed to read response body: %w", err))
	}
	if len(body) > maxBodyBytes {
		return nil, domain.NewTransientError(domain.FaultDecode, fmt.Errorf("response body exceeds %d bytes", maxBodyBytes))
	}

	var parsed envelope
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.NewTransientError(domain.FaultDecode, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if parsed.Data == nil {
		return nil, domain.NewTransientError(domain.FaultDecode, errors.New(`response has no "data" field`))
	}

	flags := make([]domain.RawFlag, 0, len(*parsed.Data))
	for i, item := range *parsed.Data {
		flag := domain.RawFlag(item.Attributes)
		if _, err := flag.Key(); err != nil {
			return nil, domain.NewTransientError(domain.FaultDecode, fmt.Errorf("data[%d]: %w", i, err))
		}
		flags = append(flags, flag)
	}

	return &Response{
		StatusCode: http.StatusOK,
		ETag:       etag,
		Flags:      flags,
	}, nil
}
