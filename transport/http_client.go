package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-donations/core"
)

const MechanismHTTPClient = "http_client"

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 1 << 20 // 1 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClientMechanism posts the verification body through an HTTP client.
type HTTPClientMechanism struct {
	Client               HTTPDoer
	MaxResponseBodyBytes int64
	Disabled             bool
}

func NewHTTPClientMechanism(client HTTPDoer) *HTTPClientMechanism {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &HTTPClientMechanism{
		Client:               client,
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}
}

func (*HTTPClientMechanism) Name() string {
	return MechanismHTTPClient
}

func (m *HTTPClientMechanism) Available(context.Context) bool {
	return m != nil && !m.Disabled && m.Client != nil
}

func (m *HTTPClientMechanism) Post(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if m == nil || m.Client == nil {
		return core.TransportResponse{}, transportError(
			"transport: http client mechanism requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"mechanism": MechanismHTTPClient},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint, err := parseEndpoint(req.Endpoint, MechanismHTTPClient)
	if err != nil {
		return core.TransportResponse{}, err
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			http.StatusBadRequest,
			map[string]any{"mechanism": MechanismHTTPClient, "endpoint": endpoint.String()},
		)
	}
	applyRequestHeaders(httpReq, req)

	httpRes, err := m.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute verification request",
			http.StatusBadGateway,
			map[string]any{"mechanism": MechanismHTTPClient, "endpoint": endpoint.String()},
		)
	}
	defer httpRes.Body.Close()

	return readResponse(httpRes, resolveResponseBodyLimit(m.MaxResponseBodyBytes), MechanismHTTPClient)
}

func parseEndpoint(raw string, mechanism string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, transportError(
			"transport: verification endpoint is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"mechanism": mechanism},
		)
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		if err == nil {
			err = fmt.Errorf("missing host")
		}
		return nil, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid verification endpoint",
			http.StatusBadRequest,
			map[string]any{"mechanism": mechanism, "endpoint": raw},
		)
	}
	return parsed, nil
}

func applyRequestHeaders(httpReq *http.Request, req core.TransportRequest) {
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "application/x-www-form-urlencoded"
	}
	httpReq.Header.Set("Content-Type", contentType)
	if agent := strings.TrimSpace(req.UserAgent); agent != "" {
		httpReq.Header.Set("User-Agent", agent)
	}
	httpReq.ContentLength = int64(len(req.Body))
}

func readResponse(httpRes *http.Response, maxBodyBytes int64, mechanism string) (core.TransportResponse, error) {
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read verification response",
			http.StatusBadGateway,
			map[string]any{"mechanism": mechanism, "status_code": httpRes.StatusCode},
		)
	}
	if int64(len(body)) > maxBodyBytes {
		return core.TransportResponse{}, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{
				"mechanism":        mechanism,
				"status_code":      httpRes.StatusCode,
				"response_limit_b": maxBodyBytes,
			},
		)
	}
	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
	}, nil
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(limit int64) int64 {
	if limit > 0 {
		return limit
	}
	return defaultResponseBodyLimit
}

var _ core.TransportMechanism = (*HTTPClientMechanism)(nil)
