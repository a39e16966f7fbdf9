package transport

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-donations/core"
)

const MechanismSocket = "socket"

// DialContextFunc opens the raw connection used by SocketMechanism.
type DialContextFunc func(ctx context.Context, network string, address string) (net.Conn, error)

// SocketMechanism writes the verification request over a raw TCP or TLS
// connection and reads a single response. It is the fallback when no HTTP
// client is available.
type SocketMechanism struct {
	Dial                 DialContextFunc
	TLSConfig            *tls.Config
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Disabled             bool
}

func NewSocketMechanism(tlsConfig *tls.Config) *SocketMechanism {
	dialer := &net.Dialer{Timeout: defaultClientTimeout}
	return &SocketMechanism{
		Dial:                 dialer.DialContext,
		TLSConfig:            tlsConfig,
		Timeout:              defaultClientTimeout,
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}
}

func (*SocketMechanism) Name() string {
	return MechanismSocket
}

func (m *SocketMechanism) Available(context.Context) bool {
	return m != nil && !m.Disabled && m.Dial != nil
}

func (m *SocketMechanism) Post(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if m == nil || m.Dial == nil {
		return core.TransportResponse{}, transportError(
			"transport: socket mechanism requires a dialer",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"mechanism": MechanismSocket},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint, err := parseEndpoint(req.Endpoint, MechanismSocket)
	if err != nil {
		return core.TransportResponse{}, err
	}
	secure := strings.EqualFold(endpoint.Scheme, "https")
	address := endpoint.Host
	if endpoint.Port() == "" {
		port := "80"
		if secure {
			port = "443"
		}
		address = net.JoinHostPort(endpoint.Hostname(), port)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = m.Timeout
	}
	requestCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	metadata := map[string]any{"mechanism": MechanismSocket, "address": address}
	conn, err := m.Dial(requestCtx, "tcp", address)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: open verification socket",
			http.StatusBadGateway,
			metadata,
		)
	}
	defer conn.Close()
	if deadline, ok := requestCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if secure {
		config := &tls.Config{MinVersion: tls.VersionTLS12}
		if m.TLSConfig != nil {
			config = m.TLSConfig.Clone()
		}
		if config.ServerName == "" {
			config.ServerName = endpoint.Hostname()
		}
		tlsConn := tls.Client(conn, config)
		if err := tlsConn.HandshakeContext(requestCtx); err != nil {
			return core.TransportResponse{}, transportWrapError(
				err,
				goerrors.CategoryExternal,
				"transport: verification socket handshake",
				http.StatusBadGateway,
				metadata,
			)
		}
		conn = tlsConn
	}

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create socket request",
			http.StatusBadRequest,
			metadata,
		)
	}
	applyRequestHeaders(httpReq, req)
	httpReq.Close = true

	if err := httpReq.Write(conn); err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: write verification request",
			http.StatusBadGateway,
			metadata,
		)
	}
	httpRes, err := http.ReadResponse(bufio.NewReader(conn), httpReq)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read verification status",
			http.StatusBadGateway,
			metadata,
		)
	}
	defer httpRes.Body.Close()

	return readResponse(httpRes, resolveResponseBodyLimit(m.MaxResponseBodyBytes), MechanismSocket)
}

var _ core.TransportMechanism = (*SocketMechanism)(nil)
