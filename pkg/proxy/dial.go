package proxy

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/zack890924/httpcacheproxy/pkg/constants"
	"github.com/zack890924/httpcacheproxy/pkg/errors"
)

// SplitHostPort splits a Host-header-shaped value ("name" or "name:port")
// at the last colon, falling back to defaultPort when no colon is present
// or the port segment doesn't parse as a number. IPv6 literals in bracket
// notation are not special-cased — splitting at the last colon of
// "[::1]:443" works, but a bare "::1" without a port is mis-split, a known
// limitation inherited as-is.
func SplitHostPort(hostHeader string, defaultPort int) (string, int) {
	idx := strings.LastIndexByte(hostHeader, ':')
	if idx < 0 {
		return hostHeader, defaultPort
	}
	port, err := strconv.Atoi(hostHeader[idx+1:])
	if err != nil {
		return hostHeader, defaultPort
	}
	return hostHeader[:idx], port
}

// DialOrigin opens an IPv4-only TCP connection to host:port, matching the
// original's AI_FAMILY=AF_INET restriction on outbound connections — the
// "tcp4" network forces Go's own resolver down the IPv4-only path rather
// than needing a separate DNS lookup step.
//
// Grounded on pkg/transport/transport.go's connectTCP, simplified from its
// resolve-then-dial two-step (built for configurable ConnectIP/DNS timeout
// overrides this proxy doesn't need) to a single DialContext call.
func DialOrigin(host string, port int) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultConnTimeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: constants.DefaultConnTimeout}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := dialer.DialContext(ctx, "tcp4", addr)
	if err != nil {
		return nil, errors.NewUpstreamError("dial", host, port, err)
	}
	return conn, nil
}

