// Package constants defines magic numbers and default values used throughout the proxy.
package constants

import "time"

// Connection timeouts and limits
const (
	DefaultConnTimeout = 10 * time.Second
	DefaultReadTimeout = 30 * time.Second
)

// Framing caps.
const (
	MaxHeaderBytes = 1 * 1024 * 1024   // 1 MiB request/response header block
	MaxBodyBytes   = 50 * 1024 * 1024  // 50 MiB response body
	TunnelBufSize  = 8 * 1024          // 8 KiB per tunnel read/write
	InitReadBuf    = 64 * 1024         // 64 KiB initial socket read buffer
)

// Cache store defaults.
const (
	DefaultCacheCapacity = 10
	DefaultCacheTTL      = 60 * time.Second
)

// Worker pool / listener defaults.
const (
	DefaultWorkerCount = 4
	DefaultListenPort  = 12345
	ListenBacklog      = 10
)

// DefaultUpstreamPort is used when a Host header carries no explicit port.
const DefaultUpstreamPort = 80

// DefaultConnectPort is used when a CONNECT target carries no explicit port.
const DefaultConnectPort = 443

// ProxyName/ProxyVersion are emitted in the Proxy-Agent header of CONNECT replies.
const (
	ProxyName    = "httpcacheproxy"
	ProxyVersion = "1.0.0"
)
