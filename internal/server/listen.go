package server

import (
	"fmt"
	"net"
	"os"

	"github.com/vinayprograms/agentkit/logging"
	"tailscale.com/tsnet"
)

// ListenConfig selects the listener for Serve.
type ListenConfig struct {
	Addr      string
	Tailscale bool   // join the tailnet instead of binding a local port
	Hostname  string // tailnet machine name
	StateDir  string
	AuthKey   string
}

// Listen opens a plain TCP listener, or a tailnet listener when
// Tailscale is set. The returned close function releases the tailnet
// node; it is a no-op for TCP.
func Listen(cfg ListenConfig) (net.Listener, func() error, error) {
	if !cfg.Tailscale {
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return nil, nil, fmt.Errorf("listening on %s: %w", cfg.Addr, err)
		}
		return ln, func() error { return nil }, nil
	}

	if cfg.StateDir != "" {
		if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
			return nil, nil, fmt.Errorf("creating tailnet state directory: %w", err)
		}
	}
	logger := logging.New().WithComponent("tailnet")
	ts := &tsnet.Server{
		Hostname: cfg.Hostname,
		Dir:      cfg.StateDir,
		AuthKey:  cfg.AuthKey,
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), nil)
		},
	}
	ln, err := ts.Listen("tcp", cfg.Addr)
	if err != nil {
		ts.Close()
		return nil, nil, fmt.Errorf("joining tailnet as %s: %w", cfg.Hostname, err)
	}
	return ln, ts.Close, nil
}
