package tunnel

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/btouchard/taskcast/internal/config"
)

// Tunnel exposes the local dispatch and channel endpoints via a public HTTPS URL.
type Tunnel interface {
	Start(ctx context.Context, localAddr string) (publicURL string, err error)
	Close() error
	PublicURL() string
	Listener() net.Listener
}

// New builds the tunnel selected by cfg.Provider. An empty provider means ngrok.
func New(cfg config.TunnelConfig) (Tunnel, error) {
	switch cfg.Provider {
	case "", "ngrok":
		return NewNgrok(cfg.AuthToken, cfg.Domain), nil
	default:
		return nil, fmt.Errorf("unknown tunnel provider %q", cfg.Provider)
	}
}

// httpsURL turns a listener address into a browser-usable URL.
func httpsURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "https://" + addr
}

// wsURL returns the websocket form of a public URL, used when printing channel endpoints.
func wsURL(publicURL string) string {
	switch {
	case strings.HasPrefix(publicURL, "https://"):
		return "wss://" + strings.TrimPrefix(publicURL, "https://")
	case strings.HasPrefix(publicURL, "http://"):
		return "ws://" + strings.TrimPrefix(publicURL, "http://")
	default:
		return publicURL
	}
}

// ChannelURL joins a public URL and a channel namespace into a websocket URL.
func ChannelURL(publicURL, namespace string) string {
	return strings.TrimRight(wsURL(publicURL), "/") + namespace
}
