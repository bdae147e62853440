package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	ngroklib "golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"
)

// ErrMissingAuthToken is returned by Start when no ngrok token was configured.
var ErrMissingAuthToken = errors.New("ngrok auth token is required (set tunnel.authtoken in config or TASKCAST_NGROK_AUTHTOKEN env var)")

// NgrokTunnel serves the coordinator through an ngrok HTTP endpoint.
type NgrokTunnel struct {
	authToken string
	domain    string

	mu       sync.Mutex
	listener net.Listener
	url      string
}

// NewNgrok creates an ngrok tunnel. domain is optional; without it ngrok assigns a random one.
func NewNgrok(authToken, domain string) *NgrokTunnel {
	return &NgrokTunnel{
		authToken: authToken,
		domain:    domain,
	}
}

func (n *NgrokTunnel) endpoint() ngrokconfig.Tunnel {
	if n.domain != "" {
		return ngrokconfig.HTTPEndpoint(ngrokconfig.WithDomain(n.domain))
	}
	return ngrokconfig.HTTPEndpoint()
}

// Start opens the ngrok listener and returns its public URL.
// ngrok owns the listener; localAddr is only logged.
func (n *NgrokTunnel) Start(ctx context.Context, localAddr string) (string, error) {
	if n.authToken == "" {
		return "", ErrMissingAuthToken
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener != nil {
		return n.url, nil
	}

	slog.Info("starting ngrok tunnel", "local_addr", localAddr, "domain", n.domain)

	listener, err := ngroklib.Listen(ctx, n.endpoint(), ngroklib.WithAuthtoken(n.authToken))
	if err != nil {
		return "", fmt.Errorf("failed to create ngrok tunnel: %w", err)
	}

	n.listener = listener
	n.url = httpsURL(listener.Addr().String())

	slog.Info("ngrok tunnel established", "public_url", n.url)
	return n.url, nil
}

// Close tears the tunnel down. Closing an unstarted tunnel is a no-op.
func (n *NgrokTunnel) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listener == nil {
		return nil
	}

	slog.Info("closing ngrok tunnel", "public_url", n.url)

	err := n.listener.Close()
	n.listener = nil
	n.url = ""
	if err != nil {
		return fmt.Errorf("failed to close ngrok tunnel: %w", err)
	}
	return nil
}

// PublicURL returns the public URL, empty before Start.
func (n *NgrokTunnel) PublicURL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.url
}

// Listener returns the ngrok listener to pass to http.Server.Serve.
func (n *NgrokTunnel) Listener() net.Listener {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listener
}
