// Package panel talks to the Pterodactyl client API and defines the wire
// protocol of the console WebSocket it proxies.
package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// fetchTimeout bounds the credential exchange. The panel mints short-lived
// tokens, so a slow response is as useless as a failed one.
const fetchTimeout = 10 * time.Second

// ConnectionInfo is the one-time WebSocket endpoint the panel hands out.
// The token is single-use and time-boxed; a fresh pair must be fetched for
// every (re)connection attempt.
type ConnectionInfo struct {
	SocketURL string `json:"socket"`
	Token     string `json:"token"`
}

// CredentialFetcher exchanges an API credential for a one-time WebSocket
// URL and token. The console engine depends on this interface only, so
// tests substitute an in-process implementation.
type CredentialFetcher interface {
	FetchConnectionInfo(ctx context.Context) (ConnectionInfo, error)
}

// Client is the HTTP client for a single server on a Pterodactyl panel.
type Client struct {
	panelURL string
	apiKey   string
	serverID string
	http     *http.Client
}

// NewClient returns a panel client for the given server. The API key is a
// client-scoped key with websocket permission on serverID.
func NewClient(panelURL, apiKey, serverID string) *Client {
	return &Client{
		panelURL: strings.TrimRight(panelURL, "/"),
		apiKey:   apiKey,
		serverID: serverID,
		http:     &http.Client{Timeout: fetchTimeout},
	}
}

// FetchConnectionInfo requests a one-time console WebSocket endpoint.
// Any non-200 status, transport error, or malformed body is a fetch
// failure; the caller retries with backoff.
func (c *Client) FetchConnectionInfo(ctx context.Context) (ConnectionInfo, error) {
	url := fmt.Sprintf("%s/api/client/servers/%s/websocket", c.panelURL, c.serverID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ConnectionInfo{}, fmt.Errorf("building websocket details request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ConnectionInfo{}, fmt.Errorf("fetching websocket details: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ConnectionInfo{}, fmt.Errorf("fetching websocket details: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Data ConnectionInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ConnectionInfo{}, fmt.Errorf("decoding websocket details: %w", err)
	}
	if payload.Data.SocketURL == "" || payload.Data.Token == "" {
		return ConnectionInfo{}, fmt.Errorf("websocket details response missing socket or token")
	}
	return payload.Data, nil
}
