package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchConnectionInfo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/client/servers/abc123/websocket", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{
				"socket": "wss://node.example/api/servers/abc123/ws",
				"token":  "jwt-token",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key", "abc123")
	info, err := c.FetchConnectionInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wss://node.example/api/servers/abc123/ws", info.SocketURL)
	assert.Equal(t, "jwt-token", info.Token)
}

func TestFetchConnectionInfo_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthenticated", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key", "abc123")
	_, err := c.FetchConnectionInfo(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestFetchConnectionInfo_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "abc123")
	_, err := c.FetchConnectionInfo(context.Background())
	assert.Error(t, err)
}

func TestFetchConnectionInfo_MissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"socket":""}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "abc123")
	_, err := c.FetchConnectionInfo(context.Background())
	assert.Error(t, err)
}

func TestFetchConnectionInfo_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "key", "abc123")
	_, err := c.FetchConnectionInfo(ctx)
	assert.Error(t, err)
}

func TestFrameHelpers(t *testing.T) {
	auth := AuthFrame("tok")
	assert.Equal(t, EventAuth, auth.Event)
	assert.Equal(t, "tok", auth.Arg())

	cmd := CommandFrame("list")
	assert.Equal(t, EventSendCommand, cmd.Event)
	assert.Equal(t, "list", cmd.Arg())

	assert.Equal(t, "", Frame{Event: EventTokenExpired}.Arg())
}
