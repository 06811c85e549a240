package aireg_protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPingClient(t *testing.T, ft *fakeTransport, h *http.Client) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = zap.NewNop()
	c, err := NewClient(cfg, nil, WithTransport(ft), WithHTTPClient(h))
	require.NoError(t, err)
	return c
}

func TestPingServer(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
	)
	record := func(r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/get-only", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte("hello"))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ft := newFakeTransport()
	c := newPingClient(t, ft, srv.Client())
	owner := solana.NewWallet().PublicKey()

	tests := []struct {
		path      string
		available bool
		code      int
		methods   []string
	}{
		{"/ok", true, http.StatusNoContent, []string{http.MethodHead}},
		{"/get-only", true, http.StatusOK, []string{http.MethodHead, http.MethodGet}},
		{"/broken", false, http.StatusBadGateway, []string{http.MethodHead}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			mu.Lock()
			methods = nil
			mu.Unlock()
			id := "srv" + tt.path[1:]
			putServer(t, ft, c, &McpServerEntry{ServerID: id, Name: "n", Version: "1", EndpointURL: srv.URL + tt.path, Owner: owner})

			res, err := c.McpServers().Ping(context.Background(), id, owner)
			require.NoError(t, err)
			assert.Equal(t, tt.available, res.Available)
			assert.Equal(t, tt.code, res.StatusCode)
			assert.Equal(t, srv.URL+tt.path, res.Endpoint)
			assert.False(t, res.CheckedAt.IsZero())
			mu.Lock()
			assert.Equal(t, tt.methods, methods)
			mu.Unlock()
		})
	}
}

func TestPingUnreachableEndpointIsAResult(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	ft := newFakeTransport()
	c := newPingClient(t, ft, http.DefaultClient)
	owner := solana.NewWallet().PublicKey()
	putServer(t, ft, c, &McpServerEntry{ServerID: "gone", Name: "n", Version: "1", EndpointURL: endpoint, Owner: owner})

	res, err := c.McpServers().Ping(context.Background(), "gone", owner)
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Zero(t, res.StatusCode)
	assert.NotEmpty(t, res.Error)
}

func TestPingErrors(t *testing.T) {
	ft := newFakeTransport()
	c := newPingClient(t, ft, http.DefaultClient)
	owner := solana.NewWallet().PublicKey()

	_, err := c.McpServers().Ping(context.Background(), "missing", owner)
	assert.ErrorIs(t, err, ErrNotFound)

	putServer(t, ft, c, &McpServerEntry{ServerID: "ipfs", Name: "n", Version: "1", EndpointURL: "ipfs://cid", Owner: owner})
	_, err = c.McpServers().Ping(context.Background(), "ipfs", owner)
	assert.ErrorIs(t, err, ErrValidation)
}
