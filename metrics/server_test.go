package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_CreatesServerWithAddress(t *testing.T) {
	server := NewServer(":9999")

	assert.NotNil(t, server)
	assert.Equal(t, ":9999", server.Addr())
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0")
	require.NoError(t, server.Start())
	assert.NotEqual(t, "127.0.0.1:0", server.Addr())

	Connected.WithLabelValues("server-test").Set(1)

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ipsec_client_connected{entry="server-test"} 1`)
	assert.NoError(t, server.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	_, err = http.Get("http://" + server.Addr() + "/metrics")
	assert.Error(t, err)
}

func TestServer_StartFailsOnBusyAddress(t *testing.T) {
	first := NewServer("127.0.0.1:0")
	require.NoError(t, first.Start())
	defer first.Shutdown(context.Background())

	second := NewServer(first.Addr())
	assert.Error(t, second.Start())
}
