package server_test

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/safestack/pkg/lifecycle"
	"github.com/JaimeStill/safestack/pkg/server"
)

func TestServeAndShutdown(t *testing.T) {
	lc := lifecycle.New()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})

	srv := server.New("http", server.Options{
		Addr:            "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}, handler, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, srv.Start(lc))
	lc.WaitForStartup()

	require.Eventually(t, srv.Ready, time.Second, 10*time.Millisecond)
	assert.True(t, lc.Ready())

	resp, err := http.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	require.NoError(t, lc.Shutdown(2*time.Second))

	_, err = http.Get("http://" + srv.Addr() + "/")
	assert.Error(t, err)
}

func TestStartFailsOnBadAddress(t *testing.T) {
	lc := lifecycle.New()
	srv := server.New("http", server.Options{Addr: "127.0.0.1:-1"}, http.NotFoundHandler(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Error(t, srv.Start(lc))
}
