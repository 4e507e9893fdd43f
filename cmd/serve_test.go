package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownOnDoneDrainsInflightRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	shutdownDone := make(chan struct{})
	go func() {
		shutdownOnDone(ctx, srv, 5*time.Second)
		close(shutdownDone)
	}()
	go srv.Serve(ln)

	var resp *http.Response
	reqDone := make(chan error, 1)
	go func() {
		r, err := http.Get("http://" + ln.Addr().String() + "/slow")
		resp = r
		reqDone <- err
	}()

	// Cancel while the request is in flight; shutdown must wait for it.
	<-started
	cancel()
	<-shutdownDone

	require.NoError(t, <-reqDone)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
