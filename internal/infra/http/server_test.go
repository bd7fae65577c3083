//go:build !integration

package http

import (
	"context"
	"net"
	nethttp "net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestServer_StartAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	l := zerolog.Nop()
	s := NewServer(port, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusNoContent)
	}), &l)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	deadline := time.Now().Add(2 * time.Second)
	var resp *nethttp.Response
	for time.Now().Before(deadline) {
		resp, err = nethttp.Get("http://127.0.0.1" + s.Addr())
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never answered: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != nethttp.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Start returned %v after graceful shutdown", err)
	}
}
