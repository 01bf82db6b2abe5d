// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Server serves a Collector on a TCP address.
type Server struct {
	listener net.Listener
	server   *http.Server
}

// Listen binds address (e.g. ":8790" or "127.0.0.1:0") for c.
func (c *Collector) Listen(address string) (*Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		server: &http.Server{
			Handler:           c.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
		},
	}, nil
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.server.Close()
	}()

	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Address returns the bound address in "host:port" format.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// URL returns the http:// origin of the server.
func (s *Server) URL() string {
	return "http://" + s.Address()
}

// Close stops the server.
func (s *Server) Close() error {
	return s.server.Close()
}
