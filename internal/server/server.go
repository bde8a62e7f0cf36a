// Package server implements the accept loop for the adaptive-streaming
// receiver: one TCP listener accepting connections, a per-IP reconnect
// throttle adapted from controller/server.go's WAF cache, and one
// receiver.Core spawned per accepted connection.
package server

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"moto/internal/analytics"
	"moto/internal/receiver"
)

// maxConnectsPerWindow and the cache window below adapt controller/server.go's
// "no more than 200 requests per 30s per IP" WAF rule to the much lower
// connection rate expected of an adaptive-streaming receiver.
const (
	maxConnectsPerWindow = 20
	throttleWindow       = 30 * time.Second
	throttleSweep        = 1 * time.Minute
)

// Config bundles the bits of internal/config.Setting the accept loop needs.
type Config struct {
	Listen  string
	Monitor receiver.MonitorConfig
}

// Server owns the listener and the per-IP reconnect cache.
type Server struct {
	cfg      Config
	log      *zap.Logger
	stats    *analytics.Analytics
	connects *cache.Cache
}

// New builds a Server. stats may be nil if no stat_path was configured.
func New(cfg Config, stats *analytics.Analytics, log *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		stats:    stats,
		connects: cache.New(throttleWindow, throttleSweep),
	}
}

// Run listens on cfg.Listen and serves connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	defer listener.Close()
	s.log.Info("server listening", zap.String("addr", s.cfg.Listen))

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				wg.Wait()
				return nil
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		clientIP := hostOf(conn.RemoteAddr().String())
		if s.throttled(clientIP) {
			s.log.Warn("too many reconnects, dropping", zap.String("ip", clientIP))
			conn.Close()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, conn)
		}()
	}
}

func (s *Server) throttled(clientIP string) bool {
	if count, found := s.connects.Get(clientIP); found {
		if count.(int) >= maxConnectsPerWindow {
			return true
		}
		s.connects.Increment(clientIP, 1)
		return false
	}
	s.connects.Set(clientIP, 1, cache.DefaultExpiration)
	return false
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	core := receiver.New(conn, s.cfg.Monitor, s.stats, s.log)
	if err := core.Run(ctx); err != nil {
		s.log.Warn("connection ended with error", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
	}
}

func hostOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}
