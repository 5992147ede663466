package host

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/framelink/internal/endpoint"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/origin"
	"github.com/danmuck/framelink/internal/transport/channel"
	"github.com/danmuck/framelink/internal/transport/legacy"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// DefaultChannelPath is where embedded contexts dial the host.
const DefaultChannelPath = "/framelink/channel"

// ServerConfig configures the host HTTP surface.
type ServerConfig struct {
	ID           string
	Addr         string
	CORSOrigins  []string
	ChannelPath  string
	ReceiverPath string
	Version      string
	// CertFile and KeyFile switch the listener to TLS when both are set.
	CertFile string
	KeyFile  string
}

// Server serves the channel endpoint, the legacy receiver and operational
// routes for one host context.
type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	cfg        ServerConfig
	router     *gin.Engine
	acceptor   *channel.Acceptor
	receiver   *legacy.Receiver
	dispatcher *endpoint.Dispatcher
	cors       gin.HandlerFunc
	http       *http.Server
}

// NewServer builds the router. Inbound channel messages are emitted on sink;
// legacy navigations are checked against whitelist and dispatched directly.
func NewServer(cfg ServerConfig, sink channel.Sink, dispatcher *endpoint.Dispatcher, whitelist *origin.Whitelist) (*Server, error) {
	cfg = cfg.withDefaults()
	acceptor, err := channel.NewAcceptor(sink)
	if err != nil {
		return nil, err
	}
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, cfg.ID))
	r.Use(observability.RequestMetricsMiddleware(cfg.ID))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:         cfg.ID,
		Addr:       cfg.Addr,
		Appeared:   time.Now(),
		cfg:        cfg,
		router:     r,
		acceptor:   acceptor,
		receiver:   legacy.NewReceiver(dispatcher, whitelist),
		dispatcher: dispatcher,
		cors: cors.New(cors.Config{
			AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}),
	}
	s.RegisterRoutes()
	return s, nil
}

func (c ServerConfig) withDefaults() ServerConfig {
	if strings.TrimSpace(c.ID) == "" {
		c.ID = "framehost"
	}
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":9000"
	}
	if c.ChannelPath == "" {
		c.ChannelPath = DefaultChannelPath
	}
	if c.ReceiverPath == "" {
		c.ReceiverPath = legacy.DefaultReceiverPath
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	return c
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Acceptor exposes the channel acceptor, mostly for connection counts.
func (s *Server) Acceptor() *channel.Acceptor {
	return s.acceptor
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"uptime":   time.Since(s.Appeared).String(),
			"host":     s.ID,
			"channels": s.acceptor.Count(),
			"version":  s.cfg.Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET(s.cfg.ChannelPath, gin.WrapH(s.acceptor))

	s.router.GET(s.cfg.ReceiverPath, s.receiver.Handle)

	// Channel and receiver routes enforce the origin whitelist per message,
	// so CORS only guards the listing.
	s.router.GET("/framelink/endpoints", s.cors, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"endpoints": s.dispatcher.Registry().Names(),
		})
	})
}

// Run listens on Addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tlsEnabled := s.cfg.CertFile != "" && s.cfg.KeyFile != ""
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("host", s.ID).Str("addr", ln.Addr().String()).Bool("tls", tlsEnabled).Msg("host listening")
		if tlsEnabled {
			errCh <- s.http.ServeTLS(ln, s.cfg.CertFile, s.cfg.KeyFile)
			return
		}
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.acceptor.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Str("host", s.ID).Msg("host stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if normalized, ok := origin.Normalize(o); ok {
			out = append(out, normalized)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
