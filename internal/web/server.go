package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mtanaka/courseforge/internal/gatherings"
	"github.com/mtanaka/courseforge/internal/gatherings/storage/sqlite"
	"github.com/mtanaka/courseforge/internal/platform/timeouts"
	"github.com/mtanaka/courseforge/internal/platform/webtoken"
)

// Config defines the inputs for the web server.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	DBPath      string
	TokenSecret []byte
}

// Server hosts the HTTP surface and a gRPC health endpoint.
type Server struct {
	httpAddr   string
	grpcAddr   string
	store      *sqlite.Store
	httpServer *http.Server
	grpcServer *grpc.Server
	healthSrv  *health.Server
}

// NewServer builds a configured web server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	dbPath := strings.TrimSpace(config.DBPath)
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}

	tokens, err := webtoken.NewManager(config.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("configure token manager: %w", err)
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open gathering store: %w", err)
	}
	service, err := gatherings.NewService(store, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	handler, err := NewHandler(service, tokens)
	if err != nil {
		store.Close()
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	server := &Server{
		httpAddr:   httpAddr,
		grpcAddr:   strings.TrimSpace(config.GRPCAddr),
		store:      store,
		httpServer: httpServer,
	}
	if server.grpcAddr != "" {
		server.healthSrv = health.NewServer()
		server.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		healthpb.RegisterHealthServer(server.grpcServer, server.healthSrv)
	}
	return server, nil
}

// ListenAndServe runs the HTTP server, and the gRPC health server when
// configured, until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("web server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 2)

	if s.grpcServer != nil {
		listener, err := net.Listen("tcp", s.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		s.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		log.Printf("web health listening on %s", listener.Addr())
		go func() {
			serveErr <- s.grpcServer.Serve(listener)
		}()
	}

	log.Printf("web listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.stopGRPC()
		return fmt.Errorf("serve: %w", err)
	}
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	s.stopGRPC()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) stopGRPC() {
	if s.grpcServer == nil {
		return
	}
	s.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.grpcServer.GracefulStop()
}

// Close releases the storage resources held by the server.
func (s *Server) Close() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("close gathering store: %v", err)
	}
}
