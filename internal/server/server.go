package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/harshithgowdakt/heapdb/internal/engine"
	"github.com/harshithgowdakt/heapdb/internal/wal"
)

// Server is the heapdb HTTP server.
type Server struct {
	eng     *engine.Engine
	log     *wal.Log
	addr    string
	handler *QueryHandler
	logger  *zap.Logger
}

// NewServer creates a new server.
func NewServer(eng *engine.Engine, log *wal.Log, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		eng:     eng,
		log:     log,
		addr:    addr,
		handler: NewQueryHandler(eng, logger),
		logger:  logger,
	}
}

// Start starts the HTTP server and the background WAL flusher.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handler.HandleQuery)
	mux.HandleFunc("/ping", s.handler.HandlePing)

	go s.runFlusher(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	s.logger.Info("heapdb server listening", zap.String("addr", s.addr))
	return srv.ListenAndServe()
}

// runFlusher periodically forces the WAL to disk so unsynced records
// from aborted or in-flight work do not pile up.
func (s *Server) runFlusher(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.log.FlushAll(); err != nil {
				s.logger.Error("wal flush failed", zap.Error(err))
			}
		}
	}
}
