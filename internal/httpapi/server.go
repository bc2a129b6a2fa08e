package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/driptext/driptext/internal/service"
)

// Server exposes the relay over HTTP: text registration, users,
// assignments, inbound replies and runtime settings.
type Server struct {
	svc *service.Service

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func NewServer(svc *service.Service, opts ...Option) *Server {
	s := &Server{
		svc: svc,
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/texts", s.handleTexts)
	s.mux.HandleFunc("/api/texts/", s.handleTextByID)
	s.mux.HandleFunc("/api/users", s.handleUsers)
	s.mux.HandleFunc("/api/assignments", s.handleAssignments)
	s.mux.HandleFunc("/api/assignments/", s.handleAssignmentSub)
	s.mux.HandleFunc("/api/replies", s.handleReplies)
	s.mux.HandleFunc("/api/dispatch", s.handleDispatch)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/status", s.handleStatus)
}
