// Package server exposes a widget repository over HTTP/JSON.
//
// Routes:
//
//	GET    /widgets/all          every widget, ascending z
//	GET    /widgets?page=&size=  one page of the same listing
//	GET    /widgets/{id}
//	POST   /widgets
//	PUT    /widgets/{id}
//	DELETE /widgets/{id}
//
// Errors are returned as {"type": <status text>, "message": <detail>}.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roach88/widgetd/internal/repository"
)

// DefaultPageSize is used when a page request omits size.
const DefaultPageSize = 50

// Server routes HTTP requests to a Repository.
type Server struct {
	repo            repository.Repository
	defaultPageSize int
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithDefaultPageSize sets the page size used when a request omits one.
func WithDefaultPageSize(n int) Option {
	return func(s *Server) {
		s.defaultPageSize = n
	}
}

// WithLogger sets the logger for access and error records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server over repo.
func New(repo repository.Repository, opts ...Option) *Server {
	s := &Server{
		repo:            repo,
		defaultPageSize: DefaultPageSize,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in request-id and access-log
// middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/widgets/all", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/widgets", s.handleListPage).Methods(http.MethodGet)
	r.HandleFunc("/widgets", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/widgets/{id:-?[0-9]+}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/widgets/{id:-?[0-9]+}", s.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/widgets/{id:-?[0-9]+}", s.handleDelete).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	return withRequestID(s.withAccessLog(r))
}
