package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of the fsmtask engine the HTTP API drives.
type Engine interface {
	Definition() *definition.Definition
	Graph(current string) string
	Create(ctx context.Context, obj domain.Object) (domain.Object, error)
	SendEventTo(ctx context.Context, searchParams map[string]any, event string, payload any) (domain.Object, error)
	List(ctx context.Context, searchParams map[string]any) ([]domain.Object, error)
	Find(ctx context.Context, searchParams map[string]any) (domain.Object, error)
	AvailableTransitions(ctx context.Context, obj domain.Object, payload any) []domain.Transition
}

// EventRequest is the body of POST /tasks/{id}/events.
type EventRequest struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Server serves the task API for one engine.
type Server struct {
	Engine   Engine
	gatherer prometheus.Gatherer
	idField  string
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer exposes the given registry on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithIDField sets the object field the {id} path segment matches. Defaults to "id".
func WithIDField(field string) Option {
	return func(s *Server) {
		s.idField = field
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		idField: domain.DefaultIDField,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/machine", s.GetMachine)
	r.Get("/machine/graph", s.GetGraph)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.ListTasks)
		r.Post("/", s.CreateTask)
		r.Get("/{id}", s.GetTask)
		r.Post("/{id}/events", s.SendEvent)
		r.Get("/{id}/transitions", s.GetTransitions)
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetMachine handles GET /machine and returns the schema.
func (s *Server) GetMachine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Definition().Schema())
}

// GetGraph handles GET /machine/graph. With ?task=<id> the task's state is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	current := ""
	if id := r.URL.Query().Get("task"); id != "" {
		obj, err := s.Engine.Find(r.Context(), s.byID(id))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		current = s.Engine.Definition().GetObjectState(obj)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, s.Engine.Graph(current))
}

// ListTasks handles GET /tasks. Every query parameter becomes an equality filter.
func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := make(map[string]any)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			filter[k] = v[0]
		}
	}
	tasks, err := s.Engine.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Object{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetTask handles GET /tasks/{id}.
func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	obj, err := s.Engine.Find(r.Context(), s.byID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// CreateTask handles POST /tasks: the object is started and then saved.
func (s *Server) CreateTask(w http.ResponseWriter, r *http.Request) {
	var obj domain.Object
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
		s.writeError(w, r, &badRequestError{err})
		return
	}
	created, err := s.Engine.Create(r.Context(), obj)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// SendEvent handles POST /tasks/{id}/events.
func (s *Server) SendEvent(w http.ResponseWriter, r *http.Request) {
	var body EventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, &badRequestError{err})
		return
	}
	if body.Event == "" {
		s.writeError(w, r, &badRequestError{errors.New("event is required")})
		return
	}
	obj, err := s.Engine.SendEventTo(r.Context(), s.byID(chi.URLParam(r, "id")), body.Event, body.Payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// GetTransitions handles GET /tasks/{id}/transitions.
func (s *Server) GetTransitions(w http.ResponseWriter, r *http.Request) {
	obj, err := s.Engine.Find(r.Context(), s.byID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	transitions := s.Engine.AvailableTransitions(r.Context(), obj, nil)
	if transitions == nil {
		transitions = []domain.Transition{}
	}
	writeJSON(w, http.StatusOK, transitions)
}

func (s *Server) byID(id string) map[string]any {
	return map[string]any{s.idField: id}
}

type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "invalid request body: " + e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

// StatusCode maps an engine error to its HTTP status and error code.
func StatusCode(err error) (int, string) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrMissingID):
		return http.StatusBadRequest, "missing_id"
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "not_found"
	case domain.IsIllegalTransitionError(err):
		return http.StatusConflict, "illegal_transition"
	case domain.IsAlreadyStartedError(err):
		return http.StatusConflict, "already_started"
	case domain.IsGuardRejectedError(err):
		return http.StatusUnprocessableEntity, "guard_rejected"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.DebugContext(r.Context(), "request refused", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
