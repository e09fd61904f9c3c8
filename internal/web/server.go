package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conorfennell/knolstudy/internal/analytics"
	"github.com/conorfennell/knolstudy/internal/quiz"
	"github.com/conorfennell/knolstudy/internal/review"
	"github.com/conorfennell/knolstudy/internal/storage"
	decksync "github.com/conorfennell/knolstudy/internal/sync"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// DefaultQuizQuestions is the session size used when a request sets none.
const DefaultQuizQuestions = 10

var errBadRequest = errors.New("web: bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db        *storage.DB
	router    *http.ServeMux
	templates *template.Template
	tracker   *analytics.Tracker
	now       func() time.Time
	syncOpts  decksync.Options
	quizSize  int

	// mu serialises every change to card schedules, quiz sessions and
	// synced content.
	mu        sync.Mutex
	streakDay string
}

// Option customises a Server.
type Option func(*Server)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithTracker shares an analytics tracker with the server.
func WithTracker(t *analytics.Tracker) Option {
	return func(s *Server) { s.tracker = t }
}

// WithSyncOptions sets the options used by manual and scheduled syncs.
func WithSyncOptions(o decksync.Options) Option {
	return func(s *Server) { s.syncOpts = o }
}

// WithQuizQuestions sets the default number of questions per quiz.
func WithQuizQuestions(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.quizSize = n
		}
	}
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, opts ...Option) (*Server, error) {
	tpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		db:        db,
		router:    http.NewServeMux(),
		templates: tpl,
		tracker:   analytics.NewTracker(),
		now:       time.Now,
		quizSize:  DefaultQuizQuestions,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.syncOpts.Now == nil {
		s.syncOpts.Now = s.now
	}

	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Tracker returns the analytics tracker fed by the server.
func (s *Server) Tracker() *analytics.Tracker {
	return s.tracker
}

// Sync reconciles all sources while no review or quiz change is in flight.
func (s *Server) Sync(ctx context.Context) (decksync.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decksync.RunSync(ctx, s.db, s.syncOpts)
}

// routes sets up the routing for the server.
func (s *Server) routes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create sub-filesystem for static assets: %w", err)
	}
	s.router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.HandleFunc("GET /{$}", s.handleIndex)

	s.router.HandleFunc("GET /review/next", s.handleNextReview)
	s.router.HandleFunc("GET /review/answer/{id}", s.handleShowAnswer)
	s.router.HandleFunc("POST /review/{id}", s.handlePostReview)

	s.router.HandleFunc("POST /quiz", s.handleStartQuiz)
	s.router.HandleFunc("GET /quiz/{id}", s.handleGetQuiz)
	s.router.HandleFunc("POST /quiz/{id}/answer", s.handleAnswer)
	s.router.HandleFunc("POST /quiz/{id}/complete", s.handleComplete)

	s.router.HandleFunc("POST /items/{id}/generate", s.handleGenerate)
	s.router.HandleFunc("GET /analytics", s.handleAnalytics)

	s.router.HandleFunc("GET /sources", s.handleGetSources)
	s.router.HandleFunc("POST /sources", s.handlePostSource)
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource)
	s.router.HandleFunc("POST /sync", s.handlePostSync)
	return nil
}

// render executes a template into a buffer first so a failing template
// never leaves a half written page behind.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Error rendering template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, review.ErrInvalidRating):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, quiz.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, quiz.ErrEmptySession), errors.Is(err, review.ErrInvalidCard):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status it maps to. Internal errors are logged
// and hidden from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", status)
		return
	}
	slog.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	http.Error(w, err.Error(), status)
}

// notFound wraps storage.ErrNotFound for lookups that returned no row.
func notFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", storage.ErrNotFound, what, id)
}

// intValue parses an optional integer form or query value.
func intValue(r *http.Request, key string, def int) (int, error) {
	raw := r.FormValue(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}

// studied counts today towards the streak the first time anything is
// studied on a new calendar day. Callers hold mu.
func (s *Server) studied(now time.Time) {
	day := now.Format(time.DateOnly)
	if day == s.streakDay {
		return
	}
	s.streakDay = day
	s.tracker.UpdateStreak()
}

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"letter": func(i int) string {
		return string(rune('A' + i))
	},
	"percent": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 0, 64) + "%"
	},
	"date": func(t time.Time) string {
		return t.Format("2006-01-02 15:04")
	},
}
