package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/semesterplan/internal/auth"
	"github.com/example/semesterplan/internal/domain/user"
	"github.com/example/semesterplan/internal/importer"
	"github.com/example/semesterplan/internal/internaltypes"
	"github.com/example/semesterplan/internal/logger"
)

//go:embed templates/*.html
var fs embed.FS

const defaultMaxUpload = 10 << 20

// Authenticator is implemented by *auth.Store. RequireAuth must store the
// user with auth.WithUser.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (user.User, error)
	SetSession(w http.ResponseWriter, r *http.Request, userID int64) error
	ClearSession(w http.ResponseWriter)
	CheckAndGetUser(r *http.Request) (user.User, error)
	RequireAuth(next http.Handler) http.Handler
}

// Importer is implemented by *importer.Service.
type Importer interface {
	Import(ctx context.Context, actor user.User, up importer.Upload) (importer.Summary, error)
}

// HTTPRecorder is implemented by *metrics.Manager.
type HTTPRecorder interface {
	ObserveHTTP(route string, code int)
	Handler() http.Handler
}

type Server struct {
	Auth     Authenticator
	Importer Importer
	Metrics  HTTPRecorder
	Log      logger.Logger

	BaseURL        string
	MaxUploadBytes int64
}

type tmplData struct {
	Title string
	User  string
	// Base prefixes every link; empty means relative links.
	Base string

	Flash   string
	Status  int
	Summary *importer.Summary
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.url("/semesterplan"), http.StatusFound)
	})
	mux.Handle("GET /semesterplan", s.Auth.RequireAuth(http.HandlerFunc(s.handleUploadForm)))
	mux.HandleFunc("POST /semesterplan/import", s.handleImport)

	return s.logging(mux)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, http.StatusOK, "templates/login.html", tmplData{Title: "Login"})
		return
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		u, err := s.Auth.Authenticate(r.Context(), username, password)
		if err != nil {
			s.render(w, http.StatusOK, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, u.ID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, s.url("/semesterplan"), http.StatusFound)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, s.url("/login"), http.StatusFound)
}

func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	s.render(w, http.StatusOK, "templates/upload.html", tmplData{Title: "Semester plan import", User: u.Username})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	actor, err := s.Auth.CheckAndGetUser(r)
	if err != nil {
		if errors.Is(err, internaltypes.ErrUnauthorized) {
			s.result(w, http.StatusUnauthorized, tmplData{Flash: "Please log in to import a semester plan."})
			return
		}
		s.Log.Error("identity check failed", "error", err)
		s.result(w, http.StatusInternalServerError, tmplData{Flash: "Could not verify your session."})
		return
	}

	limit := s.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	if r.ContentLength > limit {
		s.result(w, http.StatusRequestEntityTooLarge, tmplData{User: actor.Username, Flash: "The uploaded file is too large."})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.result(w, http.StatusRequestEntityTooLarge, tmplData{User: actor.Username, Flash: "The uploaded file is too large."})
			return
		}
		s.result(w, http.StatusBadRequest, tmplData{User: actor.Username, Flash: "No file was uploaded."})
		return
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		s.result(w, http.StatusBadRequest, tmplData{User: actor.Username, Flash: "The uploaded file could not be read."})
		return
	}

	sum, err := s.Importer.Import(r.Context(), actor, importer.Upload{
		Filename: filepath.Base(hdr.Filename),
		Body:     body,
	})
	switch {
	case err == nil:
		s.result(w, http.StatusOK, tmplData{User: actor.Username, Summary: &sum})
	case errors.Is(err, internaltypes.ErrForbidden):
		s.result(w, http.StatusForbidden, tmplData{User: actor.Username, Flash: "You have insufficient rights to change these reservations."})
	default:
		s.result(w, http.StatusInternalServerError, tmplData{User: actor.Username, Flash: "The semester plan could not be imported."})
	}
}

func (s *Server) result(w http.ResponseWriter, code int, data tmplData) {
	data.Title = "Import result"
	data.Status = code
	s.render(w, code, "templates/result.html", data)
}

func (s *Server) render(w http.ResponseWriter, code int, name string, data tmplData) {
	t, err := template.ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	data.Base = s.base()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		s.Log.Error("render failed", "template", name, "error", err)
	}
}

func (s *Server) base() string {
	return strings.TrimRight(s.BaseURL, "/")
}

func (s *Server) url(path string) string {
	return s.base() + path
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.Metrics != nil {
			s.Metrics.ObserveHTTP(route, sw.code)
		}
		s.Log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", sw.code,
			"duration", time.Since(start),
		)
	})
}

// Start serves h on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler, log logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
