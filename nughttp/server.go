// Package nughttp serves the repository's package content over HTTP.
package nughttp

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/brendoncarroll/stdctx/logctx"
	"github.com/pkg/errors"

	"github.com/nugrepo/nug"
	"github.com/nugrepo/nug/nugmd"
)

const maxPackageSize = 64 << 20

type Config struct {
	// Users maps usernames to passwords for basic auth.
	// When empty the server is open.
	Users map[string]string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

type Server struct {
	repo    *nug.Repo
	cfg     Config
	metrics *metrics
	h       http.Handler
}

func NewServer(repo *nug.Repo, cfg Config) *Server {
	s := &Server{
		repo:    repo,
		cfg:     cfg,
		metrics: newMetrics(),
	}
	mux := http.NewServeMux()
	mux.Handle("/content/", s.instrument("content", s.withAuth(http.HandlerFunc(s.handleContent))))
	mux.Handle("/package", s.instrument("publish", s.withAuth(http.HandlerFunc(s.handlePublish))))
	mux.Handle("/search", s.instrument("search", s.withAuth(http.HandlerFunc(s.handleSearch))))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.handler())
	s.h = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.h.ServeHTTP(w, r)
}

// Serve runs the server on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s,

		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,

		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logctx.Infof(ctx, "serving on %v", addr)
	err := srv.ListenAndServe()
	<-done
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// handleContent serves two routes:
//
//	GET /content/{pkg}/index.json
//	GET /content/{pkg}/{version}/{file}
//
// The version path segment is normalized before the lookup, so any spelling
// of a stored version resolves to the same package.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/content/"), "/")
	switch {
	case len(parts) == 2 && parts[1] == "index.json":
		versions, err := s.repo.ListVersions(ctx, parts[0])
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		if len(versions) == 0 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Versions []string `json:"versions"`
		}{Versions: versions})

	case len(parts) == 3:
		pkg, err := s.repo.LookupPackage(ctx, parts[0], parts[1])
		if err != nil {
			var pe *nugmd.ParseError
			if errors.As(err, &pe) || errors.Is(err, nug.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			s.internalError(w, r, err)
			return
		}
		if parts[2] != pkg.Filename() {
			http.NotFound(w, r)
			return
		}
		rd, err := s.repo.OpenPackage(ctx, pkg.ID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		io.Copy(w, rd)

	default:
		http.NotFound(w, r)
	}
}

// handlePublish accepts a .nupkg in the request body.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPackageSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pid, err := s.repo.AddNupkgData(ctx, data)
	if err != nil {
		var pe *nugmd.ParseError
		switch {
		case errors.As(err, &pe), errors.Is(err, nug.ErrBadPackage):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, nug.ErrExists):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			s.internalError(w, r, err)
		}
		return
	}
	logctx.Infof(ctx, "published package %d", pid)
	w.WriteHeader(http.StatusCreated)
}

// handleSearch filters package labels.
//
//	GET /search?key=version&gteq=1.0&lteq=2.0
//	POST /search with a JSON query body {"where": ..., "order_by": ..., "limit": ...}
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var q nugmd.Query
	switch r.Method {
	case http.MethodGet:
		params := r.URL.Query()
		if key := params.Get("key"); key != "" {
			rng := &nugmd.Range{Key: key}
			if v := params.Get("gteq"); v != "" {
				rng.Gteq = &v
			}
			if v := params.Get("lteq"); v != "" {
				rng.Lteq = &v
			}
			q.Where.Range = rng
		}
	case http.MethodPost:
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&q); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ps, err := s.repo.QueryPackages(r.Context(), q)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	type result struct {
		ID      uint64       `json:"id"`
		Name    string       `json:"name"`
		Version string       `json:"version"`
		Labels  nug.LabelSet `json:"labels"`
	}
	results := []result{}
	for _, p := range ps {
		results = append(results, result{
			ID:      p.ID,
			Name:    p.Name,
			Version: p.Version,
			Labels:  p.Labels,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK\n")
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logctx.Errorf(r.Context(), "%s %s: %v", r.Method, r.URL.Path, err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
