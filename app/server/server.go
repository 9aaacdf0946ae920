// Package server provides the web API for spam classification requests.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/didip/tollbooth/v8"
	cache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/bayespam/lib/bayespam"
)

// Classifier is a spam classifier interface.
type Classifier interface {
	Classify(text string) bayespam.Result
}

// Config defines server parameters
type Config struct {
	Version    string     // version to show in app-info header
	ListenAddr string     // listen address
	Classifier Classifier // spam classifier
	AuthPasswd string     // basic auth password for user "bayespam", disabled if empty
	ResultLog  io.Writer  // optional writer to record every classification as a json line
	CacheTTL   time.Duration
	Dbg        bool
}

// Server is a web API server classifying texts with a naive Bayes model.
// the classifier can be swapped at runtime on model reload.
type Server struct {
	Config

	lock       sync.RWMutex
	classifier Classifier
	results    cache.Cache[string, bayespam.Result]
}

// New creates a new web API server.
func New(config Config) *Server {
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Server{
		Config:     config,
		classifier: config.Classifier,
		results:    cache.NewCache[string, bayespam.Result]().WithMaxKeys(10000).WithTTL(ttl),
	}
}

// Run starts the server and accepts classification requests until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if s.AuthPasswd != "" {
		log.Printf("[INFO] basic auth enabled for server")
	} else {
		log.Printf("[WARN] basic auth disabled, access to server is not protected")
	}

	srv := &http.Server{Addr: s.ListenAddr, Handler: s.routes(), ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		} else {
			log.Printf("[INFO] server stopped")
		}
	}()

	log.Printf("[INFO] start server on %s", s.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to run server: %w", err)
	}
	return nil
}

func (s *Server) routes() *routegroup.Bundle {
	router := routegroup.New(http.NewServeMux())
	router.Use(rest.Recoverer(lgr.Default()))
	router.Use(rest.AppInfo("bayespam", "umputun", s.Version), rest.Ping)
	limiter := tollbooth.NewLimiter(50, nil)
	router.Use(func(next http.Handler) http.Handler { return tollbooth.LimitHandler(limiter, next) })
	router.Use(rest.SizeLimit(1024 * 1024)) // 1M max request size
	if s.AuthPasswd != "" {
		router.Use(rest.BasicAuthWithPrompt("bayespam", s.AuthPasswd))
	}

	router.HandleFunc("POST /check", s.checkHandler)
	return router
}

// SetClassifier atomically replaces the classifier, used on model reload.
// cached results belong to the old model and get purged.
func (s *Server) SetClassifier(c Classifier) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.classifier = c
	s.results.Purge()
}

// checkHandler handles POST /check requests, {"input": "some text"} in,
// classification result out.
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Input string `json:"input"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "can't decode request", "details": err.Error()})
		return
	}

	res := s.classify(req.Input)
	if s.Dbg {
		log.Printf("[DEBUG] check result: spam=%v, probability=%.4f, text=%q", res.IsSpam, res.SpamProbability, req.Input)
	}
	s.logResult(res)
	rest.RenderJSON(w, res)
}

// classify runs the classifier, caching results for repeated inputs.
// identical texts hammer the api in practice, tokenization is the expensive part.
func (s *Server) classify(text string) bayespam.Result {
	key := fmt.Sprintf("%x", sha256.Sum256([]byte(text)))

	s.lock.RLock()
	defer s.lock.RUnlock()
	if res, ok := s.results.Get(key); ok {
		return res
	}
	res := s.classifier.Classify(text)
	s.results.Set(key, res, 0)
	return res
}

// logResult writes the result as a json line to the result log if enabled.
func (s *Server) logResult(res bayespam.Result) {
	if s.ResultLog == nil {
		return
	}
	line, err := json.Marshal(res)
	if err != nil {
		log.Printf("[WARN] failed to marshal result: %v", err)
		return
	}
	if _, err := s.ResultLog.Write(append(line, '\n')); err != nil {
		log.Printf("[WARN] failed to write result log: %v", err)
	}
}
