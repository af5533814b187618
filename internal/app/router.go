package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"cbtimport/internal/app/observability"
	"cbtimport/internal/auth"
	"cbtimport/internal/cache"
	"cbtimport/internal/masterdata"
	"cbtimport/internal/question"
	"cbtimport/internal/wordimport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LoadRules returns the configured heuristics, falling back to the built-in
// defaults when no file is set.
func LoadRules(cfg Config) (wordimport.Rules, error) {
	rules := wordimport.DefaultRules()
	if cfg.ImportRulesPath != "" {
		loaded, err := wordimport.LoadRules(cfg.ImportRulesPath)
		if err != nil {
			return rules, err
		}
		rules = loaded
	}
	if cfg.ImportWorkers > 0 {
		rules.Workers = cfg.ImportWorkers
	}
	return rules, nil
}

// NewRouter wires the import API. rdb may be nil, in which case previews are
// not cached and rate limits are kept in memory.
func NewRouter(cfg Config, db *sql.DB, rdb *cache.Cache) (http.Handler, error) {
	rules, err := LoadRules(cfg)
	if err != nil {
		return nil, fmt.Errorf("load import rules: %w", err)
	}
	guard, err := auth.NewGuard(cfg.ImportTokenHash, cfg.AllowAnonymousToken && !cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	if guard.Anonymous() {
		log.Printf("IMPORT_TOKEN_HASH not set, import API is open (%s)", cfg.AppEnv)
	}

	collector := observability.NewCollector(db)

	var previews cache.PreviewStore = cache.NoopPreviewCache{}
	var limiter Limiter = NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)
	if rdb != nil {
		previews = cache.NewPreviewCache(rdb, time.Duration(cfg.PreviewCacheTTLMinutes)*time.Minute)
		limiter = cache.NewRateLimiter(rdb, cfg.AuthRateLimitPerMin, time.Minute)
	}

	subjectHandler := masterdata.NewHandler(masterdata.NewService(db))

	questionSvc := question.NewService(db)
	questionHandler := question.NewHandler(questionSvc, question.HandlerConfig{
		Engine:         wordimport.NewEngine(rules, log.Default()),
		Previews:       previews,
		Observer:       collector,
		MaxUploadBytes: int64(cfg.ImportMaxUploadMB) << 20,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(collector.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		body := `{"ok":true}`
		if err := db.PingContext(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, `{"ok":false,"error":"database unavailable"}`
		} else if rdb != nil {
			if err := rdb.HealthCheck(ctx); err != nil {
				status, body = http.StatusServiceUnavailable, `{"ok":false,"error":"cache unavailable"}`
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(RateLimitMiddleware(limiter))
		api.Use(CSRFMiddleware(cfg.CSRFEnforced))

		api.Group(func(secure chi.Router) {
			secure.Use(auth.RequireToken(guard))
			secure.Get("/subjects", subjectHandler.ListSubjects)
			secure.Post("/subjects", subjectHandler.CreateSubject)
			secure.Delete("/subjects/{id}", subjectHandler.DeactivateSubject)
			secure.Get("/imports/template", questionHandler.Template)
			secure.Post("/imports/preview", questionHandler.Preview)
			secure.Post("/imports", questionHandler.Import)
			secure.Get("/imports/{batchID}", questionHandler.GetBatch)
		})
	})

	return r, nil
}
