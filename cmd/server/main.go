package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Simplici0/voltquote/internal/config"
	"github.com/Simplici0/voltquote/internal/db"
	"github.com/Simplici0/voltquote/internal/logging"
	"github.com/Simplici0/voltquote/internal/metrics"
	"github.com/Simplici0/voltquote/internal/migrations"
	"github.com/Simplici0/voltquote/internal/pricing"
	"github.com/Simplici0/voltquote/internal/quote"
	"github.com/Simplici0/voltquote/internal/seed"
	"github.com/Simplici0/voltquote/internal/store"
)

type server struct {
	db        *sql.DB
	assembler *quote.Assembler
	policies  *store.PolicySource
	rates     *store.RateTable
	quotes    *store.Quotes
	metrics   *metrics.Metrics
}

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logging.Fatal("failed to open database", "error", err, "path", cfg.DBPath)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database, cfg.MigrationsDir); err != nil {
			logging.Fatal("failed to run database migrations", "error", err)
		}
	}

	base, err := config.LoadPolicyFile(cfg.PolicyFile, pricing.DefaultPolicy())
	if err != nil {
		logging.Fatal("failed to load policy file", "error", err, "path", cfg.PolicyFile)
	}

	if cfg.IsDev() {
		stats, err := seed.Run(database, seed.Config{Policy: base, SeedRates: true})
		if err != nil {
			logging.Fatal("failed to seed database", "error", err)
		}
		slog.Info("seed complete", "inserts", stats.Inserts, "updates", stats.Updates)
	}

	srv := newServer(database, base, cfg.PolicyCacheTTL, metrics.New())

	addr := ":" + cfg.Port
	slog.Info("listening", "addr", addr, "env", cfg.AppEnv, "policy", base.Version)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpSrv.ListenAndServe(); err != nil {
		logging.Fatal("server stopped", "error", err)
	}
}

func newServer(database *sql.DB, base pricing.Policy, ttl time.Duration, m *metrics.Metrics) *server {
	policies := store.NewPolicySource(database, base, ttl, m)
	rates := store.NewRateTable(database)

	a := quote.New()
	a.Policies = policies
	a.Rates = rates

	return &server{
		db:        database,
		assembler: a,
		policies:  policies,
		rates:     rates,
		quotes:    store.NewQuotes(database),
		metrics:   m,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/industries", s.handleIndustries)
		r.Get("/policy", s.handlePolicy)
		r.Post("/margin", s.handleMargin)

		r.Post("/quotes", s.handleQuoteCreate)
		r.Get("/quotes", s.handleQuotesList)
		r.Get("/quotes/{id}", s.handleQuoteDetail)
		r.Get("/quotes/{id}/text", s.handleQuoteText)
		r.Get("/quotes/{id}/xlsx", s.handleQuoteXLSX)
		r.Delete("/quotes/{id}", s.handleQuoteDelete)

		r.Put("/admin/guards/{class}", s.handleAdminGuardUpdate)
		r.Put("/admin/rates/{state}", s.handleAdminRateUpdate)
	})
	return r
}
