package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "reviewdash/internal/adapters/http_server"
	"reviewdash/internal/adapters/observability"
	redisad "reviewdash/internal/adapters/redis"
	"reviewdash/internal/app"
	"reviewdash/internal/shared"
	mysqlrepo "reviewdash/internal/storage/mysql"
	"reviewdash/internal/storage/overlay"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	q := app.NewQueryService(repo, cache, cfg.CacheTTL)
	rs := app.NewReviewService(repo, cache)
	if cfg.OverlayPath != "" {
		ov, err := overlay.Open(cfg.OverlayPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.OverlayPath).Msg("open approval overlay failed")
		}
		q = q.WithDecisions(ov)
		rs = rs.WithDecisions(ov)
		log.Info().Str("path", cfg.OverlayPath).Msg("approval overlay enabled")
	}

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(server.NewHandlers(q, rs))

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
