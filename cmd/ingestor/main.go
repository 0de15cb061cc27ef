package main

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	googlead "reviewdash/internal/adapters/google"
	"reviewdash/internal/adapters/hostaway"
	"reviewdash/internal/adapters/observability"
	redisad "reviewdash/internal/adapters/redis"
	"reviewdash/internal/app"
	"reviewdash/internal/domain"
	"reviewdash/internal/shared"
	mysqlrepo "reviewdash/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("hostaway", cfg.HostawayBase).
		Int("workers", cfg.SyncWorkers).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	hw, err := hostaway.New(cfg.HostawayBase, cfg.HostawayKey, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize hostaway client")
	}
	gg, err := googlead.New(cfg.GoogleBase, cfg.GoogleKey, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize google client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	ing := app.NewSyncService(hw, gg, repo, cache)

	props, err := repo.ListProperties(ctx, domain.PropertyFilter{Status: "active"})
	if err != nil {
		log.Fatal().Err(err).Msg("list properties failed")
	}

	sem := semaphore.NewWeighted(int64(cfg.SyncWorkers))
	var wg sync.WaitGroup

	for _, p := range props {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(p domain.Property) {
			defer wg.Done()
			defer sem.Release(1)

			if err := ing.SyncProperty(ctx, p); err != nil {
				log.Warn().Int64("id", p.ID).Str("slug", p.Slug).Err(err).Msg("sync failed")
				return
			}
			log.Info().Int64("id", p.ID).Str("slug", p.Slug).Msg("sync ok")
		}(p)
	}

	wg.Wait()
	log.Info().Msg("ingestion completed")
}
