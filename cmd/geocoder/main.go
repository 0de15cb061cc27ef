package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	googlead "reviewdash/internal/adapters/google"
	"reviewdash/internal/adapters/observability"
	"reviewdash/internal/app"
	"reviewdash/internal/shared"
	mysqlrepo "reviewdash/internal/storage/mysql"
)

// Runs the geocoding backfill once, or on a schedule when GEOCODE_CRON is
// set (e.g. "0 3 * * *").
func main() {
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.Serve()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	repo := mysqlrepo.New(db)
	gg, err := googlead.New(cfg.GoogleBase, cfg.GoogleKey, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize google client")
	}
	svc := app.NewGeoService(repo, gg, cfg.GeocodeBatchSize, cfg.GeocodeDelay)

	run := func() {
		report, err := svc.Run(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("geocode run failed")
			return
		}
		log.Info().
			Int("processed", report.Processed).
			Int("succeeded", report.Succeeded).
			Int("failed", report.Failed).
			Msg("geocode run completed")
	}

	if cfg.GeocodeCron == "" {
		run()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.GeocodeCron, run); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.GeocodeCron).Msg("bad cron spec")
	}
	c.Start()
	log.Info().Str("spec", cfg.GeocodeCron).Msg("geocoder scheduled")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	<-c.Stop().Done()
}
