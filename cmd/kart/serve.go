package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/cfoust/kart/pkg/config"
	"github.com/cfoust/kart/pkg/coordinator"
	"github.com/cfoust/kart/pkg/ingress"
	"github.com/cfoust/kart/pkg/maps"
	"github.com/cfoust/kart/pkg/status"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const CONFIG_ENV = "KART_CONFIG"

// configPaths falls back to the files listed in KART_CONFIG when none were
// given on the command line.
func configPaths(configs []string) []string {
	if len(configs) > 0 {
		return configs
	}

	env, ok := os.LookupEnv(CONFIG_ENV)
	if !ok || env == "" {
		return configs
	}
	return filepath.SplitList(env)
}

func serveCommand(configs []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	cfg, err := config.Process(configPaths(configs))
	if err != nil {
		log.Fatal().Err(err).Msgf("failed to load kart configuration, please specify one with the %s environment variable", CONFIG_ENV)
	}

	serverConfig := cfg.Server

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog, err := maps.OpenCatalog(serverConfig.DBPath)
	if err != nil {
		return fmt.Errorf("could not open map catalog: %w", err)
	}
	defer catalog.Close()

	changed, err := catalog.Index(serverConfig.MapDirectory)
	if err != nil {
		return fmt.Errorf("could not index maps: %w", err)
	}

	names, err := catalog.Names()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no maps found in %s", serverConfig.MapDirectory)
	}

	log.Info().Msgf("loaded %d maps (%d changed)", len(names), changed)

	rotation := maps.NewRotation(catalog, serverConfig.DefaultMap)

	race := coordinator.New(ctx, cfg.Race, cfg.Tuning())
	go race.Poll(ctx)
	handle := race.Handle()

	if serverConfig.Redis.Enabled() {
		store := status.NewRedisStore(serverConfig.Redis)
		defer store.Close()

		if err := store.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis is unreachable, status will be retried")
		}

		hostname, err := os.Hostname()
		if err != nil {
			hostname = "kart"
		}

		publisher := status.NewPublisher(
			store,
			fmt.Sprintf("%s:%d", hostname, serverConfig.Port),
			serverConfig.Redis.Expiry(),
		)
		go publisher.Run(ctx, race.Events.Subscribe())
	}

	scheduler := coordinator.NewScheduler(handle, rotation, cfg.Race)
	go func() {
		err := scheduler.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("round scheduler stopped")
		}
	}()

	wsIngress := ingress.NewWSIngress(handle, serverConfig.Ingress)

	errc := make(chan error, 1)
	go func() {
		errc <- wsIngress.Serve(ctx, serverConfig.Port)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to serve")
		}
	case sig := <-sigs:
		log.Info().Msgf("terminating: %v", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	wsIngress.Shutdown(shutdownCtx)
	cancel()

	return nil
}
