package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"placemap/internal/adapters/arcgis"
	server "placemap/internal/adapters/http_server"
	"placemap/internal/adapters/observability"
	redisad "placemap/internal/adapters/redis"
	"placemap/internal/app"
	"placemap/internal/domain"
	"placemap/internal/geodatabase"
	"placemap/internal/mapview"
	"placemap/internal/shared"
	"placemap/internal/ui"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// deps
	client, err := arcgis.New(cfg.APIKey, cfg.RPS, cfg.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ArcGIS client")
	}
	serviceURL, layerID, err := arcgis.SplitLayerURL(cfg.LayerURL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.LayerURL).Msg("invalid feature layer url")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; metadata cache disabled")
		} else {
			cache = rc
		}
		cancel()
	}

	gdb := geodatabase.New(serviceURL, []int{layerID}, client, cache, cfg.MetadataTTL)
	mv := mapview.New(cfg.Basemap, mapview.NewViewport(orb.Point{0, 20}, 360, cfg.ViewWidth, cfg.ViewHeight))
	loop := ui.NewLoop()
	alerts := ui.NewAlertLog(100)
	ctrl := app.NewController(loop, mv, gdb, alerts, app.Options{EditTimeout: cfg.Timeout, LoadTimeout: cfg.Timeout})

	// http
	srv := server.New(15 * time.Second)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{C: ctrl, Alerts: alerts})
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	// the loop outlives gctx so Dispose can release the map on it
	g.Go(func() error { return loop.Run(context.Background()) })
	g.Go(func() error { return observability.Serve(gctx, cfg.MetricsAddr, reg) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("layer", cfg.LayerURL).Msg("placemap listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		ctrl.Dispose()
		return err
	})

	if err := ctrl.Start(gctx); err != nil {
		log.Fatal().Err(err).Msg("controller start failed")
	}
	// a rejected key can never load the map
	g.Go(func() error { return ctrl.RequireCredentials(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("placemap stopped")
	}
}
