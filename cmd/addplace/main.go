// Command addplace submits a single place to the feature service and prints
// the resulting status message.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"

	"placemap/internal/adapters/arcgis"
	"placemap/internal/adapters/observability"
	redisad "placemap/internal/adapters/redis"
	"placemap/internal/app"
	"placemap/internal/domain"
	"placemap/internal/geodatabase"
	"placemap/internal/mapview"
	"placemap/internal/shared"
	"placemap/internal/ui"
)

// printPresenter writes every alert to stdout and forwards it so main can
// wait for the outcome.
type printPresenter struct{ shown chan ui.Alert }

func (p printPresenter) Alert(title, message string) {
	if title != "" {
		fmt.Printf("%s: %s\n", title, message)
	} else {
		fmt.Println(message)
	}
	select {
	case p.shown <- ui.Alert{Title: title, Message: message}:
	default:
	}
}

func main() { os.Exit(addPlace()) }

func addPlace() int {
	var (
		name        = flag.String("name", "", "place name (required)")
		description = flag.String("description", "", "place description")
		category    = flag.String("category", string(domain.DefaultCategory()), "one of "+categoryList())
		lon         = flag.Float64("lon", 0, "longitude in degrees; wrapped values such as 200 are normalized")
		lat         = flag.Float64("lat", 0, "latitude in degrees")
	)
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 2
	}

	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "-name is required")
		return 2
	}
	cat, err := domain.ParseCategory(*category)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v; expected one of %s\n", err, categoryList())
		return 2
	}
	if math.IsNaN(*lon) || math.IsInf(*lon, 0) {
		fmt.Fprintln(os.Stderr, "-lon must be a finite number")
		return 2
	}
	if math.IsNaN(*lat) || *lat < -90 || *lat > 90 {
		fmt.Fprintln(os.Stderr, "-lat must be within [-90, 90]")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := arcgis.New(cfg.APIKey, cfg.RPS, cfg.Timeout)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize ArcGIS client")
		return 1
	}
	serviceURL, layerID, err := arcgis.SplitLayerURL(cfg.LayerURL)
	if err != nil {
		log.Error().Err(err).Str("url", cfg.LayerURL).Msg("invalid feature layer url")
		return 2
	}
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		if err := rc.Ping(ctx); err == nil {
			cache = rc
		}
	}

	loop := ui.NewLoop()
	go func() { _ = loop.Run(ctx) }()

	presenter := printPresenter{shown: make(chan ui.Alert, 1)}
	gdb := geodatabase.New(serviceURL, []int{layerID}, client, cache, cfg.MetadataTTL)
	mv := mapview.New(cfg.Basemap, mapview.NewViewport(orb.Point{0, 0}, 360, cfg.ViewWidth, cfg.ViewHeight))
	ctrl := app.NewController(loop, mv, gdb, presenter, app.Options{EditTimeout: cfg.Timeout, LoadTimeout: cfg.Timeout})

	return run(ctx, ctrl, presenter, domain.Place{
		Name:        *name,
		Description: *description,
		Category:    cat,
		Location:    orb.Point{*lon, *lat},
	}, 2*cfg.Timeout)
}

func run(ctx context.Context, ctrl *app.Controller, p printPresenter, place domain.Place, wait time.Duration) int {
	defer ctrl.Dispose()

	if err := ctrl.Start(ctx); err != nil {
		log.Error().Err(err).Msg("start failed")
		return 1
	}
	if err := ctrl.WaitLoaded(ctx); err != nil {
		awaitAlert(ctx, p, wait)
		return 1
	}
	if err := ctrl.AddPlace(ctx, place); err != nil {
		log.Error().Err(err).Msg("add place failed")
		return 1
	}
	a, ok := awaitAlert(ctx, p, wait)
	if !ok || a.Title != "" || a.Message != app.MsgSuccess {
		return 1
	}
	return 0
}

func awaitAlert(ctx context.Context, p printPresenter, wait time.Duration) (ui.Alert, bool) {
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case a := <-p.shown:
		return a, true
	case <-t.C:
		log.Error().Dur("wait", wait).Msg("no result from feature service")
	case <-ctx.Done():
	}
	return ui.Alert{}, false
}

func categoryList() string {
	names := make([]string, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
