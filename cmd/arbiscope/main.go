package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"arbiscope/internal/app"
	"arbiscope/internal/config"
	"arbiscope/internal/exchange"
	"arbiscope/internal/history"
	"arbiscope/internal/market"
	"arbiscope/internal/metrics"
	"arbiscope/internal/model"
	"arbiscope/internal/paper"
	"arbiscope/internal/server"
	"arbiscope/internal/state"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	quotes := market.NewQuoteStore()
	snapshots := market.NewSnapshotStore()
	m := metrics.New()

	persist := state.NewFileStore(cfg.State.Path)
	engine := paper.NewEngine(logger.With("component", "paper"), quotes, persist, m, cfg.Trading)

	coordinator := app.NewCoordinator(logger.With("component", "coordinator"), cfg, quotes, engine)

	deps := exchange.Deps{
		Logger:    logger.With("component", "exchange"),
		Config:    cfg,
		Quotes:    quotes,
		Snapshots: snapshots,
		Metrics:   m,
	}
	hl, err := exchange.NewClient(model.VenueHyperliquid, deps)
	if err != nil {
		log.Fatalf("cannot create hyperliquid client: %v", err)
	}
	px, err := exchange.NewClient(model.VenueParadex, deps)
	if err != nil {
		log.Fatalf("cannot create paradex client: %v", err)
	}

	hlClient := hl.(*exchange.HyperliquidClient)
	pxClient := px.(*exchange.ParadexClient)
	histService := history.NewService(logger.With("component", "history"), hlClient, pxClient)

	srv := server.New(cfg.HTTP, server.Deps{
		Logger:        logger.With("component", "http"),
		Quotes:        quotes,
		Snapshots:     snapshots,
		Engine:        engine,
		History:       histService,
		Opportunities: coordinator.Opportunities,
		Feeds:         []exchange.FeedClient{hl, px},
		Metrics:       m,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hl.Run(ctx); err != nil {
			logger.Error("hyperliquid feed stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		hlClient.PollMarketData(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := px.Run(ctx); err != nil {
			logger.Error("paradex feed stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		coordinator.Run(ctx)
	}()

	if err := srv.Run(ctx); err != nil {
		logger.Error("http server failed", "error", err)
		stop()
	}

	wg.Wait()
	logger.Info("shutdown complete")
}
