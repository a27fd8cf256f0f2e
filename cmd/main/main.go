package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stock-tracker/src/config"
	"stock-tracker/src/engine"
	"stock-tracker/src/interfaces"
	"stock-tracker/src/logger"
	"stock-tracker/src/marketapi"
	"stock-tracker/src/network"
	"stock-tracker/src/prefs"
	"stock-tracker/src/publishers"
	"stock-tracker/src/server"
	"stock-tracker/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config, config.Name)

	// 2. Preference Storage
	var store interfaces.IPreferenceStore

	switch config.Storage.DBType {
	case "postgres":
		store, err = storage.NewPostgresStore(config.MConfig, appLogger)
	default:
		// Default to SQLite
		store, err = storage.NewSQLiteStore(config.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init store: %v", err)
	}
	if err := store.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate store: %v", err)
	}
	defer store.Close()

	prefService, err := prefs.NewService(store, appLogger)
	if err != nil {
		appLogger.Critical("Failed to load preferences: %v", err)
	}

	// 3. Market Data Pipeline
	httpClient := network.NewClient(config.MConfig, appLogger)
	api := marketapi.NewRESTClient(config.MConfig, httpClient, appLogger)
	dataEngine := engine.New(config, api, appLogger)

	// 4. Optional NATS relay
	if config.NATS.Enabled {
		publisher := publishers.NewNATSPublisher(&config.NATS, appLogger)
		if err := publisher.Connect(); err != nil {
			appLogger.Error("NATS unavailable, continuing without relay: %v", err)
		} else {
			publisher.Attach(dataEngine.Broadcaster)
			defer publisher.Disconnect()
		}
	}

	// 5. Subscribe the startup watchlist
	var watch *engine.Watch
	if len(config.Watchlist) > 0 {
		appLogger.Info("Watching %d symbols from config", len(config.Watchlist))
		watch = dataEngine.Watch(config.Watchlist)
	}

	// 6. HTTP + WebSocket API
	srv := server.NewAPIServer(config.MConfig, dataEngine, prefService, appLogger)
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	if watch != nil {
		watch.Release()
	}
	srv.Stop()
	dataEngine.Close()
}
