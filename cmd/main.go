package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"escrow-ledger/db"
	"escrow-ledger/engine"
	"escrow-ledger/events"
	"escrow-ledger/handlers"
	"escrow-ledger/logger"
	"escrow-ledger/repository"
	"escrow-ledger/routers"
	"escrow-ledger/treasury"
)

func main() {
	// Load config
	viper.SetConfigFile("config/config.yaml")
	viper.SetDefault("engine.fee_percent", 2)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	appLogFile := viper.GetString("log.app_log_file")
	logLevel := viper.GetString("log.level")

	if err := logger.InitLogger(appLogFile, logLevel); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}

	logger.Logger.Info("Starting escrow ledger server...")

	owner := viper.GetString("engine.owner")
	if owner == "" {
		logger.Logger.Fatal("engine.owner must be configured")
	}

	// Connect to LevelDB
	leveldbPath := viper.GetString("leveldb.path")
	ldb, err := db.NewLevelDB(leveldbPath)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	// Initialize repository
	escrowRepo := repository.NewEscrowRepository(ldb)

	// Notification bus with a logging subscriber
	bus := events.NewBus()
	bus.Subscribe(func(evt events.Event) {
		logger.Logger.Info("Notification emitted",
			zap.String("event_id", evt.ID),
			zap.String("type", evt.Type),
			zap.Any("fields", evt.Fields))
	})

	// Initialize the escrow engine with the recording treasury
	eng, err := engine.NewEngine(escrowRepo, treasury.NewRecorder(), bus, owner,
		viper.GetUint64("engine.fee_percent"))
	if err != nil {
		logger.Logger.Fatal("Failed to initialize engine", zap.Error(err))
	}

	// Initialize HTTP handlers
	h := handlers.NewHandler(eng, bus)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", viper.GetInt("server.port")),
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", viper.GetInt("server.port")))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	srv.Close()
}
