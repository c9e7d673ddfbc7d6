package main

import (
	"flag"
	"log"
	"os"

	"MeanRev/internal/di"
	"MeanRev/pkg/config"
	applogger "MeanRev/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logLevel := "info"
	logFormat := "json"
	if cfg.Environment != "production" {
		logLevel = "debug"
		logFormat = "console"
	}
	l, err := applogger.New(&applogger.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	app, err := di.InitializeApp(cfg, l)
	if err != nil {
		l.Error("app initialization failed", applogger.Error(err))
		os.Exit(1)
	}

	l.Info("starting",
		applogger.String("environment", cfg.Environment),
		applogger.String("pair", cfg.Pipeline.Pair),
		applogger.String("clickhouse", cfg.ClickHouse.Database),
	)

	if err := app.Run(); err != nil {
		l.Error("app error", applogger.Error(err))
		os.Exit(1)
	}
}
