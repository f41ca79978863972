package main

import (
	"flag"
	"log"
	"os"

	"github.com/vpnsgde/gold-quant/internal/di"
	"github.com/vpnsgde/gold-quant/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s method=%s steps=%d", cfg.Environment, cfg.Forecast.Method, cfg.Forecast.ForecastSteps)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if cfg.ClickHouse.Enabled {
		log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)
	}
	if cfg.Kafka.Enabled {
		log.Printf("kafka: brokers=%v requests=%s results=%s", cfg.Kafka.Brokers, cfg.Kafka.Topics.Requests, cfg.Kafka.Topics.Results)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
