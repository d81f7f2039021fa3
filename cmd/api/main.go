package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/phuslu/log"

	"finsight/pkg/api/analysis"
	"finsight/pkg/api/metrics"
	"finsight/pkg/config"
	"finsight/pkg/core/pipeline"
)

func main() {
	configPath := flag.String("config", "config/engine.yaml", "Engine configuration file")
	flag.Parse()

	// Load configuration (defaults -> file -> .env / environment)
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	log.DefaultLogger.Level = log.ParseLevel(cfg.LogLevel)

	engine, err := pipeline.New(cfg.EngineOptions())
	if err != nil {
		fmt.Printf("[FATAL] Failed to create engine: %v\n", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	handler := analysis.NewHandler(engine, metrics.New(engine.CacheStats))
	handler.Register(mux)

	fmt.Printf("API server starting on %s...\n", cfg.Server.Addr)
	fmt.Println("  - POST /api/analyze")
	fmt.Println("  - POST /api/quality")
	fmt.Println("  - POST /api/compare")
	fmt.Println("  - POST /api/report  (?format=html)")
	fmt.Println("  - POST /api/ingest/html")
	fmt.Println("  - GET  /api/health")
	fmt.Println("  - GET  /metrics")

	log.Info().
		Str("addr", cfg.Server.Addr).
		Int("default_years", cfg.Engine.DefaultYears).
		Int("cache_size", cfg.Engine.CacheSize).
		Msg("server listening")

	if err := http.ListenAndServe(cfg.Server.Addr, mux); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
