// Command spached runs the close-approach caching service: a proxy over the
// NASA NEO feed that caches results per UTC day in SQLite.
package main

import (
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/trantila/spache/internal/aggregate"
	"github.com/trantila/spache/internal/cache"
	"github.com/trantila/spache/internal/config"
	"github.com/trantila/spache/internal/logging"
	"github.com/trantila/spache/internal/neoapi"
	"github.com/trantila/spache/internal/server"
	"github.com/trantila/spache/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.Init(cfg.LogLevel)

	origin, err := url.Parse(cfg.PublicOrigin)
	if err != nil {
		logging.Fatal("Invalid public origin", "origin", cfg.PublicOrigin, "error", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logging.Fatal("Failed to open day store", "path", cfg.DBPath, "error", err)
	}
	defer st.Close()

	client := neoapi.NewClient(cfg.NeoAPIBaseURL, cfg.NasaAPIKey, cfg.UpstreamTimeout)
	if cfg.UpstreamMinInterval > 0 {
		client.SetMinInterval(cfg.UpstreamMinInterval)
	}

	cacheSvc := cache.New(origin, client, st)
	aggSvc := aggregate.New(client, st)
	srv := server.New(cacheSvc, aggSvc)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Listening", "addr", cfg.ListenAddr, "origin", cfg.PublicOrigin)
	logging.Info("Using NASA API key", "demo", cfg.NasaAPIKey == "DEMO_KEY")
	logging.Info("Day store ready", "path", cfg.DBPath)

	if err := httpServer.ListenAndServe(); err != nil {
		logging.Fatal("Server stopped", "error", err)
	}
}
