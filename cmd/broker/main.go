package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pigato/broker/internal/admin"
	brokerpkg "github.com/pigato/broker/internal/broker"
	"github.com/pigato/broker/internal/cache"
	"github.com/pigato/broker/internal/metrics"
	"github.com/pigato/broker/internal/persistence"
	"github.com/pigato/broker/internal/transport"
)

const version = "0.1.0"

var (
	routerAddr = flag.String("addr", "tcp://*:5555", "ROUTER socket bind endpoint")
	heartbeat  = flag.Int64("heartbeat", 2500, "heartbeat tick period in ms")
	dmode      = flag.String("dmode", "load", "default worker-selection policy: load|rand")
	rattempts  = flag.Int("rattempts", 5, "retry ceiling after worker rejects")

	cacheEnabled = flag.Bool("cache", false, "enable the response cache")
	cacheBackend = flag.String("cache-backend", "memory", "cache backend: memory|badger")
	cacheDataDir = flag.String("cache-data-dir", "./data/cache", "badger cache data directory")

	persistBackend = flag.String("persist-backend", "memory", "persistence backend: memory|file|badger")
	dataDir        = flag.String("data-dir", "./data", "persistence data directory")

	metricsAddr = flag.String("metrics-addr", "", "address to serve /metrics on (empty disables it)")
	adminAddr   = flag.String("admin-addr", ":6380", "admin console bind address (empty disables it)")
)

func main() {
	flag.Parse()

	cfg := brokerpkg.DefaultConfig()
	cfg.HeartbeatMS = *heartbeat
	cfg.RAttempts = *rattempts
	cfg.Cache = *cacheEnabled
	if *dmode == "rand" {
		cfg.DMode = brokerpkg.ModeRand
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel, err := transport.NewZMQRouter(ctx, *routerAddr)
	if err != nil {
		log.Fatalf("broker: bind router at %s: %v", *routerAddr, err)
	}

	var cacheImpl cache.Cache
	if cfg.Cache {
		cacheImpl, err = newCache(*cacheBackend, *cacheDataDir)
		if err != nil {
			log.Fatalf("broker: init cache backend %s: %v", *cacheBackend, err)
		}
	}

	persist, err := newPersistence(*persistBackend, *dataDir)
	if err != nil {
		log.Fatalf("broker: init persistence backend %s: %v", *persistBackend, err)
	}

	b := brokerpkg.New(cfg, channel, cacheImpl, persist)
	b.SetMetrics(metrics.NewCollector())
	b.OnError(func(err error) {
		log.Printf("broker: error event: %v", err)
	})

	if err := b.Restore(ctx); err != nil {
		log.Printf("broker: restore from persistence failed: %v", err)
	}

	metrics.InitInfo(version, runtime.Version(), runtime.GOOS, runtime.GOARCH)

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	var adminServer *admin.Server
	if *adminAddr != "" {
		adminServer = admin.NewServer(*adminAddr, b, version)
		go func() {
			if err := adminServer.Start(); err != nil {
				log.Printf("admin: server stopped: %v", err)
			}
		}()
	}

	go func() {
		if err := b.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("broker: event loop exited: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("broker: shutting down...")
	cancel()

	if adminServer != nil {
		if err := adminServer.Stop(); err != nil {
			log.Printf("admin: error stopping server: %v", err)
		}
	}
	if err := channel.Close(); err != nil {
		log.Printf("broker: error closing transport: %v", err)
	}
	if cacheImpl != nil {
		if err := cacheImpl.Close(); err != nil {
			log.Printf("broker: error closing cache: %v", err)
		}
	}
	if err := persist.Close(); err != nil {
		log.Printf("broker: error closing persistence: %v", err)
	}
}

func newCache(backend, dataDir string) (cache.Cache, error) {
	switch backend {
	case "badger":
		return cache.NewBadgerCache(dataDir)
	default:
		return cache.NewMemory(), nil
	}
}

func newPersistence(backend, dataDir string) (persistence.Controller, error) {
	switch backend {
	case "file":
		return persistence.NewFile(dataDir)
	case "badger":
		return persistence.NewBadgerController(dataDir)
	default:
		return persistence.NewMemory(), nil
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("broker: metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("broker: metrics server stopped: %v", err)
	}
}
