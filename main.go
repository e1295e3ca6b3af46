package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := NewLogger(cfg.LogLevel)
	defer log.Sync()

	locPK := loadKarachi()

	universe, err := ResolveUniverse(cfg.Universe, log)
	if err != nil {
		log.Errorf("failed to load universe: %v", err)
		os.Exit(1)
	}
	symbols := universeSymbols(universe)
	log.Infof("universe symbols=%d source=%s", len(symbols), cfg.Source)

	run := newRunContext(time.Now().In(locPK))
	metrics := NewMetrics(run.Start, version, commit, buildDate)

	store := NewSnapshotStore()
	gen := NewGenerator(universe, cfg.SimSeed, cfg.SimReseed)

	var fill MetricsSource
	if cfg.FillMissing {
		fill = gen
	}
	ingest := NewIngestor(store, fill, metrics, log.With("component", "ingest"))

	var source Source
	switch cfg.Source {
	case SourceWS:
		source = NewWSSource(WSSourceConfig{
			URL:     cfg.FeedURL,
			Symbols: symbols,
			Log:     log.With("component", "ws-feed"),
		}, ingest, metrics)
	case SourceKafka:
		reader := NewKafkaReader(KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		})
		source = NewKafkaSource(reader, ingest, log.With("component", "kafka-feed"))
	case SourceMassive:
		source = NewMassiveStream(MassiveStreamConfig{
			APIKey:  cfg.MassiveAPIKey,
			FeedURL: cfg.FeedURL,
			Symbols: symbols,
			Log:     log,
		}, ingest, metrics)
	default:
		source = NewSimSource(SimSourceConfig{
			Interval: cfg.SimInterval,
			Log:      log.With("component", "sim-feed"),
		}, gen, ingest)
	}

	params := NewParams(ParamValues{RSIMax: cfg.RSIMax, MinVolume: cfg.MinVolume})
	chartField, _ := ParseField(cfg.ChartField) // validated in LoadConfig

	var sinks []ViewSink
	var pub *RedisPublisher
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctxPing).Err()
		cancel()
		if err != nil {
			log.Errorf("redis ping failed (continuing without redis): %v", err)
			_ = rdb.Close()
		} else {
			pub = NewRedisPublisher(RedisPublisherConfig{TTL: cfg.RedisTTL}, rdb)
			sinks = append(sinks, pub)
			log.Infof("redis view fan-out enabled addr=%s", cfg.RedisAddr)
		}
	} else {
		log.Infof("redis disabled")
	}

	// The hub needs the screener for refreshes and the screener needs the hub
	// as a sink; the closures break the cycle.
	var screener *Screener
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := NewHub(params,
		func() *View { return screener.Latest() },
		func() { screener.Tick(ctx) },
		log.With("component", "hub"))
	sinks = append(sinks, hub)

	screener = NewScreener(ScreenerConfig{
		Interval:   cfg.Refresh,
		ChartField: chartField,
		RunID:      run.ID,
		Loc:        locPK,
		Log:        log.With("component", "screener"),
	}, store, params, metrics, sinks...)

	httpSrv := NewHTTPServer(HTTPConfig{
		Addr:     fmt.Sprintf(":%d", cfg.Port),
		Log:      log,
		Store:    store,
		Screener: screener,
		Params:   params,
		Hub:      hub,
		Source:   cfg.Source,
		Run:      run,
		M:        metrics,
	})

	// start background components
	go metrics.Run(ctx)
	go source.Run(ctx)
	if err := screener.Start(ctx); err != nil {
		log.Errorf("screener start: %v", err)
		os.Exit(1)
	}

	go func() {
		log.Infof("http listening on http://localhost:%d", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Infof("shutting down...")
	_ = httpSrv.Shutdown(shCtx)
	screener.Stop()
	if pub != nil {
		_ = pub.Close()
	}
	log.Infof("bye")
}
