package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signal-systemv1/config"
	"signal-systemv1/internal/dispatch"
	"signal-systemv1/internal/feed"
	"signal-systemv1/internal/gateway"
	"signal-systemv1/internal/ingest"
	"signal-systemv1/internal/logger"
	"signal-systemv1/internal/metrics"
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/notification"
	"signal-systemv1/internal/store"
	redisstore "signal-systemv1/internal/store/redis"
	sqlitestore "signal-systemv1/internal/store/sqlite"
	"signal-systemv1/internal/strategy"
	"signal-systemv1/internal/sweep"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[sigengine] starting...")

	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[sigengine] config load failed: %v", err)
	}
	logger.Init("sigengine", logger.ParseLevel(cfg.LogLevel))

	tfs := cfg.ParseTFs()
	baseTF, midTF, highTF := cfg.ConfirmationTFs()
	log.Printf("[sigengine] enabled TFs: %v (base=%s mid=%s high=%s)", tfs, baseTF, midTF, highTF)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	tfSecs := make([]int, len(tfs))
	for i, tf := range tfs {
		tfSecs[i] = int(tf)
	}
	health.SetEnabledTFs(tfSecs)
	metricsSrv := metrics.NewServer(cfg.Metrics.Addr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown context ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Candle archive (off hot path) ----
	var archive *sqlitestore.Archive
	var archiveCh chan sqlitestore.Record
	if cfg.SQLite.Enabled {
		os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755)
		archive, err = sqlitestore.New(sqlitestore.ArchiveConfig{DBPath: cfg.SQLite.Path})
		if err != nil {
			log.Fatalf("[sigengine] sqlite init failed: %v", err)
		}
		defer archive.Close()
		archive.OnCommit = func(dur time.Duration) {
			prom.SQLiteCommitDur.Observe(dur.Seconds())
		}
		health.SetSQLiteOK(true)

		archiveCh = make(chan sqlitestore.Record, 5000)
		go archive.Run(ctx, archiveCh)
		log.Println("[sigengine] candle archive ready")
	}

	// ---- Redis history / signal cache ----
	var redisStore *redisstore.Store
	if cfg.Redis.Enabled {
		redisStore, err = redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Printf("[sigengine] WARNING: redis init failed: %v (continuing without redis)", err)
		} else {
			defer redisStore.Close()
			health.SetRedisConnected(true)
		}
	}

	// ---- Periodic liveness checks ----
	if redisStore != nil || archive != nil {
		var rdb *goredis.Client
		if redisStore != nil {
			rdb = redisStore.Client()
		}
		var db *sql.DB
		if archive != nil {
			db = archive.DB()
		}
		health.StartLivenessChecker(ctx, rdb, db, 10*time.Second)
	}

	// ---- Candle store ----
	candles := store.New(cfg.Store.Capacity)

	// ---- Feed session + reconnection ----
	events := make(chan feed.Event, 1024)
	recon := feed.NewReconnector(feed.SessionConfig{
		Endpoint: cfg.Feed.Endpoint,
		Origin:   cfg.Feed.Origin,
		Credentials: feed.Credentials{
			SessionToken: cfg.Feed.SessionToken,
			UID:          cfg.Feed.UID,
			Locale:       cfg.Feed.Locale,
			ContextPath:  cfg.Feed.ContextPath,
		},
		HandshakeTimeout: cfg.Feed.HandshakeTimeout,
	}, events, cfg.Feed.ReconnectDelay)
	recon.OnReconnect = func() {
		prom.WSReconnects.Inc()
		health.SetWSConnected(false)
	}
	recon.OnFrame = func() {
		prom.FramesTotal.Inc()
	}
	recon.OnDecodeError = func(err error) {
		prom.DecodeErrors.Inc()
	}

	subs := feed.NewSubscriptionManager(recon, tfs, cfg.Assets)

	// ---- Dashboard ----
	hub := gateway.NewHub()
	hub.OnDrop = func() {
		prom.DashboardDrops.Inc()
	}
	dashboard := gateway.NewServer(cfg.Dashboard.Addr, hub)
	dashboard.Start()

	// ---- Notification sinks ----
	notifiers := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.Telegram.Enabled {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs))
	}
	if cfg.Webhook.Enabled {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Webhook.URL))
	}

	// ---- Dispatcher ----
	disp := dispatch.New(hub, notifiers)
	disp.OnNotifyError = func(name string) {
		prom.NotifyFailures.WithLabelValues(name).Inc()
	}
	if redisStore != nil {
		disp.WithCache(redisStore)
	}
	if archive != nil {
		disp.WithArchive(archive)
	}
	var producer *dispatch.KafkaProducer
	if cfg.Kafka.Enabled {
		producer, err = dispatch.NewKafkaProducer(dispatch.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			log.Fatalf("[sigengine] kafka init failed: %v", err)
		}
		defer producer.Close()
		disp.WithFeed(producer)
	}

	// ---- Ingest pipeline ----
	var prefiller ingest.Prefiller
	if redisStore != nil {
		prefiller = redisStore
	}
	var archiveSend chan<- sqlitestore.Record
	if archiveCh != nil {
		archiveSend = archiveCh
	}
	consumer := ingest.New(candles, subs, prefiller, archiveSend, ingest.Hooks{
		OnTick: func(t model.Tick) {
			prom.TicksTotal.Inc()
		},
		OnCandle: func(key model.Key, c model.Candle) {
			prom.CandlesTotal.WithLabelValues(strconv.Itoa(int(key.TF))).Inc()
			prom.CandleLag.Set(time.Since(c.TS).Seconds())
			health.SetWSConnected(true)
			health.SetLastCandleTime(time.Now())
		},
		OnAssets: func(count int) {
			health.SetInstruments(count)
		},
		OnDisconnect: func(err error) {
			health.SetWSConnected(false)
		},
		OnPrefill: func(key model.Key, n int) {
			prom.PrefillCandles.Add(float64(n))
		},
		OnSubscribeFailure: func() {
			prom.SubscribeFailures.Inc()
		},
	})
	if redisStore != nil {
		consumer.WithRecorder(&meteredRecorder{rec: redisStore, prom: prom})
	}
	go consumer.Run(ctx, events)
	go recon.Run(ctx)

	// ---- Evaluation sweep ----
	eval := strategy.New(strategy.Config{Family: strategy.Family(cfg.Strategy.Family)})
	sweeper := sweep.New(sweep.Config{
		Interval: cfg.Sweep.Interval,
		BaseTF:   baseTF,
		MidTF:    midTF,
		HighTF:   highTF,
		TFs:      tfs,
	}, candles, eval, &meteredDispatcher{disp: disp, prom: prom}, subs.Instruments)
	sweeper.OnSweep = func(dur time.Duration) {
		prom.EvalDur.Observe(dur.Seconds())
	}
	go sweeper.Run(ctx)

	log.Printf("[sigengine] pipeline ready (family=%s, %d fallback assets)", eval.Family(), len(cfg.Assets))

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[sigengine] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	dashboard.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Println("[sigengine] shutdown complete.")
}

// meteredDispatcher counts signal directions on the way into the
// dispatcher.
type meteredDispatcher struct {
	disp *dispatch.Dispatcher
	prom *metrics.Metrics
}

func (m *meteredDispatcher) Dispatch(ctx context.Context, sig model.Signal) {
	m.prom.SignalsTotal.WithLabelValues(string(sig.Direction)).Inc()
	m.disp.Dispatch(ctx, sig)
}

// meteredRecorder times live-candle history writes.
type meteredRecorder struct {
	rec  ingest.Recorder
	prom *metrics.Metrics
}

func (m *meteredRecorder) RecordCandle(ctx context.Context, key model.Key, c model.Candle, maxLen int) error {
	start := time.Now()
	err := m.rec.RecordCandle(ctx, key, c, maxLen)
	m.prom.RedisWriteDur.Observe(time.Since(start).Seconds())
	return err
}
