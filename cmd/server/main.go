package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-ai-trading/config"
	"crypto-ai-trading/internal/cache"
	"crypto-ai-trading/internal/chat"
	"crypto-ai-trading/internal/engine"
	"crypto-ai-trading/internal/feed"
	"crypto-ai-trading/internal/gateway"
	"crypto-ai-trading/internal/indicator"
	"crypto-ai-trading/internal/logger"
	"crypto-ai-trading/internal/metrics"
	"crypto-ai-trading/internal/notification"
	redisstore "crypto-ai-trading/internal/store/redis"
)

func main() {
	start := time.Now()

	// ---- Config ----
	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Init("crypto-ai-trading", logger.ParseLevel("info")).Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := logger.InitWriter(os.Stdout, cfg.Service, logger.ParseLevel(cfg.LogLevel), cfg.LogText)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	log.Info("starting", "symbols", cfg.Market.Symbols, "feed", cfg.Market.Feed, "interval", cfg.Market.Interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	health.SetSymbols(cfg.Market.Symbols)
	health.SetExchange(cfg.Market.Exchange)

	// ---- Cache ----
	store := cache.New(cfg.Cache, cache.WithLogger(log), cache.WithObserver(prom.CacheObserver()))
	defer store.Close()
	log.Info("cache warmed", "placeholders", store.Warmup(cfg.Market.Symbols, []string{cfg.Market.Exchange}))

	// ---- Indicators ----
	agg := indicator.New(cfg.Indicators, log)
	agg.OnPanic = func(symbol string) { prom.ComputePanics.Inc() }

	// ---- Alerts ----
	notifiers := notification.Multi{notification.NewLogNotifier(log)}
	if cfg.Alerts.WebhookURL != "" {
		notifiers = append(notifiers, notification.WithRetry(
			notification.NewWebhookNotifier(cfg.Alerts.WebhookURL, log), cfg.Alerts.MaxRetries, time.Second, log))
	}
	if cfg.Alerts.TelegramBotToken != "" {
		notifiers = append(notifiers, notification.WithRetry(
			notification.NewTelegramNotifier(cfg.Alerts.TelegramBotToken, cfg.Alerts.TelegramChatID, log), cfg.Alerts.MaxRetries, time.Second, log))
	}
	alerter := engine.NewAlerter(notifiers, prom, log)

	opts := []engine.Option{engine.WithAlerter(alerter), engine.WithMetrics(prom)}

	// ---- Redis republisher (optional) ----
	var redisWriter *redisstore.Writer
	var publisher *redisstore.Publisher
	health.SetRedisEnabled(cfg.RedisEnabled())
	if cfg.RedisEnabled() {
		redisWriter, err = redisstore.New(ctx, redisstore.WriterConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			LatestTTL: store.Config().TTL.Analysis,
		}, log)
		if err != nil {
			log.Warn("redis init failed, continuing without republishing", "error", err)
		} else {
			defer redisWriter.Close()
			cb := redisstore.NewCircuitBreaker(cfg.Redis.MaxFailures, cfg.Redis.ResetTimeout)
			cb.OnStateChange = func(from, to redisstore.State) {
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisCircuitBreakerTrips.Inc()
				}
			}
			publisher = redisstore.NewPublisher(redisWriter, cb, log)
			opts = append(opts, engine.WithPublisher(publisher))
		}
	}

	// ---- Engine ----
	svc := engine.New(engine.Config{
		Exchange:       cfg.Market.Exchange,
		Interval:       cfg.Market.Interval,
		WindowCapacity: cfg.Market.WindowCapacity,
	}, agg, store, log, opts...)
	snapshots, tickers := svc.Subscribe(), svc.SubscribeTickers()

	// ---- Feed & poller ----
	var source feed.Feed
	switch cfg.Market.Feed {
	case config.FeedSim:
		source = feed.NewSim(cfg.Market.SimSeed, nil)
	default:
		source = feed.NewBinance(feed.BinanceConfig{
			APIKey:     cfg.Binance.APIKey,
			SecretKey:  cfg.Binance.SecretKey,
			UseTestnet: cfg.Binance.Testnet,
		}, log)
	}

	poller, err := feed.NewPoller(source, svc, feed.PollerConfig{
		Symbols:  cfg.Market.Symbols,
		Interval: cfg.Market.Interval,
		Limit:    cfg.Market.CandleLimit,
		Depth:    cfg.Market.BookDepth,
		Spec:     cfg.Market.PollSpec,
	}, log)
	if err != nil {
		log.Error("poller init failed", "error", err)
		os.Exit(1)
	}
	poller.OnCycle = func(failed int, dur time.Duration) {
		result := "ok"
		if failed > 0 {
			result = "error"
		}
		prom.PollsTotal.WithLabelValues(result).Inc()
		prom.PollDur.Observe(dur.Seconds())
		health.RecordPoll(failed, len(cfg.Market.Symbols), time.Now())
	}

	// Backfill before serving so the first requests have full windows.
	if err := poller.PollOnce(ctx); err != nil {
		log.Warn("initial poll incomplete", "error", err)
	}
	if err := poller.Start(ctx); err != nil {
		log.Error("poller start failed", "error", err)
		os.Exit(1)
	}

	// ---- Liveness ----
	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), func() bool { return store.Health().Healthy }, 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, func() bool { return store.Health().Healthy }, 10*time.Second)
	}

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, log)
	metricsSrv.Start()

	// ---- Gateway ----
	assistant := chat.NewClient(chat.Config{
		APIKey:  cfg.Anthropic.APIKey,
		Model:   cfg.Anthropic.Model,
		BaseURL: cfg.Anthropic.BaseURL,
	}, log)

	hub := gateway.NewHub(prom, log)
	go hub.Run(ctx, snapshots, tickers)
	go hub.StartMetricsBroadcast(ctx, cfg.WSMetricsInterval, func() gateway.SystemStats {
		return gateway.CollectSystemStats(start, hub, store)
	})

	srv := gateway.NewServer(cfg.HTTPAddr, gateway.Deps{
		Indicators: svc,
		Cache:      store,
		Assistant:  assistant,
		Health:     health,
		Hub:        hub,
		Metrics:    prom,
	}, log)
	srv.Start()

	// ---- Graceful shutdown ----
	<-sigCh
	log.Info("shutting down")
	cancel()
	poller.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	metricsSrv.Stop(shutdownCtx)
	svc.Close()
	alerter.Wait()
	if publisher != nil {
		if err := publisher.Flush(shutdownCtx); err != nil {
			log.Warn("redis flush on shutdown", "error", err)
		}
	}
	log.Info("stopped", "uptime", time.Since(start).Round(time.Second))
}
