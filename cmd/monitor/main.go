package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/calebh/marketscout/internal/ai"
	"github.com/calebh/marketscout/internal/api"
	"github.com/calebh/marketscout/internal/cache"
	"github.com/calebh/marketscout/internal/config"
	"github.com/calebh/marketscout/internal/logger"
	"github.com/calebh/marketscout/internal/marketplace"
	"github.com/calebh/marketscout/internal/marketplace/jsonfeed"
	"github.com/calebh/marketscout/internal/notify"
	"github.com/calebh/marketscout/internal/resolver"
	"github.com/calebh/marketscout/internal/runner"
	"github.com/calebh/marketscout/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	checkOnly := flag.Bool("check", false, "Validate configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.GetDefault().WithError(err).Fatal("Failed to load config")
	}

	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "marketscout",
		File:        cfg.Log.File,
		FileOnly:    cfg.Log.FileOnly,
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Registry of marketplace types; built once, read-only afterwards.
	registry, err := marketplace.NewRegistry(
		jsonfeed.NewAdapter(cfg.Monitor.AdapterTimeout).Descriptor(),
	)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to build marketplace registry")
	}

	instances, err := registry.BuildInstances(cfg.InstanceConfigs())
	if err != nil {
		appLogger.WithError(err).Fatal("Invalid marketplace configuration")
	}

	res := resolver.New(registry)

	// Validate and prepare items. A bad item is fatal for that item only:
	// it is reported and not scheduled.
	var items []*runner.PreparedItem
	configErrors := 0
	for _, spec := range cfg.ItemSpecs() {
		if !spec.Enabled {
			continue
		}
		s := spec
		prepared, err := runner.PrepareItem(&s)
		if err != nil {
			appLogger.WithField(logger.FieldItem, spec.Name).WithError(err).Error("Item has invalid filter expressions, not scheduling it")
			configErrors++
			continue
		}
		if err := res.ValidateScope(&s, instances); err != nil {
			appLogger.WithField(logger.FieldItem, spec.Name).WithError(err).Error("Item scope is invalid, not scheduling it")
			configErrors++
			continue
		}
		result, err := res.Resolve(&s, instances)
		if err != nil {
			appLogger.WithField(logger.FieldItem, spec.Name).WithError(err).Error("Item failed config resolution, not scheduling it")
			configErrors++
			continue
		}
		for _, warning := range result.Warnings {
			appLogger.Warn(warning)
		}
		items = append(items, prepared)
	}

	if *checkOnly {
		if configErrors > 0 {
			fmt.Fprintf(os.Stderr, "configuration check failed: %d invalid item(s)\n", configErrors)
			os.Exit(1)
		}
		fmt.Printf("configuration ok: %d marketplace(s), %d item(s)\n", len(instances), len(items))
		return
	}
	if len(items) == 0 {
		appLogger.Fatal("No valid items configured")
	}

	store, err := buildStore(cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize cache store")
	}
	listingCache := cache.New(store, appLogger)

	var evaluator ai.Evaluator
	if cfg.AI.Enabled {
		evaluator = ai.NewOpenAIEvaluator(&ai.OpenAIConfig{
			Model:   cfg.AI.Model,
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
		})
	}

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize notification channels")
	}
	if len(notifiers) == 0 {
		appLogger.Warn("No notification channels configured")
	}

	searchRunner := runner.New(instances, items, res, listingCache, evaluator, notifiers, appLogger)

	sched := scheduler.New(searchRunner, scheduler.Config{
		MaxConcurrency: cfg.Monitor.MaxConcurrency,
		BackoffMax:     cfg.Monitor.BackoffMax,
	}, appLogger)

	jobs := 0
	for _, item := range items {
		for _, inst := range instances {
			if !inst.Enabled || !item.Spec.InScope(inst.Name) {
				continue
			}
			job := &scheduler.Job{
				Marketplace:   inst.Name,
				Item:          item.Spec.Name,
				Interval:      inst.Interval,
				AllowParallel: inst.AllowParallel,
			}
			if err := sched.Add(job); err != nil {
				appLogger.WithError(err).Fatal("Failed to schedule job")
			}
			jobs++
		}
	}
	appLogger.WithField(logger.FieldCount, jobs).Info("Jobs scheduled")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srv *http.Server
	if cfg.Server.Enabled {
		router := api.SetupRouter(sched, listingCache, cfg.Server.Mode)
		srv = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: router}
		go func() {
			appLogger.WithField("port", cfg.Server.Port).Info("Status API listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLogger.WithError(err).Error("Status API failed")
			}
		}()
	}

	sched.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Received shutdown signal, stopping")

	cancel()
	sched.Stop()
	if srv != nil {
		_ = srv.Shutdown(context.Background())
	}
}

func buildStore(cfg *config.Config, log *logger.Logger) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return cache.NewRedisStore(rdb, cfg.Cache.Redis.Prefix), nil
	case "memory":
		log.Warn("Using in-memory cache backend; seen listings will be re-notified after a restart")
		return cache.NewMemoryStore(), nil
	default:
		db, err := cache.InitDB(&cache.DBConfig{
			Driver: cfg.Cache.Backend,
			Path:   cfg.Cache.Path,
			DSN:    cfg.Cache.DSN,
		})
		if err != nil {
			return nil, err
		}
		return cache.NewGormStore(db), nil
	}
}

func buildNotifiers(cfg *config.Config) ([]notify.Notifier, error) {
	var notifiers []notify.Notifier
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	}
	if cfg.Notify.Webhook.Enabled {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify.Webhook.URL))
	}
	if cfg.Notify.Markdown.Enabled {
		md, err := notify.NewMarkdownNotifier(notify.MarkdownConfig{
			OutputDir:          cfg.Notify.Markdown.OutputDir,
			FilenameFormat:     cfg.Notify.Markdown.FilenameFormat,
			IncludeFrontmatter: cfg.Notify.Markdown.IncludeFrontmatter,
			OverwriteExisting:  cfg.Notify.Markdown.OverwriteExisting,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, md)
	}
	return notifiers, nil
}
