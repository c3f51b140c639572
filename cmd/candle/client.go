package main

import (
	"fmt"
	"time"

	"github.com/candleworks/candle/internal/cache"
	"github.com/candleworks/candle/internal/client"
	"github.com/candleworks/candle/internal/config"
	"github.com/candleworks/candle/internal/connectivity"
	"github.com/candleworks/candle/internal/medium"
	"github.com/candleworks/candle/internal/notify"
	"github.com/candleworks/candle/internal/remote"
	"github.com/candleworks/candle/internal/schedule"
	"github.com/candleworks/candle/internal/syncq"
	"github.com/candleworks/candle/internal/types"
)

// clientEnv bundles everything a client-side command needs.
type clientEnv struct {
	cfg     *config.Config
	bolt    *medium.BoltMedium
	cache   *cache.Store
	queue   *syncq.Queue
	probe   connectivity.Probe
	service *client.Service
}

// newClientEnv wires the local cache, sync queue, remote datastore, and
// reminder dispatcher from configuration.
func newClientEnv() (*clientEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogger(cfg)

	cachePath := cfg.Cache.Path
	if cacheOverride != "" {
		cachePath = cacheOverride
	}

	bolt, err := medium.OpenBolt(cachePath)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	store := cache.New(bolt, time.Duration(cfg.Cache.TTL))
	queue := syncq.New(bolt)
	datastore := remote.NewHTTP(cfg.Remote.BaseURL, cfg.Auth.APIKey)
	probe := connectivity.NewHTTPProbe(cfg.Remote.BaseURL)

	reminders, err := buildReminders(cfg, bolt)
	if err != nil {
		bolt.Close()
		return nil, err
	}

	return &clientEnv{
		cfg:     cfg,
		bolt:    bolt,
		cache:   store,
		queue:   queue,
		probe:   probe,
		service: client.NewService(store, queue, datastore, probe, reminders),
	}, nil
}

func (e *clientEnv) Close() error {
	return e.bolt.Close()
}

// buildReminders constructs the notification dispatcher. Without a
// configured gateway, deliveries fall back to the logging notifier so
// the scheduling pipeline still runs in local-only mode.
func buildReminders(cfg *config.Config, m medium.Medium) (client.ReminderScheduler, error) {
	opts, err := plannerOptions(cfg.Reminders)
	if err != nil {
		return nil, err
	}
	planner := schedule.NewPlanner(opts...)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Reminders.GatewayURL != "" {
		notifier = notify.NewWebhook(cfg.Reminders.GatewayURL, cfg.Reminders.GatewayAPIKey,
			uint64(cfg.Reminders.MaxRetries))
	}

	messages, err := notify.NewMessages(cfg.Reminders.Locale)
	if err != nil {
		return nil, fmt.Errorf("load reminder messages: %w", err)
	}

	return notify.NewDispatcher(planner, notifier, notify.NewHandleRegistry(m), messages), nil
}

// plannerOptions translates reminder config into planner options.
func plannerOptions(cfg config.RemindersConfig) ([]schedule.Option, error) {
	var opts []schedule.Option

	times := map[types.ReminderOffset]string{
		types.OffsetWeekBefore: cfg.WeekBeforeAt,
		types.OffsetDayBefore:  cfg.DayBeforeAt,
		types.OffsetDayOf:      cfg.DayOfAt,
	}
	for offset, at := range times {
		if at == "" {
			continue
		}
		tod, err := schedule.ParseTimeOfDay(at)
		if err != nil {
			return nil, fmt.Errorf("reminder time for %s: %w", offset, err)
		}
		opts = append(opts, schedule.WithTimeOfDay(offset, tod))
	}

	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("reminder timezone: %w", err)
		}
		opts = append(opts, schedule.WithLocation(loc))
	}

	return opts, nil
}
