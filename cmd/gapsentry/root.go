package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tradewatch/gapsentry/internal/config"
	"github.com/tradewatch/gapsentry/internal/dedup"
	"github.com/tradewatch/gapsentry/internal/enrich"
	"github.com/tradewatch/gapsentry/internal/logger"
	"github.com/tradewatch/gapsentry/internal/market"
	"github.com/tradewatch/gapsentry/internal/scan"
	"github.com/tradewatch/gapsentry/internal/session"
	"github.com/tradewatch/gapsentry/internal/storage"
	"github.com/tradewatch/gapsentry/internal/telegram"
)

func newRootCommand() *cobra.Command {
	var (
		configPath string
		once       bool
		interval   time.Duration
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:          "gapsentry",
		Short:        "Small-cap gap scanner with session-aware scheduling and Telegram alerts",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if interval > 0 {
				cfg.Scanner.Interval = interval
			}
			if verbose {
				cfg.Logging.Level = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger.Init(cfg.Logging.Level, cfg.Logging.Format)
			log.Info().Str("config", configPath).Msg("configuration loaded")

			return run(cmd.Context(), cfg, once)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "path to configuration file")
	cmd.Flags().BoolVar(&once, "once", false, "run a single scan cycle and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "override the base scan interval")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(parent context.Context, cfg *config.Config, once bool) error {
	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close checkpoint store")
		}
	}()

	windows, err := cfg.SessionWindows()
	if err != nil {
		return err
	}
	clock := session.NewClock(windows)

	fetcher := market.NewClient(
		cfg.Market.BaseURL, cfg.Market.APIKey, cfg.Market.APISecret,
		cfg.Scanner.CallTimeout, cfg.Market.RatePerSec, cfg.Market.Burst,
	)

	var historical scan.HistoricalProvider
	if cfg.Enrich.Historical.Enabled {
		historical = enrich.NewHistoricalClient(
			cfg.Enrich.Historical.BaseURL,
			cfg.Enrich.Historical.Email,
			cfg.Enrich.Historical.Password,
			cfg.Scanner.CallTimeout,
		)
	}
	var insight scan.InsightProvider
	if cfg.Enrich.AI.Enabled {
		insight = enrich.NewInsightClient(
			cfg.Enrich.AI.BaseURL,
			cfg.Enrich.AI.APIKey,
			cfg.Enrich.AI.Model,
			cfg.Scanner.CallTimeout,
		)
	}

	var (
		dispatcher scan.Dispatcher
		render     scan.RenderFunc
		tgClient   *telegram.Client
	)
	if cfg.Telegram.Enabled {
		tgClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		dispatcher = tgClient
		render = telegram.FormatAlert
		log.Info().Msg("Telegram client initialized")
	} else {
		log.Debug().Msg("Telegram notifications disabled")
	}

	sched, err := scan.New(scan.Options{
		Config: scan.SchedulerConfig{
			BaseInterval:         cfg.Scanner.Interval,
			RegularMultiplier:    cfg.Session.RegularMultiplier,
			AfterHoursMultiplier: cfg.Session.AfterHoursMultiplier,
			CycleBudget:          cfg.Scanner.CycleBudget,
			CallTimeout:          cfg.Scanner.CallTimeout,
			MaxAlertsPerCycle:    cfg.Scanner.MaxAlertsPerCycle,
			DispatchRetries:      cfg.Telegram.MaxRetries,
			DispatchBackoffBase:  cfg.Telegram.RetryDelayBase,
			Universe:             cfg.Scanner.Universe,
		},
		Sessions: clock,
		Filter: scan.Thresholds{
			MinGapPercent:    cfg.Filter.MinGapPercent,
			MinPrice:         cfg.Filter.MinPrice,
			MaxPrice:         cfg.Filter.MaxPrice,
			MaxFloatMillions: cfg.Filter.MaxFloatMillions,
		},
		Scoring: scan.NewEngine(scan.ScoreConfig{
			MaxScale:              cfg.Score.MaxScale,
			GapMax:                cfg.Score.GapMax,
			VolumeMax:             cfg.Score.VolumeMax,
			FloatMax:              cfg.Score.FloatMax,
			HistoricalMax:         cfg.Score.HistoricalMax,
			AIMax:                 cfg.Score.AIMax,
			GapSaturationPercent:  cfg.Score.GapSaturationPercent,
			VolumeSaturationRatio: cfg.Score.VolumeSaturationRatio,
			MaxFloatMillions:      cfg.Filter.MaxFloatMillions,
		}),
		Fetcher:    fetcher,
		Dedup:      dedup.New(store),
		Historical: historical,
		Insight:    insight,
		Dispatcher: dispatcher,
		Render:     render,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if tgClient != nil {
		tgClient.ListenForCommands(ctx, statusLine(sched, store, clock))
	}

	if once {
		return sched.RunOnce(ctx)
	}

	log.Info().
		Dur("interval", cfg.Scanner.Interval).
		Int("universe", len(cfg.Scanner.Universe)).
		Float64("min_gap_percent", cfg.Filter.MinGapPercent).
		Msg("starting scan scheduler")
	return sched.Run(ctx)
}

// statusLine builds the /status bot command reply.
func statusLine(sched *scan.Scheduler, store *storage.Storage, clock *session.Clock) func() string {
	return func() string {
		now := time.Now()
		stats := sched.Stats()
		alertsToday := 0
		if records, err := store.AlertsForDate(context.Background(), clock.SessionDate(now)); err == nil {
			alertsToday = len(records)
		}
		return fmt.Sprintf("state: %s | session: %s | cycles: %d | alerts today: %d | last cycle: %s",
			sched.State(), clock.Classify(now), stats.Cycles, alertsToday, stats.LastCycleDuration)
	}
}
