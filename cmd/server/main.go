package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-adaptive/internal/ai"
	"github.com/p-n-ai/pai-adaptive/internal/chat"
	"github.com/p-n-ai/pai-adaptive/internal/jobs"
	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
	"github.com/p-n-ai/pai-adaptive/internal/locale"
	"github.com/p-n-ai/pai-adaptive/internal/mastery"
	"github.com/p-n-ai/pai-adaptive/internal/platform/cache"
	"github.com/p-n-ai/pai-adaptive/internal/platform/config"
	"github.com/p-n-ai/pai-adaptive/internal/platform/database"
	"github.com/p-n-ai/pai-adaptive/internal/profile"
	"github.com/p-n-ai/pai-adaptive/internal/recommend"
	"github.com/p-n-ai/pai-adaptive/internal/review"
)

const connectTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, cleanup, err := bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if cfg.Reminder.Enabled {
		notifier, err := newNotifier(cfg.Reminder)
		if err != nil {
			slog.Error("failed to create reminder notifier", "error", err)
			os.Exit(1)
		}
		job := jobs.NewReminderJob(jobs.ReminderConfig{
			Source:    a.scheduler,
			Notifier:  notifier,
			Interval:  time.Duration(cfg.Reminder.IntervalMinutes) * time.Minute,
			StartHour: cfg.Reminder.StartHour,
			EndHour:   cfg.Reminder.EndHour,
		})
		if err := job.Start(); err != nil {
			slog.Error("failed to start reminder job", "error", err)
			os.Exit(1)
		}
		defer job.Stop()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newMux(a),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// bootstrap connects the optional backing services and assembles the app.
// Postgres and Redis failures degrade to in-memory stores.
func bootstrap(ctx context.Context, cfg *config.Config) (*app, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db := connectDatabase(ctx, cfg.Database)
	if db != nil {
		closers = append(closers, db.Close)
	}
	kv := connectCache(ctx, cfg.Cache)
	if kv != nil {
		closers = append(closers, func() { _ = kv.Close() })
	}

	graph, err := loadGraph(ctx, cfg.Graph, db)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	slog.Info("knowledge graph loaded", "source", cfg.Graph.Source, "nodes", graph.Len())

	deps := appConfig{
		Graph:          graph,
		DefaultGrade:   cfg.Adaptive.DefaultGrade,
		MemoryStrength: cfg.Adaptive.MemoryStrength,
		Language:       locale.Match(cfg.Adaptive.Locale),
		Weights: recommend.Weights{
			Mastery:    cfg.Adaptive.MasteryWeight,
			Difficulty: cfg.Adaptive.DiffWeight,
			Dependency: cfg.Adaptive.DepWeight,
			Recency:    cfg.Adaptive.RecencyWeight,
		},
		AI: newRouter(cfg.AI),
	}

	if kv != nil {
		deps.Grades = kv.Grades(0)
		deps.Checks = append(deps.Checks, namedCheck{"cache", kv.HealthCheck})
	} else {
		deps.Grades = profile.NewMemoryResolver()
	}

	if db != nil {
		masteryStore, err := mastery.NewPostgresStore(db.Pool)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("creating mastery store: %w", err)
		}
		reviewStore, err := review.NewPostgresStore(db.Pool)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("creating review store: %w", err)
		}
		deps.MasteryStore = masteryStore
		deps.Events = mastery.NewPostgresEventLogger(db.Pool)
		deps.ReviewStore = reviewStore
		deps.Checks = append(deps.Checks, namedCheck{"database", db.HealthCheck})
	} else {
		slog.Warn("running on in-memory stores; learner data will not survive a restart")
	}

	return newApp(deps), cleanup, nil
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) *database.DB {
	if cfg.URL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := database.New(ctx, cfg.URL, cfg.MaxConns, cfg.MinConns)
	if err != nil {
		slog.Warn("database unavailable, using in-memory stores", "error", err)
		return nil
	}
	if err := db.Migrate(ctx); err != nil {
		slog.Warn("database migration failed, using in-memory stores", "error", err)
		db.Close()
		return nil
	}
	return db
}

func connectCache(ctx context.Context, cfg config.CacheConfig) *cache.Cache {
	if cfg.URL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	kv, err := cache.New(ctx, cfg.URL)
	if err != nil {
		slog.Warn("cache unavailable, keeping learner grades in memory", "error", err)
		return nil
	}
	return kv
}

// loadGraph reads the knowledge graph from the configured source. An empty
// Postgres table is seeded from the built-in nodes.
func loadGraph(ctx context.Context, cfg config.GraphConfig, db *database.DB) (*knowledge.Graph, error) {
	switch cfg.Source {
	case config.GraphSourceYAML:
		g, err := knowledge.LoadYAML(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("loading knowledge graph from %s: %w", cfg.Dir, err)
		}
		return g, nil
	case config.GraphSourcePostgres:
		if db == nil {
			slog.Warn("graph source is postgres but the database is unavailable, using seed graph")
			return knowledge.LoadSeed()
		}
		g, err := knowledge.LoadPostgres(ctx, db.Pool)
		if err != nil {
			return nil, fmt.Errorf("loading knowledge graph from postgres: %w", err)
		}
		if g.Len() > 0 {
			return g, nil
		}
		seed, err := knowledge.LoadSeed()
		if err != nil {
			return nil, err
		}
		if err := knowledge.SavePostgres(ctx, db.Pool, seed); err != nil {
			return nil, fmt.Errorf("seeding knowledge graph: %w", err)
		}
		slog.Info("seeded knowledge graph into postgres", "nodes", seed.Len())
		return seed, nil
	default:
		return knowledge.LoadSeed()
	}
}

// newNotifier delivers reminders over Telegram when a bot token is set and
// to the log otherwise.
func newNotifier(cfg config.ReminderConfig) (jobs.Notifier, error) {
	if cfg.TelegramBotToken == "" {
		return jobs.LogNotifier{}, nil
	}
	tg, err := chat.NewTelegramChannel(cfg.TelegramBotToken)
	if err != nil {
		return nil, err
	}
	gw := chat.NewGateway()
	gw.Register("telegram", tg)
	return gw, nil
}

func newRouter(cfg config.AIConfig) *ai.Router {
	router := ai.NewRouter()
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey,
			ai.WithBaseURL(cfg.DeepSeek.BaseURL),
			ai.WithDefaultModel(cfg.DeepSeek.Model),
		))
	}
	if cfg.Doubao.APIKey != "" {
		router.Register("doubao", ai.NewDoubaoProvider(cfg.Doubao.APIKey,
			ai.WithBaseURL(cfg.Doubao.BaseURL),
			ai.WithDefaultModel(cfg.Doubao.Model),
		))
	}
	if cfg.DailyTokenLimit > 0 {
		router.SetBudget(ai.NewInMemoryBudget(int64(cfg.DailyTokenLimit), nil))
	}
	if router.HasProvider() {
		slog.Info("AI providers configured", "providers", router.Providers())
	} else {
		slog.Info("no AI provider configured, coaching uses templates")
	}
	return router
}
