package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/collatz-app/collatz/internal/api"
	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/config"
	"github.com/collatz-app/collatz/internal/embedding"
	"github.com/collatz-app/collatz/internal/inbox"
	"github.com/collatz-app/collatz/internal/jobs"
	"github.com/collatz-app/collatz/internal/lock"
	"github.com/collatz-app/collatz/internal/logging"
	"github.com/collatz-app/collatz/internal/metrics"
	"github.com/collatz-app/collatz/internal/outbox"
	"github.com/collatz-app/collatz/internal/profile"
	"github.com/collatz-app/collatz/internal/realtime"
	"github.com/collatz-app/collatz/internal/recommend"
	"github.com/collatz-app/collatz/internal/session"
	"github.com/collatz-app/collatz/internal/status"
	"github.com/collatz-app/collatz/internal/store"
	"github.com/collatz-app/collatz/internal/supabase"
	intsync "github.com/collatz-app/collatz/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	historyLimit    = 100
	breakerFailures = 3
	breakerCooldown = 30 * time.Second
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // optional; nil = load from ~/.collatz
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			metrics.New,
			provideSupabase,
			provideRealtime,
			provideFeed,
			provideSender,
			provideInbox,
			provideReconciler,
			provideSyncEngine,
			provideConnector,
			provideAggregator,
			provideIndexer,
			provideFetcher,
			provideProfiles,
			provideSessionService,
			provideInboxService,
			provideRecommendService,
			provideIndexService,
			provideOpsServer,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, config.Validate(p.Config)
	}
	return config.LoadEffective(session.ConfigPath(), session.EnvFiles()...)
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is never opened by two
// daemons.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideSupabase(cfg *config.Config, logger *zap.Logger) (*supabase.Client, error) {
	return supabase.New(supabase.Config{URL: cfg.Supabase.URL, AnonKey: cfg.Supabase.AnonKey}, logger)
}

func provideRealtime(cfg *config.Config, machine *status.Machine, logger *zap.Logger) *realtime.Client {
	return realtime.New(realtime.Config{
		URL:    cfg.Supabase.URL,
		APIKey: cfg.Supabase.AnonKey,
		OnConnect: func() {
			if machine.Current() == status.Reconnecting {
				_ = machine.Transition(status.Ready)
			}
		},
		OnDisconnect: func(error) {
			if machine.Current() == status.Ready {
				_ = machine.Transition(status.Reconnecting)
			}
		},
	}, logger)
}

func provideFeed(rt *realtime.Client, b *bus.Bus, logger *zap.Logger) *intsync.MessageFeed {
	return intsync.NewMessageFeed(rt, b, logger)
}

func provideSender(db *store.DB, sb *supabase.Client, b *bus.Bus, m *metrics.Collector, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, sb, b, m, logger)
}

func provideInbox(sb *supabase.Client, feed *intsync.MessageFeed, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) *inbox.Synchronizer {
	syn := inbox.New(sb, feed, sender, b, logger, inbox.Options{HistoryLimit: historyLimit})
	sender.SetObserver(syn)
	return syn
}

func provideReconciler(db *store.DB, sb *supabase.Client, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(db, sb, sb.CurrentUserID, logger)
}

func provideSyncEngine(db *store.DB, b *bus.Bus, r *intsync.Reconciler, sb *supabase.Client, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, r, sb.CurrentUserID, logger)
}

func provideConnector(p Params, sb *supabase.Client, rt *realtime.Client, r *intsync.Reconciler, m *status.Machine, logger *zap.Logger) *Connector {
	return NewConnector(session.CredentialsPath(p.SessionName), sb, rt, r, m, logger)
}

func provideAggregator(cfg *config.Config, sb *supabase.Client, m *metrics.Collector, logger *zap.Logger) *recommend.Aggregator {
	n := cfg.Recommend.MatchCount
	sources := []recommend.Source{
		recommend.WithBreaker(recommend.NewJobSource(sb, n), breakerFailures, breakerCooldown, logger),
		recommend.WithBreaker(recommend.NewHackathonSource(sb, n), breakerFailures, breakerCooldown, logger),
		recommend.WithBreaker(recommend.NewProjectSource(sb, n), breakerFailures, breakerCooldown, logger),
	}
	return recommend.NewAggregator(sources, recommend.Options{
		Timeout:      cfg.Recommend.SourceTimeout(),
		DefaultScore: cfg.Recommend.DefaultScore,
		Limit:        cfg.Recommend.PageSize,
	}, m, logger)
}

// provideIndexer returns nil when no embedding provider is usable.
func provideIndexer(cfg *config.Config, sb *supabase.Client, b *bus.Bus, m *metrics.Collector, logger *zap.Logger) (api.Indexer, error) {
	ec := cfg.Embedding
	var engine embedding.Engine
	switch ec.Provider {
	case "local":
		engine = embedding.NewLocalEngine(ec.LocalURL, ec.Dimensions)
	default:
		if ec.APIKey == "" {
			logger.Warn("embedding disabled: GEMINI_API_KEY not set")
			return nil, nil
		}
		g, err := embedding.NewGenAIEngine(context.Background(), embedding.GenAIConfig{
			APIKey:     ec.APIKey,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		engine = g
	}
	logger.Info("embedding engine ready", zap.String("engine", engine.Name()), zap.Int("dims", engine.Dimensions()))
	return embedding.NewIndexer(sb, engine, b, m, logger, embedding.IndexerOptions{
		BatchSize:  ec.BatchSize,
		RatePerSec: ec.RatePerSec,
	}), nil
}

func provideFetcher(cfg *config.Config, sb *supabase.Client, b *bus.Bus, m *metrics.Collector, logger *zap.Logger) *jobs.Fetcher {
	jc := cfg.Jobs
	return jobs.NewFetcher(jobs.Config{
		BaseURL:        jc.BaseURL,
		AppID:          jc.AppID,
		AppKey:         jc.AppKey,
		Country:        jc.Country,
		ResultsPerPage: jc.ResultsPerPage,
		DailyBudget:    jc.DailyBudget,
		SearchTerms:    jc.SearchTerms,
		StaleAfter:     jc.StaleDuration(),
	}, sb, b, m, logger)
}

func provideProfiles(sb *supabase.Client, logger *zap.Logger) *profile.Service {
	return profile.NewService(sb, logger)
}

func provideSessionService(p Params, m *status.Machine, c *Connector, b *bus.Bus, db *store.DB) *api.SessionService {
	return api.NewSessionService(p.SessionName, m, c, b, db)
}

func provideInboxService(cfg *config.Config, syn *inbox.Synchronizer, db *store.DB, r *intsync.Reconciler, sb *supabase.Client, b *bus.Bus, logger *zap.Logger) *api.InboxService {
	return api.NewInboxService(syn, db, r, sb.CurrentUserID, b, logger).
		WithUploader(sb, cfg.Supabase.ImagesBucket)
}

func provideRecommendService(agg *recommend.Aggregator, sb *supabase.Client) *api.RecommendService {
	return api.NewRecommendService(agg, sb.CurrentUserID)
}

func provideIndexService(idx api.Indexer, f *jobs.Fetcher, pr *profile.Service, sb *supabase.Client) *api.IndexService {
	return api.NewIndexService(idx, f, pr, sb.CurrentUserID)
}

// provideOpsServer returns nil when http.listen is unset.
func provideOpsServer(cfg *config.Config, m *metrics.Collector, machine *status.Machine, logger *zap.Logger) (*OpsServer, error) {
	if cfg.HTTP.Listen == "" {
		return nil, nil
	}
	return NewOpsServer(cfg.HTTP.Listen, NewOpsHandler(m, machine, logger), logger)
}

type lifecycleParams struct {
	fx.In

	Server    *Server
	Ops       *OpsServer
	Lock      *lock.Lock
	DB        *store.DB
	Realtime  *realtime.Client
	Engine    *intsync.Engine
	Sender    *outbox.Sender
	Inbox     *inbox.Synchronizer
	Connector *Connector
	Machine   *status.Machine
	Logger    *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, lp lifecycleParams) {
	runCtx, cancel := context.WithCancel(context.Background())
	rtDone := make(chan struct{})
	logger := lp.Logger

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Mirror feed rows and acks into the cache before anything can produce them.
			lp.Engine.Start(runCtx)

			go func() {
				defer close(rtDone)
				if err := lp.Realtime.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, realtime.ErrClosed) {
					logger.Error("realtime stopped", zap.Error(err))
					_ = lp.Machine.Ensure(status.Degraded)
				}
			}()

			go func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			if lp.Ops != nil {
				go func() {
					if err := lp.Ops.Start(); err != nil {
						logger.Error("ops server error", zap.Error(err))
					}
				}()
			}

			lp.Sender.Start(runCtx)
			lp.Connector.Start(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			lp.Server.Stop(ctx)
			if lp.Ops != nil {
				lp.Ops.Stop(ctx)
			}
			lp.Connector.Stop()
			lp.Inbox.Close(ctx)
			lp.Sender.Stop()
			lp.Engine.Stop()
			cancel()
			_ = lp.Realtime.Close()
			<-rtDone
			if err := lp.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
