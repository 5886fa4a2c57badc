// Package server builds the application's dependencies and runs them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/keyword-tracker/internal/api"
	"github.com/JakeFAU/keyword-tracker/internal/clock/system"
	"github.com/JakeFAU/keyword-tracker/internal/config"
	"github.com/JakeFAU/keyword-tracker/internal/dispatcher"
	"github.com/JakeFAU/keyword-tracker/internal/executor"
	"github.com/JakeFAU/keyword-tracker/internal/fetcher"
	collyfetcher "github.com/JakeFAU/keyword-tracker/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/keyword-tracker/internal/fetcher/headless"
	"github.com/JakeFAU/keyword-tracker/internal/headless/detector"
	"github.com/JakeFAU/keyword-tracker/internal/id/uuid"
	lognotifier "github.com/JakeFAU/keyword-tracker/internal/notifier/log"
	pubsubnotifier "github.com/JakeFAU/keyword-tracker/internal/notifier/pubsub"
	smtpnotifier "github.com/JakeFAU/keyword-tracker/internal/notifier/smtp"
	"github.com/JakeFAU/keyword-tracker/internal/policy/ratelimit"
	queueMemory "github.com/JakeFAU/keyword-tracker/internal/queue/memory"
	"github.com/JakeFAU/keyword-tracker/internal/registry"
	"github.com/JakeFAU/keyword-tracker/internal/scheduler"
	"github.com/JakeFAU/keyword-tracker/internal/service"
	memoryStorage "github.com/JakeFAU/keyword-tracker/internal/storage/memory"
	"github.com/JakeFAU/keyword-tracker/internal/telemetry"
	"github.com/JakeFAU/keyword-tracker/internal/tracker"
	"github.com/JakeFAU/keyword-tracker/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	apiServer      *api.Server
	service        *service.Service
	registry       *registry.Registry
	dispatch       *dispatcher.Dispatcher
	scheduler      *scheduler.Scheduler
	queue          *queueMemory.Queue
	headless       *headlessfetcher.Fetcher
	pubsub         *pubsubnotifier.Notifier
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies. Schedules listed in the
// configuration are registered before Build returns.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.Int("workers", cfg.Workers.Concurrency),
		zap.Int("queue_depth", cfg.Workers.QueueDepth),
		zap.String("notify_driver", cfg.Notify.Driver),
	)

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		app.tracerShutdown = tp.Shutdown
	}

	pageFetcher, err := app.setupFetcher()
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	notifier, err := app.setupNotifier(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	exec := executor.New(pageFetcher, notifier, executor.Config{
		NotifyTimeout: time.Duration(cfg.Notify.TimeoutSeconds) * time.Second,
	}, logger.Named("executor"))

	if err := app.setupPipeline(exec); err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	if err := app.registerSchedules(ctx); err != nil {
		app.scheduler.Close()
		app.closeInfrastructure()
		return nil, err
	}
	return app, nil
}

func (a *App) setupFetcher() (tracker.PageFetcher, error) {
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.HTTP.UserAgent,
		RespectRobots: a.cfg.HTTP.RespectRobots,
		Timeout:       a.cfg.FetchTimeout(),
	})
	a.logger.Info("using colly probe fetcher",
		zap.String("user_agent", a.cfg.HTTP.UserAgent),
		zap.Bool("respect_robots", a.cfg.HTTP.RespectRobots),
	)

	var opts []fetcher.Option
	if a.cfg.Headless.Enabled {
		hf, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			UserAgent:         a.cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.headless = hf
		opts = append(opts, fetcher.WithHeadless(hf, detector.NewHeuristic(a.cfg.Headless.PromotionThresh)))
		a.logger.Info("using headless fetcher", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
	}
	if a.cfg.RateLimit.Enabled {
		opts = append(opts, fetcher.WithRateLimiter(ratelimit.New(ratelimit.Config{
			PerHostRPS: a.cfg.RateLimit.PerHostRPS,
			Burst:      a.cfg.RateLimit.Burst,
		})))
		a.logger.Info("per-host rate limiting enabled",
			zap.Float64("rps", a.cfg.RateLimit.PerHostRPS),
			zap.Int("burst", a.cfg.RateLimit.Burst),
		)
	}

	return fetcher.New(probe, fetcher.Config{Timeout: a.cfg.FetchTimeout()}, a.logger.Named("fetcher"), opts...), nil
}

func (a *App) setupNotifier(ctx context.Context) (tracker.Notifier, error) {
	switch a.cfg.Notify.Driver {
	case config.DriverSMTP:
		n, err := smtpnotifier.New(smtpnotifier.Config{
			Host:      a.cfg.SMTP.Host,
			Port:      a.cfg.SMTP.Port,
			Username:  a.cfg.SMTP.Username,
			Password:  a.cfg.SMTP.Password,
			From:      a.cfg.SMTP.From,
			Recipient: a.cfg.Notify.Recipient,
			Timeout:   time.Duration(a.cfg.Notify.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("smtp notifier init failed: %w", err)
		}
		a.logger.Info("using smtp notifier", zap.String("host", a.cfg.SMTP.Host), zap.Int("port", a.cfg.SMTP.Port))
		return n, nil
	case config.DriverPubSub:
		n, err := pubsubnotifier.Open(ctx, pubsubnotifier.Config{
			ProjectID: a.cfg.PubSub.ProjectID,
			TopicID:   a.cfg.PubSub.TopicID,
			Recipient: a.cfg.Notify.Recipient,
		})
		if err != nil {
			return nil, fmt.Errorf("pubsub notifier init failed: %w", err)
		}
		a.pubsub = n
		a.logger.Info("using pubsub notifier",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.TopicID),
		)
		return n, nil
	default:
		a.logger.Info("using log notifier", zap.String("recipient", a.cfg.Notify.Recipient))
		return lognotifier.New(a.logger, a.cfg.Notify.Recipient), nil
	}
}

func (a *App) setupPipeline(exec tracker.Executor) error {
	clock := system.New()
	ids := uuid.New()

	a.queue = queueMemory.NewQueue(a.cfg.Workers.QueueDepth)
	dispatch, err := dispatcher.New(a.queue, nil, dispatcher.Config{
		Backpressure:   a.cfg.Workers.Backpressure,
		EnqueueTimeout: time.Duration(a.cfg.Workers.EnqueueTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("dispatcher init failed: %w", err)
	}
	a.dispatch = dispatch
	a.registry = registry.New(memoryStorage.NewTaskStore(clock), dispatch, ids, clock, a.logger.Named("registry"))
	for range a.cfg.Workers.Concurrency {
		dispatch.AddWorker(worker.New(a.queue, a.registry, exec, a.logger.Named("worker")))
	}

	a.scheduler = scheduler.New(a.registry, ids, clock, a.logger.Named("scheduler"))
	a.service = service.New(a.registry, a.scheduler, a.logger.Named("service"))
	a.apiServer = api.NewServer(a.service, api.Config{
		RequestTimeout: time.Duration(a.cfg.Server.RequestTimeoutSeconds) * time.Second,
	}, a.logger.Named("api"))
	return nil
}

func (a *App) registerSchedules(ctx context.Context) error {
	for _, sc := range a.cfg.Schedules {
		interval, err := sc.Interval()
		if err != nil {
			return fmt.Errorf("register schedule %q: %w", sc.Name, err)
		}
		name, err := a.service.ScheduleTracking(ctx, service.ScheduleRequest{
			URL:      sc.URL,
			Keywords: sc.Keywords,
			Interval: interval,
			JobName:  sc.Name,
		})
		if err != nil {
			return fmt.Errorf("register schedule %q: %w", sc.Name, err)
		}
		a.logger.Info("registered configured schedule",
			zap.String("job_name", name),
			zap.String("url", sc.URL),
			zap.Duration("interval", interval),
		)
	}
	return nil
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run listens on the configured port and serves until SIGINT, SIGTERM or ctx
// cancellation.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		_ = a.Close(ctx)
		return fmt.Errorf("listen on port %d: %w", a.cfg.Server.Port, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the workers, the retention sweeper and the HTTP server on ln
// until ctx ends, then shuts everything down.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Workers.Concurrency))
		a.dispatch.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.registry.RunSweeper(gctx, a.cfg.SweepInterval(), a.cfg.Retention())
		return nil
	})
	g.Go(func() error {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		a.scheduler.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	runErr := g.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Close(shutdownCtx))
}

// Close releases the queue, browser, Pub/Sub client and tracer.
func (a *App) Close(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Close()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure()
	var err error
	if a.tracerShutdown != nil {
		if serr := a.tracerShutdown(ctx); serr != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(serr))
			err = serr
		}
	}
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) closeInfrastructure() {
	if a.headless != nil {
		a.headless.Close()
		a.headless = nil
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsub = nil
	}
}
