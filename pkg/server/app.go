package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MeanRev/internal/handler/api"
	"MeanRev/internal/middleware"
	"MeanRev/internal/usecase"
	pkgch "MeanRev/pkg/clickhouse"
	"MeanRev/pkg/config"
	xhttp "MeanRev/pkg/http"
	pkgkafka "MeanRev/pkg/kafka"
	applogger "MeanRev/pkg/logger"
	"MeanRev/pkg/queue"
)

// App encapsulates the entire application lifecycle: the decision
// pipeline loop, the outbound dispatcher, the HTTP surface, and the
// optional Kafka and job-queue workers.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	pipeline   *usecase.Pipeline
	dispatcher *middleware.Dispatcher
	hub        *api.Hub
	handler    *api.DecisionsEchoHandler
	newsRunner NewsRunner
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	jobQueue   *queue.RedisQueue
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// NewsRunner periodically refreshes the economic calendar; nil when the
// calendar is file-only.
type NewsRunner interface {
	Run(ctx context.Context)
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.Pipeline,
	dispatcher *middleware.Dispatcher,
	hub *api.Hub,
	handler *api.DecisionsEchoHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		hub:        hub,
		handler:    handler,
		chClient:   chClient,
	}
}

// SetNewsRunner attaches the calendar refresh loop.
func (a *App) SetNewsRunner(r NewsRunner) { a.newsRunner = r }

// SetConsumer attaches an inbound Kafka bar consumer.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// SetJobQueue attaches the backtest job queue.
func (a *App) SetJobQueue(q *queue.RedisQueue) { a.jobQueue = q }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if a.hub != nil {
		a.hub.RegisterRoutes(a.httpServer.Echo())
	}

	a.dispatcher.Start(ctx)

	if a.newsRunner != nil {
		go a.newsRunner.Run(ctx)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			a.l.Error("job queue start error", applogger.Error(err))
		}
	}

	go func() {
		if err := a.pipeline.Run(ctx, a.cfg.Pipeline.TickInterval, a.cfg.Pipeline.TickBackoff); err != nil && ctx.Err() == nil {
			a.l.Error("pipeline stopped", applogger.Error(err))
		}
	}()
	a.l.Info("pipeline started",
		applogger.String("pair", a.cfg.Pipeline.Pair),
		applogger.Duration("interval", a.cfg.Pipeline.TickInterval),
	)

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	a.dispatcher.Stop()

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
