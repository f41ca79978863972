package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vpnsgde/gold-quant/pkg/config"
	xhttp "github.com/vpnsgde/gold-quant/pkg/http"
	pkgkafka "github.com/vpnsgde/gold-quant/pkg/kafka"
	applogger "github.com/vpnsgde/gold-quant/pkg/logger"
)

// App owns the HTTP server, the optional Kafka job consumer and every
// resource that must be closed on shutdown.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	jobs       pkgkafka.MessageHandler
	closers    []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{cfg: cfg, log: log, httpServer: httpServer}
}

// WithConsumer attaches a consumer and the handler it should run.
func (a *App) WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) *App {
	a.consumer, a.jobs = c, h
	return a
}

// AddCloser registers a resource closed in reverse order on shutdown.
func (a *App) AddCloser(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, namedCloser{name: name, c: c})
	}
}

// Run starts all components and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

func (a *App) Start() error {
	if a.consumer != nil && a.jobs != nil {
		a.consumer.RegisterHandler(a.jobs)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.log.Info("forecast jobs enabled", applogger.String("topic", a.jobs.Topic()))
	}
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops intake first, then closes resources. All errors are joined.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.log.Info("shutdown complete", applogger.Duration("grace", remaining(ctx)))
	return errors.Join(errs...)
}

func remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		return time.Until(dl)
	}
	return 0
}
