package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hongjs/code-tanuki/internal/app"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const dotEnvPath = ".env"

func main() {
	flags := pflag.NewFlagSet("tanuki-server", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "config file (default ./tanuki.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, console)")
	flags.Float64("rate-limit", 5, "API requests per second per client, 0 disables")
	flags.Duration("duplicate-window", 0, "reject repeat reviews of a PR inside this window")
	flags.Duration("retention", 0, "delete runs older than this, 0 keeps everything")
	flags.String("ignore-file", ".aiignore", "path of the ignore pattern file")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfgFile, flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgFile string, flags *pflag.FlagSet) error {
	a, err := app.New(ctx, app.Options{
		DotEnvPath: dotEnvPath,
		ConfigFile: cfgFile,
		Flags:      flags,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler, err := a.NewScheduler()
	if err != nil {
		return err
	}
	e := a.NewServer()

	eg, egctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		a.Logger.Info("server listening", zap.String("addr", a.Settings.Port))
		if err := e.Start(a.Settings.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.Config.GitHub.WatchIgnore {
		eg.Go(func() error {
			return a.Ignore.Watch(egctx)
		})
	}

	if a.Retention.Enabled() {
		scheduler.Start()
		a.Logger.Info("retention enabled",
			zap.Duration("max_age", a.Config.Retention.MaxAge),
			zap.String("schedule", a.Config.Retention.Schedule),
		)
	}

	eg.Go(func() error {
		<-egctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		err := e.Shutdown(shutdownCtx)
		if serr := scheduler.Shutdown(); serr != nil {
			a.Logger.Warn("scheduler shutdown", zap.Error(serr))
		}
		return err
	})

	return eg.Wait()
}
