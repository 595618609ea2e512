package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/sms-dispatch-gateway/cmd/mainconfig"
	"github.com/wolfman30/sms-dispatch-gateway/internal/app/bootstrap"
	appconfig "github.com/wolfman30/sms-dispatch-gateway/internal/config"
	"github.com/wolfman30/sms-dispatch-gateway/internal/dispatch"
	"github.com/wolfman30/sms-dispatch-gateway/internal/recipients"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

func main() {
	// A missing .env file is normal in production.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := connectDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	gw, err := bootstrap.BuildGateway(ctx, cfg, logger, deps)
	if err != nil {
		logger.Error("failed to build gateway", "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	if len(os.Args) == 2 {
		code := runOnce(ctx, gw.Service, os.Args[1], cfg.THBSenderName, cfg.DefaultMessage, os.Stdout)
		gw.Close()
		cleanup()
		os.Exit(code)
	}

	if err := serve(ctx, cfg, gw.Handler, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// connectDeps dials the optional backing services named in cfg.
func connectDeps(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (bootstrap.Deps, func(), error) {
	var deps bootstrap.Deps
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}

	if client := bootstrap.BuildRedisClient(ctx, cfg, logger, true); client != nil {
		deps.Redis = client
		closers = append(closers, func() { _ = client.Close() })
	}
	if pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
		deps.Postgres = pool
		closers = append(closers, pool.Close)
	}
	if cfg.UsesAWS() {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			cleanup()
			return deps, func() {}, fmt.Errorf("load aws config: %w", err)
		}
		deps.S3 = mainconfig.NewS3Client(awsCfg)
		deps.SES = mainconfig.NewSESClient(awsCfg)
	}
	return deps, cleanup, nil
}

type batchExecutor interface {
	Execute(ctx context.Context, jobID string, req dispatch.Request) dispatch.Summary
}

// runOnce sends the numbers in the file at path with the default sender and
// message, prints the summary and returns the process exit code.
func runOnce(ctx context.Context, svc batchExecutor, path, sender, message string, out io.Writer) int {
	var summary dispatch.Summary
	numbers, err := recipients.ReadNumbersFile(path)
	switch {
	case errors.Is(err, recipients.ErrNotFound):
		summary = dispatch.Summary{Target: path, Source: dispatch.SourceCLI, Err: &dispatch.ListNotFoundError{Name: path}}
	case err != nil:
		summary = dispatch.Summary{Target: path, Source: dispatch.SourceCLI, Err: fmt.Errorf("error reading file: %w", err)}
	default:
		summary = svc.Execute(ctx, "", dispatch.Request{
			Target:  path,
			Numbers: numbers,
			Sender:  sender,
			Message: message,
			Source:  dispatch.SourceCLI,
		})
	}
	fmt.Fprintln(out, summary.Text())
	if summary.Err != nil {
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *appconfig.Config, handler http.Handler, logger *logging.Logger) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
