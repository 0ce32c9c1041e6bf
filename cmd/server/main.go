package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jaminalder/codex-minimax/internal/app"
	"github.com/jaminalder/codex-minimax/internal/config"
	"github.com/jaminalder/codex-minimax/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := config.Default().Logger(os.Stderr)
		l.Fatal().Err(err).Msg("bad configuration")
	}
	logger := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger, nil); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is done. When ready is not nil it receives the
// bound address once the listener is open.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger, ready chan<- net.Addr) error {
	svc := app.NewService(app.WithLogger(logger), app.WithConfig(cfg))
	defer svc.Close()

	srv := &http.Server{
		Handler: web.NewServer(svc,
			web.WithLogger(logger),
			web.WithHeartbeat(cfg.Heartbeat),
			web.WithAllowedOrigins(cfg.AllowOrigins),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready <- ln.Addr()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Stringer("addr", ln.Addr()).Int("max_depth", cfg.MaxDepth).Int("pile_depth", cfg.PileDepth).Msg("server listening")
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
