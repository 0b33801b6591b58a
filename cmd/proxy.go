package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/StanHuanng/anthropo-reader/internal/metrics"
	"github.com/StanHuanng/anthropo-reader/internal/proxy"
)

var proxyBindings = bindings{
	"proxy.listen":          "listen",
	"proxy.upstream":        "upstream",
	"proxy.timeout_seconds": "timeout",
}

func newProxyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Serve the CORS relay for the notice endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd.Flags(), proxyBindings)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			srv := &http.Server{
				Addr: cfg.Proxy.Listen,
				Handler: proxy.NewServer(proxy.Config{
					Upstream: cfg.Proxy.Upstream,
					Timeout:  time.Duration(cfg.Proxy.TimeoutSeconds) * time.Second,
				}, nil, metrics.New(), logger.Named("proxy")).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return serve(cmd.Context(), srv, logger)
		},
	}
	f := cmd.Flags()
	f.String("listen", ":8787", "listen address")
	f.String("upstream", "https://jw.scut.edu.cn", "upstream origin")
	f.Int("timeout", 15, "upstream timeout in seconds")
	return cmd
}

// serve runs srv until ctx is cancelled, then drains it.
func serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
