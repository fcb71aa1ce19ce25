package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/callstate/internal/adapters/http"
	"github.com/dkeye/callstate/internal/adapters/memsdk"
	"github.com/dkeye/callstate/internal/config"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/demo"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/dkeye/callstate/internal/facade"
	"github.com/dkeye/callstate/internal/metrics"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine and serve the state inspector",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	sdk := memsdk.NewClient()
	client := facade.NewStatefulClient(sdk, facade.Options{
		UserID:        domain.CommunicationUser("local"),
		Capacities:    cfg.Capacities(),
		Renderers:     memsdk.NewRendererFactory(),
		Recorder:      m,
		CreateTimeout: cfg.Render.CreateTimeout,
	})

	agent, err := client.CreateCallAgent(ctx, core.CallAgentOptions{DisplayName: "inspector"})
	if err != nil {
		return fmt.Errorf("create call agent: %w", err)
	}
	if _, err := client.DeviceManager(ctx); err != nil {
		return fmt.Errorf("device manager: %w", err)
	}
	log.Info().Str("display_name", agent.DisplayName()).Msg("call agent ready")

	r := router.SetupRouter(ctx, cfg, client, m.Registry())
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("version", version).Msg("callstate server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Demo.Enabled {
		g.Go(func() error {
			return demo.NewDriver(sdk, client).Run(gctx, cfg.Demo.Interval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		err := srv.Shutdown(shutdownCtx)
		if derr := client.Dispose(shutdownCtx); derr != nil {
			log.Error().Err(derr).Msg("dispose failed")
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
