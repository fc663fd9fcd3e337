package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapthttp "bpdiary/internal/adapter/http"
	"bpdiary/internal/adapter/notify"
	"bpdiary/internal/app"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const sessionPruneInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, reminder scheduler and health feed",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("closing backends", zap.Error(err))
		}
	}()

	pub, closePub, err := newPublisher(cfg.MQTT, log)
	if err != nil {
		return err
	}
	defer closePub()
	scheduler := notify.NewScheduler(pub, log.Named("scheduler"))

	slotSvc := app.NewSlotService(b.slots, scheduler, log.Named("slots"))
	if _, err := slotSvc.SeedDefaultsIfFirstLaunch(ctx); err != nil {
		return fmt.Errorf("seed default slots: %w", err)
	}
	// The scheduler starts empty on every boot.
	if _, err := slotSvc.ReconcileReminders(ctx); err != nil {
		log.Warn("reminder reconciliation incomplete", zap.Error(err))
	}

	index := app.NewReadingIndex()
	sub := index.Subscribe(ctx, b.health, app.WindowQuery(time.Now(), cfg.Reconcile.WindowDays), log.Named("feed"))
	defer sub.Cancel()

	readingSvc := app.NewReadingService(b.health, scheduler, log.Named("readings"))
	summarySvc := app.NewSummaryService(b.slots, index, cfg.Reconcile.Tolerance)
	authSvc := app.NewAuthService(b.users, b.sessions, cfg.OIDC.OwnerEmail)

	oidcCfg, err := adapthttp.NewOIDC(ctx, cfg.OIDC)
	if err != nil {
		return err
	}
	srv := adapthttp.New(slotSvc, readingSvc, summarySvc, authSvc, cfg.WebDir, log.Named("http")).
		WithOIDC(oidcCfg).
		WithHealthCheck(b.health)
	if cfg.DisableAuth {
		log.Warn("authentication disabled")
		srv = srv.WithoutAuth()
	}

	go scheduler.Run(ctx, cfg.ReminderCheck)
	go pruneSessions(ctx, authSvc, log)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func pruneSessions(ctx context.Context, auth *app.AuthService, log *zap.Logger) {
	ticker := time.NewTicker(sessionPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := auth.PruneSessions(ctx); err != nil {
				log.Warn("session prune failed", zap.Error(err))
			}
		}
	}
}
