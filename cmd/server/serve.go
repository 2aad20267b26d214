package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	router "github.com/dkeye/danmaku/internal/adapters/http"
	"github.com/dkeye/danmaku/internal/adapters/rtc"
	"github.com/dkeye/danmaku/internal/adapters/signal"
	"github.com/dkeye/danmaku/internal/app"
	"github.com/dkeye/danmaku/internal/app/orch"
	"github.com/dkeye/danmaku/internal/auth"
	"github.com/dkeye/danmaku/internal/captcha"
	"github.com/dkeye/danmaku/internal/config"
	"github.com/dkeye/danmaku/internal/live"
	"github.com/dkeye/danmaku/internal/mail"
	"github.com/dkeye/danmaku/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg())
		},
	}
}

func serve(cfg *config.Config) error {
	db, err := storage.Open(cfg.DatabasePath, cfg.Mode == "debug")
	if err != nil {
		return err
	}
	if err := storage.Migrate(db); err != nil {
		return err
	}
	logs := storage.NewLogRepository(db)
	audit := storage.NewAuditLog(logs, cfg.AuditWorkers)

	sched := captcha.NewScheduler()
	captchas, err := captcha.NewStore(sched, captcha.Options{
		Expiry:   cfg.Captcha.Expiry,
		Cooldown: cfg.Captcha.Cooldown,
		Length:   cfg.Captcha.Length,
	})
	if err != nil {
		return err
	}
	rooms, err := app.NewRoomManager(cfg.DanmakuHistory)
	if err != nil {
		return err
	}

	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    rooms,
		Policy:   app.PolicyFor(cfg.SlowConsumer),
		Limiter:  app.NewRateLimiter(cfg.DanmakuRate.Limit, cfg.DanmakuRate.Interval),
		Users:    storage.NewUserRepository(db),
		Logs:     logs,
		Audit:    audit,
		Tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		Hasher:   auth.NewPasswordHasher(cfg.BcryptCost),
		Captcha:  captchas,
		Mailer:   mail.LogMailer{},
		Streams: live.NewSigner(live.Config{
			PushKey:          cfg.Live.PushKey,
			PullKey:          cfg.Live.PullKey,
			PushServer:       cfg.Live.PushServer,
			PullServerRTMP:   cfg.Live.PullServerRTMP,
			PullServerWebRTC: cfg.Live.PullServerWebRTC,
		}),
		ICE:           rtc.ICEServers(cfg.ICEServers),
		AdminPassword: cfg.AdminPassword,
	}

	// Cancelling ctx tears down every websocket pump.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		SendBuffer: cfg.SendBuffer,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(ctx, cfg, ctl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("danmaku server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, map[string]gfshutdown.Operation{
		"server": func(shutdownCtx context.Context) error {
			log.Info().Msg("Shutting down")
			cancel()
			err := srv.Shutdown(shutdownCtx)
			sched.Stop()
			audit.Close()
			return errors.Join(err, storage.Close(db))
		},
	})
	if code := <-wait; code != 0 {
		return fmt.Errorf("shutdown finished with code %d", code)
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
