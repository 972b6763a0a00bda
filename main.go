package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/room4-2/SalesCaller/calendar"
	"github.com/room4-2/SalesCaller/config"
	"github.com/room4-2/SalesCaller/conversation"
	"github.com/room4-2/SalesCaller/dates"
	"github.com/room4-2/SalesCaller/gemini"
	"github.com/room4-2/SalesCaller/messages"
	"github.com/room4-2/SalesCaller/metrics"
	"github.com/room4-2/SalesCaller/monitor"
	"github.com/room4-2/SalesCaller/server"
	"github.com/room4-2/SalesCaller/session"
	"github.com/room4-2/SalesCaller/telephony"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// The Google credential is prepared once here. Consent is never requested
	// while serving calls; run cmd/authorize when it is missing.
	oauthCfg, err := calendar.LoadClientConfig(cfg.Google.CredentialsFile)
	if err != nil {
		return err
	}
	tokens, err := calendar.NewTokenSource(context.Background(), oauthCfg, calendar.NewTokenCache(cfg.Google.TokenFile), logger)
	if errors.Is(err, calendar.ErrConsentRequired) {
		logger.Error("google calendar is not authorized, run: go run ./cmd/authorize",
			zap.String("token_file", cfg.Google.TokenFile))
		return err
	}
	if err != nil {
		return err
	}

	scheduler, err := calendar.NewScheduler(ctx, calendar.Options{
		CalendarID: cfg.Google.CalendarID,
		Location:   loc,
		Duration:   cfg.Google.MeetingDuration,
	}, logger, option.WithTokenSource(tokens))
	if err != nil {
		return err
	}

	var interpreterOpts []dates.Option
	if cfg.Gemini.APIKey != "" {
		extractor, err := gemini.NewExtractor(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			return err
		}
		interpreterOpts = append(interpreterOpts, dates.WithFallback(extractor))
		logger.Info("gemini date fallback enabled", zap.String("model", cfg.Gemini.Model))
	}
	interpreter := dates.NewInterpreter(loc, logger, interpreterOpts...)

	sessions := session.NewManager(cfg, logger)
	defer sessions.Shutdown()

	gateway := telephony.NewGateway(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber, logger)

	srv := server.NewServer(cfg, server.Deps{
		Sessions:  sessions,
		Caller:    gateway,
		Booker:    conversation.NewBooker(interpreter, scheduler, gateway, sessions, logger),
		Documents: messages.NewDocuments(cfg.Dialogue.GatherTimeout, cfg.PublicBaseURL),
		Monitor:   monitor.NewHub(cfg.MonitorOrigins, logger),
		Metrics:   metrics.New(sessions),
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
