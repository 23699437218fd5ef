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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/refound/lostfound-bot/internal/bot"
	"github.com/refound/lostfound-bot/internal/db"
	"github.com/refound/lostfound-bot/internal/imaging"
	"github.com/refound/lostfound-bot/internal/matching"
	"github.com/refound/lostfound-bot/internal/messenger"
	"github.com/refound/lostfound-bot/internal/sweeper"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (long polling, or webhook when telegram.webhook_url is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, v)
		},
	}
}

func serve(ctx context.Context, v *viper.Viper) error {
	cfg, logger, err := loadConfig(v)
	if err != nil {
		return err
	}
	logger.Info("starting", "db_path", cfg.DB.Path, "webhook", cfg.Webhook())

	database, err := db.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer database.Close()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("telegram_authorized", "account", api.Self.UserName)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	tg := messenger.NewTelegram(api)
	finder := matching.NewFinder(database, matching.Config{
		WindowDays: cfg.Matching.WindowDays,
		MinScore:   cfg.Matching.MinScore,
		TopK:       cfg.Matching.TopK,
		Location:   loc,
	}, logger)
	notifier := matching.NewNotifier(database, finder, tg, logger)
	hasher := imaging.NewHasher(tg, database, logger)

	b := bot.New(bot.Config{
		AdminIDs:      cfg.Bot.AdminIDs,
		Location:      loc,
		RateLimit:     rate.Limit(cfg.Bot.RateLimit),
		RateBurst:     cfg.Bot.RateBurst,
		WebhookSecret: cfg.Telegram.WebhookSecret,
	}, database, tg, notifier, hasher, logger)

	sw := sweeper.New(database, sweeper.Config{
		Cron:            cfg.Sweeper.Cron,
		ItemMaxAge:      cfg.Sweeper.ItemMaxAge,
		ConversationTTL: cfg.Sweeper.ConversationTTL,
	}, logger)
	if err := sw.Start(ctx); err != nil {
		return err
	}

	if cfg.Webhook() {
		err = serveWebhook(ctx, b, api, cfg.Telegram.ListenAddr, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret)
	} else {
		err = b.Run(ctx, api)
	}

	logger.Info("waiting_for_background_work")
	b.Wait()
	logger.Info("stopped")
	return err
}

func serveWebhook(ctx context.Context, b *bot.Bot, api *tgbotapi.BotAPI, addr, url, secret string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if err := bot.SetWebhook(api, url, secret); err != nil {
		_ = srv.Close()
		return err
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
