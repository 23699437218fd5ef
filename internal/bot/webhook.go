package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/refound/lostfound-bot/internal/metrics"
)

const (
	WebhookPath  = "/telegram/webhook"
	secretHeader = "X-Telegram-Bot-Api-Secret-Token"
	maxBodyBytes = 1 << 20
)

// Handler serves the Telegram webhook, /healthz and /metrics.
func (b *Bot) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+WebhookPath, b.handleWebhook)
	mux.HandleFunc("GET /healthz", b.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// handleWebhook answers 200 for every authenticated request so Telegram does
// not redeliver updates the bot has already seen.
func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(secretHeader)
	if b.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(b.webhookSecret)) != 1 {
		b.logger.Warn("webhook_unauthorized", "remote_addr", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&update); err != nil {
		b.logger.Warn("webhook_decode_failed", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	b.HandleUpdate(r.Context(), update)
	w.WriteHeader(http.StatusOK)
}

func (b *Bot) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := b.db.Ping(ctx); err != nil {
		b.logger.Error("health_check_failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Run long-polls Telegram until ctx is cancelled, handling each update on its
// own goroutine. HandleUpdate keeps one user's updates in sequence.
func (b *Bot) Run(ctx context.Context, api *tgbotapi.BotAPI) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("removing webhook before polling: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	b.logger.Info("polling_started", "account", api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			b.logger.Info("polling_stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// SetWebhook registers url with Telegram, asking it to send secret in the
// X-Telegram-Bot-Api-Secret-Token header.
func SetWebhook(api *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", []string{"message", "callback_query"}); err != nil {
		return fmt.Errorf("encoding webhook params: %w", err)
	}

	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setting webhook: %w", err)
	}
	return nil
}
