// Package bot turns Telegram updates into dialogue steps, store calls and
// replies.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/refound/lostfound-bot/internal/db"
	"github.com/refound/lostfound-bot/internal/flow"
	"github.com/refound/lostfound-bot/internal/messages"
	"github.com/refound/lostfound-bot/internal/messenger"
	"github.com/refound/lostfound-bot/internal/metrics"
	"github.com/refound/lostfound-bot/internal/models"
	"github.com/refound/lostfound-bot/internal/payload"
)

// MatchNotifier looks for matches of a new item and tells its owner.
type MatchNotifier interface {
	RecordAndNotify(ctx context.Context, itemID int64)
}

// PhotoHasher fingerprints an item's photos.
type PhotoHasher interface {
	HashItemPhotos(ctx context.Context, itemID int64) error
}

type Config struct {
	AdminIDs      []int64 // Telegram user IDs
	Location      *time.Location
	RateLimit     rate.Limit
	RateBurst     int
	WebhookSecret string
}

type Bot struct {
	db            *db.DB
	msgr          messenger.Messenger
	matcher       MatchNotifier
	hasher        PhotoHasher
	limiter       *limiterPool
	locks         *userLocks
	adminIDs      []int64
	loc           *time.Location
	webhookSecret string
	now           func() time.Time
	logger        *slog.Logger
	wg            sync.WaitGroup
}

// New wires a Bot. hasher may be nil.
func New(cfg Config, database *db.DB, msgr messenger.Messenger, matcher MatchNotifier, hasher PhotoHasher, logger *slog.Logger) *Bot {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	limit, burst := cfg.RateLimit, cfg.RateBurst
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}

	return &Bot{
		db:            database,
		msgr:          msgr,
		matcher:       matcher,
		hasher:        hasher,
		limiter:       newLimiterPool(limit, burst),
		locks:         newUserLocks(),
		adminIDs:      cfg.AdminIDs,
		loc:           loc,
		webhookSecret: cfg.WebhookSecret,
		now:           time.Now,
		logger:        logger,
	}
}

// Wait blocks until background match notification and photo hashing finish.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// session is the per-update context shared by message and callback handlers.
type session struct {
	user   *models.User
	chatID int64
	conv   models.ConversationState
	logger *slog.Logger
}

// HandleUpdate processes one Telegram update. It never panics. Updates from
// the same user are handled one at a time.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	logger := b.logger.With("trace_id", uuid.NewString(), "update_id", update.UpdateID)
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerErrors.Inc()
			logger.Error("update_panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if id := senderID(update); id != 0 {
		unlock := b.locks.Lock(id)
		defer unlock()
	}

	switch {
	case update.Message != nil:
		metrics.Updates.WithLabelValues("message").Inc()
		b.handleMessage(ctx, logger, update.Message)
	case update.CallbackQuery != nil:
		metrics.Updates.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, logger, update.CallbackQuery)
	default:
		metrics.Updates.WithLabelValues("ignored").Inc()
	}
}

func (b *Bot) handleMessage(ctx context.Context, logger *slog.Logger, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	logger = logger.With("user_id", msg.From.ID)
	cmd, args := parseCommand(msg.Text)

	if !msg.Chat.IsPrivate() {
		if cmd != "" {
			b.sendMessage(ctx, logger, msg.Chat.ID, messages.Text(messages.PrivateOnly), nil)
		}
		return
	}

	s, ok := b.begin(ctx, logger, msg.From, msg.Chat.ID)
	if !ok {
		return
	}

	switch {
	case cmd == "cancel":
		b.apply(ctx, s, flow.Cancel(s.conv))
	case (cmd == "skip" || cmd == "done") && s.conv.Active():
		b.advance(ctx, s, flow.Input{Command: cmd})
	case cmd != "":
		if s.conv.Active() {
			if err := b.db.ClearConversation(ctx, s.user.ID); err != nil {
				b.fail(ctx, s, err)
				return
			}
			s.conv = models.ConversationState{UserID: s.user.ID}
		}
		b.handleCommand(ctx, s, cmd, args)
	case s.conv.Active():
		b.advance(ctx, s, flow.Input{Text: msg.Text, PhotoID: largestPhoto(msg.Photo)})
	default:
		b.reply(ctx, s, messages.Text(messages.Menu), menuKeyboard())
	}
}

// begin rate-limits the sender, records them and loads their dialogue. It
// returns false when the update must not be processed further.
func (b *Bot) begin(ctx context.Context, logger *slog.Logger, from *tgbotapi.User, chatID int64) (*session, bool) {
	if !b.limiter.Allow(from.ID) {
		metrics.Updates.WithLabelValues("rate_limited").Inc()
		logger.Debug("rate_limited")
		return nil, false
	}

	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if name == "" {
		name = from.UserName
	}
	user, err := b.db.UpsertUser(ctx, from.ID, name, from.UserName, b.isAdmin(from.ID))
	if err != nil {
		metrics.HandlerErrors.Inc()
		logger.Error("upsert_user_failed", "error", err)
		b.sendMessage(ctx, logger, chatID, messages.Text(messages.GenericError), nil)
		return nil, false
	}
	if user.IsBanned {
		b.sendMessage(ctx, logger, chatID, messages.Text(messages.Banned), nil)
		return nil, false
	}

	s := &session{user: user, chatID: chatID, logger: logger, conv: models.ConversationState{UserID: user.ID}}
	cs, err := b.db.GetConversation(ctx, user.ID)
	if err != nil {
		b.fail(ctx, s, err)
		return nil, false
	}
	if cs != nil {
		s.conv = *cs
	}
	return s, true
}

func (b *Bot) handleCommand(ctx context.Context, s *session, cmd, args string) {
	switch cmd {
	case "start":
		b.reply(ctx, s, messages.Render(messages.Welcome, map[string]string{"Name": s.user.DisplayName}), menuKeyboard())
	case "lost":
		b.apply(ctx, s, flow.StartReport(models.ItemLost))
	case "found":
		b.apply(ctx, s, flow.StartReport(models.ItemFound))
	case "browse":
		b.reply(ctx, s, messages.Text(messages.BrowsePrompt), browseFilterKeyboard())
	case "search":
		b.apply(ctx, s, flow.StartSearch())
	case "my":
		b.handleMyItems(ctx, s)
	case "admin":
		b.handleAdmin(ctx, s, args)
	default:
		b.reply(ctx, s, messages.Text(messages.Help), nil)
	}
}

func (b *Bot) advance(ctx context.Context, s *session, in flow.Input) {
	b.apply(ctx, s, flow.Advance(s.conv, in, flow.Clock{Now: b.now(), Location: b.loc}))
}

// apply persists the outcome's state, sends its reply and runs its effect.
func (b *Bot) apply(ctx context.Context, s *session, out flow.Outcome) {
	var err error
	switch {
	case out.Next != models.StateIdle:
		err = b.db.SetConversation(ctx, s.user.ID, out.Next, out.Data)
	case s.conv.Active():
		err = b.db.ClearConversation(ctx, s.user.ID)
	}
	if err != nil {
		b.fail(ctx, s, err)
		return
	}
	s.conv = models.ConversationState{UserID: s.user.ID, State: out.Next, Data: out.Data}

	if out.Reply != "" {
		b.reply(ctx, s, messages.Render(out.Reply, out.ReplyData), flowKeyboard(out.Keyboard))
	}

	switch out.Effect {
	case flow.CreateItem:
		b.createItem(ctx, s, out.Data)
	case flow.SubmitClaim:
		b.submitClaim(ctx, s, out.Data.ItemID, out.Text)
	case flow.RunSearch:
		b.search(ctx, s, out.Data.SearchQuery)
	}
}

func (b *Bot) createItem(ctx context.Context, s *session, data models.ConversationData) {
	item, err := b.db.CreateItem(ctx, data.Draft(s.user.ID))
	if err != nil {
		b.fail(ctx, s, err)
		return
	}

	metrics.ItemsReported.WithLabelValues(string(item.Type)).Inc()
	s.logger.Info("item_created", "item_id", item.ID, "type", item.Type, "category", item.Category, "photos", len(data.Photos))

	kb := messenger.Keyboard{messenger.Row(button("👀 View report", payload.ViewItem{ID: item.ID})), menuRow()}
	b.reply(ctx, s, messages.Render(messages.ItemCreated, item), kb)

	itemID := item.ID
	b.background(ctx, "record_and_notify", func(ctx context.Context) {
		b.matcher.RecordAndNotify(ctx, itemID)
	})
	if b.hasher != nil && len(data.Photos) > 0 {
		b.background(ctx, "hash_photos", func(ctx context.Context) {
			if err := b.hasher.HashItemPhotos(ctx, itemID); err != nil {
				s.logger.Warn("hash_photos_failed", "item_id", itemID, "error", err)
			}
		})
	}
}

func (b *Bot) submitClaim(ctx context.Context, s *session, itemID int64, text string) {
	claim, err := b.db.CreateClaim(ctx, itemID, s.user.ID, text)
	if err != nil {
		b.fail(ctx, s, err)
		return
	}

	metrics.Claims.WithLabelValues("submitted").Inc()
	s.logger.Info("claim_submitted", "claim_id", claim.ID, "item_id", itemID)
	b.reply(ctx, s, messages.Text(messages.ClaimSubmitted), menuKeyboard())

	item, err := b.db.GetItem(ctx, itemID)
	if err != nil || item == nil {
		s.logger.Warn("claim_notify_failed", "claim_id", claim.ID, "error", err)
		return
	}
	owner, err := b.db.GetUser(ctx, item.OwnerID)
	if err != nil || owner == nil {
		s.logger.Warn("claim_notify_failed", "claim_id", claim.ID, "error", err)
		return
	}

	notice := messages.Render(messages.ClaimReceived, map[string]any{
		"Title":    item.Title,
		"ItemID":   item.ID,
		"Claimant": messages.UserName(s.user),
		"Message":  claim.Message,
	})
	b.sendMessage(ctx, s.logger, owner.TelegramID, notice, claimKeyboard(claim.ID))
}

const searchLimit = 10

func (b *Bot) search(ctx context.Context, s *session, query string) {
	items, err := b.db.SearchItems(ctx, query, searchLimit)
	if err != nil {
		b.fail(ctx, s, err)
		return
	}

	data := map[string]string{"Query": query}
	if len(items) == 0 {
		b.reply(ctx, s, messages.Render(messages.NoResults, data), menuKeyboard())
		return
	}
	b.reply(ctx, s, messages.ItemList(messages.Render(messages.SearchResults, data), items, b.loc), append(itemButtons(items), menuRow()))
}

func (b *Bot) handleMyItems(ctx context.Context, s *session) {
	items, err := b.db.ListItems(ctx, db.ItemFilter{OwnerID: s.user.ID, ExcludeDeleted: true, Limit: searchLimit})
	if err != nil {
		b.fail(ctx, s, err)
		return
	}
	if len(items) == 0 {
		b.reply(ctx, s, messages.Text(messages.MyItemsEmpty), menuKeyboard())
		return
	}
	b.reply(ctx, s, messages.ItemList(messages.Text(messages.MyItemsHeader), items, b.loc), append(itemButtons(items), menuRow()))
}

// background runs fn detached from the update's cancellation. Panics are
// logged.
func (b *Bot) background(ctx context.Context, task string, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.HandlerErrors.Inc()
				b.logger.Error("background_panic", "task", task, "panic", r)
			}
		}()
		fn(ctx)
	}()
}

func (b *Bot) reply(ctx context.Context, s *session, text string, kb messenger.Keyboard) {
	b.sendMessage(ctx, s.logger, s.chatID, text, kb)
}

func (b *Bot) sendMessage(ctx context.Context, logger *slog.Logger, chatID int64, text string, kb messenger.Keyboard) {
	if err := b.msgr.SendMessage(ctx, chatID, text, messenger.Options{Keyboard: kb}); err != nil {
		logger.Error("send_message_failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) isAdmin(telegramID int64) bool {
	for _, id := range b.adminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// parseCommand splits "/name@bot args" into its lowercased name and the
// remaining text. Non-commands return an empty name.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	name, args := text[1:], ""
	if i := strings.IndexFunc(name, unicode.IsSpace); i >= 0 {
		name, args = name[:i], strings.TrimSpace(name[i:])
	}
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), args
}

func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	best, area := "", -1
	for _, p := range sizes {
		if a := p.Width * p.Height; a > area {
			best, area = p.FileID, a
		}
	}
	return best
}

func parseID(args string) (int64, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return 0, fmt.Errorf("no ID provided")
	}
	return strconv.ParseInt(args, 10, 64)
}
