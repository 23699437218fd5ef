package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/refound/lostfound-bot/internal/db"
	"github.com/refound/lostfound-bot/internal/flow"
	"github.com/refound/lostfound-bot/internal/messages"
	"github.com/refound/lostfound-bot/internal/messenger"
	"github.com/refound/lostfound-bot/internal/metrics"
	"github.com/refound/lostfound-bot/internal/models"
	"github.com/refound/lostfound-bot/internal/payload"
)

func (b *Bot) handleCallback(ctx context.Context, logger *slog.Logger, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil {
		return
	}
	logger = logger.With("user_id", cq.From.ID)

	// Telegram shows a spinner until the query is answered.
	if err := b.msgr.AnswerCallback(ctx, cq.ID, ""); err != nil {
		logger.Warn("answer_callback_failed", "error", err)
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}

	s, ok := b.begin(ctx, logger, cq.From, cq.Message.Chat.ID)
	if !ok {
		return
	}

	p, err := payload.Parse(cq.Data)
	if err != nil {
		logger.Warn("malformed_callback", "data", cq.Data, "error", err)
		return
	}
	b.route(ctx, s, p, cq.Message.MessageID)
}

// route dispatches a button press. messageID is the message carrying the
// button, edited in place by page navigation.
func (b *Bot) route(ctx context.Context, s *session, p payload.Payload, messageID int) {
	switch p := p.(type) {
	case payload.StartReport:
		b.apply(ctx, s, flow.StartReport(p.Type))
	case payload.SelectCategory:
		b.apply(ctx, s, flow.SelectCategory(s.conv, p.Key))
	case payload.SelectLocation:
		b.apply(ctx, s, flow.SelectLocation(s.conv, p.Key))
	case payload.Browse:
		b.sendPage(ctx, s, p.Filter, p.Offset, 0)
	case payload.Page:
		b.sendPage(ctx, s, p.Filter, p.Offset, messageID)
	case payload.ViewItem:
		b.handleView(ctx, s, p.ID)
	case payload.StartClaim:
		b.handleStartClaim(ctx, s, p.ItemID)
	case payload.DeleteItem:
		b.handleDelete(ctx, s, p.ItemID)
	case payload.MainMenu:
		b.reply(ctx, s, messages.Text(messages.Menu), menuKeyboard())
	case payload.MyItems:
		b.handleMyItems(ctx, s)
	case payload.StartSearch:
		b.apply(ctx, s, flow.StartSearch())
	case payload.ResolveClaim:
		b.handleResolve(ctx, s, p.ClaimID, p.Approve)
	default:
		s.logger.Warn("unhandled_callback", "payload", p.Encode())
	}
}

// sendPage shows one page of active items. A non-zero messageID edits that
// message instead of sending a new one.
func (b *Bot) sendPage(ctx context.Context, s *session, filter payload.BrowseFilter, offset, messageID int) {
	if offset < 0 {
		offset = 0
	}
	f := db.ItemFilter{Type: filter.ItemType(), State: models.ItemActive}
	total, err := b.db.CountItems(ctx, f)
	if err != nil {
		b.fail(ctx, s, err)
		return
	}
	f.Limit, f.Offset = PageSize, offset
	items, err := b.db.ListItems(ctx, f)
	if err != nil {
		b.fail(ctx, s, err)
		return
	}

	var text string
	var kb messenger.Keyboard
	if len(items) == 0 {
		text = messages.Text(messages.NoMoreItems)
	} else {
		header := messages.Render(messages.BrowseHeader, map[string]any{
			"Filter": filterLabel(filter),
			"Page":   offset/PageSize + 1,
			"Pages":  (total + PageSize - 1) / PageSize,
		})
		text = messages.ItemList(header, items, b.loc)
		kb = pageKeyboard(filter, offset, items, offset+len(items) < total)
	}

	if messageID == 0 {
		b.reply(ctx, s, text, kb)
		return
	}
	if err := b.msgr.EditMessage(ctx, s.chatID, messageID, text, kb); err != nil {
		s.logger.Warn("edit_message_failed", "message_id", messageID, "error", err)
	}
}

func filterLabel(f payload.BrowseFilter) string {
	switch f {
	case payload.FilterLost:
		return "Lost"
	case payload.FilterFound:
		return "Found"
	}
	return "All"
}

// activeItem loads an item that has not been deleted. Deleted items read as
// not found.
func (b *Bot) activeItem(ctx context.Context, id int64) (*models.Item, error) {
	item, err := b.db.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.State == models.ItemDeleted {
		return nil, models.ErrNotFound
	}
	return item, nil
}

func (b *Bot) handleView(ctx context.Context, s *session, itemID int64) {
	item, err := b.activeItem(ctx, itemID)
	if err != nil {
		b.fail(ctx, s, err)
		return
	}

	photos, err := b.db.ListPhotos(ctx, item.ID)
	if err != nil {
		s.logger.Warn("list_photos_failed", "item_id", item.ID, "error", err)
	}
	text := messages.ItemDetail(*item, len(photos), b.now(), b.loc)

	var matches []models.Match
	if item.OwnerID == s.user.ID {
		pending, err := b.db.CountClaims(ctx, item.ID, models.ClaimPending)
		if err != nil {
			s.logger.Warn("count_claims_failed", "item_id", item.ID, "error", err)
		}
		if pending > 0 {
			text += "\n" + messages.Render(messages.PendingClaims, map[string]int{"Count": pending})
		}
		if matches, err = b.db.ListMatches(ctx, item.ID); err != nil {
			s.logger.Warn("list_matches_failed", "item_id", item.ID, "error", err)
		}
	}
	b.reply(ctx, s, text, itemKeyboard(item, s.user, matches))
}

func (b *Bot) handleStartClaim(ctx context.Context, s *session, itemID int64) {
	item, err := b.activeItem(ctx, itemID)
	switch {
	case err != nil:
	case item.OwnerID == s.user.ID:
		err = models.ErrOwnItem
	case item.State != models.ItemActive:
		err = models.ErrItemUnavailable
	}
	if err != nil {
		b.fail(ctx, s, err)
		return
	}
	b.apply(ctx, s, flow.StartClaim(item.ID))
}

func (b *Bot) handleDelete(ctx context.Context, s *session, itemID int64) {
	if err := b.db.DeleteItem(ctx, itemID, s.user.ID); err != nil {
		b.fail(ctx, s, err)
		return
	}
	s.logger.Info("item_deleted", "item_id", itemID)
	b.reply(ctx, s, messages.Text(messages.ItemDeleted), menuKeyboard())
}

// handleResolve records the owner's decision on a claim and tells the
// claimant.
func (b *Bot) handleResolve(ctx context.Context, s *session, claimID int64, approve bool) {
	claim, item, err := b.db.ResolveClaim(ctx, claimID, s.user.ID, approve)
	if err != nil {
		b.fail(ctx, s, err)
		return
	}

	outcome, ownerKey, claimantKey := "rejected", messages.ClaimRejectedOwner, messages.ClaimRejected
	if approve {
		outcome, ownerKey, claimantKey = "approved", messages.ClaimApprovedOwner, messages.ClaimApproved
	}
	metrics.Claims.WithLabelValues(outcome).Inc()
	s.logger.Info("claim_resolved", "claim_id", claim.ID, "item_id", item.ID, "outcome", outcome)

	b.reply(ctx, s, messages.Render(ownerKey, map[string]any{"ItemID": item.ID}), nil)

	claimant, err := b.db.GetUser(ctx, claim.ClaimantID)
	if err != nil || claimant == nil {
		s.logger.Warn("claimant_notify_failed", "claim_id", claim.ID, "error", err)
		return
	}
	notice := messages.Render(claimantKey, map[string]any{
		"Title": item.Title,
		"Owner": messages.UserName(s.user),
	})
	b.sendMessage(ctx, s.logger, claimant.TelegramID, notice, nil)
}
