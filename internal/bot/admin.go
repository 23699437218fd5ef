package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/refound/lostfound-bot/internal/messages"
	"github.com/refound/lostfound-bot/internal/models"
)

// handleAdmin serves "/admin", "/admin ban <id>" and "/admin unban <id>".
func (b *Bot) handleAdmin(ctx context.Context, s *session, args string) {
	if !s.user.IsAdmin() {
		b.reply(ctx, s, messages.Text(messages.AdminOnly), nil)
		return
	}

	fields := strings.Fields(args)
	if len(fields) == 0 {
		stats, err := b.db.Stats(ctx)
		if err != nil {
			b.fail(ctx, s, err)
			return
		}
		b.reply(ctx, s, messages.Render(messages.AdminStats, stats), nil)
		return
	}

	if len(fields) != 2 || (fields[0] != "ban" && fields[0] != "unban") {
		b.reply(ctx, s, messages.Text(messages.AdminUsage), nil)
		return
	}
	telegramID, err := parseID(fields[1])
	if err != nil {
		b.reply(ctx, s, messages.Text(messages.AdminUsage), nil)
		return
	}

	banned := fields[0] == "ban"
	data := map[string]int64{"TelegramID": telegramID}
	if err := b.db.SetBanned(ctx, telegramID, banned); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.reply(ctx, s, messages.Render(messages.UnknownUser, data), nil)
			return
		}
		b.fail(ctx, s, err)
		return
	}

	s.logger.Info("user_ban_changed", "target_telegram_id", telegramID, "banned", banned)
	key := messages.UserUnbanned
	if banned {
		key = messages.UserBanned
	}
	b.reply(ctx, s, messages.Render(key, data), nil)
}
