package bot

import (
	"context"
	"errors"

	"github.com/refound/lostfound-bot/internal/messages"
	"github.com/refound/lostfound-bot/internal/metrics"
	"github.com/refound/lostfound-bot/internal/models"
)

var userErrors = []struct {
	err error
	key messages.Key
}{
	{models.ErrNotFound, messages.NotFound},
	{models.ErrNotOwner, messages.NotOwner},
	{models.ErrClaimExists, messages.ClaimExists},
	{models.ErrOwnItem, messages.OwnItem},
	{models.ErrItemUnavailable, messages.ItemUnavailable},
	{models.ErrClaimResolved, messages.ClaimResolved},
}

// errorMessage picks the reply for err. Unknown errors get the generic
// retry message.
func errorMessage(err error) (messages.Key, bool) {
	for _, e := range userErrors {
		if errors.Is(err, e.err) {
			return e.key, true
		}
	}
	return messages.GenericError, false
}

// fail tells the user what went wrong. Store and transport errors are logged
// and counted; a missing record also ends any dialogue in progress.
func (b *Bot) fail(ctx context.Context, s *session, err error) {
	key, known := errorMessage(err)
	if !known {
		metrics.HandlerErrors.Inc()
		s.logger.Error("handler_failed", "error", err)
	}

	if errors.Is(err, models.ErrNotFound) && s.conv.Active() {
		if cerr := b.db.ClearConversation(ctx, s.user.ID); cerr != nil {
			s.logger.Error("clear_conversation_failed", "error", cerr)
		}
		s.conv = models.ConversationState{UserID: s.user.ID}
	}

	b.reply(ctx, s, messages.Text(key), nil)
}
