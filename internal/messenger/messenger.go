// Package messenger sends text and inline keyboards to chat users.
package messenger

import "context"

// Button is one inline keyboard button. Data is the callback payload
// returned when the button is pressed.
type Button struct {
	Label string
	Data  string
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// Row is a convenience for building a single keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

type Options struct {
	Keyboard Keyboard
}

// Messenger is the outbound side of the bot.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts Options) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
