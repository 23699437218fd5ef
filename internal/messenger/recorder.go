package messenger

import (
	"context"
	"strings"
	"sync"
)

// Sent is one message captured by Recorder.
type Sent struct {
	ChatID    int64
	MessageID int // set for edits
	Text      string
	Keyboard  Keyboard
	Edit      bool
}

// Recorder is an in-memory Messenger for tests.
type Recorder struct {
	mu        sync.Mutex
	messages  []Sent
	callbacks []string
	Err       error
}

func (r *Recorder) SendMessage(_ context.Context, chatID int64, text string, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, Sent{ChatID: chatID, Text: text, Keyboard: opts.Keyboard})
	return nil
}

func (r *Recorder) EditMessage(_ context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, Sent{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb, Edit: true})
	return nil
}

func (r *Recorder) AnswerCallback(_ context.Context, callbackID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, callbackID)
	return nil
}

// Messages returns a copy of everything sent or edited so far.
func (r *Recorder) Messages() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.messages))
	copy(out, r.messages)
	return out
}

// To returns the messages sent to chatID.
func (r *Recorder) To(chatID int64) []Sent {
	var out []Sent
	for _, m := range r.Messages() {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message, or the zero value.
func (r *Recorder) Last() Sent {
	msgs := r.Messages()
	if len(msgs) == 0 {
		return Sent{}
	}
	return msgs[len(msgs)-1]
}

// Contains reports whether any message to chatID contains substr.
func (r *Recorder) Contains(chatID int64, substr string) bool {
	for _, m := range r.To(chatID) {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

func (r *Recorder) Callbacks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.callbacks...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.callbacks = nil
}

// Buttons flattens a keyboard into its callback payloads.
func (k Keyboard) Buttons() []string {
	var out []string
	for _, row := range k {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}
