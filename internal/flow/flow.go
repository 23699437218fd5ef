// Package flow is the report, search and claim dialogue state machine.
//
// Every function takes the user's current state and returns an Outcome: the
// next state, the reply to send, and any side effect for the caller to run.
// Nothing here touches storage or the network.
package flow

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/refound/lostfound-bot/internal/messages"
	"github.com/refound/lostfound-bot/internal/models"
)

const (
	MinTitleLen       = 3
	MaxTitleLen       = 100
	MaxDescriptionLen = 1000
	MinSearchLen      = 2
)

// Keyboard names the inline keyboard to attach to a reply.
type Keyboard int

const (
	NoKeyboard Keyboard = iota
	CategoryKeyboard
	LocationKeyboard
	MenuKeyboard
)

// Effect is work the caller performs after persisting the next state.
type Effect int

const (
	NoEffect Effect = iota
	CreateItem
	SubmitClaim
	RunSearch
)

// Outcome is the result of one step.
//
// Next is the state to persist; StateIdle means clear. Data is the full data
// bag: it is persisted for non-idle states and carries the report draft,
// claimed item id or search query for effects. Reply is empty when nothing
// should be sent.
type Outcome struct {
	Next      models.FlowState
	Data      models.ConversationData
	Reply     messages.Key
	ReplyData any
	Keyboard  Keyboard
	Effect    Effect
	Text      string // claim message for SubmitClaim
}

// Input is one user message while a dialogue is active. Command is set for
// "/skip" and "/done" and holds the bare command name.
type Input struct {
	Text    string
	PhotoID string
	Command string
}

// Clock supplies the current time and the zone used to read dates.
type Clock struct {
	Now      time.Time
	Location *time.Location
}

// Today is midnight of the current day in the clock's zone.
func (c Clock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	now := c.Now.In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

func stay(cur models.ConversationState, reply messages.Key, data any, kb Keyboard) Outcome {
	return Outcome{Next: cur.State, Data: cur.Data, Reply: reply, ReplyData: data, Keyboard: kb}
}

func typeData(t models.ItemType) map[string]models.ItemType {
	return map[string]models.ItemType{"Type": t}
}

// StartReport begins a lost or found report.
func StartReport(t models.ItemType) Outcome {
	return Outcome{
		Next:      models.StateReportCategory,
		Data:      models.ConversationData{ItemType: t},
		Reply:     messages.ChooseCategory,
		ReplyData: typeData(t),
		Keyboard:  CategoryKeyboard,
	}
}

// StartSearch asks for a search query.
func StartSearch() Outcome {
	return Outcome{Next: models.StateSearchQuery, Reply: messages.AskSearch}
}

// StartClaim asks the claimant to explain why itemID is theirs.
func StartClaim(itemID int64) Outcome {
	return Outcome{
		Next:  models.StateClaimMessage,
		Data:  models.ConversationData{ItemID: itemID},
		Reply: messages.AskClaimMessage,
	}
}

// Cancel abandons whatever dialogue is in progress.
func Cancel(cur models.ConversationState) Outcome {
	if cur.State == models.StateIdle {
		return Outcome{Reply: messages.NothingToCancel, Keyboard: MenuKeyboard}
	}
	return Outcome{Reply: messages.Cancelled, Keyboard: MenuKeyboard}
}

// SelectCategory handles a category button. Presses outside the category
// step leave the state alone and send nothing.
func SelectCategory(cur models.ConversationState, key string) Outcome {
	if cur.State != models.StateReportCategory || models.CategoryByKey(key) == nil {
		return stay(cur, "", nil, NoKeyboard)
	}
	data := cur.Data
	data.Category = key
	return Outcome{Next: models.StateReportTitle, Data: data, Reply: messages.AskTitle}
}

// SelectLocation handles a location button.
func SelectLocation(cur models.ConversationState, key string) Outcome {
	if cur.State != models.StateReportLocation || models.LocationByKey(key) == nil {
		return stay(cur, "", nil, NoKeyboard)
	}
	data := cur.Data
	data.Location = key
	return Outcome{Next: models.StateReportLocationDetail, Data: data, Reply: messages.AskLocationDetail}
}

// Advance feeds a text, photo or /skip, /done message into the dialogue.
func Advance(cur models.ConversationState, in Input, clock Clock) Outcome {
	text := strings.TrimSpace(in.Text)
	skip := in.Command == "skip"
	done := in.Command == "done"
	data := cur.Data

	switch cur.State {
	case models.StateReportCategory:
		return stay(cur, messages.UseButtons, nil, CategoryKeyboard)

	case models.StateReportTitle:
		if in.Command != "" || utf8.RuneCountInString(text) < MinTitleLen {
			return stay(cur, messages.TitleTooShort, map[string]int{"Min": MinTitleLen}, NoKeyboard)
		}
		if utf8.RuneCountInString(text) > MaxTitleLen {
			return stay(cur, messages.TitleTooLong, map[string]int{"Max": MaxTitleLen}, NoKeyboard)
		}
		data.Title = text
		return Outcome{Next: models.StateReportDescription, Data: data, Reply: messages.AskDescription}

	case models.StateReportDescription:
		switch {
		case skip:
			data.Description = ""
		case in.Command != "" || text == "":
			return stay(cur, messages.AskDescription, nil, NoKeyboard)
		case utf8.RuneCountInString(text) > MaxDescriptionLen:
			return stay(cur, messages.DescriptionTooLong, map[string]int{"Max": MaxDescriptionLen}, NoKeyboard)
		default:
			data.Description = text
		}
		return Outcome{
			Next:      models.StateReportLocation,
			Data:      data,
			Reply:     messages.ChooseLocation,
			ReplyData: typeData(data.ItemType),
			Keyboard:  LocationKeyboard,
		}

	case models.StateReportLocation:
		return stay(cur, messages.UseButtons, nil, LocationKeyboard)

	case models.StateReportLocationDetail:
		switch {
		case skip:
			data.LocationDetail = ""
		case in.Command != "" || text == "":
			return stay(cur, messages.AskLocationDetail, nil, NoKeyboard)
		default:
			// A date here means the user skipped the detail.
			if when, ok := ParseDate(text, clock); ok {
				if when.After(clock.Today()) {
					return stay(cur, messages.FutureDate, nil, NoKeyboard)
				}
				data.OccurredAt = &when
				return Outcome{Next: models.StateReportPhotos, Data: data, Reply: messages.AskPhotos}
			}
			data.LocationDetail = text
		}
		return Outcome{Next: models.StateReportDate, Data: data, Reply: messages.AskDate}

	case models.StateReportDate:
		when, ok := ParseDate(text, clock)
		if in.Command != "" || !ok {
			return stay(cur, messages.InvalidDate, nil, NoKeyboard)
		}
		if when.After(clock.Today()) {
			return stay(cur, messages.FutureDate, nil, NoKeyboard)
		}
		data.OccurredAt = &when
		return Outcome{Next: models.StateReportPhotos, Data: data, Reply: messages.AskPhotos}

	case models.StateReportPhotos:
		switch {
		case done || skip:
			return Outcome{Next: models.StateIdle, Data: data, Effect: CreateItem}
		case in.PhotoID != "":
			data.Photos = append(append([]string(nil), data.Photos...), in.PhotoID)
			return Outcome{
				Next:      models.StateReportPhotos,
				Data:      data,
				Reply:     messages.PhotoAdded,
				ReplyData: map[string]int{"Count": len(data.Photos)},
			}
		default:
			return stay(cur, messages.PhotoExpected, nil, NoKeyboard)
		}

	case models.StateSearchQuery:
		if in.Command != "" || utf8.RuneCountInString(text) < MinSearchLen {
			return stay(cur, messages.SearchTooShort, map[string]int{"Min": MinSearchLen}, NoKeyboard)
		}
		data.SearchQuery = text
		return Outcome{Next: models.StateIdle, Data: data, Effect: RunSearch}

	case models.StateClaimMessage:
		if data.ItemID == 0 {
			return Outcome{Next: models.StateIdle, Reply: messages.GenericError}
		}
		if in.Command != "" || text == "" {
			return stay(cur, messages.AskClaimMessage, nil, NoKeyboard)
		}
		return Outcome{Next: models.StateIdle, Data: data, Effect: SubmitClaim, Text: text}
	}

	return Outcome{Next: models.StateIdle, Reply: messages.Menu, Keyboard: MenuKeyboard}
}

// ParseDate reads "today", "yesterday" or a YYYY-MM-DD date as midnight in
// the clock's zone.
func ParseDate(text string, clock Clock) (time.Time, bool) {
	today := clock.Today()
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "today":
		return today, true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	}

	s := strings.TrimSpace(text)
	if len(s) != len("2006-01-02") {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", s, today.Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
