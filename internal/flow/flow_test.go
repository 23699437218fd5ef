package flow

import (
	"strings"
	"testing"
	"time"

	"github.com/refound/lostfound-bot/internal/messages"
	"github.com/refound/lostfound-bot/internal/models"
)

var clock = Clock{
	Now:      time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
	Location: time.UTC,
}

func apply(cur models.ConversationState, out Outcome) models.ConversationState {
	if out.Next == models.StateIdle {
		return models.ConversationState{UserID: cur.UserID}
	}
	return models.ConversationState{UserID: cur.UserID, State: out.Next, Data: out.Data}
}

func TestFullLostReport(t *testing.T) {
	cs := models.ConversationState{UserID: 1}

	out := StartReport(models.ItemLost)
	if out.Next != models.StateReportCategory || out.Keyboard != CategoryKeyboard {
		t.Fatalf("unexpected start outcome: %+v", out)
	}
	cs = apply(cs, out)

	steps := []struct {
		name string
		run  func(models.ConversationState) Outcome
		want models.FlowState
	}{
		{"category", func(c models.ConversationState) Outcome { return SelectCategory(c, "keys") }, models.StateReportTitle},
		{"title", func(c models.ConversationState) Outcome { return Advance(c, Input{Text: "Car keys"}, clock) }, models.StateReportDescription},
		{"skip description", func(c models.ConversationState) Outcome { return Advance(c, Input{Text: "/skip", Command: "skip"}, clock) }, models.StateReportLocation},
		{"location", func(c models.ConversationState) Outcome { return SelectLocation(c, "gym") }, models.StateReportLocationDetail},
		{"date as detail", func(c models.ConversationState) Outcome { return Advance(c, Input{Text: "today"}, clock) }, models.StateReportPhotos},
		{"photo", func(c models.ConversationState) Outcome { return Advance(c, Input{PhotoID: "photo-1"}, clock) }, models.StateReportPhotos},
	}
	for _, s := range steps {
		out = s.run(cs)
		if out.Next != s.want {
			t.Fatalf("%s: expected %s, got %s (reply %s)", s.name, s.want, out.Next, out.Reply)
		}
		cs = apply(cs, out)
	}

	out = Advance(cs, Input{Text: "/done", Command: "done"}, clock)
	if out.Effect != CreateItem || out.Next != models.StateIdle {
		t.Fatalf("expected CreateItem and idle, got %+v", out)
	}

	draft := out.Data.Draft(1)
	if err := draft.Validate(); err != nil {
		t.Fatalf("draft does not validate: %v (%+v)", err, draft)
	}
	wantDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if draft.Type != models.ItemLost || draft.Category != "keys" || draft.Title != "Car keys" ||
		draft.Location != "gym" || draft.Description != "" || draft.LocationDetail != "" ||
		!draft.OccurredAt.Equal(wantDate) || len(draft.PhotoFileIDs) != 1 {
		t.Errorf("unexpected draft: %+v", draft)
	}
}

func TestLocationDetailThenDate(t *testing.T) {
	cs := models.ConversationState{State: models.StateReportLocationDetail, Data: models.ConversationData{Location: "library"}}

	out := Advance(cs, Input{Text: "2nd floor study room"}, clock)
	if out.Next != models.StateReportDate || out.Data.LocationDetail != "2nd floor study room" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	cs = apply(cs, out)

	out = Advance(cs, Input{Text: "Yesterday"}, clock)
	if out.Next != models.StateReportPhotos || out.Data.OccurredAt == nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if want := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC); !out.Data.OccurredAt.Equal(want) {
		t.Errorf("expected %v, got %v", want, *out.Data.OccurredAt)
	}
}

func TestRepromptsKeepState(t *testing.T) {
	tests := []struct {
		name  string
		state models.FlowState
		in    Input
		reply messages.Key
	}{
		{"short title", models.StateReportTitle, Input{Text: "ab"}, messages.TitleTooShort},
		{"blank title", models.StateReportTitle, Input{Text: "   "}, messages.TitleTooShort},
		{"skip title", models.StateReportTitle, Input{Text: "/skip", Command: "skip"}, messages.TitleTooShort},
		{"text at category", models.StateReportCategory, Input{Text: "keys"}, messages.UseButtons},
		{"text at location", models.StateReportLocation, Input{Text: "library"}, messages.UseButtons},
		{"bad date", models.StateReportDate, Input{Text: "last tuesday"}, messages.InvalidDate},
		{"loose date", models.StateReportDate, Input{Text: "2024-3-1"}, messages.InvalidDate},
		{"long title", models.StateReportTitle, Input{Text: strings.Repeat("é", MaxTitleLen+1)}, messages.TitleTooLong},
		{"long description", models.StateReportDescription, Input{Text: strings.Repeat("x", MaxDescriptionLen+1)}, messages.DescriptionTooLong},
		{"future date", models.StateReportDate, Input{Text: "2024-03-16"}, messages.FutureDate},
		{"future date at detail", models.StateReportLocationDetail, Input{Text: "2024-03-16"}, messages.FutureDate},
		{"text at photos", models.StateReportPhotos, Input{Text: "here you go"}, messages.PhotoExpected},
		{"short search", models.StateSearchQuery, Input{Text: "a"}, messages.SearchTooShort},
		{"empty claim", models.StateClaimMessage, Input{Text: ""}, messages.AskClaimMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := models.ConversationState{State: tt.state, Data: models.ConversationData{Title: "kept", ItemID: 9}}
			out := Advance(cs, tt.in, clock)
			if out.Next != tt.state {
				t.Errorf("expected to stay in %s, got %s", tt.state, out.Next)
			}
			if out.Reply != tt.reply {
				t.Errorf("expected reply %s, got %s", tt.reply, out.Reply)
			}
			if out.Data.Title != "kept" || out.Effect != NoEffect {
				t.Errorf("reprompt changed data or ran an effect: %+v", out)
			}
		})
	}
}

func TestCancelFromEveryState(t *testing.T) {
	states := []models.FlowState{
		models.StateReportCategory, models.StateReportTitle, models.StateReportDescription,
		models.StateReportLocation, models.StateReportLocationDetail, models.StateReportDate,
		models.StateReportPhotos, models.StateSearchQuery, models.StateClaimMessage,
	}
	for _, s := range states {
		t.Run(string(s), func(t *testing.T) {
			out := Cancel(models.ConversationState{State: s})
			if out.Next != models.StateIdle || out.Reply != messages.Cancelled || out.Effect != NoEffect {
				t.Errorf("unexpected cancel outcome: %+v", out)
			}
		})
	}

	out := Cancel(models.ConversationState{})
	if out.Reply != messages.NothingToCancel {
		t.Errorf("expected nothing-to-cancel when idle, got %s", out.Reply)
	}
}

func TestSearchAndClaim(t *testing.T) {
	cs := apply(models.ConversationState{}, StartSearch())
	out := Advance(cs, Input{Text: "  wallet "}, clock)
	if out.Effect != RunSearch || out.Data.SearchQuery != "wallet" || out.Next != models.StateIdle {
		t.Errorf("unexpected search outcome: %+v", out)
	}

	cs = apply(models.ConversationState{}, StartClaim(42))
	out = Advance(cs, Input{Text: "It has my initials A.K. scratched on the back"}, clock)
	if out.Effect != SubmitClaim || out.Data.ItemID != 42 || out.Text == "" || out.Next != models.StateIdle {
		t.Errorf("unexpected claim outcome: %+v", out)
	}
}

func TestClaimWithoutItemIsAnError(t *testing.T) {
	out := Advance(models.ConversationState{State: models.StateClaimMessage}, Input{Text: "mine"}, clock)
	if out.Next != models.StateIdle || out.Reply != messages.GenericError || out.Effect != NoEffect {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestStaleButtonsAreIgnored(t *testing.T) {
	cs := models.ConversationState{State: models.StateReportTitle, Data: models.ConversationData{Category: "keys"}}

	if out := SelectCategory(cs, "bags"); out.Next != cs.State || out.Data.Category != "keys" || out.Reply != "" {
		t.Errorf("expected category press to be ignored, got %+v", out)
	}
	if out := SelectLocation(cs, "gym"); out.Next != cs.State || out.Reply != "" {
		t.Errorf("expected location press to be ignored, got %+v", out)
	}
}

func TestPhotosAccumulate(t *testing.T) {
	cs := models.ConversationState{State: models.StateReportPhotos}
	for i, id := range []string{"a", "b", "c"} {
		out := Advance(cs, Input{PhotoID: id}, clock)
		if len(out.Data.Photos) != i+1 {
			t.Fatalf("expected %d photos, got %d", i+1, len(out.Data.Photos))
		}
		cs = apply(cs, out)
	}
	if cs.Data.Photos[2] != "c" {
		t.Errorf("unexpected photos: %v", cs.Data.Photos)
	}
}

func TestParseDate(t *testing.T) {
	zone := time.FixedZone("UTC+9", 9*3600)
	late := Clock{Now: time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC), Location: zone} // already the 16th in zone

	tests := []struct {
		text  string
		clock Clock
		want  time.Time
		ok    bool
	}{
		{"today", clock, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"TODAY", clock, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", clock, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), true},
		{"2024-02-29", clock, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), true},
		{"today", late, time.Date(2024, 3, 16, 0, 0, 0, 0, zone), true},
		{"2023-02-29", clock, time.Time{}, false},
		{"15/03/2024", clock, time.Time{}, false},
		{"2024-03-16", clock, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), true},
		{"", clock, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseDate(tt.text, tt.clock)
			if ok != tt.ok {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
