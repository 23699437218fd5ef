// Package messages holds the bot's user-facing text and the formatting of
// items and matches.
package messages

import (
	_ "embed"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/refound/lostfound-bot/internal/models"
)

type Key string

const (
	Welcome            Key = "welcome"
	Help               Key = "help"
	Menu               Key = "menu"
	ChooseCategory     Key = "choose_category"
	UseButtons         Key = "use_buttons"
	AskTitle           Key = "ask_title"
	TitleTooShort      Key = "title_too_short"
	TitleTooLong       Key = "title_too_long"
	AskDescription     Key = "ask_description"
	DescriptionTooLong Key = "description_too_long"
	ChooseLocation     Key = "choose_location"
	AskLocationDetail  Key = "ask_location_detail"
	AskDate            Key = "ask_date"
	InvalidDate        Key = "invalid_date"
	FutureDate         Key = "future_date"
	AskPhotos          Key = "ask_photos"
	PhotoAdded         Key = "photo_added"
	PhotoExpected      Key = "photo_expected"
	ItemCreated        Key = "item_created"
	AskSearch          Key = "ask_search"
	SearchTooShort     Key = "search_too_short"
	SearchResults      Key = "search_results"
	NoResults          Key = "no_results"
	BrowsePrompt       Key = "browse_prompt"
	BrowseHeader       Key = "browse_header"
	NoMoreItems        Key = "no_more_items"
	MyItemsHeader      Key = "my_items_header"
	MyItemsEmpty       Key = "my_items_empty"
	AskClaimMessage    Key = "ask_claim_message"
	ClaimSubmitted     Key = "claim_submitted"
	ClaimReceived      Key = "claim_received"
	ClaimApproved      Key = "claim_approved"
	ClaimRejected      Key = "claim_rejected"
	ClaimApprovedOwner Key = "claim_approved_owner"
	ClaimRejectedOwner Key = "claim_rejected_owner"
	ItemDeleted        Key = "item_deleted"
	PendingClaims      Key = "pending_claims"
	MatchesFound       Key = "matches_found"
	Cancelled          Key = "cancelled"
	NothingToCancel    Key = "nothing_to_cancel"
	NotFound           Key = "not_found"
	NotOwner           Key = "not_owner"
	ClaimExists        Key = "claim_exists"
	OwnItem            Key = "own_item"
	ItemUnavailable    Key = "item_unavailable"
	ClaimResolved      Key = "claim_resolved"
	GenericError       Key = "generic_error"
	Banned             Key = "banned"
	PrivateOnly        Key = "private_only"
	AdminOnly          Key = "admin_only"
	AdminUsage         Key = "admin_usage"
	UserBanned         Key = "user_banned"
	UserUnbanned       Key = "user_unbanned"
	UnknownUser        Key = "unknown_user"
	AdminStats         Key = "admin_stats"

	itemLine   Key = "item_line"
	itemDetail Key = "item_detail"
	matchLine  Key = "match_line"
)

//go:embed messages.yaml
var source []byte

var templates = mustLoad(source)

var funcs = template.FuncMap{
	"icon":     icon,
	"category": models.CategoryLabel,
	"location": models.LocationLabel,
	"date":     func(t time.Time) string { return t.Format("Mon, Jan 2 2006") },
	"upper":    func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
}

func mustLoad(src []byte) map[Key]*template.Template {
	tmpls, err := load(src)
	if err != nil {
		panic(err)
	}
	return tmpls
}

func load(src []byte) (map[Key]*template.Template, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("parsing message table: %w", err)
	}

	tmpls := make(map[Key]*template.Template, len(raw))
	for k, text := range raw {
		t, err := template.New(k).Funcs(funcs).Parse(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("parsing message %q: %w", k, err)
		}
		tmpls[Key(k)] = t
	}
	return tmpls, nil
}

// Keys lists every key in the message table.
func Keys() []Key {
	keys := make([]Key, 0, len(templates))
	for k := range templates {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Render fills in the template for key. Values from data are HTML-escaped.
// An unknown key or a failing template renders as the key itself.
func Render(key Key, data any) string {
	t, ok := templates[key]
	if !ok {
		return string(key)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return string(key)
	}
	return sb.String()
}

// Text renders a message that takes no data.
func Text(key Key) string {
	return Render(key, nil)
}

func icon(t models.ItemType) string {
	if t == models.ItemLost {
		return "🔴"
	}
	return "🟢"
}

// inZone moves the item's dates into loc so they print as the day the user
// entered. A nil loc leaves them as stored.
func inZone(it models.Item, loc *time.Location) models.Item {
	if loc != nil {
		it.OccurredAt = it.OccurredAt.In(loc)
	}
	return it
}

// ItemLine is the one-line summary used in lists. Dates are shown in loc.
func ItemLine(it models.Item, loc *time.Location) string {
	return Render(itemLine, inZone(it, loc))
}

// ItemList joins item summaries under header.
func ItemList(header string, items []models.Item, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString(header)
	for i, it := range items {
		sb.WriteString(fmt.Sprintf("\n\n%d. %s", i+1, ItemLine(it, loc)))
	}
	return sb.String()
}

// ItemDetail is the full card shown when an item is opened.
func ItemDetail(it models.Item, photos int, now time.Time, loc *time.Location) string {
	return Render(itemDetail, struct {
		Item   models.Item
		Photos int
		Age    string
	}{inZone(it, loc), photos, humanize.RelTime(it.CreatedAt, now, "ago", "from now")})
}

// MatchEntry is one scored candidate in a match notification.
type MatchEntry struct {
	Item  models.Item
	Score int
}

// Matches is the notification sent to an owner when candidates are found.
func Matches(source models.Item, entries []MatchEntry, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString(Render(MatchesFound, inZone(source, loc)))
	for _, e := range entries {
		e.Item = inZone(e.Item, loc)
		sb.WriteString("\n")
		sb.WriteString(Render(matchLine, e))
	}
	return sb.String()
}

// UserName is how a user is referred to in messages.
func UserName(u *models.User) string {
	if u == nil {
		return "someone"
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.DisplayName
}
