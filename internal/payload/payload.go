// Package payload encodes and decodes inline button callback data.
//
// The wire format is "action[:arg...]". Telegram limits callback data to 64
// bytes, so actions are short and arguments are ids or catalog keys.
package payload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/refound/lostfound-bot/internal/models"
)

var ErrMalformed = errors.New("malformed callback payload")

// Payload is one of the concrete callback variants below.
type Payload interface {
	Encode() string
	isPayload()
}

type StartReport struct{ Type models.ItemType }
type SelectCategory struct{ Key string }
type SelectLocation struct{ Key string }

// BrowseFilter restricts browsing to one item type; "all" shows both.
type BrowseFilter string

const (
	FilterAll   BrowseFilter = "all"
	FilterLost  BrowseFilter = "lost"
	FilterFound BrowseFilter = "found"
)

func (f BrowseFilter) valid() bool {
	return f == FilterAll || f == FilterLost || f == FilterFound
}

// ItemType is the item type the filter selects, or "" for all.
func (f BrowseFilter) ItemType() models.ItemType {
	if f == FilterAll {
		return ""
	}
	return models.ItemType(f)
}

// Browse opens a filtered listing as a new message.
type Browse struct {
	Filter BrowseFilter
	Offset int
}

// Page moves an existing listing message to Offset.
type Page struct {
	Filter BrowseFilter
	Offset int
}

type ViewItem struct{ ID int64 }
type StartClaim struct{ ItemID int64 }
type DeleteItem struct{ ItemID int64 }
type MainMenu struct{}
type MyItems struct{}
type StartSearch struct{}

// ResolveClaim is the item owner's answer to a claim.
type ResolveClaim struct {
	ClaimID int64
	Approve bool
}

func (p StartReport) Encode() string    { return "start:" + string(p.Type) }
func (p SelectCategory) Encode() string { return "cat:" + p.Key }
func (p SelectLocation) Encode() string { return "loc:" + p.Key }
func (p ViewItem) Encode() string       { return "view:" + strconv.FormatInt(p.ID, 10) }
func (p StartClaim) Encode() string     { return "claim:" + strconv.FormatInt(p.ItemID, 10) }
func (p DeleteItem) Encode() string     { return "del:" + strconv.FormatInt(p.ItemID, 10) }
func (MainMenu) Encode() string         { return "menu" }
func (MyItems) Encode() string          { return "my" }
func (StartSearch) Encode() string      { return "search" }

func (p Browse) Encode() string {
	if p.Offset == 0 {
		return "browse:" + string(p.Filter)
	}
	return fmt.Sprintf("browse:%s:%d", p.Filter, p.Offset)
}

func (p Page) Encode() string {
	return fmt.Sprintf("page:%s:%d", p.Filter, p.Offset)
}

func (p ResolveClaim) Encode() string {
	action := "reject"
	if p.Approve {
		action = "approve"
	}
	return action + ":" + strconv.FormatInt(p.ClaimID, 10)
}

func (StartReport) isPayload()    {}
func (SelectCategory) isPayload() {}
func (SelectLocation) isPayload() {}
func (Browse) isPayload()         {}
func (Page) isPayload()           {}
func (ViewItem) isPayload()       {}
func (StartClaim) isPayload()     {}
func (DeleteItem) isPayload()     {}
func (MainMenu) isPayload()       {}
func (MyItems) isPayload()        {}
func (StartSearch) isPayload()    {}
func (ResolveClaim) isPayload()   {}

// Parse decodes callback data. Unknown actions, missing or extra arguments,
// and non-numeric ids return ErrMalformed.
func Parse(data string) (Payload, error) {
	parts := strings.Split(data, ":")
	action, args := parts[0], parts[1:]

	switch action {
	case "start":
		if len(args) != 1 || !models.ItemType(args[0]).Valid() {
			return nil, malformed(data)
		}
		return StartReport{Type: models.ItemType(args[0])}, nil

	case "cat":
		if len(args) != 1 || models.CategoryByKey(args[0]) == nil {
			return nil, malformed(data)
		}
		return SelectCategory{Key: args[0]}, nil

	case "loc":
		if len(args) != 1 || models.LocationByKey(args[0]) == nil {
			return nil, malformed(data)
		}
		return SelectLocation{Key: args[0]}, nil

	case "browse":
		if len(args) < 1 || len(args) > 2 {
			return nil, malformed(data)
		}
		filter, offset, err := parseListing(args)
		if err != nil {
			return nil, malformed(data)
		}
		return Browse{Filter: filter, Offset: offset}, nil

	case "page":
		if len(args) != 2 {
			return nil, malformed(data)
		}
		filter, offset, err := parseListing(args)
		if err != nil {
			return nil, malformed(data)
		}
		return Page{Filter: filter, Offset: offset}, nil

	case "view", "claim", "del", "approve", "reject":
		if len(args) != 1 {
			return nil, malformed(data)
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return nil, malformed(data)
		}
		switch action {
		case "view":
			return ViewItem{ID: id}, nil
		case "claim":
			return StartClaim{ItemID: id}, nil
		case "del":
			return DeleteItem{ItemID: id}, nil
		default:
			return ResolveClaim{ClaimID: id, Approve: action == "approve"}, nil
		}

	case "menu", "my", "search":
		if len(args) != 0 {
			return nil, malformed(data)
		}
		switch action {
		case "menu":
			return MainMenu{}, nil
		case "my":
			return MyItems{}, nil
		default:
			return StartSearch{}, nil
		}
	}

	return nil, malformed(data)
}

func parseListing(args []string) (BrowseFilter, int, error) {
	filter := BrowseFilter(args[0])
	if !filter.valid() {
		return "", 0, ErrMalformed
	}
	if len(args) == 1 {
		return filter, 0, nil
	}
	offset, err := strconv.Atoi(args[1])
	if err != nil || offset < 0 {
		return "", 0, ErrMalformed
	}
	return filter, offset, nil
}

func malformed(data string) error {
	return fmt.Errorf("%w: %q", ErrMalformed, data)
}
