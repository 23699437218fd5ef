package bot

import (
	"fmt"

	"github.com/refound/lostfound-bot/internal/flow"
	"github.com/refound/lostfound-bot/internal/messenger"
	"github.com/refound/lostfound-bot/internal/models"
	"github.com/refound/lostfound-bot/internal/payload"
)

// PageSize is the number of items per browse page.
const PageSize = 5

func button(label string, p payload.Payload) messenger.Button {
	return messenger.Button{Label: label, Data: p.Encode()}
}

func menuKeyboard() messenger.Keyboard {
	return messenger.Keyboard{
		messenger.Row(
			button("🔴 I lost something", payload.StartReport{Type: models.ItemLost}),
			button("🟢 I found something", payload.StartReport{Type: models.ItemFound}),
		),
		messenger.Row(
			button("📋 Browse", payload.Browse{Filter: payload.FilterAll}),
			button("🔎 Search", payload.StartSearch{}),
		),
		messenger.Row(button("📁 My reports", payload.MyItems{})),
	}
}

// optionKeyboard lays out catalog options two per row.
func optionKeyboard(opts []models.Option, encode func(key string) payload.Payload) messenger.Keyboard {
	var kb messenger.Keyboard
	for i := 0; i < len(opts); i += 2 {
		row := messenger.Row(button(opts[i].Label, encode(opts[i].Key)))
		if i+1 < len(opts) {
			row = append(row, button(opts[i+1].Label, encode(opts[i+1].Key)))
		}
		kb = append(kb, row)
	}
	return kb
}

func categoryKeyboard() messenger.Keyboard {
	return optionKeyboard(models.Categories, func(k string) payload.Payload { return payload.SelectCategory{Key: k} })
}

func locationKeyboard() messenger.Keyboard {
	return optionKeyboard(models.Locations, func(k string) payload.Payload { return payload.SelectLocation{Key: k} })
}

func browseFilterKeyboard() messenger.Keyboard {
	return messenger.Keyboard{messenger.Row(
		button("All", payload.Browse{Filter: payload.FilterAll}),
		button("🔴 Lost", payload.Browse{Filter: payload.FilterLost}),
		button("🟢 Found", payload.Browse{Filter: payload.FilterFound}),
	)}
}

func menuRow() []messenger.Button {
	return messenger.Row(button("🏠 Menu", payload.MainMenu{}))
}

// itemButtons opens each listed item, numbered as in the list text.
func itemButtons(items []models.Item) messenger.Keyboard {
	kb := make(messenger.Keyboard, 0, len(items)+1)
	for i, it := range items {
		kb = append(kb, messenger.Row(button(fmt.Sprintf("%d. %s", i+1, it.Title), payload.ViewItem{ID: it.ID})))
	}
	return kb
}

// pageKeyboard lists the page's items with previous/next controls.
func pageKeyboard(filter payload.BrowseFilter, offset int, items []models.Item, hasNext bool) messenger.Keyboard {
	kb := itemButtons(items)

	var nav []messenger.Button
	if offset > 0 {
		prev := offset - PageSize
		if prev < 0 {
			prev = 0
		}
		nav = append(nav, button("◀ Previous", payload.Page{Filter: filter, Offset: prev}))
	}
	if hasNext {
		nav = append(nav, button("Next ▶", payload.Page{Filter: filter, Offset: offset + PageSize}))
	}
	if len(nav) > 0 {
		kb = append(kb, nav)
	}
	return append(kb, menuRow())
}

// itemKeyboard holds the actions open to viewer. Owners also get a button
// per stored match.
func itemKeyboard(it *models.Item, viewer *models.User, matches []models.Match) messenger.Keyboard {
	var kb messenger.Keyboard
	switch {
	case it.OwnerID == viewer.ID:
		for _, m := range matches {
			label := fmt.Sprintf("🔔 Match #%d · %d%%", m.CandidateItemID, m.Score)
			kb = append(kb, messenger.Row(button(label, payload.ViewItem{ID: m.CandidateItemID})))
		}
		kb = append(kb, messenger.Row(button("🗑 Delete", payload.DeleteItem{ItemID: it.ID})))
	case it.State == models.ItemActive:
		label := "🙋 This is mine"
		if it.Type == models.ItemLost {
			label = "🙋 I have it"
		}
		kb = append(kb, messenger.Row(button(label, payload.StartClaim{ItemID: it.ID})))
	}
	return append(kb, menuRow())
}

func claimKeyboard(claimID int64) messenger.Keyboard {
	return messenger.Keyboard{messenger.Row(
		button("✅ Approve", payload.ResolveClaim{ClaimID: claimID, Approve: true}),
		button("❌ Reject", payload.ResolveClaim{ClaimID: claimID}),
	)}
}

func flowKeyboard(k flow.Keyboard) messenger.Keyboard {
	switch k {
	case flow.CategoryKeyboard:
		return categoryKeyboard()
	case flow.LocationKeyboard:
		return locationKeyboard()
	case flow.MenuKeyboard:
		return menuKeyboard()
	}
	return nil
}
