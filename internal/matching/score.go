package matching

import (
	"time"

	"github.com/refound/lostfound-bot/internal/models"
)

const (
	categoryWeight    = 25
	locationWeight    = 25
	titleWeight       = 30
	descriptionWeight = 20
	maxScore          = 100
)

// Score rates how likely candidate is the counterpart of source, from 0 to
// 100. It is symmetric in its arguments.
func Score(source, candidate models.Item) int {
	total := 0.0

	if source.Category == candidate.Category {
		total += categoryWeight
	}
	if source.Location == candidate.Location {
		total += locationWeight
	}

	total += Similarity(source.Title, candidate.Title) * titleWeight

	if source.Description != "" && candidate.Description != "" {
		total += Similarity(source.Description, candidate.Description) * descriptionWeight
	}

	total += float64(dateBonus(source.OccurredAt, candidate.OccurredAt))

	if total > maxScore {
		return maxScore
	}
	return int(total)
}

// dateBonus rewards items that occurred close together.
func dateBonus(a, b time.Time) int {
	days := daysApart(a, b)
	switch {
	case days <= 1:
		return 15
	case days <= 3:
		return 10
	case days <= 7:
		return 5
	default:
		return 0
	}
}

// daysApart is the absolute number of calendar days between a and b.
func daysApart(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	d := int(da.Sub(db).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
