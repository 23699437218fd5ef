package matching

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/refound/lostfound-bot/internal/models"
)

type Config struct {
	WindowDays int // candidates must occur within this many days
	MinScore   int
	TopK       int
	Location   *time.Location // zone dates are shown in
}

func DefaultConfig() Config {
	return Config{WindowDays: 7, MinScore: 30, TopK: 5}
}

// CandidateSource supplies items that may match a report.
type CandidateSource interface {
	MatchCandidates(ctx context.Context, q models.CandidateQuery) ([]models.Item, error)
}

// Candidate is a scored potential match.
type Candidate struct {
	Item  models.Item
	Score int
}

type Finder struct {
	source CandidateSource
	cfg    Config
	logger *slog.Logger
}

func NewFinder(source CandidateSource, cfg Config, logger *slog.Logger) *Finder {
	return &Finder{source: source, cfg: cfg, logger: logger}
}

// FindMatches returns the best opposite-type candidates for item, highest
// score first. Store failures are logged and yield no candidates.
func (f *Finder) FindMatches(ctx context.Context, item models.Item) []Candidate {
	window := time.Duration(f.cfg.WindowDays) * 24 * time.Hour
	items, err := f.source.MatchCandidates(ctx, models.CandidateQuery{
		Type:         item.Type.Opposite(),
		Category:     item.Category,
		ExcludeOwner: item.OwnerID,
		From:         item.OccurredAt.Add(-window),
		To:           item.OccurredAt.Add(window),
	})
	if err != nil {
		f.logger.Error("match_candidates_failed", "item_id", item.ID, "error", err)
		return []Candidate{}
	}

	candidates := make([]Candidate, 0, len(items))
	for _, c := range items {
		if c.ID == item.ID || c.OwnerID == item.OwnerID || c.State != models.ItemActive {
			continue
		}
		score := Score(item, c)
		if score < f.cfg.MinScore {
			continue
		}
		candidates = append(candidates, Candidate{Item: c, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Item.ID > candidates[j].Item.ID
	})

	if f.cfg.TopK > 0 && len(candidates) > f.cfg.TopK {
		candidates = candidates[:f.cfg.TopK]
	}
	return candidates
}
