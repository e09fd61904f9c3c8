// Package analytics keeps per-item study metrics fed by quiz completions
// and flashcard reviews.
package analytics

import (
	"log/slog"
	"math"
	"sort"
	"sync"
)

// GlobalItem is the key for metrics not tied to a single item.
const GlobalItem = ""

// Metrics are the study totals for one item, or for everything when
// ItemID is empty.
type Metrics struct {
	ItemID        string
	TotalStudyMin float64
	QuizzesTaken  int
	AvgScore      float64
	WeakTags      []string
	MasteryByTag  map[string]float64
	StreakDays    int
}

func (m *Metrics) clone() Metrics {
	out := *m
	out.WeakTags = append([]string(nil), m.WeakTags...)
	out.MasteryByTag = make(map[string]float64, len(m.MasteryByTag))
	for k, v := range m.MasteryByTag {
		out.MasteryByTag[k] = v
	}
	return out
}

// QuizOutcome is reported after a quiz session completes.
type QuizOutcome struct {
	ItemID   string
	Score    int
	Tags     []string
	WeakTags []string
}

// ReviewOutcome is reported after each flashcard review.
type ReviewOutcome struct {
	ItemID  string
	Tag     string
	Correct bool
}

// TagMastery pairs a tag with its mastery level.
type TagMastery struct {
	Tag     string
	Mastery float64
}

// Tracker aggregates outcomes in memory. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	metrics map[string]*Metrics
	order   []string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{metrics: make(map[string]*Metrics)}
}

// get returns the metrics row for itemID, creating it when missing.
func (t *Tracker) get(itemID string) (*Metrics, bool) {
	if m, ok := t.metrics[itemID]; ok {
		return m, true
	}
	m := &Metrics{ItemID: itemID, MasteryByTag: make(map[string]float64)}
	t.metrics[itemID] = m
	t.order = append(t.order, itemID)
	return m, false
}

// RecordQuizCompletion counts a finished quiz against its item.
func (t *Tracker) RecordQuizCompletion(o QuizOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, _ := t.get(o.ItemID)
	score := float64(o.Score)
	// A row created by flashcard reviews has no quiz average to blend with.
	if m.QuizzesTaken == 0 {
		m.AvgScore = score
	} else {
		m.AvgScore = (m.AvgScore + score) / 2
	}
	m.QuizzesTaken++
	for _, tag := range o.Tags {
		m.MasteryByTag[tag] = math.Min(100, m.MasteryByTag[tag]+math.Min(10, score/10))
	}
	m.WeakTags = mergeTags(m.WeakTags, o.WeakTags)

	slog.Debug("quiz recorded", "item", o.ItemID, "score", o.Score, "weak_tags", len(o.WeakTags))
}

// RecordFlashcardReview moves the mastery of a tag up on a correct recall
// and down otherwise.
func (t *Tracker) RecordFlashcardReview(o ReviewOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, existed := t.get(o.ItemID)
	if !existed {
		m.MasteryByTag[o.Tag] = 0
		if o.Correct {
			m.MasteryByTag[o.Tag] = 2
		}
		return
	}
	change := -1.0
	if o.Correct {
		change = 2
	}
	m.MasteryByTag[o.Tag] = clamp(m.MasteryByTag[o.Tag]+change, 0, 100)
}

// RecordStudyTime adds minutes of study to an item.
func (t *Tracker) RecordStudyTime(itemID string, minutes float64) {
	if minutes <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m, _ := t.get(itemID)
	m.TotalStudyMin += minutes
}

// UpdateStreak extends the global study streak by a day.
func (t *Tracker) UpdateStreak() {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, _ := t.get(GlobalItem)
	m.StreakDays++
}

// Item returns a copy of the metrics for itemID.
func (t *Tracker) Item(itemID string) (Metrics, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.metrics[itemID]
	if !ok {
		return Metrics{}, false
	}
	return m.clone(), true
}

// Items returns every per-item row in the order they were first seen.
func (t *Tracker) Items() []Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Metrics
	for _, id := range t.order {
		if id == GlobalItem {
			continue
		}
		out = append(out, t.metrics[id].clone())
	}
	return out
}

// Global returns the global row when one exists, otherwise an aggregate
// of every item.
func (t *Tracker) Global() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	if g, ok := t.metrics[GlobalItem]; ok {
		return g.clone()
	}

	agg := Metrics{MasteryByTag: make(map[string]float64)}
	for _, id := range t.order {
		m := t.metrics[id]
		agg.TotalStudyMin += m.TotalStudyMin
		agg.QuizzesTaken += m.QuizzesTaken
		if m.StreakDays > agg.StreakDays {
			agg.StreakDays = m.StreakDays
		}
		if m.AvgScore > 0 {
			agg.AvgScore = (agg.AvgScore + m.AvgScore) / 2
		}
		agg.WeakTags = mergeTags(agg.WeakTags, m.WeakTags)
		for tag, v := range m.MasteryByTag {
			agg.MasteryByTag[tag] = math.Max(agg.MasteryByTag[tag], v)
		}
	}
	return agg
}

// MasteryHeatmap averages the non-zero mastery of each tag across items.
func (t *Tracker) MasteryHeatmap() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, m := range t.metrics {
		for tag, v := range m.MasteryByTag {
			if v > 0 {
				sums[tag] += v
				counts[tag]++
			}
		}
	}
	heat := make(map[string]float64, len(sums))
	for tag, sum := range sums {
		heat[tag] = sum / float64(counts[tag])
	}
	return heat
}

// WeakestTags returns up to limit tags with the lowest mastery, lowest first.
func (t *Tracker) WeakestTags(limit int) []TagMastery {
	heat := t.MasteryHeatmap()
	out := make([]TagMastery, 0, len(heat))
	for tag, v := range heat {
		out = append(out, TagMastery{Tag: tag, Mastery: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mastery != out[j].Mastery {
			return out[i].Mastery < out[j].Mastery
		}
		return out[i].Tag < out[j].Tag
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func mergeTags(into, tags []string) []string {
	for _, tag := range tags {
		found := false
		for _, have := range into {
			if have == tag {
				found = true
				break
			}
		}
		if !found {
			into = append(into, tag)
		}
	}
	return into
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
