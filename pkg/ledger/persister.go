// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-dayend-engine/pkg/activity"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
	"github.com/AccelByte/extend-dayend-engine/pkg/history"
	"github.com/AccelByte/extend-dayend-engine/pkg/scoring"
)

// ErrInvalidRange indicates a multi-day operation whose start date is
// after its end date.
var ErrInvalidRange = errors.New("range start is after range end")

const (
	// maxBackfillDays clamps BackfillRecent requests.
	maxBackfillDays = 365
	// maxCatchUpDays caps the gap CatchUpMissedDays will fill.
	maxCatchUpDays = 90
)

// Options control one PersistDay invocation.
type Options struct {
	// Overwrite recomputes the day even when a record already exists.
	// This is the only path that mutates an existing day's record.
	Overwrite bool
	// SetLastProcessed records the day in the stats head, marking how
	// far the scheduled run has advanced.
	SetLastProcessed bool
}

// Persister computes and stores one day's record and the follow-up
// stats-head and history writes.
type Persister struct {
	store     docstore.Store
	clock     *dayclock.Clock
	engine    *scoring.Engine
	strategy  scoring.RecoveryStrategy
	compactor *history.Compactor
}

func NewPersister(store docstore.Store, clock *dayclock.Clock, strategy scoring.RecoveryStrategy) *Persister {
	return &Persister{
		store:     store,
		clock:     clock,
		engine:    scoring.NewEngine(clock),
		strategy:  strategy,
		compactor: history.NewCompactor(store),
	}
}

// PersistDay scores one (user, day) and writes the daily record, the
// stats head and the rolling history entry as three separate writes.
// Without Overwrite an existing record makes the call a no-op, so
// re-running is always safe. A record-write failure propagates; the
// stats and history writes are non-critical and only logged, since the
// stats head is refreshed on the next day and the history document is a
// rebuildable cache.
func (p *Persister) PersistDay(ctx context.Context, userID string, date time.Time, opts Options) error {
	return p.persistDay(ctx, userID, date, nil, opts)
}

// foldState threads per-day scoring state through a multi-day recompute:
// the opening score, the slump state and the trailing completion window
// are functions of the days already folded, never of the live stats head.
type foldState struct {
	opening float64
	slump   scoring.SlumpState
	pcts    []float64
}

func (f *foldState) advance(pct, closing float64, next scoring.SlumpState) {
	f.opening = closing
	f.slump = next
	f.pcts = append(f.pcts, pct)
	if len(f.pcts) > scoring.ConsistencyWindowDays {
		f.pcts = f.pcts[len(f.pcts)-scoring.ConsistencyWindowDays:]
	}
}

func (p *Persister) persistDay(ctx context.Context, userID string, date time.Time, f *foldState, opts Options) error {
	day := p.clock.StartOfDay(date)
	dateKey := p.clock.DateKey(day)

	recordExisted := false
	if _, err := p.store.Get(ctx, userID, RecordsCollection, dateKey); err == nil {
		if !opts.Overwrite {
			return nil
		}
		recordExisted = true
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("failed to check existing record %s: %w", dateKey, err)
	}

	instances, err := p.fetchInstances(ctx, userID)
	if err != nil {
		return err
	}
	categories, err := p.fetchHabitCategories(ctx, userID)
	if err != nil {
		return err
	}

	agg := p.engine.Aggregate(day, instances, categories)

	stats, err := p.loadStats(ctx, userID)
	if err != nil {
		return err
	}

	var recentPcts []float64
	var slump scoring.SlumpState
	var opening float64
	switch {
	case f != nil:
		recentPcts = f.pcts
		slump = f.slump
		opening = f.opening
	case opts.Overwrite:
		// Recomputing a historical day: the live stats head and any
		// records at or after the day describe its future, so the
		// window, slump state and opening score are all re-derived
		// from the records before it.
		recentPcts, err = p.lastCompletionPcts(ctx, userID, dateKey, scoring.ConsistencyWindowDays)
		if err != nil {
			docstore.LogIndexHint("ledger.lastCompletionPcts", err)
			return err
		}
		slump, err = p.slumpStateBefore(ctx, userID, dateKey)
		if err != nil {
			docstore.LogIndexHint("ledger.slumpStateBefore", err)
			return err
		}
		opening, _ = p.prevDayClosing(ctx, userID, day)
	default:
		recentPcts, err = p.lastCompletionPcts(ctx, userID, dateKey, scoring.ConsistencyWindowDays)
		if err != nil {
			docstore.LogIndexHint("ledger.lastCompletionPcts", err)
			return err
		}
		if stats != nil {
			slump = stats.SlumpState
		}
		opening = p.openingScore(ctx, userID, day, stats)
	}

	components, nextSlump := scoring.Score(
		agg.CompletionPct, agg.EarnedPoints, recentPcts, slump,
		len(agg.NeglectedCategories), p.strategy)

	closing := math.Max(0, opening+components.Net)
	effectiveGain := closing - opening

	record := DailyProgressRecord{
		UserID:          userID,
		Date:            dateKey,
		TargetPoints:    agg.TargetPoints,
		EarnedPoints:    agg.EarnedPoints,
		CompletionPct:   agg.CompletionPct,
		HabitCounts:     agg.HabitCounts,
		TaskCounts:      agg.TaskCounts,
		Habits:          agg.Habits,
		Tasks:           agg.Tasks,
		Categories:      agg.Categories,
		Components:      components,
		CumulativeScore: closing,
		PreviousScore:   opening,
		EffectiveGain:   effectiveGain,
		CreatedAt:       docstore.ServerNow(),
	}
	if err := p.store.Set(ctx, userID, RecordsCollection, dateKey, record); err != nil {
		return fmt.Errorf("failed to write daily record %s: %w", dateKey, err)
	}

	if f != nil {
		f.advance(agg.CompletionPct, closing, nextSlump)
	}

	if err := p.updateStats(ctx, userID, stats, &record, nextSlump, recordExisted, opts); err != nil {
		logrus.WithError(err).Warnf("stats update failed for user %s, day %s", userID, dateKey)
	}

	if err := p.compactor.Record(ctx, userID, history.Entry{
		Date:          dateKey,
		OpeningScore:  opening,
		ClosingScore:  closing,
		Gain:          components.Net,
		EffectiveGain: effectiveGain,
	}); err != nil {
		logrus.WithError(err).Warnf("history update failed for user %s, day %s", userID, dateKey)
	}

	return nil
}

func (p *Persister) fetchInstances(ctx context.Context, userID string) ([]activity.Instance, error) {
	docs, err := p.store.Query(ctx, userID, activity.InstancesCollection,
		docstore.Where("templateCategoryType", docstore.OpIn, []interface{}{
			string(activity.CategoryHabit), string(activity.CategoryTask),
		}))
	if err != nil {
		docstore.LogIndexHint("ledger.fetchInstances", err)
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	instances := make([]activity.Instance, 0, len(docs))
	for _, doc := range docs {
		var inst activity.Instance
		if err := json.Unmarshal(doc.Data, &inst); err != nil {
			logrus.WithError(err).Errorf("skipping undecodable instance %s", doc.ID)
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

func (p *Persister) fetchHabitCategories(ctx context.Context, userID string) ([]activity.Category, error) {
	docs, err := p.store.Query(ctx, userID, activity.CategoriesCollection,
		docstore.Where("categoryType", docstore.OpEqual, string(activity.CategoryHabit)))
	if err != nil {
		docstore.LogIndexHint("ledger.fetchHabitCategories", err)
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	categories := make([]activity.Category, 0, len(docs))
	for _, doc := range docs {
		var cat activity.Category
		if err := json.Unmarshal(doc.Data, &cat); err != nil {
			logrus.WithError(err).Errorf("skipping undecodable category %s", doc.ID)
			continue
		}
		cat.ID = doc.ID
		categories = append(categories, cat)
	}
	return categories, nil
}

// lastCompletionPcts returns the completion percentages of the n daily
// records closest before beforeKey, in chronological order. The bound
// keeps a recompute of a historical day from seeing that day's future.
func (p *Persister) lastCompletionPcts(ctx context.Context, userID, beforeKey string, n int) ([]float64, error) {
	docs, err := p.store.Query(ctx, userID, RecordsCollection,
		docstore.Where("date", docstore.OpLess, beforeKey).OrderedBy("date", true).WithLimit(n))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent records: %w", err)
	}
	pcts := make([]float64, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		var rec DailyProgressRecord
		if err := json.Unmarshal(docs[i].Data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", docs[i].ID, err)
		}
		pcts = append(pcts, rec.CompletionPct)
	}
	return pcts, nil
}

// slumpStateBefore reconstructs the slump state a day opened with by
// replaying the recovery strategy over every stored record before it in
// date order. The state is a pure function of prior completion
// percentages, so the replay is exact.
func (p *Persister) slumpStateBefore(ctx context.Context, userID, beforeKey string) (scoring.SlumpState, error) {
	docs, err := p.store.Query(ctx, userID, RecordsCollection,
		docstore.Where("date", docstore.OpLess, beforeKey).OrderedBy("date", false))
	if err != nil {
		return scoring.SlumpState{}, fmt.Errorf("failed to query prior records: %w", err)
	}
	var slump scoring.SlumpState
	for _, doc := range docs {
		var rec DailyProgressRecord
		if err := json.Unmarshal(doc.Data, &rec); err != nil {
			return scoring.SlumpState{}, fmt.Errorf("failed to decode record %s: %w", doc.ID, err)
		}
		_, _, slump = p.strategy.Advance(rec.CompletionPct, slump)
	}
	return slump, nil
}

func (p *Persister) loadStats(ctx context.Context, userID string) (*UserStats, error) {
	doc, err := p.store.Get(ctx, userID, StatsCollection, StatsDocID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stats head: %w", err)
	}
	var stats UserStats
	if err := json.Unmarshal(doc.Data, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats head: %w", err)
	}
	return &stats, nil
}

// prevDayClosing reads the previous day's stored closing score. The
// second result reports whether a positive closing score was found.
func (p *Persister) prevDayClosing(ctx context.Context, userID string, day time.Time) (float64, bool) {
	prevKey := p.clock.DateKey(p.clock.AddDays(day, -1))
	doc, err := p.store.Get(ctx, userID, RecordsCollection, prevKey)
	if err == nil {
		var rec DailyProgressRecord
		if decodeErr := json.Unmarshal(doc.Data, &rec); decodeErr == nil && rec.CumulativeScore > 0 {
			return rec.CumulativeScore, true
		}
	} else if !errors.Is(err, docstore.ErrNotFound) {
		logrus.WithError(err).Warnf("failed to read previous record %s for user %s", prevKey, userID)
	}
	return 0, false
}

// openingScore resolves day N's opening score on the forward path: day
// N-1's stored closing score when available, else the stats head's
// cumulative minus its last gain, else zero. Resolution failures fall
// back the same way since a missing previous record is indistinguishable
// from a fresh user here.
func (p *Persister) openingScore(ctx context.Context, userID string, day time.Time, stats *UserStats) float64 {
	if closing, ok := p.prevDayClosing(ctx, userID, day); ok {
		return closing
	}
	if stats != nil && stats.CumulativeScore > 0 {
		return stats.CumulativeScore - stats.LastDailyGain
	}
	return 0
}

// updateStats folds the day into the stats head. TotalDaysTracked only
// advances for a genuinely new record so recalculation does not inflate
// it.
func (p *Persister) updateStats(ctx context.Context, userID string, existing *UserStats, record *DailyProgressRecord, nextSlump scoring.SlumpState, recordExisted bool, opts Options) error {
	stats := existing
	if stats == nil {
		stats = &UserStats{
			UserID:    userID,
			CreatedAt: docstore.ServerNow(),
		}
	}

	stats.CumulativeScore = record.CumulativeScore
	stats.LastDailyGain = record.Components.Net
	stats.SlumpState = nextSlump
	stats.LastCalculationDate = record.Date
	stats.LastUpdatedAt = docstore.ServerNow()

	if record.CumulativeScore > stats.HistoricalHighScore {
		stats.HistoricalHighScore = record.CumulativeScore
	}
	if !recordExisted {
		stats.TotalDaysTracked++
	}
	if record.CompletionPct >= scoring.ConsistencyThresholdPct {
		stats.CurrentStreak++
	} else {
		stats.CurrentStreak = 0
	}
	if stats.CurrentStreak > stats.LongestStreak {
		stats.LongestStreak = stats.CurrentStreak
	}

	if opts.SetLastProcessed {
		stats.LastProcessedDate = record.Date
	}

	if err := p.store.Set(ctx, userID, StatsCollection, StatsDocID, stats); err != nil {
		return fmt.Errorf("failed to write stats head: %w", err)
	}
	return nil
}

// PersistRange recomputes an inclusive date range as a strictly
// ascending sequential fold; each day's opening score, slump state and
// consistency window depend on the days before it, so dates are never
// processed in parallel or out of order. An Overwrite range seeds the
// fold from the records before the range once and threads it forward,
// keeping recomputed days blind to their stored future. The first
// failure aborts and propagates.
func (p *Persister) PersistRange(ctx context.Context, userID string, from, to time.Time, opts Options) error {
	start := p.clock.StartOfDay(from)
	end := p.clock.StartOfDay(to)
	if start.After(end) {
		return fmt.Errorf("%w: %s after %s", ErrInvalidRange, p.clock.DateKey(start), p.clock.DateKey(end))
	}

	var f *foldState
	if opts.Overwrite {
		var err error
		f, err = p.seedFold(ctx, userID, start)
		if err != nil {
			return err
		}
	}

	for day := start; !day.After(end); day = p.clock.AddDays(day, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.persistDay(ctx, userID, day, f, opts); err != nil {
			return fmt.Errorf("failed at day %s: %w", p.clock.DateKey(day), err)
		}
	}
	return nil
}

// seedFold reconstructs the fold state entering the first day of a
// recompute from the records before it: the replayed slump state, the
// trailing completion window, and the previous day's closing score.
func (p *Persister) seedFold(ctx context.Context, userID string, start time.Time) (*foldState, error) {
	startKey := p.clock.DateKey(start)
	docs, err := p.store.Query(ctx, userID, RecordsCollection,
		docstore.Where("date", docstore.OpLess, startKey).OrderedBy("date", false))
	if err != nil {
		docstore.LogIndexHint("ledger.seedFold", err)
		return nil, fmt.Errorf("failed to query records before %s: %w", startKey, err)
	}

	f := &foldState{}
	prevKey := p.clock.DateKey(p.clock.AddDays(start, -1))
	for _, doc := range docs {
		var rec DailyProgressRecord
		if err := json.Unmarshal(doc.Data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", doc.ID, err)
		}
		_, _, f.slump = p.strategy.Advance(rec.CompletionPct, f.slump)
		f.pcts = append(f.pcts, rec.CompletionPct)
		if len(f.pcts) > scoring.ConsistencyWindowDays {
			f.pcts = f.pcts[len(f.pcts)-scoring.ConsistencyWindowDays:]
		}
		if rec.Date == prevKey && rec.CumulativeScore > 0 {
			f.opening = rec.CumulativeScore
		}
	}
	return f, nil
}

// BackfillRecent recomputes the trailing N days ending yesterday, with N
// clamped to [1, 365].
func (p *Persister) BackfillRecent(ctx context.Context, userID string, days int, opts Options) error {
	if days < 1 {
		days = 1
	}
	if days > maxBackfillDays {
		days = maxBackfillDays
	}
	yesterday := p.clock.YesterdayStart()
	from := p.clock.AddDays(yesterday, -(days - 1))
	return p.PersistRange(ctx, userID, from, yesterday, opts)
}

// CatchUpMissedDays fills the gap between the user's newest daily record
// and yesterday, capped at 90 days. A user with no records gets
// yesterday only.
func (p *Persister) CatchUpMissedDays(ctx context.Context, userID string) error {
	yesterday := p.clock.YesterdayStart()

	docs, err := p.store.Query(ctx, userID, RecordsCollection,
		docstore.Query{}.OrderedBy("date", true).WithLimit(1))
	if err != nil {
		docstore.LogIndexHint("ledger.CatchUpMissedDays", err)
		return fmt.Errorf("failed to find newest record: %w", err)
	}
	if len(docs) == 0 {
		return p.PersistDay(ctx, userID, yesterday, Options{SetLastProcessed: true})
	}

	var newest DailyProgressRecord
	if err := json.Unmarshal(docs[0].Data, &newest); err != nil {
		return fmt.Errorf("failed to decode newest record %s: %w", docs[0].ID, err)
	}
	lastDay, err := p.clock.ParseDateKey(newest.Date)
	if err != nil {
		return fmt.Errorf("newest record has malformed date %q: %w", newest.Date, err)
	}

	gap := p.clock.DaysBetween(lastDay, yesterday)
	if gap <= 0 {
		return nil
	}
	if gap > maxCatchUpDays {
		gap = maxCatchUpDays
	}

	// Strictly sequential: each missed day's opening score comes from
	// the day persisted just before it.
	for i := 1; i <= gap; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		day := p.clock.AddDays(lastDay, i)
		if err := p.PersistDay(ctx, userID, day, Options{SetLastProcessed: true}); err != nil {
			return fmt.Errorf("failed at day %s: %w", p.clock.DateKey(day), err)
		}
	}
	return nil
}
