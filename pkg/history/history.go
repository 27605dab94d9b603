// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package history maintains one rolling per-user document of recent daily
// cumulative-score entries. The document is a denormalized cache over the
// per-day records; it is never the source of truth and can always be
// rebuilt by replaying the daily records in date order.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
)

const (
	// Collection holds one document per user.
	Collection = "cumulative_score_history"
	// DocID is the fixed ID of the rolling document.
	DocID = "history"
	// MaxEntries bounds the rolling window.
	MaxEntries = 100
)

// dailyProgressCollection is where Rebuild reads the authoritative
// per-day records from.
const dailyProgressCollection = "daily_progress"

// Entry is one day's cumulative-score movement.
type Entry struct {
	Date          string  `json:"date"`
	OpeningScore  float64 `json:"previousScore"`
	ClosingScore  float64 `json:"score"`
	Gain          float64 `json:"gain"`
	EffectiveGain float64 `json:"effectiveGain"`
}

type document struct {
	Entries     []Entry        `json:"entries"`
	LastUpdated docstore.Stamp `json:"lastUpdated"`
}

// Compactor reads, amends and rewrites the rolling document.
type Compactor struct {
	store docstore.Store
}

func NewCompactor(store docstore.Store) *Compactor {
	return &Compactor{store: store}
}

// Record upserts one entry: any existing entry for the same date is
// replaced, entries stay sorted ascending by date key, and the document
// is truncated to the most recent MaxEntries.
func (c *Compactor) Record(ctx context.Context, userID string, entry Entry) error {
	doc, err := c.load(ctx, userID)
	if err != nil {
		return err
	}
	doc.Entries = compact(doc.Entries, entry)
	doc.LastUpdated = docstore.ServerNow()
	if err := c.store.Set(ctx, userID, Collection, DocID, doc); err != nil {
		return fmt.Errorf("failed to write history for user %s: %w", userID, err)
	}
	return nil
}

// Entries returns the current rolling window, oldest first.
func (c *Compactor) Entries(ctx context.Context, userID string) ([]Entry, error) {
	doc, err := c.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.Entries, nil
}

// rebuildRecord is the slice of a daily progress record the rebuild
// needs.
type rebuildRecord struct {
	Date            string  `json:"date"`
	CumulativeScore float64 `json:"cumulativeScore"`
	PreviousScore   float64 `json:"previousCumulativeScore"`
	EffectiveGain   float64 `json:"effectiveGain"`
	Components      struct {
		Net float64 `json:"netGain"`
	} `json:"scoreComponents"`
}

// Rebuild discards the rolling document and replays every daily record in
// date order. Returns the number of entries written.
func (c *Compactor) Rebuild(ctx context.Context, userID string) (int, error) {
	docs, err := c.store.Query(ctx, userID, dailyProgressCollection, docstore.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to list daily records for user %s: %w", userID, err)
	}

	var entries []Entry
	for _, d := range docs {
		var rec rebuildRecord
		if err := json.Unmarshal(d.Data, &rec); err != nil {
			return 0, fmt.Errorf("failed to decode daily record %s: %w", d.ID, err)
		}
		date := rec.Date
		if date == "" {
			date = d.ID
		}
		entries = compact(entries, Entry{
			Date:          date,
			OpeningScore:  rec.PreviousScore,
			ClosingScore:  rec.CumulativeScore,
			Gain:          rec.Components.Net,
			EffectiveGain: rec.EffectiveGain,
		})
	}

	doc := document{Entries: entries, LastUpdated: docstore.ServerNow()}
	if err := c.store.Set(ctx, userID, Collection, DocID, doc); err != nil {
		return 0, fmt.Errorf("failed to write rebuilt history for user %s: %w", userID, err)
	}
	return len(entries), nil
}

func (c *Compactor) load(ctx context.Context, userID string) (document, error) {
	var doc document
	raw, err := c.store.Get(ctx, userID, Collection, DocID)
	if errors.Is(err, docstore.ErrNotFound) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read history for user %s: %w", userID, err)
	}
	if err := json.Unmarshal(raw.Data, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode history for user %s: %w", userID, err)
	}
	return doc, nil
}

// compact applies the rolling-window rules: one entry per date, ascending
// order, at most MaxEntries kept (the most recent ones).
func compact(entries []Entry, entry Entry) []Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.Date != entry.Date {
			out = append(out, e)
		}
	}
	out = append(out, entry)
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if len(out) > MaxEntries {
		out = out[len(out)-MaxEntries:]
	}
	return out
}
