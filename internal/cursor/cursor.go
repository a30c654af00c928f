// Package cursor implements keyset pagination tied to a single sort key
// (spec.md §4.7).
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/sortpage"
)

// Config is the caller-supplied cursor request.
type Config struct {
	Key    string
	After  *string
	Before *string
	First  *int
	Last   *int
}

// PageInfo summarizes the returned window's position in the full ordering.
type PageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     string
	EndCursor       string
}

// Page is the {items, pageInfo} envelope spec.md §4.7 returns.
type Page struct {
	Items    []record.Record
	PageInfo PageInfo
}

type payload struct {
	V  any    `json:"v"`
	ID string `json:"id"`
}

// Encode opaquely encodes a record's position for the given cursor key.
func Encode(rec record.Record, key string) string {
	v, _ := record.Get(rec, key)
	b, _ := json.Marshal(payload{V: v, ID: rec.ID()})
	return base64.StdEncoding.EncodeToString(b)
}

func decode(c string) (payload, error) {
	raw, err := base64.StdEncoding.DecodeString(c)
	if err != nil {
		return payload{}, fmt.Errorf("cursor: invalid encoding: %w", err)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return payload{}, fmt.Errorf("cursor: invalid payload: %w", err)
	}
	return p, nil
}

// ResolveSort implements spec.md §4.7's sort/cursor reconciliation: an
// explicit sort must lead with the cursor key, or a validation error is
// raised; an absent sort gets an injected ascending sort on the cursor key.
func ResolveSort(explicit []sortpage.Key, cursorKey string) ([]sortpage.Key, error) {
	if len(explicit) == 0 {
		return []sortpage.Key{{Path: cursorKey, Desc: false}}, nil
	}
	if explicit[0].Path != cursorKey {
		return nil, &dberrors.ValidationError{
			Message: fmt.Sprintf("cursor key %q must be the primary sort key, got %q", cursorKey, explicit[0].Path),
		}
	}
	return explicit, nil
}

// Apply walks the already filter/populate/computed/sorted list to the
// cursor position and takes first/last rows. Select must be applied by
// the caller AFTER this, using the pre-projection records still present
// in the returned page (spec.md §4.7).
func Apply(sorted []record.Record, cfg Config) (Page, error) {
	start, end := 0, len(sorted)

	if cfg.After != nil {
		p, err := decode(*cfg.After)
		if err != nil {
			return Page{}, err
		}
		if idx := indexOfID(sorted, p.ID); idx >= 0 {
			start = idx + 1
		}
	}
	if cfg.Before != nil {
		p, err := decode(*cfg.Before)
		if err != nil {
			return Page{}, err
		}
		if idx := indexOfID(sorted, p.ID); idx >= 0 {
			end = idx
		}
	}
	if start > end {
		start = end
	}
	window := sorted[start:end]

	var items []record.Record
	hasNext := end < len(sorted)
	hasPrev := start > 0

	switch {
	case cfg.Last != nil:
		n := *cfg.Last
		if n < 0 {
			n = 0
		}
		if n > len(window) {
			n = len(window)
		}
		items = window[len(window)-n:]
		hasPrev = hasPrev || len(window) > n
	case cfg.First != nil:
		n := *cfg.First
		if n < 0 {
			n = 0
		}
		if n > len(window) {
			n = len(window)
		}
		items = window[:n]
		hasNext = hasNext || len(window) > n
	default:
		items = window
	}

	page := Page{Items: items, PageInfo: PageInfo{HasNextPage: hasNext, HasPreviousPage: hasPrev}}
	if len(items) > 0 {
		page.PageInfo.StartCursor = Encode(items[0], cfg.Key)
		page.PageInfo.EndCursor = Encode(items[len(items)-1], cfg.Key)
	}
	return page, nil
}

func indexOfID(recs []record.Record, id string) int {
	for i, r := range recs {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
