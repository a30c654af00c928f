// Package persist is the debounced persistence trigger of spec.md §4.13:
// a per-collection timer table that coalesces a burst of writes into one
// save, an append-only JSONL fast path for append-only collections, and a
// non-fatal save-failure policy (a write that can't reach disk is logged,
// never returned to the caller that triggered it). Grounded on the
// teacher's internal/jsonl writer paired with its fsnotify-backed
// lockfile watch (internal/lockfile), generalized from bead-export's
// single file to one timer per collection.
package persist

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/steveyegge/proseql/internal/codec"
	"github.com/steveyegge/proseql/internal/collection"
	"github.com/steveyegge/proseql/internal/dblog"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/storageio"
)

// Trigger owns one debounce timer per collection and the codec/adapter
// pair used to serialize it.
type Trigger struct {
	db       *collection.Database
	storage  storageio.Adapter
	codecs   *codec.Registry
	logger   dblog.Logger
	debounce time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// New wires a debounced persistence trigger. debounce of zero defaults to
// 200ms, the teacher's jsonl batch-flush interval.
func New(db *collection.Database, storage storageio.Adapter, codecs *codec.Registry, logger dblog.Logger, debounce time.Duration) *Trigger {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	if logger == nil {
		logger = dblog.Nop{}
	}
	t := &Trigger{db: db, storage: storage, codecs: codecs, logger: logger, debounce: debounce, timers: make(map[string]*time.Timer)}
	db.SetPersistHook(t.schedule)
	return t
}

// schedule coalesces repeated triggers for the same collection into a
// single flush, debounce after the last one.
func (t *Trigger) schedule(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if existing, ok := t.timers[name]; ok {
		existing.Stop()
	}
	t.timers[name] = time.AfterFunc(t.debounce, func() { t.flush(name) })
}

// Flush immediately persists collection, bypassing debounce — used by
// Open to write migrated rows back.
func (t *Trigger) Flush(name string) { t.flush(name) }

func (t *Trigger) flush(name string) {
	c, ok := t.db.Collection(name)
	if !ok {
		return
	}
	if c.Cfg.File == "" {
		return
	}
	rows, _, _ := c.Snapshot()

	if c.Cfg.AppendOnly {
		if err := t.appendJSONL(c.Cfg.File, rows); err != nil {
			t.logger.Printf("persist: append %s: %v", name, err)
		}
		return
	}

	doc := make(map[string]any, len(rows)+1)
	for id, r := range rows {
		doc[id] = map[string]any(r)
	}
	if c.Cfg.SchemaVersion > 0 {
		doc["_schemaVersion"] = c.Cfg.SchemaVersion
	}
	data, err := t.codecs.Serialize(doc, extOf(c.Cfg.File), c.Cfg.Format, map[string]any{"pretty": true})
	if err != nil {
		t.logger.Printf("persist: encode %s: %v", name, err)
		return
	}
	if err := t.storage.Write(c.Cfg.File, data); err != nil {
		t.logger.Printf("persist: write %s: %v", name, err)
	}
}

func extOf(path string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot == -1 || dot == len(path)-1 {
		return ""
	}
	return path[dot+1:]
}

// appendJSONL writes one JSON line per record, the fast path for
// append-only collections (spec.md §4.13) — mirrors the teacher's
// internal/jsonl writer, which also emits one compact JSON object per
// line rather than a single encoded document.
func (t *Trigger) appendJSONL(path string, rows map[string]record.Record) error {
	var buf []byte
	for _, r := range rows {
		line, err := json.Marshal(map[string]any(r))
		if err != nil {
			return err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return t.storage.Append(path, buf)
}

// Shutdown flushes every pending timer synchronously and stops accepting
// new schedules — called once, at database Close.
func (t *Trigger) Shutdown() {
	t.mu.Lock()
	t.stopped = true
	pending := make([]string, 0, len(t.timers))
	for name, timer := range t.timers {
		timer.Stop()
		pending = append(pending, name)
	}
	t.mu.Unlock()

	for _, name := range pending {
		t.flush(name)
	}
}
