// Package proseql is an embedded, schema-defined, in-memory document
// database with optional file persistence: collections are declared with
// a validator, relationships, indexes, and lifecycle hooks, then queried
// through a single streaming read pipeline (internal/query) and mutated
// through a DRAFT -> commit state machine (internal/collection). This
// top-level package is the public surface wiring every internal
// collaborator together, in the shape the teacher's cmd/bd wires its own
// storage.Backend, internal/eventbus, and internal/hooks together behind
// one root-level API.
package proseql

import (
	"context"
	"time"

	"github.com/steveyegge/proseql/internal/aggregate"
	"github.com/steveyegge/proseql/internal/codec"
	"github.com/steveyegge/proseql/internal/collection"
	"github.com/steveyegge/proseql/internal/computed"
	"github.com/steveyegge/proseql/internal/cursor"
	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/dblog"
	"github.com/steveyegge/proseql/internal/eventbus"
	"github.com/steveyegge/proseql/internal/idgen"
	"github.com/steveyegge/proseql/internal/index"
	"github.com/steveyegge/proseql/internal/migrate"
	"github.com/steveyegge/proseql/internal/persist"
	"github.com/steveyegge/proseql/internal/plugin"
	"github.com/steveyegge/proseql/internal/query"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
	"github.com/steveyegge/proseql/internal/sortpage"
	"github.com/steveyegge/proseql/internal/storageio"
	"github.com/steveyegge/proseql/internal/txn"
	"github.com/steveyegge/proseql/internal/validator"
	"github.com/steveyegge/proseql/internal/watch"
)

// Re-exported so callers never need to import the internal packages
// directly to build a CollectionSpec or a Request.
type (
	Record        = record.Record
	Where         = map[string]any
	Select        = sortpage.Select
	SortKey       = sortpage.Key
	PopulateSpec  = map[string]any
	Hooks         = collection.Hooks
	HookEvent     = collection.HookEvent
	DeleteRule    = collection.DeleteRule
	Validator     = validator.Validator
	SchemaField   = validator.Field
	Check         = validator.Check
	ValidatorFunc = validator.Func
	ComputedFuncs = computed.Fields
	Plugin        = plugin.Plugin
	PageInfo      = cursor.PageInfo
	MigrationStep   = migrate.Step
	MigrationReport = migrate.Report
	CursorConfig    = cursor.Config
	CascadeReport   = collection.CascadeReport
	CascadeRef      = collection.CascadeRef
)

const (
	Restrict = collection.Restrict
	Cascade  = collection.Cascade
	SetNull  = collection.SetNull
)

// RelationshipSpec declares one edge of a collection.
type RelationshipSpec struct {
	Name       string
	Ref        bool // true: FK lives here (one-to-one). false: Inverse, FK lives on Target.
	Target     string
	ForeignKey string
	OnDelete   DeleteRule // only consulted for Ref edges, on the target's delete
}

// NewValidator builds the default declarative Validator from a list of
// field rules — the schema-less equivalent of a struct-tag validator,
// since records are plain map[string]any rather than Go structs.
func NewValidator(fields ...SchemaField) Validator {
	return validator.New(fields...)
}

// UniqueConstraint names a set of fields that, taken together, must be
// unique within the collection.
type UniqueConstraint struct {
	Name   string
	Fields []string
}

// CollectionSpec declares one collection's shape (spec.md §3).
type CollectionSpec struct {
	Name            string
	Validator       Validator
	Relationships   []RelationshipSpec
	Unique          []UniqueConstraint
	Indexes         []string
	SearchIndex     []string
	Computed        ComputedFuncs
	Hooks           Hooks
	File            string
	Format          string
	AppendOnly      bool
	SoftDeleteField string
	IDGenerator     string
	SchemaVersion   int
	Migrations      []MigrationStep
}

// Options configures database-wide collaborators.
type Options struct {
	Plugins          []Plugin
	Logger           dblog.Logger
	Clock            func() time.Time
	Debounce         time.Duration
	Storage          storageio.Adapter
	DryRunMigrations bool
}

// Database is the opened, in-memory document store.
type Database struct {
	inner   *collection.Database
	bus     *eventbus.Bus
	trigger *persist.Trigger
	codecs  *codec.Registry
	storage storageio.Adapter
	idgens  *idgen.Registry
	plugins *plugin.Registry
	reports []migrate.Report
}

// Open builds a Database from a set of collection specs, loading any
// configured File from Storage and running its migration chain forward
// to SchemaVersion (spec.md §4.13). Unless DryRunMigrations is set, a
// collection whose rows a migration step changed is written back at once.
func Open(specs []CollectionSpec, opts Options) (*Database, error) {
	logger := opts.Logger
	if logger == nil {
		logger = dblog.Default()
	}
	storage := opts.Storage
	if storage == nil {
		storage = storageio.FS{}
	}
	codecs := codec.NewRegistry()
	idgens := idgen.NewRegistry()
	plugins, err := plugin.NewRegistry(codecs, idgens, opts.Plugins...)
	if err != nil {
		return nil, err
	}

	configs := make([]collection.NamedConfig, 0, len(specs))
	initialRows := make(map[string][]record.Record, len(specs))
	var reports []migrate.Report

	for _, spec := range specs {
		cfg := toInternalConfig(spec)
		configs = append(configs, collection.NamedConfig{Name: spec.Name, Config: cfg})

		if spec.File == "" {
			continue
		}
		recs, storedVersion, loadErr := loadCollectionFile(storage, codecs, spec)
		if loadErr != nil {
			if se, ok := loadErr.(*dberrors.StorageError); ok && se.Kind == "not-found" {
				continue // fresh database: file doesn't exist yet
			}
			return nil, loadErr
		}
		if len(spec.Migrations) > 0 || spec.SchemaVersion > 0 {
			chain := migrate.Chain{TargetVersion: spec.SchemaVersion, Steps: spec.Migrations}
			if err := chain.Validate(); err != nil {
				return nil, err
			}
			migrated := make([]record.Record, len(recs))
			for i, r := range recs {
				out, report, err := chain.Run(spec.Name, storedVersion, r, opts.DryRunMigrations)
				if err != nil {
					return nil, err
				}
				migrated[i] = out
				reports = append(reports, report)
			}
			recs = migrated
		}
		initialRows[spec.Name] = recs
	}

	inner, err := collection.New(configs, initialRows, idgens, eventbus.New(), logger, opts.Clock)
	if err != nil {
		return nil, err
	}

	trigger := persist.New(inner, storage, codecs, logger, opts.Debounce)
	written := make(map[string]bool)
	for _, r := range reports {
		if r.StepsApplied > 0 && !opts.DryRunMigrations && !written[r.Collection] {
			trigger.Flush(r.Collection)
			written[r.Collection] = true
		}
	}

	return &Database{
		inner:   inner,
		bus:     inner.Bus(),
		trigger: trigger,
		codecs:  codecs,
		storage: storage,
		idgens:  idgens,
		plugins: plugins,
		reports: reports,
	}, nil
}

// MigrationReports returns every per-record migration report produced
// while opening the database — the data cmd/proseql's dry-run report
// renders.
func (db *Database) MigrationReports() []migrate.Report { return db.reports }

func toInternalConfig(spec CollectionSpec) collection.Config {
	rels := make(map[string]collection.RelationshipConfig, len(spec.Relationships))
	for _, r := range spec.Relationships {
		kind := schema.Inverse
		if r.Ref {
			kind = schema.Ref
		}
		rels[r.Name] = collection.RelationshipConfig{
			Relationship: schema.Relationship{Name: r.Name, Kind: kind, Target: r.Target, ForeignKey: r.ForeignKey},
			OnDelete:     r.OnDelete,
		}
	}
	unique := make([]collection.UniqueConstraint, len(spec.Unique))
	for i, u := range spec.Unique {
		unique[i] = collection.UniqueConstraint{Name: u.Name, Fields: u.Fields}
	}
	return collection.Config{
		Validator:       spec.Validator,
		Relationships:   rels,
		Unique:          unique,
		IndexPaths:      spec.Indexes,
		SearchPaths:     spec.SearchIndex,
		Computed:        spec.Computed,
		Hooks:           spec.Hooks,
		File:            spec.File,
		Format:          spec.Format,
		AppendOnly:      spec.AppendOnly,
		SoftDeleteField: spec.SoftDeleteField,
		IDGenerator:     spec.IDGenerator,
		SchemaVersion:   spec.SchemaVersion,
	}
}

func loadCollectionFile(storage storageio.Adapter, codecs *codec.Registry, spec CollectionSpec) ([]record.Record, int, error) {
	data, err := storage.Read(spec.File)
	if err != nil {
		return nil, 0, err
	}
	ext := extOf(spec.File)
	decoded, err := codecs.Deserialize(data, ext, spec.Format)
	if err != nil {
		return nil, 0, err
	}
	doc, ok := decoded.(map[string]any)
	if !ok {
		return nil, 0, &dberrors.ValidationError{Message: spec.File + ": decoded document is not an object"}
	}
	version := 0
	if v, ok := doc["_schemaVersion"].(float64); ok {
		version = int(v)
		delete(doc, "_schemaVersion")
	}
	recs := make([]record.Record, 0, len(doc))
	for id, v := range doc {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		m["id"] = id
		recs = append(recs, record.Record(m))
	}
	return recs, version, nil
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
		if path[i] == '/' {
			break
		}
	}
	return ""
}

// --- Mutations ---------------------------------------------------------

func (db *Database) Create(ctx context.Context, collectionName string, draft Record) (Record, error) {
	return db.inner.Create(ctx, collectionName, draft)
}

func (db *Database) Update(ctx context.Context, collectionName, id string, patch map[string]any) (Record, error) {
	return db.inner.Update(ctx, collectionName, id, patch)
}

// Delete removes one row by id, leaving any foreign key that points at it
// dangling (spec.md §4.10 Open Question (a)). Use DeleteWithRelationships
// to cascade, restrict, or null out dependents instead.
func (db *Database) Delete(ctx context.Context, collectionName, id string) error {
	return db.inner.Delete(ctx, collectionName, id)
}

// DeleteWithRelationships removes one row by id, applying every dependent
// collection's configured OnDelete rule (Restrict/Cascade/SetNull) and
// returning a CascadeReport listing the ids of every dependent row it
// deleted or nulled out (spec.md §4.10, §8 scenario 4).
func (db *Database) DeleteWithRelationships(ctx context.Context, collectionName, id string) (CascadeReport, error) {
	return db.inner.DeleteWithRelationships(ctx, collectionName, id)
}

func (db *Database) Upsert(ctx context.Context, collectionName string, match map[string]any, draft Record) (Record, error) {
	return db.inner.Upsert(ctx, collectionName, match, draft)
}

// Tx is the transaction-scoped handle passed to a Transaction body: every
// call routes through the same mutation kernel as the top-level Database,
// against a shadow snapshot that only becomes visible on commit.
type Tx = txn.Handle

// Transaction runs fn under the single-writer lock with a shadow snapshot
// of whatever collections it touches (spec.md §4.10). A concurrent,
// overlapping Transaction call is rejected immediately with
// already-in-transaction rather than queuing. On success every touched
// collection commits, its buffered events replay onto Bus in commit order,
// and persistence is scheduled once per dirtied collection. On any error —
// returned by fn or by a mutation inside it — nothing commits.
func (db *Database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return txn.Run(ctx, db.inner, fn)
}

// --- Reads ---------------------------------------------------------

// Request mirrors internal/query.Request with re-exported types.
type Request struct {
	Where    Where
	Populate PopulateSpec
	Select   Select
	Sort     []SortKey
	Offset   *float64
	Limit    *float64
	Cursor   *CursorConfig
}

// AggregateRequest asks for count/sum/avg/min/max over Fields, optionally
// bucketed by GroupBy (spec.md §4.6).
type AggregateRequest = query.AggregateRequest

// AggregateResult is Aggregate's scalar or grouped answer — exactly one of
// Scalar or Groups is populated.
type AggregateResult struct {
	Scalar *aggregate.Scalar
	Groups []aggregate.Group
}

// Aggregate runs the filter stage of collectionName's pipeline (Where only
// — no populate, sort, or pagination) and reduces the result with
// count/sum/avg/min/max, optionally grouped.
func (db *Database) Aggregate(collectionName string, where Where, agg AggregateRequest) (AggregateResult, error) {
	c, ok := db.inner.Collection(collectionName)
	if !ok {
		return AggregateResult{}, &dberrors.OperationError{Operation: "aggregate", Reason: "unknown collection " + collectionName}
	}
	src := collectionSource{db: db.inner, c: c}
	result, err := query.Run(src, db.inner, query.Request{
		Collection: collectionName,
		Where:      where,
		Aggregate:  &agg,
	})
	if err != nil {
		return AggregateResult{}, err
	}
	return AggregateResult{Scalar: result.Scalar, Groups: result.Groups}, nil
}

func (db *Database) Find(collectionName string, req Request) ([]Record, *PageInfo, error) {
	c, ok := db.inner.Collection(collectionName)
	if !ok {
		return nil, nil, &dberrors.OperationError{Operation: "find", Reason: "unknown collection " + collectionName}
	}
	src := collectionSource{db: db.inner, c: c}
	result, err := query.Run(src, db.inner, query.Request{
		Collection: collectionName,
		Where:      req.Where,
		Populate:   req.Populate,
		Select:     req.Select,
		Sort:       req.Sort,
		Offset:     req.Offset,
		Limit:      req.Limit,
		Cursor:     req.Cursor,
	})
	if err != nil {
		return nil, nil, err
	}
	return result.Records, result.PageInfo, nil
}

func (db *Database) FindOne(collectionName string, req Request) (Record, bool, error) {
	one := 1.0
	req.Limit = &one
	recs, _, err := db.Find(collectionName, req)
	if err != nil || len(recs) == 0 {
		return nil, false, err
	}
	return recs[0], true, nil
}

// Watch starts a live query (spec.md §4.11): it emits the current result
// set synchronously, then again after every subsequent event touching
// collectionName, coalescing a burst within debounce into one recompute.
// Call Stop on the returned subscription to unsubscribe.
func (db *Database) Watch(collectionName string, req Request, debounce time.Duration) (*watch.Subscription, error) {
	if _, ok := db.inner.Collection(collectionName); !ok {
		return nil, &dberrors.OperationError{Operation: "watch", Reason: "unknown collection " + collectionName}
	}
	recompute := func() ([]record.Record, error) {
		recs, _, err := db.Find(collectionName, req)
		return recs, err
	}
	return watch.Subscribe(db.bus, collectionName, debounce, recompute), nil
}

// WatchByID is the watchById specialization: it emits one entity (or an
// empty result when absent) on subscription and again on every event
// affecting that id.
func (db *Database) WatchByID(collectionName, id string) (*watch.Subscription, error) {
	if _, ok := db.inner.Collection(collectionName); !ok {
		return nil, &dberrors.OperationError{Operation: "watch", Reason: "unknown collection " + collectionName}
	}
	get := func(id string) (record.Record, bool) { return db.inner.GetByID(collectionName, id) }
	return watch.SubscribeByID(db.bus, collectionName, id, get), nil
}

// --- Collaborators -------------------------------------------------

func (db *Database) Bus() *eventbus.Bus { return db.bus }

// Close flushes every pending persistence timer synchronously.
func (db *Database) Close() {
	db.trigger.Shutdown()
}

type collectionSource struct {
	db *collection.Database
	c  *collection.Collection
}

func (s collectionSource) Rows() map[string]record.Record {
	rows, _, _ := s.c.Snapshot()
	return rows
}

func (s collectionSource) Equality() *index.Equality {
	_, eq, _ := s.c.Snapshot()
	return eq
}

func (s collectionSource) Search() *index.Search {
	_, _, search := s.c.Snapshot()
	return search
}

func (s collectionSource) Relationships() map[string]schema.Relationship {
	return s.db.Relationships(s.c.Name)
}

func (s collectionSource) Computed() computed.Fields { return s.c.Cfg.Computed }

func (s collectionSource) SearchFields() []string { return s.c.Cfg.SearchPaths }
