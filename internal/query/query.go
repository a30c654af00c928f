// Package query is the read-path orchestrator of spec.md §4.8: it wires
// populate, computed-field resolution, filter, sort, pagination, and
// projection into the single streaming pipeline every read operation
// runs. Grounded on the teacher's internal/query/evaluator.go, which
// likewise threads one mutable "candidate set" through a fixed stage
// order (parse -> filter -> sort -> limit) rather than building an
// intermediate query plan tree.
package query

import (
	"sort"
	"strings"

	"github.com/steveyegge/proseql/internal/aggregate"
	"github.com/steveyegge/proseql/internal/computed"
	"github.com/steveyegge/proseql/internal/cursor"
	"github.com/steveyegge/proseql/internal/filter"
	"github.com/steveyegge/proseql/internal/index"
	"github.com/steveyegge/proseql/internal/populate"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
	"github.com/steveyegge/proseql/internal/sortpage"
	"github.com/steveyegge/proseql/internal/token"
)

// Source is everything the orchestrator needs from one collection,
// implemented by *collection.Collection plus its owning Database (kept
// as an interface here to avoid a query<->collection import cycle).
type Source interface {
	Rows() map[string]record.Record
	Equality() *index.Equality
	Search() *index.Search
	Relationships() map[string]schema.Relationship
	Computed() computed.Fields
	SearchFields() []string
}

// Request is one read operation's full parameters.
type Request struct {
	Collection string
	Where      filter.Where
	Populate   populate.Spec
	Select     sortpage.Select
	Sort       []sortpage.Key
	Offset     *float64
	Limit      *float64
	Cursor     *cursor.Config

	// Aggregate, when non-nil, short-circuits the pipeline after filtering:
	// sort/paginate/select never run, and Result carries Scalar or Groups
	// instead of Records (spec.md §4.6).
	Aggregate *AggregateRequest
}

// AggregateRequest asks for count/sum/avg/min/max over Fields, optionally
// bucketed by GroupBy.
type AggregateRequest struct {
	Fields  []string
	GroupBy []string
}

// Result is one pipeline run's output. Exactly one of (Records, Scalar,
// Groups) is populated, depending on whether Request.Aggregate was set.
type Result struct {
	Records  []record.Record
	PageInfo *cursor.PageInfo // non-nil only when Request.Cursor was set

	Scalar *aggregate.Scalar
	Groups []aggregate.Group
}

// Run executes the full pipeline against src, using acc to resolve
// relationship traversal for both filter and populate.
func Run(src Source, acc schema.Accessor, req Request) (Result, error) {
	rows := src.Rows()
	eq := src.Equality()
	search := src.Search()
	rels := src.Relationships()

	ids := candidateIDs(eq, search, req.Where, rows, src.SearchFields())
	recs := make([]record.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := rows[id]; ok {
			recs = append(recs, r.Clone())
		}
	}

	if req.Populate != nil {
		for _, r := range recs {
			if err := populate.Populate(r, req.Collection, acc, req.Populate); err != nil {
				return Result{}, err
			}
		}
	}

	fields := src.Computed()
	if len(fields) > 0 && needsComputed(req, fields.Names()) {
		for _, r := range recs {
			if err := computed.Resolve(r, fields); err != nil {
				return Result{}, err
			}
		}
	}

	evaluator := filter.New(req.Collection, rels, acc, src.SearchFields())
	evaluator.SearchAccel = search

	hasSearch := whereHasSearch(req.Where)
	filtered := recs[:0]
	scores := make(map[string]int, len(recs))
	for _, r := range recs {
		ok, err := evaluator.Match(r, req.Where)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			continue
		}
		if hasSearch {
			scores[r.ID()] = relevanceScore(r, req.Where, src.SearchFields())
		}
		filtered = append(filtered, r)
	}

	if req.Aggregate != nil {
		if len(req.Aggregate.GroupBy) > 0 {
			return Result{Groups: aggregate.ComputeGrouped(filtered, req.Aggregate.Fields, req.Aggregate.GroupBy)}, nil
		}
		scalar := aggregate.Compute(filtered, req.Aggregate.Fields)
		return Result{Scalar: &scalar}, nil
	}

	sortKeys := req.Sort
	if len(sortKeys) == 0 && hasSearch {
		recs2 := append([]record.Record(nil), filtered...)
		sort.SliceStable(recs2, func(i, j int) bool {
			return scores[recs2[i].ID()] > scores[recs2[j].ID()]
		})
		filtered = recs2
	} else if len(sortKeys) > 0 {
		sortpage.Sort(filtered, sortKeys)
	}

	if req.Cursor != nil {
		resolved, err := cursor.ResolveSort(sortKeys, req.Cursor.Key)
		if err != nil {
			return Result{}, err
		}
		sortpage.Sort(filtered, resolved)
		page, err := cursor.Apply(filtered, *req.Cursor)
		if err != nil {
			return Result{}, err
		}
		projected := make([]record.Record, len(page.Items))
		for i, r := range page.Items {
			projected[i] = sortpage.Project(r, req.Select)
		}
		return Result{Records: projected, PageInfo: &page.PageInfo}, nil
	}

	paged := sortpage.Paginate(filtered, req.Offset, req.Limit)
	projected := make([]record.Record, len(paged))
	for i, r := range paged {
		projected[i] = sortpage.Project(r, req.Select)
	}
	return Result{Records: projected}, nil
}

// candidateIDs narrows the scan using the equality index when the
// where-expression has a single top-level indexable equality clause, or
// using the search index when a $search clause's fields are covered by the
// search index, falling back to every row id otherwise (spec.md §4.8
// "index-narrowed scan", spec.md §4.2 "Narrowing... tries search-index
// narrowing when $search is present and the searched fields are a subset
// of the indexed fields").
func candidateIDs(eq *index.Equality, search *index.Search, where filter.Where, rows map[string]record.Record, defaultSearchFields []string) []string {
	if eq != nil && len(where) == 1 {
		for path, clause := range where {
			if lit, ok := asLiteral(clause); ok && eq.Has(path) {
				return setToSlice(eq.Lookup(path, lit))
			}
		}
	}
	if search != nil {
		if clause, ok := where["$search"]; ok {
			if ids, ok := searchCandidateIDs(search, clause, defaultSearchFields); ok {
				return setToSlice(ids)
			}
		}
	}
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	return ids
}

// searchCandidateIDs narrows using the inverted index when every field the
// $search clause names (or, for a bare-string clause, every default search
// field) is indexed. The returned set is a superset of the exact matches
// filter.Evaluator.Match will later compute (the index unions tokens across
// all indexed fields, where the evaluator matches per field), which is safe
// for narrowing since the evaluator still re-checks every candidate.
func searchCandidateIDs(search *index.Search, clause any, defaultFields []string) (map[string]struct{}, bool) {
	var query string
	fields := defaultFields
	switch t := clause.(type) {
	case string:
		query = t
	case map[string]any:
		q, _ := t["query"].(string)
		query = q
		if fs, ok := t["fields"].([]any); ok {
			fields = make([]string, 0, len(fs))
			for _, f := range fs {
				if s, ok := f.(string); ok {
					fields = append(fields, s)
				}
			}
		}
	default:
		return nil, false
	}
	if !fieldsSubsetOf(fields, search.Paths()) {
		return nil, false
	}
	toks := token.Tokenize(query)
	if len(toks) == 0 {
		return nil, false
	}
	return search.QueryTokens(toks)
}

func fieldsSubsetOf(fields, indexed []string) bool {
	if len(fields) == 0 {
		return false
	}
	set := make(map[string]bool, len(indexed))
	for _, p := range indexed {
		set[p] = true
	}
	for _, f := range fields {
		if !set[f] {
			return false
		}
	}
	return true
}

func asLiteral(v any) (any, bool) {
	switch v.(type) {
	case map[string]any, filter.Where:
		return nil, false
	default:
		return v, true
	}
}

func setToSlice(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// needsComputed extends sortpage.ReferencesComputed's select check with
// the sort keys and where-clause, since a query may filter or order by a
// computed field without selecting it.
func needsComputed(req Request, computedNames []string) bool {
	if sortpage.ReferencesComputed(req.Select, computedNames) {
		return true
	}
	names := make(map[string]bool, len(computedNames))
	for _, n := range computedNames {
		names[n] = true
	}
	for _, k := range req.Sort {
		if names[strings.SplitN(k.Path, ".", 2)[0]] {
			return true
		}
	}
	for field := range req.Where {
		if names[field] {
			return true
		}
	}
	return false
}

func whereHasSearch(where filter.Where) bool {
	_, ok := where["$search"]
	return ok
}

// relevanceScore counts, over the default search fields, how many
// whitespace-separated query words occur as substrings of each field, a
// simple proxy for ranking (spec.md §4.1's search
// section specifies matching semantics but leaves ranking
// implementation-defined).
func relevanceScore(rec record.Record, where filter.Where, fields []string) int {
	clause, ok := where["$search"]
	if !ok {
		return 0
	}
	var query string
	switch t := clause.(type) {
	case string:
		query = t
	case map[string]any:
		query, _ = t["query"].(string)
	}
	score := 0
	for _, path := range fields {
		v, present := record.Get(rec, path)
		if !present {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, qt := range strings.Fields(strings.ToLower(query)) {
			if strings.Contains(strings.ToLower(s), qt) {
				score++
			}
		}
	}
	return score
}
