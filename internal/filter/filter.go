// Package filter evaluates a nested where-expression against one record:
// logical combinators, comparison/array/string operators, full-text
// $search, and relationship-traversal predicates (spec.md §4.1).
package filter

import (
	"fmt"
	"strings"

	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
	"github.com/steveyegge/proseql/internal/token"
)

// Undefined is the sentinel clause value meaning "the field is absent",
// matching spec.md's "$eq: undefined matches missing fields".
type undefinedT struct{}

var Undefined undefinedT

var comparisonOps = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true,
	"$startsWith": true, "$endsWith": true, "$contains": true,
	"$all": true, "$size": true,
}

// Where is a nested where-expression: keys are either operators
// ($and/$or/$not/$search) or field/relationship paths.
type Where map[string]any

// Evaluator evaluates where-expressions against records in the context of
// one collection's relationship graph.
type Evaluator struct {
	Collection     string
	Relationships  map[string]schema.Relationship
	Accessor       schema.Accessor
	SearchFields   []string // default fields for a bare $search string
	SearchAccel    SearchAccelerator
}

// SearchAccelerator lets the evaluator use the inverted index's prefix
// matching instead of falling back to substring matching for $search, when
// one is available. Implemented by *index.Search.
type SearchAccelerator interface {
	TokenHasMatch(token string) bool
}

// New builds an evaluator for a collection.
func New(collection string, rels map[string]schema.Relationship, acc schema.Accessor, searchFields []string) *Evaluator {
	return &Evaluator{Collection: collection, Relationships: rels, Accessor: acc, SearchFields: searchFields}
}

// Match reports whether rec satisfies where.
func (e *Evaluator) Match(rec record.Record, where Where) (bool, error) {
	if len(where) == 0 {
		return true, nil
	}
	for key, clause := range where {
		ok, err := e.matchKey(rec, key, clause)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) matchKey(rec record.Record, key string, clause any) (bool, error) {
	switch key {
	case "$and":
		subs, err := asWhereList(clause)
		if err != nil {
			return false, err
		}
		for _, sub := range subs {
			ok, err := e.Match(rec, sub)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil // vacuous truth on empty
	case "$or":
		subs, err := asWhereList(clause)
		if err != nil {
			return false, err
		}
		for _, sub := range subs {
			ok, err := e.Match(rec, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil // false on empty
	case "$not":
		sub, err := asWhere(clause)
		if err != nil {
			return false, err
		}
		ok, err := e.Match(rec, sub)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case "$search":
		return e.matchSearch(rec, clause)
	default:
		if rel, ok := e.Relationships[key]; ok {
			return e.matchRelationship(rec, rel, clause)
		}
		return e.matchField(rec, key, clause)
	}
}

func asWhereList(v any) ([]Where, error) {
	arr, ok := v.([]any)
	if !ok {
		if ws, ok := v.([]Where); ok {
			return ws, nil
		}
		return nil, fmt.Errorf("filter: expected a list of sub-expressions, got %T", v)
	}
	out := make([]Where, 0, len(arr))
	for _, item := range arr {
		w, err := asWhere(item)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func asWhere(v any) (Where, error) {
	switch t := v.(type) {
	case Where:
		return t, nil
	case map[string]any:
		return Where(t), nil
	default:
		return nil, fmt.Errorf("filter: expected an expression object, got %T", v)
	}
}

// matchField evaluates the clause for one field path. The clause is either
// a literal (implicit $eq), an operator object (AND of its keys), or a
// shape-mirroring nested object.
func (e *Evaluator) matchField(rec record.Record, path string, clause any) (bool, error) {
	val, present := record.Get(rec, path)

	clauseMap, isMap := asPlainMap(clause)
	if !isMap {
		return fieldEq(val, present, clause), nil
	}

	if !isOperatorClause(clauseMap) {
		// Shape-mirroring: recurse into the nested sub-object.
		if !present {
			return false, nil
		}
		sub, ok := asPlainMap(val)
		if !ok {
			return false, nil
		}
		for k, v := range clauseMap {
			ok, err := e.matchFieldOrNested(sub, k, v)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	}

	for op, opArg := range clauseMap {
		ok, err := matchOperator(op, opArg, val, present)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// matchFieldOrNested recurses for shape-mirroring: the "record" is here a
// plain nested map rather than a top-level Record.
func (e *Evaluator) matchFieldOrNested(m map[string]any, path string, clause any) (bool, error) {
	return e.matchField(record.Record(m), path, clause)
}

func isOperatorClause(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !comparisonOps[k] {
			return false
		}
	}
	return true
}

func asPlainMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case record.Record:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

func fieldEq(val any, present bool, clause any) bool {
	if _, isUndef := clause.(undefinedT); isUndef {
		return !present
	}
	if !present {
		return false
	}
	return looseEqual(val, clause)
}

func fieldNe(val any, present bool, clause any) bool {
	if _, isUndef := clause.(undefinedT); isUndef {
		return present
	}
	if !present {
		return true
	}
	return !looseEqual(val, clause)
}

func looseEqual(a, b any) bool {
	if record.DeepEqual(a, b) {
		return true
	}
	af, aok := record.IsNumeric(a)
	bf, bok := record.IsNumeric(b)
	if aok && bok {
		return af == bf
	}
	return false
}

func matchOperator(op string, arg any, val any, present bool) (bool, error) {
	switch op {
	case "$eq":
		return fieldEq(val, present, arg), nil
	case "$ne":
		return fieldNe(val, present, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false, nil
		}
		return compareOp(op, val, arg), nil
	case "$in":
		if !present {
			return false, nil
		}
		list, _ := arg.([]any)
		for _, item := range list {
			if looseEqual(val, item) {
				return true, nil
			}
		}
		return false, nil
	case "$nin":
		if !present {
			return false, nil
		}
		list, _ := arg.([]any)
		for _, item := range list {
			if looseEqual(val, item) {
				return false, nil
			}
		}
		return true, nil
	case "$startsWith":
		if !present {
			return false, nil
		}
		s, ok := val.(string)
		pfx, ok2 := arg.(string)
		return ok && ok2 && strings.HasPrefix(s, pfx), nil
	case "$endsWith":
		if !present {
			return false, nil
		}
		s, ok := val.(string)
		sfx, ok2 := arg.(string)
		return ok && ok2 && strings.HasSuffix(s, sfx), nil
	case "$contains":
		if !present {
			return false, nil
		}
		return matchContains(val, arg), nil
	case "$all":
		if !present {
			return false, nil
		}
		arr, ok := val.([]any)
		if !ok {
			return false, nil
		}
		want, _ := arg.([]any)
		if len(want) == 0 {
			return true, nil // vacuous truth on empty
		}
		for _, w := range want {
			found := false
			for _, item := range arr {
				if looseEqual(item, w) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
		return true, nil
	case "$size":
		if !present {
			return false, nil
		}
		arr, ok := val.([]any)
		if !ok {
			return false, nil
		}
		n, ok := record.IsNumeric(arg)
		return ok && float64(len(arr)) == n, nil
	default:
		return false, fmt.Errorf("filter: unknown operator %q", op)
	}
}

func matchContains(val, arg any) bool {
	switch t := val.(type) {
	case string:
		s, ok := arg.(string)
		return ok && strings.Contains(t, s)
	case []any:
		for _, item := range t {
			if looseEqual(item, arg) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func compareOp(op string, a, b any) bool {
	if as, ok := a.(string); ok {
		if bs, ok2 := b.(string); ok2 {
			switch op {
			case "$gt":
				return as > bs
			case "$gte":
				return as >= bs
			case "$lt":
				return as < bs
			case "$lte":
				return as <= bs
			}
		}
	}
	af, aok := record.IsNumeric(a)
	bf, bok := record.IsNumeric(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case "$gt":
		return af > bf
	case "$gte":
		return af >= bf
	case "$lt":
		return af < bf
	case "$lte":
		return af <= bf
	}
	return false
}

// matchRelationship traverses a declared edge.
func (e *Evaluator) matchRelationship(rec record.Record, rel schema.Relationship, clause any) (bool, error) {
	sub, err := asWhere(clause)
	if err != nil {
		return false, err
	}

	switch rel.Kind {
	case schema.Ref:
		fkVal, present := rec[rel.ForeignKey]
		if !present || fkVal == nil {
			return false, nil
		}
		fkID, ok := fkVal.(string)
		if !ok {
			return false, nil
		}
		target, found := e.Accessor.GetByID(rel.Target, fkID)
		if !found {
			return false, nil
		}
		return e.childEvaluator(rel.Target).Match(target, sub)
	case schema.Inverse:
		siblings := e.Accessor.ListByFK(rel.Target, rel.ForeignKey, rec.ID())
		return e.matchInverseQuantifier(rel.Target, siblings, sub)
	default:
		return false, fmt.Errorf("filter: unknown relationship kind for %q", rel.Name)
	}
}

func (e *Evaluator) matchInverseQuantifier(target string, siblings []record.Record, clause Where) (bool, error) {
	child := e.childEvaluator(target)
	if sub, ok := clause["$some"]; ok {
		w, err := asWhere(sub)
		if err != nil {
			return false, err
		}
		for _, s := range siblings {
			ok, err := child.Match(s, w)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	if sub, ok := clause["$every"]; ok {
		w, err := asWhere(sub)
		if err != nil {
			return false, err
		}
		for _, s := range siblings {
			ok, err := child.Match(s, w)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil // vacuously true on empty
	}
	if sub, ok := clause["$none"]; ok {
		w, err := asWhere(sub)
		if err != nil {
			return false, err
		}
		for _, s := range siblings {
			ok, err := child.Match(s, w)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("filter: inverse relationship clause must be $some, $every, or $none")
}

func (e *Evaluator) childEvaluator(collection string) *Evaluator {
	return &Evaluator{
		Collection:    collection,
		Relationships: e.Accessor.Relationships(collection),
		Accessor:      e.Accessor,
	}
}

// matchSearch implements the $search operator: a bare string searches
// e.SearchFields; {query, fields} searches the given fields.
func (e *Evaluator) matchSearch(rec record.Record, clause any) (bool, error) {
	var query string
	fields := e.SearchFields
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
		return false, fmt.Errorf("filter: $search expects a string or {query, fields}")
	}

	queryTokens := token.Tokenize(query)
	if len(queryTokens) == 0 {
		return true, nil
	}

	for _, path := range fields {
		val, present := record.Get(rec, path)
		if !present {
			continue
		}
		s, ok := val.(string)
		if !ok {
			continue
		}
		docTokens := token.Set(s)
		if allTokensMatch(queryTokens, docTokens, e.SearchAccel) {
			return true, nil
		}
	}
	return false, nil
}

// allTokensMatch requires every query token to be present in the
// document's token set; the final token additionally matches by prefix
// (index-accelerated if accel is supplied, else substring fallback).
func allTokensMatch(queryTokens []string, docTokens map[string]struct{}, accel SearchAccelerator) bool {
	for i, qt := range queryTokens {
		last := i == len(queryTokens)-1
		if _, exact := docTokens[qt]; exact {
			continue
		}
		if !last {
			return false
		}
		if accel != nil && !accel.TokenHasMatch(qt) {
			return false
		}
		matched := false
		for dt := range docTokens {
			if (accel != nil && strings.HasPrefix(dt, qt)) || (accel == nil && strings.Contains(dt, qt)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
