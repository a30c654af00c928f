package index

import (
	"sort"
	"strings"

	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/token"
)

// Search is the inverted token index: token -> id set, built over a set of
// configured string field paths (spec.md §3 "searchIndex").
type Search struct {
	paths  []string
	tokens map[string]map[string]struct{}
	// sortedTokens caches a sorted token list so prefix lookups don't scan
	// the whole map on every query; invalidated lazily on mutation.
	sortedTokens []string
	dirty        bool
}

// BuildSearch tokenizes every configured field of every record once.
func BuildSearch(recs []record.Record, paths []string) *Search {
	s := &Search{
		paths:  append([]string(nil), paths...),
		tokens: make(map[string]map[string]struct{}),
		dirty:  true,
	}
	for _, r := range recs {
		s.insert(r)
	}
	return s
}

func (s *Search) Paths() []string { return s.paths }

func (s *Search) docTokens(r record.Record) map[string]struct{} {
	set := make(map[string]struct{})
	for _, p := range s.paths {
		v, ok := record.Get(r, p)
		if !ok {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		for t := range token.Set(str) {
			set[t] = struct{}{}
		}
	}
	return set
}

func (s *Search) insert(r record.Record) {
	id := r.ID()
	for t := range s.docTokens(r) {
		bucket, ok := s.tokens[t]
		if !ok {
			bucket = make(map[string]struct{})
			s.tokens[t] = bucket
			s.dirty = true
		}
		bucket[id] = struct{}{}
	}
}

func (s *Search) remove(r record.Record) {
	id := r.ID()
	for t := range s.docTokens(r) {
		if bucket, ok := s.tokens[t]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(s.tokens, t)
				s.dirty = true
			}
		}
	}
}

// Apply reconciles the search index with a mutation, inserting into new
// token buckets and removing from old ones (spec.md §4.2 "Maintenance").
func (s *Search) Apply(old, cur record.Record) {
	var oldTokens, newTokens map[string]struct{}
	if old != nil {
		oldTokens = s.docTokens(old)
	}
	if cur != nil {
		newTokens = s.docTokens(cur)
	}
	id := idOf(old, cur)

	for t := range oldTokens {
		if _, keep := newTokens[t]; keep {
			continue
		}
		if bucket, ok := s.tokens[t]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(s.tokens, t)
				s.dirty = true
			}
		}
	}
	for t := range newTokens {
		if _, had := oldTokens[t]; had {
			continue
		}
		bucket, ok := s.tokens[t]
		if !ok {
			bucket = make(map[string]struct{})
			s.tokens[t] = bucket
			s.dirty = true
		}
		bucket[id] = struct{}{}
	}
}

// Lookup returns the exact id set for one token (no prefix expansion).
func (s *Search) Lookup(tok string) map[string]struct{} {
	return s.tokens[tok]
}

// TokenHasMatch reports whether any indexed token starts with prefix,
// implementing the filter evaluator's index-accelerated prefix fallback.
// Tokens are scanned in sorted order so the search can stop as soon as it
// passes the prefix's lexicographic range.
func (s *Search) TokenHasMatch(prefix string) bool {
	sorted := s.sorted()
	start := sort.SearchStrings(sorted, prefix)
	if start < len(sorted) && strings.HasPrefix(sorted[start], prefix) {
		return true
	}
	return false
}

// QueryTokens intersects the id sets for every token in toks (AND across
// tokens); the final token matches by prefix (every indexed token starting
// with it contributes its ids), matching spec.md §4.2's "Prefix fallback".
// Returns (ids, ok) where ok is false when any token has zero matches.
func (s *Search) QueryTokens(toks []string) (map[string]struct{}, bool) {
	if len(toks) == 0 {
		return nil, false
	}
	var result map[string]struct{}
	for i, t := range toks {
		var ids map[string]struct{}
		if i == len(toks)-1 {
			ids = s.prefixUnion(t)
		} else {
			ids = s.tokens[t]
		}
		if len(ids) == 0 {
			return nil, false
		}
		if result == nil {
			result = make(map[string]struct{}, len(ids))
			for id := range ids {
				result[id] = struct{}{}
			}
			continue
		}
		result = intersect(result, ids)
		if len(result) == 0 {
			return nil, false
		}
	}
	return result, true
}

func (s *Search) prefixUnion(prefix string) map[string]struct{} {
	out := make(map[string]struct{})
	for t, bucket := range s.tokens {
		if strings.HasPrefix(t, prefix) {
			for id := range bucket {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

func (s *Search) sorted() []string {
	if !s.dirty && s.sortedTokens != nil {
		return s.sortedTokens
	}
	out := make([]string, 0, len(s.tokens))
	for t := range s.tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	s.sortedTokens = out
	s.dirty = false
	return out
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	out := make(map[string]struct{})
	for id := range small {
		if _, ok := big[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}
