// Package idgen implements the id generators a collection config can name
// (spec.md §3 "idGenerator?"). The default generator is a random UUID;
// plugins may register named alternatives, such as the teacher's
// content-hash scheme (see HashGenerator, grounded on
// internal/idgen/hash.go's base36 encoding).
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/proseql/internal/record"
)

// Generator produces an id for a new row. draft is the not-yet-validated
// create input, useful for content-derived schemes.
type Generator interface {
	Generate(collection string, draft record.Record) string
}

// UUIDName is the registry name of the default generator.
const UUIDName = "uuid"

// UUIDGenerator is the default: a random v4 UUID string.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate(string, record.Record) string {
	return uuid.NewString()
}

// HashGenerator derives a short base36 id from a prefix and the draft's
// content, adapted from the teacher's GenerateHashID
// (internal/idgen/hash.go): prefix-hash ids are stable and compact but,
// unlike a UUID, need a nonce to break ties on repeated content.
type HashGenerator struct {
	Prefix string
	Fields []string // draft fields to hash; defaults to every string field
	Length int       // base36 digits after the prefix; default 6
	Now    func() time.Time
	nonce  int
}

func (h *HashGenerator) Generate(collection string, draft record.Record) string {
	length := h.Length
	if length <= 0 {
		length = 6
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	var content strings.Builder
	fields := h.Fields
	if len(fields) == 0 {
		fields = record.SortedKeys(draft)
	}
	for _, f := range fields {
		fmt.Fprintf(&content, "%v|", draft[f])
	}
	fmt.Fprintf(&content, "%d|%d", now().UnixNano(), h.nonce)
	h.nonce++

	sum := sha256.Sum256([]byte(content.String()))
	short := encodeBase36(sum[:numBytesFor(length)], length)

	prefix := h.Prefix
	if prefix == "" {
		prefix = collection
	}
	return fmt.Sprintf("%s-%s", prefix, short)
}

func numBytesFor(length int) int {
	switch {
	case length <= 3:
		return 2
	case length <= 4:
		return 3
	case length <= 6:
		return 4
	default:
		return 5
	}
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func encodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}
	for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
		chars[i], chars[j] = chars[j], chars[i]
	}
	s := string(chars)
	if len(s) < length {
		s = strings.Repeat("0", length-len(s)) + s
	}
	if len(s) > length {
		s = s[len(s)-length:]
	}
	return s
}

// Registry holds named generators, consulted when a collection's config
// names a plugin-supplied idGenerator (spec.md §3, §4.14).
type Registry struct {
	generators map[string]Generator
}

// NewRegistry returns a registry pre-seeded with the default "uuid"
// generator.
func NewRegistry() *Registry {
	return &Registry{generators: map[string]Generator{
		"uuid": UUIDGenerator{},
	}}
}

// Register adds or replaces a named generator.
func (r *Registry) Register(name string, g Generator) {
	r.generators[name] = g
}

// Get returns the named generator, falling back to the default UUID
// generator if name is empty or unregistered.
func (r *Registry) Get(name string) Generator {
	if name == "" {
		return UUIDGenerator{}
	}
	if g, ok := r.generators[name]; ok {
		return g
	}
	return UUIDGenerator{}
}

// Has reports whether name is registered, for plugin-registry validation.
func (r *Registry) Has(name string) bool {
	_, ok := r.generators[name]
	return ok
}
