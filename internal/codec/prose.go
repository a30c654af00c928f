package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Prose is the in-house line-oriented codec described in spec.md §6: a
// text file with an optional preamble, exactly one "@prose <template>"
// directive, and one line per record matching the template. There is no
// teacher analogue for this format — internal/jsonl is a close cousin in
// spirit (one record per line) but JSON-encoded rather than
// template-matched; this codec is built fresh from spec.md's description.
type Prose struct{}

func (Prose) Name() string         { return "prose" }
func (Prose) Extensions() []string { return []string{"prose"} }

// The decoded document shape is {"_template": "...", "_records": [...]}
// so Decode's return value round-trips through Encode without losing the
// template the caller configured.
const templateKey = "_template"
const recordsKey = "_records"

func (Prose) Encode(value any, _ map[string]any) ([]byte, error) {
	doc, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("prose: expected a document with %q and %q", templateKey, recordsKey)
	}
	tmplStr, _ := doc[templateKey].(string)
	if tmplStr == "" {
		return nil, fmt.Errorf("prose: missing %q", templateKey)
	}
	tmpl, err := parseTemplate(tmplStr)
	if err != nil {
		return nil, err
	}
	recsAny, _ := doc[recordsKey].([]any)

	var b strings.Builder
	fmt.Fprintf(&b, "@prose %s\n", tmplStr)
	for _, ra := range recsAny {
		rm, ok := ra.(map[string]any)
		if !ok {
			continue
		}
		line, overflow := encodeLine(tmpl, rm)
		b.WriteString(line)
		b.WriteByte('\n')
		for _, ov := range overflow {
			b.WriteString("  ")
			b.WriteString(ov)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String()), nil
}

func (Prose) Decode(data []byte) (any, error) {
	lines := strings.Split(string(data), "\n")

	directiveIdx := -1
	var tmplStr string
	for i, line := range lines {
		if strings.HasPrefix(line, "@prose ") {
			if directiveIdx != -1 {
				return nil, fmt.Errorf("prose: duplicate @prose directive at line %d", i+1)
			}
			directiveIdx = i
			tmplStr = strings.TrimPrefix(line, "@prose ")
		}
	}
	if directiveIdx == -1 {
		return nil, fmt.Errorf("prose: missing @prose directive")
	}

	tmpl, err := parseTemplate(tmplStr)
	if err != nil {
		return nil, err
	}

	var records []any
	var current map[string]any

	for _, line := range lines[directiveIdx+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "  ") && current != nil {
			appendOverflow(current, tmpl, strings.TrimPrefix(line, "  "))
			continue
		}
		rec, ok := matchLine(tmpl, line)
		if !ok {
			continue // not a record line; ignore silently, mirroring a tolerant line format
		}
		records = append(records, rec)
		current = rec
	}

	return map[string]any{
		templateKey: tmplStr,
		recordsKey:  records,
	}, nil
}

// templateField is one placeholder in a compiled template.
type templateField struct {
	name    string
	numeric bool
	greedy  bool
}

// compiledTemplate is prefix + an ordered (field, literalAfter) list.
type compiledTemplate struct {
	prefix string
	fields []templateField
	afters []string // afters[i] follows fields[i]; afters[len-1] is "" (greedy)
}

func parseTemplate(tmpl string) (*compiledTemplate, error) {
	ct := &compiledTemplate{}
	i := 0
	var lit strings.Builder
	haveFirstField := false

	for i < len(tmpl) {
		if tmpl[i] == '{' || (tmpl[i] == '#' && i+1 < len(tmpl) && tmpl[i+1] == '{') {
			numeric := tmpl[i] == '#'
			start := i
			if numeric {
				start = i + 1
			}
			end := strings.IndexByte(tmpl[start:], '}')
			if end == -1 {
				return nil, fmt.Errorf("prose: unterminated placeholder in template %q", tmpl)
			}
			name := tmpl[start+1 : start+end]
			if !haveFirstField {
				ct.prefix = lit.String()
			} else {
				ct.afters = append(ct.afters, lit.String())
			}
			lit.Reset()
			ct.fields = append(ct.fields, templateField{name: name, numeric: numeric})
			haveFirstField = true
			i = start + end + 1
			continue
		}
		lit.WriteByte(tmpl[i])
		i++
	}
	if !haveFirstField {
		return nil, fmt.Errorf("prose: template %q has no placeholders", tmpl)
	}
	ct.afters = append(ct.afters, lit.String()) // trailing literal after the last field (usually empty)
	ct.fields[len(ct.fields)-1].greedy = true
	return ct, nil
}

func matchLine(ct *compiledTemplate, line string) (map[string]any, bool) {
	if !strings.HasPrefix(line, ct.prefix) {
		return nil, false
	}
	pos := len(ct.prefix)
	rec := make(map[string]any, len(ct.fields))

	for i, f := range ct.fields {
		after := ct.afters[i]
		var raw string
		if f.greedy || after == "" {
			raw = line[pos:]
			pos = len(line)
		} else {
			idx := strings.Index(line[pos:], after)
			if idx == -1 {
				return nil, false
			}
			raw = line[pos : pos+idx]
			pos += idx + len(after)
		}
		rec[f.name] = decodeValue(raw)
	}
	return rec, true
}

// appendOverflow joins a continuation line onto the greedy (last) field of
// the current record — spec.md §6's "continuation of the previous value".
func appendOverflow(rec map[string]any, ct *compiledTemplate, text string) {
	last := ct.fields[len(ct.fields)-1].name
	prev, _ := rec[last].(string)
	if prev == "" {
		rec[last] = text
		return
	}
	rec[last] = prev + "\n" + text
}

func encodeLine(ct *compiledTemplate, rec map[string]any) (line string, overflow []string) {
	var b strings.Builder
	b.WriteString(ct.prefix)
	for i, f := range ct.fields {
		s := encodeValue(rec[f.name])
		if f.greedy {
			if parts := strings.Split(s, "\n"); len(parts) > 1 {
				b.WriteString(parts[0])
				overflow = parts[1:]
			} else {
				b.WriteString(s)
			}
		} else {
			b.WriteString(s)
		}
		b.WriteString(ct.afters[i])
	}
	return b.String(), overflow
}

// decodeValue applies the heuristic coercions spec.md §6 describes:
// numeric/boolean strings, "~" as null, "[a, b, c]" as an array.
func decodeValue(raw string) any {
	switch raw {
	case "~":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		return decodeArray(raw[1 : len(raw)-1])
	}
	return raw
}

func decodeArray(inner string) []any {
	if strings.TrimSpace(inner) == "" {
		return []any{}
	}
	parts := splitArrayElements(inner)
	out := make([]any, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
			out[i] = p[1 : len(p)-1]
			continue
		}
		out[i] = decodeValue(p)
	}
	return out
}

// splitArrayElements splits on top-level commas, respecting double-quoted
// elements so a quoted delimiter doesn't split mid-element.
func splitArrayElements(s string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == ',' && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}

func encodeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "~"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case []any:
		parts := make([]string, len(t))
		for i, elem := range t {
			s := encodeValue(elem)
			if strings.ContainsAny(s, ",[]") {
				s = `"` + s + `"`
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", t)
	}
}
