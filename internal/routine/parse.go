package routine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/typemap"
)

var (
	// ErrUnbalanced is returned for text with unclosed brackets or quotes.
	ErrUnbalanced = errors.New("unbalanced brackets or quotes")
	// ErrEmptyEntry is returned when a comma-separated list has an empty item.
	ErrEmptyEntry = errors.New("empty entry")
	// ErrMissingType is returned for a parameter or column without a type.
	ErrMissingType = errors.New("missing type")
)

// SplitTopLevel splits s on commas that are not nested inside brackets or
// quoted text. Entries are trimmed. An empty or blank s yields no entries.
func SplitTopLevel(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range s {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"':
			quote = r
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: %q", ErrUnbalanced, s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 || quote != 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnbalanced, s)
	}
	parts = append(parts, strings.TrimSpace(s[start:]))

	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w in %q", ErrEmptyEntry, s)
		}
	}
	return parts, nil
}

// indexTopLevel returns the index of the first case-insensitive occurrence
// of sep in s that sits outside brackets and quotes, or -1.
func indexTopLevel(s, sep string) int {
	lower := strings.ToLower(s)
	sep = strings.ToLower(sep)
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(lower[i:], sep) {
				return i
			}
		}
	}
	return -1
}

var modes = map[string]model.ParamMode{
	"in":       model.ModeIn,
	"out":      model.ModeOut,
	"inout":    model.ModeInOut,
	"variadic": model.ModeVariadic,
}

// ParseParameters parses an argument list as printed by the catalog, for
// example "a integer, OUT b text, c numeric(10,2) DEFAULT 0". Each entry
// is an optional mode, an optional name and a type, optionally followed by
// "DEFAULT expr" or "= expr". Entries that only carry a type are named
// arg1, arg2, ... by position. Parameter types always resolve non-nullable,
// so a defaulted parameter has the same type as its undefaulted twin.
func ParseParameters(args string, res *typemap.Resolver) ([]model.Parameter, error) {
	entries, err := SplitTopLevel(args)
	if err != nil {
		return nil, err
	}

	params := make([]model.Parameter, 0, len(entries))
	for i, entry := range entries {
		p, err := parseParameter(entry, i+1, res)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i+1, err)
		}
		params = append(params, p)
	}
	return params, nil
}

func parseParameter(entry string, pos int, res *typemap.Resolver) (model.Parameter, error) {
	p := model.Parameter{Position: pos, Mode: model.ModeIn}

	decl := entry
	if idx := indexTopLevel(entry, " default "); idx >= 0 {
		decl, p.Default = entry[:idx], ptr(strings.TrimSpace(entry[idx+len(" default "):]))
	} else if idx := indexTopLevel(entry, "="); idx >= 0 {
		decl, p.Default = entry[:idx], ptr(strings.TrimSpace(entry[idx+1:]))
	}
	if p.Default != nil {
		if *p.Default == "" {
			return p, fmt.Errorf("missing default expression in %q", entry)
		}
		p.HasDefault = true
	}
	if strings.HasSuffix(strings.ToLower(strings.TrimSpace(decl)), " default") {
		return p, fmt.Errorf("missing default expression in %q", entry)
	}

	decl = strings.TrimSpace(decl)
	if first, rest, ok := strings.Cut(decl, " "); ok {
		if mode, isMode := modes[strings.ToLower(first)]; isMode {
			p.Mode = mode
			decl = strings.TrimSpace(rest)
		}
	} else if _, isMode := modes[strings.ToLower(decl)]; isMode {
		return p, fmt.Errorf("%w in %q", ErrMissingType, entry)
	}
	if decl == "" {
		return p, fmt.Errorf("%w in %q", ErrMissingType, entry)
	}

	name, typ := splitName(decl)
	switch {
	case typ == "", isKnownType(decl, res) && isKnownType(name, res):
		p.Name = fmt.Sprintf("arg%d", pos)
		p.RawType = strings.Join(strings.Fields(decl), " ")
	default:
		p.Name = name
		p.RawType = typ
	}

	p.Type = res.Resolve(p.RawType, nil, false)
	return p, nil
}

// isKnownType reports whether s as a whole names a type the resolver
// recognizes, so "double precision" is read as a type rather than a
// parameter named double.
func isKnownType(s string, res *typemap.Resolver) bool {
	t := res.Resolve(s, nil, false)
	for t.Variant == model.VariantArray && t.Item != nil {
		t = *t.Item
	}
	return t.Variant != model.VariantUnknown
}

var (
	tableMarker = regexp.MustCompile(`(?i)\btable\s*\(`)
	tableReturn = regexp.MustCompile(`(?is)^\s*(?:setof\s+)?table\s*\((.*)\)\s*$`)
)

// HasTableMarker reports whether a declared return type has the
// TABLE(...) form.
func HasTableMarker(returnType string) bool {
	return tableMarker.MatchString(returnType)
}

// ParseReturnTable parses "TABLE(col type, ...)" into output fields. Commas
// inside type modifiers such as numeric(10,2) do not split columns.
func ParseReturnTable(returnType string, res *typemap.Resolver) ([]model.Field, error) {
	m := tableReturn.FindStringSubmatch(returnType)
	if m == nil {
		return nil, fmt.Errorf("not a TABLE return type: %q", returnType)
	}

	entries, err := SplitTopLevel(m[1])
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("TABLE return type has no columns: %q", returnType)
	}

	fields := make([]model.Field, 0, len(entries))
	for _, entry := range entries {
		name, raw := splitName(entry)
		if raw == "" {
			return nil, fmt.Errorf("%w for column %q", ErrMissingType, entry)
		}
		fields = append(fields, model.Field{
			Name:     name,
			Type:     res.Resolve(raw, nil, false),
			Required: true,
		})
	}
	return fields, nil
}

// splitName splits "name type..." into the unquoted name and the type text
// with whitespace collapsed. Double-quoted names may contain spaces.
func splitName(decl string) (name, typ string) {
	decl = strings.TrimSpace(decl)
	if strings.HasPrefix(decl, `"`) {
		for i := 1; i < len(decl); i++ {
			if decl[i] != '"' {
				continue
			}
			if i+1 < len(decl) && decl[i+1] == '"' {
				i++
				continue
			}
			name = strings.ReplaceAll(decl[1:i], `""`, `"`)
			return name, strings.Join(strings.Fields(decl[i+1:]), " ")
		}
	}
	first, rest, _ := strings.Cut(decl, " ")
	return first, strings.Join(strings.Fields(rest), " ")
}

func ptr(s string) *string { return &s }
