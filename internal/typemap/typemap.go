// Package typemap resolves raw database type names, and optional JSON sample
// values, into model.Type descriptors.
//
// Resolution is pure: the same (raw, sample, nullable) triple always yields
// the same descriptor, and unrecognized names resolve to the unknown variant
// instead of failing.
package typemap

import (
	"regexp"
	"strings"

	"github.com/Yrrrrrf/crud-forge/internal/model"
)

// jsonKind marks alias entries that resolve to the json variant.
const jsonKind model.ScalarKind = "json"

// builtin maps normalized type names from PostgreSQL, MySQL, SQL Server and
// SQLite onto scalar kinds.
var builtin = map[string]model.ScalarKind{
	// Integer types
	"int":         model.KindInteger,
	"int2":        model.KindInteger,
	"int4":        model.KindInteger,
	"integer":     model.KindInteger,
	"smallint":    model.KindInteger,
	"tinyint":     model.KindInteger,
	"mediumint":   model.KindInteger,
	"serial":      model.KindInteger,
	"serial2":     model.KindInteger,
	"serial4":     model.KindInteger,
	"smallserial": model.KindInteger,
	"year":        model.KindInteger,
	"int8":        model.KindBigInt,
	"bigint":      model.KindBigInt,
	"bigserial":   model.KindBigInt,
	"serial8":     model.KindBigInt,
	"oid":         model.KindBigInt,

	// Floating point and exact numerics
	"float":            model.KindFloat,
	"float4":           model.KindFloat,
	"float8":           model.KindFloat,
	"real":             model.KindFloat,
	"double":           model.KindFloat,
	"double precision": model.KindFloat,
	"numeric":          model.KindDecimal,
	"decimal":          model.KindDecimal,
	"dec":              model.KindDecimal,
	"fixed":            model.KindDecimal,
	"money":            model.KindDecimal,
	"smallmoney":       model.KindDecimal,

	// Character types
	"text":              model.KindText,
	"varchar":           model.KindText,
	"character varying": model.KindText,
	"char":              model.KindText,
	"character":         model.KindText,
	"bpchar":            model.KindText,
	"name":              model.KindText,
	"citext":            model.KindText,
	"nvarchar":          model.KindText,
	"nchar":             model.KindText,
	"ntext":             model.KindText,
	"tinytext":          model.KindText,
	"mediumtext":        model.KindText,
	"longtext":          model.KindText,
	"clob":              model.KindText,
	"sysname":           model.KindText,
	"enum":              model.KindText,
	"set":               model.KindText,
	"xml":               model.KindText,
	"inet":              model.KindText,
	"cidr":              model.KindText,
	"macaddr":           model.KindText,
	"tsvector":          model.KindText,
	"tsquery":           model.KindText,
	"bit varying":       model.KindText,
	"varbit":            model.KindText,

	// Boolean
	"bool":    model.KindBoolean,
	"boolean": model.KindBoolean,
	"bit":     model.KindBoolean,

	// Date/time
	"date":                        model.KindDate,
	"time":                        model.KindTime,
	"timetz":                      model.KindTime,
	"time with time zone":         model.KindTime,
	"time without time zone":      model.KindTime,
	"timestamp":                   model.KindTimestamp,
	"timestamptz":                 model.KindTimestamp,
	"timestamp with time zone":    model.KindTimestamp,
	"timestamp without time zone": model.KindTimestamp,
	"datetime":                    model.KindTimestamp,
	"datetime2":                   model.KindTimestamp,
	"smalldatetime":               model.KindTimestamp,
	"datetimeoffset":              model.KindTimestamp,
	"interval":                    model.KindInterval,

	// Identifiers and binary
	"uuid":             model.KindUUID,
	"uniqueidentifier": model.KindUUID,
	"bytea":            model.KindBytes,
	"blob":             model.KindBytes,
	"tinyblob":         model.KindBytes,
	"mediumblob":       model.KindBytes,
	"longblob":         model.KindBytes,
	"binary":           model.KindBytes,
	"varbinary":        model.KindBytes,
	"image":            model.KindBytes,

	// JSON
	"json":  jsonKind,
	"jsonb": jsonKind,
}

// Resolver maps raw type names to descriptors. The zero value is not usable;
// construct one with New.
type Resolver struct {
	aliases  map[string]string
	affinity bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAliases registers extra type names, such as domains or enums, and the
// type each one stands for (for example "email" -> "text" or
// "tag_list" -> "text[]"). Targets are resolved without aliases.
func WithAliases(aliases map[string]string) Option {
	return func(r *Resolver) {
		for k, v := range aliases {
			r.aliases[normalize(k)] = v
		}
	}
}

// WithAffinity enables SQLite type affinity rules for names that are not in
// the builtin table, so declared types like "VARYING CHARACTER(20)" or
// "UNSIGNED BIG INT" still resolve.
func WithAffinity() Option {
	return func(r *Resolver) { r.affinity = true }
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{aliases: make(map[string]string)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = New()

// Resolve maps a raw type name using the default resolver.
func Resolve(raw string, sample interface{}, nullable bool) model.Type {
	return defaultResolver.Resolve(raw, sample, nullable)
}

// Resolve maps a raw type name, an optional sample value (used only for JSON
// types) and a nullability flag to a type descriptor.
func (r *Resolver) Resolve(raw string, sample interface{}, nullable bool) model.Type {
	t := r.resolve(raw, sample, true)
	t.Nullable = nullable
	return t
}

func (r *Resolver) resolve(raw string, sample interface{}, useAliases bool) model.Type {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, "`", "")
	if s == "" {
		return model.Unknown(raw)
	}

	if elem, ok := arrayElement(s); ok {
		return model.ArrayOf(r.resolve(elem, nil, useAliases))
	}

	// MySQL reports boolean columns as tinyint(1).
	if strings.HasPrefix(s, "tinyint(1)") {
		return model.Scalar(model.KindBoolean)
	}

	name := normalize(s)

	if useAliases {
		if target, ok := r.aliases[name]; ok {
			return r.resolve(target, sample, false)
		}
	}

	if kind, ok := builtin[name]; ok {
		if kind == jsonKind {
			return fromSample(sample)
		}
		return model.Scalar(kind)
	}

	// PostgreSQL internal array names: _int4, _text, ...
	if strings.HasPrefix(name, "_") && len(name) > 1 {
		if kind, ok := builtin[name[1:]]; ok {
			if kind == jsonKind {
				return model.ArrayOf(model.OpaqueJSON())
			}
			return model.ArrayOf(model.Scalar(kind))
		}
	}

	if r.affinity {
		if kind, ok := affinityKind(name); ok {
			return model.Scalar(kind)
		}
	}

	return model.Unknown(strings.TrimSpace(raw))
}

var arraySuffix = regexp.MustCompile(`\[\s*\d*\s*\]$`)

// arrayElement strips one level of array notation. Both "T[]", "T[3]" and the
// SQL standard "T ARRAY" spellings are recognized.
func arrayElement(s string) (string, bool) {
	if loc := arraySuffix.FindStringIndex(s); loc != nil && loc[0] > 0 {
		return strings.TrimSpace(s[:loc[0]]), true
	}
	if strings.HasSuffix(s, " array") {
		return strings.TrimSpace(strings.TrimSuffix(s, " array")), true
	}
	return "", false
}

// normalize reduces a lower-cased type name to its lookup key: schema
// qualification and parenthesized modifiers are dropped, MySQL display
// attributes are removed and whitespace is collapsed.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = stripModifiers(s)

	if idx := strings.LastIndexByte(s, '.'); idx >= 0 {
		s = s[idx+1:]
	}

	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		switch f {
		case "unsigned", "signed", "zerofill":
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// stripModifiers removes every parenthesized group, so "numeric(10,2)" becomes
// "numeric" and "timestamp(3) with time zone" becomes
// "timestamp with time zone".
func stripModifiers(s string) string {
	if !strings.ContainsRune(s, '(') {
		return s
	}
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// affinityKind applies SQLite's column affinity rules
// (https://www.sqlite.org/datatype3.html section 3.1).
func affinityKind(name string) (model.ScalarKind, bool) {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "INT"):
		return model.KindBigInt, true
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "CLOB"), strings.Contains(upper, "TEXT"):
		return model.KindText, true
	case strings.Contains(upper, "BLOB"):
		return model.KindBytes, true
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"), strings.Contains(upper, "DOUB"):
		return model.KindFloat, true
	case strings.Contains(upper, "BOOL"):
		return model.KindBoolean, true
	case strings.Contains(upper, "DATE"), strings.Contains(upper, "TIME"):
		return model.KindTimestamp, true
	}
	return "", false
}
