package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Kind is the storage kind of a column.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBool
	KindTime
	KindVector
	KindBudget
	KindTags
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindVector:
		return "vector"
	case KindBudget:
		return "budget"
	case KindTags:
		return "tags"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Group flags classify columns for the generic passes.
type Group uint16

const (
	// GroupIdentifier marks row and entity identifiers. Identifiers are never
	// generalized by rare category suppression.
	GroupIdentifier Group = 1 << iota

	// GroupPII marks columns removed by anonymization.
	GroupPII

	// GroupCategorical marks columns subject to rare category suppression.
	GroupCategorical

	// GroupRequired marks columns that must be present and non-null at export.
	GroupRequired

	// GroupLabel marks supervised learning targets.
	GroupLabel

	// GroupBounded marks numeric columns clipped into [0,1] by cleaning:
	// preference vector dimensions and names containing _pref or _level.
	GroupBounded

	// GroupVector marks unpacked preference vector dimensions.
	GroupVector
)

// Has reports whether g contains every flag in f.
func (g Group) Has(f Group) bool {
	return g&f == f
}

// Column describes one record attribute.
type Column struct {
	Name  string
	Kind  Kind
	Group Group

	num  func(*Record) *Null[float64]
	str  func(*Record) *Null[string]
	bl   func(*Record) *Null[bool]
	tm   func(*Record) *Null[time.Time]
	vec  func(*Record) *Vector
	bud  func(*Record) *Null[Budget]
	tags func(*Record) *[]string
}

// IsNull reports whether the column slot of r is null.
func (c Column) IsNull(r *Record) bool {
	switch c.Kind {
	case KindNumber:
		return !c.num(r).Valid
	case KindString:
		return !c.str(r).Valid
	case KindBool:
		return !c.bl(r).Valid
	case KindTime:
		return !c.tm(r).Valid
	case KindVector:
		return *c.vec(r) == nil
	case KindBudget:
		return !c.bud(r).Valid
	case KindTags:
		return *c.tags(r) == nil
	}
	return true
}

// Clear sets the column slot of r to null.
func (c Column) Clear(r *Record) {
	switch c.Kind {
	case KindNumber:
		*c.num(r) = Null[float64]{}
	case KindString:
		*c.str(r) = Null[string]{}
	case KindBool:
		*c.bl(r) = Null[bool]{}
	case KindTime:
		*c.tm(r) = Null[time.Time]{}
	case KindVector:
		*c.vec(r) = nil
	case KindBudget:
		*c.bud(r) = Null[Budget]{}
	case KindTags:
		*c.tags(r) = nil
	}
}

// Copy sets the column slot of dst to the value held by src.
func (c Column) Copy(dst, src *Record) {
	switch c.Kind {
	case KindNumber:
		*c.num(dst) = *c.num(src)
	case KindString:
		*c.str(dst) = *c.str(src)
	case KindBool:
		*c.bl(dst) = *c.bl(src)
	case KindTime:
		*c.tm(dst) = *c.tm(src)
	case KindVector:
		if v := *c.vec(src); v != nil {
			*c.vec(dst) = append(Vector{}, v...)
		} else {
			*c.vec(dst) = nil
		}
	case KindBudget:
		*c.bud(dst) = *c.bud(src)
	case KindTags:
		if t := *c.tags(src); t != nil {
			*c.tags(dst) = append([]string{}, t...)
		} else {
			*c.tags(dst) = nil
		}
	}
}

// Number returns a number column value. ok is false for null values and
// for columns of another kind.
func (c Column) Number(r *Record) (float64, bool) {
	if c.Kind != KindNumber {
		return 0, false
	}
	return c.num(r).Get()
}

// SetNumber stores v in a number column. It panics on other kinds.
func (c Column) SetNumber(r *Record, v float64) {
	if c.Kind != KindNumber {
		panic(fmt.Sprintf("dataset: SetNumber on %s column %q", c.Kind, c.Name))
	}
	*c.num(r) = Some(v)
}

// Text returns a string column value. ok is false for null values and for
// columns of another kind.
func (c Column) Text(r *Record) (string, bool) {
	if c.Kind != KindString {
		return "", false
	}
	return c.str(r).Get()
}

// SetText stores v in a string column. It panics on other kinds.
func (c Column) SetText(r *Record, v string) {
	if c.Kind != KindString {
		panic(fmt.Sprintf("dataset: SetText on %s column %q", c.Kind, c.Name))
	}
	*c.str(r) = Some(v)
}

// Value returns the JSON-ready value of the column slot, or nil when null.
// Times are RFC 3339 strings in UTC.
func (c Column) Value(r *Record) any {
	if c.IsNull(r) {
		return nil
	}
	switch c.Kind {
	case KindNumber:
		return c.num(r).V
	case KindString:
		return c.str(r).V
	case KindBool:
		return c.bl(r).V
	case KindTime:
		return FormatTime(c.tm(r).V)
	case KindVector:
		v := *c.vec(r)
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out
	case KindBudget:
		b := c.bud(r).V
		out := map[string]any{"min": nil, "max": nil}
		if b.Min.Valid {
			out["min"] = b.Min.V
		}
		if b.Max.Valid {
			out["max"] = b.Max.V
		}
		return out
	case KindTags:
		tags := *c.tags(r)
		out := make([]any, len(tags))
		for i, s := range tags {
			out[i] = s
		}
		return out
	}
	return nil
}

// Format renders the column slot as flat text for CSV output. Null renders
// as the empty string.
func (c Column) Format(r *Record) string {
	if c.IsNull(r) {
		return ""
	}
	switch c.Kind {
	case KindNumber:
		return strconv.FormatFloat(c.num(r).V, 'g', -1, 64)
	case KindString:
		return c.str(r).V
	case KindBool:
		return strconv.FormatBool(c.bl(r).V)
	case KindTime:
		return FormatTime(c.tm(r).V)
	case KindTags:
		return strings.Join(*c.tags(r), ",")
	default:
		data, err := MarshalCanonical(c.Value(r))
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Decode parses a JSON value into the column slot of r. JSON null clears
// the slot.
//
// Decoding is lenient at the edges raw extracts are known to be messy:
// timestamps that do not parse become null and return ErrUnparseableTime,
// malformed vectors become an empty (non-null) vector, and tags given as a
// single comma separated string are split.
func (c Column) Decode(r *Record, raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		c.Clear(r)
		return nil
	}

	switch c.Kind {
	case KindNumber:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			var s string
			if json.Unmarshal(raw, &s) != nil {
				return fmt.Errorf("column %s: %w", c.Name, err)
			}
			f, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if perr != nil {
				return fmt.Errorf("column %s: %w", c.Name, perr)
			}
			v = f
		}
		*c.num(r) = Some(v)
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			// Identifiers are frequently numeric upstream.
			var n json.Number
			if json.Unmarshal(raw, &n) != nil {
				return fmt.Errorf("column %s: %w", c.Name, err)
			}
			s = n.String()
		}
		*c.str(r) = Some(s)
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("column %s: %w", c.Name, err)
		}
		*c.bl(r) = Some(b)
	case KindTime:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("column %s: %w", c.Name, err)
		}
		t, ok := ParseTime(s)
		if !ok {
			*c.tm(r) = Null[time.Time]{}
			return fmt.Errorf("column %s: %q: %w", c.Name, s, ErrUnparseableTime)
		}
		*c.tm(r) = Some(t)
	case KindVector:
		*c.vec(r) = decodeVector(raw)
	case KindBudget:
		var b Budget
		if err := json.Unmarshal(raw, &b); err != nil {
			var s string
			if json.Unmarshal(raw, &s) != nil || json.Unmarshal([]byte(s), &b) != nil {
				*c.bud(r) = Null[Budget]{}
				return nil
			}
		}
		*c.bud(r) = Some(b)
	case KindTags:
		*c.tags(r) = decodeTags(raw)
	}
	return nil
}

func decodeVector(raw []byte) Vector {
	var v []float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return Vector(v)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if json.Unmarshal([]byte(s), &v) == nil {
			return Vector(v)
		}
	}
	return Vector{}
}

func decodeTags(raw []byte) []string {
	var tags []string
	if err := json.Unmarshal(raw, &tags); err == nil {
		if tags == nil {
			tags = []string{}
		}
		return tags
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return []string{}
	}
	s = strings.Trim(strings.TrimSpace(s), "{}[]")
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func numberCol(name string, g Group, f func(*Record) *Null[float64]) Column {
	if g.Has(GroupVector) || isBoundedName(name) {
		g |= GroupBounded
	}
	return Column{Name: name, Kind: KindNumber, Group: g, num: f}
}

func stringCol(name string, g Group, f func(*Record) *Null[string]) Column {
	return Column{Name: name, Kind: KindString, Group: g, str: f}
}

func boolCol(name string, g Group, f func(*Record) *Null[bool]) Column {
	return Column{Name: name, Kind: KindBool, Group: g, bl: f}
}

func timeCol(name string, g Group, f func(*Record) *Null[time.Time]) Column {
	return Column{Name: name, Kind: KindTime, Group: g, tm: f}
}

func vectorCol(name string, f func(*Record) *Vector) Column {
	return Column{Name: name, Kind: KindVector, vec: f}
}

// isBoundedName reports whether name is a preference score. Engineered
// counts, ages and ratings share the user_ and item_ prefixes but are not
// normalized and stay unclipped.
func isBoundedName(name string) bool {
	return strings.Contains(name, "_pref") || strings.Contains(name, "_level")
}

func dimCols(prefix string, dims func(*Record) *Dims) []Column {
	cols := make([]Column, VectorLen)
	for i, dim := range VectorDims {
		i := i
		cols[i] = numberCol(prefix+"_"+dim, GroupVector, func(r *Record) *Null[float64] { return &dims(r)[i] })
	}
	return cols
}
