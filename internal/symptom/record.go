package symptom

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind is the dynamic type of a cell in a RawRecord.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a scalar cell of unknown schema.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

func NullValue() Value { return Value{kind: KindNull} }
func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload when the value is a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Truthy reports whether a presence column marks the symptom as present:
// the number 1, boolean true, or one of yes/y/true/1 in any case.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNumber:
		return v.num == 1
	case KindBool:
		return v.b
	case KindString:
		switch strings.ToLower(v.str) {
		case "yes", "y", "true", "1":
			return true
		}
	}
	return false
}

// String renders the value the way a label column is stringified.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	default:
		return ""
	}
}

var missingMarkers = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "nan": {}, "-nan": {}, "null": {}, "none": {}, "#n/a": {}, "<na>": {},
}

// ParseCell infers a typed Value from a raw tabular cell.
func ParseCell(cell string) Value {
	trimmed := strings.TrimSpace(cell)
	if _, missing := missingMarkers[strings.ToLower(trimmed)]; missing {
		return NullValue()
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return NumberValue(f)
	}
	return StringValue(cell)
}

// Field is one named cell.
type Field struct {
	Name  string
	Value Value
}

// Record is a RawRecord: cells in column order, schema unknown.
type Record []Field

// Get returns the value of the first column with the given name.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return NullValue(), false
}

// Columns returns the column names in order.
func (r Record) Columns() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Name
	}
	return out
}
