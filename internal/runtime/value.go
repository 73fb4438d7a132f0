// Package runtime implements the X++ value system, expression evaluator and line interpreter.
package runtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is the interface for all runtime values.
type Value interface {
	TypeName() string
	String() string
}

// ---- Primitive values ----

// IntVal represents an integer value.
type IntVal int64

func (v IntVal) TypeName() string { return "int" }
func (v IntVal) String() string   { return strconv.FormatInt(int64(v), 10) }

// FloatVal represents a floating-point value.
type FloatVal float64

func (v FloatVal) TypeName() string { return "float" }
func (v FloatVal) String() string   { return formatFloat(float64(v)) }

// StringVal represents a string value.
type StringVal string

func (v StringVal) TypeName() string { return "str" }
func (v StringVal) String() string   { return string(v) }

// BoolVal represents a boolean value.
type BoolVal bool

func (v BoolVal) TypeName() string { return "bool" }
func (v BoolVal) String() string {
	if v {
		return "True"
	}
	return "False"
}

// NoneVal represents None.
type NoneVal struct{}

func (v NoneVal) TypeName() string { return "NoneType" }
func (v NoneVal) String() string   { return "None" }

// ---- Callable values ----

// BuiltinVal represents a built-in (native) function.
type BuiltinVal struct {
	Name string
	Fn   BuiltinFn
}

func (v *BuiltinVal) TypeName() string { return "builtin_function_or_method" }
func (v *BuiltinVal) String() string   { return fmt.Sprintf("<built-in function %s>", v.Name) }

// ---- Sequence values ----

// ListVal is a list, or a tuple when Frozen is set.
type ListVal struct {
	Elements []Value
	Frozen   bool
}

func (v *ListVal) TypeName() string {
	if v.Frozen {
		return "tuple"
	}
	return "list"
}

func (v *ListVal) String() string {
	parts := make([]string, len(v.Elements))
	for i, elem := range v.Elements {
		parts[i] = Repr(elem)
	}
	if !v.Frozen {
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// RangeVal is a lazy integer range as produced by range().
type RangeVal struct {
	Start, Stop, Step int64
}

func (v *RangeVal) TypeName() string { return "range" }
func (v *RangeVal) String() string {
	if v.Step == 1 {
		return fmt.Sprintf("range(%d, %d)", v.Start, v.Stop)
	}
	return fmt.Sprintf("range(%d, %d, %d)", v.Start, v.Stop, v.Step)
}

// Len returns the number of integers in the range.
func (v *RangeVal) Len() int64 {
	switch {
	case v.Step > 0 && v.Start < v.Stop:
		return (v.Stop - v.Start + v.Step - 1) / v.Step
	case v.Step < 0 && v.Start > v.Stop:
		return (v.Start - v.Stop - v.Step - 1) / -v.Step
	default:
		return 0
	}
}

// At returns the i-th integer of the range. i must be in [0, Len()).
func (v *RangeVal) At(i int64) IntVal {
	return IntVal(v.Start + i*v.Step)
}

// ---- Hashed collections ----

// hashKey identifies a hashable value. Numerically equal ints, floats and bools share a key.
type hashKey struct {
	kind byte
	repr string
}

func keyOf(v Value) (hashKey, error) {
	switch val := v.(type) {
	case IntVal:
		return hashKey{'n', strconv.FormatInt(int64(val), 10)}, nil
	case BoolVal:
		if val {
			return hashKey{'n', "1"}, nil
		}
		return hashKey{'n', "0"}, nil
	case FloatVal:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return hashKey{'n', strconv.FormatInt(int64(f), 10)}, nil
		}
		return hashKey{'f', strconv.FormatFloat(f, 'g', -1, 64)}, nil
	case StringVal:
		return hashKey{'s', string(val)}, nil
	case NoneVal:
		return hashKey{'0', ""}, nil
	case *ListVal:
		if !val.Frozen {
			break
		}
		parts := make([]string, len(val.Elements))
		for i, elem := range val.Elements {
			k, err := keyOf(elem)
			if err != nil {
				return hashKey{}, err
			}
			parts[i] = string(k.kind) + k.repr
		}
		return hashKey{'t', strings.Join(parts, "\x00")}, nil
	case *BuiltinVal:
		return hashKey{'b', val.Name}, nil
	}
	return hashKey{}, fmt.Errorf("unhashable type: '%s'", v.TypeName())
}

// DictVal is an insertion-ordered dictionary.
type DictVal struct {
	keys  []Value
	vals  []Value
	index map[hashKey]int
}

// NewDict creates an empty dictionary.
func NewDict() *DictVal {
	return &DictVal{index: make(map[hashKey]int)}
}

func (v *DictVal) TypeName() string { return "dict" }
func (v *DictVal) String() string {
	parts := make([]string, len(v.keys))
	for i := range v.keys {
		parts[i] = Repr(v.keys[i]) + ": " + Repr(v.vals[i])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Len returns the number of entries.
func (v *DictVal) Len() int { return len(v.keys) }

// Keys returns the keys in insertion order.
func (v *DictVal) Keys() []Value { return append([]Value(nil), v.keys...) }

// Get looks up key.
func (v *DictVal) Get(key Value) (Value, bool, error) {
	k, err := keyOf(key)
	if err != nil {
		return nil, false, err
	}
	i, ok := v.index[k]
	if !ok {
		return nil, false, nil
	}
	return v.vals[i], true, nil
}

// Set inserts or replaces the entry for key.
func (v *DictVal) Set(key, val Value) error {
	k, err := keyOf(key)
	if err != nil {
		return err
	}
	if i, ok := v.index[k]; ok {
		v.vals[i] = val
		return nil
	}
	v.index[k] = len(v.keys)
	v.keys = append(v.keys, key)
	v.vals = append(v.vals, val)
	return nil
}

// SetVal is an insertion-ordered set.
type SetVal struct {
	items []Value
	index map[hashKey]struct{}
}

// NewSet creates an empty set.
func NewSet() *SetVal {
	return &SetVal{index: make(map[hashKey]struct{})}
}

func (v *SetVal) TypeName() string { return "set" }
func (v *SetVal) String() string {
	if len(v.items) == 0 {
		return "set()"
	}
	parts := make([]string, len(v.items))
	for i, item := range v.items {
		parts[i] = Repr(item)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Len returns the number of items.
func (v *SetVal) Len() int { return len(v.items) }

// Items returns the items in insertion order.
func (v *SetVal) Items() []Value { return append([]Value(nil), v.items...) }

// Add inserts item if it is not already present.
func (v *SetVal) Add(item Value) error {
	k, err := keyOf(item)
	if err != nil {
		return err
	}
	if _, ok := v.index[k]; ok {
		return nil
	}
	v.index[k] = struct{}{}
	v.items = append(v.items, item)
	return nil
}

// Contains reports whether item is in the set.
func (v *SetVal) Contains(item Value) (bool, error) {
	k, err := keyOf(item)
	if err != nil {
		return false, err
	}
	_, ok := v.index[k]
	return ok, nil
}

// ---- Truthiness ----

// IsTruthy returns the truthiness of a value (Python style).
func IsTruthy(v Value) bool {
	switch val := v.(type) {
	case nil, NoneVal:
		return false
	case BoolVal:
		return bool(val)
	case IntVal:
		return int64(val) != 0
	case FloatVal:
		return float64(val) != 0
	case StringVal:
		return string(val) != ""
	case *ListVal:
		return len(val.Elements) > 0
	case *RangeVal:
		return val.Len() > 0
	case *DictVal:
		return val.Len() > 0
	case *SetVal:
		return val.Len() > 0
	default:
		return true
	}
}

// ---- Representation ----

// Repr returns the quoted form of a value, as shown inside containers.
func Repr(v Value) string {
	if s, ok := v.(StringVal); ok {
		return quote(string(s))
	}
	if v == nil {
		return "None"
	}
	return v.String()
}

// quote renders s with single quotes, or double quotes when s holds only single quotes.
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r == rune(q) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

// formatFloat renders f the way Python's repr does: shortest digits, ".0" on whole numbers,
// exponent notation outside [1e-4, 1e16).
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	exp := int(math.Floor(math.Log10(math.Abs(f))))
	if exp < -4 || exp >= 16 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// ---- Numeric helpers ----

// ToInt64 converts an int or bool value to int64.
func ToInt64(v Value) (int64, bool) {
	switch val := v.(type) {
	case IntVal:
		return int64(val), true
	case BoolVal:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// ToFloat64 converts a numeric value (int, float or bool) to float64.
func ToFloat64(v Value) (float64, bool) {
	if f, ok := v.(FloatVal); ok {
		return float64(f), true
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func isNumber(v Value) bool {
	_, ok := ToFloat64(v)
	return ok
}

// ValuesString formats a slice of values with a separator.
func ValuesString(vals []Value, sep string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, sep)
}
