// README: Preference value; a closed set of JSON-compatible scalars plus string lists.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

var ErrUnsupportedValue = errors.New("unsupported preference value")

// Value is the only shape a preference can take. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []string
}

func Null() Value { return Value{} }

func Text(s string) Value { return Value{kind: KindString, str: s} }

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func List(items ...string) Value {
	out := make([]string, len(items))
	copy(out, items)
	return Value{kind: KindList, list: out}
}

// FromAny converts a decoded JSON (or BSON) value. Objects are rejected and
// list elements must be scalars.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q", ErrUnsupportedValue, x)
		}
		return Number(f), nil
	case []string:
		return List(x...), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	items := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, err := FromAny(rv.Index(i).Interface())
		if err != nil {
			return Value{}, err
		}
		switch elem.kind {
		case KindNull:
			continue
		case KindList:
			return Value{}, fmt.Errorf("%w: nested list", ErrUnsupportedValue)
		}
		items = append(items, elem.String())
	}
	return Value{kind: KindList, list: items}, nil
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// IsEmpty reports whether the value carries no information: null, a blank
// string or an empty list. Empty values never overwrite stored preferences.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	case KindList:
		return len(v.list) == 0
	}
	return false
}

func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Float returns the numeric value. Numeric strings such as "40000" or
// "40,000" are accepted since models often quote budgets.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		s := strings.ReplaceAll(strings.TrimSpace(v.str), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func (v Value) Int() (int64, bool) {
	f, ok := v.Float()
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func (v Value) Items() []string {
	switch v.kind {
	case KindList:
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	case KindString:
		if v.str == "" {
			return nil
		}
		return []string{v.str}
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		return strings.Join(v.list, ", ")
	}
	return ""
}

// Any returns the plain Go representation used by document stores.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	}
	return nil
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Values is a key/value bag of preferences.
type Values map[string]Value

// ValuesFromMap converts a decoded JSON object, failing on the first
// unsupported entry.
func ValuesFromMap(m map[string]any) (Values, error) {
	out := make(Values, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
