package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Kind tags the variant held by a Value.
type Kind string

const (
	KindNull   Kind = "null"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindArray  Kind = "array"
	KindObject Kind = "object"
)

// Value is a tagged tree, mirroring a JSON value but keeping Int and Float
// distinct (JSON numbers alone don't carry that distinction). Object
// records a key order (returned by Object), which ToJSON does not follow;
// for equality and validation purposes it behaves as a mapping from name
// to Value.
type Value struct {
	kind   Kind
	bol    bool
	i      int64
	f      float64
	str    string
	arr    []Value
	obj    map[string]Value
	objKeys []string
}

func NullValue() Value { return Value{kind: KindNull} }

func BoolValue(b bool) Value { return Value{kind: KindBool, bol: b} }

func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

func StringValue(s string) Value { return Value{kind: KindString, str: s} }

func ArrayValue(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// ObjectValue builds an Object Value. keys controls iteration/serialization
// order; any key present in fields but absent from keys is appended in
// fields' natural (unordered) remainder, sorted for determinism.
func ObjectValue(fields map[string]Value, keys []string) Value {
	ordered := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, k := range keys {
		if _, ok := fields[k]; ok && !seen[k] {
			ordered = append(ordered, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)

	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindObject, obj: cp, objKeys: ordered}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool)      { return v.bol, v.kind == KindBool }
func (v Value) Int() (int64, bool)      { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool)  { return v.f, v.kind == KindFloat }
func (v Value) String() (string, bool)  { return v.str, v.kind == KindString }
func (v Value) Array() ([]Value, bool)  { return v.arr, v.kind == KindArray }

// Object returns the field map and the recorded key order.
func (v Value) Object() (map[string]Value, []string, bool) {
	return v.obj, v.objKeys, v.kind == KindObject
}

// Equal performs structural equality, matching the domain's notion of
// allowed_values membership (same kind, same contents).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.bol == other.bol
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.str == other.str
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, item := range v.obj {
			oitem, ok := other.obj[k]
			if !ok || !item.Equal(oitem) {
				return false
			}
		}
		return true
	}
	return false
}

// ToJSON converts the Value into a generic interface{} suitable for
// json.Marshal. Objects become plain maps, so the recorded key order is
// dropped; json.Marshal writes map keys sorted, so MarshalJSON emits
// objects with sorted keys.
func (v Value) ToJSON() (interface{}, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.bol, nil
	case KindInt:
		return v.i, nil
	case KindFloat:
		return v.f, nil
	case KindString:
		return v.str, nil
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			j, err := item.ToJSON()
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, item := range v.obj {
			j, err := item.ToJSON()
			if err != nil {
				return nil, err
			}
			out[k] = j
		}
		return out, nil
	default:
		return nil, NewError(CodeSerde, "unknown value kind")
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	j, err := v.ToJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueFromJSON(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueFromJSON builds a Value from a decoded JSON tree (the output of
// json.Unmarshal into interface{}). Numbers decode as Float unless they are
// integral and fit, in which case they decode as Int. No schema is
// consulted, so an integral number such as 2.0 always becomes an Int.
func ValueFromJSON(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t)), nil
		}
		return FloatValue(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, WrapError(CodeSerde, "invalid number", err)
		}
		return FloatValue(f), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := ValueFromJSON(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ArrayValue(items), nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(t))
		keys := make([]string, 0, len(t))
		for k, item := range t {
			v, err := ValueFromJSON(item)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return ObjectValue(fields, keys), nil
	default:
		return Value{}, NewError(CodeSerde, "unsupported JSON value type")
	}
}

// Checksum computes a deterministic SHA-256 hash of the canonical
// serialization (object keys sorted), so two structurally-equal Values
// always produce the same checksum regardless of construction order.
func Checksum(v Value) (string, error) {
	canon, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(v Value) ([]byte, error) {
	switch v.kind {
	case KindArray:
		parts := make([][]byte, len(v.arr))
		for i, item := range v.arr {
			b, err := canonicalJSON(item)
			if err != nil {
				return nil, err
			}
			parts[i] = b
		}
		return joinArray(parts), nil
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([][]byte, len(keys))
		for i, k := range keys {
			b, err := canonicalJSON(v.obj[k])
			if err != nil {
				return nil, err
			}
			kb, _ := json.Marshal(k)
			parts[i] = append(append(kb, ':'), b...)
		}
		return joinObject(parts), nil
	default:
		j, err := v.ToJSON()
		if err != nil {
			return nil, err
		}
		return json.Marshal(j)
	}
}

func joinArray(parts [][]byte) []byte {
	out := []byte{'['}
	for i, p := range parts {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, p...)
	}
	return append(out, ']')
}

func joinObject(parts [][]byte) []byte {
	out := []byte{'{'}
	for i, p := range parts {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, p...)
	}
	return append(out, '}')
}
